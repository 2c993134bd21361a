package currency

import (
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"
)

const bankDetailsYAML = `bankDetails:
  EUR:
    accountHolder: Paydesk Ltd
    bankName: Commerzbank
    iban: DE89 3704 0044 0532 0130 00
    swift: COBADEFFXXX
  usd:
    accountHolder: Paydesk Inc
    accountNumber: "000123456789"
    routingNumber: "110000000"
`

func TestDefaultBankTable(t *testing.T) {
	c := qt.New(t)
	table := DefaultBankTable()

	list := table.List()
	c.Assert(list, qt.HasLen, 10)
	c.Assert(list[0].Currency, qt.Equals, USD)
	c.Assert(list[0].CountryCode, qt.Equals, "US")
	c.Assert(list[0].AccountNumber, qt.Equals, "")

	gbp, err := table.Get("gbp")
	c.Assert(err, qt.IsNil)
	c.Assert(gbp.Country, qt.Equals, "United Kingdom")
	c.Assert(gbp.ClearanceTime, qt.Equals, "2-3 business days")

	_, err = table.Get("XYZ")
	c.Assert(err, qt.ErrorIs, ErrUnsupportedCurrency)
}

func TestLoadBankTable(t *testing.T) {
	c := qt.New(t)

	path := filepath.Join(t.TempDir(), "bank.yaml")
	c.Assert(os.WriteFile(path, []byte(bankDetailsYAML), 0o600), qt.IsNil)

	table, err := LoadBankTable(path)
	c.Assert(err, qt.IsNil)

	eur, err := table.Get("EUR")
	c.Assert(err, qt.IsNil)
	c.Assert(eur.AccountHolder, qt.Equals, "Paydesk Ltd")
	c.Assert(eur.IBAN, qt.Equals, "DE89370400440532013000")
	c.Assert(eur.SWIFT, qt.Equals, "COBADEFFXXX")
	// the country mapping is kept when the file doesn't override it
	c.Assert(eur.CountryCode, qt.Equals, "DE")

	usd, err := table.Get("USD")
	c.Assert(err, qt.IsNil)
	c.Assert(usd.RoutingNumber, qt.Equals, "110000000")
	c.Assert(usd.AccountNumber, qt.Equals, "000123456789")

	_, err = LoadBankTable(filepath.Join(t.TempDir(), "missing.yaml"))
	c.Assert(err, qt.IsNotNil)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	c.Assert(os.WriteFile(bad, []byte("bankDetails:\n  XYZ:\n    iban: foo\n"), 0o600), qt.IsNil)
	_, err = LoadBankTable(bad)
	c.Assert(err, qt.ErrorIs, ErrUnsupportedCurrency)

	table, err = LoadBankTable("")
	c.Assert(err, qt.IsNil)
	c.Assert(table.List(), qt.HasLen, 10)
}
