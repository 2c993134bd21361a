package currency

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

// BankDetails are the account details a payer needs to send a bank transfer
// in a given currency. Only the fields meaningful for the local clearing
// system are set: IBAN for SEPA, sort code for the UK, BSB for Australia,
// routing number for the US and Canada.
type BankDetails struct {
	Currency      Code   `json:"currency" mapstructure:"-"`
	CurrencyName  string `json:"currencyName" mapstructure:"-"`
	Country       string `json:"country" mapstructure:"country"`
	CountryCode   string `json:"countryCode" mapstructure:"countryCode"`
	AccountHolder string `json:"accountHolder,omitempty" mapstructure:"accountHolder"`
	BankName      string `json:"bankName,omitempty" mapstructure:"bankName"`
	AccountNumber string `json:"accountNumber,omitempty" mapstructure:"accountNumber"`
	IBAN          string `json:"iban,omitempty" mapstructure:"iban"`
	RoutingNumber string `json:"routingNumber,omitempty" mapstructure:"routingNumber"`
	SortCode      string `json:"sortCode,omitempty" mapstructure:"sortCode"`
	BSB           string `json:"bsb,omitempty" mapstructure:"bsb"`
	SWIFT         string `json:"swift,omitempty" mapstructure:"swift"`
	Reference     string `json:"reference,omitempty" mapstructure:"reference"`
	ClearanceTime string `json:"clearanceTime" mapstructure:"-"`
}

// BankTable maps every supported currency to the bank details displayed to
// payers. It is safe for concurrent use.
type BankTable struct {
	mu      sync.RWMutex
	details map[Code]BankDetails
}

// DefaultBankTable returns a table holding only the country mapping of each
// currency. Account details are empty until loaded from a file.
func DefaultBankTable() *BankTable {
	t := &BankTable{details: make(map[Code]BankDetails, len(catalog))}
	for _, c := range catalog {
		t.details[c.Code] = BankDetails{
			Currency:      c.Code,
			CurrencyName:  c.Name,
			Country:       c.Country,
			CountryCode:   c.CountryCode,
			ClearanceTime: c.ClearanceTime,
		}
	}
	return t
}

// LoadBankTable reads operator bank details from a YAML, JSON or TOML file
// and merges them over the default country mapping. The file holds a
// top-level "bankDetails" map keyed by currency code:
//
//	bankDetails:
//	  EUR:
//	    accountHolder: Paydesk Ltd
//	    iban: DE89370400440532013000
//	    swift: COBADEFFXXX
//
// An empty path returns the default table.
func LoadBankTable(path string) (*BankTable, error) {
	t := DefaultBankTable()
	if path == "" {
		return t, nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("could not read bank details file %s: %w", path, err)
	}
	raw := map[string]BankDetails{}
	if err := v.UnmarshalKey("bankDetails", &raw); err != nil {
		return nil, fmt.Errorf("could not decode bank details: %w", err)
	}
	for code, override := range raw {
		c, err := Lookup(code)
		if err != nil {
			return nil, fmt.Errorf("bank details for %s: %w", code, err)
		}
		t.Set(c.Code, override)
	}
	return t, nil
}

// Set merges the non-empty fields of d into the details of the currency.
func (t *BankTable) Set(code Code, d BankDetails) {
	t.mu.Lock()
	defer t.mu.Unlock()
	current := t.details[code]
	merge := func(dst *string, src string) {
		if src != "" {
			*dst = src
		}
	}
	merge(&current.Country, d.Country)
	merge(&current.CountryCode, strings.ToUpper(d.CountryCode))
	merge(&current.AccountHolder, d.AccountHolder)
	merge(&current.BankName, d.BankName)
	merge(&current.AccountNumber, d.AccountNumber)
	merge(&current.IBAN, strings.ReplaceAll(d.IBAN, " ", ""))
	merge(&current.RoutingNumber, d.RoutingNumber)
	merge(&current.SortCode, d.SortCode)
	merge(&current.BSB, d.BSB)
	merge(&current.SWIFT, d.SWIFT)
	merge(&current.Reference, d.Reference)
	t.details[code] = current
}

// Get returns the bank details for a currency code.
func (t *BankTable) Get(code string) (BankDetails, error) {
	c, err := Lookup(code)
	if err != nil {
		return BankDetails{}, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.details[c.Code], nil
}

// List returns the bank details of every currency in catalog order.
func (t *BankTable) List() []BankDetails {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]BankDetails, 0, len(catalog))
	for _, c := range catalog {
		out = append(out, t.details[c.Code])
	}
	return out
}
