package validator

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestValidatePhone(t *testing.T) {
	c := qt.New(t)
	type receipt struct {
		Phone string `json:"receiptPhone" validate:"omitempty,phone"`
	}
	v := New()

	for _, phone := range []string{
		"+1234567890",
		"+1 (234) 567-890",
		"+44 20 7946 0958",
		"",
	} {
		c.Assert(v.Validate(&receipt{Phone: phone}), qt.IsNil, qt.Commentf("phone %q", phone))
	}
	for _, phone := range []string{
		"1234567890",
		"phone",
		"123-456-7890",
		"(123) 456-7890",
		"#1234567890",
	} {
		c.Assert(v.Validate(&receipt{Phone: phone}), qt.IsNotNil, qt.Commentf("phone %q", phone))
	}
}

func TestValidationErrors(t *testing.T) {
	c := qt.New(t)
	type card struct {
		CVC string `json:"cvc" validate:"omitempty,numeric,min=3,max=4"`
	}
	type payment struct {
		Card        *card  `json:"card,omitempty"`
		Email       string `json:"receiptEmail,omitempty" validate:"omitempty,email"`
		Description string `json:"description" validate:"required,max=8"`
	}
	v := New()

	c.Assert(v.Validate(&payment{Description: "order"}), qt.IsNil)
	c.Assert(v.Validate(&payment{Description: "order", Card: &card{CVC: "1234"}}), qt.IsNil)

	err := v.Validate(&payment{Email: "not-an-email", Card: &card{CVC: "12a"}})
	c.Assert(err, qt.IsNotNil)
	verrs, ok := err.(ValidationErrors)
	c.Assert(ok, qt.IsTrue)
	c.Assert(verrs, qt.DeepEquals, ValidationErrors{
		{Field: "card.cvc", Message: "Must contain only digits"},
		{Field: "receiptEmail", Message: "Invalid email format"},
		{Field: "description", Message: "This field is required"},
	})
	c.Assert(err, qt.ErrorMatches,
		"card.cvc: Must contain only digits, receiptEmail: Invalid email format, description: This field is required")

	err = v.Validate(&payment{Description: "a long description"})
	c.Assert(err, qt.ErrorMatches, "description: Must be at most 8 characters long")
}
