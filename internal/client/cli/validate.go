package cli

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// Bounds enforced before a password leaves the terminal. The upper one is
// the bcrypt input limit of the identity service.
const (
	minPasswordLength = 6
	maxPasswordLength = 72
)

var errPasswordMismatch = errors.New("passwords do not match")

type credentials struct {
	Email    string
	Password string
	Confirm  string
}

func (c credentials) validateSignIn() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Email, validation.Required, is.Email),
		validation.Field(&c.Password, validation.Required),
	)
}

func (c credentials) validateSignUp() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Email, validation.Required, is.Email),
		validation.Field(&c.Password, validation.Required, validation.Length(minPasswordLength, maxPasswordLength)),
		validation.Field(&c.Confirm, validation.Required, validation.By(equals(c.Password))),
	)
}

func validateEmail(email string) error {
	return validation.Validate(email, validation.Required, is.Email)
}

func validateWebsite(website *string) error {
	if website == nil {
		return nil
	}
	return validation.Validate(*website, is.URL)
}

func equals(want string) validation.RuleFunc {
	return func(value interface{}) error {
		if s, _ := value.(string); s != want {
			return errPasswordMismatch
		}
		return nil
	}
}
