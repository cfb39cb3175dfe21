package flows

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/MrEthical07/goIdentity/internal/domain"
)

const (
	maxNameLength  = 200
	maxEmailLength = 256
)

type registerInput struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

func (r registerInput) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Required, validation.RuneLength(1, maxNameLength)),
		validation.Field(&r.LastName, validation.Required, validation.RuneLength(1, maxNameLength)),
		validation.Field(&r.Email, validation.Required, validation.Length(3, maxEmailLength), is.EmailFormat),
		validation.Field(&r.Password, validation.Required),
	)
}

type profileInput struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

func (r profileInput) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Required, validation.RuneLength(1, maxNameLength)),
		validation.Field(&r.LastName, validation.Required, validation.RuneLength(1, maxNameLength)),
	)
}

type emailInput struct {
	Email string `json:"email"`
}

func (r emailInput) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(3, maxEmailLength), is.EmailFormat),
	)
}

type newEmailInput struct {
	NewEmail string `json:"newEmail"`
}

func (r newEmailInput) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.NewEmail, validation.Required, validation.Length(3, maxEmailLength), is.EmailFormat),
	)
}

// validateInput runs v and converts ozzo field errors into a
// [domain.FieldError].
func validateInput(v validation.Validatable) error {
	err := v.Validate()
	if err == nil {
		return nil
	}

	var fieldErrs validation.Errors
	if !errors.As(err, &fieldErrs) {
		return &domain.FieldError{Fields: map[string]string{"request": err.Error()}}
	}

	fields := make(map[string]string, len(fieldErrs))
	for name, fieldErr := range fieldErrs {
		if fieldErr == nil {
			continue
		}
		fields[name] = fieldErr.Error()
	}
	return &domain.FieldError{Fields: fields}
}

func trimNames(first, last string) (string, string) {
	return strings.TrimSpace(first), strings.TrimSpace(last)
}
