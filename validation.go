package leadledger

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/xraph/leadledger/lead"
	"github.com/xraph/leadledger/user"
)

// AccountInput is the payload of registration and admin creation.
type AccountInput struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// Credentials is the payload of a login.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
			return lead.Category(fl.Field().String()).Valid()
		})
		validate = v
	})
	return validate
}

// Validate checks s against its struct tags and returns a ValidationError
// or a ViolationsError keyed by JSON field name.
func Validate(s any) error {
	err := validatorInstance().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	v := Violations{}
	for _, fe := range verrs {
		v.Add(fe.Field(), describe(fe))
	}
	return v.Err()
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "category":
		cats := make([]string, len(lead.Categories))
		for i, c := range lead.Categories {
			cats[i] = string(c)
		}
		return "must be one of " + strings.Join(cats, ", ")
	}
	return "is invalid"
}

func normalizeAccount(in AccountInput) AccountInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = user.NormalizeEmail(in.Email)
	return in
}

func normalizeLead(in lead.Input) lead.Input {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Contact = strings.TrimSpace(in.Contact)
	return in
}
