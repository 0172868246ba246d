package validator

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	once     sync.Once
	validate *validator.Validate

	bindingOnce sync.Once
	bindingErr  error
)

// simpleEmail accepts local@domain.tld with no whitespace and a single @
var simpleEmail = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Validator represents a validator instance
type Validator struct {
	validate *validator.Validate
}

// New creates a new validator instance
func New() *Validator {
	once.Do(func() {
		validate = validator.New()
		// share the struct tags gin binds with
		validate.SetTagName("binding")
		if err := register(validate); err != nil {
			panic(err)
		}
	})

	return &Validator{
		validate: validate,
	}
}

// RegisterBinding installs the custom rules and JSON field names into
// gin's binding engine
func RegisterBinding() error {
	bindingOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			bindingErr = errors.New("unexpected binding validator engine")
			return
		}
		bindingErr = register(v)
	})
	return bindingErr
}

func register(v *validator.Validate) error {
	// Register custom validation functions
	if err := v.RegisterValidation("simple_email", validateSimpleEmail); err != nil {
		return fmt.Errorf("register simple_email: %w", err)
	}

	// Use JSON tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return nil
}

// Struct validates a struct
func (v *Validator) Struct(s any) error {
	if err := v.validate.Struct(s); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			return fmt.Errorf("invalid validation error: %w", err)
		}
		return fmt.Errorf("validation failed: %s", Describe(err))
	}
	return nil
}

// IsEmail reports whether s passes the simple_email rule
func IsEmail(s string) bool {
	return simpleEmail.MatchString(s)
}

// IsValidationError reports whether err came from a failed validation rule
// rather than from decoding
func IsValidationError(err error) bool {
	var verrs validator.ValidationErrors
	return errors.As(err, &verrs)
}

// Describe turns validation errors into one client-facing sentence.
// Missing fields are reported together before any format problem.
func Describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	var missing, other []string
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			missing = append(missing, fe.Field())
			continue
		}
		other = append(other, formatError(fe))
	}

	if len(missing) > 0 {
		return "Missing required fields: " + strings.Join(missing, ", ")
	}
	return strings.Join(other, "; ")
}

// formatError formats a validation error
func formatError(err validator.FieldError) string {
	field := err.Field()
	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "simple_email", "email":
		return "Invalid email address"
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, err.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, err.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, err.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, err.Param())
	default:
		return fmt.Sprintf("%s failed on tag %s", field, err.Tag())
	}
}

func validateSimpleEmail(fl validator.FieldLevel) bool {
	return IsEmail(fl.Field().String())
}
