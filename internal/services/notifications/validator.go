package notifications

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ValidationError is a field-level validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// AppValidator wraps go-playground/validator for echo.
type AppValidator struct {
	validator *validator.Validate
}

func NewAppValidator() *AppValidator {
	return &AppValidator{validator: validator.New()}
}

func (v *AppValidator) Validate(i any) error {
	if err := v.validator.Struct(i); err != nil {
		if ves, ok := err.(validator.ValidationErrors); ok && len(ves) > 0 {
			fe := ves[0]
			return &ValidationError{
				Field:   fe.Field(),
				Message: fmt.Sprintf("failed on '%s' validation", fe.Tag()),
			}
		}
		return err
	}
	return nil
}
