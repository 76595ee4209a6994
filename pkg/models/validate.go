package models

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks a configuration before it is stored or handed to the engine.
func (u UserData) Validate() error {
	if err := validate.Struct(u); err != nil {
		return fmt.Errorf("validate user data: %w", err)
	}
	return nil
}
