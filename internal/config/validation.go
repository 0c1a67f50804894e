package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks struct tags and the cross-field rules tags cannot express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if cfg.SessionSweepInterval > cfg.SessionIdleTimeout {
		return fmt.Errorf("SessionSweepInterval: must not exceed SessionIdleTimeout (%s > %s)",
			cfg.SessionSweepInterval, cfg.SessionIdleTimeout)
	}
	return nil
}

// formatValidationError reports the first failed field with its tag.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		if e.Param() != "" {
			return fmt.Errorf("%s: validation failed on '%s=%s'", e.Field(), e.Tag(), e.Param())
		}
		return fmt.Errorf("%s: validation failed on '%s'", e.Field(), e.Tag())
	}
	return err
}
