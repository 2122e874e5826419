package config

import (
	"reflect"

	iderr "github.com/kestrelcloud/identity-core/pkg/errors"
)

// Validator is an optional interface that configuration structs may
// implement for custom validation logic. If the struct passed to
// [Loader.Load] implements Validator, its Validate method is called
// after tag-based validation ([required] tag) succeeds.
//
// Validate should return an error describing the first validation
// failure, or nil if the configuration is valid. Errors that are
// already [*iderr.Error] are returned as-is; other errors are wrapped
// with [iderr.CodeValidation].
//
// Example:
//
//	type CognitoConfig struct {
//	    Region     string `env:"AWS_REGION" required:"true"`
//	    UserPoolID string `env:"COGNITO_POOL_ID" required:"true"`
//	}
//
//	func (c *CognitoConfig) Validate() error {
//	    if !strings.Contains(c.UserPoolID, "_") {
//	        return iderr.Newf(iderr.CodeValidation,
//	            "config: user pool id %q is not of the form <region>_<id>", c.UserPoolID)
//	    }
//	    return nil
//	}
type Validator interface {
	Validate() error
}

// validate performs tag-based required validation and then invokes the
// Validator interface if the config struct implements it. The cfg
// parameter is the original interface value (for Validator type
// assertion); rv is the dereferenced reflect.Value of the struct.
func validate(cfg any, rv reflect.Value) error {
	if err := validateRequired(rv, ""); err != nil {
		return err
	}

	if v, ok := cfg.(Validator); ok {
		if err := v.Validate(); err != nil {
			// Pass through iderr.Error instances unchanged.
			if _, isIDErr := iderr.AsError(err); isIDErr {
				return err
			}
			return iderr.Wrap(err, iderr.CodeValidation,
				"config: custom validation failed")
		}
	}

	return nil
}

// validateRequired recursively checks that all fields tagged with
// `required:"true"` hold non-zero values. The path parameter tracks
// the dotted field path for error messages (e.g. "Cognito.Region").
func validateRequired(rv reflect.Value, path string) error {
	rt := rv.Type()

	for i := 0; i < rt.NumField(); i++ {
		field := rv.Field(i)
		sf := rt.Field(i)

		if !field.CanSet() {
			continue
		}

		fieldPath := sf.Name
		if path != "" {
			fieldPath = path + "." + sf.Name
		}

		// Recurse into nested structs (but not named types like
		// time.Time that happen to be structs).
		if field.Kind() == reflect.Struct {
			if err := validateRequired(field, fieldPath); err != nil {
				return err
			}
			continue
		}

		if sf.Tag.Get("required") != "true" {
			continue
		}

		if field.IsZero() {
			return iderr.Newf(iderr.CodeValidationRequired,
				"config: required field %q is empty", fieldPath)
		}
	}

	return nil
}
