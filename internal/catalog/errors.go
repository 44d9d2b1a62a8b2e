package catalog

import (
	"errors"
	"fmt"
)

// ConfigError reports an invalid model descriptor.
type ConfigError struct {
	Model  string
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid model %q: %s", e.Model, e.Reason)
	}
	return fmt.Sprintf("invalid model %q: %s: %s", e.Model, e.Field, e.Reason)
}

// IsConfigError reports whether err is (or wraps) a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
