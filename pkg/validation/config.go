package validation

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"time"
)

// FieldError is one problem found in a config section
type FieldError struct {
	Field   string // dotted path, section first
	Problem string
	cause   error
}

func (e *FieldError) Error() string { return e.Field + ": " + e.Problem }
func (e *FieldError) Unwrap() error { return e.cause }

// ConfigValidator checks config values fluently and keeps going after a
// failure so every problem is reported together.
type ConfigValidator struct {
	section string
	errs    []error
}

func NewConfigValidator(section string) *ConfigValidator {
	return &ConfigValidator{section: section}
}

func (cv *ConfigValidator) add(field string, cause error, format string, args ...any) *ConfigValidator {
	cv.errs = append(cv.errs, &FieldError{
		Field:   cv.section + "." + field,
		Problem: fmt.Sprintf(format, args...),
		cause:   cause,
	})
	return cv
}

func (cv *ConfigValidator) Required(field, value string) *ConfigValidator {
	if value == "" {
		return cv.add(field, nil, "required field is empty")
	}
	return cv
}

func (cv *ConfigValidator) RangeInt(field string, value, lo, hi int) *ConfigValidator {
	if value < lo || value > hi {
		return cv.add(field, nil, "value %d is outside range [%d, %d]", value, lo, hi)
	}
	return cv
}

func (cv *ConfigValidator) MinDuration(field string, value, lo time.Duration) *ConfigValidator {
	if value < lo {
		return cv.add(field, nil, "duration %v is below minimum %v", value, lo)
	}
	return cv
}

// NonNegativeDuration accepts zero, which config uses to mean "disabled"
func (cv *ConfigValidator) NonNegativeDuration(field string, value time.Duration) *ConfigValidator {
	if value < 0 {
		return cv.add(field, nil, "duration %v must be non-negative", value)
	}
	return cv
}

func (cv *ConfigValidator) OneOf(field, value string, allowed []string) *ConfigValidator {
	if !slices.Contains(allowed, value) {
		return cv.add(field, nil, "value %q must be one of %v", value, allowed)
	}
	return cv
}

// Custom records fn's error, if any, keeping it reachable with errors.Is
func (cv *ConfigValidator) Custom(field string, fn func() error) *ConfigValidator {
	if err := fn(); err != nil {
		return cv.add(field, err, "%s", err)
	}
	return cv
}

func (cv *ConfigValidator) When(cond bool, fn func(*ConfigValidator)) *ConfigValidator {
	if cond {
		fn(cv)
	}
	return cv
}

func (cv *ConfigValidator) HasErrors() bool { return len(cv.errs) > 0 }
func (cv *ConfigValidator) Errors() []error { return cv.errs }

// Validate joins every recorded problem, or returns nil
func (cv *ConfigValidator) Validate() error {
	return errors.Join(cv.errs...)
}

// NonNegative checks a numeric value where zero means "disabled"
func NonNegative[T cmp.Ordered](cv *ConfigValidator, field string, value T) *ConfigValidator {
	var zero T
	if value < zero {
		return cv.add(field, nil, "value %v must be non-negative", value)
	}
	return cv
}
