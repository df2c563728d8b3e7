package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/dd0wney/cluso-attackgraph/pkg/model"
)

var (
	// validate is a singleton validator instance
	validate *validator.Validate

	// Depth bounds for relationship discovery
	MinDepth     = 1
	MaxDepth     = 5
	DefaultDepth = 2

	// Regular expressions
	tacticIDPattern = regexp.MustCompile(`^TA\d{4}$`)
	attackIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,63}$`)
)

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(jsonFieldName)
	mustRegister("tactic_id", tacticIDPattern)
	mustRegister("attack_id", attackIDPattern)
}

func mustRegister(tag string, pattern *regexp.Regexp) {
	err := validate.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		return pattern.MatchString(fl.Field().String())
	})
	if err != nil {
		panic(fmt.Sprintf("validation: register %s: %v", tag, err))
	}
}

// jsonFieldName reports fields by the name callers actually send
func jsonFieldName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return f.Name
	}
	return name
}

// SearchRequest is the input of a free-text search. A nil query means the
// parameter was missing; the empty string is a valid match-all query.
type SearchRequest struct {
	Query *string `json:"query" validate:"required,max=256"`
}

// TechniqueRequest names a single technique
type TechniqueRequest struct {
	TechniqueID string `json:"technique_id" validate:"required,attack_id"`
}

// GroupRequest names a single threat group
type GroupRequest struct {
	GroupID string `json:"group_id" validate:"required,attack_id"`
}

// AttackPathRequest is the input of attack-path construction
type AttackPathRequest struct {
	StartTactic string `json:"start_tactic" validate:"required,tactic_id"`
	EndTactic   string `json:"end_tactic" validate:"required,tactic_id"`
	GroupID     string `json:"group_id,omitempty" validate:"omitempty,attack_id"`
	Platform    string `json:"platform,omitempty" validate:"omitempty,max=64"`
}

// CoverageRequest is the input of coverage-gap analysis
type CoverageRequest struct {
	ThreatGroups       []string `json:"threat_groups" validate:"required,min=1,max=100,dive,required,attack_id"`
	TechniqueList      []string `json:"technique_list,omitempty" validate:"omitempty,max=2000,dive,required,attack_id"`
	ExcludeMitigations []string `json:"exclude_mitigations,omitempty" validate:"omitempty,max=500,dive,required,attack_id"`
}

// RelationshipsRequest is the input of relationship discovery. A nil depth
// selects the default; an explicit value must lie within [MinDepth, MaxDepth].
type RelationshipsRequest struct {
	TechniqueID       string   `json:"technique_id" validate:"required,attack_id"`
	RelationshipTypes []string `json:"relationship_types,omitempty" validate:"omitempty,max=16,dive,required,max=64"`
	Depth             *int     `json:"depth,omitempty" validate:"omitempty,min=1,max=5"`
}

// EffectiveDepth returns the requested depth or the default
func (r RelationshipsRequest) EffectiveDepth(def int) int {
	if r.Depth == nil {
		if def < MinDepth || def > MaxDepth {
			return DefaultDepth
		}
		return def
	}
	return *r.Depth
}

// Struct validates a request struct. Failures are *model.QueryError values
// wrapping model.ErrInvalidParameter and naming the first offending field.
func Struct(op string, req any) error {
	if req == nil {
		return model.InvalidParameterError(op, "", "request cannot be nil")
	}
	if err := validate.Struct(req); err != nil {
		return formatValidationError(op, err)
	}
	return nil
}

// formatValidationError converts validator errors to a more user-friendly format
func formatValidationError(op string, err error) error {
	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return model.NewError(op).Cause(err).Err()
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) || len(validationErrs) == 0 {
		return model.NewError(op).Cause(fmt.Errorf("%w: %v", model.ErrInvalidParameter, err)).Err()
	}

	// Report the first failure only
	e := validationErrs[0]
	field := e.Field()
	param := e.Param()

	var reason string
	switch e.Tag() {
	case "required":
		reason = "field is required"
	case "min":
		if e.Kind() == reflect.Slice {
			reason = fmt.Sprintf("must contain at least %s element(s)", param)
		} else {
			reason = fmt.Sprintf("must be at least %s", param)
		}
	case "max":
		if e.Kind() == reflect.Slice {
			reason = fmt.Sprintf("must not contain more than %s elements", param)
		} else if e.Kind() == reflect.String {
			reason = fmt.Sprintf("must not exceed %s characters", param)
		} else {
			reason = fmt.Sprintf("must not exceed %s", param)
		}
	case "tactic_id":
		reason = fmt.Sprintf("%q is not a tactic id (expected TAnnnn)", e.Value())
	case "attack_id":
		reason = fmt.Sprintf("%q is not a well-formed ATT&CK id", e.Value())
	default:
		reason = fmt.Sprintf("validation failed (%s)", e.Tag())
	}

	return model.InvalidParameterError(op, field, reason)
}
