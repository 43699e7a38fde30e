// File: internal/command/schema.go

// Package command is the top-level entry point for every automation command:
// it validates parameters against each command's declared schema, builds the
// page operation, delegates to the session lifecycle and maps the outcome to
// a result or a typed error. No browser resource is acquired until
// validation has fully passed.
package command

import (
	"math"
	"net/url"
	"time"

	"github.com/voidhawk9/autoteller/api/schemas"
)

// ParamType constrains the accepted JSON value for a parameter.
type ParamType string

const (
	TypeString ParamType = "string"
	TypeInt    ParamType = "int"
	TypeBool   ParamType = "bool"
)

// ParamSpec declares one parameter of a command schema. Defaults apply when
// the parameter is absent; Required and Default are mutually exclusive.
type ParamSpec struct {
	Name     string
	Type     ParamType
	Required bool
	Default  interface{}

	// IsURL additionally requires an absolute http(s) URL.
	IsURL bool
	// NonNegative additionally rejects negative integers.
	NonNegative bool
	// Enum restricts a string parameter to a fixed value set.
	Enum []string
}

// Params holds validated, typed, default-applied parameter values.
type Params map[string]interface{}

// String returns a string parameter. Only valid for declared string params.
func (p Params) String(name string) string {
	v, _ := p[name].(string)
	return v
}

// Int returns an integer parameter.
func (p Params) Int(name string) int {
	v, _ := p[name].(int)
	return v
}

// Bool returns a boolean parameter.
func (p Params) Bool(name string) bool {
	v, _ := p[name].(bool)
	return v
}

// Millis interprets an integer parameter as a millisecond duration.
func (p Params) Millis(name string) time.Duration {
	return time.Duration(p.Int(name)) * time.Millisecond
}

// validateParams checks raw transport values against the declared schema,
// coerces JSON numbers, applies defaults and rejects unknown names. Every
// failure is a KindValidation error naming the offending parameter.
func validateParams(specs []ParamSpec, raw map[string]interface{}) (Params, error) {
	byName := make(map[string]*ParamSpec, len(specs))
	for i := range specs {
		byName[specs[i].Name] = &specs[i]
	}

	for name := range raw {
		if _, ok := byName[name]; !ok {
			return nil, schemas.NewError(schemas.KindValidation, "unknown parameter %q", name)
		}
	}

	out := make(Params, len(specs))
	for i := range specs {
		spec := &specs[i]
		value, present := raw[spec.Name]

		if !present || value == nil {
			if spec.Required {
				return nil, schemas.NewError(schemas.KindValidation, "missing required parameter %q", spec.Name)
			}
			if spec.Default != nil {
				out[spec.Name] = spec.Default
			}
			continue
		}

		typed, err := coerceValue(spec, value)
		if err != nil {
			return nil, err
		}
		out[spec.Name] = typed
	}
	return out, nil
}

// coerceValue converts one raw value to the spec's type and applies the
// per-parameter constraints. JSON decoding yields float64 for every number,
// so integral floats are accepted for int parameters.
func coerceValue(spec *ParamSpec, value interface{}) (interface{}, error) {
	switch spec.Type {
	case TypeString:
		s, ok := value.(string)
		if !ok {
			return nil, schemas.NewError(schemas.KindValidation,
				"parameter %q must be a string, got %T", spec.Name, value)
		}
		if spec.IsURL {
			if err := validateURL(spec.Name, s); err != nil {
				return nil, err
			}
		}
		if len(spec.Enum) > 0 && !contains(spec.Enum, s) {
			return nil, schemas.NewError(schemas.KindValidation,
				"parameter %q must be one of %v, got %q", spec.Name, spec.Enum, s)
		}
		return s, nil

	case TypeInt:
		n, err := toInt(spec.Name, value)
		if err != nil {
			return nil, err
		}
		if spec.NonNegative && n < 0 {
			return nil, schemas.NewError(schemas.KindValidation,
				"parameter %q must be non-negative, got %d", spec.Name, n)
		}
		return n, nil

	case TypeBool:
		b, ok := value.(bool)
		if !ok {
			return nil, schemas.NewError(schemas.KindValidation,
				"parameter %q must be a boolean, got %T", spec.Name, value)
		}
		return b, nil
	}
	return nil, schemas.NewError(schemas.KindInternal, "parameter %q has unknown type %q", spec.Name, spec.Type)
}

func toInt(name string, value interface{}) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, schemas.NewError(schemas.KindValidation,
				"parameter %q must be an integer, got %v", name, v)
		}
		return int(v), nil
	default:
		return 0, schemas.NewError(schemas.KindValidation,
			"parameter %q must be an integer, got %T", name, value)
	}
}

func validateURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
		return schemas.NewError(schemas.KindValidation,
			"parameter %q must be an absolute http(s) URL, got %q", name, raw)
	}
	return nil
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
