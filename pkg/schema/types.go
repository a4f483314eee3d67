package schema

import (
	"fmt"
	"reflect"
	"strings"
)

// Type validates a single settings value.
type Type interface {
	// Name is the human-readable type name shown in descriptors.
	Name() string
	Validate(value any) error
}

type stringType struct{}

func (stringType) Name() string { return "string" }

func (stringType) Validate(value any) error {
	if _, ok := value.(string); !ok {
		return fmt.Errorf("expected string, got %T", value)
	}
	return nil
}

type intType struct{}

func (intType) Name() string { return "int" }

func (intType) Validate(value any) error {
	switch v := value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return nil
	case float64:
		// JSON numbers decode as float64.
		if v == float64(int64(v)) {
			return nil
		}
		return fmt.Errorf("expected int, got fractional number %v", v)
	default:
		return fmt.Errorf("expected int, got %T", value)
	}
}

type floatType struct{}

func (floatType) Name() string { return "float" }

func (floatType) Validate(value any) error {
	if _, ok := toFloat(value); !ok {
		return fmt.Errorf("expected number, got %T", value)
	}
	return nil
}

type boolType struct{}

func (boolType) Name() string { return "bool" }

func (boolType) Validate(value any) error {
	if _, ok := value.(bool); !ok {
		return fmt.Errorf("expected bool, got %T", value)
	}
	return nil
}

type recordType struct{}

func (recordType) Name() string { return "record" }

func (recordType) Validate(value any) error {
	if value == nil {
		return fmt.Errorf("expected record, got nil")
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return fmt.Errorf("expected record, got %T", value)
	}
	return nil
}

type anyType struct{}

func (anyType) Name() string { return "any" }
func (anyType) Validate(value any) error { return nil }

type sliceType struct {
	elem Type
}

func (t sliceType) Name() string { return "[" + t.elem.Name() + "]" }

func (t sliceType) Validate(value any) error {
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return fmt.Errorf("expected list, got %T", value)
	}
	for i := 0; i < rv.Len(); i++ {
		if err := t.elem.Validate(rv.Index(i).Interface()); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	return nil
}

type customType struct {
	name     string
	validate func(any) error
}

func (t customType) Name() string { return t.name }
func (t customType) Validate(value any) error { return t.validate(value) }

// optionalType marks a key that may be absent. A present value still has to
// satisfy the wrapped type.
type optionalType struct {
	Type
}

func (t optionalType) Name() string { return t.Type.Name() + "?" }

type rangeType struct {
	base     Type
	min, max float64
}

func (t rangeType) Name() string {
	return fmt.Sprintf("%s(%g..%g)", t.base.Name(), t.min, t.max)
}

func (t rangeType) Validate(value any) error {
	if err := t.base.Validate(value); err != nil {
		return err
	}
	f, ok := toFloat(value)
	if !ok {
		return fmt.Errorf("expected number, got %T", value)
	}
	if f < t.min || f > t.max {
		return fmt.Errorf("%v is outside [%g, %g]", value, t.min, t.max)
	}
	return nil
}

type oneOfType struct {
	base    Type
	allowed []any
}

func (t oneOfType) Name() string {
	vals := make([]string, len(t.allowed))
	for i, a := range t.allowed {
		vals[i] = fmt.Sprint(a)
	}
	return t.base.Name() + "{" + strings.Join(vals, "|") + "}"
}

func (t oneOfType) Validate(value any) error {
	if err := t.base.Validate(value); err != nil {
		return err
	}
	for _, a := range t.allowed {
		if a == value {
			return nil
		}
	}
	return fmt.Errorf("%v is not one of %v", value, t.allowed)
}

func String() Type { return stringType{} }
func Int() Type { return intType{} }
func Float() Type { return floatType{} }
func Bool() Type { return boolType{} }

// Record accepts any string-keyed map.
func Record() Type { return recordType{} }

// Any accepts every value, including nil.
func Any() Type { return anyType{} }

// Slice accepts lists whose elements all satisfy elem.
func Slice(elem Type) Type { return sliceType{elem: elem} }

// Custom wraps a validation function under a display name.
func Custom(name string, validate func(any) error) Type {
	return customType{name: name, validate: validate}
}

// Optional lets the key be missing from the settings map.
func Optional(t Type) Type { return optionalType{Type: t} }

// Range bounds a numeric type, inclusive on both ends.
func Range(base Type, min, max float64) Type {
	return rangeType{base: base, min: min, max: max}
}

// OneOf restricts base to an enumerated set of values.
func OneOf(base Type, allowed ...any) Type {
	return oneOfType{base: base, allowed: allowed}
}

// IsOptional reports whether t was built with Optional.
func IsOptional(t Type) bool {
	_, ok := t.(optionalType)
	return ok
}

// ParseType converts a type name such as "int", "[string]" or "record?"
// into a Type.
func ParseType(name string) (Type, error) {
	if strings.HasSuffix(name, "?") {
		inner, err := ParseType(strings.TrimSuffix(name, "?"))
		if err != nil {
			return nil, err
		}
		return Optional(inner), nil
	}
	if len(name) > 2 && name[0] == '[' && name[len(name)-1] == ']' {
		elem, err := ParseType(name[1 : len(name)-1])
		if err != nil {
			return nil, err
		}
		return Slice(elem), nil
	}
	switch name {
	case "string":
		return String(), nil
	case "int":
		return Int(), nil
	case "float", "number":
		return Float(), nil
	case "bool", "boolean":
		return Bool(), nil
	case "record":
		return Record(), nil
	case "any":
		return Any(), nil
	default:
		return nil, fmt.Errorf("unsupported type: %s", name)
	}
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	default:
		return 0, false
	}
}
