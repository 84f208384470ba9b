// Package schema implements structural validation for request payloads and
// draft payloads: scalar kind checks, bounds, required fields, and nested
// objects. Errors accumulate across sibling fields so a caller sees every
// problem at once; validation is conservative, not a full format parser.
package schema

import (
	"fmt"
	"regexp"
	"sort"
)

// Kind is the expected shape of a value.
type Kind string

const (
	KindString  Kind = "string"
	KindNumber  Kind = "number"
	KindBoolean Kind = "boolean"
	KindEmail   Kind = "email"
	KindObject  Kind = "object"
)

// Schema describes one value. For KindObject, Properties names the nested
// schemas. Min/Max bound string length or numeric range depending on kind.
type Schema struct {
	Kind       Kind
	Required   bool
	Min        *float64
	Max        *float64
	Properties map[string]Schema
}

// FieldError locates one validation failure.
type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Result is the outcome of a Validate call.
type Result struct {
	Valid  bool         `json:"valid"`
	Errors []FieldError `json:"errors,omitempty"`
}

// Deliberately conservative: one non-space run, an @, a dotted domain.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Bound returns a pointer to v, for Min/Max fields in schema literals.
func Bound(v float64) *float64 { return &v }

// Validate checks value against s. Errors for different fields accumulate;
// within a single field the first failing rule wins.
func Validate(value any, s Schema) Result {
	errs := validate(value, s, "")
	return Result{Valid: len(errs) == 0, Errors: errs}
}

func validate(value any, s Schema, path string) []FieldError {
	if value == nil {
		if s.Required {
			return []FieldError{{Path: path, Message: "value is required"}}
		}
		return nil
	}

	switch s.Kind {
	case KindString:
		return validateString(value, s, path)
	case KindEmail:
		return validateEmail(value, path)
	case KindNumber:
		return validateNumber(value, s, path)
	case KindBoolean:
		if _, ok := value.(bool); !ok {
			return []FieldError{{Path: path, Message: fmt.Sprintf("expected boolean, got %T", value)}}
		}
		return nil
	case KindObject:
		return validateObject(value, s, path)
	default:
		return []FieldError{{Path: path, Message: fmt.Sprintf("unknown schema kind %q", s.Kind)}}
	}
}

func validateString(value any, s Schema, path string) []FieldError {
	str, ok := value.(string)
	if !ok {
		return []FieldError{{Path: path, Message: fmt.Sprintf("expected string, got %T", value)}}
	}
	if s.Required && str == "" {
		return []FieldError{{Path: path, Message: "value is required"}}
	}
	if s.Min != nil && float64(len(str)) < *s.Min {
		return []FieldError{{Path: path, Message: fmt.Sprintf("length must be at least %d", int(*s.Min))}}
	}
	if s.Max != nil && float64(len(str)) > *s.Max {
		return []FieldError{{Path: path, Message: fmt.Sprintf("length must be at most %d", int(*s.Max))}}
	}
	return nil
}

func validateEmail(value any, path string) []FieldError {
	str, ok := value.(string)
	if !ok {
		return []FieldError{{Path: path, Message: fmt.Sprintf("expected email string, got %T", value)}}
	}
	if !emailPattern.MatchString(str) {
		return []FieldError{{Path: path, Message: "not a valid email address"}}
	}
	return nil
}

func validateNumber(value any, s Schema, path string) []FieldError {
	num, ok := asFloat(value)
	if !ok {
		return []FieldError{{Path: path, Message: fmt.Sprintf("expected number, got %T", value)}}
	}
	if s.Min != nil && num < *s.Min {
		return []FieldError{{Path: path, Message: fmt.Sprintf("must be at least %v", *s.Min)}}
	}
	if s.Max != nil && num > *s.Max {
		return []FieldError{{Path: path, Message: fmt.Sprintf("must be at most %v", *s.Max)}}
	}
	return nil
}

func validateObject(value any, s Schema, path string) []FieldError {
	obj, ok := value.(map[string]any)
	if !ok {
		return []FieldError{{Path: path, Message: fmt.Sprintf("expected object, got %T", value)}}
	}

	var errs []FieldError
	for _, name := range sortedKeys(s.Properties) {
		prop := s.Properties[name]
		childPath := name
		if path != "" {
			childPath = path + "." + name
		}
		child, present := obj[name]
		if !present {
			if prop.Required {
				errs = append(errs, FieldError{Path: childPath, Message: "value is required"})
			}
			continue
		}
		errs = append(errs, validate(child, prop, childPath)...)
	}
	return errs
}

// sortedKeys returns property names in a stable order so error lists are
// deterministic across runs.
func sortedKeys(props map[string]Schema) []string {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// asFloat accepts the numeric types JSON decoding and Go callers produce.
func asFloat(value any) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
