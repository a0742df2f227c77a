// internal/services/schema.go
package services

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	json "github.com/json-iterator/go"
)

// validate is shared; validator caches struct metadata and is safe for concurrent use.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their wire names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// validateContract checks v against its validate tags and reports the first
// violation as a *SchemaError.
func validateContract(endpoint string, v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		field := fe.Namespace()
		// Drop the root type name.
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		return &SchemaError{
			Endpoint: endpoint,
			Field:    field,
			Err:      fmt.Errorf("failed %q constraint (value %v)", fe.Tag(), fe.Value()),
		}
	}
	return &SchemaError{Endpoint: endpoint, Err: err}
}

func decodeBody(endpoint string, body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return &SchemaError{Endpoint: endpoint, Err: fmt.Errorf("decoding body: %w", err)}
	}
	return nil
}

// -- Lenient scalar types --
// Storefront APIs are inconsistent about quoting numbers and ids.

type flexFloat struct {
	Value float64
	Set   bool
}

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	s := string(bytes.Trim(data, `"`))
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("not a number: %s", data)
	}
	f.Value, f.Set = v, true
	return nil
}

type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = flexString(str)
		return nil
	}
	*s = flexString(data)
	return nil
}

type flexBool struct {
	Value bool
	Set   bool
}

func (b *flexBool) UnmarshalJSON(data []byte) error {
	switch strings.ToLower(strings.Trim(string(bytes.TrimSpace(data)), `"`)) {
	case "true", "1", "yes":
		b.Value, b.Set = true, true
	case "false", "0", "no":
		b.Value, b.Set = false, true
	case "null", "":
	default:
		return fmt.Errorf("not a boolean: %s", data)
	}
	return nil
}
