package util

import (
	"reflect"
	"strings"
)

// TrimAndLower trims whitespace and converts to lowercase
func TrimAndLower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// TrimEmptyCheck trims whitespace and checks if non-empty
func TrimEmptyCheck(s string) (string, bool) {
	trimmed := strings.TrimSpace(s)
	return trimmed, trimmed != ""
}

// TrimWithDefault trims whitespace and returns default if empty
func TrimWithDefault(s, defaultValue string) string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return defaultValue
	}
	return trimmed
}

// TrimStructFields automatically trims all string fields in a struct using reflection
func TrimStructFields(v any) {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}

	if rv.Kind() != reflect.Struct {
		return
	}

	rt := rv.Type()
	for i := 0; i < rv.NumField(); i++ {
		field := rv.Field(i)
		fieldType := rt.Field(i)

		// Skip unexported fields
		if !fieldType.IsExported() {
			continue
		}

		if field.Kind() == reflect.String && field.CanSet() {
			field.SetString(strings.TrimSpace(field.String()))
		}
	}
}

// FirstNonEmpty returns the first argument that is not blank after trimming.
func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if t := strings.TrimSpace(v); t != "" {
			return t
		}
	}
	return ""
}
