package helpers

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ParseID accepts a positive catalog product id.
func ParseID(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, NewCliError("INVALID_ID", "ID cannot be empty")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, NewCliError("INVALID_ID", "ID must be a positive integer", "provided: "+raw)
	}
	return id, nil
}

func ValidateRequired(value, fieldName string) error {
	if strings.TrimSpace(value) == "" {
		return NewCliError("REQUIRED_FIELD", fieldName+" is required")
	}
	return nil
}

// ValidateEnum treats an empty value as "use the default".
func ValidateEnum(value string, allowed []string, fieldName string) error {
	if value == "" || slices.Contains(allowed, value) {
		return nil
	}
	return NewCliError("INVALID_ENUM",
		fmt.Sprintf("%s must be one of: %s", fieldName, strings.Join(allowed, ", ")),
		"provided: "+value)
}
