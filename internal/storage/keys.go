package storage

import (
	"fmt"
	"regexp"
)

var keyComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// BuildResultKey returns the object key an archived result is stored under.
// Components are validated so request-supplied values can never escape the
// results/ prefix.
func BuildResultKey(resultID, extension string) (string, error) {
	if err := validateKeyComponent(resultID, "result id"); err != nil {
		return "", err
	}
	if err := validateKeyComponent(extension, "extension"); err != nil {
		return "", err
	}
	return fmt.Sprintf("results/%s.%s", resultID, extension), nil
}

func validateKeyComponent(value, field string) error {
	if !keyComponentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}
