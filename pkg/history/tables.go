package history

import (
	"fmt"
	"regexp"
)

// DefaultVersionSuffix is appended to a data table name to form the name of
// the table holding its version history.
const DefaultVersionSuffix = "_Versions"

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidTableName reports whether name can be used as a table identifier.
// Identifiers cannot be bound as query parameters, so anything interpolated
// into a statement must pass this check first.
func ValidTableName(name string) bool {
	return tableNamePattern.MatchString(name)
}

// QuoteTable validates name and returns it as a double-quoted identifier.
func QuoteTable(name string) (string, error) {
	if !ValidTableName(name) {
		return "", fmt.Errorf("invalid table name %q", name)
	}
	return `"` + name + `"`, nil
}
