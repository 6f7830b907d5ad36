package persistence

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// StoreOwnedTables lists every table that belongs inside a store schema.
// The ecosystem audit flags any of these found in the master (public) schema.
var StoreOwnedTables = []string{
	"products",
	"categories",
	"customers",
	"orders",
	"order_items",
	"conversations",
	"messages",
	"auto_responses",
	"settings",
}

var tableNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// NormalizeTableName trims the input and enforces a lowercase snake_case
// identifier that is safe to embed in SQL.
func NormalizeTableName(input string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", errors.New("table name is required")
	}

	if !tableNamePattern.MatchString(trimmed) {
		return "", fmt.Errorf("invalid table name %q: must match ^[a-z][a-z0-9_]*$", trimmed)
	}

	return trimmed, nil
}
