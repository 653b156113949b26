package storage

import (
	"fmt"
	"strings"
)

// Dialect names a SQL flavor.
type Dialect string

const (
	DialectMySQL  Dialect = "mysql"
	DialectSQLite Dialect = "sqlite"
)

// ParseDialect maps a driver name from configuration onto a Dialect.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "mysql", "mariadb":
		return DialectMySQL, nil
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDialect, name)
	}
}

// InsertIgnore returns the INSERT modifier that skips rows violating a
// unique key.
func (d Dialect) InsertIgnore() string {
	if d == DialectSQLite {
		return "OR IGNORE"
	}
	return "IGNORE"
}
