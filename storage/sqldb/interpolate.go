package sqldb

import (
	"database/sql/driver"
	"encoding/hex"
	"fmt"
	"reflect"
	"strings"
	"time"
)

// Interpolate renders query with each '?' placeholder replaced by a literal
// for args. The result is for logs only and is never sent to the server.
// Placeholders inside quoted strings are left alone, as are placeholders
// beyond the supplied arguments.
func Interpolate(query string, args []any) string {
	if len(args) == 0 {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 16*len(args))

	next := 0
	var quote rune
	for _, r := range query {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"' || r == '`':
			quote = r
		case r == '?' && next < len(args):
			b.WriteString(literal(args[next]))
			next++
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func literal(v any) string {
	if valuer, ok := v.(driver.Valuer); ok {
		val, err := valuer.Value()
		if err != nil {
			return "<" + err.Error() + ">"
		}
		v = val
	}

	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return quoteString(x)
	case []byte:
		return "X'" + hex.EncodeToString(x) + "'"
	case time.Time:
		return "'" + x.Format("2006-01-02 15:04:05.999999") + "'"
	case *time.Time:
		if x == nil {
			return "NULL"
		}
		return "'" + x.Format("2006-01-02 15:04:05.999999") + "'"
	case bool:
		if x {
			return "1"
		}
		return "0"
	case fmt.Stringer:
		return quoteString(x.String())
	default:
		if rv := reflect.ValueOf(x); rv.Kind() == reflect.String {
			return quoteString(rv.String())
		}
		return fmt.Sprintf("%v", x)
	}
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
