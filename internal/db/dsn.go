package db

import (
	"fmt"
	"strings"
)

const (
	driverPgx    = "pgx"
	driverSQLite = "sqlite"
)

// splitDSN returns the database/sql driver name and the data source to pass
// to it. postgres:// and postgresql:// go to pgx; a sqlite: prefix is
// stripped; anything else is treated as a SQLite path or file: URI.
func splitDSN(dsn string) (driver, source string, err error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return "", "", fmt.Errorf("empty DSN")
	}
	lower := strings.ToLower(dsn)
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return driverPgx, dsn, nil
	case strings.HasPrefix(lower, "sqlite://"):
		source = dsn[len("sqlite://"):]
	case strings.HasPrefix(lower, "sqlite:"):
		source = dsn[len("sqlite:"):]
	default:
		source = dsn
	}
	if source == "" {
		return "", "", fmt.Errorf("empty sqlite path in DSN %q", dsn)
	}
	return driverSQLite, source, nil
}

// rebind rewrites ? placeholders to $n for drivers that need it.
func rebind(driver, q string) string {
	if driver != driverPgx {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
