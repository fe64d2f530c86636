package db

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"bus-router/internal/transit"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// ErrNoSchedule is returned when no import matches the requested network.
var ErrNoSchedule = errors.New("no schedule import found")

// DB is a schedule store backed by Postgres or SQLite.
type DB struct {
	*sql.DB
	driver string
}

func Open(dsn string) (*DB, error) {
	driver, source, err := splitDSN(dsn)
	if err != nil {
		return nil, err
	}
	conn, err := sql.Open(driver, source)
	if err != nil {
		return nil, err
	}
	if driver == driverSQLite {
		// One writer at a time.
		conn.SetMaxOpenConns(1)
		conn.SetMaxIdleConns(1)
		conn.SetConnMaxLifetime(time.Hour)
	} else {
		conn.SetMaxOpenConns(20)
		conn.SetMaxIdleConns(5)
		conn.SetConnMaxLifetime(30 * time.Minute)
	}
	return &DB{DB: conn, driver: driver}, nil
}

// Driver reports the database/sql driver in use.
func (d *DB) Driver() string { return d.driver }

func Ping(ctx context.Context, d *DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return d.PingContext(ctx)
}

// EnsureSchema creates the schedule tables if they are missing.
func EnsureSchema(ctx context.Context, d *DB) error {
	for _, stmt := range strings.Split(schemaSQL, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := d.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// ImportLines stores a validated schedule under version for network.
func ImportLines(ctx context.Context, d *DB, network, version string, importedAt time.Time, lines []transit.Line) error {
	if strings.TrimSpace(version) == "" {
		return fmt.Errorf("version is required")
	}
	if err := transit.ValidateLines(lines); err != nil {
		return err
	}
	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		rebind(d.driver, `INSERT INTO schedule_imports (version, network, imported_at) VALUES (?, ?, ?)`),
		version, network, importedAt.UTC()); err != nil {
		return fmt.Errorf("insert import %q: %w", version, err)
	}
	lineStmt, err := tx.PrepareContext(ctx,
		rebind(d.driver, `INSERT INTO lines (version, line_id, service_start_sec, fare) VALUES (?, ?, ?, ?)`))
	if err != nil {
		return err
	}
	defer lineStmt.Close()
	stopStmt, err := tx.PrepareContext(ctx,
		rebind(d.driver, `INSERT INTO line_stops (version, line_id, seq, stop_id, gap_minutes) VALUES (?, ?, ?, ?, ?)`))
	if err != nil {
		return err
	}
	defer stopStmt.Close()

	for _, l := range lines {
		if _, err := lineStmt.ExecContext(ctx, version, l.ID, int64(l.ServiceStart/time.Second), l.Fare); err != nil {
			return fmt.Errorf("insert line %d: %w", l.ID, err)
		}
		for i, s := range l.Stops {
			if l.Gaps[i]%time.Minute != 0 {
				return fmt.Errorf("line %d: gap %v is not a whole number of minutes", l.ID, l.Gaps[i])
			}
			if _, err := stopStmt.ExecContext(ctx, version, l.ID, i, s, int64(l.Gaps[i]/time.Minute)); err != nil {
				return fmt.Errorf("insert line %d stop %d: %w", l.ID, i, err)
			}
		}
	}
	return tx.Commit()
}

// ResolveLatestVersion returns the most recently imported schedule version
// for network.
func ResolveLatestVersion(ctx context.Context, d *DB, network string) (string, error) {
	network = strings.TrimSpace(network)
	if network == "" {
		return "", fmt.Errorf("network is required")
	}
	q := rebind(d.driver, `
SELECT version
FROM schedule_imports
WHERE network = ?
ORDER BY imported_at DESC
LIMIT 1`)
	var version sql.NullString
	if err := d.QueryRowContext(ctx, q, network).Scan(&version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%w for network %q", ErrNoSchedule, network)
		}
		return "", err
	}
	if !version.Valid || version.String == "" {
		return "", fmt.Errorf("empty version for network %q", network)
	}
	return version.String, nil
}

// FetchLines loads every line of a schedule version, ordered by ID.
func FetchLines(ctx context.Context, d *DB, version string) ([]transit.Line, error) {
	rows, err := d.QueryContext(ctx,
		rebind(d.driver, `SELECT line_id, service_start_sec, fare FROM lines WHERE version = ? ORDER BY line_id`),
		version)
	if err != nil {
		return nil, fmt.Errorf("query lines: %w", err)
	}
	var lines []transit.Line
	index := make(map[int]int)
	for rows.Next() {
		var (
			l     transit.Line
			start int64
		)
		if err := rows.Scan(&l.ID, &start, &l.Fare); err != nil {
			rows.Close()
			return nil, err
		}
		l.ServiceStart = time.Duration(start) * time.Second
		index[l.ID] = len(lines)
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: version %q has no lines", ErrNoSchedule, version)
	}

	stops, err := d.QueryContext(ctx,
		rebind(d.driver, `SELECT line_id, stop_id, gap_minutes FROM line_stops WHERE version = ? ORDER BY line_id, seq`),
		version)
	if err != nil {
		return nil, fmt.Errorf("query line stops: %w", err)
	}
	defer stops.Close()
	for stops.Next() {
		var lineID, stopID int
		var gap int64
		if err := stops.Scan(&lineID, &stopID, &gap); err != nil {
			return nil, err
		}
		i, ok := index[lineID]
		if !ok {
			return nil, fmt.Errorf("line_stops references unknown line %d", lineID)
		}
		lines[i].Stops = append(lines[i].Stops, stopID)
		lines[i].Gaps = append(lines[i].Gaps, time.Duration(gap)*time.Minute)
	}
	if err := stops.Err(); err != nil {
		return nil, err
	}
	if err := transit.ValidateLines(lines); err != nil {
		return nil, fmt.Errorf("version %q: %w", version, err)
	}
	return lines, nil
}
