// Package health tracks the availability of each resort's upstream sheet
// endpoint. Probe results are operational metadata kept in a small SQLite
// table; no survey data is ever persisted.
package health

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Probe is one row of the sheet_probes table: the last known availability of
// a resort's sheet endpoint.
type Probe struct {
	ResortID   string  `json:"resort"`
	URL        string  `json:"-"`
	LastCheck  *int64  `json:"last_check,omitempty"`
	LastStatus *int    `json:"last_status,omitempty"`
	LastError  *string `json:"last_error,omitempty"`
	UpdatedAt  int64   `json:"-"`
}

// OK reports whether the last probe succeeded.
func (p *Probe) OK() bool {
	return p.LastStatus != nil && *p.LastStatus >= 200 && *p.LastStatus < 400
}

// DB manages the sheet_probes SQLite table.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at path and ensures the
// sheet_probes table exists.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open health db: %w", err)
	}

	const ddl = `CREATE TABLE IF NOT EXISTS sheet_probes (
		resort_id    TEXT PRIMARY KEY,
		url          TEXT NOT NULL,
		last_check   INTEGER,
		last_status  INTEGER,
		last_error   TEXT,
		updated_at   INTEGER NOT NULL
	)`
	if _, err := db.Exec(ddl); err != nil {
		db.Close()
		return nil, fmt.Errorf("create sheet_probes table: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// Seed upserts a row per resort endpoint, keeping existing probe results when
// the URL is unchanged (the registry reloads more often than sheets move).
// Rows for resorts no longer in the registry are dropped so the checker stops
// probing them.
func (d *DB) Seed(endpoints map[string]string) error {
	const q = `INSERT INTO sheet_probes (resort_id, url, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(resort_id) DO UPDATE SET url = excluded.url, updated_at = excluded.updated_at`

	now := time.Now().Unix()
	for id, url := range endpoints {
		if _, err := d.db.Exec(q, id, url, now); err != nil {
			return fmt.Errorf("seed probe %s: %w", id, err)
		}
	}

	if len(endpoints) == 0 {
		if _, err := d.db.Exec(`DELETE FROM sheet_probes`); err != nil {
			return fmt.Errorf("prune probes: %w", err)
		}
		return nil
	}
	placeholders := make([]string, 0, len(endpoints))
	args := make([]any, 0, len(endpoints))
	for id := range endpoints {
		placeholders = append(placeholders, "?")
		args = append(args, id)
	}
	del := fmt.Sprintf(`DELETE FROM sheet_probes WHERE resort_id NOT IN (%s)`, strings.Join(placeholders, ","))
	if _, err := d.db.Exec(del, args...); err != nil {
		return fmt.Errorf("prune probes: %w", err)
	}
	return nil
}

// UpdateCheck persists the result of one availability probe.
func (d *DB) UpdateCheck(resortID string, status int, checkErr string) error {
	var errPtr *string
	if checkErr != "" {
		errPtr = &checkErr
	}
	_, err := d.db.Exec(
		`UPDATE sheet_probes SET last_check = ?, last_status = ?, last_error = ? WHERE resort_id = ?`,
		time.Now().Unix(), status, errPtr, resortID,
	)
	if err != nil {
		return fmt.Errorf("update probe for %s: %w", resortID, err)
	}
	return nil
}

// List returns all probes ordered by resort ID.
func (d *DB) List() ([]Probe, error) {
	rows, err := d.db.Query(`SELECT resort_id, url, last_check, last_status, last_error, updated_at
		FROM sheet_probes ORDER BY resort_id`)
	if err != nil {
		return nil, fmt.Errorf("list probes: %w", err)
	}
	defer rows.Close()

	var probes []Probe
	for rows.Next() {
		var p Probe
		if err := rows.Scan(&p.ResortID, &p.URL, &p.LastCheck, &p.LastStatus, &p.LastError, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan probe: %w", err)
		}
		probes = append(probes, p)
	}
	return probes, rows.Err()
}
