package db

import (
	"database/sql"
	"fmt"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"github.com/zsprackett/usage-bar/internal/usage"
)

type DB struct {
	sql *sql.DB
}

func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	conn.SetMaxOpenConns(1)
	if _, err := conn.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, err
	}
	if _, err := conn.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return nil, err
	}
	return &DB{sql: conn}, nil
}

func (d *DB) Close() error {
	return d.sql.Close()
}

func (d *DB) Migrate() error {
	_, err := d.sql.Exec(`
		CREATE TABLE IF NOT EXISTS metadata (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create metadata: %w", err)
	}

	_, err = d.sql.Exec(`
		CREATE TABLE IF NOT EXISTS usage_snapshots (
			id              INTEGER PRIMARY KEY,
			poll_id         TEXT NOT NULL,
			ts_ms           INTEGER NOT NULL,
			duration_ms     INTEGER NOT NULL DEFAULT 0,
			session_pct     REAL,
			session_display TEXT NOT NULL DEFAULT '',
			weekly_pct      REAL,
			weekly_display  TEXT NOT NULL DEFAULT '',
			session_resets  TEXT NOT NULL DEFAULT ''
		)
	`)
	if err != nil {
		return fmt.Errorf("create usage_snapshots: %w", err)
	}
	if _, err := d.sql.Exec(`CREATE INDEX IF NOT EXISTS idx_usage_snapshots_ts ON usage_snapshots(ts_ms DESC)`); err != nil {
		return fmt.Errorf("index usage_snapshots: %w", err)
	}

	_, err = d.sql.Exec(`
		CREATE TABLE IF NOT EXISTS poll_errors (
			id          INTEGER PRIMARY KEY,
			poll_id     TEXT NOT NULL,
			ts_ms       INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			kind        TEXT NOT NULL,
			message     TEXT NOT NULL DEFAULT '',
			exit_code   INTEGER NOT NULL DEFAULT 0
		)
	`)
	if err != nil {
		return fmt.Errorf("create poll_errors: %w", err)
	}

	if _, err := d.sql.Exec(`CREATE INDEX IF NOT EXISTS idx_poll_errors_ts ON poll_errors(ts_ms DESC)`); err != nil {
		return fmt.Errorf("index poll_errors: %w", err)
	}
	return nil
}

func (d *DB) InsertSnapshot(s *Snapshot) error {
	res, err := d.sql.Exec(`
		INSERT INTO usage_snapshots (
			poll_id, ts_ms, duration_ms,
			session_pct, session_display, weekly_pct, weekly_display,
			session_resets
		) VALUES (?,?,?,?,?,?,?,?)`,
		s.PollID, s.At.UnixMilli(), s.Duration.Milliseconds(),
		nullPercent(s.Record.Session), s.Record.Session.Display,
		nullPercent(s.Record.Weekly), s.Record.Weekly.Display,
		s.Record.SessionResets,
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	s.ID, _ = res.LastInsertId()
	return nil
}

const snapshotColumns = `id, poll_id, ts_ms, duration_ms,
	session_pct, session_display, weekly_pct, weekly_display, session_resets`

// LatestSnapshot returns the newest snapshot, or nil when there is none.
func (d *DB) LatestSnapshot() (*Snapshot, error) {
	row := d.sql.QueryRow(`SELECT ` + snapshotColumns + ` FROM usage_snapshots ORDER BY ts_ms DESC, id DESC LIMIT 1`)
	s, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return s, err
}

// Snapshots returns up to limit snapshots taken at or after since, oldest first.
func (d *DB) Snapshots(since time.Time, limit int) ([]Snapshot, error) {
	rows, err := d.sql.Query(`
		SELECT * FROM (
			SELECT `+snapshotColumns+`
			FROM usage_snapshots
			WHERE ts_ms >= ?
			ORDER BY ts_ms DESC, id DESC
			LIMIT ?
		) ORDER BY ts_ms ASC, id ASC`,
		since.UnixMilli(), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (d *DB) InsertPollError(e *PollError) error {
	res, err := d.sql.Exec(
		`INSERT INTO poll_errors (poll_id, ts_ms, duration_ms, kind, message, exit_code) VALUES (?,?,?,?,?,?)`,
		e.PollID, e.At.UnixMilli(), e.Duration.Milliseconds(), string(e.Kind), e.Message, e.ExitCode,
	)
	if err != nil {
		return fmt.Errorf("insert poll error: %w", err)
	}
	e.ID, _ = res.LastInsertId()
	return nil
}

// RecentErrors returns up to limit failures, newest first.
func (d *DB) RecentErrors(limit int) ([]PollError, error) {
	rows, err := d.sql.Query(
		`SELECT id, poll_id, ts_ms, duration_ms, kind, message, exit_code
		 FROM poll_errors
		 ORDER BY ts_ms DESC, id DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PollError
	for rows.Next() {
		var e PollError
		var ts, dur int64
		var kind string
		if err := rows.Scan(&e.ID, &e.PollID, &ts, &dur, &kind, &e.Message, &e.ExitCode); err != nil {
			return nil, err
		}
		e.At = time.UnixMilli(ts)
		e.Duration = time.Duration(dur) * time.Millisecond
		e.Kind = usage.ErrorKind(kind)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Summarize counts successes and failures recorded at or after since.
func (d *DB) Summarize(since time.Time) (Summary, error) {
	sum := Summary{Since: since}
	ms := since.UnixMilli()
	if err := d.sql.QueryRow(`SELECT COUNT(*) FROM usage_snapshots WHERE ts_ms >= ?`, ms).Scan(&sum.OK); err != nil {
		return sum, err
	}
	if err := d.sql.QueryRow(`SELECT COUNT(*) FROM poll_errors WHERE ts_ms >= ?`, ms).Scan(&sum.Failed); err != nil {
		return sum, err
	}
	return sum, nil
}

// Prune deletes snapshots and errors older than before and returns how many rows went.
func (d *DB) Prune(before time.Time) (int64, error) {
	tx, err := d.sql.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var total int64
	for _, table := range []string{"usage_snapshots", "poll_errors"} {
		res, err := tx.Exec("DELETE FROM "+table+" WHERE ts_ms < ?", before.UnixMilli())
		if err != nil {
			return 0, fmt.Errorf("prune %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, tx.Commit()
}

func (d *DB) SetMeta(key, value string) error {
	_, err := d.sql.Exec("INSERT OR REPLACE INTO metadata (key, value) VALUES (?,?)", key, value)
	return err
}

func (d *DB) GetMeta(key string) (string, error) {
	var value string
	err := d.sql.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// Touch stamps the history as changed; readers compare LastModified to skip
// reloading unchanged data.
func (d *DB) Touch() error {
	return d.SetMeta("last_modified", strconv.FormatInt(time.Now().UnixMilli(), 10))
}

func (d *DB) LastModified() int64 {
	v, _ := d.GetMeta("last_modified")
	ts, _ := strconv.ParseInt(v, 10, 64)
	return ts
}

// rowScanner is implemented by both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (*Snapshot, error) {
	var s Snapshot
	var ts, dur int64
	var session, weekly sql.NullFloat64
	var sessionDisplay, weeklyDisplay string
	err := row.Scan(
		&s.ID, &s.PollID, &ts, &dur,
		&session, &sessionDisplay, &weekly, &weeklyDisplay,
		&s.Record.SessionResets,
	)
	if err != nil {
		return nil, err
	}
	s.At = time.UnixMilli(ts)
	s.Duration = time.Duration(dur) * time.Millisecond
	s.Record.Session = percentFrom(session, sessionDisplay)
	s.Record.Weekly = percentFrom(weekly, weeklyDisplay)
	return &s, nil
}

func nullPercent(p usage.Percent) sql.NullFloat64 {
	return sql.NullFloat64{Float64: p.Value, Valid: p.Known}
}

func percentFrom(v sql.NullFloat64, display string) usage.Percent {
	if !v.Valid {
		return usage.UnknownPercent(display)
	}
	return usage.Percent{Value: v.Float64, Known: true, Display: display}
}
