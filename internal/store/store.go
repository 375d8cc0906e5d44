// Package store keeps privacy-conscious site analytics in SQLite: visits
// with hashed client IPs, and contact form outcomes without any of the
// submitted text.
package store

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Outcome is how a contact form submit ended.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeError   Outcome = "error"
	OutcomeInvalid Outcome = "invalid"
)

// DefaultRetention is how long rows are kept before Cleanup removes them.
const DefaultRetention = 365 * 24 * time.Hour

// Visit is one tracked page view.
type Visit struct {
	ID        int64     `json:"id"`
	HashedIP  string    `json:"hashed_ip"`
	UserAgent string    `json:"user_agent"`
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
}

// PathCount is a page and how often it was viewed.
type PathCount struct {
	Path   string `json:"path"`
	Visits int64  `json:"visits"`
}

// Stats summarises everything on the admin dashboard.
type Stats struct {
	TotalVisitors    int64             `json:"total_visitors"`
	UniqueVisitors   int64             `json:"unique_visitors"`
	VisitorsToday    int64             `json:"visitors_today"`
	VisitorsThisWeek int64             `json:"visitors_this_week"`
	TopPaths         []PathCount       `json:"top_paths"`
	RecentVisitors   []Visit           `json:"recent_visitors"`
	Submissions      map[Outcome]int64 `json:"submissions"`
}

// Store wraps the SQLite database.
type Store struct {
	db   *sql.DB
	salt string
	now  func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithSalt fixes the IP hashing salt. Without it a random salt is used, so
// hashes are only stable for the life of the process.
func WithSalt(salt string) Option {
	return func(s *Store) { s.salt = salt }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open opens (creating if needed) the database at path and migrates it.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// single writer keeps SQLite from returning SQLITE_BUSY under load
	db.SetMaxOpenConns(1)

	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if s.salt == "" {
		salt, err := randomHex(32)
		if err != nil {
			db.Close()
			return nil, err
		}
		s.salt = salt
	}

	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS visitors (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			hashed_ip TEXT NOT NULL,
			user_agent TEXT,
			path TEXT,
			ts INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS visitors_ts ON visitors (ts)`,
		`CREATE TABLE IF NOT EXISTS contact_outcomes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			outcome TEXT NOT NULL,
			reference TEXT,
			ts INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS contact_outcomes_ts ON contact_outcomes (ts)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: migrate: %w", err)
		}
	}
	return nil
}

// HashIP returns a truncated salted SHA-256 of ip.
func (s *Store) HashIP(ip string) string {
	sum := sha256.Sum256([]byte(ip + s.salt))
	return hex.EncodeToString(sum[:])[:16]
}

// RecordVisit stores one page view. The raw IP is never written.
func (s *Store) RecordVisit(ctx context.Context, ip, userAgent, path string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO visitors (hashed_ip, user_agent, path, ts) VALUES (?, ?, ?, ?)`,
		s.HashIP(ip), userAgent, path, s.now().Unix())
	if err != nil {
		return fmt.Errorf("store: record visit: %w", err)
	}
	return nil
}

// RecordOutcome stores the result of a contact submit.
func (s *Store) RecordOutcome(ctx context.Context, outcome Outcome, reference string) error {
	switch outcome {
	case OutcomeSuccess, OutcomeError, OutcomeInvalid:
	default:
		return fmt.Errorf("store: unknown outcome %q", outcome)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO contact_outcomes (outcome, reference, ts) VALUES (?, ?, ?)`,
		string(outcome), reference, s.now().Unix())
	if err != nil {
		return fmt.Errorf("store: record outcome: %w", err)
	}
	return nil
}

// Stats gathers dashboard numbers.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	now := s.now().UTC()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	weekAgo := now.Add(-7 * 24 * time.Hour)

	st := &Stats{Submissions: map[Outcome]int64{}}

	counts := []struct {
		dst   *int64
		query string
		args  []any
	}{
		{&st.TotalVisitors, `SELECT COUNT(*) FROM visitors`, nil},
		{&st.UniqueVisitors, `SELECT COUNT(DISTINCT hashed_ip) FROM visitors`, nil},
		{&st.VisitorsToday, `SELECT COUNT(*) FROM visitors WHERE ts >= ?`, []any{startOfDay.Unix()}},
		{&st.VisitorsThisWeek, `SELECT COUNT(*) FROM visitors WHERE ts >= ?`, []any{weekAgo.Unix()}},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query, c.args...).Scan(c.dst); err != nil {
			return nil, fmt.Errorf("store: stats: %w", err)
		}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT outcome, COUNT(*) FROM contact_outcomes GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("store: outcome stats: %w", err)
	}
	for rows.Next() {
		var o string
		var n int64
		if err := rows.Scan(&o, &n); err != nil {
			rows.Close()
			return nil, fmt.Errorf("store: outcome stats: %w", err)
		}
		st.Submissions[Outcome(o)] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: outcome stats: %w", err)
	}

	if st.TopPaths, err = s.topPaths(ctx, 10); err != nil {
		return nil, err
	}
	if st.RecentVisitors, err = s.RecentVisitors(ctx, 50); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *Store) topPaths(ctx context.Context, limit int) ([]PathCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT path, COUNT(*) AS n FROM visitors
		GROUP BY path ORDER BY n DESC, path ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: top paths: %w", err)
	}
	defer rows.Close()

	var out []PathCount
	for rows.Next() {
		var pc PathCount
		if err := rows.Scan(&pc.Path, &pc.Visits); err != nil {
			return nil, fmt.Errorf("store: top paths: %w", err)
		}
		out = append(out, pc)
	}
	return out, rows.Err()
}

// RecentVisitors returns up to limit visits, newest first.
func (s *Store) RecentVisitors(ctx context.Context, limit int) ([]Visit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, hashed_ip, COALESCE(user_agent, ''), COALESCE(path, ''), ts
		FROM visitors ORDER BY ts DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: recent visitors: %w", err)
	}
	defer rows.Close()

	var out []Visit
	for rows.Next() {
		var v Visit
		var ts int64
		if err := rows.Scan(&v.ID, &v.HashedIP, &v.UserAgent, &v.Path, &ts); err != nil {
			return nil, fmt.Errorf("store: recent visitors: %w", err)
		}
		v.Timestamp = time.Unix(ts, 0).UTC()
		out = append(out, v)
	}
	return out, rows.Err()
}

// Cleanup deletes visits and outcomes older than retention and reports
// how many rows went.
func (s *Store) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, errors.New("store: retention must be positive")
	}
	cutoff := s.now().Add(-retention).Unix()

	var total int64
	for _, table := range []string{"visitors", "contact_outcomes"} {
		res, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE ts < ?`, cutoff)
		if err != nil {
			return total, fmt.Errorf("store: cleanup %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("store: random salt: %w", err)
	}
	return hex.EncodeToString(b), nil
}
