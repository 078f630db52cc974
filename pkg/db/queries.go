// Package db persists console operators and the mutation audit log in SQLite.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound         = errors.New("record not found")
	ErrUsernameRequired = errors.New("username is required")
)

// Operator is a console login.
type Operator struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
	LastLoginAt  *time.Time
}

// Audit outcomes.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// AuditEntry records one operator mutation against the backend.
type AuditEntry struct {
	ID        string    `json:"id"`
	Operator  string    `json:"operator"`
	Action    string    `json:"action"`
	Target    string    `json:"target"`
	Outcome   string    `json:"outcome"`
	Detail    string    `json:"detail,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// AuditFilter narrows ListAudit; zero fields match everything.
type AuditFilter struct {
	Operator string
	Action   string
	Limit    int
}

// Queries provides operator and audit queries.
type Queries struct {
	db *sql.DB
}

// NewQueries creates a new Queries instance.
func NewQueries(db *sql.DB) *Queries {
	return &Queries{db: db}
}

// ----------------------------------------
// Operator Queries
// ----------------------------------------

// CreateOperator inserts an operator; usernames are case-insensitive.
func (q *Queries) CreateOperator(ctx context.Context, o Operator) error {
	if strings.TrimSpace(o.Username) == "" {
		return ErrUsernameRequired
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO operators (id, username, password_hash, created_at)
		VALUES (?, ?, ?, ?)
	`, o.ID, strings.ToLower(o.Username), o.PasswordHash, o.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert operator: %w", err)
	}
	return nil
}

// UpsertOperatorPassword creates the operator or replaces its password hash.
func (q *Queries) UpsertOperatorPassword(ctx context.Context, o Operator) error {
	if strings.TrimSpace(o.Username) == "" {
		return ErrUsernameRequired
	}
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO operators (id, username, password_hash, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(username) DO UPDATE SET password_hash = excluded.password_hash
	`, o.ID, strings.ToLower(o.Username), o.PasswordHash, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert operator: %w", err)
	}
	return nil
}

// GetOperatorByUsername returns ErrNotFound when no such operator exists.
func (q *Queries) GetOperatorByUsername(ctx context.Context, username string) (*Operator, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, created_at, last_login_at
		FROM operators WHERE username = ?
	`, strings.ToLower(username))

	var (
		o         Operator
		lastLogin sql.NullTime
	)
	if err := row.Scan(&o.ID, &o.Username, &o.PasswordHash, &o.CreatedAt, &lastLogin); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan operator: %w", err)
	}
	if lastLogin.Valid {
		o.LastLoginAt = &lastLogin.Time
	}
	return &o, nil
}

// TouchOperatorLogin stamps a successful login.
func (q *Queries) TouchOperatorLogin(ctx context.Context, id string, at time.Time) error {
	res, err := q.db.ExecContext(ctx, `UPDATE operators SET last_login_at = ? WHERE id = ?`, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("update operator login: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ----------------------------------------
// Audit Queries
// ----------------------------------------

// InsertAudit appends one audit entry.
func (q *Queries) InsertAudit(ctx context.Context, e AuditEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, operator, action, target, outcome, detail, request_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.Operator, e.Action, e.Target, e.Outcome, e.Detail, e.RequestID, e.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// ListAudit returns the newest entries first.
func (q *Queries) ListAudit(ctx context.Context, f AuditFilter) ([]AuditEntry, error) {
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var (
		where []string
		args  []any
	)
	if f.Operator != "" {
		where = append(where, "operator = ?")
		args = append(args, f.Operator)
	}
	if f.Action != "" {
		where = append(where, "action = ?")
		args = append(args, f.Action)
	}
	stmt := `SELECT id, operator, action, target, outcome, detail, request_id, created_at FROM audit_log`
	if len(where) > 0 {
		stmt += " WHERE " + strings.Join(where, " AND ")
	}
	stmt += " ORDER BY created_at DESC, rowid DESC LIMIT ?"
	args = append(args, limit)

	rows, err := q.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.Operator, &e.Action, &e.Target, &e.Outcome, &e.Detail, &e.RequestID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
