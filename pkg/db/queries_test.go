package db

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestDB(t *testing.T) *Queries {
	t.Helper()
	database, err := New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := ApplyMigrations(database); err != nil {
		t.Fatalf("Failed to apply migrations: %v", err)
	}
	// Migrations must be idempotent.
	if err := ApplyMigrations(database); err != nil {
		t.Fatalf("Second migration run failed: %v", err)
	}
	return database.Queries()
}

func TestOperatorQueries(t *testing.T) {
	q := newTestDB(t)
	ctx := context.Background()

	t.Run("missing operator", func(t *testing.T) {
		_, err := q.GetOperatorByUsername(ctx, "nobody")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("username required", func(t *testing.T) {
		if err := q.CreateOperator(ctx, Operator{ID: "x", PasswordHash: "h"}); !errors.Is(err, ErrUsernameRequired) {
			t.Errorf("expected ErrUsernameRequired, got %v", err)
		}
	})

	if err := q.CreateOperator(ctx, Operator{ID: "op-1", Username: "Risk.Admin", PasswordHash: "hash-1"}); err != nil {
		t.Fatalf("Failed to create operator: %v", err)
	}

	t.Run("lookup is case-insensitive", func(t *testing.T) {
		op, err := q.GetOperatorByUsername(ctx, "RISK.admin")
		if err != nil {
			t.Fatalf("Failed to get operator: %v", err)
		}
		if op.ID != "op-1" || op.PasswordHash != "hash-1" || op.LastLoginAt != nil {
			t.Errorf("unexpected operator %+v", op)
		}
	})

	t.Run("duplicate username rejected", func(t *testing.T) {
		if err := q.CreateOperator(ctx, Operator{ID: "op-2", Username: "risk.admin", PasswordHash: "x"}); err == nil {
			t.Errorf("expected unique constraint error")
		}
	})

	t.Run("upsert replaces password", func(t *testing.T) {
		if err := q.UpsertOperatorPassword(ctx, Operator{ID: "ignored", Username: "risk.admin", PasswordHash: "hash-2"}); err != nil {
			t.Fatalf("upsert: %v", err)
		}
		op, err := q.GetOperatorByUsername(ctx, "risk.admin")
		if err != nil {
			t.Fatal(err)
		}
		if op.ID != "op-1" || op.PasswordHash != "hash-2" {
			t.Errorf("unexpected operator after upsert %+v", op)
		}
	})

	t.Run("touch login", func(t *testing.T) {
		at := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
		if err := q.TouchOperatorLogin(ctx, "op-1", at); err != nil {
			t.Fatal(err)
		}
		op, _ := q.GetOperatorByUsername(ctx, "risk.admin")
		if op.LastLoginAt == nil || !op.LastLoginAt.Equal(at) {
			t.Errorf("last login = %v", op.LastLoginAt)
		}
		if err := q.TouchOperatorLogin(ctx, "missing", at); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestAuditLog(t *testing.T) {
	q := newTestDB(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	entries := []AuditEntry{
		{ID: "a1", Operator: "ana", Action: "rule.toggle", Target: "risk-rule:1", Outcome: OutcomeOK, CreatedAt: base},
		{ID: "a2", Operator: "ana", Action: "account.disable-trading", Target: "account:7", Outcome: OutcomeError, Detail: "backend 500", CreatedAt: base.Add(time.Minute)},
		{ID: "a3", Operator: "luis", Action: "rule.toggle", Target: "risk-rule:2", Outcome: OutcomeOK, RequestID: "req-1", CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, e := range entries {
		if err := q.InsertAudit(ctx, e); err != nil {
			t.Fatalf("insert %s: %v", e.ID, err)
		}
	}

	tests := []struct {
		name   string
		filter AuditFilter
		want   []string
	}{
		{"all newest first", AuditFilter{}, []string{"a3", "a2", "a1"}},
		{"by operator", AuditFilter{Operator: "ana"}, []string{"a2", "a1"}},
		{"by action", AuditFilter{Action: "rule.toggle"}, []string{"a3", "a1"}},
		{"limit", AuditFilter{Limit: 1}, []string{"a3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := q.ListAudit(ctx, tt.filter)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d entries, got %d", len(tt.want), len(got))
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("entry %d = %s, want %s", i, got[i].ID, id)
				}
			}
		})
	}

	got, _ := q.ListAudit(ctx, AuditFilter{Operator: "ana", Limit: 1})
	if got[0].Detail != "backend 500" || got[0].Outcome != OutcomeError || !got[0].CreatedAt.Equal(base.Add(time.Minute)) {
		t.Errorf("unexpected entry %+v", got[0])
	}
}

func TestVerifySchema(t *testing.T) {
	database, err := New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer database.Close()

	if _, err := database.DB.Exec(`CREATE TABLE operators (id TEXT, username TEXT, password_hash TEXT);
		CREATE TABLE audit_log (id TEXT, operator TEXT, action TEXT, target TEXT, outcome TEXT, detail TEXT, created_at DATETIME);`); err != nil {
		t.Fatalf("create legacy tables: %v", err)
	}
	missing, err := VerifySchema(database)
	if err != nil {
		t.Fatal(err)
	}
	if len(missing) != 2 || missing[0] != "operators.last_login_at" || missing[1] != "audit_log.request_id" {
		t.Fatalf("unexpected missing columns %v", missing)
	}

	if err := ApplyMigrations(database); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if missing, _ := VerifySchema(database); len(missing) != 0 {
		t.Fatalf("columns still missing after migration: %v", missing)
	}
}
