// ABOUTME: Tests for the SQLite connection manager
// ABOUTME: Covers URL parsing, directory creation, query round-trips and close semantics

package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager(t.TempDir(), nil)
	t.Cleanup(func() { m.Close("") })
	return m
}

func TestParseURL(t *testing.T) {
	tests := []struct {
		url    string
		driver string
		path   string
		err    bool
	}{
		{"sqlite:test.db", "sqlite", "test.db", false},
		{"sqlite3:/var/lib/app.db", "sqlite3", "/var/lib/app.db", false},
		{"sqlite://nested/app.db", "sqlite", "nested/app.db", false},
		{"sqlite::memory:", "sqlite", ":memory:", false},
		{"postgres:db", "", "", true},
		{"sqlite:", "", "", true},
		{"test.db", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			driver, path, err := ParseURL(tt.url)
			if tt.err {
				if !errors.Is(err, ErrUnsupportedURL) {
					t.Fatalf("expected ErrUnsupportedURL, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if driver != tt.driver || path != tt.path {
				t.Errorf("got (%q, %q), want (%q, %q)", driver, path, tt.driver, tt.path)
			}
		})
	}
}

func TestLoad_CreatesFileInDataDir(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, nil)
	defer m.Close("")

	if err := m.Load(context.Background(), "sqlite:nested/app.db"); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "nested", "app.db")); os.IsNotExist(err) {
		t.Error("database file was not created in the data directory")
	}
}

func TestLoad_Idempotent(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := m.Load(ctx, "sqlite:app.db"); err != nil {
			t.Fatalf("Load %d failed: %v", i, err)
		}
	}
	if got := m.Loaded(); len(got) != 1 || got[0] != "sqlite:app.db" {
		t.Errorf("Loaded() = %v", got)
	}
}

func TestExecuteAndSelect(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	url := "sqlite:app.db"

	if err := m.Load(ctx, url); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if _, err := m.Execute(ctx, url, "CREATE TABLE contacts (id INTEGER PRIMARY KEY, name TEXT NOT NULL, score REAL)", nil); err != nil {
		t.Fatalf("create table failed: %v", err)
	}

	res, err := m.Execute(ctx, url, "INSERT INTO contacts (name, score) VALUES (?, ?)", []any{"Ada", 9.5})
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if res.RowsAffected != 1 || res.LastInsertID != 1 {
		t.Errorf("unexpected exec result: %+v", res)
	}

	rows, err := m.Select(ctx, url, "SELECT id, name, score FROM contacts WHERE id = ?", []any{float64(1)})
	if err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0]["name"] != "Ada" {
		t.Errorf("name = %v, want Ada", rows[0]["name"])
	}
	if rows[0]["id"] != int64(1) {
		t.Errorf("id = %#v, want int64(1)", rows[0]["id"])
	}
}

func TestSelect_EmptyResultIsEmptySlice(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	url := "sqlite::memory:"

	if err := m.Load(ctx, url); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, err := m.Execute(ctx, url, "CREATE TABLE t (v TEXT)", nil); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	rows, err := m.Select(ctx, url, "SELECT v FROM t", nil)
	if err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if rows == nil || len(rows) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", rows)
	}
}

func TestForeignKeysEnabled(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	url := "sqlite:fk.db"

	if err := m.Load(ctx, url); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	rows, err := m.Select(ctx, url, "PRAGMA foreign_keys", nil)
	if err != nil {
		t.Fatalf("pragma failed: %v", err)
	}
	if len(rows) != 1 || rows[0]["foreign_keys"] != int64(1) {
		t.Errorf("foreign_keys = %v, want 1", rows)
	}
}

func TestQueryNotLoaded(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Select(context.Background(), "sqlite:missing.db", "SELECT 1", nil)
	if !errors.Is(err, ErrNotLoaded) {
		t.Errorf("expected ErrNotLoaded, got %v", err)
	}
}

func TestClose(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	for _, url := range []string{"sqlite:a.db", "sqlite:b.db"} {
		if err := m.Load(ctx, url); err != nil {
			t.Fatalf("Load %s failed: %v", url, err)
		}
	}

	if err := m.Close("sqlite:a.db"); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if got := m.Loaded(); len(got) != 1 || got[0] != "sqlite:b.db" {
		t.Errorf("Loaded() after close = %v", got)
	}

	if err := m.Close("sqlite:never-loaded.db"); err != nil {
		t.Errorf("closing an unloaded db should not fail: %v", err)
	}

	if err := m.Close(""); err != nil {
		t.Fatalf("Close all failed: %v", err)
	}
	if got := m.Loaded(); len(got) != 0 {
		t.Errorf("Loaded() after close all = %v", got)
	}
}

func TestBindValues(t *testing.T) {
	got := bindValues([]any{float64(3), 2.5, "x", nil, true})
	if got[0] != int64(3) {
		t.Errorf("integral float should bind as int64, got %#v", got[0])
	}
	if got[1] != 2.5 {
		t.Errorf("fractional float should be unchanged, got %#v", got[1])
	}
	if got[2] != "x" || got[3] != nil || got[4] != true {
		t.Errorf("other values should be unchanged: %#v", got[2:])
	}
}
