// ABOUTME: Named SQLite connection manager keyed by database URL
// ABOUTME: Opens with modernc (sqlite:) or mattn (sqlite3:) and runs queries for the sql capability

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

var (
	// ErrUnsupportedURL is returned for URLs with an unknown scheme.
	ErrUnsupportedURL = errors.New("unsupported database url")

	// ErrNotLoaded is returned when a query targets a database that was
	// never loaded.
	ErrNotLoaded = errors.New("database not loaded")
)

const memoryPath = ":memory:"

// ExecResult is the result of a write statement.
type ExecResult struct {
	RowsAffected int64 `json:"rows_affected"`
	LastInsertID int64 `json:"last_insert_id"`
}

// Manager owns the open database connections.
type Manager struct {
	mu      sync.Mutex
	dataDir string
	conns   map[string]*sql.DB
	logger  *slog.Logger
}

// NewManager creates a Manager resolving relative paths against dataDir.
func NewManager(dataDir string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		dataDir: dataDir,
		conns:   make(map[string]*sql.DB),
		logger:  logger.With("component", "store"),
	}
}

// ParseURL splits a database URL into its driver name and path.
func ParseURL(url string) (driver, path string, err error) {
	scheme, path, ok := strings.Cut(url, ":")
	if !ok || path == "" {
		return "", "", fmt.Errorf("%w: %q", ErrUnsupportedURL, url)
	}
	switch scheme {
	case "sqlite", "sqlite3":
	default:
		return "", "", fmt.Errorf("%w: %q", ErrUnsupportedURL, url)
	}
	return scheme, strings.TrimPrefix(path, "//"), nil
}

func (m *Manager) resolve(path string) string {
	if path == memoryPath || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(m.dataDir, path)
}

// Load opens the database at url if it is not open yet.
func (m *Manager) Load(ctx context.Context, url string) error {
	driver, path, err := ParseURL(url)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.conns[url]; ok {
		return nil
	}

	db, err := open(ctx, driver, m.resolve(path))
	if err != nil {
		return fmt.Errorf("loading %s: %w", url, err)
	}
	m.conns[url] = db
	m.logger.Info("database loaded", "db", url, "driver", driver)
	return nil
}

func open(ctx context.Context, driver, path string) (*sql.DB, error) {
	if path != memoryPath {
		// Ensure parent directory exists
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open(driver, path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if path == memoryPath {
		// Each connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	} else if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	return db, nil
}

func (m *Manager) conn(url string) (*sql.DB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	db, ok := m.conns[url]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotLoaded, url)
	}
	return db, nil
}

// Loaded returns the URLs of open databases, sorted.
func (m *Manager) Loaded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	urls := make([]string, 0, len(m.conns))
	for url := range m.conns {
		urls = append(urls, url)
	}
	sort.Strings(urls)
	return urls
}

// Execute runs a write statement against the database at url.
func (m *Manager) Execute(ctx context.Context, url, query string, values []any) (ExecResult, error) {
	db, err := m.conn(url)
	if err != nil {
		return ExecResult{}, err
	}

	res, err := db.ExecContext(ctx, query, bindValues(values)...)
	if err != nil {
		return ExecResult{}, fmt.Errorf("executing query: %w", err)
	}

	var out ExecResult
	if out.RowsAffected, err = res.RowsAffected(); err != nil {
		return ExecResult{}, fmt.Errorf("reading rows affected: %w", err)
	}
	if out.LastInsertID, err = res.LastInsertId(); err != nil {
		return ExecResult{}, fmt.Errorf("reading last insert id: %w", err)
	}
	return out, nil
}

// Select runs a query against the database at url and returns one map per
// row keyed by column name.
func (m *Manager) Select(ctx context.Context, url, query string, values []any) ([]map[string]any, error) {
	db, err := m.conn(url)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query, bindValues(values)...)
	if err != nil {
		return nil, fmt.Errorf("querying: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading columns: %w", err)
	}

	result := []map[string]any{}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		row := make(map[string]any, len(cols))
		for i, col := range cols {
			if b, ok := vals[i].([]byte); ok {
				row[col] = string(b)
				continue
			}
			row[col] = vals[i]
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return result, nil
}

// Close closes the database at url. An empty url closes every database.
// Closing a database that is not loaded is not an error.
func (m *Manager) Close(url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if url != "" {
		db, ok := m.conns[url]
		if !ok {
			return nil
		}
		delete(m.conns, url)
		return db.Close()
	}

	var errs []error
	for u, db := range m.conns {
		if err := db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", u, err))
		}
		delete(m.conns, u)
	}
	return errors.Join(errs...)
}

// bindValues converts JSON-decoded arguments into driver values.
// Integral float64 values bind as int64.
func bindValues(values []any) []any {
	out := make([]any, len(values))
	for i, v := range values {
		if f, ok := v.(float64); ok && f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			out[i] = int64(f)
			continue
		}
		out[i] = v
	}
	return out
}
