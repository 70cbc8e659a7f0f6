package kv

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"                      // SQLite driver
	_ "github.com/tursodatabase/libsql-client-go/libsql" // Turso driver

	"github.com/convertrack/convertrack-go/internal/infrastructure/observability/logging"
)

const schema = `CREATE TABLE IF NOT EXISTS kv_entries (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
)`

// SQLStore is the durable Store backend. It prefers a remote Turso
// database when credentials are configured and falls back to a local
// SQLite file, matching how the rest of the platform selects storage.
type SQLStore struct {
	conn     *sql.DB
	useTurso bool
	logger   *logging.ChanneledLogger
}

// SQLStoreConfig describes how to open the durable backend.
type SQLStoreConfig struct {
	SQLitePath    string
	TursoDatabase string
	TursoToken    string
}

// OpenSQLStore opens the durable key-value backend.
func OpenSQLStore(config SQLStoreConfig, logger *logging.ChanneledLogger) (*SQLStore, error) {
	var conn *sql.DB
	var err error
	var useTurso bool

	// Try Turso first if credentials are available
	if config.TursoDatabase != "" && config.TursoToken != "" {
		connStr := config.TursoDatabase + "?authToken=" + config.TursoToken
		conn, err = sql.Open("libsql", connStr)
		if err == nil {
			if pingErr := conn.Ping(); pingErr == nil {
				useTurso = true
			} else {
				conn.Close()
				conn = nil
			}
		}
	}

	// Fallback to SQLite if Turso failed or not configured
	if conn == nil {
		dbDir := filepath.Dir(config.SQLitePath)
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}

		conn, err = sql.Open("sqlite3", config.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite store: %w", err)
		}

		if err := conn.Ping(); err != nil {
			conn.Close()
			return nil, fmt.Errorf("SQLite store ping failed: %w", err)
		}
		useTurso = false
	}

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize kv schema: %w", err)
	}

	return &SQLStore{conn: conn, useTurso: useTurso, logger: logger}, nil
}

// Get returns the stored value and whether it was present. Query faults
// degrade to absence.
func (s *SQLStore) Get(key string) (string, bool) {
	var value string
	err := s.conn.QueryRow("SELECT value FROM kv_entries WHERE key = ?", key).Scan(&value)
	if err != nil {
		if err != sql.ErrNoRows && s.logger != nil {
			s.logger.Store().Warn("Store read failed", "key", key, "error", err.Error())
		}
		return "", false
	}
	return value, true
}

// Set persists a value, reporting success.
func (s *SQLStore) Set(key, value string) bool {
	_, err := s.conn.Exec(
		`INSERT INTO kv_entries (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, value,
	)
	if err != nil {
		if s.logger != nil {
			s.logger.Store().Warn("Store write failed", "key", key, "error", err.Error())
		}
		return false
	}
	return true
}

// Remove deletes a key, reporting success.
func (s *SQLStore) Remove(key string) bool {
	_, err := s.conn.Exec("DELETE FROM kv_entries WHERE key = ?", key)
	if err != nil {
		if s.logger != nil {
			s.logger.Store().Warn("Store delete failed", "key", key, "error", err.Error())
		}
		return false
	}
	return true
}

// Keys returns all stored keys beginning with prefix.
func (s *SQLStore) Keys(prefix string) []string {
	rows, err := s.conn.Query("SELECT key FROM kv_entries WHERE key LIKE ? || '%' ORDER BY key", prefix)
	if err != nil {
		if s.logger != nil {
			s.logger.Store().Warn("Store scan failed", "prefix", prefix, "error", err.Error())
		}
		return []string{}
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			continue
		}
		out = append(out, key)
	}
	return out
}

// ConnectionInfo returns a string describing the active backend.
func (s *SQLStore) ConnectionInfo() string {
	if s.useTurso {
		return "Turso"
	}
	return "SQLite"
}

// Close closes the underlying connection.
func (s *SQLStore) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
