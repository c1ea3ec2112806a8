package kvstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"matchup/internal/pkg/logx"
)

// InMemoryPath opens a private database that is discarded on Close.
const InMemoryPath = ":memory:"

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

// SQLite is a Store backed by a single SQLite database file.
type SQLite struct {
	pool   *sqlitex.Pool
	path   string
	logger zerolog.Logger
}

// OpenSQLite opens (creating if needed) the database at path. The parent directory is
// created when missing. InMemoryPath yields a private in-memory database.
func OpenSQLite(path string) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("kvstore: path is required")
	}

	poolSize := 4
	uri := path
	if path == InMemoryPath {
		// the pool refuses ":memory:"; a named shared-cache database lives as long as its connection
		poolSize = 1
		uri = "file:matchup-" + uuid.NewString() + "?mode=memory&cache=shared"
	} else if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("kvstore: creating directory for %s: %w", path, err)
	}

	pool, err := sqlitex.NewPool(uri, sqlitex.PoolOptions{
		PoolSize:    poolSize,
		PrepareConn: prepareConn,
	})
	if err != nil {
		return nil, fmt.Errorf("kvstore: opening %s: %w", path, err)
	}

	logger := logx.Component("kvstore").With().Str("path", path).Logger()
	logger.Debug().Int("pool_size", poolSize).Msg("Session database opened.")

	return &SQLite{pool: pool, path: path, logger: logger}, nil
}

// prepareConn applies pragmas and creates the schema once per pooled connection.
func prepareConn(conn *sqlite.Conn) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("kvstore: %s: %w", pragma, err)
		}
	}

	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return fmt.Errorf("kvstore: creating schema: %w", err)
	}
	return nil
}

// Get implements Store.
func (s *SQLite) Get(ctx context.Context, key string) (string, bool, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return "", false, fmt.Errorf("kvstore: take: %w", err)
	}
	defer s.pool.Put(conn)

	var (
		value string
		found bool
	)
	err = sqlitex.Execute(conn, "SELECT value FROM kv WHERE key = ?", &sqlitex.ExecOptions{
		Args: []any{key},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			value = stmt.ColumnText(0)
			found = true
			return nil
		},
	})
	if err != nil {
		return "", false, fmt.Errorf("kvstore: get %s: %w", key, err)
	}

	return value, found, nil
}

// SetMany implements Store. All values are written in one transaction.
func (s *SQLite) SetMany(ctx context.Context, values map[string]string) (err error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("kvstore: take: %w", err)
	}
	defer s.pool.Put(conn)

	defer sqlitex.Save(conn)(&err)

	for key, value := range values {
		err = sqlitex.Execute(conn,
			"INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
			&sqlitex.ExecOptions{Args: []any{key, value}},
		)
		if err != nil {
			return fmt.Errorf("kvstore: set %s: %w", key, err)
		}
	}

	return nil
}

// Delete implements Store.
func (s *SQLite) Delete(ctx context.Context, keys ...string) (err error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("kvstore: take: %w", err)
	}
	defer s.pool.Put(conn)

	defer sqlitex.Save(conn)(&err)

	for _, key := range keys {
		if err = sqlitex.Execute(conn, "DELETE FROM kv WHERE key = ?", &sqlitex.ExecOptions{Args: []any{key}}); err != nil {
			return fmt.Errorf("kvstore: delete %s: %w", key, err)
		}
	}

	return nil
}

// Close implements Store.
func (s *SQLite) Close() error {
	if err := s.pool.Close(); err != nil {
		s.logger.Error().Err(err).Msg("Session database close error.")
		return fmt.Errorf("kvstore: closing %s: %w", s.path, err)
	}
	return nil
}
