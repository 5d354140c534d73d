package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Supported database/sql driver names.
const (
	// DriverModernc is the pure-Go driver registered by modernc.org/sqlite.
	DriverModernc = "sqlite"

	// DriverMattn is the cgo driver registered by github.com/mattn/go-sqlite3.
	DriverMattn = "sqlite3"
)

// Config contains configuration for the SQLite store.
type Config struct {
	// Driver selects the database/sql driver: "sqlite" or "sqlite3".
	// Default: "sqlite"
	Driver string

	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections.
	// SQLite serializes writers, so the default is a single connection.
	// Default: 1
	MaxOpenConns int

	// WALMode enables Write-Ahead Logging.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultConfig returns the default store configuration.
func DefaultConfig() *Config {
	return &Config{
		Driver:       DriverModernc,
		Path:         "data/sweeper.db",
		MaxOpenConns: 1,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// Store owns the connection pool to the analysis database.
type Store struct {
	db     *sqlx.DB
	config *Config
	logger *slog.Logger
}

// Open opens the database, applies the schema and verifies its version.
func Open(config *Config) (*Store, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Driver == "" {
		config.Driver = DriverModernc
	}

	logger := slog.Default().With("component", "store.sqlite")

	dsn, err := buildDSN(config)
	if err != nil {
		return nil, NewStorageError(config.Driver, "open", err)
	}

	db, err := sqlx.Open(config.Driver, dsn)
	if err != nil {
		return nil, NewStorageError(config.Driver, "open", err)
	}

	maxOpen := config.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 1
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)

	s := &Store{
		db:     db,
		config: config,
		logger: logger,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("store opened",
		"driver", config.Driver,
		"path", config.Path,
		"wal_mode", config.WALMode,
		"max_open_conns", maxOpen,
	)

	return s, nil
}

// buildDSN renders the connection string. The two drivers spell their
// connection pragmas differently; foreign keys are enforced with both.
func buildDSN(config *Config) (string, error) {
	if config.Path == "" {
		return "", errors.New("database path required")
	}
	busy := config.BusyTimeout.Milliseconds()
	if busy <= 0 {
		busy = 5000
	}

	q := url.Values{}
	switch config.Driver {
	case DriverModernc:
		q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busy))
		q.Add("_pragma", "foreign_keys(1)")
		if config.WALMode {
			q.Add("_pragma", "journal_mode(WAL)")
			q.Add("_pragma", "synchronous(NORMAL)")
		}
	case DriverMattn:
		q.Set("_busy_timeout", fmt.Sprint(busy))
		q.Set("_foreign_keys", "1")
		if config.WALMode {
			q.Set("_journal_mode", "WAL")
			q.Set("_synchronous", "NORMAL")
		}
	default:
		return "", fmt.Errorf("unsupported driver %q", config.Driver)
	}

	return "file:" + config.Path + "?" + q.Encode(), nil
}

// initialize creates the schema and checks the recorded version.
func (s *Store) initialize() error {
	backend := s.config.Driver

	if _, err := s.db.Exec(Schema); err != nil {
		return NewStorageError(backend, "create_schema", err)
	}
	s.logger.Debug("database schema created")

	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion, time.Now().UnixMilli()); err != nil {
		return NewStorageError(backend, "insert_schema_version", err)
	}

	var version int
	err := s.db.Get(&version, GetSchemaVersion)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return NewStorageError(backend, "get_schema_version", err)
	}
	if version != SchemaVersion {
		return NewStorageError(backend, "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	return nil
}

// DB returns the underlying connection pool.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Driver returns the database/sql driver name in use.
func (s *Store) Driver() string {
	return s.config.Driver
}

// InTx runs fn inside one transaction. The transaction commits when fn
// returns nil and rolls back otherwise, including on panic.
func (s *Store) InTx(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("rollback failed", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the connection pool.
func (s *Store) Close() error {
	s.logger.Info("closing store")
	return s.db.Close()
}
