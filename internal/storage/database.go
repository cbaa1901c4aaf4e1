// Package storage persists player data (key/value entries and mission
// progress) through GORM on Postgres or SQLite. An in-memory SQLite database
// is periodically dumped to disk with VACUUM INTO.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/pedrabranca/geoquest/internal/config"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MemoryDSN is the shared in-memory SQLite database used when no file path
// is configured.
const MemoryDSN = "file::memory:?cache=shared"

// Manager handles database connections and schema.
type Manager struct {
	DB              *gorm.DB
	SqlDB           *sql.DB
	ShouldSaveLocal bool
	Logger          zerolog.Logger

	cfg config.StorageConfig
}

// NewManager creates a new database manager.
func NewManager(cfg config.StorageConfig, log zerolog.Logger) *Manager {
	return &Manager{
		Logger: log,
		cfg:    cfg,
	}
}

// Connect opens the configured database. A Postgres failure falls back to
// SQLite.
func (m *Manager) Connect() error {
	var err error

	switch m.cfg.Type {
	case "postgres":
		m.DB, err = GetPostgresDB(m.cfg.Postgres)
		if err == nil {
			m.SqlDB, err = m.DB.DB()
		}
		if err == nil {
			err = m.SqlDB.Ping()
		}
		if err != nil {
			m.Logger.Error().Err(err).Msg("Failed to connect to Postgres DB, trying SQLite")
			return m.connectSQLite()
		}
		m.SqlDB.SetMaxOpenConns(10)
		m.Logger.Info().Str("host", m.cfg.Postgres.Host).Msg("Connected to database")
		return nil
	case "sqlite", "":
		return m.connectSQLite()
	default:
		return fmt.Errorf("unknown storage type: %s", m.cfg.Type)
	}
}

func (m *Manager) connectSQLite() error {
	var err error
	m.ShouldSaveLocal = true

	m.DB, err = GetSqliteDB(m.cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("failed to get local SQLite DB: %w", err)
	}
	m.SqlDB, err = m.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql interface: %w", err)
	}

	if m.cfg.SQLite.Path != "" {
		m.Logger.Info().Str("path", m.cfg.SQLite.Path).Msg("Using local SQLite DB")
	} else {
		m.Logger.Info().Msg("Using local SQLite DB in memory with periodic disk dump")
	}
	return nil
}

// Setup migrates tables.
func (m *Manager) Setup() error {
	m.Logger.Info().Msg("Migrating schema")
	if err := m.DB.AutoMigrate(Models...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	m.Logger.Info().Msg("Database setup complete")
	return nil
}

// InMemory reports whether the manager holds an in-memory SQLite database.
func (m *Manager) InMemory() bool {
	return m.ShouldSaveLocal && m.cfg.SQLite.Path == ""
}

// DumpToDisk vacuums the in-memory database to the configured dump path.
func (m *Manager) DumpToDisk() error {
	start := time.Now()
	if err := DumpMemoryDBToDisk(m.DB, m.cfg.SQLite.DumpPath); err != nil {
		return err
	}
	m.Logger.Debug().Dur("duration", time.Since(start)).Msg("Dumped memory DB to disk")
	return nil
}

// RunDumpLoop dumps the in-memory database every interval until ctx is
// done, with a final dump on exit. It returns immediately when the database
// is not in memory or the interval is not positive.
func (m *Manager) RunDumpLoop(ctx context.Context, interval time.Duration) {
	if !m.InMemory() || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := m.DumpToDisk(); err != nil {
				m.Logger.Error().Err(err).Msg("Final dump failed")
			}
			return
		case <-ticker.C:
			if err := m.DumpToDisk(); err != nil {
				m.Logger.Error().Err(err).Msg("Periodic dump failed")
			}
		}
	}
}

// Close releases the underlying connection pool.
func (m *Manager) Close() error {
	if m.SqlDB == nil {
		return nil
	}
	return m.SqlDB.Close()
}

// GetPostgresDB returns a connection to the Postgres database.
func GetPostgresDB(cfg config.PostgresConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(`host=%s port=%s user=%s password=%s dbname=%s sslmode=disable`,
		cfg.Host,
		cfg.Port,
		cfg.Username,
		cfg.Password,
		cfg.Database,
	)

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	return db, nil
}

// GetSqliteDB returns a connection to a SQLite database.
// If path is empty, uses the shared in-memory database.
func GetSqliteDB(path string) (*gorm.DB, error) {
	dsn := path
	if dsn == "" {
		dsn = MemoryDSN
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	pragmas := []string{
		"PRAGMA user_version = 1;",
		"PRAGMA journal_mode = MEMORY;",
		"PRAGMA synchronous = OFF;",
		"PRAGMA cache_size = -32000;",
		"PRAGMA temp_store = MEMORY;",
	}

	for _, pragma := range pragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("error setting PRAGMA: %s", err)
		}
	}

	return db, nil
}

// DumpMemoryDBToDisk vacuums the database into a file at path, replacing
// any existing file.
func DumpMemoryDBToDisk(db *gorm.DB, path string) error {
	if path == "" {
		return fmt.Errorf("sqlite file path not set")
	}

	if exists, err := os.Stat(path); err == nil && exists != nil {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("error removing existing DB file: %s", err)
		}
	}

	err := db.Exec("VACUUM INTO 'file:" + path + "';").Error
	if err != nil {
		return fmt.Errorf("error dumping memory DB to disk: %s", err)
	}

	return nil
}
