// Package database provides the SQLite-backed article store for
// go-mcnttp: catalogs, articles, their per-catalog numbering and the
// principal accounts used for AUTHINFO.
package database

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// Database wraps the main SQLite connection.
type Database struct {
	mainDB *sql.DB

	MainMutex sync.RWMutex

	dbconfig *DBConfig

	StopChan chan struct{} // Channel to signal shutdown
	stopOnce sync.Once
}

// DBConfig represents database configuration.
type DBConfig struct {
	// Path of the main sqlite file. The parent directory is created
	// on demand.
	MainDBPath string

	MaxOpenConns int
	MaxIdleConns int

	WALMode bool
}

// DefaultDBConfig returns sensible defaults for a small server.
func DefaultDBConfig(path string) *DBConfig {
	return &DBConfig{
		MainDBPath:   path,
		MaxOpenConns: 8,
		MaxIdleConns: 4,
		WALMode:      true,
	}
}

// OpenDatabase opens (and migrates) the main database.
func OpenDatabase(cfg *DBConfig) (*Database, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil database config")
	}
	if dir := filepath.Dir(cfg.MainDBPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data dir %s: %w", dir, err)
		}
	}

	mainDB, err := sql.Open("sqlite3", cfg.MainDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open main database: %w", err)
	}
	mainDB.SetMaxOpenConns(cfg.MaxOpenConns)
	mainDB.SetMaxIdleConns(cfg.MaxIdleConns)

	db := &Database{
		mainDB:   mainDB,
		dbconfig: cfg,
		StopChan: make(chan struct{}),
	}

	if err := db.applySQLitePragmas(); err != nil {
		mainDB.Close()
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		mainDB.Close()
		return nil, err
	}
	return db, nil
}

func (db *Database) applySQLitePragmas() error {
	pragmas := []string{
		"PRAGMA cache_size = 1000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 30000", // 30 seconds
	}
	if db.dbconfig.WALMode {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
		pragmas = append(pragmas, "PRAGMA wal_autocheckpoint = 1000")
	}
	for _, pragma := range pragmas {
		if _, err := db.mainDB.Exec(pragma); err != nil {
			return fmt.Errorf("failed to apply pragma %q: %w", pragma, err)
		}
	}
	return nil
}

// IsDBshutdown returns true when Shutdown has been called.
func (db *Database) IsDBshutdown() bool {
	select {
	case <-db.StopChan:
		return true
	default:
		return false
	}
}

// Shutdown closes the database. Safe to call more than once.
func (db *Database) Shutdown() error {
	var err error
	db.stopOnce.Do(func() {
		close(db.StopChan)
		if db.mainDB != nil {
			err = db.mainDB.Close()
		}
		log.Printf("Database closed")
	})
	return err
}
