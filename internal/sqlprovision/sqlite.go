package sqlprovision

import (
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

func (r *Record) sqlitePath() string {
	return filepath.Join(os.TempDir(), r.dbName()+".db")
}

// initSQLite creates a fresh scratch file and runs initSQL against it
// inside a transaction. Any failure removes the file itself; sqlite has
// no separate server-side resources for a caller to clean up, so this
// path never returns a Record needing Cleanup.
func (r *Record) initSQLite(initSQL string) error {
	path := r.sqlitePath()

	db, err := openSQL("sqlite3", path)
	if err != nil {
		return fmt.Errorf("opening scratch database: %w", err)
	}
	defer db.Close()

	tx, err := db.Begin()
	if err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("beginning initSql transaction: %w", err)
	}

	if _, err := tx.Exec(initSQL); err != nil {
		_ = tx.Rollback()
		_ = os.Remove(path)
		return fmt.Errorf("running initSql: %w", err)
	}

	if err := tx.Commit(); err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("committing initSql: %w", err)
	}

	r.createdDatabase = path
	return nil
}

// cleanupSQLite removes the scratch file. Not finding it is not an error:
// the bridge may call Cleanup after a connection that never got far enough
// to create the file.
func (r *Record) cleanupSQLite() error {
	if r.createdDatabase == "" {
		return nil
	}
	path := r.createdDatabase
	r.createdDatabase = ""
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return &CleanupError{Err: fmt.Errorf("removing %s: %w", path, err)}
	}
	return nil
}
