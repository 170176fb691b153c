package annotation

import (
	"database/sql"
	"fmt"
	"log"

	_ "modernc.org/sqlite"

	"github.com/lewtec/anotador/internal/repository"
)

// GetDatabase opens the SQLite database at filename and migrates it
func GetDatabase(filename string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", filename)
	if err != nil {
		return nil, fmt.Errorf("while opening database '%s': %w", filename, err)
	}
	// one writer at a time, and a single shared connection for :memory:
	db.SetMaxOpenConns(1)
	log.Printf("GetDatabase: applying migrations to %s", filename)
	if err := repository.Migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("while migrating database '%s': %w", filename, err)
	}
	return db, nil
}
