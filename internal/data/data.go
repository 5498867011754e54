package data

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/starlight-bridge/starlight/internal/biz/repo"

	_ "modernc.org/sqlite"
)

// Repositories contains all repositories
type Repositories struct {
	Project repo.ProjectRepo
	Rule    repo.RuleRepo

	db *sql.DB
}

// NewRepositories creates all repositories
func NewRepositories(projectsDir, dbPath string) (*Repositories, error) {
	projectRepo, err := NewProjectRepo(projectsDir)
	if err != nil {
		return nil, err
	}

	db, err := OpenDB(dbPath)
	if err != nil {
		return nil, err
	}

	ruleRepo, err := NewRuleRepo(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Repositories{
		Project: projectRepo,
		Rule:    ruleRepo,
		db:      db,
	}, nil
}

// OpenDB opens the sqlite database, creating its directory
func OpenDB(dbPath string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// a single writer avoids SQLITE_BUSY on concurrent rule updates
	db.SetMaxOpenConns(1)
	return db, nil
}

// Close releases the database
func (r *Repositories) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}
