package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// Store persists articles, prompt templates, tasks and detection results in a
// local SQLite database.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new store instance with SQLite database
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "redraft.db")
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{
		db:   db,
		path: dbPath,
	}

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return store, nil
}

// initialize creates the necessary tables and applies additive migrations.
func (s *Store) initialize() error {
	articlesTable := `
	CREATE TABLE IF NOT EXISTS articles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source_key TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL DEFAULT '',
		source_platform TEXT NOT NULL DEFAULT '',
		creation_type TEXT NOT NULL DEFAULT 'url_import',
		source_url TEXT NOT NULL DEFAULT '',
		topic TEXT NOT NULL DEFAULT '',
		content_original TEXT NOT NULL DEFAULT '',
		content_translated TEXT NOT NULL DEFAULT '',
		content_optimised TEXT NOT NULL DEFAULT '',
		content_final TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		ai_probability REAL,
		category TEXT NOT NULL DEFAULT '',
		word_count INTEGER NOT NULL DEFAULT 0,
		estimated_reading_time INTEGER NOT NULL DEFAULT 0,
		tags TEXT NOT NULL DEFAULT '[]',
		target_length TEXT NOT NULL DEFAULT 'medium',
		writing_style TEXT NOT NULL DEFAULT '',
		keywords TEXT NOT NULL DEFAULT '[]',
		selected_prompt_id INTEGER,
		selected_model_id INTEGER,
		creation_requirements TEXT NOT NULL DEFAULT '',
		processing_attempts INTEGER NOT NULL DEFAULT 0,
		last_error TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		published_at DATETIME
	);`

	templatesTable := `
	CREATE TABLE IF NOT EXISTS prompt_templates (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL,
		template TEXT NOT NULL,
		variables TEXT NOT NULL DEFAULT '[]',
		version INTEGER NOT NULL DEFAULT 1,
		language TEXT NOT NULL DEFAULT 'zh',
		content_type TEXT NOT NULL DEFAULT 'general',
		priority INTEGER NOT NULL DEFAULT 0,
		is_active INTEGER NOT NULL DEFAULT 1,
		is_default INTEGER NOT NULL DEFAULT 0,
		success_rate REAL NOT NULL DEFAULT 0,
		usage_count INTEGER NOT NULL DEFAULT 0,
		average_quality_score REAL NOT NULL DEFAULT 0,
		parameters TEXT NOT NULL DEFAULT '',
		test_group TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		last_used_at DATETIME,
		created_by TEXT NOT NULL DEFAULT ''
	);`

	tasksTable := `
	CREATE TABLE IF NOT EXISTS tasks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		task_id TEXT NOT NULL UNIQUE,
		article_id INTEGER NOT NULL REFERENCES articles(id),
		type TEXT NOT NULL DEFAULT 'article_processing',
		status TEXT NOT NULL DEFAULT 'pending',
		progress REAL NOT NULL DEFAULT 0,
		current_step TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		started_at DATETIME,
		completed_at DATETIME
	);`

	detectionsTable := `
	CREATE TABLE IF NOT EXISTS detection_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		article_id INTEGER NOT NULL REFERENCES articles(id),
		detection_type TEXT NOT NULL DEFAULT 'ai_probability',
		platform TEXT NOT NULL DEFAULT '',
		score REAL NOT NULL,
		threshold REAL NOT NULL,
		is_passed INTEGER NOT NULL,
		detected_at DATETIME NOT NULL,
		profile_id INTEGER NOT NULL DEFAULT 0,
		egress_ip TEXT NOT NULL DEFAULT '',
		attempts INTEGER NOT NULL DEFAULT 0,
		page_status TEXT NOT NULL DEFAULT ''
	);`

	tables := []string{articlesTable, templatesTable, tasksTable, detectionsTable}
	for _, table := range tables {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	if err := s.migrate(); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}

	return nil
}

// migration adds one column to an existing table. Migrations are additive
// only; columns are never dropped or rewritten.
type migration struct {
	table      string
	column     string
	definition string
}

// migrations covers columns added after the initial schema so older databases
// pick them up with a documented default.
var migrations = []migration{
	{"articles", "writing_style", "TEXT NOT NULL DEFAULT ''"},
	{"articles", "keywords", "TEXT NOT NULL DEFAULT '[]'"},
	{"articles", "creation_requirements", "TEXT NOT NULL DEFAULT ''"},
	{"articles", "selected_model_id", "INTEGER"},
	{"prompt_templates", "test_group", "TEXT NOT NULL DEFAULT ''"},
	{"prompt_templates", "average_quality_score", "REAL NOT NULL DEFAULT 0"},
	{"detection_results", "page_status", "TEXT NOT NULL DEFAULT ''"},
	{"detection_results", "egress_ip", "TEXT NOT NULL DEFAULT ''"},
}

func (s *Store) migrate() error {
	for _, m := range migrations {
		exists, err := s.columnExists(m.table, m.column)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", m.table, m.column, m.definition)
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("add column %s.%s: %w", m.table, m.column, err)
		}
	}
	return nil
}

func (s *Store) columnExists(table, column string) (bool, error) {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, fmt.Errorf("table_info %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notNull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection is alive.
func (s *Store) Ping() error {
	return s.db.Ping()
}

// Path returns the location of the database file.
func (s *Store) Path() string {
	return s.path
}

// isUniqueViolation reports whether err is a sqlite UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// marshalList stores a string slice as a JSON array column.
func marshalList(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// unmarshalList reads a JSON array column back into a string slice.
func unmarshalList(raw string) []string {
	if raw == "" || raw == "[]" {
		return nil
	}
	var items []string
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil
	}
	return items
}
