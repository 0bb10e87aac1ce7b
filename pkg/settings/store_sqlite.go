package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Store is the durable per-user settings and persona database.
type Store struct {
	db *sql.DB
}

// NewStore creates/opens the settings database at path.
func NewStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create settings db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Single-process service. One shared connection avoids writer lock
	// contention with SQLite under concurrent goroutines.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &Store{db: db}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) init() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA synchronous=NORMAL;`,
		`PRAGMA busy_timeout=5000;`,
		`CREATE TABLE IF NOT EXISTS user_settings (
			user_id TEXT PRIMARY KEY,
			notion_token TEXT NOT NULL DEFAULT '',
			notion_page_id TEXT NOT NULL DEFAULT '',
			projects_db_id TEXT NOT NULL DEFAULT '',
			areas_db_id TEXT NOT NULL DEFAULT '',
			resources_db_id TEXT NOT NULL DEFAULT '',
			archive_db_id TEXT NOT NULL DEFAULT '',
			updated_at_ms INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS personas (
			user_id TEXT PRIMARY KEY,
			profile_json TEXT NOT NULL DEFAULT '{}',
			updated_at_ms INTEGER NOT NULL
		);`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init settings schema: %w", err)
		}
	}
	return nil
}

func nowMS() int64 { return time.Now().UnixMilli() }

// PutSettings upserts a user's settings. Empty incoming fields keep the
// stored value so partial updates (token-only, IDs-only) compose.
func (s *Store) PutSettings(ctx context.Context, in UserSettings) error {
	if strings.TrimSpace(in.UserID) == "" {
		return fmt.Errorf("put settings: empty user_id")
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO user_settings(user_id, notion_token, notion_page_id, projects_db_id, areas_db_id, resources_db_id, archive_db_id, updated_at_ms)
VALUES(?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(user_id) DO UPDATE SET
	notion_token = CASE WHEN excluded.notion_token <> '' THEN excluded.notion_token ELSE user_settings.notion_token END,
	notion_page_id = CASE WHEN excluded.notion_page_id <> '' THEN excluded.notion_page_id ELSE user_settings.notion_page_id END,
	projects_db_id = CASE WHEN excluded.projects_db_id <> '' THEN excluded.projects_db_id ELSE user_settings.projects_db_id END,
	areas_db_id = CASE WHEN excluded.areas_db_id <> '' THEN excluded.areas_db_id ELSE user_settings.areas_db_id END,
	resources_db_id = CASE WHEN excluded.resources_db_id <> '' THEN excluded.resources_db_id ELSE user_settings.resources_db_id END,
	archive_db_id = CASE WHEN excluded.archive_db_id <> '' THEN excluded.archive_db_id ELSE user_settings.archive_db_id END,
	updated_at_ms = excluded.updated_at_ms`,
		in.UserID, in.NotionToken, in.NotionPageID, in.ProjectsDB, in.AreasDB, in.ResourcesDB, in.ArchiveDB, nowMS())
	if err != nil {
		return fmt.Errorf("put settings: %w", err)
	}
	return nil
}

func (s *Store) GetSettings(ctx context.Context, userID string) (UserSettings, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT user_id, notion_token, notion_page_id, projects_db_id, areas_db_id, resources_db_id, archive_db_id, updated_at_ms
FROM user_settings WHERE user_id = ?`, userID)

	var out UserSettings
	if err := row.Scan(&out.UserID, &out.NotionToken, &out.NotionPageID, &out.ProjectsDB, &out.AreasDB, &out.ResourcesDB, &out.ArchiveDB, &out.UpdatedAtMS); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return UserSettings{}, ErrNotConfigured
		}
		return UserSettings{}, fmt.Errorf("get settings: %w", err)
	}
	return out, nil
}

// Binding resolves the user's remote write target. ErrNotConfigured when the
// token is missing; database IDs may be empty until the framework exists.
func (s *Store) Binding(ctx context.Context, userID string) (Binding, error) {
	settings, err := s.GetSettings(ctx, userID)
	if err != nil {
		return Binding{}, err
	}
	if strings.TrimSpace(settings.NotionToken) == "" {
		return Binding{}, ErrNotConfigured
	}
	return Binding{
		Token:       settings.NotionToken,
		ProjectsDB:  settings.ProjectsDB,
		AreasDB:     settings.AreasDB,
		ResourcesDB: settings.ResourcesDB,
		ArchiveDB:   settings.ArchiveDB,
	}, nil
}

func (s *Store) PutPersona(ctx context.Context, userID string, persona Persona) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("put persona: empty user_id")
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO personas(user_id, profile_json, updated_at_ms)
VALUES(?, ?, ?)
ON CONFLICT(user_id) DO UPDATE SET
	profile_json = excluded.profile_json,
	updated_at_ms = excluded.updated_at_ms`,
		userID, personaToJSON(persona), nowMS())
	if err != nil {
		return fmt.Errorf("put persona: %w", err)
	}
	return nil
}

// GetPersona returns the saved persona, or the zero persona with ok=false
// when the user never completed onboarding.
func (s *Store) GetPersona(ctx context.Context, userID string) (Persona, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT profile_json FROM personas WHERE user_id = ?`, userID)
	var raw string
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Persona{}, false, nil
		}
		return Persona{}, false, fmt.Errorf("get persona: %w", err)
	}
	return personaFromJSON(raw), true, nil
}
