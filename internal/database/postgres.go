package database

import (
	"database/sql"
	"fmt"
	"log"

	_ "github.com/lib/pq"
)

type Manager struct {
	DB *sql.DB
}

type Config struct {
	ConnectionString string
	Host             string
	Port             string
	User             string
	Password         string
	DBName           string
}

func NewManager(cfg Config) (*Manager, error) {
	var connectionString string

	if cfg.ConnectionString != "" {
		connectionString = cfg.ConnectionString
	} else {
		connectionString = fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName,
		)
	}

	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Successfully connected to the database")

	manager := &Manager{DB: db}

	if err := manager.runMigrations(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return manager, nil
}

func (m *Manager) runMigrations() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS subscriptions (
			id TEXT PRIMARY KEY,
			user_id TEXT REFERENCES users(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			url TEXT NOT NULL,
			color TEXT NOT NULL DEFAULT '#4285f4',
			sync_enabled BOOLEAN DEFAULT TRUE,
			last_sync_at TIMESTAMP WITH TIME ZONE,
			last_etag TEXT NOT NULL DEFAULT '',
			last_modified TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			user_id TEXT REFERENCES users(id) ON DELETE CASCADE,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			location TEXT NOT NULL DEFAULT '',
			start_time TIMESTAMP WITH TIME ZONE NOT NULL,
			end_time TIMESTAMP WITH TIME ZONE NOT NULL,
			all_day BOOLEAN DEFAULT FALSE,
			rrule TEXT NOT NULL DEFAULT '',
			color TEXT NOT NULL DEFAULT '#4285f4',
			source_calendar_id TEXT REFERENCES subscriptions(id) ON DELETE CASCADE,
			source_event_uid TEXT,
			fingerprint TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(source_calendar_id, source_event_uid, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS feed_tokens (
			id TEXT PRIMARY KEY,
			user_id TEXT REFERENCES users(id) ON DELETE CASCADE,
			token TEXT UNIQUE NOT NULL,
			is_active BOOLEAN DEFAULT TRUE,
			expires_at TIMESTAMP WITH TIME ZONE,
			access_count INTEGER DEFAULT 0,
			last_accessed_at TIMESTAMP WITH TIME ZONE,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_user_id ON events(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_events_source_calendar_id ON events(source_calendar_id)`,
		`CREATE INDEX IF NOT EXISTS idx_events_start_time ON events(start_time)`,
		`CREATE INDEX IF NOT EXISTS idx_subscriptions_user_id ON subscriptions(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_feed_tokens_token ON feed_tokens(token)`,
	}

	for i, migration := range migrations {
		if _, err := m.DB.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	log.Println("Database migrations completed successfully")
	return nil
}

func (m *Manager) Close() error {
	if m.DB != nil {
		return m.DB.Close()
	}
	return nil
}

func (m *Manager) GetDB() *sql.DB {
	return m.DB
}
