package database

import (
	"database/sql"
	"fmt"
	"sort"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Up      string
	Down    string
}

// Migrations contains all database migrations
var Migrations = []Migration{
	{
		Version: 1,
		Up: `
			CREATE EXTENSION IF NOT EXISTS "uuid-ossp";

			CREATE TABLE IF NOT EXISTS users (
				id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
				email VARCHAR(255) UNIQUE NOT NULL,
				display_name VARCHAR(255) NOT NULL,
				role VARCHAR(50) NOT NULL DEFAULT 'user',
				avatar_url TEXT,
				password_hash VARCHAR(255) NOT NULL,
				created_at TIMESTAMP NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
			CREATE INDEX IF NOT EXISTS idx_users_role ON users(role);
		`,
		Down: `
			DROP TABLE IF EXISTS users;
		`,
	},
	{
		Version: 2,
		Up: `
			CREATE TABLE IF NOT EXISTS conversations (
				id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
				type VARCHAR(50) NOT NULL DEFAULT 'direct',
				title VARCHAR(255) NOT NULL DEFAULT '',
				status VARCHAR(50) NOT NULL DEFAULT 'active',
				priority VARCHAR(50) NOT NULL DEFAULT 'normal',
				related_kind VARCHAR(100),
				related_id VARCHAR(255),
				direct_key VARCHAR(100),
				last_message_id UUID,
				last_message_preview TEXT,
				last_message_sender_id UUID,
				last_message_sent_at TIMESTAMP,
				last_message_type VARCHAR(50),
				created_at TIMESTAMP NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_conversations_last_sent ON conversations(last_message_sent_at DESC NULLS LAST);
		`,
		Down: `
			DROP TABLE IF EXISTS conversations;
		`,
	},
	{
		Version: 3,
		Up: `
			CREATE TABLE IF NOT EXISTS conversation_participants (
				id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
				conversation_id UUID NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
				user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				role VARCHAR(50) NOT NULL DEFAULT 'member',
				joined_at TIMESTAMP NOT NULL DEFAULT NOW(),
				unread_count INT NOT NULL DEFAULT 0 CHECK (unread_count >= 0),
				UNIQUE(conversation_id, user_id)
			);

			CREATE INDEX IF NOT EXISTS idx_participants_conversation ON conversation_participants(conversation_id);
			CREATE INDEX IF NOT EXISTS idx_participants_user ON conversation_participants(user_id);
		`,
		Down: `
			DROP TABLE IF EXISTS conversation_participants;
		`,
	},
	{
		Version: 4,
		Up: `
			CREATE TABLE IF NOT EXISTS messages (
				id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
				conversation_id UUID NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
				sender_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				message_type VARCHAR(50) NOT NULL DEFAULT 'text',
				content TEXT NOT NULL DEFAULT '',
				attachments JSONB NOT NULL DEFAULT '[]',
				status VARCHAR(50) NOT NULL DEFAULT 'sent',
				reply_to UUID REFERENCES messages(id) ON DELETE SET NULL,
				mentions UUID[] NOT NULL DEFAULT '{}',
				priority VARCHAR(50) NOT NULL DEFAULT 'normal',
				edited_at TIMESTAMP,
				deleted_at TIMESTAMP,
				created_at TIMESTAMP NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at);
			CREATE INDEX IF NOT EXISTS idx_messages_sender ON messages(sender_id);
		`,
		Down: `
			DROP TABLE IF EXISTS messages;
		`,
	},
	{
		Version: 5,
		Up: `
			CREATE TABLE IF NOT EXISTS message_reads (
				id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
				message_id UUID NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
				user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				read_at TIMESTAMP NOT NULL DEFAULT NOW(),
				UNIQUE(message_id, user_id)
			);

			CREATE INDEX IF NOT EXISTS idx_message_reads_message ON message_reads(message_id);
			CREATE INDEX IF NOT EXISTS idx_message_reads_user ON message_reads(user_id);
		`,
		Down: `
			DROP TABLE IF EXISTS message_reads;
		`,
	},
	{
		Version: 6,
		Up: `
			CREATE TABLE IF NOT EXISTS schema_migrations (
				version INT PRIMARY KEY,
				applied_at TIMESTAMP NOT NULL DEFAULT NOW()
			);
		`,
		Down: `
			DROP TABLE IF EXISTS schema_migrations;
		`,
	},
	{
		Version: 7,
		Up: `
			-- Exactly one live direct conversation per unordered participant
			-- pair. Insert conflicts on this index mean another request won
			-- the create race; the repository re-fetches the winner.
			CREATE UNIQUE INDEX IF NOT EXISTS idx_conversations_direct_key
				ON conversations(direct_key)
				WHERE type = 'direct' AND status != 'archived';
		`,
		Down: `
			DROP INDEX IF EXISTS idx_conversations_direct_key;
		`,
	},
}

// RunMigrations runs all pending migrations
func RunMigrations(db *sql.DB) error {
	// Ensure migrations table exists
	if err := ensureMigrationsTable(db); err != nil {
		return err
	}

	// Get current version
	currentVersion, err := getCurrentVersion(db)
	if err != nil {
		return err
	}

	// Run pending migrations in ascending order by version
	sorted := make([]Migration, len(Migrations))
	copy(sorted, Migrations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })

	// Run pending migrations
	for _, migration := range sorted {
		if migration.Version <= currentVersion {
			continue
		}

		fmt.Printf("Running migration %d...\n", migration.Version)

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}

		if _, err := tx.Exec(migration.Up); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to run migration %d: %w", migration.Version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES ($1)", migration.Version); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}

		fmt.Printf("Migration %d completed\n", migration.Version)
	}

	return nil
}

// RollbackLastMigration reverts the most recently applied migration.
func RollbackLastMigration(db *sql.DB) error {
	if err := ensureMigrationsTable(db); err != nil {
		return err
	}

	currentVersion, err := getCurrentVersion(db)
	if err != nil {
		return err
	}
	if currentVersion == 0 {
		return fmt.Errorf("no applied migrations to roll back")
	}

	var target *Migration
	for i := range Migrations {
		if Migrations[i].Version == currentVersion {
			target = &Migrations[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("migration %d is applied but not known", currentVersion)
	}

	fmt.Printf("Rolling back migration %d...\n", target.Version)

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if _, err := tx.Exec(target.Down); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to roll back migration %d: %w", target.Version, err)
	}

	if _, err := tx.Exec("DELETE FROM schema_migrations WHERE version = $1", target.Version); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to unrecord migration %d: %w", target.Version, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rollback of migration %d: %w", target.Version, err)
	}

	fmt.Printf("Migration %d rolled back\n", target.Version)
	return nil
}

func ensureMigrationsTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	return err
}

func getCurrentVersion(db *sql.DB) (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, err
	}
	return version, nil
}
