package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// migrations contains all database migrations in order.
// Each migration has a version key and SQL to execute.
var migrations = []struct {
	Version string
	SQL     string
}{
	{
		Version: "000001_create_accounts",
		SQL: `
			CREATE TABLE IF NOT EXISTS accounts (
				id              UUID         PRIMARY KEY,
				username        VARCHAR(150) NOT NULL UNIQUE,
				email           VARCHAR(254) NOT NULL UNIQUE,
				password_hash   VARCHAR(255) NOT NULL,
				bio             TEXT         NOT NULL DEFAULT '',
				theme           VARCHAR(10)  NOT NULL DEFAULT 'LIGHT',
				is_superuser    BOOLEAN      NOT NULL DEFAULT FALSE,
				is_uploader     BOOLEAN      NOT NULL DEFAULT FALSE,
				is_private      BOOLEAN      NOT NULL DEFAULT FALSE,
				download_policy VARCHAR(16)  NOT NULL DEFAULT 'OPEN',
				created_at      TIMESTAMPTZ  NOT NULL DEFAULT NOW()
			);
			CREATE TABLE IF NOT EXISTS allowed_downloaders (
				owner_id   UUID NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
				account_id UUID NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
				PRIMARY KEY (owner_id, account_id)
			);
			CREATE TABLE IF NOT EXISTS follows (
				follower_id UUID        NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
				followed_id UUID        NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
				accepted    BOOLEAN     NOT NULL DEFAULT TRUE,
				created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				PRIMARY KEY (follower_id, followed_id),
				CHECK (follower_id <> followed_id)
			);
			CREATE INDEX IF NOT EXISTS idx_follows_followed ON follows(followed_id);
		`,
	},
	{
		Version: "000002_create_content",
		SQL: `
			CREATE TABLE IF NOT EXISTS folders (
				id             UUID         PRIMARY KEY,
				owner_id       UUID         NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
				parent_id      UUID         REFERENCES folders(id) ON DELETE CASCADE,
				name           VARCHAR(255) NOT NULL,
				cover_media_id UUID,
				is_private     BOOLEAN      NOT NULL DEFAULT FALSE,
				is_hidden      BOOLEAN      NOT NULL DEFAULT FALSE,
				created_at     TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
				updated_at     TIMESTAMPTZ  NOT NULL DEFAULT NOW()
			);
			CREATE UNIQUE INDEX IF NOT EXISTS idx_folders_owner_parent_name ON folders(
				owner_id, COALESCE(parent_id, '00000000-0000-0000-0000-000000000000'::uuid), name
			);
			CREATE TABLE IF NOT EXISTS media_items (
				id              UUID         PRIMARY KEY,
				owner_id        UUID         NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
				folder_id       UUID         REFERENCES folders(id) ON DELETE SET NULL,
				title           VARCHAR(255) NOT NULL DEFAULT '',
				description     TEXT         NOT NULL DEFAULT '',
				storage_key     VARCHAR(512) NOT NULL,
				original_name   VARCHAR(255) NOT NULL,
				media_type      VARCHAR(20)  NOT NULL,
				size            BIGINT       NOT NULL DEFAULT 0,
				views_count     INTEGER      NOT NULL DEFAULT 0,
				downloads_count INTEGER      NOT NULL DEFAULT 0,
				is_private      BOOLEAN      NOT NULL DEFAULT FALSE,
				is_hidden       BOOLEAN      NOT NULL DEFAULT FALSE,
				created_at      TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
				updated_at      TIMESTAMPTZ  NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_media_owner ON media_items(owner_id);
			CREATE INDEX IF NOT EXISTS idx_media_folder ON media_items(folder_id);
			CREATE INDEX IF NOT EXISTS idx_media_created_at ON media_items(created_at);
			ALTER TABLE folders DROP CONSTRAINT IF EXISTS folders_cover_media_fk;
			ALTER TABLE folders ADD CONSTRAINT folders_cover_media_fk
				FOREIGN KEY (cover_media_id) REFERENCES media_items(id) ON DELETE SET NULL;
		`,
	},
	{
		Version: "000003_create_activity",
		SQL: `
			CREATE TABLE IF NOT EXISTS download_records (
				id         UUID        PRIMARY KEY,
				account_id UUID        NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
				media_id   UUID        NOT NULL REFERENCES media_items(id) ON DELETE CASCADE,
				media_type VARCHAR(20) NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_downloads_account_type_created
				ON download_records(account_id, media_type, created_at);
			CREATE TABLE IF NOT EXISTS media_views (
				account_id UUID        NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
				media_id   UUID        NOT NULL REFERENCES media_items(id) ON DELETE CASCADE,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				PRIMARY KEY (account_id, media_id)
			);
			CREATE TABLE IF NOT EXISTS likes (
				account_id UUID        NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
				media_id   UUID        NOT NULL REFERENCES media_items(id) ON DELETE CASCADE,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				PRIMARY KEY (account_id, media_id)
			);
			CREATE INDEX IF NOT EXISTS idx_likes_media ON likes(media_id);
			CREATE TABLE IF NOT EXISTS favorites (
				account_id UUID        NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
				media_id   UUID        NOT NULL REFERENCES media_items(id) ON DELETE CASCADE,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				PRIMARY KEY (account_id, media_id)
			);
			CREATE TABLE IF NOT EXISTS reviews (
				id         UUID        PRIMARY KEY,
				account_id UUID        NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
				media_id   UUID        NOT NULL REFERENCES media_items(id) ON DELETE CASCADE,
				rating     SMALLINT    CHECK (rating BETWEEN 1 AND 5),
				content    TEXT        NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_reviews_media ON reviews(media_id);
			CREATE TABLE IF NOT EXISTS notifications (
				id           UUID         PRIMARY KEY,
				recipient_id UUID         NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
				sender_id    UUID         REFERENCES accounts(id) ON DELETE CASCADE,
				type         VARCHAR(20)  NOT NULL,
				message      TEXT         NOT NULL,
				target_url   VARCHAR(255) NOT NULL DEFAULT '',
				is_read      BOOLEAN      NOT NULL DEFAULT FALSE,
				created_at   TIMESTAMPTZ  NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_notifications_recipient ON notifications(recipient_id, created_at);
		`,
	},
	{
		Version: "000004_create_moderation",
		SQL: `
			CREATE TABLE IF NOT EXISTS upload_requests (
				id           UUID        PRIMARY KEY,
				account_id   UUID        NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
				message      TEXT        NOT NULL,
				is_approved  BOOLEAN     NOT NULL DEFAULT FALSE,
				processed_at TIMESTAMPTZ,
				created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE TABLE IF NOT EXISTS reported_problems (
				id          UUID        PRIMARY KEY,
				account_id  UUID        NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
				message     TEXT        NOT NULL,
				is_resolved BOOLEAN     NOT NULL DEFAULT FALSE,
				resolved_at TIMESTAMPTZ,
				created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
		`,
	},
}

// DB wraps a pgxpool connection pool and provides health checks and migrations.
type DB struct {
	Pool *pgxpool.Pool
}

// New creates a new database connection pool.
func New(ctx context.Context, databaseURL string) (*DB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("connected to database")
	return &DB{Pool: pool}, nil
}

// RunMigrations applies all pending database migrations in order.
func (db *DB) RunMigrations(ctx context.Context) error {
	_, err := db.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	for _, m := range migrations {
		var exists bool
		err := db.Pool.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)",
			m.Version,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check migration status for %s: %w", m.Version, err)
		}
		if exists {
			continue
		}

		tx, err := db.Pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %s: %w", m.Version, err)
		}

		if _, err := tx.Exec(ctx, m.SQL); err != nil {
			tx.Rollback(ctx)
			return fmt.Errorf("failed to execute migration %s: %w", m.Version, err)
		}

		if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", m.Version); err != nil {
			tx.Rollback(ctx)
			return fmt.Errorf("failed to record migration %s: %w", m.Version, err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("failed to commit migration %s: %w", m.Version, err)
		}

		slog.Info("applied migration", "version", m.Version)
	}

	return nil
}

// HealthCheck verifies the database connection is alive.
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// Close shuts down the connection pool.
func (db *DB) Close() {
	db.Pool.Close()
}
