package database

import (
    "context"
    "database/sql"
    "fmt"
)

// Migration is one forward-only schema change, identified by a sortable id.
type Migration struct {
    ID         string
    Statements []string
}

// Migrations returns the schema history in application order.
func Migrations() []Migration {
    return []Migration{
        {
            ID: "20250901_create_users",
            Statements: []string{
                `CREATE TABLE IF NOT EXISTS users (
                    id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
                    email VARCHAR(255) NOT NULL UNIQUE,
                    password_hash VARCHAR(255) NOT NULL,
                    role ENUM('MENTEE','MENTOR','ADMIN') NOT NULL DEFAULT 'MENTEE',
                    is_active TINYINT(1) NOT NULL DEFAULT 1,
                    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
                    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
                )`,
                `CREATE TABLE IF NOT EXISTS refresh_tokens (
                    id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
                    user_id BIGINT UNSIGNED NOT NULL,
                    token_hash CHAR(64) NOT NULL UNIQUE,
                    expires_at DATETIME NOT NULL,
                    revoked_at DATETIME NULL,
                    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
                    CONSTRAINT fk_refresh_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
                )`,
            },
        },
        {
            ID: "20250902_create_packs_and_seats",
            Statements: []string{
                `CREATE TABLE IF NOT EXISTS session_packs (
                    id CHAR(36) PRIMARY KEY,
                    user_id BIGINT UNSIGNED NOT NULL,
                    mentor_id BIGINT UNSIGNED NOT NULL,
                    remaining_sessions INT NOT NULL DEFAULT 0,
                    expires_at DATETIME NOT NULL,
                    status ENUM('active','depleted','expired','canceled') NOT NULL DEFAULT 'active',
                    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
                    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
                    CONSTRAINT chk_remaining_non_negative CHECK (remaining_sessions >= 0),
                    KEY idx_packs_user (user_id)
                )`,
                `CREATE TABLE IF NOT EXISTS seats (
                    id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
                    pack_id CHAR(36) NOT NULL UNIQUE,
                    status ENUM('active','grace','released') NOT NULL DEFAULT 'active',
                    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
                    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
                    CONSTRAINT fk_seat_pack FOREIGN KEY (pack_id) REFERENCES session_packs(id)
                )`,
                `CREATE TABLE IF NOT EXISTS mentorship_sessions (
                    id CHAR(36) PRIMARY KEY,
                    pack_id CHAR(36) NOT NULL,
                    mentor_id BIGINT UNSIGNED NOT NULL,
                    mentee_id BIGINT UNSIGNED NOT NULL,
                    scheduled_at DATETIME NOT NULL,
                    status ENUM('SCHEDULED','COMPLETED','CANCELLED') NOT NULL DEFAULT 'SCHEDULED',
                    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
                    CONSTRAINT fk_session_pack FOREIGN KEY (pack_id) REFERENCES session_packs(id),
                    KEY idx_sessions_mentor_time (mentor_id, scheduled_at)
                )`,
            },
        },
        {
            ID: "20250903_create_instructors_offers_inventory",
            Statements: []string{
                `CREATE TABLE IF NOT EXISTS instructors (
                    slug VARCHAR(100) PRIMARY KEY,
                    name VARCHAR(255) NOT NULL,
                    discord_channel_id VARCHAR(32) NULL
                )`,
                `CREATE TABLE IF NOT EXISTS offers (
                    id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
                    instructor_slug VARCHAR(100) NOT NULL,
                    type ENUM('one-on-one','group') NOT NULL,
                    checkout_url VARCHAR(1024) NOT NULL,
                    active TINYINT(1) NOT NULL DEFAULT 1,
                    CONSTRAINT fk_offer_instructor FOREIGN KEY (instructor_slug) REFERENCES instructors(slug),
                    KEY idx_offers_lookup (instructor_slug, type, active)
                )`,
                `CREATE TABLE IF NOT EXISTS inventory (
                    instructor_slug VARCHAR(100) NOT NULL,
                    type ENUM('one-on-one','group') NOT NULL,
                    count INT NOT NULL DEFAULT 0,
                    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
                    PRIMARY KEY (instructor_slug, type),
                    CONSTRAINT fk_inventory_instructor FOREIGN KEY (instructor_slug) REFERENCES instructors(slug)
                )`,
            },
        },
        {
            ID: "20250904_create_waitlist",
            Statements: []string{
                `CREATE TABLE IF NOT EXISTS waitlist_entries (
                    id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
                    email VARCHAR(255) NOT NULL,
                    user_id BIGINT UNSIGNED NULL,
                    instructor_slug VARCHAR(100) NOT NULL,
                    type ENUM('one-on-one','group') NOT NULL,
                    notified TINYINT(1) NOT NULL DEFAULT 0,
                    last_notification_at DATETIME NULL,
                    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
                    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
                    UNIQUE KEY uq_waitlist_email_instructor_type (email, instructor_slug, type),
                    KEY idx_waitlist_pending (instructor_slug, type, notified, last_notification_at)
                )`,
            },
        },
    }
}

// Migrate applies every migration not yet recorded in schema_migrations.
// Each migration runs in its own transaction; MySQL commits DDL implicitly,
// so the bookkeeping row is what makes a re-run skip it.
func Migrate(ctx context.Context, db *sql.DB) ([]string, error) {
    if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
        id VARCHAR(100) PRIMARY KEY,
        applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
    )`); err != nil {
        return nil, fmt.Errorf("create schema_migrations: %w", err)
    }
    applied, err := appliedMigrations(ctx, db)
    if err != nil {
        return nil, err
    }
    var ran []string
    for _, m := range Migrations() {
        if applied[m.ID] {
            continue
        }
        if err := apply(ctx, db, m); err != nil {
            return ran, fmt.Errorf("migration %s: %w", m.ID, err)
        }
        ran = append(ran, m.ID)
    }
    return ran, nil
}

func appliedMigrations(ctx context.Context, db *sql.DB) (map[string]bool, error) {
    rows, err := db.QueryContext(ctx, `SELECT id FROM schema_migrations`)
    if err != nil {
        return nil, fmt.Errorf("list schema_migrations: %w", err)
    }
    defer rows.Close()
    out := make(map[string]bool)
    for rows.Next() {
        var id string
        if err := rows.Scan(&id); err != nil {
            return nil, err
        }
        out[id] = true
    }
    return out, rows.Err()
}

func apply(ctx context.Context, db *sql.DB, m Migration) error {
    tx, err := db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()
    for _, stmt := range m.Statements {
        if _, err := tx.ExecContext(ctx, stmt); err != nil {
            return err
        }
    }
    if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (id) VALUES (?)`, m.ID); err != nil {
        return err
    }
    if err := tx.Commit(); err != nil {
        return err
    }
    committed = true
    return nil
}
