package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"kadan/internal/models"
)

type SettingsPostgres struct {
	db  *sql.DB
	now func() time.Time
}

func NewSettingsPostgres(db *sql.DB) *SettingsPostgres {
	return &SettingsPostgres{db: db, now: time.Now}
}

// GetAll returns every guild's settings keyed by guild id, with the
// registered game server exposed under the "server" key.
func (r *SettingsPostgres) GetAll(ctx context.Context) (map[string]map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT guild_id, 'server', server FROM guilds
		UNION ALL
		SELECT guild_id, key, value FROM settings
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	defer rows.Close()

	all := make(map[string]map[string]string)
	for rows.Next() {
		var guildID, key, value string
		if err := rows.Scan(&guildID, &key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		if all[guildID] == nil {
			all[guildID] = make(map[string]string)
		}
		all[guildID][key] = value
	}
	return all, rows.Err()
}

// Set upserts one setting and appends a change log row in the same
// transaction. It returns the previous value, nil when there was none.
func (r *SettingsPostgres) Set(ctx context.Context, guildID, key, value, changedBy, reason string) (*string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var old *string
	var prev string
	err = tx.QueryRowContext(ctx, `
		SELECT value FROM settings WHERE guild_id = $1 AND key = $2 FOR UPDATE
	`, guildID, key).Scan(&prev)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("failed to read setting: %w", err)
	default:
		old = &prev
	}

	now := r.now()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO settings (guild_id, key, value, changed_by, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (guild_id, key) DO UPDATE
		SET value = EXCLUDED.value, changed_by = EXCLUDED.changed_by, updated_at = EXCLUDED.updated_at
	`, guildID, key, value, changedBy, now)
	if err != nil {
		return nil, fmt.Errorf("failed to save setting: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO setting_logs (guild_id, key, old_value, new_value, changed_by, reason, changed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, guildID, key, old, value, changedBy, reason, now)
	if err != nil {
		return nil, fmt.Errorf("failed to log setting change: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return old, nil
}

func (r *SettingsPostgres) RegisterGuild(ctx context.Context, guildID, server, registeredBy string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO guilds (guild_id, server, registered_by, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (guild_id) DO UPDATE
		SET server = EXCLUDED.server, registered_by = EXCLUDED.registered_by
	`, guildID, server, registeredBy, r.now())
	if err != nil {
		return fmt.Errorf("failed to register guild: %w", err)
	}
	return nil
}

func (r *SettingsPostgres) GetGuild(ctx context.Context, guildID string) (*models.Guild, error) {
	var g models.Guild
	err := r.db.QueryRowContext(ctx, `
		SELECT guild_id, server, registered_by, created_at FROM guilds WHERE guild_id = $1
	`, guildID).Scan(&g.GuildID, &g.Server, &g.RegisteredBy, &g.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get guild: %w", err)
	}
	return &g, nil
}
