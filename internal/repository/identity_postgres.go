package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"kadan/internal/models"

	"github.com/lib/pq"
)

type IdentityPostgres struct {
	db  *sql.DB
	now func() time.Time
}

func NewIdentityPostgres(db *sql.DB) *IdentityPostgres {
	return &IdentityPostgres{db: db, now: time.Now}
}

func (r *IdentityPostgres) GetPrimary(ctx context.Context, guildID, userID string) (*models.AccountLink, error) {
	var a models.AccountLink
	err := r.db.QueryRowContext(ctx, `
		SELECT id, guild_id, discord_user_id, member_no, nickname, is_verified, created_at, verified_at, expired_at
		FROM auth_accounts
		WHERE guild_id = $1 AND discord_user_id = $2
	`, guildID, userID).Scan(
		&a.ID, &a.GuildID, &a.DiscordUserID, &a.AccountRef, &a.Nickname,
		&a.Verified, &a.CreatedAt, &a.VerifiedAt, &a.ExpiredAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get primary account: %w", err)
	}
	return &a, nil
}

func (r *IdentityPostgres) IsPrimaryVerified(ctx context.Context, guildID, userID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM auth_accounts WHERE guild_id = $1 AND discord_user_id = $2 AND is_verified = TRUE)
	`, guildID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check primary account: %w", err)
	}
	return exists, nil
}

// SavePrimary inserts a verified primary link. The (guild_id, discord_user_id)
// unique index turns a concurrent second insert into ErrPrimaryExists.
func (r *IdentityPostgres) SavePrimary(ctx context.Context, guildID, userID, accountRef, nickname string) error {
	now := r.now()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO auth_accounts (guild_id, discord_user_id, member_no, nickname, is_verified, created_at, verified_at)
		VALUES ($1, $2, $3, $4, TRUE, $5, $5)
	`, guildID, userID, accountRef, nickname, now)
	if isUniqueViolation(err) {
		return ErrPrimaryExists
	}
	if err != nil {
		return fmt.Errorf("failed to save primary account: %w", err)
	}
	return nil
}

func (r *IdentityPostgres) UpdatePrimaryNickname(ctx context.Context, guildID, userID, nickname string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE auth_accounts SET nickname = $3
		WHERE guild_id = $1 AND discord_user_id = $2 AND is_verified = TRUE
	`, guildID, userID, nickname)
	if err != nil {
		return 0, fmt.Errorf("failed to update nickname: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows, nil
}

func (r *IdentityPostgres) ListSecondaries(ctx context.Context, guildID, userID string) ([]models.SecondarySummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT sub_number, nickname FROM auth_sub_accounts
		WHERE guild_id = $1 AND discord_user_id = $2
		ORDER BY sub_number ASC
	`, guildID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list secondary accounts: %w", err)
	}
	defer rows.Close()

	var subs []models.SecondarySummary
	for rows.Next() {
		var s models.SecondarySummary
		if err := rows.Scan(&s.SubNumber, &s.Nickname); err != nil {
			return nil, fmt.Errorf("failed to scan secondary account: %w", err)
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

func (r *IdentityPostgres) ListSecondaryAccountRefs(ctx context.Context, guildID, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT member_no FROM auth_sub_accounts
		WHERE guild_id = $1 AND discord_user_id = $2 AND member_no <> ''
		ORDER BY sub_number ASC
	`, guildID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list secondary member numbers: %w", err)
	}
	defer rows.Close()

	var refs []string
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

func (r *IdentityPostgres) HasSecondaries(ctx context.Context, guildID, userID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM auth_sub_accounts WHERE guild_id = $1 AND discord_user_id = $2)
	`, guildID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check secondary accounts: %w", err)
	}
	return exists, nil
}

// AddSecondary appends a secondary as max(sub_number)+1 under a per-user
// advisory lock. limit <= 0 disables the count check.
func (r *IdentityPostgres) AddSecondary(ctx context.Context, guildID, userID, accountRef, nickname string, limit int) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := lockUser(ctx, tx, guildID, userID); err != nil {
		return 0, err
	}

	var last, count int
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(sub_number), 0), COUNT(*) FROM auth_sub_accounts
		WHERE guild_id = $1 AND discord_user_id = $2
	`, guildID, userID).Scan(&last, &count)
	if err != nil {
		return 0, fmt.Errorf("failed to read secondary numbering: %w", err)
	}
	if limit > 0 && count >= limit {
		return 0, ErrSecondaryLimit
	}

	next := last + 1
	_, err = tx.ExecContext(ctx, `
		INSERT INTO auth_sub_accounts (guild_id, discord_user_id, sub_number, member_no, nickname, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, guildID, userID, next, accountRef, nickname, r.now())
	if err != nil {
		return 0, fmt.Errorf("failed to insert secondary account: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return next, nil
}

// RemoveSecondary archives one secondary, deletes it and closes the gap in
// the numbering. Returns nil when the user has no such secondary.
func (r *IdentityPostgres) RemoveSecondary(ctx context.Context, guildID, userID string, subNumber int) (*string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := lockUser(ctx, tx, guildID, userID); err != nil {
		return nil, err
	}

	var s models.SecondaryAccountLink
	err = tx.QueryRowContext(ctx, `
		SELECT id, guild_id, discord_user_id, sub_number, member_no, nickname, created_at
		FROM auth_sub_accounts
		WHERE guild_id = $1 AND discord_user_id = $2 AND sub_number = $3
	`, guildID, userID, subNumber).Scan(
		&s.ID, &s.GuildID, &s.DiscordUserID, &s.SubNumber, &s.AccountRef, &s.Nickname, &s.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get secondary account: %w", err)
	}

	if err := archiveSecondary(ctx, tx, s, r.now()); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM auth_sub_accounts WHERE id = $1`, s.ID); err != nil {
		return nil, fmt.Errorf("failed to delete secondary account: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE auth_sub_accounts SET sub_number = sub_number - 1
		WHERE guild_id = $1 AND discord_user_id = $2 AND sub_number > $3
	`, guildID, userID, subNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to renumber secondary accounts: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &s.Nickname, nil
}

// RemoveAllForUser archives and deletes the primary and every secondary of a
// user in one transaction.
func (r *IdentityPostgres) RemoveAllForUser(ctx context.Context, guildID, userID string) (models.RemovedAccounts, error) {
	var removed models.RemovedAccounts

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return removed, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := lockUser(ctx, tx, guildID, userID); err != nil {
		return removed, err
	}
	now := r.now()

	var a models.AccountLink
	err = tx.QueryRowContext(ctx, `
		SELECT id, guild_id, discord_user_id, member_no, nickname, is_verified, created_at, verified_at, expired_at
		FROM auth_accounts
		WHERE guild_id = $1 AND discord_user_id = $2
	`, guildID, userID).Scan(
		&a.ID, &a.GuildID, &a.DiscordUserID, &a.AccountRef, &a.Nickname,
		&a.Verified, &a.CreatedAt, &a.VerifiedAt, &a.ExpiredAt,
	)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return removed, fmt.Errorf("failed to get primary account: %w", err)
	default:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO deleted_auth_accounts
				(id, guild_id, discord_user_id, member_no, nickname, is_verified, created_at, verified_at, expired_at, deleted_at, retain_until)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, a.ID, a.GuildID, a.DiscordUserID, a.AccountRef, a.Nickname, a.Verified,
			a.CreatedAt, a.VerifiedAt, a.ExpiredAt, now, now.Add(models.RetentionPeriod))
		if err != nil {
			return removed, fmt.Errorf("failed to archive primary account: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM auth_accounts WHERE id = $1`, a.ID); err != nil {
			return removed, fmt.Errorf("failed to delete primary account: %w", err)
		}
		nick := a.Nickname
		removed.PrimaryNickname = &nick
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT id, guild_id, discord_user_id, sub_number, member_no, nickname, created_at
		FROM auth_sub_accounts
		WHERE guild_id = $1 AND discord_user_id = $2
		ORDER BY sub_number ASC
	`, guildID, userID)
	if err != nil {
		return removed, fmt.Errorf("failed to list secondary accounts: %w", err)
	}
	var subs []models.SecondaryAccountLink
	for rows.Next() {
		var s models.SecondaryAccountLink
		if err := rows.Scan(&s.ID, &s.GuildID, &s.DiscordUserID, &s.SubNumber, &s.AccountRef, &s.Nickname, &s.CreatedAt); err != nil {
			rows.Close()
			return removed, fmt.Errorf("failed to scan secondary account: %w", err)
		}
		subs = append(subs, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return removed, err
	}

	for _, s := range subs {
		if err := archiveSecondary(ctx, tx, s, now); err != nil {
			return removed, err
		}
		removed.Secondaries = append(removed.Secondaries, models.SecondarySummary{SubNumber: s.SubNumber, Nickname: s.Nickname})
	}
	if len(subs) > 0 {
		_, err = tx.ExecContext(ctx, `DELETE FROM auth_sub_accounts WHERE guild_id = $1 AND discord_user_id = $2`, guildID, userID)
		if err != nil {
			return removed, fmt.Errorf("failed to delete secondary accounts: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return models.RemovedAccounts{}, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return removed, nil
}

func (r *IdentityPostgres) FindDuplicates(ctx context.Context, guildID, userID, accountRef string, nicknames []string) ([]models.DuplicateMatch, error) {
	return r.queryDuplicates(ctx, `
		SELECT 'primary', discord_user_id, member_no, nickname FROM auth_accounts
		WHERE guild_id = $1 AND (discord_user_id = $2 OR member_no = $3 OR nickname = ANY($4))
		UNION ALL
		SELECT 'secondary', discord_user_id, member_no, nickname FROM auth_sub_accounts
		WHERE guild_id = $1 AND (discord_user_id = $2 OR member_no = $3 OR nickname = ANY($4))
	`, guildID, userID, accountRef, pq.Array(nicknames))
}

func (r *IdentityPostgres) FindAccountRefDuplicates(ctx context.Context, guildID, accountRef string) ([]models.DuplicateMatch, error) {
	return r.queryDuplicates(ctx, `
		SELECT 'primary', discord_user_id, member_no, nickname FROM auth_accounts
		WHERE guild_id = $1 AND member_no = $2
		UNION ALL
		SELECT 'secondary', discord_user_id, member_no, nickname FROM auth_sub_accounts
		WHERE guild_id = $1 AND member_no = $2
	`, guildID, accountRef)
}

func (r *IdentityPostgres) queryDuplicates(ctx context.Context, query string, args ...interface{}) ([]models.DuplicateMatch, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to check duplicates: %w", err)
	}
	defer rows.Close()

	var matches []models.DuplicateMatch
	for rows.Next() {
		var m models.DuplicateMatch
		var table string
		if err := rows.Scan(&table, &m.DiscordUserID, &m.AccountRef, &m.Nickname); err != nil {
			return nil, fmt.Errorf("failed to scan duplicate: %w", err)
		}
		m.Table = models.AccountTable(table)
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// LinkedAttributes collects every attribute stored next to the given one in
// live and archived account rows.
func (r *IdentityPostgres) LinkedAttributes(ctx context.Context, guildID string, candidate models.BlockCandidate) ([]models.BlockCandidate, error) {
	var column string
	switch candidate.Kind {
	case models.AttrDiscordID:
		column = "discord_user_id"
	case models.AttrAccountRef:
		column = "member_no"
	case models.AttrNickname:
		column = "nickname"
	default:
		return nil, fmt.Errorf("unknown attribute kind %q", candidate.Kind)
	}

	query := fmt.Sprintf(`
		SELECT discord_user_id, member_no, nickname FROM auth_accounts WHERE guild_id = $1 AND %[1]s = $2
		UNION ALL
		SELECT discord_user_id, member_no, nickname FROM deleted_auth_accounts WHERE guild_id = $1 AND %[1]s = $2
		UNION ALL
		SELECT discord_user_id, member_no, nickname FROM auth_sub_accounts WHERE guild_id = $1 AND %[1]s = $2
		UNION ALL
		SELECT discord_user_id, member_no, nickname FROM deleted_auth_sub_accounts WHERE guild_id = $1 AND %[1]s = $2
	`, column)

	rows, err := r.db.QueryContext(ctx, query, guildID, candidate.Value)
	if err != nil {
		return nil, fmt.Errorf("failed to collect linked attributes: %w", err)
	}
	defer rows.Close()

	out := []models.BlockCandidate{candidate}
	for rows.Next() {
		var did, ref, nick string
		if err := rows.Scan(&did, &ref, &nick); err != nil {
			return nil, fmt.Errorf("failed to scan linked attributes: %w", err)
		}
		out = append(out,
			models.BlockCandidate{Kind: models.AttrDiscordID, Value: did},
			models.BlockCandidate{Kind: models.AttrAccountRef, Value: ref},
			models.BlockCandidate{Kind: models.AttrNickname, Value: nick},
		)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return models.UniqueCandidates(out), nil
}

func (r *IdentityPostgres) ListUserIDs(ctx context.Context, guildID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT discord_user_id FROM auth_accounts WHERE guild_id = $1
		UNION
		SELECT discord_user_id FROM auth_sub_accounts WHERE guild_id = $1
	`, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *IdentityPostgres) ListAccounts(ctx context.Context, guildID string) ([]models.AccountLink, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, guild_id, discord_user_id, member_no, nickname, is_verified, created_at, verified_at, expired_at
		FROM auth_accounts WHERE guild_id = $1
		ORDER BY created_at ASC
	`, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []models.AccountLink
	for rows.Next() {
		var a models.AccountLink
		if err := rows.Scan(&a.ID, &a.GuildID, &a.DiscordUserID, &a.AccountRef, &a.Nickname,
			&a.Verified, &a.CreatedAt, &a.VerifiedAt, &a.ExpiredAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *IdentityPostgres) ListAllSecondaries(ctx context.Context, guildID string) ([]models.SecondaryAccountLink, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, guild_id, discord_user_id, sub_number, member_no, nickname, created_at
		FROM auth_sub_accounts WHERE guild_id = $1
		ORDER BY discord_user_id, sub_number
	`, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to list secondary accounts: %w", err)
	}
	defer rows.Close()

	var subs []models.SecondaryAccountLink
	for rows.Next() {
		var s models.SecondaryAccountLink
		if err := rows.Scan(&s.ID, &s.GuildID, &s.DiscordUserID, &s.SubNumber, &s.AccountRef, &s.Nickname, &s.CreatedAt); err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

func lockUser(ctx context.Context, tx *sql.Tx, guildID, userID string) error {
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1), hashtext($2))`, guildID, userID); err != nil {
		return fmt.Errorf("failed to lock user rows: %w", err)
	}
	return nil
}

func archiveSecondary(ctx context.Context, tx *sql.Tx, s models.SecondaryAccountLink, now time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO deleted_auth_sub_accounts
			(id, guild_id, discord_user_id, sub_number, member_no, nickname, created_at, deleted_at, retain_until)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, s.ID, s.GuildID, s.DiscordUserID, s.SubNumber, s.AccountRef, s.Nickname,
		s.CreatedAt, now, now.Add(models.RetentionPeriod))
	if err != nil {
		return fmt.Errorf("failed to archive secondary account: %w", err)
	}
	return nil
}
