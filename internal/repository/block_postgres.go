package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"kadan/internal/models"

	"github.com/lib/pq"
)

type BlockPostgres struct {
	db  *sql.DB
	now func() time.Time
}

func NewBlockPostgres(db *sql.DB) *BlockPostgres {
	return &BlockPostgres{db: db, now: time.Now}
}

// Block inserts an active row for every candidate that is not already
// actively blocked. The partial unique index decides what "already" means,
// so concurrent calls never produce two active rows for one tuple.
func (r *BlockPostgres) Block(ctx context.Context, guildID string, candidates []models.BlockCandidate, reason, blockedBy string) ([]models.BlockCandidate, []models.BlockCandidate, error) {
	candidates = models.UniqueCandidates(candidates)
	if len(candidates) == 0 {
		return nil, nil, nil
	}
	kinds, values := splitCandidates(candidates)

	rows, err := r.db.QueryContext(ctx, `
		INSERT INTO blocked_users (guild_id, data_type, value, reason, blocked_by, created_at)
		SELECT $1, c.data_type, c.value, $4, $5, $6
		FROM unnest($2::text[], $3::text[]) AS c(data_type, value)
		ON CONFLICT (guild_id, data_type, value) WHERE unblocked_at IS NULL DO NOTHING
		RETURNING data_type, value
	`, guildID, pq.Array(kinds), pq.Array(values), reason, blockedBy, r.now())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to block attributes: %w", err)
	}
	defer rows.Close()

	inserted := make(map[models.BlockCandidate]struct{}, len(candidates))
	for rows.Next() {
		var c models.BlockCandidate
		var kind string
		if err := rows.Scan(&kind, &c.Value); err != nil {
			return nil, nil, fmt.Errorf("failed to scan blocked attribute: %w", err)
		}
		c.Kind = models.AttributeKind(kind)
		inserted[c] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	var newly, already []models.BlockCandidate
	for _, c := range candidates {
		if _, ok := inserted[c]; ok {
			newly = append(newly, c)
		} else {
			already = append(already, c)
		}
	}
	return newly, already, nil
}

func (r *BlockPostgres) IsAnyBlocked(ctx context.Context, guildID string, candidates []models.BlockCandidate) ([]models.BlockedAttribute, error) {
	candidates = models.UniqueCandidates(candidates)
	if len(candidates) == 0 {
		return nil, nil
	}
	kinds, values := splitCandidates(candidates)

	return r.query(ctx, `
		SELECT id, guild_id, data_type, value, reason, blocked_by, created_at, unblocked_at, unblocked_by
		FROM blocked_users
		WHERE guild_id = $1 AND unblocked_at IS NULL
		  AND (data_type, value) IN (SELECT * FROM unnest($2::text[], $3::text[]))
		ORDER BY id
	`, guildID, pq.Array(kinds), pq.Array(values))
}

// Unblock closes the given rows. Rows that are already closed are left alone.
func (r *BlockPostgres) Unblock(ctx context.Context, entries []models.BlockedAttribute, unblockedBy string) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	ids := make([]int64, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, int64(e.ID))
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE blocked_users SET unblocked_at = $2, unblocked_by = $3
		WHERE id = ANY($1) AND unblocked_at IS NULL
	`, pq.Array(ids), r.now(), unblockedBy)
	if err != nil {
		return 0, fmt.Errorf("failed to unblock attributes: %w", err)
	}
	n, _ := result.RowsAffected()
	return int(n), nil
}

func (r *BlockPostgres) GetByIDs(ctx context.Context, ids []int) ([]models.BlockedAttribute, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	arr := make([]int64, 0, len(ids))
	for _, id := range ids {
		arr = append(arr, int64(id))
	}
	return r.query(ctx, `
		SELECT id, guild_id, data_type, value, reason, blocked_by, created_at, unblocked_at, unblocked_by
		FROM blocked_users
		WHERE id = ANY($1)
		ORDER BY id
	`, pq.Array(arr))
}

func (r *BlockPostgres) ListActive(ctx context.Context, guildID string) ([]models.BlockedAttribute, error) {
	return r.query(ctx, `
		SELECT id, guild_id, data_type, value, reason, blocked_by, created_at, unblocked_at, unblocked_by
		FROM blocked_users
		WHERE guild_id = $1 AND unblocked_at IS NULL
		ORDER BY created_at, id
	`, guildID)
}

func (r *BlockPostgres) query(ctx context.Context, query string, args ...interface{}) ([]models.BlockedAttribute, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query blocked attributes: %w", err)
	}
	defer rows.Close()

	var out []models.BlockedAttribute
	for rows.Next() {
		var b models.BlockedAttribute
		var kind string
		var unblockedAt sql.NullTime
		var unblockedBy sql.NullString
		if err := rows.Scan(&b.ID, &b.GuildID, &kind, &b.Value, &b.Reason, &b.BlockedBy,
			&b.CreatedAt, &unblockedAt, &unblockedBy); err != nil {
			return nil, fmt.Errorf("failed to scan blocked attribute: %w", err)
		}
		b.Kind = models.AttributeKind(kind)
		if unblockedAt.Valid {
			t := unblockedAt.Time
			b.UnblockedAt = &t
		}
		if unblockedBy.Valid {
			s := unblockedBy.String
			b.UnblockedBy = &s
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func splitCandidates(candidates []models.BlockCandidate) ([]string, []string) {
	kinds := make([]string, len(candidates))
	values := make([]string, len(candidates))
	for i, c := range candidates {
		kinds[i] = string(c.Kind)
		values[i] = c.Value
	}
	return kinds, values
}
