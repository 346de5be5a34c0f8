package repository

import (
	"context"
	"database/sql"
	"errors"

	"kadan/internal/models"

	"github.com/lib/pq"
)

var (
	ErrPrimaryExists  = errors.New("primary account already registered")
	ErrSecondaryLimit = errors.New("secondary account limit reached")
	ErrNotFound       = errors.New("not found")
)

const uniqueViolation = "23505"

type Identity interface {
	GetPrimary(ctx context.Context, guildID, userID string) (*models.AccountLink, error)
	IsPrimaryVerified(ctx context.Context, guildID, userID string) (bool, error)
	SavePrimary(ctx context.Context, guildID, userID, accountRef, nickname string) error
	UpdatePrimaryNickname(ctx context.Context, guildID, userID, nickname string) (int64, error)

	ListSecondaries(ctx context.Context, guildID, userID string) ([]models.SecondarySummary, error)
	ListSecondaryAccountRefs(ctx context.Context, guildID, userID string) ([]string, error)
	HasSecondaries(ctx context.Context, guildID, userID string) (bool, error)
	AddSecondary(ctx context.Context, guildID, userID, accountRef, nickname string, limit int) (int, error)
	RemoveSecondary(ctx context.Context, guildID, userID string, subNumber int) (*string, error)
	RemoveAllForUser(ctx context.Context, guildID, userID string) (models.RemovedAccounts, error)

	FindDuplicates(ctx context.Context, guildID, userID, accountRef string, nicknames []string) ([]models.DuplicateMatch, error)
	FindAccountRefDuplicates(ctx context.Context, guildID, accountRef string) ([]models.DuplicateMatch, error)
	LinkedAttributes(ctx context.Context, guildID string, candidate models.BlockCandidate) ([]models.BlockCandidate, error)

	ListUserIDs(ctx context.Context, guildID string) ([]string, error)
	ListAccounts(ctx context.Context, guildID string) ([]models.AccountLink, error)
	ListAllSecondaries(ctx context.Context, guildID string) ([]models.SecondaryAccountLink, error)
}

type Block interface {
	Block(ctx context.Context, guildID string, candidates []models.BlockCandidate, reason, blockedBy string) (newly, already []models.BlockCandidate, err error)
	IsAnyBlocked(ctx context.Context, guildID string, candidates []models.BlockCandidate) ([]models.BlockedAttribute, error)
	Unblock(ctx context.Context, entries []models.BlockedAttribute, unblockedBy string) (int, error)
	GetByIDs(ctx context.Context, ids []int) ([]models.BlockedAttribute, error)
	ListActive(ctx context.Context, guildID string) ([]models.BlockedAttribute, error)
}

type Settings interface {
	GetAll(ctx context.Context) (map[string]map[string]string, error)
	Set(ctx context.Context, guildID, key, value, changedBy, reason string) (*string, error)
	RegisterGuild(ctx context.Context, guildID, server, registeredBy string) error
	GetGuild(ctx context.Context, guildID string) (*models.Guild, error)
}

type Repository struct {
	Identity
	Block
	Settings
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		Identity: NewIdentityPostgres(db),
		Block:    NewBlockPostgres(db),
		Settings: NewSettingsPostgres(db),
		db:       db,
	}
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
