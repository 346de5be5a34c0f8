package application

import (
	"context"

	"kadan/internal/models"
	"kadan/internal/repository"
	"kadan/pkg/sheets"
)

type Logger interface {
	Error(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Info(format string, v ...interface{})
	Debug(format string, v ...interface{})
}

// ProfileResolver talks to the game's profile site and open API.
type ProfileResolver interface {
	ResolveAccountRef(ctx context.Context, accountRef string) (string, error)
	CurrentMainCharacter(ctx context.Context, externalID string) (string, error)
	Roster(ctx context.Context, characterName string) ([]models.Character, error)
	LookupRosterByNickname(ctx context.Context, nickname string) ([]models.Character, error)
}

// SettingsProvider is the per-guild key/value lookup. Values are served
// from a snapshot that is at most SETTINGS_TTL old, and reloaded right after Set.
type SettingsProvider interface {
	Get(ctx context.Context, guildID, key string) (string, bool, error)
	Refresh(ctx context.Context) error
	Set(ctx context.Context, guildID, key, value, changedBy string) error
}

// Notifier receives audit events. Delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, ev models.Event) error
}

// DisputeOpener opens a dispute ticket for a blocked identity.
type DisputeOpener interface {
	OpenDispute(ctx context.Context, d models.Dispute) error
}

// MemberManager mutates guild members: roles, display names, removal.
type MemberManager interface {
	GrantRole(ctx context.Context, guildID, userID, roleID string) error
	RevokeRole(ctx context.Context, guildID, userID, roleID string) error
	SetNickname(ctx context.Context, guildID, userID, nickname string) error
	RemoveMember(ctx context.Context, guildID, userID string, ban bool, reason string) error
}

type Collaborators struct {
	Resolver ProfileResolver
	Members  MemberManager
	Disputes DisputeOpener
	Notifier Notifier
	Sheets   sheets.Client
}

type Options struct {
	Session          SessionOptions
	BlocklistSheetID string
	SheetOwnerEmail  string
}

type Service struct {
	Verification VerificationService
	Accounts     AccountService
	Blocks       BlockService
	Settings     SettingsService
	Reports      ReportService
	Actor        *ActorID
}

func NewService(repos *repository.Repository, settings SettingsService, deps Collaborators, opts Options, logger Logger) *Service {
	actor := &ActorID{}
	accounts := NewAccountServiceImpl(repos.Identity, settings, deps.Resolver, deps.Members, deps.Notifier, logger)
	blocks := NewBlockServiceImpl(repos.Block, repos.Identity, accounts, deps.Resolver, deps.Members, deps.Notifier, logger)
	engine := NewVerificationEngine(EngineDeps{
		Resolver:   deps.Resolver,
		Identity:   repos.Identity,
		Blocks:     repos.Block,
		Duplicates: NewDuplicateResolver(repos.Identity, repos.Block),
		Settings:   settings,
		Members:    deps.Members,
		Disputes:   deps.Disputes,
		Notifier:   deps.Notifier,
		Actor:      actor,
	}, NewSessionStore(opts.Session), logger)

	return &Service{
		Verification: engine,
		Accounts:     accounts,
		Blocks:       blocks,
		Settings:     settings,
		Reports:      NewReportServiceImpl(repos.Identity, repos.Block, deps.Sheets, opts.BlocklistSheetID, opts.SheetOwnerEmail, logger),
		Actor:        actor,
	}
}
