package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"kadan/internal/models"
	"kadan/internal/repository"
)

type RemovalAction string

const (
	RemovalNone RemovalAction = "none"
	RemovalKick RemovalAction = "kick"
	RemovalBan  RemovalAction = "ban"
)

// clusterDepth bounds how many times linked attributes are followed.
const clusterDepth = 2

type BlockService interface {
	BlockUser(ctx context.Context, req BlockRequest) (*BlockResult, error)
	UnblockByIDs(ctx context.Context, guildID string, ids []int, actorID string) ([]models.BlockedAttribute, error)
	Lookup(ctx context.Context, guildID string, candidates []models.BlockCandidate) ([]models.BlockedAttribute, error)
	ListActive(ctx context.Context, guildID string) ([]models.BlockedAttribute, error)
	Cluster(ctx context.Context, guildID string, seed models.BlockCandidate) ([]models.BlockCandidate, error)
}

type BlockRequest struct {
	GuildID string
	Kind    models.AttributeKind
	Value   string
	Reason  string
	ActorID string
	Removal RemovalAction
}

type BlockResult struct {
	Newly         []models.BlockCandidate
	Already       []models.BlockCandidate
	AffectedUsers []string
}

type BlockServiceImpl struct {
	blocks   repository.Block
	identity repository.Identity
	accounts AccountService
	resolver ProfileResolver
	members  MemberManager
	notifier Notifier
	logger   Logger
	now      func() time.Time
}

func NewBlockServiceImpl(blocks repository.Block, identity repository.Identity, accounts AccountService, resolver ProfileResolver, members MemberManager, notifier Notifier, logger Logger) *BlockServiceImpl {
	return &BlockServiceImpl{
		blocks:   blocks,
		identity: identity,
		accounts: accounts,
		resolver: resolver,
		members:  members,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// BlockUser blocks the whole identity cluster around one attribute. When the
// call blocks anything new, every platform id in the cluster loses its
// records and roles, including ids that were already blocked.
func (s *BlockServiceImpl) BlockUser(ctx context.Context, req BlockRequest) (*BlockResult, error) {
	req.Value = strings.TrimSpace(req.Value)
	if !req.Kind.Valid() || req.Value == "" {
		return nil, fmt.Errorf("invalid block target %q=%q", req.Kind, req.Value)
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "관리자 차단"
	}

	cluster, err := s.Cluster(ctx, req.GuildID, models.BlockCandidate{Kind: req.Kind, Value: req.Value})
	if err != nil {
		return nil, err
	}

	newly, already, err := s.blocks.Block(ctx, req.GuildID, cluster, reason, req.ActorID)
	if err != nil {
		return nil, err
	}
	result := &BlockResult{Newly: newly, Already: already}

	if len(newly) == 0 {
		cluster = nil
	}
	for _, c := range cluster {
		if c.Kind != models.AttrDiscordID {
			continue
		}
		result.AffectedUsers = append(result.AffectedUsers, c.Value)
		if _, err := s.accounts.RemoveAll(ctx, req.GuildID, c.Value, CauseBlocked, req.ActorID); err != nil {
			s.logger.Error("remove accounts of blocked user %s failed: %v", c.Value, err)
		}
		if s.members != nil && req.Removal != "" && req.Removal != RemovalNone {
			if err := s.members.RemoveMember(ctx, req.GuildID, c.Value, req.Removal == RemovalBan, reason); err != nil {
				s.logger.Warn("%s of blocked user %s failed: %v", req.Removal, c.Value, err)
			}
		}
	}

	if len(newly) > 0 {
		userID := ""
		if req.Kind == models.AttrDiscordID {
			userID = req.Value
		} else if len(result.AffectedUsers) > 0 {
			userID = result.AffectedUsers[0]
		}
		s.notify(ctx, models.Event{
			Kind:    models.EventBlocked,
			GuildID: req.GuildID,
			UserID:  userID,
			ActorID: req.ActorID,
			Blocked: newly,
			Reason:  reason,
		})
	}

	s.logger.Info("block %s=%s in guild %s by %s: %d new, %d already",
		req.Kind, req.Value, req.GuildID, req.ActorID, len(newly), len(already))
	return result, nil
}

// Cluster expands one attribute into every attribute linked to it through
// live and archived account rows. Nickname seeds also pull in the other
// characters of that nickname's roster.
func (s *BlockServiceImpl) Cluster(ctx context.Context, guildID string, seed models.BlockCandidate) ([]models.BlockCandidate, error) {
	frontier := []models.BlockCandidate{seed}

	if seed.Kind == models.AttrNickname && s.resolver != nil {
		roster, err := s.resolver.LookupRosterByNickname(ctx, seed.Value)
		if err != nil {
			s.logger.Warn("roster lookup for %s failed: %v", seed.Value, err)
		}
		for _, c := range roster {
			frontier = append(frontier, models.BlockCandidate{Kind: models.AttrNickname, Value: c.Name})
		}
	}

	seen := make(map[models.BlockCandidate]struct{})
	var cluster []models.BlockCandidate
	for _, c := range models.UniqueCandidates(frontier) {
		seen[c] = struct{}{}
		cluster = append(cluster, c)
	}
	frontier = cluster

	for depth := 0; depth < clusterDepth && len(frontier) > 0; depth++ {
		var next []models.BlockCandidate
		for _, c := range frontier {
			linked, err := s.identity.LinkedAttributes(ctx, guildID, c)
			if err != nil {
				return nil, err
			}
			for _, l := range linked {
				if _, ok := seen[l]; ok {
					continue
				}
				seen[l] = struct{}{}
				cluster = append(cluster, l)
				next = append(next, l)
			}
		}
		frontier = next
	}
	return models.UniqueCandidates(cluster), nil
}

// UnblockByIDs closes the active rows among ids that belong to the guild.
func (s *BlockServiceImpl) UnblockByIDs(ctx context.Context, guildID string, ids []int, actorID string) ([]models.BlockedAttribute, error) {
	rows, err := s.blocks.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	var active []models.BlockedAttribute
	for _, r := range rows {
		if r.GuildID == guildID && r.Active() {
			active = append(active, r)
		}
	}
	if len(active) == 0 {
		return nil, nil
	}

	if _, err := s.blocks.Unblock(ctx, active, actorID); err != nil {
		return nil, err
	}

	s.notify(ctx, models.Event{
		Kind:      models.EventUnblocked,
		GuildID:   guildID,
		ActorID:   actorID,
		Unblocked: active,
	})
	s.logger.Info("unblocked %d attributes in guild %s by %s", len(active), guildID, actorID)
	return active, nil
}

func (s *BlockServiceImpl) Lookup(ctx context.Context, guildID string, candidates []models.BlockCandidate) ([]models.BlockedAttribute, error) {
	return s.blocks.IsAnyBlocked(ctx, guildID, candidates)
}

func (s *BlockServiceImpl) ListActive(ctx context.Context, guildID string) ([]models.BlockedAttribute, error) {
	return s.blocks.ListActive(ctx, guildID)
}

func (s *BlockServiceImpl) notify(ctx context.Context, ev models.Event) {
	if s.notifier == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = s.now()
	}
	if err := s.notifier.Notify(ctx, ev); err != nil {
		s.logger.Warn("notify %s failed: %v", ev.Kind, err)
	}
}
