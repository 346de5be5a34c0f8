package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kadan/internal/models"
	"kadan/internal/repository"
)

type AccountService interface {
	Overview(ctx context.Context, guildID, userID string) (*AccountOverview, error)
	RemoveSecondary(ctx context.Context, guildID, userID string, subNumber int) (string, error)
	RemoveAll(ctx context.Context, guildID, userID, cause, actorID string) (models.RemovedAccounts, error)
	NicknameOptions(ctx context.Context, guildID, userID string) ([]models.Character, error)
	ChangeNickname(ctx context.Context, guildID, userID, nickname string) (string, error)
	HandleMemberLeave(ctx context.Context, guildID, userID string)
	Cleanup(ctx context.Context, guildID string, isMember func(userID string) bool, actorID string) (int, error)
	IsOrphaned(ctx context.Context, guildID, userID string) (bool, error)
	ResetOrphaned(ctx context.Context, guildID, userID string) (models.RemovedAccounts, error)
	CheckNickname(ctx context.Context, guildID, userID, nickname string) (*NicknameCheck, error)
}

type AccountOverview struct {
	Primary     *models.AccountLink
	Secondaries []models.SecondarySummary
}

// NicknameCheck tells which of a member's accounts owns a character name.
type NicknameCheck struct {
	Found      bool
	AuthType   models.AuthType
	AccountRef string
}

// Removal causes carried in audit events.
const (
	CauseUserRequest = "user_request"
	CauseMemberLeft  = "member_left"
	CauseCleanup     = "cleanup"
	CauseBlocked     = "blocked"
	CauseOrphanReset = "orphan_reset"
)

type AccountServiceImpl struct {
	identity repository.Identity
	settings SettingsProvider
	resolver ProfileResolver
	members  MemberManager
	notifier Notifier
	logger   Logger
	now      func() time.Time
}

func NewAccountServiceImpl(identity repository.Identity, settings SettingsProvider, resolver ProfileResolver, members MemberManager, notifier Notifier, logger Logger) *AccountServiceImpl {
	return &AccountServiceImpl{
		identity: identity,
		settings: settings,
		resolver: resolver,
		members:  members,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *AccountServiceImpl) Overview(ctx context.Context, guildID, userID string) (*AccountOverview, error) {
	primary, err := s.identity.GetPrimary(ctx, guildID, userID)
	if err != nil {
		return nil, err
	}
	subs, err := s.identity.ListSecondaries(ctx, guildID, userID)
	if err != nil {
		return nil, err
	}
	return &AccountOverview{Primary: primary, Secondaries: subs}, nil
}

// RemoveSecondary deletes one secondary. When it was the last one the
// secondary role and the display-name tag are dropped.
func (s *AccountServiceImpl) RemoveSecondary(ctx context.Context, guildID, userID string, subNumber int) (string, error) {
	nick, err := s.identity.RemoveSecondary(ctx, guildID, userID, subNumber)
	if err != nil {
		return "", err
	}
	if nick == nil {
		return "", repository.ErrNotFound
	}

	hasSubs, err := s.identity.HasSecondaries(ctx, guildID, userID)
	if err != nil {
		s.logger.Warn("check secondaries of %s failed: %v", userID, err)
		hasSubs = true
	}
	if !hasSubs && s.members != nil {
		if role := roleSetting(ctx, s.settings, s.logger, guildID, models.SettingSubAuthRole); role != "" {
			if err := s.members.RevokeRole(ctx, guildID, userID, role); err != nil {
				s.logger.Warn("revoke secondary role from %s failed: %v", userID, err)
			}
		}
		primary, err := s.identity.GetPrimary(ctx, guildID, userID)
		if err != nil {
			s.logger.Warn("load primary of %s failed: %v", userID, err)
		} else if primary != nil {
			if err := s.members.SetNickname(ctx, guildID, userID, BuildDisplayName(primary.Nickname, false)); err != nil {
				s.logger.Warn("set nickname of %s failed: %v", userID, err)
			}
		}
	}

	s.notify(ctx, models.Event{
		Kind:    models.EventAccountsRemoved,
		GuildID: guildID,
		UserID:  userID,
		ActorID: userID,
		Removed: models.RemovedAccounts{Secondaries: []models.SecondarySummary{{SubNumber: subNumber, Nickname: *nick}}},
		Cause:   CauseUserRequest,
	})
	return *nick, nil
}

func (s *AccountServiceImpl) RemoveAll(ctx context.Context, guildID, userID, cause, actorID string) (models.RemovedAccounts, error) {
	return s.removeAll(ctx, guildID, userID, cause, actorID, true)
}

func (s *AccountServiceImpl) HandleMemberLeave(ctx context.Context, guildID, userID string) {
	if _, err := s.removeAll(ctx, guildID, userID, CauseMemberLeft, "", false); err != nil {
		s.logger.Error("remove records of departed member %s failed: %v", userID, err)
	}
}

// Cleanup removes records of users that are no longer guild members.
func (s *AccountServiceImpl) Cleanup(ctx context.Context, guildID string, isMember func(userID string) bool, actorID string) (int, error) {
	ids, err := s.identity.ListUserIDs(ctx, guildID)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, id := range ids {
		if isMember(id) {
			continue
		}
		res, err := s.removeAll(ctx, guildID, id, CauseCleanup, actorID, false)
		if err != nil {
			return removed, fmt.Errorf("failed to clean up user %s: %w", id, err)
		}
		if !res.Empty() {
			removed++
		}
	}
	s.logger.Info("cleanup of guild %s removed %d users", guildID, removed)
	return removed, nil
}

// IsOrphaned reports a user holding secondaries without a verified primary.
func (s *AccountServiceImpl) IsOrphaned(ctx context.Context, guildID, userID string) (bool, error) {
	verified, err := s.identity.IsPrimaryVerified(ctx, guildID, userID)
	if err != nil || verified {
		return false, err
	}
	return s.identity.HasSecondaries(ctx, guildID, userID)
}

func (s *AccountServiceImpl) ResetOrphaned(ctx context.Context, guildID, userID string) (models.RemovedAccounts, error) {
	orphaned, err := s.IsOrphaned(ctx, guildID, userID)
	if err != nil {
		return models.RemovedAccounts{}, err
	}
	if !orphaned {
		return models.RemovedAccounts{}, nil
	}
	return s.removeAll(ctx, guildID, userID, CauseOrphanReset, userID, true)
}

func (s *AccountServiceImpl) removeAll(ctx context.Context, guildID, userID, cause, actorID string, touchMember bool) (models.RemovedAccounts, error) {
	removed, err := s.identity.RemoveAllForUser(ctx, guildID, userID)
	if err != nil {
		return removed, err
	}
	if removed.Empty() {
		return removed, nil
	}

	if touchMember && s.members != nil {
		for _, key := range []string{models.SettingMainAuthRole, models.SettingSubAuthRole} {
			role := roleSetting(ctx, s.settings, s.logger, guildID, key)
			if role == "" {
				continue
			}
			if err := s.members.RevokeRole(ctx, guildID, userID, role); err != nil {
				s.logger.Warn("revoke role %s from %s failed: %v", role, userID, err)
			}
		}
		if err := s.members.SetNickname(ctx, guildID, userID, ""); err != nil {
			s.logger.Warn("clear nickname of %s failed: %v", userID, err)
		}
	}

	s.notify(ctx, models.Event{
		Kind:    models.EventAccountsRemoved,
		GuildID: guildID,
		UserID:  userID,
		ActorID: actorID,
		Removed: removed,
		Cause:   cause,
	})
	s.logger.Info("removed accounts of %s in guild %s (%s)", userID, guildID, cause)
	return removed, nil
}

// NicknameOptions returns the region-filtered roster of the user's primary
// account, fetched live.
func (s *AccountServiceImpl) NicknameOptions(ctx context.Context, guildID, userID string) ([]models.Character, error) {
	primary, err := s.identity.GetPrimary(ctx, guildID, userID)
	if err != nil {
		return nil, err
	}
	if primary == nil || !primary.Verified {
		return nil, ErrNotVerified
	}
	return s.accountRoster(ctx, guildID, primary.AccountRef)
}

func (s *AccountServiceImpl) ChangeNickname(ctx context.Context, guildID, userID, nickname string) (string, error) {
	primary, err := s.identity.GetPrimary(ctx, guildID, userID)
	if err != nil {
		return "", err
	}
	if primary == nil || !primary.Verified {
		return "", ErrNotVerified
	}
	if primary.Nickname == nickname {
		return primary.Nickname, ErrNicknameUnchanged
	}

	roster, err := s.accountRoster(ctx, guildID, primary.AccountRef)
	if err != nil {
		return "", err
	}
	char, ok := models.FindCharacter(roster, nickname)
	if !ok {
		return "", ErrNicknameNotInRoster
	}

	rows, err := s.identity.UpdatePrimaryNickname(ctx, guildID, userID, nickname)
	if err != nil {
		return "", err
	}
	if rows == 0 {
		return "", ErrNotVerified
	}

	if s.members != nil {
		hasSubs, err := s.identity.HasSecondaries(ctx, guildID, userID)
		if err != nil {
			s.logger.Warn("check secondaries of %s failed: %v", userID, err)
		}
		if err := s.members.SetNickname(ctx, guildID, userID, BuildDisplayName(nickname, hasSubs)); err != nil {
			s.logger.Warn("set nickname of %s failed: %v", userID, err)
		}
	}

	s.notify(ctx, models.Event{
		Kind:             models.EventNicknameChanged,
		GuildID:          guildID,
		UserID:           userID,
		ActorID:          userID,
		AuthType:         models.AuthPrimary,
		Nickname:         nickname,
		PreviousNickname: primary.Nickname,
		Character:        &char,
	})
	return primary.Nickname, nil
}

// CheckNickname looks for a character name in the rosters of the user's
// primary and secondary accounts.
func (s *AccountServiceImpl) CheckNickname(ctx context.Context, guildID, userID, nickname string) (*NicknameCheck, error) {
	primary, err := s.identity.GetPrimary(ctx, guildID, userID)
	if err != nil {
		return nil, err
	}
	if primary != nil && primary.AccountRef != "" {
		roster, err := s.accountRoster(ctx, guildID, primary.AccountRef)
		if err != nil {
			return nil, err
		}
		if _, ok := models.FindCharacter(roster, nickname); ok {
			return &NicknameCheck{Found: true, AuthType: models.AuthPrimary, AccountRef: primary.AccountRef}, nil
		}
	}

	refs, err := s.identity.ListSecondaryAccountRefs(ctx, guildID, userID)
	if err != nil {
		return nil, err
	}
	for _, ref := range refs {
		roster, err := s.accountRoster(ctx, guildID, ref)
		if err != nil {
			return nil, err
		}
		if _, ok := models.FindCharacter(roster, nickname); ok {
			return &NicknameCheck{Found: true, AuthType: models.AuthSecondary, AccountRef: ref}, nil
		}
	}
	return &NicknameCheck{}, nil
}

func (s *AccountServiceImpl) accountRoster(ctx context.Context, guildID, accountRef string) ([]models.Character, error) {
	region, err := guildRegion(ctx, s.settings, guildID)
	if err != nil {
		return nil, err
	}
	externalID, err := s.resolver.ResolveAccountRef(ctx, accountRef)
	if err != nil {
		return nil, errors.Join(ErrProfileUnavailable, err)
	}
	main, err := s.resolver.CurrentMainCharacter(ctx, externalID)
	if err != nil {
		return nil, errors.Join(ErrProfileUnavailable, err)
	}
	roster, err := s.resolver.Roster(ctx, main)
	if err != nil {
		return nil, errors.Join(ErrProfileUnavailable, err)
	}
	return models.FilterByServer(roster, region), nil
}

func (s *AccountServiceImpl) notify(ctx context.Context, ev models.Event) {
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
