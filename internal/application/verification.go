package application

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"kadan/internal/models"
	"kadan/internal/repository"
)

type VerificationService interface {
	Start(ctx context.Context, req StartRequest) (models.VerificationSession, error)
	ConfirmSwitch(ctx context.Context, sessionID, userID string) (models.VerificationSession, error)
	SelectNickname(ctx context.Context, sessionID, userID, nickname string) (models.VerificationSession, error)
	Cancel(sessionID, userID string) error
	Sweep() int
}

type StartRequest struct {
	GuildID    string
	UserID     string
	AuthType   models.AuthType
	AccountRef string
}

type Classifier interface {
	Classify(ctx context.Context, in ClassifyInput) (*models.Rejection, error)
}

type EngineDeps struct {
	Resolver   ProfileResolver
	Identity   repository.Identity
	Blocks     repository.Block
	Duplicates Classifier
	Settings   SettingsProvider
	Members    MemberManager
	Disputes   DisputeOpener
	Notifier   Notifier
	Actor      *ActorID
}

// VerificationEngine drives the character-switch challenge. Nothing is
// written to the identity tables before the final nickname selection.
type VerificationEngine struct {
	EngineDeps
	store  *SessionStore
	logger Logger
	pick   func(n int) int
	now    func() time.Time
}

func NewVerificationEngine(deps EngineDeps, store *SessionStore, logger Logger) *VerificationEngine {
	if deps.Actor == nil {
		deps.Actor = &ActorID{}
	}
	return &VerificationEngine{
		EngineDeps: deps,
		store:      store,
		logger:     logger,
		pick:       rand.IntN,
		now:        time.Now,
	}
}

// Start runs steps 1 to 4: pre-checks, resolution, roster fetch, eligibility
// and target selection. A rejected session is returned but never stored.
func (e *VerificationEngine) Start(ctx context.Context, req StartRequest) (models.VerificationSession, error) {
	sess := models.VerificationSession{
		GuildID:    req.GuildID,
		UserID:     req.UserID,
		AuthType:   req.AuthType,
		AccountRef: req.AccountRef,
		State:      models.StateSubmitted,
	}

	rej, err := e.precheck(ctx, sess)
	if err != nil {
		return sess, err
	}
	if rej != nil {
		return reject(sess, rej), nil
	}

	region, err := guildRegion(ctx, e.Settings, req.GuildID)
	if errors.Is(err, ErrGuildNotRegistered) {
		return reject(sess, &models.Rejection{Reason: models.RejectGuildNotRegistered}), nil
	}
	if err != nil {
		return sess, err
	}

	sess.State = models.StateResolving
	externalID, err := e.Resolver.ResolveAccountRef(ctx, req.AccountRef)
	if err != nil {
		e.logger.Warn("resolve memberNo %s failed: %v", req.AccountRef, err)
		return reject(sess, &models.Rejection{Reason: models.RejectAPIUnavailable}), nil
	}
	currentMain, err := e.Resolver.CurrentMainCharacter(ctx, externalID)
	if err != nil {
		e.logger.Warn("resolve main character for %s failed: %v", req.AccountRef, err)
		return reject(sess, &models.Rejection{Reason: models.RejectAPIUnavailable}), nil
	}
	roster, err := e.Resolver.Roster(ctx, currentMain)
	if err != nil {
		e.logger.Warn("fetch roster of %s failed: %v", currentMain, err)
		return reject(sess, &models.Rejection{Reason: models.RejectAPIUnavailable}), nil
	}

	filtered := models.FilterByServer(roster, region)

	sess.ExternalID = externalID
	sess.CurrentMain = currentMain
	sess.Roster = filtered
	sess.State = models.StateRosterFetched

	if len(filtered) < 2 {
		return reject(sess, &models.Rejection{
			Reason:     models.RejectInsufficientCharacters,
			Characters: len(filtered),
		}), nil
	}

	rej, err = e.checkEligibility(ctx, sess)
	if err != nil {
		return sess, err
	}
	if rej != nil {
		return e.rejectEligibility(ctx, sess, rej), nil
	}
	sess.State = models.StateEligibilityChecked

	sess.Target = e.pickTarget(filtered, currentMain)
	sess.State = models.StateAwaitingSwitch

	stored := e.store.Create(sess)
	e.logger.Info("verification %s started: guild=%s user=%s type=%s target=%s",
		stored.ID, stored.GuildID, stored.UserID, stored.AuthType, stored.Target)
	return stored, nil
}

// ConfirmSwitch re-reads the live main character and compares it with the
// chosen target. A mismatch keeps the same target.
func (e *VerificationEngine) ConfirmSwitch(ctx context.Context, sessionID, userID string) (models.VerificationSession, error) {
	sess, release, err := e.acquireOwned(sessionID, userID)
	if err != nil {
		return models.VerificationSession{}, err
	}
	defer release()

	if sess.State != models.StateAwaitingSwitch {
		return *sess, ErrInvalidState
	}

	sess.State = models.StateReconfirming
	main, err := e.Resolver.CurrentMainCharacter(ctx, sess.ExternalID)
	if err != nil {
		e.logger.Warn("reconfirm %s failed: %v", sess.ID, err)
		sess.State = models.StateAwaitingSwitch
		return *sess, ErrProfileUnavailable
	}
	sess.ObservedMain = main

	if main != sess.Target {
		sess.State = models.StateAwaitingSwitch
		return *sess, nil
	}

	sess.State = models.StateRosterFetched
	rej, err := e.checkEligibility(ctx, *sess)
	if err != nil {
		sess.State = models.StateAwaitingSwitch
		return *sess, err
	}
	if rej != nil {
		*sess = e.rejectEligibility(ctx, *sess, rej)
		return *sess, nil
	}

	sess.State = models.StateNicknameSelection
	return *sess, nil
}

// SelectNickname persists the link with the chosen character name.
func (e *VerificationEngine) SelectNickname(ctx context.Context, sessionID, userID, nickname string) (models.VerificationSession, error) {
	sess, release, err := e.acquireOwned(sessionID, userID)
	if err != nil {
		return models.VerificationSession{}, err
	}
	defer release()

	if sess.State != models.StateNicknameSelection {
		return *sess, ErrInvalidState
	}
	char, ok := models.FindCharacter(sess.Roster, nickname)
	if !ok {
		return *sess, ErrNicknameNotInRoster
	}

	switch sess.AuthType {
	case models.AuthPrimary:
		err := e.Identity.SavePrimary(ctx, sess.GuildID, sess.UserID, sess.AccountRef, nickname)
		if errors.Is(err, repository.ErrPrimaryExists) {
			*sess = reject(*sess, &models.Rejection{Reason: models.RejectAlreadyVerified})
			return *sess, ErrAlreadyRegistered
		}
		if err != nil {
			return *sess, fmt.Errorf("failed to save primary account: %w", err)
		}
		sess.Nickname = nickname
		sess.State = models.StatePersisted
		e.afterPrimary(ctx, *sess, char)

	case models.AuthSecondary:
		limit, err := settingInt(ctx, e.Settings, sess.GuildID, models.SettingMaxSubAccounts, defaultMaxSubAccounts)
		if err != nil {
			return *sess, err
		}
		if limit <= 0 {
			*sess = reject(*sess, &models.Rejection{Reason: models.RejectSecondaryLimit, Limit: limit})
			return *sess, ErrSecondaryLimit
		}
		n, err := e.Identity.AddSecondary(ctx, sess.GuildID, sess.UserID, sess.AccountRef, nickname, limit)
		if errors.Is(err, repository.ErrSecondaryLimit) {
			*sess = reject(*sess, &models.Rejection{Reason: models.RejectSecondaryLimit, Limit: limit})
			return *sess, ErrSecondaryLimit
		}
		if err != nil {
			return *sess, fmt.Errorf("failed to save secondary account: %w", err)
		}
		sess.Nickname = nickname
		sess.SubNumber = n
		sess.State = models.StatePersisted
		e.afterSecondary(ctx, *sess, char)

	default:
		return *sess, fmt.Errorf("unknown auth type %q", sess.AuthType)
	}

	e.logger.Info("verification %s persisted: guild=%s user=%s type=%s nickname=%s",
		sess.ID, sess.GuildID, sess.UserID, sess.AuthType, nickname)
	return *sess, nil
}

// Cancel drops a session on behalf of its owner.
func (e *VerificationEngine) Cancel(sessionID, userID string) error {
	_, release, err := e.acquireOwned(sessionID, userID)
	if err != nil {
		return err
	}
	release()
	e.store.Delete(sessionID)
	return nil
}

// acquireOwned locks a session only for the user who started it.
func (e *VerificationEngine) acquireOwned(sessionID, userID string) (*models.VerificationSession, func(), error) {
	sess, release, err := e.store.Acquire(sessionID)
	if err != nil {
		return nil, nil, err
	}
	if sess.UserID != userID {
		release()
		return nil, nil, ErrNotSessionOwner
	}
	return sess, release, nil
}

func (e *VerificationEngine) Sweep() int {
	return e.store.Sweep()
}

func (e *VerificationEngine) precheck(ctx context.Context, sess models.VerificationSession) (*models.Rejection, error) {
	verified, err := e.Identity.IsPrimaryVerified(ctx, sess.GuildID, sess.UserID)
	if err != nil {
		return nil, err
	}

	switch sess.AuthType {
	case models.AuthPrimary:
		if verified {
			return &models.Rejection{Reason: models.RejectAlreadyVerified}, nil
		}
	case models.AuthSecondary:
		if !verified {
			return &models.Rejection{Reason: models.RejectPrimaryRequired}, nil
		}
		subs, err := e.Identity.ListSecondaries(ctx, sess.GuildID, sess.UserID)
		if err != nil {
			return nil, err
		}
		limit, err := settingInt(ctx, e.Settings, sess.GuildID, models.SettingMaxSubAccounts, defaultMaxSubAccounts)
		if err != nil {
			return nil, err
		}
		if len(subs) >= limit {
			return &models.Rejection{Reason: models.RejectSecondaryLimit, Limit: limit}, nil
		}
	default:
		return nil, fmt.Errorf("unknown auth type %q", sess.AuthType)
	}
	return nil, nil
}

// checkEligibility classifies against the captured roster. Settings are
// read on every call so a changed threshold applies to in-flight sessions.
func (e *VerificationEngine) checkEligibility(ctx context.Context, sess models.VerificationSession) (*models.Rejection, error) {
	minLevel, err := settingFloat(ctx, e.Settings, sess.GuildID, models.SettingMainMinLevel, defaultMainMinLevel)
	if err != nil {
		return nil, err
	}
	return e.Duplicates.Classify(ctx, ClassifyInput{
		GuildID:      sess.GuildID,
		UserID:       sess.UserID,
		AuthType:     sess.AuthType,
		AccountRef:   sess.AccountRef,
		Roster:       sess.Roster,
		MinItemLevel: minLevel,
	})
}

func (e *VerificationEngine) rejectEligibility(ctx context.Context, sess models.VerificationSession, rej *models.Rejection) models.VerificationSession {
	if rej.Reason == models.RejectBlocked {
		e.reassertBlock(ctx, sess, rej)
	}
	return reject(sess, rej)
}

// reassertBlock blocks every attribute seen in this attempt, refreshes the
// block detail and opens exactly one dispute ticket. When the block write
// fails no ticket is opened.
func (e *VerificationEngine) reassertBlock(ctx context.Context, sess models.VerificationSession, rej *models.Rejection) {
	names := models.CharacterNames(sess.Roster)
	if sess.CurrentMain != "" && !containsString(names, sess.CurrentMain) {
		names = append(names, sess.CurrentMain)
	}
	candidates := models.IdentityCandidates(sess.UserID, sess.AccountRef, names)
	actor := e.Actor.Get()

	newly, _, err := e.Blocks.Block(ctx, sess.GuildID, candidates, AutoBlockReason, actor)
	if err != nil {
		e.logger.Error("auto block for user %s failed: %v", sess.UserID, err)
		return
	}

	refreshed, err := e.Blocks.IsAnyBlocked(ctx, sess.GuildID, candidates)
	if err != nil {
		e.logger.Warn("refresh block detail for user %s failed: %v", sess.UserID, err)
	} else if len(refreshed) > 0 {
		rej.Blocks = refreshed
	}

	if e.Disputes != nil {
		err := e.Disputes.OpenDispute(ctx, models.Dispute{
			GuildID:  sess.GuildID,
			UserID:   sess.UserID,
			AuthType: sess.AuthType,
			Blocks:   rej.Blocks,
		})
		if err != nil {
			e.logger.Error("open dispute for user %s failed: %v", sess.UserID, err)
		}
	}

	if len(newly) > 0 {
		e.notify(ctx, models.Event{
			Kind:    models.EventBlocked,
			GuildID: sess.GuildID,
			UserID:  sess.UserID,
			ActorID: actor,
			Blocked: newly,
			Reason:  AutoBlockReason,
		})
	}
}

func (e *VerificationEngine) pickTarget(roster []models.Character, currentMain string) string {
	options := make([]string, 0, len(roster))
	for _, c := range roster {
		if c.Name != currentMain {
			options = append(options, c.Name)
		}
	}
	return options[e.pick(len(options))]
}

func (e *VerificationEngine) afterPrimary(ctx context.Context, sess models.VerificationSession, char models.Character) {
	if e.Members != nil {
		if role := roleSetting(ctx, e.Settings, e.logger, sess.GuildID, models.SettingMainAuthRole); role != "" {
			if err := e.Members.GrantRole(ctx, sess.GuildID, sess.UserID, role); err != nil {
				e.logger.Warn("grant primary role to %s failed: %v", sess.UserID, err)
			}
		}
		hasSubs, err := e.Identity.HasSecondaries(ctx, sess.GuildID, sess.UserID)
		if err != nil {
			e.logger.Warn("check secondaries of %s failed: %v", sess.UserID, err)
		}
		if err := e.Members.SetNickname(ctx, sess.GuildID, sess.UserID, BuildDisplayName(sess.Nickname, hasSubs)); err != nil {
			e.logger.Warn("set nickname of %s failed: %v", sess.UserID, err)
		}
	}

	e.notify(ctx, models.Event{
		Kind:      models.EventVerified,
		GuildID:   sess.GuildID,
		UserID:    sess.UserID,
		AuthType:  models.AuthPrimary,
		Nickname:  sess.Nickname,
		Character: &char,
	})
}

// afterSecondary keeps the primary nickname and only appends the tag.
func (e *VerificationEngine) afterSecondary(ctx context.Context, sess models.VerificationSession, char models.Character) {
	if e.Members != nil {
		if role := roleSetting(ctx, e.Settings, e.logger, sess.GuildID, models.SettingSubAuthRole); role != "" {
			if err := e.Members.GrantRole(ctx, sess.GuildID, sess.UserID, role); err != nil {
				e.logger.Warn("grant secondary role to %s failed: %v", sess.UserID, err)
			}
		}
		primary, err := e.Identity.GetPrimary(ctx, sess.GuildID, sess.UserID)
		switch {
		case err != nil:
			e.logger.Warn("load primary of %s failed: %v", sess.UserID, err)
		case primary != nil:
			if err := e.Members.SetNickname(ctx, sess.GuildID, sess.UserID, BuildDisplayName(primary.Nickname, true)); err != nil {
				e.logger.Warn("set nickname of %s failed: %v", sess.UserID, err)
			}
		}
	}

	e.notify(ctx, models.Event{
		Kind:      models.EventVerified,
		GuildID:   sess.GuildID,
		UserID:    sess.UserID,
		AuthType:  models.AuthSecondary,
		Nickname:  sess.Nickname,
		Character: &char,
		SubNumber: sess.SubNumber,
	})
}

func (e *VerificationEngine) notify(ctx context.Context, ev models.Event) {
	if e.Notifier == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = e.now()
	}
	if err := e.Notifier.Notify(ctx, ev); err != nil {
		e.logger.Warn("notify %s failed: %v", ev.Kind, err)
	}
}

func reject(sess models.VerificationSession, rej *models.Rejection) models.VerificationSession {
	sess.State = models.StateRejected
	sess.Rejection = rej
	return sess
}
