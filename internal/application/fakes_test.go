package application

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"kadan/internal/models"
	"kadan/internal/repository"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type nopLogger struct{}

func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Debug(string, ...interface{}) {}

// memIdentity is an in-memory repository.Identity. Numbering and archiving
// follow the Postgres statements: new secondaries take MAX+1, removal
// archives first and then shifts every higher number down by one.
type memIdentity struct {
	mu          sync.Mutex
	primaries   map[string]*models.AccountLink
	secondaries map[string][]models.SecondaryAccountLink
	archived    []models.DeletedSecondaryAccountLink
	savePrimary int
	nextID      int
	now         func() time.Time
}

func newMemIdentity() *memIdentity {
	return &memIdentity{
		primaries:   make(map[string]*models.AccountLink),
		secondaries: make(map[string][]models.SecondaryAccountLink),
		now:         func() time.Time { return fixedNow },
	}
}

func (m *memIdentity) archiveLocked(s models.SecondaryAccountLink) {
	now := m.now()
	m.archived = append(m.archived, models.DeletedSecondaryAccountLink{
		SecondaryAccountLink: s,
		DeletedAt:            now,
		RetainUntil:          now.Add(models.RetentionPeriod),
	})
}

func maxSubNumber(subs []models.SecondaryAccountLink) int {
	n := 0
	for _, s := range subs {
		if s.SubNumber > n {
			n = s.SubNumber
		}
	}
	return n
}

func userKey(guildID, userID string) string { return guildID + "/" + userID }

func (m *memIdentity) addPrimary(guildID, userID, ref, nick string) {
	m.nextID++
	m.primaries[userKey(guildID, userID)] = &models.AccountLink{
		ID: m.nextID, GuildID: guildID, DiscordUserID: userID, AccountRef: ref, Nickname: nick, Verified: true,
	}
}

func (m *memIdentity) addSub(guildID, userID, ref, nick string) {
	k := userKey(guildID, userID)
	m.nextID++
	m.secondaries[k] = append(m.secondaries[k], models.SecondaryAccountLink{
		ID: m.nextID, GuildID: guildID, DiscordUserID: userID, SubNumber: maxSubNumber(m.secondaries[k]) + 1, AccountRef: ref, Nickname: nick,
	})
}

func (m *memIdentity) GetPrimary(_ context.Context, guildID, userID string) (*models.AccountLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.primaries[userKey(guildID, userID)]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (m *memIdentity) IsPrimaryVerified(ctx context.Context, guildID, userID string) (bool, error) {
	p, _ := m.GetPrimary(ctx, guildID, userID)
	return p != nil && p.Verified, nil
}

func (m *memIdentity) SavePrimary(_ context.Context, guildID, userID, ref, nick string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.savePrimary++
	if _, ok := m.primaries[userKey(guildID, userID)]; ok {
		return repository.ErrPrimaryExists
	}
	m.nextID++
	m.primaries[userKey(guildID, userID)] = &models.AccountLink{
		ID: m.nextID, GuildID: guildID, DiscordUserID: userID, AccountRef: ref, Nickname: nick, Verified: true,
	}
	return nil
}

func (m *memIdentity) UpdatePrimaryNickname(_ context.Context, guildID, userID, nick string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.primaries[userKey(guildID, userID)]
	if !ok {
		return 0, nil
	}
	p.Nickname = nick
	return 1, nil
}

func (m *memIdentity) ListSecondaries(_ context.Context, guildID, userID string) ([]models.SecondarySummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.SecondarySummary
	for _, s := range m.secondaries[userKey(guildID, userID)] {
		out = append(out, models.SecondarySummary{SubNumber: s.SubNumber, Nickname: s.Nickname})
	}
	return out, nil
}

func (m *memIdentity) ListSecondaryAccountRefs(_ context.Context, guildID, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, s := range m.secondaries[userKey(guildID, userID)] {
		out = append(out, s.AccountRef)
	}
	return out, nil
}

func (m *memIdentity) HasSecondaries(_ context.Context, guildID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.secondaries[userKey(guildID, userID)]) > 0, nil
}

func (m *memIdentity) AddSecondary(_ context.Context, guildID, userID, ref, nick string, limit int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := userKey(guildID, userID)
	if limit > 0 && len(m.secondaries[k]) >= limit {
		return 0, repository.ErrSecondaryLimit
	}
	m.nextID++
	n := maxSubNumber(m.secondaries[k]) + 1
	m.secondaries[k] = append(m.secondaries[k], models.SecondaryAccountLink{
		ID: m.nextID, GuildID: guildID, DiscordUserID: userID, SubNumber: n, AccountRef: ref, Nickname: nick,
	})
	return n, nil
}

func (m *memIdentity) RemoveSecondary(_ context.Context, guildID, userID string, subNumber int) (*string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := userKey(guildID, userID)
	subs := m.secondaries[k]
	for i, s := range subs {
		if s.SubNumber != subNumber {
			continue
		}
		m.archiveLocked(s)
		rest := append(append([]models.SecondaryAccountLink{}, subs[:i]...), subs[i+1:]...)
		for j := range rest {
			if rest[j].SubNumber > subNumber {
				rest[j].SubNumber--
			}
		}
		m.secondaries[k] = rest
		nick := s.Nickname
		return &nick, nil
	}
	return nil, nil
}

func (m *memIdentity) RemoveAllForUser(_ context.Context, guildID, userID string) (models.RemovedAccounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := userKey(guildID, userID)
	var out models.RemovedAccounts
	if p, ok := m.primaries[k]; ok {
		nick := p.Nickname
		out.PrimaryNickname = &nick
		delete(m.primaries, k)
	}
	for _, s := range m.secondaries[k] {
		out.Secondaries = append(out.Secondaries, models.SecondarySummary{SubNumber: s.SubNumber, Nickname: s.Nickname})
		m.archiveLocked(s)
	}
	delete(m.secondaries, k)
	return out, nil
}

func (m *memIdentity) FindDuplicates(_ context.Context, guildID, userID, ref string, nicknames []string) ([]models.DuplicateMatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.DuplicateMatch
	for _, p := range m.primaries {
		if p.GuildID == guildID && (p.DiscordUserID == userID || p.AccountRef == ref || containsString(nicknames, p.Nickname)) {
			out = append(out, models.DuplicateMatch{Table: models.TablePrimary, DiscordUserID: p.DiscordUserID, AccountRef: p.AccountRef, Nickname: p.Nickname})
		}
	}
	for _, subs := range m.secondaries {
		for _, s := range subs {
			if s.GuildID == guildID && (s.DiscordUserID == userID || s.AccountRef == ref || containsString(nicknames, s.Nickname)) {
				out = append(out, models.DuplicateMatch{Table: models.TableSecondary, DiscordUserID: s.DiscordUserID, AccountRef: s.AccountRef, Nickname: s.Nickname})
			}
		}
	}
	return out, nil
}

func (m *memIdentity) FindAccountRefDuplicates(_ context.Context, guildID, ref string) ([]models.DuplicateMatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.DuplicateMatch
	for _, p := range m.primaries {
		if p.GuildID == guildID && p.AccountRef == ref {
			out = append(out, models.DuplicateMatch{Table: models.TablePrimary, DiscordUserID: p.DiscordUserID, AccountRef: p.AccountRef, Nickname: p.Nickname})
		}
	}
	for _, subs := range m.secondaries {
		for _, s := range subs {
			if s.GuildID == guildID && s.AccountRef == ref {
				out = append(out, models.DuplicateMatch{Table: models.TableSecondary, DiscordUserID: s.DiscordUserID, AccountRef: s.AccountRef, Nickname: s.Nickname})
			}
		}
	}
	return out, nil
}

func (m *memIdentity) LinkedAttributes(_ context.Context, guildID string, c models.BlockCandidate) ([]models.BlockCandidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	match := func(did, ref, nick string) bool {
		switch c.Kind {
		case models.AttrDiscordID:
			return did == c.Value
		case models.AttrAccountRef:
			return ref == c.Value
		default:
			return nick == c.Value
		}
	}
	out := []models.BlockCandidate{c}
	add := func(did, ref, nick string) {
		out = append(out,
			models.BlockCandidate{Kind: models.AttrDiscordID, Value: did},
			models.BlockCandidate{Kind: models.AttrAccountRef, Value: ref},
			models.BlockCandidate{Kind: models.AttrNickname, Value: nick})
	}
	for _, p := range m.primaries {
		if p.GuildID == guildID && match(p.DiscordUserID, p.AccountRef, p.Nickname) {
			add(p.DiscordUserID, p.AccountRef, p.Nickname)
		}
	}
	for _, subs := range m.secondaries {
		for _, s := range subs {
			if s.GuildID == guildID && match(s.DiscordUserID, s.AccountRef, s.Nickname) {
				add(s.DiscordUserID, s.AccountRef, s.Nickname)
			}
		}
	}
	for _, s := range m.archived {
		if s.GuildID == guildID && match(s.DiscordUserID, s.AccountRef, s.Nickname) {
			add(s.DiscordUserID, s.AccountRef, s.Nickname)
		}
	}
	return models.UniqueCandidates(out), nil
}

func (m *memIdentity) ListUserIDs(_ context.Context, guildID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[string]struct{}{}
	for _, p := range m.primaries {
		if p.GuildID == guildID {
			seen[p.DiscordUserID] = struct{}{}
		}
	}
	for _, subs := range m.secondaries {
		for _, s := range subs {
			if s.GuildID == guildID {
				seen[s.DiscordUserID] = struct{}{}
			}
		}
	}
	var ids []string
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *memIdentity) ListAccounts(_ context.Context, guildID string) ([]models.AccountLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.AccountLink
	for _, p := range m.primaries {
		if p.GuildID == guildID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memIdentity) ListAllSecondaries(_ context.Context, guildID string) ([]models.SecondaryAccountLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.SecondaryAccountLink
	for _, subs := range m.secondaries {
		for _, s := range subs {
			if s.GuildID == guildID {
				out = append(out, s)
			}
		}
	}
	return out, nil
}

// memBlocks is an in-memory repository.Block keyed by active tuple.
type memBlocks struct {
	mu       sync.Mutex
	rows     []models.BlockedAttribute
	blockErr error
	calls    int
	lastSet  []models.BlockCandidate
}

func (b *memBlocks) Block(_ context.Context, guildID string, candidates []models.BlockCandidate, reason, blockedBy string) ([]models.BlockCandidate, []models.BlockCandidate, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	b.lastSet = candidates
	if b.blockErr != nil {
		return nil, nil, b.blockErr
	}
	var newly, already []models.BlockCandidate
	for _, c := range models.UniqueCandidates(candidates) {
		if b.activeLocked(guildID, c) {
			already = append(already, c)
			continue
		}
		b.rows = append(b.rows, models.BlockedAttribute{
			ID: len(b.rows) + 1, GuildID: guildID, Kind: c.Kind, Value: c.Value, Reason: reason, BlockedBy: blockedBy,
		})
		newly = append(newly, c)
	}
	return newly, already, nil
}

func (b *memBlocks) activeLocked(guildID string, c models.BlockCandidate) bool {
	for _, r := range b.rows {
		if r.GuildID == guildID && r.Candidate() == c && r.Active() {
			return true
		}
	}
	return false
}

func (b *memBlocks) IsAnyBlocked(_ context.Context, guildID string, candidates []models.BlockCandidate) ([]models.BlockedAttribute, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []models.BlockedAttribute
	for _, r := range b.rows {
		if r.GuildID != guildID || !r.Active() {
			continue
		}
		for _, c := range candidates {
			if r.Candidate() == c {
				out = append(out, r)
				break
			}
		}
	}
	return out, nil
}

func (b *memBlocks) Unblock(_ context.Context, entries []models.BlockedAttribute, unblockedBy string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, e := range entries {
		for i := range b.rows {
			if b.rows[i].ID == e.ID && b.rows[i].Active() {
				by := unblockedBy
				now := fixedNow
				b.rows[i].UnblockedAt = &now
				b.rows[i].UnblockedBy = &by
				n++
			}
		}
	}
	return n, nil
}

func (b *memBlocks) GetByIDs(_ context.Context, ids []int) ([]models.BlockedAttribute, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []models.BlockedAttribute
	for _, r := range b.rows {
		for _, id := range ids {
			if r.ID == id {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

func (b *memBlocks) ListActive(_ context.Context, guildID string) ([]models.BlockedAttribute, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []models.BlockedAttribute
	for _, r := range b.rows {
		if r.GuildID == guildID && r.Active() {
			out = append(out, r)
		}
	}
	return out, nil
}

type staticSettings map[string]map[string]string

func (s staticSettings) Get(_ context.Context, guildID, key string) (string, bool, error) {
	v, ok := s[guildID][key]
	return v, ok, nil
}

func (s staticSettings) Refresh(context.Context) error { return nil }

func (s staticSettings) Set(_ context.Context, guildID, key, value, _ string) error {
	if s[guildID] == nil {
		s[guildID] = map[string]string{}
	}
	s[guildID][key] = value
	return nil
}

// stubResolver serves a fixed account. mains is consumed one value per
// CurrentMainCharacter call; the last value repeats.
type stubResolver struct {
	mu         sync.Mutex
	externalID string
	mains      []string
	mainErrs   []error
	roster     []models.Character
	byNickname map[string][]models.Character
	resolveErr error
	mainCalls  int
}

func (r *stubResolver) ResolveAccountRef(context.Context, string) (string, error) {
	if r.resolveErr != nil {
		return "", r.resolveErr
	}
	return r.externalID, nil
}

func (r *stubResolver) CurrentMainCharacter(context.Context, string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.mainCalls
	r.mainCalls++
	if i < len(r.mainErrs) && r.mainErrs[i] != nil {
		return "", r.mainErrs[i]
	}
	if i >= len(r.mains) {
		i = len(r.mains) - 1
	}
	return r.mains[i], nil
}

func (r *stubResolver) Roster(context.Context, string) ([]models.Character, error) {
	return r.roster, nil
}

func (r *stubResolver) LookupRosterByNickname(_ context.Context, name string) ([]models.Character, error) {
	if roster, ok := r.byNickname[name]; ok {
		return roster, nil
	}
	return nil, errors.New("not found")
}

type recordingMembers struct {
	mu        sync.Mutex
	granted   []string
	revoked   []string
	nicknames map[string]string
	removed   []string
	failAll   bool
}

func newRecordingMembers() *recordingMembers {
	return &recordingMembers{nicknames: make(map[string]string)}
}

func (m *recordingMembers) GrantRole(_ context.Context, _, userID, roleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return errors.New("missing permissions")
	}
	m.granted = append(m.granted, userID+":"+roleID)
	return nil
}

func (m *recordingMembers) RevokeRole(_ context.Context, _, userID, roleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return errors.New("missing permissions")
	}
	m.revoked = append(m.revoked, userID+":"+roleID)
	return nil
}

func (m *recordingMembers) SetNickname(_ context.Context, _, userID, nickname string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return errors.New("missing permissions")
	}
	m.nicknames[userID] = nickname
	return nil
}

func (m *recordingMembers) RemoveMember(_ context.Context, _, userID string, ban bool, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	action := "kick"
	if ban {
		action = "ban"
	}
	m.removed = append(m.removed, action+":"+userID)
	return nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []models.Event
}

func (n *recordingNotifier) Notify(_ context.Context, ev models.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return nil
}

func (n *recordingNotifier) kinds() []models.EventKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []models.EventKind
	for _, ev := range n.events {
		out = append(out, ev.Kind)
	}
	return out
}

type recordingDisputes struct {
	mu       sync.Mutex
	disputes []models.Dispute
}

func (d *recordingDisputes) OpenDispute(_ context.Context, dispute models.Dispute) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.disputes = append(d.disputes, dispute)
	return nil
}

type countingClassifier struct {
	inner Classifier
	calls int
}

func (c *countingClassifier) Classify(ctx context.Context, in ClassifyInput) (*models.Rejection, error) {
	c.calls++
	return c.inner.Classify(ctx, in)
}

// failingSettings fails reads of the listed keys and serves the rest.
type failingSettings struct {
	staticSettings
	fail map[string]bool
	err  error
}

func (s failingSettings) Get(ctx context.Context, guildID, key string) (string, bool, error) {
	if s.fail == nil || s.fail[key] {
		return "", false, s.err
	}
	return s.staticSettings.Get(ctx, guildID, key)
}
