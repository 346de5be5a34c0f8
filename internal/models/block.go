package models

import "time"

type AttributeKind string

const (
	AttrDiscordID  AttributeKind = "discord_id"
	AttrAccountRef AttributeKind = "memberNo"
	AttrNickname   AttributeKind = "nickname"
)

func (k AttributeKind) Valid() bool {
	switch k {
	case AttrDiscordID, AttrAccountRef, AttrNickname:
		return true
	}
	return false
}

// BlockCandidate is one identity attribute considered for blocking or lookup.
type BlockCandidate struct {
	Kind  AttributeKind `json:"data_type"`
	Value string        `json:"value"`
}

type BlockedAttribute struct {
	ID          int           `json:"id"`
	GuildID     string        `json:"guild_id"`
	Kind        AttributeKind `json:"data_type"`
	Value       string        `json:"value"`
	Reason      string        `json:"reason"`
	BlockedBy   string        `json:"blocked_by"`
	CreatedAt   time.Time     `json:"created_at"`
	UnblockedAt *time.Time    `json:"unblocked_at"`
	UnblockedBy *string       `json:"unblocked_by"`
}

func (b BlockedAttribute) Candidate() BlockCandidate {
	return BlockCandidate{Kind: b.Kind, Value: b.Value}
}

func (b BlockedAttribute) Active() bool {
	return b.UnblockedAt == nil
}

// UniqueCandidates drops empty values and repeated tuples, keeping first-seen order.
func UniqueCandidates(in []BlockCandidate) []BlockCandidate {
	seen := make(map[BlockCandidate]struct{}, len(in))
	out := make([]BlockCandidate, 0, len(in))
	for _, c := range in {
		if c.Value == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// IdentityCandidates builds the tuple set for one identity: platform id, account
// reference and every known nickname.
func IdentityCandidates(discordUserID, accountRef string, nicknames []string) []BlockCandidate {
	out := make([]BlockCandidate, 0, len(nicknames)+2)
	out = append(out, BlockCandidate{Kind: AttrDiscordID, Value: discordUserID})
	out = append(out, BlockCandidate{Kind: AttrAccountRef, Value: accountRef})
	for _, n := range nicknames {
		out = append(out, BlockCandidate{Kind: AttrNickname, Value: n})
	}
	return UniqueCandidates(out)
}
