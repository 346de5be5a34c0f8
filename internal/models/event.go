package models

import "time"

type EventKind string

const (
	EventVerified        EventKind = "verified"
	EventAccountsRemoved EventKind = "accounts_removed"
	EventBlocked         EventKind = "blocked"
	EventUnblocked       EventKind = "unblocked"
	EventNicknameChanged EventKind = "nickname_changed"
)

// Event is an audit record fanned out to every notifier.
type Event struct {
	Kind     EventKind `json:"kind"`
	GuildID  string    `json:"guild_id"`
	UserID   string    `json:"user_id,omitempty"`
	ActorID  string    `json:"actor_id,omitempty"`
	AuthType AuthType  `json:"auth_type,omitempty"`

	Nickname         string     `json:"nickname,omitempty"`
	PreviousNickname string     `json:"previous_nickname,omitempty"`
	Character        *Character `json:"character,omitempty"`
	SubNumber        int        `json:"sub_number,omitempty"`

	Removed RemovedAccounts `json:"removed"`
	Cause   string          `json:"cause,omitempty"`

	Blocked   []BlockCandidate   `json:"blocked,omitempty"`
	Unblocked []BlockedAttribute `json:"unblocked,omitempty"`
	Reason    string             `json:"reason,omitempty"`

	At time.Time `json:"at"`
}
