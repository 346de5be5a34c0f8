package models

import "time"

type VerifyState string

const (
	StateSubmitted          VerifyState = "submitted"
	StateResolving          VerifyState = "resolving"
	StateRosterFetched      VerifyState = "roster_fetched"
	StateEligibilityChecked VerifyState = "eligibility_checked"
	StateAwaitingSwitch     VerifyState = "awaiting_character_switch"
	StateReconfirming       VerifyState = "reconfirming"
	StateNicknameSelection  VerifyState = "nickname_selection"
	StatePersisted          VerifyState = "persisted"
	StateRejected           VerifyState = "rejected"
	StateExpired            VerifyState = "expired"
)

func (s VerifyState) Terminal() bool {
	return s == StatePersisted || s == StateRejected || s == StateExpired
}

type RejectReason string

const (
	RejectAPIUnavailable         RejectReason = "api_unavailable"
	RejectInsufficientCharacters RejectReason = "insufficient_characters"
	RejectDuplicate              RejectReason = "duplicate"
	RejectDuplicateSub           RejectReason = "duplicate_sub"
	RejectItemLevel              RejectReason = "ilevel"
	RejectBlocked                RejectReason = "blocked"
	RejectAlreadyVerified        RejectReason = "already_verified"
	RejectPrimaryRequired        RejectReason = "primary_required"
	RejectSecondaryLimit         RejectReason = "secondary_limit"
	RejectGuildNotRegistered     RejectReason = "guild_not_registered"
)

// Rejection is a classified, user-facing outcome. Only the fields relevant
// to Reason are set.
type Rejection struct {
	Reason       RejectReason       `json:"reason"`
	Duplicates   []DuplicateMatch   `json:"duplicates,omitempty"`
	MaxItemLevel float64            `json:"max_item_level,omitempty"`
	MinItemLevel float64            `json:"min_item_level,omitempty"`
	Blocks       []BlockedAttribute `json:"blocks,omitempty"`
	Limit        int                `json:"limit,omitempty"`
	Characters   int                `json:"characters,omitempty"`
}

// VerificationSession is the transient context of one verification attempt.
type VerificationSession struct {
	ID           string      `json:"id"`
	GuildID      string      `json:"guild_id"`
	UserID       string      `json:"user_id"`
	AuthType     AuthType    `json:"auth_type"`
	AccountRef   string      `json:"member_no"`
	ExternalID   string      `json:"external_id"`
	CurrentMain  string      `json:"current_main"`
	Roster       []Character `json:"roster"`
	Target       string      `json:"target"`
	ObservedMain string      `json:"observed_main,omitempty"`
	Nickname     string      `json:"nickname,omitempty"`
	SubNumber    int         `json:"sub_number,omitempty"`
	State        VerifyState `json:"state"`
	Rejection    *Rejection  `json:"rejection,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// Dispute is handed to the ticketing side when a blocked identity retries.
type Dispute struct {
	GuildID  string             `json:"guild_id"`
	UserID   string             `json:"user_id"`
	AuthType AuthType           `json:"auth_type"`
	Blocks   []BlockedAttribute `json:"blocks"`
}
