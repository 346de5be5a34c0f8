package models

import "time"

// RetentionPeriod is how long archived identity rows are kept after removal.
const RetentionPeriod = 180 * 24 * time.Hour

type AuthType string

const (
	AuthPrimary   AuthType = "main"
	AuthSecondary AuthType = "sub"
)

type AccountLink struct {
	ID            int        `json:"id"`
	GuildID       string     `json:"guild_id"`
	DiscordUserID string     `json:"discord_user_id"`
	AccountRef    string     `json:"member_no"`
	Nickname      string     `json:"nickname"`
	Verified      bool       `json:"is_verified"`
	CreatedAt     time.Time  `json:"created_at"`
	VerifiedAt    *time.Time `json:"verified_at"`
	ExpiredAt     *time.Time `json:"expired_at"`
}

type SecondaryAccountLink struct {
	ID            int       `json:"id"`
	GuildID       string    `json:"guild_id"`
	DiscordUserID string    `json:"discord_user_id"`
	SubNumber     int       `json:"sub_number"`
	AccountRef    string    `json:"member_no"`
	Nickname      string    `json:"nickname"`
	CreatedAt     time.Time `json:"created_at"`
}

// SecondarySummary is the (sub_number, nickname) pair shown to users and logs.
type SecondarySummary struct {
	SubNumber int    `json:"sub_number"`
	Nickname  string `json:"nickname"`
}

type DeletedAccountLink struct {
	AccountLink
	DeletedAt   time.Time `json:"deleted_at"`
	RetainUntil time.Time `json:"retain_until"`
}

type DeletedSecondaryAccountLink struct {
	SecondaryAccountLink
	DeletedAt   time.Time `json:"deleted_at"`
	RetainUntil time.Time `json:"retain_until"`
}

// RemovedAccounts is what RemoveAllForUser moved to the archive tables.
type RemovedAccounts struct {
	PrimaryNickname *string            `json:"primary_nickname"`
	Secondaries     []SecondarySummary `json:"secondaries"`
}

func (r RemovedAccounts) Empty() bool {
	return r.PrimaryNickname == nil && len(r.Secondaries) == 0
}

type AccountTable string

const (
	TablePrimary   AccountTable = "primary"
	TableSecondary AccountTable = "secondary"
)

// DuplicateMatch is an existing live row that collides with a verification attempt.
type DuplicateMatch struct {
	Table         AccountTable `json:"table"`
	DiscordUserID string       `json:"discord_user_id"`
	AccountRef    string       `json:"member_no"`
	Nickname      string       `json:"nickname"`
}
