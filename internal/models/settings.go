package models

import "time"

// Per-guild setting keys.
const (
	SettingServer           = "server"
	SettingMainMinLevel     = "main_auth_min_level"
	SettingMaxSubAccounts   = "max_sub_accounts"
	SettingMainAuthRole     = "main_auth_role"
	SettingSubAuthRole      = "sub_auth_role"
	SettingVerifyLogChannel = "verify_log_channel"
	SettingBlockedChannel   = "blocked_channel"
	SettingTicketCategory   = "ticket_category"
	SettingTicketLogChannel = "ticket_log_channel"
)

var EditableSettings = []string{
	SettingMainMinLevel,
	SettingMaxSubAccounts,
	SettingMainAuthRole,
	SettingSubAuthRole,
	SettingVerifyLogChannel,
	SettingBlockedChannel,
	SettingTicketCategory,
	SettingTicketLogChannel,
}

var GameServers = []string{
	"카단", "카제로스", "니나브", "아브렐슈드",
	"실리안", "카마인", "아만", "루페온",
}

func IsGameServer(name string) bool {
	for _, s := range GameServers {
		if s == name {
			return true
		}
	}
	return false
}

func IsEditableSetting(key string) bool {
	for _, k := range EditableSettings {
		if k == key {
			return true
		}
	}
	return false
}

type Guild struct {
	GuildID      string    `json:"guild_id"`
	Server       string    `json:"server"`
	RegisteredBy string    `json:"registered_by"`
	CreatedAt    time.Time `json:"created_at"`
}

type Setting struct {
	GuildID   string    `json:"guild_id"`
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	ChangedBy string    `json:"changed_by"`
	UpdatedAt time.Time `json:"updated_at"`
}
