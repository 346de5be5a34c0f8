package config

import (
	"fmt"
	"time"

	"kadan/internal/integration/lostark"
	"kadan/internal/repository"

	"github.com/caarlos0/env/v11"
)

const (
	ModeTest = "test"
	ModeProd = "prod"
)

type Config struct {
	Mode             string            `env:"BOT_MODE" envDefault:"test"`
	Repo             repository.Config `envPrefix:"REPO_"`
	Lostark          lostark.Config    `envPrefix:"LOSTARK_"`
	DiscordTokenTest string            `env:"DISCORD_TOKEN_TEST" envDefault:""`
	DiscordTokenProd string            `env:"DISCORD_TOKEN_PROD" envDefault:""`
	CommandGuildID   string            `env:"DISCORD_COMMAND_GUILD_ID" envDefault:""`
	LogLevel         string            `env:"LOGGER_LEVEL" envDefault:"debug"`
	LogFormat        string            `env:"LOGGER_FORMAT" envDefault:"json"`

	AdminUserIDs     []string      `env:"ADMIN_USER_IDS" envSeparator:"," envDefault:""`
	VerifySessionTTL time.Duration `env:"VERIFY_SESSION_TTL" envDefault:"10m"`
	SettingsTTL      time.Duration `env:"SETTINGS_TTL" envDefault:"1m"`
	APIAddr          string        `env:"API_ADDR" envDefault:""`

	TelegramToken        string  `env:"TELEGRAM_TOKEN" envDefault:""`
	TelegramAdminChatIDs []int64 `env:"TELEGRAM_ADMIN_CHAT_IDS" envSeparator:"," envDefault:""`

	GoogleCredentialsFile  string `env:"GOOGLE_CREDENTIALS_FILE" envDefault:""`
	BlocklistSpreadsheetID string `env:"BLOCKLIST_SPREADSHEET_ID" envDefault:""`
	GoogleOwnerEmail       string `env:"GOOGLE_OWNER_EMAIL" envDefault:""`
}

func ReadEnvConfig(cfg *Config) error {
	return env.Parse(cfg)
}

// DiscordToken picks the bot token for the launch mode.
func (c *Config) DiscordToken() (string, error) {
	var token string
	switch c.Mode {
	case ModeTest:
		token = c.DiscordTokenTest
	case ModeProd:
		token = c.DiscordTokenProd
	default:
		return "", fmt.Errorf("unknown mode %q, expected %s or %s", c.Mode, ModeTest, ModeProd)
	}
	if token == "" {
		return "", fmt.Errorf("discord token for mode %s is not set", c.Mode)
	}
	return token, nil
}
