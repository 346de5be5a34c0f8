package application

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"kadan/internal/models"
)

// BuildDisplayName renders a member's guild nickname from the primary
// character name. The secondary tag is added at most once.
func BuildDisplayName(nickname string, hasSecondary bool) string {
	base := StripSecondaryTag(nickname)
	if hasSecondary {
		return base + secondaryTag
	}
	return base
}

func StripSecondaryTag(nickname string) string {
	return strings.TrimSpace(strings.ReplaceAll(nickname, secondaryTag, ""))
}

func settingString(ctx context.Context, p SettingsProvider, guildID, key string) (string, error) {
	v, ok, err := p.Get(ctx, guildID, key)
	if err != nil {
		return "", fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	if !ok {
		return "", nil
	}
	return v, nil
}

// settingFloat falls back to def only when the key is unset or unparsable.
func settingFloat(ctx context.Context, p SettingsProvider, guildID, key string, def float64) (float64, error) {
	v, err := settingString(ctx, p, guildID, key)
	if err != nil {
		return 0, err
	}
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", ""), 64)
	if err != nil {
		return def, nil
	}
	return f, nil
}

func settingInt(ctx context.Context, p SettingsProvider, guildID, key string, def int) (int, error) {
	v, err := settingString(ctx, p, guildID, key)
	if err != nil {
		return 0, err
	}
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def, nil
	}
	return n, nil
}

// roleSetting reads a role id for a side effect. A failed read is logged and
// the side effect skipped.
func roleSetting(ctx context.Context, p SettingsProvider, logger Logger, guildID, key string) string {
	role, err := settingString(ctx, p, guildID, key)
	if err != nil {
		logger.Warn("read %s for guild %s failed: %v", key, guildID, err)
		return ""
	}
	return role
}

// guildRegion returns the registered region of a guild, or
// ErrGuildNotRegistered when none is set.
func guildRegion(ctx context.Context, p SettingsProvider, guildID string) (string, error) {
	region, err := settingString(ctx, p, guildID, models.SettingServer)
	if err != nil {
		return "", err
	}
	if region == "" {
		return "", ErrGuildNotRegistered
	}
	return region, nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
