package application

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"kadan/internal/models"
	"kadan/internal/repository"
)

type SettingsService interface {
	SettingsProvider
	GuildSettings(ctx context.Context, guildID string) (map[string]string, error)
	GuildIDs(ctx context.Context) ([]string, error)
	Update(ctx context.Context, guildID, key, value, changedBy, reason string) (*string, error)
	RegisterGuild(ctx context.Context, guildID, server, registeredBy string) error
}

// SettingsServiceImpl serves settings from a cache that is reloaded when it
// is older than the TTL and right after every write.
type SettingsServiceImpl struct {
	repo   repository.Settings
	cache  *repository.SettingsCache
	logger Logger
	mu     sync.Mutex
}

func NewSettingsServiceImpl(repo repository.Settings, ttl time.Duration, logger Logger) *SettingsServiceImpl {
	return &SettingsServiceImpl{
		repo:   repo,
		cache:  repository.NewSettingsCache(ttl),
		logger: logger,
	}
}

func (s *SettingsServiceImpl) Get(ctx context.Context, guildID, key string) (string, bool, error) {
	if err := s.ensureFresh(ctx); err != nil {
		return "", false, err
	}
	v, _ := s.cache.Get(guildID, key)
	return v, v != "", nil
}

func (s *SettingsServiceImpl) GuildSettings(ctx context.Context, guildID string) (map[string]string, error) {
	if err := s.ensureFresh(ctx); err != nil {
		return nil, err
	}
	return s.cache.Guild(guildID), nil
}

func (s *SettingsServiceImpl) GuildIDs(ctx context.Context) ([]string, error) {
	if err := s.ensureFresh(ctx); err != nil {
		return nil, err
	}
	return s.cache.GuildIDs(), nil
}

func (s *SettingsServiceImpl) Refresh(ctx context.Context) error {
	all, err := s.repo.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh settings: %w", err)
	}
	s.cache.Replace(all)
	s.logger.Debug("settings refreshed: %d guilds", len(all))
	return nil
}

func (s *SettingsServiceImpl) Set(ctx context.Context, guildID, key, value, changedBy string) error {
	_, err := s.Update(ctx, guildID, key, value, changedBy, "")
	return err
}

// Update validates and stores one editable setting, returning the previous value.
func (s *SettingsServiceImpl) Update(ctx context.Context, guildID, key, value, changedBy, reason string) (*string, error) {
	if !models.IsEditableSetting(key) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSetting, key)
	}
	value = strings.TrimSpace(value)
	if err := validateSetting(key, value); err != nil {
		return nil, err
	}

	old, err := s.repo.Set(ctx, guildID, key, value, changedBy, reason)
	if err != nil {
		return nil, err
	}
	s.cache.Put(guildID, key, value)
	if err := s.Refresh(ctx); err != nil {
		s.logger.Warn("reload after setting %s failed: %v", key, err)
	}
	s.logger.Info("setting %s of guild %s changed by %s", key, guildID, changedBy)
	return old, nil
}

func (s *SettingsServiceImpl) RegisterGuild(ctx context.Context, guildID, server, registeredBy string) error {
	if !models.IsGameServer(server) {
		return fmt.Errorf("%w: %s", ErrInvalidSetting, server)
	}
	if err := s.repo.RegisterGuild(ctx, guildID, server, registeredBy); err != nil {
		return err
	}
	s.cache.Put(guildID, models.SettingServer, server)
	if err := s.Refresh(ctx); err != nil {
		s.logger.Warn("reload after guild registration failed: %v", err)
	}
	return nil
}

func (s *SettingsServiceImpl) ensureFresh(ctx context.Context) error {
	if s.cache.Fresh() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cache.Fresh() {
		return nil
	}
	return s.Refresh(ctx)
}

func validateSetting(key, value string) error {
	switch key {
	case models.SettingMainMinLevel:
		f, err := strconv.ParseFloat(strings.ReplaceAll(value, ",", ""), 64)
		if err != nil || f < 0 {
			return fmt.Errorf("%w: %s must be a non-negative number", ErrInvalidSetting, key)
		}
	case models.SettingMaxSubAccounts:
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("%w: %s must be a non-negative integer", ErrInvalidSetting, key)
		}
	default:
		if _, err := strconv.ParseUint(value, 10, 64); err != nil {
			return fmt.Errorf("%w: %s must be a discord id", ErrInvalidSetting, key)
		}
	}
	return nil
}
