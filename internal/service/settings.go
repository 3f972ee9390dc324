package service

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/comtower/sms-relay/internal/model"
	"github.com/comtower/sms-relay/internal/repository"
)

// Fallback defaults when a setting is missing or unparseable.
const (
	DefaultCooldownHours        = 24.0
	DefaultValidityMinutes      = 10.0
	DefaultShortLinkExpiryHours = 2.0
	DefaultAnnouncement         = "Welcome to the SMS verification relay."
)

// SettingsService reads runtime settings from the config store with typed
// accessors. A missing or malformed value never fails a request; it falls
// back to the documented default and logs once per read.
type SettingsService struct {
	configRepo repository.ConfigRepository
}

// NewSettingsService creates a new settings service
func NewSettingsService(configRepo repository.ConfigRepository) *SettingsService {
	return &SettingsService{configRepo: configRepo}
}

// CooldownPeriod is how long a mapping stays unallocatable after a claim.
func (s *SettingsService) CooldownPeriod(ctx context.Context) time.Duration {
	hours := s.floatSetting(ctx, model.ConfigKeyCooldownPeriod, DefaultCooldownHours)
	return time.Duration(hours * float64(time.Hour))
}

// ValidityPeriod is the maximum age of messages a standard link may deliver.
func (s *SettingsService) ValidityPeriod(ctx context.Context) time.Duration {
	minutes := s.floatSetting(ctx, model.ConfigKeyValidityPeriod, DefaultValidityMinutes)
	return time.Duration(minutes * float64(time.Minute))
}

// ShortLinkExpiry is the lifetime of short-variant links.
func (s *SettingsService) ShortLinkExpiry(ctx context.Context) time.Duration {
	hours := s.floatSetting(ctx, model.ConfigKeyShortLinkExpiry, DefaultShortLinkExpiryHours)
	return time.Duration(hours * float64(time.Hour))
}

func (s *SettingsService) Announcement(ctx context.Context) string {
	cfg, err := s.configRepo.Get(ctx, model.ConfigKeyAnnouncement)
	if err != nil || cfg == nil {
		return DefaultAnnouncement
	}
	return cfg.ConfigValue
}

// TargetURL returns the scrape source, or "" when ingestion is not configured.
func (s *SettingsService) TargetURL(ctx context.Context) string {
	cfg, err := s.configRepo.Get(ctx, model.ConfigKeyTargetURL)
	if err != nil || cfg == nil {
		return ""
	}
	return cfg.ConfigValue
}

func (s *SettingsService) floatSetting(ctx context.Context, key string, fallback float64) float64 {
	cfg, err := s.configRepo.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Float64("fallback", fallback).
			Msg("failed to read setting, using fallback")
		return fallback
	}
	if cfg == nil {
		log.Warn().Str("key", key).Float64("fallback", fallback).
			Msg("setting missing, using fallback")
		return fallback
	}

	value, err := strconv.ParseFloat(cfg.ConfigValue, 64)
	if err != nil {
		log.Warn().Str("key", key).Str("value", cfg.ConfigValue).Float64("fallback", fallback).
			Msg("setting not numeric, using fallback")
		return fallback
	}
	return value
}
