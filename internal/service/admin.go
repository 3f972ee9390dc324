package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	apperrors "github.com/comtower/sms-relay/internal/errors"
	"github.com/comtower/sms-relay/internal/model"
	redisclient "github.com/comtower/sms-relay/internal/redis"
	"github.com/comtower/sms-relay/internal/repository"
	"github.com/comtower/sms-relay/internal/util"
)

// AdminService backs the admin API: login sessions, runtime config edits,
// service stats and the full data wipe.
type AdminService struct {
	db          TxRunner
	redisClient *redisclient.Client
	mappings    repository.MappingRepository
	links       repository.LinkRepository
	messages    repository.MessageRepository
	configs     repository.ConfigRepository
	secretKey   string
	sessionTTL  time.Duration
}

// NewAdminService creates a new admin service. secretKey may be either the
// plain shared secret or a bcrypt hash of it (prefix $2).
func NewAdminService(
	db TxRunner,
	redisClient *redisclient.Client,
	mappings repository.MappingRepository,
	links repository.LinkRepository,
	messages repository.MessageRepository,
	configs repository.ConfigRepository,
	secretKey string,
	sessionTTL time.Duration,
) *AdminService {
	return &AdminService{
		db:          db,
		redisClient: redisClient,
		mappings:    mappings,
		links:       links,
		messages:    messages,
		configs:     configs,
		secretKey:   secretKey,
		sessionTTL:  sessionTTL,
	}
}

// Login verifies the shared secret and returns a session token, or "" when
// the secret does not match.
func (s *AdminService) Login(ctx context.Context, secretKey string) (string, error) {
	if s.secretKey == "" {
		return "", apperrors.Unauthorized("Admin is not configured")
	}

	if !s.secretMatches(secretKey) {
		return "", nil
	}

	token, err := util.GenerateSessionToken()
	if err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}

	key := redisclient.AdminSessionKey(token)
	if err := s.redisClient.Set(ctx, key, "1", s.sessionTTL).Err(); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}

	return token, nil
}

func (s *AdminService) secretMatches(candidate string) bool {
	if strings.HasPrefix(s.secretKey, "$2") {
		return util.CheckPasswordHash(candidate, s.secretKey)
	}
	return util.ConstantTimeEqual(candidate, s.secretKey)
}

// Logout invalidates a session token.
func (s *AdminService) Logout(ctx context.Context, token string) error {
	return s.redisClient.Del(ctx, redisclient.AdminSessionKey(token)).Err()
}

// ValidateSession reports whether the token belongs to a live session.
func (s *AdminService) ValidateSession(ctx context.Context, token string) bool {
	if token == "" {
		return false
	}
	err := s.redisClient.Get(ctx, redisclient.AdminSessionKey(token)).Err()
	if err == goredis.Nil {
		return false
	}
	if err != nil {
		log.Error().Err(err).Msg("admin session lookup failed")
		return false
	}
	return true
}

// SetConfig writes one runtime setting.
func (s *AdminService) SetConfig(ctx context.Context, key, value string) error {
	if key == "" {
		return apperrors.MissingRequired("key")
	}
	if err := s.configs.Upsert(ctx, key, value); err != nil {
		return fmt.Errorf("upsert config: %w", err)
	}
	log.Info().Str("key", key).Msg("config updated")
	return nil
}

// Configs returns every runtime setting.
func (s *AdminService) Configs(ctx context.Context) ([]model.SystemConfig, error) {
	return s.configs.GetAll(ctx)
}

// Stats summarizes the pool and link state for the admin dashboard.
type Stats struct {
	Mappings struct {
		Total     int `json:"total"`
		Available int `json:"available"`
	} `json:"mappings"`
	Links struct {
		Active    int `json:"active"`
		Completed int `json:"completed"`
		Expired   int `json:"expired"`
	} `json:"links"`
	UnconsumedMessages int `json:"unconsumedMessages"`
}

func (s *AdminService) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	total, err := s.mappings.Count(ctx)
	if err != nil {
		return nil, err
	}
	stats.Mappings.Total = total

	available, err := s.mappings.CountAvailable(ctx, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	stats.Mappings.Available = available

	active, err := s.links.CountByStatus(ctx, model.LinkStatusActive)
	if err != nil {
		return nil, err
	}
	stats.Links.Active = active

	completed, err := s.links.CountByStatus(ctx, model.LinkStatusCompleted)
	if err != nil {
		return nil, err
	}
	stats.Links.Completed = completed

	expired, err := s.links.CountByStatus(ctx, model.LinkStatusExpired)
	if err != nil {
		return nil, err
	}
	stats.Links.Expired = expired

	unconsumed, err := s.messages.CountUnconsumed(ctx)
	if err != nil {
		return nil, err
	}
	stats.UnconsumedMessages = unconsumed

	return stats, nil
}

// DeleteAllData wipes links, messages and mappings in one transaction.
// Runtime configs survive.
func (s *AdminService) DeleteAllData(ctx context.Context) error {
	err := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.links.DeleteAll(ctx, tx); err != nil {
			return fmt.Errorf("delete links: %w", err)
		}
		if err := s.messages.DeleteAll(ctx, tx); err != nil {
			return fmt.Errorf("delete messages: %w", err)
		}
		if err := s.mappings.DeleteAll(ctx, tx); err != nil {
			return fmt.Errorf("delete mappings: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Warn().Msg("all pool, message and link data deleted")
	return nil
}
