package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/comtower/sms-relay/internal/database"
	apperrors "github.com/comtower/sms-relay/internal/errors"
	"github.com/comtower/sms-relay/internal/model"
	"github.com/comtower/sms-relay/internal/repository"
	"github.com/comtower/sms-relay/internal/util"
)

const (
	maxTokenAttempts = 5

	// A signup flow sends exactly two SMS (registration code plus
	// confirmation). A link is done once both have been delivered and read.
	completionMessageCount = 2
)

// LinkService issues access links against the phone pool and resolves them
// for end users. All multi-row mutations run inside a single transaction.
type LinkService struct {
	db       TxRunner
	mappings repository.MappingRepository
	links    repository.LinkRepository
	messages repository.MessageRepository
	configs  repository.ConfigRepository
	settings *SettingsService
	tokens   *TokenGenerator
	baseURL  string
	now      func() time.Time
}

// NewLinkService creates a new link service
func NewLinkService(
	db TxRunner,
	mappings repository.MappingRepository,
	links repository.LinkRepository,
	messages repository.MessageRepository,
	configs repository.ConfigRepository,
	settings *SettingsService,
	tokens *TokenGenerator,
	baseURL string,
) *LinkService {
	return &LinkService{
		db:       db,
		mappings: mappings,
		links:    links,
		messages: messages,
		configs:  configs,
		settings: settings,
		tokens:   tokens,
		baseURL:  strings.TrimRight(baseURL, "/"),
		now:      time.Now,
	}
}

// IssueLinks claims up to quantity available mappings and creates one access
// link per claim, returning the link URLs in claim order. Partial fulfillment
// is not an error; an empty pool is reported as capacity exhaustion and
// performs no writes. Selection, message purge, link insert and cooldown
// stamp commit as one transaction per batch.
func (s *LinkService) IssueLinks(ctx context.Context, quantity int, variant model.LinkVariant) ([]string, error) {
	if quantity < 1 {
		return nil, apperrors.InvalidInput("quantity", "must be at least 1")
	}

	cooldown := s.settings.CooldownPeriod(ctx)
	linkTTL := cooldown
	if variant == model.LinkVariantShort {
		linkTTL = s.settings.ShortLinkExpiry(ctx)
	}

	var urls []string
	err := retryTx(ctx, func() error {
		urls = nil
		return s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
			now := s.now().UTC()

			claimed, err := s.mappings.AllocateAvailable(ctx, tx, now, quantity)
			if err != nil {
				return fmt.Errorf("allocate mappings: %w", err)
			}
			if len(claimed) == 0 {
				return apperrors.CapacityExhausted()
			}

			cooldownUntil := now.Add(cooldown)
			expiresAt := now.Add(linkTTL)

			for _, mapping := range claimed {
				if _, err := s.messages.DeleteByPort(ctx, tx, mapping.ComPort); err != nil {
					return fmt.Errorf("purge messages for %s: %w", mapping.ComPort, err)
				}

				link, err := s.createLink(ctx, tx, mapping.ComPort, mapping.ID, variant, expiresAt)
				if err != nil {
					return err
				}

				if err := s.mappings.MarkAllocated(ctx, tx, mapping.ID, now, cooldownUntil); err != nil {
					return fmt.Errorf("mark mapping %d allocated: %w", mapping.ID, err)
				}

				urls = append(urls, s.linkURL(variant, link.Token))
			}

			if err := s.configs.Increment(ctx, tx, model.ConfigKeyLinkCount, len(claimed)); err != nil {
				return fmt.Errorf("bump link counter: %w", err)
			}

			log.Info().
				Int("requested", quantity).
				Int("issued", len(claimed)).
				Str("variant", string(variant)).
				Time("cooldownUntil", cooldownUntil).
				Msg("access links issued")
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return urls, nil
}

// createLink generates a token and inserts the link row. Tokens are unique by
// index; a clash with an existing row triggers regeneration, bounded so a
// degenerate pool of tokens cannot loop forever.
func (s *LinkService) createLink(
	ctx context.Context,
	tx *sqlx.Tx,
	comPort string,
	mappingID int64,
	variant model.LinkVariant,
	expiresAt time.Time,
) (*model.AccessLink, error) {
	for attempt := 0; attempt < maxTokenAttempts; attempt++ {
		token, err := s.generateToken(variant, comPort)
		if err != nil {
			return nil, fmt.Errorf("generate token: %w", err)
		}

		exists, err := s.links.TokenExists(ctx, tx, token)
		if err != nil {
			return nil, fmt.Errorf("check token: %w", err)
		}
		if exists {
			log.Warn().Str("token", util.MaskToken(token)).Msg("token collision, regenerating")
			continue
		}

		link, err := s.links.Create(ctx, tx, model.CreateAccessLinkParams{
			Token:     token,
			MappingID: mappingID,
			ExpiresAt: expiresAt,
		})
		if err != nil {
			if database.IsUniqueViolation(err) {
				// Lost the race against a concurrent insert of the same
				// token. The tx is aborted, so surface as transient.
				return nil, apperrors.TokenCollision().WithCause(err)
			}
			return nil, fmt.Errorf("create link: %w", err)
		}
		return link, nil
	}
	return nil, apperrors.TokenCollision()
}

func (s *LinkService) generateToken(variant model.LinkVariant, comPort string) (string, error) {
	if variant == model.LinkVariantShort {
		return s.tokens.Short(comPort)
	}
	return s.tokens.Standard(comPort)
}

func (s *LinkService) linkURL(variant model.LinkVariant, token string) string {
	if variant == model.LinkVariantShort {
		return fmt.Sprintf("%s/link/short/%s", s.baseURL, token)
	}
	return fmt.Sprintf("%s/link/%s", s.baseURL, token)
}

// ResolveResult is what an end user gets back for a valid token.
type ResolveResult struct {
	PhoneNumber  string
	Announcement string
	Messages     []model.SmsMessage
	Pending      bool
}

// Resolve looks up a link by token and walks its state machine:
//
//   - unknown token, terminal status or past expiry: invalid-or-expired,
//     uniformly, flipping a merely time-expired link to expired on the way.
//     The flip commits even though the caller gets an error, so the store
//     reflects the expiry and later resolves take the terminal-status path.
//   - fewer than two unconsumed messages: returned as-is with Pending set;
//     the link stays active and the caller polls again.
//   - two messages, all older than the validity window: the renter never
//     read them in time, the link expires without consuming anything.
//   - two messages, at least one fresh: both are consumed, stamped with this
//     link, and the link completes. Consumption and completion commit
//     together; a concurrent resolve of the same token serializes on the
//     locked link row and finds it terminal.
func (s *LinkService) Resolve(ctx context.Context, token string) (*ResolveResult, error) {
	var result *ResolveResult
	var invalid bool
	err := retryTx(ctx, func() error {
		result = nil
		invalid = false
		return s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
			link, err := s.links.FindByTokenForUpdate(ctx, tx, token)
			if err != nil {
				return fmt.Errorf("find link: %w", err)
			}
			if link == nil {
				invalid = true
				return nil
			}

			now := s.now().UTC()
			if link.Status != model.LinkStatusActive || link.TimeExpired(now) {
				if link.Status == model.LinkStatusActive && link.TimeExpired(now) {
					if _, err := s.links.UpdateStatusFrom(ctx, tx, link.ID, model.LinkStatusActive, model.LinkStatusExpired); err != nil {
						return fmt.Errorf("expire link: %w", err)
					}
					log.Info().Str("token", util.MaskToken(token)).Msg("link expired on access")
				}
				invalid = true
				return nil
			}

			msgs, err := s.messages.FindUnconsumedByPort(ctx, tx, link.ComPort, completionMessageCount)
			if err != nil {
				return fmt.Errorf("fetch messages: %w", err)
			}

			announcement := s.settings.Announcement(ctx)

			if len(msgs) < completionMessageCount {
				result = &ResolveResult{
					PhoneNumber:  link.PhoneNumber,
					Announcement: announcement,
					Messages:     msgs,
					Pending:      true,
				}
				return nil
			}

			threshold := now.Add(-s.settings.ValidityPeriod(ctx))
			if allOlderThan(msgs, threshold) {
				if _, err := s.links.UpdateStatusFrom(ctx, tx, link.ID, model.LinkStatusActive, model.LinkStatusExpired); err != nil {
					return fmt.Errorf("expire stale link: %w", err)
				}
				log.Info().Str("token", util.MaskToken(token)).Msg("link expired, messages stale")
				invalid = true
				return nil
			}

			ids := make([]int64, len(msgs))
			for i, m := range msgs {
				ids[i] = m.ID
			}
			if err := s.messages.MarkConsumed(ctx, tx, ids, link.ID); err != nil {
				return fmt.Errorf("mark messages consumed: %w", err)
			}

			ok, err := s.links.UpdateStatusFrom(ctx, tx, link.ID, model.LinkStatusActive, model.LinkStatusCompleted)
			if err != nil {
				return fmt.Errorf("complete link: %w", err)
			}
			if !ok {
				return apperrors.TransactionConflict(nil)
			}

			log.Info().
				Str("token", util.MaskToken(token)).
				Str("comPort", link.ComPort).
				Msg("link completed, messages consumed")

			result = &ResolveResult{
				PhoneNumber:  link.PhoneNumber,
				Announcement: announcement,
				Messages:     msgs,
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if invalid {
		return nil, apperrors.LinkInvalid()
	}
	return result, nil
}

func allOlderThan(msgs []model.SmsMessage, threshold time.Time) bool {
	for _, m := range msgs {
		if !m.OriginalTimestamp.Before(threshold) {
			return false
		}
	}
	return true
}
