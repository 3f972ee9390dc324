package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	apperrors "github.com/comtower/sms-relay/internal/errors"
	"github.com/comtower/sms-relay/internal/model"
	"github.com/comtower/sms-relay/internal/repository"
)

// PoolService manages the phone number inventory: bulk import, listing with
// availability counts, and the manual cooldown override.
type PoolService struct {
	db       TxRunner
	mappings repository.MappingRepository
	links    repository.LinkRepository
	now      func() time.Time
}

// NewPoolService creates a new pool service
func NewPoolService(db TxRunner, mappings repository.MappingRepository, links repository.LinkRepository) *PoolService {
	return &PoolService{
		db:       db,
		mappings: mappings,
		links:    links,
		now:      time.Now,
	}
}

// Import upserts mappings in one transaction, keyed by COM port. Rows with a
// blank port or number are skipped, matching the bulk import contract.
func (s *PoolService) Import(ctx context.Context, rows []model.ImportMappingParams) (int, error) {
	if len(rows) == 0 {
		return 0, apperrors.MissingRequired("mappings")
	}

	imported := 0
	err := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		for _, row := range rows {
			if row.ComPort == "" || row.PhoneNumber == "" {
				continue
			}
			if err := s.mappings.Upsert(ctx, tx, row.ComPort, row.PhoneNumber); err != nil {
				return fmt.Errorf("import mapping %s: %w", row.ComPort, err)
			}
			imported++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	log.Info().Int("count", imported).Msg("mappings imported")
	return imported, nil
}

// MappingPage is one page of the inventory listing.
type MappingPage struct {
	Total     int                     `json:"total"`
	Available int                     `json:"available"`
	Page      int                     `json:"page"`
	Limit     int                     `json:"limit"`
	Data      []model.ComPhoneMapping `json:"data"`
}

// List returns one page of mappings together with total and currently
// available counts.
func (s *PoolService) List(ctx context.Context, page, limit int) (*MappingPage, error) {
	total, err := s.mappings.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count mappings: %w", err)
	}

	available, err := s.mappings.CountAvailable(ctx, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("count available mappings: %w", err)
	}

	offset := (page - 1) * limit
	data, err := s.mappings.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list mappings: %w", err)
	}

	return &MappingPage{
		Total:     total,
		Available: available,
		Page:      page,
		Limit:     limit,
		Data:      data,
	}, nil
}

// ResetCooldown frees the given mappings early: clears their cooldown and
// deletes any access links bound to them, in one transaction so a mapping is
// never left allocatable while an old link still points at it.
func (s *PoolService) ResetCooldown(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, apperrors.MissingRequired("ids")
	}

	var affected int64
	err := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		affected, err = s.mappings.ResetCooldown(ctx, tx, ids)
		if err != nil {
			return fmt.Errorf("reset cooldown: %w", err)
		}
		if affected == 0 {
			return apperrors.NotFound("mapping")
		}

		if _, err := s.links.DeleteByMappingIDs(ctx, tx, ids); err != nil {
			return fmt.Errorf("purge links: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	log.Info().Int64("affected", affected).Ints64("ids", ids).Msg("cooldown reset")
	return affected, nil
}
