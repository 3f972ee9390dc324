package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/comtower/sms-relay/internal/model"
	"github.com/comtower/sms-relay/internal/repository"
)

// ScrapedMessage is one SMS row lifted off the upstream dashboard.
type ScrapedMessage struct {
	ExternalID        string
	ComPort           string
	SenderNumber      string
	ReceiverNumber    string
	Content           string
	OriginalTimestamp time.Time
}

// IngestService writes scraped rows into the message store. Insertion is
// idempotent on the upstream external id, so re-scraping the same table is
// harmless and no last-seen cache is needed.
type IngestService struct {
	messages repository.MessageRepository
}

// NewIngestService creates a new ingest service
func NewIngestService(messages repository.MessageRepository) *IngestService {
	return &IngestService{messages: messages}
}

// Ingest stores the given rows, returning how many were new. A failed row is
// logged and skipped; one bad row must not block the rest of a scrape.
func (s *IngestService) Ingest(ctx context.Context, rows []ScrapedMessage) (int, error) {
	inserted := 0
	for _, row := range rows {
		if row.ExternalID == "" || row.ComPort == "" {
			continue
		}

		params := model.CreateSmsMessageParams{
			ExternalID:        row.ExternalID,
			ComPort:           row.ComPort,
			Content:           row.Content,
			OriginalTimestamp: row.OriginalTimestamp.UTC(),
		}
		if row.SenderNumber != "" {
			params.SenderNumber = &row.SenderNumber
		}
		if row.ReceiverNumber != "" {
			params.ReceiverNumber = &row.ReceiverNumber
		}

		isNew, err := s.messages.Insert(ctx, params)
		if err != nil {
			log.Error().Err(err).Str("externalId", row.ExternalID).Msg("failed to insert scraped message")
			continue
		}
		if isNew {
			inserted++
		}
	}

	if inserted > 0 {
		log.Info().Int("inserted", inserted).Int("scraped", len(rows)).Msg("messages ingested")
	}
	return inserted, nil
}
