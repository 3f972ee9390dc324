package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/comtower/sms-relay/internal/database"
	"github.com/comtower/sms-relay/internal/model"
)

// MessageRepository handles scraped SMS rows. Inserts come from the ingestion
// job; consumption marking and purges happen inside link transactions.
type MessageRepository interface {
	Insert(ctx context.Context, params model.CreateSmsMessageParams) (bool, error)
	FindUnconsumedByPort(ctx context.Context, q database.DBTX, comPort string, limit int) ([]model.SmsMessage, error)
	MarkConsumed(ctx context.Context, q database.DBTX, ids []int64, linkID int64) error
	DeleteByPort(ctx context.Context, q database.DBTX, comPort string) (int64, error)
	CountUnconsumed(ctx context.Context) (int, error)
	DeleteAll(ctx context.Context, q database.DBTX) error
}

type messageRepo struct {
	db *sqlx.DB
}

// NewMessageRepository creates a new SMS message repository
func NewMessageRepository(db *sqlx.DB) MessageRepository {
	return &messageRepo{db: db}
}

// Insert stores a scraped message, keyed by its upstream external id.
// Re-inserting the same external id is a no-op; the bool reports whether a
// new row was actually written.
func (r *messageRepo) Insert(ctx context.Context, params model.CreateSmsMessageParams) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO sms_messages
			(external_id, com_port, sender_number, receiver_number, content, original_timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (external_id) DO NOTHING
	`, params.ExternalID, params.ComPort, params.SenderNumber,
		params.ReceiverNumber, params.Content, params.OriginalTimestamp)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// FindUnconsumedByPort returns the most recent unconsumed messages for a port,
// newest first by origin timestamp.
func (r *messageRepo) FindUnconsumedByPort(ctx context.Context, q database.DBTX, comPort string, limit int) ([]model.SmsMessage, error) {
	var msgs []model.SmsMessage
	err := q.SelectContext(ctx, &msgs, `
		SELECT * FROM sms_messages
		WHERE com_port = $1 AND is_consumed = FALSE
		ORDER BY original_timestamp DESC
		LIMIT $2
	`, comPort, limit)
	return msgs, err
}

// MarkConsumed stamps the given messages as consumed by linkID. Rows already
// consumed are left untouched so the consuming link reference never changes.
func (r *messageRepo) MarkConsumed(ctx context.Context, q database.DBTX, ids []int64, linkID int64) error {
	_, err := q.ExecContext(ctx, `
		UPDATE sms_messages
		SET is_consumed = TRUE, consumed_by_link_id = $2
		WHERE id = ANY($1) AND is_consumed = FALSE
	`, pq.Array(ids), linkID)
	return err
}

// DeleteByPort purges every message for a port. Called when a new link is
// issued so a previous renter's codes never leak to the next one.
func (r *messageRepo) DeleteByPort(ctx context.Context, q database.DBTX, comPort string) (int64, error) {
	result, err := q.ExecContext(ctx, `DELETE FROM sms_messages WHERE com_port = $1`, comPort)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *messageRepo) CountUnconsumed(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM sms_messages WHERE is_consumed = FALSE
	`)
	return count, err
}

func (r *messageRepo) DeleteAll(ctx context.Context, q database.DBTX) error {
	_, err := q.ExecContext(ctx, `DELETE FROM sms_messages`)
	return err
}
