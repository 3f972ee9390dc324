package model

import (
	"time"
)

// SmsMessage is one scraped SMS row. ExternalID comes from the upstream
// dashboard and makes ingestion idempotent. Once IsConsumed is set the
// ConsumedByLinkID is fixed and never changes again.
type SmsMessage struct {
	ID                int64     `db:"id" json:"id"`
	ExternalID        string    `db:"external_id" json:"externalId"`
	ComPort           string    `db:"com_port" json:"comPort"`
	SenderNumber      *string   `db:"sender_number" json:"senderNumber,omitempty"`
	ReceiverNumber    *string   `db:"receiver_number" json:"receiverNumber,omitempty"`
	Content           string    `db:"content" json:"content"`
	OriginalTimestamp time.Time `db:"original_timestamp" json:"originalTimestamp"`
	IsConsumed        bool      `db:"is_consumed" json:"isConsumed"`
	ConsumedByLinkID  *int64    `db:"consumed_by_link_id" json:"consumedByLinkId,omitempty"`
	CreatedAt         time.Time `db:"created_at" json:"createdAt"`
}

// CreateSmsMessageParams contains parameters for inserting a scraped message.
type CreateSmsMessageParams struct {
	ExternalID        string
	ComPort           string
	SenderNumber      *string
	ReceiverNumber    *string
	Content           string
	OriginalTimestamp time.Time
}
