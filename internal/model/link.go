package model

import (
	"time"
)

type LinkStatus string

const (
	LinkStatusActive    LinkStatus = "active"
	LinkStatusCompleted LinkStatus = "completed"
	LinkStatusExpired   LinkStatus = "expired"
)

type LinkVariant string

const (
	LinkVariantStandard LinkVariant = "standard"
	LinkVariantShort    LinkVariant = "short"
)

// AccessLink grants time-limited access to the messages of one mapping.
// Status moves active -> completed or active -> expired; both are terminal.
type AccessLink struct {
	ID        int64      `db:"id" json:"id"`
	Token     string     `db:"token" json:"token"`
	MappingID int64      `db:"mapping_id" json:"mappingId"`
	Status    LinkStatus `db:"status" json:"status"`
	ExpiresAt time.Time  `db:"expires_at" json:"expiresAt"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
}

// TimeExpired reports whether the link is past its wall-clock expiry.
func (l *AccessLink) TimeExpired(now time.Time) bool {
	return now.After(l.ExpiresAt)
}

// AccessLinkWithMapping is an access link joined with its mapping row.
type AccessLinkWithMapping struct {
	AccessLink
	ComPort     string `db:"com_port" json:"comPort"`
	PhoneNumber string `db:"phone_number" json:"phoneNumber"`
}

// CreateAccessLinkParams contains parameters for creating an access link.
type CreateAccessLinkParams struct {
	Token     string
	MappingID int64
	ExpiresAt time.Time
}
