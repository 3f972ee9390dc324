package model

import (
	"time"
)

// ComPhoneMapping pairs a hardware COM port with the phone number of the SIM
// card behind it. A mapping is allocatable when its cooldown window has passed.
type ComPhoneMapping struct {
	ID            int64      `db:"id" json:"id"`
	ComPort       string     `db:"com_port" json:"comPort"`
	PhoneNumber   string     `db:"phone_number" json:"phoneNumber"`
	LastLinkedAt  *time.Time `db:"last_linked_at" json:"lastLinkedAt,omitempty"`
	CooldownUntil *time.Time `db:"cooldown_until" json:"cooldownUntil,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"createdAt"`
}

// Available reports whether the mapping can be claimed at the given time.
func (m *ComPhoneMapping) Available(now time.Time) bool {
	return m.CooldownUntil == nil || now.After(*m.CooldownUntil)
}

// ImportMappingParams contains one row of a bulk mapping import.
type ImportMappingParams struct {
	ComPort     string `json:"comPort"`
	PhoneNumber string `json:"phoneNumber"`
}
