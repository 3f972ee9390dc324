package model

import (
	"time"
)

// Well-known system config keys.
const (
	ConfigKeyCooldownPeriod  = "cooldownPeriod"  // hours, float-coercible
	ConfigKeyValidityPeriod  = "validityPeriod"  // minutes, float-coercible
	ConfigKeyShortLinkExpiry = "shortLinkExpiry" // hours, float-coercible
	ConfigKeyAnnouncement    = "announcement"
	ConfigKeyTargetURL       = "targetUrl"
	ConfigKeyLinkCount       = "linkCount"
)

// SystemConfig is one key/value row of runtime configuration.
type SystemConfig struct {
	ID          int64     `db:"id" json:"id"`
	ConfigKey   string    `db:"config_key" json:"configKey"`
	ConfigValue string    `db:"config_value" json:"configValue"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}
