package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Admin sessions live in redis with this TTL.
const AdminSessionTTL = 12 * time.Hour

// Scrape fetch timeout per poll
const ScrapeFetchTimeout = 30 * time.Second

// Resolve endpoint rate limit per IP per minute
const ResolveRateLimitPerMin = 30
