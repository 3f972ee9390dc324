package service

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// slidingWindowScript counts hits inside the window and records the new one
// atomically. Returns {allowed, resetAt}: resetAt is when the oldest recorded
// hit leaves the window, so a throttled caller knows how long to back off.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)

if redis.call('ZCARD', key) >= limit then
    local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
    if #oldest >= 2 then
        return {0, tonumber(oldest[2]) + window}
    end
    return {0, now + window}
end

redis.call('ZADD', key, now, now .. '-' .. math.random())
redis.call('EXPIRE', key, window + 10)
return {1, now + window}
`)

// SlidingWindowLimiter throttles anonymous link resolution. Resolve keys are
// per client IP and shared across server instances through redis, since the
// same pool of tokens is reachable from any instance.
type SlidingWindowLimiter struct {
	client *redis.Client
}

func NewSlidingWindowLimiter(client *redis.Client) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{client: client}
}

// Allow records one hit for key and reports whether it fits under limit
// within the window. When redis is unreachable the hit is denied; a link
// token guards a phone number, so the limiter fails closed.
func (l *SlidingWindowLimiter) Allow(
	ctx context.Context,
	key string,
	limit int,
	window time.Duration,
) (allowed bool, resetAt time.Time) {
	result, err := slidingWindowScript.Run(
		ctx,
		l.client,
		[]string{fmt.Sprintf("ratelimit:%s", key)},
		time.Now().Unix(),
		int64(window.Seconds()),
		limit,
	).Int64Slice()
	if err != nil || len(result) != 2 {
		log.Warn().Err(err).Str("key", key).Msg("rate limit check failed, denying")
		return false, time.Now().Add(window)
	}

	return result[0] == 1, time.Unix(result[1], 0)
}
