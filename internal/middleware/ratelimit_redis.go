package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/comtower/sms-relay/internal/service"
)

const resolveRateLimitWindow = time.Minute

// ResolveRateLimitMiddleware throttles anonymous link resolution per client
// IP, backed by the shared redis sliding window. Resolve tokens are
// unguessable but short; this keeps enumeration attempts expensive.
type ResolveRateLimitMiddleware struct {
	limiter *service.SlidingWindowLimiter
	limit   int
}

func NewResolveRateLimitMiddleware(client *redis.Client, limit int) *ResolveRateLimitMiddleware {
	return &ResolveRateLimitMiddleware{
		limiter: service.NewSlidingWindowLimiter(client),
		limit:   limit,
	}
}

func (m *ResolveRateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			ip = forwarded
		}

		key := fmt.Sprintf("resolve:%s", ip)
		allowed, resetAt := m.limiter.Allow(r.Context(), key, m.limit, resolveRateLimitWindow)
		if !allowed {
			log.Warn().Str("ip", ip).Msg("resolve rate limit exceeded")
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(time.Until(resetAt).Seconds())+1))
			writeJSON(w, http.StatusTooManyRequests, map[string]string{
				"error": "Rate limit exceeded",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}
