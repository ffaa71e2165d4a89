package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/HammerMeetNail/lingopals/internal/handlers"
	"github.com/HammerMeetNail/lingopals/internal/logging"
)

// KeyFunc picks the identity a request is counted against.
type KeyFunc func(r *http.Request) string

// RateLimiter is a fixed-window counter kept in Redis, so limits hold
// across instances.
type RateLimiter struct {
	redis    *redis.Client
	limit    int
	window   time.Duration
	prefix   string
	keyFunc  KeyFunc
	failOpen bool
	now      func() time.Time
	// incr is nil without a Redis client. Swapped in tests.
	incr func(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

func NewRateLimiter(redisClient *redis.Client, limit int, window time.Duration, prefix string, keyFunc KeyFunc, failOpen bool) *RateLimiter {
	if keyFunc == nil {
		keyFunc = UserOrIPKey
	}
	rl := &RateLimiter{
		redis:    redisClient,
		limit:    limit,
		window:   window,
		prefix:   prefix,
		keyFunc:  keyFunc,
		failOpen: failOpen,
		now:      time.Now,
	}
	if redisClient != nil {
		rl.incr = rl.redisIncr
	}
	return rl
}

// NewFriendRequestLimiter limits friend request creation per user.
func NewFriendRequestLimiter(redisClient *redis.Client, limit int, window time.Duration) *RateLimiter {
	return NewRateLimiter(redisClient, limit, window, "ratelimit:friend-request:", UserOrIPKey, true)
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.incr == nil {
			if rl.failOpen {
				next.ServeHTTP(w, r)
				return
			}
			writeError(w, http.StatusServiceUnavailable, "Service temporarily unavailable")
			return
		}

		now := rl.now()
		windowStart := now.Truncate(rl.window)
		resetTime := windowStart.Add(rl.window).Unix()
		key := fmt.Sprintf("%s%s:%d", rl.prefix, rl.keyFunc(r), windowStart.Unix())

		count, err := rl.incr(r.Context(), key, rl.window)
		if err != nil {
			logging.FromContext(r.Context()).Warn("Rate limiter unavailable", logging.Fields{"error": err.Error()})
			if rl.failOpen {
				next.ServeHTTP(w, r)
				return
			}
			writeError(w, http.StatusServiceUnavailable, "Service temporarily unavailable")
			return
		}

		remaining := rl.limit - int(count)
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", rl.limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", resetTime))

		if int(count) > rl.limit {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", resetTime-now.Unix()))
			writeError(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) redisIncr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	pipe := rl.redis.Pipeline()
	incrCmd := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incrCmd.Val(), nil
}

// UserOrIPKey counts authenticated requests per user and the rest per IP.
func UserOrIPKey(r *http.Request) string {
	if user := handlers.GetUserFromContext(r.Context()); user != nil {
		return "user:" + user.ID.String()
	}
	return "ip:" + GetClientIP(r)
}

func GetClientIP(r *http.Request) string {
	// Take the first hop from X-Forwarded-For.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ip := strings.TrimSpace(strings.Split(xff, ",")[0])
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
		return ip
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
