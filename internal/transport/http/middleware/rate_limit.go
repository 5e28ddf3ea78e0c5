package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arklim/autodoc-access/internal/core/port"
	appLogger "github.com/arklim/autodoc-access/internal/infra/logger"
	"github.com/arklim/autodoc-access/internal/infra/security"
)

const rateLimitProblemType = "https://autodoc.dev/errors/rate-limit-exceeded"

// IdentifierFunc extracts the identifier used to scope rate limits.
type IdentifierFunc func(*gin.Context) (string, bool)

// RateLimitRule caps requests per identifier inside a sliding window.
type RateLimitRule struct {
	Name       string
	Limit      int
	Window     time.Duration
	Identifier IdentifierFunc
}

// RateLimiter enforces RateLimitRules against a port.RateLimitStore. Store
// failures fail open.
type RateLimiter struct {
	store  port.RateLimitStore
	logger *zap.Logger
	now    func() time.Time
}

// quota is the state of one rule's window after a request was counted.
type quota struct {
	limit     int
	remaining int
	reset     time.Time
	exhausted bool
}

// tighter reports whether q should drive the response headers instead of other.
func (q quota) tighter(other quota) bool {
	if q.exhausted != other.exhausted {
		return q.exhausted
	}
	if q.remaining != other.remaining {
		return q.remaining < other.remaining
	}
	return q.reset.Before(other.reset)
}

// ProblemDetails is the RFC 9457 body returned with 429 responses.
type ProblemDetails struct {
	Type       string         `json:"type"`
	Title      string         `json:"title"`
	Status     int            `json:"status"`
	Detail     string         `json:"detail"`
	Instance   string         `json:"instance"`
	RetryAfter int            `json:"retry_after"`
	TraceID    string         `json:"trace_id,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

func NewRateLimiter(store port.RateLimitStore, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{store: store, logger: logger, now: time.Now}
}

// WithClock overrides the time source.
func (rl *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	if now != nil {
		rl.now = now
	}
	return rl
}

// ClientIPIdentifier scopes limits by the request's client IP.
func ClientIPIdentifier() IdentifierFunc {
	return func(c *gin.Context) (string, bool) {
		ip := c.ClientIP()
		return ip, ip != ""
	}
}

// APIKeyIdentifier scopes limits by a digest of the presented API key, falling back to the client IP.
func APIKeyIdentifier() IdentifierFunc {
	byIP := ClientIPIdentifier()
	return func(c *gin.Context) (string, bool) {
		if key := ExtractAPIKey(c); key != "" {
			return "key:" + security.HashToken(key)[:16], true
		}
		return byIP(c)
	}
}

// RateLimit returns a middleware enforcing rules in order. The first exhausted
// rule rejects the request; otherwise the tightest quota is advertised.
func (rl *RateLimiter) RateLimit(rules ...RateLimitRule) gin.HandlerFunc {
	active := make([]RateLimitRule, 0, len(rules))
	for _, rule := range rules {
		if rule.Identifier == nil || rule.Limit <= 0 || rule.Window <= 0 {
			continue
		}
		if rule.Name == "" {
			rule.Name = "default"
		}
		active = append(active, rule)
	}

	return func(c *gin.Context) {
		if len(active) == 0 || rl.store == nil {
			c.Next()
			return
		}

		now := rl.now()
		var advertised *quota

		for _, rule := range active {
			identifier, ok := rule.Identifier(c)
			if !ok || identifier == "" {
				continue
			}

			q, err := rl.consume(c.Request.Context(), rule, rule.Name+":"+identifier, now)
			if err != nil {
				rl.logger.Warn("rate limit check failed",
					zap.String("rule", rule.Name),
					zap.String("identifier", appLogger.MaskString(identifier)),
					zap.Error(err),
				)
				continue
			}

			if q.exhausted {
				rl.reject(c, rule, identifier, q, now)
				return
			}
			if advertised == nil || q.tighter(*advertised) {
				snapshot := q
				advertised = &snapshot
			}
		}

		if advertised != nil {
			writeQuotaHeaders(c, *advertised, now)
		}
		c.Next()
	}
}

// consume trims the window, and records the attempt when the quota still has room.
func (rl *RateLimiter) consume(ctx context.Context, rule RateLimitRule, key string, now time.Time) (quota, error) {
	if err := rl.store.TrimWindow(ctx, key, rule.Window, now); err != nil {
		return quota{}, err
	}
	used, err := rl.store.CountAttempts(ctx, key, rule.Window, now)
	if err != nil {
		return quota{}, err
	}
	oldest, found, err := rl.store.OldestAttempt(ctx, key, rule.Window, now)
	if err != nil {
		return quota{}, err
	}

	q := quota{limit: rule.Limit, reset: now.Add(rule.Window)}
	if found {
		q.reset = oldest.Add(rule.Window)
	}

	if used >= rule.Limit {
		q.exhausted = true
		return q, nil
	}

	if err := rl.store.RecordAttempt(ctx, key, now); err != nil {
		return quota{}, err
	}
	q.remaining = max(rule.Limit-used-1, 0)
	return q, nil
}

func (rl *RateLimiter) reject(c *gin.Context, rule RateLimitRule, identifier string, q quota, now time.Time) {
	writeQuotaHeaders(c, q, now)
	retry := retryAfterSeconds(q, now)

	instance := c.FullPath()
	if instance == "" {
		instance = c.Request.URL.Path
	}

	rl.logger.Info("rate limit exceeded",
		zap.String("rule", rule.Name),
		zap.String("identifier", appLogger.MaskString(identifier)),
		zap.String("route", instance),
		zap.Int("retry_after", retry),
	)

	c.AbortWithStatusJSON(http.StatusTooManyRequests, ProblemDetails{
		Type:       rateLimitProblemType,
		Title:      "Rate Limit Exceeded",
		Status:     http.StatusTooManyRequests,
		Detail:     fmt.Sprintf("Too many requests. Try again in %d seconds.", retry),
		Instance:   instance,
		RetryAfter: retry,
		TraceID:    GetTraceID(c),
		Extensions: map[string]any{"rule": rule.Name, "limit": rule.Limit},
	})
}

func writeQuotaHeaders(c *gin.Context, q quota, now time.Time) {
	h := c.Writer.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(q.limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(q.remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(q.reset.Unix(), 10))
	if q.exhausted {
		h.Set("Retry-After", strconv.Itoa(retryAfterSeconds(q, now)))
	}
}

func retryAfterSeconds(q quota, now time.Time) int {
	wait := q.reset.Sub(now)
	if wait <= 0 {
		return 0
	}
	return int(math.Ceil(wait.Seconds()))
}
