// Package limiter enforces per-key request limits: a monthly quota drawn from
// the key's plan and a fixed-window per-minute rate limit.
package limiter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/zenith-gateway/zenith-gateway/internal/db/models"
	"github.com/zenith-gateway/zenith-gateway/internal/safego"
	"github.com/zenith-gateway/zenith-gateway/internal/store"
	"github.com/zenith-gateway/zenith-gateway/internal/telemetry"
)

const (
	// DefaultRateLimitPerMin applies to active keys without an assigned plan.
	DefaultRateLimitPerMin = 60

	// monthlyCounterTTL keeps a monthly usage counter alive past the end of
	// its month so billing reads are not racing the expiry.
	monthlyCounterTTL = 35 * 24 * time.Hour

	ReasonRateLimited   = "rate-limited"
	ReasonQuotaExceeded = "quota-exceeded"
)

// Decision is the outcome of a limiter check for one request.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
	Reason     string
}

// Limiter decides whether a request for the given credential may proceed.
// origin is the client network address. PlanLimiter ignores it; the
// degraded-mode FallbackLimiter keys its window on it so limits cannot be
// multiplied by spreading traffic across keys.
type Limiter interface {
	Allow(ctx context.Context, cred *models.Credential, origin string) Decision
}

// PlanLimiter enforces plan limits against a shared counter store. Counter
// buckets are keyed by unix minute so every gateway instance pointing at the
// same store shares one window.
type PlanLimiter struct {
	store  store.Store
	logger *slog.Logger
	now    func() time.Time
}

func NewPlanLimiter(s store.Store, logger *slog.Logger) *PlanLimiter {
	return &PlanLimiter{store: s, logger: logger, now: time.Now}
}

// Allow checks the monthly quota before touching the minute window, so a key
// over quota does not consume rate-limit budget. Store failures fail open: a
// broken counter store degrades accounting, not availability.
func (l *PlanLimiter) Allow(ctx context.Context, cred *models.Credential, _ string) Decision {
	limit := DefaultRateLimitPerMin
	var quota int64
	if cred.Plan != nil {
		limit = cred.Plan.RateLimitPerMin
		quota = cred.Plan.MonthlyQuota
	}

	if quota > 0 {
		used, err := l.store.GetCount(ctx, l.monthlyKey(cred.ID))
		if err != nil {
			return l.failOpen(cred.ID, limit, "monthly quota check failed", err)
		}
		if used >= quota {
			return Decision{
				Allowed:   false,
				Limit:     limit,
				Remaining: 0,
				Reason:    ReasonQuotaExceeded,
			}
		}
	}

	count, err := l.store.IncrWithExpiry(ctx, l.minuteKey(cred.ID), store.MinuteWindow)
	if err != nil {
		return l.failOpen(cred.ID, limit, "rate limit increment failed", err)
	}

	if count > int64(limit) {
		return Decision{
			Allowed:    false,
			Limit:      limit,
			Remaining:  0,
			RetryAfter: l.untilNextWindow(),
			Reason:     ReasonRateLimited,
		}
	}

	l.recordMonthlyUsage(cred.ID)

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Decision{Allowed: true, Limit: limit, Remaining: remaining}
}

// recordMonthlyUsage bumps the quota counter off the request path. A lost
// increment under-counts one request, which is acceptable for quota purposes.
func (l *PlanLimiter) recordMonthlyUsage(keyID string) {
	key := l.monthlyKey(keyID)
	logger := l.logger
	s := l.store
	safego.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := s.IncrWithExpiry(ctx, key, monthlyCounterTTL); err != nil {
			logger.Warn("monthly usage increment failed", "key", key, "error", err)
		}
	})
}

func (l *PlanLimiter) failOpen(keyID string, limit int, msg string, err error) Decision {
	l.logger.Warn(msg+", allowing request", "key_id", keyID, "error", err)
	telemetry.LimiterFailOpenTotal.Inc()
	return Decision{Allowed: true, Limit: limit, Remaining: limit}
}

func (l *PlanLimiter) minuteKey(keyID string) string {
	return fmt.Sprintf("%s:%s:%d", store.RateLimitPrefix, keyID, l.now().Unix()/60)
}

func (l *PlanLimiter) monthlyKey(keyID string) string {
	return fmt.Sprintf("%s:%s:%s", store.MonthlyUsagePrefix, keyID, l.now().UTC().Format("2006-01"))
}

func (l *PlanLimiter) untilNextWindow() time.Duration {
	now := l.now()
	next := now.Truncate(store.MinuteWindow).Add(store.MinuteWindow)
	d := next.Sub(now)
	if d < time.Second {
		d = time.Second
	}
	return d
}
