// Package credentials resolves raw API keys to active credential+plan pairs.
// Resolution is cache-aside: the TTL cache is consulted by key hash first and
// populated from the database only on a miss, so a hot key costs zero
// database round trips. Staleness is bounded by the TTL — a revoked key may
// keep resolving for up to one TTL window after revocation. That window is an
// accepted trade-off, not a bug; there is no invalidation channel.
//
// Unlike the rate limiter, resolution fails CLOSED: a credential that cannot
// be verified is never treated as authorized.
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/zenith-gateway/zenith-gateway/internal/auth"
	"github.com/zenith-gateway/zenith-gateway/internal/cache"
	"github.com/zenith-gateway/zenith-gateway/internal/db/models"
	"github.com/zenith-gateway/zenith-gateway/internal/store"
)

// DefaultCacheTTL bounds credential staleness when no TTL is configured.
const DefaultCacheTTL = 300 * time.Second

var (
	// ErrMissingKey is returned when the request carried no key at all.
	ErrMissingKey = errors.New("credentials: missing API key")
	// ErrInvalidKey is returned for unknown, revoked, or expired keys. The
	// three cases are deliberately indistinguishable.
	ErrInvalidKey = errors.New("credentials: invalid or inactive API key")
	// ErrUnavailable is returned when the backing store failed mid-lookup.
	// Callers must deny the request (fail closed).
	ErrUnavailable = errors.New("credentials: resolver backing store unavailable")
)

// KeyStore is the slice of the repository layer the resolver needs.
type KeyStore interface {
	GetActiveKeyByHash(ctx context.Context, keyHash string) (*models.Credential, error)
}

// Resolver performs cache-aside credential resolution.
type Resolver struct {
	keys  KeyStore
	cache cache.Cache
	ttl   time.Duration
}

// NewResolver creates a Resolver. ttl <= 0 selects DefaultCacheTTL.
func NewResolver(keys KeyStore, c cache.Cache, ttl time.Duration) *Resolver {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Resolver{keys: keys, cache: c, ttl: ttl}
}

// Resolve maps a raw key to its credential+plan. The raw key is hashed
// immediately and only hash-derived hints ever reach logs or the cache.
func (r *Resolver) Resolve(ctx context.Context, rawKey string) (*models.Credential, error) {
	if rawKey == "" {
		return nil, ErrMissingKey
	}

	hash := auth.HashKey(rawKey)
	cacheKey := store.CredentialPrefix + ":" + hash

	if data, ok, err := r.cache.Get(ctx, cacheKey); err != nil {
		// A broken cache is not a broken resolver: fall through to the DB.
		slog.Warn("credential cache read failed", "error", err, "hash_hint", auth.HashHint(hash))
	} else if ok {
		var cred models.Credential
		if err := json.Unmarshal(data, &cred); err != nil {
			slog.Warn("credential cache entry corrupt, refetching", "hash_hint", auth.HashHint(hash))
		} else if !cred.IsActive() {
			// A cached entry that is no longer active is treated as a miss
			// so the database stays the authority on status.
			slog.Warn("cached credential not active, refetching",
				"api_key_id", cred.ID, "status", cred.Status)
		} else {
			slog.Debug("credential cache hit", "api_key_id", cred.ID)
			return &cred, nil
		}
	}

	cred, err := r.keys.GetActiveKeyByHash(ctx, hash)
	if err != nil {
		slog.Error("credential lookup failed", "error", err, "hash_hint", auth.HashHint(hash))
		return nil, ErrUnavailable
	}
	if cred == nil || !cred.IsActive() {
		slog.Warn("auth failed: invalid or inactive API key",
			"key_hint", auth.Hint(rawKey), "hash_hint", auth.HashHint(hash))
		return nil, ErrInvalidKey
	}

	if data, err := json.Marshal(cred); err == nil {
		if err := r.cache.Set(ctx, cacheKey, data, r.ttl); err != nil {
			slog.Warn("credential cache write failed", "error", err, "api_key_id", cred.ID)
		}
	}

	slog.Debug("auth successful", "api_key_id", cred.ID)
	return cred, nil
}
