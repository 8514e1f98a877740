// Package api wires together the gateway's HTTP surface.
//
// Route layout:
//   - GET  /health   — liveness probe, unauthenticated.
//   - GET  /metrics  — Prometheus exposition, unauthenticated.
//   - ANY  /proxy/*target — the forwarding pipeline. Requires X-Zenith-Key
//     and runs Auth → RateLimit → Access → Usage → forward, in that order.
//     No stage starts before its predecessor admits the request.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zenith-gateway/zenith-gateway/internal/cache"
	"github.com/zenith-gateway/zenith-gateway/internal/config"
	"github.com/zenith-gateway/zenith-gateway/internal/credentials"
	"github.com/zenith-gateway/zenith-gateway/internal/db/repositories"
	"github.com/zenith-gateway/zenith-gateway/internal/limiter"
	"github.com/zenith-gateway/zenith-gateway/internal/middleware"
	"github.com/zenith-gateway/zenith-gateway/internal/proxy"
	"github.com/zenith-gateway/zenith-gateway/internal/store"
	"github.com/zenith-gateway/zenith-gateway/internal/usage"
)

// BackgroundServices holds references to background goroutines and resources
// that must be stopped during graceful shutdown. The caller (cmd/server) is
// responsible for calling Shutdown() when the process receives a termination
// signal, after the HTTP server has drained in-flight requests.
type BackgroundServices struct {
	flushWorker *usage.FlushWorker
	recorder    *usage.Recorder
	stoppers    []interface{ Stop() }
}

// FlushWorker exposes the usage flush worker so cmd/server can start it.
func (bg *BackgroundServices) FlushWorker() *usage.FlushWorker {
	return bg.flushWorker
}

// Shutdown stops all background goroutines. The recorder is closed before the
// final worker flush so buffered records reach the queue first; Stop blocks
// until that drain has completed.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	if bg.recorder != nil {
		bg.recorder.Close()
	}
	if bg.flushWorker != nil {
		bg.flushWorker.Stop()
	}
	for _, s := range bg.stoppers {
		s.Stop()
	}
	slog.Info("all background services stopped")
}

// NewRouter creates and configures the Gin router. counterStore is the shared
// Redis store, or nil when Redis is not configured; in that case counters and
// the usage queue run in-process and the degraded-mode fallback limiter is
// used instead of plan enforcement.
func NewRouter(cfg *config.Config, db *sqlx.DB, counterStore store.Store, logger *slog.Logger) (*gin.Engine, *BackgroundServices) {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Metrics())

	bg := &BackgroundServices{}

	if counterStore == nil {
		mem := store.NewMemoryStore()
		bg.stoppers = append(bg.stoppers, mem)
		counterStore = mem
	}

	var lim limiter.Limiter
	if _, degraded := counterStore.(*store.MemoryStore); degraded {
		logger.Warn("counter store not configured, using in-process fallback limiter",
			"threshold_per_min", cfg.Gateway.FallbackRateLimit)
		fb := limiter.NewFallbackLimiter(cfg.Gateway.FallbackRateLimit, logger)
		bg.stoppers = append(bg.stoppers, fb)
		lim = fb
	} else {
		lim = limiter.NewPlanLimiter(counterStore, logger)
	}

	var credCache cache.Cache
	if rs, ok := counterStore.(*store.RedisStore); ok {
		credCache = cache.NewRedisCache(rs.Client())
	} else {
		mc := cache.NewMemoryCache()
		bg.stoppers = append(bg.stoppers, mc)
		credCache = mc
	}

	keyRepo := repositories.NewAPIKeyRepository(db.DB)
	resolver := credentials.NewResolver(keyRepo, credCache, cfg.Gateway.CredentialCacheTTL)

	validator := proxy.NewTargetValidator(cfg.Gateway.AllowedDomains)
	forwarder := proxy.NewForwarder(validator, cfg.Gateway.UpstreamTimeout, logger)

	recorder := usage.NewRecorder(counterStore, cfg.Gateway.UsageBufferSize, logger)
	usageRepo := repositories.NewUsageLogRepository(db)
	bg.recorder = recorder
	bg.flushWorker = usage.NewFlushWorker(counterStore, usageRepo, cfg.Gateway.UsageFlushInterval, logger)

	router.GET("/health", healthHandler)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.Any("/proxy/*target",
		middleware.Auth(resolver, logger),
		middleware.RateLimit(lim),
		middleware.Access(upstreamPath),
		middleware.Usage(recorder, upstreamPath),
		proxyHandler(forwarder, logger),
	)

	return router, bg
}

func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// upstreamPath extracts the path portion of the proxy target, the surface the
// plan's path policy applies to. Malformed targets map to "/" here and are
// rejected with a proper problem later by the forwarder.
func upstreamPath(c *gin.Context) string {
	u, err := proxy.ParseTarget(c.Param("target"))
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.Path
}
