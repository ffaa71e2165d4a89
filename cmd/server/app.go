package main

import (
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/HammerMeetNail/lingopals/internal/config"
	"github.com/HammerMeetNail/lingopals/internal/database"
	"github.com/HammerMeetNail/lingopals/internal/handlers"
	"github.com/HammerMeetNail/lingopals/internal/logging"
	"github.com/HammerMeetNail/lingopals/internal/metrics"
	"github.com/HammerMeetNail/lingopals/internal/middleware"
	"github.com/HammerMeetNail/lingopals/internal/notify"
	"github.com/HammerMeetNail/lingopals/internal/presence"
	"github.com/HammerMeetNail/lingopals/internal/realtime"
	"github.com/HammerMeetNail/lingopals/internal/services"
)

// app is the wired object graph behind the HTTP server.
type app struct {
	cfg      *config.Config
	logger   *logging.Logger
	registry *presence.Registry
	metrics  *metrics.Metrics
	hub      *realtime.Hub
	auth     *services.AuthService
	friends  *services.FriendService
	limiter  *middleware.RateLimiter
	checks   map[string]handlers.HealthChecker
}

func newApp(cfg *config.Config, logger *logging.Logger, st services.RelationshipStore, rdb *database.RedisDB, checks map[string]handlers.HealthChecker) *app {
	registry := presence.NewRegistry()
	m := metrics.New(registry.Count)
	dispatcher := notify.NewDispatcher(registry, m, logger)
	auth := services.NewAuthService(cfg.Auth.Secret, cfg.Auth.Issuer, services.NewUserService(st))

	var redisClient *redis.Client
	if rdb != nil {
		redisClient = rdb.Client
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		metrics:  m,
		hub:      realtime.NewHub(registry, auth, realtime.OptionsFromConfig(cfg.Realtime), m, logger),
		auth:     auth,
		friends:  services.NewFriendService(st, dispatcher, registry, m, logger),
		limiter:  middleware.NewFriendRequestLimiter(redisClient, cfg.RateLimit.FriendRequests, cfg.RateLimit.Window),
		checks:   checks,
	}
}

func (a *app) routes() http.Handler {
	healthHandler := handlers.NewHealthHandler(a.checks)
	friendHandler := handlers.NewFriendHandler(a.friends)

	authMiddleware := middleware.NewAuthMiddleware(a.auth)
	securityHeaders := middleware.NewSecurityHeaders(a.cfg.Server.Secure)
	cacheControl := middleware.NewCacheControl()
	compress := middleware.NewCompress()
	requestLogger := middleware.NewRequestLogger(a.logger)
	requireAuth := authMiddleware.RequireAuth

	mux := http.NewServeMux()

	// Health endpoints (no auth)
	mux.HandleFunc("GET /health", healthHandler.Health)
	mux.HandleFunc("GET /ready", healthHandler.Ready)
	mux.HandleFunc("GET /live", healthHandler.Live)
	mux.Handle("GET /metrics", a.metrics.Handler())

	// Realtime endpoint authenticates its own handshake.
	mux.Handle("GET /ws", a.hub)

	// User and friend endpoints
	mux.Handle("GET /api/users", requireAuth(http.HandlerFunc(friendHandler.Recommended)))
	mux.Handle("GET /api/users/friends", requireAuth(http.HandlerFunc(friendHandler.ListFriends)))
	mux.Handle("GET /api/users/{id}/online", requireAuth(http.HandlerFunc(friendHandler.Online)))
	mux.Handle("POST /api/users/friend-request/{id}", requireAuth(a.limiter.Middleware(http.HandlerFunc(friendHandler.SendRequest))))
	mux.Handle("PUT /api/users/friend-request/{id}/accept", requireAuth(http.HandlerFunc(friendHandler.AcceptRequest)))
	mux.Handle("DELETE /api/users/friend-request/{id}/reject", requireAuth(http.HandlerFunc(friendHandler.RejectRequest)))
	mux.Handle("DELETE /api/users/friend-request/{id}/cancel", requireAuth(http.HandlerFunc(friendHandler.CancelRequest)))
	mux.Handle("GET /api/users/friend-requests", requireAuth(http.HandlerFunc(friendHandler.IncomingRequests)))
	mux.Handle("GET /api/users/outgoing-friend-requests", requireAuth(http.HandlerFunc(friendHandler.OutgoingRequests)))

	// Build middleware chain (order matters: outermost first)
	var handler http.Handler = mux
	handler = authMiddleware.Authenticate(handler)
	handler = cacheControl.Apply(handler)
	handler = compress.Apply(handler)
	handler = securityHeaders.Apply(handler)
	handler = requestLogger.Apply(handler)
	return handler
}
