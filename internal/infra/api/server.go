package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"vip-key-shop/internal/config"
	"vip-key-shop/internal/usecase"
)

// Server exposes the shop over HTTP: order checks, key verification and VPN
// purchases for buyers, key management for the admin.
type Server struct {
	orders      usecase.OrderUseCase
	credentials usecase.CredentialUseCase
	vpn         usecase.VPNUseCase
	auth        *AuthManager // nil disables the admin routes
	limiter     Limiter      // nil disables rate limiting
	cfg         config.HTTPConfig
	log         *zerolog.Logger
	srv         *http.Server
}

func NewServer(
	orders usecase.OrderUseCase,
	credentials usecase.CredentialUseCase,
	vpn usecase.VPNUseCase,
	auth *AuthManager,
	limiter Limiter,
	cfg config.HTTPConfig,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "http").Logger()
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}
	s := &Server{
		orders:      orders,
		credentials: credentials,
		vpn:         vpn,
		auth:        auth,
		limiter:     limiter,
		cfg:         cfg,
		log:         &l,
	}
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Routes builds the chi router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(), Recover(s.log), RequestLog(s.log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.NotFound(notFound)

	r.Get("/health", handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(Timeout(s.cfg.RequestTimeout))

		r.With(RateLimit(s.limiter, "check-order", 30, time.Minute, s.log)).
			Post("/api/check-order", s.handleCheckOrder)
		r.With(RateLimit(s.limiter, "verify", 120, time.Minute, s.log)).
			Post("/api/keys/verify", s.handleVerify)
		if s.vpn != nil {
			r.With(RateLimit(s.limiter, "buy-vpn", 30, time.Minute, s.log)).
				Post("/api/buy-vpn", s.handleBuyVPN)
		}

		if s.auth == nil {
			return
		}
		r.With(RateLimit(s.limiter, "login", 5, time.Minute, s.log)).
			Post("/api/auth/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.auth.RequireAdmin)
			r.Post("/api/auth/verify", s.handleSession)
			r.Post("/api/keys/create", s.handleCreateKey)
			r.Post("/api/keys/list", s.handleListKeys)
			r.Post("/api/keys/delete", s.handleDeleteKey)
			r.Post("/api/keys/revoke", s.handleRevokeKey)
			if s.vpn != nil {
				r.Get("/api/vpn/stock", s.handleVPNStock)
				r.Post("/api/vpn/import", s.handleVPNImport)
			}
		})
	})
	return r
}

// Start serves on the configured port until Shutdown.
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Bool("admin", s.auth != nil).Msg("HTTP server listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
