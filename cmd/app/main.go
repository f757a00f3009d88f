// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"vip-key-shop/internal/config"
	"vip-key-shop/internal/domain/model"
	"vip-key-shop/internal/domain/ports/adapter"
	"vip-key-shop/internal/domain/ports/repository"
	"vip-key-shop/internal/infra/adapters/bank"
	tele "vip-key-shop/internal/infra/adapters/telegram"
	"vip-key-shop/internal/infra/api"
	"vip-key-shop/internal/infra/bootstrap"
	"vip-key-shop/internal/infra/i18n"
	"vip-key-shop/internal/infra/logging"
	"vip-key-shop/internal/infra/metrics"
	red "vip-key-shop/internal/infra/redis"
	"vip-key-shop/internal/infra/sched"
	"vip-key-shop/internal/infra/store"
	"vip-key-shop/internal/infra/worker"
	"vip-key-shop/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		bootLog := zerolog.New(os.Stderr).With().Timestamp().Logger()
		bootLog.Fatal().Err(err).Msg("config")
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)
	logger.Info().Str("version", version).Str("storage", cfg.Storage.Backend).Str("bank", cfg.Bank.Provider).Msg("starting")

	// ---- Redis (optional) ----
	var (
		redisClient *red.Client
		storeOpts   []store.Option
		pending     repository.PendingOrderRepository
		limiter     *red.RateLimiter
	)
	if cfg.Redis.URL != "" {
		redisClient, err = red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer redisClient.Close()
		storeOpts = append(storeOpts, store.WithLocker(red.NewLocker(redisClient, cfg.Storage.LockTTL), cfg.Storage.LockTTL))
		pending = red.NewPendingOrderRepo(redisClient, cfg.Orders.PendingTTL)
		limiter = red.NewRateLimiter(redisClient)
	} else {
		logger.Warn().Msg("redis not configured: no cross-process locking, rate limits or pending orders")
	}

	// ---- Record store ----
	backend, closeBackend, err := bootstrap.OpenBackend(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("record store")
	}
	defer closeBackend()
	credentialStore := store.New[*model.CredentialRecord](backend, logger, storeOpts...)
	vpnStore := store.New[*model.VPNItem](backend, logger, storeOpts...)

	// ---- Bank feed ----
	feed := openFeed(cfg, logger)

	tiers, err := model.NewTierTable(cfg.TierList())
	if err != nil {
		logger.Fatal().Err(err).Msg("tiers")
	}

	translator, err := i18n.New(cfg.Bot.Language)
	if err != nil {
		logger.Fatal().Err(err).Msg("i18n")
	}

	// ---- Use cases ----
	credentialUC := usecase.NewCredentialUseCase(credentialStore, logger)

	// the bot needs the use cases and the use cases notify through the bot
	var (
		notifier   usecase.Notifier
		botAdapter *tele.RealTelegramBotAdapter
		botLimiter tele.Limiter
		apiLimiter api.Limiter
	)
	if limiter != nil {
		botLimiter = limiter
		apiLimiter = limiter
	}

	vpnUC := usecase.NewVPNUseCase(vpnStore, feed, lazyNotifier{get: func() usecase.Notifier { return notifier }}, usecase.VPNOptions{
		FeedTimeout:        cfg.Bank.Timeout,
		DefaultPlanDays:    cfg.VPN.DefaultPlanDays,
		MinAmount:          cfg.VPN.MinAmount,
		MinReferenceLength: cfg.Orders.MinReferenceLength,
	}, logger)

	if cfg.Bot.Token != "" {
		botAdapter, err = tele.NewRealTelegramBotAdapter(&cfg.Bot, credentialUC, vpnUC, botLimiter, translator, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("telegram")
		}
		notifier = botAdapter
		if mode := strings.ToLower(cfg.Bot.Mode); mode != "" && mode != "polling" {
			logger.Warn().Str("mode", cfg.Bot.Mode).Msg("bot mode not implemented; falling back to polling")
		}
		go func() {
			if err := botAdapter.StartPolling(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("telegram polling stopped")
			}
		}()
	} else {
		logger.Warn().Msg("bot.token not set: admin notices are only logged")
		notifier = tele.NewNoopBotAdapter(logger)
	}

	orderUC := usecase.NewOrderUseCase(feed, tiers, credentialUC, pending, notifier, usecase.OrderOptions{
		FeedTimeout:        cfg.Bank.Timeout,
		MinReferenceLength: cfg.Orders.MinReferenceLength,
	}, logger)

	// ---- Pending order reconciler ----
	var pool *worker.Pool
	if pending != nil {
		pool = worker.NewPool(cfg.Orders.ReconcileWorkers, logger)
		pool.Start(ctx)
		rec := sched.NewOrderReconciler(orderUC, pending, pool, sched.ReconcilerOptions{
			Interval: cfg.Orders.ReconcileInterval,
			Batch:    cfg.Orders.ReconcileBatch,
			MaxAge:   cfg.Orders.PendingTTL,
		}, logger)
		go func() { _ = rec.Run(ctx) }()
	}

	// ---- HTTP ----
	var auth *api.AuthManager
	if cfg.AdminEnabled() {
		auth = api.NewAuthManager(cfg.Admin)
	} else {
		logger.Warn().Msg("admin password not set: admin HTTP routes disabled")
	}
	server := api.NewServer(orderUC, credentialUC, vpnUC, auth, apiLimiter, cfg.HTTP, logger)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	if botAdapter != nil {
		botAdapter.StopPolling()
	}
	cancel()
	if pool != nil {
		pool.Stop()
	}
}

func openFeed(cfg *config.Config, logger *zerolog.Logger) adapter.BankFeed {
	var feed adapter.BankFeed
	switch cfg.Bank.Provider {
	case "static":
		feed = bank.NewStaticFeed(cfg.Bank.StaticFile)
	default:
		f, err := bank.NewHTTPFeed(cfg.Bank.URL, cfg.Bank.Token, cfg.Bank.Timeout)
		if err != nil {
			logger.Fatal().Err(err).Msg("bank feed")
		}
		feed = f
	}
	return bank.NewInstrumented(feed, logger)
}

// lazyNotifier resolves the notifier at call time; the VPN use case is built
// before the bot that notifies for it.
type lazyNotifier struct {
	get func() usecase.Notifier
}

func (n lazyNotifier) NotifyAdmins(ctx context.Context, text string) error {
	if inner := n.get(); inner != nil {
		return inner.NotifyAdmins(ctx, text)
	}
	return nil
}
