package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"vip-key-shop/internal/config"
	"vip-key-shop/internal/domain/model"
	"vip-key-shop/internal/infra/bootstrap"
	"vip-key-shop/internal/infra/logging"
	red "vip-key-shop/internal/infra/redis"
	"vip-key-shop/internal/infra/store"
	"vip-key-shop/internal/usecase"
)

// env holds the use cases a command runs against.
type env struct {
	credentials usecase.CredentialUseCase
	vpn         usecase.VPNUseCase
	out         io.Writer
	asJSON      bool
	close       func()
}

// openEnv loads the service config and opens the same record store the
// service uses, including the Redis lock when one is configured.
func openEnv(ctx context.Context, cmd *cobra.Command) (*env, error) {
	path, _ := cmd.Flags().GetString("config")
	asJSON, _ := cmd.Flags().GetBool("json")

	cfg, err := config.LoadConfig(path, false)
	if err != nil {
		return nil, err
	}
	// commands print their results; logs go to stderr and only when loud
	cfg.Log.Format = "console"
	if cfg.Log.Level == "info" {
		cfg.Log.Level = "warn"
	}
	logger := logging.NewWithWriter(os.Stderr, cfg.Log, false)

	backend, closeBackend, err := bootstrap.OpenBackend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	closers := []func(){closeBackend}

	var opts []store.Option
	if cfg.Redis.URL != "" {
		client, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			closeBackend()
			return nil, fmt.Errorf("redis: %w", err)
		}
		closers = append(closers, func() { _ = client.Close() })
		opts = append(opts, store.WithLocker(red.NewLocker(client, cfg.Storage.LockTTL), cfg.Storage.LockTTL))
	}

	vpnUC := usecase.NewVPNUseCase(store.New[*model.VPNItem](backend, logger, opts...), nil, nil, usecase.VPNOptions{
		DefaultPlanDays: cfg.VPN.DefaultPlanDays,
	}, logger)

	return &env{
		credentials: usecase.NewCredentialUseCase(store.New[*model.CredentialRecord](backend, logger, opts...), logger),
		vpn:         vpnUC,
		out:         cmd.OutOrStdout(),
		asJSON:      asJSON,
		close: func() {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
		},
	}, nil
}

func (e *env) printJSON(v interface{}) error {
	enc := json.NewEncoder(e.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// runWithEnv adapts a command body to cobra's RunE.
func runWithEnv(fn func(ctx context.Context, e *env, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		e, err := openEnv(ctx, cmd)
		if err != nil {
			return err
		}
		defer e.close()
		return fn(ctx, e, args)
	}
}
