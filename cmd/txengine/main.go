// Command txengine is the process entrypoint (A6): it loads configuration,
// wires the concrete substrate gateway and secp256k1 signers into a headless
// engine.Engine, exposes a Prometheus /metrics endpoint, and runs the
// tick/retry/reconcile loops until signalled to stop.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nhbchain/txengine/engine"
	"github.com/nhbchain/txengine/gateway/substrate"
	"github.com/nhbchain/txengine/observability/logging"
	"github.com/nhbchain/txengine/signer"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "txengine:", err)
		os.Exit(1)
	}
}

func run() error {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "config.yaml", "path to txengine configuration")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("TXENGINE_ENV"))
	logger := logging.Setup("txengine", env)

	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	cfg, err := engine.LoadConfigBytes(data)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if env == "" && strings.TrimSpace(cfg.Log.Env) != "" {
		logger = logging.Setup("txengine", cfg.Log.Env)
	}

	eng := engine.New(
		engine.WithLogger(logger),
		engine.WithMaxRetries(cfg.MaxRetries),
	)

	for _, acctCfg := range cfg.Accounts {
		material, err := loadSigner(acctCfg)
		if err != nil {
			return fmt.Errorf("load signer for %s: %w", acctCfg.Address, err)
		}
		eng.AddAccount(acctCfg.Address, material, acctCfg.InitialNonce)
	}

	gw := substrate.New(substrate.WithLogger(logger))

	stopCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := eng.Initialize(stopCtx, gw, cfg.NodeURL); err != nil {
		return fmt.Errorf("initialize gateway: %w", err)
	}
	defer func() { _ = gw.Close() }()

	var wg sync.WaitGroup
	runLoop := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(stopCtx); err != nil && err != context.Canceled {
				logger.Error("loop exited", slog.String("loop", name), slog.Any("error", err))
			}
		}()
	}
	runLoop("tick", func(ctx context.Context) error {
		return eng.Run(ctx, cfg.TickInterval.Duration)
	})
	runLoop("retry", func(ctx context.Context) error {
		return eng.RunRetryLoop(ctx, cfg.RetryInterval.Duration)
	})
	runLoop("reconcile", func(ctx context.Context) error {
		return runReconcileLoop(ctx, eng, gw, cfg.ReconcileInterval.Duration)
	})

	if cfg.ListenAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		httpServer := &http.Server{
			Addr:         cfg.ListenAddress,
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info("metrics endpoint listening", slog.String("address", cfg.ListenAddress))
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server stopped", slog.Any("error", err))
			}
		}()
		go func() {
			<-stopCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = httpServer.Shutdown(shutdownCtx)
		}()
	}

	<-stopCtx.Done()
	logger.Info("shutdown signal received, draining loops")
	wg.Wait()
	return nil
}

// runReconcileLoop periodically re-fetches every configured account's
// on-chain nonce and folds it into the engine's local state, the recurring
// half of the reconcile-on-reconnect hook Initialize already runs once.
func runReconcileLoop(ctx context.Context, eng *engine.Engine, gw engine.Gateway, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			snap := eng.Snapshot()
			for _, acct := range snap.Accounts {
				nonce, err := gw.FetchNonce(ctx, acct.Address)
				if err != nil {
					continue
				}
				eng.SyncAccountNonce(acct.Address, nonce)
			}
		}
	}
}

// loadSigner resolves an account's signing material from its configuration:
// an inline hex key, or a key read from an environment variable.
func loadSigner(acctCfg engine.AccountConfig) (*signer.Signer, error) {
	hexKey := strings.TrimSpace(acctCfg.SigningKeyHex)
	if hexKey == "" && acctCfg.SigningKeyEnv != "" {
		hexKey = strings.TrimSpace(os.Getenv(acctCfg.SigningKeyEnv))
	}
	if hexKey == "" {
		return nil, fmt.Errorf("no signing key configured")
	}
	return signer.FromHex(acctCfg.Address, hexKey)
}
