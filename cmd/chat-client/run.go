package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"pulse-chat/go-client/internal/app"
	"pulse-chat/go-client/internal/bootstrap/clientconfig"
	"pulse-chat/go-client/internal/platform/metrics"
	"pulse-chat/go-client/internal/platform/privacylog"
	"pulse-chat/go-client/internal/platform/ratelimiter"
	"pulse-chat/go-client/internal/storage"
	"pulse-chat/go-client/internal/transport/push"
	"pulse-chat/go-client/internal/transport/rest"
)

var runFlags struct {
	configPath  string
	metricsAddr string
	verbose     bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the synchronizer until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runClient()
	},
}

func init() {
	runCmd.Flags().StringVar(&runFlags.configPath, "config", "", "path to client.yaml (optional)")
	runCmd.Flags().StringVar(&runFlags.metricsAddr, "metrics-addr", "", "Prometheus listen address, e.g. 127.0.0.1:9190 (optional)")
	runCmd.Flags().BoolVar(&runFlags.verbose, "verbose", false, "enable debug logging")
	rootCmd.AddCommand(runCmd)
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if runFlags.verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(privacylog.Wrap(handler))
}

func runClient() error {
	cfg := clientconfig.LoadFromPath(runFlags.configPath)
	logger := newLogger()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	syncMetrics := metrics.New(registry)
	if runFlags.metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: runFlags.metricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		defer srv.Close()
	}

	gateway := rest.NewClient(cfg.Server.BaseURL, cfg.Server.Token,
		rest.WithTimeout(cfg.Server.Timeout))

	socket := push.NewSocket(push.Options{
		URL:                  cfg.Push.URL,
		Token:                cfg.Server.Token,
		Logger:               logger,
		AutoReconnect:        cfg.Push.AutoReconnect,
		MaxReconnectAttempts: cfg.Push.MaxReconnectAttempts,
		ReconnectBaseDelay:   cfg.Push.ReconnectBaseDelay,
		ReconnectMaxDelay:    cfg.Push.ReconnectMaxDelay,
		HeartbeatInterval:    cfg.Push.HeartbeatInterval,
	})

	syncer := app.NewSynchronizer(app.Options{
		Gateway:     gateway,
		Push:        socket,
		Store:       storage.New(cfg.Cache.Path, cfg.Cache.Passphrase),
		Logger:      logger,
		Metrics:     syncMetrics,
		SendLimiter: ratelimiter.New(cfg.Send.RatePerSecond, cfg.Send.Burst, 10*time.Minute),
	})

	if err := socket.Connect(ctx); err != nil {
		logger.Warn("push relay unavailable, continuing without live events", "error", err)
	}
	if err := syncer.Start(ctx); err != nil {
		return fmt.Errorf("start synchronizer: %w", err)
	}

	logger.Info("chat-client running", "server", cfg.Server.BaseURL, "push", cfg.Push.URL)

	_, updates, cancelUpdates := syncer.Updates(0)
	for {
		select {
		case <-ctx.Done():
			cancelUpdates()
			logger.Info("chat-client stopping")
			if err := syncer.Stop(); err != nil {
				logger.Warn("synchronizer stop failed", "error", err)
			}
			if err := socket.Close(); err != nil {
				logger.Warn("push close failed", "error", err)
			}
			return nil
		case u, ok := <-updates:
			if !ok {
				// Dropped for falling behind; resubscribe from the tail.
				cancelUpdates()
				_, updates, cancelUpdates = syncer.Updates(0)
				continue
			}
			logger.Debug("collection update", "kind", u.Kind, "seq", u.Seq)
		}
	}
}
