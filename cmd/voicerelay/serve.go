package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"voicerelay/internal/channel"
	"voicerelay/internal/config"
	"voicerelay/internal/journal"
	"voicerelay/internal/language"
	"voicerelay/internal/metrics"
	"voicerelay/internal/relay"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the webhook server",
		Long:  "Starts the HTTP server that receives WhatsApp webhook deliveries and relays voice messages. Press Ctrl+C to stop.",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	// A .env next to the binary lets ${VAR} references in config.json
	// resolve without exporting anything.
	if err := godotenv.Load(); err == nil {
		logger.Info("loaded .env")
	}

	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err = buildLogger(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Language resolver, with optional YAML packs on top of the builtins.
	languages := language.New()
	if cfg.Translation.PackDir != "" {
		if err := languages.LoadPacks(config.ExpandPath(cfg.Translation.PackDir), logger); err != nil {
			logger.Warn("language packs not loaded", "dir", cfg.Translation.PackDir, "err", err)
		}
	}

	var store *journal.Store
	if cfg.Journal.Enabled {
		store, err = journal.NewStore(config.ExpandPath(cfg.Journal.DBPath), logger)
		if err != nil {
			return fmt.Errorf("journal store: %w", err)
		}
		defer store.Close()

		retention := time.Duration(cfg.Journal.RetentionDays) * 24 * time.Hour
		if _, err := store.Prune(ctx, retention); err != nil {
			logger.Warn("journal prune failed", "err", err)
		}
	}

	prov := newProvider(cfg)
	if err := prov.Healthy(ctx); err != nil {
		logger.Warn("speech provider unhealthy at startup", "err", err)
	} else {
		logger.Info("speech provider healthy")
	}

	fetcher := channel.NewMediaClient(channel.MediaClientConfig{
		APIBase:     cfg.WhatsApp.APIBase,
		AccessToken: cfg.WhatsApp.AccessToken,
		Logger:      logger,
	})

	sender, err := channel.NewDeliverer(cfg.WhatsApp.Delivery, channel.DeliveryConfig{
		APIBase:       cfg.WhatsApp.APIBase,
		AccessToken:   cfg.WhatsApp.AccessToken,
		PhoneNumberID: cfg.WhatsApp.PhoneNumberID,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	pipeline := relay.New(relay.Config{
		Fetcher:        fetcher,
		Transcriber:    prov,
		Translator:     prov,
		Synthesizer:    prov,
		Sender:         sender,
		Languages:      languages,
		TargetLanguage: cfg.Translation.TargetLanguage,
		Journal:        journalOrNil(store),
		Logger:         logger,
	})

	gateway := channel.NewGateway(channel.GatewayConfig{
		WebhookPath: cfg.Server.WebhookPath,
		VerifyToken: cfg.WhatsApp.VerifyToken,
		AppSecret:   cfg.WhatsApp.AppSecret,
		Pipeline:    pipeline,
		Logger:      logger,
	})

	mux := http.NewServeMux()
	gateway.Register(mux)
	mux.HandleFunc("GET /{$}", func(rw http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(rw, "voicerelay v%s is running\n", version)
	})
	if cfg.Metrics.Enabled {
		mux.HandleFunc("GET "+cfg.Metrics.Endpoint, metrics.Collector.Handler())
		logger.Info("metrics enabled", "endpoint", cfg.Metrics.Endpoint)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		// No write timeout: the webhook response waits for the full
		// pipeline, which can take minutes on long voice notes.
		IdleTimeout: 120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("webhook server listening",
			"addr", addr, "path", cfg.Server.WebhookPath, "language", cfg.Translation.TargetLanguage)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown timed out, forcing exit")
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

// journalOrNil avoids handing the pipeline a typed nil interface value.
func journalOrNil(store *journal.Store) relay.Journal {
	if store == nil {
		return nil
	}
	return store
}

// buildLogger constructs the process logger from config: level from
// general.logLevel, output to stderr and optionally a log file.
func buildLogger(cfg *config.Config) (*slog.Logger, error) {
	var level slog.Level
	switch cfg.General.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var out io.Writer = os.Stderr
	if cfg.General.LogFile != "" {
		path := config.ExpandPath(cfg.General.LogFile)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		out = io.MultiWriter(os.Stderr, f)
	}

	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})), nil
}
