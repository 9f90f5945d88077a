package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/landscapehq/landscape/internal/config"
	"github.com/landscapehq/landscape/internal/events"
	"github.com/landscapehq/landscape/internal/export"
	"github.com/landscapehq/landscape/internal/scoring"
	"github.com/landscapehq/landscape/internal/server"
	"github.com/landscapehq/landscape/internal/store/postgres"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Start the landscape server",
	GroupID: "system",
	// Override PersistentPreRunE so we don't create an HTTP client.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		st, err := postgres.New(cfg.DatabaseURL)
		if err != nil {
			return err
		}

		// Scoring rules: built-in defaults, or a hot-reloaded YAML file.
		var (
			rules      *scoring.RuleSet
			rulesStop  func()
			ruleLoader *scoring.Loader
		)
		if cfg.RulesPath != "" {
			ruleLoader, err = scoring.NewLoader(cfg.RulesPath)
			if err != nil {
				st.Close()
				return err
			}
			rules = ruleLoader.Rules()
			logger.Info("scoring rules loaded", "path", cfg.RulesPath)
		}
		scorer := scoring.NewScorer(st, rules, logger)
		if ruleLoader != nil {
			ruleLoader.OnChange(func(rs *scoring.RuleSet) {
				scorer.SetRules(rs)
				logger.Info("scoring rules reloaded", "path", cfg.RulesPath)
			})
			rulesStop, err = ruleLoader.Watch()
			if err != nil {
				st.Close()
				return err
			}
		}

		// Event mirror: NATS when configured, otherwise a no-op.
		var mirror events.Mirror
		if cfg.NATSURL != "" {
			m, err := events.NewNATSMirror(cfg.NATSURL)
			if err != nil {
				if rulesStop != nil {
					rulesStop()
				}
				st.Close()
				return err
			}
			mirror = m
			logger.Info("event mirroring enabled", "nats_url", cfg.NATSURL)
		} else {
			mirror = events.NoopMirror{}
			logger.Info("event mirroring disabled (LANDSCAPE_NATS_URL not set)")
		}

		bus := events.NewBus(logger, cfg.MaxSubscribers)
		srv := server.NewServer(st, bus, mirror, scorer, logger)

		httpServer := &http.Server{
			Addr:    cfg.HTTPAddr,
			Handler: srv.NewHTTPHandler(cfg.AuthToken),
		}
		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		// Snapshot exporter, when any destination is configured.
		var scheduler *export.Scheduler
		if cfg.ExportInterval > 0 {
			var dests []export.Destination

			if cfg.ExportS3Bucket != "" {
				s3Dest, err := export.NewS3Destination(
					context.Background(),
					cfg.ExportS3Bucket,
					cfg.ExportS3Key,
					cfg.ExportS3Region,
					cfg.ExportS3Endpoint,
				)
				if err != nil {
					logger.Error("failed to create S3 export destination", "err", err)
				} else {
					dests = append(dests, s3Dest)
					logger.Info("export S3 destination enabled", "bucket", cfg.ExportS3Bucket, "key", cfg.ExportS3Key)
				}
			}

			if cfg.ExportDir != "" {
				dests = append(dests, export.NewDirDestination(cfg.ExportDir, "snapshot.jsonl"))
				logger.Info("export directory destination enabled", "dir", cfg.ExportDir)
			}

			if len(dests) > 0 {
				scheduler = export.NewScheduler(st, dests, cfg.ExportInterval, logger)
				scheduler.Start()
				logger.Info("export scheduler started", "interval", cfg.ExportInterval)
			}
		}

		logger.Info("landscape server started", "http_addr", cfg.HTTPAddr)

		// Wait for SIGINT or SIGTERM.
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		if scheduler != nil {
			scheduler.Stop()
			logger.Info("export scheduler stopped")
		}
		if rulesStop != nil {
			rulesStop()
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("HTTP server stopped")

		if err := mirror.Close(); err != nil {
			logger.Error("error closing event mirror", "err", err)
		}
		if err := st.Close(); err != nil {
			logger.Error("error closing store", "err", err)
		}

		logger.Info("shutdown complete")
		return nil
	},
}
