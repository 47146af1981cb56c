package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sitescout/internal/auth"
	"sitescout/internal/db"
	"sitescout/internal/httpapi"
	"sitescout/internal/logging"
	"sitescout/internal/task"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the exploration task API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		database, err := db.Open(ctx, cfg)
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer database.Close()
		if err := db.Migrate(ctx, database); err != nil {
			return fmt.Errorf("migrate db: %w", err)
		}

		store := task.NewSQLStore(database)
		if recovered, err := store.FailInterrupted(ctx); err != nil {
			return err
		} else if recovered > 0 {
			logger.Warn("Marked interrupted tasks as failed", zap.Int64("tasks", recovered))
		}

		explorer, err := buildApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer explorer.Close()

		service := task.NewService(store, explorer.controller, task.ServiceConfig{
			MaxPages:   cfg.TaskMaxPages,
			RunTimeout: cfg.RunTimeout,
			OnEvent:    logging.EventObserver(logger),
		})

		var verifier auth.Verifier
		if cfg.GoogleClientID != "" {
			verifier = auth.NewGoogleVerifier(cfg.GoogleClientID)
		}
		handler := httpapi.NewHandler(store, service, verifier, cfg.AuthRequired, logger)

		srv := &http.Server{
			Addr:        cfg.ListenAddress(),
			Handler:     httpapi.NewRouter(cfg, handler, logger),
			ReadTimeout: 15 * time.Second,
			// run-task holds the connection for the whole exploration.
			WriteTimeout: cfg.RunTimeout + 30*time.Second,
			IdleTimeout:  60 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("API listening", zap.String("addr", cfg.ListenAddress()))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("listen: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Shutdown error", zap.Error(err))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
