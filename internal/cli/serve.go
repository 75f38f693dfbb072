package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ecomsec/scanhub/internal/checkers"
	"github.com/ecomsec/scanhub/internal/engine"
	"github.com/ecomsec/scanhub/internal/httpapi"
	"github.com/ecomsec/scanhub/internal/metrics"
	"github.com/ecomsec/scanhub/internal/store"
	"github.com/ecomsec/scanhub/internal/transport"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scan API server",
	Long: `Serve starts the REST API, the metrics endpoint, and the background
scan worker, backed by the configured SQLite database.`,
	RunE: runServe,
}

// runServe wires the full service: store -> checkers -> orchestrator ->
// HTTP server, then blocks until interrupted.
func runServe(cmd *cobra.Command, args []string) error {
	secret := viper.GetString("jwt-secret")
	if secret == "" {
		return fmt.Errorf("a JWT secret is required (use --jwt-secret or SCANHUB_JWT_SECRET)")
	}

	logger := newLogger(viper.GetInt("verbose"))

	st, err := store.NewSQLiteStore(viper.GetString("db"))
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	client := transport.NewClient(transport.ClientOptions{
		Timeout:            viper.GetDuration("request-timeout"),
		MaxRPS:             viper.GetFloat64("max-rps"),
		InsecureSkipVerify: viper.GetBool("insecure-skip-verify"),
	})

	profile := checkers.NewControlProfile(viper.GetStringSlice("attested-control")...)
	registry := checkers.DefaultRegistry(profile, client)

	m := metrics.New()

	orch := engine.NewOrchestrator(st, registry,
		engine.WithLogger(logger),
		engine.WithObserver(m),
		engine.WithScanTimeout(viper.GetDuration("scan-timeout")),
	)
	orch.Start()
	defer orch.Close()

	api := httpapi.NewServer(st, orch, []byte(secret),
		httpapi.WithMetricsHandler(m.Handler()),
		httpapi.WithServerLogger(logger),
	)

	srv := &http.Server{
		Addr:         viper.GetString("listen"),
		Handler:      api.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("scanhub listening", "addr", srv.Addr, "checkers", registry.Names())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown incomplete", "error", err)
		}
	}

	return nil
}

// newLogger builds a slog logger from the configured verbosity level.
func newLogger(verbose int) *slog.Logger {
	level := slog.LevelWarn
	switch {
	case verbose >= 2:
		level = slog.LevelDebug
	case verbose >= 1:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
