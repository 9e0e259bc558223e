package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/crewkit/crewkit/internal/api"
	"github.com/crewkit/crewkit/internal/catalog"
	"github.com/crewkit/crewkit/internal/config"
	"github.com/crewkit/crewkit/internal/metrics"
	"github.com/crewkit/crewkit/internal/ratelimit"
	"github.com/crewkit/crewkit/internal/signup"
	"github.com/crewkit/crewkit/internal/team"
	"github.com/crewkit/crewkit/internal/user"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Crewkit server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return err
	}
	slog.Info("connected to database")

	m := metrics.New()
	m.RegisterDBPoolCollector(func() (total, idle, acquired int32) {
		st := pool.Stat()
		return st.TotalConns(), st.IdleConns(), st.AcquiredConns()
	})

	userStore := user.NewStore(pool, cfg.Auth.SessionTTL)
	teamStore := team.NewStore(pool)
	catalogStore := catalog.NewStore(pool)

	lifecycle := team.NewLifecycle(teamStore, cfg.Referral.MaxAttempts)
	membership := team.NewMembership(teamStore)
	pro := team.NewPro(teamStore)
	binder := signup.NewBinder(signup.NewPgStore(pool), teamStore)

	limiter := ratelimit.New(cfg.RateLimit.Default, cfg.RateLimit.Window)

	router := api.NewRouter(api.RouterDeps{
		Users:          userStore,
		Teams:          teamStore,
		Lifecycle:      lifecycle,
		Membership:     membership,
		Pro:            pro,
		Binder:         binder,
		Catalog:        catalogStore,
		Limiter:        limiter,
		Metrics:        m,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Periodic session cleanup keeps the sessions table from growing
	// without bound.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := userStore.CleanExpiredSessions(ctx); err != nil {
					slog.Error("session cleanup failed", "error", err)
				} else if n > 0 {
					slog.Info("cleaned expired sessions", "count", n)
				}
			}
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-sigCh
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	return srv.Shutdown(shutdownCtx)
}
