package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/monjedAmarna/chronicare-sub001/internal/config"
	"github.com/monjedAmarna/chronicare-sub001/internal/domain/alert"
	"github.com/monjedAmarna/chronicare-sub001/internal/domain/vitals"
	"github.com/monjedAmarna/chronicare-sub001/internal/platform/auth"
	"github.com/monjedAmarna/chronicare-sub001/internal/platform/db"
	"github.com/monjedAmarna/chronicare-sub001/internal/platform/middleware"
	"github.com/monjedAmarna/chronicare-sub001/internal/platform/realtime"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "chronicare-server",
		Short: "Chronicare vitals alerting API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			migrator, closeFn, err := openMigrator(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			applied, err := migrator.Up(cmd.Context())
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			for _, name := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", name)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", len(applied))
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Path to migrations directory (default MIGRATIONS_DIR)")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			migrator, closeFn, err := openMigrator(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			statuses, err := migrator.Status(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printStatus(cmd, statuses)
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Path to migrations directory (default MIGRATIONS_DIR)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func openMigrator(cmd *cobra.Command) (*db.Migrator, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	dir, _ := cmd.Flags().GetString("dir")
	if dir == "" {
		dir = cfg.MigrationsDir
	}

	pool, err := db.NewPool(cmd.Context(), db.PoolConfig{URL: cfg.DatabaseURL, MaxConns: 2})
	if err != nil {
		return nil, nil, err
	}
	return db.NewMigrator(pool, dir), pool.Close, nil
}

func printStatus(cmd *cobra.Command, statuses []db.MigrationStatus) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(out, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		state, at := "pending", ""
		if s.Applied {
			state = "applied"
			at = s.AppliedAt.Format(time.RFC3339)
		}
		fmt.Fprintf(out, "%-10d %-40s %-10s %s\n", s.Version, s.Name, state, at)
	}
}

// newLogger writes JSON to stdout, or a console format in development.
func newLogger(env, level string) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if env == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return logger.Level(lvl)
}

// newAuth picks the verifier shared by the REST middleware and the
// websocket handshake. Dev auth needs both DEV_AUTH and ENV=development.
func newAuth(cfg *config.Config, skip auth.Skipper) (auth.TokenVerifier, echo.MiddlewareFunc) {
	if cfg.DevAuth && cfg.IsDev() {
		return auth.DevVerifier{}, auth.DevAuthMiddleware()
	}
	verifier := auth.NewJWTVerifier(auth.JWTConfig{
		Issuer:     cfg.AuthIssuer,
		Audience:   cfg.AuthAudience,
		JWKSURL:    cfg.AuthJWKSURL,
		SigningKey: []byte(cfg.AuthSigningKey),
	})
	return verifier, auth.JWTMiddleware(verifier, skip)
}

func rateLimitConfig(cfg *config.Config) middleware.RateLimitConfig {
	rl := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 {
		rl.RequestsPerSecond = cfg.RateLimitRPS
	}
	if cfg.RateLimitBurst > 0 {
		rl.BurstSize = cfg.RateLimitBurst
	}
	return rl
}

// securityConfig leaves HSTS off in development, where the server runs over
// plain HTTP.
func securityConfig(cfg *config.Config) middleware.SecurityConfig {
	if cfg.IsDev() {
		return middleware.SecurityConfig{}
	}
	return middleware.DefaultSecurityConfig()
}

type server struct {
	alerts   alert.Repository
	users    alert.UserDirectory
	events   realtime.Publisher
	hub      *realtime.Hub
	verifier auth.TokenVerifier
	authMW   echo.MiddlewareFunc
	dbHealth db.Pinger
}

// newEcho wires middleware and every route. It is separate from runServer
// so the route table can be exercised without a database.
func newEcho(cfg *config.Config, logger zerolog.Logger, s server) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.Metrics())
	e.Use(middleware.SecurityHeaders(securityConfig(cfg)))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))
	e.Use(s.authMW)

	// Health and metrics
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	if s.dbHealth != nil {
		e.GET("/health/db", db.HealthHandler(s.dbHealth))
	}
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Realtime channel: the upgrade is public, the handshake authenticates.
	wsHandler := realtime.NewHandler(s.hub, s.verifier, logger)
	wsHandler.RegisterRoutes(e.Group(""))

	// API
	apiV1 := e.Group("/api/v1", middleware.BodyLimit("64K"), middleware.RateLimit(rateLimitConfig(cfg)))

	alertSvc := alert.NewService(s.alerts, s.users, s.events, logger)
	alert.NewHandler(alertSvc).RegisterRoutes(apiV1)

	ingestor := vitals.NewIngestor(alertSvc, logger)
	vitals.NewHandler(ingestor).RegisterRoutes(apiV1)

	return e
}

func runServer() error {
	// Config
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		return err
	}

	// Logger
	logger := newLogger(cfg.Env, cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database
	pool, err := db.NewPool(ctx, db.PoolConfig{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Realtime fan-out, relayed through Redis when several instances run.
	hub := realtime.NewHub()
	var events realtime.Publisher = hub
	if cfg.RedisURL != "" {
		rdb, err := realtime.NewRedisClient(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid REDIS_URL")
		}
		defer rdb.Close()

		relay := realtime.NewRedisRelay(rdb, cfg.RealtimeChannel, hub, logger)
		if err := relay.Start(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to subscribe to realtime relay")
		}
		defer relay.Close()
		events = relay
		logger.Info().Str("channel", cfg.RealtimeChannel).Msg("realtime relay enabled")
	}

	verifier, authMW := newAuth(cfg, auth.PublicPaths("/health", "/health/db", "/metrics", "/ws"))
	if _, dev := verifier.(auth.DevVerifier); dev {
		logger.Warn().Msg("development auth enabled: unauthenticated requests run as admin")
	}

	e := newEcho(cfg, logger, server{
		alerts:   alert.NewRepoPG(pool),
		users:    alert.NewUserDirectoryPG(pool),
		events:   events,
		hub:      hub,
		verifier: verifier,
		authMW:   authMW,
		dbHealth: pool,
	})

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
