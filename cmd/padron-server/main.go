package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Ignacioamaya1993/Padron-de-Afiliados-sub000/internal/config"
	"github.com/Ignacioamaya1993/Padron-de-Afiliados-sub000/internal/domain/catalog"
	"github.com/Ignacioamaya1993/Padron-de-Afiliados-sub000/internal/domain/member"
	"github.com/Ignacioamaya1993/Padron-de-Afiliados-sub000/internal/platform/assets"
	"github.com/Ignacioamaya1993/Padron-de-Afiliados-sub000/internal/platform/auth"
	"github.com/Ignacioamaya1993/Padron-de-Afiliados-sub000/internal/platform/db"
	"github.com/Ignacioamaya1993/Padron-de-Afiliados-sub000/internal/platform/middleware"
	platformredis "github.com/Ignacioamaya1993/Padron-de-Afiliados-sub000/internal/platform/redis"
	"github.com/Ignacioamaya1993/Padron-de-Afiliados-sub000/migrations"
)

const catalogCacheTTL = 5 * time.Minute

func main() {
	rootCmd := &cobra.Command{
		Use:   "padron-server",
		Short: "Member registry API server",
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

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			return withMigrator(dir, func(ctx context.Context, m *db.Migrator) error {
				count, err := m.Up(ctx)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Printf("Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	}
	upCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			return withMigrator(dir, func(ctx context.Context, m *db.Migrator) error {
				statuses, err := m.Status(ctx)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				fmt.Print(formatStatus(statuses))
				return nil
			})
		},
	}
	statusCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	cmd.AddCommand(statusCmd)

	return cmd
}

func withMigrator(dir string, fn func(ctx context.Context, m *db.Migrator) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, db.PoolConfig{URL: cfg.DatabaseURL, MaxConns: 2, MinConns: 1})
	if err != nil {
		return err
	}
	defer pool.Close()

	return fn(ctx, db.NewMigrator(pool, migrationsFS(dir)))
}

// migrationsFS returns the embedded migrations unless dir overrides them.
func migrationsFS(dir string) fs.FS {
	if dir == "" {
		return migrations.FS
	}
	return os.DirFS(dir)
}

func formatStatus(statuses []db.MigrationStatus) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(&b, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(&b, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
	return b.String()
}

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	return logger.Level(level)
}

// applyMiddleware installs the global chain. Authentication skips the
// health and metrics endpoints.
func applyMiddleware(e *echo.Echo, cfg *config.Config, logger zerolog.Logger) {
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))
	e.Use(middleware.BodyLimit("1M", "12M"))
	if cfg.RequestTimeout > 0 {
		e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	}

	if cfg.IsDev() && cfg.AuthJWTSecret == "" {
		logger.Warn().Msg("development mode: every request runs as the dev admin user")
		e.Use(auth.DevAuthMiddleware())
		return
	}
	e.Use(auth.JWTMiddleware(auth.JWTConfig{
		Secret:   []byte(cfg.AuthJWTSecret),
		Issuer:   cfg.AuthIssuer,
		Audience: cfg.AuthAudience,
		Skipper:  auth.AuthSkipper,
	}))
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

// newSessionStore shares edit sessions through Redis when it is configured.
func newSessionStore(rc *platformredis.Client, ttl time.Duration) member.SessionStore {
	if rc == nil {
		return member.NewMemorySessionStore(ttl)
	}
	return member.NewRedisSessionStore(rc.Client, ttl)
}

func newAssetHost(cfg *config.Config) assets.Host {
	if cfg.AssetUploadURL == "" {
		return assets.NewMemoryHost()
	}
	return assets.NewHTTPHost(assets.HTTPHostConfig{
		UploadURL: cfg.AssetUploadURL,
		Preset:    cfg.AssetUploadPreset,
	}, nil)
}

func registerRoutes(e *echo.Echo, cfg *config.Config, pool *pgxpool.Pool, rc *platformredis.Client, logger zerolog.Logger) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	var checks []db.Check
	if rc != nil {
		checks = append(checks, db.Check{Name: "redis", Fn: rc.Health})
	}
	e.GET("/health/db", db.HealthHandler(pool, checks...))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.RateLimit(rateLimitConfig(cfg)))

	catalogSvc := catalog.NewService(catalog.NewRepoPG(pool), catalogCacheTTL)
	catalog.NewHandler(catalogSvc).RegisterRoutes(apiV1)

	memberSvc := member.NewService(
		member.NewMemberRepoPG(pool),
		catalogSvc,
		newAssetHost(cfg),
		newSessionStore(rc, cfg.EditSessionTTL),
	)
	memberSvc.SetLogger(logger.With().Str("component", "member").Logger())
	memberSvc.SetMetrics(member.NewMetrics(prometheus.DefaultRegisterer))
	memberSvc.SetTxRunner(func(ctx context.Context, fn func(ctx context.Context) error) error {
		return db.WithTx(ctx, pool, fn)
	})
	member.NewHandler(memberSvc).RegisterRoutes(apiV1)
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, db.PoolConfig{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to database")
		return err
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	rc, err := platformredis.New(ctx, platformredis.Config{URL: cfg.RedisURL})
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to redis")
		return err
	}
	if rc != nil {
		defer rc.Close()
		logger.Info().Msg("connected to redis; edit sessions are shared")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	applyMiddleware(e, cfg, logger)
	registerRoutes(e, cfg, pool, rc, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			logger.Error().Err(err).Msg("server failed")
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
