package main

import (
	"context"
	crypto_rand "crypto/rand"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/occhealth/occhealth/internal/config"
	"github.com/occhealth/occhealth/internal/domain/catalog"
	"github.com/occhealth/occhealth/internal/domain/circuit"
	"github.com/occhealth/occhealth/internal/domain/company"
	"github.com/occhealth/occhealth/internal/domain/patient"
	"github.com/occhealth/occhealth/internal/domain/staff"
	"github.com/occhealth/occhealth/internal/platform/auth"
	"github.com/occhealth/occhealth/internal/platform/db"
	"github.com/occhealth/occhealth/internal/platform/events"
	"github.com/occhealth/occhealth/internal/platform/middleware"
	"github.com/occhealth/occhealth/internal/platform/registry"
	"github.com/occhealth/occhealth/internal/platform/reporting"
	"github.com/occhealth/occhealth/migrations"
)

const requestTimeout = 30 * time.Second

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "occhealth-server",
		Short: "Occupational health exam circuit API",
	}
	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(seedCmd())
	root.AddCommand(userCmd())
	root.AddCommand(certsCmd())
	return root
}

func newLogger(env string) zerolog.Logger {
	var out io.Writer = os.Stdout
	if env == "development" {
		out = zerolog.ConsoleWriter{Out: os.Stdout}
	}
	return zerolog.New(out).With().Timestamp().Logger()
}

// openPool loads and validates the configuration and connects to the
// database. Callers close the pool.
func openPool(ctx context.Context) (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return cfg, pool, nil
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

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			_, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, migrations.FS).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s).\n", count)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			_, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, migrations.FS).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status, appliedAt := "pending", ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Fprintf(out, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	})
	return cmd
}

// signingKey returns the configured JWT key. Development without a key gets
// a random one so login still works; its tokens die with the process.
func signingKey(cfg *config.Config, logger zerolog.Logger) ([]byte, error) {
	if cfg.JWTSigningKey != "" {
		return []byte(cfg.JWTSigningKey), nil
	}
	if !cfg.IsDev() {
		return nil, fmt.Errorf("JWT_SIGNING_KEY is required")
	}
	key := make([]byte, 32)
	if _, err := crypto_rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate signing key: %w", err)
	}
	logger.Warn().Msg("JWT_SIGNING_KEY not set; using an ephemeral key for this process")
	return key, nil
}

// services is everything the HTTP layer mounts.
type services struct {
	catalog  *catalog.Service
	company  *company.Service
	patients *patient.Service
	staff    *staff.Service
	circuit  *circuit.Service
}

func buildServices(pool *pgxpool.Pool, tokens staff.TokenIssuer, pub events.Publisher, logger zerolog.Logger, validityDays int) *services {
	tx := db.NewTransactor(pool)
	examRepo := catalog.NewExamRepo(pool)
	companies := company.NewService(company.NewCompanyRepo(pool), company.NewProtocolRepo(pool), examRepo, tx)
	return &services{
		catalog:  catalog.NewService(examRepo),
		company:  companies,
		patients: patient.NewService(patient.NewPatientRepo(pool), patient.NewHistoryRepo(pool)),
		staff:    staff.NewService(staff.NewUserRepo(pool), tokens),
		circuit: circuit.NewService(circuit.NewRepo(pool), companies, tx, pub, logger.With().Str("component", "circuit").Logger()).
			WithValidityDays(validityDays),
	}
}

func runServer() error {
	logger := newLogger(os.Getenv("ENV"))

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}
	loc, _ := cfg.Location()

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	migrator := db.NewMigrator(pool, migrations.FS)
	if applied, err := migrator.Up(ctx); err != nil {
		logger.Fatal().Err(err).Msg("migrations failed")
	} else if applied > 0 {
		logger.Info().Int("applied", applied).Msg("migrations applied")
	}

	key, err := signingKey(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("auth setup failed")
	}
	tokens := auth.NewTokenIssuer(key, cfg.JWTIssuer, cfg.TokenTTL)

	hub := events.NewHub(logger.With().Str("component", "events").Logger())
	svc := buildServices(pool, tokens, hub, logger, cfg.CertificateValidityDays)

	if cfg.RegistryEnabled() {
		reg, err := registry.Connect(ctx, registry.Options{
			Table:    cfg.CertRegistryTable,
			Region:   cfg.AWSRegion,
			Endpoint: cfg.AWSEndpointURL,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("certificate registry setup failed")
		}
		svc.circuit.WithRegistry(reg)
		logger.Info().Str("table", cfg.CertRegistryTable).Msg("certificate registry enabled")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.RequestTimeout(requestTimeout))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	if cfg.ResolvedAuthMode() == "development" {
		e.Use(auth.DevAuthMiddleware(cfg.DevUserID))
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{Issuer: cfg.JWTIssuer, SigningKey: key}))
	}
	e.Use(middleware.Audit(logger))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(pool, migrator))

	api := e.Group("/api/v1")
	catalog.NewHandler(svc.catalog).RegisterRoutes(api)
	company.NewHandler(svc.company).RegisterRoutes(api)
	patient.NewHandler(svc.patients).RegisterRoutes(api)
	staff.NewHandler(svc.staff).RegisterRoutes(api)
	circuitHandler := circuit.NewHandler(svc.circuit)
	circuitHandler.RegisterRoutes(api)
	circuitHandler.RegisterPublicRoutes(api)
	reporting.NewHandler(reporting.NewStorePG(pool), loc, logger).RegisterRoutes(api)
	events.NewHandler(hub, cfg.CORSOrigins).RegisterRoutes(api)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("auth_mode", cfg.ResolvedAuthMode()).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
