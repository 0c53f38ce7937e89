package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/persona-platform/cmd/mainconfig"
	"github.com/wolfman30/persona-platform/internal/api/router"
	"github.com/wolfman30/persona-platform/internal/app/bootstrap"
	"github.com/wolfman30/persona-platform/internal/archetype"
	"github.com/wolfman30/persona-platform/internal/audit"
	appconfig "github.com/wolfman30/persona-platform/internal/config"
	"github.com/wolfman30/persona-platform/internal/observability/metrics"
	"github.com/wolfman30/persona-platform/internal/persona"
	"github.com/wolfman30/persona-platform/pkg/logging"
)

func main() {
	cfg, err := appconfig.LoadWithDotEnv()
	if err != nil {
		logging.Default().Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting persona API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	awsCfg := setupAWS(ctx, cfg, logger)

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer redisClient.Close()
	}
	tenantDB, err := bootstrap.OpenTenantDB(cfg)
	if err != nil {
		logger.Error("failed to open tenant database", "error", err)
		os.Exit(1)
	}
	if tenantDB != nil {
		defer tenantDB.Close()
	}
	auditPool := bootstrap.ConnectAuditPool(ctx, cfg, logger)
	if auditPool != nil {
		defer auditPool.Close()
	}

	backends := bootstrap.TenantBackends{Redis: redisClient, DB: tenantDB}
	var catalogSource archetype.ObjectGetter
	if awsCfg != nil {
		backends.Dynamo = dynamodb.NewFromConfig(*awsCfg)
		catalogSource = mainconfig.S3Client(*awsCfg, cfg)
	}

	catalog, err := bootstrap.BuildCatalog(ctx, cfg, catalogSource, logger)
	if err != nil {
		logger.Error("failed to load archetype catalog", "error", err)
		os.Exit(1)
	}
	directory, err := bootstrap.BuildTenantDirectory(cfg, backends, logger)
	if err != nil {
		logger.Error("failed to build tenant directory", "error", err)
		os.Exit(1)
	}

	metricsHandler, personaMetrics := setupPersonaMetrics()
	deps := bootstrap.PersonaDeps{Catalog: catalog, Directory: directory, Metrics: personaMetrics}
	if auditPool != nil {
		deps.Audit = audit.NewRecorder(auditPool)
	}
	svc, err := bootstrap.BuildPersonaService(cfg, deps, logger)
	if err != nil {
		logger.Error("failed to build persona service", "error", err)
		os.Exit(1)
	}

	if awsCfg != nil {
		if listener := bootstrap.BuildInvalidationListener(cfg, sqs.NewFromConfig(*awsCfg), directory, logger); listener != nil {
			listener.Start(ctx)
			defer listener.Wait()
		}
	}

	r := router.New(&router.Config{
		Logger:             logger,
		PersonaHandler:     persona.NewHandler(svc, logger),
		AdminAuthSecret:    cfg.AdminJWTSecret,
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitRPS:       cfg.RateLimitRPS,
		RateLimitBurst:     cfg.RateLimitBurst,
		ReadinessChecks:    readinessChecks(redisClient, tenantDB, auditPool),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	logger.Info("server stopped")
}

// setupAWS returns nil when no AWS-backed component is configured or the SDK
// config cannot be loaded.
func setupAWS(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) *aws.Config {
	if !cfg.UsesAWS() {
		return nil
	}
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Warn("AWS config unavailable; dynamo, sqs and s3 components disabled", "error", err)
		return nil
	}
	return &awsCfg
}

func setupPersonaMetrics() (http.Handler, *metrics.PersonaMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewPersonaMetrics(reg)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), m
}

func readinessChecks(rdb *redis.Client, db *sql.DB, pool *pgxpool.Pool) map[string]router.ReadinessCheck {
	checks := map[string]router.ReadinessCheck{}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	if db != nil {
		checks["tenant_db"] = db.PingContext
	}
	if pool != nil {
		checks["audit_db"] = pool.Ping
	}
	return checks
}
