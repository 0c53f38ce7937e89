package bootstrap

import (
	"database/sql"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/persona-platform/internal/config"
	"github.com/wolfman30/persona-platform/internal/tenant"
	"github.com/wolfman30/persona-platform/pkg/logging"
)

// TenantBackends are the optional remote sources of tenant records. Nil
// fields are skipped.
type TenantBackends struct {
	Redis  *redis.Client
	DB     *sql.DB
	Dynamo *dynamodb.Client
}

// TenantStores returns the configured stores in lookup order: Redis, then
// Postgres, then DynamoDB.
func TenantStores(cfg *appconfig.Config, b TenantBackends) []tenant.Store {
	var stores []tenant.Store
	if b.Redis != nil {
		stores = append(stores, tenant.NewRedisStore(b.Redis))
	}
	if b.DB != nil {
		stores = append(stores, tenant.NewPostgresStore(b.DB))
	}
	if b.Dynamo != nil && cfg != nil && strings.TrimSpace(cfg.TenantDynamoTable) != "" {
		stores = append(stores, tenant.NewDynamoStore(b.Dynamo, cfg.TenantDynamoTable))
	}
	return stores
}

// BuildTenantDirectory wires the cached directory over the demo set and
// whichever remote stores are configured.
func BuildTenantDirectory(cfg *appconfig.Config, b TenantBackends, logger *logging.Logger) (*tenant.CachedDirectory, error) {
	if logger == nil {
		logger = logging.Default()
	}
	opts := []tenant.Option{tenant.WithLogger(logger)}
	if cfg != nil {
		opts = append(opts, tenant.WithCache(cfg.TenantCacheSize, cfg.TenantCacheTTL))
	}
	stores := TenantStores(cfg, b)
	if len(stores) > 0 {
		opts = append(opts, tenant.WithStores(stores...))
	}
	dir, err := tenant.NewCachedDirectory(opts...)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(stores))
	for _, s := range stores {
		names = append(names, string(s.Name()))
	}
	logger.Info("tenant directory ready", "stores", names)
	return dir, nil
}

// BuildInvalidationListener returns an SQS-backed cache invalidation listener,
// or nil when no queue is configured.
func BuildInvalidationListener(cfg *appconfig.Config, client *sqs.Client, dir tenant.Directory, logger *logging.Logger) *tenant.InvalidationListener {
	if cfg == nil || client == nil || strings.TrimSpace(cfg.TenantInvalidationQueueURL) == "" {
		return nil
	}
	queue := tenant.NewSQSQueue(client, cfg.TenantInvalidationQueueURL)
	return tenant.NewInvalidationListener(queue, dir, cfg.InvalidationWaitSeconds, logger)
}
