package bootstrap

import (
	"context"
	"fmt"

	"github.com/wolfman30/persona-platform/internal/archetype"
	"github.com/wolfman30/persona-platform/internal/audit"
	appconfig "github.com/wolfman30/persona-platform/internal/config"
	"github.com/wolfman30/persona-platform/internal/observability/metrics"
	"github.com/wolfman30/persona-platform/internal/persona"
	"github.com/wolfman30/persona-platform/internal/tenant"
	"github.com/wolfman30/persona-platform/pkg/logging"
)

// BuildCatalog loads the embedded archetype bank and, when ARCHETYPE_BUCKET is
// set, overlays the bank stored in S3.
func BuildCatalog(ctx context.Context, cfg *appconfig.Config, s3 archetype.ObjectGetter, logger *logging.Logger) (*archetype.Catalog, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil || cfg.ArchetypeBucket == "" || s3 == nil {
		return archetype.LoadEmbedded()
	}
	catalog, err := archetype.LoadWithOverlay(ctx, s3, cfg.ArchetypeBucket, cfg.ArchetypeKey)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: archetype overlay: %w", err)
	}
	logger.Info("archetype overlay applied", "bucket", cfg.ArchetypeBucket, "key", cfg.ArchetypeKey, "archetypes", len(catalog.Keys()))
	return catalog, nil
}

// PersonaDeps carries the already-built collaborators of the persona service.
type PersonaDeps struct {
	Catalog   *archetype.Catalog
	Directory tenant.Directory
	Metrics   *metrics.PersonaMetrics
	Audit     *audit.Recorder
}

// BuildPersonaService assembles the persona service from config and deps.
func BuildPersonaService(cfg *appconfig.Config, deps PersonaDeps, logger *logging.Logger) (*persona.Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	svcCfg := persona.ServiceConfig{
		Catalog:         deps.Catalog,
		Directory:       deps.Directory,
		DefaultLanguage: cfg.DefaultLanguage,
		Metrics:         deps.Metrics,
		Logger:          logger,
	}
	// A typed nil *audit.Recorder must not reach the interface field.
	if deps.Audit != nil {
		svcCfg.Audit = deps.Audit
	}
	return persona.NewService(svcCfg)
}
