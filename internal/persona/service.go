package persona

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/persona-platform/internal/archetype"
	"github.com/wolfman30/persona-platform/internal/audit"
	"github.com/wolfman30/persona-platform/internal/channel"
	"github.com/wolfman30/persona-platform/internal/observability/metrics"
	"github.com/wolfman30/persona-platform/internal/tenant"
	"github.com/wolfman30/persona-platform/pkg/logging"
)

var personaTracer = otel.Tracer("persona/service")

// FallbackRecorder persists degraded resolutions for later review.
type FallbackRecorder interface {
	RecordFallback(ctx context.Context, evt audit.FallbackEvent) error
}

// ServiceConfig wires a Service. Catalog is required; everything else is
// optional.
type ServiceConfig struct {
	Catalog         *archetype.Catalog
	Directory       tenant.Directory
	SafetyTable     map[channel.Type]string
	PrefixHints     []PrefixHint
	DefaultLanguage string
	Metrics         *metrics.PersonaMetrics
	Audit           FallbackRecorder
	// AuditTimeout bounds each fallback insert; zero means defaultAuditTimeout.
	AuditTimeout time.Duration
	Logger       *logging.Logger
}

const defaultAuditTimeout = 250 * time.Millisecond

// Request asks for the persona of one interaction.
type Request struct {
	TenantID string
	Channel  channel.Type
	Language string
	// Remote allows the tenant lookup to query remote stores.
	Remote bool
}

// Service runs resolve then compose and reports on fallbacks.
type Service struct {
	catalog    *archetype.Catalog
	identities *IdentityComposer
	prompts    *PromptComposer
	dir        tenant.Directory
	metrics    *metrics.PersonaMetrics
	audit      FallbackRecorder
	auditWait  time.Duration
	logger     *logging.Logger
}

// NewService validates the safety table and builds the composers.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Catalog == nil {
		return nil, errors.New("persona: catalog required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	table := cfg.SafetyTable
	if table == nil {
		table = DefaultSafetyTable
	}
	safety, err := NewSafetyMap(cfg.Catalog, table)
	if err != nil {
		return nil, err
	}
	opts := []IdentityOption{WithIdentityLogger(logger), WithDefaultLanguage(cfg.DefaultLanguage)}
	if cfg.PrefixHints != nil {
		opts = append(opts, WithPrefixHints(cfg.PrefixHints))
	}
	identities, err := NewIdentityComposer(cfg.Catalog, safety, cfg.Directory, opts...)
	if err != nil {
		return nil, err
	}
	prompts, err := NewPromptComposer(cfg.Catalog)
	if err != nil {
		return nil, err
	}
	auditWait := cfg.AuditTimeout
	if auditWait <= 0 {
		auditWait = defaultAuditTimeout
	}
	return &Service{
		catalog:    cfg.Catalog,
		identities: identities,
		prompts:    prompts,
		dir:        cfg.Directory,
		metrics:    cfg.Metrics,
		audit:      cfg.Audit,
		auditWait:  auditWait,
		logger:     logger,
	}, nil
}

// Persona resolves and composes the persona for req.
func (s *Service) Persona(ctx context.Context, req Request) (ComposedPersona, Identity, error) {
	ctx, span := personaTracer.Start(ctx, "persona.compose", trace.WithAttributes(
		attribute.String("persona.channel", string(req.Channel)),
		attribute.Bool("persona.remote_lookup", req.Remote),
	))
	defer span.End()
	start := time.Now()

	var opts []ResolveOption
	if req.Language != "" {
		opts = append(opts, WithLanguage(req.Language))
	}
	var ident Identity
	if req.Remote {
		ident = s.identities.ResolveContext(ctx, req.TenantID, req.Channel, opts...)
	} else {
		ident = s.identities.Resolve(req.TenantID, req.Channel, opts...)
	}
	res := ident.Resolution
	span.SetAttributes(
		attribute.String("persona.archetype", ident.ArchetypeKey),
		attribute.String("persona.source", string(res.Source)),
		attribute.Bool("persona.substituted", res.Substituted),
		attribute.String("persona.language", ident.ResolvedLanguage),
	)
	s.metrics.ObserveResolution(string(ident.Channel), string(res.Source), res.Substituted)
	if res.Degraded() {
		s.metrics.ObserveFallback(string(ident.Channel), res.Reason)
		s.recordFallback(ctx, ident)
	}

	persona, err := s.prompts.Compose(ident)
	s.metrics.ObserveLatency(string(ident.Channel), time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		s.metrics.ObserveCompose(ident.ArchetypeKey, ident.ResolvedLanguage, "error")
		s.logger.Error("persona composition failed", "error", err,
			"tenant_id", ident.TenantID, "channel", ident.Channel, "resolved_archetype", ident.ArchetypeKey)
		return ComposedPersona{}, ident, err
	}
	s.metrics.ObserveCompose(ident.ArchetypeKey, ident.ResolvedLanguage, "ok")
	return persona, ident, nil
}

// Compose exposes the prompt pipeline for callers that already hold an
// Identity.
func (s *Service) Compose(identity Identity) (ComposedPersona, error) {
	return s.prompts.Compose(identity)
}

// Bind merges p into a session config.
func (s *Service) Bind(base map[string]any, p ComposedPersona) map[string]any {
	return Bind(base, p)
}

// Archetypes lists every archetype key and voice.
func (s *Service) Archetypes() []archetype.Summary {
	return s.catalog.List()
}

// Invalidate drops the cached record for tenantID.
func (s *Service) Invalidate(tenantID string) {
	if s.dir == nil {
		return
	}
	s.dir.Invalidate(tenantID)
	s.metrics.ObserveInvalidation()
}

// recordFallback audits degradations for identified tenants. Anonymous
// requests are expected to use the safe default and are not recorded.
func (s *Service) recordFallback(ctx context.Context, ident Identity) {
	res := ident.Resolution
	if s.audit == nil || res.Reason == ReasonNoTenant {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.auditWait)
	defer cancel()
	err := s.audit.RecordFallback(ctx, audit.FallbackEvent{
		TenantID:           ident.TenantID,
		Channel:            string(ident.Channel),
		RequestedArchetype: res.RequestedArchetype,
		ResolvedArchetype:  ident.ArchetypeKey,
		Source:             string(res.Source),
		Reason:             res.Reason,
	})
	if err != nil {
		s.logger.Warn("failed to record persona fallback", "error", err, "tenant_id", ident.TenantID)
	}
}
