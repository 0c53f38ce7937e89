package persona

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/persona-platform/internal/audit"
	"github.com/wolfman30/persona-platform/internal/channel"
	"github.com/wolfman30/persona-platform/internal/observability/metrics"
	"github.com/wolfman30/persona-platform/internal/tenant"
	"github.com/wolfman30/persona-platform/pkg/logging"
)

type fakeRecorder struct {
	mu     sync.Mutex
	events []audit.FallbackEvent
	err    error
}

func (r *fakeRecorder) RecordFallback(_ context.Context, evt audit.FallbackEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return r.err
}

func newTestService(t *testing.T, dir tenant.Directory, rec FallbackRecorder) (*Service, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	svc, err := NewService(ServiceConfig{
		Catalog:   testCatalog(t),
		Directory: dir,
		Metrics:   metrics.NewPersonaMetrics(reg),
		Audit:     rec,
		Logger:    logging.Discard(),
	})
	require.NoError(t, err)
	return svc, reg
}

func counterSum(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	var total float64
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, m := range fam.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func TestServicePersonaAuditsSubstitution(t *testing.T) {
	dir := &fakeDirectory{remote: map[string]*tenant.Record{"tenant_42": tenant42()}}
	rec := &fakeRecorder{}
	svc, reg := newTestService(t, dir, rec)

	p, ident, err := svc.Persona(context.Background(), Request{TenantID: "tenant_42", Channel: channel.WidgetB2B, Remote: true})
	require.NoError(t, err)
	assert.Equal(t, DefaultSafetyTable[channel.WidgetB2B], ident.ArchetypeKey)
	assert.Contains(t, p.InstructionText, "Zenith Analytics")

	require.Len(t, rec.events, 1)
	evt := rec.events[0]
	assert.Equal(t, "tenant_42", evt.TenantID)
	assert.Equal(t, "WIDGET_B2B", evt.Channel)
	assert.Equal(t, "platform_operator", evt.RequestedArchetype)
	assert.Equal(t, ident.ArchetypeKey, evt.ResolvedArchetype)
	assert.Equal(t, ReasonChannelMismatch, evt.Reason)

	assert.Equal(t, 1.0, counterSum(t, reg, "persona_identity_fallbacks_total"))
	assert.Equal(t, 1.0, counterSum(t, reg, "persona_prompt_compositions_total"))
}

func TestServicePersonaAnonymousIsNotAudited(t *testing.T) {
	rec := &fakeRecorder{}
	svc, reg := newTestService(t, &fakeDirectory{}, rec)

	_, ident, err := svc.Persona(context.Background(), Request{Channel: channel.WidgetEcom, Language: "es"})
	require.NoError(t, err)
	assert.Equal(t, "es", ident.ResolvedLanguage)
	assert.Empty(t, rec.events)
	assert.Equal(t, 1.0, counterSum(t, reg, "persona_identity_fallbacks_total"))
	assert.Equal(t, 1.0, counterSum(t, reg, "persona_identity_resolutions_total"))
}

func TestServicePersonaAuditFailureDoesNotFailRequest(t *testing.T) {
	rec := &fakeRecorder{err: errors.New("db down")}
	svc, _ := newTestService(t, &fakeDirectory{}, rec)

	p, _, err := svc.Persona(context.Background(), Request{TenantID: "ghost", Channel: channel.WidgetB2C})
	require.NoError(t, err)
	assert.NotEmpty(t, p.InstructionText)
	assert.Len(t, rec.events, 1)
}

type blockingRecorder struct {
	err chan error
}

func (r *blockingRecorder) RecordFallback(ctx context.Context, _ audit.FallbackEvent) error {
	<-ctx.Done()
	r.err <- ctx.Err()
	return ctx.Err()
}

func TestServicePersonaBoundsSlowAudit(t *testing.T) {
	rec := &blockingRecorder{err: make(chan error, 1)}
	svc, err := NewService(ServiceConfig{
		Catalog:      testCatalog(t),
		Directory:    &fakeDirectory{},
		Audit:        rec,
		AuditTimeout: 20 * time.Millisecond,
		Logger:       logging.Discard(),
	})
	require.NoError(t, err)

	start := time.Now()
	p, _, err := svc.Persona(context.Background(), Request{TenantID: "ghost", Channel: channel.WidgetB2C})
	require.NoError(t, err)
	assert.NotEmpty(t, p.InstructionText)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.ErrorIs(t, <-rec.err, context.DeadlineExceeded)
}

func TestServiceSyncRequestSkipsRemote(t *testing.T) {
	dir := &fakeDirectory{remote: map[string]*tenant.Record{"tenant_42": tenant42()}}
	svc, _ := newTestService(t, dir, nil)

	_, ident, err := svc.Persona(context.Background(), Request{TenantID: "tenant_42", Channel: channel.OperatorLine})
	require.NoError(t, err)
	assert.Equal(t, ReasonTenantNotFound, ident.Resolution.Reason)
}

func TestServiceHelpers(t *testing.T) {
	dir := &fakeDirectory{}
	svc, reg := newTestService(t, dir, nil)

	assert.Equal(t, testCatalog(t).List(), svc.Archetypes())

	svc.Invalidate("tenant_42")
	assert.Equal(t, []string{"tenant_42"}, dir.invalidated)
	assert.Equal(t, 1.0, counterSum(t, reg, "persona_tenant_cache_invalidations_total"))

	_, err := svc.Compose(Identity{ArchetypeKey: "missing"})
	assert.ErrorIs(t, err, ErrUnknownArchetype)

	out := svc.Bind(map[string]any{"a": 1}, testPersona())
	assert.Equal(t, 1, out["a"])
}

func TestNewServiceValidates(t *testing.T) {
	_, err := NewService(ServiceConfig{})
	assert.Error(t, err)

	_, err = NewService(ServiceConfig{
		Catalog:     testCatalog(t),
		SafetyTable: map[channel.Type]string{channel.WidgetB2B: "b2b_consultant"},
		Logger:      logging.Discard(),
	})
	assert.ErrorIs(t, err, ErrInvalidSafetyTable)
}
