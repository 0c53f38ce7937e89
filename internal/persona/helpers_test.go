package persona

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wolfman30/persona-platform/internal/archetype"
	"github.com/wolfman30/persona-platform/internal/tenant"
	"github.com/wolfman30/persona-platform/pkg/logging"
)

// fakeDirectory serves local records from Lookup and Fetch, and remote
// records from Fetch only.
type fakeDirectory struct {
	mu          sync.Mutex
	local       map[string]*tenant.Record
	remote      map[string]*tenant.Record
	fetchErr    error
	invalidated []string
}

func (d *fakeDirectory) Lookup(id string) (*tenant.Record, bool) {
	rec, ok := d.local[id]
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

func (d *fakeDirectory) Fetch(_ context.Context, id string) (*tenant.Record, error) {
	if d.fetchErr != nil {
		return nil, d.fetchErr
	}
	if rec, ok := d.remote[id]; ok {
		return rec.Clone(), nil
	}
	if rec, ok := d.local[id]; ok {
		return rec.Clone(), nil
	}
	return nil, tenant.ErrNotFound
}

func (d *fakeDirectory) Invalidate(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.invalidated = append(d.invalidated, id)
}

func testCatalog(t *testing.T) *archetype.Catalog {
	t.Helper()
	c, err := archetype.LoadEmbedded()
	require.NoError(t, err)
	return c
}

func newTestComposers(t *testing.T, dir tenant.Directory, opts ...IdentityOption) (*IdentityComposer, *PromptComposer) {
	t.Helper()
	cat := testCatalog(t)
	safety, err := NewSafetyMap(cat, DefaultSafetyTable)
	require.NoError(t, err)
	opts = append([]IdentityOption{WithIdentityLogger(logging.Discard())}, opts...)
	ic, err := NewIdentityComposer(cat, safety, dir, opts...)
	require.NoError(t, err)
	pc, err := NewPromptComposer(cat)
	require.NoError(t, err)
	return ic, pc
}

// tenant42 is stored with the platform's internal operator archetype, which
// only allows the operator line.
func tenant42() *tenant.Record {
	return &tenant.Record{
		ID:           "tenant_42",
		ArchetypeKey: "platform_operator",
		DisplayName:  "Zenith Analytics",
		Phone:        "+1 212 555 0142",
		Domain:       "zenith.example",
		Payment:      tenant.Payment{Currency: "EUR"},
		Provenance:   tenant.ProvenanceRedis,
	}
}

var supportedLanguages = []string{"en", "fr", "es", "hi", "hi-Latn", "de", "fr-CA", ""}
