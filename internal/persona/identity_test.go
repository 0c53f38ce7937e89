package persona

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/persona-platform/internal/channel"
	"github.com/wolfman30/persona-platform/internal/tenant"
)

func TestResolveWithoutTenantUsesSafeDefault(t *testing.T) {
	ic, _ := newTestComposers(t, &fakeDirectory{})

	for _, ch := range channel.All() {
		ident := ic.Resolve("", ch)
		assert.Equal(t, DefaultSafetyTable[ch], ident.ArchetypeKey, ch)
		assert.Equal(t, SourceSafeDefault, ident.Resolution.Source)
		assert.Equal(t, ReasonNoTenant, ident.Resolution.Reason)
		assert.False(t, ident.Resolution.Substituted)
		assert.NotEmpty(t, ident.DisplayName)
		assert.Equal(t, "en", ident.ResolvedLanguage)
	}
}

func TestNoTenantOnEcommerceWidget(t *testing.T) {
	ic, pc := newTestComposers(t, nil)

	ident := ic.Resolve("", channel.WidgetEcom)
	require.Equal(t, DefaultSafetyTable[channel.WidgetEcom], ident.ArchetypeKey)

	p, err := pc.Compose(ident)
	require.NoError(t, err)
	assert.NotEmpty(t, p.InstructionText)
	for _, tok := range Tokens {
		assert.NotContains(t, p.InstructionText, tok)
	}
}

func TestOperatorTenantOnB2BWidget(t *testing.T) {
	dir := &fakeDirectory{local: map[string]*tenant.Record{"tenant_42": tenant42()}}
	ic, pc := newTestComposers(t, dir)

	ident := ic.Resolve("tenant_42", channel.WidgetB2B)
	assert.Equal(t, DefaultSafetyTable[channel.WidgetB2B], ident.ArchetypeKey)
	assert.Equal(t, SourceTenant, ident.Resolution.Source)
	assert.True(t, ident.Resolution.Substituted)
	assert.Equal(t, ReasonChannelMismatch, ident.Resolution.Reason)
	assert.Equal(t, "platform_operator", ident.Resolution.RequestedArchetype)
	assert.False(t, ident.Internal)

	// Business data survives the substitution.
	assert.Equal(t, "Zenith Analytics", ident.DisplayName)
	assert.Equal(t, "EUR", ident.Currency)
	assert.Equal(t, tenant.ProvenanceRedis, ident.Provenance)

	p, err := pc.Compose(ident)
	require.NoError(t, err)
	assert.Contains(t, p.InstructionText, "Zenith Analytics")
	assert.Contains(t, p.InstructionText, "zenith.example")
	assert.NotContains(t, p.InstructionText, "Demo Company")
	assert.Equal(t, "EUR", p.Metadata.Currency)

	same := ic.Resolve("tenant_42", channel.OperatorLine)
	assert.Equal(t, "platform_operator", same.ArchetypeKey)
	assert.False(t, same.Resolution.Degraded())
}

func TestResolveMergesTenantOverDefaults(t *testing.T) {
	dir := &fakeDirectory{local: map[string]*tenant.Record{
		"harbor": {
			ID:               "harbor",
			ArchetypeKey:     "dental_clinic",
			DisplayName:      "Harbor Dental Care",
			Address:          "  ",
			Phone:            "+1 503 555 0142",
			ServicesOffered:  []string{"fillings", " ", "orthodontics"},
			Language:         "FR",
			KnowledgeBaseRef: "kb/harbor",
		},
	}}
	ic, _ := newTestComposers(t, dir)
	cat := testCatalog(t)
	dental, _ := cat.Get("dental_clinic")

	ident := ic.Resolve("harbor", channel.WidgetB2C)
	assert.Equal(t, "dental_clinic", ident.ArchetypeKey)
	assert.False(t, ident.Resolution.Degraded())
	assert.Equal(t, "Harbor Dental Care", ident.DisplayName)
	assert.Equal(t, dental.Defaults.Address, ident.Address)
	assert.Equal(t, "+1 503 555 0142", ident.Phone)
	assert.Equal(t, []string{"fillings", "orthodontics"}, ident.ServicesOffered)
	assert.Equal(t, dental.Defaults.OpeningHours, ident.OpeningHours)
	assert.Equal(t, dental.Defaults.Currency, ident.Currency)
	assert.Equal(t, "fr", ident.ResolvedLanguage)
	assert.Equal(t, "kb/harbor", ident.KnowledgeBaseRef)
}

func TestResolveDoesNotShareCatalogSlices(t *testing.T) {
	ic, _ := newTestComposers(t, nil)
	cat := testCatalog(t)

	ident := ic.Resolve("", channel.WidgetEcom)
	require.NotEmpty(t, ident.ServiceZones)
	ident.ServiceZones[0] = "mutated"

	again := ic.Resolve("", channel.WidgetEcom)
	assert.NotEqual(t, "mutated", again.ServiceZones[0])
	shop, _ := cat.Get("ecommerce_assistant")
	assert.NotEqual(t, "mutated", shop.Defaults.Zones[0])
}

func TestResolveUnknownTenantArchetype(t *testing.T) {
	dir := &fakeDirectory{local: map[string]*tenant.Record{
		"odd": {ID: "odd", ArchetypeKey: "space_station", DisplayName: "Odd Co"},
	}}
	ic, _ := newTestComposers(t, dir)

	ident := ic.Resolve("odd", channel.WidgetB2C)
	assert.Equal(t, DefaultSafetyTable[channel.WidgetB2C], ident.ArchetypeKey)
	assert.Equal(t, ReasonUnknownArchetype, ident.Resolution.Reason)
	assert.True(t, ident.Resolution.Substituted)
	assert.Equal(t, "Odd Co", ident.DisplayName)
}

func TestResolvePrefixHints(t *testing.T) {
	ic, _ := newTestComposers(t, &fakeDirectory{})

	cases := []struct {
		id     string
		ch     channel.Type
		want   string
		source Source
	}{
		{"dental_smiles", channel.WidgetB2C, "dental_clinic", SourceHint},
		{"DENT-77", channel.WidgetB2C, "dental_clinic", SourceHint},
		{"dental_smiles", channel.WidgetB2B, DefaultSafetyTable[channel.WidgetB2B], SourceSafeDefault},
		{"shop_north", channel.WidgetEcom, "ecommerce_assistant", SourceHint},
		{"b2b_acme", channel.WidgetEcom, DefaultSafetyTable[channel.WidgetEcom], SourceSafeDefault},
		{"debt_co", channel.WidgetB2B, "debt_recovery", SourceHint},
		{"realty_one", channel.WidgetB2C, "real_estate_agency", SourceHint},
		{"pm-leeds", channel.WidgetB2B, "property_manager", SourceHint},
		{"ghost", channel.WidgetB2C, DefaultSafetyTable[channel.WidgetB2C], SourceSafeDefault},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%s/%s", tc.id, tc.ch), func(t *testing.T) {
			ident := ic.Resolve(tc.id, tc.ch)
			assert.Equal(t, tc.want, ident.ArchetypeKey)
			assert.Equal(t, tc.source, ident.Resolution.Source)
			assert.Equal(t, ReasonTenantNotFound, ident.Resolution.Reason)
			assert.Equal(t, tc.id, ident.TenantID)
		})
	}
}

func TestPrefixHintsMayNotNameInternalArchetype(t *testing.T) {
	cat := testCatalog(t)
	safety, err := NewSafetyMap(cat, DefaultSafetyTable)
	require.NoError(t, err)

	_, err = NewIdentityComposer(cat, safety, nil, WithPrefixHints([]PrefixHint{{Prefix: "op_", ArchetypeKey: "platform_operator"}}))
	assert.Error(t, err)
	_, err = NewIdentityComposer(cat, safety, nil, WithPrefixHints([]PrefixHint{{Prefix: "x_", ArchetypeKey: "missing"}}))
	assert.Error(t, err)
	_, err = NewIdentityComposer(cat, safety, nil, WithPrefixHints([]PrefixHint{{Prefix: " ", ArchetypeKey: "dental_clinic"}}))
	assert.Error(t, err)
	_, err = NewIdentityComposer(nil, safety, nil)
	assert.Error(t, err)
}

func TestResolveUnknownChannel(t *testing.T) {
	ic, _ := newTestComposers(t, nil)

	ident := ic.Resolve("", channel.Parse("carrier-pigeon"))
	assert.Equal(t, channel.MostRestrictive, ident.Channel)
	assert.Equal(t, DefaultSafetyTable[channel.MostRestrictive], ident.ArchetypeKey)
	assert.Equal(t, channel.Unknown, ident.Resolution.RequestedChannel)
}

func TestResolveContextUsesRemoteStores(t *testing.T) {
	dir := &fakeDirectory{remote: map[string]*tenant.Record{
		"acme": {ID: "acme", ArchetypeKey: "b2b_consultant", DisplayName: "Acme Corp", Provenance: tenant.ProvenancePostgres},
	}}
	ic, _ := newTestComposers(t, dir)

	local := ic.Resolve("acme", channel.WidgetB2B)
	assert.Equal(t, ReasonTenantNotFound, local.Resolution.Reason)
	assert.NotEqual(t, "Acme Corp", local.DisplayName)

	remote := ic.ResolveContext(context.Background(), "acme", channel.WidgetB2B)
	assert.Equal(t, "b2b_consultant", remote.ArchetypeKey)
	assert.Equal(t, "Acme Corp", remote.DisplayName)
	assert.Equal(t, tenant.ProvenancePostgres, remote.Provenance)
	assert.False(t, remote.Resolution.Degraded())
}

func TestResolveContextDirectoryFailure(t *testing.T) {
	dir := &fakeDirectory{fetchErr: fmt.Errorf("%w: %w", tenant.ErrUnavailable, errors.New("timeout"))}
	ic, _ := newTestComposers(t, dir)

	ident := ic.ResolveContext(context.Background(), "acme", channel.WidgetB2B)
	assert.Equal(t, DefaultSafetyTable[channel.WidgetB2B], ident.ArchetypeKey)
	assert.Equal(t, ReasonDirectoryUnavailable, ident.Resolution.Reason)
	assert.Equal(t, SourceSafeDefault, ident.Resolution.Source)
}

func TestResolveLanguagePrecedence(t *testing.T) {
	dir := &fakeDirectory{local: map[string]*tenant.Record{
		"fr-shop": {ID: "fr-shop", ArchetypeKey: "ecommerce_assistant", Language: "fr"},
		"plain":   {ID: "plain", ArchetypeKey: "ecommerce_assistant"},
	}}
	ic, _ := newTestComposers(t, dir, WithDefaultLanguage("es"))

	assert.Equal(t, "fr", ic.Resolve("fr-shop", channel.WidgetEcom).ResolvedLanguage)
	assert.Equal(t, "hi-Latn", ic.Resolve("fr-shop", channel.WidgetEcom, WithLanguage("HI_latn")).ResolvedLanguage)
	assert.Equal(t, "es", ic.Resolve("plain", channel.WidgetEcom).ResolvedLanguage)
	assert.Equal(t, "es", ic.Resolve("", channel.WidgetEcom).ResolvedLanguage)
}

func TestChannelIsolationProperty(t *testing.T) {
	cat := testCatalog(t)
	records := map[string]*tenant.Record{}
	for _, key := range cat.Keys() {
		records["t-"+key] = &tenant.Record{ID: "t-" + key, ArchetypeKey: key, DisplayName: "Tenant " + key}
	}
	ic, _ := newTestComposers(t, &fakeDirectory{local: records})

	for _, ch := range channel.All() {
		for _, key := range cat.Keys() {
			a, _ := cat.Get(key)
			ident := ic.Resolve("t-"+key, ch)
			resolved, ok := cat.Get(ident.ArchetypeKey)
			require.True(t, ok)
			assert.True(t, resolved.Allows(ch), "%s on %s resolved to %s", key, ch, ident.ArchetypeKey)
			if !a.Allows(ch) {
				assert.Equal(t, DefaultSafetyTable[ch], ident.ArchetypeKey, "%s on %s", key, ch)
				assert.True(t, ident.Resolution.Substituted)
			} else {
				assert.Equal(t, key, ident.ArchetypeKey)
			}
		}
	}
}

func TestOperatorPurityProperty(t *testing.T) {
	ids := []string{"", "ghost", "tenant_42", "platform", "op_line", "dental_x", "b2b_x"}
	dirs := map[string]tenant.Directory{
		"empty":       &fakeDirectory{},
		"nil":         nil,
		"operator":    &fakeDirectory{local: map[string]*tenant.Record{"tenant_42": tenant42(), "platform": tenant42()}},
		"unreachable": &fakeDirectory{fetchErr: tenant.ErrUnavailable},
	}
	channels := append(channel.All(), channel.Unknown, channel.Type("SMS"))

	for name, dir := range dirs {
		ic, _ := newTestComposers(t, dir)
		for _, ch := range channels {
			if ch == channel.OperatorLine {
				continue
			}
			for _, id := range ids {
				local := ic.Resolve(id, ch)
				remote := ic.ResolveContext(context.Background(), id, ch)
				for _, ident := range []Identity{local, remote} {
					assert.NotEqual(t, "platform_operator", ident.ArchetypeKey, "dir=%s ch=%s id=%q", name, ch, id)
					assert.False(t, ident.Internal)
				}
			}
		}
	}
}
