package persona

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wolfman30/persona-platform/internal/archetype"
	"github.com/wolfman30/persona-platform/internal/channel"
	"github.com/wolfman30/persona-platform/internal/tenant"
	"github.com/wolfman30/persona-platform/pkg/logging"
)

// Source says where the archetype of an Identity came from.
type Source string

const (
	SourceTenant      Source = "tenant"
	SourceHint        Source = "hint"
	SourceSafeDefault Source = "safe_default"
)

// Reasons recorded on a Resolution.
const (
	ReasonNoTenant             = "no_tenant"
	ReasonTenantNotFound       = "tenant_not_found"
	ReasonDirectoryUnavailable = "directory_unavailable"
	ReasonChannelMismatch      = "channel_mismatch"
	ReasonUnknownArchetype     = "unknown_archetype"
	ReasonPrefixHint           = "prefix_hint"
)

// Resolution explains how the archetype was chosen.
type Resolution struct {
	Source Source `json:"source"`
	// Substituted is set when the tenant's own archetype was replaced.
	Substituted        bool   `json:"substituted"`
	Reason             string `json:"reason,omitempty"`
	RequestedArchetype string `json:"requested_archetype,omitempty"`
	// RequestedChannel is the raw channel before unknown values were mapped.
	RequestedChannel channel.Type `json:"requested_channel"`
}

// Degraded reports whether the resolution fell back from what the caller or
// tenant asked for.
func (r Resolution) Degraded() bool {
	return r.Source != SourceTenant || r.Substituted
}

// Identity is the request-scoped merge of a tenant record onto an archetype's
// defaults.
type Identity struct {
	TenantID     string       `json:"tenant_id,omitempty"`
	Channel      channel.Type `json:"channel"`
	ArchetypeKey string       `json:"archetype_key"`
	Internal     bool         `json:"internal,omitempty"`

	DisplayName     string   `json:"display_name"`
	Address         string   `json:"address,omitempty"`
	Phone           string   `json:"phone,omitempty"`
	Domain          string   `json:"domain,omitempty"`
	OpeningHours    string   `json:"opening_hours,omitempty"`
	Specialty       string   `json:"specialty,omitempty"`
	ServicesOffered []string `json:"services_offered,omitempty"`
	ServiceZones    []string `json:"service_zones,omitempty"`

	Currency         string `json:"currency"`
	PaymentMethod    string `json:"payment_method,omitempty"`
	PaymentDetails   string `json:"payment_details,omitempty"`
	KnowledgeBaseRef string `json:"knowledge_base_ref,omitempty"`

	ResolvedLanguage string            `json:"resolved_language"`
	Provenance       tenant.Provenance `json:"provenance,omitempty"`
	Resolution       Resolution        `json:"resolution"`
}

// PrefixHint maps a tenant-id namespace prefix to an archetype guess used
// when the tenant is not found.
type PrefixHint struct {
	Prefix       string
	ArchetypeKey string
}

// DefaultPrefixHints are matched in order against the lower-cased tenant id.
var DefaultPrefixHints = []PrefixHint{
	{Prefix: "dental_", ArchetypeKey: "dental_clinic"},
	{Prefix: "dent-", ArchetypeKey: "dental_clinic"},
	{Prefix: "prop_", ArchetypeKey: "property_manager"},
	{Prefix: "pm-", ArchetypeKey: "property_manager"},
	{Prefix: "shop_", ArchetypeKey: "ecommerce_assistant"},
	{Prefix: "store_", ArchetypeKey: "ecommerce_assistant"},
	{Prefix: "ecom_", ArchetypeKey: "ecommerce_assistant"},
	{Prefix: "debt_", ArchetypeKey: "debt_recovery"},
	{Prefix: "collect_", ArchetypeKey: "debt_recovery"},
	{Prefix: "realty_", ArchetypeKey: "real_estate_agency"},
	{Prefix: "re-", ArchetypeKey: "real_estate_agency"},
	{Prefix: "b2b_", ArchetypeKey: "b2b_consultant"},
}

// DefaultLanguage is the platform's primary language.
const DefaultLanguage = "en"

// IdentityComposer resolves a tenant and channel to an Identity. It holds no
// mutable state; the directory owns the only cache.
type IdentityComposer struct {
	catalog         *archetype.Catalog
	safety          *SafetyMap
	dir             tenant.Directory
	hints           []PrefixHint
	defaultLanguage string
	logger          *logging.Logger
}

// IdentityOption configures an IdentityComposer.
type IdentityOption func(*IdentityComposer)

// WithDefaultLanguage sets the process default language.
func WithDefaultLanguage(lang string) IdentityOption {
	return func(c *IdentityComposer) {
		if lang = archetype.NormalizeLanguage(lang); lang != "" {
			c.defaultLanguage = lang
		}
	}
}

// WithPrefixHints replaces the prefix hint table.
func WithPrefixHints(hints []PrefixHint) IdentityOption {
	return func(c *IdentityComposer) { c.hints = hints }
}

// WithIdentityLogger sets the logger.
func WithIdentityLogger(logger *logging.Logger) IdentityOption {
	return func(c *IdentityComposer) { c.logger = logger }
}

// NewIdentityComposer wires the catalog, safety map and directory. A nil
// directory behaves as an empty one.
func NewIdentityComposer(catalog *archetype.Catalog, safety *SafetyMap, dir tenant.Directory, opts ...IdentityOption) (*IdentityComposer, error) {
	if catalog == nil || safety == nil {
		return nil, errors.New("persona: catalog and safety map required")
	}
	c := &IdentityComposer{
		catalog:         catalog,
		safety:          safety,
		dir:             dir,
		hints:           DefaultPrefixHints,
		defaultLanguage: DefaultLanguage,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logging.Default()
	}
	hints := make([]PrefixHint, 0, len(c.hints))
	for _, h := range c.hints {
		a, ok := catalog.Get(h.ArchetypeKey)
		if !ok {
			return nil, fmt.Errorf("persona: prefix hint %q names unknown archetype %q", h.Prefix, h.ArchetypeKey)
		}
		if a.Internal {
			return nil, fmt.Errorf("persona: prefix hint %q names internal archetype %q", h.Prefix, h.ArchetypeKey)
		}
		prefix := strings.ToLower(strings.TrimSpace(h.Prefix))
		if prefix == "" {
			return nil, fmt.Errorf("persona: empty prefix hint for %q", h.ArchetypeKey)
		}
		hints = append(hints, PrefixHint{Prefix: prefix, ArchetypeKey: h.ArchetypeKey})
	}
	c.hints = hints
	return c, nil
}

type resolveOptions struct {
	language string
}

// ResolveOption adjusts one resolution.
type ResolveOption func(*resolveOptions)

// WithLanguage requests a language explicitly; it wins over the tenant's
// configured language.
func WithLanguage(lang string) ResolveOption {
	return func(o *resolveOptions) { o.language = archetype.NormalizeLanguage(lang) }
}

// Resolve uses only the directory's in-process lookup and never suspends.
// An empty tenantID means no tenant.
func (c *IdentityComposer) Resolve(tenantID string, ch channel.Type, opts ...ResolveOption) Identity {
	return c.resolve(tenantID, ch, func(id string) (*tenant.Record, error) {
		if c.dir == nil {
			return nil, tenant.ErrNotFound
		}
		if rec, ok := c.dir.Lookup(id); ok {
			return rec, nil
		}
		return nil, tenant.ErrNotFound
	}, opts)
}

// ResolveContext may query remote tenant stores. Directory failures degrade
// like a missing tenant.
func (c *IdentityComposer) ResolveContext(ctx context.Context, tenantID string, ch channel.Type, opts ...ResolveOption) Identity {
	return c.resolve(tenantID, ch, func(id string) (*tenant.Record, error) {
		if c.dir == nil {
			return nil, tenant.ErrNotFound
		}
		return c.dir.Fetch(ctx, id)
	}, opts)
}

func (c *IdentityComposer) resolve(tenantID string, requested channel.Type, lookup func(string) (*tenant.Record, error), opts []ResolveOption) Identity {
	var ro resolveOptions
	for _, opt := range opts {
		opt(&ro)
	}

	ch := c.safety.Effective(requested)
	if ch != requested {
		c.logger.Info("unknown channel treated as most restrictive", "channel", requested.String(), "effective_channel", ch)
	}
	safeKey := c.safety.SafeDefault(ch)
	res := Resolution{RequestedChannel: requested}

	id := strings.TrimSpace(tenantID)
	if id == "" {
		res.Source = SourceSafeDefault
		res.Reason = ReasonNoTenant
		return c.merge(id, nil, safeKey, ch, ro, res)
	}

	rec, err := lookup(id)
	if err == nil && rec != nil {
		key := rec.ArchetypeKey
		res.Source = SourceTenant
		res.RequestedArchetype = key
		a, ok := c.catalog.Get(key)
		switch {
		case !ok:
			c.logger.Warn("tenant archetype unknown, using channel-safe default",
				"tenant_id", id, "channel", ch, "archetype", key, "resolved_archetype", safeKey)
			key, res.Substituted, res.Reason = safeKey, true, ReasonUnknownArchetype
		case !a.Allows(ch):
			c.logger.Warn("tenant archetype not allowed on channel, using channel-safe default",
				"tenant_id", id, "channel", ch, "archetype", key, "resolved_archetype", safeKey)
			key, res.Substituted, res.Reason = safeKey, true, ReasonChannelMismatch
		}
		return c.merge(id, rec, key, ch, ro, res)
	}

	res.Reason = ReasonTenantNotFound
	if err != nil && !errors.Is(err, tenant.ErrNotFound) {
		res.Reason = ReasonDirectoryUnavailable
		c.logger.Warn("tenant directory lookup failed", "tenant_id", id, "channel", ch, "error", err)
	}
	if key, ok := c.hint(id, ch); ok {
		res.Source = SourceHint
		res.RequestedArchetype = key
		c.logger.Info("tenant not found, using prefix hint",
			"tenant_id", id, "channel", ch, "resolved_archetype", key, "reason", res.Reason)
		return c.merge(id, nil, key, ch, ro, res)
	}
	res.Source = SourceSafeDefault
	c.logger.Info("tenant not found, using channel-safe default",
		"tenant_id", id, "channel", ch, "resolved_archetype", safeKey, "reason", res.Reason)
	return c.merge(id, nil, safeKey, ch, ro, res)
}

// hint returns the first prefix hint whose archetype is allowed on ch.
func (c *IdentityComposer) hint(id string, ch channel.Type) (string, bool) {
	lower := strings.ToLower(id)
	for _, h := range c.hints {
		if !strings.HasPrefix(lower, h.Prefix) {
			continue
		}
		a, ok := c.catalog.Get(h.ArchetypeKey)
		if !ok || a.Internal || !a.Allows(ch) {
			continue
		}
		return a.Key, true
	}
	return "", false
}

// merge overlays non-empty tenant fields onto the archetype defaults.
func (c *IdentityComposer) merge(id string, rec *tenant.Record, key string, ch channel.Type, ro resolveOptions, res Resolution) Identity {
	a, _ := c.catalog.Get(key)
	d := a.Defaults
	ident := Identity{
		TenantID:        id,
		Channel:         ch,
		ArchetypeKey:    a.Key,
		Internal:        a.Internal,
		DisplayName:     d.DisplayName,
		Address:         d.Address,
		Phone:           d.Phone,
		Domain:          d.Domain,
		OpeningHours:    d.OpeningHours,
		Specialty:       d.Specialty,
		ServicesOffered: cloneStrings(d.Services),
		ServiceZones:    cloneStrings(d.Zones),
		Currency:        d.Currency,
		PaymentMethod:   d.PaymentMethod,
		PaymentDetails:  d.PaymentDetails,
		Resolution:      res,
	}
	var recLang string
	if rec != nil {
		ident.DisplayName = firstNonEmpty(rec.DisplayName, ident.DisplayName)
		ident.Address = firstNonEmpty(rec.Address, ident.Address)
		ident.Phone = firstNonEmpty(rec.Phone, ident.Phone)
		ident.Domain = firstNonEmpty(rec.Domain, ident.Domain)
		ident.OpeningHours = firstNonEmpty(rec.OpeningHours, ident.OpeningHours)
		ident.Specialty = firstNonEmpty(rec.Specialty, ident.Specialty)
		if services := nonEmpty(rec.ServicesOffered); len(services) > 0 {
			ident.ServicesOffered = services
		}
		if zones := nonEmpty(rec.ServiceZones); len(zones) > 0 {
			ident.ServiceZones = zones
		}
		ident.Currency = firstNonEmpty(rec.Payment.Currency, ident.Currency)
		ident.PaymentMethod = firstNonEmpty(rec.Payment.Method, ident.PaymentMethod)
		ident.PaymentDetails = firstNonEmpty(rec.Payment.DetailsText, ident.PaymentDetails)
		ident.KnowledgeBaseRef = strings.TrimSpace(rec.KnowledgeBaseRef)
		ident.Provenance = rec.Provenance
		recLang = archetype.NormalizeLanguage(rec.Language)
	}
	ident.ResolvedLanguage = firstNonEmpty(ro.language, recLang, c.defaultLanguage)
	return ident
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func nonEmpty(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func cloneStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	return append([]string(nil), values...)
}
