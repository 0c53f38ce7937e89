// Package archetype holds the immutable catalog of behavioural templates and
// their per-language content banks.
package archetype

import (
	"embed"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wolfman30/persona-platform/internal/channel"
)

//go:embed content/*.yaml
var contentFS embed.FS

const embeddedBank = "content/archetypes.yaml"

// ErrInvalidCatalog marks a packaging defect in a content bank.
var ErrInvalidCatalog = errors.New("archetype: invalid catalog")

type bankFile struct {
	PlaceholderNames []string     `yaml:"placeholder_names"`
	Archetypes       []*Archetype `yaml:"archetypes"`
}

// Catalog is the read-only set of archetypes loaded at process start.
type Catalog struct {
	archetypes       map[string]*Archetype
	keys             []string
	placeholderNames []string
}

// LoadEmbedded parses the content bank compiled into the binary.
func LoadEmbedded() (*Catalog, error) {
	data, err := contentFS.ReadFile(embeddedBank)
	if err != nil {
		return nil, fmt.Errorf("archetype: read embedded bank: %w", err)
	}
	return Parse(data)
}

// MustLoadEmbedded is LoadEmbedded for process start-up; a broken embedded
// bank is a build defect.
func MustLoadEmbedded() *Catalog {
	c, err := LoadEmbedded()
	if err != nil {
		panic(err)
	}
	return c
}

// Parse decodes a YAML content bank and validates it.
func Parse(data []byte) (*Catalog, error) {
	var bank bankFile
	if err := yaml.Unmarshal(data, &bank); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrInvalidCatalog, err)
	}
	return New(bank.Archetypes, bank.PlaceholderNames)
}

// New builds a validated catalog from already-decoded archetypes.
func New(archetypes []*Archetype, placeholderNames []string) (*Catalog, error) {
	c := &Catalog{
		archetypes:       make(map[string]*Archetype, len(archetypes)),
		placeholderNames: dedupeNonEmpty(placeholderNames),
	}
	for _, a := range archetypes {
		if a == nil {
			continue
		}
		normalize(a)
		if err := validate(a); err != nil {
			return nil, err
		}
		if _, dup := c.archetypes[a.Key]; dup {
			return nil, fmt.Errorf("%w: duplicate archetype %q", ErrInvalidCatalog, a.Key)
		}
		c.archetypes[a.Key] = a
		c.keys = append(c.keys, a.Key)
	}
	if len(c.archetypes) == 0 {
		return nil, fmt.Errorf("%w: no archetypes", ErrInvalidCatalog)
	}
	sort.Strings(c.keys)
	return c, nil
}

// Overlay returns a new catalog where archetypes from other replace those with
// the same key and new keys are added. Neither input is modified.
func (c *Catalog) Overlay(other *Catalog) *Catalog {
	if other == nil {
		return c
	}
	merged := &Catalog{archetypes: make(map[string]*Archetype, len(c.archetypes)+len(other.archetypes))}
	for k, a := range c.archetypes {
		merged.archetypes[k] = a
	}
	for k, a := range other.archetypes {
		merged.archetypes[k] = a
	}
	for k := range merged.archetypes {
		merged.keys = append(merged.keys, k)
	}
	sort.Strings(merged.keys)
	merged.placeholderNames = dedupeNonEmpty(append(append([]string{}, c.placeholderNames...), other.placeholderNames...))
	return merged
}

// Get returns the archetype for key.
func (c *Catalog) Get(key string) (*Archetype, bool) {
	if c == nil {
		return nil, false
	}
	a, ok := c.archetypes[strings.TrimSpace(key)]
	return a, ok
}

// Keys returns every archetype key, sorted.
func (c *Catalog) Keys() []string {
	out := make([]string, len(c.keys))
	copy(out, c.keys)
	return out
}

// List returns key and voice for every archetype, sorted by key.
func (c *Catalog) List() []Summary {
	out := make([]Summary, 0, len(c.keys))
	for _, k := range c.keys {
		a := c.archetypes[k]
		out = append(out, Summary{Key: a.Key, Voice: a.Voice})
	}
	return out
}

// PlaceholderNames returns the demo business names shared by every archetype.
func (c *Catalog) PlaceholderNames() []string {
	out := make([]string, len(c.placeholderNames))
	copy(out, c.placeholderNames)
	return out
}

// PlaceholderNamesFor returns the shared demo names plus those declared by a,
// longest first so that overlapping names are replaced whole.
func (c *Catalog) PlaceholderNamesFor(a *Archetype) []string {
	names := append([]string{}, c.placeholderNames...)
	if a != nil {
		names = append(names, a.PlaceholderNames...)
	}
	names = dedupeNonEmpty(names)
	sort.SliceStable(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})
	return names
}

func normalize(a *Archetype) {
	a.Key = strings.TrimSpace(a.Key)
	a.DefaultLanguage = normalizeLang(a.DefaultLanguage)
	if len(a.LocalizedInstructionText) > 0 {
		localized := make(map[string]string, len(a.LocalizedInstructionText))
		for lang, text := range a.LocalizedInstructionText {
			localized[normalizeLang(lang)] = text
		}
		a.LocalizedInstructionText = localized
	}
	if len(a.Examples) > 0 {
		examples := make(map[string][]Example, len(a.Examples))
		for lang, ex := range a.Examples {
			examples[normalizeLang(lang)] = ex
		}
		a.Examples = examples
	}
	for i := range a.EscalationRules {
		a.EscalationRules[i].Message = normalizeKeys(a.EscalationRules[i].Message)
	}
	for i := range a.ComplaintResponses {
		a.ComplaintResponses[i].Response = normalizeKeys(a.ComplaintResponses[i].Response)
	}
}

func validate(a *Archetype) error {
	if a.Key == "" {
		return fmt.Errorf("%w: archetype without key", ErrInvalidCatalog)
	}
	if strings.TrimSpace(a.Voice) == "" {
		return fmt.Errorf("%w: archetype %q has no voice", ErrInvalidCatalog, a.Key)
	}
	if a.DefaultLanguage == "" {
		return fmt.Errorf("%w: archetype %q has no default language", ErrInvalidCatalog, a.Key)
	}
	if len(a.AllowedChannels) == 0 {
		return fmt.Errorf("%w: archetype %q allows no channel", ErrInvalidCatalog, a.Key)
	}
	for _, ch := range a.AllowedChannels {
		if !ch.Known() {
			return fmt.Errorf("%w: archetype %q allows unknown channel %q", ErrInvalidCatalog, a.Key, ch)
		}
		if a.Internal && ch != channel.OperatorLine {
			return fmt.Errorf("%w: internal archetype %q may only allow %s", ErrInvalidCatalog, a.Key, channel.OperatorLine)
		}
		if !a.Internal && ch == channel.OperatorLine {
			return fmt.Errorf("%w: only internal archetypes may allow %s", ErrInvalidCatalog, channel.OperatorLine)
		}
	}
	if _, ok := a.LocalizedText(a.DefaultLanguage); !ok && strings.TrimSpace(a.DefaultInstructionText) == "" {
		return fmt.Errorf("%w: archetype %q has no default-language or default instruction text", ErrInvalidCatalog, a.Key)
	}
	if strings.TrimSpace(a.Defaults.DisplayName) == "" {
		return fmt.Errorf("%w: archetype %q has no display name placeholder", ErrInvalidCatalog, a.Key)
	}
	return nil
}

func normalizeKeys(in map[string]string) map[string]string {
	if len(in) == 0 {
		return in
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[normalizeLang(k)] = v
	}
	return out
}

func dedupeNonEmpty(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
