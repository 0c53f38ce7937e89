// Package persona resolves a tenant and channel to a behavioural identity and
// composes the instruction text handed to the voice runtime.
package persona

import (
	"errors"
	"fmt"
	"strings"

	"github.com/wolfman30/persona-platform/internal/archetype"
)

var (
	// ErrNoInstructionText means an archetype has no usable text at any
	// fallback level. It is a packaging defect, not a runtime condition.
	ErrNoInstructionText = errors.New("persona: no instruction text")
	// ErrUnknownArchetype means an Identity names an archetype the catalog
	// does not hold.
	ErrUnknownArchetype = errors.New("persona: unknown archetype")
)

// Metadata is passed through to downstream systems untouched.
type Metadata struct {
	ArchetypeKey     string `json:"archetype"`
	Currency         string `json:"currency"`
	Language         string `json:"language"`
	Sensitivity      string `json:"sensitivity"`
	KnowledgeBaseRef string `json:"knowledgeBaseRef,omitempty"`
}

// Map renders the metadata as a plain object for session configs.
func (m Metadata) Map() map[string]any {
	out := map[string]any{
		"archetype":   m.ArchetypeKey,
		"currency":    m.Currency,
		"language":    m.Language,
		"sensitivity": m.Sensitivity,
	}
	if m.KnowledgeBaseRef != "" {
		out["knowledgeBaseRef"] = m.KnowledgeBaseRef
	}
	return out
}

// ComposedPersona is the final voice, instruction text and metadata bundle.
type ComposedPersona struct {
	Voice           string   `json:"voice"`
	InstructionText string   `json:"instructionText"`
	Metadata        Metadata `json:"metadata"`
}

// PromptComposer runs the ordered composition passes over an Identity.
type PromptComposer struct {
	catalog *archetype.Catalog
	passes  []pass
}

// NewPromptComposer builds a composer over catalog.
func NewPromptComposer(catalog *archetype.Catalog) (*PromptComposer, error) {
	if catalog == nil {
		return nil, errors.New("persona: catalog required")
	}
	return &PromptComposer{catalog: catalog, passes: defaultPasses}, nil
}

// Compose produces the persona for identity. The same identity always yields
// byte-identical instruction text.
func (c *PromptComposer) Compose(identity Identity) (ComposedPersona, error) {
	a, ok := c.catalog.Get(identity.ArchetypeKey)
	if !ok {
		return ComposedPersona{}, fmt.Errorf("%w: %q", ErrUnknownArchetype, identity.ArchetypeKey)
	}
	identity = scrubIdentity(identity)
	identity.ResolvedLanguage = archetype.NormalizeLanguage(identity.ResolvedLanguage)
	if identity.ResolvedLanguage == "" {
		identity.ResolvedLanguage = a.DefaultLanguage
	}

	in := passInput{
		identity:         identity,
		archetype:        a,
		placeholderNames: c.catalog.PlaceholderNamesFor(a),
	}
	var text string
	for _, p := range c.passes {
		out, err := p.apply(in, text)
		if err != nil {
			return ComposedPersona{}, fmt.Errorf("persona: %s pass: %w", p.name, err)
		}
		text = out
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return ComposedPersona{}, fmt.Errorf("%w: archetype %q produced empty text", ErrNoInstructionText, a.Key)
	}

	return ComposedPersona{
		Voice:           a.Voice,
		InstructionText: text,
		Metadata: Metadata{
			ArchetypeKey:     a.Key,
			Currency:         identity.Currency,
			Language:         identity.ResolvedLanguage,
			Sensitivity:      a.Sensitivity,
			KnowledgeBaseRef: identity.KnowledgeBaseRef,
		},
	}, nil
}

func scrubIdentity(id Identity) Identity {
	id.DisplayName = scrubTokens(id.DisplayName)
	id.Address = scrubTokens(id.Address)
	id.Phone = scrubTokens(id.Phone)
	id.Domain = scrubTokens(id.Domain)
	id.OpeningHours = scrubTokens(id.OpeningHours)
	id.Specialty = scrubTokens(id.Specialty)
	id.Currency = scrubTokens(id.Currency)
	id.PaymentDetails = scrubTokens(id.PaymentDetails)
	id.ServicesOffered = scrubList(id.ServicesOffered)
	id.ServiceZones = scrubList(id.ServiceZones)
	return id
}

func scrubList(values []string) []string {
	if len(values) == 0 {
		return values
	}
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = scrubTokens(v)
	}
	return out
}
