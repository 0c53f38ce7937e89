package persona

import (
	"errors"
	"fmt"

	"github.com/wolfman30/persona-platform/internal/archetype"
	"github.com/wolfman30/persona-platform/internal/channel"
)

// ErrInvalidSafetyTable marks a safety table that would allow cross-channel
// leakage or points at missing archetypes.
var ErrInvalidSafetyTable = errors.New("persona: invalid safety table")

// DefaultSafetyTable is the shipped channel -> safe archetype table.
var DefaultSafetyTable = map[channel.Type]string{
	channel.WidgetB2B:    "b2b_consultant",
	channel.WidgetB2C:    "generic_receptionist",
	channel.WidgetEcom:   "ecommerce_assistant",
	channel.OperatorLine: "platform_operator",
}

// SafetyMap names the one archetype that may be used as a default on each
// channel. Every fallback decision goes through it.
type SafetyMap struct {
	table map[channel.Type]string
}

// NewSafetyMap validates table against catalog: every known channel needs an
// entry, each entry must exist and allow its channel, and only the operator
// line may map to an internal archetype.
func NewSafetyMap(catalog *archetype.Catalog, table map[channel.Type]string) (*SafetyMap, error) {
	if catalog == nil {
		return nil, fmt.Errorf("%w: catalog required", ErrInvalidSafetyTable)
	}
	m := &SafetyMap{table: make(map[channel.Type]string, len(table))}
	for ch, key := range table {
		if !ch.Known() {
			return nil, fmt.Errorf("%w: unknown channel %q", ErrInvalidSafetyTable, ch)
		}
		m.table[ch] = key
	}
	for _, ch := range channel.All() {
		key, ok := m.table[ch]
		if !ok {
			return nil, fmt.Errorf("%w: no entry for %s", ErrInvalidSafetyTable, ch)
		}
		a, ok := catalog.Get(key)
		if !ok {
			return nil, fmt.Errorf("%w: %s maps to unknown archetype %q", ErrInvalidSafetyTable, ch, key)
		}
		if !a.Allows(ch) {
			return nil, fmt.Errorf("%w: archetype %q does not allow %s", ErrInvalidSafetyTable, key, ch)
		}
		if a.Internal && ch.ExternallyFacing() {
			return nil, fmt.Errorf("%w: %s maps to internal archetype %q", ErrInvalidSafetyTable, ch, key)
		}
	}
	return m, nil
}

// Effective maps ch onto the channel whose rules apply. Unknown channels get
// the most restrictive one.
func (m *SafetyMap) Effective(ch channel.Type) channel.Type {
	if ch.Known() {
		return ch
	}
	return channel.MostRestrictive
}

// SafeDefault returns the safe archetype key for ch.
func (m *SafetyMap) SafeDefault(ch channel.Type) string {
	return m.table[m.Effective(ch)]
}
