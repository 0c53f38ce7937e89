// Package channel defines the closed set of interaction surfaces a persona
// request can arrive through.
package channel

import "strings"

// Type identifies the surface a request arrived through.
type Type string

const (
	Unknown      Type = ""
	WidgetB2B    Type = "WIDGET_B2B"
	WidgetB2C    Type = "WIDGET_B2C"
	WidgetEcom   Type = "WIDGET_ECOM"
	OperatorLine Type = "OPERATOR_LINE"
)

// MostRestrictive is the known channel whose defaults carry the least business
// capability. Unknown channels are treated as this one.
const MostRestrictive = WidgetB2C

var known = []Type{WidgetB2B, WidgetB2C, WidgetEcom, OperatorLine}

// All returns every known channel type in a stable order.
func All() []Type {
	out := make([]Type, len(known))
	copy(out, known)
	return out
}

// Parse maps a raw channel string onto a known Type. Matching ignores case,
// surrounding whitespace and '-' vs '_' separators. Anything else is Unknown.
func Parse(raw string) Type {
	normalized := strings.ToUpper(strings.TrimSpace(raw))
	normalized = strings.ReplaceAll(normalized, "-", "_")
	for _, t := range known {
		if string(t) == normalized {
			return t
		}
	}
	return Unknown
}

// Known reports whether t is one of the closed set of channel types.
func (t Type) Known() bool {
	for _, k := range known {
		if k == t {
			return true
		}
	}
	return false
}

// ExternallyFacing is true for every known channel except the platform's own
// operator line.
func (t Type) ExternallyFacing() bool {
	return t != OperatorLine
}

func (t Type) String() string {
	if t == Unknown {
		return "UNKNOWN"
	}
	return string(t)
}
