package archetype

import (
	"strings"

	"golang.org/x/text/language"

	"github.com/wolfman30/persona-platform/internal/channel"
)

// Category selects the persuasion scaffold appended during composition.
type Category string

const (
	CategoryNone               Category = ""
	CategorySalesQualification Category = "sales_qualification"
	CategoryDebtUrgency        Category = "debt_urgency"
	CategoryTrustAuthority     Category = "trust_authority"
	CategoryRetailConversion   Category = "retail_conversion"
)

// Example is one worked interaction shown to the model.
type Example struct {
	Input  string `yaml:"input" json:"input"`
	Output string `yaml:"output" json:"output"`
}

// EscalationRule tells the assistant when to hand off and what to say.
// Message is keyed by language.
type EscalationRule struct {
	Condition string            `yaml:"condition" json:"condition"`
	Action    string            `yaml:"action" json:"action"`
	Message   map[string]string `yaml:"message" json:"message"`
}

// MessageFor returns the message in lang, falling back to fallbackLang.
func (r EscalationRule) MessageFor(lang, fallbackLang string) string {
	return pickLocalized(r.Message, lang, fallbackLang)
}

// ComplaintResponse is a canned reply for one class of complaint.
type ComplaintResponse struct {
	Type     string            `yaml:"type" json:"type"`
	Response map[string]string `yaml:"response" json:"response"`
}

// ResponseFor returns the response in lang, falling back to fallbackLang.
func (c ComplaintResponse) ResponseFor(lang, fallbackLang string) string {
	return pickLocalized(c.Response, lang, fallbackLang)
}

// Defaults are the canonical placeholder values used for any tenant field
// that is missing or empty.
type Defaults struct {
	DisplayName    string   `yaml:"display_name" json:"display_name"`
	Address        string   `yaml:"address" json:"address,omitempty"`
	Phone          string   `yaml:"phone" json:"phone,omitempty"`
	Domain         string   `yaml:"domain" json:"domain,omitempty"`
	OpeningHours   string   `yaml:"opening_hours" json:"opening_hours,omitempty"`
	Specialty      string   `yaml:"specialty" json:"specialty,omitempty"`
	Services       []string `yaml:"services" json:"services,omitempty"`
	Zones          []string `yaml:"zones" json:"zones,omitempty"`
	Currency       string   `yaml:"currency" json:"currency"`
	PaymentMethod  string   `yaml:"payment_method" json:"payment_method,omitempty"`
	PaymentDetails string   `yaml:"payment_details" json:"payment_details,omitempty"`
}

// Archetype is a reusable behavioural template for one class of business.
// Values returned by a Catalog are shared and must be treated as read-only.
type Archetype struct {
	Key         string   `yaml:"key" json:"key"`
	Voice       string   `yaml:"voice" json:"voice"`
	Sensitivity string   `yaml:"sensitivity" json:"sensitivity"`
	Category    Category `yaml:"category" json:"category,omitempty"`
	// Internal marks the platform's own operator persona.
	Internal        bool           `yaml:"internal" json:"internal,omitempty"`
	AllowedChannels []channel.Type `yaml:"allowed_channels" json:"allowed_channels"`
	DefaultLanguage string         `yaml:"default_language" json:"default_language"`

	DefaultInstructionText   string            `yaml:"default_instruction_text" json:"-"`
	LocalizedInstructionText map[string]string `yaml:"localized" json:"-"`
	// PlaceholderNames are demo business names used inside the text banks.
	PlaceholderNames []string `yaml:"placeholder_names" json:"-"`

	Defaults           Defaults             `yaml:"defaults" json:"defaults"`
	Examples           map[string][]Example `yaml:"examples" json:"-"`
	EscalationRules    []EscalationRule     `yaml:"escalation_rules" json:"-"`
	ComplaintResponses []ComplaintResponse  `yaml:"complaint_responses" json:"-"`
}

// Allows reports whether the archetype may serve requests on ch.
func (a *Archetype) Allows(ch channel.Type) bool {
	if a == nil {
		return false
	}
	for _, allowed := range a.AllowedChannels {
		if allowed == ch {
			return true
		}
	}
	return false
}

// LocalizedText returns the instruction text for lang when one is packaged.
func (a *Archetype) LocalizedText(lang string) (string, bool) {
	if a == nil || lang == "" {
		return "", false
	}
	text := a.LocalizedInstructionText[normalizeLang(lang)]
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	return text, true
}

// ExamplesFor returns worked examples in lang, or in the archetype's default
// language when lang has none.
func (a *Archetype) ExamplesFor(lang string) []Example {
	if a == nil {
		return nil
	}
	if examples := a.Examples[normalizeLang(lang)]; len(examples) > 0 {
		return examples
	}
	return a.Examples[a.DefaultLanguage]
}

// Summary is the read-only view exposed to operator tooling.
type Summary struct {
	Key   string `json:"key"`
	Voice string `json:"voice"`
}

func pickLocalized(values map[string]string, lang, fallbackLang string) string {
	if v := strings.TrimSpace(values[normalizeLang(lang)]); v != "" {
		return v
	}
	return strings.TrimSpace(values[normalizeLang(fallbackLang)])
}

// normalizeLang canonicalises a BCP 47 tag ("hi_latn" -> "hi-Latn",
// "FR" -> "fr"). Unparseable tags are kept lower-cased so they still match
// bank keys written the same way.
func normalizeLang(lang string) string {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return ""
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return strings.ToLower(strings.ReplaceAll(lang, "_", "-"))
	}
	return tag.String()
}

// NormalizeLanguage canonicalises a language tag the same way the catalog keys
// its text banks.
func NormalizeLanguage(lang string) string {
	return normalizeLang(lang)
}
