package persona

import (
	"fmt"
	"strings"

	"github.com/wolfman30/persona-platform/internal/archetype"
)

// passInput is everything a composition pass may read. Passes never modify it.
type passInput struct {
	identity         Identity
	archetype        *archetype.Archetype
	placeholderNames []string
}

// pass is one step of the composition pipeline.
type pass struct {
	name  string
	apply func(in passInput, text string) (string, error)
}

// defaultPasses run strictly in this order, each on the previous output.
var defaultPasses = []pass{
	{name: "base_text", apply: selectBaseText},
	{name: "identity_name", apply: normalizeIdentityName},
	{name: "placeholders", apply: substitutePlaceholders},
	{name: "dialect", apply: applyDialect},
	{name: "framework", apply: injectFramework},
	{name: "behavioural_context", apply: injectBehaviouralContext},
}

// Placeholder tokens recognised in content banks.
const (
	TokenBusinessName   = "{business_name}"
	TokenAddress        = "{address}"
	TokenPhone          = "{phone}"
	TokenOpeningHours   = "{opening_hours}"
	TokenServices       = "{services}"
	TokenZones          = "{zones}"
	TokenPaymentDetails = "{payment_details}"
	TokenCurrency       = "{currency}"
	TokenDomain         = "{domain}"
	TokenSpecialty      = "{specialty}"
)

// Tokens lists every recognised placeholder token.
var Tokens = []string{
	TokenBusinessName, TokenAddress, TokenPhone, TokenOpeningHours, TokenServices,
	TokenZones, TokenPaymentDetails, TokenCurrency, TokenDomain, TokenSpecialty,
}

const listSeparator = ", "

// selectBaseText picks the localized text: requested language, then its
// primary subtag, then the archetype's default language, then its default
// text. Colloquial registers skip the primary subtag since their script
// differs from it.
func selectBaseText(in passInput, _ string) (string, error) {
	a := in.archetype
	for _, lang := range baseTextCandidates(in.identity.ResolvedLanguage, a.DefaultLanguage) {
		if text, ok := a.LocalizedText(lang); ok {
			return text, nil
		}
	}
	if strings.TrimSpace(a.DefaultInstructionText) != "" {
		return a.DefaultInstructionText, nil
	}
	return "", fmt.Errorf("%w: archetype %q language %q", ErrNoInstructionText, a.Key, in.identity.ResolvedLanguage)
}

func baseTextCandidates(lang, defaultLang string) []string {
	candidates := []string{lang}
	if _, ok := lookupDialect(lang); ok {
		return append(candidates, defaultLang)
	}
	if i := strings.IndexByte(lang, '-'); i > 0 {
		candidates = append(candidates, lang[:i])
	}
	return append(candidates, defaultLang)
}

// normalizeIdentityName swaps demo business names for the tenant's display
// name. Internal personas and texts already naming the tenant are left alone.
func normalizeIdentityName(in passInput, text string) (string, error) {
	name := in.identity.DisplayName
	if in.identity.Internal || name == "" || strings.Contains(text, name) {
		return text, nil
	}
	for _, placeholder := range in.placeholderNames {
		if placeholder == name {
			continue
		}
		text = strings.ReplaceAll(text, placeholder, name)
	}
	return text, nil
}

// substitutePlaceholders replaces every recognised token; missing values
// become empty strings.
func substitutePlaceholders(in passInput, text string) (string, error) {
	id := in.identity
	r := strings.NewReplacer(
		TokenBusinessName, id.DisplayName,
		TokenAddress, id.Address,
		TokenPhone, id.Phone,
		TokenOpeningHours, id.OpeningHours,
		TokenServices, strings.Join(id.ServicesOffered, listSeparator),
		TokenZones, strings.Join(id.ServiceZones, listSeparator),
		TokenPaymentDetails, id.PaymentDetails,
		TokenCurrency, id.Currency,
		TokenDomain, id.Domain,
		TokenSpecialty, id.Specialty,
	)
	return r.Replace(text), nil
}

// applyDialect rewrites connectives for colloquial registers. Tenant values
// already substituted into the text are left untouched.
func applyDialect(in passInput, text string) (string, error) {
	d, ok := lookupDialect(in.identity.ResolvedLanguage)
	if !ok {
		return text, nil
	}
	return d.apply(text, in.archetype.DefaultLanguage, identityValues(in.identity)...), nil
}

// identityValues lists the tenant values the placeholder pass may insert.
func identityValues(id Identity) []string {
	values := []string{
		id.DisplayName, id.Address, id.Phone, id.OpeningHours, id.PaymentDetails,
		id.Currency, id.Domain, id.Specialty,
		strings.Join(id.ServicesOffered, listSeparator),
		strings.Join(id.ServiceZones, listSeparator),
	}
	values = append(values, id.ServicesOffered...)
	return append(values, id.ServiceZones...)
}

// injectFramework appends the persuasion scaffold for the archetype category.
func injectFramework(in passInput, text string) (string, error) {
	scaffold := frameworkFor(in.archetype.Category)
	if scaffold == "" {
		return text, nil
	}
	return appendSection(text, scaffold), nil
}

const (
	maxComplaintResponses = 3
	maxEscalationRules    = 3
)

const financialCommitmentRule = "Never promise refunds, discounts, credits, payment plans or any other financial commitment yourself. Escalate every such request through the human-in-the-loop handoff action and tell the customer a person will confirm."

// injectBehaviouralContext appends worked examples, complaint guidance and
// escalation rules, in that order. Tokens inside the appended content are
// substituted like the base text.
func injectBehaviouralContext(in passInput, text string) (string, error) {
	a := in.archetype
	lang := in.identity.ResolvedLanguage
	fallback := a.DefaultLanguage

	if examples := a.ExamplesFor(lang); len(examples) > 0 {
		var b strings.Builder
		b.WriteString("Example interactions:")
		for _, ex := range examples {
			fmt.Fprintf(&b, "\nCustomer: %s\nYou: %s", strings.TrimSpace(ex.Input), strings.TrimSpace(ex.Output))
		}
		text = appendContext(in, text, b.String())
	}

	var complaints []string
	entries := a.ComplaintResponses
	if len(entries) > maxComplaintResponses {
		entries = entries[:maxComplaintResponses]
	}
	for _, c := range entries {
		if resp := c.ResponseFor(lang, fallback); resp != "" {
			complaints = append(complaints, fmt.Sprintf("- %s: %s", c.Type, resp))
		}
	}
	if len(complaints) > 0 {
		text = appendContext(in, text, "Complaint handling:\n"+strings.Join(complaints, "\n")+"\n"+financialCommitmentRule)
	}

	var rules []string
	for _, r := range a.EscalationRules {
		if len(rules) == maxEscalationRules {
			break
		}
		line := fmt.Sprintf("- When %s: %s.", r.Condition, r.Action)
		if msg := r.MessageFor(lang, fallback); msg != "" {
			line += fmt.Sprintf(` Say: "%s"`, msg)
		}
		rules = append(rules, line)
	}
	if len(rules) > 0 {
		text = appendContext(in, text, "Escalation rules:\n"+strings.Join(rules, "\n"))
	}
	return text, nil
}

func appendContext(in passInput, text, section string) string {
	section, _ = substitutePlaceholders(in, section)
	return appendSection(text, section)
}

func appendSection(text, section string) string {
	return strings.TrimRight(text, "\n") + "\n\n" + section
}

// scrubTokens removes recognised tokens from a value until none remain, so
// tenant data cannot smuggle tokens into the output.
func scrubTokens(v string) string {
	for {
		next := v
		for _, tok := range Tokens {
			next = strings.ReplaceAll(next, tok, "")
		}
		if next == v {
			return v
		}
		v = next
	}
}
