package persona

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// dialect is a colloquial register layered over a base written language.
type dialect struct {
	tag   string
	name  string
	rules []substitution
}

type substitution struct {
	pattern *regexp.Regexp
	replace string
}

func rule(from, to string) substitution {
	expr := `\b` + regexp.QuoteMeta(from)
	if last := from[len(from)-1]; last == '_' || last >= '0' && last <= '9' || last >= 'A' && last <= 'Z' || last >= 'a' && last <= 'z' {
		expr += `\b`
	}
	return substitution{pattern: regexp.MustCompile(expr), replace: to}
}

// Rules run in order; longer phrases come before their parts.
var dialects = map[string]dialect{
	"hi-Latn": {
		tag:  "hi-Latn",
		name: "Hinglish",
		rules: []substitution{
			rule("However,", "Lekin,"),
			rule("however,", "lekin,"),
			rule("Therefore,", "Isliye,"),
			rule("therefore,", "isliye,"),
			rule("Also,", "Aur haan,"),
			rule("so that", "taaki"),
			rule("because", "kyunki"),
			rule("Thank you", "Dhanyavaad"),
			rule("Of course", "Bilkul"),
			rule("Okay", "Theek hai"),
		},
	},
}

var languageNames = map[string]string{
	"en": "English",
	"fr": "French",
	"es": "Spanish",
	"hi": "Hindi",
}

func lookupDialect(lang string) (dialect, bool) {
	d, ok := dialects[lang]
	return d, ok
}

// apply rewrites connectives and appends the code-mixing note. businessLang
// is the archetype's primary language. Occurrences of keep pass through
// unchanged.
func (d dialect) apply(text, businessLang string, keep ...string) string {
	text, restore := mask(text, keep)
	for _, r := range d.rules {
		text = r.pattern.ReplaceAllLiteralString(text, r.replace)
	}
	text = restore.Replace(text)
	mix := languageNames[businessLang]
	if mix == "" {
		mix = businessLang
	}
	note := fmt.Sprintf("Register: speak conversational %s in Latin script. Mix in %s words for names, prices, services and technical terms whenever that sounds more natural to the caller.", d.name, mix)
	return strings.TrimRight(text, "\n") + "\n\n" + note
}

// maskBase starts a private-use range that content banks never contain.
const maskBase = 0xF0000

// mask swaps each value in keep for a single private-use rune, longest value
// first, and returns the replacer that puts them back.
func mask(text string, keep []string) (string, *strings.Replacer) {
	values := make([]string, 0, len(keep))
	for _, v := range keep {
		if strings.TrimSpace(v) != "" {
			values = append(values, v)
		}
	}
	sort.SliceStable(values, func(i, j int) bool { return len(values[i]) > len(values[j]) })

	var pairs []string
	for i, v := range values {
		if !strings.Contains(text, v) {
			continue
		}
		marker := string(rune(maskBase + i))
		text = strings.ReplaceAll(text, v, marker)
		pairs = append(pairs, marker, v)
	}
	return text, strings.NewReplacer(pairs...)
}
