// Package ticket routes unanswered questions to a support team and
// persists the resulting escalation tickets.
package ticket

import (
	"regexp"
	"sort"
	"strings"
)

// GeneralTeam receives every question no keyword claims.
const GeneralTeam = "General"

// DefaultKeywordMap maps team keys to the keywords that route to them.
// Keys are lowercase; display names are derived by title-casing.
var DefaultKeywordMap = map[string][]string{
	"customer support": {"account", "order", "website", "login", "purchase", "service", "product issue", "billing", "faq", "contact", "support"},
	"hr":               {"payroll", "leave", "benefits", "hiring", "policy", "pto", "salary", "employee"},
	"it":               {"laptop", "password", "software", "printer", "network", "access", "computer", "wifi", "system"},
	"product":          {"feature", "roadmap", "sprint", "project", "omega", "update", "deployment"},
	"legal":            {"contract", "compliance", "nda", "agreement", "terms", "policy"},
}

type teamRule struct {
	name     string
	keywords []string
	patterns []*regexp.Regexp
}

// Router suggests a support team from keywords in a question. Matching
// prefers whole words; a plain substring match is the fallback so
// compound words like "wifi-issues" still route. Immutable after
// construction, safe for concurrent use.
type Router struct {
	rules    []teamRule
	fallback string
}

// NewRouter builds a Router from a team keyword map. A nil map selects
// DefaultKeywordMap. Team iteration order is the sorted key order so
// suggestions are deterministic when keywords overlap.
func NewRouter(keywordMap map[string][]string) *Router {
	if keywordMap == nil {
		keywordMap = DefaultKeywordMap
	}

	keys := make([]string, 0, len(keywordMap))
	for key := range keywordMap {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	rules := make([]teamRule, 0, len(keys))
	for _, key := range keys {
		keywords := keywordMap[key]
		patterns := make([]*regexp.Regexp, len(keywords))
		for i, kw := range keywords {
			patterns[i] = regexp.MustCompile(`\b` + regexp.QuoteMeta(strings.ToLower(kw)) + `\b`)
		}
		rules = append(rules, teamRule{
			name:     displayName(key),
			keywords: lowerAll(keywords),
			patterns: patterns,
		})
	}

	return &Router{rules: rules, fallback: GeneralTeam}
}

// Suggest returns the display name of the team whose keyword first
// matches the question, or the General team. Whole-word matches across
// every team are consulted before any substring fallback, so a keyword
// embedded inside another word ("pto" in "laptop") can never outrank a
// whole-word hit for a later team.
func (r *Router) Suggest(question string) string {
	lower := strings.ToLower(question)

	for _, rule := range r.rules {
		for _, pattern := range rule.patterns {
			if pattern.MatchString(lower) {
				return rule.name
			}
		}
	}
	for _, rule := range r.rules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.name
			}
		}
	}
	return r.fallback
}

// Teams returns the display names of all routable teams, General last.
func (r *Router) Teams() []string {
	teams := make([]string, 0, len(r.rules)+1)
	for _, rule := range r.rules {
		teams = append(teams, rule.name)
	}
	return append(teams, r.fallback)
}

// displayName title-cases a team key: "customer support" becomes
// "Customer Support", "hr" becomes "Hr" unless fully upper-cased below.
func displayName(key string) string {
	words := strings.Fields(key)
	for i, w := range words {
		// Short keys like "hr" and "it" read as acronyms.
		if len(w) <= 2 {
			words[i] = strings.ToUpper(w)
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}
