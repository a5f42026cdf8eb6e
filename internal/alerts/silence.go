package alerts

import (
	"regexp"
	"strings"
	"time"

	"github.com/alertdeck/alertdeck/internal/database"
)

// ApplySilences filters out alerts suppressed by an active silence rule.
// A rule matches an alert when every one of its set criteria matches;
// an alert is suppressed when any active rule matches it.
func ApplySilences(list []Alert, rules []database.SilenceRule, now time.Time) []Alert {
	active := make([]database.SilenceRule, 0, len(rules))
	for _, r := range rules {
		if r.ActiveAt(now) {
			active = append(active, r)
		}
	}
	if len(active) == 0 {
		return list
	}

	kept := make([]Alert, 0, len(list))
	for _, a := range list {
		if !Silenced(a, active) {
			kept = append(kept, a)
		}
	}
	return kept
}

// Silenced reports whether any of the given rules matches the alert.
// Callers are expected to pre-filter to active rules.
func Silenced(a Alert, rules []database.SilenceRule) bool {
	for i := range rules {
		if ruleMatches(a, &rules[i]) {
			return true
		}
	}
	return false
}

func ruleMatches(a Alert, r *database.SilenceRule) bool {
	if !r.MatchesAnySourceType() && !strings.EqualFold(r.SourceType, string(a.Source)) {
		return false
	}
	if r.SourceID != "" && r.SourceID != a.SourceID {
		return false
	}
	if r.SourceLabel != "" && !strings.EqualFold(r.SourceLabel, a.SourceLabel) {
		return false
	}
	if !r.MatchesAnySeverity() && !strings.EqualFold(r.Severity, string(a.Severity)) {
		return false
	}
	if !GlobMatch(r.ServicePattern, a.Service) {
		return false
	}
	if !GlobMatch(r.EnvironmentPattern, a.Environment) {
		return false
	}
	if !GlobMatch(r.AlertNamePattern, a.Name) {
		return false
	}
	if !GlobMatch(r.InstancePattern, a.Instance) {
		return false
	}
	return true
}

// GlobMatch matches subject against a wildcard pattern: '*' matches any
// sequence, '?' any single character; full-string anchored and
// case-insensitive. An empty pattern matches everything, including an empty
// subject. A non-empty pattern never matches an empty subject. A pattern
// that cannot be compiled never matches.
func GlobMatch(pattern, subject string) bool {
	if pattern == "" {
		return true
	}
	if subject == "" {
		return false
	}

	re, err := compileGlob(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(subject)
}

func compileGlob(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("(?i)^")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}
