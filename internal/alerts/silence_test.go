package alerts

import (
	"testing"
	"time"

	"github.com/alertdeck/alertdeck/internal/database"
)

func TestGlobMatch(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		subject string
		want    bool
	}{
		{"empty pattern matches anything", "", "whatever", true},
		{"empty pattern matches empty subject", "", "", true},
		{"non-empty pattern never matches empty subject", "*", "", false},
		{"literal match", "api-gateway", "api-gateway", true},
		{"literal mismatch", "api-gateway", "gateway-api", false},
		{"case insensitive", "API-Gateway", "api-gateway", true},
		{"prefix wildcard", "api-*", "api-gateway", true},
		{"prefix wildcard rejects other order", "api-*", "gateway-api", false},
		{"suffix wildcard", "*-gateway", "api-gateway", true},
		{"middle wildcard", "api-*-prod", "api-gateway-prod", true},
		{"question mark single char", "api-?", "api-1", true},
		{"question mark exactly one char", "api-?", "api-12", false},
		{"star matches empty sequence", "api*", "api", true},
		{"regex metachars are literal", "api.gateway", "apixgateway", false},
		{"regex metachars match literally", "api.gateway", "api.gateway", true},
		{"parens are literal", "svc(1)", "svc(1)", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GlobMatch(tt.pattern, tt.subject); got != tt.want {
				t.Errorf("GlobMatch(%q, %q) = %v, want %v", tt.pattern, tt.subject, got, tt.want)
			}
		})
	}
}

func activeRule(mod func(*database.SilenceRule)) database.SilenceRule {
	r := database.SilenceRule{
		Name:     "rule",
		StartsAt: time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
		EndsAt:   time.Date(2026, 1, 16, 0, 0, 0, 0, time.UTC),
		Enabled:  true,
	}
	if mod != nil {
		mod(&r)
	}
	return r
}

func TestSilenced_CriteriaAreConjunctive(t *testing.T) {
	alert := mkAlert("a1", time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC), func(a *Alert) {
		a.Service = "checkout"
		a.Environment = "prod"
		a.SourceLabel = "main"
	})

	tests := []struct {
		name string
		mod  func(*database.SilenceRule)
		want bool
	}{
		{"no criteria matches everything", nil, true},
		{"matching source type", func(r *database.SilenceRule) { r.SourceType = "alertmanager" }, true},
		{"any source type", func(r *database.SilenceRule) { r.SourceType = "any" }, true},
		{"wrong source type", func(r *database.SilenceRule) { r.SourceType = "zabbix" }, false},
		{"matching source id", func(r *database.SilenceRule) { r.SourceID = "src-1" }, true},
		{"wrong source id", func(r *database.SilenceRule) { r.SourceID = "src-2" }, false},
		{"matching label case-insensitive", func(r *database.SilenceRule) { r.SourceLabel = "MAIN" }, true},
		{"matching severity", func(r *database.SilenceRule) { r.Severity = "warning" }, true},
		{"any severity", func(r *database.SilenceRule) { r.Severity = "any" }, true},
		{"wrong severity", func(r *database.SilenceRule) { r.Severity = "critical" }, false},
		{"matching service glob", func(r *database.SilenceRule) { r.ServicePattern = "check*" }, true},
		{"wrong service glob", func(r *database.SilenceRule) { r.ServicePattern = "billing*" }, false},
		{"matching name glob", func(r *database.SilenceRule) { r.AlertNamePattern = "High*" }, true},
		{"matching instance glob", func(r *database.SilenceRule) { r.InstancePattern = "api-?" }, true},
		{
			"all criteria must match",
			func(r *database.SilenceRule) {
				r.SourceType = "alertmanager"
				r.Severity = "warning"
				r.ServicePattern = "checkout"
				r.EnvironmentPattern = "staging" // mismatch
			},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := activeRule(tt.mod)
			if got := Silenced(alert, []database.SilenceRule{rule}); got != tt.want {
				t.Errorf("Silenced() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestApplySilences_FiltersOnlyActiveRules(t *testing.T) {
	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	alert := mkAlert("a1", now)

	tests := []struct {
		name     string
		mod      func(*database.SilenceRule)
		wantKept int
	}{
		{"active rule suppresses", nil, 0},
		{"disabled rule is ignored", func(r *database.SilenceRule) { r.Enabled = false }, 1},
		{
			"future rule is ignored",
			func(r *database.SilenceRule) {
				r.StartsAt = now.Add(time.Hour)
				r.EndsAt = now.Add(2 * time.Hour)
			},
			1,
		},
		{
			"expired rule is ignored",
			func(r *database.SilenceRule) {
				r.StartsAt = now.Add(-2 * time.Hour)
				r.EndsAt = now.Add(-time.Hour)
			},
			1,
		},
		{
			"boundary instants are active",
			func(r *database.SilenceRule) {
				r.StartsAt = now
				r.EndsAt = now
			},
			0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rules := []database.SilenceRule{activeRule(tt.mod)}
			kept := ApplySilences([]Alert{alert}, rules, now)
			if len(kept) != tt.wantKept {
				t.Errorf("kept %d alerts, want %d", len(kept), tt.wantKept)
			}
		})
	}
}

func TestApplySilences_AnyRuleSuppresses(t *testing.T) {
	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	alerts := []Alert{
		mkAlert("a1", now, func(a *Alert) { a.Service = "checkout" }),
		mkAlert("a2", now, func(a *Alert) { a.Service = "billing" }),
	}

	rules := []database.SilenceRule{
		activeRule(func(r *database.SilenceRule) { r.ServicePattern = "nothing-matches" }),
		activeRule(func(r *database.SilenceRule) { r.ServicePattern = "checkout" }),
	}

	kept := ApplySilences(alerts, rules, now)
	if len(kept) != 1 || kept[0].ID != "a2" {
		t.Errorf("expected only a2 to survive, got %v", kept)
	}
}

func TestApplySilences_NoRulesReturnsInput(t *testing.T) {
	now := time.Now().UTC()
	alerts := []Alert{mkAlert("a1", now)}
	kept := ApplySilences(alerts, nil, now)
	if len(kept) != 1 {
		t.Errorf("expected input preserved with no rules, got %d alerts", len(kept))
	}
}
