// Package testhelpers provides additional data builders for testing
package testhelpers

import (
	"time"

	"github.com/alertdeck/alertdeck/internal/alerts"
	"github.com/alertdeck/alertdeck/internal/database"
)

// ========================================
// Alert Builder
// ========================================

// AlertBuilder builds normalized alerts for testing
type AlertBuilder struct {
	alert alerts.Alert
}

// NewAlertBuilder creates a builder with sane defaults
func NewAlertBuilder() *AlertBuilder {
	return &AlertBuilder{
		alert: alerts.Alert{
			ID:          "test-alert-id",
			Source:      database.SourceTypeAlertmanager,
			SourceID:    "source-uuid",
			SourceLabel: "prod",
			Name:        "HighErrorRate",
			Severity:    alerts.SeverityWarning,
			Message:     "error rate above threshold",
			Instance:    "api-1:9090",
			Timestamp:   time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC),
		},
	}
}

// WithID sets the alert identity
func (b *AlertBuilder) WithID(id string) *AlertBuilder {
	b.alert.ID = id
	return b
}

// WithSource sets the source type and instance UUID
func (b *AlertBuilder) WithSource(sourceType database.SourceTypeName, sourceID string) *AlertBuilder {
	b.alert.Source = sourceType
	b.alert.SourceID = sourceID
	return b
}

// WithName sets the alert name
func (b *AlertBuilder) WithName(name string) *AlertBuilder {
	b.alert.Name = name
	return b
}

// WithSeverity sets the severity
func (b *AlertBuilder) WithSeverity(severity alerts.Severity) *AlertBuilder {
	b.alert.Severity = severity
	return b
}

// WithInstance sets the instance
func (b *AlertBuilder) WithInstance(instance string) *AlertBuilder {
	b.alert.Instance = instance
	return b
}

// WithService sets the service
func (b *AlertBuilder) WithService(service string) *AlertBuilder {
	b.alert.Service = service
	return b
}

// WithEnvironment sets the environment
func (b *AlertBuilder) WithEnvironment(env string) *AlertBuilder {
	b.alert.Environment = env
	return b
}

// WithFingerprint sets the upstream dedup key
func (b *AlertBuilder) WithFingerprint(fp string) *AlertBuilder {
	b.alert.Fingerprint = fp
	return b
}

// WithTimestamp sets the event time
func (b *AlertBuilder) WithTimestamp(ts time.Time) *AlertBuilder {
	b.alert.Timestamp = ts
	return b
}

// Build returns the alert
func (b *AlertBuilder) Build() alerts.Alert {
	return b.alert
}

// ========================================
// Source Config Builder
// ========================================

// SourceBuilder builds source configurations for testing
type SourceBuilder struct {
	src database.SourceConfig
}

// NewSourceBuilder creates a builder with sane defaults
func NewSourceBuilder() *SourceBuilder {
	return &SourceBuilder{
		src: database.SourceConfig{
			UUID:    "source-uuid",
			Type:    database.SourceTypeAlertmanager,
			Name:    "prod",
			URL:     "http://alertmanager.local:9093",
			Enabled: true,
		},
	}
}

// WithUUID sets the instance UUID
func (b *SourceBuilder) WithUUID(id string) *SourceBuilder {
	b.src.UUID = id
	return b
}

// WithType sets the source type
func (b *SourceBuilder) WithType(t database.SourceTypeName) *SourceBuilder {
	b.src.Type = t
	return b
}

// WithName sets the label
func (b *SourceBuilder) WithName(name string) *SourceBuilder {
	b.src.Name = name
	return b
}

// WithURL sets the base URL
func (b *SourceBuilder) WithURL(url string) *SourceBuilder {
	b.src.URL = url
	return b
}

// WithAuth sets auth mode and credentials
func (b *SourceBuilder) WithAuth(mode, username, password, token string) *SourceBuilder {
	b.src.AuthMode = mode
	b.src.Username = username
	b.src.Password = password
	b.src.Token = token
	return b
}

// WithMode sets the fetch mode (Uptime Kuma)
func (b *SourceBuilder) WithMode(mode string) *SourceBuilder {
	b.src.Mode = mode
	return b
}

// WithSlug sets the status page slug (Uptime Kuma)
func (b *SourceBuilder) WithSlug(slug string) *SourceBuilder {
	b.src.Slug = slug
	return b
}

// Disabled marks the source as disabled
func (b *SourceBuilder) Disabled() *SourceBuilder {
	b.src.Enabled = false
	return b
}

// Build returns the source configuration
func (b *SourceBuilder) Build() database.SourceConfig {
	return b.src
}

// ========================================
// Silence Rule Builder
// ========================================

// SilenceBuilder builds silence rules for testing
type SilenceBuilder struct {
	rule database.SilenceRule
}

// NewSilenceBuilder creates a builder for a rule active around now
func NewSilenceBuilder() *SilenceBuilder {
	now := time.Now().UTC()
	return &SilenceBuilder{
		rule: database.SilenceRule{
			UUID:     "silence-uuid",
			Name:     "test silence",
			StartsAt: now.Add(-time.Hour),
			EndsAt:   now.Add(time.Hour),
			Enabled:  true,
		},
	}
}

// WithWindow sets the active window
func (b *SilenceBuilder) WithWindow(start, end time.Time) *SilenceBuilder {
	b.rule.StartsAt = start
	b.rule.EndsAt = end
	return b
}

// WithSourceType restricts the rule to one source type
func (b *SilenceBuilder) WithSourceType(t string) *SilenceBuilder {
	b.rule.SourceType = t
	return b
}

// WithSeverity restricts the rule to one severity
func (b *SilenceBuilder) WithSeverity(severity string) *SilenceBuilder {
	b.rule.Severity = severity
	return b
}

// WithServicePattern sets the service glob
func (b *SilenceBuilder) WithServicePattern(pattern string) *SilenceBuilder {
	b.rule.ServicePattern = pattern
	return b
}

// WithAlertNamePattern sets the alert name glob
func (b *SilenceBuilder) WithAlertNamePattern(pattern string) *SilenceBuilder {
	b.rule.AlertNamePattern = pattern
	return b
}

// WithInstancePattern sets the instance glob
func (b *SilenceBuilder) WithInstancePattern(pattern string) *SilenceBuilder {
	b.rule.InstancePattern = pattern
	return b
}

// Disabled marks the rule as disabled
func (b *SilenceBuilder) Disabled() *SilenceBuilder {
	b.rule.Enabled = false
	return b
}

// Build returns the silence rule
func (b *SilenceBuilder) Build() database.SilenceRule {
	return b.rule
}
