package database

import (
	"strings"
	"time"
)

// SourceTypeName identifies a kind of monitoring backend
type SourceTypeName string

const (
	SourceTypeAlertmanager SourceTypeName = "alertmanager"
	SourceTypeZabbix       SourceTypeName = "zabbix"
	SourceTypeUptimeKuma   SourceTypeName = "uptime-kuma"
)

// DisplayName returns the human-friendly name for a source type
func (t SourceTypeName) DisplayName() string {
	switch t {
	case SourceTypeAlertmanager:
		return "Alertmanager"
	case SourceTypeZabbix:
		return "Zabbix"
	case SourceTypeUptimeKuma:
		return "Uptime Kuma"
	default:
		return string(t)
	}
}

// ValidSourceTypes returns all supported source types in canonical order.
// The orchestrator relies on this order for stable error reporting.
func ValidSourceTypes() []SourceTypeName {
	return []SourceTypeName{SourceTypeAlertmanager, SourceTypeZabbix, SourceTypeUptimeKuma}
}

// SourceConfig represents a configured instance of a monitoring backend
type SourceConfig struct {
	ID   uint           `gorm:"primaryKey" json:"id"`
	UUID string         `gorm:"uniqueIndex;size:36;not null" json:"uuid"`
	Type SourceTypeName `gorm:"type:varchar(32);not null;index" json:"type"`
	Name string         `gorm:"size:128;not null" json:"name"` // User-friendly label, e.g. "prod"
	URL  string         `gorm:"type:text;not null" json:"url"`

	// AuthMode depends on the source type:
	//   alertmanager: "none", "basic", "bearer"
	//   zabbix:       ignored (static API token)
	//   uptime-kuma:  "bearer-first" or "basic-first" (metrics mode key order)
	AuthMode string `gorm:"size:32" json:"auth_mode"`
	Username string `gorm:"size:128" json:"username"`
	Password string `gorm:"type:text" json:"-"`
	Token    string `gorm:"type:text" json:"-"` // Bearer token, Zabbix API token or Uptime Kuma API key

	// Uptime Kuma specifics
	Mode string `gorm:"size:32" json:"mode,omitempty"` // "status-page" or "metrics"
	Slug string `gorm:"size:128" json:"slug,omitempty"`

	Enabled   bool      `gorm:"default:true" json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (SourceConfig) TableName() string {
	return "source_configs"
}

// SourceHealth tracks per-source fetch outcomes and backoff state.
// One row per (type, source UUID), created lazily on the first fetch
// attempt and never deleted.
type SourceHealth struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	SourceType       SourceTypeName `gorm:"type:varchar(32);not null;uniqueIndex:idx_source_health_key" json:"source_type"`
	SourceID         string         `gorm:"size:36;not null;uniqueIndex:idx_source_health_key" json:"source_id"`
	LastSuccessAt    *time.Time     `json:"last_success_at,omitempty"`
	LastErrorAt      *time.Time     `json:"last_error_at,omitempty"`
	LastErrorMessage string         `gorm:"type:text" json:"last_error_message,omitempty"`
	FailCount        int            `gorm:"default:0" json:"fail_count"`
	NextRetryAt      *time.Time     `json:"next_retry_at,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

func (SourceHealth) TableName() string {
	return "source_health"
}

// Stale reports whether the source should be flagged as stale: it has never
// succeeded but already failed, or its last success is older than
// max(5m, 3x the refresh interval).
func (h *SourceHealth) Stale(now time.Time, refreshInterval time.Duration) bool {
	if h.LastSuccessAt == nil {
		return h.FailCount > 0
	}
	threshold := 5 * time.Minute
	if 3*refreshInterval > threshold {
		threshold = 3 * refreshInterval
	}
	return now.Sub(*h.LastSuccessAt) > threshold
}

// AckStatus represents the operator-managed lifecycle status of an alert
type AckStatus string

const (
	AckStatusActive       AckStatus = "active"
	AckStatusAcknowledged AckStatus = "acknowledged"
	AckStatusResolved     AckStatus = "resolved"
)

// ValidAckStatus reports whether s is a known ack status
func ValidAckStatus(s AckStatus) bool {
	switch s {
	case AckStatusActive, AckStatusAcknowledged, AckStatusResolved:
		return true
	}
	return false
}

// AckState stores the acknowledgment lifecycle for one alert identity.
// Rows are created lazily on the first state change and mutated only
// through AckService.
type AckState struct {
	AlertID        string     `gorm:"primaryKey;size:64" json:"alert_id"`
	Status         AckStatus  `gorm:"type:varchar(20);not null;default:'active'" json:"status"`
	Note           string     `gorm:"type:text" json:"note"`
	UpdatedBy      string     `gorm:"size:128" json:"updated_by,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (AckState) TableName() string {
	return "ack_states"
}

// SilenceRule is a time-bounded, pattern-scoped suppression rule.
// An empty SourceType or Severity means "any"; empty patterns always match.
type SilenceRule struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	UUID string `gorm:"uniqueIndex;size:36;not null" json:"uuid"`
	Name string `gorm:"size:128;not null" json:"name"`

	SourceType  string `gorm:"size:32" json:"source_type,omitempty"` // "" or "any" matches all types
	SourceID    string `gorm:"size:36" json:"source_id,omitempty"`
	SourceLabel string `gorm:"size:128" json:"source_label,omitempty"`
	Severity    string `gorm:"size:20" json:"severity,omitempty"` // "" or "any" matches all severities

	ServicePattern     string `gorm:"size:255" json:"service_pattern,omitempty"`
	EnvironmentPattern string `gorm:"size:255" json:"environment_pattern,omitempty"`
	AlertNamePattern   string `gorm:"size:255" json:"alert_name_pattern,omitempty"`
	InstancePattern    string `gorm:"size:255" json:"instance_pattern,omitempty"`

	StartsAt  time.Time `gorm:"not null" json:"starts_at"`
	EndsAt    time.Time `gorm:"not null" json:"ends_at"`
	Enabled   bool      `gorm:"default:true" json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (SilenceRule) TableName() string {
	return "silence_rules"
}

// ActiveAt reports whether the rule is enabled and temporally active
func (r *SilenceRule) ActiveAt(now time.Time) bool {
	return r.Enabled && !now.Before(r.StartsAt) && !now.After(r.EndsAt)
}

// MatchesAnySourceType reports whether the rule applies to every source type
func (r *SilenceRule) MatchesAnySourceType() bool {
	return r.SourceType == "" || strings.EqualFold(r.SourceType, "any")
}

// MatchesAnySeverity reports whether the rule applies to every severity
func (r *SilenceRule) MatchesAnySeverity() bool {
	return r.Severity == "" || strings.EqualFold(r.Severity, "any")
}

// AppSettings stores global settings consumed by the poll loop (singleton row)
type AppSettings struct {
	ID                     uint      `gorm:"primaryKey" json:"id"`
	RefreshIntervalSeconds int       `gorm:"default:60" json:"refresh_interval_seconds"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

func (AppSettings) TableName() string {
	return "app_settings"
}

// RefreshInterval returns the poll interval, clamped to a sane minimum
func (s *AppSettings) RefreshInterval() time.Duration {
	if s.RefreshIntervalSeconds < 5 {
		return 5 * time.Second
	}
	return time.Duration(s.RefreshIntervalSeconds) * time.Second
}

// NewDefaultAppSettings returns settings with default values
func NewDefaultAppSettings() *AppSettings {
	return &AppSettings{RefreshIntervalSeconds: 60}
}
