package alerts

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/alertdeck/alertdeck/internal/database"
)

// Severity is the normalized alert severity
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Alert is the canonical, normalized alert record every adapter produces.
// It is immutable once emitted for a given poll.
type Alert struct {
	// ID is a deterministic content hash over stable per-source fields.
	// Re-polling the same upstream event yields the same ID, so ack state
	// and grouping survive repeated polls.
	ID string `json:"id"`

	Source      database.SourceTypeName `json:"source"`
	SourceID    string                  `json:"source_id"`    // UUID of the configured source instance
	SourceLabel string                  `json:"source_label"` // User-friendly instance name

	Name        string   `json:"name"`
	Severity    Severity `json:"severity"`
	Message     string   `json:"message"`
	Instance    string   `json:"instance"`
	Service     string   `json:"service,omitempty"`
	Environment string   `json:"environment,omitempty"`

	// Fingerprint is the upstream-provided stable dedup key, if any
	Fingerprint string `json:"fingerprint,omitempty"`

	// Timestamp is the event start time
	Timestamp time.Time `json:"timestamp"`
}

// Identity computes the deterministic alert ID from fields that are stable
// across repeated polls of the same upstream event. The timestamp is
// bucketed to the minute so sub-minute upstream jitter does not change the
// identity. A zero timestamp means the upstream supplied no stable event
// time; the identity then rests on the remaining fields alone, so an
// ongoing condition keeps one ID instead of minting a new one per poll.
func Identity(source database.SourceTypeName, sourceID, upstreamKey, name, instance string, ts time.Time) string {
	bucket := ""
	if !ts.IsZero() {
		bucket = ts.UTC().Truncate(time.Minute).Format(time.RFC3339)
	}
	return hashFields(string(source), sourceID, upstreamKey, name, instance, bucket)
}

// hashFields hashes the given parts into a short stable hex key
func hashFields(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:])[:16]
}

// NormalizeSeverity maps vendor severity keywords to normalized values.
// Numeric values are interpreted as priorities via PriorityToSeverity.
func NormalizeSeverity(severity string) Severity {
	s := strings.ToLower(strings.TrimSpace(severity))

	if n, err := strconv.Atoi(s); err == nil {
		return PriorityToSeverity(n)
	}

	switch s {
	case "critical", "disaster", "emergency", "fatal", "error":
		return SeverityCritical
	case "warning", "warn", "average", "minor", "major", "high":
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// PriorityToSeverity maps numeric priorities (Zabbix-style 0-5) to severity:
// 4-5 critical, 2-3 warning, everything else info.
func PriorityToSeverity(priority int) Severity {
	switch {
	case priority >= 4:
		return SeverityCritical
	case priority >= 2:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// ValidSeverity reports whether s is a known severity value
func ValidSeverity(s Severity) bool {
	switch s {
	case SeverityCritical, SeverityWarning, SeverityInfo:
		return true
	}
	return false
}
