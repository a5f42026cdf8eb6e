package adapters

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/alertdeck/alertdeck/internal/alerts"
	"github.com/alertdeck/alertdeck/internal/database"
)

// AlertmanagerAdapter polls the Alertmanager v2 API for firing alerts
type AlertmanagerAdapter struct {
	client *http.Client
}

// NewAlertmanagerAdapter creates a new Alertmanager adapter
func NewAlertmanagerAdapter() *AlertmanagerAdapter {
	return &AlertmanagerAdapter{client: &http.Client{}}
}

// SourceType returns the source type this adapter handles
func (a *AlertmanagerAdapter) SourceType() database.SourceTypeName {
	return database.SourceTypeAlertmanager
}

// amAlert is the relevant subset of one /api/v2/alerts entry. Every field is
// optional; upstreams with relabeling or older versions omit freely.
type amAlert struct {
	Labels      map[string]string `json:"labels"`
	Annotations map[string]string `json:"annotations"`
	StartsAt    string            `json:"startsAt"`
	Fingerprint string            `json:"fingerprint"`
	Status      struct {
		State string `json:"state"`
	} `json:"status"`
}

// Fetch polls {url}/api/v2/alerts and normalizes every active alert
func (a *AlertmanagerAdapter) Fetch(ctx context.Context, src database.SourceConfig) ([]alerts.Alert, error) {
	req, err := alerts.NewJSONRequest(ctx, strings.TrimRight(src.URL, "/")+"/api/v2/alerts")
	if err != nil {
		return nil, alerts.ConfigInvalid("invalid Alertmanager URL %q: %v", src.URL, err)
	}

	switch src.AuthMode {
	case "basic":
		req.SetBasicAuth(src.Username, src.Password)
	case "bearer":
		req.Header.Set("Authorization", "Bearer "+src.Token)
	}

	body, err := alerts.DoRequest(a.client, req)
	if err != nil {
		return nil, err
	}

	var raw []amAlert
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, alerts.Malformed("failed to parse Alertmanager response", err)
	}

	var out []alerts.Alert
	for _, am := range raw {
		// Suppressed alerts are Alertmanager-silenced upstream; skip them
		if am.Status.State == "suppressed" {
			continue
		}
		out = append(out, a.normalize(am, src))
	}
	return out, nil
}

func (a *AlertmanagerAdapter) normalize(am amAlert, src database.SourceConfig) alerts.Alert {
	name := am.Labels["alertname"]
	if name == "" {
		name = "unnamed alert"
	}

	message := am.Annotations["summary"]
	if message == "" {
		message = am.Annotations["description"]
	}

	service := am.Labels["service"]
	if service == "" {
		service = am.Labels["job"]
	}

	environment := am.Labels["environment"]
	if environment == "" {
		environment = am.Labels["env"]
	}

	// A missing startsAt leaves eventTime zero so the identity does not
	// churn with the receipt clock.
	var eventTime time.Time
	if am.StartsAt != "" {
		if t, err := time.Parse(time.RFC3339, am.StartsAt); err == nil && !t.IsZero() {
			eventTime = t
		}
	}
	ts := eventTime
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	upstreamKey := am.Fingerprint
	if upstreamKey == "" {
		upstreamKey = name
	}

	instance := am.Labels["instance"]

	return alerts.Alert{
		ID:          alerts.Identity(database.SourceTypeAlertmanager, src.UUID, upstreamKey, name, instance, eventTime),
		Source:      database.SourceTypeAlertmanager,
		SourceID:    src.UUID,
		SourceLabel: src.Name,
		Name:        name,
		Severity:    alerts.NormalizeSeverity(am.Labels["severity"]),
		Message:     message,
		Instance:    instance,
		Service:     service,
		Environment: environment,
		Fingerprint: am.Fingerprint,
		Timestamp:   ts,
	}
}
