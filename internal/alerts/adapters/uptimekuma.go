package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"golang.org/x/sync/errgroup"

	"github.com/alertdeck/alertdeck/internal/alerts"
	"github.com/alertdeck/alertdeck/internal/database"
)

// Uptime Kuma operating modes
const (
	KumaModeStatusPage = "status-page"
	KumaModeMetrics    = "metrics"
)

// monitorStatusMetric is the family exposed by Uptime Kuma's /metrics
// endpoint; gauge value 0 means the monitor is down.
const monitorStatusMetric = "monitor_status"

// UptimeKumaAdapter polls an Uptime Kuma instance either through a public
// status page (definition + heartbeat map fetched in parallel) or through
// its Prometheus metrics export guarded by an API key.
type UptimeKumaAdapter struct {
	client *http.Client
}

// NewUptimeKumaAdapter creates a new Uptime Kuma adapter
func NewUptimeKumaAdapter() *UptimeKumaAdapter {
	return &UptimeKumaAdapter{client: &http.Client{}}
}

// SourceType returns the source type this adapter handles
func (a *UptimeKumaAdapter) SourceType() database.SourceTypeName {
	return database.SourceTypeUptimeKuma
}

// Fetch dispatches on the configured mode
func (a *UptimeKumaAdapter) Fetch(ctx context.Context, src database.SourceConfig) ([]alerts.Alert, error) {
	switch src.Mode {
	case KumaModeMetrics:
		return a.fetchMetrics(ctx, src)
	case KumaModeStatusPage, "":
		return a.fetchStatusPage(ctx, src)
	default:
		return nil, alerts.ConfigInvalid("unknown Uptime Kuma mode %q", src.Mode)
	}
}

// ========== Status page mode ==========

// kumaStatusPage is the /api/status-page/{slug} payload subset
type kumaStatusPage struct {
	PublicGroupList []struct {
		Name        string `json:"name"`
		MonitorList []struct {
			ID   json.Number `json:"id"`
			Name string      `json:"name"`
		} `json:"monitorList"`
	} `json:"publicGroupList"`
}

// kumaHeartbeat is one heartbeat entry. Status is 0/1/2/3 on current
// versions but older exports encode it as a boolean; both shapes must be
// handled, and both 0 and false mean down.
type kumaHeartbeat struct {
	Status json.RawMessage `json:"status"`
	Time   string          `json:"time"`
	Msg    string          `json:"msg"`
}

// Down interprets the raw status value
func (h *kumaHeartbeat) Down() bool {
	s := bytes.TrimSpace(h.Status)
	return string(s) == "0" || string(s) == "false"
}

type kumaHeartbeatMap struct {
	HeartbeatList map[string][]kumaHeartbeat `json:"heartbeatList"`
}

// fetchStatusPage fetches the status page definition and the heartbeat map
// in parallel and emits one alert per monitor whose latest heartbeat is down.
// Failure of either sub-request fails the whole poll for this source.
func (a *UptimeKumaAdapter) fetchStatusPage(ctx context.Context, src database.SourceConfig) ([]alerts.Alert, error) {
	if src.Slug == "" {
		return nil, alerts.ConfigInvalid("Uptime Kuma status page mode requires a slug")
	}

	base := strings.TrimRight(src.URL, "/")

	var (
		page       kumaStatusPage
		heartbeats kumaHeartbeatMap
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.getJSON(gctx, fmt.Sprintf("%s/api/status-page/%s", base, src.Slug), &page)
	})
	g.Go(func() error {
		return a.getJSON(gctx, fmt.Sprintf("%s/api/status-page/heartbeat/%s", base, src.Slug), &heartbeats)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []alerts.Alert
	for _, group := range page.PublicGroupList {
		for _, mon := range group.MonitorList {
			beats := heartbeats.HeartbeatList[mon.ID.String()]
			if len(beats) == 0 {
				continue
			}
			latest := beats[len(beats)-1]
			if !latest.Down() {
				continue
			}
			// The first heartbeat of the current down streak anchors the
			// identity; later heartbeats of the same outage must not mint
			// a new alert ID.
			first := len(beats) - 1
			for first > 0 && beats[first-1].Down() {
				first--
			}
			out = append(out, a.downAlert(src, mon.ID.String(), mon.Name, latest.Msg, parseKumaTime(beats[first].Time)))
		}
	}
	return out, nil
}

// getJSON fetches a JSON document applying the shared failure taxonomy
func (a *UptimeKumaAdapter) getJSON(ctx context.Context, url string, v interface{}) error {
	req, err := alerts.NewJSONRequest(ctx, url)
	if err != nil {
		return alerts.ConfigInvalid("invalid Uptime Kuma URL %q: %v", url, err)
	}

	body, err := alerts.DoRequest(a.client, req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return alerts.Malformed("failed to parse Uptime Kuma response", err)
	}
	return nil
}

// ========== Metrics (API key) mode ==========

// fetchMetrics scrapes the Prometheus exposition at /metrics. The API key is
// tried in the configured scheme order; the alternate scheme is retried only
// when the first is rejected as unauthorized.
func (a *UptimeKumaAdapter) fetchMetrics(ctx context.Context, src database.SourceConfig) ([]alerts.Alert, error) {
	url := strings.TrimRight(src.URL, "/") + "/metrics"

	schemes := []string{"bearer", "basic"}
	if src.AuthMode == "basic-first" {
		schemes = []string{"basic", "bearer"}
	}

	body, err := a.scrape(ctx, url, src, schemes[0])
	if err != nil {
		var fe *alerts.FetchError
		if src.Token != "" && errors.As(err, &fe) && fe.Unauthorized() {
			body, err = a.scrape(ctx, url, src, schemes[1])
		}
		if err != nil {
			return nil, err
		}
	}

	var parser expfmt.TextParser
	families, perr := parser.TextToMetricFamilies(bytes.NewReader(body))
	if perr != nil && len(families) == 0 {
		return nil, alerts.Malformed("failed to parse Uptime Kuma metrics", perr)
	}

	family := families[monitorStatusMetric]
	if family == nil {
		return nil, nil
	}

	// The last sample per monitor name wins; a monitor exposed under several
	// URLs reports its most recent status last.
	var order []string
	lastValue := make(map[string]float64)
	for _, metric := range family.Metric {
		name := labelValue(metric, "monitor_name")
		if name == "" {
			continue
		}
		value, ok := metricValue(metric)
		if !ok {
			continue
		}
		if _, known := lastValue[name]; !known {
			order = append(order, name)
		}
		lastValue[name] = value
	}

	var out []alerts.Alert
	for _, name := range order {
		if lastValue[name] != 0 {
			continue
		}
		// The exposition carries no event time; the identity rests on the
		// monitor fingerprint alone.
		out = append(out, a.downAlert(src, name, name, "", time.Time{}))
	}
	return out, nil
}

func (a *UptimeKumaAdapter) scrape(ctx context.Context, url string, src database.SourceConfig, scheme string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, alerts.ConfigInvalid("invalid Uptime Kuma URL %q: %v", url, err)
	}
	req.Header.Set("Accept", string(expfmt.NewFormat(expfmt.TypeTextPlain)))

	if src.Token != "" {
		switch scheme {
		case "basic":
			// Uptime Kuma accepts the API key as a basic-auth password
			req.SetBasicAuth("", src.Token)
		default:
			req.Header.Set("Authorization", "Bearer "+src.Token)
		}
	}

	return alerts.DoRequest(a.client, req)
}

// downAlert builds the canonical alert for a down monitor. A zero eventTime
// keeps the receipt clock out of the identity.
func (a *UptimeKumaAdapter) downAlert(src database.SourceConfig, monitorKey, monitorName, msg string, eventTime time.Time) alerts.Alert {
	if msg == "" {
		msg = fmt.Sprintf("Monitor %s is down", monitorName)
	}
	ts := eventTime
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	fingerprint := "monitor-" + monitorKey
	return alerts.Alert{
		ID:          alerts.Identity(database.SourceTypeUptimeKuma, src.UUID, fingerprint, monitorName, monitorName, eventTime),
		Source:      database.SourceTypeUptimeKuma,
		SourceID:    src.UUID,
		SourceLabel: src.Name,
		Name:        monitorName,
		Severity:    alerts.SeverityCritical,
		Message:     msg,
		Instance:    monitorName,
		Fingerprint: fingerprint,
		Timestamp:   ts,
	}
}

// parseKumaTime parses the heartbeat timestamp formats Uptime Kuma emits.
// Unparsable values yield the zero time so the alert identity stays stable
// instead of tracking the receipt clock.
func parseKumaTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05.999", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// labelValue extracts one label from a metric sample
func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.Label {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

// metricValue reads a gauge or untyped sample value
func metricValue(m *dto.Metric) (float64, bool) {
	if m.Gauge != nil {
		return m.Gauge.GetValue(), true
	}
	if m.Untyped != nil {
		return m.Untyped.GetValue(), true
	}
	return 0, false
}
