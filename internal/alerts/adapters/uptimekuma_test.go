package adapters

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alertdeck/alertdeck/internal/alerts"
	"github.com/alertdeck/alertdeck/internal/database"
)

const kumaPageFixture = `{
  "publicGroupList": [
    {
      "name": "Services",
      "monitorList": [
        {"id": 1, "name": "Website"},
        {"id": 2, "name": "API"},
        {"id": 3, "name": "Database"}
      ]
    }
  ]
}`

const kumaHeartbeatFixture = `{
  "heartbeatList": {
    "1": [
      {"status": 1, "time": "2026-01-15 10:28:00", "msg": ""},
      {"status": 0, "time": "2026-01-15 10:29:00", "msg": "connect ECONNREFUSED"}
    ],
    "2": [
      {"status": 1, "time": "2026-01-15 10:29:00", "msg": ""}
    ]
  }
}`

const kumaMetricsFixture = `# HELP monitor_status Monitor Status (1 = UP, 0= DOWN, 2= PENDING, 3= MAINTENANCE)
# TYPE monitor_status gauge
monitor_status{monitor_name="Website",monitor_type="http",monitor_url="https://example.com"} 1
monitor_status{monitor_name="API",monitor_type="http",monitor_url="https://api.example.com"} 1
monitor_status{monitor_name="Website",monitor_type="http",monitor_url="https://example.com/dup"} 0
# HELP monitor_response_time Monitor Response Time (ms)
# TYPE monitor_response_time gauge
monitor_response_time{monitor_name="Website"} 124
`

func kumaSource(url, mode string) database.SourceConfig {
	return database.SourceConfig{
		UUID:    "kuma-uuid",
		Type:    database.SourceTypeUptimeKuma,
		Name:    "status",
		URL:     url,
		Mode:    mode,
		Slug:    "default",
		Token:   "api-key",
		Enabled: true,
	}
}

func TestKumaStatusPageFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/status-page/default":
			w.Write([]byte(kumaPageFixture))
		case "/api/status-page/heartbeat/default":
			w.Write([]byte(kumaHeartbeatFixture))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	out, err := NewUptimeKumaAdapter().Fetch(context.Background(), kumaSource(server.URL, KumaModeStatusPage))
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	// Monitor 1 latest heartbeat is down, monitor 2 is up, monitor 3 has
	// no heartbeats at all.
	if len(out) != 1 {
		t.Fatalf("expected 1 down alert, got %d", len(out))
	}

	a := out[0]
	if a.Name != "Website" || a.Instance != "Website" {
		t.Errorf("monitor identity wrong: %+v", a)
	}
	if a.Severity != alerts.SeverityCritical {
		t.Errorf("severity = %s", a.Severity)
	}
	if a.Message != "connect ECONNREFUSED" {
		t.Errorf("message = %s", a.Message)
	}
	if a.Fingerprint != "monitor-1" {
		t.Errorf("fingerprint = %s", a.Fingerprint)
	}
	want := time.Date(2026, 1, 15, 10, 29, 0, 0, time.UTC)
	if !a.Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", a.Timestamp, want)
	}
}

func TestKumaStatusPageFetch_BooleanStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/status-page/default":
			w.Write([]byte(`{"publicGroupList": [{"name": "g", "monitorList": [{"id": 7, "name": "Legacy"}]}]}`))
		default:
			w.Write([]byte(`{"heartbeatList": {"7": [{"status": false, "time": "2026-01-15T10:29:00Z"}]}}`))
		}
	}))
	defer server.Close()

	out, err := NewUptimeKumaAdapter().Fetch(context.Background(), kumaSource(server.URL, KumaModeStatusPage))
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("boolean false status should count as down, got %d alerts", len(out))
	}
	if out[0].Message != "Monitor Legacy is down" {
		t.Errorf("default message = %s", out[0].Message)
	}
}

func TestKumaStatusPageFetch_IdentityAnchoredToStreakStart(t *testing.T) {
	// The same outage accumulates heartbeats; the alert must keep the
	// identity of the streak's first down heartbeat.
	beats := []string{
		`{"heartbeatList": {"1": [
			{"status": 1, "time": "2026-01-15 10:28:00", "msg": ""},
			{"status": 0, "time": "2026-01-15 10:29:00", "msg": "down"}
		]}}`,
		`{"heartbeatList": {"1": [
			{"status": 1, "time": "2026-01-15 10:28:00", "msg": ""},
			{"status": 0, "time": "2026-01-15 10:29:00", "msg": "down"},
			{"status": 0, "time": "2026-01-15 10:31:00", "msg": "still down"}
		]}}`,
	}
	page := `{"publicGroupList": [{"name": "g", "monitorList": [{"id": 1, "name": "Website"}]}]}`

	poll := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/status-page/default" {
			w.Write([]byte(page))
			return
		}
		w.Write([]byte(beats[poll]))
	}))
	defer server.Close()

	adapter := NewUptimeKumaAdapter()
	src := kumaSource(server.URL, KumaModeStatusPage)

	first, err := adapter.Fetch(context.Background(), src)
	if err != nil {
		t.Fatalf("first Fetch() error = %v", err)
	}
	poll = 1
	second, err := adapter.Fetch(context.Background(), src)
	if err != nil {
		t.Fatalf("second Fetch() error = %v", err)
	}

	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("expected 1 alert per poll, got %d and %d", len(first), len(second))
	}
	if first[0].ID != second[0].ID {
		t.Errorf("identity churned with new heartbeats: %s vs %s", first[0].ID, second[0].ID)
	}
	streakStart := time.Date(2026, 1, 15, 10, 29, 0, 0, time.UTC)
	if !second[0].Timestamp.Equal(streakStart) {
		t.Errorf("timestamp = %v, want streak start %v", second[0].Timestamp, streakStart)
	}
	if second[0].Message != "still down" {
		t.Errorf("message should follow the latest heartbeat, got %q", second[0].Message)
	}
}

func TestKumaStatusPageFetch_MissingSlug(t *testing.T) {
	src := kumaSource("http://kuma.local", KumaModeStatusPage)
	src.Slug = ""

	_, err := NewUptimeKumaAdapter().Fetch(context.Background(), src)
	if err == nil {
		t.Fatal("expected an error")
	}
	if got := alerts.KindOf(err); got != alerts.ErrorConfig {
		t.Errorf("error kind = %s, want %s", got, alerts.ErrorConfig)
	}
}

func TestKumaStatusPageFetch_PartialFailure(t *testing.T) {
	// Heartbeat endpoint fails; the whole source poll must fail
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/status-page/default" {
			w.Write([]byte(kumaPageFixture))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := NewUptimeKumaAdapter().Fetch(context.Background(), kumaSource(server.URL, KumaModeStatusPage))
	if err == nil {
		t.Fatal("expected an error when one sub-request fails")
	}
	if got := alerts.KindOf(err); got != alerts.ErrorRejected {
		t.Errorf("error kind = %s, want %s", got, alerts.ErrorRejected)
	}
}

func TestKumaMetricsFetch(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		w.Write([]byte(kumaMetricsFixture))
	}))
	defer server.Close()

	out, err := NewUptimeKumaAdapter().Fetch(context.Background(), kumaSource(server.URL, KumaModeMetrics))
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if gotAuth != "Bearer api-key" {
		t.Errorf("default scheme should be bearer, got %q", gotAuth)
	}

	// Website exposes two samples; the last one (down) wins. API is up.
	if len(out) != 1 {
		t.Fatalf("expected 1 down alert, got %d", len(out))
	}
	if out[0].Name != "Website" {
		t.Errorf("name = %s", out[0].Name)
	}
	if out[0].Fingerprint != "monitor-Website" {
		t.Errorf("fingerprint = %s", out[0].Fingerprint)
	}
}

func TestKumaMetricsFetch_StaleUpSampleIgnored(t *testing.T) {
	// An up sample followed by a down sample for the same monitor name
	// means the monitor is down now.
	exposition := `# TYPE monitor_status gauge
monitor_status{monitor_name="web",monitor_url="https://a"} 1
monitor_status{monitor_name="web",monitor_url="https://b"} 0
`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(exposition))
	}))
	defer server.Close()

	out, err := NewUptimeKumaAdapter().Fetch(context.Background(), kumaSource(server.URL, KumaModeMetrics))
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(out) != 1 || out[0].Name != "web" {
		t.Fatalf("expected one down alert for web, got %+v", out)
	}
}

func TestKumaMetricsFetch_IdentityStableAcrossPolls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(kumaMetricsFixture))
	}))
	defer server.Close()

	adapter := NewUptimeKumaAdapter()
	src := kumaSource(server.URL, KumaModeMetrics)

	first, err := adapter.Fetch(context.Background(), src)
	if err != nil {
		t.Fatalf("first Fetch() error = %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	second, err := adapter.Fetch(context.Background(), src)
	if err != nil {
		t.Fatalf("second Fetch() error = %v", err)
	}

	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("expected 1 alert per poll, got %d and %d", len(first), len(second))
	}
	// A still-down monitor keeps one identity across polls; ack state
	// must survive re-polling.
	if first[0].ID != second[0].ID {
		t.Errorf("identity churned across polls: %s vs %s", first[0].ID, second[0].ID)
	}
	// The receipt clock must not be part of the identity at all.
	want := alerts.Identity(database.SourceTypeUptimeKuma, "kuma-uuid", "monitor-Website", "Website", "Website", time.Time{})
	if first[0].ID != want {
		t.Errorf("identity depends on the clock: got %s, want %s", first[0].ID, want)
	}
	if first[0].Timestamp.IsZero() {
		t.Error("displayed timestamp must not be zero")
	}
}

func TestKumaMetricsFetch_RetriesAlternateScheme(t *testing.T) {
	var attempts []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		attempts = append(attempts, auth)
		if len(attempts) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(kumaMetricsFixture))
	}))
	defer server.Close()

	out, err := NewUptimeKumaAdapter().Fetch(context.Background(), kumaSource(server.URL, KumaModeMetrics))
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if len(attempts) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(attempts))
	}
	if attempts[0] == attempts[1] {
		t.Error("retry must switch auth scheme")
	}
	if len(out) != 1 {
		t.Errorf("expected alerts from second attempt, got %d", len(out))
	}
}

func TestKumaMetricsFetch_NoRetryOnServerError(t *testing.T) {
	// Only 401/403 means the auth scheme was wrong; a 500 must not burn a
	// second request on the alternate scheme.
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := NewUptimeKumaAdapter().Fetch(context.Background(), kumaSource(server.URL, KumaModeMetrics))
	if err == nil {
		t.Fatal("expected an error")
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
	if kind := alerts.KindOf(err); kind != alerts.ErrorRejected {
		t.Errorf("error kind = %v, want %v", kind, alerts.ErrorRejected)
	}
}

func TestKumaMetricsFetch_BasicFirst(t *testing.T) {
	var gotUser, gotPass string
	var gotBasic bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, gotPass, gotBasic = r.BasicAuth()
		w.Write([]byte(kumaMetricsFixture))
	}))
	defer server.Close()

	src := kumaSource(server.URL, KumaModeMetrics)
	src.AuthMode = "basic-first"

	if _, err := NewUptimeKumaAdapter().Fetch(context.Background(), src); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if !gotBasic || gotUser != "" || gotPass != "api-key" {
		t.Errorf("expected basic auth with empty user and the API key, got %q/%q (basic=%v)", gotUser, gotPass, gotBasic)
	}
}

func TestKumaMetricsFetch_NoRetryWhenUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewUptimeKumaAdapter().Fetch(context.Background(), kumaSource(url, KumaModeMetrics))
	if err == nil {
		t.Fatal("expected an error")
	}
	if got := alerts.KindOf(err); got != alerts.ErrorUnreachable {
		t.Errorf("error kind = %s, want %s", got, alerts.ErrorUnreachable)
	}
}

func TestKumaFetch_UnknownMode(t *testing.T) {
	src := kumaSource("http://kuma.local", "push")
	_, err := NewUptimeKumaAdapter().Fetch(context.Background(), src)
	if err == nil {
		t.Fatal("expected an error")
	}
	if got := alerts.KindOf(err); got != alerts.ErrorConfig {
		t.Errorf("error kind = %s, want %s", got, alerts.ErrorConfig)
	}
}

func TestParseKumaTime(t *testing.T) {
	tests := []struct {
		input string
		want  time.Time
	}{
		{"2026-01-15T10:29:00Z", time.Date(2026, 1, 15, 10, 29, 0, 0, time.UTC)},
		{"2026-01-15 10:29:00.123", time.Date(2026, 1, 15, 10, 29, 0, 123000000, time.UTC)},
		{"2026-01-15 10:29:00", time.Date(2026, 1, 15, 10, 29, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		if got := parseKumaTime(tt.input); !got.Equal(tt.want) {
			t.Errorf("parseKumaTime(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}

	// Unparsable input yields the zero time, never the receipt clock
	if got := parseKumaTime("garbage"); !got.IsZero() {
		t.Errorf("parseKumaTime(garbage) = %v, want zero time", got)
	}
}
