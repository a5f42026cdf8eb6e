// Package testhelpers provides reusable testing utilities for Alertdeck:
// in-memory database setup, HTTP test contexts and mock collaborators.
package testhelpers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/alertdeck/alertdeck/internal/alerts"
	"github.com/alertdeck/alertdeck/internal/database"
)

// ========================================
// Database Test Helpers
// ========================================

// SetupTestDB opens a fresh in-memory SQLite database with all migrations
// applied. Each call returns an isolated database.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

// ========================================
// HTTP Test Helpers
// ========================================

// HTTPTestContext holds components for HTTP handler testing
type HTTPTestContext struct {
	T        *testing.T
	Recorder *httptest.ResponseRecorder
	Request  *http.Request
}

// NewHTTPTestContext creates a new HTTP test context
func NewHTTPTestContext(t *testing.T, method, path string, body io.Reader) *HTTPTestContext {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	return &HTTPTestContext{
		T:        t,
		Recorder: httptest.NewRecorder(),
		Request:  req,
	}
}

// WithHeader adds a header to the request
func (ctx *HTTPTestContext) WithHeader(key, value string) *HTTPTestContext {
	ctx.Request.Header.Set(key, value)
	return ctx
}

// WithJSONBody sets JSON body on the request
func (ctx *HTTPTestContext) WithJSONBody(v interface{}) *HTTPTestContext {
	ctx.T.Helper()
	body, err := json.Marshal(v)
	if err != nil {
		ctx.T.Fatalf("failed to marshal JSON body: %v", err)
	}
	ctx.Request = httptest.NewRequest(ctx.Request.Method, ctx.Request.URL.String(), bytes.NewReader(body))
	ctx.Request.Header.Set("Content-Type", "application/json")
	return ctx
}

// WithBearerToken adds Authorization Bearer header
func (ctx *HTTPTestContext) WithBearerToken(token string) *HTTPTestContext {
	return ctx.WithHeader("Authorization", "Bearer "+token)
}

// Execute runs the handler and returns the response
func (ctx *HTTPTestContext) Execute(handler http.Handler) *HTTPTestContext {
	handler.ServeHTTP(ctx.Recorder, ctx.Request)
	return ctx
}

// ExecuteFunc runs the handler func and returns the response
func (ctx *HTTPTestContext) ExecuteFunc(handler http.HandlerFunc) *HTTPTestContext {
	handler(ctx.Recorder, ctx.Request)
	return ctx
}

// AssertStatus checks the response status code
func (ctx *HTTPTestContext) AssertStatus(expected int) *HTTPTestContext {
	ctx.T.Helper()
	if ctx.Recorder.Code != expected {
		ctx.T.Errorf("expected status %d, got %d. Body: %s", expected, ctx.Recorder.Code, ctx.Recorder.Body.String())
	}
	return ctx
}

// AssertBodyContains checks if response body contains substring
func (ctx *HTTPTestContext) AssertBodyContains(substr string) *HTTPTestContext {
	ctx.T.Helper()
	body := ctx.Recorder.Body.String()
	if !bytes.Contains([]byte(body), []byte(substr)) {
		ctx.T.Errorf("expected body to contain %q, got: %s", substr, body)
	}
	return ctx
}

// DecodeJSON decodes response body as JSON
func (ctx *HTTPTestContext) DecodeJSON(v interface{}) *HTTPTestContext {
	ctx.T.Helper()
	if err := json.NewDecoder(ctx.Recorder.Body).Decode(v); err != nil {
		ctx.T.Fatalf("failed to decode JSON response: %v", err)
	}
	return ctx
}

// ========================================
// Mock Source Adapter
// ========================================

// MockAdapter implements alerts.SourceAdapter for testing
type MockAdapter struct {
	Type        database.SourceTypeName
	Alerts      []alerts.Alert
	Err         error
	FetchCalled bool
	Delay       time.Duration
}

// NewMockAdapter creates a mock adapter for the given source type
func NewMockAdapter(sourceType database.SourceTypeName) *MockAdapter {
	return &MockAdapter{Type: sourceType}
}

// WithAlerts configures the alerts Fetch returns
func (m *MockAdapter) WithAlerts(list ...alerts.Alert) *MockAdapter {
	m.Alerts = list
	return m
}

// WithError configures Fetch to fail
func (m *MockAdapter) WithError(err error) *MockAdapter {
	m.Err = err
	return m
}

// SourceType returns the configured source type
func (m *MockAdapter) SourceType() database.SourceTypeName {
	return m.Type
}

// Fetch returns the configured alerts or error
func (m *MockAdapter) Fetch(ctx context.Context, src database.SourceConfig) ([]alerts.Alert, error) {
	m.FetchCalled = true
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Alerts, nil
}

// ========================================
// Mock Health Gate
// ========================================

// MockHealthGate implements alerts.HealthGate in memory
type MockHealthGate struct {
	mu        sync.Mutex
	Backoff   map[string]time.Time
	Successes []string
	Failures  []string
}

// NewMockHealthGate creates an empty health gate
func NewMockHealthGate() *MockHealthGate {
	return &MockHealthGate{Backoff: make(map[string]time.Time)}
}

// SetBackoff marks a source as cooling down until the given time
func (g *MockHealthGate) SetBackoff(sourceType database.SourceTypeName, sourceID string, until time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Backoff[string(sourceType)+"/"+sourceID] = until
}

// InBackoff reports whether a backoff window was configured for the source
func (g *MockHealthGate) InBackoff(sourceType database.SourceTypeName, sourceID string) (time.Time, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	until, ok := g.Backoff[string(sourceType)+"/"+sourceID]
	return until, ok
}

// RecordSuccess records the source key
func (g *MockHealthGate) RecordSuccess(sourceType database.SourceTypeName, sourceID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Successes = append(g.Successes, string(sourceType)+"/"+sourceID)
}

// RecordFailure records the source key
func (g *MockHealthGate) RecordFailure(sourceType database.SourceTypeName, sourceID string, message string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Failures = append(g.Failures, string(sourceType)+"/"+sourceID)
}
