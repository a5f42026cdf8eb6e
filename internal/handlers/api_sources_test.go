package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/alertdeck/alertdeck/internal/database"
	"github.com/alertdeck/alertdeck/internal/testhelpers"
)

func sourcePayload() map[string]interface{} {
	return map[string]interface{}{
		"type":      "zabbix",
		"name":      "staging",
		"url":       "https://zabbix.staging.example.com",
		"auth_mode": "bearer",
		"token":     "zbx-api-token",
	}
}

func TestSourceCreate(t *testing.T) {
	fx := newAPIFixture(t)

	ctx := testhelpers.NewHTTPTestContext(t, http.MethodPost, "/api/sources", nil).
		WithJSONBody(sourcePayload()).
		Execute(fx.mux).
		AssertStatus(http.StatusCreated)

	// keep the raw body around, decoding drains the recorder
	body := ctx.Recorder.Body.String()
	var created database.SourceConfig
	if err := json.Unmarshal([]byte(body), &created); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if created.UUID == "" {
		t.Fatal("expected server-assigned uuid")
	}
	if created.Type != database.SourceTypeZabbix || created.Name != "staging" {
		t.Errorf("unexpected source: %+v", created)
	}
	if !created.Enabled {
		t.Error("expected enabled to default to true")
	}

	// secrets must never be echoed back
	for _, secret := range []string{"zbx-api-token", `"token"`, `"password"`} {
		if strings.Contains(body, secret) {
			t.Errorf("response leaked %s: %s", secret, body)
		}
	}

	stored, err := fx.sources.Get(created.UUID)
	if err != nil {
		t.Fatalf("load stored source: %v", err)
	}
	if stored.Token != "zbx-api-token" {
		t.Errorf("expected token persisted, got %q", stored.Token)
	}
}

func TestSourceCreate_Validation(t *testing.T) {
	fx := newAPIFixture(t)

	tests := []struct {
		name    string
		mutate  func(map[string]interface{})
		details string
	}{
		{"unknown type", func(p map[string]interface{}) { p["type"] = "nagios" }, "type"},
		{"missing name", func(p map[string]interface{}) { p["name"] = "" }, "name"},
		{"bad url", func(p map[string]interface{}) { p["url"] = "not a url" }, "url"},
		{"bad auth mode", func(p map[string]interface{}) { p["auth_mode"] = "digest" }, "auth_mode"},
		{"bad mode", func(p map[string]interface{}) { p["mode"] = "scrape" }, "mode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := sourcePayload()
			tt.mutate(payload)
			testhelpers.NewHTTPTestContext(t, http.MethodPost, "/api/sources", nil).
				WithJSONBody(payload).
				Execute(fx.mux).
				AssertStatus(http.StatusUnprocessableEntity).
				AssertBodyContains(tt.details)
		})
	}
}

func TestSourceUpdate_KeepsSecretsOnBlank(t *testing.T) {
	fx := newAPIFixture(t)

	var created database.SourceConfig
	testhelpers.NewHTTPTestContext(t, http.MethodPost, "/api/sources", nil).
		WithJSONBody(sourcePayload()).
		Execute(fx.mux).
		AssertStatus(http.StatusCreated).
		DecodeJSON(&created)

	payload := sourcePayload()
	payload["name"] = "staging-renamed"
	delete(payload, "token")

	var updated database.SourceConfig
	testhelpers.NewHTTPTestContext(t, http.MethodPut, "/api/sources/"+created.UUID, nil).
		WithJSONBody(payload).
		Execute(fx.mux).
		AssertStatus(http.StatusOK).
		DecodeJSON(&updated)

	if updated.Name != "staging-renamed" {
		t.Errorf("expected renamed source, got %q", updated.Name)
	}

	stored, err := fx.sources.Get(created.UUID)
	if err != nil {
		t.Fatalf("load stored source: %v", err)
	}
	if stored.Token != "zbx-api-token" {
		t.Errorf("expected blank token to keep the stored one, got %q", stored.Token)
	}
}

func TestSourceUpdate_NotFound(t *testing.T) {
	fx := newAPIFixture(t)

	testhelpers.NewHTTPTestContext(t, http.MethodPut, "/api/sources/no-such-uuid", nil).
		WithJSONBody(sourcePayload()).
		Execute(fx.mux).
		AssertStatus(http.StatusNotFound)
}

func TestSourceListAndDelete(t *testing.T) {
	fx := newAPIFixture(t)

	var created database.SourceConfig
	testhelpers.NewHTTPTestContext(t, http.MethodPost, "/api/sources", nil).
		WithJSONBody(sourcePayload()).
		Execute(fx.mux).
		AssertStatus(http.StatusCreated).
		DecodeJSON(&created)

	var resp struct {
		Sources []database.SourceConfig `json:"sources"`
	}
	testhelpers.NewHTTPTestContext(t, http.MethodGet, "/api/sources", nil).
		Execute(fx.mux).
		AssertStatus(http.StatusOK).
		DecodeJSON(&resp)
	// the fixture seeds one source of its own
	if len(resp.Sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(resp.Sources))
	}

	testhelpers.NewHTTPTestContext(t, http.MethodDelete, "/api/sources/"+created.UUID, nil).
		Execute(fx.mux).
		AssertStatus(http.StatusNoContent)

	resp.Sources = nil
	testhelpers.NewHTTPTestContext(t, http.MethodGet, "/api/sources", nil).
		Execute(fx.mux).
		AssertStatus(http.StatusOK).
		DecodeJSON(&resp)
	if len(resp.Sources) != 1 {
		t.Errorf("expected 1 source after delete, got %d", len(resp.Sources))
	}
}
