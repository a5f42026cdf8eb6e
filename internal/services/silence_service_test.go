package services

import (
	"testing"
	"time"

	"github.com/alertdeck/alertdeck/internal/database"
	"github.com/alertdeck/alertdeck/internal/testhelpers"
)

func TestSilenceService_CRUD(t *testing.T) {
	svc := NewSilenceService(testhelpers.SetupTestDB(t))
	rule := testhelpers.NewSilenceBuilder().WithServicePattern("api-*").Build()
	rule.UUID = "" // assigned by Create

	created, err := svc.Create(&rule)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.UUID == "" {
		t.Error("Create() must assign a UUID")
	}

	got, err := svc.Get(created.UUID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ServicePattern != "api-*" {
		t.Errorf("service pattern = %s", got.ServicePattern)
	}

	got.Name = "renamed"
	got.ServicePattern = "db-*"
	updated, err := svc.Update(created.UUID, got)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Name != "renamed" || updated.ServicePattern != "db-*" {
		t.Errorf("update not applied: %+v", updated)
	}

	if err := svc.Delete(created.UUID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := svc.Get(created.UUID); err == nil {
		t.Error("expected not-found after delete")
	}
}

func TestSilenceService_Validation(t *testing.T) {
	svc := NewSilenceService(testhelpers.SetupTestDB(t))
	now := time.Now().UTC()

	tests := []struct {
		name string
		mod  func(*database.SilenceRule)
	}{
		{"missing name", func(r *database.SilenceRule) { r.Name = "" }},
		{"missing window", func(r *database.SilenceRule) { r.StartsAt = time.Time{}; r.EndsAt = time.Time{} }},
		{"ends before starts", func(r *database.SilenceRule) { r.StartsAt = now; r.EndsAt = now.Add(-time.Hour) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := testhelpers.NewSilenceBuilder().Build()
			tt.mod(&rule)
			if _, err := svc.Create(&rule); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestSilenceService_ListActive(t *testing.T) {
	svc := NewSilenceService(testhelpers.SetupTestDB(t))
	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

	mk := func(name string, mod func(*database.SilenceRule)) {
		t.Helper()
		rule := testhelpers.NewSilenceBuilder().WithWindow(now.Add(-time.Hour), now.Add(time.Hour)).Build()
		rule.Name = name
		rule.UUID = ""
		if mod != nil {
			mod(&rule)
		}
		if _, err := svc.Create(&rule); err != nil {
			t.Fatalf("Create(%s) error = %v", name, err)
		}
	}

	mk("active", nil)
	mk("disabled", func(r *database.SilenceRule) { r.Enabled = false })
	mk("expired", func(r *database.SilenceRule) {
		r.StartsAt = now.Add(-3 * time.Hour)
		r.EndsAt = now.Add(-2 * time.Hour)
	})
	mk("future", func(r *database.SilenceRule) {
		r.StartsAt = now.Add(time.Hour)
		r.EndsAt = now.Add(2 * time.Hour)
	})

	active, err := svc.ListActive(now)
	if err != nil {
		t.Fatalf("ListActive() error = %v", err)
	}
	if len(active) != 1 || active[0].Name != "active" {
		t.Errorf("expected only the active rule, got %d rules", len(active))
	}

	all, err := svc.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 4 {
		t.Errorf("List() returned %d rules, want 4", len(all))
	}
}
