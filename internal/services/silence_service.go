package services

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/alertdeck/alertdeck/internal/database"
)

// SilenceService manages silence rule persistence. Rule evaluation itself
// lives in the alerts package and is read-only.
type SilenceService struct {
	db *gorm.DB
}

// NewSilenceService creates a silence service over the given database
func NewSilenceService(db *gorm.DB) *SilenceService {
	return &SilenceService{db: db}
}

// List returns all silence rules, newest first
func (s *SilenceService) List() ([]database.SilenceRule, error) {
	var rules []database.SilenceRule
	if err := s.db.Order("created_at DESC").Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

// ListActive returns the rules that are enabled and temporally active at now
func (s *SilenceService) ListActive(now time.Time) ([]database.SilenceRule, error) {
	var rules []database.SilenceRule
	err := s.db.Where("enabled = ? AND starts_at <= ? AND ends_at >= ?", true, now, now).Find(&rules).Error
	if err != nil {
		return nil, err
	}
	return rules, nil
}

// Get retrieves a silence rule by UUID
func (s *SilenceService) Get(ruleUUID string) (*database.SilenceRule, error) {
	var rule database.SilenceRule
	if err := s.db.Where("uuid = ?", ruleUUID).First(&rule).Error; err != nil {
		return nil, err
	}
	return &rule, nil
}

// Create validates and persists a new silence rule
func (s *SilenceService) Create(rule *database.SilenceRule) (*database.SilenceRule, error) {
	if err := validateRule(rule); err != nil {
		return nil, err
	}
	rule.UUID = uuid.New().String()
	if err := s.db.Create(rule).Error; err != nil {
		return nil, err
	}
	return rule, nil
}

// Update replaces the mutable fields of an existing rule
func (s *SilenceService) Update(ruleUUID string, updated *database.SilenceRule) (*database.SilenceRule, error) {
	if err := validateRule(updated); err != nil {
		return nil, err
	}

	rule, err := s.Get(ruleUUID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"name":                updated.Name,
		"source_type":         updated.SourceType,
		"source_id":           updated.SourceID,
		"source_label":        updated.SourceLabel,
		"severity":            updated.Severity,
		"service_pattern":     updated.ServicePattern,
		"environment_pattern": updated.EnvironmentPattern,
		"alert_name_pattern":  updated.AlertNamePattern,
		"instance_pattern":    updated.InstancePattern,
		"starts_at":           updated.StartsAt,
		"ends_at":             updated.EndsAt,
		"enabled":             updated.Enabled,
	}
	if err := s.db.Model(rule).Updates(updates).Error; err != nil {
		return nil, err
	}
	return s.Get(ruleUUID)
}

// Delete removes a silence rule by UUID
func (s *SilenceService) Delete(ruleUUID string) error {
	return s.db.Where("uuid = ?", ruleUUID).Delete(&database.SilenceRule{}).Error
}

func validateRule(rule *database.SilenceRule) error {
	if rule.Name == "" {
		return fmt.Errorf("silence rule name is required")
	}
	if rule.StartsAt.IsZero() || rule.EndsAt.IsZero() {
		return fmt.Errorf("silence rule requires starts_at and ends_at")
	}
	if rule.EndsAt.Before(rule.StartsAt) {
		return fmt.Errorf("silence rule ends_at must not precede starts_at")
	}
	return nil
}
