package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/alertdeck/alertdeck/internal/database"
)

// AckService owns acknowledgment state keyed by alert identity. States are
// created lazily on the first explicit update and never auto-expired.
type AckService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewAckService creates an ack service over the given database
func NewAckService(db *gorm.DB) *AckService {
	return &AckService{db: db, now: time.Now}
}

// GroupAckState is the aggregated display state for a group of alerts
type GroupAckState struct {
	Status         database.AckStatus `json:"status"`
	Note           string             `json:"note,omitempty"`
	UpdatedBy      string             `json:"updated_by,omitempty"`
	UpdatedAt      *time.Time         `json:"updated_at,omitempty"`
	AcknowledgedAt *time.Time         `json:"acknowledged_at,omitempty"`
	ResolvedAt     *time.Time         `json:"resolved_at,omitempty"`
}

// UpsertState creates or updates the ack state for one alert. UpdatedAt and
// UpdatedBy are always refreshed; AcknowledgedAt and ResolvedAt are set on
// the first transition into those statuses and never erased afterwards.
func (s *AckService) UpsertState(alertID string, status database.AckStatus, note, userID string) (*database.AckState, error) {
	if alertID == "" {
		return nil, fmt.Errorf("alert id is required")
	}
	if !database.ValidAckStatus(status) {
		return nil, fmt.Errorf("invalid ack status %q", status)
	}

	now := s.now().UTC()

	var state database.AckState
	err := s.db.Where("alert_id = ?", alertID).First(&state).Error
	if err == gorm.ErrRecordNotFound {
		state = database.AckState{AlertID: alertID}
	} else if err != nil {
		return nil, err
	}

	state.Status = status
	state.Note = note
	state.UpdatedBy = userID
	if status == database.AckStatusAcknowledged && state.AcknowledgedAt == nil {
		state.AcknowledgedAt = &now
	}
	if status == database.AckStatusResolved && state.ResolvedAt == nil {
		state.ResolvedAt = &now
	}

	if err := s.db.Save(&state).Error; err != nil {
		return nil, err
	}
	return &state, nil
}

// UpsertStatesBulk applies the same state change to many alerts as
// independent per-id writes. Partial application on error is acceptable;
// the applied count and any per-id errors are returned.
func (s *AckService) UpsertStatesBulk(alertIDs []string, status database.AckStatus, note, userID string) (int, error) {
	applied := 0
	var errs []error
	for _, id := range alertIDs {
		if _, err := s.UpsertState(id, status, note, userID); err != nil {
			log.Printf("Bulk ack update failed for alert %s: %v", id, err)
			errs = append(errs, fmt.Errorf("alert %s: %w", id, err))
			continue
		}
		applied++
	}
	return applied, errors.Join(errs...)
}

// GetStates fetches stored states for the given alert ids, keyed by id.
// Alerts without a stored state are simply absent from the result.
func (s *AckService) GetStates(alertIDs []string) (map[string]database.AckState, error) {
	result := make(map[string]database.AckState, len(alertIDs))
	if len(alertIDs) == 0 {
		return result, nil
	}

	var rows []database.AckState
	if err := s.db.Where("alert_id IN ?", alertIDs).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		result[row.AlertID] = row
	}
	return result, nil
}

// ResolveMissing auto-resolves states whose alerts no longer appear in the
// current poll: the upstream condition is assumed to have cleared. Returns
// how many states were transitioned.
func (s *AckService) ResolveMissing(observedAlertIDs []string) (int, error) {
	now := s.now().UTC()

	q := s.db.Model(&database.AckState{}).Where("status <> ?", database.AckStatusResolved)
	if len(observedAlertIDs) > 0 {
		q = q.Where("alert_id NOT IN ?", observedAlertIDs)
	}

	result := q.Updates(map[string]interface{}{
		"status":      database.AckStatusResolved,
		"resolved_at": now,
		"updated_at":  now,
	})
	if result.Error != nil {
		return 0, result.Error
	}
	return int(result.RowsAffected), nil
}

// AggregateGroupState derives the display state for a group of alerts with
// priority active > acknowledged > resolved: any active member makes the
// group active, a member without stored state counts as active, and the
// displayed note and timestamps come from the most recently updated member.
func (s *AckService) AggregateGroupState(memberIDs []string) (*GroupAckState, error) {
	// Duplicate ids must not count as extra members
	unique := make([]string, 0, len(memberIDs))
	known := make(map[string]struct{}, len(memberIDs))
	for _, id := range memberIDs {
		if _, ok := known[id]; ok {
			continue
		}
		known[id] = struct{}{}
		unique = append(unique, id)
	}

	states, err := s.GetStates(unique)
	if err != nil {
		return nil, err
	}

	agg := &GroupAckState{Status: database.AckStatusResolved}
	if len(states) < len(unique) {
		// At least one member has no stored state and so is active
		agg.Status = database.AckStatusActive
	}

	var latest *database.AckState
	for _, id := range unique {
		state, ok := states[id]
		if !ok {
			continue
		}
		switch state.Status {
		case database.AckStatusActive:
			agg.Status = database.AckStatusActive
		case database.AckStatusAcknowledged:
			if agg.Status != database.AckStatusActive {
				agg.Status = database.AckStatusAcknowledged
			}
		}
		if latest == nil || state.UpdatedAt.After(latest.UpdatedAt) {
			st := state
			latest = &st
		}
	}

	if len(memberIDs) == 0 || len(states) == 0 {
		// No stored state at all: the group defaults to active
		agg.Status = database.AckStatusActive
	}

	if latest != nil {
		agg.Note = latest.Note
		agg.UpdatedBy = latest.UpdatedBy
		updatedAt := latest.UpdatedAt
		agg.UpdatedAt = &updatedAt
		agg.AcknowledgedAt = latest.AcknowledgedAt
		agg.ResolvedAt = latest.ResolvedAt
	}

	return agg, nil
}
