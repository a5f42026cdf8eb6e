package services

import (
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/alertdeck/alertdeck/internal/database"
)

// Backoff window bounds for failing sources
const (
	baseBackoff = 30 * time.Second
	maxBackoff  = 15 * time.Minute
)

// HealthService is the source health tracker: per-source success/failure
// bookkeeping and the exponential backoff gate consulted by the fetch
// orchestrator. Rows are created lazily and never deleted.
type HealthService struct {
	db  *gorm.DB
	now func() time.Time

	// Writes are read-modify-write on one logical row; the keyed lock
	// serializes concurrent polls for the same source.
	locks *keyedLocks
}

// NewHealthService creates a health service over the given database
func NewHealthService(db *gorm.DB) *HealthService {
	return &HealthService{db: db, now: time.Now, locks: newKeyedLocks()}
}

// RecordSuccess resets the failure streak and clears any backoff window
func (s *HealthService) RecordSuccess(sourceType database.SourceTypeName, sourceID string) {
	unlock := s.locks.lock(string(sourceType) + "/" + sourceID)
	defer unlock()

	row, err := s.getOrCreate(sourceType, sourceID)
	if err != nil {
		log.Printf("Health tracker: failed to load row for %s/%s: %v", sourceType, sourceID, err)
		return
	}

	now := s.now().UTC()
	row.LastSuccessAt = &now
	row.FailCount = 0
	row.NextRetryAt = nil

	if err := s.db.Save(row).Error; err != nil {
		log.Printf("Health tracker: failed to record success for %s/%s: %v", sourceType, sourceID, err)
	}
}

// RecordFailure bumps the failure streak and schedules the next retry using
// a capped exponential backoff.
func (s *HealthService) RecordFailure(sourceType database.SourceTypeName, sourceID string, message string) {
	unlock := s.locks.lock(string(sourceType) + "/" + sourceID)
	defer unlock()

	row, err := s.getOrCreate(sourceType, sourceID)
	if err != nil {
		log.Printf("Health tracker: failed to load row for %s/%s: %v", sourceType, sourceID, err)
		return
	}

	now := s.now().UTC()
	row.FailCount++
	row.LastErrorAt = &now
	row.LastErrorMessage = message
	next := now.Add(BackoffDelay(row.FailCount))
	row.NextRetryAt = &next

	if err := s.db.Save(row).Error; err != nil {
		log.Printf("Health tracker: failed to record failure for %s/%s: %v", sourceType, sourceID, err)
	}
}

// InBackoff reports whether the source is inside its cooldown window
func (s *HealthService) InBackoff(sourceType database.SourceTypeName, sourceID string) (time.Time, bool) {
	var row database.SourceHealth
	err := s.db.Where("source_type = ? AND source_id = ?", sourceType, sourceID).First(&row).Error
	if err != nil {
		return time.Time{}, false
	}
	if row.NextRetryAt == nil || !s.now().Before(*row.NextRetryAt) {
		return time.Time{}, false
	}
	return *row.NextRetryAt, true
}

// Get returns the health row for one source
func (s *HealthService) Get(sourceType database.SourceTypeName, sourceID string) (*database.SourceHealth, error) {
	var row database.SourceHealth
	if err := s.db.Where("source_type = ? AND source_id = ?", sourceType, sourceID).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// List returns all health rows ordered by source type and id
func (s *HealthService) List() ([]database.SourceHealth, error) {
	var rows []database.SourceHealth
	if err := s.db.Order("source_type asc, source_id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// getOrCreate loads the row for a source, creating it on first contact
func (s *HealthService) getOrCreate(sourceType database.SourceTypeName, sourceID string) (*database.SourceHealth, error) {
	var row database.SourceHealth
	err := s.db.Where("source_type = ? AND source_id = ?", sourceType, sourceID).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		row = database.SourceHealth{SourceType: sourceType, SourceID: sourceID}
		if err := s.db.Create(&row).Error; err != nil {
			return nil, err
		}
		return &row, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// BackoffDelay returns the cooldown for the given consecutive failure count.
// It doubles per failure from baseBackoff and is capped at maxBackoff, so the
// sequence is monotonic non-decreasing.
func BackoffDelay(failCount int) time.Duration {
	if failCount <= 1 {
		return baseBackoff
	}
	// Past this many doublings the cap always wins; avoids shift overflow
	if failCount > 10 {
		return maxBackoff
	}
	d := baseBackoff << (failCount - 1)
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}
