package services

import (
	"context"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/alertdeck/alertdeck/internal/alerts"
	"github.com/alertdeck/alertdeck/internal/database"
)

// FeedOptions controls how the alert feed is assembled
type FeedOptions struct {
	// Grouped collapses duplicates into one representative per incident
	Grouped bool
	// IncludeSilenced keeps alerts matched by active silence rules
	IncludeSilenced bool
}

// FeedAlert is one canonical alert joined with its ack state and, when the
// feed is grouped, its group metadata.
type FeedAlert struct {
	alerts.Alert
	AckStatus database.AckStatus `json:"ack_status"`
	AckNote   string             `json:"ack_note,omitempty"`
	AckBy     string             `json:"ack_by,omitempty"`

	GroupKey        string   `json:"group_key,omitempty"`
	GroupSize       int      `json:"group_size,omitempty"`
	GroupedAlertIDs []string `json:"grouped_alert_ids,omitempty"`
}

// Feed is one assembled view of the unified alert stream
type Feed struct {
	Alerts    []FeedAlert          `json:"alerts"`
	Errors    []alerts.SourceError `json:"errors"`
	FetchedAt time.Time            `json:"fetched_at"`

	// ObservedIDs holds every alert identity seen this poll, including
	// silenced ones; silencing hides alerts, it does not resolve them.
	ObservedIDs []string `json:"-"`
}

// FeedService runs the full pipeline: orchestrated fetch, ack-state join,
// timestamp sort, silence filtering and optional grouping.
type FeedService struct {
	db       *gorm.DB
	orch     *alerts.Orchestrator
	sources  *SourceService
	acks     *AckService
	silences *SilenceService
	now      func() time.Time
}

// NewFeedService wires the pipeline over its collaborators
func NewFeedService(db *gorm.DB, orch *alerts.Orchestrator, sources *SourceService, acks *AckService, silences *SilenceService) *FeedService {
	return &FeedService{
		db:       db,
		orch:     orch,
		sources:  sources,
		acks:     acks,
		silences: silences,
		now:      time.Now,
	}
}

// Fetch assembles the current feed. Per-source failures degrade the result
// instead of failing it; only local persistence errors are returned.
func (s *FeedService) Fetch(ctx context.Context, opts FeedOptions) (*Feed, error) {
	sources, err := s.sources.ListEnabled()
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	result := s.orch.FetchAll(ctx, sources)

	flat := result.Alerts
	alerts.SortByTimestampDesc(flat)

	observed := make([]string, len(flat))
	for i, a := range flat {
		observed[i] = a.ID
	}

	if !opts.IncludeSilenced {
		rules, err := s.silences.ListActive(now)
		if err != nil {
			// A silence lookup failure must not hide the feed itself
			log.Printf("Silence rule lookup failed, serving unfiltered feed: %v", err)
		} else {
			flat = alerts.ApplySilences(flat, rules, now)
		}
	}

	feed := &Feed{FetchedAt: now, Errors: result.Errors, ObservedIDs: observed}

	if opts.Grouped {
		feed.Alerts, err = s.buildGrouped(flat)
	} else {
		feed.Alerts, err = s.buildFlat(flat)
	}
	if err != nil {
		return nil, err
	}
	return feed, nil
}

// buildFlat joins each alert with its stored ack state
func (s *FeedService) buildFlat(flat []alerts.Alert) ([]FeedAlert, error) {
	ids := make([]string, len(flat))
	for i, a := range flat {
		ids[i] = a.ID
	}
	states, err := s.acks.GetStates(ids)
	if err != nil {
		return nil, err
	}

	out := make([]FeedAlert, 0, len(flat))
	for _, a := range flat {
		fa := FeedAlert{Alert: a, AckStatus: database.AckStatusActive}
		if state, ok := states[a.ID]; ok {
			fa.AckStatus = state.Status
			fa.AckNote = state.Note
			fa.AckBy = state.UpdatedBy
		}
		out = append(out, fa)
	}
	return out, nil
}

// buildGrouped collapses the feed to representatives and aggregates ack
// state across each group's members.
func (s *FeedService) buildGrouped(flat []alerts.Alert) ([]FeedAlert, error) {
	groups := alerts.GroupAlerts(flat)

	out := make([]FeedAlert, 0, len(groups))
	for _, g := range groups {
		agg, err := s.acks.AggregateGroupState(g.GroupedAlertIDs)
		if err != nil {
			return nil, err
		}
		out = append(out, FeedAlert{
			Alert:           g.Alert,
			AckStatus:       agg.Status,
			AckNote:         agg.Note,
			AckBy:           agg.UpdatedBy,
			GroupKey:        g.GroupKey,
			GroupSize:       g.GroupSize,
			GroupedAlertIDs: g.GroupedAlertIDs,
		})
	}
	return out, nil
}

// Settings returns the app settings singleton
func (s *FeedService) Settings() (*database.AppSettings, error) {
	return database.GetOrCreateAppSettings(s.db)
}

// UpdateSettings persists the app settings singleton
func (s *FeedService) UpdateSettings(settings *database.AppSettings) error {
	return database.UpdateAppSettings(s.db, settings)
}
