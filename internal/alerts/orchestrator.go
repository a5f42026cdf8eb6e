package alerts

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/alertdeck/alertdeck/internal/database"
)

// DefaultFetchTimeout bounds one adapter call when the caller's context
// carries no deadline of its own.
const DefaultFetchTimeout = 15 * time.Second

// HealthGate is the orchestrator's view of the source health tracker
type HealthGate interface {
	// InBackoff reports whether the source is cooling down, and until when
	InBackoff(sourceType database.SourceTypeName, sourceID string) (time.Time, bool)

	// RecordSuccess clears the failure streak after a successful fetch
	RecordSuccess(sourceType database.SourceTypeName, sourceID string)

	// RecordFailure bumps the failure streak and schedules the next retry
	RecordFailure(sourceType database.SourceTypeName, sourceID string, message string)
}

// SourceError describes one source that produced no alerts this poll
type SourceError struct {
	Source  string    `json:"source"`
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// FetchResult aggregates one poll across all configured sources
type FetchResult struct {
	Alerts []Alert       `json:"alerts"`
	Errors []SourceError `json:"errors"`
}

// Orchestrator fans fetches out to every configured source concurrently and
// collects both successes and failures. It is stateless per invocation; the
// health tracker is the only shared mutable collaborator.
type Orchestrator struct {
	adapters map[database.SourceTypeName]SourceAdapter
	health   HealthGate
	timeout  time.Duration
}

// NewOrchestrator creates an orchestrator over the given adapters
func NewOrchestrator(health HealthGate, adapters ...SourceAdapter) *Orchestrator {
	m := make(map[database.SourceTypeName]SourceAdapter, len(adapters))
	for _, a := range adapters {
		m[a.SourceType()] = a
	}
	return &Orchestrator{adapters: m, health: health, timeout: DefaultFetchTimeout}
}

// SetFetchTimeout overrides the per-source fetch budget
func (o *Orchestrator) SetFetchTimeout(d time.Duration) {
	if d > 0 {
		o.timeout = d
	}
}

type fetchJob struct {
	src    database.SourceConfig
	alerts []Alert
	err    error
}

// FetchAll polls every enabled source concurrently and merges the results
// after all have settled. A failing or cooling-down source never prevents
// collection from the others. The error list is ordered by source type, then
// by configuration order; the alert list carries no ordering guarantee.
func (o *Orchestrator) FetchAll(ctx context.Context, sources []database.SourceConfig) FetchResult {
	jobs := make([]*fetchJob, 0, len(sources))
	for _, src := range sources {
		if !src.Enabled || src.URL == "" {
			continue
		}
		jobs = append(jobs, &fetchJob{src: src})
	}
	sortJobs(jobs)

	var wg sync.WaitGroup
	for _, job := range jobs {
		wg.Add(1)
		go func(j *fetchJob) {
			defer wg.Done()
			o.fetchOne(ctx, j)
		}(job)
	}
	wg.Wait()

	result := FetchResult{}
	for _, j := range jobs {
		if j.err != nil {
			result.Errors = append(result.Errors, SourceError{
				Source:  fmt.Sprintf("%s (%s)", j.src.Type.DisplayName(), j.src.Name),
				Kind:    KindOf(j.err),
				Message: j.err.Error(),
			})
			continue
		}
		result.Alerts = append(result.Alerts, j.alerts...)
	}
	return result
}

// fetchOne runs a single source through the backoff gate and its adapter
func (o *Orchestrator) fetchOne(ctx context.Context, j *fetchJob) {
	src := j.src

	if until, cooling := o.health.InBackoff(src.Type, src.UUID); cooling {
		// Synthetic error: the source was skipped, health is untouched
		j.err = &FetchError{
			Kind:    ErrorBackoff,
			Message: fmt.Sprintf("Backoff active until %s", until.UTC().Format(time.RFC3339)),
		}
		return
	}

	adapter, ok := o.adapters[src.Type]
	if !ok {
		j.err = ConfigInvalid("no adapter registered for source type %q", src.Type)
		o.health.RecordFailure(src.Type, src.UUID, j.err.Error())
		return
	}

	fetchCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	alerts, err := adapter.Fetch(fetchCtx, src)
	if err != nil {
		log.Printf("Fetch failed for %s (%s): %v", src.Type, src.Name, err)
		o.health.RecordFailure(src.Type, src.UUID, err.Error())
		j.err = err
		return
	}

	o.health.RecordSuccess(src.Type, src.UUID)
	j.alerts = alerts
}

// sortJobs orders jobs by canonical source type order, then by configured
// row order, so the error list is stable across polls.
func sortJobs(jobs []*fetchJob) {
	rank := make(map[database.SourceTypeName]int)
	for i, t := range database.ValidSourceTypes() {
		rank[t] = i
	}
	sort.SliceStable(jobs, func(i, j int) bool {
		ri, rj := rank[jobs[i].src.Type], rank[jobs[j].src.Type]
		if ri != rj {
			return ri < rj
		}
		return jobs[i].src.ID < jobs[j].src.ID
	})
}
