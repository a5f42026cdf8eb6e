package jobs

import (
	"context"
	"log"
	"time"

	"github.com/alertdeck/alertdeck/internal/alerts"
	"github.com/alertdeck/alertdeck/internal/notify"
	"github.com/alertdeck/alertdeck/internal/services"
	"github.com/alertdeck/alertdeck/internal/ws"
)

// maxSeenIDs bounds the notification dedup set; when exceeded the set is
// rebuilt from the current poll, which at worst re-notifies old alerts.
const maxSeenIDs = 10000

// Poller drives the background poll loop: fetch all sources, push the
// result to connected WebSocket clients, auto-resolve vanished alerts and
// notify on newly seen critical ones.
type Poller struct {
	feed     *services.FeedService
	acks     *services.AckService
	hub      *ws.Hub
	notifier notify.Notifier

	seen   map[string]struct{}
	primed bool
}

// NewPoller creates a poller. hub and notifier may be nil.
func NewPoller(feed *services.FeedService, acks *services.AckService, hub *ws.Hub, notifier notify.Notifier) *Poller {
	return &Poller{
		feed:     feed,
		acks:     acks,
		hub:      hub,
		notifier: notifier,
		seen:     make(map[string]struct{}),
	}
}

// RunCycle executes one poll cycle
func (p *Poller) RunCycle(ctx context.Context) error {
	feed, err := p.feed.Fetch(ctx, services.FeedOptions{})
	if err != nil {
		return err
	}

	if p.hub != nil {
		p.hub.Broadcast("feed", feed)
	}

	// Auto-resolution only runs on clean polls. A failed source means its
	// alerts are merely unobserved, not gone.
	if len(feed.Errors) == 0 {
		resolved, err := p.acks.ResolveMissing(feed.ObservedIDs)
		if err != nil {
			log.Printf("Poller: auto-resolve failed: %v", err)
		} else if resolved > 0 {
			log.Printf("Poller: auto-resolved %d vanished alerts", resolved)
		}
	}

	p.notifyNew(feed)
	return nil
}

// notifyNew sends notifications for critical alerts not seen in any
// previous cycle of this process.
func (p *Poller) notifyNew(feed *services.Feed) {
	firstCycle := !p.primed
	p.primed = true

	var fresh []alerts.Alert
	for _, fa := range feed.Alerts {
		if _, ok := p.seen[fa.ID]; ok {
			continue
		}
		if fa.Severity == alerts.SeverityCritical {
			fresh = append(fresh, fa.Alert)
		}
	}

	if len(p.seen) > maxSeenIDs {
		p.seen = make(map[string]struct{})
	}
	for _, id := range feed.ObservedIDs {
		p.seen[id] = struct{}{}
	}

	// The first cycle after startup only primes the set; everything is
	// "new" then and notifying would replay the backlog.
	if firstCycle || p.notifier == nil {
		return
	}
	p.notifier.NotifyAlerts(fresh)
}

// Start begins the periodic poll loop. The interval is re-read from app
// settings every cycle so changes apply without a restart. Blocks until
// ctx is cancelled.
func (p *Poller) Start(ctx context.Context) {
	for {
		interval := p.refreshInterval()
		select {
		case <-ctx.Done():
			log.Println("Poller stopped")
			return
		case <-time.After(interval):
			if err := p.RunCycle(ctx); err != nil {
				log.Printf("Poller cycle error: %v", err)
			}
		}
	}
}

func (p *Poller) refreshInterval() time.Duration {
	settings, err := p.feed.Settings()
	if err != nil {
		log.Printf("Poller: failed to load settings, using default interval: %v", err)
		return time.Minute
	}
	return settings.RefreshInterval()
}
