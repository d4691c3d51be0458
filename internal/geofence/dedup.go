package geofence

import (
	"fmt"
	"sync"
	"time"

	"geotrack/internal/types"
)

const staleEntryAge = 60 * time.Second

// Deduplicator suppresses repeated transition events of the same kind for
// the same site within a short window. Geofence providers frequently deliver
// the same crossing more than once (foreground and background paths, or a
// provider retry), and acting on the duplicate would wrongly restart delay
// countdowns.
type Deduplicator struct {
	mu        sync.Mutex
	window    time.Duration
	lastSeen  map[string]time.Time
	lastPurge time.Time
	now       func() time.Time
}

// NewDeduplicator creates a deduplicator with the configured suppression
// window.
func NewDeduplicator(cfg types.EngineConfig) *Deduplicator {
	return &Deduplicator{
		window:   time.Duration(cfg.DedupWindowSeconds) * time.Second,
		lastSeen: make(map[string]time.Time),
		now:      time.Now,
	}
}

// Accept reports whether the event should be processed. A duplicate of the
// same (site, kind) pair within the window is rejected; an accepted event
// refreshes the window.
func (d *Deduplicator) Accept(siteID string, kind types.EventKind, at time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if at.IsZero() {
		at = d.now()
	}
	d.purgeLocked(at)

	key := fmt.Sprintf("%s:%s", siteID, kind)
	if last, ok := d.lastSeen[key]; ok && at.Sub(last) < d.window {
		return false
	}
	d.lastSeen[key] = at
	return true
}

// Forget drops the remembered timestamp for one (site, kind) pair so the
// same event can be accepted again. Called when acting on an accepted event
// failed and the source is expected to retry it.
func (d *Deduplicator) Forget(siteID string, kind types.EventKind) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.lastSeen, fmt.Sprintf("%s:%s", siteID, kind))
}

// Reset drops all remembered events.
func (d *Deduplicator) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastSeen = make(map[string]time.Time)
	d.lastPurge = time.Time{}
}

// purgeLocked evicts entries older than a minute, at most once a minute so
// a steady event stream does not rescan the map on every call.
func (d *Deduplicator) purgeLocked(at time.Time) {
	if at.Sub(d.lastPurge) < time.Minute {
		return
	}
	d.lastPurge = at
	for key, seen := range d.lastSeen {
		if at.Sub(seen) > staleEntryAge {
			delete(d.lastSeen, key)
		}
	}
}
