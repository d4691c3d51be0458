// Package geofence classifies location samples against registered site
// regions and deduplicates the resulting transition events.
package geofence

import (
	"math"
	"sync"
	"time"

	"geotrack/internal/geo"
	"geotrack/internal/models"
	"geotrack/internal/types"

	"github.com/sirupsen/logrus"
)

// LocationSample is a single device position fix.
type LocationSample struct {
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	AccuracyMeters float64   `json:"accuracy_meters"`
	Timestamp      time.Time `json:"timestamp"`
}

// TransitionEvent is emitted exactly when a site's inside/outside state flips.
type TransitionEvent struct {
	SiteID         string          `json:"site_id"`
	Kind           types.EventKind `json:"kind"`
	Timestamp      time.Time       `json:"timestamp"`
	Latitude       float64         `json:"latitude"`
	Longitude      float64         `json:"longitude"`
	DistanceMeters float64         `json:"distance_meters"`
}

// SiteStatus is the per-site classification state. Ephemeral: rebuilt every
// time monitoring restarts.
type SiteStatus struct {
	SiteID         string    `json:"site_id"`
	Inside         bool      `json:"inside"`
	DistanceMeters float64   `json:"distance_meters"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Monitor classifies samples per site with asymmetric-radius hysteresis:
// a site is entered at the configured radius but must be left by more than
// radius * hysteresis factor, so GPS noise near the boundary cannot flap
// the state.
type Monitor struct {
	mu       sync.Mutex
	cfg      types.EngineConfig
	statuses map[string]*SiteStatus
}

// NewMonitor creates a monitor with the given policy configuration.
func NewMonitor(cfg types.EngineConfig) *Monitor {
	return &Monitor{
		cfg:      cfg,
		statuses: make(map[string]*SiteStatus),
	}
}

// Observe evaluates one location sample against the given sites and returns
// the transitions it caused. Sites without auto-timer or without valid
// coordinates are skipped; the first observation of a site starts from
// "outside".
func (m *Monitor) Observe(sample LocationSample, sites []models.Site) []TransitionEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	at := sample.Timestamp
	if at.IsZero() {
		at = time.Now()
	}

	var events []TransitionEvent
	for i := range sites {
		site := &sites[i]
		if !site.AutoTimerEnabled || !site.HasCoordinates() {
			continue
		}

		distance := geo.Distance(sample.Latitude, sample.Longitude, site.Latitude, site.Longitude)
		entryRadius := m.effectiveRadius(site)
		exitRadius := entryRadius * m.cfg.HysteresisFactor

		status, known := m.statuses[site.ID]
		wasInside := known && status.Inside

		var inside bool
		if wasInside {
			// Currently inside: must travel past the larger exit radius to leave.
			inside = distance <= exitRadius
		} else {
			inside = distance <= entryRadius
		}

		if !known {
			status = &SiteStatus{SiteID: site.ID}
			m.statuses[site.ID] = status
		}
		status.Inside = inside
		status.DistanceMeters = distance
		status.UpdatedAt = at

		if known && wasInside != inside {
			kind := types.EventExit
			if inside {
				kind = types.EventEnter
			}
			logrus.WithFields(logrus.Fields{
				"site":     site.ID,
				"kind":     kind,
				"distance": math.Round(distance),
				"entry_r":  entryRadius,
				"exit_r":   exitRadius,
			}).Debug("Geofence transition")
			events = append(events, TransitionEvent{
				SiteID:         site.ID,
				Kind:           kind,
				Timestamp:      at,
				Latitude:       sample.Latitude,
				Longitude:      sample.Longitude,
				DistanceMeters: distance,
			})
		} else if !known && inside {
			// First ever sample already places the device inside the site.
			events = append(events, TransitionEvent{
				SiteID:         site.ID,
				Kind:           types.EventEnter,
				Timestamp:      at,
				Latitude:       sample.Latitude,
				Longitude:      sample.Longitude,
				DistanceMeters: distance,
			})
		}
	}
	return events
}

// RevertTransition undoes the inside/outside flip that produced the event,
// so a retried sample emits the transition again. Called when acting on the
// event failed before it took durable effect.
func (m *Monitor) RevertTransition(event TransitionEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	status, ok := m.statuses[event.SiteID]
	if !ok {
		return
	}
	// The state before an enter was outside (a first observation counts as
	// outside too), before an exit inside.
	status.Inside = event.Kind == types.EventExit
}

// Status returns the classification state for one site, or nil if the site
// has not been observed yet.
func (m *Monitor) Status(siteID string) *SiteStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	status, ok := m.statuses[siteID]
	if !ok {
		return nil
	}
	copied := *status
	return &copied
}

// Statuses returns a snapshot of all per-site classification states.
func (m *Monitor) Statuses() []SiteStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SiteStatus, 0, len(m.statuses))
	for _, status := range m.statuses {
		out = append(out, *status)
	}
	return out
}

// SitesInside returns the ids of sites whose last classification was inside.
func (m *Monitor) SitesInside() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, status := range m.statuses {
		if status.Inside {
			ids = append(ids, id)
		}
	}
	return ids
}

// Reset discards all per-site state. Called when monitoring (re)starts.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = make(map[string]*SiteStatus)
}

// MovementThresholdMeters returns the minimum device movement before the
// host's location provider should deliver a new sample. Smaller geofences
// need a finer threshold or the transition can be stepped over entirely.
func (m *Monitor) MovementThresholdMeters(sites []models.Site) float64 {
	smallest := math.MaxFloat64
	for i := range sites {
		site := &sites[i]
		if !site.AutoTimerEnabled || !site.HasCoordinates() {
			continue
		}
		if r := m.effectiveRadius(site); r < smallest {
			smallest = r
		}
	}
	switch {
	case smallest <= 30:
		return 5
	case smallest <= 50:
		return 10
	default:
		return 15
	}
}

func (m *Monitor) effectiveRadius(site *models.Site) float64 {
	radius := site.RadiusMeters
	if radius <= 0 {
		radius = m.cfg.DefaultRadiusMeters
	}
	if radius < m.cfg.MinRadiusMeters {
		radius = m.cfg.MinRadiusMeters
	}
	return radius
}
