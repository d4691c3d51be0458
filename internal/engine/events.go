package engine

import (
	"encoding/json"
	"time"

	"geotrack/internal/types"

	"github.com/sirupsen/logrus"
)

// StatusChannel carries engine status snapshots for external consumers
// (widgets, live views). Payloads are JSON-encoded Status values.
const StatusChannel = "autotimer:status"

// Status is the externally visible engine state, published on every
// transition and returned by the status endpoint.
type Status struct {
	Enabled        bool              `json:"enabled"`
	State          types.EngineState `json:"state"`
	SiteID         string            `json:"site_id,omitempty"`
	SessionStart   *time.Time        `json:"session_start,omitempty"`
	Provenance     types.Provenance  `json:"provenance,omitempty"`
	Paused         bool              `json:"paused"`
	ElapsedSeconds int64             `json:"elapsed_seconds"`
	Pending        *PendingAction    `json:"pending,omitempty"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// publishStatusLocked persists the durable snapshot and broadcasts the
// status. Best effort: a publish failure is logged, never propagated, so
// observers cannot block a transition.
func (e *Engine) publishStatusLocked() {
	now := e.now()
	status := Status{
		Enabled:   e.enabled,
		State:     e.state,
		SiteID:    e.siteID,
		UpdatedAt: now,
	}
	snapshot := Snapshot{
		Enabled:   e.enabled,
		State:     e.state,
		SiteID:    e.siteID,
		UpdatedAt: now,
	}

	if session, err := e.sessions.GetActive(); err == nil && session != nil {
		start := session.StartTime
		status.SessionStart = &start
		status.Provenance = session.Provenance
		status.Paused = session.Paused
		status.ElapsedSeconds = session.ElapsedSeconds(now)
		snapshot.SessionStart = &start
	}
	if e.siteID != "" {
		if pending, err := e.sessions.LoadPending(e.siteID); err == nil && pending != nil {
			status.Pending = pending
			snapshot.Pending = pending
		}
	}

	if err := e.sessions.SaveSnapshot(&snapshot); err != nil {
		logrus.WithError(err).Error("Failed to persist engine state snapshot")
	}

	payload, err := json.Marshal(status)
	if err != nil {
		logrus.WithError(err).Error("Failed to encode engine status")
		return
	}
	if err := e.store.Publish(StatusChannel, payload); err != nil {
		logrus.WithError(err).Warn("Failed to publish engine status")
	}
}

// Status returns the current externally visible state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	status := Status{
		Enabled:   e.enabled,
		State:     e.state,
		SiteID:    e.siteID,
		UpdatedAt: now,
	}
	if session, err := e.sessions.GetActive(); err == nil && session != nil {
		start := session.StartTime
		status.SessionStart = &start
		status.Provenance = session.Provenance
		status.Paused = session.Paused
		status.ElapsedSeconds = session.ElapsedSeconds(now)
	}
	if e.siteID != "" {
		if pending, err := e.sessions.LoadPending(e.siteID); err == nil && pending != nil {
			status.Pending = pending
		}
	}
	return status
}
