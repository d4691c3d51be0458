// Package engine implements the auto-timer state machine: delayed
// start/stop transitions driven by geofence events, durable session and
// pending-action records, and the reconciliation pass that makes the design
// correct across process restarts.
package engine

import (
	"time"

	"geotrack/internal/types"
)

// SchemaVersion is written into every durable record so future layouts can
// be migrated on read.
const SchemaVersion = 1

// ActiveSession is the durable record of the single running work session.
type ActiveSession struct {
	SchemaVersion int              `json:"schema_version"`
	SiteID        string           `json:"site_id"`
	StartTime     time.Time        `json:"start_time"`
	Provenance    types.Provenance `json:"provenance"`
	Note          string           `json:"note,omitempty"`
	Paused        bool             `json:"paused"`
	PausedAt      time.Time        `json:"paused_at,omitempty"`
	PausedSeconds int64            `json:"paused_seconds"`
}

// ElapsedSeconds returns worked time as of the given instant, excluding
// paused spans. Never negative.
func (s *ActiveSession) ElapsedSeconds(now time.Time) int64 {
	paused := s.PausedSeconds
	if s.Paused && !s.PausedAt.IsZero() && now.After(s.PausedAt) {
		paused += int64(now.Sub(s.PausedAt).Seconds())
	}
	elapsed := int64(now.Sub(s.StartTime).Seconds()) - paused
	if elapsed < 0 {
		elapsed = 0
	}
	return elapsed
}

// IsManual reports whether the session was started by explicit user action.
// The engine must never stop or reinterpret a manual session.
func (s *ActiveSession) IsManual() bool {
	return s.Provenance == types.ProvenanceManual
}

// PendingAction is a scheduled but not yet executed start or stop. At most
// one exists per site. The in-memory timer that may accompany it is only a
// latency optimization; the record plus wall-clock comparison is ground
// truth.
type PendingAction struct {
	SchemaVersion int              `json:"schema_version"`
	SiteID        string           `json:"site_id"`
	Kind          types.ActionKind `json:"kind"`
	CreatedAt     time.Time        `json:"created_at"`
	DelaySeconds  int64            `json:"delay_seconds"`
	TargetTime    time.Time        `json:"target_time"`
}

// Overdue reports whether the action's deadline has passed. An overdue
// action is executed immediately at reconciliation, no matter how old.
func (p *PendingAction) Overdue(now time.Time) bool {
	return !p.TargetTime.After(now)
}

// Snapshot is the durable singleton engine-state record read back by the
// reconciliation pass and exposed to status consumers.
type Snapshot struct {
	SchemaVersion int               `json:"schema_version"`
	Enabled       bool              `json:"enabled"`
	State         types.EngineState `json:"state"`
	SiteID        string            `json:"site_id,omitempty"`
	SessionStart  *time.Time        `json:"session_start,omitempty"`
	Pending       *PendingAction    `json:"pending,omitempty"`
	UpdatedAt     time.Time         `json:"updated_at"`
}
