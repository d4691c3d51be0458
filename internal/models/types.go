// Package models defines the database models shared across the application.
package models

import (
	"time"

	"geotrack/internal/types"

	"gorm.io/datatypes"
)

// Site is a registered work-site region. Supplied and managed by the host;
// read-only to the engine.
type Site struct {
	ID                string    `json:"id" gorm:"primaryKey;size:36"`
	Name              string    `json:"name" gorm:"size:255;not null"`
	Latitude          float64   `json:"latitude"`
	Longitude         float64   `json:"longitude"`
	RadiusMeters      float64   `json:"radius_meters"`
	AutoTimerEnabled  bool      `json:"auto_timer_enabled" gorm:"index"`
	StartDelayMinutes int       `json:"start_delay_minutes"`
	StopDelayMinutes  int       `json:"stop_delay_minutes"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// HasCoordinates reports whether the site carries usable coordinates.
// A site at exactly (0, 0) is treated as unset; it is the null island the
// reference app produced for jobs without a picked location.
func (s *Site) HasCoordinates() bool {
	return s.Latitude != 0 || s.Longitude != 0
}

// WorkRecord is the work-history entry persisted when a session stops.
type WorkRecord struct {
	ID         string           `json:"id" gorm:"primaryKey;size:36"`
	SiteID     string           `json:"site_id" gorm:"size:36;index;not null"`
	Date       string           `json:"date" gorm:"size:10;index"` // YYYY-MM-DD
	StartTime  time.Time        `json:"start_time"`
	EndTime    time.Time        `json:"end_time"`
	Seconds    int64            `json:"seconds"`
	Provenance types.Provenance `json:"provenance" gorm:"size:16"`
	Note       string           `json:"note" gorm:"size:512"`
	CreatedAt  time.Time        `json:"created_at"`
}

// TransitionLog is a bounded history of geofence transitions, kept for
// debugging. Only the newest rows are retained (see EngineConfig
// TransitionHistoryLimit).
type TransitionLog struct {
	ID             uint            `json:"id" gorm:"primaryKey"`
	SiteID         string          `json:"site_id" gorm:"size:36;index"`
	Kind           types.EventKind `json:"kind" gorm:"size:8"`
	Source         string          `json:"source" gorm:"size:16"` // foreground | background
	DistanceMeters float64         `json:"distance_meters"`
	Location       datatypes.JSON  `json:"location,omitempty"`
	Timestamp      time.Time       `json:"timestamp" gorm:"index"`
	CreatedAt      time.Time       `json:"created_at"`
}
