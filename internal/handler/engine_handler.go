package handler

import (
	"time"

	app_errors "geotrack/internal/errors"
	"geotrack/internal/geofence"
	"geotrack/internal/models"
	"geotrack/internal/response"
	"geotrack/internal/types"

	"github.com/gin-gonic/gin"
)

type LocationSampleRequest struct {
	// pointers so a legitimate 0 coordinate is distinguishable from absent
	Latitude       *float64   `json:"latitude" binding:"required"`
	Longitude      *float64   `json:"longitude" binding:"required"`
	AccuracyMeters float64    `json:"accuracy_meters"`
	Timestamp      *time.Time `json:"timestamp"`
}

// PostLocation feeds a foreground location sample into the engine.
func (s *Server) PostLocation(c *gin.Context) {
	var req LocationSampleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, app_errors.NewAPIError(app_errors.ErrInvalidJSON, err.Error()))
		return
	}
	if apiErr := s.validateCoordinates(*req.Latitude, *req.Longitude); apiErr != nil {
		response.Error(c, apiErr)
		return
	}

	sample := geofence.LocationSample{
		Latitude:       *req.Latitude,
		Longitude:      *req.Longitude,
		AccuracyMeters: req.AccuracyMeters,
	}
	if req.Timestamp != nil {
		sample.Timestamp = *req.Timestamp
	}
	if err := s.Engine.HandleLocation(sample); err != nil {
		response.Error(c, app_errors.NewAPIError(app_errors.ErrInternalServer, err.Error()))
		return
	}
	response.Success(c, s.Engine.Status())
}

type GeofenceCallbackRequest struct {
	EventType string     `json:"event_type" binding:"required"`
	SiteID    string     `json:"site_id" binding:"required"`
	Timestamp *time.Time `json:"timestamp"`
}

// GeofenceCallback services the OS background geofence callback.
func (s *Server) GeofenceCallback(c *gin.Context) {
	var req GeofenceCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, app_errors.NewAPIError(app_errors.ErrInvalidJSON, err.Error()))
		return
	}
	kind := types.EventKind(req.EventType)
	if !kind.Valid() {
		response.Error(c, app_errors.NewValidationError("event_type must be enter or exit"))
		return
	}

	var at time.Time
	if req.Timestamp != nil {
		at = *req.Timestamp
	}
	if err := s.Engine.HandleBackgroundEvent(kind, req.SiteID, at); err != nil {
		response.Error(c, app_errors.NewAPIError(app_errors.ErrInternalServer, err.Error()))
		return
	}
	response.Success(c, s.Engine.Status())
}

type EngineEnabledRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// SetEngineEnabled is the master toggle for automatic session control.
// Disabling cancels a running countdown but never an active session.
func (s *Server) SetEngineEnabled(c *gin.Context) {
	var req EngineEnabledRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, app_errors.NewAPIError(app_errors.ErrInvalidJSON, err.Error()))
		return
	}
	if err := s.Engine.SetEnabled(*req.Enabled); err != nil {
		response.Error(c, app_errors.NewAPIError(app_errors.ErrInternalServer, err.Error()))
		return
	}
	response.Success(c, s.Engine.Status())
}

// GetTrackingConfig returns the location-provider policy the host should
// apply for the current site set. The movement threshold shrinks with the
// smallest effective radius so small sites are not missed.
func (s *Server) GetTrackingConfig(c *gin.Context) {
	response.Success(c, gin.H{
		"movement_threshold_meters": s.Engine.MovementThresholdMeters(),
		"sample_interval_seconds":   10,
		"accuracy_mode":             "balanced",
	})
}

// AppForeground is the host's foreground-resume signal: reconcile durable
// state before the foreground loop takes over.
func (s *Server) AppForeground(c *gin.Context) {
	if err := s.Engine.Reconcile(); err != nil {
		response.Error(c, app_errors.NewAPIError(app_errors.ErrInternalServer, err.Error()))
		return
	}
	response.Success(c, s.Engine.Status())
}

type StartSessionRequest struct {
	SiteID string `json:"site_id" binding:"required"`
	Note   string `json:"note"`
}

// StartSession starts a manual session. Manual sessions are immune to
// automatic control.
func (s *Server) StartSession(c *gin.Context) {
	var req StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, app_errors.NewAPIError(app_errors.ErrInvalidJSON, err.Error()))
		return
	}
	var site models.Site
	if err := s.DB.First(&site, "id = ?", req.SiteID).Error; err != nil {
		response.Error(c, app_errors.ParseDBError(err))
		return
	}
	if err := s.Engine.StartManualSession(req.SiteID, req.Note); err != nil {
		response.Error(c, app_errors.NewAPIError(app_errors.ErrSessionConflict, err.Error()))
		return
	}
	response.Success(c, s.Engine.Status())
}

func (s *Server) PauseSession(c *gin.Context) {
	if err := s.Engine.PauseSession(); err != nil {
		response.Error(c, app_errors.NewAPIError(app_errors.ErrSessionConflict, err.Error()))
		return
	}
	response.Success(c, s.Engine.Status())
}

func (s *Server) ResumeSession(c *gin.Context) {
	if err := s.Engine.ResumeSession(); err != nil {
		response.Error(c, app_errors.NewAPIError(app_errors.ErrSessionConflict, err.Error()))
		return
	}
	response.Success(c, s.Engine.Status())
}

// StopSession is the user-initiated forced stop.
func (s *Server) StopSession(c *gin.Context) {
	if err := s.Engine.ForceStopSession(); err != nil {
		response.Error(c, app_errors.NewAPIError(app_errors.ErrSessionConflict, err.Error()))
		return
	}
	response.Success(c, s.Engine.Status())
}

func (s *Server) GetStatus(c *gin.Context) {
	response.Success(c, s.Engine.Status())
}

// ListTransitions returns the bounded geofence transition history, newest
// first.
func (s *Server) ListTransitions(c *gin.Context) {
	var transitions []models.TransitionLog
	limit := s.configManager.GetEngineConfig().TransitionHistoryLimit
	if err := s.DB.Order("id DESC").Limit(limit).Find(&transitions).Error; err != nil {
		response.Error(c, app_errors.ParseDBError(err))
		return
	}
	response.Success(c, transitions)
}

// ListRecords returns work-history entries, newest first. An optional
// site_id query narrows the result.
func (s *Server) ListRecords(c *gin.Context) {
	query := s.DB.Order("start_time DESC")
	if siteID := c.Query("site_id"); siteID != "" {
		query = query.Where("site_id = ?", siteID)
	}
	var records []models.WorkRecord
	if err := query.Find(&records).Error; err != nil {
		response.Error(c, app_errors.ParseDBError(err))
		return
	}
	response.Success(c, records)
}
