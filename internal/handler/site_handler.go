package handler

import (
	app_errors "geotrack/internal/errors"
	"geotrack/internal/models"
	"geotrack/internal/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type CreateSiteRequest struct {
	Name              string  `json:"name" binding:"required"`
	Latitude          float64 `json:"latitude"`
	Longitude         float64 `json:"longitude"`
	RadiusMeters      float64 `json:"radius_meters"`
	AutoTimerEnabled  bool    `json:"auto_timer_enabled"`
	StartDelayMinutes *int    `json:"start_delay_minutes"`
	StopDelayMinutes  *int    `json:"stop_delay_minutes"`
}

type UpdateSiteRequest struct {
	Name              *string  `json:"name"`
	Latitude          *float64 `json:"latitude"`
	Longitude         *float64 `json:"longitude"`
	RadiusMeters      *float64 `json:"radius_meters"`
	AutoTimerEnabled  *bool    `json:"auto_timer_enabled"`
	StartDelayMinutes *int     `json:"start_delay_minutes"`
	StopDelayMinutes  *int     `json:"stop_delay_minutes"`
}

func (s *Server) validateCoordinates(lat, lon float64) *app_errors.APIError {
	if lat < -90 || lat > 90 {
		return app_errors.NewValidationError("latitude must be between -90 and 90")
	}
	if lon < -180 || lon > 180 {
		return app_errors.NewValidationError("longitude must be between -180 and 180")
	}
	return nil
}

func (s *Server) CreateSite(c *gin.Context) {
	var req CreateSiteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, app_errors.NewAPIError(app_errors.ErrInvalidJSON, err.Error()))
		return
	}
	if apiErr := s.validateCoordinates(req.Latitude, req.Longitude); apiErr != nil {
		response.Error(c, apiErr)
		return
	}
	if req.RadiusMeters < 0 {
		response.Error(c, app_errors.NewValidationError("radius_meters must not be negative"))
		return
	}

	engineConfig := s.configManager.GetEngineConfig()
	site := models.Site{
		ID:                uuid.NewString(),
		Name:              req.Name,
		Latitude:          req.Latitude,
		Longitude:         req.Longitude,
		RadiusMeters:      req.RadiusMeters,
		AutoTimerEnabled:  req.AutoTimerEnabled,
		StartDelayMinutes: engineConfig.DefaultStartDelayMin,
		StopDelayMinutes:  engineConfig.DefaultStopDelayMin,
	}
	if site.RadiusMeters == 0 {
		site.RadiusMeters = engineConfig.DefaultRadiusMeters
	}
	if req.StartDelayMinutes != nil {
		site.StartDelayMinutes = *req.StartDelayMinutes
	}
	if req.StopDelayMinutes != nil {
		site.StopDelayMinutes = *req.StopDelayMinutes
	}

	if err := s.DB.Create(&site).Error; err != nil {
		response.Error(c, app_errors.ParseDBError(err))
		return
	}
	s.refreshEngineSites()
	response.Success(c, site)
}

func (s *Server) ListSites(c *gin.Context) {
	var sites []models.Site
	if err := s.DB.Order("created_at ASC").Find(&sites).Error; err != nil {
		response.Error(c, app_errors.ParseDBError(err))
		return
	}
	response.Success(c, sites)
}

func (s *Server) UpdateSite(c *gin.Context) {
	var req UpdateSiteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, app_errors.NewAPIError(app_errors.ErrInvalidJSON, err.Error()))
		return
	}

	var site models.Site
	if err := s.DB.First(&site, "id = ?", c.Param("id")).Error; err != nil {
		response.Error(c, app_errors.ParseDBError(err))
		return
	}

	if req.Name != nil {
		site.Name = *req.Name
	}
	if req.Latitude != nil {
		site.Latitude = *req.Latitude
	}
	if req.Longitude != nil {
		site.Longitude = *req.Longitude
	}
	if apiErr := s.validateCoordinates(site.Latitude, site.Longitude); apiErr != nil {
		response.Error(c, apiErr)
		return
	}
	if req.RadiusMeters != nil {
		if *req.RadiusMeters < 0 {
			response.Error(c, app_errors.NewValidationError("radius_meters must not be negative"))
			return
		}
		site.RadiusMeters = *req.RadiusMeters
	}
	if req.AutoTimerEnabled != nil {
		site.AutoTimerEnabled = *req.AutoTimerEnabled
	}
	if req.StartDelayMinutes != nil {
		site.StartDelayMinutes = *req.StartDelayMinutes
	}
	if req.StopDelayMinutes != nil {
		site.StopDelayMinutes = *req.StopDelayMinutes
	}

	if err := s.DB.Save(&site).Error; err != nil {
		response.Error(c, app_errors.ParseDBError(err))
		return
	}
	s.refreshEngineSites()
	response.Success(c, site)
}

func (s *Server) DeleteSite(c *gin.Context) {
	result := s.DB.Delete(&models.Site{}, "id = ?", c.Param("id"))
	if result.Error != nil {
		response.Error(c, app_errors.ParseDBError(result.Error))
		return
	}
	if result.RowsAffected == 0 {
		response.Error(c, app_errors.ErrResourceNotFound)
		return
	}
	s.refreshEngineSites()
	response.Success(c, gin.H{"deleted": true})
}

// refreshEngineSites pushes the current site list into the engine after any
// site mutation so pending countdowns pick up delay changes immediately.
func (s *Server) refreshEngineSites() {
	var sites []models.Site
	if err := s.DB.Find(&sites).Error; err != nil {
		logrus.WithError(err).Error("Failed to reload sites for engine")
		return
	}
	if err := s.Engine.UpdateSites(sites); err != nil {
		logrus.WithError(err).Error("Failed to update engine site list")
	}
}
