package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"geotrack/internal/engine"
	"geotrack/internal/models"
	"geotrack/internal/response"
	"geotrack/internal/types"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedSite(t *testing.T, server *Server, site models.Site) {
	t.Helper()
	require.NoError(t, server.DB.Create(&site).Error)
	var sites []models.Site
	require.NoError(t, server.DB.Find(&sites).Error)
	require.NoError(t, server.Engine.UpdateSites(sites))
}

// TestPostLocation_StartsSessionInsideSite tests the foreground sample path
func TestPostLocation_StartsSessionInsideSite(t *testing.T) {
	server := setupTestServer(t)
	seedSite(t, server, models.Site{
		ID: "site-1", Name: "Yard", Latitude: 48.1, Longitude: 11.5,
		RadiusMeters: 50, AutoTimerEnabled: true,
	})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(t, http.MethodPost, "/api/location", map[string]any{
		"latitude":  48.1,
		"longitude": 11.5,
	})

	server.PostLocation(c)

	require.Equal(t, http.StatusOK, w.Code)
	var status engine.Status
	decodeSuccess(t, w, &status)
	assert.Equal(t, types.StateActive, status.State)
	assert.Equal(t, "site-1", status.SiteID)
	assert.Equal(t, types.ProvenanceAuto, status.Provenance)
}

// TestPostLocation_MissingCoordinates tests binding validation
func TestPostLocation_MissingCoordinates(t *testing.T) {
	server := setupTestServer(t)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(t, http.MethodPost, "/api/location", map[string]any{
		"latitude": 48.1,
	})

	server.PostLocation(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestGeofenceCallback_RejectsUnknownEventType tests event validation
func TestGeofenceCallback_RejectsUnknownEventType(t *testing.T) {
	server := setupTestServer(t)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(t, http.MethodPost, "/api/callback/geofence", map[string]any{
		"event_type": "hover",
		"site_id":    "site-1",
	})

	server.GeofenceCallback(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var errResp response.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.Equal(t, "VALIDATION_FAILED", errResp.Code)
}

// TestGeofenceCallback_EnterSchedulesPendingStart tests the background path
func TestGeofenceCallback_EnterSchedulesPendingStart(t *testing.T) {
	server := setupTestServer(t)
	seedSite(t, server, models.Site{
		ID: "site-1", Name: "Yard", Latitude: 48.1, Longitude: 11.5,
		RadiusMeters: 50, AutoTimerEnabled: true, StartDelayMinutes: 2,
	})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(t, http.MethodPost, "/api/callback/geofence", map[string]any{
		"event_type": "enter",
		"site_id":    "site-1",
	})

	server.GeofenceCallback(c)

	require.Equal(t, http.StatusOK, w.Code)
	var status engine.Status
	decodeSuccess(t, w, &status)
	assert.Equal(t, types.StateEntering, status.State)
	require.NotNil(t, status.Pending)
	assert.Equal(t, types.ActionStart, status.Pending.Kind)
}

// TestAppForeground tests the resume reconciliation signal
func TestAppForeground(t *testing.T) {
	server := setupTestServer(t)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/app/foreground", nil)

	server.AppForeground(c)

	require.Equal(t, http.StatusOK, w.Code)
	var status engine.Status
	decodeSuccess(t, w, &status)
	assert.Equal(t, types.StateInactive, status.State)
}

// TestSessionLifecycle_ManualControls tests start, pause, resume, stop and
// the resulting work record
func TestSessionLifecycle_ManualControls(t *testing.T) {
	server := setupTestServer(t)
	seedSite(t, server, models.Site{
		ID: "site-1", Name: "Yard", Latitude: 48.1, Longitude: 11.5,
		RadiusMeters: 50, AutoTimerEnabled: true,
	})

	run := func(handler gin.HandlerFunc, body any) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		if body != nil {
			c.Request = jsonRequest(t, http.MethodPost, "/api/session", body)
		} else {
			c.Request = httptest.NewRequest(http.MethodPost, "/api/session", nil)
		}
		handler(c)
		return w
	}

	w := run(server.StartSession, map[string]any{"site_id": "site-1", "note": "inventory"})
	require.Equal(t, http.StatusOK, w.Code)
	var status engine.Status
	decodeSuccess(t, w, &status)
	assert.Equal(t, types.ProvenanceManual, status.Provenance)

	// starting again conflicts
	w = run(server.StartSession, map[string]any{"site_id": "site-1"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = run(server.PauseSession, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeSuccess(t, w, &status)
	assert.True(t, status.Paused)

	w = run(server.ResumeSession, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeSuccess(t, w, &status)
	assert.False(t, status.Paused)

	w = run(server.StopSession, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeSuccess(t, w, &status)
	assert.Equal(t, types.StateInactive, status.State)

	var records []models.WorkRecord
	require.NoError(t, server.DB.Find(&records).Error)
	require.Len(t, records, 1)
	assert.Equal(t, types.ProvenanceManual, records[0].Provenance)
	assert.Equal(t, "inventory", records[0].Note)
	assert.GreaterOrEqual(t, records[0].Seconds, int64(1))

	// stopping with nothing active conflicts
	w = run(server.StopSession, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

// TestStartSession_UnknownSite tests the lookup guard
func TestStartSession_UnknownSite(t *testing.T) {
	server := setupTestServer(t)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(t, http.MethodPost, "/api/session/start", map[string]any{
		"site_id": "missing",
	})

	server.StartSession(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestListTransitions tests the bounded history read
func TestListTransitions(t *testing.T) {
	server := setupTestServer(t)
	for i := 0; i < 3; i++ {
		require.NoError(t, server.DB.Create(&models.TransitionLog{
			SiteID: "site-1", Kind: types.EventEnter, Source: "foreground",
		}).Error)
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/transitions", nil)
	server.ListTransitions(c)

	require.Equal(t, http.StatusOK, w.Code)
	var transitions []models.TransitionLog
	decodeSuccess(t, w, &transitions)
	assert.Len(t, transitions, 3)
}

// TestListRecords_FilterBySite tests the work-record read with filter
func TestListRecords_FilterBySite(t *testing.T) {
	server := setupTestServer(t)
	require.NoError(t, server.DB.Create(&models.WorkRecord{
		ID: "r1", SiteID: "site-1", Seconds: 60, Provenance: types.ProvenanceAuto,
	}).Error)
	require.NoError(t, server.DB.Create(&models.WorkRecord{
		ID: "r2", SiteID: "site-2", Seconds: 120, Provenance: types.ProvenanceManual,
	}).Error)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/records?site_id=site-2", nil)
	server.ListRecords(c)

	require.Equal(t, http.StatusOK, w.Code)
	var records []models.WorkRecord
	decodeSuccess(t, w, &records)
	require.Len(t, records, 1)
	assert.Equal(t, "r2", records[0].ID)
}

// TestSetEngineEnabled_CancelsCountdown tests the master toggle
func TestSetEngineEnabled_CancelsCountdown(t *testing.T) {
	server := setupTestServer(t)
	seedSite(t, server, models.Site{
		ID: "site-1", Name: "Yard", Latitude: 48.1, Longitude: 11.5,
		RadiusMeters: 50, AutoTimerEnabled: true, StartDelayMinutes: 5,
	})

	// Enter the site: a pending start countdown begins
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(t, http.MethodPost, "/api/callback/geofence", map[string]any{
		"event_type": "enter",
		"site_id":    "site-1",
	})
	server.GeofenceCallback(c)
	require.Equal(t, http.StatusOK, w.Code)

	var status engine.Status
	decodeSuccess(t, w, &status)
	require.Equal(t, types.StateEntering, status.State)

	// Disabling abandons the countdown
	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = jsonRequest(t, http.MethodPost, "/api/engine/enabled", map[string]any{
		"enabled": false,
	})
	server.SetEngineEnabled(c)

	require.Equal(t, http.StatusOK, w.Code)
	status = engine.Status{}
	decodeSuccess(t, w, &status)
	assert.False(t, status.Enabled)
	assert.Equal(t, types.StateInactive, status.State)
	assert.Nil(t, status.Pending)
}

// TestSetEngineEnabled_MissingFlag tests binding validation
func TestSetEngineEnabled_MissingFlag(t *testing.T) {
	server := setupTestServer(t)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(t, http.MethodPost, "/api/engine/enabled", map[string]any{})
	server.SetEngineEnabled(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestGetTrackingConfig tests the provider policy read
func TestGetTrackingConfig(t *testing.T) {
	server := setupTestServer(t)
	seedSite(t, server, models.Site{
		ID: "site-1", Name: "Yard", Latitude: 48.1, Longitude: 11.5,
		RadiusMeters: 30, AutoTimerEnabled: true,
	})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/tracking/config", nil)
	server.GetTrackingConfig(c)

	require.Equal(t, http.StatusOK, w.Code)
	var cfg map[string]any
	decodeSuccess(t, w, &cfg)
	assert.Equal(t, float64(5), cfg["movement_threshold_meters"])
	assert.Equal(t, "balanced", cfg["accuracy_mode"])
}
