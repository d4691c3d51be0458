package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"geotrack/internal/geofence"
	"geotrack/internal/models"
	"geotrack/internal/store"
	"geotrack/internal/types"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// reconcileInterval is the cadence of the safety reconciliation loop. The
// loop is a backstop for missed timers; transitions are normally driven by
// events and in-process timers.
const reconcileInterval = time.Minute

// Engine is the auto-timer coordinator. Exactly one exists per process; all
// mutable state sits behind a single mutex, and every state advance is
// written durably before the in-memory state reflects it.
type Engine struct {
	mu       sync.Mutex
	cfg      types.EngineConfig
	db       *gorm.DB
	store    store.Store
	sessions *SessionStore
	monitor  *geofence.Monitor
	dedup    *geofence.Deduplicator

	sites   map[string]models.Site
	enabled bool
	state   types.EngineState
	siteID  string
	timers  map[string]*time.Timer

	// now is replaceable in tests
	now func() time.Time

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewEngine constructs the engine. Call Start to load sites and reconcile
// durable state.
func NewEngine(configManager types.ConfigManager, database *gorm.DB, s store.Store) *Engine {
	cfg := configManager.GetEngineConfig()
	return &Engine{
		cfg:      cfg,
		db:       database,
		store:    s,
		sessions: NewSessionStore(s),
		monitor:  geofence.NewMonitor(cfg),
		dedup:    geofence.NewDeduplicator(cfg),
		sites:    make(map[string]models.Site),
		enabled:  true,
		state:    types.StateInactive,
		timers:   make(map[string]*time.Timer),
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
}

// Start loads the site list, reconciles durable state left over from a
// previous process, and launches the periodic reconciliation loop.
func (e *Engine) Start() error {
	var sites []models.Site
	if err := e.db.Find(&sites).Error; err != nil {
		return fmt.Errorf("failed to load sites: %w", err)
	}

	e.mu.Lock()
	e.setSitesLocked(sites)
	err := e.reconcileLocked()
	e.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to reconcile on start: %w", err)
	}

	e.wg.Add(1)
	go e.reconcileLoop()

	logrus.WithField("sites", len(sites)).Info("Auto-timer engine started")
	return nil
}

// Stop cancels in-process timers and waits for the reconciliation loop.
// Durable records stay behind for the next start.
func (e *Engine) Stop(ctx context.Context) error {
	close(e.stopChan)

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		logrus.Warn("Auto-timer engine stop timed out")
	}

	e.mu.Lock()
	for siteID, timer := range e.timers {
		timer.Stop()
		delete(e.timers, siteID)
	}
	e.mu.Unlock()

	logrus.Info("Auto-timer engine stopped")
	return nil
}

func (e *Engine) reconcileLoop() {
	defer e.wg.Done()
	ticker := time.NewTicker(reconcileInterval)
	defer ticker.Stop()
	for {
		select {
		case <-e.stopChan:
			return
		case <-ticker.C:
			if err := e.Reconcile(); err != nil {
				logrus.WithError(err).Error("Periodic reconciliation failed")
			}
		}
	}
}

// UpdateSites replaces the tracked site list. Called at start and whenever
// the host changes a site.
func (e *Engine) UpdateSites(sites []models.Site) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.setSitesLocked(sites)
	return nil
}

// setSitesLocked installs the new site list and reconciles any pending
// countdown whose delay configuration changed: the deadline becomes
// min(new total delay, time already remaining), measured from now.
func (e *Engine) setSitesLocked(sites []models.Site) {
	now := e.now()
	fresh := make(map[string]models.Site, len(sites))
	for _, site := range sites {
		fresh[site.ID] = site
	}
	e.sites = fresh

	if e.state != types.StateEntering && e.state != types.StateExiting {
		return
	}
	pending, err := e.sessions.LoadPending(e.siteID)
	if err != nil {
		logrus.WithError(err).Error("Failed to load pending action during site update")
		return
	}
	if pending == nil {
		return
	}

	site, ok := fresh[pending.SiteID]
	if !ok || !site.AutoTimerEnabled {
		// Site removed or auto-timer switched off mid-countdown. A pending
		// start is abandoned; a pending stop still has to run so the open
		// session is not orphaned.
		if pending.Kind == types.ActionStart {
			if err := e.clearPendingLocked(pending.SiteID); err != nil {
				logrus.WithError(err).Error("Failed to cancel pending start for removed site")
				return
			}
			e.state = types.StateInactive
			e.siteID = ""
			e.publishStatusLocked()
		}
		return
	}

	newTotal := e.delayFor(&site, pending.Kind)
	if newTotal == time.Duration(pending.DelaySeconds)*time.Second {
		return
	}
	remaining := pending.TargetTime.Sub(now)
	if newTotal < remaining {
		remaining = newTotal
	}
	if remaining < 0 {
		remaining = 0
	}

	pending.DelaySeconds = int64(newTotal.Seconds())
	pending.TargetTime = now.Add(remaining)
	if err := e.sessions.SavePending(pending); err != nil {
		logrus.WithError(err).Error("Failed to reschedule pending action")
		return
	}
	e.armTimerLocked(pending.SiteID, remaining)
	logrus.WithFields(logrus.Fields{
		"site":      pending.SiteID,
		"kind":      pending.Kind,
		"remaining": remaining,
	}).Info("Pending action rescheduled after delay change")
	e.publishStatusLocked()
}

// SetEnabled switches automatic session control on or off. Disabling
// cancels any countdown but leaves a running session untouched.
func (e *Engine) SetEnabled(enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.enabled == enabled {
		return nil
	}
	e.enabled = enabled
	if !enabled && (e.state == types.StateEntering || e.state == types.StateExiting) {
		if err := e.clearPendingLocked(e.siteID); err != nil {
			return err
		}
		if e.state == types.StateEntering {
			e.state = types.StateInactive
			e.siteID = ""
		} else {
			e.state = types.StateActive
		}
	}
	e.publishStatusLocked()
	return nil
}

// MovementThresholdMeters exposes the location-provider sensitivity the
// current site set requires.
func (e *Engine) MovementThresholdMeters() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.monitor.MovementThresholdMeters(e.siteListLocked())
}

// HandleLocation feeds one foreground location sample through the monitor
// and applies every resulting transition.
func (e *Engine) HandleLocation(sample geofence.LocationSample) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.enabled {
		return nil
	}

	events := e.monitor.Observe(sample, e.siteListLocked())
	for i, event := range events {
		if !e.dedup.Accept(event.SiteID, event.Kind, event.Timestamp) {
			logrus.WithFields(logrus.Fields{
				"site": event.SiteID,
				"kind": event.Kind,
			}).Debug("Duplicate transition suppressed")
			continue
		}
		e.logTransitionLocked(event, "foreground")
		if err := e.handleEventLocked(event.SiteID, event.Kind, event.Timestamp, true); err != nil {
			// The transition must not be consumed by a failed durable write:
			// roll the monitor back for this and every unprocessed event, and
			// forget the dedup entry, so a retried sample emits them again.
			for _, unprocessed := range events[i:] {
				e.monitor.RevertTransition(unprocessed)
			}
			e.dedup.Forget(event.SiteID, event.Kind)
			return err
		}
	}
	return nil
}

// handleEventLocked applies one deduplicated transition to the state
// machine. useTimers controls whether a scheduled action also gets an
// in-process timer; the background path persists the record only.
func (e *Engine) handleEventLocked(siteID string, kind types.EventKind, at time.Time, useTimers bool) error {
	site, ok := e.sites[siteID]
	if !ok || !site.AutoTimerEnabled {
		return nil
	}
	if at.IsZero() {
		at = e.now()
	}

	session, err := e.sessions.GetActive()
	if err != nil {
		return err
	}
	if session != nil && session.IsManual() {
		// A manually started session is never touched by geofence events.
		logrus.WithFields(logrus.Fields{
			"site": siteID,
			"kind": kind,
		}).Debug("Manual session active, transition ignored")
		return nil
	}

	switch kind {
	case types.EventEnter:
		return e.handleEnterLocked(&site, session, at, useTimers)
	case types.EventExit:
		return e.handleExitLocked(&site, session, at, useTimers)
	default:
		return fmt.Errorf("unknown event kind: %s", kind)
	}
}

func (e *Engine) handleEnterLocked(site *models.Site, session *ActiveSession, at time.Time, useTimers bool) error {
	if session != nil {
		if session.SiteID != site.ID {
			// one concurrent auto session only
			return nil
		}
		// Re-entered the session's own site: cancel a pending stop, or
		// adopt the session after a restart while still inside.
		if e.state == types.StateExiting && e.siteID == site.ID {
			if err := e.clearPendingLocked(site.ID); err != nil {
				return err
			}
			logrus.WithField("site", site.ID).Info("Pending stop cancelled, still on site")
		}
		e.state = types.StateActive
		e.siteID = site.ID
		e.publishStatusLocked()
		return nil
	}

	if e.state == types.StateEntering {
		// Already counting down; a repeat for the same site is idempotent
		// and a different site does not preempt the countdown in progress.
		return nil
	}

	delay := e.delayFor(site, types.ActionStart)
	if delay <= 0 {
		return e.startSessionLocked(site.ID, at)
	}
	return e.schedulePendingLocked(site.ID, types.ActionStart, at, delay, useTimers)
}

func (e *Engine) handleExitLocked(site *models.Site, session *ActiveSession, at time.Time, useTimers bool) error {
	if e.state == types.StateEntering && e.siteID == site.ID {
		// Left before the start countdown finished: no session ever existed.
		if err := e.clearPendingLocked(site.ID); err != nil {
			return err
		}
		e.state = types.StateInactive
		e.siteID = ""
		logrus.WithField("site", site.ID).Info("Pending start cancelled, site left during countdown")
		e.publishStatusLocked()
		return nil
	}

	if session != nil && session.SiteID == site.ID && e.state == types.StateActive {
		delay := e.delayFor(site, types.ActionStop)
		if delay <= 0 {
			return e.stopSessionLocked(at, "left site")
		}
		return e.schedulePendingLocked(site.ID, types.ActionStop, at, delay, useTimers)
	}

	return nil
}

// schedulePendingLocked replaces any pending action for the site with a new
// one. The old record is deleted before the new one is written so two
// pending actions for one site never coexist, even transiently.
func (e *Engine) schedulePendingLocked(siteID string, kind types.ActionKind, at time.Time, delay time.Duration, useTimers bool) error {
	if err := e.clearPendingLocked(siteID); err != nil {
		return err
	}
	action := &PendingAction{
		SiteID:       siteID,
		Kind:         kind,
		CreatedAt:    at,
		DelaySeconds: int64(delay.Seconds()),
		TargetTime:   at.Add(delay),
	}
	if err := e.sessions.SavePending(action); err != nil {
		return err
	}

	if kind == types.ActionStart {
		e.state = types.StateEntering
	} else {
		e.state = types.StateExiting
	}
	e.siteID = siteID
	if useTimers {
		e.armTimerLocked(siteID, delay)
	}
	logrus.WithFields(logrus.Fields{
		"site":   siteID,
		"kind":   kind,
		"target": action.TargetTime.Format(time.RFC3339),
	}).Info("Transition scheduled")
	e.publishStatusLocked()
	return nil
}

func (e *Engine) armTimerLocked(siteID string, d time.Duration) {
	if timer, ok := e.timers[siteID]; ok {
		timer.Stop()
	}
	e.timers[siteID] = time.AfterFunc(d, func() {
		e.firePending(siteID)
	})
}

func (e *Engine) clearPendingLocked(siteID string) error {
	if timer, ok := e.timers[siteID]; ok {
		timer.Stop()
		delete(e.timers, siteID)
	}
	return e.sessions.ClearPending(siteID)
}

// firePending runs when an in-process timer elapses. The durable record is
// re-read under the lock: it may have been cancelled or rescheduled since
// the timer was armed.
func (e *Engine) firePending(siteID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.timers, siteID)

	action, err := e.sessions.LoadPending(siteID)
	if err != nil {
		logrus.WithError(err).Error("Failed to load pending action on timer fire")
		return
	}
	if action == nil {
		return
	}
	now := e.now()
	if action.TargetTime.After(now) {
		e.armTimerLocked(siteID, action.TargetTime.Sub(now))
		return
	}
	if err := e.executePendingLocked(action); err != nil {
		logrus.WithError(err).WithField("site", siteID).Error("Failed to execute pending action")
	}
}

// executePendingLocked runs a due pending action exactly once. The SetNX
// claim resolves races between the timer path and concurrent reconciliation
// passes; the loser only removes the leftover record. A claim whose
// execution fails is released again, so the still-surviving record can be
// claimed and retried by a later pass.
func (e *Engine) executePendingLocked(action *PendingAction) error {
	claimed, err := e.sessions.ClaimExecution(action.Kind, action.SiteID, action.TargetTime)
	if err != nil {
		return err
	}
	if !claimed {
		return e.clearPendingLocked(action.SiteID)
	}

	var execErr error
	switch action.Kind {
	case types.ActionStart:
		execErr = e.startSessionLocked(action.SiteID, action.TargetTime)
	case types.ActionStop:
		execErr = e.stopSessionLocked(action.TargetTime, "dwell delay elapsed")
	}
	if execErr != nil {
		if err := e.sessions.ReleaseExecution(action.Kind, action.SiteID, action.TargetTime); err != nil {
			logrus.WithError(err).WithField("site", action.SiteID).Error("Failed to release execution claim")
		}
		return execErr
	}
	return e.clearPendingLocked(action.SiteID)
}

// startSessionLocked creates the auto session. The durable write happens
// first; on failure the in-memory state does not advance.
func (e *Engine) startSessionLocked(siteID string, at time.Time) error {
	session := &ActiveSession{
		SiteID:     siteID,
		StartTime:  at,
		Provenance: types.ProvenanceAuto,
		Note:       "Auto-started",
	}
	if err := e.sessions.SaveActive(session); err != nil {
		logrus.WithError(err).Error("Session not started, durable write failed")
		return err
	}
	e.state = types.StateActive
	e.siteID = siteID
	logrus.WithFields(logrus.Fields{
		"site":  siteID,
		"start": at.Format(time.RFC3339),
	}).Info("Work session started")
	e.publishStatusLocked()
	return nil
}

// stopSessionLocked ends the current session as of the given instant,
// persisting a work record before the session key is cleared. Elapsed time
// excludes paused spans and is floored at one second.
func (e *Engine) stopSessionLocked(at time.Time, reason string) error {
	session, err := e.sessions.GetActive()
	if err != nil {
		return err
	}
	if session == nil {
		if e.state == types.StateActive || e.state == types.StateExiting {
			e.state = types.StateInactive
			e.siteID = ""
			e.publishStatusLocked()
		}
		return nil
	}

	elapsed := session.ElapsedSeconds(at)
	if elapsed < 1 {
		elapsed = 1
	}
	record := models.WorkRecord{
		ID:         uuid.NewString(),
		SiteID:     session.SiteID,
		Date:       session.StartTime.Format("2006-01-02"),
		StartTime:  session.StartTime,
		EndTime:    at,
		Seconds:    elapsed,
		Provenance: session.Provenance,
		Note:       session.Note,
	}
	if err := e.db.Create(&record).Error; err != nil {
		return fmt.Errorf("failed to persist work record: %w", err)
	}
	if err := e.sessions.ClearActive(); err != nil {
		return err
	}

	e.state = types.StateInactive
	e.siteID = ""
	logrus.WithFields(logrus.Fields{
		"site":    session.SiteID,
		"elapsed": elapsed,
		"reason":  reason,
	}).Info("Work session stopped")
	e.publishStatusLocked()
	return nil
}

// StartManualSession records a user-started session. It is invisible to
// automatic control from that point on.
func (e *Engine) StartManualSession(siteID, note string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	existing, err := e.sessions.GetActive()
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("a session is already active for site %s", existing.SiteID)
	}
	// A manual start supersedes any countdown in progress.
	if e.state == types.StateEntering || e.state == types.StateExiting {
		if err := e.clearPendingLocked(e.siteID); err != nil {
			return err
		}
	}

	session := &ActiveSession{
		SiteID:     siteID,
		StartTime:  e.now(),
		Provenance: types.ProvenanceManual,
		Note:       note,
	}
	if err := e.sessions.SaveActive(session); err != nil {
		return err
	}
	e.state = types.StateActive
	e.siteID = siteID
	logrus.WithField("site", siteID).Info("Manual session started")
	e.publishStatusLocked()
	return nil
}

// PauseSession freezes elapsed-time accounting for the active session.
func (e *Engine) PauseSession() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	session, err := e.sessions.GetActive()
	if err != nil {
		return err
	}
	if session == nil {
		return fmt.Errorf("no active session to pause")
	}
	if session.Paused {
		return nil
	}
	session.Paused = true
	session.PausedAt = e.now()
	if err := e.sessions.SaveActive(session); err != nil {
		return err
	}
	logrus.WithField("site", session.SiteID).Info("Session paused")
	e.publishStatusLocked()
	return nil
}

// ResumeSession folds the just-ended paused span into the session's paused
// total and resumes accounting.
func (e *Engine) ResumeSession() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	session, err := e.sessions.GetActive()
	if err != nil {
		return err
	}
	if session == nil {
		return fmt.Errorf("no active session to resume")
	}
	if !session.Paused {
		return nil
	}
	if !session.PausedAt.IsZero() {
		session.PausedSeconds += int64(e.now().Sub(session.PausedAt).Seconds())
	}
	session.Paused = false
	session.PausedAt = time.Time{}
	if err := e.sessions.SaveActive(session); err != nil {
		return err
	}
	logrus.WithField("site", session.SiteID).Info("Session resumed")
	e.publishStatusLocked()
	return nil
}

// ForceStopSession is the user-initiated stop. It runs through the same
// stop path as automatic stops so elapsed time is never lost, and it works
// on manual sessions too.
func (e *Engine) ForceStopSession() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	session, err := e.sessions.GetActive()
	if err != nil {
		return err
	}
	if session == nil {
		return fmt.Errorf("no active session to stop")
	}
	// A pending stop countdown is superseded by the explicit stop.
	if e.state == types.StateExiting && e.siteID == session.SiteID {
		if err := e.clearPendingLocked(session.SiteID); err != nil {
			return err
		}
	}
	return e.stopSessionLocked(e.now(), "stopped by user")
}

func (e *Engine) delayFor(site *models.Site, kind types.ActionKind) time.Duration {
	minutes := site.StartDelayMinutes
	fallback := e.cfg.DefaultStartDelayMin
	if kind == types.ActionStop {
		minutes = site.StopDelayMinutes
		fallback = e.cfg.DefaultStopDelayMin
	}
	if minutes < 0 {
		minutes = fallback
	}
	return time.Duration(minutes) * time.Minute
}

func (e *Engine) siteListLocked() []models.Site {
	sites := make([]models.Site, 0, len(e.sites))
	for _, site := range e.sites {
		sites = append(sites, site)
	}
	return sites
}

// logTransitionLocked appends to the bounded transition history and trims
// it back to the configured limit.
func (e *Engine) logTransitionLocked(event geofence.TransitionEvent, source string) {
	location, _ := json.Marshal(map[string]float64{
		"latitude":  event.Latitude,
		"longitude": event.Longitude,
	})
	row := models.TransitionLog{
		SiteID:         event.SiteID,
		Kind:           event.Kind,
		Source:         source,
		DistanceMeters: event.DistanceMeters,
		Location:       location,
		Timestamp:      event.Timestamp,
	}
	if err := e.db.Create(&row).Error; err != nil {
		logrus.WithError(err).Warn("Failed to record geofence transition")
		return
	}
	limit := e.cfg.TransitionHistoryLimit
	if limit <= 0 {
		return
	}
	err := e.db.Where(
		"id NOT IN (?)",
		e.db.Model(&models.TransitionLog{}).Select("id").Order("id DESC").Limit(limit),
	).Delete(&models.TransitionLog{}).Error
	if err != nil {
		logrus.WithError(err).Warn("Failed to trim transition history")
	}
}
