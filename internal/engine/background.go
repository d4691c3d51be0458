package engine

import (
	"time"

	"geotrack/internal/geofence"
	"geotrack/internal/types"

	"github.com/sirupsen/logrus"
)

// HandleBackgroundEvent services the OS geofence callback. The process may
// have been spawned solely for this call, so no in-process timer can be
// assumed or created: a delayed action is persisted with its target time
// and picked up later by a timer-less wall-clock comparison. Reconciliation
// runs first to drain anything already overdue from a previous life.
func (e *Engine) HandleBackgroundEvent(kind types.EventKind, siteID string, at time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.reconcileLocked(); err != nil {
		logrus.WithError(err).Error("Reconciliation before background event failed")
	}

	if !e.enabled {
		return nil
	}
	if at.IsZero() {
		at = e.now()
	}
	if !e.dedup.Accept(siteID, kind, at) {
		logrus.WithFields(logrus.Fields{
			"site": siteID,
			"kind": kind,
		}).Debug("Duplicate background transition suppressed")
		return nil
	}

	site, ok := e.sites[siteID]
	if ok {
		e.logTransitionLocked(geofence.TransitionEvent{
			SiteID:    siteID,
			Kind:      kind,
			Timestamp: at,
			Latitude:  site.Latitude,
			Longitude: site.Longitude,
		}, "background")
	}

	if err := e.handleEventLocked(siteID, kind, at, false); err != nil {
		// Leave the event acceptable again for the OS retry of the callback.
		e.dedup.Forget(siteID, kind)
		return err
	}
	return nil
}
