package engine

import (
	"time"

	"geotrack/internal/types"

	"github.com/sirupsen/logrus"
)

// Reconcile re-derives correct engine state from durable records. It runs
// on process start, on the host's foreground-resume signal, at the top of
// every background callback, and periodically as a backstop. The pass is
// idempotent: running it twice over the same durable state observes the
// same result as running it once.
func (e *Engine) Reconcile() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reconcileLocked()
}

func (e *Engine) reconcileLocked() error {
	now := e.now()

	pendings, err := e.sessions.ListPending()
	if err != nil {
		return err
	}

	var surviving []*PendingAction
	for _, action := range pendings {
		if !action.Overdue(now) {
			surviving = append(surviving, action)
			continue
		}
		// Overdue actions execute immediately no matter how far in the
		// past their deadline fell while the process was away.
		logrus.WithFields(logrus.Fields{
			"site":    action.SiteID,
			"kind":    action.Kind,
			"overdue": now.Sub(action.TargetTime).Round(time.Second),
		}).Info("Executing overdue pending action")
		if err := e.executePendingLocked(action); err != nil {
			logrus.WithError(err).WithField("site", action.SiteID).Error("Failed to execute overdue action")
		}
	}

	session, err := e.sessions.GetActive()
	if err != nil {
		return err
	}

	// Re-derive the machine state: an active session implies active, a
	// surviving pending start implies entering, a pending stop implies
	// exiting, otherwise inactive.
	switch {
	case session != nil:
		e.state = types.StateActive
		e.siteID = session.SiteID
		for _, action := range surviving {
			if action.Kind == types.ActionStop && action.SiteID == session.SiteID {
				e.state = types.StateExiting
				e.armTimerLocked(action.SiteID, action.TargetTime.Sub(now))
			}
		}
	case len(surviving) > 0:
		action := surviving[0]
		if action.Kind == types.ActionStart {
			e.state = types.StateEntering
		} else {
			e.state = types.StateExiting
		}
		e.siteID = action.SiteID
		e.armTimerLocked(action.SiteID, action.TargetTime.Sub(now))
	default:
		e.state = types.StateInactive
		e.siteID = ""
	}

	e.publishStatusLocked()
	return nil
}
