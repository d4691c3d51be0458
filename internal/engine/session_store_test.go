package engine

import (
	"testing"
	"time"

	"geotrack/internal/store"
	"geotrack/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSessionStore_ActiveSessionLifecycle tests save, read-back and clear
func TestSessionStore_ActiveSessionLifecycle(t *testing.T) {
	s := NewSessionStore(store.NewMemoryStore())

	session, err := s.GetActive()
	require.NoError(t, err)
	assert.Nil(t, session)

	start := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveActive(&ActiveSession{
		SiteID:     "a",
		StartTime:  start,
		Provenance: types.ProvenanceAuto,
		Note:       "Auto-started",
	}))

	session, err = s.GetActive()
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, SchemaVersion, session.SchemaVersion)
	assert.Equal(t, "a", session.SiteID)
	assert.True(t, start.Equal(session.StartTime))

	require.NoError(t, s.ClearActive())
	session, err = s.GetActive()
	require.NoError(t, err)
	assert.Nil(t, session)
}

// TestSessionStore_ListPending tests pending enumeration across sites
func TestSessionStore_ListPending(t *testing.T) {
	s := NewSessionStore(store.NewMemoryStore())
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, s.SavePending(&PendingAction{
		SiteID: "a", Kind: types.ActionStart, CreatedAt: now,
		DelaySeconds: 60, TargetTime: now.Add(time.Minute),
	}))
	require.NoError(t, s.SavePending(&PendingAction{
		SiteID: "b", Kind: types.ActionStop, CreatedAt: now,
		DelaySeconds: 120, TargetTime: now.Add(2 * time.Minute),
	}))

	actions, err := s.ListPending()
	require.NoError(t, err)
	assert.Len(t, actions, 2)

	require.NoError(t, s.ClearPending("a"))
	actions, err = s.ListPending()
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, "b", actions[0].SiteID)
}

// TestSessionStore_PendingOverwrite tests that a save replaces the previous
// record for the same site
func TestSessionStore_PendingOverwrite(t *testing.T) {
	s := NewSessionStore(store.NewMemoryStore())
	now := time.Now().UTC()

	require.NoError(t, s.SavePending(&PendingAction{
		SiteID: "a", Kind: types.ActionStart, CreatedAt: now,
		DelaySeconds: 60, TargetTime: now.Add(time.Minute),
	}))
	require.NoError(t, s.SavePending(&PendingAction{
		SiteID: "a", Kind: types.ActionStop, CreatedAt: now,
		DelaySeconds: 300, TargetTime: now.Add(5 * time.Minute),
	}))

	action, err := s.LoadPending("a")
	require.NoError(t, err)
	require.NotNil(t, action)
	assert.Equal(t, types.ActionStop, action.Kind)

	actions, err := s.ListPending()
	require.NoError(t, err)
	assert.Len(t, actions, 1)
}

// TestSessionStore_Snapshot tests the engine-state singleton record
func TestSessionStore_Snapshot(t *testing.T) {
	s := NewSessionStore(store.NewMemoryStore())

	snapshot, err := s.LoadSnapshot()
	require.NoError(t, err)
	assert.Nil(t, snapshot)

	require.NoError(t, s.SaveSnapshot(&Snapshot{
		Enabled: true,
		State:   types.StateEntering,
		SiteID:  "a",
	}))

	snapshot, err = s.LoadSnapshot()
	require.NoError(t, err)
	require.NotNil(t, snapshot)
	assert.Equal(t, types.StateEntering, snapshot.State)
	assert.Equal(t, "a", snapshot.SiteID)
	assert.True(t, snapshot.Enabled)
}

// TestSessionStore_ClaimExecution tests the racing-pass dedup claim
func TestSessionStore_ClaimExecution(t *testing.T) {
	s := NewSessionStore(store.NewMemoryStore())
	target := time.Date(2026, 8, 1, 9, 30, 0, 0, time.UTC)

	claimed, err := s.ClaimExecution(types.ActionStart, "a", target)
	require.NoError(t, err)
	assert.True(t, claimed)

	// the second claimant loses
	claimed, err = s.ClaimExecution(types.ActionStart, "a", target)
	require.NoError(t, err)
	assert.False(t, claimed)

	// a different deadline is a different execution
	claimed, err = s.ClaimExecution(types.ActionStart, "a", target.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, claimed)
}

// TestPendingAction_Overdue tests deadline comparison
func TestPendingAction_Overdue(t *testing.T) {
	now := time.Now()
	action := &PendingAction{TargetTime: now.Add(time.Minute)}
	assert.False(t, action.Overdue(now))
	assert.True(t, action.Overdue(now.Add(time.Minute)))
	assert.True(t, action.Overdue(now.Add(48*time.Hour)))
}

// TestActiveSession_ElapsedSeconds tests pause-aware elapsed arithmetic
func TestActiveSession_ElapsedSeconds(t *testing.T) {
	start := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

	session := &ActiveSession{StartTime: start}
	assert.Equal(t, int64(600), session.ElapsedSeconds(start.Add(10*time.Minute)))

	session.PausedSeconds = 120
	assert.Equal(t, int64(480), session.ElapsedSeconds(start.Add(10*time.Minute)))

	// currently paused: the open span counts as paused too
	session.Paused = true
	session.PausedAt = start.Add(8 * time.Minute)
	assert.Equal(t, int64(360), session.ElapsedSeconds(start.Add(10*time.Minute)))

	// never negative
	assert.Equal(t, int64(0), session.ElapsedSeconds(start.Add(-time.Minute)))
}
