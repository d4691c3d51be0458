package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"geotrack/internal/store"
	"geotrack/internal/types"
)

const (
	activeSessionKey = "autotimer:session:active"
	pendingKeyPrefix = "autotimer:pending:"
	snapshotKey      = "autotimer:state"
	execKeyPrefix    = "autotimer:exec:"

	// executionClaimTTL bounds how long a reconciliation dedup claim is
	// remembered. Long enough that two racing passes cannot both execute,
	// short enough that the store does not accumulate claims forever.
	executionClaimTTL = time.Hour
)

// SessionStore persists the engine's durable records on a key-value store.
// Each record occupies a single key, so every write is atomic with respect
// to process termination.
type SessionStore struct {
	store store.Store
}

func NewSessionStore(s store.Store) *SessionStore {
	return &SessionStore{store: s}
}

// GetActive returns the active session, or nil when none exists.
func (s *SessionStore) GetActive() (*ActiveSession, error) {
	data, err := s.store.Get(activeSessionKey)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read active session: %w", err)
	}
	var session ActiveSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to decode active session: %w", err)
	}
	return &session, nil
}

func (s *SessionStore) SaveActive(session *ActiveSession) error {
	session.SchemaVersion = SchemaVersion
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode active session: %w", err)
	}
	if err := s.store.Set(activeSessionKey, data, 0); err != nil {
		return fmt.Errorf("failed to write active session: %w", err)
	}
	return nil
}

func (s *SessionStore) ClearActive() error {
	if err := s.store.Delete(activeSessionKey); err != nil {
		return fmt.Errorf("failed to clear active session: %w", err)
	}
	return nil
}

// LoadPending returns the pending action for a site, or nil when none exists.
func (s *SessionStore) LoadPending(siteID string) (*PendingAction, error) {
	data, err := s.store.Get(pendingKeyPrefix + siteID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read pending action: %w", err)
	}
	var action PendingAction
	if err := json.Unmarshal(data, &action); err != nil {
		return nil, fmt.Errorf("failed to decode pending action: %w", err)
	}
	return &action, nil
}

func (s *SessionStore) SavePending(action *PendingAction) error {
	action.SchemaVersion = SchemaVersion
	data, err := json.Marshal(action)
	if err != nil {
		return fmt.Errorf("failed to encode pending action: %w", err)
	}
	if err := s.store.Set(pendingKeyPrefix+action.SiteID, data, 0); err != nil {
		return fmt.Errorf("failed to write pending action: %w", err)
	}
	return nil
}

func (s *SessionStore) ClearPending(siteID string) error {
	if err := s.store.Delete(pendingKeyPrefix + siteID); err != nil {
		return fmt.Errorf("failed to clear pending action: %w", err)
	}
	return nil
}

// ListPending returns all durable pending actions across sites.
func (s *SessionStore) ListPending() ([]*PendingAction, error) {
	keys, err := s.store.Keys(pendingKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending actions: %w", err)
	}
	actions := make([]*PendingAction, 0, len(keys))
	for _, key := range keys {
		siteID := strings.TrimPrefix(key, pendingKeyPrefix)
		action, err := s.LoadPending(siteID)
		if err != nil {
			return nil, err
		}
		if action != nil {
			actions = append(actions, action)
		}
	}
	return actions, nil
}

func (s *SessionStore) SaveSnapshot(snapshot *Snapshot) error {
	snapshot.SchemaVersion = SchemaVersion
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode engine state: %w", err)
	}
	if err := s.store.Set(snapshotKey, data, 0); err != nil {
		return fmt.Errorf("failed to write engine state: %w", err)
	}
	return nil
}

// LoadSnapshot returns the persisted engine state, or nil when none exists.
func (s *SessionStore) LoadSnapshot() (*Snapshot, error) {
	data, err := s.store.Get(snapshotKey)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read engine state: %w", err)
	}
	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode engine state: %w", err)
	}
	return &snapshot, nil
}

func execClaimKey(kind types.ActionKind, siteID string, target time.Time) string {
	return fmt.Sprintf("%s%s:%s:%d", execKeyPrefix, kind, siteID, target.Unix())
}

// ClaimExecution atomically claims the right to execute a pending action.
// Two reconciliation passes racing over the same overdue action resolve
// through this key: the first SetNX wins, the loser only deletes the record.
func (s *SessionStore) ClaimExecution(kind types.ActionKind, siteID string, target time.Time) (bool, error) {
	claimed, err := s.store.SetNX(execClaimKey(kind, siteID, target), []byte("1"), executionClaimTTL)
	if err != nil {
		return false, fmt.Errorf("failed to claim execution: %w", err)
	}
	return claimed, nil
}

// ReleaseExecution gives a claim back. Called when the claimed execution
// failed and did not take effect, so a later pass can claim and retry it.
func (s *SessionStore) ReleaseExecution(kind types.ActionKind, siteID string, target time.Time) error {
	if err := s.store.Delete(execClaimKey(kind, siteID, target)); err != nil {
		return fmt.Errorf("failed to release execution claim: %w", err)
	}
	return nil
}
