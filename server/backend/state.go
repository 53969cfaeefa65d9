package backend

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pailer/pailer-core/server/kvstore"
)

const (
	keyFailures    = "autoUpdate.consecutiveFailures"
	keyLastError   = "autoUpdate.lastError"
	keyLastSuccess = "autoUpdate.lastSuccess"
)

// StateStore manages auto-update run state in the backend KV store.
// The last run timestamp lives under KeyLastAutoUpdateTs, the key earlier versions used.
type StateStore struct {
	kv kvstore.KVStore
}

// NewStateStore creates a new state store
func NewStateStore(kv kvstore.KVStore) *StateStore {
	return &StateStore{kv: kv}
}

// SaveLastRun stores the start time of the last run, truncated to seconds
func (s *StateStore) SaveLastRun(t time.Time) error {
	data, err := json.Marshal(t.Unix())
	if err != nil {
		return fmt.Errorf("failed to marshal last run time: %w", err)
	}

	if err := s.kv.KVSet(KeyLastAutoUpdateTs, data); err != nil {
		return fmt.Errorf("failed to save last run time: %w", err)
	}

	return nil
}

// GetLastRun retrieves the start time of the last run.
// Returns zero time if no run is recorded or the recorded value is 0.
func (s *StateStore) GetLastRun() (time.Time, error) {
	data, err := s.kv.KVGet(KeyLastAutoUpdateTs)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get last run time: %w", err)
	}

	if data == nil {
		return time.Time{}, nil
	}

	var ts uint64
	if err := json.Unmarshal(data, &ts); err != nil {
		return time.Time{}, fmt.Errorf("failed to unmarshal last run time: %w", err)
	}

	if ts == 0 {
		return time.Time{}, nil
	}

	return time.Unix(int64(ts), 0), nil
}

// IncrementFailures increments the consecutive failures counter and returns the new count
func (s *StateStore) IncrementFailures() (int, error) {
	count, err := s.GetFailures()
	if err != nil {
		return 0, err
	}

	count++

	if err := s.saveFailures(count); err != nil {
		return 0, err
	}

	return count, nil
}

// ResetFailures resets the consecutive failures counter to zero
func (s *StateStore) ResetFailures() error {
	return s.saveFailures(0)
}

func (s *StateStore) saveFailures(count int) error {
	data, err := json.Marshal(count)
	if err != nil {
		return fmt.Errorf("failed to marshal failures count: %w", err)
	}

	if err := s.kv.KVSet(keyFailures, data); err != nil {
		return fmt.Errorf("failed to save failures count: %w", err)
	}

	return nil
}

// GetFailures retrieves the current consecutive failures count
// Returns 0 if no count is stored
func (s *StateStore) GetFailures() (int, error) {
	data, err := s.kv.KVGet(keyFailures)
	if err != nil {
		return 0, fmt.Errorf("failed to get failures count: %w", err)
	}

	if data == nil {
		return 0, nil
	}

	var count int
	if err := json.Unmarshal(data, &count); err != nil {
		return 0, fmt.Errorf("failed to unmarshal failures count: %w", err)
	}

	return count, nil
}

// SaveLastSuccess stores the completion time of the last successful run
func (s *StateStore) SaveLastSuccess(t time.Time) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal last success time: %w", err)
	}

	if err := s.kv.KVSet(keyLastSuccess, data); err != nil {
		return fmt.Errorf("failed to save last success time: %w", err)
	}

	return nil
}

// GetLastSuccess retrieves the completion time of the last successful run
// Returns zero time if no success time is stored
func (s *StateStore) GetLastSuccess() (time.Time, error) {
	data, err := s.kv.KVGet(keyLastSuccess)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get last success time: %w", err)
	}

	if data == nil {
		return time.Time{}, nil
	}

	var t time.Time
	if err := json.Unmarshal(data, &t); err != nil {
		return time.Time{}, fmt.Errorf("failed to unmarshal last success time: %w", err)
	}

	return t, nil
}

// SaveLastError stores the error message from the most recent failure
func (s *StateStore) SaveLastError(errMsg string) error {
	data, err := json.Marshal(errMsg)
	if err != nil {
		return fmt.Errorf("failed to marshal last error: %w", err)
	}

	if err := s.kv.KVSet(keyLastError, data); err != nil {
		return fmt.Errorf("failed to save last error: %w", err)
	}
	return nil
}

// GetLastError retrieves the error message from the most recent failure
// Returns empty string if no error is stored
func (s *StateStore) GetLastError() (string, error) {
	data, err := s.kv.KVGet(keyLastError)
	if err != nil {
		return "", fmt.Errorf("failed to get last error: %w", err)
	}

	if data == nil {
		return "", nil
	}

	var errMsg string
	if err := json.Unmarshal(data, &errMsg); err != nil {
		return "", fmt.Errorf("failed to unmarshal last error: %w", err)
	}

	return errMsg, nil
}

// ClearAll removes all run state, including the last run timestamp
func (s *StateStore) ClearAll() error {
	keys := []string{
		KeyLastAutoUpdateTs,
		keyFailures,
		keyLastError,
		keyLastSuccess,
	}

	for _, key := range keys {
		if err := s.kv.KVDelete(key); err != nil {
			return fmt.Errorf("failed to delete key %s: %w", key, err)
		}
	}

	return nil
}
