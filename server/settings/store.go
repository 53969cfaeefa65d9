// Package settings is the client-side settings store. It loads user preferences from a
// key-value store, validates every change, persists it and echoes the values the backend
// scheduler depends on through the backend's config commands.
package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/pailer/pailer-core/server/interval"
	"github.com/pailer/pailer-core/server/kvstore"
)

// Mirror is the backend command used to echo a setting, i.e. set_config_value.
type Mirror interface {
	SetConfigValue(ctx context.Context, key string, value json.RawMessage) error
}

// Store provides validated access to the settings with an in-memory snapshot.
type Store struct {
	kv     kvstore.KVStore
	mirror Mirror
	logger hclog.Logger

	mu       sync.RWMutex
	state    State
	settings Settings

	savingMu sync.Mutex
	saving   map[Key]bool

	// minimumMu is read-held by interval saves and write-held by debug changes, so an interval is
	// validated and saved under one debug setting.
	minimumMu sync.RWMutex
}

// NewStore creates an uninitialized store. mirror may be nil when there is no backend to notify.
func NewStore(kv kvstore.KVStore, mirror Mirror, logger hclog.Logger) *Store {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	return &Store{
		kv:       kv,
		mirror:   mirror,
		logger:   logger.Named("settings"),
		state:    Uninitialized,
		settings: Defaults(),
		saving:   make(map[Key]bool),
	}
}

// State returns the lifecycle state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Load reads every field from the key-value store. Missing or malformed values fall back to their
// defaults; keys the store does not manage are ignored. Load may be called again to reload.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	if s.state == Loading {
		s.mu.Unlock()
		return ErrAlreadyLoading
	}
	previous := s.state
	s.state = Loading
	s.mu.Unlock()

	loaded := Defaults()
	for _, key := range AllKeys() {
		if err := ctx.Err(); err != nil {
			s.mu.Lock()
			s.state = previous
			s.mu.Unlock()
			return err
		}

		raw, err := s.kv.KVGet(string(key))
		if err != nil {
			s.logger.Warn("Failed to read setting, using default", "key", key, "error", err.Error())
			continue
		}
		if raw == nil {
			continue
		}

		if err := fieldDecoders[key](raw, &loaded); err != nil {
			s.logger.Warn("Ignoring malformed setting, using default", "key", key, "error", err.Error())
		}
	}

	s.mu.Lock()
	s.settings = loaded
	s.state = Ready
	s.mu.Unlock()

	s.logger.Info("Settings loaded",
		"autoUpdateInterval", loaded.AutoUpdateInterval,
		"debug", loaded.DebugEnabled,
		"language", loaded.Language)

	return nil
}

// Get returns the current snapshot.
func (s *Store) Get() (Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state != Ready {
		return Settings{}, ErrNotReady
	}
	return s.settings, nil
}

// MinimumIntervalSeconds returns the minimum interval under the current debug setting.
func (s *Store) MinimumIntervalSeconds() (uint64, error) {
	current, err := s.Get()
	if err != nil {
		return 0, err
	}
	return interval.MinimumSeconds(current.DebugEnabled), nil
}

// Sync echoes every mirrored value to the backend, so the backend agrees with the store after
// startup.
func (s *Store) Sync(ctx context.Context) error {
	current, err := s.Get()
	if err != nil {
		return err
	}
	if s.mirror == nil {
		return nil
	}

	for _, key := range AllKeys() {
		if !IsMirrored(key) {
			continue
		}

		data, err := json.Marshal(valueOf(current, key))
		if err != nil {
			return fmt.Errorf("failed to marshal setting %s: %w", key, err)
		}

		if err := s.mirror.SetConfigValue(ctx, string(key), data); err != nil {
			return &PersistError{Key: key, Op: "mirror", Err: err}
		}
	}

	return nil
}

// save persists value under key, echoes it to the backend when the key is mirrored and finally
// applies it to the snapshot. If echoing fails the stored value is rolled back.
func (s *Store) save(ctx context.Context, key Key, value interface{}, apply func(*Settings)) error {
	if s.State() != Ready {
		return ErrNotReady
	}

	if !s.beginSave(key) {
		return fmt.Errorf("%w: %s", ErrSaveInProgress, key)
	}
	defer s.endSave(key)

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal setting %s: %w", key, err)
	}

	previous, err := s.kv.KVGet(string(key))
	if err != nil {
		return &PersistError{Key: key, Op: "read", Err: err}
	}

	if err := s.kv.KVSet(string(key), data); err != nil {
		s.logger.Error("Failed to persist setting", "key", key, "error", err.Error())
		return &PersistError{Key: key, Op: "store", Err: err}
	}

	if s.mirror != nil && IsMirrored(key) {
		if err := s.mirror.SetConfigValue(ctx, string(key), data); err != nil {
			s.logger.Error("Failed to mirror setting to backend", "key", key, "error", err.Error())
			s.rollback(key, previous)
			return &PersistError{Key: key, Op: "mirror", Err: err}
		}
	}

	s.mu.Lock()
	apply(&s.settings)
	s.mu.Unlock()

	s.logger.Info("Setting saved", "key", key, "value", string(data))
	return nil
}

func (s *Store) rollback(key Key, previous []byte) {
	var err error
	if previous == nil {
		err = s.kv.KVDelete(string(key))
	} else {
		err = s.kv.KVSet(string(key), previous)
	}
	if err != nil {
		s.logger.Error("Failed to roll back setting", "key", key, "error", err.Error())
	}
}

func (s *Store) beginSave(key Key) bool {
	s.savingMu.Lock()
	defer s.savingMu.Unlock()

	if s.saving[key] {
		return false
	}
	s.saving[key] = true
	return true
}

func (s *Store) endSave(key Key) {
	s.savingMu.Lock()
	defer s.savingMu.Unlock()
	delete(s.saving, key)
}
