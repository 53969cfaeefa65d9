// Package updatelog keeps the history of scheduled bucket and package updates.
package updatelog

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/pailer/pailer-core/server/kvstore"
)

const (
	// DefaultMaxEntries is the number of entries kept when no limit is configured.
	DefaultMaxEntries = 100

	// DefaultRecentLimit is the number of entries returned by Recent when no limit is given.
	DefaultRecentLimit = 50

	entriesKey = "updateLog.entries"
)

// OperationType is the kind of update an entry records.
type OperationType string

const (
	OperationBucket  OperationType = "bucket"
	OperationPackage OperationType = "package"
)

// ErrEntryNotFound is returned by Remove for an unknown entry ID.
var ErrEntryNotFound = errors.New("update log entry not found")

// Entry is one recorded update run.
type Entry struct {
	ID              string        `json:"id"`
	Timestamp       time.Time     `json:"timestamp"`
	OperationType   OperationType `json:"operationType"`
	OperationResult string        `json:"operationResult"`
	SuccessCount    int           `json:"successCount"`
	TotalCount      int           `json:"totalCount"`
	Details         []string      `json:"details"`
}

// Store holds entries newest first, capped at maxEntries, persisted under a single key.
type Store struct {
	kv         kvstore.KVStore
	maxEntries int
	logger     hclog.Logger

	mu      sync.RWMutex
	entries []Entry
}

// Open loads the history from kv. A missing history starts empty; an unreadable one is logged and
// replaced on the next write.
func Open(kv kvstore.KVStore, maxEntries int, logger hclog.Logger) (*Store, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}

	s := &Store{
		kv:         kv,
		maxEntries: maxEntries,
		logger:     logger.Named("updatelog"),
	}

	data, err := kv.KVGet(entriesKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read update log: %w", err)
	}

	if data != nil {
		if err := json.Unmarshal(data, &s.entries); err != nil {
			s.logger.Warn("Discarding unreadable update log", "error", err.Error())
			s.entries = nil
		}
	}

	if len(s.entries) > s.maxEntries {
		s.entries = s.entries[:s.maxEntries]
	}

	return s, nil
}

// Add records entry as the newest one, assigning an ID and timestamp when missing.
// The stored entry is returned.
func (s *Store) Add(entry Entry) (Entry, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if entry.Details == nil {
		entry.Details = []string{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]Entry, 0, len(s.entries)+1)
	entries = append(entries, entry)
	entries = append(entries, s.entries...)
	if len(entries) > s.maxEntries {
		entries = entries[:s.maxEntries]
	}

	if err := s.save(entries); err != nil {
		return Entry{}, err
	}

	s.entries = entries
	return entry, nil
}

// Recent returns up to limit of the newest entries. A limit of zero or less means DefaultRecentLimit.
func (s *Store) Recent(limit int) []Entry {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit > len(s.entries) {
		limit = len(s.entries)
	}
	return append([]Entry{}, s.entries[:limit]...)
}

// All returns every entry, newest first.
func (s *Store) All() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Entry{}, s.entries...)
}

// ByType returns the entries of one operation type, newest first.
func (s *Store) ByType(operationType OperationType) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []Entry{}
	for _, entry := range s.entries {
		if entry.OperationType == operationType {
			result = append(result, entry)
		}
	}
	return result
}

// Remove deletes the entry with the given ID.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	index := -1
	for i, entry := range s.entries {
		if entry.ID == id {
			index = i
			break
		}
	}
	if index < 0 {
		return fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}

	entries := make([]Entry, 0, len(s.entries)-1)
	entries = append(entries, s.entries[:index]...)
	entries = append(entries, s.entries[index+1:]...)

	if err := s.save(entries); err != nil {
		return err
	}

	s.entries = entries
	return nil
}

// Clear removes every entry.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.KVDelete(entriesKey); err != nil {
		return fmt.Errorf("failed to clear update log: %w", err)
	}

	s.entries = nil
	s.logger.Info("Update log cleared")
	return nil
}

func (s *Store) save(entries []Entry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to marshal update log: %w", err)
	}

	if err := s.kv.KVSet(entriesKey, data); err != nil {
		return fmt.Errorf("failed to save update log: %w", err)
	}
	return nil
}
