package backend

import (
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/pailer/pailer-core/server/updatelog"
)

// mockKVStore is a testify mock of kvstore.KVStore.
type mockKVStore struct {
	mock.Mock
}

func (m *mockKVStore) KVGet(key string) ([]byte, error) {
	args := m.Called(key)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func (m *mockKVStore) KVSet(key string, value []byte) error {
	args := m.Called(key, value)
	return args.Error(0)
}

func (m *mockKVStore) KVDelete(key string) error {
	args := m.Called(key)
	return args.Error(0)
}

func (m *mockKVStore) KVList() ([]string, error) {
	args := m.Called()
	keys, _ := args.Get(0).([]string)
	return keys, args.Error(1)
}

// MockJobScheduler is a mock implementation for testing
type MockJobScheduler struct {
	ScheduleFn func(jobID string, every time.Duration, callback func()) (Job, error)

	mu       sync.Mutex
	callback func()
}

// Schedule calls the mock function and remembers the callback
func (m *MockJobScheduler) Schedule(jobID string, every time.Duration, callback func()) (Job, error) {
	m.mu.Lock()
	m.callback = callback
	m.mu.Unlock()

	if m.ScheduleFn != nil {
		return m.ScheduleFn(jobID, every, callback)
	}
	return &MockJob{}, nil
}

// Tick invokes the scheduled callback once
func (m *MockJobScheduler) Tick() {
	m.mu.Lock()
	callback := m.callback
	m.mu.Unlock()

	if callback != nil {
		callback()
	}
}

// MockJob is a mock job implementation for testing
type MockJob struct {
	CloseFn func() error
	closed  bool
}

// Close calls the mock function
func (m *MockJob) Close() error {
	m.closed = true
	if m.CloseFn != nil {
		return m.CloseFn()
	}
	return nil
}

// progressEvent is one call recorded by recordingPoster.
type progressEvent struct {
	kind    string
	text    string
	failed  bool
	success bool
}

// recordingPoster records progress events in order.
type recordingPoster struct {
	mu     sync.Mutex
	events []progressEvent
}

func (p *recordingPoster) Start(title string) error {
	p.record(progressEvent{kind: "start", text: title})
	return nil
}

func (p *recordingPoster) Output(line string, failed bool) error {
	p.record(progressEvent{kind: "output", text: line, failed: failed})
	return nil
}

func (p *recordingPoster) Finished(success bool, message string) error {
	p.record(progressEvent{kind: "finished", text: message, success: success})
	return nil
}

func (p *recordingPoster) record(event progressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPoster) Events() []progressEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]progressEvent(nil), p.events...)
}

// recordingHistory records history entries in insertion order.
type recordingHistory struct {
	mu      sync.Mutex
	entries []updatelog.Entry
}

func (h *recordingHistory) Add(entry updatelog.Entry) (updatelog.Entry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, entry)
	return entry, nil
}

func (h *recordingHistory) Entries() []updatelog.Entry {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]updatelog.Entry(nil), h.entries...)
}
