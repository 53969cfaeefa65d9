package settings

import (
	"context"
	"encoding/json"

	"github.com/stretchr/testify/mock"
)

// mockMirror records the values echoed to the backend.
type mockMirror struct {
	mock.Mock
}

func (m *mockMirror) SetConfigValue(ctx context.Context, key string, value json.RawMessage) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

// mockKV is a testify mock of kvstore.KVStore.
type mockKV struct {
	mock.Mock
}

func (m *mockKV) KVGet(key string) ([]byte, error) {
	args := m.Called(key)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func (m *mockKV) KVSet(key string, value []byte) error {
	args := m.Called(key, value)
	return args.Error(0)
}

func (m *mockKV) KVDelete(key string) error {
	args := m.Called(key)
	return args.Error(0)
}

func (m *mockKV) KVList() ([]string, error) {
	args := m.Called()
	keys, _ := args.Get(0).([]string)
	return keys, args.Error(1)
}
