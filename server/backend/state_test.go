package backend

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pailer/pailer-core/server/kvstore"
)

func TestStateStore_LastRun(t *testing.T) {
	t.Run("save stores unix seconds", func(t *testing.T) {
		kv := &mockKVStore{}
		store := NewStateStore(kv)

		ts := time.Date(2025, 1, 1, 0, 0, 0, 500, time.UTC)
		kv.On("KVSet", "buckets.lastAutoUpdateTs", []byte("1735689600")).Return(nil)

		require.NoError(t, store.SaveLastRun(ts))
		kv.AssertExpectations(t)
	})

	t.Run("round trip truncates to seconds", func(t *testing.T) {
		store := NewStateStore(kvstore.NewMemoryStore())

		ts := time.Date(2025, 1, 1, 12, 30, 15, 999, time.UTC)
		require.NoError(t, store.SaveLastRun(ts))

		got, err := store.GetLastRun()
		require.NoError(t, err)
		assert.True(t, got.Equal(ts.Truncate(time.Second)))
	})

	t.Run("missing is zero", func(t *testing.T) {
		kv := &mockKVStore{}
		store := NewStateStore(kv)
		kv.On("KVGet", "buckets.lastAutoUpdateTs").Return(nil, nil)

		got, err := store.GetLastRun()
		require.NoError(t, err)
		assert.True(t, got.IsZero())
		kv.AssertExpectations(t)
	})

	t.Run("stored zero is zero", func(t *testing.T) {
		kv := kvstore.NewMemoryStore()
		require.NoError(t, kv.KVSet("buckets.lastAutoUpdateTs", []byte("0")))

		got, err := NewStateStore(kv).GetLastRun()
		require.NoError(t, err)
		assert.True(t, got.IsZero())
	})

	t.Run("corrupted value", func(t *testing.T) {
		kv := kvstore.NewMemoryStore()
		require.NoError(t, kv.KVSet("buckets.lastAutoUpdateTs", []byte(`"yesterday"`)))

		_, err := NewStateStore(kv).GetLastRun()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to unmarshal last run time")
	})

	t.Run("kv error", func(t *testing.T) {
		kv := &mockKVStore{}
		kv.On("KVGet", "buckets.lastAutoUpdateTs").Return(nil, errors.New("disk error"))

		_, err := NewStateStore(kv).GetLastRun()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disk error")
	})
}

func TestStateStore_Failures(t *testing.T) {
	store := NewStateStore(kvstore.NewMemoryStore())

	count, err := store.GetFailures()
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	for i := 1; i <= 3; i++ {
		count, err = store.IncrementFailures()
		require.NoError(t, err)
		assert.Equal(t, i, count)
	}

	require.NoError(t, store.ResetFailures())
	count, err = store.GetFailures()
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestStateStore_IncrementFailures_SaveError(t *testing.T) {
	kv := &mockKVStore{}
	store := NewStateStore(kv)

	kv.On("KVGet", keyFailures).Return([]byte("2"), nil)
	kv.On("KVSet", keyFailures, []byte("3")).Return(errors.New("read-only"))

	_, err := store.IncrementFailures()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to save failures count")
	kv.AssertExpectations(t)
}

func TestStateStore_LastSuccessAndError(t *testing.T) {
	store := NewStateStore(kvstore.NewMemoryStore())

	success, err := store.GetLastSuccess()
	require.NoError(t, err)
	assert.True(t, success.IsZero())

	lastErr, err := store.GetLastError()
	require.NoError(t, err)
	assert.Empty(t, lastErr)

	ts := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	require.NoError(t, store.SaveLastSuccess(ts))
	require.NoError(t, store.SaveLastError("Bucket update completed: 1 of 2 succeeded"))

	success, err = store.GetLastSuccess()
	require.NoError(t, err)
	assert.True(t, success.Equal(ts))

	lastErr, err = store.GetLastError()
	require.NoError(t, err)
	assert.Equal(t, "Bucket update completed: 1 of 2 succeeded", lastErr)
}

func TestStateStore_ClearAll(t *testing.T) {
	kv := kvstore.NewMemoryStore()
	store := NewStateStore(kv)

	require.NoError(t, store.SaveLastRun(time.Unix(1735689600, 0)))
	_, err := store.IncrementFailures()
	require.NoError(t, err)
	require.NoError(t, store.SaveLastError("boom"))
	require.NoError(t, store.SaveLastSuccess(time.Now()))
	require.NoError(t, kv.KVSet("buckets.autoUpdateInterval", json.RawMessage(`"1d"`)))

	require.NoError(t, store.ClearAll())

	keys, err := kv.KVList()
	require.NoError(t, err)
	assert.Equal(t, []string{"buckets.autoUpdateInterval"}, keys)
}
