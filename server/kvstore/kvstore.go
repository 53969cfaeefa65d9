// Package kvstore persists settings as a flat JSON object keyed by dotted keys.
package kvstore

// KVStore is the key-value persistence surface shared by the settings store and the backend.
// KVGet returns nil, nil when the key is not set.
type KVStore interface {
	KVGet(key string) ([]byte, error)
	KVSet(key string, value []byte) error
	KVDelete(key string) error
	KVList() ([]string, error)
}
