package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/pailer/pailer-core/server/interval"
	"github.com/pailer/pailer-core/server/kvstore"
	"github.com/pailer/pailer-core/server/settings"
)

// ChangeListener is notified after a config value has been written.
type ChangeListener func(key string, value json.RawMessage)

// ConfigService implements the backend's get_config_value and set_config_value commands over the
// backend key-value store. The auto-updater reads its schedule from the same store.
type ConfigService struct {
	kv     kvstore.KVStore
	logger hclog.Logger

	mu        sync.RWMutex
	listeners []ChangeListener
}

// NewConfigService creates a config service over kv.
func NewConfigService(kv kvstore.KVStore, logger hclog.Logger) *ConfigService {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	return &ConfigService{
		kv:     kv,
		logger: logger.Named("config"),
	}
}

// OnChange registers a listener for successful writes.
func (c *ConfigService) OnChange(listener ChangeListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, listener)
}

// GetConfigValue returns the raw value stored under key, or nil when the key is not set.
func (c *ConfigService) GetConfigValue(ctx context.Context, key string) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := c.kv.KVGet(key)
	if err != nil {
		return nil, fmt.Errorf("failed to get config value %s: %w", key, err)
	}
	if data == nil {
		return nil, nil
	}

	return json.RawMessage(data), nil
}

// SetConfigValue validates and stores value under key, then notifies listeners.
func (c *ConfigService) SetConfigValue(ctx context.Context, key string, value json.RawMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := ValidateConfigValue(key, value); err != nil {
		return err
	}

	if err := c.kv.KVSet(key, value); err != nil {
		return fmt.Errorf("failed to set config value %s: %w", key, err)
	}

	c.logger.Debug("Config value updated", "key", key)

	c.mu.RLock()
	listeners := append([]ChangeListener(nil), c.listeners...)
	c.mu.RUnlock()

	for _, listener := range listeners {
		listener(key, value)
	}

	return nil
}

// Descriptor returns the persisted auto-update descriptor, "off" when unset or unreadable.
func (c *ConfigService) Descriptor(ctx context.Context) string {
	data, err := c.GetConfigValue(ctx, string(settings.KeyAutoUpdateInterval))
	if err != nil {
		c.logger.Warn("Failed to read auto-update interval", "error", err.Error())
		return interval.Off
	}
	if data == nil {
		return interval.Off
	}

	var descriptor string
	if err := json.Unmarshal(data, &descriptor); err != nil {
		c.logger.Warn("Auto-update interval is not a string", "value", string(data))
		return interval.Off
	}

	return descriptor
}

// Bool returns the boolean stored under key, or fallback when the value is missing or not a boolean.
func (c *ConfigService) Bool(ctx context.Context, key settings.Key, fallback bool) bool {
	data, err := c.GetConfigValue(ctx, string(key))
	if err != nil || data == nil {
		return fallback
	}

	var value bool
	if err := json.Unmarshal(data, &value); err != nil {
		return fallback
	}

	return value
}
