package backend

import (
	"encoding/json"
	"fmt"

	"github.com/pailer/pailer-core/server/interval"
	"github.com/pailer/pailer-core/server/settings"
)

// ValidateConfigValue checks a value before it is written to the backend store.
// Values for keys the scheduler reads are type checked; any other key accepts arbitrary JSON.
func ValidateConfigValue(key string, value json.RawMessage) error {
	if key == "" {
		return fmt.Errorf("config key cannot be empty")
	}

	if !json.Valid(value) {
		return fmt.Errorf("config value for %s is not valid JSON", key)
	}

	switch key {
	case string(settings.KeyAutoUpdateInterval):
		return validateDescriptor(value)

	case string(settings.KeyAutoUpdatePackagesEnabled),
		string(settings.KeySilentUpdateEnabled),
		string(settings.KeyUpdateHistoryEnabled):
		var flag bool
		if err := json.Unmarshal(value, &flag); err != nil {
			return fmt.Errorf("config value for %s must be a boolean", key)
		}

	case KeyLastAutoUpdateTs:
		var ts uint64
		if err := json.Unmarshal(value, &ts); err != nil {
			return fmt.Errorf("config value for %s must be a non-negative integer", key)
		}
	}

	return nil
}

// validateDescriptor accepts "off", presets and any interval that respects the debug floor.
// The stricter normal-mode minimum is enforced by the settings store, which knows the debug flag.
func validateDescriptor(value json.RawMessage) error {
	var descriptor string
	if err := json.Unmarshal(value, &descriptor); err != nil {
		return fmt.Errorf("auto-update interval must be a string")
	}

	if interval.IsOff(descriptor) {
		return nil
	}

	seconds, err := interval.ParseSeconds(descriptor)
	if err != nil {
		return err
	}

	return interval.Validate(seconds, interval.MinimumSecondsDebug)
}
