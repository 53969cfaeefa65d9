package settings

// Key is a dotted settings key as persisted in the key-value store.
type Key string

const (
	// KeyAutoUpdateInterval stores the bucket auto-update interval descriptor.
	KeyAutoUpdateInterval Key = "buckets.autoUpdateInterval"

	// KeyAutoUpdatePackagesEnabled makes the backend update packages after a scheduled bucket update.
	KeyAutoUpdatePackagesEnabled Key = "buckets.autoUpdatePackagesEnabled"

	// KeySilentUpdateEnabled suppresses progress events for scheduled updates.
	KeySilentUpdateEnabled Key = "buckets.silentUpdateEnabled"

	// KeyUpdateHistoryEnabled controls whether scheduled runs are recorded in the update history.
	KeyUpdateHistoryEnabled Key = "buckets.updateHistoryEnabled"

	// KeyDebugEnabled lowers the minimum auto-update interval.
	KeyDebugEnabled Key = "debug.enabled"

	// KeyLanguage is the UI language, also used for interval labels.
	KeyLanguage Key = "settings.language"
)

// AllKeys returns every key the store manages, in load order.
func AllKeys() []Key {
	return []Key{
		KeyAutoUpdateInterval,
		KeyAutoUpdatePackagesEnabled,
		KeySilentUpdateEnabled,
		KeyUpdateHistoryEnabled,
		KeyDebugEnabled,
		KeyLanguage,
	}
}

// IsManaged reports whether key is one of the settings the store owns.
func IsManaged(key Key) bool {
	_, ok := fieldDecoders[key]
	return ok
}

// IsMirrored reports whether changes to key are echoed to the backend.
func IsMirrored(key Key) bool {
	switch key {
	case KeyAutoUpdateInterval, KeyAutoUpdatePackagesEnabled, KeySilentUpdateEnabled,
		KeyUpdateHistoryEnabled, KeyLanguage:
		return true
	default:
		return false
	}
}

// KeyDescription returns a human-readable description for a setting key
func KeyDescription(key Key) string {
	switch key {
	case KeyAutoUpdateInterval:
		return "How often buckets are updated automatically"
	case KeyAutoUpdatePackagesEnabled:
		return "Update installed packages after the automatic bucket update"
	case KeySilentUpdateEnabled:
		return "Run automatic updates without showing progress"
	case KeyUpdateHistoryEnabled:
		return "Record automatic updates in the update history"
	case KeyDebugEnabled:
		return "Enable debug mode"
	case KeyLanguage:
		return "Interface language"
	default:
		return ""
	}
}
