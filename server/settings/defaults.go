package settings

import "github.com/pailer/pailer-core/server/interval"

// Default values used when a key is missing or holds a value that cannot be decoded.
const (
	DefaultAutoUpdateInterval        = interval.Off
	DefaultAutoUpdatePackagesEnabled = false
	DefaultSilentUpdateEnabled       = false
	DefaultUpdateHistoryEnabled      = true
	DefaultDebugEnabled              = false
	DefaultLanguage                  = "en"
)

// Defaults returns the settings of a fresh installation.
func Defaults() Settings {
	return Settings{
		AutoUpdateInterval:        DefaultAutoUpdateInterval,
		AutoUpdatePackagesEnabled: DefaultAutoUpdatePackagesEnabled,
		SilentUpdateEnabled:       DefaultSilentUpdateEnabled,
		UpdateHistoryEnabled:      DefaultUpdateHistoryEnabled,
		DebugEnabled:              DefaultDebugEnabled,
		Language:                  DefaultLanguage,
	}
}
