package settings

import "github.com/pailer/pailer-core/server/interval"

// Settings is an immutable snapshot of the user preferences.
type Settings struct {
	AutoUpdateInterval        string `json:"autoUpdateInterval"`
	AutoUpdatePackagesEnabled bool   `json:"autoUpdatePackagesEnabled"`
	SilentUpdateEnabled       bool   `json:"silentUpdateEnabled"`
	UpdateHistoryEnabled      bool   `json:"updateHistoryEnabled"`
	DebugEnabled              bool   `json:"debugEnabled"`
	Language                  string `json:"language"`
}

// State is the lifecycle state of a Store.
type State int

const (
	Uninitialized State = iota
	Loading
	Ready
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}

// EditorMode says which control of the interval editor is active.
type EditorMode string

const (
	ModeOff    EditorMode = "off"
	ModePreset EditorMode = "preset"
	ModeCustom EditorMode = "custom"
)

// IntervalEditor is the state the interval form is rebuilt from on load.
type IntervalEditor struct {
	Descriptor     string        `json:"descriptor"`
	Mode           EditorMode    `json:"mode"`
	Seconds        uint64        `json:"seconds"`
	Quantity       uint64        `json:"quantity"`
	Unit           interval.Unit `json:"unit"`
	Label          string        `json:"label"`
	MinimumSeconds uint64        `json:"minimumSeconds"`
	MinimumLabel   string        `json:"minimumLabel"`
}
