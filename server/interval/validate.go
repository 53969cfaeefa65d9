package interval

const (
	// MinimumSecondsNormal is the smallest interval accepted outside debug mode.
	MinimumSecondsNormal uint64 = 300

	// MinimumSecondsDebug is the smallest interval accepted in debug mode. It is also the
	// floor below which the scheduler refuses to run, whatever the persisted value says.
	MinimumSecondsDebug uint64 = 10
)

// MinimumSeconds returns the applicable minimum interval.
func MinimumSeconds(debug bool) uint64 {
	if debug {
		return MinimumSecondsDebug
	}
	return MinimumSecondsNormal
}

// Validate rejects intervals shorter than minimum. Values are never clamped.
func Validate(seconds, minimum uint64) error {
	if seconds < minimum {
		return &BelowMinimumError{Seconds: seconds, Minimum: minimum}
	}
	return nil
}
