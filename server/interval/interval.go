// Package interval parses, validates and formats auto-update interval descriptors.
//
// A descriptor is the persisted string form of an interval: the literal "off", a legacy preset
// token such as "24h", "custom:<seconds>", or bare digits meaning seconds.
package interval

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const (
	// Off disables the auto-update feature.
	Off = "off"

	// CustomPrefix prefixes a descriptor that carries a raw number of seconds.
	CustomPrefix = "custom:"
)

// presets maps the legacy preset tokens to their length in seconds.
var presets = map[string]uint64{
	"1h":  3600,
	"6h":  21600,
	"24h": 86400,
	"1d":  86400,
	"7d":  604800,
	"1w":  604800,
}

// IsOff reports whether the descriptor disables the feature.
func IsOff(descriptor string) bool {
	return descriptor == Off
}

// IsPreset reports whether the descriptor is one of the legacy preset tokens.
func IsPreset(descriptor string) bool {
	_, ok := presets[descriptor]
	return ok
}

// Presets returns the legacy preset tokens ordered by length, then by name.
func Presets() []string {
	tokens := make([]string, 0, len(presets))
	for token := range presets {
		tokens = append(tokens, token)
	}
	sort.Slice(tokens, func(i, j int) bool {
		if presets[tokens[i]] != presets[tokens[j]] {
			return presets[tokens[i]] < presets[tokens[j]]
		}
		return tokens[i] < tokens[j]
	})
	return tokens
}

// ParseSeconds resolves a descriptor to a number of seconds.
// "off" has no numeric meaning and fails with ErrNotQuantity; callers check IsOff first.
func ParseSeconds(descriptor string) (uint64, error) {
	if IsOff(descriptor) {
		return 0, ErrNotQuantity
	}

	if seconds, ok := presets[descriptor]; ok {
		return seconds, nil
	}

	raw := strings.TrimPrefix(descriptor, CustomPrefix)
	seconds, ok := parseDigits(raw)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnrecognizedDescriptor, descriptor)
	}

	return seconds, nil
}

// FormatDescriptor returns the canonical descriptor for a number of seconds.
func FormatDescriptor(seconds uint64) string {
	return CustomPrefix + strconv.FormatUint(seconds, 10)
}

// Canonical returns the form a descriptor is persisted in after a user edit.
// "off" and presets are kept verbatim, everything else is rewritten as custom:<seconds>.
func Canonical(descriptor string) (string, error) {
	if IsOff(descriptor) || IsPreset(descriptor) {
		return descriptor, nil
	}

	seconds, err := ParseSeconds(descriptor)
	if err != nil {
		return "", err
	}

	return FormatDescriptor(seconds), nil
}

// ParseQuantity parses the quantity field of the interval editor.
// Only positive base-10 integers are accepted.
func ParseQuantity(raw string) (uint64, error) {
	quantity, ok := parseDigits(raw)
	if !ok || quantity == 0 {
		return 0, fmt.Errorf("%w: %q", ErrNonIntegerQuantity, raw)
	}
	return quantity, nil
}

// parseDigits parses a non-empty string made only of ASCII digits.
func parseDigits(raw string) (uint64, bool) {
	if raw == "" {
		return 0, false
	}

	for i := 0; i < len(raw); i++ {
		if raw[i] < '0' || raw[i] > '9' {
			return 0, false
		}
	}

	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false
	}

	return value, true
}
