package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pailer/pailer-core/server/interval"
)

// SelectInterval persists a descriptor chosen through the preset selection. "off" and presets are
// written verbatim; any other descriptor is validated against the minimum and written as
// custom:<seconds>. The persisted descriptor is returned.
func (s *Store) SelectInterval(ctx context.Context, descriptor string) (string, error) {
	s.minimumMu.RLock()
	defer s.minimumMu.RUnlock()

	current, err := s.Get()
	if err != nil {
		return "", err
	}

	canonical, err := interval.Canonical(descriptor)
	if err != nil {
		return "", err
	}

	if !interval.IsOff(canonical) {
		seconds, err := interval.ParseSeconds(canonical)
		if err != nil {
			return "", err
		}
		if err := interval.Validate(seconds, interval.MinimumSeconds(current.DebugEnabled)); err != nil {
			return "", err
		}
	}

	err = s.save(ctx, KeyAutoUpdateInterval, canonical, func(st *Settings) {
		st.AutoUpdateInterval = canonical
	})
	if err != nil {
		return "", err
	}

	return canonical, nil
}

// SaveCustomInterval persists the quantity and unit entered in the custom interval form.
// The quantity must be a whole number and the result must respect the minimum interval.
func (s *Store) SaveCustomInterval(ctx context.Context, quantity, unit string) (string, error) {
	s.minimumMu.RLock()
	defer s.minimumMu.RUnlock()

	current, err := s.Get()
	if err != nil {
		return "", err
	}

	q, err := interval.ParseQuantity(strings.TrimSpace(quantity))
	if err != nil {
		return "", err
	}

	u, err := interval.ParseUnit(unit)
	if err != nil {
		return "", err
	}

	seconds, err := interval.Encode(q, u)
	if err != nil {
		return "", err
	}

	if err := interval.Validate(seconds, interval.MinimumSeconds(current.DebugEnabled)); err != nil {
		return "", err
	}

	descriptor := interval.FormatDescriptor(seconds)
	err = s.save(ctx, KeyAutoUpdateInterval, descriptor, func(st *Settings) {
		st.AutoUpdateInterval = descriptor
	})
	if err != nil {
		return "", err
	}

	return descriptor, nil
}

// SetAutoUpdatePackagesEnabled toggles package updates after scheduled bucket updates.
func (s *Store) SetAutoUpdatePackagesEnabled(ctx context.Context, enabled bool) error {
	return s.save(ctx, KeyAutoUpdatePackagesEnabled, enabled, func(st *Settings) {
		st.AutoUpdatePackagesEnabled = enabled
	})
}

// SetSilentUpdateEnabled toggles silent scheduled updates.
func (s *Store) SetSilentUpdateEnabled(ctx context.Context, enabled bool) error {
	return s.save(ctx, KeySilentUpdateEnabled, enabled, func(st *Settings) {
		st.SilentUpdateEnabled = enabled
	})
}

// SetUpdateHistoryEnabled toggles the update history.
func (s *Store) SetUpdateHistoryEnabled(ctx context.Context, enabled bool) error {
	return s.save(ctx, KeyUpdateHistoryEnabled, enabled, func(st *Settings) {
		st.UpdateHistoryEnabled = enabled
	})
}

// SetDebugEnabled toggles debug mode. The persisted interval is left alone; the new minimum only
// applies to later edits. It waits for interval saves in flight.
func (s *Store) SetDebugEnabled(ctx context.Context, enabled bool) error {
	s.minimumMu.Lock()
	defer s.minimumMu.Unlock()

	return s.save(ctx, KeyDebugEnabled, enabled, func(st *Settings) {
		st.DebugEnabled = enabled
	})
}

// SetLanguage changes the UI language.
func (s *Store) SetLanguage(ctx context.Context, language string) error {
	language = strings.TrimSpace(language)
	if language == "" {
		return fmt.Errorf("%w: language cannot be empty", ErrInvalidValue)
	}

	return s.save(ctx, KeyLanguage, language, func(st *Settings) {
		st.Language = language
	})
}

// SetFlag sets one of the boolean settings by key.
func (s *Store) SetFlag(ctx context.Context, key Key, enabled bool) error {
	switch key {
	case KeyAutoUpdatePackagesEnabled:
		return s.SetAutoUpdatePackagesEnabled(ctx, enabled)
	case KeySilentUpdateEnabled:
		return s.SetSilentUpdateEnabled(ctx, enabled)
	case KeyUpdateHistoryEnabled:
		return s.SetUpdateHistoryEnabled(ctx, enabled)
	case KeyDebugEnabled:
		return s.SetDebugEnabled(ctx, enabled)
	default:
		return fmt.Errorf("%w: %s is not a flag", ErrUnknownKey, key)
	}
}

// SetValue applies a raw JSON value to a key the store manages, through the same validation as the
// typed setters.
func (s *Store) SetValue(ctx context.Context, key Key, raw json.RawMessage) error {
	decode, ok := fieldDecoders[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}

	var decoded Settings
	if err := decode(raw, &decoded); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidValue, key, err)
	}

	switch key {
	case KeyAutoUpdateInterval:
		_, err := s.SelectInterval(ctx, decoded.AutoUpdateInterval)
		return err
	case KeyLanguage:
		return s.SetLanguage(ctx, decoded.Language)
	default:
		enabled, _ := valueOf(decoded, key).(bool)
		return s.SetFlag(ctx, key, enabled)
	}
}

// Value returns the current value of a managed key as JSON.
func (s *Store) Value(key Key) (json.RawMessage, error) {
	if !IsManaged(key) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}

	current, err := s.Get()
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(valueOf(current, key))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal setting %s: %w", key, err)
	}
	return data, nil
}

// IntervalEditor rebuilds the interval form from the persisted descriptor, with labels in the
// configured language.
func (s *Store) IntervalEditor() (IntervalEditor, error) {
	current, err := s.Get()
	if err != nil {
		return IntervalEditor{}, err
	}

	return NewIntervalEditor(current.AutoUpdateInterval, current.DebugEnabled, interval.LabelsFor(current.Language)), nil
}

// NewIntervalEditor describes descriptor for the interval form. Descriptors that cannot be
// parsed are shown as off.
func NewIntervalEditor(descriptor string, debug bool, labels interval.LabelFunc) IntervalEditor {
	minimum := interval.MinimumSeconds(debug)
	editor := IntervalEditor{
		Descriptor:     descriptor,
		Mode:           ModeOff,
		Unit:           interval.Hours,
		MinimumSeconds: minimum,
		MinimumLabel:   interval.FormatHuman(minimum, labels),
	}

	if interval.IsOff(descriptor) {
		return editor
	}

	seconds, err := interval.ParseSeconds(descriptor)
	if err != nil {
		return editor
	}

	editor.Mode = ModeCustom
	if interval.IsPreset(descriptor) {
		editor.Mode = ModePreset
	}
	editor.Seconds = seconds
	editor.Quantity, editor.Unit = interval.Decompose(seconds)
	editor.Label = interval.FormatHuman(seconds, labels)

	return editor
}
