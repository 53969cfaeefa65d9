package settings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/pailer/pailer-core/server/interval"
)

// decodeValue unmarshals a stored value keeping numbers exact.
func decodeValue(raw []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var value interface{}
	if err := dec.Decode(&value); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return value, nil
}

// decodeDescriptor accepts a descriptor string, or a bare number of seconds written by older versions.
func decodeDescriptor(raw []byte) (string, error) {
	value, err := decodeValue(raw)
	if err != nil {
		return "", err
	}

	switch v := value.(type) {
	case string:
		if interval.IsOff(v) || interval.IsPreset(v) {
			return v, nil
		}
		if _, err := interval.ParseSeconds(v); err != nil {
			return "", err
		}
		return v, nil
	case json.Number:
		seconds, err := strconv.ParseUint(v.String(), 10, 64)
		if err != nil {
			return "", fmt.Errorf("%w: %s", interval.ErrUnrecognizedDescriptor, v)
		}
		return interval.FormatDescriptor(seconds), nil
	default:
		return "", fmt.Errorf("expected a descriptor string, got %T", value)
	}
}

// decodeBool accepts JSON booleans and their string spellings.
func decodeBool(raw []byte) (bool, error) {
	value, err := decodeValue(raw)
	if err != nil {
		return false, err
	}

	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return false, fmt.Errorf("expected a boolean, got %q", v)
		}
		return b, nil
	default:
		return false, fmt.Errorf("expected a boolean, got %T", value)
	}
}

// decodeLanguage accepts a non-empty language code.
func decodeLanguage(raw []byte) (string, error) {
	value, err := decodeValue(raw)
	if err != nil {
		return "", err
	}

	language, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("expected a language string, got %T", value)
	}

	language = strings.TrimSpace(language)
	if language == "" {
		return "", fmt.Errorf("language cannot be empty")
	}

	return language, nil
}

// fieldDecoders applies a decoded stored value to a snapshot, one entry per key.
var fieldDecoders = map[Key]func(raw []byte, s *Settings) error{
	KeyAutoUpdateInterval: func(raw []byte, s *Settings) error {
		v, err := decodeDescriptor(raw)
		if err == nil {
			s.AutoUpdateInterval = v
		}
		return err
	},
	KeyAutoUpdatePackagesEnabled: func(raw []byte, s *Settings) error {
		v, err := decodeBool(raw)
		if err == nil {
			s.AutoUpdatePackagesEnabled = v
		}
		return err
	},
	KeySilentUpdateEnabled: func(raw []byte, s *Settings) error {
		v, err := decodeBool(raw)
		if err == nil {
			s.SilentUpdateEnabled = v
		}
		return err
	},
	KeyUpdateHistoryEnabled: func(raw []byte, s *Settings) error {
		v, err := decodeBool(raw)
		if err == nil {
			s.UpdateHistoryEnabled = v
		}
		return err
	},
	KeyDebugEnabled: func(raw []byte, s *Settings) error {
		v, err := decodeBool(raw)
		if err == nil {
			s.DebugEnabled = v
		}
		return err
	},
	KeyLanguage: func(raw []byte, s *Settings) error {
		v, err := decodeLanguage(raw)
		if err == nil {
			s.Language = v
		}
		return err
	},
}

// valueOf returns the snapshot value stored under key.
func valueOf(s Settings, key Key) interface{} {
	switch key {
	case KeyAutoUpdateInterval:
		return s.AutoUpdateInterval
	case KeyAutoUpdatePackagesEnabled:
		return s.AutoUpdatePackagesEnabled
	case KeySilentUpdateEnabled:
		return s.SilentUpdateEnabled
	case KeyUpdateHistoryEnabled:
		return s.UpdateHistoryEnabled
	case KeyDebugEnabled:
		return s.DebugEnabled
	case KeyLanguage:
		return s.Language
	default:
		return nil
	}
}
