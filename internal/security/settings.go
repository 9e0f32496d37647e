package security

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// Settings validation limits.
const (
	MinFailedAttempts = 1
	MaxFailedAttempts = 20

	MaxMovementThreshold = 50.0

	MinTouchSensitivityMs = 50
	MaxTouchSensitivityMs = 10000
)

// Settings holds the user-adjustable security settings.
type Settings struct {
	MaxFailedAttempts       int     `json:"maxFailedAttempts"`
	AutoLockEnabled         bool    `json:"autoLockEnabled"`
	MovementLockEnabled     bool    `json:"movementLockEnabled"`
	MovementThreshold       float64 `json:"movementThreshold"`
	DontTouchLockEnabled    bool    `json:"dontTouchLockEnabled"`
	TouchSensitivityMs      int     `json:"touchSensitivityMs"`
	USBLockEnabled          bool    `json:"usbLockEnabled"`
	AppLockEnabled          bool    `json:"appLockEnabled"`
	ScreenLockEnabled       bool    `json:"screenLockEnabled"`
	PreventUninstall        bool    `json:"preventUninstall"`
	PerformanceBoostEnabled bool    `json:"performanceBoostEnabled"`
	RemoteResetEnabled      bool    `json:"remoteResetEnabled"`
	SOSEnabled              bool    `json:"sosEnabled"`
}

// DefaultSettings returns the settings used when nothing is persisted.
func DefaultSettings() Settings {
	return Settings{
		MaxFailedAttempts:  3,
		AutoLockEnabled:    true,
		MovementThreshold:  15.0,
		TouchSensitivityMs: 1500,
		RemoteResetEnabled: true,
		SOSEnabled:         true,
	}
}

// Feature names accepted by SetFeatureEnabled, mapped to the settings
// field they toggle.
var featureFields = map[string]string{
	"movement_lock": "movementLockEnabled",
	"dont_touch":    "dontTouchLockEnabled",
	"usb_lock":      "usbLockEnabled",
	"app_lock":      "appLockEnabled",
	"screen_lock":   "screenLockEnabled",
}

// FeatureNames returns the feature names accepted by SetFeatureEnabled.
func FeatureNames() []string {
	names := make([]string, 0, len(featureFields))
	for name := range featureFields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// fieldSetter validates one raw JSON value and applies it.
type fieldSetter func(s *Settings, raw json.RawMessage) error

var settingFields = map[string]fieldSetter{
	"maxFailedAttempts": func(s *Settings, raw json.RawMessage) error {
		var v int
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		if v < MinFailedAttempts {
			return fmt.Errorf("%w: maxFailedAttempts %d below %d", ErrInvalidSetting, v, MinFailedAttempts)
		}
		s.MaxFailedAttempts = min(v, MaxFailedAttempts)
		return nil
	},
	"movementThreshold": func(s *Settings, raw json.RawMessage) error {
		var v float64
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: movementThreshold must be positive", ErrInvalidSetting)
		}
		s.MovementThreshold = math.Min(v, MaxMovementThreshold)
		return nil
	},
	"touchSensitivityMs": func(s *Settings, raw json.RawMessage) error {
		var v int
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		if v <= 0 {
			return fmt.Errorf("%w: touchSensitivityMs must be positive", ErrInvalidSetting)
		}
		s.TouchSensitivityMs = max(MinTouchSensitivityMs, min(v, MaxTouchSensitivityMs))
		return nil
	},
	"autoLockEnabled":         boolField(func(s *Settings) *bool { return &s.AutoLockEnabled }),
	"movementLockEnabled":     boolField(func(s *Settings) *bool { return &s.MovementLockEnabled }),
	"dontTouchLockEnabled":    boolField(func(s *Settings) *bool { return &s.DontTouchLockEnabled }),
	"usbLockEnabled":          boolField(func(s *Settings) *bool { return &s.USBLockEnabled }),
	"appLockEnabled":          boolField(func(s *Settings) *bool { return &s.AppLockEnabled }),
	"screenLockEnabled":       boolField(func(s *Settings) *bool { return &s.ScreenLockEnabled }),
	"preventUninstall":        boolField(func(s *Settings) *bool { return &s.PreventUninstall }),
	"performanceBoostEnabled": boolField(func(s *Settings) *bool { return &s.PerformanceBoostEnabled }),
	"remoteResetEnabled":      boolField(func(s *Settings) *bool { return &s.RemoteResetEnabled }),
	"sosEnabled":              boolField(func(s *Settings) *bool { return &s.SOSEnabled }),
}

func boolField(field func(s *Settings) *bool) fieldSetter {
	return func(s *Settings, raw json.RawMessage) error {
		var v bool
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		*field(s) = v
		return nil
	}
}

// Merge applies a partial update field by field and returns the merged
// settings together with the names of rejected fields, sorted.
//
// A field is rejected when it is unknown, is null, has the wrong JSON
// type, or fails its range check. A rejected field keeps its prior value; the
// other fields are still applied. Out-of-range values that have a
// sensible bound are clamped instead of rejected.
func (s Settings) Merge(partial map[string]json.RawMessage) (Settings, []string) {
	merged := s
	var rejected []string

	for name, raw := range partial {
		set, ok := settingFields[name]
		if !ok {
			rejected = append(rejected, name)
			continue
		}
		if isNull(raw) {
			rejected = append(rejected, name)
			continue
		}
		candidate := merged
		if err := set(&candidate, raw); err != nil {
			rejected = append(rejected, name)
			continue
		}
		merged = candidate
	}

	sort.Strings(rejected)
	return merged, rejected
}

// isNull reports whether raw is a JSON null, which json.Unmarshal
// accepts into any type as a no-op.
func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// Normalize clamps every field into its valid range, falling back to
// defaults for values that cannot be clamped. It is applied to settings
// loaded from storage or configuration.
func (s Settings) Normalize() Settings {
	def := DefaultSettings()

	if s.MaxFailedAttempts < MinFailedAttempts {
		s.MaxFailedAttempts = def.MaxFailedAttempts
	}
	s.MaxFailedAttempts = min(s.MaxFailedAttempts, MaxFailedAttempts)

	if s.MovementThreshold <= 0 || math.IsNaN(s.MovementThreshold) || math.IsInf(s.MovementThreshold, 0) {
		s.MovementThreshold = def.MovementThreshold
	}
	s.MovementThreshold = math.Min(s.MovementThreshold, MaxMovementThreshold)

	if s.TouchSensitivityMs <= 0 {
		s.TouchSensitivityMs = def.TouchSensitivityMs
	}
	s.TouchSensitivityMs = max(MinTouchSensitivityMs, min(s.TouchSensitivityMs, MaxTouchSensitivityMs))

	return s
}
