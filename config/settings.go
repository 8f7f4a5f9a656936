package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Settings are the user-tunable visualization parameters. They control peak
// sharpness of the frequency panel and the bounds of the timeline zoom, so two
// renderers that need identical output must share the same values.
type Settings struct {
	Headroom       float64 `json:"headroom"`
	HeightFraction float64 `json:"heightFraction"`
	Exponent       float64 `json:"exponent"`
	Sigma          float64 `json:"sigma"`
	PlotSmoothed   bool    `json:"plotSmoothed"`
	MinZoom        float64 `json:"minZoom"`
	MaxZoom        float64 `json:"maxZoom"`
	SeekerEaseMs   int     `json:"seekerEaseMs"`
	DragDebounceMs int     `json:"dragDebounceMs"`
}

// DefaultSettings returns the stock visualization settings
func DefaultSettings() Settings {
	return Settings{
		Headroom:       80,
		HeightFraction: 0.85,
		Exponent:       2,
		Sigma:          1.5,
		MinZoom:        0.5,
		MaxZoom:        4,
		SeekerEaseMs:   300,
		DragDebounceMs: 8,
	}
}

// Validate reports the first setting that cannot be used
func (s Settings) Validate() error {
	switch {
	case s.Headroom <= 0:
		return fmt.Errorf("headroom must be positive")
	case s.HeightFraction <= 0 || s.HeightFraction > 1:
		return fmt.Errorf("heightFraction must be in (0, 1]")
	case s.Exponent <= 0:
		return fmt.Errorf("exponent must be positive")
	case s.Sigma <= 0:
		return fmt.Errorf("sigma must be positive")
	case s.MinZoom <= 0 || s.MaxZoom < s.MinZoom:
		return fmt.Errorf("zoom bounds must satisfy 0 < minZoom <= maxZoom")
	case s.SeekerEaseMs < 0 || s.DragDebounceMs < 0:
		return fmt.Errorf("durations must not be negative")
	}
	return nil
}

var settingsMu sync.Mutex

// SettingsFilePath returns the path to the settings file
func SettingsFilePath() string {
	if p := os.Getenv("WAVEANALYZER_SETTINGS"); p != "" {
		return p
	}
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".waveanalyzer-settings.json")
}

// LoadSettings reads the settings file, falling back to defaults when absent
func LoadSettings() (Settings, error) {
	settingsMu.Lock()
	defer settingsMu.Unlock()

	settings := DefaultSettings()
	data, err := os.ReadFile(SettingsFilePath())
	if err != nil {
		if os.IsNotExist(err) {
			return settings, nil
		}
		return settings, err
	}

	// Fields missing from the file keep their defaults
	if err := json.Unmarshal(data, &settings); err != nil {
		return DefaultSettings(), err
	}
	return settings, nil
}

// SaveSettings validates and writes the settings file
func SaveSettings(settings Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	settingsMu.Lock()
	defer settingsMu.Unlock()

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(SettingsFilePath(), data, 0644)
}
