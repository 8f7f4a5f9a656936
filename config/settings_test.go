package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSettingsDefaultsWhenMissing(t *testing.T) {
	t.Setenv("WAVEANALYZER_SETTINGS", filepath.Join(t.TempDir(), "missing.json"))

	settings, err := LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), settings)
}

func TestSaveAndLoadSettings(t *testing.T) {
	t.Setenv("WAVEANALYZER_SETTINGS", filepath.Join(t.TempDir(), "settings.json"))

	settings := DefaultSettings()
	settings.Headroom = 100
	settings.Exponent = 3
	require.NoError(t, SaveSettings(settings))

	loaded, err := LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, 100.0, loaded.Headroom)
	assert.Equal(t, 3.0, loaded.Exponent)
	assert.Equal(t, 0.85, loaded.HeightFraction)
}

func TestPartialSettingsFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	t.Setenv("WAVEANALYZER_SETTINGS", path)
	require.NoError(t, os.WriteFile(path, []byte(`{"sigma": 2.5}`), 0644))

	loaded, err := LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, 2.5, loaded.Sigma)
	assert.Equal(t, 80.0, loaded.Headroom)
	assert.Equal(t, 4.0, loaded.MaxZoom)
}

func TestSettingsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *Settings)
		valid  bool
	}{
		{"defaults", func(s *Settings) {}, true},
		{"zero headroom", func(s *Settings) { s.Headroom = 0 }, false},
		{"height fraction above one", func(s *Settings) { s.HeightFraction = 1.2 }, false},
		{"inverted zoom bounds", func(s *Settings) { s.MinZoom = 5 }, false},
		{"negative sigma", func(s *Settings) { s.Sigma = -1 }, false},
		{"negative ease", func(s *Settings) { s.SeekerEaseMs = -1 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.mutate(&s)
			err := s.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9001")
	t.Setenv("SPECTRAL_HOP_LENGTH", "512")
	t.Setenv("UPLOAD_LOCATION", "/tmp/wa-uploads")
	t.Setenv("CORS_ORIGINS", "http://a,http://b")

	cfg := Load()
	assert.Equal(t, 9001, cfg.Port)
	assert.Equal(t, 512.0, cfg.SpectralHopLength)
	assert.Equal(t, 8192.0, cfg.SpectralSampleRate)
	assert.Equal(t, "/tmp/wa-uploads", cfg.UploadLocation)
	assert.Equal(t, []string{"http://a", "http://b"}, cfg.CORSOrigins)
	assert.Equal(t, 60, cfg.FrameRate)
}
