package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the runtime configuration, loaded from environment variables
type Config struct {
	Port        int
	GinMode     string
	CORSOrigins []string
	LogLevel    string

	UploadLocation string
	DatabaseURL    string
	AuthEndpoint   string

	// Spectral analysis service
	SpectralEndpoint   string
	SpectralTimeout    time.Duration
	SpectralRetries    int
	SpectralSampleRate float64
	SpectralHopLength  float64

	FrameRate      int
	WaveformChunks int
	AnalysisJobs   int
}

// Load reads .env (if present) and then the process environment
func Load() Config {
	// A missing .env is the normal case outside development
	_ = godotenv.Load()

	return Config{
		Port:        envInt("SERVER_PORT", 8000),
		GinMode:     envStr("GIN_MODE", ""),
		CORSOrigins: strings.Split(envStr("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173,http://localhost:5174"), ","),
		LogLevel:    envStr("LOG_LEVEL", "info"),

		UploadLocation: GetUploadLocation(),
		DatabaseURL:    envStr("DATABASE_URL", ""),
		AuthEndpoint:   envStr("AUTH_ENDPOINT", ""),

		SpectralEndpoint:   envStr("SPECTRAL_ENDPOINT", ""),
		SpectralTimeout:    time.Duration(envInt("SPECTRAL_TIMEOUT", 120)) * time.Second,
		SpectralRetries:    envInt("SPECTRAL_RETRIES", 0),
		SpectralSampleRate: envFloat("SPECTRAL_SAMPLE_RATE", 8192),
		SpectralHopLength:  envFloat("SPECTRAL_HOP_LENGTH", 916),

		FrameRate:      envInt("FRAME_RATE", 60),
		WaveformChunks: envInt("WAVEFORM_CHUNKS", 300),
		AnalysisJobs:   envInt("ANALYSIS_WORKERS", 2),
	}
}

// GetUploadLocation returns the directory where uploaded project audio lives
func GetUploadLocation() string {
	if customPath := os.Getenv("UPLOAD_LOCATION"); customPath != "" {
		return customPath
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "uploads")
	}

	return filepath.Join(homeDir, ".waveanalyzer", "uploads")
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
