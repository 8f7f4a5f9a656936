package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"

	"waveanalyzer/audio"
	"waveanalyzer/cmd"
	"waveanalyzer/config"
	"waveanalyzer/freqmap"
	"waveanalyzer/logger"
	"waveanalyzer/session"
	"waveanalyzer/spectral"
)

const banner = `
__      ____ ___   _____   __ _ _ __   __ _| |_   _ _______ _ __
\ \ /\ / / _` + "`" + ` \ \ / / _ \ / _` + "`" + ` | '_ \ / _` + "`" + ` | | | | |_  / _ \ '__|
 \ V  V / (_| |\ V /  __/| (_| | | | | (_| | | |_| |/ /  __/ |
  \_/\_/ \__,_| \_/ \___| \__,_|_| |_|\__,_|_|\__, /___\___|_|
                                              |___/
`

func main() {
	var (
		server  bool
		port    int
		analyze string
		chunks  int
		at      float64
	)

	flag.BoolVar(&server, "server", false, "Start in web server mode")
	flag.IntVar(&port, "port", 8000, "Port for web server mode")
	flag.StringVar(&analyze, "analyze", "", "Audio file (.wav or .mp3) to decode and summarize")
	flag.IntVar(&chunks, "chunks", audio.DefaultChunkCount, "Number of waveform envelope chunks")
	flag.Float64Var(&at, "at", 0, "Playback time in seconds to sample the spectrum at")
	flag.Parse()

	// Server mode takes precedence
	if server {
		cmd.StartWebServer(port)
		return
	}

	if analyze == "" {
		flag.Usage()
		return
	}

	cfg := config.Load()
	logger.SetLevel(cfg.LogLevel)
	fmt.Print(banner)

	if err := runAnalyze(context.Background(), cfg, analyze, chunks, at); err != nil {
		logger.Fatalf("Cannot analyze %s: %v", analyze, err)
	}
}

// runAnalyze decodes path with a byte progress bar and prints the track
// summary, plus the spectrum at `at` when an analysis service is configured
func runAnalyze(ctx context.Context, cfg config.Config, path string, chunks int, at float64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	bar := progressbar.DefaultBytes(info.Size(), "reading")
	data, err := io.ReadAll(io.TeeReader(f, bar))
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	_ = bar.Finish()

	name := filepath.Base(path)
	track, err := audio.NewDecoder().Decode(ctx, name, bytes.NewReader(data))
	if err != nil {
		return err
	}

	envelope := audio.Reduce(track, chunks)
	lo, hi := envelope.Extremes()

	fmt.Printf("\nFile:        %s (%s)\n", track.Name, track.Format)
	fmt.Printf("Duration:    %.3f s\n", track.Duration)
	fmt.Printf("Sample rate: %d Hz\n", track.SampleRate)
	fmt.Printf("Channels:    %d\n", track.ChannelCount())
	fmt.Printf("Envelope:    %d chunks, min %.4f, max %.4f\n", len(envelope), lo, hi)

	if cfg.SpectralEndpoint == "" {
		return nil
	}

	client := spectral.NewClient(cfg.SpectralEndpoint,
		spectral.WithTimeout(cfg.SpectralTimeout),
		spectral.WithRetries(cfg.SpectralRetries, time.Second),
		spectral.WithContract(int(math.Round(cfg.SpectralSampleRate)), int(math.Round(cfg.SpectralHopLength))),
	)
	matrix, err := client.SubmitBytes(ctx, name, data)
	if err != nil {
		return fmt.Errorf("spectral analysis failed: %w", err)
	}

	idx := matrix.FrameIndex(at)
	fmt.Printf("Spectrum:    %d frames x %d bins\n", matrix.FrameCount(), matrix.BinCount())
	if !matrix.InRange(idx) {
		fmt.Printf("At %.3f s:   frame %d is outside the analysis\n", at, idx)
		return nil
	}

	settings, err := config.LoadSettings()
	if err != nil {
		settings = config.DefaultSettings()
	}
	params := session.ParamsFromSettings(settings)

	points := freqmap.FrameToPoints(matrix.Frame(idx, nil), matrix.SampleRate, params, 1000, 300)
	fmt.Printf("At %.3f s:   frame %d, %d points\n", at, idx, len(points))
	return nil
}
