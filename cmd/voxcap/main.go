// Command voxcap records speech from the default microphone into
// silence-trimmed Ogg Opus files.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/voxcap/voxcap/internal/config"
	"github.com/voxcap/voxcap/internal/health"
	"github.com/voxcap/voxcap/internal/observe"
	"github.com/voxcap/voxcap/internal/recorder"
	"github.com/voxcap/voxcap/pkg/mux"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "", "path to the YAML configuration file (optional)")
	outDir := flag.String("out", ".", "directory to write output files into")
	duration := flag.Duration("duration", 0, "stop automatically after this long (0 = record until Ctrl+C)")
	doctor := flag.Bool("doctor", false, "check microphone and codec availability, then exit")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg := &config.Config{}
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "voxcap: %v\n", err)
			return 1
		}
	}
	cfg.Recording = cfg.Recording.WithDefaults()

	// ── Logger ────────────────────────────────────────────────────────────────
	slog.SetDefault(newLogger(cfg.LogLevel))

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Doctor mode ───────────────────────────────────────────────────────────
	if *doctor {
		return runDoctor(ctx, cfg.Recording)
	}

	// ── Metrics ───────────────────────────────────────────────────────────────
	shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		slog.Error("failed to initialise metrics", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			slog.Warn("metrics shutdown error", "err", err)
		}
	}()

	// ── Record ────────────────────────────────────────────────────────────────
	rec := recorder.New(cfg.Recording)
	if err := rec.Start(ctx); err != nil {
		slog.Error("failed to start recording", "err", err)
		return 1
	}

	if *duration > 0 {
		slog.Info("recording, will stop automatically", "duration", *duration)
		select {
		case <-ctx.Done():
		case <-time.After(*duration):
		}
	} else {
		slog.Info("recording, press Ctrl+C to stop")
		<-ctx.Done()
	}

	res, err := rec.Stop()
	switch {
	case errors.Is(err, recorder.ErrEmptyRecording):
		slog.Warn("nothing was recorded")
		return 1
	case errors.Is(err, recorder.ErrDeviceRead):
		// Partial result: keep what was captured before the device failed.
		slog.Warn("device failed mid-recording, keeping partial result", "err", err)
	case err != nil:
		slog.Error("failed to finish recording", "err", err)
		return 1
	}

	if err := writeOutputs(*outDir, cfg.Recording.OutputMode, res); err != nil {
		slog.Error("failed to write output files", "err", err)
		return 1
	}

	slog.Info("done",
		"total_ms", res.Metadata.TotalDurationMS,
		"speech_ms", res.Metadata.SpeechDurationMS,
		"segments", res.Metadata.SegmentCount,
		"trimmed_bytes", res.Metadata.TrimmedSizeBytes,
		"raw_bytes", res.Metadata.RawSizeBytes,
		"trimming_applied", res.Metadata.SilenceTrimmingApplied,
	)
	return 0
}

// writeOutputs persists the session's containers. When trimming fell back
// (empty trimmed output in a mode that wanted one), only the raw file is
// written.
func writeOutputs(dir string, mode mux.OutputMode, res *recorder.Result) error {
	if mode != mux.ModeRaw && len(res.Trimmed) > 0 {
		path := filepath.Join(dir, "trimmed.ogg")
		if err := os.WriteFile(path, res.Trimmed, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		slog.Info("wrote trimmed output", "path", path, "bytes", len(res.Trimmed))
	}
	if mode != mux.ModeTrimmed && len(res.Raw) > 0 {
		path := filepath.Join(dir, "raw.ogg")
		if err := os.WriteFile(path, res.Raw, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		slog.Info("wrote raw output", "path", path, "bytes", len(res.Raw))
	}
	return nil
}

// runDoctor probes the capture device and the codec and prints one line per
// check. Exit code 0 iff every check passed.
func runDoctor(ctx context.Context, rec config.RecordingConfig) int {
	results := health.Run(ctx,
		health.Microphone(rec.SampleRate, rec.ChunkSamples()),
		health.Codec(rec.SampleRate, rec.BitrateBPS),
	)

	code := 0
	for _, r := range results {
		if r.OK() {
			fmt.Printf("ok    %s\n", r.Name)
		} else {
			fmt.Printf("fail  %s: %v\n", r.Name, r.Err)
			code = 1
		}
	}
	return code
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
