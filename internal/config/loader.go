package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// validChunkMS lists the Opus frame durations the encoder can consume
// directly. Other chunk sizes would force re-blocking with fractional frames.
var validChunkMS = []int{10, 20, 40, 60}

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied. It is a convenience wrapper around
// [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.Recording = cfg.Recording.WithDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	rec := cfg.Recording
	if rec.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("recording.sample_rate %d must be positive", rec.SampleRate))
	}
	if rec.ChunkMS != 0 && !slices.Contains(validChunkMS, rec.ChunkMS) {
		errs = append(errs, fmt.Errorf("recording.chunk_ms %d is invalid; valid values: 10, 20, 40, 60", rec.ChunkMS))
	}
	if rec.SpeechThresholdDB > 0 {
		errs = append(errs, fmt.Errorf("recording.speech_threshold_db %.1f must not be positive; 0 dBFS is full scale", rec.SpeechThresholdDB))
	}
	if rec.MinSilenceGapMS < 0 {
		errs = append(errs, fmt.Errorf("recording.min_silence_gap_ms %d must not be negative", rec.MinSilenceGapMS))
	}
	if rec.PadBeforeMS < 0 || rec.PadAfterMS < 0 {
		errs = append(errs, fmt.Errorf("recording padding (%d ms before, %d ms after) must not be negative", rec.PadBeforeMS, rec.PadAfterMS))
	}
	if rec.BitrateBPS < 0 {
		errs = append(errs, fmt.Errorf("recording.bitrate_bps %d must be positive", rec.BitrateBPS))
	}
	if rec.OutputMode != "" && !rec.OutputMode.IsValid() {
		errs = append(errs, fmt.Errorf("recording.output_mode %q is invalid; valid values: trimmed, raw, both", rec.OutputMode))
	}
	if rec.QueueDepth < 0 {
		errs = append(errs, fmt.Errorf("recording.queue_depth %d must be positive", rec.QueueDepth))
	}
	if rec.JoinTimeoutMS < 0 {
		errs = append(errs, fmt.Errorf("recording.join_timeout_ms %d must not be negative", rec.JoinTimeoutMS))
	}

	// Non-fatal oddities worth flagging.
	if rec.SampleRate != 0 && rec.SampleRate != DefaultSampleRate {
		switch rec.SampleRate {
		case 8000, 12000, 24000, 48000:
			// Valid Opus rates, just unusual for speech capture.
		default:
			slog.Warn("sample rate is not an Opus-supported rate; encoder initialisation may fail",
				"sample_rate", rec.SampleRate,
			)
		}
	}
	if rec.BitrateBPS > 128000 {
		slog.Warn("bitrate is unusually high for mono speech",
			"bitrate_bps", rec.BitrateBPS,
		)
	}

	return errors.Join(errs...)
}
