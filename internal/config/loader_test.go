package config_test

import (
	"strings"
	"testing"

	"github.com/voxcap/voxcap/internal/config"
	"github.com/voxcap/voxcap/pkg/mux"
)

func TestLoadFromReader_EmptyInputGetsDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	rec := cfg.Recording
	if rec.SampleRate != 16000 {
		t.Errorf("SampleRate = %d, want 16000", rec.SampleRate)
	}
	if rec.ChunkMS != 20 {
		t.Errorf("ChunkMS = %d, want 20", rec.ChunkMS)
	}
	if rec.SpeechThresholdDB != -40 {
		t.Errorf("SpeechThresholdDB = %v, want -40", rec.SpeechThresholdDB)
	}
	if rec.OutputMode != mux.ModeBoth {
		t.Errorf("OutputMode = %q, want both", rec.OutputMode)
	}
	if rec.QueueDepth != 256 {
		t.Errorf("QueueDepth = %d, want 256", rec.QueueDepth)
	}
}

func TestLoadFromReader_OverridesDefaults(t *testing.T) {
	t.Parallel()
	yaml := `
log_level: debug
recording:
  sample_rate: 48000
  bitrate_bps: 32000
  output_mode: trimmed
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.LogLevel != config.LogDebug {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.Recording.SampleRate != 48000 {
		t.Errorf("SampleRate = %d, want 48000", cfg.Recording.SampleRate)
	}
	if cfg.Recording.OutputMode != mux.ModeTrimmed {
		t.Errorf("OutputMode = %q, want trimmed", cfg.Recording.OutputMode)
	}
	// Untouched fields still get defaults.
	if cfg.Recording.PadBeforeMS != 150 {
		t.Errorf("PadBeforeMS = %d, want 150", cfg.Recording.PadBeforeMS)
	}
}

func TestLoadFromReader_RejectsUnknownFields(t *testing.T) {
	t.Parallel()
	yaml := `
recording:
  sample_rte: 48000
`
	if _, err := config.LoadFromReader(strings.NewReader(yaml)); err == nil {
		t.Fatal("expected error for misspelled field, got nil")
	}
}

func TestValidate_InvalidChunkMS(t *testing.T) {
	t.Parallel()
	yaml := `
recording:
  chunk_ms: 25
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for chunk_ms 25, got nil")
	}
	if !strings.Contains(err.Error(), "chunk_ms") {
		t.Errorf("error should mention chunk_ms, got: %v", err)
	}
}

func TestValidate_InvalidOutputMode(t *testing.T) {
	t.Parallel()
	yaml := `
recording:
  output_mode: wav
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for output_mode wav, got nil")
	}
	if !strings.Contains(err.Error(), "output_mode") {
		t.Errorf("error should mention output_mode, got: %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader("log_level: verbose\n"))
	if err == nil {
		t.Fatal("expected error for log_level verbose, got nil")
	}
}

func TestValidate_PositiveThresholdRejected(t *testing.T) {
	t.Parallel()
	yaml := `
recording:
  speech_threshold_db: 10
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for positive threshold, got nil")
	}
}

func TestValidate_ReportsAllFailures(t *testing.T) {
	t.Parallel()
	yaml := `
log_level: verbose
recording:
  chunk_ms: 25
  output_mode: wav
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors, got nil")
	}
	for _, want := range []string{"log_level", "chunk_ms", "output_mode"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error should mention %s, got: %v", want, err)
		}
	}
}

func TestRecordingConfig_ChunkSamples(t *testing.T) {
	t.Parallel()
	rec := config.RecordingConfig{SampleRate: 16000, ChunkMS: 20}
	if got := rec.ChunkSamples(); got != 320 {
		t.Errorf("ChunkSamples = %d, want 320", got)
	}
}
