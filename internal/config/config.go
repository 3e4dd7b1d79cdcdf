// Package config provides the configuration schema and loader for the
// voxcap recorder.
package config

import "github.com/voxcap/voxcap/pkg/mux"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for voxcap.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	Recording RecordingConfig `yaml:"recording"`
}

// RecordingConfig holds every tunable of the capture-to-mux pipeline.
// Zero values select the documented defaults; [Validate] rejects values
// outside their allowed ranges.
type RecordingConfig struct {
	// SampleRate is the capture sample rate in Hz. Default 16000.
	SampleRate int `yaml:"sample_rate"`

	// ChunkMS is the capture chunk duration in milliseconds. Must be a
	// valid Opus frame duration: 10, 20, 40, or 60. Default 20.
	ChunkMS int `yaml:"chunk_ms"`

	// SpeechThresholdDB classifies a chunk as speech when its RMS energy in
	// dBFS exceeds this value. Default -40.
	SpeechThresholdDB float64 `yaml:"speech_threshold_db"`

	// MinSilenceGapMS is the longest silence between two speech bursts that
	// still counts as one continuous utterance. Default 100.
	MinSilenceGapMS int `yaml:"min_silence_gap_ms"`

	// PadBeforeMS extends each finalised segment's start backwards.
	// Default 150.
	PadBeforeMS int `yaml:"pad_before_ms"`

	// PadAfterMS extends each finalised segment's end forwards. Default 200.
	PadAfterMS int `yaml:"pad_after_ms"`

	// BitrateBPS is the Opus target bitrate in bits per second. Default 24000.
	BitrateBPS int `yaml:"bitrate_bps"`

	// OutputMode selects which containers to produce. Default "both".
	OutputMode mux.OutputMode `yaml:"output_mode"`

	// QueueDepth is the capacity of the per-consumer chunk queues.
	// Default 256.
	QueueDepth int `yaml:"queue_depth"`

	// JoinTimeoutMS bounds how long Stop waits for the pipeline goroutines
	// to drain before giving up. Default 5000.
	JoinTimeoutMS int `yaml:"join_timeout_ms"`
}

// Defaults for [RecordingConfig]. 16 kHz mono is the conventional rate for
// speech destined for a transcription service.
const (
	DefaultSampleRate    = 16000
	DefaultChunkMS       = 20
	DefaultOutputMode    = mux.ModeBoth
	DefaultQueueDepth    = 256
	DefaultJoinTimeoutMS = 5000
)

// WithDefaults returns a copy of c with every zero field replaced by its
// default value.
func (c RecordingConfig) WithDefaults() RecordingConfig {
	if c.SampleRate == 0 {
		c.SampleRate = DefaultSampleRate
	}
	if c.ChunkMS == 0 {
		c.ChunkMS = DefaultChunkMS
	}
	if c.SpeechThresholdDB == 0 {
		c.SpeechThresholdDB = -40
	}
	if c.MinSilenceGapMS == 0 {
		c.MinSilenceGapMS = 100
	}
	if c.PadBeforeMS == 0 {
		c.PadBeforeMS = 150
	}
	if c.PadAfterMS == 0 {
		c.PadAfterMS = 200
	}
	if c.BitrateBPS == 0 {
		c.BitrateBPS = 24000
	}
	if c.OutputMode == "" {
		c.OutputMode = DefaultOutputMode
	}
	if c.QueueDepth == 0 {
		c.QueueDepth = DefaultQueueDepth
	}
	if c.JoinTimeoutMS == 0 {
		c.JoinTimeoutMS = DefaultJoinTimeoutMS
	}
	return c
}

// ChunkSamples returns the number of PCM samples in one capture chunk.
func (c RecordingConfig) ChunkSamples() int {
	return c.SampleRate * c.ChunkMS / 1000
}
