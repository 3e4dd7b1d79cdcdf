// Package vad classifies captured audio into speech and silence and
// maintains the list of speech segments for a recording session.
//
// The classifier is deliberately simple: short-term RMS energy converted to
// dBFS and compared against a threshold. It runs synchronously inside the
// recorder's VAD loop (ProcessChunk must not block) and keeps per-session
// state, so a Segmenter is single-use and not safe for concurrent use.
package vad

import (
	"time"

	"github.com/voxcap/voxcap/pkg/audio"
)

// Default tuning. Values are overridable through [Config].
const (
	// DefaultSpeechThresholdDB is the energy level above which a chunk is
	// classified as speech.
	DefaultSpeechThresholdDB = -40.0

	// DefaultMinSilenceGap is the longest silence between two speech bursts
	// that still counts as one continuous utterance.
	DefaultMinSilenceGap = 100 * time.Millisecond
)

// Config holds the parameters for a [Segmenter].
type Config struct {
	// SpeechThresholdDB classifies a chunk as speech when its energy in dBFS
	// exceeds this value. Zero means [DefaultSpeechThresholdDB]; to genuinely
	// classify everything as speech use a large negative threshold instead.
	SpeechThresholdDB float64

	// MinSilenceGap is the gap-merge window: a new speech burst starting
	// less than this after the previous one ended continues the previous
	// segment. Zero means [DefaultMinSilenceGap].
	MinSilenceGap time.Duration
}

func (c Config) withDefaults() Config {
	if c.SpeechThresholdDB == 0 {
		c.SpeechThresholdDB = DefaultSpeechThresholdDB
	}
	if c.MinSilenceGap == 0 {
		c.MinSilenceGap = DefaultMinSilenceGap
	}
	return c
}

// AmplitudeSink receives the peak amplitude (normalised to [0, 1]) of each
// processed chunk. It is a lossy, best-effort visualisation side channel:
// the sink is invoked synchronously from the VAD loop and must return
// quickly; any buffering or hand-off to a UI thread is the sink's job.
type AmplitudeSink func(peak float64)

// Option configures a [Segmenter] during construction.
type Option func(*Segmenter)

// WithAmplitudeSink registers sink to receive per-chunk peak amplitudes.
func WithAmplitudeSink(sink AmplitudeSink) Option {
	return func(s *Segmenter) {
		s.sink = sink
	}
}

type state int

const (
	stateSilent state = iota
	stateSpeaking
)

// Segmenter consumes chunks in timeline order and accumulates speech
// segments using a {Silent, Speaking} state machine with a gap-merge rule.
type Segmenter struct {
	thresholdDB float64
	minGapUS    int64
	sink        AmplitudeSink

	state  state
	open   *audio.SpeechSegment
	closed []audio.SpeechSegment
}

// New creates a Segmenter with the given configuration.
func New(cfg Config, opts ...Option) *Segmenter {
	cfg = cfg.withDefaults()
	s := &Segmenter{
		thresholdDB: cfg.SpeechThresholdDB,
		minGapUS:    cfg.MinSilenceGap.Microseconds(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ProcessChunk classifies one chunk and advances the state machine.
// Chunks must arrive in increasing timestamp order.
func (s *Segmenter) ProcessChunk(c audio.Chunk) {
	if s.sink != nil {
		s.sink(audio.Peak(c.Samples))
	}

	speech := audio.DBFS(audio.RMS(c.Samples)) > s.thresholdDB

	switch s.state {
	case stateSilent:
		if !speech {
			return
		}
		s.state = stateSpeaking
		// Gap-merge: if the previous segment ended only a moment ago,
		// continue it instead of opening a new one. Applied exactly once
		// per silence-to-speech transition.
		if n := len(s.closed); n > 0 && c.TimestampUS-s.closed[n-1].EndUS < s.minGapUS {
			reopened := s.closed[n-1]
			s.closed = s.closed[:n-1]
			s.open = &reopened
			return
		}
		s.open = &audio.SpeechSegment{
			StartUS:          c.TimestampUS,
			StartSampleIndex: c.StartSampleIndex,
		}

	case stateSpeaking:
		if speech {
			return
		}
		s.state = stateSilent
		s.open.EndUS = c.TimestampUS
		s.open.EndSampleIndex = c.StartSampleIndex
		s.closed = append(s.closed, *s.open)
		s.open = nil
	}
}

// Snapshot returns the closed segments and the still-open segment, if the
// session stopped mid-speech. Call only after the VAD loop has terminated;
// the returned slice is owned by the caller.
func (s *Segmenter) Snapshot() (closed []audio.SpeechSegment, open *audio.SpeechSegment) {
	out := make([]audio.SpeechSegment, len(s.closed))
	copy(out, s.closed)
	if s.open != nil {
		o := *s.open
		return out, &o
	}
	return out, nil
}
