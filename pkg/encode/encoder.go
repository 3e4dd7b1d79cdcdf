// Package encode compresses captured PCM into Opus frames.
//
// StreamEncoder wraps a stateful Opus encoder (layeh.com/gopus) configured
// for speech: fixed sample rate, mono, a modest bitrate. Chunks of any size
// are accepted; the encoder re-blocks them internally into fixed 20 ms codec
// frames and tags every output frame with a presentation timestamp derived
// from the running encoded-sample count, so frame PTS is always
// non-decreasing regardless of chunk boundaries.
//
// A StreamEncoder is driven by a single goroutine (the recorder's encode
// loop) and is not safe for concurrent use.
package encode

import (
	"errors"
	"fmt"

	"layeh.com/gopus"

	"github.com/voxcap/voxcap/pkg/audio"
)

// ErrCodecUnavailable indicates the Opus encoder could not be initialised.
// Fatal to the whole recording session; surfaced before capture starts.
var ErrCodecUnavailable = errors.New("encode: codec unavailable")

const (
	// DefaultBitrate is the target bitrate in bits per second, chosen for
	// speech destined for a transcription service.
	DefaultBitrate = 24000

	// frameMS is the codec frame duration. 20 ms is Opus's sweet spot and
	// matches the capture chunk size.
	frameMS = 20

	// maxPacketBytes bounds a single compressed packet. The Opus maximum is
	// 1275 bytes per frame; 4000 leaves comfortable headroom.
	maxPacketBytes = 4000
)

// Config holds the parameters for a [StreamEncoder].
type Config struct {
	// SampleRate is the PCM sample rate in Hz. Required.
	SampleRate int

	// Bitrate is the target bitrate in bits per second.
	// Zero means [DefaultBitrate].
	Bitrate int
}

// StreamEncoder accumulates PCM and emits timestamped Opus frames.
type StreamEncoder struct {
	enc          *gopus.Encoder
	sampleRate   int
	frameSamples int

	pending        []int16
	frames         []audio.EncodedFrame
	encodedSamples int64
	flushed        bool
}

// NewStreamEncoder initialises the Opus codec for cfg. Initialisation
// failure is wrapped in [ErrCodecUnavailable].
func NewStreamEncoder(cfg Config) (*StreamEncoder, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate must be positive, got %d", ErrCodecUnavailable, cfg.SampleRate)
	}
	bitrate := cfg.Bitrate
	if bitrate == 0 {
		bitrate = DefaultBitrate
	}

	enc, err := gopus.NewEncoder(cfg.SampleRate, 1, gopus.Voip)
	if err != nil {
		return nil, fmt.Errorf("%w: create opus encoder: %v", ErrCodecUnavailable, err)
	}
	enc.SetBitrate(bitrate)

	frameSamples := cfg.SampleRate * frameMS / 1000
	return &StreamEncoder{
		enc:          enc,
		sampleRate:   cfg.SampleRate,
		frameSamples: frameSamples,
		pending:      make([]int16, 0, frameSamples*2),
	}, nil
}

// Encode feeds one chunk's samples to the codec and drains every full frame
// that becomes available. A chunk may yield zero, one, or several frames
// depending on how it aligns with the codec frame size.
func (e *StreamEncoder) Encode(c audio.Chunk) error {
	if e.flushed {
		return errors.New("encode: Encode after Flush")
	}
	e.pending = append(e.pending, c.Samples...)
	return e.drainFull()
}

// drainFull encodes pending samples while at least one full frame remains.
func (e *StreamEncoder) drainFull() error {
	for len(e.pending) >= e.frameSamples {
		if err := e.encodeFrame(e.pending[:e.frameSamples], false); err != nil {
			return err
		}
		e.pending = e.pending[e.frameSamples:]
	}
	return nil
}

// encodeFrame compresses exactly one codec frame and appends the result.
func (e *StreamEncoder) encodeFrame(pcm []int16, eos bool) error {
	payload, err := e.enc.Encode(pcm, e.frameSamples, maxPacketBytes)
	if err != nil {
		return fmt.Errorf("encode: opus encode: %w", err)
	}
	e.frames = append(e.frames, audio.EncodedFrame{
		Payload:     payload,
		PTSUS:       e.encodedSamples * 1_000_000 / int64(e.sampleRate),
		EndOfStream: eos,
	})
	e.encodedSamples += int64(e.frameSamples)
	return nil
}

// Flush signals end of stream: a partial trailing frame is padded with
// silence to a full codec frame and encoded, and the final emitted frame is
// marked EndOfStream. After Flush every sample ever fed in is represented in
// some output frame. Flushing an encoder that was never fed emits nothing.
// Flush is a bounded, synchronous call and must be invoked at most once.
func (e *StreamEncoder) Flush() error {
	if e.flushed {
		return nil
	}
	e.flushed = true

	if len(e.pending) > 0 {
		frame := make([]int16, e.frameSamples)
		copy(frame, e.pending)
		e.pending = nil
		if err := e.encodeFrame(frame, true); err != nil {
			return err
		}
	}
	if n := len(e.frames); n > 0 {
		e.frames[n-1].EndOfStream = true
	}
	return nil
}

// Frames returns all frames produced so far, in PTS order. Call after the
// encode loop has terminated and Flush has run; the slice is owned by the
// encoder and must not be mutated.
func (e *StreamEncoder) Frames() []audio.EncodedFrame {
	return e.frames
}

// FrameDurationUS returns the duration of one codec frame in microseconds.
func (e *StreamEncoder) FrameDurationUS() int64 {
	return int64(frameMS) * 1000
}
