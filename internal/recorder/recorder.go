// Package recorder wires capture, voice activity detection, encoding, and
// muxing into a single recording session.
//
// A [Recorder] is single-use: New, Start, Stop, in that order. While running,
// a capture goroutine reads fixed-size blocks from the device and fans each
// chunk out to two queues; a VAD goroutine and an encode goroutine consume
// them independently, so a slow consumer never stalls the other. Stop closes
// the device to unblock the capture read, drains the pipeline, and runs the
// finalise-and-mux stage synchronously.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/voxcap/voxcap/internal/config"
	"github.com/voxcap/voxcap/internal/observe"
	"github.com/voxcap/voxcap/pkg/audio"
	"github.com/voxcap/voxcap/pkg/capture"
	"github.com/voxcap/voxcap/pkg/encode"
	"github.com/voxcap/voxcap/pkg/mux"
	"github.com/voxcap/voxcap/pkg/vad"
)

// ErrEmptyRecording indicates Stop was called before any audio was captured.
var ErrEmptyRecording = errors.New("recorder: no audio captured")

// ErrDeviceRead indicates the capture device failed mid-session. The audio
// captured up to the failure is still finalised and returned alongside this
// error.
var ErrDeviceRead = errors.New("recorder: device read failed")

// Result is the outcome of a completed recording session.
type Result struct {
	// Trimmed is the silence-trimmed Ogg Opus container. Empty when trimming
	// fell back or the output mode excludes it; use Raw then.
	Trimmed []byte

	// Raw is the untrimmed Ogg Opus container.
	Raw []byte

	Metadata audio.Metadata
}

// Option configures a [Recorder] during construction.
type Option func(*Recorder)

// WithSource substitutes the capture source. When not set, Start opens the
// default device. Used by tests to inject a scripted source.
func WithSource(src capture.Source) Option {
	return func(r *Recorder) {
		r.src = src
	}
}

// WithAmplitudeSink registers a sink receiving per-chunk peak amplitudes,
// e.g. for a level meter. See [vad.AmplitudeSink] for the contract.
func WithAmplitudeSink(sink vad.AmplitudeSink) Option {
	return func(r *Recorder) {
		r.sink = sink
	}
}

// WithMetrics substitutes the metrics instance. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(r *Recorder) {
		r.metrics = m
	}
}

// Recorder runs one recording session. Safe to call Stop from a different
// goroutine than Start; Stop is idempotent and every call returns the same
// outcome.
type Recorder struct {
	cfg     config.RecordingConfig
	src     capture.Source
	sink    vad.AmplitudeSink
	metrics *observe.Metrics

	enc *encode.StreamEncoder
	seg *vad.Segmenter

	vadQ chan audio.Chunk
	encQ chan audio.Chunk

	// captureErr is written by the capture goroutine before it closes
	// captureDone; read only after captureDone is closed.
	captureErr  error
	captureDone chan struct{}

	// samplesCaptured and chunksCaptured are written only by the capture
	// goroutine but read by Stop, which on a drain timeout may run while
	// that goroutine is still alive.
	samplesCaptured atomic.Int64
	chunksCaptured  atomic.Int64

	// finalizing, once set, tells the consumer loops to stop touching the
	// segmenter and encoder; encMu and vadMu make that hand-off safe when a
	// drain timeout forces Stop to finalize under live goroutines.
	finalizing atomic.Bool
	encMu      sync.Mutex
	vadMu      sync.Mutex

	group *errgroup.Group
	ctx   context.Context

	mu      sync.Mutex
	started bool
	stopped bool
	result  *Result
	stopErr error
}

// New creates a Recorder for cfg. Zero fields of cfg are filled with their
// defaults.
func New(cfg config.RecordingConfig, opts ...Option) *Recorder {
	r := &Recorder{cfg: cfg.WithDefaults()}
	for _, o := range opts {
		o(r)
	}
	if r.metrics == nil {
		r.metrics = observe.DefaultMetrics()
	}
	return r
}

// Start opens the capture source, initialises the codec and segmenter, and
// launches the pipeline goroutines. Device failures are wrapped in
// [capture.ErrDeviceUnavailable], codec failures in
// [encode.ErrCodecUnavailable]; in both cases nothing is left running.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return errors.New("recorder: already started")
	}

	if r.src == nil {
		src, err := capture.OpenDefault(r.cfg.SampleRate, r.cfg.ChunkSamples())
		if err != nil {
			return err
		}
		r.src = src
	}

	enc, err := encode.NewStreamEncoder(encode.Config{
		SampleRate: r.cfg.SampleRate,
		Bitrate:    r.cfg.BitrateBPS,
	})
	if err != nil {
		_ = r.src.Close()
		return err
	}
	r.enc = enc

	var segOpts []vad.Option
	if r.sink != nil {
		segOpts = append(segOpts, vad.WithAmplitudeSink(r.sink))
	}
	r.seg = vad.New(vad.Config{
		SpeechThresholdDB: r.cfg.SpeechThresholdDB,
		MinSilenceGap:     time.Duration(r.cfg.MinSilenceGapMS) * time.Millisecond,
	}, segOpts...)

	if err := r.src.Start(); err != nil {
		_ = r.src.Close()
		return fmt.Errorf("%w: start stream: %w", capture.ErrDeviceUnavailable, err)
	}

	r.vadQ = make(chan audio.Chunk, r.cfg.QueueDepth)
	r.encQ = make(chan audio.Chunk, r.cfg.QueueDepth)
	r.captureDone = make(chan struct{})
	r.ctx = context.WithoutCancel(ctx)
	r.group = &errgroup.Group{}

	r.metrics.ActiveRecordings.Add(r.ctx, 1)
	r.started = true

	go r.captureLoop()

	r.group.Go(r.vadLoop)
	r.group.Go(r.encodeLoop)

	slog.Info("recording started",
		"sample_rate", r.cfg.SampleRate,
		"chunk_ms", r.cfg.ChunkMS,
		"bitrate_bps", r.cfg.BitrateBPS,
	)
	return nil
}

// captureLoop reads blocks from the source until it is closed or fails, fans
// each chunk out to both consumer queues, then closes the queues. The per-read
// buffer is reused; each chunk gets its own copy of the samples.
func (r *Recorder) captureLoop() {
	defer close(r.captureDone)
	defer close(r.encQ)
	defer close(r.vadQ)

	buf := make([]int16, r.cfg.ChunkSamples())
	for {
		n, err := r.src.ReadBlock(buf)
		if n > 0 {
			samples := make([]int16, n)
			copy(samples, buf[:n])
			start := r.samplesCaptured.Load()
			c := audio.Chunk{
				Samples:          samples,
				TimestampUS:      start * 1_000_000 / int64(r.cfg.SampleRate),
				StartSampleIndex: start,
			}
			r.samplesCaptured.Add(int64(n))
			r.chunksCaptured.Add(1)
			r.metrics.ChunksCaptured.Add(r.ctx, 1)
			r.vadQ <- c
			r.encQ <- c
		}
		if err != nil {
			if !errors.Is(err, capture.ErrSourceClosed) {
				r.captureErr = err
				slog.Error("capture read failed", "error", err)
			}
			return
		}
	}
}

// vadLoop classifies chunks until the queue closes. Never fails. Once Stop
// has begun finalizing, remaining chunks are drained but no longer change
// segmenter state.
func (r *Recorder) vadLoop() error {
	for c := range r.vadQ {
		r.vadMu.Lock()
		if !r.finalizing.Load() {
			r.seg.ProcessChunk(c)
		}
		r.vadMu.Unlock()
	}
	return nil
}

// encodeLoop compresses chunks until the queue closes. On a codec error the
// remaining queued chunks are drained so the capture goroutine cannot block
// on a full queue. Once Stop has begun finalizing, remaining chunks are
// drained without feeding the codec.
func (r *Recorder) encodeLoop() error {
	for c := range r.encQ {
		r.encMu.Lock()
		if r.finalizing.Load() {
			r.encMu.Unlock()
			continue
		}
		err := r.enc.Encode(c)
		r.encMu.Unlock()
		if err != nil {
			audio.Drain(r.encQ)
			return err
		}
	}
	return nil
}

// Stop terminates capture, drains the pipeline, and runs finalise-and-mux.
//
// With no audio captured it returns (nil, [ErrEmptyRecording]). When the
// device failed mid-session it returns BOTH the partial result built from the
// audio captured before the failure and an error wrapping [ErrDeviceRead].
// Stop is idempotent: every call returns the first call's outcome.
func (r *Recorder) Stop() (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started {
		return nil, errors.New("recorder: not started")
	}
	if r.stopped {
		return r.result, r.stopErr
	}
	r.stopped = true
	r.result, r.stopErr = r.drainAndFinalize()
	return r.result, r.stopErr
}

func (r *Recorder) drainAndFinalize() (*Result, error) {
	defer r.metrics.ActiveRecordings.Add(r.ctx, -1)

	// Closing the source unblocks a pending ReadBlock; the capture goroutine
	// then closes both queues and the consumers run to completion.
	if err := r.src.Close(); err != nil {
		slog.Warn("closing capture source", "error", err)
	}

	joined := make(chan error, 1)
	go func() {
		<-r.captureDone
		joined <- r.group.Wait()
	}()

	timeout := time.Duration(r.cfg.JoinTimeoutMS) * time.Millisecond
	var pipelineErr error
	select {
	case pipelineErr = <-joined:
	case <-time.After(timeout):
		// Lossy shutdown: whatever was not drained in time is absent from
		// the output. Better than hanging the caller.
		slog.Warn("pipeline drain timed out, finalising with what was drained", "timeout", timeout)
	}
	if pipelineErr != nil {
		return nil, fmt.Errorf("recorder: encode pipeline: %w", pipelineErr)
	}

	// From here on any still-running consumer loop only drains its queue;
	// the mutex pairs below fence off in-flight Encode/ProcessChunk calls.
	r.finalizing.Store(true)

	// captureErr is only published through captureDone. After a timed-out
	// join the capture goroutine may still be alive; whatever it reports
	// later is part of the lossy shutdown and ignored.
	var captureErr error
	select {
	case <-r.captureDone:
		captureErr = r.captureErr
	default:
	}

	if r.chunksCaptured.Load() == 0 {
		if captureErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrDeviceRead, captureErr)
		}
		return nil, ErrEmptyRecording
	}

	r.encMu.Lock()
	flushErr := r.enc.Flush()
	frames := r.enc.Frames()
	r.encMu.Unlock()
	if flushErr != nil {
		return nil, fmt.Errorf("recorder: flush encoder: %w", flushErr)
	}

	totalUS := r.samplesCaptured.Load() * 1_000_000 / int64(r.cfg.SampleRate)
	r.vadMu.Lock()
	closed, open := r.seg.Snapshot()
	r.vadMu.Unlock()
	segments := vad.Finalize(open, closed, totalUS, vad.FinalizeOptions{
		PadBefore: time.Duration(r.cfg.PadBeforeMS) * time.Millisecond,
		PadAfter:  time.Duration(r.cfg.PadAfterMS) * time.Millisecond,
	})
	out, err := mux.Process(frames, segments, totalUS, mux.Options{Mode: r.cfg.OutputMode})
	if err != nil {
		return nil, fmt.Errorf("recorder: mux: %w", err)
	}

	r.metrics.FramesEncoded.Add(r.ctx, int64(len(frames)))
	r.metrics.SpeechSegments.Add(r.ctx, int64(len(segments)))
	r.metrics.RecordingDuration.Record(r.ctx, float64(totalUS)/1e6)

	res := &Result{
		Trimmed:  out.Trimmed,
		Raw:      out.Raw,
		Metadata: out.Metadata,
	}
	slog.Info("recording stopped",
		"total_ms", res.Metadata.TotalDurationMS,
		"speech_ms", res.Metadata.SpeechDurationMS,
		"segments", res.Metadata.SegmentCount,
		"trimmed", res.Metadata.SilenceTrimmingApplied,
	)

	if captureErr != nil {
		return res, fmt.Errorf("%w: %w", ErrDeviceRead, captureErr)
	}
	return res, nil
}
