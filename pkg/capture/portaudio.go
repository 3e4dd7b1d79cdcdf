package capture

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
)

// Compile-time interface assertion.
var _ Source = (*PortAudioSource)(nil)

// paStream is the subset of *portaudio.Stream the source drives. Tests
// substitute a fake.
type paStream interface {
	Start() error
	Read() error
	Abort() error
	Close() error
}

// PortAudioSource captures mono int16 PCM from the default input device via
// PortAudio. Create one per recording session with [OpenDefault].
type PortAudioSource struct {
	stream    paStream
	buf       []int16
	terminate func() error

	started   atomic.Bool
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// OpenDefault initialises PortAudio and opens the default input device for
// mono capture at sampleRate Hz, delivering blockSamples samples per read.
// Failure to open the device (no hardware, busy, permission denied) is
// reported as [ErrDeviceUnavailable].
func OpenDefault(sampleRate, blockSamples int) (*PortAudioSource, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: initialize portaudio: %v", ErrDeviceUnavailable, err)
	}

	buf := make([]int16, blockSamples)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(sampleRate), blockSamples, buf)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("%w: open default input stream: %v", ErrDeviceUnavailable, err)
	}

	return &PortAudioSource{stream: stream, buf: buf, terminate: portaudio.Terminate}, nil
}

// Start begins capture on the underlying stream.
func (s *PortAudioSource) Start() error {
	if err := s.stream.Start(); err != nil {
		return fmt.Errorf("%w: start stream: %v", ErrDeviceUnavailable, err)
	}
	s.started.Store(true)
	return nil
}

// ReadBlock blocks on the device until a full block is available, then copies
// it into buf. PortAudio always delivers full blocks; short reads only occur
// through other Source implementations.
func (s *PortAudioSource) ReadBlock(buf []int16) (int, error) {
	if s.closed.Load() {
		return 0, ErrSourceClosed
	}
	if err := s.stream.Read(); err != nil {
		// A read aborted by a concurrent Close is an orderly stop.
		if s.closed.Load() {
			return 0, ErrSourceClosed
		}
		return 0, fmt.Errorf("capture: read device: %w", err)
	}
	n := copy(buf, s.buf)
	return n, nil
}

// Close aborts any in-flight read, stops the stream, and releases the device
// and the PortAudio runtime. Safe to call more than once, including on a
// source that was opened but never started.
func (s *PortAudioSource) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		// Abort only a running stream: PortAudio reports aborting a
		// never-started stream as an error, and there is no reader to
		// unblock anyway.
		if s.started.Load() {
			// Abort rather than Stop: Stop waits for pending buffers, Abort
			// unblocks a reader immediately.
			if err := s.stream.Abort(); err != nil {
				s.closeErr = fmt.Errorf("capture: abort stream: %w", err)
			}
		}
		if err := s.stream.Close(); err != nil && s.closeErr == nil {
			s.closeErr = fmt.Errorf("capture: close stream: %w", err)
		}
		if err := s.terminate(); err != nil && s.closeErr == nil {
			s.closeErr = fmt.Errorf("capture: terminate portaudio: %w", err)
		}
	})
	return s.closeErr
}
