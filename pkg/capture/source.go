// Package capture abstracts the microphone device behind the [Source]
// interface and provides the PortAudio-backed default implementation.
//
// A Source yields fixed-size blocks of mono 16-bit PCM at a fixed sample
// rate, blocking until a block is available or the device is closed. The
// capture loop in internal/recorder is the only reader; implementations do
// not need to support concurrent ReadBlock calls, but Close must be safe to
// call from another goroutine while a read is in flight (that is how the
// recorder unblocks the loop on stop).
//
// This package lives under pkg/ because callers may supply their own Source
// (a file replayer, a network tap) instead of the microphone.
package capture

import "errors"

// ErrDeviceUnavailable indicates the capture device could not be opened:
// missing hardware, the device is busy, or microphone permission is absent.
var ErrDeviceUnavailable = errors.New("capture: device unavailable")

// ErrSourceClosed is returned by ReadBlock after Close. It signals an
// orderly end of capture, not a failure.
var ErrSourceClosed = errors.New("capture: source closed")

// Source is a blocking reader of PCM blocks from an audio input.
//
// The device handle is exclusively owned by the Source and released exactly
// once by Close, regardless of how capture ended.
type Source interface {
	// Start begins capture. Must be called once before the first ReadBlock.
	Start() error

	// ReadBlock blocks until samples are available and fills buf, returning
	// the number of samples written. A return of n < len(buf) with err == nil
	// is a valid short read and the data must still be used. After Close,
	// ReadBlock returns [ErrSourceClosed]; any other error is a device
	// failure.
	ReadBlock(buf []int16) (int, error)

	// Close stops capture and releases the device. Idempotent; concurrent
	// with ReadBlock it causes the pending read to return [ErrSourceClosed].
	Close() error
}
