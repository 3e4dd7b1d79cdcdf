// Package health provides environment preflight checks for the recorder,
// backing the CLI's doctor mode.
//
// A [Checker] probes one dependency the pipeline needs before a session can
// start: the capture device and the Opus codec. [Run] evaluates a set of
// checkers and reports every failure rather than stopping at the first, so a
// user fixing their setup sees the whole picture at once.
package health

import (
	"context"
	"fmt"
	"time"

	"github.com/voxcap/voxcap/pkg/capture"
	"github.com/voxcap/voxcap/pkg/encode"
)

// checkTimeout is the maximum time a single check may take before its
// context is cancelled.
const checkTimeout = 5 * time.Second

// Checker is a named health check function. The Check function should return
// nil when the dependency is healthy and a non-nil error describing the
// failure otherwise.
type Checker struct {
	// Name is a short, human-readable label for this check (e.g.
	// "microphone", "codec").
	Name string

	// Check probes the dependency. It must respect context cancellation.
	Check func(ctx context.Context) error
}

// Result is the outcome of one checker.
type Result struct {
	Name string
	Err  error
}

// OK reports whether the check passed.
func (r Result) OK() bool {
	return r.Err == nil
}

// Run evaluates every checker sequentially, each under a [checkTimeout]
// deadline derived from ctx, and returns one [Result] per checker in order.
func Run(ctx context.Context, checkers ...Checker) []Result {
	results := make([]Result, 0, len(checkers))
	for _, c := range checkers {
		cctx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := c.Check(cctx)
		cancel()
		results = append(results, Result{Name: c.Name, Err: err})
	}
	return results
}

// Microphone returns a checker that opens and immediately closes the default
// capture device. Fails with [capture.ErrDeviceUnavailable] wrapped when no
// device can be opened.
func Microphone(sampleRate, blockSamples int) Checker {
	return Checker{
		Name: "microphone",
		Check: func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			src, err := capture.OpenDefault(sampleRate, blockSamples)
			if err != nil {
				return fmt.Errorf("open default device: %w", err)
			}
			return src.Close()
		},
	}
}

// Codec returns a checker that initialises an Opus encoder with the session
// parameters. Fails with [encode.ErrCodecUnavailable] wrapped when the codec
// rejects them.
func Codec(sampleRate, bitrate int) Checker {
	return Checker{
		Name: "codec",
		Check: func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, err := encode.NewStreamEncoder(encode.Config{SampleRate: sampleRate, Bitrate: bitrate}); err != nil {
				return fmt.Errorf("init encoder: %w", err)
			}
			return nil
		},
	}
}
