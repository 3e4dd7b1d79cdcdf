package vad

import (
	"slices"
	"time"

	"github.com/voxcap/voxcap/pkg/audio"
)

// Default segment padding applied at finalisation.
const (
	DefaultPadBefore = 150 * time.Millisecond
	DefaultPadAfter  = 200 * time.Millisecond
)

// FinalizeOptions configures segment padding for [Finalize].
type FinalizeOptions struct {
	// PadBefore extends each segment's start backwards, clamped to 0.
	// Zero means [DefaultPadBefore]; use a negative value for no padding.
	PadBefore time.Duration

	// PadAfter extends each segment's end forwards, clamped to the total
	// duration. Zero means [DefaultPadAfter]; negative for no padding.
	PadAfter time.Duration
}

func (o FinalizeOptions) withDefaults() FinalizeOptions {
	if o.PadBefore == 0 {
		o.PadBefore = DefaultPadBefore
	}
	if o.PadBefore < 0 {
		o.PadBefore = 0
	}
	if o.PadAfter == 0 {
		o.PadAfter = DefaultPadAfter
	}
	if o.PadAfter < 0 {
		o.PadAfter = 0
	}
	return o
}

// Finalize turns the segmenter's end-of-session snapshot into the final,
// disjoint, time-ordered segment list:
//
//  1. an open segment is closed at totalDurationUS;
//  2. every segment is padded and clamped to [0, totalDurationUS];
//  3. segments are sorted by start and overlapping or touching neighbours
//     are merged (merged end = max of the two ends).
//
// Finalize is pure: it never mutates its inputs and, given identical inputs,
// produces identical output on every call.
func Finalize(open *audio.SpeechSegment, closed []audio.SpeechSegment, totalDurationUS int64, opts FinalizeOptions) []audio.SpeechSegment {
	opts = opts.withDefaults()

	segs := make([]audio.SpeechSegment, 0, len(closed)+1)
	segs = append(segs, closed...)
	if open != nil {
		o := *open
		o.EndUS = totalDurationUS
		segs = append(segs, o)
	}
	if len(segs) == 0 {
		return nil
	}

	padBeforeUS := opts.PadBefore.Microseconds()
	padAfterUS := opts.PadAfter.Microseconds()
	for i := range segs {
		segs[i].StartUS = max(0, segs[i].StartUS-padBeforeUS)
		segs[i].EndUS = min(totalDurationUS, segs[i].EndUS+padAfterUS)
	}

	slices.SortFunc(segs, func(a, b audio.SpeechSegment) int {
		switch {
		case a.StartUS < b.StartUS:
			return -1
		case a.StartUS > b.StartUS:
			return 1
		default:
			return 0
		}
	})

	merged := segs[:1]
	for _, seg := range segs[1:] {
		last := &merged[len(merged)-1]
		if seg.StartUS <= last.EndUS {
			if seg.EndUS > last.EndUS {
				last.EndUS = seg.EndUS
				last.EndSampleIndex = seg.EndSampleIndex
			}
			continue
		}
		merged = append(merged, seg)
	}
	return merged
}
