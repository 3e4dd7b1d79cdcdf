// Package mux intersects encoded frames with finalised speech segments and
// serialises the result into Ogg Opus containers.
//
// Muxing itself is delegated to pion's oggwriter; this package owns the
// selection logic: which frames survive trimming, how timestamps are rebased
// to zero, when to fall back to the untrimmed output, and the metadata
// record describing the outcome.
package mux

import (
	"bytes"
	"fmt"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"

	"github.com/voxcap/voxcap/pkg/audio"
)

// OutputMode selects which containers a recording session produces.
type OutputMode string

const (
	// ModeTrimmed produces only the silence-trimmed container.
	ModeTrimmed OutputMode = "trimmed"

	// ModeRaw produces only the untrimmed container.
	ModeRaw OutputMode = "raw"

	// ModeBoth produces both containers.
	ModeBoth OutputMode = "both"
)

// IsValid reports whether m is a recognised output mode.
func (m OutputMode) IsValid() bool {
	switch m {
	case ModeTrimmed, ModeRaw, ModeBoth:
		return true
	}
	return false
}

// Ogg Opus granule positions and RTP timestamps run on the 48 kHz Opus
// reference clock regardless of the input sample rate (RFC 7845 §4).
const opusClockRate = 48000

// rtpPayloadType is the dynamic payload type conventionally used for Opus.
const rtpPayloadType = 111

// Options configures [Process].
type Options struct {
	// Mode selects which containers to produce. Zero value means [ModeBoth].
	Mode OutputMode
}

// Output is the result of [Process].
type Output struct {
	// Trimmed is the silence-trimmed Ogg container. Empty on the fallback
	// paths and when Mode is [ModeRaw].
	Trimmed []byte

	// Raw is the untrimmed Ogg container holding every frame. Empty when
	// Mode is [ModeTrimmed].
	Raw []byte

	Metadata audio.Metadata
}

// Process filters frames against segments, rebases timestamps, and muxes the
// trimmed and raw outputs.
//
// A frame survives trimming iff its presentation time lies within any
// segment, boundaries inclusive on both ends. Frames are atomic: a frame
// touching a segment boundary is kept whole rather than split or dropped.
//
// Fallback: with no segments, or when filtering removes every frame, the
// trimmed output is empty and SilenceTrimmingApplied is false; the caller is
// expected to use the raw output. Silence trimming is a best-effort
// optimisation, never a correctness requirement.
func Process(frames []audio.EncodedFrame, segments []audio.SpeechSegment, totalDurationUS int64, opts Options) (*Output, error) {
	mode := opts.Mode
	if mode == "" {
		mode = ModeBoth
	}
	if !mode.IsValid() {
		return nil, fmt.Errorf("mux: invalid output mode %q", mode)
	}

	out := &Output{}
	out.Metadata.TotalDurationMS = totalDurationUS / 1000
	out.Metadata.SegmentCount = len(segments)
	for _, seg := range segments {
		out.Metadata.SpeechDurationMS += seg.DurationUS() / 1000
	}

	if mode != ModeTrimmed {
		raw, err := writeOgg(rebase(frames))
		if err != nil {
			return nil, fmt.Errorf("mux: raw container: %w", err)
		}
		out.Raw = raw
		out.Metadata.RawSizeBytes = len(raw)
	}

	if mode == ModeRaw {
		return out, nil
	}

	kept := filter(frames, segments)
	if len(segments) == 0 || len(kept) == 0 {
		// Fallback path: nothing to trim against, or trimming would discard
		// everything. SegmentCount still reflects what was detected.
		return out, nil
	}

	trimmed, err := writeOgg(rebase(kept))
	if err != nil {
		return nil, fmt.Errorf("mux: trimmed container: %w", err)
	}
	out.Trimmed = trimmed
	out.Metadata.TrimmedSizeBytes = len(trimmed)
	out.Metadata.SilenceTrimmingApplied = len(kept) < len(frames)
	return out, nil
}

// filter keeps frames whose presentation time falls inside any segment,
// inclusive on both boundaries. Both inputs are time-ordered, so a single
// forward scan over the segments suffices.
func filter(frames []audio.EncodedFrame, segments []audio.SpeechSegment) []audio.EncodedFrame {
	if len(segments) == 0 {
		return nil
	}
	var kept []audio.EncodedFrame
	si := 0
	for _, f := range frames {
		for si < len(segments) && f.PTSUS > segments[si].EndUS {
			si++
		}
		if si == len(segments) {
			break
		}
		if f.PTSUS >= segments[si].StartUS && f.PTSUS <= segments[si].EndUS {
			kept = append(kept, f)
		}
	}
	return kept
}

// rebase shifts frame timestamps so the first frame plays at time zero,
// preserving relative spacing. The input is not mutated.
func rebase(frames []audio.EncodedFrame) []audio.EncodedFrame {
	if len(frames) == 0 {
		return nil
	}
	base := frames[0].PTSUS
	out := make([]audio.EncodedFrame, len(frames))
	for i, f := range frames {
		f.PTSUS -= base
		out[i] = f
	}
	return out
}

// writeOgg serialises frames into an in-memory Ogg Opus container. Frame
// timing is carried via RTP timestamps on the 48 kHz Opus clock, which the
// ogg writer translates into granule positions.
func writeOgg(frames []audio.EncodedFrame) ([]byte, error) {
	if len(frames) == 0 {
		return nil, nil
	}

	var buf bytes.Buffer
	w, err := oggwriter.NewWith(&buf, opusClockRate, 1)
	if err != nil {
		return nil, fmt.Errorf("create ogg writer: %w", err)
	}

	for i, f := range frames {
		pkt := &rtp.Packet{
			Header: rtp.Header{
				Version:        2,
				PayloadType:    rtpPayloadType,
				SequenceNumber: uint16(i),
				Timestamp:      uint32(f.PTSUS * opusClockRate / 1_000_000),
			},
			Payload: f.Payload,
		}
		if err := w.WriteRTP(pkt); err != nil {
			_ = w.Close()
			return nil, fmt.Errorf("write frame %d: %w", i, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close ogg writer: %w", err)
	}
	return buf.Bytes(), nil
}
