// Package audio defines the data model shared by every stage of the voxcap
// recording pipeline: PCM chunks flowing out of the capture loop, speech
// segments produced by voice-activity detection, compressed frames produced
// by the encoder, and the metadata record computed after muxing.
//
// Values of these types are passed by value between pipeline goroutines and
// are treated as immutable after construction. In particular a [Chunk] is
// published to both the VAD and encoder queues simultaneously; neither
// consumer may mutate its sample slice.
package audio

// Chunk is one block of mono 16-bit PCM read from the capture device,
// stamped with its position on the recording timeline.
//
// TimestampUS is fully determined by StartSampleIndex:
//
//	TimestampUS = StartSampleIndex * 1_000_000 / sampleRate
//
// Chunks are produced in strictly increasing StartSampleIndex order with no
// gaps between consecutive chunks.
type Chunk struct {
	// Samples holds the PCM data. The usual length is one codec frame
	// (20 ms), but a short device read may yield fewer samples.
	Samples []int16

	// TimestampUS is the chunk start time in microseconds since the first
	// captured sample.
	TimestampUS int64

	// StartSampleIndex is the index of Samples[0] within the whole recording.
	StartSampleIndex int64
}

// SpeechSegment is a contiguous interval classified as speech. The segmenter
// creates segments in timeline order; finalisation pads and merges them into
// the final disjoint list handed to the muxer.
type SpeechSegment struct {
	StartUS int64
	EndUS   int64

	StartSampleIndex int64
	EndSampleIndex   int64
}

// DurationUS returns the segment length in microseconds.
func (s SpeechSegment) DurationUS() int64 {
	return s.EndUS - s.StartUS
}

// EncodedFrame is one compressed codec packet tagged with its presentation
// timestamp. Frames are emitted in non-decreasing PTS order and are immutable
// once produced.
type EncodedFrame struct {
	// Payload is the opaque compressed packet.
	Payload []byte

	// PTSUS is the presentation timestamp in microseconds relative to the
	// start of the recording.
	PTSUS int64

	// EndOfStream marks the final frame emitted by the encoder flush.
	EndOfStream bool
}

// Size returns the payload length in bytes.
func (f EncodedFrame) Size() int {
	return len(f.Payload)
}

// Metadata summarises a finished recording. It is computed once, after
// filtering and muxing, and is read-only thereafter.
type Metadata struct {
	// TotalDurationMS is the full captured duration.
	TotalDurationMS int64

	// SpeechDurationMS is the summed length of the final speech segments.
	SpeechDurationMS int64

	// SegmentCount is the number of speech segments detected (post-merge).
	SegmentCount int

	// TrimmedSizeBytes and RawSizeBytes are the container sizes. A disabled
	// or fallen-back output reports zero.
	TrimmedSizeBytes int
	RawSizeBytes     int

	// SilenceTrimmingApplied reports whether the trimmed output actually
	// dropped frames. False on the fallback paths (no speech detected, or
	// filtering removed every frame), in which case callers should use the
	// raw output.
	SilenceTrimmingApplied bool
}
