package vad_test

import (
	"testing"
	"time"

	"github.com/voxcap/voxcap/pkg/audio"
	"github.com/voxcap/voxcap/pkg/vad"
)

const (
	testSampleRate   = 16000
	testChunkSamples = 320 // 20 ms at 16 kHz
	testChunkUS      = 20_000
)

// chunkAt builds one 20 ms chunk starting at the given chunk index.
// amplitude 0 is silence; any audible amplitude classifies as speech under
// the default -40 dBFS threshold.
func chunkAt(index int, amplitude int16) audio.Chunk {
	samples := make([]int16, testChunkSamples)
	for i := range samples {
		samples[i] = amplitude
	}
	return audio.Chunk{
		Samples:          samples,
		TimestampUS:      int64(index) * testChunkUS,
		StartSampleIndex: int64(index) * testChunkSamples,
	}
}

// feed processes a run of chunks, one per element of pattern, where true
// means speech (amplitude 8000) and false means silence.
func feed(s *vad.Segmenter, pattern []bool) {
	for i, speech := range pattern {
		var amp int16
		if speech {
			amp = 8000
		}
		s.ProcessChunk(chunkAt(i, amp))
	}
}

func TestSegmenter_SingleBurst(t *testing.T) {
	t.Parallel()
	s := vad.New(vad.Config{})

	// 2 silence, 5 speech, 3 silence.
	feed(s, []bool{false, false, true, true, true, true, true, false, false, false})

	closed, open := s.Snapshot()
	if open != nil {
		t.Fatalf("open segment = %+v, want nil", open)
	}
	if len(closed) != 1 {
		t.Fatalf("closed segments = %d, want 1", len(closed))
	}
	seg := closed[0]
	if seg.StartUS != 2*testChunkUS {
		t.Errorf("StartUS = %d, want %d", seg.StartUS, 2*testChunkUS)
	}
	if seg.EndUS != 7*testChunkUS {
		t.Errorf("EndUS = %d, want %d", seg.EndUS, 7*testChunkUS)
	}
	if seg.StartSampleIndex != 2*testChunkSamples {
		t.Errorf("StartSampleIndex = %d, want %d", seg.StartSampleIndex, 2*testChunkSamples)
	}
}

func TestSegmenter_GapWithinWindowContinuesSegment(t *testing.T) {
	t.Parallel()
	s := vad.New(vad.Config{})

	// Speech, 40 ms of silence (below the 100 ms default gap), speech again.
	feed(s, []bool{true, true, false, false, true, true})

	closed, open := s.Snapshot()
	if len(closed) != 0 {
		t.Fatalf("closed segments = %d, want 0", len(closed))
	}
	if open == nil {
		t.Fatal("open segment is nil, want the reopened segment")
	}
	if open.StartUS != 0 {
		t.Errorf("reopened StartUS = %d, want 0", open.StartUS)
	}
}

func TestSegmenter_GapBeyondWindowStartsNewSegment(t *testing.T) {
	t.Parallel()
	s := vad.New(vad.Config{})

	// Speech, 200 ms of silence, speech, silence.
	pattern := []bool{true, true}
	for i := 0; i < 10; i++ {
		pattern = append(pattern, false)
	}
	pattern = append(pattern, true, true, false)
	feed(s, pattern)

	closed, open := s.Snapshot()
	if open != nil {
		t.Fatalf("open segment = %+v, want nil", open)
	}
	if len(closed) != 2 {
		t.Fatalf("closed segments = %d, want 2", len(closed))
	}
	if closed[1].StartUS != 12*testChunkUS {
		t.Errorf("second StartUS = %d, want %d", closed[1].StartUS, 12*testChunkUS)
	}
}

func TestSegmenter_StopMidSpeechLeavesOpenSegment(t *testing.T) {
	t.Parallel()
	s := vad.New(vad.Config{})

	feed(s, []bool{false, true, true, true})

	closed, open := s.Snapshot()
	if len(closed) != 0 {
		t.Fatalf("closed segments = %d, want 0", len(closed))
	}
	if open == nil {
		t.Fatal("open segment is nil, want one starting at the speech onset")
	}
	if open.StartUS != testChunkUS {
		t.Errorf("open StartUS = %d, want %d", open.StartUS, testChunkUS)
	}
	if open.EndUS != 0 {
		t.Errorf("open EndUS = %d, want 0 (not yet closed)", open.EndUS)
	}
}

func TestSegmenter_CustomThreshold(t *testing.T) {
	t.Parallel()
	// Amplitude 8000 is about -12 dBFS; a -6 threshold classifies it silence.
	s := vad.New(vad.Config{SpeechThresholdDB: -6})

	feed(s, []bool{true, true, true})

	closed, open := s.Snapshot()
	if len(closed) != 0 || open != nil {
		t.Errorf("segments = (%d closed, open=%v), want none", len(closed), open)
	}
}

func TestSegmenter_CustomGapWindow(t *testing.T) {
	t.Parallel()
	s := vad.New(vad.Config{MinSilenceGap: 30 * time.Millisecond})

	// 40 ms gap exceeds the 30 ms window, so the second burst is separate.
	feed(s, []bool{true, false, false, true, false})

	closed, _ := s.Snapshot()
	if len(closed) != 2 {
		t.Fatalf("closed segments = %d, want 2", len(closed))
	}
}

func TestSegmenter_AmplitudeSink(t *testing.T) {
	t.Parallel()
	var peaks []float64
	s := vad.New(vad.Config{}, vad.WithAmplitudeSink(func(p float64) {
		peaks = append(peaks, p)
	}))

	s.ProcessChunk(chunkAt(0, 0))
	s.ProcessChunk(chunkAt(1, 16384))

	if len(peaks) != 2 {
		t.Fatalf("sink calls = %d, want 2", len(peaks))
	}
	if peaks[0] != 0 {
		t.Errorf("silence peak = %v, want 0", peaks[0])
	}
	if peaks[1] != 0.5 {
		t.Errorf("speech peak = %v, want 0.5", peaks[1])
	}
}

func TestSegmenter_SnapshotCopiesState(t *testing.T) {
	t.Parallel()
	s := vad.New(vad.Config{})
	feed(s, []bool{true, false, false, false, false, false, false})

	closed, _ := s.Snapshot()
	if len(closed) != 1 {
		t.Fatalf("closed segments = %d, want 1", len(closed))
	}
	closed[0].StartUS = 999

	again, _ := s.Snapshot()
	if again[0].StartUS == 999 {
		t.Error("mutating a snapshot leaked into segmenter state")
	}
}
