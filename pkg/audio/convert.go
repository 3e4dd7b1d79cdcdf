package audio

import "math"

// maxSampleMagnitude is full scale for 16-bit signed PCM.
const maxSampleMagnitude = 32768.0

// SilenceFloorDB is the level reported for an all-zero block, standing in for
// -inf so that downstream comparisons stay well-defined.
const SilenceFloorDB = -120.0

// Int16sToBytes converts PCM samples to little-endian bytes, the layout the
// codec consumes.
func Int16sToBytes(pcm []int16) []byte {
	b := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		b[i*2] = byte(s)
		b[i*2+1] = byte(s >> 8)
	}
	return b
}

// BytesToInt16s converts little-endian bytes back to PCM samples. A trailing
// odd byte is ignored.
func BytesToInt16s(b []byte) []int16 {
	pcm := make([]int16, len(b)/2)
	for i := range pcm {
		pcm[i] = int16(b[i*2]) | int16(b[i*2+1])<<8
	}
	return pcm
}

// RMS returns the root-mean-square energy of the samples in raw sample units.
// Returns 0 for an empty slice.
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// DBFS converts an RMS value in raw sample units to decibels relative to
// full scale. An RMS of zero maps to [SilenceFloorDB].
func DBFS(rms float64) float64 {
	if rms <= 0 {
		return SilenceFloorDB
	}
	return 20 * math.Log10(rms/maxSampleMagnitude)
}

// Peak returns the largest absolute sample value normalised to [0, 1].
func Peak(samples []int16) float64 {
	var peak int32
	for _, s := range samples {
		v := int32(s)
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	return float64(peak) / maxSampleMagnitude
}
