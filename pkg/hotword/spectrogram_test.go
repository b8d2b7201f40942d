package hotword

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func sine(freq float64, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(math.Sin(2 * math.Pi * freq * float64(i) / sampleRate))
	}
	return out
}

func TestAudioToVectorShape(t *testing.T) {
	lms := DefaultLogMelSpectrogram()
	vec, err := lms.AudioToVector(sine(440, sampleRate*3/2))
	require.NoError(t, err)
	require.Len(t, vec, melBands*melFrames)
}

func TestComputeShortSignal(t *testing.T) {
	_, err := DefaultLogMelSpectrogram().Compute(make([]float32, 10))
	require.ErrorIs(t, err, errShortSignal)
}

func TestComputeFrames(t *testing.T) {
	lms := DefaultLogMelSpectrogram()
	features, err := lms.Compute(sine(1000, sampleRate))
	require.NoError(t, err)
	require.Len(t, features, melBands)
	require.Len(t, features[0], 1+(sampleRate-lms.WindowLen)/lms.HopLength)
}

func TestMelRoundTrip(t *testing.T) {
	for _, hz := range []float32{0, 300, 4000, 8000} {
		require.InDelta(t, hz, MelToHz(HzToMel(hz)), 0.5)
	}
}

func TestPreemphasis(t *testing.T) {
	require.Equal(t, []float32{1, 1, 1}, Preemphasis([]float32{1, 2, 3}, 1))
	in := []float32{1, 2}
	require.Equal(t, in, Preemphasis(in, 0))
}
