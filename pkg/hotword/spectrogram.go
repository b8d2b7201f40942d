package hotword

import (
	"errors"
	"math"

	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/mat"
)

const (
	sampleRate = 16000
	// the resnet expects a [1, 1, melBands, melFrames] input
	melBands  = 64
	melFrames = 149
)

var errShortSignal = errors.New("signal too short for given window and hop lengths")

// LogMelSpectrogram turns mono 16 kHz audio windows into network input.
// The window function and filterbank are built once per instance.
type LogMelSpectrogram struct {
	SampleRate   int
	WindowLen    int
	HopLength    int
	NumMelBands  int
	NFFTSize     int
	LowFreq      float32
	HighFreq     float32
	PreEmphCoeff float32

	window     []float64
	filterbank *mat.Dense
}

func DefaultLogMelSpectrogram() *LogMelSpectrogram {
	return NewLogMelSpectrogram(
		sampleRate,
		0.025, // window length (seconds)
		0.01,  // window step (seconds)
		melBands,
		512, // FFT size
		0,
		float32(sampleRate)/2,
		0.97, // preemphasis
		HannWindow,
	)
}

// NewLogMelSpectrogram uses a rectangular window when windowFunc is nil.
func NewLogMelSpectrogram(
	rate int,
	winlen, winstep float32,
	nfilt, nfft int,
	lowfreq, highfreq, preemph float32,
	windowFunc func(int) []float64,
) *LogMelSpectrogram {
	if windowFunc == nil {
		windowFunc = RectWindow
	}
	lms := &LogMelSpectrogram{
		SampleRate:   rate,
		WindowLen:    int(winlen * float32(rate)),
		HopLength:    int(winstep * float32(rate)),
		NumMelBands:  nfilt,
		NFFTSize:     nfft,
		LowFreq:      lowfreq,
		HighFreq:     highfreq,
		PreEmphCoeff: preemph,
	}
	lms.window = windowFunc(lms.WindowLen)
	lms.filterbank = MelFilterbank(nfilt, nfft, rate, lowfreq, highfreq)
	return lms
}

func RectWindow(size int) []float64 {
	window := make([]float64, size)
	for i := range window {
		window[i] = 1
	}
	return window
}

func HannWindow(size int) []float64 {
	window := make([]float64, size)
	if size == 1 {
		window[0] = 1
		return window
	}
	for i := range window {
		window[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(size-1)))
	}
	return window
}

// Preemphasis applies a first order high-pass filter.
func Preemphasis(signal []float32, coeff float32) []float32 {
	if len(signal) <= 1 || coeff == 0 {
		return signal
	}
	out := make([]float32, len(signal))
	out[0] = signal[0]
	for i := 1; i < len(signal); i++ {
		out[i] = signal[i] - coeff*signal[i-1]
	}
	return out
}

func HzToMel(hz float32) float32 {
	return float32(2595 * math.Log10(1+float64(hz)/700.0))
}

func MelToHz(mel float32) float32 {
	return float32(700 * (math.Pow(10, float64(mel)/2595.0) - 1))
}

// MelFilterbank builds a bands x (nfft/2+1) triangular filterbank.
func MelFilterbank(bands, nfft, rate int, lowFreq, highFreq float32) *mat.Dense {
	var (
		melMin = HzToMel(lowFreq)
		melMax = HzToMel(highFreq)
		bins   = make([]int, bands+2)
		fb     = mat.NewDense(bands, nfft/2+1, nil)
		width  = nfft/2 + 1
	)
	for i := range bins {
		hz := MelToHz(melMin + (melMax-melMin)*float32(i)/float32(bands+1))
		bins[i] = min(int(math.Floor(float64(float32(nfft+1)*hz/float32(rate)))), width-1)
	}
	for j := 0; j < bands; j++ {
		for i := bins[j]; i < bins[j+1]; i++ {
			fb.Set(j, i, float64(i-bins[j])/float64(bins[j+1]-bins[j]))
		}
		for i := bins[j+1]; i < bins[j+2]; i++ {
			fb.Set(j, i, float64(bins[j+2]-i)/float64(bins[j+2]-bins[j+1]))
		}
	}
	return fb
}

// Compute returns the log mel energies indexed [band][frame].
func (lms *LogMelSpectrogram) Compute(signal []float32) ([][]float32, error) {
	signal = Preemphasis(signal, lms.PreEmphCoeff)
	if len(signal) < lms.WindowLen {
		return nil, errShortSignal
	}
	numFrames := 1 + (len(signal)-lms.WindowLen)/lms.HopLength
	out := make([][]float32, lms.NumMelBands)
	for m := range out {
		out[m] = make([]float32, numFrames)
	}
	framed := make([]float64, lms.NFFTSize)
	spectrum := mat.NewVecDense(lms.NFFTSize/2+1, nil)
	energies := mat.NewVecDense(lms.NumMelBands, nil)
	for frame := 0; frame < numFrames; frame++ {
		start := frame * lms.HopLength
		clear(framed)
		for i := 0; i < lms.WindowLen && i < lms.NFFTSize; i++ {
			framed[i] = float64(signal[start+i]) * lms.window[i]
		}
		bins := fft.FFTReal(framed)
		for k := 0; k < spectrum.Len(); k++ {
			spectrum.SetVec(k, math.Hypot(real(bins[k]), imag(bins[k])))
		}
		energies.MulVec(lms.filterbank, spectrum)
		for m := 0; m < lms.NumMelBands; m++ {
			out[m][frame] = float32(math.Log(energies.AtVec(m) + 1e-10))
		}
	}
	return out, nil
}

// AudioToVector pads or truncates the spectrogram to the network input
// shape and flattens it band-major.
func (lms *LogMelSpectrogram) AudioToVector(audio []float32) ([]float32, error) {
	features, err := lms.Compute(audio)
	if err != nil {
		return nil, err
	}
	vec := make([]float32, melBands*melFrames)
	for m := 0; m < melBands && m < len(features); m++ {
		copy(vec[m*melFrames:(m+1)*melFrames], features[m])
	}
	return vec, nil
}
