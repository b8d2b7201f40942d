package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/zaf/g711"
	"go.uber.org/multierr"
)

// telephonyRate is the sample rate of headerless G.711 cue files.
const telephonyRate = 8000

// Clip is a decoded mono recording.
type Clip struct {
	Samples    []float32
	SampleRate int
}

func (c *Clip) Duration() float64 {
	if c.SampleRate == 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate)
}

// Load decodes a .wav, .mp3, µ-law (.ul, .ulaw) or A-law (.al, .alaw) file.
func Load(filePath string) (*Clip, error) {
	switch ext := strings.ToLower(filepath.Ext(filePath)); ext {
	case ".mp3":
		return withFile(filePath, decodeMP3)
	case ".wav":
		return withFile(filePath, decodeWAV)
	case ".ul", ".ulaw":
		return withFile(filePath, decodeG711(g711.DecodeUlaw))
	case ".al", ".alaw":
		return withFile(filePath, decodeG711(g711.DecodeAlaw))
	default:
		return nil, fmt.Errorf("unsupported audio file extension: %s", ext)
	}
}

func withFile(filePath string, decode func(io.ReadSeeker) (*Clip, error)) (clip *Clip, err error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filePath, err)
	}
	defer func() {
		err = multierr.Append(err, f.Close())
	}()
	if clip, err = decode(f); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filePath, err)
	}
	return clip, nil
}

// decodeMP3 downmixes the decoder's 16-bit stereo output to mono.
func decodeMP3(r io.ReadSeeker) (*Clip, error) {
	decoder, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("mp3 decoder: %w", err)
	}
	b, err := io.ReadAll(decoder)
	if err != nil {
		return nil, fmt.Errorf("read mp3 data: %w", err)
	}
	samples := make([]float32, len(b)/4)
	for i := range samples {
		left := int16(binary.LittleEndian.Uint16(b[i*4:]))
		right := int16(binary.LittleEndian.Uint16(b[i*4+2:]))
		samples[i] = (float32(left) + float32(right)) / 2 / 32768.0
	}
	return &Clip{Samples: samples, SampleRate: decoder.SampleRate()}, nil
}

// decodeWAV keeps the first channel only.
func decodeWAV(r io.ReadSeeker) (*Clip, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("invalid WAV file")
	}
	buffer, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode pcm: %w", err)
	}
	channels := max(buffer.Format.NumChannels, 1)
	scale := float32(int64(1) << (max(int(decoder.BitDepth), 1) - 1))
	samples := make([]float32, len(buffer.Data)/channels)
	for i := range samples {
		samples[i] = float32(buffer.Data[i*channels]) / scale
	}
	return &Clip{Samples: samples, SampleRate: buffer.Format.SampleRate}, nil
}

func decodeG711(decode func([]byte) []byte) func(io.ReadSeeker) (*Clip, error) {
	return func(r io.ReadSeeker) (*Clip, error) {
		encoded, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		return &Clip{Samples: pcm16ToFloat(decode(encoded)), SampleRate: telephonyRate}, nil
	}
}

func pcm16ToFloat(pcm []byte) []float32 {
	out := make([]float32, len(pcm)/2)
	for i := range out {
		out[i] = float32(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 32768.0
	}
	return out
}
