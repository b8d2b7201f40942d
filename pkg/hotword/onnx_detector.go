package hotword

import (
	"errors"
	"fmt"
	"log/slog"

	"go.uber.org/multierr"

	"github.com/algo-boyz/snowdemo/pkg/audio"
	"github.com/algo-boyz/snowdemo/pkg/silence"
)

var errSourceClosed = errors.New("audio source closed")

// FrameSource delivers sliding audio windows.
type FrameSource interface {
	Subscribe() <-chan []float32
	Unsubscribe(<-chan []float32)
	Close() error
}

// Embedder maps a log-mel vector to a keyword embedding.
type Embedder interface {
	Embed([]float32) ([]float32, error)
	Destroy() error
}

type OnnxConfig struct {
	RuntimePath string
	NetworkPath string
	// WindowSecs of audio are scored, every SlideSecs.
	WindowSecs float32
	SlideSecs  float32
	Silence    silence.Config
}

func DefaultOnnxConfig(runtimePath string) OnnxConfig {
	return OnnxConfig{
		RuntimePath: runtimePath,
		NetworkPath: OnnxModelPath(),
		WindowSecs:  1.5,
		SlideSecs:   0.75,
		Silence:     silence.DefaultConfig(),
	}
}

// OnnxOpener opens detectors scoring microphone audio with the embedding
// network. Each model is a reference embeddings JSON file.
func OnnxOpener(cfg OnnxConfig, logger *slog.Logger) Opener {
	return func(models []string, sensitivities []float64) (_ Detector, err error) {
		keywords, err := LoadKeywords(models, sensitivities)
		if err != nil {
			return nil, err
		}
		network, err := NewNetwork(cfg.RuntimePath, cfg.NetworkPath, logger)
		if err != nil {
			return nil, err
		}
		mic, err := audio.NewMicStream(logger, cfg.WindowSecs, cfg.SlideSecs)
		if err != nil {
			return nil, multierr.Append(err, network.Destroy())
		}
		return NewFrameDetector(mic, network, DefaultLogMelSpectrogram(), silence.NewGate(cfg.Silence), keywords, logger), nil
	}
}

func LoadKeywords(models []string, sensitivities []float64) ([]*Keyword, error) {
	keywords := make([]*Keyword, len(models))
	for i, path := range models {
		embeddings, err := LoadEmbeddings(path)
		if err != nil {
			return nil, err
		}
		keywords[i] = &Keyword{
			Name:       KeywordName(path),
			Embeddings: embeddings,
			Threshold:  ThresholdFor(sensitivities[i]),
		}
	}
	return keywords, nil
}

// FrameDetector scores at most one pending window per Poll.
type FrameDetector struct {
	source   FrameSource
	frames   <-chan []float32
	embedder Embedder
	features *LogMelSpectrogram
	gate     *silence.Gate
	keywords []*Keyword
	logger   *slog.Logger
}

func NewFrameDetector(source FrameSource, embedder Embedder, features *LogMelSpectrogram, gate *silence.Gate, keywords []*Keyword, logger *slog.Logger) *FrameDetector {
	return &FrameDetector{
		source:   source,
		frames:   source.Subscribe(),
		embedder: embedder,
		features: features,
		gate:     gate,
		keywords: keywords,
		logger:   logger,
	}
}

func (d *FrameDetector) Poll() (int, error) {
	var frame []float32
	select {
	case f, ok := <-d.frames:
		if !ok {
			return 0, errSourceClosed
		}
		frame = f
	default:
		return NoDetection, nil
	}
	if d.gate != nil && !d.gate.IsSpeech(frame) {
		return NoDetection, nil
	}
	vec, err := d.features.AudioToVector(frame)
	if err != nil {
		return 0, fmt.Errorf("log-mel features: %w", err)
	}
	embedding, err := d.embedder.Embed(vec)
	if err != nil {
		return 0, err
	}
	best, bestScore := NoDetection, float32(0)
	for i, k := range d.keywords {
		score := k.Score(embedding)
		d.logger.Debug("keyword score", "keyword", k.Name, "score", score)
		if score > k.Threshold && score > bestScore {
			best, bestScore = i+1, score
		}
	}
	return best, nil
}

func (d *FrameDetector) Close() error {
	d.source.Unsubscribe(d.frames)
	return multierr.Combine(d.source.Close(), d.embedder.Destroy())
}
