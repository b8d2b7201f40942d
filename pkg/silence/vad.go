// Package silence gates audio windows on their RMS energy so silent input
// never reaches the keyword network.
package silence

import "math"

type Config struct {
	// SpeechThreshold is the RMS level that counts as speech.
	SpeechThreshold float64
	// SilenceThreshold is the RMS level below which speech ends.
	SilenceThreshold float64
	// SpeechFrames consecutive loud frames are needed to open the gate.
	SpeechFrames int
	// SilenceFrames consecutive quiet frames are needed to close it.
	SilenceFrames int
}

func DefaultConfig() Config {
	return Config{
		SpeechThreshold:  0.015,
		SilenceThreshold: 0.008,
		SpeechFrames:     1,
		SilenceFrames:    2,
	}
}

// Gate is an energy detector with hysteresis. It is not safe for concurrent use.
type Gate struct {
	cfg          Config
	open         bool
	speechCount  int
	silenceCount int
}

func NewGate(cfg Config) *Gate {
	if cfg.SpeechFrames < 1 {
		cfg.SpeechFrames = 1
	}
	if cfg.SilenceFrames < 1 {
		cfg.SilenceFrames = 1
	}
	return &Gate{cfg: cfg}
}

// IsSpeech feeds one frame and reports whether the gate is open afterwards.
func (g *Gate) IsSpeech(frame []float32) bool {
	level := RMS(frame)
	if g.open {
		if level < g.cfg.SilenceThreshold {
			g.silenceCount++
			if g.silenceCount >= g.cfg.SilenceFrames {
				g.open = false
				g.silenceCount = 0
			}
		} else {
			g.silenceCount = 0
		}
		return g.open
	}
	if level >= g.cfg.SpeechThreshold {
		g.speechCount++
		if g.speechCount >= g.cfg.SpeechFrames {
			g.open = true
			g.speechCount = 0
		}
	} else {
		g.speechCount = 0
	}
	return g.open
}

func RMS(frame []float32) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, s := range frame {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(frame)))
}
