package audio

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"
	"go.uber.org/multierr"
)

const playbackChunk = 1024

// Player plays short acknowledgment cues on the default output device.
// Decoded clips are cached by path.
type Player struct {
	logger *slog.Logger
	mu     sync.Mutex
	clips  map[string]*Clip
	wg     sync.WaitGroup
}

func NewPlayer(logger *slog.Logger) (*Player, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio.Initialize: %w", err)
	}
	return &Player{logger: logger, clips: make(map[string]*Clip)}, nil
}

// Cue plays path in the background. Failures are logged, never returned.
func (p *Player) Cue(path string) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.Play(path); err != nil {
			p.logger.Warn("cue playback failed", "path", path, "error", err)
		}
	}()
}

// Play blocks until path has been played.
func (p *Player) Play(path string) (err error) {
	clip, err := p.clip(path)
	if err != nil {
		return err
	}
	out := make([]float32, playbackChunk)
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(clip.SampleRate), len(out), &out)
	if err != nil {
		return fmt.Errorf("open output stream: %w", err)
	}
	defer func() {
		err = multierr.Append(err, stream.Close())
	}()
	if err = stream.Start(); err != nil {
		return fmt.Errorf("start output stream: %w", err)
	}
	defer func() {
		err = multierr.Append(err, stream.Stop())
	}()
	for offset := 0; offset < len(clip.Samples); offset += len(out) {
		n := copy(out, clip.Samples[offset:])
		clear(out[n:])
		if err = stream.Write(); err != nil {
			return fmt.Errorf("write output stream: %w", err)
		}
	}
	return nil
}

func (p *Player) clip(path string) (*Clip, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if clip, ok := p.clips[path]; ok {
		return clip, nil
	}
	clip, err := Load(path)
	if err != nil {
		return nil, err
	}
	p.clips[path] = clip
	return clip, nil
}

// Close waits for running cues and releases portaudio.
func (p *Player) Close() error {
	p.wg.Wait()
	return portaudio.Terminate()
}
