package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"
	"go.uber.org/multierr"
)

// SampleRate is the capture rate expected by the keyword network.
const SampleRate = 16000

// MicStream reads the default input device and fans sliding windows out
// to subscribers. Slow subscribers miss windows instead of blocking capture.
type MicStream struct {
	stream *portaudio.Stream
	buffer []int16
	window *Window
	logger *slog.Logger

	mu          sync.RWMutex
	subscribers []chan []float32
	closing     bool
	done        chan struct{}
	closeOnce   sync.Once
	closeErr    error
}

func NewMicStream(logger *slog.Logger, windowSecs, slideSecs float32) (m *MicStream, err error) {
	if err = portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio.Initialize: %w", err)
	}
	defer func() {
		if err != nil {
			err = multierr.Append(err, portaudio.Terminate())
		}
	}()
	device, err := portaudio.DefaultInputDevice()
	if err != nil {
		return nil, fmt.Errorf("portaudio.DefaultInputDevice: %w", err)
	}
	chunk := round(slideSecs * SampleRate)
	params := portaudio.LowLatencyParameters(device, nil)
	params.Input.Channels = 1
	params.Output.Channels = 0
	params.SampleRate = SampleRate
	params.FramesPerBuffer = chunk

	buffer := make([]int16, chunk)
	stream, err := portaudio.OpenStream(params, buffer)
	if err != nil {
		return nil, fmt.Errorf("portaudio.OpenStream: %w", err)
	}
	if err = stream.Start(); err != nil {
		return nil, multierr.Append(fmt.Errorf("start mic stream: %w", err), stream.Close())
	}
	logger.Debug("mic stream started", "device", device.Name, "chunk", chunk)
	m = &MicStream{
		stream: stream,
		buffer: buffer,
		window: NewWindow(round(windowSecs*SampleRate), chunk),
		logger: logger,
		done:   make(chan struct{}),
	}
	go m.broadcast()
	return m, nil
}

// Subscribe returns a channel of windows. It is closed when capture ends.
func (m *MicStream) Subscribe() <-chan []float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan []float32, 10)
	if m.closing {
		close(ch)
		return ch
	}
	m.subscribers = append(m.subscribers, ch)
	return ch
}

func (m *MicStream) Unsubscribe(ch <-chan []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, sub := range m.subscribers {
		if sub == ch {
			close(sub)
			m.subscribers = append(m.subscribers[:i], m.subscribers[i+1:]...)
			return
		}
	}
}

func (m *MicStream) broadcast() {
	defer close(m.done)
	defer m.closeSubscribers()
	for !m.isClosing() {
		if err := m.stream.Read(); err != nil && !errors.Is(err, portaudio.InputOverflowed) {
			if !m.isClosing() {
				m.logger.Error("mic read failed", "error", err)
			}
			return
		}
		frame, err := m.window.Push(m.buffer)
		if err != nil {
			m.logger.Error("mic window", "error", err)
			return
		}
		m.mu.RLock()
		for _, ch := range m.subscribers {
			select {
			case ch <- frame:
			default:
			}
		}
		m.mu.RUnlock()
	}
}

func (m *MicStream) isClosing() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closing
}

func (m *MicStream) closeSubscribers() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closing = true
	for _, ch := range m.subscribers {
		close(ch)
	}
	m.subscribers = nil
}

// Close stops capture and releases portaudio. Only the first call has an effect.
func (m *MicStream) Close() error {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.closing = true
		m.mu.Unlock()
		err := m.stream.Abort()
		<-m.done
		err = multierr.Combine(err, m.stream.Close(), portaudio.Terminate())
		if err != nil {
			m.closeErr = fmt.Errorf("close mic stream: %w", err)
		}
		m.logger.Debug("mic stream closed")
	})
	return m.closeErr
}

func round(f float32) int {
	if f < 0 {
		return int(f - 0.5)
	}
	return int(f + 0.5)
}
