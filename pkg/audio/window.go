package audio

import "fmt"

// Window is a sliding window over 16-bit mono PCM. Each Push of exactly
// one slide of samples shifts the window and returns a copy of it.
type Window struct {
	size  int
	slide int
	buf   []float32
}

func NewWindow(size, slide int) *Window {
	slide = max(1, min(slide, size))
	return &Window{size: size, slide: slide, buf: make([]float32, size)}
}

func (w *Window) Push(samples []int16) ([]float32, error) {
	if len(samples) != w.slide {
		return nil, fmt.Errorf("got %d samples, window slides by %d", len(samples), w.slide)
	}
	copy(w.buf, w.buf[w.slide:])
	tail := w.buf[w.size-w.slide:]
	for i, s := range samples {
		tail[i] = float32(s) / float32(1<<15)
	}
	return append([]float32(nil), w.buf...), nil
}
