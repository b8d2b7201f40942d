package hotword

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/algo-boyz/snowdemo/pkg/state"
)

// Session dispatches detections of a Detector to positional callbacks.
type Session struct {
	name          string
	models        []string
	sensitivities []float64
	callbacks     []Callback
	detector      Detector
	logger        *slog.Logger
	sleepOnHit    bool

	stop       *state.Interrupt
	running    atomic.Bool
	terminated atomic.Bool
	closeOnce  sync.Once
	closeErr   error
}

type Option func(*Session)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// WithName sets the session name used in logs.
func WithName(name string) Option {
	return func(s *Session) { s.name = name }
}

// WithSleepAfterDetection makes the loop sleep after a detection as well.
// By default the next poll follows a detection immediately.
func WithSleepAfterDetection(enabled bool) Option {
	return func(s *Session) { s.sleepOnHit = enabled }
}

// NewSession validates its arguments and only then opens the detector.
// Empty sensitivities default to DefaultSensitivity for each model.
func NewSession(open Opener, models []string, sensitivities []float64, callbacks []Callback, opts ...Option) (*Session, error) {
	if open == nil {
		return nil, configErrorf("no detector opener")
	}
	if len(models) == 0 {
		return nil, configErrorf("at least one model is required")
	}
	if len(callbacks) != len(models) {
		return nil, configErrorf("%d callbacks for %d models", len(callbacks), len(models))
	}
	if len(sensitivities) == 0 {
		sensitivities = make([]float64, len(models))
		for i := range sensitivities {
			sensitivities[i] = DefaultSensitivity
		}
	}
	if len(sensitivities) != len(models) {
		return nil, configErrorf("%d sensitivities for %d models", len(sensitivities), len(models))
	}
	for i, v := range sensitivities {
		if v < 0 || v > 1 {
			return nil, configErrorf("sensitivity %d out of range [0,1]: %v", i, v)
		}
	}
	s := &Session{
		name:          uuid.New().String()[:8],
		models:        append([]string(nil), models...),
		sensitivities: append([]float64(nil), sensitivities...),
		callbacks:     append([]Callback(nil), callbacks...),
		logger:        slog.Default(),
		stop:          state.NewInterrupt(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("session", s.name)
	detector, err := open(s.models, s.sensitivities)
	if err != nil {
		return nil, &DetectionFailure{Err: fmt.Errorf("open detector: %w", err)}
	}
	s.detector = detector
	return s, nil
}

// RequestStop ends the loop at its next iteration. Callbacks use it for
// one-shot sessions.
func (s *Session) RequestStop() {
	s.stop.RequestStop()
}

// Start polls the detector until stop or the session's own stop flag is set,
// then terminates the session. A nil stop only honors RequestStop.
func (s *Session) Start(stop StopChecker, pollInterval time.Duration) (err error) {
	if s.terminated.Load() {
		return ErrTerminated
	}
	if !s.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer s.running.Store(false)
	defer func() {
		err = multierr.Append(err, s.Terminate())
	}()

	s.logger.Info("listening", "models", s.models, "sensitivities", s.sensitivities)
	for !s.stopRequested(stop) {
		index, err := s.detector.Poll()
		if err != nil {
			return &DetectionFailure{Err: err}
		}
		if index == NoDetection {
			time.Sleep(pollInterval)
			continue
		}
		if index < 1 || index > len(s.callbacks) {
			return &DetectionFailure{Err: fmt.Errorf("detector returned index %d for %d models", index, len(s.callbacks))}
		}
		s.logger.Info("keyword detected", "index", index-1, "model", s.models[index-1])
		if err = s.dispatch(index - 1); err != nil {
			return err
		}
		if s.sleepOnHit {
			time.Sleep(pollInterval)
		}
	}
	s.logger.Debug("stop requested")
	return nil
}

func (s *Session) stopRequested(stop StopChecker) bool {
	if s.stop.IsStopRequested() {
		return true
	}
	return stop != nil && stop.IsStopRequested()
}

func (s *Session) dispatch(i int) (err error) {
	cb := s.callbacks[i]
	if cb == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = &CallbackError{Index: i, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	if err = cb(); err != nil {
		return &CallbackError{Index: i, Err: err}
	}
	return nil
}

// Terminate releases the detector. Only the first call has an effect.
func (s *Session) Terminate() error {
	s.closeOnce.Do(func() {
		s.terminated.Store(true)
		if err := s.detector.Close(); err != nil {
			s.closeErr = fmt.Errorf("close detector: %w", err)
		}
		s.logger.Debug("terminated")
	})
	return s.closeErr
}
