package hotword

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/algo-boyz/snowdemo/pkg/state"
)

// scriptedDetector replays polls and runs onPoll hooks keyed by poll number.
type scriptedDetector struct {
	polls  []int
	errAt  int
	err    error
	onPoll map[int]func()
	calls  int
	closed int
}

func (d *scriptedDetector) Poll() (int, error) {
	n := d.calls
	d.calls++
	if hook, ok := d.onPoll[n]; ok {
		hook()
	}
	if d.err != nil && n == d.errAt {
		return 0, d.err
	}
	if n < len(d.polls) {
		return d.polls[n], nil
	}
	return NoDetection, nil
}

func (d *scriptedDetector) Close() error {
	d.closed++
	return nil
}

func openerFor(d *scriptedDetector, opened *int) Opener {
	return func(models []string, sensitivities []float64) (Detector, error) {
		if opened != nil {
			*opened++
		}
		return d, nil
	}
}

func noop() error { return nil }

func TestNewSessionValidation(t *testing.T) {
	tests := []struct {
		name          string
		models        []string
		sensitivities []float64
		callbacks     []Callback
		valid         bool
	}{
		{"equal lengths", []string{"a", "b"}, []float64{0.5, 0.4}, []Callback{noop, noop}, true},
		{"default sensitivities", []string{"a"}, nil, []Callback{noop}, true},
		{"nil callback", []string{"a"}, nil, []Callback{nil}, true},
		{"sensitivity count", []string{"a", "b"}, []float64{0.5}, []Callback{noop, noop}, false},
		{"callback count", []string{"a", "b"}, nil, []Callback{noop}, false},
		{"no models", nil, nil, nil, false},
		{"sensitivity range", []string{"a"}, []float64{1.5}, []Callback{noop}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opened int
			s, err := NewSession(openerFor(&scriptedDetector{}, &opened), tt.models, tt.sensitivities, tt.callbacks)
			if tt.valid {
				require.NoError(t, err)
				require.NotNil(t, s)
				require.Equal(t, 1, opened)
				return
			}
			var cfgErr *ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			require.Zero(t, opened, "detector must not be opened")
		})
	}
}

func TestNewSessionDefaultSensitivity(t *testing.T) {
	var got []float64
	open := func(models []string, sensitivities []float64) (Detector, error) {
		got = sensitivities
		return &scriptedDetector{}, nil
	}
	_, err := NewSession(open, []string{"a", "b"}, nil, []Callback{noop, noop})
	require.NoError(t, err)
	require.Equal(t, []float64{DefaultSensitivity, DefaultSensitivity}, got)
}

func TestNewSessionOpenFailure(t *testing.T) {
	open := func([]string, []float64) (Detector, error) { return nil, errors.New("no mic") }
	_, err := NewSession(open, []string{"a"}, nil, []Callback{noop})
	var failure *DetectionFailure
	require.ErrorAs(t, err, &failure)
}

func TestStartStoppedBeforehand(t *testing.T) {
	d := &scriptedDetector{polls: []int{1, 1}}
	var calls int
	s, err := NewSession(openerFor(d, nil), []string{"a"}, nil, []Callback{func() error { calls++; return nil }})
	require.NoError(t, err)

	stop := state.NewInterrupt()
	stop.RequestStop()
	require.NoError(t, s.Start(stop, 0))

	require.Zero(t, calls)
	require.Zero(t, d.calls)
	require.Equal(t, 1, d.closed)
}

func TestStartDispatchOrder(t *testing.T) {
	stop := state.NewInterrupt()
	d := &scriptedDetector{
		polls:  []int{NoDetection, 1, NoDetection, 2},
		onPoll: map[int]func(){4: stop.RequestStop},
	}
	var order []string
	s, err := NewSession(openerFor(d, nil), []string{"a", "b"}, nil, []Callback{
		func() error { order = append(order, "cb0"); return nil },
		func() error { order = append(order, "cb1"); return nil },
	})
	require.NoError(t, err)

	require.NoError(t, s.Start(stop, time.Millisecond))

	require.Equal(t, []string{"cb0", "cb1"}, order)
	require.Equal(t, 1, d.closed)
}

func TestStartStopFunc(t *testing.T) {
	d := &scriptedDetector{}
	polls := 0
	s, err := NewSession(openerFor(d, nil), []string{"a"}, nil, []Callback{noop})
	require.NoError(t, err)

	require.NoError(t, s.Start(StopFunc(func() bool { polls++; return polls > 3 }), 0))
	require.Equal(t, 3, d.calls)
}

func TestStartOneShot(t *testing.T) {
	d := &scriptedDetector{polls: []int{1, 2, 1, 1}}
	var s *Session
	var dings int
	s, err := NewSession(openerFor(d, nil), []string{"a", "b"}, nil, []Callback{
		func() error { dings++; return nil },
		func() error { s.RequestStop(); return nil },
	})
	require.NoError(t, err)

	never := StopFunc(func() bool { return false })
	require.NoError(t, s.Start(never, 0))

	require.Equal(t, 1, dings)
	require.Equal(t, 2, d.calls)
	require.Equal(t, 1, d.closed)
}

func TestStartDetectionFailure(t *testing.T) {
	boom := errors.New("stream closed")
	d := &scriptedDetector{errAt: 1, err: boom}
	s, err := NewSession(openerFor(d, nil), []string{"a"}, nil, []Callback{noop})
	require.NoError(t, err)

	err = s.Start(nil, 0)
	var failure *DetectionFailure
	require.ErrorAs(t, err, &failure)
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, d.closed)
	require.NoError(t, s.Terminate())
}

func TestStartInvalidIndex(t *testing.T) {
	d := &scriptedDetector{polls: []int{3}}
	s, err := NewSession(openerFor(d, nil), []string{"a", "b"}, nil, []Callback{noop, noop})
	require.NoError(t, err)

	var failure *DetectionFailure
	require.ErrorAs(t, s.Start(nil, 0), &failure)
}

func TestStartCallbackError(t *testing.T) {
	boom := errors.New("http down")
	d := &scriptedDetector{polls: []int{NoDetection, 2}}
	s, err := NewSession(openerFor(d, nil), []string{"a", "b"}, nil, []Callback{
		noop,
		func() error { return boom },
	})
	require.NoError(t, err)

	err = s.Start(nil, 0)
	var cbErr *CallbackError
	require.ErrorAs(t, err, &cbErr)
	require.Equal(t, 1, cbErr.Index)
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, d.closed)
}

func TestStartCallbackPanic(t *testing.T) {
	d := &scriptedDetector{polls: []int{1}}
	s, err := NewSession(openerFor(d, nil), []string{"a"}, nil, []Callback{
		func() error { panic("boom") },
	})
	require.NoError(t, err)

	var cbErr *CallbackError
	require.ErrorAs(t, s.Start(nil, 0), &cbErr)
	require.Zero(t, cbErr.Index)
	require.Equal(t, 1, d.closed)
}

func TestTerminateIdempotent(t *testing.T) {
	d := &scriptedDetector{}
	s, err := NewSession(openerFor(d, nil), []string{"a"}, nil, []Callback{noop})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Terminate())
	}
	require.Equal(t, 1, d.closed)
	require.ErrorIs(t, s.Start(nil, 0), ErrTerminated)
}

func TestStartSleepAfterDetection(t *testing.T) {
	d := &scriptedDetector{polls: []int{1}}
	var s *Session
	s, err := NewSession(openerFor(d, nil), []string{"a"}, nil, []Callback{
		func() error { s.RequestStop(); return nil },
	}, WithSleepAfterDetection(true), WithName("sleepy"))
	require.NoError(t, err)

	start := time.Now()
	require.NoError(t, s.Start(nil, 20*time.Millisecond))
	require.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}
