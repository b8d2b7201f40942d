package hotword

// NoDetection is what Detector.Poll returns when nothing fired.
const NoDetection = 0

// DefaultSensitivity is used for every model when no sensitivities are given.
const DefaultSensitivity = 0.5

// Detector is the keyword spotting engine behind a Session.
type Detector interface {
	// Poll reports at most one detection since the previous call without
	// blocking: NoDetection, or k in 1..len(models) for model k-1.
	Poll() (int, error)
	// Close releases the audio input and model memory.
	Close() error
}

// Opener acquires a Detector for the given models. Sessions only call it
// after their arguments were validated.
type Opener func(models []string, sensitivities []float64) (Detector, error)

// Callback is the action run when its model fires.
type Callback func() error

// StopChecker is polled once per loop iteration.
type StopChecker interface {
	IsStopRequested() bool
}

// StopFunc adapts a plain interrupt check to a StopChecker.
type StopFunc func() bool

func (f StopFunc) IsStopRequested() bool { return f() }
