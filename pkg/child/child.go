// Package child runs secondary listeners as tracked child processes that
// can be joined and cancelled.
package child

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultGrace is how long a cancelled child may take to exit before it is killed.
const DefaultGrace = 3 * time.Second

// Launcher starts at most one live Task at a time.
type Launcher struct {
	Path   string
	Args   []string
	Grace  time.Duration
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger

	mu   sync.Mutex
	task *Task
}

type Task struct {
	ID     string
	cmd    *exec.Cmd
	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.Mutex
	exited    bool
	cancelled bool
	err       error
}

// Launch starts the child unless one is still running, in which case the
// running task is returned.
func (l *Launcher) Launch(ctx context.Context) (*Task, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	logger := l.logger()
	if l.task != nil && !l.task.Exited() {
		logger.Info("child still running", "task", l.task.ID)
		return l.task, nil
	}
	ctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, l.Path, l.Args...)
	cmd.Stdout, cmd.Stderr = l.Stdout, l.Stderr
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = l.Grace
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = DefaultGrace
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, err
	}
	t := &Task{ID: uuid.New().String()[:8], cmd: cmd, cancel: cancel, done: make(chan struct{})}
	logger.Info("child started", "task", t.ID, "pid", cmd.Process.Pid, "args", l.Args)
	go func() {
		defer close(t.done)
		defer cancel()
		err := cmd.Wait()
		t.mu.Lock()
		t.exited, t.err = true, err
		t.mu.Unlock()
		logger.Info("child exited", "task", t.ID, "error", err)
	}()
	l.task = t
	return t, nil
}

// Close cancels the live task, if any, and waits for it.
func (l *Launcher) Close() error {
	l.mu.Lock()
	t := l.task
	l.mu.Unlock()
	if t == nil {
		return nil
	}
	t.Cancel()
	return t.Wait()
}

func (l *Launcher) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.Default()
	}
	return l.Logger
}

// Cancel interrupts the child; it is killed if it outlives the grace period.
// Cancelling a child that already exited keeps its exit result.
func (t *Task) Cancel() {
	t.mu.Lock()
	if t.exited {
		t.mu.Unlock()
		return
	}
	t.cancelled = true
	t.mu.Unlock()
	t.cancel()
}

func (t *Task) Done() <-chan struct{} { return t.done }

func (t *Task) Exited() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Wait joins the child. A child stopped through Cancel reports no error.
func (t *Task) Wait() error {
	<-t.done
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelled {
		return nil
	}
	return t.err
}
