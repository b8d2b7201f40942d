package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/algo-boyz/snowdemo/pkg/child"
	"github.com/algo-boyz/snowdemo/pkg/hotword"
	"github.com/algo-boyz/snowdemo/pkg/pin"
	"github.com/algo-boyz/snowdemo/pkg/settings"
	"github.com/algo-boyz/snowdemo/pkg/state"
)

// Command names.
const (
	cmdLight   = "light"
	cmdChain   = "chain"
	cmdOneShot = "oneshot"
)

type command struct {
	name   string
	models []string
}

// parseCommand checks the model count each command needs.
func parseCommand(args []string) (command, error) {
	if len(args) == 0 {
		return command{}, &hotword.ConfigurationError{Reason: "missing command"}
	}
	cmd := command{name: args[0], models: args[1:]}
	switch cmd.name {
	case cmdLight:
		if len(cmd.models) != 2 {
			return command{}, &hotword.ConfigurationError{Reason: "need to specify 2 model names"}
		}
	case cmdChain:
		if len(cmd.models) != 1 {
			return command{}, &hotword.ConfigurationError{Reason: "need to specify 1 model name"}
		}
	case cmdOneShot:
		if len(cmd.models) == 0 {
			return command{}, &hotword.ConfigurationError{Reason: "need to specify at least 1 model name"}
		}
	default:
		return command{}, &hotword.ConfigurationError{Reason: fmt.Sprintf("unknown command %q", cmd.name)}
	}
	return cmd, nil
}

// Cuer plays acknowledgment tones without blocking.
type Cuer interface {
	Cue(path string)
}

type PinSetter interface {
	Set(ctx context.Context, value string) error
}

type Launcher interface {
	Launch(ctx context.Context) (*child.Task, error)
}

type App struct {
	ctx      state.Context
	cfg      settings.Demo
	logger   *slog.Logger
	open     hotword.Opener
	cues     Cuer
	pins     PinSetter
	launcher Launcher
}

// Run blocks until the session stops, failed or the context's interrupt fired.
func (a *App) Run(cmd command) error {
	var session *hotword.Session
	callbacks := a.callbacks(cmd, func() { session.RequestStop() })
	sensitivities := make([]float64, len(cmd.models))
	for i := range sensitivities {
		sensitivities[i] = a.cfg.Sensitivity
	}
	session, err := hotword.NewSession(a.open, cmd.models, sensitivities, callbacks,
		hotword.WithLogger(a.logger), hotword.WithName(cmd.name))
	if err != nil {
		return err
	}
	a.logger.Info("Listening... Press Ctrl+C to exit")
	return session.Start(a.ctx.Interrupt(), a.cfg.PollEvery.Duration)
}

func (a *App) callbacks(cmd command, stop func()) []hotword.Callback {
	switch cmd.name {
	case cmdLight:
		return []hotword.Callback{
			a.lightSwitch(a.cfg.DingPath, pin.On(a.cfg.PinNumber)),
			a.lightSwitch(a.cfg.DongPath, pin.Off(a.cfg.PinNumber)),
		}
	case cmdChain:
		return []hotword.Callback{func() error {
			a.cues.Cue(a.cfg.DingPath)
			_, err := a.launcher.Launch(a.ctx)
			return err
		}}
	default:
		callbacks := make([]hotword.Callback, len(cmd.models))
		for i := range callbacks[:len(callbacks)-1] {
			callbacks[i] = func() error {
				a.cues.Cue(a.cfg.DingPath)
				return nil
			}
		}
		callbacks[len(callbacks)-1] = func() error {
			stop()
			return nil
		}
		return callbacks
	}
}

func (a *App) lightSwitch(cue, value string) hotword.Callback {
	return func() error {
		a.cues.Cue(cue)
		return a.pins.Set(a.ctx, value)
	}
}

type silentCues struct{}

func (silentCues) Cue(string) {}
