package main

import (
	"fmt"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sudoblockio/ansible-vagrant/internal/lifecycle"
	"github.com/sudoblockio/ansible-vagrant/internal/tui"
)

// reporter receives run progress for display.
type reporter interface {
	Transition(tr lifecycle.Transition)
	Assertion(passed bool, message string)
	// Finish reports the final outcome and waits for the display to settle.
	Finish(err error) error
}

// programReporter drives an interactive bubbletea program.
type programReporter struct {
	program *tea.Program
	done    chan struct{}
	err     error
}

func startProgram(model tui.Model, out io.Writer, onExit func()) *programReporter {
	r := &programReporter{
		program: tea.NewProgram(model, tea.WithOutput(out)),
		done:    make(chan struct{}),
	}
	go func() {
		defer close(r.done)
		_, r.err = r.program.Run()
		if onExit != nil {
			onExit()
		}
	}()
	return r
}

func (r *programReporter) Transition(tr lifecycle.Transition) {
	r.program.Send(tui.TransitionMsg{Transition: tr, Time: time.Now()})
}

func (r *programReporter) Assertion(passed bool, message string) {
	r.program.Send(tui.AssertionMsg{Passed: passed, Message: message})
}

func (r *programReporter) Finish(err error) error {
	r.program.Send(tui.DoneMsg{Err: err})
	<-r.done
	return r.err
}

// summaryReporter prints the final view once, for pipes and CI logs.
type summaryReporter struct {
	recorder *tui.Recorder
	out      io.Writer
}

func (r *summaryReporter) Transition(tr lifecycle.Transition) {
	r.recorder.Transition(tr)
}

func (r *summaryReporter) Assertion(passed bool, message string) {
	r.recorder.Assertion(passed, message)
}

func (r *summaryReporter) Finish(err error) error {
	_, werr := fmt.Fprint(r.out, r.recorder.Render(err))
	return werr
}
