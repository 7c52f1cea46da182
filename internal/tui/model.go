package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/sudoblockio/ansible-vagrant/internal/lifecycle"
	"github.com/sudoblockio/ansible-vagrant/internal/tui/components"
)

// Stage names shown in the view, in lifecycle order.
const (
	StageProvision = "provision"
	StageConnect   = "connect"
	StageConfigure = "configure"
	StageAssert    = "assert"
	StageTeardown  = "teardown"
)

// TransitionMsg carries a lifecycle state change.
type TransitionMsg struct {
	Transition lifecycle.Transition
	Time       time.Time
}

// AssertionMsg reports one host assertion.
type AssertionMsg struct {
	Passed  bool
	Message string
}

// DoneMsg ends the run. Err is the error that ended the lifecycle, if any.
type DoneMsg struct {
	Err error
}

// Info describes the run in the header and summary.
type Info struct {
	Playbook     string
	Machine      string
	ShutdownMode string
}

// Model is the bubbletea model for a single lifecycle run.
type Model struct {
	info           Info
	runID          string
	stages         components.StageList
	spinner        spinner.Model
	assertions     []components.AssertionStatus
	err            error
	finished       bool
	cancelled      bool
	nonInteractive bool
	now            func() time.Time
}

// NewModel creates the model. The assert stage is shown only when withAssert
// is set.
func NewModel(info Info, withAssert, nonInteractive bool) Model {
	names := []string{StageProvision, StageConnect, StageConfigure}
	if withAssert {
		names = append(names, StageAssert)
	}
	names = append(names, StageTeardown)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = runningStyle

	return Model{
		info:           info,
		stages:         components.NewStageList(names...),
		spinner:        sp,
		nonInteractive: nonInteractive,
		now:            time.Now,
	}
}

// Init starts the spinner.
func (m Model) Init() tea.Cmd {
	if m.nonInteractive {
		return nil
	}
	return m.spinner.Tick
}

// IsFinished reports whether DoneMsg was received or the user quit.
func (m Model) IsFinished() bool {
	return m.finished
}

// Cancelled reports whether the user interrupted the view.
func (m Model) Cancelled() bool {
	return m.cancelled
}

// Stages returns the stage rows in order.
func (m Model) Stages() []components.Stage {
	return m.stages.Entries()
}

func (m Model) timestamp(t time.Time) time.Time {
	if !t.IsZero() {
		return t
	}
	return m.now()
}
