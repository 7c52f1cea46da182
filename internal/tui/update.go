package tui

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/sudoblockio/ansible-vagrant/internal/lifecycle"
	"github.com/sudoblockio/ansible-vagrant/internal/tui/components"
	avErrors "github.com/sudoblockio/ansible-vagrant/pkg/errors"
)

// Update applies a message to the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		if m.finished {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case TransitionMsg:
		m.applyTransition(msg)
		return m, nil
	case AssertionMsg:
		if len(m.assertions) == 0 {
			m.stages = m.stages.Start(StageAssert, m.now())
		}
		m.assertions = append(m.assertions, components.AssertionStatus{Passed: msg.Passed, Message: msg.Message})
		return m, nil
	case DoneMsg:
		m.finish(msg.Err)
		if m.nonInteractive {
			return m, nil
		}
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.cancelled = true
			m.finished = true
			return m, tea.Quit
		}
	case tea.QuitMsg:
		m.finished = true
		return m, nil
	}

	return m, nil
}

func (m *Model) applyTransition(msg TransitionMsg) {
	tr := msg.Transition
	at := m.timestamp(msg.Time)
	if tr.RunID != "" {
		m.runID = tr.RunID
	}

	switch tr.To.Phase {
	case lifecycle.Provisioning:
		m.stages = m.stages.Start(StageProvision, at)
	case lifecycle.Provisioned:
		m.stages = m.stages.Finish(StageProvision, components.StatusSuccess, "", at)
		m.stages = m.stages.Start(StageConnect, at)
	case lifecycle.Configuring:
		m.stages = m.stages.Finish(StageConnect, components.StatusSuccess, "", at)
		m.stages = m.stages.Start(StageConfigure, at)
	case lifecycle.Configured:
		m.stages = m.stages.Finish(StageConfigure, components.StatusSuccess, "", at)
	case lifecycle.Errored:
		m.err = tr.To.Err
		m.stages = m.stages.Finish(stageFor(tr.To.FailedPhase), components.StatusFailed, errorLine(tr.To.Err), at)
		m.stages = m.stages.Start(StageTeardown, at)
	case lifecycle.TornDown:
		m.settleAssertions(at)
		m.stages = m.stages.Start(StageTeardown, at)
		m.stages = m.stages.Finish(StageTeardown, components.StatusSuccess, "", at)
	}
}

func (m *Model) settleAssertions(at time.Time) {
	if _, ok := m.stages.Get(StageAssert); !ok || len(m.assertions) == 0 {
		return
	}
	status := components.StatusSuccess
	for _, a := range m.assertions {
		if !a.Passed {
			status = components.StatusFailed
			break
		}
	}
	m.stages = m.stages.Finish(StageAssert, status, "", at)
}

func (m *Model) finish(err error) {
	if err != nil && m.err == nil {
		m.err = err
	}
	m.settleAssertions(m.now())
	m.stages = m.stages.SkipPending()
	m.finished = true
}

func stageFor(phase avErrors.Phase) string {
	switch phase {
	case avErrors.PhaseProvision:
		return StageProvision
	case avErrors.PhaseConnect:
		return StageConnect
	case avErrors.PhaseConfigure:
		return StageConfigure
	default:
		return StageTeardown
	}
}

func errorLine(err error) string {
	if err == nil {
		return ""
	}
	line, _, _ := strings.Cut(err.Error(), "\n")
	return line
}
