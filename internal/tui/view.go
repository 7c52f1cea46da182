package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/sudoblockio/ansible-vagrant/internal/tui/components"
)

// View renders the current state of the model.
func (m Model) View() string {
	sections := []string{titleStyle.Render("ansible-vagrant • " + m.title())}
	if sub := m.subtitle(); sub != "" {
		sections = append(sections, subtleStyle.Render(sub))
	}

	progress := components.NewProgress(m.stages.Len()).View(m.stages.Settled())
	sections = append(sections, sectionStyle.Render("Progress"), progress)
	sections = append(sections, sectionStyle.Render("Stages"), m.renderStages())

	summary := components.NewSummary(components.SummaryData{
		RunID:        m.runID,
		Target:       m.info.Machine,
		ShutdownMode: m.info.ShutdownMode,
		Total:        m.stages.Len(),
		Settled:      m.stages.Settled(),
		Finished:     m.finished,
		Cancelled:    m.cancelled,
		Err:          m.err,
		Assertions:   m.assertions,
	}).View()
	if m.finished && strings.TrimSpace(summary) != "" {
		sections = append(sections, sectionStyle.Render("Summary"), summaryStyle.Render(summary))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...) + "\n"
}

func (m Model) renderStages() string {
	entries := m.stages.Entries()
	lines := make([]string, 0, len(entries))
	for _, stage := range entries {
		icon := StatusIcon(stage.Status)
		if stage.Status == components.StatusRunning && !m.nonInteractive {
			icon = m.spinner.View()
		}
		line := fmt.Sprintf(" %s %s", icon, stage.Name)
		if strings.TrimSpace(stage.Message) != "" {
			line = fmt.Sprintf("%s: %s", line, stage.Message)
		}
		if stage.Duration > 0 {
			line = fmt.Sprintf("%s (%s)", line, stage.Duration.Truncate(100*time.Millisecond))
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (m Model) title() string {
	if strings.TrimSpace(m.info.Playbook) != "" {
		return m.info.Playbook
	}
	return "run"
}

func (m Model) subtitle() string {
	var parts []string
	if m.info.Machine != "" {
		parts = append(parts, "machine "+m.info.Machine)
	}
	if m.info.ShutdownMode != "" {
		parts = append(parts, "shutdown "+m.info.ShutdownMode)
	}
	return strings.Join(parts, ", ")
}

// StatusIcon returns the glyph for a stage status.
func StatusIcon(status string) string {
	switch status {
	case components.StatusSuccess:
		return successStyle.Render("✓")
	case components.StatusRunning:
		return runningStyle.Render("⏳")
	case components.StatusFailed:
		return failureStyle.Render("✗")
	case components.StatusSkipped:
		return skippedStyle.Render("⊘")
	default:
		return pendingStyle.Render("…")
	}
}
