package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/handiism/model-downloader/internal/download"
	"github.com/handiism/model-downloader/internal/model"
)

// Styles for the TUI
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B")).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ECDC4"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#95E1A3"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFE66D"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A8DADC"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C757D"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F8B500")).
			Bold(true)

	popupStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#4ECDC4")).
			Padding(0, 1)

	failedPopupStyle = popupStyle.
				BorderForeground(lipgloss.Color("#FF6B6B"))
)

// View renders the UI.
func (m Model) View() string {
	var b strings.Builder

	// Header
	b.WriteString(titleStyle.Render("📦 Model Downloader"))
	b.WriteString("\n")
	if m.deps.DownloadsPath != "" {
		b.WriteString(dimStyle.Render(fmt.Sprintf("Download path: %s", m.deps.DownloadsPath)))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if len(m.files) == 0 {
		b.WriteString(warningStyle.Render("The catalog has no files."))
		b.WriteString("\n")
	}
	for i, id := range m.files {
		b.WriteString(m.renderRow(i, id))
		b.WriteString("\n")
	}

	if m.prompting {
		b.WriteString("\n")
		b.WriteString(subtitleStyle.Render("Download file:"))
		b.WriteString("\n")
		b.WriteString(m.textInput.View())
		b.WriteString("\n")
	}

	if m.status != "" {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render("✗ " + m.status))
		b.WriteString("\n")
	}

	for _, p := range m.popups {
		b.WriteString("\n")
		if p.failed {
			b.WriteString(failedPopupStyle.Render(errorStyle.Render("✗ " + p.text)))
		} else {
			b.WriteString(popupStyle.Render(successStyle.Render("✓ " + p.text)))
		}
	}

	// Footer
	b.WriteString("\n\n")
	b.WriteString(dimStyle.Render(m.getHelpText()))

	return b.String()
}

func (m Model) renderRow(i int, id model.FileID) string {
	cursor := "  "
	name := id.String()
	if _, f, err := m.deps.Catalog.Lookup(id); err == nil && f.Quantization != "" {
		name = fmt.Sprintf("%s [%s]", name, f.Quantization)
	}
	if i == m.cursor {
		cursor = selectedStyle.Render("› ")
		name = selectedStyle.Render(name)
	}

	snap, tracked := m.snaps[id]
	if !tracked {
		return cursor + name
	}
	return cursor + name + "\n    " + m.renderTask(snap)
}

func (m Model) renderTask(s download.Snapshot) string {
	var label string
	switch s.State {
	case download.StateQueued:
		label = dimStyle.Render("queued")
	case download.StateDownloading:
		label = m.spinner.View() + " " + infoStyle.Render("downloading")
	case download.StatePaused:
		label = warningStyle.Render("paused")
	case download.StateCompleted:
		label = successStyle.Render("✓ completed")
	case download.StateErrored:
		label = errorStyle.Render("✗ failed")
	case download.StateCancelled:
		label = dimStyle.Render("cancelled")
	}

	bytes := humanize.Bytes(uint64(s.BytesDone))
	if s.BytesTotal >= 0 {
		bytes += " / " + humanize.Bytes(uint64(s.BytesTotal))
	}

	line := m.progress.ViewAs(s.Progress()) + " " + label + " " + dimStyle.Render(bytes)
	if s.State == download.StateErrored && s.Err != nil {
		line += "\n    " + errorStyle.Render(s.Err.Error())
	}
	return line
}

func (m Model) getHelpText() string {
	if m.prompting {
		return "enter: download • esc: back"
	}
	return "↑/↓: select • enter/d: download • o: play • p: pause • r: resume • c: cancel • x: clear • g: download by id • q: quit"
}
