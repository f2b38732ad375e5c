package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/stitchwork/stitch/cli/report"
)

// StatsModel is a Bubble Tea model for stats views.
type StatsModel struct {
	viewType string
	data     any
	width    int
	height   int
	quitting bool
}

// NewStatsModel creates a new stats model.
func NewStatsModel(viewType string, data any) StatsModel {
	return StatsModel{
		viewType: viewType,
		data:     data,
	}
}

// Init implements tea.Model.
func (m StatsModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m StatsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m StatsModel) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.viewType {
	case "stats_channels":
		content = m.renderStatsChannels()
	default:
		content = fmt.Sprintf("Unknown view type: %s", m.viewType)
	}

	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return content + "\n" + help
}

func (m StatsModel) renderStatsChannels() string {
	data, ok := m.data.(*report.RunReport)
	if !ok {
		return "Invalid data type for stats_channels"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Reassembly Statistics"))
	b.WriteString("\n\n")

	boxes := []string{
		m.renderStatBox("Frames", data.FramesRead, highlightColor),
		m.renderStatBox("Chunks", data.ChunksIngested, successColor),
		m.renderStatBox("Payloads", data.Payloads, successColor),
		m.renderStatBox("Dropped", data.UnknownDrops+data.WaitingDrops, warningColor),
		m.renderStatBox("Sink Errors", data.SinkErrors, errorColor),
	}

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, boxes...))

	for _, ch := range data.Channels {
		b.WriteString("\n\n")

		channelTitle := lipgloss.NewStyle().
			Bold(true).
			Foreground(highlightColor).
			Render(fmt.Sprintf("Channel: %s", ch.Channel))

		b.WriteString(channelTitle)
		b.WriteString("\n")

		chBoxes := []string{
			m.renderStatBox("Chunks", ch.ChunksReceived, highlightColor),
			m.renderStatBox("Payloads", ch.PayloadsCompleted, successColor),
			m.renderStatBox("Bytes", ch.BytesEmitted, successColor),
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, chBoxes...))

		if ch.BytesBuffered > 0 {
			b.WriteString("\n")
			b.WriteString(fmt.Sprintf("%s %s",
				LabelStyle.Render("Buffered:"),
				WarningStyle.Render(fmt.Sprintf("%d bytes unflushed", ch.BytesBuffered))))
		}
	}

	return b.String()
}

func (m StatsModel) renderStatBox(label string, value int64, color lipgloss.Color) string {
	boxStyle := StatBoxStyle.BorderForeground(color)

	valueStr := StatValueStyle.Foreground(color).Render(fmt.Sprintf("%d", value))
	labelStr := StatLabelStyle.Render(label)

	content := lipgloss.JoinVertical(lipgloss.Center, valueStr, labelStr)

	return boxStyle.Render(content)
}

// RunStatsTUI runs the stats TUI.
func RunStatsTUI(viewType string, data any) error {
	model := NewStatsModel(viewType, data)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderStatsStatic renders stats data without full TUI (for fallback).
func RenderStatsStatic(viewType string, data any) string {
	model := NewStatsModel(viewType, data)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
