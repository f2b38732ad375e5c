package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/stitchwork/stitch/cli/report"
)

// maxChunkRows bounds the chunk listing so very large captures stay readable.
const maxChunkRows = 30

// InspectModel is a Bubble Tea model for inspect views.
type InspectModel struct {
	viewType string
	data     any
	width    int
	height   int
	quitting bool
}

// NewInspectModel creates a new inspect model.
func NewInspectModel(viewType string, data any) InspectModel {
	return InspectModel{
		viewType: viewType,
		data:     data,
	}
}

// Init implements tea.Model.
func (m InspectModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m InspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
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
func (m InspectModel) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.viewType {
	case "inspect_capture":
		content = m.renderInspectCapture()
	default:
		content = fmt.Sprintf("Unknown view type: %s", m.viewType)
	}

	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return content + "\n" + help
}

func (m InspectModel) renderInspectCapture() string {
	data, ok := m.data.(*report.InspectReport)
	if !ok {
		return "Invalid data type for inspect_capture"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Capture Details"))
	b.WriteString("\n\n")

	rows := [][]string{
		{"Input", data.Input},
		{"Frames", fmt.Sprintf("%d", data.Frames)},
		{"Ready Frames", fmt.Sprintf("%d", data.ReadyFrames)},
		{"Chunks", fmt.Sprintf("%d", len(data.Chunks))},
		{"Channels", fmt.Sprintf("%d", len(data.Channels))},
	}

	for _, row := range rows {
		b.WriteString(fmt.Sprintf("%s %s\n",
			LabelStyle.Render(row[0]+":"),
			ValueStyle.Render(row[1])))
	}

	if len(data.Channels) > 0 {
		b.WriteString("\n")
		b.WriteString(TitleStyle.Render("Channels"))
		b.WriteString("\n")
		for _, ch := range data.Channels {
			b.WriteString(fmt.Sprintf("%s %s\n",
				LabelStyle.Render(ch.Channel+":"),
				ValueStyle.Render(fmt.Sprintf("%d chunks, %d payloads, %d bytes",
					ch.Chunks, ch.Payloads, ch.Bytes))))
		}
	}

	if len(data.Chunks) > 0 {
		b.WriteString("\n")
		b.WriteString(TitleStyle.Render("Chunk Stream"))
		b.WriteString("\n")
		shown := data.Chunks
		if len(shown) > maxChunkRows {
			shown = shown[:maxChunkRows]
		}
		for _, c := range shown {
			marker := MarkerStyle(c.Marker).Render(c.Marker)
			b.WriteString(fmt.Sprintf("  %4d  %-12s %-8s %d bytes\n",
				c.Index, c.Channel, marker, c.Bytes))
		}
		if len(data.Chunks) > maxChunkRows {
			b.WriteString(HelpStyle.Render(
				fmt.Sprintf("  … %d more chunks", len(data.Chunks)-maxChunkRows)))
			b.WriteString("\n")
		}
	}

	return BoxStyle.Render(b.String())
}

// keyMap defines key bindings.
type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// RunInspectTUI runs the inspect TUI.
func RunInspectTUI(viewType string, data any) error {
	model := NewInspectModel(viewType, data)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderInspectStatic renders inspect data without full TUI (for fallback).
func RenderInspectStatic(viewType string, data any) string {
	model := NewInspectModel(viewType, data)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
