package ui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"chartchat/assets"
	"chartchat/logx"
	"chartchat/model"
)

// viewerContentMsg carries the instructions/alt-text for the viewer panel.
// fromFallback is set when the asset server could not be reached and the
// built-in placeholder is shown instead.
type viewerContentMsg struct {
	content      string
	fromFallback bool
}

func loadViewerContent(client *assets.Client, params model.StudyParams) tea.Cmd {
	return func() tea.Msg {
		content, err := client.ViewerContent(context.Background(), params)
		if err != nil {
			logx.Warn().Err(err).Msg("viewer content fetch failed, using fallback")
			return viewerContentMsg{content: fallbackInstructions(params), fromFallback: true}
		}
		return viewerContentMsg{content: content}
	}
}

func viewerTitle(params model.StudyParams) string {
	if params.ContentType == model.ContentAltText {
		return "Chart Description"
	}
	if params.Modality == model.ModalityTactile {
		return "Tactile Chart Instructions"
	}
	return "Chart Explanation"
}

// fallbackInstructions is shown when the asset server is unreachable, so the
// participant always has something to work from.
func fallbackInstructions(params model.StudyParams) string {
	label := params.ChartLabel()
	title := titleCase(label)

	if params.Modality == model.ModalityTactile {
		return fmt.Sprintf(`# %s - Tactile Instructions

This is a tactile chart exploration session. You will be provided with tactile instructions to explore the chart.

## What to expect:
- Detailed tactile exploration steps
- Chart orientation guidance
- Data interpretation instructions
- Interactive exploration techniques

Please follow the tactile instructions carefully and ask the AI assistant any questions you have about the chart.`, title)
	}

	return fmt.Sprintf(`# %s - Text Instructions

This is a text-based learning session about %s charts.

## What you'll learn:
- Chart structure and components
- Data representation methods
- Interpretation techniques
- Key concepts and terminology

Read through the instructions and ask the AI assistant any questions you have about the chart.`, title, label)
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// renderViewer wraps the already-rendered viewer body in the modal frame.
func renderViewer(params model.StudyParams, body string, fromFallback bool, width, height int) string {
	modalWidth := width - 4
	if modalWidth > 100 {
		modalWidth = 100
	}

	modalStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(dimColor).
		Padding(1, 2)

	title := TitleStyle.Render(viewerTitle(params))

	notice := ""
	if fromFallback {
		notice = ErrorStyle.Render("Failed to load instructions from the asset server; showing the built-in version.")
	}

	if body == "" {
		body = "Loading instructions..."
	}

	footer := FormatFooter("Alt+I/Esc", "Close", "j/k", "Scroll")

	sections := []string{title, ""}
	if notice != "" {
		sections = append(sections, notice, "")
	}
	sections = append(sections, body, "", footer)

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center,
		modalStyle.Width(modalWidth).Render(lipgloss.JoinVertical(lipgloss.Left, sections...)))
}
