package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"

	"chartchat/model"
)

// searchMatch is one fuzzy hit over the visible transcript.
type searchMatch struct {
	messageIdx int
	role       string
	timestamp  int64
	preview    string
}

func searchTranscript(messages []model.Message, query string) []searchMatch {
	if query == "" {
		return nil
	}

	haystack := make([]string, len(messages))
	for i, msg := range messages {
		haystack[i] = msg.Content
	}

	var matches []searchMatch
	for _, m := range fuzzy.Find(query, haystack) {
		msg := messages[m.Index]
		matches = append(matches, searchMatch{
			messageIdx: m.Index,
			role:       msg.Role,
			timestamp:  msg.Timestamp,
			preview:    messagePreview(msg, 80),
		})
	}
	return matches
}

func renderSearch(input textinput.Model, results []searchMatch, selectedIdx, width, height int) string {
	modalWidth := width - 4
	if modalWidth > 100 {
		modalWidth = 100
	}

	modalStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(dimColor).
		Padding(1, 2)

	title := TitleStyle.Render("Search Conversation")
	searchView := input.View()

	resultsView := ""
	if len(results) == 0 {
		if input.Value() == "" {
			resultsView = DimStyle.Render("Type to search the conversation...")
		} else {
			resultsView = DimStyle.Render("No matches found")
		}
	} else {
		resultsView = fmt.Sprintf("Found %d matches:\n\n", len(results))
		for i, match := range results {
			roleStyle := UserStyle
			if match.role == model.RoleAssistant {
				roleStyle = AssistantStyle
			}

			matchText := fmt.Sprintf("%s %s\n  %s",
				roleStyle.Render(match.role),
				formatTimestamp(match.timestamp),
				match.preview,
			)
			if i == selectedIdx {
				matchText = SelectedStyle.Render("> ") + matchText
			} else {
				matchText = "  " + matchText
			}
			resultsView += matchText + "\n\n"
		}
	}

	footer := FormatFooter("Type", "to search", "Up/Down", "Navigate", "Enter", "Jump", "Esc", "Close")

	content := lipgloss.JoinVertical(
		lipgloss.Left,
		title,
		"",
		searchView,
		"",
		resultsView,
		footer,
	)

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center,
		modalStyle.Width(modalWidth).Render(content))
}
