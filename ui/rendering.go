package ui

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	markdown "github.com/MichaelMure/go-term-markdown"
	gomarkdown "github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/parser"
	"github.com/mattn/go-runewidth"

	"chartchat/model"
)

var (
	mdLinkRegex = regexp.MustCompile(`\[([^\]]+)\]\((https?://[^\)]+)\)`)
	urlRegex    = regexp.MustCompile(`(https?://[^\s]+)`)
)

// renderMarkdown renders assistant markdown for the terminal. Autolink is
// disabled so URLs stay plain text and the terminal emulator handles them.
func renderMarkdown(content string, width int) string {
	if width < 20 {
		width = 20
	}

	// Strip markdown link syntax [text](url) so every link shows as its URL.
	content = mdLinkRegex.ReplaceAllString(content, "$2")

	customExt := markdown.Extensions() &^ parser.Autolink
	p := parser.NewWithExtensions(customExt)
	r := markdown.NewRenderer(width-4, 0)
	doc := p.Parse([]byte(content))
	rendered := gomarkdown.Render(doc, r)

	return colorURLs(string(rendered))
}

func colorURLs(s string) string {
	red := "\x1b[31m"
	reset := "\x1b[0m"

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		// Code blocks keep their own coloring.
		if !strings.Contains(line, "┃") {
			lines[i] = urlRegex.ReplaceAllString(line, red+"$1"+reset)
		}
	}
	return strings.Join(lines, "\n")
}

func formatTimestamp(millis int64) string {
	return DimStyle.Render(time.UnixMilli(millis).Format("[15:04]"))
}

// formatUserMessage renders a user turn with a vertical bar gutter.
func formatUserMessage(highlightPrefix, timestamp, role, content string) string {
	greenBold := "\x1b[32;1m"
	reset := "\x1b[0m"
	bar := greenBold + "┃" + reset

	var result strings.Builder
	result.WriteString(fmt.Sprintf("%s%s %s %s\n", highlightPrefix, bar, timestamp, role))
	for _, line := range strings.Split(content, "\n") {
		result.WriteString(fmt.Sprintf("%s %s\n", bar, line))
	}
	result.WriteString("\n")

	return result.String()
}

// formatAssistantMessage renders an assistant turn flush left, markdown
// rendered. streaming appends a cursor instead of rendering markdown, since
// partial markdown renders badly.
func formatAssistantMessage(highlightPrefix, timestamp, role, content string, width int, streaming bool) string {
	body := content
	if streaming {
		body = content + "▋"
	} else {
		body = strings.TrimRight(renderMarkdown(content, width), "\n")
	}
	return fmt.Sprintf("%s%s %s\n%s\n\n", highlightPrefix, timestamp, role, body)
}

// truncateToFit shortens plain text to the remaining cell budget and returns
// what is left of the budget. Must be called before styling: escape sequences
// would count toward the width and could be cut mid-sequence.
func truncateToFit(text string, remaining int) (string, int) {
	if remaining <= 0 {
		return "", 0
	}
	truncated := runewidth.Truncate(text, remaining, "…")
	return truncated, remaining - runewidth.StringWidth(truncated)
}

func messagePreview(msg model.Message, maxLen int) string {
	preview := strings.ReplaceAll(msg.Content, "\n", " ")
	if len(preview) > maxLen {
		preview = preview[:maxLen] + "…"
	}
	return preview
}
