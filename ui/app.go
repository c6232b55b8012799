// Package ui is the terminal front end: a chat pane with streaming answers,
// the instructions/alt-text viewer, and a transcript search overlay.
package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"chartchat/assets"
	"chartchat/chat"
	"chartchat/logx"
	"chartchat/model"
)

// Notifier bridges orchestrator change callbacks into the program loop. The
// channel is buffered with one slot; bursts of changes coalesce into a single
// wakeup.
type Notifier struct {
	ch chan struct{}
}

func NewNotifier() *Notifier {
	return &Notifier{ch: make(chan struct{}, 1)}
}

func (n *Notifier) Notify() {
	select {
	case n.ch <- struct{}{}:
	default:
	}
}

type transcriptChangedMsg struct{}
type turnDoneMsg struct{}

// App is the bubbletea model for the study session.
type App struct {
	orch     *chat.Orchestrator
	notifier *Notifier
	assets   *assets.Client
	params   model.StudyParams
	session  string

	viewport       viewport.Model
	textarea       textarea.Model
	loadingSpinner spinner.Model

	// Instructions/alt-text viewer. Opening it is the modalOpened flag the
	// provenance trail records.
	viewerOpen     bool
	viewerViewport viewport.Model
	viewerContent  string
	viewerFallback bool
	viewerLoaded   bool

	// Transcript search overlay
	searchOpen        bool
	searchInput       textinput.Model
	searchResults     []searchMatch
	selectedSearchIdx int

	highlightedMessageIdx int
	messageOffsets        []int

	turnInFlight bool
	statusFlash  string

	width  int
	height int
	ready  bool
}

func NewApp(orch *chat.Orchestrator, notifier *Notifier, assetClient *assets.Client, params model.StudyParams, sessionID string) App {
	ta := textarea.New()
	ta.Placeholder = "Ask me about the chart..."
	ta.Focus()
	ta.CharLimit = 0
	ta.ShowLineNumbers = false
	ta.SetHeight(3)
	ta.SetWidth(80)

	// Enter sends; Alt+Enter inserts a newline.
	ta.KeyMap.InsertNewline = key.NewBinding(key.WithKeys("alt+enter"))
	ta.SetPromptFunc(2, func(lineIdx int) string {
		if lineIdx == 0 {
			return "> "
		}
		return "| "
	})

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = AssistantStyle

	searchInput := textinput.New()
	searchInput.Prompt = "Search: "
	searchInput.CharLimit = 100

	return App{
		orch:                  orch,
		notifier:              notifier,
		assets:                assetClient,
		params:                params,
		session:               sessionID,
		textarea:              ta,
		viewport:              viewport.New(0, 0),
		viewerViewport:        viewport.New(0, 0),
		loadingSpinner:        sp,
		searchInput:           searchInput,
		highlightedMessageIdx: -1,
	}
}

func (a App) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		a.loadingSpinner.Tick,
		a.waitForChange(),
	)
}

// waitForChange re-arms the orchestrator change subscription. Each delivered
// message must issue this again to keep the stream of wakeups flowing.
func (a App) waitForChange() tea.Cmd {
	ch := a.notifier.ch
	return func() tea.Msg {
		<-ch
		return transcriptChangedMsg{}
	}
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height

		headerHeight := 2
		inputHeight := 3
		footerHeight := 3
		a.viewport.Width = msg.Width
		a.viewport.Height = msg.Height - headerHeight - inputHeight - footerHeight
		if a.viewport.Height < 3 {
			a.viewport.Height = 3
		}
		a.textarea.SetWidth(msg.Width - 2)

		a.viewerViewport.Width = min(msg.Width-10, 96)
		a.viewerViewport.Height = msg.Height - 12
		if a.viewerViewport.Height < 5 {
			a.viewerViewport.Height = 5
		}
		if a.viewerLoaded {
			a.viewerViewport.SetContent(strings.TrimRight(renderMarkdown(a.viewerContent, a.viewerViewport.Width), "\n"))
		}

		a.ready = true
		a.refreshTranscript(true)
		return a, nil

	case transcriptChangedMsg:
		a.refreshTranscript(true)
		return a, a.waitForChange()

	case turnDoneMsg:
		a.turnInFlight = false
		a.refreshTranscript(true)
		return a, nil

	case viewerContentMsg:
		a.viewerContent = msg.content
		a.viewerFallback = msg.fromFallback
		a.viewerLoaded = true
		a.viewerViewport.SetContent(strings.TrimRight(renderMarkdown(a.viewerContent, a.viewerViewport.Width), "\n"))
		a.viewerViewport.GotoTop()
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.loadingSpinner, cmd = a.loadingSpinner.Update(msg)
		if a.turnInFlight {
			a.refreshTranscript(true)
		}
		return a, cmd

	case tea.KeyMsg:
		return a.handleKey(msg)
	}

	var cmd tea.Cmd
	a.viewport, cmd = a.viewport.Update(msg)
	return a, cmd
}

func (a App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	a.statusFlash = ""

	switch msg.String() {
	case "ctrl+c", "alt+q":
		a.orch.Close()
		return a, tea.Quit
	}

	if a.searchOpen {
		return a.handleSearchKey(msg)
	}
	if a.viewerOpen {
		return a.handleViewerKey(msg)
	}

	switch msg.String() {
	case "enter":
		return a, a.submit()

	case "alt+i":
		a.viewerOpen = true
		cmds := []tea.Cmd{a.recordModal(true)}
		if !a.viewerLoaded {
			cmds = append(cmds, loadViewerContent(a.assets, a.params))
		}
		return a, tea.Batch(cmds...)

	case "alt+f":
		a.searchOpen = true
		a.searchInput.SetValue("")
		a.searchInput.Focus()
		a.searchResults = nil
		a.selectedSearchIdx = 0
		return a, textinput.Blink

	case "alt+y":
		return a.copyLastAnswer()

	case "pgup", "pgdown":
		var cmd tea.Cmd
		a.viewport, cmd = a.viewport.Update(msg)
		return a, cmd
	}

	var cmd tea.Cmd
	a.textarea, cmd = a.textarea.Update(msg)
	return a, cmd
}

func (a App) handleViewerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "alt+i":
		a.viewerOpen = false
		return a, a.recordModal(false)
	}

	var cmd tea.Cmd
	a.viewerViewport, cmd = a.viewerViewport.Update(msg)
	return a, cmd
}

func (a App) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		a.searchOpen = false
		a.searchInput.Blur()
		return a, nil

	case "up":
		if a.selectedSearchIdx > 0 {
			a.selectedSearchIdx--
		}
		return a, nil

	case "down":
		if a.selectedSearchIdx < len(a.searchResults)-1 {
			a.selectedSearchIdx++
		}
		return a, nil

	case "enter":
		if a.selectedSearchIdx < len(a.searchResults) {
			a.highlightedMessageIdx = a.searchResults[a.selectedSearchIdx].messageIdx
			a.searchOpen = false
			a.searchInput.Blur()
			a.refreshTranscript(false)
			a.scrollToHighlight()
		}
		return a, nil
	}

	var cmd tea.Cmd
	a.searchInput, cmd = a.searchInput.Update(msg)
	a.searchResults = searchTranscript(a.orch.Visible(), a.searchInput.Value())
	a.selectedSearchIdx = 0
	return a, cmd
}

func (a *App) submit() tea.Cmd {
	text := a.textarea.Value()
	if strings.TrimSpace(text) == "" || a.turnInFlight {
		return nil
	}
	a.textarea.Reset()
	a.turnInFlight = true
	a.highlightedMessageIdx = -1

	orch := a.orch
	return func() tea.Msg {
		orch.Submit(context.Background(), text)
		return turnDoneMsg{}
	}
}

func (a App) recordModal(open bool) tea.Cmd {
	orch := a.orch
	return func() tea.Msg {
		orch.SetModalOpened(open)
		return nil
	}
}

func (a *App) copyLastAnswer() (tea.Model, tea.Cmd) {
	visible := a.orch.Visible()
	for i := len(visible) - 1; i >= 0; i-- {
		if visible[i].Role == model.RoleAssistant {
			if err := clipboard.WriteAll(visible[i].Content); err != nil {
				logx.Warn().Err(err).Msg("clipboard copy failed")
				a.statusFlash = "Copy failed"
			} else {
				a.statusFlash = "Copied last answer"
			}
			break
		}
	}
	return *a, nil
}

// refreshTranscript rebuilds the chat viewport from the orchestrator's
// visible transcript and remembers each message's line offset for search
// jumps.
func (a *App) refreshTranscript(gotoBottom bool) {
	if !a.ready {
		return
	}

	messages := a.orch.Visible()
	offsets := make([]int, len(messages))

	var content strings.Builder
	lines := 0
	for i, msg := range messages {
		offsets[i] = lines

		highlightPrefix := ""
		if i == a.highlightedMessageIdx {
			highlightPrefix = SelectedStyle.Render(">>> ")
		}

		timestamp := formatTimestamp(msg.Timestamp)

		var segment string
		if msg.Role == model.RoleUser {
			segment = formatUserMessage(highlightPrefix, timestamp, UserStyle.Render("You"), msg.Content)
		} else {
			streaming := a.turnInFlight && i == len(messages)-1
			segment = formatAssistantMessage(highlightPrefix, timestamp, AssistantStyle.Render("Assistant"), msg.Content, a.width, streaming)
		}
		content.WriteString(segment)
		lines += strings.Count(segment, "\n")
	}

	if a.orch.Loading() {
		content.WriteString(fmt.Sprintf("%s Waiting for response...\n", a.loadingSpinner.View()))
	}
	if errText := a.orch.Err(); errText != "" {
		content.WriteString(ErrorStyle.Render(errText) + "\n")
	}

	a.messageOffsets = offsets

	text := content.String()
	if text == "" {
		text = fmt.Sprintf("Start a conversation. Ask me anything about %ss!", a.params.ChartLabel())
	}
	a.viewport.SetContent(text)
	if gotoBottom {
		a.viewport.GotoBottom()
	}
}

func (a *App) scrollToHighlight() {
	if a.highlightedMessageIdx < 0 || a.highlightedMessageIdx >= len(a.messageOffsets) {
		return
	}
	a.viewport.SetYOffset(a.messageOffsets[a.highlightedMessageIdx])
}

func (a App) View() string {
	if !a.ready {
		return "Loading..."
	}

	if a.searchOpen {
		return renderSearch(a.searchInput, a.searchResults, a.selectedSearchIdx, a.width, a.height)
	}
	if a.viewerOpen {
		return renderViewer(a.params, a.viewerViewport.View(), a.viewerFallback, a.width, a.height)
	}

	// Each title segment is truncated as plain text, then styled.
	remaining := a.width
	seg := func(text string, style lipgloss.Style) string {
		var fitted string
		fitted, remaining = truncateToFit(text, remaining)
		if fitted == "" {
			return ""
		}
		return style.Render(fitted)
	}

	title := seg("ChartChat", AssistantStyle) +
		seg(" - "+titleCase(a.params.ChartLabel()), TitleStyle) +
		seg(" - "+a.session, UserStyle)
	if status := a.orch.Status(); status != "" {
		title += seg(" | ", DimStyle)
		if remaining > 0 {
			title += a.loadingSpinner.View()
			remaining--
		}
		title += seg(" "+status, DimStyle)
	}
	if a.statusFlash != "" {
		title += seg(" | "+a.statusFlash, DimStyle)
	}

	statusBar := StatusStyle.Render(FormatFooter(
		"Enter", "Send",
		"Alt+Enter", "New Line",
		"Alt+I", "Instructions",
		"Alt+F", "Search",
		"Alt+Y", "Copy",
		"Alt+Q", "Quit",
	))
	notice := DimStyle.Render("All conversations are recorded for research purposes.")

	return lipgloss.JoinVertical(
		lipgloss.Left,
		title,
		"",
		a.viewport.View(),
		a.textarea.View(),
		statusBar,
		notice,
	)
}
