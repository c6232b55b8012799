// Package chat sequences a user turn against the model API: decide which
// tools to call, execute them, stream the answer, and hand the completed
// transcript to the provenance recorder. One orchestrator serves one session.
package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"golang.org/x/sync/errgroup"

	"chartchat/logx"
	"chartchat/model"
	"chartchat/provider"
	"chartchat/tools"
)

// Background strategies. Tool-driven lets the model request context through
// tool calls; keyword-router gates a one-shot call behind a keyword/classifier
// check and attaches the context up front.
const (
	StrategyToolDriven    = "tool-driven"
	StrategyKeywordRouter = "keyword-router"
)

// ErrTurnFailed is the single user-visible error text for a failed turn.
const ErrTurnFailed = "Failed to get response. Please try again."

const announceSettle = 50 * time.Millisecond

// ToolRunner executes one model-requested tool call.
type ToolRunner interface {
	Execute(ctx context.Context, call model.ToolCall) (model.ToolResult, error)
}

// Gate decides whether background context should be attached to a turn
// (keyword-router strategy only).
type Gate interface {
	ShouldUseBackground(ctx context.Context, userText string) bool
}

// BackgroundFetcher loads the raw background assets attached up front in
// keyword-router mode. *assets.Client satisfies it.
type BackgroundFetcher interface {
	DatasetCSV(ctx context.Context, params model.StudyParams) (string, error)
	Instructions(ctx context.Context, params model.StudyParams) (string, error)
}

// Recorder is the provenance collaborator: the sole write path into durable
// study storage.
type Recorder interface {
	RecordState(messages []model.Message, modalOpened bool) error
}

// Options fixes a session's orchestration behavior.
type Options struct {
	Strategy          string
	Multimodal        bool
	SystemPrompt      string // overrides the built-in study prompt when set
	Params            model.StudyParams
	DecisionMaxTokens int64
	MaxOutputTokens   int64
	Temperature       float64
}

// Deps are the orchestrator's collaborators. Gate and Background are only
// consulted under the keyword-router strategy and may be nil otherwise.
// OnChange, when set, is called after every observable state change.
type Deps struct {
	Client     provider.Client
	Tools      ToolRunner
	Gate       Gate
	Background BackgroundFetcher
	Recorder   Recorder
	OnChange   func()
}

// Orchestrator owns the transcript and the conversation-linkage identifier.
// Both are written only at turn transition points; the in-progress streamed
// answer lives in a separate accumulator and the rendered transcript is a
// pure projection of the two.
type Orchestrator struct {
	deps Deps
	opts Options

	instructions string
	toolDefs     []mcptypes.Tool

	mu                 sync.Mutex
	messages           []model.Message
	previousResponseID string
	loading            bool
	errText            string
	status             string
	announcement       string
	modalOpened        bool
	closed             bool

	// In-progress assistant message: placeholder identity fixed at first
	// delta, content accumulated until the stream finishes.
	streaming  bool
	streamText string
	streamMsg  model.Message

	announcer *Announcer
}

func New(deps Deps, opts Options) *Orchestrator {
	instructions := opts.SystemPrompt
	if instructions == "" {
		instructions = StudyPrompt(opts.Params, opts.Strategy, opts.Multimodal)
	}

	defs := tools.Definitions()
	if !opts.Multimodal {
		// Without multimodal the image tool has no consumer; don't offer it.
		filtered := defs[:0]
		for _, def := range defs {
			if def.Name != tools.ToolGetChartImageFileID {
				filtered = append(filtered, def)
			}
		}
		defs = filtered
	}

	o := &Orchestrator{
		deps:         deps,
		opts:         opts,
		instructions: instructions,
		toolDefs:     defs,
	}
	o.announcer = NewAnnouncer(announceSettle, o.setAnnouncement)
	return o
}

// Seed loads a previously persisted transcript and modal flag, replacing any
// local state. Seeding resets the conversation linkage: the server-side
// continuation does not survive a restart.
func (o *Orchestrator) Seed(messages []model.Message, modalOpened bool) {
	o.mu.Lock()
	o.messages = append([]model.Message(nil), messages...)
	o.modalOpened = modalOpened
	o.previousResponseID = ""
	o.mu.Unlock()
	o.notify()
}

// Submit runs one full turn synchronously: decision, tools, stream, persist.
// Empty input and submissions while a turn is in flight are silent no-ops.
// The caller owns ctx; cancelling it aborts the in-flight turn.
func (o *Orchestrator) Submit(ctx context.Context, text string) {
	trimmed := strings.TrimSpace(text)

	o.mu.Lock()
	if trimmed == "" || o.loading || o.closed {
		o.mu.Unlock()
		return
	}
	o.loading = true
	o.errText = ""
	o.status = "Waiting for response"
	o.messages = append(o.messages, model.NewMessage(model.RoleUser, trimmed, true))
	o.mu.Unlock()
	o.notify()

	err := o.runTurn(ctx, trimmed)

	o.mu.Lock()
	o.finalizeStreamLocked()
	o.loading = false
	o.status = ""
	if err != nil {
		logx.Error().Err(err).Msg("turn failed")
		o.errText = ErrTurnFailed
		o.mu.Unlock()
		o.notify()
		return
	}
	messages := o.projectLocked()
	modalOpened := o.modalOpened
	closed := o.closed
	o.mu.Unlock()
	o.notify()

	if closed {
		return
	}
	if err := o.deps.Recorder.RecordState(messages, modalOpened); err != nil {
		logx.Error().Err(err).Msg("failed to record provenance state")
	}
}

func (o *Orchestrator) runTurn(ctx context.Context, userText string) error {
	if o.opts.Strategy == StrategyKeywordRouter {
		return o.runRouterTurn(ctx, userText)
	}
	return o.runToolTurn(ctx, userText)
}

// runToolTurn is the two-call protocol: a cheap capped probe surfaces the
// model's tool-call intent, then the streaming call produces the narrative.
// The probe's response id is captured unconditionally so the streaming call
// continues the same exchange even when no tools were requested.
func (o *Orchestrator) runToolTurn(ctx context.Context, userText string) error {
	decision, err := o.deps.Client.Decide(ctx, provider.DecideRequest{
		Instructions:       o.instructions,
		Tools:              o.toolDefs,
		Input:              []provider.InputItem{provider.UserText(userText)},
		PreviousResponseID: o.linkage(),
		MaxOutputTokens:    o.opts.DecisionMaxTokens,
	})
	if err != nil {
		return fmt.Errorf("tool decision failed: %w", err)
	}
	o.setLinkage(decision.ResponseID)

	input := []provider.InputItem{provider.UserText(userText)}

	if len(decision.ToolCalls) > 0 {
		o.setStatus("Fetching chart data")

		// Independent reads; fan out, join before streaming. The streaming
		// input is their aggregate output, in the order the model asked.
		results := make([]model.ToolResult, len(decision.ToolCalls))
		g, gctx := errgroup.WithContext(ctx)
		for i, call := range decision.ToolCalls {
			g.Go(func() error {
				result, err := o.deps.Tools.Execute(gctx, call)
				if err != nil {
					return err
				}
				results[i] = result
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return fmt.Errorf("tool execution failed: %w", err)
		}

		input = input[:0]
		imageFileID := ""
		for _, result := range results {
			input = append(input, provider.FunctionResult(result.CallID, result.Output))
			if result.ImageFileID != "" {
				imageFileID = result.ImageFileID
			}
		}
		if imageFileID != "" && o.opts.Multimodal {
			input = append(input, provider.ImageReference(imageFileID))
		}
	}

	return o.stream(ctx, input)
}

// runRouterTurn is the one-call protocol: when the gate decides the question
// is chart-related, the background is fetched up front and attached as a
// hidden message; the stream then answers in a single call.
func (o *Orchestrator) runRouterTurn(ctx context.Context, userText string) error {
	var input []provider.InputItem

	if o.deps.Gate.ShouldUseBackground(ctx, userText) {
		o.setStatus("Fetching chart data")

		background, err := o.assembleBackground(ctx)
		if err != nil {
			return fmt.Errorf("background fetch failed: %w", err)
		}

		// Part of the logical transcript sent to the model, never rendered.
		o.appendMessage(model.NewMessage(model.RoleSystem, background, false))

		input = append(input, provider.SystemText(background))
		if o.opts.Multimodal {
			input = append(input, provider.ImageReference(tools.ChartImageFileID(o.opts.Params)))
		}
	}

	input = append(input, provider.UserText(userText))
	return o.stream(ctx, input)
}

func (o *Orchestrator) assembleBackground(ctx context.Context) (string, error) {
	csv, err := o.deps.Background.DatasetCSV(ctx, o.opts.Params)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Background context for the current %s chart.\n\nDataset CSV:\n%s", o.opts.Params.ChartLabel(), csv)

	if o.opts.Params.ContentType == model.ContentInstructions {
		instructions, err := o.deps.Background.Instructions(ctx, o.opts.Params)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "\n\nExploration instructions:\n%s", instructions)
	}

	return b.String(), nil
}

// stream runs the streaming call and folds deltas into the accumulator. The
// first delta flips loading off and creates the in-progress assistant
// message exactly once; later deltas only grow the accumulator. A stream
// that never yields a delta is an empty answer, not an error.
func (o *Orchestrator) stream(ctx context.Context, input []provider.InputItem) error {
	o.setStatus("Answering")

	result, err := o.deps.Client.Stream(ctx, provider.StreamRequest{
		Instructions:       o.instructions,
		Tools:              o.toolDefs,
		Input:              input,
		PreviousResponseID: o.linkage(),
		Temperature:        o.opts.Temperature,
		MaxOutputTokens:    o.opts.MaxOutputTokens,
	}, o.onDelta)
	if err != nil {
		// The partial answer, if any, stays in the transcript; the caller
		// finalizes it alongside setting the error slot.
		return fmt.Errorf("streaming failed: %w", err)
	}

	if result.ResponseID != "" {
		o.setLinkage(result.ResponseID)
	}

	if result.Text != "" {
		o.announcer.Announce(result.Text)
	}
	return nil
}

func (o *Orchestrator) onDelta(delta string) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	if !o.streaming {
		o.streaming = true
		o.loading = false
		o.status = "Answering"
		o.streamMsg = model.NewMessage(model.RoleAssistant, "", true)
	}
	o.streamText += delta
	o.mu.Unlock()
	o.notify()
}

// finalizeStreamLocked moves the accumulated streamed answer, complete or
// partial, into the transcript. No-op when no delta ever arrived. After Close
// the accumulator is discarded instead of appended.
func (o *Orchestrator) finalizeStreamLocked() {
	if !o.streaming {
		return
	}
	if !o.closed {
		msg := o.streamMsg
		msg.Content = o.streamText
		o.messages = append(o.messages, msg)
	}
	o.streaming = false
	o.streamText = ""
	o.streamMsg = model.Message{}
}

// SetModalOpened records a viewer toggle. Every toggle persists a snapshot.
func (o *Orchestrator) SetModalOpened(opened bool) {
	o.mu.Lock()
	if o.closed || o.modalOpened == opened {
		o.mu.Unlock()
		return
	}
	o.modalOpened = opened
	messages := o.projectLocked()
	o.mu.Unlock()
	o.notify()

	if err := o.deps.Recorder.RecordState(messages, opened); err != nil {
		logx.Error().Err(err).Msg("failed to record provenance state")
	}
}

// Close marks the orchestrator dead. An in-flight stream keeps reading but
// its writes are dropped, and nothing further is persisted. Cancelling the
// submit context, if the host wants the read stopped too, is the host's call.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	o.announcer.Stop()
}

// Messages returns the full logical transcript, hidden messages included,
// with the in-progress streamed answer projected at the tail.
func (o *Orchestrator) Messages() []model.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.projectLocked()
}

// Visible returns the rendered transcript: the Display=true subsequence in
// submission order.
func (o *Orchestrator) Visible() []model.Message {
	return model.VisibleMessages(o.Messages())
}

func (o *Orchestrator) projectLocked() []model.Message {
	projected := make([]model.Message, len(o.messages), len(o.messages)+1)
	copy(projected, o.messages)
	if o.streaming {
		msg := o.streamMsg
		msg.Content = o.streamText
		projected = append(projected, msg)
	}
	return projected
}

func (o *Orchestrator) Loading() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.loading
}

// Err returns the user-visible error text for the last turn, empty when the
// last turn succeeded.
func (o *Orchestrator) Err() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.errText
}

// Status is the turn-progress live-region text, empty when idle.
func (o *Orchestrator) Status() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// Announcement is the final-answer live-region text (debounced).
func (o *Orchestrator) Announcement() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.announcement
}

func (o *Orchestrator) ModalOpened() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.modalOpened
}

func (o *Orchestrator) linkage() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.previousResponseID
}

func (o *Orchestrator) setLinkage(id string) {
	o.mu.Lock()
	if !o.closed && id != "" {
		o.previousResponseID = id
	}
	o.mu.Unlock()
}

func (o *Orchestrator) setStatus(status string) {
	o.mu.Lock()
	if !o.closed {
		o.status = status
	}
	o.mu.Unlock()
	o.notify()
}

func (o *Orchestrator) setAnnouncement(text string) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.announcement = text
	o.mu.Unlock()
	o.notify()
}

func (o *Orchestrator) appendMessage(msg model.Message) {
	o.mu.Lock()
	if !o.closed {
		o.messages = append(o.messages, msg)
	}
	o.mu.Unlock()
	o.notify()
}

func (o *Orchestrator) notify() {
	if o.deps.OnChange != nil {
		o.deps.OnChange()
	}
}
