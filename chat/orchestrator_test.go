package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"chartchat/model"
	"chartchat/provider"
	"chartchat/tools"
)

type fakeClient struct {
	decide     func(req provider.DecideRequest) (*provider.Decision, error)
	stream     func(req provider.StreamRequest, onDelta func(string)) (*provider.StreamResult, error)
	decideReqs []provider.DecideRequest
	streamReqs []provider.StreamRequest
}

func (f *fakeClient) Decide(ctx context.Context, req provider.DecideRequest) (*provider.Decision, error) {
	f.decideReqs = append(f.decideReqs, req)
	if f.decide == nil {
		return &provider.Decision{ResponseID: "resp-decide"}, nil
	}
	return f.decide(req)
}

func (f *fakeClient) Stream(ctx context.Context, req provider.StreamRequest, onDelta func(string)) (*provider.StreamResult, error) {
	f.streamReqs = append(f.streamReqs, req)
	if f.stream == nil {
		return &provider.StreamResult{}, nil
	}
	return f.stream(req, onDelta)
}

func (f *fakeClient) Classify(ctx context.Context, instructions, input string) (string, error) {
	return "NO_BACKGROUND", nil
}

type fakeRunner struct {
	results map[string]model.ToolResult
	err     error
}

func (f *fakeRunner) Execute(ctx context.Context, call model.ToolCall) (model.ToolResult, error) {
	if f.err != nil {
		return model.ToolResult{}, f.err
	}
	result, ok := f.results[call.Name]
	if !ok {
		return model.ToolResult{}, fmt.Errorf("no scripted result for %s", call.Name)
	}
	result.CallID = call.CallID
	return result, nil
}

type fakeRecorder struct {
	calls       int
	messages    []model.Message
	modalOpened bool
	err         error
}

func (f *fakeRecorder) RecordState(messages []model.Message, modalOpened bool) error {
	f.calls++
	f.messages = messages
	f.modalOpened = modalOpened
	return f.err
}

type fakeGate struct {
	use    bool
	called int
}

func (f *fakeGate) ShouldUseBackground(ctx context.Context, userText string) bool {
	f.called++
	return f.use
}

type fakeBackground struct {
	csv          string
	instructions string
	err          error
}

func (f *fakeBackground) DatasetCSV(ctx context.Context, params model.StudyParams) (string, error) {
	return f.csv, f.err
}

func (f *fakeBackground) Instructions(ctx context.Context, params model.StudyParams) (string, error) {
	return f.instructions, f.err
}

var testParams = model.StudyParams{
	ChartType:   model.ChartViolinPlot,
	Dataset:     model.DatasetSimple,
	Modality:    model.ModalityTactile,
	ContentType: model.ContentInstructions,
}

func testOptions() Options {
	return Options{
		Strategy:          StrategyToolDriven,
		Multimodal:        true,
		Params:            testParams,
		DecisionMaxTokens: 64,
		MaxOutputTokens:   1000,
		Temperature:       0.7,
	}
}

func newTestOrchestrator(client *fakeClient, opts Options) (*Orchestrator, *fakeRecorder) {
	recorder := &fakeRecorder{}
	o := New(Deps{
		Client:   client,
		Tools:    &fakeRunner{},
		Recorder: recorder,
	}, opts)
	return o, recorder
}

func assistantMessages(messages []model.Message) []model.Message {
	var out []model.Message
	for _, m := range messages {
		if m.Role == model.RoleAssistant {
			out = append(out, m)
		}
	}
	return out
}

func TestSubmitEmptyInputIsNoOp(t *testing.T) {
	client := &fakeClient{}
	o, recorder := newTestOrchestrator(client, testOptions())

	for _, input := range []string{"", "   ", "\n\t "} {
		o.Submit(context.Background(), input)
	}

	if len(client.decideReqs) != 0 || len(client.streamReqs) != 0 {
		t.Error("empty input must not issue any network call")
	}
	if len(o.Messages()) != 0 {
		t.Errorf("transcript mutated: %d messages", len(o.Messages()))
	}
	if o.Loading() {
		t.Error("loading set on empty input")
	}
	if recorder.calls != 0 {
		t.Error("recorder called on empty input")
	}
}

func TestSubmitWhileLoadingIsNoOp(t *testing.T) {
	client := &fakeClient{}
	var o *Orchestrator

	client.stream = func(req provider.StreamRequest, onDelta func(string)) (*provider.StreamResult, error) {
		// Re-entrant submission mid-turn must be dropped, not queued.
		o.Submit(context.Background(), "second question")
		onDelta("answer")
		return &provider.StreamResult{Text: "answer"}, nil
	}

	o, _ = newTestOrchestrator(client, testOptions())
	o.Submit(context.Background(), "first question")

	if len(client.decideReqs) != 1 {
		t.Errorf("decision calls: got %d, want 1", len(client.decideReqs))
	}
	visible := o.Visible()
	if len(visible) != 2 {
		t.Fatalf("visible messages: got %d, want 2 (user + assistant)", len(visible))
	}
	if visible[0].Content != "first question" {
		t.Errorf("user message: got %q", visible[0].Content)
	}
}

func TestVisibleFiltersHiddenMessages(t *testing.T) {
	o, _ := newTestOrchestrator(&fakeClient{}, testOptions())

	o.Seed([]model.Message{
		model.NewMessage(model.RoleSystem, "hidden context", false),
		model.NewMessage(model.RoleUser, "question", true),
		model.NewMessage(model.RoleAssistant, "answer", true),
	}, false)

	visible := o.Visible()
	if len(visible) != 2 {
		t.Fatalf("visible: got %d, want 2", len(visible))
	}
	if visible[0].Content != "question" || visible[1].Content != "answer" {
		t.Errorf("visible order wrong: %q, %q", visible[0].Content, visible[1].Content)
	}
	if len(o.Messages()) != 3 {
		t.Errorf("logical transcript: got %d, want 3", len(o.Messages()))
	}
}

func TestStreamingTailReplacement(t *testing.T) {
	deltas := []string{"The ", "violin ", "plot ", "shows..."}
	client := &fakeClient{}
	var o *Orchestrator

	client.stream = func(req provider.StreamRequest, onDelta func(string)) (*provider.StreamResult, error) {
		var want strings.Builder
		for _, d := range deltas {
			onDelta(d)
			want.WriteString(d)

			msgs := o.Visible()
			last := msgs[len(msgs)-1]
			if last.Role != model.RoleAssistant {
				t.Fatalf("tail role: got %q, want assistant", last.Role)
			}
			if last.Content != want.String() {
				t.Errorf("tail content: got %q, want %q", last.Content, want.String())
			}
			if o.Loading() {
				t.Error("loading still set after first delta")
			}
		}
		return &provider.StreamResult{Text: want.String()}, nil
	}

	o, _ = newTestOrchestrator(client, testOptions())
	o.Submit(context.Background(), "what does this show")

	finals := assistantMessages(o.Messages())
	if len(finals) != 1 {
		t.Fatalf("assistant messages: got %d, want exactly 1", len(finals))
	}
	if finals[0].Content != "The violin plot shows..." {
		t.Errorf("final content: got %q", finals[0].Content)
	}
}

func TestToolRoundTrip(t *testing.T) {
	client := &fakeClient{
		decide: func(req provider.DecideRequest) (*provider.Decision, error) {
			return &provider.Decision{
				ResponseID: "resp-1",
				ToolCalls: []model.ToolCall{
					{Name: tools.ToolGetDatasetCSV, CallID: "call_7", Arguments: "{}"},
				},
			}, nil
		},
	}

	recorder := &fakeRecorder{}
	runner := &fakeRunner{results: map[string]model.ToolResult{
		tools.ToolGetDatasetCSV: {Name: tools.ToolGetDatasetCSV, Output: `{"csv":"a,b\n1,2\n"}`},
	}}
	o := New(Deps{Client: client, Tools: runner, Recorder: recorder}, testOptions())

	o.Submit(context.Background(), "show me the dataset")

	if len(client.streamReqs) != 1 {
		t.Fatalf("stream calls: got %d, want 1", len(client.streamReqs))
	}
	input := client.streamReqs[0].Input
	if len(input) != 1 {
		t.Fatalf("stream input items: got %d, want 1", len(input))
	}
	item := input[0]
	if item.Kind != provider.InputFunctionResult {
		t.Fatalf("input kind: got %v, want function result", item.Kind)
	}
	if item.CallID != "call_7" {
		t.Errorf("call id: got %q, want call_7", item.CallID)
	}
	var output map[string]string
	if err := json.Unmarshal([]byte(item.Output), &output); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if output["csv"] != "a,b\n1,2\n" {
		t.Errorf("csv: got %q", output["csv"])
	}
}

func TestToolRoundTripAppendsImageItem(t *testing.T) {
	fileID := tools.ChartImageFileID(testParams)
	client := &fakeClient{
		decide: func(req provider.DecideRequest) (*provider.Decision, error) {
			return &provider.Decision{
				ResponseID: "resp-1",
				ToolCalls: []model.ToolCall{
					{Name: tools.ToolGetDatasetCSV, CallID: "call_1"},
					{Name: tools.ToolGetChartImageFileID, CallID: "call_2"},
				},
			}, nil
		},
	}
	runner := &fakeRunner{results: map[string]model.ToolResult{
		tools.ToolGetDatasetCSV:       {Name: tools.ToolGetDatasetCSV, Output: `{"csv":"x"}`},
		tools.ToolGetChartImageFileID: {Name: tools.ToolGetChartImageFileID, Output: fmt.Sprintf(`{"file_id":%q}`, fileID), ImageFileID: fileID},
	}}
	o := New(Deps{Client: client, Tools: runner, Recorder: &fakeRecorder{}}, testOptions())

	o.Submit(context.Background(), "describe the chart image")

	input := client.streamReqs[0].Input
	if len(input) != 3 {
		t.Fatalf("stream input items: got %d, want 2 results + 1 image", len(input))
	}
	if input[0].CallID != "call_1" || input[1].CallID != "call_2" {
		t.Errorf("result order: got %q, %q", input[0].CallID, input[1].CallID)
	}
	last := input[2]
	if last.Kind != provider.InputImage {
		t.Fatalf("last input kind: got %v, want image", last.Kind)
	}
	if last.FileID != fileID {
		t.Errorf("image file id: got %q, want %q", last.FileID, fileID)
	}
}

func TestConversationLinkageContinuity(t *testing.T) {
	client := &fakeClient{
		decide: func(req provider.DecideRequest) (*provider.Decision, error) {
			return &provider.Decision{ResponseID: "R1"}, nil
		},
		stream: func(req provider.StreamRequest, onDelta func(string)) (*provider.StreamResult, error) {
			onDelta("hi")
			return &provider.StreamResult{ResponseID: "R2", Text: "hi"}, nil
		},
	}
	o, _ := newTestOrchestrator(client, testOptions())

	o.Submit(context.Background(), "first question about the chart")

	if got := client.decideReqs[0].PreviousResponseID; got != "" {
		t.Errorf("first decision linkage: got %q, want empty", got)
	}
	if got := client.streamReqs[0].PreviousResponseID; got != "R1" {
		t.Errorf("first stream linkage: got %q, want R1", got)
	}

	o.Submit(context.Background(), "second question about the chart")

	if got := client.decideReqs[1].PreviousResponseID; got != "R2" {
		t.Errorf("second turn linkage: got %q, want R2", got)
	}
}

func TestStreamWithoutIDKeepsPreviousLinkage(t *testing.T) {
	client := &fakeClient{
		decide: func(req provider.DecideRequest) (*provider.Decision, error) {
			return &provider.Decision{ResponseID: "R1"}, nil
		},
		stream: func(req provider.StreamRequest, onDelta func(string)) (*provider.StreamResult, error) {
			return &provider.StreamResult{}, nil
		},
	}
	o, _ := newTestOrchestrator(client, testOptions())

	o.Submit(context.Background(), "question one")
	o.Submit(context.Background(), "question two")

	if got := client.decideReqs[1].PreviousResponseID; got != "R1" {
		t.Errorf("linkage after id-less stream: got %q, want R1", got)
	}
}

func TestEmptyStreamClearsLoading(t *testing.T) {
	client := &fakeClient{}
	o, recorder := newTestOrchestrator(client, testOptions())

	o.Submit(context.Background(), "hello chart")

	if o.Loading() {
		t.Error("loading not cleared after empty stream")
	}
	if o.Err() != "" {
		t.Errorf("empty stream is not an error, got %q", o.Err())
	}
	if n := len(assistantMessages(o.Messages())); n != 0 {
		t.Errorf("assistant messages after empty stream: got %d, want 0", n)
	}
	if recorder.calls != 1 {
		t.Errorf("recorder calls: got %d, want 1", recorder.calls)
	}
}

func TestDecisionFailureSetsErrorAndKeepsUserMessage(t *testing.T) {
	client := &fakeClient{
		decide: func(req provider.DecideRequest) (*provider.Decision, error) {
			return nil, errors.New("connection refused")
		},
	}
	o, recorder := newTestOrchestrator(client, testOptions())

	o.Submit(context.Background(), "my question")

	if o.Err() != ErrTurnFailed {
		t.Errorf("error text: got %q, want %q", o.Err(), ErrTurnFailed)
	}
	if o.Loading() {
		t.Error("loading not cleared after failure")
	}
	visible := o.Visible()
	if len(visible) != 1 || visible[0].Content != "my question" {
		t.Errorf("optimistic user message not retained: %+v", visible)
	}
	if recorder.calls != 0 {
		t.Error("failed turn must not persist")
	}
}

func TestMidStreamFailureKeepsPartialAnswer(t *testing.T) {
	client := &fakeClient{
		stream: func(req provider.StreamRequest, onDelta func(string)) (*provider.StreamResult, error) {
			onDelta("partial ans")
			return nil, errors.New("connection reset")
		},
	}
	o, recorder := newTestOrchestrator(client, testOptions())

	o.Submit(context.Background(), "my question")

	if o.Err() != ErrTurnFailed {
		t.Errorf("error text: got %q, want %q", o.Err(), ErrTurnFailed)
	}
	finals := assistantMessages(o.Messages())
	if len(finals) != 1 || finals[0].Content != "partial ans" {
		t.Errorf("partial answer not kept: %+v", finals)
	}
	if recorder.calls != 0 {
		t.Error("failed turn must not persist")
	}
}

func TestSuccessfulTurnPersistsTranscript(t *testing.T) {
	client := &fakeClient{
		stream: func(req provider.StreamRequest, onDelta func(string)) (*provider.StreamResult, error) {
			onDelta("answer")
			return &provider.StreamResult{ResponseID: "R2", Text: "answer"}, nil
		},
	}
	o, recorder := newTestOrchestrator(client, testOptions())

	o.Submit(context.Background(), "question")

	if recorder.calls != 1 {
		t.Fatalf("recorder calls: got %d, want 1", recorder.calls)
	}
	if len(recorder.messages) != 2 {
		t.Errorf("persisted messages: got %d, want 2", len(recorder.messages))
	}
	if recorder.modalOpened {
		t.Error("modal flag persisted as open")
	}
}

func TestModalToggleRecordsState(t *testing.T) {
	o, recorder := newTestOrchestrator(&fakeClient{}, testOptions())

	o.SetModalOpened(true)
	if recorder.calls != 1 || !recorder.modalOpened {
		t.Errorf("toggle not persisted: calls=%d modal=%v", recorder.calls, recorder.modalOpened)
	}

	// Same value again is not a toggle.
	o.SetModalOpened(true)
	if recorder.calls != 1 {
		t.Errorf("redundant toggle persisted: calls=%d", recorder.calls)
	}

	o.SetModalOpened(false)
	if recorder.calls != 2 || recorder.modalOpened {
		t.Errorf("close toggle not persisted: calls=%d modal=%v", recorder.calls, recorder.modalOpened)
	}
}

func TestCloseDropsSubsequentWork(t *testing.T) {
	client := &fakeClient{}
	o, recorder := newTestOrchestrator(client, testOptions())

	o.Close()
	o.Submit(context.Background(), "question after close")
	o.SetModalOpened(true)

	if len(client.decideReqs) != 0 {
		t.Error("submit after close issued a network call")
	}
	if len(o.Messages()) != 0 {
		t.Error("submit after close mutated transcript")
	}
	if recorder.calls != 0 {
		t.Error("recorder called after close")
	}
}

func TestCloseMidStreamDiscardsPartialAnswer(t *testing.T) {
	client := &fakeClient{}
	var o *Orchestrator

	client.stream = func(req provider.StreamRequest, onDelta func(string)) (*provider.StreamResult, error) {
		onDelta("partial ans")
		o.Close()
		onDelta("wer")
		return &provider.StreamResult{ResponseID: "R1", Text: "partial answer"}, nil
	}

	var recorder *fakeRecorder
	o, recorder = newTestOrchestrator(client, testOptions())
	o.Submit(context.Background(), "question")

	if n := len(assistantMessages(o.Messages())); n != 0 {
		t.Errorf("assistant messages after close: got %d, want 0", n)
	}
	if recorder.calls != 0 {
		t.Error("recorder called after close")
	}
}

func TestRouterModeAttachesBackground(t *testing.T) {
	client := &fakeClient{
		stream: func(req provider.StreamRequest, onDelta func(string)) (*provider.StreamResult, error) {
			onDelta("answer")
			return &provider.StreamResult{ResponseID: "R1", Text: "answer"}, nil
		},
	}
	gate := &fakeGate{use: true}
	background := &fakeBackground{csv: "a,b\n1,2\n", instructions: "# Explore the plot"}

	opts := testOptions()
	opts.Strategy = StrategyKeywordRouter
	recorder := &fakeRecorder{}
	o := New(Deps{
		Client:     client,
		Tools:      &fakeRunner{},
		Gate:       gate,
		Background: background,
		Recorder:   recorder,
	}, opts)

	o.Submit(context.Background(), "what does the darker shade mean")

	if gate.called != 1 {
		t.Fatalf("gate calls: got %d, want 1", gate.called)
	}
	if len(client.decideReqs) != 0 {
		t.Error("router mode must not issue a decision call")
	}

	input := client.streamReqs[0].Input
	if len(input) != 3 {
		t.Fatalf("stream input items: got %d, want background + image + user", len(input))
	}
	if input[0].Kind != provider.InputText || input[0].Role != model.RoleSystem {
		t.Errorf("first item should be hidden system context, got %+v", input[0])
	}
	if !strings.Contains(input[0].Text, "a,b\n1,2\n") || !strings.Contains(input[0].Text, "# Explore the plot") {
		t.Errorf("background text incomplete: %q", input[0].Text)
	}
	if input[1].Kind != provider.InputImage || input[1].FileID != tools.ChartImageFileID(testParams) {
		t.Errorf("second item should be the chart image, got %+v", input[1])
	}
	if input[2].Kind != provider.InputText || input[2].Role != model.RoleUser {
		t.Errorf("last item should be the user message, got %+v", input[2])
	}

	// The hidden context is part of the logical transcript, never rendered.
	all := o.Messages()
	visible := o.Visible()
	if len(all) != 3 {
		t.Errorf("logical transcript: got %d, want hidden + user + assistant", len(all))
	}
	if len(visible) != 2 {
		t.Errorf("visible transcript: got %d, want user + assistant", len(visible))
	}
}

func TestRouterModeSkipsBackgroundWhenGateDeclines(t *testing.T) {
	client := &fakeClient{
		stream: func(req provider.StreamRequest, onDelta func(string)) (*provider.StreamResult, error) {
			return &provider.StreamResult{}, nil
		},
	}
	opts := testOptions()
	opts.Strategy = StrategyKeywordRouter
	o := New(Deps{
		Client:     client,
		Tools:      &fakeRunner{},
		Gate:       &fakeGate{use: false},
		Background: &fakeBackground{},
		Recorder:   &fakeRecorder{},
	}, opts)

	o.Submit(context.Background(), "hello")

	input := client.streamReqs[0].Input
	if len(input) != 1 || input[0].Role != model.RoleUser {
		t.Errorf("expected only the user message, got %+v", input)
	}
}

func TestMultimodalOffExcludesImageTool(t *testing.T) {
	client := &fakeClient{}
	opts := testOptions()
	opts.Multimodal = false
	o, _ := newTestOrchestrator(client, opts)

	o.Submit(context.Background(), "tell me about the chart")

	defs := client.decideReqs[0].Tools
	if len(defs) != 2 {
		t.Fatalf("tool definitions: got %d, want 2", len(defs))
	}
	for _, def := range defs {
		if def.Name == tools.ToolGetChartImageFileID {
			t.Error("image tool offered with multimodal off")
		}
	}
}

func TestAnnouncementDebounces(t *testing.T) {
	client := &fakeClient{
		stream: func(req provider.StreamRequest, onDelta func(string)) (*provider.StreamResult, error) {
			onDelta("final answer")
			return &provider.StreamResult{Text: "final answer"}, nil
		},
	}
	o, _ := newTestOrchestrator(client, testOptions())

	o.Submit(context.Background(), "question")

	deadline := time.Now().Add(2 * time.Second)
	for o.Announcement() == "" && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := o.Announcement(); got != "final answer" {
		t.Errorf("announcement: got %q, want %q", got, "final answer")
	}
}

func TestSystemPromptOverride(t *testing.T) {
	client := &fakeClient{}
	opts := testOptions()
	opts.SystemPrompt = "You are a test harness."
	o, _ := newTestOrchestrator(client, opts)

	o.Submit(context.Background(), "question")

	if got := client.decideReqs[0].Instructions; got != "You are a test harness." {
		t.Errorf("instructions: got %q", got)
	}
}
