package provider

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"chartchat/logx"
)

// Stream event types emitted by the model API. Anything else is ignored so
// new server-side event kinds don't break older clients.
const (
	eventResponseCreated   = "response.created"
	eventOutputTextDelta   = "response.output_text.delta"
	eventOutputTextDone    = "response.output_text.done"
	eventOutputItemDone    = "response.output_item.done"
	eventResponseCompleted = "response.completed"
)

const (
	dataPrefix   = "data:"
	doneSentinel = "[DONE]"
)

// StreamEvent is one decoded record from the event stream. Only the fields
// relevant to the event's type are populated.
type StreamEvent struct {
	Type     string `json:"type"`
	Delta    string `json:"delta"`
	Text     string `json:"text"`
	Response struct {
		ID string `json:"id"`
	} `json:"response"`
}

// DecodeEventStream consumes a newline-delimited "data:" framed event stream
// and invokes handle for every well-formed event, in order.
//
// Line assembly is stateful across reads, so records and UTF-8 sequences may
// straddle chunk boundaries. Lines without the data prefix and empty payloads
// are skipped. The literal [DONE] sentinel terminates decoding immediately,
// even if more bytes are buffered. A malformed JSON payload is logged and
// skipped; it never aborts the stream.
func DecodeEventStream(r io.Reader, handle func(StreamEvent)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, dataPrefix) {
			continue
		}

		payload := strings.TrimSpace(strings.TrimPrefix(line, dataPrefix))
		if payload == "" {
			continue
		}
		if payload == doneSentinel {
			return nil
		}

		var event StreamEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			logx.Warn().Err(err).Str("payload", truncateForLog(payload)).Msg("skipping malformed stream event")
			continue
		}

		handle(event)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("stream read failed: %w", err)
	}
	return nil
}

func truncateForLog(s string) string {
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
