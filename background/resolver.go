// Package background decides whether a user question needs the chart's
// supplementary context (dataset, instructions, image) attached. Attaching
// it on every turn would bloat cost and latency; skipping it when the
// question is about the chart would degrade answers.
package background

import (
	"context"
	"strings"

	"chartchat/logx"
)

// Keywords that make a question obviously chart-related. Matching any of
// them skips the classification round trip entirely.
var keywords = []string{
	"chart", "plot", "heatmap", "violin", "dataset", "csv",
	"value", "axis", "row", "column", "cluster",
}

const (
	useToken = "USE_BACKGROUND"
	noToken  = "NO_BACKGROUND"
)

const routerInstructions = "You are a router for a chart-learning assistant. " +
	"Decide whether answering the user's message requires the chart's background data " +
	"(the dataset, the exploration instructions, or the chart image). " +
	"Reply with exactly one token: " + useToken + " or " + noToken + "."

// Classifier is the one model-API operation the resolver needs.
type Classifier interface {
	Classify(ctx context.Context, instructions, input string) (string, error)
}

// Resolver implements the keyword-plus-router gate.
type Resolver struct {
	classifier Classifier
}

func NewResolver(classifier Classifier) *Resolver {
	return &Resolver{classifier: classifier}
}

// ShouldUseBackground reports whether background context should be attached
// to this turn. The keyword fast path answers without any network call; the
// router call answer is interpreted leniently (substring match). Any router
// failure defaults to false: skipping background must never block the user.
func (r *Resolver) ShouldUseBackground(ctx context.Context, userText string) bool {
	lowered := strings.ToLower(userText)
	for _, kw := range keywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}

	answer, err := r.classifier.Classify(ctx, routerInstructions, userText)
	if err != nil {
		logx.Warn().Err(err).Msg("background router failed; skipping background")
		return false
	}

	return strings.Contains(answer, useToken)
}
