package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/RahulPulidindi/tunesmith/internal/auth"
	"github.com/RahulPulidindi/tunesmith/internal/logging"
)

// scriptedReasoner returns its decisions in order; past the end it keeps
// returning the last one.
type scriptedReasoner struct {
	decisions []Decision
	errs      []error
	calls     int
}

func (r *scriptedReasoner) NextStep(_ context.Context, _ Request, _ *Trace) (Decision, error) {
	i := r.calls
	r.calls++
	if i < len(r.errs) && r.errs[i] != nil {
		return Decision{}, r.errs[i]
	}
	if i >= len(r.decisions) {
		i = len(r.decisions) - 1
	}
	return r.decisions[i], nil
}

type scriptedRunner struct {
	results []map[string]any
	errs    []error
	calls   []string
}

func (r *scriptedRunner) Call(_ context.Context, _ ToolContext, name string, _ map[string]any) (map[string]any, error) {
	i := len(r.calls)
	r.calls = append(r.calls, name)
	var result map[string]any
	if i < len(r.results) {
		result = r.results[i]
	}
	var err error
	if i < len(r.errs) {
		err = r.errs[i]
	}
	return result, err
}

func newTestLoop(r Reasoner, tools ToolRunner, maxSteps int) *Loop {
	return NewLoop(r, tools, maxSteps, logging.Nop())
}

func TestLoopAnswers(t *testing.T) {
	reasoner := &scriptedReasoner{decisions: []Decision{
		{Thought: "search first", Tool: ToolSearchTracks, Args: map[string]any{"query": "jazz"}},
		{Final: "Here are some jazz tracks."},
	}}
	runner := &scriptedRunner{results: []map[string]any{{"total": 3}}}

	result, err := newTestLoop(reasoner, runner, 8).Run(context.Background(), testCtx, Request{Text: "find jazz"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.State != StateAnswered {
		t.Errorf("State = %s, want %s", result.State, StateAnswered)
	}
	if result.FinalText != "Here are some jazz tracks." {
		t.Errorf("FinalText = %q", result.FinalText)
	}
	if result.Trace.Len() != 1 || runner.calls[0] != ToolSearchTracks {
		t.Errorf("trace len = %d, calls = %v", result.Trace.Len(), runner.calls)
	}
}

func TestLoopToolFailureBecomesObservation(t *testing.T) {
	reasoner := &scriptedReasoner{decisions: []Decision{
		{Tool: ToolSearchTracks, Args: map[string]any{"query": "jazz"}},
		{Final: "Search is unavailable right now."},
	}}
	runner := &scriptedRunner{errs: []error{
		&ToolError{Kind: ToolErrTransport, Tool: ToolSearchTracks, Detail: "connection reset"},
	}}

	result, err := newTestLoop(reasoner, runner, 8).Run(context.Background(), testCtx, Request{Text: "find jazz"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.State != StateAnswered {
		t.Errorf("State = %s", result.State)
	}
	if result.Trace.Len() != 1 || !result.Trace.Steps[0].Call.Failed() {
		t.Fatalf("want one failed step, got %d steps", result.Trace.Len())
	}
	if obs := result.Trace.Steps[0].Call.Observation(); !strings.HasPrefix(obs, "Error - ") {
		t.Errorf("Observation() = %q, want error prefix", obs)
	}
}

func TestLoopAuthFailureAborts(t *testing.T) {
	reasoner := &scriptedReasoner{decisions: []Decision{
		{Tool: ToolGetPlaylist, Args: map[string]any{"playlist_id": "pl1"}},
	}}
	runner := &scriptedRunner{errs: []error{
		&ToolError{Kind: ToolErrAuth, Tool: ToolGetPlaylist, Detail: "refresh rejected", err: auth.ErrReauthRequired},
	}}

	_, err := newTestLoop(reasoner, runner, 8).Run(context.Background(), testCtx, Request{Text: "show it"})
	if !errors.Is(err, auth.ErrReauthRequired) {
		t.Errorf("Run() error = %v, want ErrReauthRequired", err)
	}
}

func TestLoopTruncates(t *testing.T) {
	reasoner := &scriptedReasoner{decisions: []Decision{
		{Tool: ToolSearchTracks, Args: map[string]any{"query": "more"}},
	}}
	runner := &scriptedRunner{results: []map[string]any{
		{"total": 1}, {"total": 2}, {"total": 3},
	}}

	result, err := newTestLoop(reasoner, runner, 3).Run(context.Background(), testCtx, Request{Text: "endless"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.State != StateTruncated {
		t.Errorf("State = %s, want %s", result.State, StateTruncated)
	}
	if result.Trace.Len() != 3 {
		t.Errorf("trace len = %d, want 3", result.Trace.Len())
	}
	if !strings.Contains(result.FinalText, `"total":3`) {
		t.Errorf("FinalText = %q, want last observation included", result.FinalText)
	}
}

func TestLoopTruncatesWithEmptyTrace(t *testing.T) {
	// Budget of zero is normalized to the default, so force truncation with
	// a reasoner that always picks a tool and a runner that records nothing
	// useful.
	reasoner := &scriptedReasoner{decisions: []Decision{
		{Tool: ToolSearchTracks, Args: map[string]any{"query": "x"}},
	}}
	runner := &scriptedRunner{errs: []error{
		&ToolError{Kind: ToolErrTransport, Tool: ToolSearchTracks, Detail: "down"},
	}}

	result, err := newTestLoop(reasoner, runner, 1).Run(context.Background(), testCtx, Request{Text: "x"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.State != StateTruncated || result.FinalText == "" {
		t.Errorf("State = %s, FinalText = %q", result.State, result.FinalText)
	}
}

func TestLoopReasonerFailure(t *testing.T) {
	reasoner := &scriptedReasoner{
		decisions: []Decision{{Final: "unused"}},
		errs:      []error{errors.New("model unavailable")},
	}

	_, err := newTestLoop(reasoner, &scriptedRunner{}, 8).Run(context.Background(), testCtx, Request{Text: "x"})
	if !errors.Is(err, ErrOrchestration) {
		t.Errorf("Run() error = %v, want ErrOrchestration", err)
	}
}
