package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/RahulPulidindi/tunesmith/internal/auth"
)

// ErrOrchestration marks internal failures of the loop itself. Callers
// surface it as a generic failure without internal detail.
var ErrOrchestration = errors.New("agent orchestration failed")

// DefaultMaxSteps bounds how many tool invocations one request may spend.
const DefaultMaxSteps = 8

// State describes how a run ended.
type State string

const (
	// StateAnswered means the reasoner produced a final answer within the
	// step budget.
	StateAnswered State = "answered"
	// StateTruncated means the step budget ran out first.
	StateTruncated State = "truncated"
)

// Request is one natural-language request plus the session's previous
// request text, if any, for follow-up context.
type Request struct {
	Text     string
	Previous string
}

// Decision is the reasoner's verdict for one step: either a tool to call or
// a final answer. A decision with no tool name is final.
type Decision struct {
	Thought string
	Tool    string
	Args    map[string]any
	Final   string
}

// IsFinal reports whether the decision ends the run.
func (d Decision) IsFinal() bool { return d.Tool == "" }

// Reasoner chooses the next step given the request and everything observed
// so far.
type Reasoner interface {
	NextStep(ctx context.Context, req Request, trace *Trace) (Decision, error)
}

// ToolRunner executes one named tool invocation.
type ToolRunner interface {
	Call(ctx context.Context, tctx ToolContext, name string, args map[string]any) (map[string]any, error)
}

// Loop drives the bounded plan-act-observe cycle for one request at a time.
type Loop struct {
	reasoner Reasoner
	tools    ToolRunner
	maxSteps int
	log      *log.Logger
}

// NewLoop builds a Loop. A non-positive maxSteps falls back to
// DefaultMaxSteps.
func NewLoop(reasoner Reasoner, tools ToolRunner, maxSteps int, logger *log.Logger) *Loop {
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	return &Loop{reasoner: reasoner, tools: tools, maxSteps: maxSteps, log: logger}
}

// RunResult is the outcome of one run: the final text, how the run ended,
// and the full trace for classification and reporting.
type RunResult struct {
	FinalText string
	State     State
	Trace     *Trace
}

// Run executes the loop until the reasoner answers or the step budget runs
// out. Tool failures become observations and the loop continues; credential
// failures and reasoner failures abort the run.
func (l *Loop) Run(ctx context.Context, tctx ToolContext, req Request) (*RunResult, error) {
	trace := &Trace{}
	logger := l.log.With("request_id", tctx.RequestID, "session_id", tctx.SessionID)

	for range l.maxSteps {
		decision, err := l.reasoner.NextStep(ctx, req, trace)
		if err != nil {
			logger.Error("reasoning step failed", "step", trace.Len(), "error", err)
			return nil, fmt.Errorf("%w: %v", ErrOrchestration, err)
		}
		if decision.IsFinal() {
			logger.Info("request answered", "steps", trace.Len())
			return &RunResult{FinalText: decision.Final, State: StateAnswered, Trace: trace}, nil
		}

		result, callErr := l.tools.Call(ctx, tctx, decision.Tool, decision.Args)
		if callErr != nil && terminal(callErr) {
			logger.Warn("credentials invalid mid-run", "tool", decision.Tool)
			return nil, callErr
		}
		trace.Append(Step{
			Thought: decision.Thought,
			Call:    ToolCall{Tool: decision.Tool, Args: decision.Args, Result: result, Err: callErr},
		})
		if callErr != nil {
			logger.Warn("tool call failed", "tool", decision.Tool, "error", callErr)
			continue
		}
		logger.Debug("tool call completed", "tool", decision.Tool, "step", trace.Len())
	}

	logger.Info("step budget exhausted", "steps", trace.Len())
	return &RunResult{FinalText: truncatedAnswer(trace), State: StateTruncated, Trace: trace}, nil
}

// terminal reports whether a tool failure should abort the run instead of
// becoming an observation.
func terminal(err error) bool {
	return errors.Is(err, auth.ErrReauthRequired) || errors.Is(err, auth.ErrNotAuthenticated)
}

// truncatedAnswer synthesizes a best-effort answer when the budget ran out,
// leaning on whatever the last tool call observed.
func truncatedAnswer(trace *Trace) string {
	last := trace.LastObservation()
	if last == "" {
		return "I couldn't finish working on that request. Please try again, perhaps with a simpler request."
	}
	return fmt.Sprintf("I ran out of steps before fully finishing. Here is what the last action found: %s", last)
}
