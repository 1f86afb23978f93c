// Package agent implements the request-orchestration pipeline: the bounded
// plan-act-observe loop over the Spotify tools, and the classification of its
// outcome.
package agent

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// maxObservationChars bounds how much of a tool result is rendered back to
// the reasoning process; larger results are elided to their key list.
const maxObservationChars = 500

// ToolCall records one tool invocation: its name, arguments, and either a
// result or an error. Immutable once recorded in a trace.
type ToolCall struct {
	Tool   string
	Args   map[string]any
	Result map[string]any
	Err    error
}

// Failed reports whether the call errored.
func (c ToolCall) Failed() bool { return c.Err != nil }

// Observation renders the call's outcome as text for the next reasoning step.
// Failures become observations too; the loop never hides them.
func (c ToolCall) Observation() string {
	if c.Err != nil {
		return "Error - " + c.Err.Error()
	}
	data, err := json.Marshal(c.Result)
	if err != nil || len(data) > maxObservationChars {
		return fmt.Sprintf("Received result (keys: %s)", strings.Join(sortedKeys(c.Result), ", "))
	}
	return string(data)
}

// Step is one orchestration iteration: the reasoning text and the tool call
// it decided on.
type Step struct {
	Thought string
	Call    ToolCall
}

// Trace is the ordered record of steps for one request. Insertion order is
// chronological.
type Trace struct {
	Steps []Step
}

// Append records a step.
func (t *Trace) Append(s Step) { t.Steps = append(t.Steps, s) }

// Len returns the number of recorded steps.
func (t *Trace) Len() int { return len(t.Steps) }

// LastObservation returns the most recent step's observation text, or ""
// for an empty trace.
func (t *Trace) LastObservation() string {
	if len(t.Steps) == 0 {
		return ""
	}
	return t.Steps[len(t.Steps)-1].Call.Observation()
}

// Explanation renders the whole trace as the action/observation report shown
// to the user alongside the outcome.
func (t *Trace) Explanation() string {
	var b strings.Builder
	for _, step := range t.Steps {
		args, _ := json.Marshal(step.Call.Args)
		fmt.Fprintf(&b, "Action: Called tool %q with input: %s\n", step.Call.Tool, args)
		fmt.Fprintf(&b, "Observation: %s\n", step.Call.Observation())
	}
	return strings.TrimRight(b.String(), "\n")
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
