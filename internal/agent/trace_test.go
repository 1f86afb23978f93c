package agent

import (
	"errors"
	"strings"
	"testing"
)

func TestObservationRendersResult(t *testing.T) {
	call := ToolCall{
		Tool:   ToolGetPlaylist,
		Result: map[string]any{"id": "pl1", "name": "Focus"},
	}
	got := call.Observation()
	if !strings.Contains(got, `"id":"pl1"`) || !strings.Contains(got, `"name":"Focus"`) {
		t.Errorf("Observation() = %q, want JSON with id and name", got)
	}
}

func TestObservationRendersError(t *testing.T) {
	call := ToolCall{Tool: ToolSearchTracks, Err: errors.New("boom")}
	if got := call.Observation(); got != "Error - boom" {
		t.Errorf("Observation() = %q, want %q", got, "Error - boom")
	}
}

func TestObservationElidesLargeResults(t *testing.T) {
	call := ToolCall{
		Tool: ToolGetPlaylistItems,
		Result: map[string]any{
			"tracks": strings.Repeat("x", maxObservationChars+1),
			"total":  200,
		},
	}
	got := call.Observation()
	if !strings.HasPrefix(got, "Received result (keys:") {
		t.Fatalf("Observation() = %q, want elided key list", got)
	}
	if !strings.Contains(got, "total") || !strings.Contains(got, "tracks") {
		t.Errorf("Observation() = %q, want both keys listed", got)
	}
}

func TestExplanationFormat(t *testing.T) {
	trace := &Trace{}
	trace.Append(Step{Call: ToolCall{
		Tool:   ToolSearchTracks,
		Args:   map[string]any{"query": "lofi"},
		Result: map[string]any{"total": 2},
	}})
	trace.Append(Step{Call: ToolCall{
		Tool: ToolCreatePlaylist,
		Args: map[string]any{"name": "Chill"},
		Err:  errors.New("rate limited"),
	}})

	got := trace.Explanation()
	lines := strings.Split(got, "\n")
	if len(lines) != 4 {
		t.Fatalf("Explanation() has %d lines, want 4:\n%s", len(lines), got)
	}
	if !strings.HasPrefix(lines[0], `Action: Called tool "search_tracks"`) {
		t.Errorf("line 0 = %q", lines[0])
	}
	if lines[3] != "Observation: Error - rate limited" {
		t.Errorf("line 3 = %q", lines[3])
	}
}

func TestLastObservationEmptyTrace(t *testing.T) {
	trace := &Trace{}
	if got := trace.LastObservation(); got != "" {
		t.Errorf("LastObservation() = %q, want empty", got)
	}
}
