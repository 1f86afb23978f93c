package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/RahulPulidindi/tunesmith/internal/llm"
)

type fakeChat struct {
	resp llm.ChatResponse
	err  error
	got  []llm.ChatMessage
}

func (f *fakeChat) ChatWithTools(_ context.Context, messages []llm.ChatMessage, _ []llm.Tool) (llm.ChatResponse, error) {
	f.got = messages
	return f.resp, f.err
}

func TestNextStepToolCall(t *testing.T) {
	chat := &fakeChat{resp: llm.ChatResponse{
		Content: "Searching first.",
		ToolCalls: []llm.ToolCall{{
			ID:   "call_abc",
			Type: "function",
			Function: llm.ToolCallFunction{
				Name:      ToolSearchTracks,
				Arguments: `{"query":"lofi","limit":5}`,
			},
		}},
	}}
	r := NewLLMReasoner(chat, nil)

	d, err := r.NextStep(context.Background(), Request{Text: "make a lofi playlist"}, &Trace{})
	if err != nil {
		t.Fatalf("NextStep() error = %v", err)
	}
	if d.IsFinal() {
		t.Fatal("decision should not be final")
	}
	if d.Tool != ToolSearchTracks || d.Args["query"] != "lofi" {
		t.Errorf("decision = %+v", d)
	}
	if d.Args["limit"] != float64(5) {
		t.Errorf("limit arg = %v (%T)", d.Args["limit"], d.Args["limit"])
	}
}

func TestNextStepFinalAnswer(t *testing.T) {
	chat := &fakeChat{resp: llm.ChatResponse{Content: "All done, enjoy!"}}
	d, err := NewLLMReasoner(chat, nil).NextStep(context.Background(), Request{Text: "x"}, &Trace{})
	if err != nil {
		t.Fatalf("NextStep() error = %v", err)
	}
	if !d.IsFinal() || d.Final != "All done, enjoy!" {
		t.Errorf("decision = %+v", d)
	}
}

func TestNextStepMalformedArguments(t *testing.T) {
	chat := &fakeChat{resp: llm.ChatResponse{
		ToolCalls: []llm.ToolCall{{
			Function: llm.ToolCallFunction{Name: ToolSearchTracks, Arguments: `{"query":`},
		}},
	}}
	if _, err := NewLLMReasoner(chat, nil).NextStep(context.Background(), Request{Text: "x"}, &Trace{}); err == nil {
		t.Error("NextStep() should fail on malformed arguments")
	}
}

func TestNextStepEmptyResponse(t *testing.T) {
	chat := &fakeChat{resp: llm.ChatResponse{Content: "   "}}
	if _, err := NewLLMReasoner(chat, nil).NextStep(context.Background(), Request{Text: "x"}, &Trace{}); err == nil {
		t.Error("NextStep() should fail on empty response")
	}
}

func TestBuildMessagesTranscript(t *testing.T) {
	trace := &Trace{}
	trace.Append(Step{
		Thought: "Need tracks first.",
		Call: ToolCall{
			Tool:   ToolSearchTracks,
			Args:   map[string]any{"query": "jazz"},
			Result: map[string]any{"total": 2},
		},
	})

	msgs := buildMessages(Request{Text: "make a jazz playlist", Previous: "find me jazz"}, trace)
	roles := make([]string, len(msgs))
	for i, m := range msgs {
		roles[i] = m.Role
	}
	want := []string{"system", "user", "assistant", "tool"}
	if len(roles) != len(want) {
		t.Fatalf("roles = %v, want %v", roles, want)
	}
	for i := range want {
		if roles[i] != want[i] {
			t.Fatalf("roles = %v, want %v", roles, want)
		}
	}

	if !strings.Contains(msgs[1].Content, "find me jazz") || !strings.Contains(msgs[1].Content, "make a jazz playlist") {
		t.Errorf("user message = %q, want previous and new request", msgs[1].Content)
	}
	if len(msgs[2].ToolCalls) != 1 || msgs[2].ToolCalls[0].Function.Name != ToolSearchTracks {
		t.Errorf("assistant message = %+v", msgs[2])
	}
	if msgs[3].ToolCallID != msgs[2].ToolCalls[0].ID {
		t.Errorf("tool call IDs are not paired: %q vs %q", msgs[3].ToolCallID, msgs[2].ToolCalls[0].ID)
	}
	if msgs[3].Content != `{"total":2}` {
		t.Errorf("tool message = %q", msgs[3].Content)
	}
}
