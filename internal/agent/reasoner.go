package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/RahulPulidindi/tunesmith/internal/llm"
)

// ChatClient is the slice of the LLM client the reasoner needs.
type ChatClient interface {
	ChatWithTools(ctx context.Context, messages []llm.ChatMessage, tools []llm.Tool) (llm.ChatResponse, error)
}

// LLMReasoner decides each step by asking a chat-completions model, offering
// it the toolset's function definitions.
type LLMReasoner struct {
	client ChatClient
	tools  []llm.Tool
}

// NewLLMReasoner builds a reasoner over the given client and tool
// definitions.
func NewLLMReasoner(client ChatClient, tools []llm.Tool) *LLMReasoner {
	return &LLMReasoner{client: client, tools: tools}
}

// NextStep asks the model for the next move. A tool call wins over content
// when the model returns both; plain content is a final answer.
func (r *LLMReasoner) NextStep(ctx context.Context, req Request, trace *Trace) (Decision, error) {
	resp, err := r.client.ChatWithTools(ctx, buildMessages(req, trace), r.tools)
	if err != nil {
		return Decision{}, fmt.Errorf("reasoning step: %w", err)
	}

	if len(resp.ToolCalls) > 0 {
		call := resp.ToolCalls[0]
		args := map[string]any{}
		if raw := strings.TrimSpace(call.Function.Arguments); raw != "" {
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				return Decision{}, fmt.Errorf("malformed arguments for tool %s: %w", call.Function.Name, err)
			}
		}
		return Decision{Thought: resp.Content, Tool: call.Function.Name, Args: args}, nil
	}

	if strings.TrimSpace(resp.Content) == "" {
		return Decision{}, errors.New("model returned neither an answer nor a tool call")
	}
	return Decision{Final: resp.Content}, nil
}
