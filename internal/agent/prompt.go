package agent

import (
	"encoding/json"
	"fmt"

	"github.com/RahulPulidindi/tunesmith/internal/llm"
)

const systemPrompt = `You are TuneSmith, a helpful music assistant that manages Spotify playlists for the current user.

You can search the Spotify catalog, create playlists, add and remove tracks, and inspect existing playlists using the tools provided.

Guidelines:
- When asked for a playlist, first search for suitable tracks, then create the playlist with those tracks in one create_playlist call.
- Prefer around 10-15 tracks for a playlist unless the user asks for a specific number.
- Use the exact track URIs returned by search_tracks; never invent URIs or IDs.
- When removing a track, identify its URI from the playlist's items first.
- When you are done, answer the user in one or two friendly sentences. If you created a playlist, mention its name.
- If a request is not about music or playlists, say so briefly instead of calling tools.`

// buildMessages renders the request and trace as a chat transcript: the
// system prompt, the user turn, then one assistant tool-call turn and one
// tool result turn per recorded step.
func buildMessages(req Request, trace *Trace) []llm.ChatMessage {
	msgs := make([]llm.ChatMessage, 0, 2+2*trace.Len())
	msgs = append(msgs, llm.ChatMessage{Role: "system", Content: systemPrompt})

	user := req.Text
	if req.Previous != "" {
		user = fmt.Sprintf("My previous request, for context: %s\n\nNew request: %s", req.Previous, req.Text)
	}
	msgs = append(msgs, llm.ChatMessage{Role: "user", Content: user})

	for i, step := range trace.Steps {
		callID := fmt.Sprintf("call_%d", i+1)
		args, _ := json.Marshal(step.Call.Args)
		msgs = append(msgs, llm.ChatMessage{
			Role:    "assistant",
			Content: step.Thought,
			ToolCalls: []llm.ToolCall{{
				ID:   callID,
				Type: "function",
				Function: llm.ToolCallFunction{
					Name:      step.Call.Tool,
					Arguments: string(args),
				},
			}},
		})
		msgs = append(msgs, llm.ChatMessage{
			Role:       "tool",
			ToolCallID: callID,
			Content:    step.Call.Observation(),
		})
	}
	return msgs
}
