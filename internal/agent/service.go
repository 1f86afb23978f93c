package agent

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/RahulPulidindi/tunesmith/internal/session"
)

// Response is the JSON payload returned for one processed request.
type Response struct {
	Success     bool             `json:"success"`
	Type        string           `json:"type,omitempty"`
	Playlist    *PlaylistOutcome `json:"playlist,omitempty"`
	Message     string           `json:"message,omitempty"`
	Explanation string           `json:"agent_steps_explanation,omitempty"`
}

// Service ties the loop and classifier together behind one entry point per
// user request.
type Service struct {
	loop       *Loop
	classifier *Classifier
	sessions   session.Store
	log        *log.Logger
}

// NewService builds the request service.
func NewService(loop *Loop, classifier *Classifier, sessions session.Store, logger *log.Logger) *Service {
	return &Service{loop: loop, classifier: classifier, sessions: sessions, log: logger}
}

// Process runs one natural-language request for the session and classifies
// the outcome. Orchestration and credential failures propagate to the caller
// for transport-level handling.
func (s *Service) Process(ctx context.Context, sess *session.Session, text string) (*Response, error) {
	tctx := ToolContext{
		SessionID: sess.ID,
		UserID:    sess.UserID,
		RequestID: uuid.New().String(),
	}

	result, err := s.loop.Run(ctx, tctx, Request{Text: text, Previous: sess.LastRequest})
	if err != nil {
		return nil, err
	}

	// Remember the request text for follow-ups like "add more like that".
	// Best effort; a storage hiccup must not fail the response.
	if err := s.sessions.UpdateLastRequest(ctx, sess.ID, text); err != nil {
		s.log.Warn("storing last request failed", "session_id", sess.ID, "error", err)
	}

	outcome := s.classifier.Classify(ctx, tctx, result.Trace, result.FinalText)
	resp := &Response{
		Success:     true,
		Type:        outcome.Type,
		Explanation: result.Trace.Explanation(),
	}
	if outcome.Type == OutcomePlaylist {
		resp.Playlist = outcome.Playlist
	} else {
		resp.Message = outcome.Message
	}
	return resp, nil
}
