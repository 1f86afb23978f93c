package agent

import (
	"context"
	"strings"
	"testing"

	"golang.org/x/oauth2"

	"github.com/RahulPulidindi/tunesmith/internal/logging"
	"github.com/RahulPulidindi/tunesmith/internal/session"
)

func TestServiceProcessPlaylistResponse(t *testing.T) {
	ctx := context.Background()
	sessions := session.NewMemoryStore()
	sess, err := sessions.Create(ctx, &oauth2.Token{AccessToken: "at"}, "user1", "User One")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	reasoner := &scriptedReasoner{decisions: []Decision{
		{Thought: "create it", Tool: ToolCreatePlaylist, Args: map[string]any{"name": "Chill Vibes"}},
		{Final: "Made you a playlist called Chill Vibes!"},
	}}
	runner := &scriptedRunner{results: []map[string]any{playlistResult("pl1")}}
	svc := NewService(
		NewLoop(reasoner, runner, 8, logging.Nop()),
		NewClassifier(nil, 5, logging.Nop()),
		sessions,
		logging.Nop(),
	)

	resp, err := svc.Process(ctx, sess, "make me a chill playlist")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if !resp.Success || resp.Type != OutcomePlaylist {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.Playlist == nil || resp.Playlist.ID != "pl1" {
		t.Errorf("playlist = %+v", resp.Playlist)
	}
	if !strings.Contains(resp.Explanation, "create_playlist") {
		t.Errorf("Explanation = %q", resp.Explanation)
	}

	// The request text is cached for follow-ups.
	stored, err := sessions.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if stored.LastRequest != "make me a chill playlist" {
		t.Errorf("LastRequest = %q", stored.LastRequest)
	}
}

func TestServiceProcessGenericResponse(t *testing.T) {
	ctx := context.Background()
	sessions := session.NewMemoryStore()
	sess, err := sessions.Create(ctx, &oauth2.Token{AccessToken: "at"}, "user1", "User One")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	reasoner := &scriptedReasoner{decisions: []Decision{
		{Final: "I can only help with music and playlists."},
	}}
	svc := NewService(
		NewLoop(reasoner, &scriptedRunner{}, 8, logging.Nop()),
		NewClassifier(nil, 5, logging.Nop()),
		sessions,
		logging.Nop(),
	)

	resp, err := svc.Process(ctx, sess, "what's the weather?")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if resp.Type != OutcomeGeneric || resp.Message != "I can only help with music and playlists." {
		t.Errorf("resp = %+v", resp)
	}
	if resp.Playlist != nil {
		t.Errorf("playlist = %+v, want nil", resp.Playlist)
	}
}
