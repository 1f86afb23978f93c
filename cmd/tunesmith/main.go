// Command tunesmith runs the playlist agent API server.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"

	"github.com/RahulPulidindi/tunesmith/internal/agent"
	"github.com/RahulPulidindi/tunesmith/internal/auth"
	"github.com/RahulPulidindi/tunesmith/internal/config"
	"github.com/RahulPulidindi/tunesmith/internal/db"
	"github.com/RahulPulidindi/tunesmith/internal/llm"
	"github.com/RahulPulidindi/tunesmith/internal/logging"
	"github.com/RahulPulidindi/tunesmith/internal/playlist"
	"github.com/RahulPulidindi/tunesmith/internal/session"
	"github.com/RahulPulidindi/tunesmith/internal/spotify"
	"github.com/RahulPulidindi/tunesmith/internal/web"
)

func main() {
	app := &cli.Command{
		Name:    "tunesmith",
		Usage:   "Natural-language Spotify playlist agent",
		Version: "0.1.0",
		Commands: []*cli.Command{
			serveCommand(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		charmlog.Fatal("application error", "error", err)
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the API server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address, overrides configuration",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := config.Load(cmd.String("config"))
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
			if addr := cmd.String("addr"); addr != "" {
				cfg.Server.Addr = addr
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger := logging.New(os.Stderr, cfg.Logging.Level)

	sessions, cleanup, err := buildSessionStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	credentials := auth.NewStore(cfg.Spotify.ClientID, cfg.Spotify.ClientSecret, sessions, logger)

	authenticator := spotifyauth.New(
		spotifyauth.WithClientID(cfg.Spotify.ClientID),
		spotifyauth.WithClientSecret(cfg.Spotify.ClientSecret),
		spotifyauth.WithRedirectURL(cfg.Spotify.RedirectURI),
		spotifyauth.WithScopes(
			spotifyauth.ScopePlaylistModifyPublic,
			spotifyauth.ScopePlaylistModifyPrivate,
			spotifyauth.ScopePlaylistReadPrivate,
		),
	)

	toolset := agent.NewToolset(
		credentials,
		func(token *oauth2.Token) agent.CatalogClient {
			return spotify.ClientFor(token)
		},
		agent.ToolsetConfig{
			PreviewLimit:    cfg.Agent.PreviewLimit,
			PageLimit:       cfg.Agent.PageLimit,
			CallTimeout:     cfg.ToolTimeout(),
			RateLimitPerSec: cfg.Agent.RateLimitPerSec,
		},
		logger,
	)

	chatOpts := []llm.Option{llm.WithModel(cfg.OpenAI.Model)}
	if cfg.OpenAI.BaseURL != "" {
		chatOpts = append(chatOpts, llm.WithBaseURL(cfg.OpenAI.BaseURL))
	}
	chat := llm.NewClient(cfg.OpenAI.APIKey, chatOpts...)

	reasoner := agent.NewLLMReasoner(chat, toolset.Definitions())
	loop := agent.NewLoop(reasoner, toolset, cfg.Agent.MaxSteps, logger)
	classifier := agent.NewClassifier(toolset, cfg.Agent.PreviewLimit, logger)
	agentSvc := agent.NewService(loop, classifier, sessions, logger)
	playlistSvc := playlist.NewService(toolset, cfg.Agent.PageLimit, logger)

	lookup := func(ctx context.Context, token *oauth2.Token) (string, string, error) {
		return spotify.ClientFor(token).CurrentUser(ctx)
	}

	handlers := web.NewHandlers(authenticator, sessions, agentSvc, playlistSvc, lookup, logger)
	return web.NewServer(cfg.Server.Addr, handlers, logger).Run()
}

// buildSessionStore picks Postgres when a database URL is configured and
// falls back to the in-memory store otherwise.
func buildSessionStore(ctx context.Context, cfg *config.Config, logger *charmlog.Logger) (session.Store, func(), error) {
	if cfg.Database.URL == "" {
		logger.Info("no database configured, sessions are in-memory")
		return session.NewMemoryStore(), func() {}, nil
	}

	database, err := db.New(ctx, cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := database.EnsureSchema(ctx); err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("preparing database schema: %w", err)
	}
	logger.Info("sessions stored in postgres")

	sweepCtx, stopSweep := context.WithCancel(ctx)
	go sweepExpiredSessions(sweepCtx, database, logger)

	cleanup := func() {
		stopSweep()
		database.Close()
	}
	return session.NewPGStore(database), cleanup, nil
}

// sweepExpiredSessions periodically deletes sessions past their TTL.
func sweepExpiredSessions(ctx context.Context, database *db.DB, logger *charmlog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := database.Sessions().DeleteExpired(ctx)
			if err != nil {
				logger.Warn("session sweep failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("expired sessions removed", "count", n)
			}
		}
	}
}
