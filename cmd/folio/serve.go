package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/yasirdev/folio/internal/api"
	"github.com/yasirdev/folio/internal/auth"
	"github.com/yasirdev/folio/internal/chat"
	"github.com/yasirdev/folio/internal/config"
	"github.com/yasirdev/folio/internal/contact"
	"github.com/yasirdev/folio/internal/docstore"
	"github.com/yasirdev/folio/internal/feed"
	"github.com/yasirdev/folio/internal/provider"
	"github.com/yasirdev/folio/internal/resume"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the folio server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "folio version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	slog.SetDefault(slog.New(cfg.SlogHandler(os.Stderr)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open the document store.
	store, err := docstore.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening docstore: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing docstore: %v\n", err)
		}
	}()

	// Resume-backed assistant persona.
	persona := resume.NewManager(cfg.Resume.Path, 0)
	systemPrompt := persona.SystemPrompt()

	// Chat provider: canned replies in mock mode, OpenAI otherwise.
	var prov provider.Provider
	if cfg.Chat.MockMode {
		slog.Info("chat running in mock mode")
		prov = provider.NewMock()
	} else if cfg.Chat.BaseURL != "" {
		prov = provider.NewClientWithBaseURL(cfg.Chat.OpenAIAPIKey, cfg.Chat.Model, systemPrompt, cfg.Chat.BaseURL)
	} else {
		prov = provider.NewClient(cfg.Chat.OpenAIAPIKey, cfg.Chat.Model, systemPrompt)
	}

	authSvc := auth.NewService(cfg.Admin.Username, cfg.Admin.Password, cfg.Admin.SessionSecret)
	unobserve := authSvc.OnStateChange(func(signedIn bool) {
		slog.Info("admin session state", "signed_in", signedIn)
	})
	defer unobserve()

	// Live submissions feed.
	submissionsFeed := feed.New(store, authSvc, func(n feed.Notice) {
		slog.Warn("feed notice", "kind", n.Kind, "message", n.Message)
	})
	if err := submissionsFeed.Start(ctx); err != nil {
		slog.Warn("initial submissions fetch failed", "error", err)
	}
	defer submissionsFeed.Stop()

	// Chat sessions persist their history under the data dir.
	sessions := api.NewSessionRegistry(func(id string) *chat.Session {
		return chat.NewSession(prov, chat.NewFileCache(cfg.Storage.DataDir, id), func(n chat.Notice) {
			slog.Warn("chat notice", "session", id, "kind", n.Kind, "message", n.Message)
		})
	})
	defer sessions.Close()

	handler := api.NewAppHandler(api.AppDeps{
		Intake:   contact.NewIntake(store),
		Feed:     submissionsFeed,
		Auth:     authSvc,
		Sessions: sessions,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// MCP server over stdio in a goroutine.
	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Store:        store,
		Provider:     prov,
		SystemPrompt: systemPrompt,
	})
	stdioSrv := server.NewStdioServer(mcpSrv)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		fmt.Fprintf(os.Stderr, "folio listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		slog.Info("MCP server started (stdio transport)")
		if err := stdioSrv.Listen(gctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		fmt.Fprintln(os.Stderr, "shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
