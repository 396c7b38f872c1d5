// Package server provides the HTTP API for Kotae.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/kotae/internal/ask"
	"github.com/hyperjump/kotae/internal/compiler"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/settings"
	"github.com/hyperjump/kotae/internal/storage"
	"go.uber.org/zap"
)

// Deps bundles the services the HTTP surface exposes.
type Deps struct {
	Ask           *ask.Service
	Compiler      *compiler.Compiler
	Settings      *settings.Store
	Conversations *storage.ConversationStore
	Groups        *storage.GroupStore
	Files         *storage.FileStore
	Messages      *storage.MessageLog
	Debug         *storage.DebugLog
}

// Server is the HTTP server for the Kotae API.
type Server struct {
	deps   Deps
	layout storage.Layout
	config *config.Config
	logger *zap.Logger
	server *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(cfg *config.Config, deps Deps, logger *zap.Logger) *Server {
	return &Server{
		deps:   deps,
		layout: storage.Layout{Root: cfg.Files.Root},
		config: cfg,
		logger: logger,
	}
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))
	r.Use(middleware.Compress(5))

	r.Route("/api/rag", func(r chi.Router) {
		r.Post("/ask", s.handleAsk)
		r.Post("/compile", s.handleCompile)
		r.Post("/truncate", s.handleTruncate)
		r.Post("/embed", s.handleEmbed)
		r.Get("/stats", s.handleStats)
	})
	r.Get("/api/messages", s.handleMessagesList)
	r.Delete("/api/messages", s.handleMessagesClear)
	r.Get("/api/debug/{conversationId}", s.handleDebugList)
	r.Get("/api/settings", s.handleSettingsGet)
	r.Post("/api/settings", s.handleSettingsUpdate)
	r.Post("/api/upload", s.handleUpload)
	r.Get("/api/files", s.handleFilesList)
	r.Delete("/api/files", s.handleFilesDelete)
	r.Get("/api/document-groups", s.handleGroupsList)
	r.Post("/api/document-groups", s.handleGroupsCreate)
	r.Put("/api/document-groups", s.handleGroupsRename)
	r.Delete("/api/document-groups", s.handleGroupsDelete)
	r.Get("/api/conversation", s.handleConversationsList)
	r.Post("/api/conversation", s.handleConversationCreate)
	r.Get("/api/conversation/{id}", s.handleConversationGet)
	r.Put("/api/conversation/{id}", s.handleConversationRename)
	r.Delete("/api/conversation", s.handleConversationDelete)
	r.Get("/health", s.handleHealth)

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
