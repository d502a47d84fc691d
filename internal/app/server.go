package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/econlens/econlens/internal/api/handlers"
	appMiddleware "github.com/econlens/econlens/internal/api/middlewares"
	"github.com/econlens/econlens/internal/config"
	"github.com/econlens/econlens/internal/core"
	"github.com/econlens/econlens/internal/core/chat"
	"github.com/econlens/econlens/internal/core/database"
	"github.com/econlens/econlens/internal/core/ingest"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
}

// NewServer builds and wires all routes.
func NewServer(
	cfg *config.Config,
	db *database.DatabaseClient,
	contextCache core.ContextCache,
	vectors core.VectorStore,
	pipeline *ingest.Pipeline,
	orchestrator *chat.Orchestrator,
) *Server {
	vaultHandler := handlers.NewVaultHandler(db, db, contextCache, vectors)
	docHandler := handlers.NewDocumentHandler(db, vectors, pipeline)
	chatHandler := handlers.NewChatHandler(orchestrator, db)
	messageHandler := handlers.NewMessageHandler(db)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(5 * time.Minute))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8888"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(api chi.Router) {
		api.Group(func(protected chi.Router) {
			protected.Use(appMiddleware.JWTMiddleware(cfg.JWTSecret))

			protected.Post("/vaults", vaultHandler.CreateVault)
			protected.Get("/vaults", vaultHandler.ListVaults)
			protected.Delete("/vaults/{vaultID}", vaultHandler.DeleteVault)

			protected.Post("/vaults/{vaultID}/documents", docHandler.UploadDocument)
			protected.Get("/vaults/{vaultID}/documents", docHandler.ListDocuments)
			protected.Delete("/vaults/{vaultID}/documents/{documentID}", docHandler.DeleteDocument)

			protected.Post("/vaults/{vaultID}/chat", chatHandler.ChatVault)
			protected.Post("/workspaces/{workspaceID}/chat", chatHandler.ChatWorkspace)

			protected.Patch("/messages/{messageID}", messageHandler.Feedback)
		})
	})

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	return &Server{httpServer: httpSrv}
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() {
	log.Info().Str("addr", s.httpServer.Addr).Msg("http server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server error")
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("shutting down http server")
	return s.httpServer.Shutdown(ctx)
}
