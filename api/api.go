package api

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/chrysalislabs/chrysalis/pkg/agent"
)

// Server is the API server for one memory replica. All memory operations go
// through the agent facade so the HTTP surface and the CLI behave identically.
type Server struct {
	config Config
	mem    *agent.AgentMemory
	logger *zap.Logger
	app    *fiber.App
}

// NewServer creates a new API server.
// The agent memory facade is injected to allow sharing with other components
// (e.g., the background sync loop).
func NewServer(config Config, mem *agent.AgentMemory, logger *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config: config,
		mem:    mem,
		logger: logger,
		app:    app,
	}

	app.Get("/ping", s.handlePing)
	app.Get("/stats", s.handleStats)
	app.Post("/memories", s.handleCreateMemory)
	app.Get("/memories", s.handleListMemories)
	app.Get("/memories/:id", s.handleGetMemory)
	app.Patch("/memories/:id", s.handleUpdateMemory)
	app.Post("/memories/:id/access", s.handleRecordAccess)
	app.Get("/recall", s.handleRecall)
	app.Post("/sync", s.handleSync)
	app.Post("/sync/pull", s.handlePull)

	return s
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		zap.String("listen", s.config.ListenAddr),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
