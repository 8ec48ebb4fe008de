package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/soralab/netfault/internal/analysis"
	"github.com/soralab/netfault/internal/collector"
	"github.com/soralab/netfault/internal/config"
	"github.com/soralab/netfault/internal/fault"
	"github.com/soralab/netfault/internal/store"
	"github.com/soralab/netfault/internal/topology"
)

// Server represents the API server
type Server struct {
	config     *config.Config
	router     *gin.Engine
	httpServer *http.Server
	handler    *Handler
	hub        *Hub
}

// NewServer creates the API server and wires the hub to the collector's
// sample stream.
func NewServer(cfg *config.Config, col *collector.Collector, st store.Store,
	eng *analysis.Engine, inj *fault.Injector, disc *topology.Discoverer) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(ErrorHandler())
	router.Use(RequestLogger())
	router.Use(CORS())

	handler := NewHandler(cfg, col, st, eng, inj, disc)

	hub := NewHub()
	hub.SetCollector(col)

	SetupRoutes(router, handler, hub)

	return &Server{
		config:  cfg,
		router:  router,
		handler: handler,
		hub:     hub,
	}
}

// Start starts the API server in a blocking manner
func (s *Server) Start(address string) error {
	s.httpServer = &http.Server{
		Addr:         address,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Printf("[API] Starting server on %s", address)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// StartAsync starts the API server in a goroutine and returns immediately
func (s *Server) StartAsync(address string) {
	go s.hub.Run()

	go func() {
		if err := s.Start(address); err != nil {
			log.Printf("[API] Server error: %v", err)
		}
	}()
}

// Shutdown gracefully shuts down the server with a timeout
func (s *Server) Shutdown(timeout time.Duration) error {
	if s.hub != nil {
		s.hub.Stop()
	}

	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	log.Println("[API] Shutting down server...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	log.Println("[API] Server stopped")
	return nil
}

// Router returns the underlying Gin router for testing or extension
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Handler returns the API handler for use by other components
func (s *Server) Handler() *Handler {
	return s.handler
}

// Hub returns the WebSocket hub for use by other components
func (s *Server) Hub() *Hub {
	return s.hub
}
