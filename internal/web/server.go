// Package web serves the status page, the JSON API and a live websocket
// stream for the tank controller.
package web

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Gamer08YT/ByteWaterlevel/internal/journal"
	"github.com/Gamer08YT/ByteWaterlevel/internal/logger"
	"github.com/Gamer08YT/ByteWaterlevel/internal/status"
	"github.com/Gamer08YT/ByteWaterlevel/internal/update"
)

// RelayCommander applies manual relay commands through the control loop.
type RelayCommander interface {
	// SetRelay switches channel id. A positive d arms an auto-off after d.
	SetRelay(ctx context.Context, id int, on bool, d time.Duration) error
}

// EventLister reads the event journal.
type EventLister interface {
	List(ctx context.Context, f journal.Filter) ([]journal.Entry, error)
}

// UpdateStatus reports the last firmware update check.
type UpdateStatus interface {
	Last() update.Result
}

// Deps are the collaborators behind the routes. Events and Updates may be
// nil when those features are disabled.
type Deps struct {
	Tracker  *status.Tracker
	Relays   RelayCommander
	Events   EventLister
	Updates  UpdateStatus
	Admin    bool
	Password string
}

// Server serves the web interface over HTTP.
type Server struct {
	httpServer *http.Server
	deps       Deps
	log        *logger.Logger
}

// New creates a Server listening on addr.
func New(addr string, deps Deps, log *logger.Logger) *Server {
	s := &Server{deps: deps, log: log}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler. Useful for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/", s.handleIndex)
	router.GET("/index.html", s.handleIndex)
	router.GET("/index.json", s.handleStatus)
	router.GET("/health", s.handleHealth)
	router.GET("/ws", s.handleWS)

	api := router.Group("/api")
	{
		api.GET("/status", s.handleStatus)
		api.GET("/relay/:id", s.handleGetRelay)
		api.POST("/relay/:id", s.adminOnly(), s.handleSetRelay)
		api.GET("/events", s.handleEvents)
		api.GET("/update", s.handleUpdate)
	}
	return router
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
