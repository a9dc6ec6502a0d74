package services

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"aktis-crashsync-jira/internal/common"
	"aktis-crashsync-jira/internal/handlers"
	"aktis-crashsync-jira/internal/interfaces"
	"aktis-crashsync-jira/internal/middleware"

	"github.com/ternarybob/arbor"
)

// webServer hosts the service-hook dispatch surface and the monitoring
// endpoints
type webServer struct {
	config       *common.Config
	storage      interfaces.Storage
	server       *http.Server
	logger       arbor.ILogger
	apiHandlers  *handlers.APIHandlers
	hookHandlers *handlers.HookHandlers
	hub          *handlers.ActivityHub
	running      bool
	startTime    time.Time
}

// NewWebServer creates a new web server instance
func NewWebServer(cfg *common.Config, bridge interfaces.Bridge, storage interfaces.Storage, logger arbor.ILogger) (interfaces.WebService, error) {
	mux := http.NewServeMux()

	// Activity hub first (hook handlers broadcast through it)
	hub := handlers.NewActivityHub(logger)

	apiHandlers := handlers.NewAPIHandlers(cfg, storage, logger)
	hookHandlers := handlers.NewHookHandlers(cfg, bridge, storage, logger, hub)

	ws := &webServer{
		config:       cfg,
		storage:      storage,
		logger:       logger,
		apiHandlers:  apiHandlers,
		hookHandlers: hookHandlers,
		hub:          hub,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
			Handler: mux,
		},
	}

	// Create middleware chain
	logMiddleware := middleware.Logging(logger)
	corsMiddleware := middleware.CORS

	// Service-hook dispatch endpoints
	mux.HandleFunc("/hooks/impact", logMiddleware(corsMiddleware(hookHandlers.ImpactHandler)))
	mux.HandleFunc("/hooks/verify", logMiddleware(corsMiddleware(hookHandlers.VerifyHandler)))
	mux.HandleFunc("/hooks/issue", logMiddleware(corsMiddleware(hookHandlers.IssueHandler)))
	mux.HandleFunc("/hooks/resolution", logMiddleware(corsMiddleware(hookHandlers.ResolutionHandler)))

	// Monitoring endpoints
	mux.HandleFunc("/health", logMiddleware(corsMiddleware(apiHandlers.HealthHandler)))
	mux.HandleFunc("/version", logMiddleware(corsMiddleware(apiHandlers.VersionHandler)))
	mux.HandleFunc("/status", logMiddleware(corsMiddleware(apiHandlers.StatusHandler)))
	mux.HandleFunc("/config", logMiddleware(corsMiddleware(apiHandlers.ConfigHandler)))

	// WebSocket activity stream
	mux.HandleFunc("/ws", corsMiddleware(hub.WebSocketHandler))

	return ws, nil
}

// Start starts the web server
func (ws *webServer) Start(ctx context.Context) error {
	ws.running = true
	ws.startTime = time.Now()

	go func() {
		ws.logger.Info().Int("port", ws.config.Server.Port).Msg("Starting web server")
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			ws.logger.Error().Err(err).Msg("Web server error")
		}
	}()
	return nil
}

// Stop stops the web server
func (ws *webServer) Stop() error {
	ws.running = false

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ws.logger.Info().Msg("Shutting down web server")
	return ws.server.Shutdown(ctx)
}

// IsRunning returns true if the web server is running
func (ws *webServer) IsRunning() bool {
	return ws.running
}
