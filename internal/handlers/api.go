package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"aktis-crashsync-jira/internal/common"
	"aktis-crashsync-jira/internal/interfaces"
	"aktis-crashsync-jira/internal/models"

	"github.com/ternarybob/arbor"
)

// APIHandlers contains the monitoring endpoint handlers
type APIHandlers struct {
	config    *common.Config
	storage   interfaces.Storage
	logger    arbor.ILogger
	startTime time.Time
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Build     string    `json:"build"`
	Uptime    float64   `json:"uptime_seconds"`
	Services  struct {
		Database bool `json:"database"`
	} `json:"services"`
}

// VersionResponse represents version information
type VersionResponse struct {
	Version string `json:"version"`
	Build   string `json:"build"`
	Commit  string `json:"commit"`
}

// StatusResponse represents the bridge status response
type StatusResponse struct {
	Bridge struct {
		Running bool    `json:"running"`
		Uptime  float64 `json:"uptime"`
	} `json:"bridge"`
	Apps []*models.AppDeliveryStats `json:"apps"`
}

// ConfigResponse represents the configuration display response. Per-request
// Jira credentials arrive in hook envelopes and are never part of this.
type ConfigResponse struct {
	Server      *common.ServerConfig      `json:"server"`
	Platform    *common.PlatformConfig    `json:"platform"`
	Integration *common.IntegrationConfig `json:"integration"`
	Storage     *common.StorageConfig     `json:"storage"`
	Logging     *common.LoggingConfig     `json:"logging"`
}

// NewAPIHandlers creates a new API handlers instance
func NewAPIHandlers(config *common.Config, storage interfaces.Storage, logger arbor.ILogger) *APIHandlers {
	return &APIHandlers{
		config:    config,
		storage:   storage,
		logger:    logger,
		startTime: time.Now(),
	}
}

// HealthHandler returns system health status
func (h *APIHandlers) HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	health := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   common.GetVersion(),
		Build:     common.GetBuild(),
		Uptime:    time.Since(h.startTime).Seconds(),
	}

	health.Services.Database = h.testDatabaseConnection()
	if !health.Services.Database {
		health.Status = "degraded"
	}

	if err := json.NewEncoder(w).Encode(health); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode health response")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// VersionHandler returns version information
func (h *APIHandlers) VersionHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	version := VersionResponse{
		Version: common.GetVersion(),
		Build:   common.GetBuild(),
		Commit:  common.GetGitCommit(),
	}

	if err := json.NewEncoder(w).Encode(version); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode version response")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// StatusHandler returns per-application delivery statistics
func (h *APIHandlers) StatusHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var status StatusResponse
	status.Bridge.Running = true
	status.Bridge.Uptime = time.Since(h.startTime).Seconds()

	stats, err := h.storage.DeliveryStats()
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to load delivery stats")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	for _, app := range stats {
		status.Apps = append(status.Apps, app)
	}

	if err := json.NewEncoder(w).Encode(status); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode status response")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// ConfigHandler returns the active configuration
func (h *APIHandlers) ConfigHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	resp := ConfigResponse{
		Server:      &h.config.Server,
		Platform:    &h.config.Platform,
		Integration: &h.config.Integration,
		Storage:     &h.config.Storage,
		Logging:     &h.config.Logging,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode config response")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// testDatabaseConnection verifies the store answers a read
func (h *APIHandlers) testDatabaseConnection() bool {
	if h.storage == nil {
		return false
	}
	_, err := h.storage.DeliveryStats()
	return err == nil
}
