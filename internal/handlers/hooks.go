package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"aktis-crashsync-jira/internal/common"
	"aktis-crashsync-jira/internal/interfaces"
	"aktis-crashsync-jira/internal/models"

	"github.com/ternarybob/arbor"
)

// Hook operation names as recorded in delivery audit records.
const (
	OpImpact     = "impact"
	OpVerify     = "verify"
	OpIssue      = "issue"
	OpResolution = "resolution"
)

// HookEnvelope is the dispatch envelope the crash platform posts to every
// hook endpoint: which application fired, the operator's integration
// settings, and the operation payload.
type HookEnvelope struct {
	AppID   string            `json:"app_id"`
	Config  models.HookConfig `json:"config"`
	Payload json.RawMessage   `json:"payload"`
}

// ErrorResponse is the body returned for hard hook failures.
type ErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// HookHandlers dispatches crash-platform service-hook deliveries to the
// bridge and records their outcomes. This layer is the "caller" of the sync
// core: it owns correlation bookkeeping and the false-sentinel boundary.
type HookHandlers struct {
	config  *common.Config
	bridge  interfaces.Bridge
	storage interfaces.Storage
	logger  arbor.ILogger
	hub     *ActivityHub
}

// NewHookHandlers creates the service-hook dispatch handlers
func NewHookHandlers(config *common.Config, bridge interfaces.Bridge, storage interfaces.Storage, logger arbor.ILogger, hub *ActivityHub) *HookHandlers {
	return &HookHandlers{
		config:  config,
		bridge:  bridge,
		storage: storage,
		logger:  logger,
		hub:     hub,
	}
}

// ImpactHandler handles crash-impact events by opening a Jira issue and
// recording the returned correlation key.
func (h *HookHandlers) ImpactHandler(w http.ResponseWriter, r *http.Request) {
	envelope, ok := h.readEnvelope(w, r)
	if !ok {
		return
	}

	var event models.ImpactEvent
	if err := json.Unmarshal(envelope.Payload, &event); err != nil {
		http.Error(w, "Invalid impact payload", http.StatusBadRequest)
		return
	}

	created, err := h.bridge.CreateIssue(r.Context(), &envelope.Config, &event)
	if err != nil {
		h.recordDelivery(envelope.AppID, OpImpact, false, err.Error())
		h.writeError(w, err)
		return
	}

	h.recordDelivery(envelope.AppID, OpImpact, true, created.Key)
	if err := h.storage.SaveCorrelation(&models.CorrelationRecord{
		AppID:    envelope.AppID,
		IssueID:  created.ID,
		IssueKey: created.Key,
		Title:    event.Title,
	}); err != nil {
		// Jira already holds the issue; a failed audit write must not fail
		// the delivery.
		h.logger.Warn().Err(err).Str("issue_key", created.Key).Msg("Failed to record correlation")
	}

	h.hub.SendSyncUpdate("issue_created", created)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(created)
}

// VerifyHandler handles connection verification. The response is always
// HTTP 200 with a two-valued outcome; verification reports, it never fails.
func (h *HookHandlers) VerifyHandler(w http.ResponseWriter, r *http.Request) {
	envelope, ok := h.readEnvelope(w, r)
	if !ok {
		return
	}

	result := h.bridge.VerifyConnection(r.Context(), &envelope.Config, envelope.AppID)

	h.recordDelivery(envelope.AppID, OpVerify, result.OK, result.Message)
	h.hub.SendSyncUpdate("verification", result)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// IssueHandler returns the allow-listed snapshot of the correlated issue,
// or the literal false sentinel when the request could not be serviced.
func (h *HookHandlers) IssueHandler(w http.ResponseWriter, r *http.Request) {
	envelope, ok := h.readEnvelope(w, r)
	if !ok {
		return
	}

	var event models.ResolutionEvent
	if err := json.Unmarshal(envelope.Payload, &event); err != nil || event.JiraStoryID == "" {
		h.writeSentinel(w, envelope.AppID, OpIssue, "missing jiraStoryId")
		return
	}

	snapshot, err := h.bridge.FetchIssue(r.Context(), &envelope.Config, event.JiraStoryID)
	if err != nil {
		h.logger.Warn().Err(err).Str("story_id", event.JiraStoryID).Msg("Issue fetch failed")
		h.writeSentinel(w, envelope.AppID, OpIssue, err.Error())
		return
	}

	h.recordDelivery(envelope.AppID, OpIssue, true, event.JiraStoryID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snapshot)
}

// ResolutionHandler reconciles resolution state. A no-op sync answers true,
// a completed sync answers the fresh snapshot, and any failure collapses to
// the false sentinel so the platform's delivery pipeline never crashes.
func (h *HookHandlers) ResolutionHandler(w http.ResponseWriter, r *http.Request) {
	envelope, ok := h.readEnvelope(w, r)
	if !ok {
		return
	}

	var event models.ResolutionEvent
	if err := json.Unmarshal(envelope.Payload, &event); err != nil || event.JiraStoryID == "" {
		h.writeSentinel(w, envelope.AppID, OpResolution, "missing jiraStoryId")
		return
	}

	snapshot, err := h.bridge.SyncResolution(r.Context(), &envelope.Config, &event)
	if err != nil {
		h.logger.Warn().Err(err).Str("story_id", event.JiraStoryID).Msg("Resolution sync failed")
		h.writeSentinel(w, envelope.AppID, OpResolution, err.Error())
		return
	}

	h.recordDelivery(envelope.AppID, OpResolution, true, event.JiraStoryID)
	h.hub.SendSyncUpdate("resolution_synced", map[string]interface{}{
		"app_id":   envelope.AppID,
		"story_id": event.JiraStoryID,
		"noop":     snapshot == nil,
	})

	w.Header().Set("Content-Type", "application/json")
	if snapshot == nil {
		// Both sides already agreed; nothing was transitioned.
		json.NewEncoder(w).Encode(true)
		return
	}
	json.NewEncoder(w).Encode(snapshot)
}

// readEnvelope decodes and validates the dispatch envelope.
func (h *HookHandlers) readEnvelope(w http.ResponseWriter, r *http.Request) (*HookEnvelope, bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return nil, false
	}

	var envelope HookEnvelope
	if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
		http.Error(w, "Invalid hook envelope", http.StatusBadRequest)
		return nil, false
	}
	if envelope.AppID == "" {
		http.Error(w, "Missing app_id", http.StatusBadRequest)
		return nil, false
	}

	return &envelope, true
}

// writeSentinel records a soft failure and answers the platform's false
// sentinel with HTTP 200. The platform treats this as "could not service",
// not as a structural error.
func (h *HookHandlers) writeSentinel(w http.ResponseWriter, appID, operation, message string) {
	h.recordDelivery(appID, operation, false, message)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(false)
}

// writeError maps a bridge failure onto an HTTP status and structured body.
func (h *HookHandlers) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var be *common.BridgeError
	if errors.As(err, &be) {
		switch be.Type {
		case common.ErrorTypeValidation:
			status = http.StatusBadRequest
		case common.ErrorTypeCreate:
			// A create failure caused by a malformed project URL is the
			// operator's input, not a gateway problem.
			if common.IsErrorCode(errors.Unwrap(be), common.CodeMalformedURL) {
				status = http.StatusBadRequest
			} else {
				status = http.StatusBadGateway
			}
		case common.ErrorTypeAuth:
			status = http.StatusUnauthorized
		case common.ErrorTypeJira, common.ErrorTypeNetwork:
			status = http.StatusBadGateway
		}
	}

	var resp ErrorResponse
	if be != nil {
		resp.Error.Type = string(be.Type)
		resp.Error.Code = be.Code
		resp.Error.Message = be.Message
	} else {
		resp.Error.Type = string(common.ErrorTypeInternal)
		resp.Error.Message = err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

func (h *HookHandlers) recordDelivery(appID, operation string, ok bool, message string) {
	record := &models.DeliveryRecord{
		AppID:     appID,
		Operation: operation,
		OK:        ok,
		Message:   message,
		Timestamp: time.Now().Format(time.RFC3339),
	}
	if err := h.storage.RecordDelivery(record); err != nil {
		h.logger.Warn().Err(err).Str("operation", operation).Msg("Failed to record delivery")
	}
}
