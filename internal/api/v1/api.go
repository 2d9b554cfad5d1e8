// Package v1 implements the native REST API.
package v1

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/vmunix/arrfresh/internal/events"
	"github.com/vmunix/arrfresh/internal/registry"
)

// Deps holds the server's collaborators. EventLog may be nil when
// persistence is disabled.
type Deps struct {
	Bus      *events.Bus
	EventLog *events.EventLog
	Provider registry.Provider
}

// Server is the v1 API server.
type Server struct {
	deps   Deps
	logger *slog.Logger
}

// New creates a new v1 API server.
func New(deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		deps:   deps,
		logger: logger.With("component", "api"),
	}
}

// RegisterRoutes registers API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	// Ingestion
	mux.HandleFunc("POST /api/v1/notify/transfer", s.notifyTransfer)

	// System
	mux.HandleFunc("GET /api/v1/status", s.getStatus)
	mux.HandleFunc("GET /api/v1/servers", s.listServers)
	mux.HandleFunc("GET /api/v1/events", s.listEvents)
}

// Error response
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, code int, errCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: message, Code: errCode})
}

func writeJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(data)
}

// queryInt extracts an optional integer from query string.
func queryInt(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return i
}

func (s *Server) notifyTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferNotification
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}

	eventID := uuid.NewString()
	e := &events.TransferCompleted{
		BaseEvent: events.NewBaseEvent(events.EventTransferCompleted, events.EntityTransfer, eventID),
		Media: events.MediaInfo{
			Title:    req.MediaInfo.Title,
			Year:     req.MediaInfo.Year,
			Type:     req.MediaInfo.Type,
			Category: req.MediaInfo.Category,
		},
		TargetPath: req.TransferInfo.TargetDirItem.Path,
	}

	if err := s.deps.Bus.Publish(r.Context(), e); err != nil {
		writeError(w, http.StatusInternalServerError, "PUBLISH_ERROR", err.Error())
		return
	}

	s.logger.Info("transfer notification accepted",
		"event_id", eventID,
		"title", e.Media.Title,
		"path", e.TargetPath,
	)

	writeJSON(w, http.StatusAccepted, notifyResponse{EventID: eventID, Status: "accepted"})
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Status:  "ok",
		Servers: len(s.deps.Provider.Names()),
	})
}

func (s *Server) listServers(w http.ResponseWriter, r *http.Request) {
	services := s.deps.Provider.Services(s.deps.Provider.Names())

	resp := make([]serverResponse, 0, len(services))
	for _, svc := range services {
		sr := serverResponse{
			Name:       svc.Name,
			Capability: svc.Capability.String(),
		}
		if err := svc.Client.Ping(r.Context()); err != nil {
			sr.Error = err.Error()
		} else {
			sr.Connected = true
		}
		resp = append(resp, sr)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	if limit < 0 {
		writeError(w, http.StatusBadRequest, "INVALID_PAGINATION", "limit must be non-negative")
		return
	}
	const maxLimit = 1000
	if limit > maxLimit {
		limit = maxLimit
	}

	if s.deps.EventLog == nil {
		writeError(w, http.StatusServiceUnavailable, "NO_EVENT_LOG", "Event log not configured")
		return
	}

	raw, err := s.deps.EventLog.Recent(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "EVENT_ERROR", err.Error())
		return
	}

	resp := listEventsResponse{
		Items: make([]eventResponse, len(raw)),
		Total: len(raw),
	}
	for i, e := range raw {
		resp.Items[i] = eventResponse{
			ID:         e.ID,
			EventType:  e.EventType,
			EntityType: e.EntityType,
			EntityID:   e.EntityID,
			OccurredAt: e.OccurredAt,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
