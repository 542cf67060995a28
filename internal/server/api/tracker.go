package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/ayusman/kathakali/internal/app"
	"github.com/ayusman/kathakali/internal/avatar"
	"github.com/ayusman/kathakali/internal/rig"
	"github.com/ayusman/kathakali/internal/store"
)

// Tracker is the part of the application the tracking endpoints drive.
type Tracker interface {
	Report() app.Report
	SetEnabled(enabled bool)
}

// StatusHandler serves GET /api/status.
type StatusHandler struct {
	tracker Tracker
}

// NewStatusHandler creates a new StatusHandler.
func NewStatusHandler(t Tracker) *StatusHandler {
	return &StatusHandler{tracker: t}
}

func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.tracker.Report())
}

// TrackingHandler serves GET and PUT /api/tracking.
type TrackingHandler struct {
	tracker Tracker
}

// NewTrackingHandler creates a new TrackingHandler.
func NewTrackingHandler(t Tracker) *TrackingHandler {
	return &TrackingHandler{tracker: t}
}

type trackingRequest struct {
	Enabled *bool `json:"enabled"`
}

func (h *TrackingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.tracker.Report())
	case http.MethodPut:
		var req trackingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
		if req.Enabled == nil {
			writeError(w, http.StatusBadRequest, "Enabled is required")
			return
		}
		// Blocks until the previous session has released the camera.
		h.tracker.SetEnabled(*req.Enabled)
		writeJSON(w, http.StatusOK, h.tracker.Report())
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// ChannelsHandler serves GET /api/channels: the avatar's morph channels,
// which detector names drive each one, and the bones found in the model.
type ChannelsHandler struct {
	model *avatar.Model
	names func() *rig.NameMap
}

// NewChannelsHandler creates a new ChannelsHandler. names returns the
// mapping currently in effect.
func NewChannelsHandler(model *avatar.Model, names func() *rig.NameMap) *ChannelsHandler {
	return &ChannelsHandler{model: model, names: names}
}

type channelResponse struct {
	Name    string   `json:"name"`
	Slot    int      `json:"slot"`
	Weight  float64  `json:"weight"`
	Sources []string `json:"sources"`
}

type channelsResponse struct {
	Model    string              `json:"model"`
	Meshes   []string            `json:"meshes"`
	Channels []channelResponse   `json:"channels"`
	Bones    map[rig.Bone]string `json:"bones"`
}

func (h *ChannelsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var names *rig.NameMap
	if h.names != nil {
		names = h.names()
	}
	sources := names.Sources()

	table := h.model.Channels()
	response := channelsResponse{
		Model:    h.model.Name(),
		Meshes:   h.model.Meshes(),
		Channels: make([]channelResponse, 0, len(table)),
		Bones:    make(map[rig.Bone]string),
	}
	for _, name := range table.Names() {
		weight, _ := h.model.Weight(name)
		response.Channels = append(response.Channels, channelResponse{
			Name:    name,
			Slot:    table[name],
			Weight:  weight,
			Sources: append([]string{}, sources[name]...),
		})
	}
	for _, bone := range rig.Bones {
		if node, ok := h.model.BoneNode(bone); ok {
			response.Bones[bone] = node
		}
	}

	writeJSON(w, http.StatusOK, response)
}

// SessionsHandler serves GET /api/sessions?limit=N.
type SessionsHandler struct {
	store *store.Store
}

// NewSessionsHandler creates a new SessionsHandler.
func NewSessionsHandler(s *store.Store) *SessionsHandler {
	return &SessionsHandler{store: s}
}

type sessionResponse struct {
	ID        string  `json:"id"`
	StartedAt string  `json:"started_at"`
	EndedAt   *string `json:"ended_at,omitempty"`
	Status    string  `json:"status"`
	Frames    int64   `json:"frames"`
	Faces     int64   `json:"faces"`
	Error     string  `json:"error,omitempty"`
}

type listSessionsResponse struct {
	Sessions []sessionResponse `json:"sessions"`
}

const defaultSessionLimit = 20

func (h *SessionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := defaultSessionLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	sessions, err := h.store.Sessions().Recent(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}

	response := listSessionsResponse{Sessions: make([]sessionResponse, 0, len(sessions))}
	for _, s := range sessions {
		item := sessionResponse{
			ID:        s.ID,
			StartedAt: s.StartedAt.Format(time.RFC3339),
			Status:    s.Status,
			Frames:    s.Frames,
			Faces:     s.Faces,
			Error:     s.Error,
		}
		if s.EndedAt != nil {
			ended := s.EndedAt.Format(time.RFC3339)
			item.EndedAt = &ended
		}
		response.Sessions = append(response.Sessions, item)
	}

	writeJSON(w, http.StatusOK, response)
}
