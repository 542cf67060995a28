// Package api provides HTTP API handlers for the Kathakali avatar puppeteer.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/ayusman/kathakali/internal/rig"
	"github.com/ayusman/kathakali/internal/store"
)

// MappingHandler handles HTTP requests for name mapping resources.
//
// A mapping redirects one detector category name to a different avatar
// channel. An empty target drops the category.
type MappingHandler struct {
	store    *store.Store
	channels rig.ChannelTable
	onChange func() error
}

// NewMappingHandler creates a new MappingHandler with the given store.
// channels, when non-nil, restricts targets to channels the avatar has.
// onChange runs after every successful write so the running pipeline picks
// the new mapping up.
func NewMappingHandler(s *store.Store, channels rig.ChannelTable, onChange func() error) *MappingHandler {
	return &MappingHandler{store: s, channels: channels, onChange: onChange}
}

// ServeHTTP implements the http.Handler interface and routes requests to appropriate methods.
func (h *MappingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Expected paths: /api/mappings or /api/mappings/{id}
	path := strings.TrimPrefix(r.URL.Path, "/api/mappings")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	id := path
	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodPut:
		h.update(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// Request and response types

type mappingRequest struct {
	Source *string `json:"source"`
	Target *string `json:"target"`
}

type mappingResponse struct {
	ID        string `json:"id"`
	Source    string `json:"source"`
	Target    string `json:"target"`
	Standard  bool   `json:"standard"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type listMappingsResponse struct {
	Mappings []mappingResponse `json:"mappings"`
}

func toResponse(m *store.Mapping) mappingResponse {
	return mappingResponse{
		ID:        m.ID,
		Source:    m.Source,
		Target:    m.Target,
		Standard:  rig.IsARKitName(m.Source),
		CreatedAt: m.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt: m.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// list handles GET /api/mappings.
func (h *MappingHandler) list(w http.ResponseWriter, r *http.Request) {
	mappings, err := h.store.Mappings().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list mappings")
		return
	}

	response := listMappingsResponse{
		Mappings: make([]mappingResponse, 0, len(mappings)),
	}
	for _, m := range mappings {
		response.Mappings = append(response.Mappings, toResponse(m))
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/mappings/{id}.
func (h *MappingHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	mapping, err := h.store.Mappings().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Mapping not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get mapping")
		return
	}

	writeJSON(w, http.StatusOK, toResponse(mapping))
}

// create handles POST /api/mappings.
func (h *MappingHandler) create(w http.ResponseWriter, r *http.Request) {
	var req mappingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Source == nil || strings.TrimSpace(*req.Source) == "" {
		writeError(w, http.StatusBadRequest, "Source is required")
		return
	}
	if req.Target == nil {
		writeError(w, http.StatusBadRequest, "Target is required")
		return
	}
	if !h.validTarget(*req.Target) {
		writeError(w, http.StatusBadRequest, "Unknown target channel")
		return
	}

	mapping := &store.Mapping{
		ID:     uuid.New().String(),
		Source: strings.TrimSpace(*req.Source),
		Target: *req.Target,
	}

	if err := h.store.Mappings().Create(mapping); err != nil {
		if errors.Is(err, store.ErrConflict) {
			writeError(w, http.StatusConflict, "Source is already mapped")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to create mapping")
		return
	}

	h.changed(w, http.StatusCreated, mapping)
}

// update handles PUT /api/mappings/{id}. Omitted fields keep their value.
func (h *MappingHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	mapping, err := h.store.Mappings().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Mapping not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get mapping")
		return
	}

	var req mappingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Source != nil {
		source := strings.TrimSpace(*req.Source)
		if source == "" {
			writeError(w, http.StatusBadRequest, "Source cannot be empty")
			return
		}
		mapping.Source = source
	}
	if req.Target != nil {
		if !h.validTarget(*req.Target) {
			writeError(w, http.StatusBadRequest, "Unknown target channel")
			return
		}
		mapping.Target = *req.Target
	}

	if err := h.store.Mappings().Update(mapping); err != nil {
		if errors.Is(err, store.ErrConflict) {
			writeError(w, http.StatusConflict, "Source is already mapped")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to update mapping")
		return
	}

	h.changed(w, http.StatusOK, mapping)
}

// delete handles DELETE /api/mappings/{id}.
func (h *MappingHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Mappings().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Mapping not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete mapping")
		return
	}

	h.changed(w, http.StatusNoContent, nil)
}

func (h *MappingHandler) validTarget(target string) bool {
	if target == "" || h.channels == nil {
		return true
	}
	_, ok := h.channels[target]
	return ok
}

// changed reloads the pipeline mapping and writes the response. The write
// is already committed, so a failed reload is reported but not rolled back.
func (h *MappingHandler) changed(w http.ResponseWriter, status int, m *store.Mapping) {
	if h.onChange != nil {
		if err := h.onChange(); err != nil {
			writeError(w, http.StatusInternalServerError, "Mapping saved but not applied")
			return
		}
	}
	if m == nil {
		w.WriteHeader(status)
		return
	}
	writeJSON(w, status, toResponse(m))
}
