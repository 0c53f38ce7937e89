package persona

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/persona-platform/internal/channel"
	"github.com/wolfman30/persona-platform/pkg/logging"
)

// maxRequestBody bounds POST /v1/persona bodies.
const maxRequestBody = 1 << 20

// Handler exposes the persona service over HTTP.
type Handler struct {
	svc    *Service
	logger *logging.Logger
}

// NewHandler creates a persona HTTP handler.
func NewHandler(svc *Service, logger *logging.Logger) *Handler {
	if svc == nil {
		panic("persona: service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

// Routes returns the public persona routes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/persona", h.ComposePersona)
	r.Get("/archetypes", h.ListArchetypes)
	return r
}

// AdminRoutes returns the tenant cache routes.
func (h *Handler) AdminRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/{tenantID}/invalidate", h.InvalidateTenant)
	return r
}

// PersonaRequest is the body of POST /v1/persona.
type PersonaRequest struct {
	TenantID      string         `json:"tenant_id"`
	Channel       string         `json:"channel"`
	Language      string         `json:"language,omitempty"`
	SessionConfig map[string]any `json:"session_config,omitempty"`
}

// PersonaResponse is returned by POST /v1/persona. SessionConfig is set only
// when the request carried one.
type PersonaResponse struct {
	Persona       ComposedPersona `json:"persona"`
	Archetype     string          `json:"archetype"`
	Channel       channel.Type    `json:"channel"`
	Resolution    Resolution      `json:"resolution"`
	SessionConfig map[string]any  `json:"session_config,omitempty"`
}

// ComposePersona resolves and composes a persona.
// POST /v1/persona
func (h *Handler) ComposePersona(w http.ResponseWriter, r *http.Request) {
	var req PersonaRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}

	persona, ident, err := h.svc.Persona(r.Context(), Request{
		TenantID: strings.TrimSpace(req.TenantID),
		Channel:  channel.Parse(req.Channel),
		Language: req.Language,
		Remote:   true,
	})
	if err != nil {
		http.Error(w, `{"error": "persona configuration error"}`, http.StatusInternalServerError)
		return
	}

	resp := PersonaResponse{
		Persona:    persona,
		Archetype:  ident.ArchetypeKey,
		Channel:    ident.Channel,
		Resolution: ident.Resolution,
	}
	if req.SessionConfig != nil {
		resp.SessionConfig = h.svc.Bind(req.SessionConfig, persona)
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// ListArchetypes returns every archetype key and voice.
// GET /v1/archetypes
func (h *Handler) ListArchetypes(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"archetypes": h.svc.Archetypes()})
}

// InvalidateTenant drops a tenant's cached record after an out-of-band
// update.
// POST /admin/tenants/{tenantID}/invalidate
func (h *Handler) InvalidateTenant(w http.ResponseWriter, r *http.Request) {
	tenantID := strings.TrimSpace(chi.URLParam(r, "tenantID"))
	if tenantID == "" {
		http.Error(w, `{"error": "tenant_id required"}`, http.StatusBadRequest)
		return
	}
	h.svc.Invalidate(tenantID)
	h.logger.Info("tenant cache invalidated via admin API", "tenant_id", tenantID)
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated", "tenant_id": tenantID})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}
