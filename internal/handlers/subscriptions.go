package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/subtracker/subscriptions/internal/apperr"
	"github.com/subtracker/subscriptions/internal/service"
)

const maxBodyBytes = 1 << 20

// envelope is the body of every API response.
type envelope struct {
	Success bool        `json:"success"`
	Value   interface{} `json:"value,omitempty"`
	Error   string      `json:"error,omitempty"`
	Status  int         `json:"status"`
}

type Handler struct {
	svc *service.Service
	log *logrus.Logger
}

func NewHandler(svc *service.Service, l *logrus.Logger) *Handler {
	return &Handler{svc: svc, log: l}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.List(r.Context())
	h.respond(w, res, err)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Create(r.Context(), h.readBody(w, r))
	h.respond(w, res, err)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), h.readBody(w, r))
	h.respond(w, res, err)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Delete(r.Context(), chi.URLParam(r, "id"))
	h.respond(w, res, err)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Health(r.Context()); err != nil {
		h.log.WithError(err).Error("health check failed")
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readBody returns nil when the body cannot be read. The service reports
// that as an invalid body once the caller is authenticated.
func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) []byte {
	b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.log.Warnf("read request body: %v", err)
		return nil
	}
	return b
}

// utilities

func (h *Handler) respond(w http.ResponseWriter, value interface{}, err error) {
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, envelope{Success: true, Value: value, Status: http.StatusOK})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	code, msg := apperr.Resolve(err)
	h.writeJSON(w, code, envelope{Success: false, Error: msg, Status: code})
}

func (h *Handler) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Errorf("encode response: %v", err)
	}
}
