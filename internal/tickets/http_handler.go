package tickets

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mlevkov/tickethub/internal/domain"
)

// Handler exposes ticket reads and mutations over HTTP.
type Handler struct {
	service *Service
}

// NewHTTPHandler wraps the service with HTTP endpoints.
func NewHTTPHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Register mounts the ticket routes on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/tickets", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleAdd)
		r.Delete("/", h.handleDeleteByComment)
		r.Get("/earliest-event", h.handleEarliestEvent)
		r.Get("/count-by-comment", h.handleCountByComment)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.handleGet)
			r.Put("/", h.handleUpdate)
			r.Delete("/", h.handleRemove)
			r.Post("/sell", h.handleSell)
			r.Post("/vip-clone", h.handleCloneVip)
		})
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	tickets := h.service.GetTickets(r.Context())
	if tickets == nil {
		tickets = []domain.Ticket{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tickets": tickets})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	ticket := h.service.GetTicket(r.Context(), id)
	if ticket == nil {
		http.Error(w, "ticket not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

func (h *Handler) handleAdd(w http.ResponseWriter, r *http.Request) {
	var ticket domain.Ticket
	if err := json.NewDecoder(r.Body).Decode(&ticket); err != nil {
		http.Error(w, fmt.Sprintf("invalid ticket payload: %v", err), http.StatusBadRequest)
		return
	}

	result := h.service.AddTicket(r.Context(), ticket)
	status := http.StatusCreated
	if !result.Status {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, result)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var ticket domain.Ticket
	if err := json.NewDecoder(r.Body).Decode(&ticket); err != nil {
		http.Error(w, fmt.Sprintf("invalid ticket payload: %v", err), http.StatusBadRequest)
		return
	}
	writeStatus(w, h.service.UpdateTicket(r.Context(), id, ticket))
}

func (h *Handler) handleRemove(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	writeStatus(w, h.service.RemoveTicket(r.Context(), id))
}

func (h *Handler) handleDeleteByComment(w http.ResponseWriter, r *http.Request) {
	comment := strings.TrimSpace(r.URL.Query().Get("comment"))
	if comment == "" {
		http.Error(w, "comment query parameter is required", http.StatusBadRequest)
		return
	}
	writeStatus(w, h.service.DeleteAllByComment(r.Context(), comment))
}

type sellRequest struct {
	PersonID uuid.UUID `json:"personId"`
	Amount   float64   `json:"amount"`
}

func (h *Handler) handleSell(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var req sellRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid sale payload: %v", err), http.StatusBadRequest)
		return
	}
	writeStatus(w, h.service.SellTicket(r.Context(), id, req.PersonID, req.Amount))
}

func (h *Handler) handleCloneVip(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	clone := h.service.CloneVip(r.Context(), id)
	if clone == nil {
		http.Error(w, "ticket not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusCreated, clone)
}

func (h *Handler) handleEarliestEvent(w http.ResponseWriter, r *http.Request) {
	ticket := h.service.GetWithEarliestEvent(r.Context())
	if ticket == nil {
		http.Error(w, "no tickets", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

func (h *Handler) handleCountByComment(w http.ResponseWriter, r *http.Request) {
	comment := r.URL.Query().Get("comment")
	count := h.service.CountByCommentLess(r.Context(), comment)
	writeJSON(w, http.StatusOK, map[string]int64{"count": count})
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid ticket id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func writeStatus(w http.ResponseWriter, ok bool) {
	status := http.StatusOK
	if !ok {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, map[string]bool{"status": ok})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
