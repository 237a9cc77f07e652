package export

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// Handler exposes ticket exports over HTTP.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHTTPHandler wraps the export service.
func NewHTTPHandler(service *Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Register mounts the export route on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/tickets/export", h.handleExport)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	format := Format(strings.ToLower(r.URL.Query().Get("format")))
	if format == "" {
		format = FormatCSV
	}
	if format != FormatCSV && format != FormatXLSX {
		http.Error(w, fmt.Sprintf("unsupported format %q, use csv or xlsx", format), http.StatusBadRequest)
		return
	}

	file, err := h.service.Render(r.Context(), format)
	if err != nil {
		h.logger.Error("export failed", "format", format, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Name))
	if _, err := w.Write(file.Data); err != nil {
		h.logger.Warn("interrupted export download", "error", err)
	}
}
