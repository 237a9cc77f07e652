package ingestion

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mlevkov/tickethub/internal/domain"
	"github.com/mlevkov/tickethub/internal/retry"
	"github.com/mlevkov/tickethub/internal/storage"
)

const maxUploadBytes = 32 << 20

// Handler exposes the import pipeline and its audit log over HTTP.
type Handler struct {
	coordinator *Coordinator
	logger      *slog.Logger
}

// NewHTTPHandler wraps the coordinator with HTTP endpoints.
func NewHTTPHandler(coordinator *Coordinator, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{coordinator: coordinator, logger: logger}
}

// Register mounts the import routes on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/tickets/import", h.handleImport)
	r.Get("/imports", h.handleList)
	r.Get("/imports/{id}", h.handleGet)
	r.Get("/imports/{id}/file", h.handleDownload)
}

// handleImport accepts either a multipart form with a "file" part or a raw
// JSON body.
func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	filename, contentType, payload, err := readUpload(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.coordinator.ImportFromFile(r.Context(), filename, contentType, payload)
	if err != nil {
		h.writeImportError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

func readUpload(r *http.Request) (filename, contentType string, payload []byte, err error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return "", "", nil, fmt.Errorf("invalid form data: %v", err)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return "", "", nil, fmt.Errorf("file required: %v", err)
		}
		defer file.Close()

		data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
		if err != nil {
			return "", "", nil, fmt.Errorf("failed to read file: %v", err)
		}
		if len(data) > maxUploadBytes {
			return "", "", nil, errors.New("file too large")
		}
		return header.Filename, header.Header.Get("Content-Type"), data, nil
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes+1))
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to read body: %v", err)
	}
	if len(data) > maxUploadBytes {
		return "", "", nil, errors.New("request body too large")
	}
	return "import.json", r.Header.Get("Content-Type"), data, nil
}

func (h *Handler) writeImportError(w http.ResponseWriter, err error) {
	switch {
	case domain.IsInvalidData(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, storage.ErrUnavailable):
		h.logger.Error("import rejected, object storage unavailable", "error", err)
		http.Error(w, "file storage unavailable", http.StatusServiceUnavailable)
	case retry.IsSerializationConflict(err):
		http.Error(w, "import conflicted with concurrent writes, retry later", http.StatusConflict)
	default:
		h.logger.Error("import failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	entries, err := h.coordinator.ListImports(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("failed to list imports", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"imports": entries})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid import id", http.StatusBadRequest)
		return
	}

	entry, err := h.coordinator.GetImport(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "import not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to load import", "log_id", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid import id", http.StatusBadRequest)
		return
	}

	reader, entry, err := h.coordinator.OpenFile(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			http.Error(w, "import not found", http.StatusNotFound)
		case errors.Is(err, storage.ErrUnavailable):
			http.Error(w, "file storage unavailable", http.StatusServiceUnavailable)
		default:
			h.logger.Error("failed to open import file", "log_id", id, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}
	defer reader.Close()

	if entry.ContentType != "" {
		w.Header().Set("Content-Type", entry.ContentType)
	}
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", entry.OriginalFilename))
	if _, err := io.Copy(w, reader); err != nil {
		h.logger.Warn("interrupted import file download", "log_id", id, "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
