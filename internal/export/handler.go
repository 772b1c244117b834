package export

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/certcanvas/certcanvas/backend-go/internal/auth"
	"github.com/certcanvas/certcanvas/backend-go/internal/template"
)

const maxRequestSize = 1 << 20

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Certificate handles POST /api/export/certificate.
func (h *Handler) Certificate(w http.ResponseWriter, r *http.Request) {
	orgID := auth.OrgIDFromContext(r.Context())

	var req Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestSize)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{ErrorMessage: "invalid request body"})
		return
	}

	res, err := h.service.Export(r.Context(), orgID, req)
	if err != nil {
		handleExportError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Success:  true,
		ExportID: res.ID,
		FileURL:  res.FileURL,
		FilePath: res.FilePath,
		Filename: res.Filename,
	})
}

func handleExportError(w http.ResponseWriter, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, Response{ErrorMessage: verr.Error(), MissingFields: verr.Fields})
	case errors.Is(err, ErrNoElements):
		writeJSON(w, http.StatusBadRequest, Response{ErrorMessage: "the template has no elements to render"})
	case errors.Is(err, template.ErrNotFound):
		writeJSON(w, http.StatusNotFound, Response{ErrorMessage: "template not found"})
	case errors.Is(err, template.ErrForbidden):
		writeJSON(w, http.StatusForbidden, Response{ErrorMessage: "forbidden"})
	default:
		slog.Error("certificate export failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, Response{ErrorMessage: "failed to generate certificate PDF: " + err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
