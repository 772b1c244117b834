package asset

import (
	"bytes"
	"encoding/json"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"log/slog"
	"net/http"
	"strings"

	_ "golang.org/x/image/webp"

	"github.com/certcanvas/certcanvas/backend-go/internal/auth"
	"github.com/certcanvas/certcanvas/backend-go/internal/typeid"
)

const maxUploadSize = 10 << 20 // 10MB

var uploadTypes = []string{"image/png", "image/jpeg", "image/gif", "image/webp"}

// UploadResponse is returned from the upload endpoint.
type UploadResponse struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Type   string `json:"type"`
	Name   string `json:"name"`
}

// Handler serves the image upload endpoint.
type Handler struct {
	store Storage
}

func NewHandler(store Storage) *Handler {
	return &Handler{store: store}
}

// Upload handles POST /assets/upload (multipart form with "file" field).
// Images are re-encoded as PNG and stored under the caller's organization.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "file too large (max 10MB)")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	if !supportedType(header.Header.Get("Content-Type")) {
		writeError(w, http.StatusBadRequest, "only PNG, JPEG, GIF and WebP images are supported")
		return
	}

	img, _, err := image.Decode(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid image: "+err.Error())
		return
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		slog.Error("encode png", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to encode image")
		return
	}

	assetID := typeid.NewAssetID()
	key := SanitizeSegment(auth.OrgIDFromContext(r.Context())) + "/images/" + assetID + ".png"
	url, err := h.store.Put(r.Context(), key, &buf, int64(buf.Len()), "image/png")
	if err != nil {
		slog.Error("store asset", "error", err, "key", key)
		writeError(w, http.StatusInternalServerError, "failed to save file")
		return
	}

	bounds := img.Bounds()
	writeJSON(w, http.StatusOK, UploadResponse{
		ID:     assetID,
		URL:    url,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Type:   "png",
		Name:   header.Filename,
	})
}

func supportedType(contentType string) bool {
	for _, t := range uploadTypes {
		if strings.HasPrefix(contentType, t) {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
