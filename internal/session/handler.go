package session

import (
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/certcanvas/certcanvas/backend-go/internal/auth"
)

// Handler upgrades /ws/editor requests into editing sessions. It must run
// behind the auth middleware so the organization is known.
type Handler struct {
	hub            *Hub
	templates      Templates
	exporter       Exporter
	qrFallback     string
	originPatterns []string
}

type HandlerOptions struct {
	Templates  Templates
	Exporter   Exporter
	QRFallback string
	// OriginPatterns are host patterns accepted for cross-origin upgrades.
	OriginPatterns []string
}

func NewHandler(hub *Hub, opts HandlerOptions) *Handler {
	return &Handler{
		hub:            hub,
		templates:      opts.Templates,
		exporter:       opts.Exporter,
		qrFallback:     opts.QRFallback,
		originPatterns: opts.OriginPatterns,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	orgID := auth.OrgIDFromContext(r.Context())
	if orgID == "" {
		http.Error(w, "missing organization", http.StatusUnauthorized)
		return
	}
	templateID := r.URL.Query().Get("templateId")

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		slog.Error("websocket accept", "error", err)
		return
	}

	client := NewClient(r.Context(), h.hub, conn, ClientOptions{
		ClientID:   uuid.New().String(),
		OrgID:      orgID,
		Templates:  h.templates,
		Exporter:   h.exporter,
		QRFallback: h.qrFallback,
	})
	client.Serve(templateID)
}
