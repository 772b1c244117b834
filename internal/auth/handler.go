package auth

import "net/http"

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Me reports the identity the request was authenticated as.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"identity":     IdentityFromContext(r.Context()),
		"authDisabled": h.service.Disabled(),
	})
}
