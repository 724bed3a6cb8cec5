package api

import (
	"net/http"

	"gatekeeper/internal/auth"
)

type UserHandler struct {
	service *auth.Service
}

func NewUserHandler(service *auth.Service) *UserHandler {
	return &UserHandler{service: service}
}

// GET /api/v1/users/me
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r)
	if userID == 0 {
		writeTokenError(w, r, "")
		return
	}

	user, err := h.service.CurrentUser(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userSummaryFromModel(user))
}
