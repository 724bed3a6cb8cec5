package api

import (
	"net/http"
	"strings"

	"gatekeeper/internal/auth"
)

type AuthHandler struct {
	service *auth.Service
}

func NewAuthHandler(service *auth.Service) *AuthHandler {
	return &AuthHandler{service: service}
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,max=254"`
	Password string `json:"password" validate:"required"`
}

type SocialLoginRequest struct {
	Token string `json:"token" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken   string `json:"refreshToken" validate:"required"`
	OldAccessToken string `json:"oldAccessToken"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,max=254"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=8"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8"`
}

type SessionResponse struct {
	User         UserSummary `json:"user"`
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func writeSession(w http.ResponseWriter, session *auth.Session) {
	writeJSON(w, http.StatusOK, SessionResponse{
		User:         userSummaryFromModel(session.User),
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
	})
}

// POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	session, err := h.service.Login(r.Context(), normalizeEmail(req.Email), req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeSession(w, session)
}

// SocialLogin serves POST /api/v1/auth/{provider} for the given provider.
func (h *AuthHandler) SocialLogin(provider string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SocialLoginRequest
		if err := decodeAndValidate(r.Body, &req); err != nil {
			badRequest(w, err.Error())
			return
		}

		session, err := h.service.SocialLogin(r.Context(), provider, req.Token)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeSession(w, session)
	}
}

// POST /api/v1/auth/refresh-token
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	result, err := h.service.Refresh(r.Context(), req.RefreshToken, strings.TrimSpace(req.OldAccessToken))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// POST /api/v1/auth/forgot-password
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	email := normalizeEmail(req.Email)
	if err := requestValidator.Var(email, "email"); err != nil {
		badRequest(w, "invalid email format")
		return
	}

	writeMessage(w, h.service.RequestPasswordReset(r.Context(), email))
}

// POST /api/v1/auth/reset-password
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	msg, err := h.service.ResetPassword(r.Context(), req.Token, req.NewPassword)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeMessage(w, msg)
}

// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r)
	if claims == nil {
		writeTokenError(w, r, "")
		return
	}
	writeMessage(w, h.service.Logout(r.Context(), getRawToken(r), claims))
}

// POST /api/v1/auth/logout-all
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r)
	if userID == 0 {
		writeTokenError(w, r, "")
		return
	}

	msg, err := h.service.LogoutAll(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeMessage(w, msg)
}

// POST /api/v1/auth/change-password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r)
	if userID == 0 {
		writeTokenError(w, r, "")
		return
	}

	var req ChangePasswordRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	msg, err := h.service.ChangePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeMessage(w, msg)
}
