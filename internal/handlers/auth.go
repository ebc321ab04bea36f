package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rideshare-app/apiserver/internal/services"
	"github.com/rideshare-app/apiserver/types"
)

// AuthHandler provides the sign-in and password endpoints.
type AuthHandler struct {
	userService *services.UserService
	logger      *slog.Logger
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(userService *services.UserService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{userService: userService, logger: logger}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, userService *services.UserService, logger *slog.Logger) {
	handler := NewAuthHandler(userService, logger)

	r.Post("/send-otp", handler.SendOTP)
	r.Post("/verify-otp", handler.VerifyOTP)
	r.Post("/login", handler.Login)
	r.Post("/forgot-password", handler.ForgotPassword)
	r.Post("/reset-password", handler.ResetPassword)
	r.With(RequireAuth(userService)).Get("/me", handler.Me)
}

// RequireAuth enforces a valid bearer token and injects the caller identity
// into the request context.
func RequireAuth(userService *services.UserService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := bearerToken(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "No token, authorization denied")
				return
			}

			identity, err := userService.Authenticate(tokenString)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Token is not valid")
				return
			}

			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), identity)))
		})
	}
}

// SendOTP issues a sign-in code, creating the account on first contact.
func (h *AuthHandler) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req SendOTPRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.userService.RequestCode(r.Context(), req.Mobile, types.Role(strings.TrimSpace(req.Role))); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeMessage(w, fmt.Sprintf("OTP sent to %s", strings.TrimSpace(req.Mobile)))
}

// VerifyOTP exchanges a sign-in code for a session token.
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req VerifyOTPRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	session, err := h.userService.VerifyCode(r.Context(), req.Mobile, req.OTP)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newTokenResponse(session))
}

// Login verifies a password and returns a session token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	session, err := h.userService.Login(r.Context(), req.Mobile, req.Password)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newTokenResponse(session))
}

// ForgotPassword issues a password reset code.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.userService.RequestPasswordReset(r.Context(), req.Mobile); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeMessage(w, "OTP sent for password reset")
}

// ResetPassword sets a new password using a reset code.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.userService.ResetPassword(r.Context(), req.Mobile, req.OTP, req.NewPassword); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeMessage(w, "Password has been reset successfully")
}

// Me returns the current authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	user, err := h.userService.Profile(r.Context(), identity.ID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{Success: true, User: user})
}

type SendOTPRequest struct {
	Mobile string `json:"mobile"`
	Role   string `json:"role"`
}

type VerifyOTPRequest struct {
	Mobile string `json:"mobile"`
	OTP    string `json:"otp"`
}

type LoginRequest struct {
	Mobile   string `json:"mobile"`
	Password string `json:"password"`
}

type ForgotPasswordRequest struct {
	Mobile string `json:"mobile"`
}

type ResetPasswordRequest struct {
	Mobile      string `json:"mobile"`
	OTP         string `json:"otp"`
	NewPassword string `json:"newPassword"`
}

type TokenResponse struct {
	Success   bool       `json:"success"`
	Token     string     `json:"token"`
	ExpiresAt int64      `json:"expiresAt"`
	User      types.User `json:"user"`
}

type UserResponse struct {
	Success bool       `json:"success"`
	User    types.User `json:"user"`
}

func newTokenResponse(session services.Session) TokenResponse {
	return TokenResponse{
		Success:   true,
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt.Unix(),
		User:      session.User,
	}
}

func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}
