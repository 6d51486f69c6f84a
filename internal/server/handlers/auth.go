package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hooktide/hooktide/internal/auth"
)

// AuthHandlers serves the admin login endpoints.
type AuthHandlers struct {
	service *auth.Service
}

func NewAuthHandlers(service *auth.Service) *AuthHandlers {
	return &AuthHandlers{service: service}
}

func (h *AuthHandlers) Service() *auth.Service {
	return h.service
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login handles POST /api/auth/login.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "Invalid JSON body")
		return
	}

	if req.Username == "" || req.Password == "" {
		BadRequest(w, "Username and password are required")
		return
	}

	session, err := h.service.Login(req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrAuthDisabled):
			Error(w, http.StatusNotImplemented, "AUTH_DISABLED", "Authentication is not configured")
		case errors.Is(err, auth.ErrInvalidCredentials):
			Unauthorized(w, "Invalid username or password")
		default:
			InternalError(w, "Failed to log in")
		}
		return
	}

	JSON(w, http.StatusOK, session)
}

// Me handles GET /api/auth/me. The auth middleware has already validated the
// token when this runs.
func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		// Auth is unconfigured: report the anonymous admin the passthrough
		// middleware implies.
		JSON(w, http.StatusOK, map[string]any{
			"username":      auth.RoleAdmin,
			"role":          auth.RoleAdmin,
			"authenticated": false,
		})
		return
	}

	JSON(w, http.StatusOK, map[string]any{
		"username":      claims.Username,
		"role":          claims.Role,
		"authenticated": true,
	})
}
