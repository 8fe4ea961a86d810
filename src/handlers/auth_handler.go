package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/username/shareledger/src/config"
	"github.com/username/shareledger/src/logger"
	"github.com/username/shareledger/src/security"
	"github.com/username/shareledger/src/utils"
)

type contextKey string

const usernameContextKey contextKey = "username"

// GetUsernameFromContext returns the authenticated username placed on the
// request context by AuthMiddleware.
func GetUsernameFromContext(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(usernameContextKey).(string)
	return username, ok
}

type AuthHandler struct {
	authService *security.AuthService
}

func NewAuthHandler(authService *security.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}

func (h *AuthHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	if req.Username == "" || req.Password == "" {
		utils.SendJSONError(w, "Username and password are required", http.StatusBadRequest)
		return
	}

	if req.Username != config.Cfg.AdminUsername {
		logger.L.Warn("Login attempt with unknown username", "username", req.Username)
		utils.SendJSONError(w, "Invalid username or password", http.StatusUnauthorized)
		return
	}
	if err := h.authService.CompareHashAndPassword(config.Cfg.AdminPasswordHash, req.Password); err != nil {
		logger.L.Warn("Login attempt with wrong password", "username", req.Username)
		utils.SendJSONError(w, "Invalid username or password", http.StatusUnauthorized)
		return
	}

	token, err := h.authService.GenerateToken(req.Username)
	if err != nil {
		logger.L.Error("Failed to generate token", "username", req.Username, "error", err)
		utils.SendJSONError(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	logger.L.Info("User logged in", "username", req.Username)
	utils.SendJSON(w, loginResponse{
		Token:     token,
		ExpiresIn: int64(config.Cfg.AccessTokenExpiry.Seconds()),
	}, http.StatusOK)
}

func (h *AuthHandler) AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			logger.L.Debug("AuthMiddleware: Authorization header missing", "path", r.URL.Path)
			utils.SendJSONError(w, "Authorization header required", http.StatusUnauthorized)
			return
		}

		tokenString := authHeader
		if strings.HasPrefix(authHeader, "Bearer ") {
			tokenString = strings.TrimPrefix(authHeader, "Bearer ")
		}
		if tokenString == "" {
			logger.L.Debug("AuthMiddleware: Token string empty", "path", r.URL.Path)
			utils.SendJSONError(w, "Malformed token", http.StatusUnauthorized)
			return
		}

		username, err := h.authService.ValidateToken(tokenString)
		if err != nil {
			logger.L.Warn("AuthMiddleware: Token validation failed", "path", r.URL.Path, "error", err)
			utils.SendJSONError(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), usernameContextKey, username)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}
