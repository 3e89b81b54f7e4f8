package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/trailer-shop/internal/api/middleware"
	"github.com/example/trailer-shop/internal/apperr"
	"github.com/example/trailer-shop/internal/auth"
	"github.com/example/trailer-shop/internal/infrastructure/store"
	"github.com/example/trailer-shop/internal/readmodel"
)

// AuthHandlers handles authentication-related HTTP requests
type AuthHandlers struct {
	users      store.UserStore
	jwtService *auth.JWTService
}

// NewAuthHandlers creates a new AuthHandlers instance
func NewAuthHandlers(users store.UserStore, jwtService *auth.JWTService) *AuthHandlers {
	return &AuthHandlers{
		users:      users,
		jwtService: jwtService,
	}
}

// CredentialsRequest is the body of both register and login
type CredentialsRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

// UserResponse represents user data in responses
type UserResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// LoginResponse carries the token for clients that do not keep cookies
type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      UserResponse `json:"user"`
}

func (req *CredentialsRequest) validate() error {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.Password == "" {
		return apperr.Validation("name and password are required")
	}
	return nil
}

// Register handles user registration
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := decodeBody(r, &req); err != nil {
		respondAppError(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		respondAppError(w, r, err)
		return
	}

	if _, exists, err := h.users.GetUserByName(r.Context(), req.Name); err != nil {
		respondAppError(w, r, err)
		return
	} else if exists {
		respondJSONError(w, "user name already registered", http.StatusConflict)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondAppError(w, r, err)
		return
	}

	user := &readmodel.UserReadModel{
		ID:           uuid.New().String(),
		Name:         req.Name,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := h.users.InsertUser(r.Context(), user); err != nil {
		respondAppError(w, r, err)
		return
	}

	zap.S().Infow("user registered", "user_id", user.ID, "name", user.Name)
	respondData(w, http.StatusCreated, toUserResponse(user), "user registered")
}

// Login handles user login
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := decodeBody(r, &req); err != nil {
		respondAppError(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		respondAppError(w, r, err)
		return
	}

	user, exists, err := h.users.GetUserByName(r.Context(), req.Name)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	if !exists || !auth.CheckPassword(req.Password, user.PasswordHash) {
		respondJSONError(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	token, expiresAt, err := h.jwtService.GenerateAccessToken(user.ID, user.Name)
	if err != nil {
		respondAppError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AccessTokenCookie,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})

	respondData(w, http.StatusOK, LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      toUserResponse(user),
	}, "login successful")
}

// Logout clears the access token cookie. Tokens are stateless, so a bearer
// token stays valid until it expires.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AccessTokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	respondJSON(w, http.StatusOK, envelope{Success: true, Message: "logout successful"})
}

// Verify returns the claims of the presented token
func (h *AuthHandlers) Verify(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		respondJSONError(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	respondData(w, http.StatusOK, map[string]any{
		"user_id":    claims.UserID,
		"username":   claims.Username,
		"expires_at": claims.ExpiresAt,
	}, "token valid")
}

func toUserResponse(u *readmodel.UserReadModel) UserResponse {
	return UserResponse{ID: u.ID, Name: u.Name, CreatedAt: u.CreatedAt}
}
