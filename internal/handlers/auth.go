package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/vidcurate/backend/internal/auth"
	"github.com/vidcurate/backend/internal/logging"
	"github.com/vidcurate/backend/internal/models"
	"github.com/vidcurate/backend/internal/repositories"
	"github.com/vidcurate/backend/internal/validation"
)

// AuthHandler implements operator sign-up, sign-in and session endpoints.
type AuthHandler struct {
	Users    UserStore
	Sessions SessionManager
	NowFunc  func() time.Time
}

type credentialsRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type authResponse struct {
	Tokens models.SessionTokens `json:"tokens"`
}

// Login handles POST /api/v1/auth/login.
func (h AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !h.ready(w, r) {
		return
	}

	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		logger.Warn("invalid login payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		respondError(ctx, w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := h.Users.FindByEmail(ctx, req.Email)
	if err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			logger.Error("login user lookup failed", "email", req.Email, "error", err)
			respondError(ctx, w, http.StatusInternalServerError, "unable to verify credentials")
			return
		}
		logger.Warn("login unknown account", "email", req.Email)
		respondError(ctx, w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		logger.Warn("login password mismatch", "userId", user.ID)
		respondError(ctx, w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	tokens, err := h.Sessions.Issue(ctx, user.ID)
	if err != nil {
		logger.Error("issue session", "userId", user.ID, "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to create session")
		return
	}

	logger.Info("operator signed in", "userId", user.ID)
	respondJSON(ctx, w, http.StatusOK, authResponse{Tokens: tokens})
}

// SignUp handles POST /api/v1/auth/signup. New accounts are members until an
// administrator grants them a role.
func (h AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !h.ready(w, r) {
		return
	}

	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		logger.Warn("invalid signup payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if err := validation.Struct(req); err != nil {
		var fe *validation.FieldError
		if errors.As(err, &fe) {
			respondJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: fe.Message, Field: fe.Field})
			return
		}
		logger.Error("signup validation failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "unable to validate request")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("hash password", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to secure password")
		return
	}

	now := h.now()
	user := models.User{
		ID:        uuid.NewString(),
		Email:     req.Email,
		Password:  string(hashed),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.Users.Create(ctx, user, models.RoleMember); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			respondError(ctx, w, http.StatusConflict, "account already exists")
			return
		}
		logger.Error("create user", "email", req.Email, "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to create account")
		return
	}

	tokens, err := h.Sessions.Issue(ctx, user.ID)
	if err != nil {
		logger.Error("issue session", "userId", user.ID, "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to create session")
		return
	}

	logger.Info("operator signed up", "userId", user.ID)
	respondJSON(ctx, w, http.StatusCreated, authResponse{Tokens: tokens})
}

// Refresh handles POST /api/v1/auth/refresh.
func (h AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !h.ready(w, r) {
		return
	}

	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		respondError(ctx, w, http.StatusBadRequest, "refreshToken is required")
		return
	}

	tokens, err := h.Sessions.Refresh(ctx, strings.TrimSpace(req.RefreshToken))
	switch {
	case errors.Is(err, auth.ErrSessionNotFound), errors.Is(err, auth.ErrRefreshTokenExpired):
		respondError(ctx, w, http.StatusUnauthorized, "invalid refresh token")
		return
	case err != nil:
		logger.Error("refresh session", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to refresh session")
		return
	}

	respondJSON(ctx, w, http.StatusOK, authResponse{Tokens: tokens})
}

// Logout handles POST /api/v1/auth/logout. Revoking the session signs the
// operator out of every open admin view.
func (h AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !h.ready(w, r) {
		return
	}

	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		respondError(ctx, w, http.StatusBadRequest, "refreshToken is required")
		return
	}

	err := h.Sessions.Revoke(ctx, strings.TrimSpace(req.RefreshToken))
	switch {
	case errors.Is(err, auth.ErrSessionNotFound):
		// already signed out
	case err != nil:
		logger.Error("revoke session", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to sign out")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h AuthHandler) ready(w http.ResponseWriter, r *http.Request) bool {
	if h.Users != nil && h.Sessions != nil {
		return true
	}
	ctx := r.Context()
	logging.FromContext(ctx).Error("authentication dependencies unavailable",
		"hasUsers", h.Users != nil, "hasSessions", h.Sessions != nil)
	respondError(ctx, w, http.StatusInternalServerError, "authentication services unavailable")
	return false
}

func (h AuthHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc().UTC()
	}
	return time.Now().UTC()
}
