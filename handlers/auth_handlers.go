package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/nikhilsahni7/TourDesk/auth"
	"github.com/nikhilsahni7/TourDesk/db"
	"github.com/nikhilsahni7/TourDesk/logger"
	"github.com/nikhilsahni7/TourDesk/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var credentials struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeBody(w, r, &credentials) {
		return
	}

	var user models.User
	err := h.db.WithContext(r.Context()).
		Where("email = ?", strings.ToLower(strings.TrimSpace(credentials.Email))).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeMessage(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !auth.CheckPasswordHash(credentials.Password, user.PasswordHash) {
		writeMessage(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := h.tokens.Issue(&user)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.auth.StartSession(w, r, &user); err != nil {
		logger.FromContext(r.Context()).Warn("Failed to save session", zap.Error(err))
	}

	logger.FromContext(r.Context()).Info("User logged in", zap.Uint("user_id", user.ID))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user":  user,
	})
}

// CreateUser registers an account. Only admins reach this route, so any
// role may be assigned.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Name     string      `json:"name"`
		Email    string      `json:"email"`
		Password string      `json:"password"`
		Role     models.Role `json:"role"`
	}
	if !decodeBody(w, r, &input) || !required(w, "email", input.Email) || !required(w, "password", input.Password) {
		return
	}
	switch input.Role {
	case "":
		input.Role = models.RoleUser
	case models.RoleAdmin, models.RoleGuide, models.RoleUser:
	default:
		writeMessage(w, http.StatusBadRequest, "Unknown role "+string(input.Role))
		return
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	user := models.User{
		Email:        strings.ToLower(strings.TrimSpace(input.Email)),
		Name:         input.Name,
		PasswordHash: hash,
		Role:         input.Role,
	}
	h.create(w, r, &user)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.ClearSession(w, r); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (h *Handler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	var user models.User
	if err := h.db.WithContext(r.Context()).First(&user, caller(r).UserID).Error; err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := db.Ping(r.Context(), h.db); err != nil {
		logger.FromContext(r.Context()).Error("Health check failed", zap.Error(err))
		writeMessage(w, http.StatusServiceUnavailable, "Database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
