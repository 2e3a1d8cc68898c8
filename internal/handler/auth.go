package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/oblivio-company/famjam/internal/auth"
	"github.com/oblivio-company/famjam/internal/model"
	"github.com/oblivio-company/famjam/internal/store"
)

const sessionCookieName = "famjam_session"

type AuthHandler struct {
	families   *store.FamilyStore
	users      *store.UserStore
	sessions   *store.SessionStore
	sessionTTL time.Duration
	logger     *slog.Logger
}

func NewAuthHandler(families *store.FamilyStore, users *store.UserStore, sessions *store.SessionStore, sessionTTL time.Duration, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{families: families, users: users, sessions: sessions, sessionTTL: sessionTTL, logger: logger}
}

type registerRequest struct {
	FamilyName string `json:"family_name"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
}

// Register creates a family and its first parent account, then logs in.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.FamilyName = strings.TrimSpace(req.FamilyName)
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.FamilyName == "" || req.Username == "" || req.Email == "" {
		writeError(w, http.StatusBadRequest, "family_name, username, and email are required")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	existing, err := h.users.GetByEmail(req.Email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check email")
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "email already registered")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	inviteCode := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	family, err := h.families.Create(req.FamilyName, inviteCode)
	if err != nil {
		h.logger.Error("create family", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to create family")
		return
	}

	parent, err := h.users.Create(family.ID, req.Username, &req.Email, model.RoleParent, hash)
	if err != nil {
		h.logger.Error("create parent", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	if !h.startSession(w, parent.ID) {
		return
	}
	h.logger.Info("family registered", slog.Int64("family_id", family.ID))
	writeJSON(w, http.StatusCreated, map[string]any{
		"family": family,
		"user":   parent,
	})
}

type joinRequest struct {
	InviteCode string `json:"invite_code"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
}

// Join adds a second parent to an existing family via its invite code.
func (h *AuthHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Username == "" || req.Email == "" || len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "username, email, and a password of 8+ characters are required")
		return
	}

	family, err := h.families.GetByInviteCode(strings.ToUpper(strings.TrimSpace(req.InviteCode)))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to look up invite")
		return
	}
	if family == nil {
		writeError(w, http.StatusNotFound, "invite code not recognized")
		return
	}

	existing, err := h.users.GetByEmail(req.Email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check email")
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "email already registered")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}
	parent, err := h.users.Create(family.ID, req.Username, &req.Email, model.RoleParent, hash)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	if !h.startSession(w, parent.ID) {
		return
	}
	writeJSON(w, http.StatusCreated, parent)
}

type loginRequest struct {
	Email      string `json:"email"`
	InviteCode string `json:"invite_code"`
	Username   string `json:"username"`
	Password   string `json:"password"`
}

// Login authenticates either a parent (email + password) or a child (family
// invite code + username + password).
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	var user *model.User
	var err error
	switch {
	case req.Email != "":
		user, err = h.users.GetByEmail(strings.TrimSpace(strings.ToLower(req.Email)))
	case req.InviteCode != "" && req.Username != "":
		var family *model.Family
		family, err = h.families.GetByInviteCode(strings.ToUpper(strings.TrimSpace(req.InviteCode)))
		if err == nil && family != nil {
			user, err = h.users.GetByUsername(family.ID, strings.TrimSpace(req.Username))
		}
	default:
		writeError(w, http.StatusBadRequest, "provide email, or invite_code and username")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to look up user")
		return
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if !h.startSession(w, user.ID) {
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		if err := h.sessions.Delete(cookie.Value); err != nil {
			h.logger.Warn("delete session", slog.Any("error", err))
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetByID(auth.UserID(r.Context()))
	if err != nil || user == nil {
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// DeleteAccount removes the calling parent. The last parent takes the whole
// family with them: children, tasks, plans, rewards, and requests all cascade.
func (h *AuthHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	familyID := auth.FamilyID(r.Context())
	userID := auth.UserID(r.Context())

	parents, err := h.users.CountParents(familyID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to count parents")
		return
	}

	if parents <= 1 {
		if err := h.families.Delete(familyID); err != nil {
			h.logger.Error("delete family", slog.Any("error", err))
			writeError(w, http.StatusInternalServerError, "failed to delete family")
			return
		}
		h.logger.Info("family deleted", slog.Int64("family_id", familyID))
	} else {
		if err := h.users.Delete(userID); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to delete account")
			return
		}
	}

	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		_ = h.sessions.Delete(cookie.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) startSession(w http.ResponseWriter, userID int64) bool {
	sess, err := h.sessions.Create(userID, h.sessionTTL)
	if err != nil {
		h.logger.Error("create session", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return false
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return true
}
