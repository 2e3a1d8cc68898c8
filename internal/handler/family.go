package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/oblivio-company/famjam/internal/auth"
	"github.com/oblivio-company/famjam/internal/model"
	"github.com/oblivio-company/famjam/internal/store"
	"github.com/oblivio-company/famjam/internal/websocket"
)

type FamilyHandler struct {
	families   *store.FamilyStore
	users      *store.UserStore
	challenges *store.ChallengeStore
	hub        *websocket.Hub
	logger     *slog.Logger
}

func NewFamilyHandler(fs *store.FamilyStore, us *store.UserStore, cs *store.ChallengeStore, hub *websocket.Hub, logger *slog.Logger) *FamilyHandler {
	return &FamilyHandler{families: fs, users: us, challenges: cs, hub: hub, logger: logger}
}

func (h *FamilyHandler) broadcast(ev websocket.Event) {
	if h.hub != nil {
		h.hub.Broadcast(ev)
	}
}

// Get returns the family record, including the invite code parents share.
func (h *FamilyHandler) Get(w http.ResponseWriter, r *http.Request) {
	family, err := h.families.GetByID(auth.FamilyID(r.Context()))
	if err != nil || family == nil {
		writeError(w, http.StatusInternalServerError, "failed to load family")
		return
	}
	writeJSON(w, http.StatusOK, family)
}

// ListMembers returns the full roster in display order.
func (h *FamilyHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.users.ListByFamily(auth.FamilyID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list members")
		return
	}
	if members == nil {
		members = []model.User{}
	}
	writeJSON(w, http.StatusOK, members)
}

type childRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// CreateChild adds a child account to the family.
func (h *FamilyHandler) CreateChild(w http.ResponseWriter, r *http.Request) {
	var req childRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	familyID := auth.FamilyID(r.Context())
	existing, err := h.users.GetByUsername(familyID, req.Username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check username")
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "username already taken in this family")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}
	child, err := h.users.Create(familyID, req.Username, nil, model.RoleChild, hash)
	if err != nil {
		h.logger.Error("create child", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to create child")
		return
	}

	h.broadcast(websocket.MemberEvent("created", child.ID))
	writeJSON(w, http.StatusCreated, child)
}

// UpdateChild renames a child and/or resets their password.
func (h *FamilyHandler) UpdateChild(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req childRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" && req.Password == "" {
		writeError(w, http.StatusBadRequest, "provide a username or a password to change")
		return
	}

	familyID := auth.FamilyID(r.Context())
	child, err := h.users.GetChildInFamily(id, familyID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get child")
		return
	}
	if child == nil {
		writeError(w, http.StatusNotFound, "child not found")
		return
	}

	if req.Username != "" && req.Username != child.Username {
		existing, err := h.users.GetByUsername(familyID, req.Username)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to check username")
			return
		}
		if existing != nil {
			writeError(w, http.StatusConflict, "username already taken in this family")
			return
		}
		if err := h.users.SetUsername(child.ID, req.Username); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to update username")
			return
		}
	}
	if req.Password != "" {
		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to hash password")
			return
		}
		if err := h.users.SetPasswordHash(child.ID, hash); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to update password")
			return
		}
	}

	updated, err := h.users.GetByID(child.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load child")
		return
	}
	h.broadcast(websocket.MemberEvent("updated", child.ID))
	writeJSON(w, http.StatusOK, updated)
}

// DeleteChild removes a child account; their tasks and requests go with it.
func (h *FamilyHandler) DeleteChild(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	child, err := h.users.GetChildInFamily(id, auth.FamilyID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get child")
		return
	}
	if child == nil {
		writeError(w, http.StatusNotFound, "child not found")
		return
	}

	// Release any challenge the child was holding so a sibling can claim it.
	reopened, err := h.challenges.ReopenByClaimer(child.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to release challenges")
		return
	}
	if err := h.users.Delete(child.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete child")
		return
	}
	if reopened > 0 {
		h.broadcast(websocket.ChallengeEvent("updated", 0))
	}

	h.broadcast(websocket.MemberEvent("deleted", id))
	w.WriteHeader(http.StatusNoContent)
}

// ResetPoints zeroes a child's spendable points.
func (h *FamilyHandler) ResetPoints(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	child, err := h.users.GetChildInFamily(id, auth.FamilyID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get child")
		return
	}
	if child == nil {
		writeError(w, http.StatusNotFound, "child not found")
		return
	}

	if err := h.users.ResetPoints(child.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to reset points")
		return
	}

	h.broadcast(websocket.PointsEvent(child.ID))
	w.WriteHeader(http.StatusNoContent)
}

type cashRequest struct {
	Balance float64 `json:"balance"`
}

// SetCashBalance replaces a child's parent-managed cash balance.
func (h *FamilyHandler) SetCashBalance(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req cashRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Balance < 0 {
		writeError(w, http.StatusBadRequest, "balance cannot be negative")
		return
	}

	child, err := h.users.GetChildInFamily(id, auth.FamilyID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get child")
		return
	}
	if child == nil {
		writeError(w, http.StatusNotFound, "child not found")
		return
	}

	if err := h.users.SetCashBalance(child.ID, req.Balance); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to set cash balance")
		return
	}

	updated, err := h.users.GetByID(child.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load child")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

type leaderboardEntry struct {
	UserID         int64  `json:"user_id"`
	Username       string `json:"username"`
	Points         int    `json:"points"`
	LifetimePoints int    `json:"lifetime_points"`
}

// Leaderboard ranks the family's children by lifetime points.
func (h *FamilyHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	children, err := h.users.ListChildren(auth.FamilyID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list children")
		return
	}

	entries := make([]leaderboardEntry, len(children))
	for i, c := range children {
		entries[i] = leaderboardEntry{
			UserID:         c.ID,
			Username:       c.Username,
			Points:         c.Points,
			LifetimePoints: c.LifetimePoints,
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].LifetimePoints > entries[j].LifetimePoints
	})

	writeJSON(w, http.StatusOK, entries)
}
