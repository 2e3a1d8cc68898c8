package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/oblivio-company/famjam/internal/auth"
	"github.com/oblivio-company/famjam/internal/model"
	"github.com/oblivio-company/famjam/internal/reward"
	"github.com/oblivio-company/famjam/internal/store"
	"github.com/oblivio-company/famjam/internal/websocket"
)

type RewardHandler struct {
	service     *reward.Service
	rewardStore *store.RewardStore
	userStore   *store.UserStore
	hub         *websocket.Hub
	logger      *slog.Logger
}

func NewRewardHandler(service *reward.Service, rs *store.RewardStore, us *store.UserStore, hub *websocket.Hub, logger *slog.Logger) *RewardHandler {
	return &RewardHandler{service: service, rewardStore: rs, userStore: us, hub: hub, logger: logger}
}

func (h *RewardHandler) broadcast(ev websocket.Event) {
	if h.hub != nil {
		h.hub.Broadcast(ev)
	}
}

type rewardRequest struct {
	Name string `json:"name"`
	Cost int    `json:"cost"`
}

func (h *RewardHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req rewardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.Cost <= 0 {
		writeError(w, http.StatusBadRequest, "name and positive cost are required")
		return
	}

	created, err := h.rewardStore.Create(auth.FamilyID(r.Context()), req.Name, req.Cost)
	if err != nil {
		h.logger.Error("create reward", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to create reward")
		return
	}

	h.broadcast(websocket.RewardEvent("created", created.ID))
	writeJSON(w, http.StatusCreated, created)
}

func (h *RewardHandler) List(w http.ResponseWriter, r *http.Request) {
	rewards, err := h.rewardStore.ListByFamily(auth.FamilyID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list rewards")
		return
	}
	if rewards == nil {
		rewards = []model.Reward{}
	}
	writeJSON(w, http.StatusOK, rewards)
}

func (h *RewardHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	deleted, err := h.rewardStore.Delete(id, auth.FamilyID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete reward")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "reward not found")
		return
	}

	h.broadcast(websocket.RewardEvent("deleted", id))
	w.WriteHeader(http.StatusNoContent)
}

// Redeem spends the actor's points on a reward and opens a pending request.
func (h *RewardHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	actor, err := h.userStore.GetByID(auth.UserID(r.Context()))
	if err != nil || actor == nil {
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}

	req, err := h.service.Redeem(actor, id)
	if err != nil {
		switch {
		case errors.Is(err, reward.ErrRewardNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, store.ErrInsufficientPoints):
			writeError(w, http.StatusConflict, err.Error())
		default:
			h.logger.Error("redeem reward", slog.Any("error", err))
			writeError(w, http.StatusInternalServerError, "failed to redeem reward")
		}
		return
	}

	h.broadcast(websocket.RequestEvent("created", req.ID))
	h.broadcast(websocket.PointsEvent(actor.ID))
	writeJSON(w, http.StatusCreated, req)
}

// ListPending returns the parent approval queue.
func (h *RewardHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	requests, err := h.rewardStore.ListPendingByFamily(auth.FamilyID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list requests")
		return
	}
	if requests == nil {
		requests = []model.RewardRequest{}
	}
	writeJSON(w, http.StatusOK, requests)
}

type resolveRequest struct {
	Action string `json:"action"`
}

// Resolve approves or denies a pending request. Denial refunds the points.
func (h *RewardHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	var approve bool
	switch req.Action {
	case "approve":
		approve = true
	case "deny":
	default:
		writeError(w, http.StatusBadRequest, "action must be approve or deny")
		return
	}

	resolved, err := h.service.Resolve(auth.FamilyID(r.Context()), auth.UserID(r.Context()), id, approve)
	if err != nil {
		if errors.Is(err, store.ErrAlreadyResolved) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		h.logger.Error("resolve request", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to resolve request")
		return
	}

	h.broadcast(websocket.RequestEvent(string(resolved.Status), id))
	h.broadcast(websocket.PointsEvent(resolved.RequestedBy))
	writeJSON(w, http.StatusOK, resolved)
}
