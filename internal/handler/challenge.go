package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/oblivio-company/famjam/internal/auth"
	"github.com/oblivio-company/famjam/internal/challenge"
	"github.com/oblivio-company/famjam/internal/model"
	"github.com/oblivio-company/famjam/internal/store"
	"github.com/oblivio-company/famjam/internal/websocket"
)

type ChallengeHandler struct {
	service        *challenge.Service
	challengeStore *store.ChallengeStore
	userStore      *store.UserStore
	hub            *websocket.Hub
	logger         *slog.Logger
}

func NewChallengeHandler(service *challenge.Service, cs *store.ChallengeStore, us *store.UserStore, hub *websocket.Hub, logger *slog.Logger) *ChallengeHandler {
	return &ChallengeHandler{service: service, challengeStore: cs, userStore: us, hub: hub, logger: logger}
}

func (h *ChallengeHandler) broadcast(ev websocket.Event) {
	if h.hub != nil {
		h.hub.Broadcast(ev)
	}
}

type challengeRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Points      int    `json:"points"`
}

func (h *ChallengeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req challengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.Points <= 0 {
		writeError(w, http.StatusBadRequest, "name and positive points are required")
		return
	}

	created, err := h.challengeStore.Create(auth.FamilyID(r.Context()), req.Name, req.Description, req.Points)
	if err != nil {
		h.logger.Error("create challenge", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to create challenge")
		return
	}

	h.broadcast(websocket.ChallengeEvent("created", created.ID))
	writeJSON(w, http.StatusCreated, created)
}

func (h *ChallengeHandler) List(w http.ResponseWriter, r *http.Request) {
	challenges, err := h.challengeStore.ListByFamily(auth.FamilyID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list challenges")
		return
	}
	if challenges == nil {
		challenges = []model.Challenge{}
	}
	writeJSON(w, http.StatusOK, challenges)
}

// Claim gives the acting child exclusive hold of an open challenge.
func (h *ChallengeHandler) Claim(w http.ResponseWriter, r *http.Request) {
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

	claimed, err := h.service.Claim(actor, id)
	if err != nil {
		switch {
		case errors.Is(err, challenge.ErrChallengeNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, challenge.ErrAlreadyClaimed):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, challenge.ErrParentsCannotPlay):
			writeError(w, http.StatusForbidden, err.Error())
		default:
			h.logger.Error("claim challenge", slog.Any("error", err))
			writeError(w, http.StatusInternalServerError, "failed to claim challenge")
		}
		return
	}

	h.broadcast(websocket.ChallengeEvent("claimed", id))
	writeJSON(w, http.StatusOK, claimed)
}

// Complete finishes the actor's claimed challenge and credits its points.
func (h *ChallengeHandler) Complete(w http.ResponseWriter, r *http.Request) {
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

	completed, err := h.service.Complete(actor, id)
	if err != nil {
		switch {
		case errors.Is(err, challenge.ErrChallengeNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, challenge.ErrNotClaimer):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, challenge.ErrParentsCannotPlay):
			writeError(w, http.StatusForbidden, err.Error())
		default:
			h.logger.Error("complete challenge", slog.Any("error", err))
			writeError(w, http.StatusInternalServerError, "failed to complete challenge")
		}
		return
	}

	h.broadcast(websocket.ChallengeEvent("completed", id))
	h.broadcast(websocket.PointsEvent(actor.ID))
	writeJSON(w, http.StatusOK, completed)
}

func (h *ChallengeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	deleted, err := h.challengeStore.Delete(id, auth.FamilyID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete challenge")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "challenge not found")
		return
	}

	h.broadcast(websocket.ChallengeEvent("deleted", id))
	w.WriteHeader(http.StatusNoContent)
}
