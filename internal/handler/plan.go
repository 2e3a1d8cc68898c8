package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/oblivio-company/famjam/internal/auth"
	"github.com/oblivio-company/famjam/internal/clock"
	"github.com/oblivio-company/famjam/internal/model"
	"github.com/oblivio-company/famjam/internal/plan"
	"github.com/oblivio-company/famjam/internal/store"
	"github.com/oblivio-company/famjam/internal/websocket"
)

type PlanHandler struct {
	service   *plan.Service
	planStore *store.PlanStore
	taskStore *store.TaskStore
	clock     *clock.Clock
	hub       *websocket.Hub
	logger    *slog.Logger
}

func NewPlanHandler(service *plan.Service, ps *store.PlanStore, ts *store.TaskStore, clk *clock.Clock, hub *websocket.Hub, logger *slog.Logger) *PlanHandler {
	return &PlanHandler{service: service, planStore: ps, taskStore: ts, clock: clk, hub: hub, logger: logger}
}

func (h *PlanHandler) broadcast(ev websocket.Event) {
	if h.hub != nil {
		h.hub.Broadcast(ev)
	}
}

type planTemplateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Points      int    `json:"points"`
	Type        string `json:"type"`
	Recurrence  string `json:"recurrence"`
	AssignedTo  string `json:"assigned_to"`
}

type planRequest struct {
	Name      string                `json:"name"`
	Goal      string                `json:"goal"`
	StartDate string                `json:"start_date"`
	EndDate   string                `json:"end_date"`
	Templates []planTemplateRequest `json:"templates"`
}

// Create stores a draft plan. Nothing is scheduled until it is applied.
func (h *PlanHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	start, err := h.clock.ParseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "start_date must be YYYY-MM-DD")
		return
	}
	end, err := h.clock.ParseDate(req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "end_date must be YYYY-MM-DD")
		return
	}

	templates := make([]model.PlanTemplate, len(req.Templates))
	for i, t := range req.Templates {
		templates[i] = model.PlanTemplate{
			Name:        strings.TrimSpace(t.Name),
			Description: t.Description,
			Points:      t.Points,
			Type:        model.TaskType(t.Type),
			Recurrence:  model.Recurrence(t.Recurrence),
			AssignedTo:  t.AssignedTo,
		}
	}

	created, err := h.service.CreateDraft(auth.FamilyID(r.Context()), req.Name, req.Goal, start, end, templates)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.broadcast(websocket.PlanEvent("created", created.ID))
	writeJSON(w, http.StatusCreated, created)
}

func (h *PlanHandler) List(w http.ResponseWriter, r *http.Request) {
	plans, err := h.planStore.ListByFamily(auth.FamilyID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list plans")
		return
	}
	if plans == nil {
		plans = []model.Plan{}
	}
	writeJSON(w, http.StatusOK, plans)
}

// Get returns a plan with its templates.
func (h *PlanHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	p, err := h.planStore.GetForFamily(id, auth.FamilyID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get plan")
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "plan not found")
		return
	}
	templates, err := h.planStore.ListTemplates(p.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list templates")
		return
	}
	if templates == nil {
		templates = []model.PlanTemplate{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"plan":      p,
		"templates": templates,
	})
}

// Active returns the family's currently active plan, or null when none is.
func (h *PlanHandler) Active(w http.ResponseWriter, r *http.Request) {
	p, err := h.planStore.GetActive(auth.FamilyID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get active plan")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Rename changes a plan's name without touching its templates or tasks.
func (h *PlanHandler) Rename(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	renamed, err := h.planStore.Rename(id, auth.FamilyID(r.Context()), req.Name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to rename plan")
		return
	}
	if !renamed {
		writeError(w, http.StatusNotFound, "plan not found")
		return
	}

	h.broadcast(websocket.PlanEvent("updated", id))
	writeJSON(w, http.StatusOK, map[string]string{"name": req.Name})
}

// Apply activates the plan and schedules its tasks.
func (h *PlanHandler) Apply(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	created, err := h.service.Apply(auth.FamilyID(r.Context()), id)
	if err != nil {
		if errors.Is(err, plan.ErrPlanNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h.logger.Error("apply plan", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to apply plan")
		return
	}

	h.broadcast(websocket.PlanEvent("applied", id))
	h.broadcast(websocket.TaskEvent("created", 0))
	writeJSON(w, http.StatusOK, map[string]int{"created": created})
}

// AddTask inserts one extra task under an existing plan. Unlike Apply this
// does not expand anything; it is for a one-off addition after the fact.
func (h *PlanHandler) AddTask(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	familyID := auth.FamilyID(r.Context())
	p, err := h.planStore.GetForFamily(id, familyID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get plan")
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "plan not found")
		return
	}

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Points      int    `json:"points"`
		Type        string `json:"type"`
		AssignedTo  int64  `json:"assigned_to"`
		DueDate     string `json:"due_date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.Points <= 0 {
		writeError(w, http.StatusBadRequest, "name and positive points are required")
		return
	}
	taskType := model.TaskType(req.Type)
	if taskType != model.TaskChore && taskType != model.TaskHabit {
		writeError(w, http.StatusBadRequest, "type must be chore or habit")
		return
	}
	due, err := h.clock.ParseDate(req.DueDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "due_date must be YYYY-MM-DD")
		return
	}

	created, err := h.taskStore.Insert(model.Task{
		FamilyID:    familyID,
		PlanID:      &p.ID,
		Name:        req.Name,
		Description: req.Description,
		Points:      req.Points,
		Type:        taskType,
		AssignedTo:  req.AssignedTo,
		DueDate:     due,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateTask) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		h.logger.Error("add plan task", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to add task")
		return
	}

	h.broadcast(websocket.TaskEvent("created", created.ID))
	writeJSON(w, http.StatusCreated, created)
}

func (h *PlanHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	if err := h.planStore.Delete(id, auth.FamilyID(r.Context())); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete plan")
		return
	}

	h.broadcast(websocket.PlanEvent("deleted", id))
	w.WriteHeader(http.StatusNoContent)
}
