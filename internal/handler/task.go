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
	"github.com/oblivio-company/famjam/internal/schedule"
	"github.com/oblivio-company/famjam/internal/store"
	"github.com/oblivio-company/famjam/internal/task"
	"github.com/oblivio-company/famjam/internal/websocket"
)

type TaskHandler struct {
	service   *task.Service
	taskStore *store.TaskStore
	userStore *store.UserStore
	clock     *clock.Clock
	hub       *websocket.Hub
	logger    *slog.Logger
}

func NewTaskHandler(service *task.Service, ts *store.TaskStore, us *store.UserStore, clk *clock.Clock, hub *websocket.Hub, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{service: service, taskStore: ts, userStore: us, clock: clk, hub: hub, logger: logger}
}

func (h *TaskHandler) broadcast(ev websocket.Event) {
	if h.hub != nil {
		h.hub.Broadcast(ev)
	}
}

type taskRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Points      int    `json:"points"`
	Type        string `json:"type"`
	Recurrence  string `json:"recurrence"`
	AssignedTo  string `json:"assigned_to"`
	DueDate     string `json:"due_date"`
}

// Create schedules an ad-hoc task, expanding recurring ones over the horizon.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	due, err := h.clock.ParseDate(req.DueDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "due_date must be YYYY-MM-DD")
		return
	}
	recurrence := model.Recurrence(req.Recurrence)
	if req.Recurrence == "" {
		recurrence = model.RecurNone
	}

	tpl := schedule.Template{
		Name:        req.Name,
		Description: req.Description,
		Points:      req.Points,
		Type:        model.TaskType(req.Type),
		Recurrence:  recurrence,
		AssignedTo:  req.AssignedTo,
	}

	created, err := h.service.Create(auth.FamilyID(r.Context()), tpl, due)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.broadcast(websocket.TaskEvent("created", 0))
	writeJSON(w, http.StatusCreated, map[string]int{"created": created})
}

// List returns the family's tasks for a date range. Defaults to the current
// week starting today.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	start := h.clock.Today()
	end := start.AddDate(0, 0, 7)

	if v := r.URL.Query().Get("start"); v != "" {
		t, err := h.clock.ParseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "start must be YYYY-MM-DD")
			return
		}
		start = t
	}
	if v := r.URL.Query().Get("end"); v != "" {
		t, err := h.clock.ParseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "end must be YYYY-MM-DD")
			return
		}
		// Inclusive end date in the query, exclusive bound in the store.
		end = t.AddDate(0, 0, 1)
	}

	tasks, err := h.taskStore.ListByFamilyRange(auth.FamilyID(r.Context()), start, end)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list tasks")
		return
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

// ListPending returns completed chores awaiting approval.
func (h *TaskHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.taskStore.ListCompletedByFamily(auth.FamilyID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list pending tasks")
		return
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

// Complete lets a child mark their own chore done.
func (h *TaskHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	actor, err := h.actorUser(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}

	done, err := h.service.CompleteChore(actor, id)
	if err != nil {
		h.writeTaskError(w, err)
		return
	}

	h.broadcast(websocket.TaskEvent("completed", id))
	writeJSON(w, http.StatusOK, done)
}

// CheckIn records a habit check-in for the actor.
func (h *TaskHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	actor, err := h.actorUser(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}

	checked, err := h.service.CheckInHabit(actor, id)
	if err != nil {
		h.writeTaskError(w, err)
		return
	}

	h.broadcast(websocket.TaskEvent("checked_in", id))
	h.broadcast(websocket.PointsEvent(actor.ID))
	writeJSON(w, http.StatusOK, checked)
}

// Approve confirms one completed chore and credits its points.
func (h *TaskHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	approved, err := h.service.Approve(auth.FamilyID(r.Context()), id)
	if err != nil {
		h.writeTaskError(w, err)
		return
	}

	h.broadcast(websocket.TaskEvent("approved", id))
	h.broadcast(websocket.PointsEvent(approved.AssignedTo))
	writeJSON(w, http.StatusOK, approved)
}

// ApproveAll approves every completed chore in the family.
func (h *TaskHandler) ApproveAll(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.ApproveAll(auth.FamilyID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to approve tasks")
		return
	}

	h.broadcast(websocket.TaskEvent("approved", 0))
	writeJSON(w, http.StatusOK, map[string]int{"approved": n})
}

// Forgive clears a child's missed tasks without restoring points.
func (h *TaskHandler) Forgive(w http.ResponseWriter, r *http.Request) {
	childID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	n, err := h.service.Forgive(auth.FamilyID(r.Context()), childID)
	if err != nil {
		if errors.Is(err, task.ErrNotAllowed) {
			writeError(w, http.StatusNotFound, "child not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to forgive tasks")
		return
	}

	h.broadcast(websocket.TaskEvent("forgiven", childID))
	writeJSON(w, http.StatusOK, map[string]int{"forgiven": n})
}

// Update edits a single task occurrence.
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Points      int    `json:"points"`
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
	due, err := h.clock.ParseDate(req.DueDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "due_date must be YYYY-MM-DD")
		return
	}

	updated, err := h.taskStore.Update(id, auth.FamilyID(r.Context()), req.Name, req.Description, req.Points, req.AssignedTo, due)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateTask) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to update task")
		return
	}

	h.broadcast(websocket.TaskEvent("updated", id))
	writeJSON(w, http.StatusOK, updated)
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	deleted, err := h.taskStore.Delete(id, auth.FamilyID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete task")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}

	h.broadcast(websocket.TaskEvent("deleted", id))
	w.WriteHeader(http.StatusNoContent)
}

func (h *TaskHandler) actorUser(r *http.Request) (*model.User, error) {
	return h.userStore.GetByID(auth.UserID(r.Context()))
}

func (h *TaskHandler) writeTaskError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, task.ErrTaskNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, task.ErrNotAllowed):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, task.ErrAlreadyCheckedIn),
		errors.Is(err, task.ErrHabitClosed),
		errors.Is(err, task.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("task operation failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "task operation failed")
	}
}
