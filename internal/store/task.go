package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oblivio-company/famjam/internal/model"
)

// ErrDuplicateTask is returned when a manual insert collides with the
// (family, name, due_date, assignee) natural key.
var ErrDuplicateTask = errors.New("a task with this name, date, and assignee already exists")

type TaskStore struct {
	db *sql.DB
}

func NewTaskStore(db *sql.DB) *TaskStore {
	return &TaskStore{db: db}
}

const taskCols = `id, family_id, plan_id, name, description, points, type, assigned_to, due_date, status,
	completed_at, approved_at, missed_at, forgiven_at, streak, last_completed, created_at`

func scanTask(scanner interface{ Scan(...any) error }) (*model.Task, error) {
	var t model.Task
	var planID sql.NullInt64
	var completedAt, approvedAt, missedAt, forgivenAt, lastCompleted sql.NullTime

	err := scanner.Scan(
		&t.ID, &t.FamilyID, &planID, &t.Name, &t.Description, &t.Points, &t.Type,
		&t.AssignedTo, &t.DueDate, &t.Status,
		&completedAt, &approvedAt, &missedAt, &forgivenAt,
		&t.Streak, &lastCompleted, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if planID.Valid {
		t.PlanID = &planID.Int64
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.Time
	}
	if approvedAt.Valid {
		t.ApprovedAt = &approvedAt.Time
	}
	if missedAt.Valid {
		t.MissedAt = &missedAt.Time
	}
	if forgivenAt.Valid {
		t.ForgivenAt = &forgivenAt.Time
	}
	if lastCompleted.Valid {
		t.LastCompleted = &lastCompleted.Time
	}
	return &t, nil
}

// ScheduleMany inserts every task that does not already exist under the
// natural key and leaves existing rows untouched. The whole batch runs in
// one transaction so a concurrent scheduling call sees all or nothing.
// Returns the number of tasks actually created.
func (s *TaskStore) ScheduleMany(tasks []model.Task) (int, error) {
	if len(tasks) == 0 {
		return 0, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO tasks
		(family_id, plan_id, name, description, points, type, assigned_to, due_date, status, streak)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 'assigned', 0)`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, t := range tasks {
		var planID sql.NullInt64
		if t.PlanID != nil {
			planID = sql.NullInt64{Int64: *t.PlanID, Valid: true}
		}
		res, err := stmt.Exec(t.FamilyID, planID, t.Name, t.Description, t.Points, t.Type,
			t.AssignedTo, t.DueDate.UTC())
		if err != nil {
			return 0, fmt.Errorf("insert task: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("rows affected: %w", err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

// Insert creates a single task and fails with ErrDuplicateTask when a row
// already holds the same natural key.
func (s *TaskStore) Insert(t model.Task) (*model.Task, error) {
	var planID sql.NullInt64
	if t.PlanID != nil {
		planID = sql.NullInt64{Int64: *t.PlanID, Valid: true}
	}

	res, err := s.db.Exec(`INSERT OR IGNORE INTO tasks
		(family_id, plan_id, name, description, points, type, assigned_to, due_date, status, streak)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 'assigned', 0)`,
		t.FamilyID, planID, t.Name, t.Description, t.Points, t.Type, t.AssignedTo, t.DueDate.UTC())
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return nil, ErrDuplicateTask
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *TaskStore) GetByID(id int64) (*model.Task, error) {
	row := s.db.QueryRow(`SELECT `+taskCols+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// GetForFamily fetches a task only if it belongs to the given family.
func (s *TaskStore) GetForFamily(id, familyID int64) (*model.Task, error) {
	row := s.db.QueryRow(`SELECT `+taskCols+` FROM tasks WHERE id = ? AND family_id = ?`, id, familyID)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task for family: %w", err)
	}
	return t, nil
}

// ListByFamilyRange returns a family's tasks with due dates in [start, end),
// ordered by due date. Backs the plan overview and dashboards.
func (s *TaskStore) ListByFamilyRange(familyID int64, start, end time.Time) ([]model.Task, error) {
	rows, err := s.db.Query(
		`SELECT `+taskCols+` FROM tasks
		 WHERE family_id = ? AND due_date >= ? AND due_date < ?
		 ORDER BY due_date ASC, name ASC`,
		familyID, start.UTC(), end.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("list tasks by range: %w", err)
	}
	defer rows.Close()
	return collectTasks(rows)
}

// ListCompletedByFamily returns chores awaiting parent approval.
func (s *TaskStore) ListCompletedByFamily(familyID int64) ([]model.Task, error) {
	rows, err := s.db.Query(
		`SELECT `+taskCols+` FROM tasks
		 WHERE family_id = ? AND status = 'completed'
		 ORDER BY completed_at ASC`,
		familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("list completed tasks: %w", err)
	}
	defer rows.Close()
	return collectTasks(rows)
}

// ListAssignedDueBetween returns still-assigned tasks with due dates in
// [start, end). This is the sweeper's narrow scan, served by the
// (due_date, status) index.
func (s *TaskStore) ListAssignedDueBetween(start, end time.Time) ([]model.Task, error) {
	rows, err := s.db.Query(
		`SELECT `+taskCols+` FROM tasks
		 WHERE due_date >= ? AND due_date < ? AND status = 'assigned'`,
		start.UTC(), end.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("list assigned due tasks: %w", err)
	}
	defer rows.Close()
	return collectTasks(rows)
}

// CompleteChore transitions one chore assigned -> completed, guarded on
// assignee and type in the same statement. Reports whether a row changed.
func (s *TaskStore) CompleteChore(taskID, assigneeID int64, at time.Time) (bool, error) {
	res, err := s.db.Exec(
		`UPDATE tasks SET status = 'completed', completed_at = ?
		 WHERE id = ? AND assigned_to = ? AND type = 'chore' AND status = 'assigned'`,
		at.UTC(), taskID, assigneeID,
	)
	if err != nil {
		return false, fmt.Errorf("complete chore: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// SetApproved transitions the given tasks completed -> approved in one bulk
// statement and returns how many actually moved.
func (s *TaskStore) SetApproved(ids []int64, at time.Time) (int, error) {
	return s.bulkTransition(ids, model.StatusCompleted, model.StatusApproved, "approved_at", at)
}

// MarkMissed transitions the given tasks assigned -> missed in one bulk
// statement and returns how many actually moved.
func (s *TaskStore) MarkMissed(ids []int64, at time.Time) (int, error) {
	return s.bulkTransition(ids, model.StatusAssigned, model.StatusMissed, "missed_at", at)
}

func (s *TaskStore) bulkTransition(ids []int64, from, to model.TaskStatus, tsCol string, at time.Time) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := make([]any, 0, len(ids)+3)
	args = append(args, string(to), at.UTC())
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, string(from))

	q := fmt.Sprintf(`UPDATE tasks SET status = ?, %s = ? WHERE id IN (%s) AND status = ?`,
		tsCol, placeholders(len(ids)))
	res, err := s.db.Exec(q, args...)
	if err != nil {
		return 0, fmt.Errorf("transition %s to %s: %w", from, to, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

// ForgiveMissed moves all of one child's missed tasks to forgiven and
// returns the number of tasks touched. Points are not restored.
func (s *TaskStore) ForgiveMissed(assigneeID int64, at time.Time) (int, error) {
	res, err := s.db.Exec(
		`UPDATE tasks SET status = 'forgiven', forgiven_at = ?
		 WHERE assigned_to = ? AND status = 'missed'`,
		at.UTC(), assigneeID,
	)
	if err != nil {
		return 0, fmt.Errorf("forgive missed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

// RecordCheckIn stores a habit check-in: new streak and last-completed
// instant. Status stays assigned; habits have no approval stage. The guard
// rejects a second check-in on the same local day (dayStart is the start of
// that day), so racing requests cannot both record. Returns whether this
// call won.
func (s *TaskStore) RecordCheckIn(taskID int64, at, dayStart time.Time, streak int) (bool, error) {
	res, err := s.db.Exec(
		`UPDATE tasks SET last_completed = ?, streak = ?
		 WHERE id = ? AND (last_completed IS NULL OR last_completed < ?)`,
		at.UTC(), streak, taskID, dayStart.UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("record check-in: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// Update edits a task's mutable fields, re-checking the natural key against
// other rows first.
func (s *TaskStore) Update(id, familyID int64, name, description string, points int, assignedTo int64, dueDate time.Time) (*model.Task, error) {
	var clash int64
	err := s.db.QueryRow(
		`SELECT count(*) FROM tasks
		 WHERE family_id = ? AND name = ? AND due_date = ? AND assigned_to = ? AND id != ?`,
		familyID, name, dueDate.UTC(), assignedTo, id,
	).Scan(&clash)
	if err != nil {
		return nil, fmt.Errorf("check duplicate: %w", err)
	}
	if clash > 0 {
		return nil, ErrDuplicateTask
	}

	_, err = s.db.Exec(
		`UPDATE tasks SET name = ?, description = ?, points = ?, assigned_to = ?, due_date = ?
		 WHERE id = ? AND family_id = ?`,
		name, description, points, assignedTo, dueDate.UTC(), id, familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	return s.GetByID(id)
}

// Delete removes a task, scoped to the family. Reports whether a row went away.
func (s *TaskStore) Delete(id, familyID int64) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM tasks WHERE id = ? AND family_id = ?`, id, familyID)
	if err != nil {
		return false, fmt.Errorf("delete task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func collectTasks(rows *sql.Rows) ([]model.Task, error) {
	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
