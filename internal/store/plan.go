package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/oblivio-company/famjam/internal/model"
)

type PlanStore struct {
	db *sql.DB
}

func NewPlanStore(db *sql.DB) *PlanStore {
	return &PlanStore{db: db}
}

const planCols = `id, family_id, name, goal, status, start_date, end_date, applied_at, created_at`

func scanPlan(scanner interface{ Scan(...any) error }) (*model.Plan, error) {
	var p model.Plan
	var appliedAt sql.NullTime

	err := scanner.Scan(&p.ID, &p.FamilyID, &p.Name, &p.Goal, &p.Status,
		&p.StartDate, &p.EndDate, &appliedAt, &p.CreatedAt)
	if err != nil {
		return nil, err
	}

	if appliedAt.Valid {
		p.AppliedAt = &appliedAt.Time
	}
	return &p, nil
}

// CreateDraft inserts a draft plan together with its templates.
func (s *PlanStore) CreateDraft(familyID int64, name, goal string, start, end time.Time, templates []model.PlanTemplate) (*model.Plan, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT INTO plans (family_id, name, goal, status, start_date, end_date) VALUES (?, ?, ?, 'draft', ?, ?)`,
		familyID, name, goal, start.UTC(), end.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert plan: %w", err)
	}
	planID, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	for _, t := range templates {
		_, err := tx.Exec(
			`INSERT INTO plan_templates (plan_id, name, description, points, type, recurrence, assigned_to)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			planID, t.Name, t.Description, t.Points, t.Type, t.Recurrence, t.AssignedTo,
		)
		if err != nil {
			return nil, fmt.Errorf("insert plan template: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(planID)
}

func (s *PlanStore) GetByID(id int64) (*model.Plan, error) {
	row := s.db.QueryRow(`SELECT `+planCols+` FROM plans WHERE id = ?`, id)
	p, err := scanPlan(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get plan: %w", err)
	}
	return p, nil
}

func (s *PlanStore) GetForFamily(id, familyID int64) (*model.Plan, error) {
	row := s.db.QueryRow(`SELECT `+planCols+` FROM plans WHERE id = ? AND family_id = ?`, id, familyID)
	p, err := scanPlan(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get plan for family: %w", err)
	}
	return p, nil
}

// ListByFamily returns the family's plans, newest first.
func (s *PlanStore) ListByFamily(familyID int64) ([]model.Plan, error) {
	rows, err := s.db.Query(`SELECT `+planCols+` FROM plans WHERE family_id = ? ORDER BY created_at DESC, id DESC`, familyID)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	var plans []model.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		plans = append(plans, *p)
	}
	return plans, rows.Err()
}

// GetActive returns the family's active plan, or nil when none is active.
func (s *PlanStore) GetActive(familyID int64) (*model.Plan, error) {
	row := s.db.QueryRow(`SELECT `+planCols+` FROM plans WHERE family_id = ? AND status = 'active'`, familyID)
	p, err := scanPlan(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active plan: %w", err)
	}
	return p, nil
}

// Activate archives any currently active plan for the family and marks the
// given plan active, in one transaction so the one-active invariant holds.
func (s *PlanStore) Activate(id, familyID int64, at time.Time) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`UPDATE plans SET status = 'archived' WHERE family_id = ? AND status = 'active'`,
		familyID,
	)
	if err != nil {
		return fmt.Errorf("archive active plans: %w", err)
	}

	res, err := tx.Exec(
		`UPDATE plans SET status = 'active', applied_at = ? WHERE id = ? AND family_id = ?`,
		at.UTC(), id, familyID,
	)
	if err != nil {
		return fmt.Errorf("activate plan: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("plan %d not found in family %d", id, familyID)
	}

	return tx.Commit()
}

func (s *PlanStore) Rename(id, familyID int64, name string) (bool, error) {
	res, err := s.db.Exec(`UPDATE plans SET name = ? WHERE id = ? AND family_id = ?`, name, id, familyID)
	if err != nil {
		return false, fmt.Errorf("rename plan: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// ListTemplates returns a plan's templates in insertion order.
func (s *PlanStore) ListTemplates(planID int64) ([]model.PlanTemplate, error) {
	rows, err := s.db.Query(
		`SELECT id, plan_id, name, description, points, type, recurrence, assigned_to
		 FROM plan_templates WHERE plan_id = ? ORDER BY id ASC`,
		planID,
	)
	if err != nil {
		return nil, fmt.Errorf("list plan templates: %w", err)
	}
	defer rows.Close()

	var templates []model.PlanTemplate
	for rows.Next() {
		var t model.PlanTemplate
		if err := rows.Scan(&t.ID, &t.PlanID, &t.Name, &t.Description, &t.Points, &t.Type, &t.Recurrence, &t.AssignedTo); err != nil {
			return nil, fmt.Errorf("scan plan template: %w", err)
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

func (s *PlanStore) Delete(id, familyID int64) error {
	_, err := s.db.Exec(`DELETE FROM plans WHERE id = ? AND family_id = ?`, id, familyID)
	if err != nil {
		return fmt.Errorf("delete plan: %w", err)
	}
	return nil
}
