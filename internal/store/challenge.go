package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/oblivio-company/famjam/internal/model"
)

type ChallengeStore struct {
	db *sql.DB
}

func NewChallengeStore(db *sql.DB) *ChallengeStore {
	return &ChallengeStore{db: db}
}

const challengeCols = `id, family_id, name, description, points, status, claimed_by, claimed_at, completed_at, created_at`

func scanChallenge(scanner interface{ Scan(...any) error }) (*model.Challenge, error) {
	var c model.Challenge
	var claimedBy sql.NullInt64
	var claimedAt, completedAt sql.NullTime

	err := scanner.Scan(&c.ID, &c.FamilyID, &c.Name, &c.Description, &c.Points,
		&c.Status, &claimedBy, &claimedAt, &completedAt, &c.CreatedAt)
	if err != nil {
		return nil, err
	}

	if claimedBy.Valid {
		c.ClaimedBy = &claimedBy.Int64
	}
	if claimedAt.Valid {
		c.ClaimedAt = &claimedAt.Time
	}
	if completedAt.Valid {
		c.CompletedAt = &completedAt.Time
	}
	return &c, nil
}

func (s *ChallengeStore) Create(familyID int64, name, description string, points int) (*model.Challenge, error) {
	result, err := s.db.Exec(
		`INSERT INTO challenges (family_id, name, description, points) VALUES (?, ?, ?, ?)`,
		familyID, name, description, points,
	)
	if err != nil {
		return nil, fmt.Errorf("insert challenge: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *ChallengeStore) GetByID(id int64) (*model.Challenge, error) {
	row := s.db.QueryRow(`SELECT `+challengeCols+` FROM challenges WHERE id = ?`, id)
	c, err := scanChallenge(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get challenge: %w", err)
	}
	return c, nil
}

func (s *ChallengeStore) GetForFamily(id, familyID int64) (*model.Challenge, error) {
	row := s.db.QueryRow(`SELECT `+challengeCols+` FROM challenges WHERE id = ? AND family_id = ?`, id, familyID)
	c, err := scanChallenge(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get challenge for family: %w", err)
	}
	return c, nil
}

// ListByFamily returns every challenge, open ones first, newest within each
// status group.
func (s *ChallengeStore) ListByFamily(familyID int64) ([]model.Challenge, error) {
	rows, err := s.db.Query(
		`SELECT `+challengeCols+` FROM challenges WHERE family_id = ?
		 ORDER BY CASE status WHEN 'open' THEN 0 WHEN 'claimed' THEN 1 ELSE 2 END, created_at DESC`,
		familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("list challenges: %w", err)
	}
	defer rows.Close()

	var challenges []model.Challenge
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, fmt.Errorf("scan challenge: %w", err)
		}
		challenges = append(challenges, *c)
	}
	return challenges, rows.Err()
}

// Claim moves an open challenge to claimed for the given child. The status
// guard lives in the UPDATE, so two simultaneous claims cannot both win.
func (s *ChallengeStore) Claim(id, childID int64, at time.Time) (bool, error) {
	res, err := s.db.Exec(
		`UPDATE challenges SET status = 'claimed', claimed_by = ?, claimed_at = ?
		 WHERE id = ? AND status = 'open'`,
		childID, at.UTC(), id,
	)
	if err != nil {
		return false, fmt.Errorf("claim challenge: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// Complete finishes a claimed challenge, but only for the child holding the
// claim. Returns whether the row moved.
func (s *ChallengeStore) Complete(id, childID int64, at time.Time) (bool, error) {
	res, err := s.db.Exec(
		`UPDATE challenges SET status = 'completed', completed_at = ?
		 WHERE id = ? AND status = 'claimed' AND claimed_by = ?`,
		at.UTC(), id, childID,
	)
	if err != nil {
		return false, fmt.Errorf("complete challenge: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// ReopenByClaimer releases every claim a departing child holds. Completed
// challenges stay completed.
func (s *ChallengeStore) ReopenByClaimer(childID int64) (int, error) {
	res, err := s.db.Exec(
		`UPDATE challenges SET status = 'open', claimed_by = NULL, claimed_at = NULL
		 WHERE claimed_by = ? AND status = 'claimed'`,
		childID,
	)
	if err != nil {
		return 0, fmt.Errorf("reopen challenges: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

func (s *ChallengeStore) Delete(id, familyID int64) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM challenges WHERE id = ? AND family_id = ?`, id, familyID)
	if err != nil {
		return false, fmt.Errorf("delete challenge: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
