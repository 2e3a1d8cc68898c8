package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/oblivio-company/famjam/internal/model"
)

var (
	// ErrInsufficientPoints is returned when a child redeems a reward they
	// cannot afford.
	ErrInsufficientPoints = errors.New("not enough points for this reward")
	// ErrAlreadyResolved is returned when resolving a request that is no
	// longer pending.
	ErrAlreadyResolved = errors.New("reward request not found or already resolved")
)

type RewardStore struct {
	db *sql.DB
}

func NewRewardStore(db *sql.DB) *RewardStore {
	return &RewardStore{db: db}
}

// --- Catalog methods ---

const rewardCols = `id, family_id, name, cost, created_at`

func scanReward(scanner interface{ Scan(...any) error }) (*model.Reward, error) {
	var r model.Reward
	err := scanner.Scan(&r.ID, &r.FamilyID, &r.Name, &r.Cost, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *RewardStore) Create(familyID int64, name string, cost int) (*model.Reward, error) {
	result, err := s.db.Exec(
		`INSERT INTO rewards (family_id, name, cost) VALUES (?, ?, ?)`,
		familyID, name, cost,
	)
	if err != nil {
		return nil, fmt.Errorf("insert reward: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *RewardStore) GetByID(id int64) (*model.Reward, error) {
	row := s.db.QueryRow(`SELECT `+rewardCols+` FROM rewards WHERE id = ?`, id)
	r, err := scanReward(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reward: %w", err)
	}
	return r, nil
}

func (s *RewardStore) GetForFamily(id, familyID int64) (*model.Reward, error) {
	row := s.db.QueryRow(`SELECT `+rewardCols+` FROM rewards WHERE id = ? AND family_id = ?`, id, familyID)
	r, err := scanReward(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reward for family: %w", err)
	}
	return r, nil
}

func (s *RewardStore) ListByFamily(familyID int64) ([]model.Reward, error) {
	rows, err := s.db.Query(`SELECT `+rewardCols+` FROM rewards WHERE family_id = ? ORDER BY cost ASC, name ASC`, familyID)
	if err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}
	defer rows.Close()

	var rewards []model.Reward
	for rows.Next() {
		r, err := scanReward(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reward: %w", err)
		}
		rewards = append(rewards, *r)
	}
	return rewards, rows.Err()
}

func (s *RewardStore) Delete(id, familyID int64) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM rewards WHERE id = ? AND family_id = ?`, id, familyID)
	if err != nil {
		return false, fmt.Errorf("delete reward: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// --- Request methods ---

const requestCols = `id, family_id, requested_by, reward_name, cost, status, requested_at, resolved_at, resolved_by`

func scanRequest(scanner interface{ Scan(...any) error }) (*model.RewardRequest, error) {
	var r model.RewardRequest
	var resolvedAt sql.NullTime
	var resolvedBy sql.NullInt64

	err := scanner.Scan(&r.ID, &r.FamilyID, &r.RequestedBy, &r.RewardName, &r.Cost,
		&r.Status, &r.RequestedAt, &resolvedAt, &resolvedBy)
	if err != nil {
		return nil, err
	}

	if resolvedAt.Valid {
		r.ResolvedAt = &resolvedAt.Time
	}
	if resolvedBy.Valid {
		r.ResolvedBy = &resolvedBy.Int64
	}
	return &r, nil
}

// CreateRequest deducts the cost from the child's spendable points and
// inserts the pending request in one transaction. The affordability guard
// lives in the debit statement itself, so two simultaneous redemptions
// cannot both spend the same points.
func (s *RewardStore) CreateRequest(familyID, childID int64, rewardName string, cost int, at time.Time) (*model.RewardRequest, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`UPDATE users SET points = points - ? WHERE id = ? AND points >= ?`,
		cost, childID, cost,
	)
	if err != nil {
		return nil, fmt.Errorf("debit points: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return nil, ErrInsufficientPoints
	}

	ins, err := tx.Exec(
		`INSERT INTO reward_requests (family_id, requested_by, reward_name, cost, status, requested_at)
		 VALUES (?, ?, ?, ?, 'pending', ?)`,
		familyID, childID, rewardName, cost, at.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert reward request: %w", err)
	}
	id, err := ins.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetRequest(id)
}

// Resolve finalizes a pending request. Approving changes nothing in the
// ledger; denying refunds the cost. The pending guard and the refund run in
// one transaction, so re-resolution can never double-refund.
func (s *RewardStore) Resolve(requestID, familyID, resolverID int64, approve bool, at time.Time) (*model.RewardRequest, error) {
	status := model.RequestDenied
	if approve {
		status = model.RequestApproved
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRow(
		`SELECT `+requestCols+` FROM reward_requests WHERE id = ? AND family_id = ? AND status = 'pending'`,
		requestID, familyID,
	)
	req, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, ErrAlreadyResolved
	}
	if err != nil {
		return nil, fmt.Errorf("get pending request: %w", err)
	}

	res, err := tx.Exec(
		`UPDATE reward_requests SET status = ?, resolved_at = ?, resolved_by = ?
		 WHERE id = ? AND status = 'pending'`,
		status, at.UTC(), resolverID, requestID,
	)
	if err != nil {
		return nil, fmt.Errorf("resolve request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return nil, ErrAlreadyResolved
	}

	if !approve {
		// Refund is spendable-only; lifetime points never move on a refund.
		_, err = tx.Exec(`UPDATE users SET points = points + ? WHERE id = ?`, req.Cost, req.RequestedBy)
		if err != nil {
			return nil, fmt.Errorf("refund points: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetRequest(requestID)
}

func (s *RewardStore) GetRequest(id int64) (*model.RewardRequest, error) {
	row := s.db.QueryRow(`SELECT `+requestCols+` FROM reward_requests WHERE id = ?`, id)
	r, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reward request: %w", err)
	}
	return r, nil
}

// ListPendingByFamily returns unresolved requests, oldest first, for the
// parent approval queue.
func (s *RewardStore) ListPendingByFamily(familyID int64) ([]model.RewardRequest, error) {
	rows, err := s.db.Query(
		`SELECT `+requestCols+` FROM reward_requests
		 WHERE family_id = ? AND status = 'pending' ORDER BY requested_at ASC`,
		familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending requests: %w", err)
	}
	defer rows.Close()

	var requests []model.RewardRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reward request: %w", err)
		}
		requests = append(requests, *r)
	}
	return requests, rows.Err()
}
