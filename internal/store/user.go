package store

import (
	"database/sql"
	"fmt"

	"github.com/oblivio-company/famjam/internal/model"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

const userCols = `id, family_id, username, email, role, password_hash, points, lifetime_points, cash_balance, sort_order, created_at`

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var email sql.NullString

	err := scanner.Scan(
		&u.ID, &u.FamilyID, &u.Username, &email, &u.Role, &u.PasswordHash,
		&u.Points, &u.LifetimePoints, &u.CashBalance, &u.SortOrder, &u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if email.Valid {
		u.Email = &email.String
	}
	return &u, nil
}

// Create inserts a user. Parents carry an email (globally unique), children
// don't. Username uniqueness within the family is enforced by the schema.
func (s *UserStore) Create(familyID int64, username string, email *string, role model.Role, passwordHash string) (*model.User, error) {
	var em sql.NullString
	if email != nil {
		em = sql.NullString{String: *email, Valid: true}
	}

	result, err := s.db.Exec(
		`INSERT INTO users (family_id, username, email, role, password_hash) VALUES (?, ?, ?, ?, ?)`,
		familyID, username, em, role, passwordHash,
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) GetByID(id int64) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetChildInFamily fetches a user only if they are a child of the family.
func (s *UserStore) GetChildInFamily(id, familyID int64) (*model.User, error) {
	row := s.db.QueryRow(
		`SELECT `+userCols+` FROM users WHERE id = ? AND family_id = ? AND role = 'child'`,
		id, familyID,
	)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get child in family: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByEmail(email string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByUsername(familyID int64, username string) (*model.User, error) {
	row := s.db.QueryRow(
		`SELECT `+userCols+` FROM users WHERE family_id = ? AND username = ?`,
		familyID, username,
	)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by username: %w", err)
	}
	return u, nil
}

func (s *UserStore) ListByFamily(familyID int64) ([]model.User, error) {
	return s.list(`SELECT `+userCols+` FROM users WHERE family_id = ? ORDER BY sort_order ASC, id ASC`, familyID)
}

// ListChildren returns the family roster in stable order; this ordering is
// what makes round-robin assignment deterministic.
func (s *UserStore) ListChildren(familyID int64) ([]model.User, error) {
	return s.list(`SELECT `+userCols+` FROM users WHERE family_id = ? AND role = 'child' ORDER BY sort_order ASC, id ASC`, familyID)
}

func (s *UserStore) list(q string, args ...any) ([]model.User, error) {
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// CountParents reports how many parents the family has; the caller uses it
// to decide whether removing a parent deletes the whole family.
func (s *UserStore) CountParents(familyID int64) (int, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT count(*) FROM users WHERE family_id = ? AND role = 'parent'`,
		familyID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count parents: %w", err)
	}
	return n, nil
}

func (s *UserStore) SetPasswordHash(id int64, hash string) error {
	_, err := s.db.Exec(`UPDATE users SET password_hash = ? WHERE id = ?`, hash, id)
	if err != nil {
		return fmt.Errorf("set password hash: %w", err)
	}
	return nil
}

func (s *UserStore) SetUsername(id int64, username string) error {
	_, err := s.db.Exec(`UPDATE users SET username = ? WHERE id = ?`, username, id)
	if err != nil {
		return fmt.Errorf("set username: %w", err)
	}
	return nil
}

// SetCashBalance replaces a child's cash balance. Cash is parent-managed and
// not part of the points ledger, so a plain set is fine here.
func (s *UserStore) SetCashBalance(id int64, balance float64) error {
	_, err := s.db.Exec(`UPDATE users SET cash_balance = ? WHERE id = ?`, balance, id)
	if err != nil {
		return fmt.Errorf("set cash balance: %w", err)
	}
	return nil
}

// ResetPoints zeroes a child's spendable points. Lifetime points and cash
// balance are untouched.
func (s *UserStore) ResetPoints(id int64) error {
	_, err := s.db.Exec(`UPDATE users SET points = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("reset points: %w", err)
	}
	return nil
}

// Delete removes a user; tasks and reward requests cascade via foreign keys.
func (s *UserStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}
