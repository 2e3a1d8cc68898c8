// Package ledger owns every mutation of user point balances. All writes are
// relative (points = points + n) so concurrent credits never lose updates.
package ledger

import (
	"database/sql"
	"fmt"
)

// Ledger applies point credits and debits. allowNegative controls what a
// penalty larger than the current balance does: clamp at zero (default) or
// drive the balance below zero.
type Ledger struct {
	db            *sql.DB
	allowNegative bool
}

func New(db *sql.DB, allowNegative bool) *Ledger {
	return &Ledger{db: db, allowNegative: allowNegative}
}

// Credit adds earned points to both the spendable and lifetime balances.
func (l *Ledger) Credit(userID int64, points int) error {
	if points <= 0 {
		return nil
	}
	_, err := l.db.Exec(
		`UPDATE users SET points = points + ?, lifetime_points = lifetime_points + ? WHERE id = ?`,
		points, points, userID,
	)
	if err != nil {
		return fmt.Errorf("credit points: %w", err)
	}
	return nil
}

// Debit removes spendable points. Lifetime points are never debited.
func (l *Ledger) Debit(userID int64, points int) error {
	if points <= 0 {
		return nil
	}
	_, err := l.db.Exec(l.debitStmt(), points, userID)
	if err != nil {
		return fmt.Errorf("debit points: %w", err)
	}
	return nil
}

func (l *Ledger) debitStmt() string {
	if l.allowNegative {
		return `UPDATE users SET points = points - ? WHERE id = ?`
	}
	return `UPDATE users SET points = MAX(0, points - ?) WHERE id = ?`
}

// CreditBatch applies per-user credits in one transaction, a single UPDATE
// per user regardless of how many tasks contributed to the sum. Returns the
// number of users credited.
func (l *Ledger) CreditBatch(sums map[int64]int) (int, error) {
	if len(sums) == 0 {
		return 0, nil
	}

	tx, err := l.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`UPDATE users SET points = points + ?, lifetime_points = lifetime_points + ? WHERE id = ?`,
	)
	if err != nil {
		return 0, fmt.Errorf("prepare credit: %w", err)
	}
	defer stmt.Close()

	credited := 0
	for userID, points := range sums {
		if points <= 0 {
			continue
		}
		if _, err := stmt.Exec(points, points, userID); err != nil {
			return 0, fmt.Errorf("credit user %d: %w", userID, err)
		}
		credited++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return credited, nil
}

// DebitBatch applies per-user debits in one transaction. Returns the number
// of users debited.
func (l *Ledger) DebitBatch(sums map[int64]int) (int, error) {
	if len(sums) == 0 {
		return 0, nil
	}

	tx, err := l.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(l.debitStmt())
	if err != nil {
		return 0, fmt.Errorf("prepare debit: %w", err)
	}
	defer stmt.Close()

	debited := 0
	for userID, points := range sums {
		if points <= 0 {
			continue
		}
		if _, err := stmt.Exec(points, userID); err != nil {
			return 0, fmt.Errorf("debit user %d: %w", userID, err)
		}
		debited++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return debited, nil
}
