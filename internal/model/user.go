package model

import "time"

type Role string

const (
	RoleParent Role = "parent"
	RoleChild  Role = "child"
)

// User is a family member. Parents carry a globally unique email; children
// only have a username, unique within their family. Points is the spendable
// balance, LifetimePoints only ever grows, CashBalance is parent-managed.
type User struct {
	ID             int64     `json:"id"`
	FamilyID       int64     `json:"family_id"`
	Username       string    `json:"username"`
	Email          *string   `json:"email,omitempty"`
	Role           Role      `json:"role"`
	PasswordHash   string    `json:"-"`
	Points         int       `json:"points"`
	LifetimePoints int       `json:"lifetime_points"`
	CashBalance    float64   `json:"cash_balance"`
	SortOrder      int       `json:"sort_order"`
	CreatedAt      time.Time `json:"created_at"`
}

func (u *User) IsParent() bool { return u.Role == RoleParent }
func (u *User) IsChild() bool  { return u.Role == RoleChild }
