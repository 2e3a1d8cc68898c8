package model

import "time"

// Reward is a parent-defined redeemable catalog entry.
type Reward struct {
	ID        int64     `json:"id"`
	FamilyID  int64     `json:"family_id"`
	Name      string    `json:"name"`
	Cost      int       `json:"cost"`
	CreatedAt time.Time `json:"created_at"`
}

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestDenied   RequestStatus = "denied"
)

// RewardRequest is a child's redemption attempt. Name and cost are
// denormalized from the catalog entry so later catalog edits don't rewrite
// history. Points are deducted when the request is created; denial refunds.
type RewardRequest struct {
	ID          int64         `json:"id"`
	FamilyID    int64         `json:"family_id"`
	RequestedBy int64         `json:"requested_by"`
	RewardName  string        `json:"reward_name"`
	Cost        int           `json:"cost"`
	Status      RequestStatus `json:"status"`
	RequestedAt time.Time     `json:"requested_at"`
	ResolvedAt  *time.Time    `json:"resolved_at,omitempty"`
	ResolvedBy  *int64        `json:"resolved_by,omitempty"`
}
