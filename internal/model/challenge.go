package model

import "time"

type ChallengeStatus string

const (
	ChallengeOpen      ChallengeStatus = "open"
	ChallengeClaimed   ChallengeStatus = "claimed"
	ChallengeCompleted ChallengeStatus = "completed"
)

// Challenge is a one-off bounty any child in the family can claim. Exactly
// one child holds a claim at a time; completing it credits the claimer
// immediately, with no approval stage.
type Challenge struct {
	ID          int64           `json:"id"`
	FamilyID    int64           `json:"family_id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Points      int             `json:"points"`
	Status      ChallengeStatus `json:"status"`
	ClaimedBy   *int64          `json:"claimed_by,omitempty"`
	ClaimedAt   *time.Time      `json:"claimed_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}
