// Package challenge runs the family bounty flow: a parent posts a challenge,
// the first child to claim it holds it exclusively, and completing it credits
// the points to the claimer on the spot.
package challenge

import (
	"errors"
	"log/slog"

	"github.com/oblivio-company/famjam/internal/clock"
	"github.com/oblivio-company/famjam/internal/ledger"
	"github.com/oblivio-company/famjam/internal/model"
	"github.com/oblivio-company/famjam/internal/store"
)

var (
	ErrChallengeNotFound = errors.New("challenge not found")
	// ErrAlreadyClaimed means another child got there first, or the
	// challenge is already done.
	ErrAlreadyClaimed = errors.New("challenge is not available to claim")
	// ErrNotClaimer means the challenge is not held by the acting child.
	ErrNotClaimer = errors.New("challenge is not claimed by you")
	// ErrParentsCannotPlay keeps parents out of the claim race.
	ErrParentsCannotPlay = errors.New("only children can claim challenges")
)

type Service struct {
	challenges *store.ChallengeStore
	ledger     *ledger.Ledger
	clock      *clock.Clock
	logger     *slog.Logger
}

func NewService(cs *store.ChallengeStore, lg *ledger.Ledger, clk *clock.Clock, logger *slog.Logger) *Service {
	return &Service{challenges: cs, ledger: lg, clock: clk, logger: logger}
}

// Claim gives the acting child exclusive hold of an open challenge. First
// claim wins; everyone else gets ErrAlreadyClaimed.
func (s *Service) Claim(actor *model.User, challengeID int64) (*model.Challenge, error) {
	if actor.Role != model.RoleChild {
		return nil, ErrParentsCannotPlay
	}

	c, err := s.challenges.GetForFamily(challengeID, actor.FamilyID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrChallengeNotFound
	}

	claimed, err := s.challenges.Claim(challengeID, actor.ID, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, ErrAlreadyClaimed
	}

	s.logger.Info("challenge claimed",
		slog.Int64("challenge_id", challengeID),
		slog.Int64("child_id", actor.ID))
	return s.challenges.GetByID(challengeID)
}

// Complete finishes the actor's claimed challenge and credits its points.
// The store guard requires the claim to belong to the actor, so the credit
// fires at most once per challenge.
func (s *Service) Complete(actor *model.User, challengeID int64) (*model.Challenge, error) {
	if actor.Role != model.RoleChild {
		return nil, ErrParentsCannotPlay
	}

	c, err := s.challenges.GetForFamily(challengeID, actor.FamilyID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrChallengeNotFound
	}

	moved, err := s.challenges.Complete(challengeID, actor.ID, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, ErrNotClaimer
	}

	if err := s.ledger.Credit(actor.ID, c.Points); err != nil {
		return nil, err
	}

	s.logger.Info("challenge completed",
		slog.Int64("challenge_id", challengeID),
		slog.Int64("child_id", actor.ID),
		slog.Int("points", c.Points))
	return s.challenges.GetByID(challengeID)
}
