// Package reward runs the redemption flow: a child spends points to request
// a reward, a parent approves or denies, and a denial refunds the points.
package reward

import (
	"errors"
	"log/slog"

	"github.com/oblivio-company/famjam/internal/clock"
	"github.com/oblivio-company/famjam/internal/model"
	"github.com/oblivio-company/famjam/internal/store"
)

var ErrRewardNotFound = errors.New("reward not found")

type Service struct {
	rewards *store.RewardStore
	clock   *clock.Clock
	logger  *slog.Logger
}

func NewService(rewards *store.RewardStore, clk *clock.Clock, logger *slog.Logger) *Service {
	return &Service{rewards: rewards, clock: clk, logger: logger}
}

// Redeem spends the actor's points on a catalog reward and opens a pending
// request. The reward's name and cost are frozen onto the request, so later
// catalog edits or deletions don't change what was redeemed.
func (s *Service) Redeem(actor *model.User, rewardID int64) (*model.RewardRequest, error) {
	r, err := s.rewards.GetForFamily(rewardID, actor.FamilyID)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, ErrRewardNotFound
	}

	req, err := s.rewards.CreateRequest(actor.FamilyID, actor.ID, r.Name, r.Cost, s.clock.Now())
	if err != nil {
		return nil, err
	}

	s.logger.Info("reward requested",
		slog.Int64("request_id", req.ID),
		slog.Int64("child_id", actor.ID),
		slog.String("reward", r.Name),
		slog.Int("cost", r.Cost))
	return req, nil
}

// Resolve approves or denies a pending request on behalf of a parent.
func (s *Service) Resolve(familyID, resolverID, requestID int64, approve bool) (*model.RewardRequest, error) {
	req, err := s.rewards.Resolve(requestID, familyID, resolverID, approve, s.clock.Now())
	if err != nil {
		return nil, err
	}

	s.logger.Info("reward request resolved",
		slog.Int64("request_id", req.ID),
		slog.String("status", string(req.Status)),
		slog.Int64("resolved_by", resolverID))
	return req, nil
}
