package challenge

import (
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/oblivio-company/famjam/internal/clock"
	"github.com/oblivio-company/famjam/internal/database"
	"github.com/oblivio-company/famjam/internal/ledger"
	"github.com/oblivio-company/famjam/internal/model"
	"github.com/oblivio-company/famjam/internal/store"
)

type fixture struct {
	db         *sql.DB
	svc        *Service
	challenges *store.ChallengeStore
	users      *store.UserStore
	parent     *model.User
	kid        *model.User
	sibling    *model.User
	bounty     *model.Challenge
}

func setupTest(t *testing.T) *fixture {
	t.Helper()

	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	clk, err := clock.NewFixed(clock.DefaultTimezone, time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("failed to create clock: %v", err)
	}

	family, err := store.NewFamilyStore(db).Create("Test Family", "TESTCODE")
	if err != nil {
		t.Fatalf("failed to create family: %v", err)
	}
	users := store.NewUserStore(db)
	email := "parent@example.com"
	parent, err := users.Create(family.ID, "mom", &email, model.RoleParent, "x")
	if err != nil {
		t.Fatalf("failed to create parent: %v", err)
	}
	kid, err := users.Create(family.ID, "kid", nil, model.RoleChild, "x")
	if err != nil {
		t.Fatalf("failed to create child: %v", err)
	}
	sibling, err := users.Create(family.ID, "sib", nil, model.RoleChild, "x")
	if err != nil {
		t.Fatalf("failed to create sibling: %v", err)
	}

	challenges := store.NewChallengeStore(db)
	bounty, err := challenges.Create(family.ID, "Wash the car", "Inside and out", 40)
	if err != nil {
		t.Fatalf("failed to create challenge: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(challenges, ledger.New(db, false), clk, logger)

	return &fixture{db: db, svc: svc, challenges: challenges, users: users,
		parent: parent, kid: kid, sibling: sibling, bounty: bounty}
}

func (f *fixture) points(t *testing.T, userID int64) (points, lifetime int) {
	t.Helper()
	u, err := f.users.GetByID(userID)
	if err != nil {
		t.Fatalf("failed to get user: %v", err)
	}
	return u.Points, u.LifetimePoints
}

func TestClaimMarksChallenge(t *testing.T) {
	f := setupTest(t)

	claimed, err := f.svc.Claim(f.kid, f.bounty.ID)
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if claimed.Status != model.ChallengeClaimed {
		t.Errorf("expected status claimed, got %s", claimed.Status)
	}
	if claimed.ClaimedBy == nil || *claimed.ClaimedBy != f.kid.ID {
		t.Errorf("expected claimer %d, got %v", f.kid.ID, claimed.ClaimedBy)
	}
	if claimed.ClaimedAt == nil {
		t.Error("expected claimed_at to be set")
	}
}

func TestClaimRaceHasOneWinner(t *testing.T) {
	f := setupTest(t)

	if _, err := f.svc.Claim(f.kid, f.bounty.ID); err != nil {
		t.Fatalf("first claim failed: %v", err)
	}

	// The sibling's claim loses to the already-claimed guard.
	_, err := f.svc.Claim(f.sibling, f.bounty.ID)
	if !errors.Is(err, ErrAlreadyClaimed) {
		t.Errorf("expected ErrAlreadyClaimed, got %v", err)
	}

	got, err := f.challenges.GetByID(f.bounty.ID)
	if err != nil {
		t.Fatalf("failed to get challenge: %v", err)
	}
	if got.ClaimedBy == nil || *got.ClaimedBy != f.kid.ID {
		t.Errorf("expected claim held by %d, got %v", f.kid.ID, got.ClaimedBy)
	}
}

func TestParentCannotClaim(t *testing.T) {
	f := setupTest(t)

	_, err := f.svc.Claim(f.parent, f.bounty.ID)
	if !errors.Is(err, ErrParentsCannotPlay) {
		t.Errorf("expected ErrParentsCannotPlay, got %v", err)
	}
}

func TestClaimUnknownChallenge(t *testing.T) {
	f := setupTest(t)

	_, err := f.svc.Claim(f.kid, 9999)
	if !errors.Is(err, ErrChallengeNotFound) {
		t.Errorf("expected ErrChallengeNotFound, got %v", err)
	}
}

func TestCompleteCreditsClaimer(t *testing.T) {
	f := setupTest(t)

	if _, err := f.svc.Claim(f.kid, f.bounty.ID); err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	completed, err := f.svc.Complete(f.kid, f.bounty.ID)
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if completed.Status != model.ChallengeCompleted {
		t.Errorf("expected status completed, got %s", completed.Status)
	}
	if completed.CompletedAt == nil {
		t.Error("expected completed_at to be set")
	}

	points, lifetime := f.points(t, f.kid.ID)
	if points != 40 || lifetime != 40 {
		t.Errorf("expected 40/40 points after completion, got %d/%d", points, lifetime)
	}
}

func TestCompleteRequiresClaim(t *testing.T) {
	f := setupTest(t)

	// Still open; nobody can complete it.
	_, err := f.svc.Complete(f.kid, f.bounty.ID)
	if !errors.Is(err, ErrNotClaimer) {
		t.Errorf("expected ErrNotClaimer, got %v", err)
	}

	if _, err := f.svc.Claim(f.kid, f.bounty.ID); err != nil {
		t.Fatalf("claim failed: %v", err)
	}

	// The sibling does not hold the claim.
	_, err = f.svc.Complete(f.sibling, f.bounty.ID)
	if !errors.Is(err, ErrNotClaimer) {
		t.Errorf("expected ErrNotClaimer for non-claimer, got %v", err)
	}
	if points, _ := f.points(t, f.sibling.ID); points != 0 {
		t.Errorf("expected no credit for non-claimer, got %d", points)
	}
}

func TestCompleteTwiceCreditsOnce(t *testing.T) {
	f := setupTest(t)

	if _, err := f.svc.Claim(f.kid, f.bounty.ID); err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if _, err := f.svc.Complete(f.kid, f.bounty.ID); err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	_, err := f.svc.Complete(f.kid, f.bounty.ID)
	if !errors.Is(err, ErrNotClaimer) {
		t.Errorf("expected ErrNotClaimer on repeat, got %v", err)
	}
	if points, _ := f.points(t, f.kid.ID); points != 40 {
		t.Errorf("expected single credit of 40, got %d", points)
	}
}

func TestReopenByClaimerReleasesHeldChallenges(t *testing.T) {
	f := setupTest(t)

	second, err := f.challenges.Create(f.kid.FamilyID, "Rake leaves", "", 15)
	if err != nil {
		t.Fatalf("failed to create challenge: %v", err)
	}
	if _, err := f.svc.Claim(f.kid, f.bounty.ID); err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if _, err := f.svc.Claim(f.kid, second.ID); err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if _, err := f.svc.Complete(f.kid, second.ID); err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	reopened, err := f.challenges.ReopenByClaimer(f.kid.ID)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if reopened != 1 {
		t.Errorf("expected 1 reopened, got %d", reopened)
	}

	got, err := f.challenges.GetByID(f.bounty.ID)
	if err != nil {
		t.Fatalf("failed to get challenge: %v", err)
	}
	if got.Status != model.ChallengeOpen || got.ClaimedBy != nil {
		t.Errorf("expected challenge back to open with no claimer, got %s/%v", got.Status, got.ClaimedBy)
	}

	// The completed one stays completed for the record.
	done, err := f.challenges.GetByID(second.ID)
	if err != nil {
		t.Fatalf("failed to get challenge: %v", err)
	}
	if done.Status != model.ChallengeCompleted {
		t.Errorf("expected completed challenge untouched, got %s", done.Status)
	}

	// The sibling can now take over.
	if _, err := f.svc.Claim(f.sibling, f.bounty.ID); err != nil {
		t.Fatalf("sibling claim after reopen failed: %v", err)
	}
}

func TestListOrdersOpenFirst(t *testing.T) {
	f := setupTest(t)

	second, err := f.challenges.Create(f.kid.FamilyID, "Rake leaves", "", 15)
	if err != nil {
		t.Fatalf("failed to create challenge: %v", err)
	}
	if _, err := f.svc.Claim(f.kid, f.bounty.ID); err != nil {
		t.Fatalf("claim failed: %v", err)
	}

	list, err := f.challenges.ListByFamily(f.kid.FamilyID)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 challenges, got %d", len(list))
	}
	if list[0].ID != second.ID || list[0].Status != model.ChallengeOpen {
		t.Errorf("expected the open challenge first, got %d/%s", list[0].ID, list[0].Status)
	}
}
