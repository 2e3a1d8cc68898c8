// Package sweeper closes out overdue tasks. A daily run shortly after the
// local day rolls over marks yesterday's unfinished tasks as missed and
// applies the point penalty per child.
package sweeper

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/oblivio-company/famjam/internal/clock"
	"github.com/oblivio-company/famjam/internal/ledger"
	"github.com/oblivio-company/famjam/internal/store"
)

// The run fires a few minutes past local midnight so tasks due "yesterday"
// have fully aged out.
const (
	sweepHour   = 2
	sweepMinute = 5
)

// DefaultPenaltyFactor is the fraction of a missed task's points deducted.
const DefaultPenaltyFactor = 0.5

type Sweeper struct {
	tasks    *store.TaskStore
	sessions *store.SessionStore
	ledger   *ledger.Ledger
	clock    *clock.Clock
	logger   *slog.Logger

	penaltyFactor float64

	cancel context.CancelFunc
	done   chan struct{}
}

func New(tasks *store.TaskStore, sessions *store.SessionStore, l *ledger.Ledger, clk *clock.Clock, logger *slog.Logger, penaltyFactor float64) *Sweeper {
	if penaltyFactor < 0 {
		penaltyFactor = DefaultPenaltyFactor
	}
	return &Sweeper{
		tasks:         tasks,
		sessions:      sessions,
		ledger:        l,
		clock:         clk,
		logger:        logger,
		penaltyFactor: penaltyFactor,
	}
}

// Start launches the daily sweep loop in a goroutine.
func (s *Sweeper) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.run(ctx)
	s.logger.Info("sweeper started",
		slog.String("run_at", time.Date(0, 1, 1, sweepHour, sweepMinute, 0, 0, time.UTC).Format("15:04")),
		slog.Float64("penalty_factor", s.penaltyFactor))
}

// Stop cancels the loop and waits for it to exit.
func (s *Sweeper) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.done)

	for {
		next := s.nextRun()
		timer := time.NewTimer(next.Sub(s.clock.Now()))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			if _, err := s.Sweep(); err != nil {
				s.logger.Error("sweep failed", slog.Any("error", err))
			}
			if n, err := s.sessions.DeleteExpired(); err != nil {
				s.logger.Error("session cleanup failed", slog.Any("error", err))
			} else if n > 0 {
				s.logger.Info("expired sessions removed", slog.Int64("count", n))
			}
		}
	}
}

// nextRun returns the next local sweep time strictly after now.
func (s *Sweeper) nextRun() time.Time {
	now := s.clock.Now()
	day := s.clock.StartOfDay(now)
	at := day.Add(sweepHour*time.Hour + sweepMinute*time.Minute)
	if !at.After(now) {
		at = s.clock.StartOfDay(day.AddDate(0, 0, 1)).Add(sweepHour*time.Hour + sweepMinute*time.Minute)
	}
	return at
}

// Sweep marks every still-assigned task due yesterday as missed and debits
// each child's penalty in one update per child. Tasks completed or approved
// before the run are untouched, and a repeated run finds nothing left to
// move. Returns the number of tasks marked missed.
func (s *Sweeper) Sweep() (int, error) {
	start := s.clock.Yesterday()
	end := s.clock.Today()

	overdue, err := s.tasks.ListAssignedDueBetween(start, end)
	if err != nil {
		return 0, err
	}
	if len(overdue) == 0 {
		return 0, nil
	}

	ids := make([]int64, 0, len(overdue))
	penalties := make(map[int64]int)
	for _, t := range overdue {
		ids = append(ids, t.ID)
		penalties[t.AssignedTo] += int(math.Floor(float64(t.Points) * s.penaltyFactor))
	}

	missed, err := s.tasks.MarkMissed(ids, s.clock.Now())
	if err != nil {
		return 0, err
	}
	debited, err := s.ledger.DebitBatch(penalties)
	if err != nil {
		return missed, err
	}

	s.logger.Info("sweep complete",
		slog.String("date", s.clock.LocalDate(start)),
		slog.Int("missed", missed),
		slog.Int("children_penalized", debited))
	return missed, nil
}
