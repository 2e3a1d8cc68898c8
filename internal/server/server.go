package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/oblivio-company/famjam/internal/challenge"
	"github.com/oblivio-company/famjam/internal/clock"
	"github.com/oblivio-company/famjam/internal/config"
	"github.com/oblivio-company/famjam/internal/handler"
	"github.com/oblivio-company/famjam/internal/ledger"
	"github.com/oblivio-company/famjam/internal/middleware"
	"github.com/oblivio-company/famjam/internal/plan"
	"github.com/oblivio-company/famjam/internal/reward"
	"github.com/oblivio-company/famjam/internal/store"
	"github.com/oblivio-company/famjam/internal/sweeper"
	"github.com/oblivio-company/famjam/internal/task"
	ws "github.com/oblivio-company/famjam/internal/websocket"
)

type Server struct {
	db           *sql.DB
	hub          *ws.Hub
	authH        *handler.AuthHandler
	taskH        *handler.TaskHandler
	planH        *handler.PlanHandler
	rewardH      *handler.RewardHandler
	challengeH   *handler.ChallengeHandler
	familyH      *handler.FamilyHandler
	sessionStore *store.SessionStore
	userStore    *store.UserStore
	rateLimiter  *middleware.RateLimiter
	sweeper      *sweeper.Sweeper
	logger       *slog.Logger
}

func New(db *sql.DB, cfg config.Config, clk *clock.Clock, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	familyStore := store.NewFamilyStore(db)
	userStore := store.NewUserStore(db)
	taskStore := store.NewTaskStore(db)
	planStore := store.NewPlanStore(db)
	rewardStore := store.NewRewardStore(db)
	challengeStore := store.NewChallengeStore(db)
	sessionStore := store.NewSessionStore(db)

	pointsLedger := ledger.New(db, cfg.AllowNegativeBalance)

	taskSvc := task.NewService(taskStore, userStore, pointsLedger, clk, logger.With("component", "task"), cfg.HorizonDays)
	planSvc := plan.NewService(planStore, taskStore, userStore, clk, logger.With("component", "plan"))
	rewardSvc := reward.NewService(rewardStore, clk, logger.With("component", "reward"))
	challengeSvc := challenge.NewService(challengeStore, pointsLedger, clk, logger.With("component", "challenge"))

	sweep := sweeper.New(taskStore, sessionStore, pointsLedger, clk, logger.With("component", "sweeper"), cfg.PenaltyFactor)

	return &Server{
		db:           db,
		hub:          hub,
		authH:        handler.NewAuthHandler(familyStore, userStore, sessionStore, cfg.SessionTTL, logger.With("component", "auth")),
		taskH:        handler.NewTaskHandler(taskSvc, taskStore, userStore, clk, hub, logger.With("component", "task_handler")),
		planH:        handler.NewPlanHandler(planSvc, planStore, taskStore, clk, hub, logger.With("component", "plan_handler")),
		rewardH:      handler.NewRewardHandler(rewardSvc, rewardStore, userStore, hub, logger.With("component", "reward_handler")),
		challengeH:   handler.NewChallengeHandler(challengeSvc, challengeStore, userStore, hub, logger.With("component", "challenge_handler")),
		familyH:      handler.NewFamilyHandler(familyStore, userStore, challengeStore, hub, logger.With("component", "family_handler")),
		sessionStore: sessionStore,
		userStore:    userStore,
		rateLimiter:  middleware.NewRateLimiter(10, time.Minute),
		sweeper:      sweep,
		logger:       logger,
	}
}

// Sweeper returns the background sweeper for lifecycle management.
func (s *Server) Sweeper() *sweeper.Sweeper {
	return s.sweeper
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required); credential endpoints are rate limited
	outerMux.Handle("POST /api/register", s.rateLimiter.Limit(http.HandlerFunc(s.authH.Register)))
	outerMux.Handle("POST /api/join", s.rateLimiter.Limit(http.HandlerFunc(s.authH.Join)))
	outerMux.Handle("POST /api/login", s.rateLimiter.Limit(http.HandlerFunc(s.authH.Login)))
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Protected routes
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessionStore, s.userStore)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	parent := middleware.RequireParent

	mux.HandleFunc("POST /api/logout", s.authH.Logout)
	mux.HandleFunc("GET /api/me", s.authH.Me)
	mux.Handle("DELETE /api/me", parent(http.HandlerFunc(s.authH.DeleteAccount)))

	// Family and roster
	mux.HandleFunc("GET /api/family", s.familyH.Get)
	mux.HandleFunc("GET /api/family/members", s.familyH.ListMembers)
	mux.HandleFunc("GET /api/leaderboard", s.familyH.Leaderboard)
	mux.Handle("POST /api/children", parent(http.HandlerFunc(s.familyH.CreateChild)))
	mux.Handle("PUT /api/children/{id}", parent(http.HandlerFunc(s.familyH.UpdateChild)))
	mux.Handle("DELETE /api/children/{id}", parent(http.HandlerFunc(s.familyH.DeleteChild)))
	mux.Handle("POST /api/children/{id}/reset-points", parent(http.HandlerFunc(s.familyH.ResetPoints)))
	mux.Handle("PUT /api/children/{id}/cash", parent(http.HandlerFunc(s.familyH.SetCashBalance)))
	mux.Handle("POST /api/children/{id}/forgive", parent(http.HandlerFunc(s.taskH.Forgive)))

	// Tasks
	mux.Handle("POST /api/tasks", parent(http.HandlerFunc(s.taskH.Create)))
	mux.HandleFunc("GET /api/tasks", s.taskH.List)
	mux.Handle("GET /api/tasks/pending", parent(http.HandlerFunc(s.taskH.ListPending)))
	mux.Handle("PUT /api/tasks/{id}", parent(http.HandlerFunc(s.taskH.Update)))
	mux.Handle("DELETE /api/tasks/{id}", parent(http.HandlerFunc(s.taskH.Delete)))
	mux.HandleFunc("POST /api/tasks/{id}/complete", s.taskH.Complete)
	mux.HandleFunc("POST /api/tasks/{id}/checkin", s.taskH.CheckIn)
	mux.Handle("POST /api/tasks/{id}/approve", parent(http.HandlerFunc(s.taskH.Approve)))
	mux.Handle("POST /api/tasks/approve-all", parent(http.HandlerFunc(s.taskH.ApproveAll)))

	// Plans
	mux.Handle("POST /api/plans", parent(http.HandlerFunc(s.planH.Create)))
	mux.HandleFunc("GET /api/plans", s.planH.List)
	mux.HandleFunc("GET /api/plans/active", s.planH.Active)
	mux.HandleFunc("GET /api/plans/{id}", s.planH.Get)
	mux.Handle("PUT /api/plans/{id}", parent(http.HandlerFunc(s.planH.Rename)))
	mux.Handle("POST /api/plans/{id}/apply", parent(http.HandlerFunc(s.planH.Apply)))
	mux.Handle("POST /api/plans/{id}/tasks", parent(http.HandlerFunc(s.planH.AddTask)))
	mux.Handle("DELETE /api/plans/{id}", parent(http.HandlerFunc(s.planH.Delete)))

	// Rewards
	mux.Handle("POST /api/rewards", parent(http.HandlerFunc(s.rewardH.Create)))
	mux.HandleFunc("GET /api/rewards", s.rewardH.List)
	mux.Handle("DELETE /api/rewards/{id}", parent(http.HandlerFunc(s.rewardH.Delete)))
	mux.HandleFunc("POST /api/rewards/{id}/redeem", s.rewardH.Redeem)
	mux.Handle("GET /api/reward-requests", parent(http.HandlerFunc(s.rewardH.ListPending)))
	mux.Handle("POST /api/reward-requests/{id}/resolve", parent(http.HandlerFunc(s.rewardH.Resolve)))

	// Challenges
	mux.Handle("POST /api/challenges", parent(http.HandlerFunc(s.challengeH.Create)))
	mux.HandleFunc("GET /api/challenges", s.challengeH.List)
	mux.HandleFunc("POST /api/challenges/{id}/claim", s.challengeH.Claim)
	mux.HandleFunc("POST /api/challenges/{id}/complete", s.challengeH.Complete)
	mux.Handle("DELETE /api/challenges/{id}", parent(http.HandlerFunc(s.challengeH.Delete)))

	// WebSocket
	mux.HandleFunc("GET /ws", ws.Handler(s.hub))
}
