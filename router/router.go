// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"

	"github.com/danielhkuo/mission-control/cliparse"
	"github.com/danielhkuo/mission-control/handlers"
	"github.com/danielhkuo/mission-control/ledger"
	"github.com/danielhkuo/mission-control/middleware"
	"github.com/danielhkuo/mission-control/mission"
	"github.com/danielhkuo/mission-control/pubsub"
	"github.com/danielhkuo/mission-control/scheduler"
)

// Deps are the long-lived services the routes dispatch to.
type Deps struct {
	Machine  *mission.Machine
	Ledger   *ledger.Ledger
	Hub      *pubsub.Hub
	Sweeper  *scheduler.Sweeper
	Resolver middleware.Resolver
}

func NewRouter(deps Deps, cfg cliparse.Config) *http.ServeMux {
	mux := http.NewServeMux()

	// Initialize handlers
	missionHandler := handlers.NewMissionHandler(deps.Machine)
	voteHandler := handlers.NewVoteHandler(deps.Machine)
	timerHandler := handlers.NewTimerHandler(deps.Machine)
	leaderboardHandler := handlers.NewLeaderboardHandler(deps.Ledger, deps.Machine.Now)
	sweepHandler := handlers.NewSweepHandler(deps.Sweeper, cfg.SweepSecret, deps.Machine.Now)
	wsHandler := pubsub.NewHandler(deps.Hub, deps.Machine.CatchUp, deps.Machine.Now)

	public := func(h http.HandlerFunc) http.HandlerFunc {
		return middleware.WithLogging(middleware.WithTracing(h))
	}
	authed := func(h http.HandlerFunc) http.HandlerFunc {
		return public(middleware.RequireIdentity(deps.Resolver, h))
	}

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Mission lifecycle
	mux.HandleFunc("GET /missions/{post}", public(missionHandler.Get))
	mux.HandleFunc("POST /missions/{post}/start", authed(missionHandler.Start))
	mux.HandleFunc("POST /missions/{post}/design", authed(missionHandler.Design))
	mux.HandleFunc("POST /missions/{post}/finalize", authed(missionHandler.Finalize))
	mux.HandleFunc("POST /missions/{post}/launch", authed(missionHandler.Launch))
	mux.HandleFunc("POST /missions/{post}/flight", authed(missionHandler.Flight))
	mux.HandleFunc("POST /missions/{post}/acknowledge", authed(missionHandler.Acknowledge))
	mux.HandleFunc("POST /missions/{post}/reset", authed(missionHandler.Reset))

	// Voting
	mux.HandleFunc("GET /missions/{post}/votes", public(voteHandler.State))
	mux.HandleFunc("POST /missions/{post}/votes", authed(voteHandler.Open))
	mux.HandleFunc("POST /missions/{post}/votes/cast", authed(voteHandler.Cast))
	mux.HandleFunc("POST /missions/{post}/votes/close", authed(voteHandler.Close))

	// Timers
	mux.HandleFunc("GET /missions/{post}/timers", public(timerHandler.List))
	mux.HandleFunc("POST /missions/{post}/timers/{kind}/start", authed(timerHandler.Start))
	mux.HandleFunc("POST /missions/{post}/timers/{kind}/pause", authed(timerHandler.Pause))
	mux.HandleFunc("POST /missions/{post}/timers/{kind}/resume", authed(timerHandler.Resume))

	// Realtime
	mux.HandleFunc("GET /missions/{post}/ws", middleware.WithLogging(wsHandler.Handle))

	// Ledger and scheduler callback
	mux.HandleFunc("GET /leaderboard/{user}", public(leaderboardHandler.Get))
	mux.HandleFunc("POST /internal/sweep", public(sweepHandler.Sweep))

	// Root endpoint
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("mission-control API v1"))
	})

	return mux
}
