// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the Mission Control API.

# Route Registration

NewRouter creates a configured http.ServeMux with all endpoints:

	mux := router.NewRouter(router.Deps{
		Machine:  machine,
		Ledger:   ledger,
		Hub:      hub,
		Sweeper:  sweeper,
		Resolver: auth.NewResolver(cfg.JWTSecret, nil),
	}, cfg)

# Endpoints

Health:

	GET /health

Mission (writes require a bearer token):

	GET  /missions/{post}             - Current document
	POST /missions/{post}/start       - IDLE to DESIGN
	POST /missions/{post}/design      - Apply payload, tank or engine
	POST /missions/{post}/finalize    - DESIGN to LAUNCH
	POST /missions/{post}/launch      - Resolve the launch now
	POST /missions/{post}/flight      - Take the flight action
	POST /missions/{post}/acknowledge - Distribute rewards
	POST /missions/{post}/reset       - Back to IDLE (moderator)

Votes:

	GET  /missions/{post}/votes       - Window and live tally
	POST /missions/{post}/votes       - Open a window
	POST /missions/{post}/votes/cast  - Cast or change a ballot
	POST /missions/{post}/votes/close - Close now (moderator)

Timers:

	GET  /missions/{post}/timers               - All three kinds
	POST /missions/{post}/timers/{kind}/start  - Moderator, BALLOT only
	POST /missions/{post}/timers/{kind}/pause  - Moderator
	POST /missions/{post}/timers/{kind}/resume - Moderator

Realtime:

	GET /missions/{post}/ws - HUD and timer stream (WebSocket)

Other:

	GET  /leaderboard/{user} - Season total
	POST /internal/sweep     - Deadline sweep (X-Sweep-Secret)

Every route except the WebSocket is wrapped in request logging and tracing.
*/
package router
