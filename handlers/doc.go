// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the Mission Control API.

# Handler Types

Each handler is a struct holding the collaborators it needs:

  - MissionHandler: mission lifecycle (start, design, finalize, launch, flight, acknowledge, reset)
  - VoteHandler: vote windows (open, cast, close, state)
  - TimerHandler: timer state and moderator pause/resume
  - LeaderboardHandler: season point totals
  - SweepHandler: secret-guarded deadline sweep for external cron

Handlers are created via constructor functions:

	missionHandler := handlers.NewMissionHandler(machine)

# Identity

Mutating endpoints run behind middleware.RequireIdentity. Handlers read the
caller with middleware.IdentityFrom and pass it to the machine as a
mission.Actor. Moderator-only operations return 403 for everyone else.

# Responses

Every JSON body, errors included, carries server_now (epoch ms) so clients
can correct for clock drift when rendering countdowns.

Machine errors map to status codes in errors.go:

	400 invalid option, design, action or timer kind
	403 moderator required
	409 wrong phase, no open vote, vote already open, timer state, lost write race
	503 ledger unavailable
*/
package handlers
