// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, and domain types for the API.

# Domain Types

  - Mission: the single persisted document per post
  - VoteWindow: a time-boxed ballot over a fixed option whitelist
  - Timer: one of the LAUNCH, BALLOT and PHASE countdowns

# Request Types

  - DesignRequest: payload, tank, engine (any subset)
  - FlightActionRequest: action
  - OpenVoteRequest: phase, options, duration_sec
  - CastVoteRequest: option_id
  - TimerRequest: remaining_ms

# Response Types

Every response embeds ServerTime:

  - MissionResponse, AcknowledgeResponse
  - VoteStateResponse, TallyResponse
  - TimersResponse
  - LeaderboardEntry
  - ErrorResponse: server_now, error, message

HUDMessage and TimerEvent are the realtime messages pushed over WebSocket.

# JSON Conventions

All JSON fields use snake_case. Times are RFC 3339 strings in documents and
epoch milliseconds in server_now.
*/
package models
