// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package mission runs the mission phase machine for a post.

# Phases

	IDLE -> DESIGN -> LAUNCH -> FLIGHT -> RESULT
	  ^                                     |
	  +------------- reset -----------------+

Start creates a mission with fuel 60, hull 100, crew 100 and success 50.
Design choices apply stat deltas, each clamped to [0, 100]. Finalizing arms a
120 second launch countdown. The launch draws a roll in [0, 100): below the
success stat the rocket reaches FLIGHT, otherwise the mission fails. FLIGHT
takes exactly one action and settles the outcome.

# Writes

Every mutation reads the document, clones it, applies a pure transform and
writes it back with compare-and-swap. A lost race re-reads and re-applies,
so concurrent callers observe one linear history:

	m, err := machine.FinalizeDesign(ctx, postID, actor)
	if errors.Is(err, mission.ErrPhaseMismatch) {
		// someone else finalized first
	}

Side effects (job scheduling, point credits, HUD publishes) run only after
the write commits, and their failures never roll the write back.

# Votes

A vote window belongs to the phase it was opened in. Closing tallies it,
applies the winning option's phase effect and credits the winning voters as
decisive. A window whose phase already passed closes without effect. Closing
a closed window returns the stored result.

# Timers

Expire is the single entry point for elapsed timers, used by both the
scheduler worker and the deadline sweep. It re-checks the deadline against
the stored document, so early, duplicate or superseded deliveries do nothing.

LAUNCH and PHASE follow the phase rules. BALLOT is a free countdown that
moderators start with StartTimer; when it elapses it just ends. Pausing or
resuming PHASE drags the open vote window's deadline along with it.
*/
package mission
