// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package tally ranks the options of a vote window.

# Ranking

Options are ordered lexicographically by:

 1. vote count, descending
 2. time of the option's first vote, ascending
 3. position in the whitelist

An option nobody voted for uses a far-future first-vote time, so it never
wins a tie against an option with at least one vote.

	res := tally.Tally(window)
	if res.Winner == "" {
		// no ballots cast
	}

Each voter counts once, using their latest ballot.
*/
package tally
