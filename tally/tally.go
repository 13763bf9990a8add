// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package tally

import (
	"math"
	"sort"
	"time"

	"github.com/danielhkuo/mission-control/models"
)

// unvoted sorts options without a first vote behind every voted option.
var unvoted = time.Unix(0, math.MaxInt64).UTC()

// Result is the ranked aggregation of a vote window
type Result struct {
	Total     int
	PerOption map[string]int
	Ranking   []models.OptionCount
	Winner    string // empty when no votes were cast
}

// Tally counts the current ballot of each distinct voter and ranks the
// whitelisted options. The result only depends on Ballots and
// OptionFirstVoteAt, never on map iteration order.
func Tally(w *models.VoteWindow) Result {
	res := Result{PerOption: make(map[string]int)}
	if w == nil {
		return res
	}

	position := make(map[string]int, len(w.Options))
	for i, opt := range w.Options {
		res.PerOption[opt] = 0
		position[opt] = i
	}

	// One entry per voter; ballots for unknown options are ignored
	for _, opt := range w.Ballots {
		if _, ok := position[opt]; !ok {
			continue
		}
		res.PerOption[opt]++
		res.Total++
	}

	firstVote := func(opt string) time.Time {
		if ts, ok := w.OptionFirstVoteAt[opt]; ok && res.PerOption[opt] > 0 {
			return ts
		}
		return unvoted
	}

	ranking := make([]string, len(w.Options))
	copy(ranking, w.Options)
	sort.SliceStable(ranking, func(i, j int) bool {
		a, b := ranking[i], ranking[j]

		// 1. More votes wins
		if res.PerOption[a] != res.PerOption[b] {
			return res.PerOption[a] > res.PerOption[b]
		}

		// 2. Earlier first vote wins
		fa, fb := firstVote(a), firstVote(b)
		if !fa.Equal(fb) {
			return fa.Before(fb)
		}

		// 3. Whitelist order
		return position[a] < position[b]
	})

	res.Ranking = make([]models.OptionCount, len(ranking))
	for i, opt := range ranking {
		res.Ranking[i] = models.OptionCount{OptionID: opt, Count: res.PerOption[opt]}
	}

	if res.Total > 0 {
		res.Winner = ranking[0]
	}
	return res
}

// Response converts a Result into its wire form.
func (r Result) Response() *models.TallyResponse {
	return &models.TallyResponse{
		Total:     r.Total,
		PerOption: r.PerOption,
		Ranking:   r.Ranking,
		Winner:    r.Winner,
	}
}
