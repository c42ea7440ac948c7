package simulate

import (
	"errors"
	"fmt"
	"math"
)

// ErrInconsistent marks a leaderboard that breaks a rating invariant.
var ErrInconsistent = errors.New("inconsistent leaderboard")

const winRateEpsilon = 1e-9

// VerifyLeaderboard checks that entries are ranked 1..n by descending
// rating with sane counters. When complete is set the page holds every
// active model and decided votes must balance: total wins equal total
// losses and draws come in pairs.
func VerifyLeaderboard(entries []Entry, complete bool) error {
	var wins, losses, draws int
	for i, e := range entries {
		if e.Rank != i+1 {
			return fmt.Errorf("%w: entry %d has rank %d", ErrInconsistent, i, e.Rank)
		}
		if i > 0 && e.EloRating > entries[i-1].EloRating {
			return fmt.Errorf("%w: entry %d rated %d above entry %d rated %d",
				ErrInconsistent, i, e.EloRating, i-1, entries[i-1].EloRating)
		}
		if e.TotalWins < 0 || e.TotalLosses < 0 || e.TotalDraws < 0 {
			return fmt.Errorf("%w: model %d has negative counters", ErrInconsistent, e.ID)
		}
		played := e.TotalWins + e.TotalLosses + e.TotalDraws
		want := 0.0
		if played > 0 {
			want = float64(e.TotalWins) / float64(played)
		}
		if math.Abs(want-e.WinRate) > winRateEpsilon {
			return fmt.Errorf("%w: model %d win rate %.4f, want %.4f", ErrInconsistent, e.ID, e.WinRate, want)
		}
		wins += e.TotalWins
		losses += e.TotalLosses
		draws += e.TotalDraws
	}
	if !complete {
		return nil
	}
	if wins != losses {
		return fmt.Errorf("%w: %d wins against %d losses", ErrInconsistent, wins, losses)
	}
	if draws%2 != 0 {
		return fmt.Errorf("%w: odd draw total %d", ErrInconsistent, draws)
	}
	return nil
}
