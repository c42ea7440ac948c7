// Package rating implements the ELO update applied when a battle is settled.
package rating

import "math"

// Rating constants.
const (
	// KFactor scales how far a single result moves a rating.
	KFactor = 32.0
	// Default is the rating every model starts with.
	Default = 1500
	// scale is the logistic spread of the expected-score curve.
	scale = 400.0
)

// Result holds the post-game ratings for the two slots.
type Result struct {
	WinnerNew int
	LoserNew  int
}

// Expected returns the expected score of a player rated self against opp.
func Expected(self, opp int) float64 {
	return 1 / (1 + math.Pow(10, float64(opp-self)/scale))
}

// Calculate returns updated ratings for a decided game (winner beat loser) or,
// when isDraw is set, for a drawn game between the two slots.
// Ratings are rounded half away from zero and have no floor.
func Calculate(winnerRating, loserRating int, isDraw bool) Result {
	expectedWinner := Expected(winnerRating, loserRating)
	expectedLoser := Expected(loserRating, winnerRating)

	winnerScore, loserScore := 1.0, 0.0
	if isDraw {
		winnerScore, loserScore = 0.5, 0.5
	}

	return Result{
		WinnerNew: int(math.Round(float64(winnerRating) + KFactor*(winnerScore-expectedWinner))),
		LoserNew:  int(math.Round(float64(loserRating) + KFactor*(loserScore-expectedLoser))),
	}
}
