// Package types contains read shapes shared by the service and the API.
package types

import "github.com/okian/arena/internal/domain/model"

// Entry is a leaderboard row: a model and its 1-based position.
type Entry struct {
	Rank int `json:"rank"`
	model.Model
	WinRate float64 `json:"winRate"`
}

// Ranked numbers models in the order given, starting at 1.
func Ranked(models []model.Model) []Entry {
	out := make([]Entry, len(models))
	for i, m := range models {
		out[i] = Entry{Rank: i + 1, Model: m, WinRate: WinRate(m)}
	}
	return out
}

// WinRate is wins over decided-or-drawn votes, or 0 when none were cast.
func WinRate(m model.Model) float64 {
	played := m.TotalWins + m.TotalLosses + m.TotalDraws
	if played == 0 {
		return 0
	}
	return float64(m.TotalWins) / float64(played)
}
