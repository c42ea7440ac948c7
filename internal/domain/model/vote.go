package model

import "time"

// Vote is one user's verdict on a battle. A nil VotedModelID is a draw.
type Vote struct {
	ID           int64     `json:"id"`
	BattleID     int64     `json:"battleId"`
	UserID       int64     `json:"userId"`
	VotedModelID *int64    `json:"votedModelId"`
	Comment      *string   `json:"comment"`
	CreatedAt    time.Time `json:"createdAt"`
}

// IsDraw reports whether the vote names no winner.
func (v Vote) IsDraw() bool { return v.VotedModelID == nil }

// Outcome is the per-model effect of a settled vote.
type Outcome string

// Outcomes.
const (
	OutcomeWin  Outcome = "win"
	OutcomeLoss Outcome = "loss"
	OutcomeDraw Outcome = "draw"
)

// RatingChange records one model's rating before and after a settlement.
type RatingChange struct {
	ModelID int64   `json:"modelId"`
	Outcome Outcome `json:"outcome"`
	Before  int     `json:"before"`
	After   int     `json:"after"`
}

// Settlement describes what a vote changed.
type Settlement struct {
	VoteID   int64          `json:"voteId"`
	BattleID int64          `json:"battleId"`
	WinnerID *int64         `json:"winnerId"`
	Changes  []RatingChange `json:"changes"`
}
