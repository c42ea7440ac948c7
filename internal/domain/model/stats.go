package model

import "time"

// StatDateLayout is the day key used by the daily roll-up.
const StatDateLayout = "2006-01-02"

// ModelStat is one model's activity on one day.
type ModelStat struct {
	ModelID         int64    `json:"modelId"`
	Date            string   `json:"date"`
	BattlesCount    int      `json:"battlesCount"`
	WinsCount       int      `json:"winsCount"`
	LossesCount     int      `json:"lossesCount"`
	DrawsCount      int      `json:"drawsCount"`
	TotalVotes      int      `json:"totalVotes"`
	AvgResponseTime *float64 `json:"avgResponseTime"`
}

// StatDelta is an increment applied to a daily roll-up row.
type StatDelta struct {
	ModelID        int64
	Date           string
	Battles        int
	Wins           int
	Losses         int
	Draws          int
	Votes          int
	ResponseTimeMS int64
	Samples        int
}

// StatDate formats t as a roll-up day key in UTC.
func StatDate(t time.Time) string {
	return t.UTC().Format(StatDateLayout)
}

// ForOutcome builds the delta a settled vote contributes for one model.
func ForOutcome(modelID int64, day string, o Outcome) StatDelta {
	d := StatDelta{ModelID: modelID, Date: day, Votes: 1}
	switch o {
	case OutcomeWin:
		d.Wins = 1
	case OutcomeLoss:
		d.Losses = 1
	case OutcomeDraw:
		d.Draws = 1
	}
	return d
}
