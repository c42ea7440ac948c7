// Package simulate drives synthetic traffic through a running arena:
// it creates battles between random model pairs, executes them, casts
// votes as distinct users and then checks the resulting leaderboard.
package simulate

import "time"

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL   string        // Base URL of the service
	Battles   int           // Number of battles to create and vote on
	Workers   int           // Number of concurrent workers
	Timeout   time.Duration // HTTP request timeout
	DrawRate  float64       // Probability a vote is a draw
	Async     bool          // Queue executions instead of waiting for them
	FirstUser int64         // User id of the first simulated voter
	TopN      int           // Leaderboard page size to verify
	Verbose   bool          // Log every failed battle
}

// Stats holds run statistics.
type Stats struct {
	BattlesCreated     int
	BattlesExecuted    int
	BattlesQueued      int
	VotesCast          int
	Draws              int
	Failed             int
	LeaderboardEntries int
	StartTime          time.Time
	EndTime            time.Time
	Duration           time.Duration
}

// Model is the subset of a catalog model the simulator needs.
type Model struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	IsActive bool   `json:"isActive"`
}

// Topic is the subset of a topic the simulator needs.
type Topic struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// Entry is a leaderboard row as served by leaderboard.get.
type Entry struct {
	Rank        int     `json:"rank"`
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	EloRating   int     `json:"eloRating"`
	TotalWins   int     `json:"totalWins"`
	TotalLosses int     `json:"totalLosses"`
	TotalDraws  int     `json:"totalDraws"`
	WinRate     float64 `json:"winRate"`
}

// Default configuration values.
const (
	DefaultBattles  = 100
	DefaultTopN     = 50
	DefaultTimeout  = 2 * time.Minute
	DefaultDrawRate = 0.1
	DefaultUser     = 100_000
)

// Defaults fills zero fields of c.
func (c *Config) Defaults() {
	if c.Battles <= 0 {
		c.Battles = DefaultBattles
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.TopN <= 0 {
		c.TopN = DefaultTopN
	}
	if c.FirstUser <= 0 {
		c.FirstUser = DefaultUser
	}
	if c.DrawRate < 0 || c.DrawRate > 1 {
		c.DrawRate = DefaultDrawRate
	}
}
