// Package model contains the arena entities passed between layers.
package model

import (
	"strings"
	"time"
)

// Model is an AI model that can take part in battles.
type Model struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Provider     string    `json:"provider"`
	ModelID      string    `json:"modelId"`
	Description  string    `json:"description,omitempty"`
	Category     string    `json:"category,omitempty"`
	IsActive     bool      `json:"isActive"`
	EloRating    int       `json:"eloRating"`
	TotalBattles int       `json:"totalBattles"`
	TotalWins    int       `json:"totalWins"`
	TotalLosses  int       `json:"totalLosses"`
	TotalDraws   int       `json:"totalDraws"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// QualifiedName returns provider/modelId, the form model routers expect.
func (m Model) QualifiedName() string {
	if m.Provider == "" {
		return m.ModelID
	}
	return m.Provider + "/" + m.ModelID
}

// ModelFilter narrows a model listing. Zero values mean "any".
type ModelFilter struct {
	Provider string
	Category string
	IsActive *bool
}

// Difficulty grades a topic.
type Difficulty string

// Topic difficulties.
const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Valid reports whether d is one of the known difficulties.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// ParseDifficulty normalizes s; an empty string yields the medium default.
func ParseDifficulty(s string) (Difficulty, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DifficultyMedium, true
	}
	d := Difficulty(s)
	return d, d.Valid()
}

// Topic is a reusable prompt battles are fought over.
type Topic struct {
	ID         int64      `json:"id"`
	Title      string     `json:"title"`
	Prompt     string     `json:"prompt"`
	Category   string     `json:"category"`
	Difficulty Difficulty `json:"difficulty"`
	IsActive   bool       `json:"isActive"`
	UsageCount int        `json:"usageCount"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// TopicFilter narrows a topic listing. Only active topics are ever listed.
type TopicFilter struct {
	Category   string
	Difficulty Difficulty
}
