package model

import (
	"strings"
	"time"
)

// BattleStatus is the lifecycle state of a battle.
type BattleStatus string

// Battle statuses. A battle leaves pending exactly once.
const (
	StatusPending   BattleStatus = "pending"
	StatusCompleted BattleStatus = "completed"
	StatusError     BattleStatus = "error"
)

// Battle pits two models against each other on one prompt.
type Battle struct {
	ID                 int64        `json:"id"`
	UserID             int64        `json:"userId"`
	Model1ID           int64        `json:"model1Id"`
	Model2ID           int64        `json:"model2Id"`
	TopicID            int64        `json:"topicId"`
	CustomPrompt       *string      `json:"customPrompt"`
	Model1Response     *string      `json:"model1Response"`
	Model2Response     *string      `json:"model2Response"`
	Model1ResponseTime *int64       `json:"model1ResponseTime"`
	Model2ResponseTime *int64       `json:"model2ResponseTime"`
	WinnerID           *int64       `json:"winnerId"`
	Status             BattleStatus `json:"status"`
	CreatedAt          time.Time    `json:"createdAt"`
	CompletedAt        *time.Time   `json:"completedAt"`
}

// EffectivePrompt is the custom prompt when one was given, else the topic's.
func (b Battle) EffectivePrompt(t Topic) string {
	if b.CustomPrompt != nil && strings.TrimSpace(*b.CustomPrompt) != "" {
		return *b.CustomPrompt
	}
	return t.Prompt
}

// HasModel reports whether id is one of the two contenders.
func (b Battle) HasModel(id int64) bool {
	return id == b.Model1ID || id == b.Model2ID
}

// Opponent returns the contender that is not id.
func (b Battle) Opponent(id int64) int64 {
	if id == b.Model1ID {
		return b.Model2ID
	}
	return b.Model1ID
}

// Completion is what a successful execution writes back.
type Completion struct {
	BattleID           int64
	Model1Response     string
	Model2Response     string
	Model1ResponseTime int64
	Model2ResponseTime int64
	CompletedAt        time.Time
}

// ExecutionResult is returned to the caller of a battle execution.
type ExecutionResult struct {
	Success            bool   `json:"success"`
	Model1Response     string `json:"model1Response"`
	Model2Response     string `json:"model2Response"`
	Model1ResponseTime int64  `json:"model1ResponseTime"`
	Model2ResponseTime int64  `json:"model2ResponseTime"`
}

// ExecutionJob is a queued request to execute a battle in the background.
type ExecutionJob struct {
	JobID      string
	BattleID   int64
	EnqueuedAt time.Time
}
