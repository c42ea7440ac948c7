package model

import "time"

// Preference holds per-user settings.
type Preference struct {
	UserID             int64     `json:"userId"`
	FavoriteModels     []int64   `json:"favoriteModels"`
	EmailNotifications bool      `json:"emailNotifications"`
	BattleReminders    bool      `json:"battleReminders"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// DefaultPreference is what a user has before saving anything.
func DefaultPreference(userID int64) Preference {
	return Preference{
		UserID:             userID,
		FavoriteModels:     []int64{},
		EmailNotifications: true,
		BattleReminders:    true,
	}
}

// PreferencePatch is a partial update; nil fields are left untouched.
type PreferencePatch struct {
	FavoriteModels     *[]int64
	EmailNotifications *bool
	BattleReminders    *bool
}

// Apply returns p with the provided fields of patch written over it.
func (p Preference) Apply(patch PreferencePatch) Preference {
	if patch.FavoriteModels != nil {
		p.FavoriteModels = append([]int64{}, (*patch.FavoriteModels)...)
	}
	if patch.EmailNotifications != nil {
		p.EmailNotifications = *patch.EmailNotifications
	}
	if patch.BattleReminders != nil {
		p.BattleReminders = *patch.BattleReminders
	}
	return p
}
