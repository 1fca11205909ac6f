package models

import "time"

// SkillUsage counts how often a sender used a skill.
type SkillUsage struct {
	Count      int       `json:"count"`
	LastUsedAt time.Time `json:"last_used_at"`
}

// UserMemory holds learned preferences for a sender.
type UserMemory struct {
	Sender         string                `json:"sender" gorm:"primaryKey"`
	PreferredSkill string                `json:"preferred_skill"`
	Usage          map[string]SkillUsage `json:"usage" gorm:"serializer:json"`
	LastUpdated    time.Time             `json:"last_updated"`
}

// HasPreference reports whether a preferred skill is set.
func (m *UserMemory) HasPreference() bool {
	return m != nil && m.PreferredSkill != ""
}
