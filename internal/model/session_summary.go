package model

import (
	"time"
)

// SessionSummary is one append-only row per processed tutoring session.
// Rows are never updated after insert.
type SessionSummary struct {
	ID               int64     `gorm:"primaryKey" json:"id"`
	StudentID        string    `gorm:"size:64;not null;index" json:"student_id"`
	ChatbotID        string    `gorm:"size:64;not null;index" json:"chatbot_id"`
	RoomID           string    `gorm:"size:64;index" json:"room_id"`
	Summary          string    `gorm:"type:text" json:"summary"`
	KeyTopics        []string  `gorm:"serializer:json" json:"key_topics"`
	Understood       []string  `gorm:"serializer:json" json:"understood"`
	Struggling       []string  `gorm:"serializer:json" json:"struggling"`
	ProgressNote     string    `gorm:"type:text" json:"progress_note"`
	NextSteps        string    `gorm:"type:text" json:"next_steps"`
	Degraded         bool      `gorm:"default:false" json:"degraded"`
	MessageCount     int       `json:"message_count"`
	UserMessageCount int       `json:"user_message_count"`
	SessionStartedAt time.Time `json:"session_started_at"`
	DurationSeconds  int       `json:"duration_seconds"`
	CreatedAt        time.Time `json:"created_at"`
}

func (SessionSummary) TableName() string {
	return "session_summaries"
}
