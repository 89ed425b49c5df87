package model

import (
	"time"
)

// TopicScore tracks a 0-100 mastery heuristic for one topic.
type TopicScore struct {
	Level          int       `json:"level"`
	LastReviewedAt time.Time `json:"last_reviewed_at"`
}

// LearningProfile is the durable, incrementally merged record of a
// student's topic mastery with one chatbot. The memory pipeline is the
// sole writer; the rest of the application only reads it.
type LearningProfile struct {
	ID               int64                 `gorm:"primaryKey" json:"id"`
	StudentID        string                `gorm:"size:64;not null;uniqueIndex:uniq_student_chatbot,priority:1" json:"student_id"`
	ChatbotID        string                `gorm:"size:64;not null;uniqueIndex:uniq_student_chatbot,priority:2" json:"chatbot_id"`
	TopicsInProgress []string              `gorm:"serializer:json" json:"topics_in_progress"`
	TopicProgress    map[string]TopicScore `gorm:"serializer:json" json:"topic_progress"`
	TotalSessions    int                   `gorm:"default:0" json:"total_sessions"`
	TotalMessages    int                   `gorm:"default:0" json:"total_messages"`
	LastSessionAt    *time.Time            `json:"last_session_at,omitempty"`
	CreatedAt        time.Time             `json:"created_at"`
	UpdatedAt        time.Time             `json:"updated_at"`
}

func (LearningProfile) TableName() string {
	return "learning_profiles"
}
