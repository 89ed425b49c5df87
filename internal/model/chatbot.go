package model

import (
	"time"
)

type Chatbot struct {
	ID          string    `gorm:"primaryKey;size:64" json:"id"`
	TeacherID   string    `gorm:"size:64;index" json:"teacher_id"`
	Name        string    `gorm:"size:100;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Chatbot) TableName() string {
	return "chatbots"
}
