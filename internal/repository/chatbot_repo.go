package repository

import (
	"gorm.io/gorm"

	"github.com/open-syllabus/open-syllabus-sub001/internal/model"
)

type ChatbotRepository struct {
	db *gorm.DB
}

func NewChatbotRepository(db *gorm.DB) *ChatbotRepository {
	return &ChatbotRepository{db: db}
}

func (r *ChatbotRepository) GetByID(id string) (*model.Chatbot, error) {
	var chatbot model.Chatbot
	err := r.db.Where("id = ?", id).First(&chatbot).Error
	if err != nil {
		return nil, err
	}
	return &chatbot, nil
}
