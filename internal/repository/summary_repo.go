package repository

import (
	"gorm.io/gorm"

	"github.com/open-syllabus/open-syllabus-sub001/internal/model"
)

type SummaryRepository struct {
	db *gorm.DB
}

func NewSummaryRepository(db *gorm.DB) *SummaryRepository {
	return &SummaryRepository{db: db}
}

func (r *SummaryRepository) Create(summary *model.SessionSummary) error {
	return r.db.Create(summary).Error
}

func (r *SummaryRepository) ListByStudentAndChatbot(studentID, chatbotID string, limit int) ([]*model.SessionSummary, error) {
	var summaries []*model.SessionSummary
	err := r.db.Where("student_id = ? AND chatbot_id = ?", studentID, chatbotID).
		Order("created_at DESC").
		Limit(limit).
		Find(&summaries).Error
	return summaries, err
}
