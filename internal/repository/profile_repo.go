package repository

import (
	"gorm.io/gorm"

	"github.com/open-syllabus/open-syllabus-sub001/internal/model"
)

type ProfileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// GetByStudentAndChatbot returns gorm.ErrRecordNotFound on first contact;
// the merge path treats that as "start a fresh profile".
func (r *ProfileRepository) GetByStudentAndChatbot(studentID, chatbotID string) (*model.LearningProfile, error) {
	var profile model.LearningProfile
	err := r.db.Where("student_id = ? AND chatbot_id = ?", studentID, chatbotID).First(&profile).Error
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *ProfileRepository) Create(profile *model.LearningProfile) error {
	return r.db.Create(profile).Error
}

func (r *ProfileRepository) Update(profile *model.LearningProfile) error {
	return r.db.Save(profile).Error
}
