package repository

import (
	"gorm.io/gorm"

	"github.com/open-syllabus/open-syllabus-sub001/internal/model"
)

type PodcastRepository struct {
	db *gorm.DB
}

func NewPodcastRepository(db *gorm.DB) *PodcastRepository {
	return &PodcastRepository{db: db}
}

func (r *PodcastRepository) Create(podcast *model.StudyPodcast) error {
	return r.db.Create(podcast).Error
}

// GetByKey looks up the content-addressed cache key. Returns
// gorm.ErrRecordNotFound when the rendition has not been generated yet.
func (r *PodcastRepository) GetByKey(studyGuideID, voice string, speed float64) (*model.StudyPodcast, error) {
	var podcast model.StudyPodcast
	err := r.db.Where("study_guide_id = ? AND voice = ? AND speed = ?", studyGuideID, voice, speed).
		First(&podcast).Error
	if err != nil {
		return nil, err
	}
	return &podcast, nil
}
