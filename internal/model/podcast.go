package model

import (
	"time"
)

// StudyPodcast caches one synthesized rendition of a study guide.
// (study_guide_id, voice, speed) is the cache key: a second request for
// the same key is answered by lookup, never by regeneration. Rows are
// never updated in place.
type StudyPodcast struct {
	ID              int64     `gorm:"primaryKey" json:"id"`
	StudyGuideID    string    `gorm:"size:64;not null;uniqueIndex:uniq_guide_voice_speed,priority:1" json:"study_guide_id"`
	Voice           string    `gorm:"size:32;not null;uniqueIndex:uniq_guide_voice_speed,priority:2" json:"voice"`
	Speed           float64   `gorm:"not null;uniqueIndex:uniq_guide_voice_speed,priority:3" json:"speed"`
	UserID          string    `gorm:"size:64;index" json:"user_id"`
	Title           string    `gorm:"size:255" json:"title"`
	AudioURL        string    `gorm:"size:500;not null" json:"audio_url"`
	ObjectKey       string    `gorm:"size:500" json:"object_key"`
	DurationSeconds int       `json:"duration_seconds"`
	FileSizeBytes   int64     `json:"file_size_bytes"`
	ScriptPreview   string    `gorm:"size:500" json:"script_preview"`
	ChunkCount      int       `json:"chunk_count"`
	SourceLength    int       `json:"source_length"`
	ScriptLength    int       `json:"script_length"`
	CreatedAt       time.Time `json:"created_at"`
}

func (StudyPodcast) TableName() string {
	return "study_podcasts"
}
