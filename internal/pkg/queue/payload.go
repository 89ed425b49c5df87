package queue

import "time"

// TranscriptMessage is one turn of a tutoring session.
type TranscriptMessage struct {
	Role    string `json:"role"` // user, assistant, system
	Content string `json:"content"`
}

// MemoryPayload is the input for a memory_processing job.
type MemoryPayload struct {
	StudentID              string              `json:"student_id"`
	ChatbotID              string              `json:"chatbot_id"`
	RoomID                 string              `json:"room_id"`
	Messages               []TranscriptMessage `json:"messages"`
	SessionStartTime       time.Time           `json:"session_start_time"`
	SessionDurationSeconds int                 `json:"session_duration_seconds"`
}

// PodcastPayload is the input for a podcast_generation job.
type PodcastPayload struct {
	StudyGuideID string  `json:"study_guide_id"`
	UserID       string  `json:"user_id"`
	Title        string  `json:"title"`
	SourceText   string  `json:"source_text"`
	Voice        string  `json:"voice"`
	Speed        float64 `json:"speed"`
}
