package testutil

import (
	"fmt"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/open-syllabus/open-syllabus-sub001/internal/model"
)

// TestUser creates a test user row.
func TestUser(t *testing.T, db *gorm.DB, opts ...func(*model.User)) *model.User {
	t.Helper()

	email := fmt.Sprintf("student_%d@example.com", time.Now().UnixNano())
	user := &model.User{
		ID:          fmt.Sprintf("user_%d", time.Now().UnixNano()),
		Email:       &email,
		DisplayName: "Test Student",
		CountryCode: "US",
	}

	for _, opt := range opts {
		opt(user)
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	return user
}

// WithCountry sets the user's country code.
func WithCountry(code string) func(*model.User) {
	return func(u *model.User) {
		u.CountryCode = code
	}
}

// TestChatbot creates a test chatbot row.
func TestChatbot(t *testing.T, db *gorm.DB, opts ...func(*model.Chatbot)) *model.Chatbot {
	t.Helper()

	chatbot := &model.Chatbot{
		ID:   fmt.Sprintf("bot_%d", time.Now().UnixNano()),
		Name: "Algebra Tutor",
	}

	for _, opt := range opts {
		opt(chatbot)
	}

	if err := db.Create(chatbot).Error; err != nil {
		t.Fatalf("Failed to create test chatbot: %v", err)
	}

	return chatbot
}

// WithBotName sets the chatbot's display name.
func WithBotName(name string) func(*model.Chatbot) {
	return func(c *model.Chatbot) {
		c.Name = name
	}
}

// TestProfile creates a learning profile row.
func TestProfile(t *testing.T, db *gorm.DB, studentID, chatbotID string, opts ...func(*model.LearningProfile)) *model.LearningProfile {
	t.Helper()

	profile := &model.LearningProfile{
		StudentID:        studentID,
		ChatbotID:        chatbotID,
		TopicsInProgress: []string{},
		TopicProgress:    map[string]model.TopicScore{},
	}

	for _, opt := range opts {
		opt(profile)
	}

	if err := db.Create(profile).Error; err != nil {
		t.Fatalf("Failed to create test profile: %v", err)
	}

	return profile
}

// WithTopic seeds one topic at a given level.
func WithTopic(topic string, level int) func(*model.LearningProfile) {
	return func(p *model.LearningProfile) {
		p.TopicsInProgress = append(p.TopicsInProgress, topic)
		p.TopicProgress[topic] = model.TopicScore{Level: level, LastReviewedAt: time.Now()}
	}
}

// TestPodcast creates a cached podcast record.
func TestPodcast(t *testing.T, db *gorm.DB, studyGuideID, voice string, speed float64) *model.StudyPodcast {
	t.Helper()

	podcast := &model.StudyPodcast{
		StudyGuideID:    studyGuideID,
		Voice:           voice,
		Speed:           speed,
		UserID:          "user_1",
		Title:           "Cached Guide",
		AudioURL:        fmt.Sprintf("https://cdn.example.com/podcasts/%s_%s.mp3", studyGuideID, voice),
		ObjectKey:       fmt.Sprintf("podcasts/user_1/%s_%s.mp3", studyGuideID, voice),
		DurationSeconds: 120,
		FileSizeBytes:   2048,
		ChunkCount:      2,
	}

	if err := db.Create(podcast).Error; err != nil {
		t.Fatalf("Failed to create test podcast: %v", err)
	}

	return podcast
}
