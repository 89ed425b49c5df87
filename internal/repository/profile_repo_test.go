package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/open-syllabus/open-syllabus-sub001/internal/model"
	"github.com/open-syllabus/open-syllabus-sub001/internal/testutil"
)

func TestProfileRepository(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewProfileRepository(db)

	t.Run("miss reports record not found", func(t *testing.T) {
		_, err := repo.GetByStudentAndChatbot("nobody", "nothing")
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	})

	t.Run("create and load round trip", func(t *testing.T) {
		profile := &model.LearningProfile{
			StudentID:        "student_1",
			ChatbotID:        "bot_1",
			TopicsInProgress: []string{"algebra", "fractions"},
			TopicProgress: map[string]model.TopicScore{
				"algebra":   {Level: 60, LastReviewedAt: time.Now()},
				"fractions": {Level: 45, LastReviewedAt: time.Now()},
			},
			TotalSessions: 2,
			TotalMessages: 9,
		}
		require.NoError(t, repo.Create(profile))

		loaded, err := repo.GetByStudentAndChatbot("student_1", "bot_1")
		require.NoError(t, err)
		assert.Equal(t, profile.ID, loaded.ID)
		assert.Equal(t, []string{"algebra", "fractions"}, loaded.TopicsInProgress)
		assert.Equal(t, 60, loaded.TopicProgress["algebra"].Level)
		assert.Equal(t, 2, loaded.TotalSessions)
	})

	t.Run("update persists merged state", func(t *testing.T) {
		loaded, err := repo.GetByStudentAndChatbot("student_1", "bot_1")
		require.NoError(t, err)

		loaded.TotalSessions++
		loaded.TopicProgress["algebra"] = model.TopicScore{Level: 70, LastReviewedAt: time.Now()}
		require.NoError(t, repo.Update(loaded))

		reloaded, err := repo.GetByStudentAndChatbot("student_1", "bot_1")
		require.NoError(t, err)
		assert.Equal(t, 3, reloaded.TotalSessions)
		assert.Equal(t, 70, reloaded.TopicProgress["algebra"].Level)
	})

	t.Run("profiles are scoped per chatbot", func(t *testing.T) {
		other := testutil.TestProfile(t, db, "student_1", "bot_2",
			testutil.WithTopic("geometry", 50))

		loaded, err := repo.GetByStudentAndChatbot("student_1", "bot_2")
		require.NoError(t, err)
		assert.Equal(t, other.ID, loaded.ID)
		assert.NotContains(t, loaded.TopicsInProgress, "algebra")
	})
}
