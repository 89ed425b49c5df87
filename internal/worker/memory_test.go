package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/open-syllabus/open-syllabus-sub001/config"
	"github.com/open-syllabus/open-syllabus-sub001/internal/model"
	"github.com/open-syllabus/open-syllabus-sub001/internal/pkg/pool"
	"github.com/open-syllabus/open-syllabus-sub001/internal/pkg/queue"
	"github.com/open-syllabus/open-syllabus-sub001/internal/repository"
	"github.com/open-syllabus/open-syllabus-sub001/internal/testutil"
)

type fakeCompleter struct {
	response string
	err      error
	calls    int
	lastUser string
}

func (f *fakeCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	f.calls++
	f.lastUser = user
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func testMemoryConfig() config.MemoryConfig {
	return config.MemoryConfig{InitialLevel: 50, UnderstoodDelta: 10, StrugglingDelta: 5}
}

func newTestPool(db *gorm.DB) *pool.Pool[*gorm.DB] {
	return pool.New(4, time.Minute, func() (*gorm.DB, error) {
		return db, nil
	})
}

func memoryJob(t *testing.T, payload *queue.MemoryPayload) *queue.Job {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return &queue.Job{ID: "job_1", Kind: queue.KindMemory, Payload: data}
}

func collectProgress(progress *[]int) func(int) {
	return func(p int) { *progress = append(*progress, p) }
}

const validSummaryResponse = `{
	"summary": "The student practiced basic addition and got the right answer.",
	"key_topics": ["arithmetic"],
	"learning_insights": {
		"understood": ["addition"],
		"struggling": [],
		"progress": "Quick and correct on a simple sum."
	},
	"next_steps": "Move on to subtraction."
}`

func TestMemoryProcessor_FirstSession(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	student := testutil.TestUser(t, db)
	chatbot := testutil.TestChatbot(t, db, testutil.WithBotName("Math Tutor"))

	llm := &fakeCompleter{response: validSummaryResponse}
	p := NewMemoryProcessor(newTestPool(db), llm, testMemoryConfig())

	job := memoryJob(t, &queue.MemoryPayload{
		StudentID: student.ID,
		ChatbotID: chatbot.ID,
		RoomID:    "room_1",
		Messages: []queue.TranscriptMessage{
			{Role: "user", Content: "what is 2+2"},
			{Role: "assistant", Content: "4"},
		},
	})

	var progress []int
	result, err := p.Handle(context.Background(), job, collectProgress(&progress))
	require.NoError(t, err)

	t.Run("transcript labels both speakers", func(t *testing.T) {
		assert.Contains(t, llm.lastUser, "Student: what is 2+2")
		assert.Contains(t, llm.lastUser, "Math Tutor: 4")
	})

	t.Run("profile reflects the session", func(t *testing.T) {
		profile, err := repository.NewProfileRepository(db).GetByStudentAndChatbot(student.ID, chatbot.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, profile.TotalSessions)
		assert.Equal(t, 1, profile.TotalMessages)
		assert.Contains(t, profile.TopicsInProgress, "arithmetic")
		assert.Equal(t, 50, profile.TopicProgress["arithmetic"].Level)
		assert.Equal(t, 60, profile.TopicProgress["addition"].Level)
		require.NotNil(t, profile.LastSessionAt)
	})

	t.Run("summary row is persisted", func(t *testing.T) {
		var summaries []model.SessionSummary
		require.NoError(t, db.Find(&summaries).Error)
		require.Len(t, summaries, 1)
		assert.Equal(t, student.ID, summaries[0].StudentID)
		assert.False(t, summaries[0].Degraded)
		assert.Equal(t, 2, summaries[0].MessageCount)
		assert.Equal(t, 1, summaries[0].UserMessageCount)
	})

	t.Run("progress ends at 100 and never regresses", func(t *testing.T) {
		require.NotEmpty(t, progress)
		assert.Equal(t, 100, progress[len(progress)-1])
		for i := 1; i < len(progress); i++ {
			assert.GreaterOrEqual(t, progress[i], progress[i-1])
		}
	})

	t.Run("result summarizes the merge", func(t *testing.T) {
		out, ok := result.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, 1, out["total_sessions"])
		assert.Equal(t, false, out["degraded"])
	})
}

func TestMemoryProcessor_CountersAreAdditive(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	student := testutil.TestUser(t, db)
	chatbot := testutil.TestChatbot(t, db)

	llm := &fakeCompleter{response: validSummaryResponse}
	p := NewMemoryProcessor(newTestPool(db), llm, testMemoryConfig())

	for i := 0; i < 3; i++ {
		job := memoryJob(t, &queue.MemoryPayload{
			StudentID: student.ID,
			ChatbotID: chatbot.ID,
			Messages: []queue.TranscriptMessage{
				{Role: "user", Content: "question one"},
				{Role: "user", Content: "question two"},
				{Role: "assistant", Content: "answer"},
			},
		})
		_, err := p.Handle(context.Background(), job, func(int) {})
		require.NoError(t, err)
	}

	profile, err := repository.NewProfileRepository(db).GetByStudentAndChatbot(student.ID, chatbot.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, profile.TotalSessions)
	assert.Equal(t, 6, profile.TotalMessages)
	// Repeated understood signal keeps climbing: 50 -> 60 -> 70 -> 80
	assert.Equal(t, 80, profile.TopicProgress["addition"].Level)
}

func TestMemoryProcessor_DegradedFallback(t *testing.T) {
	tests := []struct {
		name string
		llm  *fakeCompleter
	}{
		{"provider error", &fakeCompleter{err: errors.New("rate limited")}},
		{"malformed response", &fakeCompleter{response: "Sure! Here is my analysis of the session."}},
		{"empty summary text", &fakeCompleter{response: `{"summary":"  ","key_topics":["x"]}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := testutil.SetupTestDB(t)
			defer testutil.CleanupTestDB(t, db)

			student := testutil.TestUser(t, db)
			chatbot := testutil.TestChatbot(t, db)

			p := NewMemoryProcessor(newTestPool(db), tt.llm, testMemoryConfig())
			job := memoryJob(t, &queue.MemoryPayload{
				StudentID: student.ID,
				ChatbotID: chatbot.ID,
				Messages: []queue.TranscriptMessage{
					{Role: "user", Content: "hello"},
				},
			})

			_, err := p.Handle(context.Background(), job, func(int) {})
			require.NoError(t, err)

			var summary model.SessionSummary
			require.NoError(t, db.First(&summary).Error)
			assert.True(t, summary.Degraded)
			assert.Empty(t, summary.KeyTopics)

			// The session still counts even without insights
			profile, err := repository.NewProfileRepository(db).GetByStudentAndChatbot(student.ID, chatbot.ID)
			require.NoError(t, err)
			assert.Equal(t, 1, profile.TotalSessions)
			assert.Equal(t, 1, profile.TotalMessages)
			assert.Empty(t, profile.TopicsInProgress)
		})
	}
}

func TestMemoryProcessor_ZeroUserMessages(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	student := testutil.TestUser(t, db)
	chatbot := testutil.TestChatbot(t, db)

	llm := &fakeCompleter{response: validSummaryResponse}
	p := NewMemoryProcessor(newTestPool(db), llm, testMemoryConfig())

	job := memoryJob(t, &queue.MemoryPayload{
		StudentID: student.ID,
		ChatbotID: chatbot.ID,
		Messages: []queue.TranscriptMessage{
			{Role: "assistant", Content: "are you still there?"},
		},
	})

	_, err := p.Handle(context.Background(), job, func(int) {})
	require.NoError(t, err)

	profile, err := repository.NewProfileRepository(db).GetByStudentAndChatbot(student.ID, chatbot.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, profile.TotalSessions)
	assert.Equal(t, 0, profile.TotalMessages)
}

func TestMemoryProcessor_MissingChatbotUsesFallbackName(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	student := testutil.TestUser(t, db)

	llm := &fakeCompleter{response: validSummaryResponse}
	p := NewMemoryProcessor(newTestPool(db), llm, testMemoryConfig())

	job := memoryJob(t, &queue.MemoryPayload{
		StudentID: student.ID,
		ChatbotID: "bot_gone",
		Messages: []queue.TranscriptMessage{
			{Role: "user", Content: "hi"},
			{Role: "assistant", Content: "hello"},
		},
	})

	_, err := p.Handle(context.Background(), job, func(int) {})
	require.NoError(t, err)
	assert.Contains(t, llm.lastUser, fallbackChatbotName+": hello")
}

func TestMemoryProcessor_InvalidPayload(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	p := NewMemoryProcessor(newTestPool(db), &fakeCompleter{}, testMemoryConfig())

	t.Run("not json", func(t *testing.T) {
		job := &queue.Job{ID: "job_x", Kind: queue.KindMemory, Payload: []byte("not json")}
		_, err := p.Handle(context.Background(), job, func(int) {})
		assert.Error(t, err)
	})

	t.Run("missing ids", func(t *testing.T) {
		job := memoryJob(t, &queue.MemoryPayload{StudentID: "s1"})
		_, err := p.Handle(context.Background(), job, func(int) {})
		assert.Error(t, err)
	})
}

func TestApplySummary(t *testing.T) {
	cfg := testMemoryConfig()
	now := time.Now()

	t.Run("clamps at the ceiling", func(t *testing.T) {
		profile := &model.LearningProfile{
			TopicsInProgress: []string{"fractions"},
			TopicProgress:    map[string]model.TopicScore{"fractions": {Level: 95}},
		}
		ApplySummary(profile, &ConversationSummary{
			LearningInsights: LearningInsights{Understood: []string{"fractions"}},
		}, 2, cfg, now)

		assert.Equal(t, 100, profile.TopicProgress["fractions"].Level)
		assert.Equal(t, 1, profile.TotalSessions)
		assert.Equal(t, 2, profile.TotalMessages)
	})

	t.Run("clamps at the floor", func(t *testing.T) {
		profile := &model.LearningProfile{
			TopicsInProgress: []string{"fractions"},
			TopicProgress:    map[string]model.TopicScore{"fractions": {Level: 3}},
		}
		ApplySummary(profile, &ConversationSummary{
			LearningInsights: LearningInsights{Struggling: []string{"fractions"}},
		}, 1, cfg, now)

		assert.Equal(t, 0, profile.TopicProgress["fractions"].Level)
	})

	t.Run("untouched topics keep their level", func(t *testing.T) {
		profile := &model.LearningProfile{
			TopicsInProgress: []string{"geometry"},
			TopicProgress:    map[string]model.TopicScore{"geometry": {Level: 72}},
		}
		ApplySummary(profile, &ConversationSummary{
			KeyTopics:        []string{"algebra"},
			LearningInsights: LearningInsights{Understood: []string{"algebra"}},
		}, 1, cfg, now)

		assert.Equal(t, 72, profile.TopicProgress["geometry"].Level)
		assert.Equal(t, 60, profile.TopicProgress["algebra"].Level)
		assert.ElementsMatch(t, []string{"geometry", "algebra"}, profile.TopicsInProgress)
	})

	t.Run("new struggling topic starts below initial", func(t *testing.T) {
		profile := &model.LearningProfile{TopicProgress: map[string]model.TopicScore{}}
		ApplySummary(profile, &ConversationSummary{
			LearningInsights: LearningInsights{Struggling: []string{"limits"}},
		}, 1, cfg, now)

		assert.Equal(t, 45, profile.TopicProgress["limits"].Level)
	})
}

func TestParseSummary(t *testing.T) {
	t.Run("strips prose around the object", func(t *testing.T) {
		raw := "Here you go:\n" + validSummaryResponse + "\nHope that helps!"
		summary, err := parseSummary(raw)
		require.NoError(t, err)
		assert.Equal(t, []string{"arithmetic"}, summary.KeyTopics)
	})

	t.Run("normalizes and dedupes topics", func(t *testing.T) {
		summary, err := parseSummary(`{"summary":"ok","key_topics":[" Algebra ","algebra","", "Geometry"]}`)
		require.NoError(t, err)
		assert.Equal(t, []string{"algebra", "geometry"}, summary.KeyTopics)
	})

	t.Run("rejects responses with no object", func(t *testing.T) {
		_, err := parseSummary("no json here")
		assert.Error(t, err)
	})
}
