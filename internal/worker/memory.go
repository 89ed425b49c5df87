package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/open-syllabus/open-syllabus-sub001/config"
	"github.com/open-syllabus/open-syllabus-sub001/internal/model"
	"github.com/open-syllabus/open-syllabus-sub001/internal/pkg/pool"
	"github.com/open-syllabus/open-syllabus-sub001/internal/pkg/queue"
	"github.com/open-syllabus/open-syllabus-sub001/internal/repository"
)

const fallbackChatbotName = "your tutor"

const memorySystemPrompt = `You are an educational analyst. You will receive the transcript of a tutoring session between a student and an assistant. Respond with ONLY a JSON object, no prose and no code fences, in exactly this shape:
{
  "summary": "2-3 sentence summary of the session",
  "key_topics": ["topic", ...],
  "learning_insights": {
    "understood": ["concept the student demonstrated understanding of", ...],
    "struggling": ["concept the student struggled with", ...],
    "progress": "1-2 sentences on the student's progress"
  },
  "next_steps": "1-2 sentences of recommended next steps"
}
Topics and concepts must be short lowercase phrases. Use empty arrays when nothing applies.`

// ConversationSummary is the structured result of one reasoning call.
// Produced fresh per job, never reused.
type ConversationSummary struct {
	Summary          string           `json:"summary"`
	KeyTopics        []string         `json:"key_topics"`
	LearningInsights LearningInsights `json:"learning_insights"`
	NextSteps        string           `json:"next_steps"`
}

type LearningInsights struct {
	Understood []string `json:"understood"`
	Struggling []string `json:"struggling"`
	Progress   string   `json:"progress"`
}

// Completer is the reasoning provider dependency.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// MemoryProcessor turns a finished tutoring session into a summary row
// and an updated learning profile.
type MemoryProcessor struct {
	handles *pool.Pool[*gorm.DB]
	llm     Completer
	cfg     config.MemoryConfig
}

func NewMemoryProcessor(handles *pool.Pool[*gorm.DB], llm Completer, cfg config.MemoryConfig) *MemoryProcessor {
	return &MemoryProcessor{handles: handles, llm: llm, cfg: cfg}
}

// Handle runs the memory pipeline. A memory job always produces some
// profile update: reasoning failures degrade the summary, they do not
// fail the job. Only persistence failures do.
func (p *MemoryProcessor) Handle(ctx context.Context, job *queue.Job, report func(int)) (interface{}, error) {
	var payload queue.MemoryPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return nil, fmt.Errorf("invalid memory payload: %w", err)
	}
	if payload.StudentID == "" || payload.ChatbotID == "" {
		return nil, errors.New("memory payload missing student_id or chatbot_id")
	}
	report(5)

	chatbotName := p.chatbotName(payload.ChatbotID)
	report(15)

	transcript := buildTranscript(payload.Messages, chatbotName)
	summary, degraded := p.summarize(ctx, transcript)
	report(50)

	userMessages := countUserMessages(payload.Messages)

	if err := p.persistSummary(&payload, summary, userMessages, degraded); err != nil {
		return nil, err
	}
	report(75)

	profile, err := p.mergeProfile(ctx, &payload, summary, userMessages)
	if err != nil {
		return nil, err
	}
	report(100)

	return map[string]interface{}{
		"profile_id":     profile.ID,
		"total_sessions": profile.TotalSessions,
		"total_messages": profile.TotalMessages,
		"key_topics":     summary.KeyTopics,
		"degraded":       degraded,
	}, nil
}

// chatbotName is best-effort; a miss falls back to a generic label and
// never fails the job.
func (p *MemoryProcessor) chatbotName(chatbotID string) string {
	db, err := p.handles.Acquire()
	if err != nil {
		log.Printf("Memory: failed to acquire handle for chatbot lookup: %v", err)
		return fallbackChatbotName
	}
	chatbot, err := repository.NewChatbotRepository(db).GetByID(chatbotID)
	if err != nil || chatbot.Name == "" {
		return fallbackChatbotName
	}
	return chatbot.Name
}

func (p *MemoryProcessor) summarize(ctx context.Context, transcript string) (*ConversationSummary, bool) {
	raw, err := p.llm.Complete(ctx, memorySystemPrompt, transcript)
	if err != nil {
		log.Printf("Memory: reasoning call failed, using degraded summary: %v", err)
		return degradedSummary(), true
	}
	summary, err := parseSummary(raw)
	if err != nil {
		log.Printf("Memory: malformed summary response, using degraded summary: %v", err)
		return degradedSummary(), true
	}
	return summary, false
}

// parseSummary validates the provider output strictly; anything that
// does not match the expected shape takes the degraded path instead of
// surfacing a parse error.
func parseSummary(raw string) (*ConversationSummary, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, errors.New("no JSON object in response")
	}

	var summary ConversationSummary
	if err := json.Unmarshal([]byte(raw[start:end+1]), &summary); err != nil {
		return nil, err
	}
	if strings.TrimSpace(summary.Summary) == "" {
		return nil, errors.New("summary text is empty")
	}

	summary.KeyTopics = normalizeTopics(summary.KeyTopics)
	summary.LearningInsights.Understood = normalizeTopics(summary.LearningInsights.Understood)
	summary.LearningInsights.Struggling = normalizeTopics(summary.LearningInsights.Struggling)
	return &summary, nil
}

func normalizeTopics(topics []string) []string {
	out := make([]string, 0, len(topics))
	seen := make(map[string]bool, len(topics))
	for _, t := range topics {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func degradedSummary() *ConversationSummary {
	return &ConversationSummary{
		Summary:   "Session recorded. An automatic summary was not available for this conversation.",
		KeyTopics: []string{},
		LearningInsights: LearningInsights{
			Understood: []string{},
			Struggling: []string{},
		},
	}
}

func buildTranscript(messages []queue.TranscriptMessage, chatbotName string) string {
	var b strings.Builder
	for _, msg := range messages {
		switch msg.Role {
		case "user":
			b.WriteString("Student: ")
		case "assistant":
			b.WriteString(chatbotName + ": ")
		default:
			continue
		}
		b.WriteString(msg.Content)
		b.WriteString("\n")
	}
	return b.String()
}

func countUserMessages(messages []queue.TranscriptMessage) int {
	n := 0
	for _, msg := range messages {
		if msg.Role == "user" {
			n++
		}
	}
	return n
}

func (p *MemoryProcessor) persistSummary(payload *queue.MemoryPayload, summary *ConversationSummary, userMessages int, degraded bool) error {
	db, err := p.handles.Acquire()
	if err != nil {
		return fmt.Errorf("failed to acquire handle: %w", err)
	}
	row := &model.SessionSummary{
		StudentID:        payload.StudentID,
		ChatbotID:        payload.ChatbotID,
		RoomID:           payload.RoomID,
		Summary:          summary.Summary,
		KeyTopics:        summary.KeyTopics,
		Understood:       summary.LearningInsights.Understood,
		Struggling:       summary.LearningInsights.Struggling,
		ProgressNote:     summary.LearningInsights.Progress,
		NextSteps:        summary.NextSteps,
		Degraded:         degraded,
		MessageCount:     len(payload.Messages),
		UserMessageCount: userMessages,
		SessionStartedAt: payload.SessionStartTime,
		DurationSeconds:  payload.SessionDurationSeconds,
	}
	if err := repository.NewSummaryRepository(db).Create(row); err != nil {
		return fmt.Errorf("failed to persist session summary: %w", err)
	}
	return nil
}

// mergeProfile is a read-then-write retried up to 3 attempts with
// increasing delay. Exhaustion fails the job; no partial merge is
// assumed committed.
func (p *MemoryProcessor) mergeProfile(ctx context.Context, payload *queue.MemoryPayload, summary *ConversationSummary, userMessages int) (*model.LearningProfile, error) {
	var merged *model.LearningProfile

	backoff := retry.WithMaxRetries(2, retry.NewFibonacci(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		db, err := p.handles.Acquire()
		if err != nil {
			return retry.RetryableError(err)
		}
		repo := repository.NewProfileRepository(db)

		fresh := false
		profile, err := repo.GetByStudentAndChatbot(payload.StudentID, payload.ChatbotID)
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return retry.RetryableError(err)
			}
			fresh = true
			profile = &model.LearningProfile{
				StudentID:        payload.StudentID,
				ChatbotID:        payload.ChatbotID,
				TopicsInProgress: []string{},
				TopicProgress:    map[string]model.TopicScore{},
			}
		}

		ApplySummary(profile, summary, userMessages, p.cfg, time.Now())

		if fresh {
			err = repo.Create(profile)
		} else {
			err = repo.Update(profile)
		}
		if err != nil {
			return retry.RetryableError(err)
		}
		merged = profile
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to merge learning profile: %w", err)
	}
	return merged, nil
}

// ApplySummary folds one session's signals into a profile. Topics in
// understood move up, topics in struggling move down, levels stay
// clamped to [0,100], and topics with no new signal are not touched.
// Counters are strictly additive: sessions +1, messages +userMessages.
func ApplySummary(profile *model.LearningProfile, summary *ConversationSummary, userMessages int, cfg config.MemoryConfig, now time.Time) {
	if profile.TopicProgress == nil {
		profile.TopicProgress = map[string]model.TopicScore{}
	}

	known := make(map[string]bool, len(profile.TopicsInProgress))
	for _, t := range profile.TopicsInProgress {
		known[t] = true
	}
	for _, topic := range summary.KeyTopics {
		if !known[topic] {
			profile.TopicsInProgress = append(profile.TopicsInProgress, topic)
			known[topic] = true
		}
		if _, ok := profile.TopicProgress[topic]; !ok {
			profile.TopicProgress[topic] = model.TopicScore{
				Level:          clampLevel(cfg.InitialLevel),
				LastReviewedAt: now,
			}
		}
	}

	for _, topic := range summary.LearningInsights.Understood {
		score := topicScoreOrInit(profile, topic, cfg)
		score.Level = clampLevel(score.Level + cfg.UnderstoodDelta)
		score.LastReviewedAt = now
		profile.TopicProgress[topic] = score
	}

	for _, topic := range summary.LearningInsights.Struggling {
		score := topicScoreOrInit(profile, topic, cfg)
		score.Level = clampLevel(score.Level - cfg.StrugglingDelta)
		score.LastReviewedAt = now
		profile.TopicProgress[topic] = score
	}

	profile.TotalSessions++
	profile.TotalMessages += userMessages
	profile.LastSessionAt = &now
}

func topicScoreOrInit(profile *model.LearningProfile, topic string, cfg config.MemoryConfig) model.TopicScore {
	if score, ok := profile.TopicProgress[topic]; ok {
		return score
	}
	return model.TopicScore{Level: clampLevel(cfg.InitialLevel)}
}

func clampLevel(level int) int {
	if level < 0 {
		return 0
	}
	if level > 100 {
		return 100
	}
	return level
}
