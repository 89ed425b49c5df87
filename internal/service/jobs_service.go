package service

import (
	"context"
	"errors"

	"github.com/open-syllabus/open-syllabus-sub001/internal/pkg/queue"
)

// JobsService is the producer-facing surface: thin wrappers over the
// queue facade. Broker unavailability never surfaces here; submissions
// always come back with an id.
type JobsService struct {
	q queue.Queue
}

func NewJobsService(q queue.Queue) *JobsService {
	return &JobsService{q: q}
}

func (s *JobsService) SubmitMemoryJob(ctx context.Context, payload *queue.MemoryPayload) (string, error) {
	if payload.StudentID == "" || payload.ChatbotID == "" {
		return "", errors.New("student_id and chatbot_id are required")
	}
	return s.q.Submit(ctx, queue.KindMemory, payload, queue.Options{
		Priority: queue.PriorityNormal,
	})
}

func (s *JobsService) SubmitPodcastJob(ctx context.Context, payload *queue.PodcastPayload) (string, error) {
	if payload.StudyGuideID == "" || payload.UserID == "" {
		return "", errors.New("study_guide_id and user_id are required")
	}
	if payload.SourceText == "" {
		return "", errors.New("source_text is required")
	}
	return s.q.Submit(ctx, queue.KindPodcast, payload, queue.Options{
		Priority: queue.PriorityNormal,
	})
}

func (s *JobsService) Status(ctx context.Context, jobID string) (*queue.Status, error) {
	return s.q.Status(ctx, jobID)
}

func (s *JobsService) Metrics(ctx context.Context) (*queue.Metrics, error) {
	return s.q.Metrics(ctx)
}

func (s *JobsService) Healthy(ctx context.Context) bool {
	return s.q.Healthy(ctx)
}
