package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/open-syllabus/open-syllabus-sub001/internal/pkg/queue"
	"github.com/open-syllabus/open-syllabus-sub001/internal/pkg/response"
	"github.com/open-syllabus/open-syllabus-sub001/internal/service"
)

type JobsHandler struct {
	jobsService *service.JobsService
}

func NewJobsHandler(jobsService *service.JobsService) *JobsHandler {
	return &JobsHandler{jobsService: jobsService}
}

type transcriptMessageRequest struct {
	Role    string `json:"role" binding:"required"`
	Content string `json:"content"`
}

type submitMemoryRequest struct {
	StudentID              string                     `json:"student_id" binding:"required"`
	ChatbotID              string                     `json:"chatbot_id" binding:"required"`
	RoomID                 string                     `json:"room_id"`
	Messages               []transcriptMessageRequest `json:"messages"`
	SessionStartTime       time.Time                  `json:"session_start_time"`
	SessionDurationSeconds int                        `json:"session_duration_seconds"`
}

// SubmitMemory POST /api/v1/jobs/memory
func (h *JobsHandler) SubmitMemory(c *gin.Context) {
	var req submitMemoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	messages := make([]queue.TranscriptMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, queue.TranscriptMessage{Role: m.Role, Content: m.Content})
	}

	jobID, err := h.jobsService.SubmitMemoryJob(c.Request.Context(), &queue.MemoryPayload{
		StudentID:              req.StudentID,
		ChatbotID:              req.ChatbotID,
		RoomID:                 req.RoomID,
		Messages:               messages,
		SessionStartTime:       req.SessionStartTime,
		SessionDurationSeconds: req.SessionDurationSeconds,
	})
	if err != nil {
		response.ParamError(c, err.Error())
		return
	}

	response.Success(c, gin.H{"job_id": jobID})
}

type submitPodcastRequest struct {
	StudyGuideID string  `json:"study_guide_id" binding:"required"`
	UserID       string  `json:"user_id" binding:"required"`
	Title        string  `json:"title"`
	SourceText   string  `json:"source_text" binding:"required"`
	Voice        string  `json:"voice" binding:"required"`
	Speed        float64 `json:"speed"`
}

// SubmitPodcast POST /api/v1/jobs/podcast
func (h *JobsHandler) SubmitPodcast(c *gin.Context) {
	var req submitPodcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	jobID, err := h.jobsService.SubmitPodcastJob(c.Request.Context(), &queue.PodcastPayload{
		StudyGuideID: req.StudyGuideID,
		UserID:       req.UserID,
		Title:        req.Title,
		SourceText:   req.SourceText,
		Voice:        req.Voice,
		Speed:        req.Speed,
	})
	if err != nil {
		response.ParamError(c, err.Error())
		return
	}

	response.Success(c, gin.H{"job_id": jobID})
}

// GetStatus GET /api/v1/jobs/:id
func (h *JobsHandler) GetStatus(c *gin.Context) {
	status, err := h.jobsService.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, status)
}

// GetMetrics GET /api/v1/queue/metrics
func (h *JobsHandler) GetMetrics(c *gin.Context) {
	metrics, err := h.jobsService.Metrics(c.Request.Context())
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, metrics)
}

// Healthz GET /healthz
func (h *JobsHandler) Healthz(c *gin.Context) {
	response.Success(c, gin.H{"healthy": h.jobsService.Healthy(c.Request.Context())})
}
