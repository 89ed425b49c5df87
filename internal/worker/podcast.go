package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/open-syllabus/open-syllabus-sub001/config"
	"github.com/open-syllabus/open-syllabus-sub001/internal/model"
	"github.com/open-syllabus/open-syllabus-sub001/internal/pkg/pool"
	"github.com/open-syllabus/open-syllabus-sub001/internal/pkg/queue"
	"github.com/open-syllabus/open-syllabus-sub001/internal/repository"
)

// SpeechClient is the speech-synthesis provider dependency.
type SpeechClient interface {
	Synthesize(ctx context.Context, text, voice string, speed float64) ([]byte, error)
}

// ObjectStore is the object-storage dependency.
type ObjectStore interface {
	UploadAudio(objectKey string, data []byte) (string, error)
	Delete(objectKey string) error
}

// PodcastProcessor synthesizes long-form study text into one audio file.
// (study_guide_id, voice, speed) is a content-addressed cache key: the
// pipeline is idempotent per key, which makes redelivery safe.
type PodcastProcessor struct {
	handles *pool.Pool[*gorm.DB]
	tts     SpeechClient
	store   ObjectStore
	cfg     config.PodcastConfig
}

func NewPodcastProcessor(handles *pool.Pool[*gorm.DB], tts SpeechClient, store ObjectStore, cfg config.PodcastConfig) *PodcastProcessor {
	return &PodcastProcessor{handles: handles, tts: tts, store: store, cfg: cfg}
}

func (p *PodcastProcessor) Handle(ctx context.Context, job *queue.Job, report func(int)) (interface{}, error) {
	var payload queue.PodcastPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return nil, fmt.Errorf("invalid podcast payload: %w", err)
	}
	if payload.StudyGuideID == "" || payload.UserID == "" || payload.SourceText == "" {
		return nil, errors.New("podcast payload missing study_guide_id, user_id or source_text")
	}
	if payload.Voice == "" {
		return nil, errors.New("podcast payload missing voice")
	}
	speed := payload.Speed
	if speed == 0 {
		speed = 1.0
	}
	report(5)

	// Idempotency check: a cached rendition short-circuits regeneration
	db, err := p.handles.Acquire()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire handle: %w", err)
	}
	cached, err := repository.NewPodcastRepository(db).GetByKey(payload.StudyGuideID, payload.Voice, speed)
	if err == nil && cached.AudioURL != "" {
		log.Printf("Podcast: job %s hit cache for guide %s (%s @ %.2f)",
			job.ID, payload.StudyGuideID, payload.Voice, speed)
		report(100)
		return podcastResult(cached, true), nil
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed podcast cache lookup: %w", err)
	}

	uk := p.userPrefersUK(payload.UserID)
	report(10)

	localized := LocalizeSpelling(payload.SourceText, uk)
	script := BuildSpokenScript(payload.Title, localized, uk)
	chunks := ChunkScript(script, p.cfg.SoftChunkLimit, p.cfg.HardChunkLimit)
	if len(chunks) == 0 {
		return nil, errors.New("study guide produced an empty script")
	}
	report(20)

	// Synthesis occupies the 20-80 band of overall progress
	var audio []byte
	for i, chunk := range chunks {
		buf, err := p.tts.Synthesize(ctx, chunk, payload.Voice, speed)
		if err != nil {
			return nil, fmt.Errorf("speech synthesis failed on chunk %d/%d: %w", i+1, len(chunks), err)
		}
		audio = append(audio, buf...)
		report(20 + (i+1)*60/len(chunks))
	}

	objectKey := fmt.Sprintf("podcasts/%s/%s_%s_%.2f_%d.mp3",
		payload.UserID, payload.StudyGuideID, payload.Voice, speed, time.Now().UnixMilli())
	audioURL, err := p.store.UploadAudio(objectKey, audio)
	if err != nil {
		return nil, fmt.Errorf("failed to upload audio: %w", err)
	}
	report(90)

	scriptLength := len([]rune(script))
	record := &model.StudyPodcast{
		StudyGuideID:    payload.StudyGuideID,
		Voice:           payload.Voice,
		Speed:           speed,
		UserID:          payload.UserID,
		Title:           payload.Title,
		AudioURL:        audioURL,
		ObjectKey:       objectKey,
		DurationSeconds: EstimateDurationSeconds(scriptLength, p.cfg.CharsPerSecond),
		FileSizeBytes:   int64(len(audio)),
		ScriptPreview:   truncateRunes(script, 500),
		ChunkCount:      len(chunks),
		SourceLength:    len([]rune(payload.SourceText)),
		ScriptLength:    scriptLength,
	}

	db, err = p.handles.Acquire()
	if err == nil {
		err = repository.NewPodcastRepository(db).Create(record)
	}
	if err != nil {
		// Compensating action: never leave a blob with no record. Its
		// own failure is second-order and only logged.
		if derr := p.store.Delete(objectKey); derr != nil {
			log.Printf("Podcast: failed to delete orphaned object %s: %v", objectKey, derr)
		}
		return nil, fmt.Errorf("failed to insert podcast record: %w", err)
	}
	report(100)

	return podcastResult(record, false), nil
}

// userPrefersUK is best-effort; unknown users default to US spelling.
func (p *PodcastProcessor) userPrefersUK(userID string) bool {
	db, err := p.handles.Acquire()
	if err != nil {
		log.Printf("Podcast: failed to acquire handle for user lookup: %v", err)
		return false
	}
	user, err := repository.NewUserRepository(db).GetByID(userID)
	if err != nil {
		return false
	}
	return user.PrefersUKSpelling()
}

func podcastResult(record *model.StudyPodcast, cached bool) map[string]interface{} {
	return map[string]interface{}{
		"audio_url":        record.AudioURL,
		"duration_seconds": record.DurationSeconds,
		"file_size_bytes":  record.FileSizeBytes,
		"chunk_count":      record.ChunkCount,
		"cached":           cached,
	}
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
