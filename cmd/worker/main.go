package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gorm.io/gorm"

	"github.com/open-syllabus/open-syllabus-sub001/config"
	"github.com/open-syllabus/open-syllabus-sub001/internal/database"
	"github.com/open-syllabus/open-syllabus-sub001/internal/pkg/llm"
	"github.com/open-syllabus/open-syllabus-sub001/internal/pkg/oss"
	"github.com/open-syllabus/open-syllabus-sub001/internal/pkg/pool"
	"github.com/open-syllabus/open-syllabus-sub001/internal/pkg/pubsub"
	"github.com/open-syllabus/open-syllabus-sub001/internal/pkg/queue"
	"github.com/open-syllabus/open-syllabus-sub001/internal/pkg/tts"
	"github.com/open-syllabus/open-syllabus-sub001/internal/worker"
)

func main() {
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.NewMySQL(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	log.Println("Database connected")

	var jobQueue queue.Queue
	var publisher *pubsub.Publisher
	if cfg.Queue.DisableBroker {
		log.Println("Queue: broker disabled by config, worker will idle")
		jobQueue = queue.NewNullQueue()
	} else {
		rdb, err := database.NewRedis(&cfg.Redis)
		if err != nil {
			log.Printf("Warning: broker unreachable, worker will idle: %v", err)
			jobQueue = queue.NewNullQueue()
		} else {
			log.Println("Redis connected")
			jobQueue = queue.NewLiveQueue(rdb,
				cfg.Queue.DefaultAttempts,
				cfg.Queue.DefaultBackoffMS,
				cfg.Queue.StallTimeoutSeconds,
			)
			publisher = pubsub.NewPublisher(rdb)
		}
	}
	defer jobQueue.Shutdown()

	// Bounded pool of database session handles for the pipelines
	handles := pool.New(cfg.Pool.MaxHandles,
		time.Duration(cfg.Pool.TTLSeconds)*time.Second,
		func() (*gorm.DB, error) {
			return database.NewMySQL(&cfg.Database)
		})

	llmClient := llm.NewClient(&cfg.LLM)
	ttsClient := tts.NewClient(&cfg.TTS)

	processor := worker.NewProcessor(jobQueue, publisher,
		cfg.Queue.HealthIntervalSeconds, cfg.Queue.BacklogWarnThreshold)

	memory := worker.NewMemoryProcessor(handles, llmClient, cfg.Memory)
	processor.Register(queue.KindMemory, cfg.Queue.MemoryConcurrency, memory.Handle)

	// Podcast generation holds a speech connection and a large audio
	// buffer per job, so it runs at roughly a third of the memory
	// concurrency.
	podcastConcurrency := cfg.Queue.PodcastConcurrency
	if podcastConcurrency <= 0 {
		podcastConcurrency = cfg.Queue.MemoryConcurrency / 3
	}
	if cfg.OSS.Endpoint != "" && cfg.OSS.AccessKeyID != "" {
		ossClient, err := oss.NewClient(&cfg.OSS)
		if err != nil {
			log.Printf("Warning: failed to init OSS client, podcast jobs disabled: %v", err)
		} else {
			podcast := worker.NewPodcastProcessor(handles, ttsClient, ossClient, cfg.Podcast)
			processor.Register(queue.KindPodcast, podcastConcurrency, podcast.Handle)
			log.Println("OSS client initialized")
		}
	} else {
		log.Println("Warning: OSS not configured, podcast jobs disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("Received shutdown signal")
		cancel()
	}()

	log.Printf("Worker started, memory concurrency: %d, podcast concurrency: %d",
		cfg.Queue.MemoryConcurrency, podcastConcurrency)

	processor.Start(ctx)
	log.Println("Worker shutdown complete")
}
