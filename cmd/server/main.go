package main

import (
	"fmt"
	"log"

	"github.com/open-syllabus/open-syllabus-sub001/config"
	"github.com/open-syllabus/open-syllabus-sub001/internal/api"
	"github.com/open-syllabus/open-syllabus-sub001/internal/api/handler"
	"github.com/open-syllabus/open-syllabus-sub001/internal/database"
	"github.com/open-syllabus/open-syllabus-sub001/internal/pkg/queue"
	"github.com/open-syllabus/open-syllabus-sub001/internal/service"
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

	// The queue implementation is picked once here; every call site is
	// polymorphic over the facade and never branches on availability.
	jobQueue := newQueue(cfg)
	defer jobQueue.Shutdown()

	jobsService := service.NewJobsService(jobQueue)
	jobsHandler := handler.NewJobsHandler(jobsService)

	router := api.NewRouter(jobsHandler, cfg)
	engine := router.Setup()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Server starting on %s", addr)
	if err := engine.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func newQueue(cfg *config.Config) queue.Queue {
	if cfg.Queue.DisableBroker {
		log.Println("Queue: broker disabled by config, using no-op queue")
		return queue.NewNullQueue()
	}

	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		log.Printf("Warning: broker unreachable, using no-op queue: %v", err)
		return queue.NewNullQueue()
	}
	log.Println("Redis connected")

	return queue.NewLiveQueue(rdb,
		cfg.Queue.DefaultAttempts,
		cfg.Queue.DefaultBackoffMS,
		cfg.Queue.StallTimeoutSeconds,
	)
}
