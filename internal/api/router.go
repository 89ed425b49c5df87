package api

import (
	"github.com/gin-gonic/gin"

	"github.com/open-syllabus/open-syllabus-sub001/config"
	"github.com/open-syllabus/open-syllabus-sub001/internal/api/handler"
)

type Router struct {
	jobsHandler *handler.JobsHandler
	cfg         *config.Config
}

func NewRouter(jobsHandler *handler.JobsHandler, cfg *config.Config) *Router {
	return &Router{jobsHandler: jobsHandler, cfg: cfg}
}

func (r *Router) Setup() *gin.Engine {
	if r.cfg.Server.Mode != "" {
		gin.SetMode(r.cfg.Server.Mode)
	}

	engine := gin.Default()

	engine.GET("/healthz", r.jobsHandler.Healthz)

	v1 := engine.Group("/api/v1")
	{
		jobs := v1.Group("/jobs")
		{
			jobs.POST("/memory", r.jobsHandler.SubmitMemory)
			jobs.POST("/podcast", r.jobsHandler.SubmitPodcast)
			jobs.GET("/:id", r.jobsHandler.GetStatus)
		}
		v1.GET("/queue/metrics", r.jobsHandler.GetMetrics)
	}

	return engine
}
