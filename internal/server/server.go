package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/guiyumin/streamscribe/internal/core/config"
	"github.com/guiyumin/streamscribe/internal/core/extractor"
	"github.com/guiyumin/streamscribe/internal/core/i18n"
	"github.com/guiyumin/streamscribe/internal/core/logging"
	"github.com/guiyumin/streamscribe/internal/core/version"
)

// Response is the standard API response structure
type Response struct {
	Code    int         `json:"code"`
	Data    interface{} `json:"data"`
	Message string      `json:"message"`
}

// JobRequest is the request body for POST /api/jobs
type JobRequest struct {
	Inputs []string `json:"inputs" binding:"required,min=1,dive,required"`
}

// Server exposes the acquisition pipeline over HTTP
type Server struct {
	port     int
	apiKey   string
	jobQueue *JobQueue
	cfg      *config.Config
	t        *i18n.Translations
	log      *logging.Logger
	server   *http.Server
	engine   *gin.Engine
}

// NewServer creates a server whose jobs are processed by run
func NewServer(cfg *config.Config, run RunFunc, log *logging.Logger) *Server {
	if log == nil {
		log = logging.Discard()
	}
	port := cfg.Server.Port
	if port <= 0 {
		port = 8080
	}
	return &Server{
		port:     port,
		apiKey:   cfg.Server.APIKey,
		cfg:      cfg,
		t:        i18n.T(cfg.Language),
		log:      log,
		jobQueue: NewJobQueue(cfg.Server.MaxQueued, run, log.For("jobs")),
	}
}

// Handler builds the gin engine with every route
func (s *Server) Handler() http.Handler {
	if s.engine != nil {
		return s.engine
	}
	gin.SetMode(gin.ReleaseMode)
	s.engine = gin.New()

	s.engine.Use(gin.Recovery())
	s.engine.Use(s.loggingMiddleware())
	if s.apiKey != "" {
		s.engine.Use(s.authMiddleware())
	}

	api := s.engine.Group("/api")
	api.GET("/health", s.handleHealth)
	api.GET("/platforms", s.handlePlatforms)
	api.POST("/jobs", s.handleCreateJob)
	api.GET("/jobs", s.handleGetJobs)
	api.DELETE("/jobs", s.handleClearJobs)
	api.GET("/jobs/:id", s.handleGetJob)
	api.DELETE("/jobs/:id", s.handleDeleteJob)

	s.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, Response{Code: 404, Message: "not found"})
	})
	return s.engine
}

// Start runs the job worker and serves until Stop
func (s *Server) Start() error {
	if !config.Exists() {
		s.log.Warn(s.t.Server.NoConfigWarning)
		s.log.Warn(s.t.Server.RunInitHint)
	}
	if err := os.MkdirAll(s.cfg.Paths.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	s.jobQueue.Start()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.log.Info("starting streamscribe server", "port", s.port, "output", s.cfg.Paths.OutputDir, "version", version.Version)
	if s.apiKey != "" {
		s.log.Info("API key authentication enabled")
	}

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop cancels pending jobs and shuts down the listener
func (s *Server) Stop(ctx context.Context) error {
	s.jobQueue.Stop()
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Middleware

func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path

		// Health endpoint doesn't require auth
		if path == "/api/health" || !strings.HasPrefix(path, "/api/") {
			c.Next()
			return
		}

		if c.GetHeader("X-API-Key") != s.apiKey {
			c.JSON(http.StatusUnauthorized, Response{
				Code:    401,
				Message: "invalid or missing API key",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("request", "method", c.Request.Method, "path", c.Request.URL.Path,
			"status", c.Writer.Status(), "took", time.Since(start))
	}
}

// Handlers

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Code: 200,
		Data: gin.H{
			"status":  "ok",
			"version": version.Version,
		},
		Message: "everything is good",
	})
}

func (s *Server) handlePlatforms(c *gin.Context) {
	platforms := extractor.Platforms()
	list := make([]gin.H, len(platforms))
	for i, p := range platforms {
		list[i] = gin.H{
			"platform": p.Kind,
			"name":     p.Name,
			"tool":     p.Tool,
			"examples": p.Examples,
		}
	}
	c.JSON(http.StatusOK, Response{Code: 200, Data: gin.H{"platforms": list}, Message: "ok"})
}

func (s *Server) handleCreateJob(c *gin.Context) {
	var req JobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Code:    400,
			Message: "invalid request body: " + s.t.Errors.NoInputs,
		})
		return
	}

	job, err := s.jobQueue.AddJob(req.Inputs)
	if err != nil {
		msg := s.t.Server.QueueFull
		if errors.Is(err, ErrQueueStopped) {
			msg = err.Error()
		}
		c.JSON(http.StatusServiceUnavailable, Response{Code: 503, Message: msg})
		return
	}

	c.JSON(http.StatusAccepted, Response{
		Code:    202,
		Data:    jobView(job),
		Message: "job queued",
	})
}

func (s *Server) handleGetJob(c *gin.Context) {
	job := s.jobQueue.GetJob(c.Param("id"))
	if job == nil {
		c.JSON(http.StatusNotFound, Response{Code: 404, Message: s.t.Server.JobNotFound})
		return
	}
	c.JSON(http.StatusOK, Response{Code: 200, Data: jobView(job), Message: string(job.Status)})
}

func (s *Server) handleGetJobs(c *gin.Context) {
	jobs := s.jobQueue.GetAllJobs()
	list := make([]gin.H, len(jobs))
	for i, job := range jobs {
		list[i] = gin.H{
			"id":         job.ID,
			"inputs":     job.Inputs,
			"status":     job.Status,
			"succeeded":  job.Succeeded,
			"failed":     job.Failed,
			"created_at": job.CreatedAt,
			"updated_at": job.UpdatedAt,
		}
	}
	c.JSON(http.StatusOK, Response{
		Code:    200,
		Data:    gin.H{"jobs": list, "total": len(list)},
		Message: fmt.Sprintf("%d jobs", len(list)),
	})
}

func (s *Server) handleClearJobs(c *gin.Context) {
	count := s.jobQueue.ClearHistory()
	c.JSON(http.StatusOK, Response{
		Code:    200,
		Data:    gin.H{"cleared": count},
		Message: fmt.Sprintf("cleared %d jobs", count),
	})
}

// handleDeleteJob cancels an active job or removes a finished one
func (s *Server) handleDeleteJob(c *gin.Context) {
	id := c.Param("id")
	if s.jobQueue.CancelJob(id) {
		c.JSON(http.StatusOK, Response{Code: 200, Data: gin.H{"id": id}, Message: "job cancelled"})
		return
	}
	if s.jobQueue.RemoveJob(id) {
		c.JSON(http.StatusOK, Response{Code: 200, Data: gin.H{"id": id}, Message: "job removed"})
		return
	}
	c.JSON(http.StatusNotFound, Response{Code: 404, Data: gin.H{"id": id}, Message: s.t.Server.JobNotFound})
}

func jobView(job *Job) gin.H {
	items := make([]gin.H, len(job.Results))
	for i, r := range job.Results {
		item := gin.H{
			"input":    r.Input,
			"platform": r.Platform,
			"success":  r.Success,
			"title":    r.Title,
			"method":   r.Method,
		}
		if r.Success {
			item["transcript_path"] = r.TranscriptPath
		} else if r.Err != nil {
			item["error"] = r.Err.Error()
			item["error_kind"] = r.Err.Kind.String()
		}
		if r.Timing != nil {
			item["speed_ratio"] = r.Timing.SpeedRatio
		}
		items[i] = item
	}
	return gin.H{
		"id":         job.ID,
		"inputs":     job.Inputs,
		"status":     job.Status,
		"log":        job.Log,
		"results":    items,
		"succeeded":  job.Succeeded,
		"failed":     job.Failed,
		"error":      job.Error,
		"created_at": job.CreatedAt,
		"updated_at": job.UpdatedAt,
	}
}
