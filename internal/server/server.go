// Package server exposes document translation as asynchronous HTTP jobs
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"layout-translator/internal/document"
	"layout-translator/internal/language"
	"layout-translator/internal/logger"
	"layout-translator/internal/reconstruct"
	"layout-translator/internal/results"
)

// Runner translates documents and plain text
type Runner interface {
	Translate(ctx context.Context, input string, job reconstruct.Job) (*reconstruct.Report, error)
	// TranslateText returns the translation and the source language used
	TranslateText(ctx context.Context, text, sourceLang, targetLang string) (string, string, error)
}

// Config holds server settings
type Config struct {
	Addr string
	// MaxUploadBytes limits the request body of an upload
	MaxUploadBytes int64
	// ShutdownTimeout bounds how long Run waits for requests and jobs on exit
	ShutdownTimeout time.Duration
}

const (
	defaultMaxUpload       = 100 << 20
	defaultShutdownTimeout = 30 * time.Second
)

// Server accepts uploads, runs them in background goroutines and serves
// job state and results
type Server struct {
	runner Runner
	store  *results.Manager
	config Config
	engine *gin.Engine

	ctx    context.Context
	cancel context.CancelFunc
	jobs   sync.WaitGroup
}

// New creates a Server. Jobs left unfinished by a previous process are
// marked as failed.
func New(runner Runner, store *results.Manager, cfg Config) *Server {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUpload
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		runner: runner,
		store:  store,
		config: cfg,
		ctx:    ctx,
		cancel: cancel,
	}
	s.recoverInterrupted()

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	r.MaxMultipartMemory = 32 << 20

	r.GET("/health", s.health)
	api := r.Group("/api")
	{
		api.POST("/translate/pdf", s.submit)
		api.POST("/translate/text", s.translateText)
		api.GET("/jobs", s.listJobs)
		api.GET("/jobs/:id", s.getJob)
		api.DELETE("/jobs/:id", s.deleteJob)
		api.GET("/files/:id", s.download)
	}
	s.engine = r
	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then drains requests and jobs
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", logger.String("addr", s.config.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.Close()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Close()
	return err
}

// Close cancels running jobs and waits for them to record their outcome
func (s *Server) Close() {
	s.cancel()
	s.jobs.Wait()
}

// Wait blocks until every submitted job has finished
func (s *Server) Wait() {
	s.jobs.Wait()
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) submit(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.config.MaxUploadBytes)

	file, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "upload exceeds the size limit"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file field"})
		return
	}
	if !strings.EqualFold(filepath.Ext(file.Filename), ".pdf") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "only .pdf files are supported"})
		return
	}

	target := language.Normalize(c.PostForm("target_lang"))
	if target == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unsupported target language %q", c.PostForm("target_lang"))})
		return
	}
	source := strings.TrimSpace(c.PostForm("source_lang"))
	if source == "" || strings.EqualFold(source, reconstruct.AutoDetect) {
		source = reconstruct.AutoDetect
	} else if code := language.Normalize(source); code != "" {
		source = code
	} else {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unsupported source language %q", source)})
		return
	}
	force := c.PostForm("force") == "true"
	var timeout time.Duration
	if raw := strings.TrimSpace(c.PostForm("timeout")); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid timeout %q", raw)})
			return
		}
		timeout = d
	}

	job := results.NewJob(filepath.Base(file.Filename), source, target)
	input := s.store.SourcePath(job.ID)
	if err := os.MkdirAll(filepath.Dir(input), 0755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store upload"})
		return
	}
	if err := c.SaveUploadedFile(file, input); err != nil {
		s.store.Delete(job.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store upload"})
		return
	}

	if hash, err := results.FileMD5(input); err == nil {
		job.SourceMD5 = hash
		if !force {
			if existing, _ := s.store.FindByMD5(hash, target); existing != nil {
				s.store.Delete(job.ID)
				logger.Info("reusing translation", logger.String("job", existing.ID))
				c.JSON(http.StatusOK, existing)
				return
			}
		}
	}

	if err := s.store.Save(job); err != nil {
		s.store.Delete(job.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	s.jobs.Add(1)
	go s.process(job.ID, input, source, target, timeout)

	logger.Info("job accepted",
		logger.String("job", job.ID),
		logger.String("file", job.SourceName),
		logger.String("target", target))
	c.JSON(http.StatusAccepted, job)
}

type textRequest struct {
	Text       string `json:"text" binding:"required"`
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang" binding:"required"`
}

// translateText translates a plain text synchronously
func (s *Server) translateText(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.config.MaxUploadBytes)

	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"success": false, "error": "request exceeds the size limit"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	translated, source, err := s.runner.TranslateText(c.Request.Context(), req.Text, req.SourceLang, req.TargetLang)
	if err != nil {
		status := http.StatusInternalServerError
		if document.IsCode(err, document.ErrInvalidInput) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"translated_text": translated,
		"source_lang":     source,
		"target_lang":     language.Normalize(req.TargetLang),
	})
}

// process runs one job and records its outcome
func (s *Server) process(id, input, source, target string, timeout time.Duration) {
	defer s.jobs.Done()

	s.update(id, func(j *results.Job) {
		j.Status = results.StatusRunning
	})

	var last reconstruct.Status
	var mu sync.Mutex
	report, err := s.runner.Translate(s.ctx, input, reconstruct.Job{
		SourceLang: source,
		TargetLang: target,
		OutputPath: s.store.TranslatedPath(id),
		Timeout:    timeout,
		OnStatus: func(st reconstruct.Status) {
			mu.Lock()
			defer mu.Unlock()
			if st.Phase == last.Phase && st.Progress-last.Progress < 5 && st.Phase != reconstruct.PhaseError {
				return
			}
			last = st
			s.update(id, func(j *results.Job) {
				j.Phase = string(st.Phase)
				if st.Progress > j.Progress {
					j.Progress = st.Progress
				}
			})
		},
	})

	if err != nil {
		logger.Error("job failed", err, logger.String("job", id))
		s.update(id, func(j *results.Job) {
			j.Status = results.StatusError
			j.Phase = string(reconstruct.PhaseError)
			j.Error = err.Error()
		})
		return
	}

	s.update(id, func(j *results.Job) {
		j.Status = results.StatusComplete
		j.Phase = string(reconstruct.PhaseComplete)
		j.Progress = 100
		j.SourceLang = report.SourceLang
		j.Pages = report.Pages
		j.Spans = report.Spans
		j.Placed = report.Placed
		j.FitFailures = report.FitFailures
		j.Degraded = report.Dispatch.Degraded
		j.Notes = report.Notes
		j.OutputPath = report.OutputPath
	})
	logger.Info("job complete",
		logger.String("job", id),
		logger.Int("spans", report.Spans),
		logger.Duration("duration", report.Duration))
}

func (s *Server) update(id string, fn func(*results.Job)) {
	if _, err := s.store.Update(id, fn); err != nil {
		logger.Warn("failed to record job state", logger.String("job", id), logger.Err(err))
	}
}

// recoverInterrupted fails jobs that were pending or running when the
// previous process exited
func (s *Server) recoverInterrupted() {
	jobs, err := s.store.Incomplete()
	if err != nil {
		logger.Warn("failed to scan unfinished jobs", logger.Err(err))
		return
	}
	for _, job := range jobs {
		s.update(job.ID, func(j *results.Job) {
			j.Status = results.StatusError
			j.Error = "interrupted by server restart"
		})
	}
	if len(jobs) > 0 {
		logger.Info("marked interrupted jobs as failed", logger.Int("count", len(jobs)))
	}
}

func (s *Server) listJobs(c *gin.Context) {
	jobs, err := s.store.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if jobs == nil {
		jobs = []*results.Job{}
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

func (s *Server) getJob(c *gin.Context) {
	job, ok := s.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, job)
}

func (s *Server) deleteJob(c *gin.Context) {
	job, ok := s.lookup(c)
	if !ok {
		return
	}
	if !job.Done() {
		c.JSON(http.StatusConflict, gin.H{"error": "job is still running"})
		return
	}
	if err := s.store.Delete(job.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) download(c *gin.Context) {
	job, ok := s.lookup(c)
	if !ok {
		return
	}
	if job.Status != results.StatusComplete {
		c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("job is %s", job.Status), "status": job.Status})
		return
	}
	path := s.store.TranslatedPath(job.ID)
	if _, err := os.Stat(path); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "translated file is missing"})
		return
	}
	c.FileAttachment(path, downloadName(job))
}

func (s *Server) lookup(c *gin.Context) (*results.Job, bool) {
	id := c.Param("id")
	job, err := s.store.Load(id)
	if err != nil {
		if os.IsNotExist(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return nil, false
	}
	return job, true
}

// downloadName is "<stem>_<target>.pdf"
func downloadName(job *results.Job) string {
	stem := strings.TrimSuffix(job.SourceName, filepath.Ext(job.SourceName))
	if stem == "" {
		stem = "document"
	}
	return fmt.Sprintf("%s_%s.pdf", stem, job.TargetLang)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			logger.String("method", c.Request.Method),
			logger.String("path", c.Request.URL.Path),
			logger.Int("status", c.Writer.Status()),
			logger.Duration("latency", time.Since(start)))
	}
}
