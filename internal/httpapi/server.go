// Package httpapi exposes the translation pipeline over HTTP with gin.
package httpapi

import (
	"context"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/MimeLyc/contextual-novel-translator/internal/config"
	"github.com/MimeLyc/contextual-novel-translator/internal/corpus"
	"github.com/MimeLyc/contextual-novel-translator/internal/credential"
	"github.com/MimeLyc/contextual-novel-translator/internal/glossary"
	"github.com/MimeLyc/contextual-novel-translator/internal/jobs"
	"github.com/MimeLyc/contextual-novel-translator/internal/service"
	"github.com/MimeLyc/contextual-novel-translator/pkg/log"
)

// Store is the part of the corpus store the API reads and writes directly.
type Store interface {
	CreateCorpus(ctx context.Context, c corpus.Corpus) (corpus.Corpus, error)
	GetCorpus(ctx context.Context, id int64) (corpus.Corpus, bool, error)
	ListCorpora(ctx context.Context) ([]corpus.Corpus, error)
	CreateVolume(ctx context.Context, v corpus.Volume) (corpus.Volume, error)
	GetVolume(ctx context.Context, id int64) (corpus.Volume, bool, error)
	ListVolumes(ctx context.Context, corpusID int64) ([]corpus.Volume, error)
	CreateChapter(ctx context.Context, ch corpus.Chapter) (corpus.Chapter, error)
	GetChapter(ctx context.Context, id int64) (corpus.ChapterRef, bool, error)
	ListChapters(ctx context.Context, volumeID int64, translatedOnly bool) ([]corpus.Chapter, error)
	ListSegments(ctx context.Context, chapterID int64) ([]corpus.Segment, error)
	AddCredential(ctx context.Context, c credential.Credential) (credential.Credential, error)
	ListCredentials(ctx context.Context, provider string) ([]credential.Credential, error)
	SetCredentialActive(ctx context.Context, id int64, active bool) (bool, error)
	ExportCorpus(ctx context.Context, corpusID int64, w io.Writer) error
	ImportCorpus(ctx context.Context, r io.Reader) (corpus.Corpus, error)
}

// Pool is the credential pool as seen by the API.
type Pool interface {
	Provider() string
	Credentials() []credential.Credential
	Current(ctx context.Context) (int, error)
	ForceRotate(ctx context.Context) (credential.Credential, error)
	Reload(ctx context.Context) error
}

type runtimeSettingsStore interface {
	GetRuntimeSettings() config.RuntimeSettings
	UpdateRuntimeSettings(next config.RuntimeSettings) (config.RuntimeSettings, error)
}

type runtimeSettingsApplier func(next config.RuntimeSettings) error

type Server struct {
	store    Store
	orch     *service.Orchestrator
	queue    *jobs.Queue
	planner  *glossary.Planner
	pool     Pool
	settings runtimeSettingsStore
	apply    runtimeSettingsApplier

	streamInterval time.Duration
	uiEnabled      bool
	uiStaticDir    string

	engine *gin.Engine
	server *http.Server
}

type Option func(*Server)

func WithUI(staticDir string, enabled bool) Option {
	return func(s *Server) {
		s.uiStaticDir = staticDir
		s.uiEnabled = enabled
	}
}

func WithPlanner(planner *glossary.Planner) Option {
	return func(s *Server) {
		s.planner = planner
	}
}

func WithPool(pool Pool) Option {
	return func(s *Server) {
		s.pool = pool
	}
}

func WithRuntimeSettingsStore(store runtimeSettingsStore) Option {
	return func(s *Server) {
		s.settings = store
	}
}

func WithRuntimeSettingsApplier(apply runtimeSettingsApplier) Option {
	return func(s *Server) {
		s.apply = apply
	}
}

// WithStreamInterval sets how often the job stream pushes a snapshot.
func WithStreamInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.streamInterval = d
		}
	}
}

func NewServer(store Store, orch *service.Orchestrator, queue *jobs.Queue, opts ...Option) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		store:          store,
		orch:           orch,
		queue:          queue,
		streamInterval: time.Second,
		engine:         gin.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	r := s.engine
	r.Use(gin.Recovery(), requestID(), accessLog())

	api := r.Group("/api")

	api.GET("/corpora", s.handleListCorpora)
	api.POST("/corpora", s.handleCreateCorpus)
	api.POST("/corpora/import", s.handleImportCorpus)
	api.GET("/corpora/:id", s.handleGetCorpus)
	api.GET("/corpora/:id/export", s.handleExportCorpus)
	api.GET("/corpora/:id/volumes", s.handleListVolumes)
	api.POST("/corpora/:id/volumes", s.handleCreateVolume)
	api.POST("/corpora/:id/review", s.handleReviewCorpus)
	api.GET("/corpora/:id/review/stats", s.handleReviewStats)

	api.GET("/corpora/:id/glossary", s.handleListGlossary)
	api.PUT("/corpora/:id/glossary", s.handleSetTerm)
	api.DELETE("/corpora/:id/glossary/:term", s.handleDeleteTerm)
	api.POST("/corpora/:id/glossary/generate", s.handleGenerateGlossary)
	api.POST("/corpora/:id/glossary/reset", s.handleResetCheckpoint)
	api.GET("/corpora/:id/glossary/export", s.handleExportGlossary)
	api.POST("/corpora/:id/glossary/import", s.handleImportGlossary)

	api.GET("/volumes/:id/chapters", s.handleListChapters)
	api.POST("/volumes/:id/chapters", s.handleCreateChapter)
	api.POST("/volumes/:id/review", s.handleReviewVolume)

	api.GET("/chapters/:id", s.handleGetChapter)
	api.GET("/chapters/:id/segments", s.handleListSegments)
	api.GET("/chapters/:id/progress", s.handleChapterProgress)
	api.GET("/chapters/:id/highlight", s.handleChapterHighlight)
	api.POST("/chapters/:id/prepare", s.handlePrepareChapter)
	api.POST("/chapters/:id/translate", s.handleTranslateChapter)
	api.POST("/chapters/:id/review", s.handleReviewChapter)
	api.POST("/chapters/:id/fix", s.handleFixChapter)

	api.POST("/segments/:id/translate", s.handleTranslateSegment)
	api.POST("/segments/:id/review", s.handleReviewSegment)
	api.GET("/segments/:id/highlight", s.handleSegmentHighlight)

	api.GET("/jobs", s.handleListJobs)
	api.POST("/jobs", s.handleCreateJob)
	api.GET("/jobs/stream", s.handleJobStream)
	api.GET("/jobs/:id", s.handleGetJob)

	api.GET("/credentials", s.handleListCredentials)
	api.POST("/credentials", s.handleAddCredential)
	api.POST("/credentials/rotate", s.handleRotateCredential)
	api.POST("/credentials/:id/deactivate", s.handleDeactivateCredential)

	api.GET("/settings", s.handleGetSettings)
	api.PUT("/settings", s.handleUpdateSettings)

	r.NoRoute(s.handleStatic)
}

const requestIDHeader = "X-Request-ID"

// requestID tags every request with an id, reusing the caller's when given.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("%s %s %d %s [%s]", c.Request.Method, c.Request.URL.Path, c.Writer.Status(),
			time.Since(start).Round(time.Millisecond), c.GetString("request_id"))
	}
}

func (s *Server) handleStatic(c *gin.Context) {
	if !s.uiEnabled || s.uiStaticDir == "" || strings.HasPrefix(c.Request.URL.Path, "/api/") {
		writeError(c, http.StatusNotFound, "not found")
		return
	}

	rel := strings.TrimPrefix(path.Clean(c.Request.URL.Path), "/")
	indexPath := filepath.Join(s.uiStaticDir, "index.html")

	if rel == "" || !strings.Contains(filepath.Base(rel), ".") {
		c.File(indexPath)
		return
	}

	filePath := filepath.Join(s.uiStaticDir, rel)
	if _, err := os.Stat(filePath); err != nil {
		// SPA fallback: non-existing static file path returns index
		c.File(indexPath)
		return
	}
	c.File(filePath)
}
