package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/MimeLyc/contextual-novel-translator/internal/jobs"
	"github.com/MimeLyc/contextual-novel-translator/internal/segment"
	"github.com/MimeLyc/contextual-novel-translator/pkg/log"
)

const streamWriteWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type createJobRequest struct {
	Kind      jobs.Kind `json:"kind"`
	CorpusID  int64     `json:"corpus_id"`
	ChapterID int64     `json:"chapter_id"`
	Override  bool      `json:"override"`
	FromStart bool      `json:"from_start"`
	DedupeKey string    `json:"dedupe_key"`
}

func (s *Server) handleListJobs(c *gin.Context) {
	writeJSON(c, http.StatusOK, s.queue.List())
}

func (s *Server) handleCreateJob(c *gin.Context) {
	var req createJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json body")
		return
	}
	if !req.Kind.Valid() {
		writeError(c, http.StatusBadRequest, "unknown job kind")
		return
	}
	if req.Kind == jobs.KindGenerateGlossary && req.CorpusID <= 0 {
		writeError(c, http.StatusBadRequest, "corpus_id is required")
		return
	}
	if req.Kind != jobs.KindGenerateGlossary && req.ChapterID <= 0 {
		writeError(c, http.StatusBadRequest, "chapter_id is required")
		return
	}

	job, created := s.queue.Enqueue(jobs.EnqueueRequest{
		Kind:      req.Kind,
		Source:    "api",
		DedupeKey: req.DedupeKey,
		Payload: jobs.JobPayload{
			CorpusID:  req.CorpusID,
			ChapterID: req.ChapterID,
			Override:  req.Override,
			FromStart: req.FromStart,
		},
	})
	code := http.StatusCreated
	if !created {
		code = http.StatusOK
	}
	writeJSON(c, code, gin.H{
		"created": created,
		"job":     job,
	})
}

type jobDetails struct {
	*jobs.Job
	Progress *segment.Progress `json:"progress,omitempty"`
}

// handleGetJob adds live unit progress for chapter jobs.
func (s *Server) handleGetJob(c *gin.Context) {
	job, ok := s.queue.Get(c.Param("id"))
	if !ok {
		writeError(c, http.StatusNotFound, "job not found")
		return
	}
	details := jobDetails{Job: job}
	if job.Payload.ChapterID > 0 {
		if p, err := s.orch.Progress(c.Request.Context(), job.Payload.ChapterID); err == nil {
			details.Progress = &p
		}
	}
	writeJSON(c, http.StatusOK, details)
}

// handleJobStream pushes the job list over a websocket until the client
// goes away.
func (s *Server) handleJobStream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn("Job stream upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.streamInterval)
	defer ticker.Stop()

	for {
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		if err := conn.WriteJSON(gin.H{"type": "jobs", "jobs": s.queue.List()}); err != nil {
			log.Debug("Job stream closed: %v", err)
			return
		}
		select {
		case <-c.Request.Context().Done():
			return
		case <-closed:
			return
		case <-ticker.C:
		}
	}
}
