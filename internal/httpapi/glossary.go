package httpapi

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MimeLyc/contextual-novel-translator/internal/corpus"
	"github.com/MimeLyc/contextual-novel-translator/internal/jobs"
)

// requirePlanner writes 501 when no glossary planner is wired.
func (s *Server) requirePlanner(c *gin.Context) bool {
	if s.planner == nil {
		writeError(c, http.StatusNotImplemented, "glossary planner is not configured")
		return false
	}
	return true
}

func (s *Server) handleListGlossary(c *gin.Context) {
	found, ok := s.loadCorpus(c)
	if !ok || !s.requirePlanner(c) {
		return
	}
	terms, err := s.planner.Terms(c.Request.Context(), found.ID)
	if err != nil {
		writeErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, terms)
}

type setTermRequest struct {
	SourceTerm string `json:"source_term"`
	TargetTerm string `json:"target_term"`
	Note       string `json:"note"`
}

func (s *Server) handleSetTerm(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok || !s.requirePlanner(c) {
		return
	}
	var req setTermRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json body")
		return
	}
	term := corpus.GlossaryTerm{
		CorpusID:   id,
		SourceTerm: req.SourceTerm,
		TargetTerm: req.TargetTerm,
		Note:       req.Note,
	}
	if err := s.planner.SetTerm(c.Request.Context(), term); err != nil {
		writeErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, term)
}

func (s *Server) handleDeleteTerm(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok || !s.requirePlanner(c) {
		return
	}
	if err := s.planner.DeleteTerm(c.Request.Context(), id, c.Param("term")); err != nil {
		writeErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleGenerateGlossary queues a generation run; glossary passes are long.
func (s *Server) handleGenerateGlossary(c *gin.Context) {
	found, ok := s.loadCorpus(c)
	if !ok {
		return
	}
	job, created := s.queue.Enqueue(jobs.EnqueueRequest{
		Kind:   jobs.KindGenerateGlossary,
		Source: "api",
		Payload: jobs.JobPayload{
			CorpusID:  found.ID,
			FromStart: boolQuery(c, "from_start"),
		},
	})
	writeJSON(c, http.StatusAccepted, gin.H{
		"created": created,
		"job":     job,
	})
}

func (s *Server) handleResetCheckpoint(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok || !s.requirePlanner(c) {
		return
	}
	if err := s.planner.ResetCheckpoint(c.Request.Context(), id); err != nil {
		writeErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"corpus_id": id, "checkpoint": 0})
}

func (s *Server) handleExportGlossary(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok || !s.requirePlanner(c) {
		return
	}
	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="glossary-%d.txt"`, id))
	if _, err := s.planner.Export(c.Request.Context(), id, c.Writer); err != nil {
		writeErr(c, err)
	}
}

func (s *Server) handleImportGlossary(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok || !s.requirePlanner(c) {
		return
	}
	res, err := s.planner.Import(c.Request.Context(), id, c.Request.Body, boolQuery(c, "overwrite"))
	if err != nil {
		writeErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, res)
}
