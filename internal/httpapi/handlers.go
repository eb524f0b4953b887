package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/MimeLyc/contextual-novel-translator/internal/corpus"
	"github.com/MimeLyc/contextual-novel-translator/internal/errs"
)

func (s *Server) handleListCorpora(c *gin.Context) {
	corpora, err := s.store.ListCorpora(c.Request.Context())
	if err != nil {
		writeErr(c, errs.WrapError(err, errs.ErrStore, "failed to list corpora"))
		return
	}
	writeJSON(c, http.StatusOK, corpora)
}

type createCorpusRequest struct {
	Title          string `json:"title"`
	Description    string `json:"description"`
	SourceLanguage string `json:"source_language"`
}

func (s *Server) handleCreateCorpus(c *gin.Context) {
	var req createCorpusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json body")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(c, http.StatusBadRequest, "title is required")
		return
	}
	created, err := s.store.CreateCorpus(c.Request.Context(), corpus.Corpus{
		Title:          strings.TrimSpace(req.Title),
		Description:    req.Description,
		SourceLanguage: req.SourceLanguage,
	})
	if err != nil {
		writeErr(c, errs.WrapError(err, errs.ErrStore, "failed to create corpus"))
		return
	}
	writeJSON(c, http.StatusCreated, created)
}

func (s *Server) loadCorpus(c *gin.Context) (corpus.Corpus, bool) {
	id, ok := idParam(c, "id")
	if !ok {
		return corpus.Corpus{}, false
	}
	found, exists, err := s.store.GetCorpus(c.Request.Context(), id)
	if err != nil {
		writeErr(c, errs.WrapError(err, errs.ErrStore, "failed to load corpus"))
		return corpus.Corpus{}, false
	}
	if !exists {
		writeErr(c, errs.Errorf(errs.ErrNotFound, "corpus %d not found", id))
		return corpus.Corpus{}, false
	}
	return found, true
}

func (s *Server) handleGetCorpus(c *gin.Context) {
	if found, ok := s.loadCorpus(c); ok {
		writeJSON(c, http.StatusOK, found)
	}
}

func (s *Server) handleExportCorpus(c *gin.Context) {
	found, ok := s.loadCorpus(c)
	if !ok {
		return
	}
	c.Header("Content-Type", "application/yaml")
	c.Header("Content-Disposition", `attachment; filename="corpus.yaml"`)
	c.Status(http.StatusOK)
	if err := s.store.ExportCorpus(c.Request.Context(), found.ID, c.Writer); err != nil {
		writeErr(c, errs.WrapError(err, errs.ErrStore, "failed to export corpus"))
	}
}

func (s *Server) handleImportCorpus(c *gin.Context) {
	imported, err := s.store.ImportCorpus(c.Request.Context(), c.Request.Body)
	if err != nil {
		writeErr(c, errs.WrapError(err, errs.ErrValidation, "failed to import corpus"))
		return
	}
	writeJSON(c, http.StatusCreated, imported)
}

func (s *Server) handleListVolumes(c *gin.Context) {
	found, ok := s.loadCorpus(c)
	if !ok {
		return
	}
	volumes, err := s.store.ListVolumes(c.Request.Context(), found.ID)
	if err != nil {
		writeErr(c, errs.WrapError(err, errs.ErrStore, "failed to list volumes"))
		return
	}
	writeJSON(c, http.StatusOK, volumes)
}

type createVolumeRequest struct {
	Index int    `json:"index"`
	Title string `json:"title"`
}

func (s *Server) handleCreateVolume(c *gin.Context) {
	found, ok := s.loadCorpus(c)
	if !ok {
		return
	}
	var req createVolumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.Index <= 0 {
		writeError(c, http.StatusBadRequest, "index must be positive")
		return
	}
	created, err := s.store.CreateVolume(c.Request.Context(), corpus.Volume{
		CorpusID: found.ID,
		Index:    req.Index,
		Title:    req.Title,
	})
	if err != nil {
		writeErr(c, errs.WrapError(err, errs.ErrStore, "failed to create volume"))
		return
	}
	writeJSON(c, http.StatusCreated, created)
}

func (s *Server) loadVolume(c *gin.Context) (corpus.Volume, bool) {
	id, ok := idParam(c, "id")
	if !ok {
		return corpus.Volume{}, false
	}
	found, exists, err := s.store.GetVolume(c.Request.Context(), id)
	if err != nil {
		writeErr(c, errs.WrapError(err, errs.ErrStore, "failed to load volume"))
		return corpus.Volume{}, false
	}
	if !exists {
		writeErr(c, errs.Errorf(errs.ErrNotFound, "volume %d not found", id))
		return corpus.Volume{}, false
	}
	return found, true
}

func (s *Server) handleListChapters(c *gin.Context) {
	vol, ok := s.loadVolume(c)
	if !ok {
		return
	}
	chapters, err := s.store.ListChapters(c.Request.Context(), vol.ID, boolQuery(c, "translated"))
	if err != nil {
		writeErr(c, errs.WrapError(err, errs.ErrStore, "failed to list chapters"))
		return
	}
	writeJSON(c, http.StatusOK, chapters)
}

type createChapterRequest struct {
	Index int    `json:"index"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

func (s *Server) handleCreateChapter(c *gin.Context) {
	vol, ok := s.loadVolume(c)
	if !ok {
		return
	}
	var req createChapterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.Index <= 0 {
		writeError(c, http.StatusBadRequest, "index must be positive")
		return
	}
	created, err := s.store.CreateChapter(c.Request.Context(), corpus.Chapter{
		VolumeID: vol.ID,
		Index:    req.Index,
		Title:    req.Title,
		Body:     req.Body,
		Status:   corpus.StatusPending,
	})
	if err != nil {
		writeErr(c, errs.WrapError(err, errs.ErrStore, "failed to create chapter"))
		return
	}
	writeJSON(c, http.StatusCreated, created)
}

func (s *Server) handleGetChapter(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ch, exists, err := s.store.GetChapter(c.Request.Context(), id)
	if err != nil {
		writeErr(c, errs.WrapError(err, errs.ErrStore, "failed to load chapter"))
		return
	}
	if !exists {
		writeErr(c, errs.Errorf(errs.ErrNotFound, "chapter %d not found", id))
		return
	}
	writeJSON(c, http.StatusOK, ch)
}

func (s *Server) handleListSegments(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if _, err := s.orch.Progress(c.Request.Context(), id); err != nil {
		writeErr(c, err)
		return
	}
	segs, err := s.store.ListSegments(c.Request.Context(), id)
	if err != nil {
		writeErr(c, errs.WrapError(err, errs.ErrStore, "failed to list segments"))
		return
	}
	writeJSON(c, http.StatusOK, segs)
}

func (s *Server) handleChapterProgress(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	progress, err := s.orch.Progress(c.Request.Context(), id)
	if err != nil {
		writeErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, progress)
}

func (s *Server) handleChapterHighlight(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	html, result, err := s.orch.Highlight(c.Request.Context(), id)
	if err != nil {
		writeErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"html": html, "residue": result})
}

func (s *Server) handlePrepareChapter(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	units, err := s.orch.PrepareChapter(c.Request.Context(), id)
	if err != nil {
		writeErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"chapter_id": id, "units": units})
}

func (s *Server) handleTranslateChapter(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	res, err := s.orch.TranslateChapter(c.Request.Context(), id, boolQuery(c, "override"))
	if err != nil {
		writeErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, res)
}

func (s *Server) handleReviewChapter(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	res, err := s.orch.ReviewChapter(c.Request.Context(), id)
	if err != nil {
		writeErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, res)
}

func (s *Server) handleFixChapter(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	res, err := s.orch.FixChapter(c.Request.Context(), id)
	if err != nil {
		writeErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, res)
}

func (s *Server) handleReviewCorpus(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	res, err := s.orch.ReviewCorpus(c.Request.Context(), id)
	if err != nil {
		writeErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, res)
}

func (s *Server) handleReviewVolume(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	res, err := s.orch.ReviewVolume(c.Request.Context(), id)
	if err != nil {
		writeErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, res)
}

// handleReviewStats reads stored scores only; nothing is sent for review.
func (s *Server) handleReviewStats(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	res, err := s.orch.ReviewStats(c.Request.Context(), id)
	if err != nil {
		writeErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, res)
}

func (s *Server) handleTranslateSegment(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	res, err := s.orch.TranslateSegment(c.Request.Context(), id, boolQuery(c, "override"))
	if err != nil {
		writeErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, res)
}

func (s *Server) handleReviewSegment(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	seg, err := s.orch.ReviewSegment(c.Request.Context(), id)
	if err != nil {
		writeErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, seg)
}

func (s *Server) handleSegmentHighlight(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	html, result, err := s.orch.HighlightSegment(c.Request.Context(), id)
	if err != nil {
		writeErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"html": html, "residue": result})
}
