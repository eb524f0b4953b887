package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/MimeLyc/contextual-novel-translator/internal/config"
	"github.com/MimeLyc/contextual-novel-translator/internal/credential"
	"github.com/MimeLyc/contextual-novel-translator/internal/errs"
	"github.com/MimeLyc/contextual-novel-translator/pkg/log"
)

type credentialView struct {
	credential.Credential
	Secret  string `json:"secret"`
	Current bool   `json:"current"`
}

func (s *Server) handleListCredentials(c *gin.Context) {
	provider := c.Query("provider")
	if provider == "" && s.pool != nil {
		provider = s.pool.Provider()
	}
	creds, err := s.store.ListCredentials(c.Request.Context(), provider)
	if err != nil {
		writeErr(c, errs.WrapError(err, errs.ErrStore, "failed to list credentials"))
		return
	}

	var currentID int64
	if s.pool != nil {
		if idx, err := s.pool.Current(c.Request.Context()); err == nil {
			if active := s.pool.Credentials(); idx < len(active) {
				currentID = active[idx].ID
			}
		}
	}

	out := make([]credentialView, 0, len(creds))
	for _, cred := range creds {
		out = append(out, credentialView{
			Credential: cred,
			Secret:     cred.Masked(),
			Current:    cred.ID == currentID,
		})
	}
	writeJSON(c, http.StatusOK, out)
}

type addCredentialRequest struct {
	Name     string `json:"name"`
	Secret   string `json:"secret"`
	Provider string `json:"provider"`
}

func (s *Server) handleAddCredential(c *gin.Context) {
	var req addCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.Provider == "" && s.pool != nil {
		req.Provider = s.pool.Provider()
	}
	if strings.TrimSpace(req.Secret) == "" || strings.TrimSpace(req.Provider) == "" {
		writeError(c, http.StatusBadRequest, "secret and provider are required")
		return
	}
	saved, err := s.store.AddCredential(c.Request.Context(), credential.Credential{
		Name:     req.Name,
		Secret:   req.Secret,
		Provider: req.Provider,
	})
	if err != nil {
		writeErr(c, errs.WrapError(err, errs.ErrStore, "failed to add credential"))
		return
	}
	s.reloadPool(c.Request.Context())
	writeJSON(c, http.StatusCreated, credentialView{Credential: saved, Secret: saved.Masked()})
}

func (s *Server) handleDeactivateCredential(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	found, err := s.store.SetCredentialActive(c.Request.Context(), id, false)
	if err != nil {
		writeErr(c, errs.WrapError(err, errs.ErrStore, "failed to deactivate credential"))
		return
	}
	if !found {
		writeErr(c, errs.Errorf(errs.ErrNotFound, "credential %d not found", id))
		return
	}
	s.reloadPool(c.Request.Context())
	writeJSON(c, http.StatusOK, gin.H{"id": id, "active": false})
}

func (s *Server) handleRotateCredential(c *gin.Context) {
	if s.pool == nil {
		writeError(c, http.StatusNotImplemented, "credential pool is not configured")
		return
	}
	next, err := s.pool.ForceRotate(c.Request.Context())
	if err != nil {
		writeErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, credentialView{Credential: next, Secret: next.Masked(), Current: true})
}

// reloadPool picks up credential changes. A pool left without keys keeps
// its old list and says so in the log.
func (s *Server) reloadPool(ctx context.Context) {
	if s.pool == nil {
		return
	}
	if err := s.pool.Reload(ctx); err != nil {
		log.Warn("Credential pool not reloaded: %v", err)
	}
}

func (s *Server) handleGetSettings(c *gin.Context) {
	if s.settings == nil {
		writeError(c, http.StatusNotImplemented, "settings store is not configured")
		return
	}
	writeJSON(c, http.StatusOK, s.settings.GetRuntimeSettings())
}

func (s *Server) handleUpdateSettings(c *gin.Context) {
	if s.settings == nil {
		writeError(c, http.StatusNotImplemented, "settings store is not configured")
		return
	}
	var req config.RuntimeSettings
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	saved, err := s.settings.UpdateRuntimeSettings(req)
	if err != nil {
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}
	if s.apply != nil {
		if err := s.apply(saved); err != nil {
			writeError(c, http.StatusInternalServerError, err.Error())
			return
		}
	}
	writeJSON(c, http.StatusOK, saved)
}
