package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/MimeLyc/contextual-novel-translator/internal/errs"
	"github.com/MimeLyc/contextual-novel-translator/pkg/log"
)

func writeJSON(c *gin.Context, status int, data any) {
	c.JSON(status, data)
}

func writeError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error": msg,
	})
}

// statusOf maps the error taxonomy onto HTTP status codes.
func statusOf(err error) int {
	switch errs.TypeOf(err) {
	case errs.ErrNotFound:
		return http.StatusNotFound
	case errs.ErrAlreadyTranslated:
		return http.StatusConflict
	case errs.ErrValidation, errs.ErrParse:
		return http.StatusBadRequest
	case errs.ErrProvider:
		return http.StatusBadGateway
	case errs.ErrConfig:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeErr(c *gin.Context, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		log.Error("%s %s failed [%s]: %v", c.Request.Method, c.Request.URL.Path, c.GetString("request_id"), err)
	}
	c.AbortWithStatusJSON(status, gin.H{
		"error": err.Error(),
		"kind":  errs.TypeOf(err).String(),
	})
}

// idParam reads a positive numeric path parameter, writing 400 otherwise.
func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		writeError(c, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

func boolQuery(c *gin.Context, name string) bool {
	v, _ := strconv.ParseBool(c.Query(name))
	return v
}
