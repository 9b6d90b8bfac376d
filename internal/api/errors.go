package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	stderrors "finserv-workers/internal/common/errors"
)

// writeError maps internal error codes to HTTP statuses. Details of unknown
// errors stay out of the response body.
func writeError(c *gin.Context, err error) {
	var se *stderrors.StandardError
	if !errors.As(err, &se) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	status := http.StatusInternalServerError
	switch se.Code {
	case stderrors.ErrCodeJobNotFound, stderrors.ErrCodeTemplateNotFound:
		status = http.StatusNotFound
	case stderrors.ErrCodePayloadValidationFailed, stderrors.ErrCodeInvalidExportType, stderrors.ErrCodeTemplateRender:
		status = http.StatusBadRequest
	}

	c.JSON(status, gin.H{
		"error": se.Message,
		"code":  string(se.Code),
	})
}
