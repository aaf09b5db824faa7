package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"partyspace/internal/app/apperr"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError renders an engine error. Only the safe message leaves the process;
// causes of unavailable errors are logged.
func writeError(c *gin.Context, logger *slog.Logger, err error) {
	classified := apperr.Classify(err)
	var appErr *apperr.Error
	if e, ok := classified.(*apperr.Error); ok {
		appErr = e
	} else {
		appErr = apperr.Unavailable("service unavailable", err)
	}
	status := apperr.StatusCode(appErr.Kind)
	if appErr.Retryable() {
		c.Header("Retry-After", "1")
		if logger != nil {
			logger.Error("request failed", "path", c.FullPath(), "request_id", c.GetString("request_id"), "err", err)
		}
	}
	c.JSON(status, errorBody{Code: string(appErr.Kind), Message: appErr.Message})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, errorBody{Code: string(apperr.KindInvalidRequest), Message: message})
}
