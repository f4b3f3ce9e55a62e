package httputil

import (
	"net/http"

	"github.com/tgdrive/clouddrive/internal/logging"
	"github.com/tgdrive/clouddrive/pkg/services"
	"go.uber.org/zap"
)

type HTTPError struct {
	Code    int    `json:"code"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// NewError writes err as an HTTPError. Server side failures are logged at
// error level, caller mistakes at debug.
func NewError(w http.ResponseWriter, r *http.Request, err error) {
	status := services.StatusCode(err)
	logger := logging.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	} else {
		logger.Debug("request rejected", zap.String("path", r.URL.Path), zap.Error(err))
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = http.StatusText(status)
	}
	JSON(w, status, HTTPError{
		Code:    status,
		Kind:    services.Kind(err),
		Message: msg,
	})
}
