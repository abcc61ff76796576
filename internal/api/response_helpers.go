// internal/api/response_helpers.go
package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/Corphon/SocialGenius/internal/errors"
	"github.com/Corphon/SocialGenius/internal/utils"
)

// APIResponse is the envelope of every JSON response
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Message   string      `json:"message,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"`
}

// APIError carries only user-facing text; causes are logged, never returned
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

type ResponseHelper struct {
	logger *utils.Logger
}

func NewResponseHelper() *ResponseHelper {
	return &ResponseHelper{logger: utils.GetLogger().WithComponent("api")}
}

func (rh *ResponseHelper) Success(c *gin.Context, data interface{}, message ...string) {
	rh.write(c, http.StatusOK, data, message...)
}

func (rh *ResponseHelper) Created(c *gin.Context, data interface{}, message ...string) {
	rh.write(c, http.StatusCreated, data, message...)
}

// Accepted answers a request whose work continues in the background
func (rh *ResponseHelper) Accepted(c *gin.Context, data interface{}, message ...string) {
	rh.write(c, http.StatusAccepted, data, message...)
}

func (rh *ResponseHelper) write(c *gin.Context, status int, data interface{}, message ...string) {
	response := &APIResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
		RequestID: rh.getRequestID(c),
	}
	if len(message) > 0 {
		response.Message = message[0]
	}
	c.JSON(status, response)
}

func (rh *ResponseHelper) Error(c *gin.Context, statusCode int, errorCode, message string, details ...string) {
	apiError := &APIError{
		Code:    errorCode,
		Message: sanitizeErrorMessage(message),
	}
	if len(details) > 0 {
		apiError.Details = sanitizeErrorMessage(details[0])
	}

	c.JSON(statusCode, &APIResponse{
		Success:   false,
		Error:     apiError,
		Timestamp: time.Now(),
		RequestID: rh.getRequestID(c),
	})
}

func (rh *ResponseHelper) BadRequest(c *gin.Context, message string, details ...string) {
	rh.Error(c, http.StatusBadRequest, ErrorBadRequest, message, details...)
}

func (rh *ResponseHelper) NotFound(c *gin.Context, message string, details ...string) {
	rh.Error(c, http.StatusNotFound, ErrorNotFound, message, details...)
}

func (rh *ResponseHelper) InternalError(c *gin.Context, message string, details ...string) {
	rh.Error(c, http.StatusInternalServerError, ErrorInternalError, message, details...)
}

// ServiceError maps an error returned by a service to its HTTP status. The
// technical cause is logged; the client only sees the user message.
func (rh *ResponseHelper) ServiceError(c *gin.Context, err error) {
	status, code := statusForError(err)

	fields := map[string]interface{}{
		"request_id": rh.getRequestID(c),
		"path":       c.FullPath(),
		"error":      err.Error(),
	}
	if status >= http.StatusInternalServerError {
		rh.logger.Error("Request failed", fields)
	} else {
		rh.logger.Debug("Request rejected", fields)
	}

	rh.Error(c, status, code, apperrors.UserMessage(err))
}

func statusForError(err error) (int, string) {
	errType, ok := apperrors.TypeOf(err)
	if !ok {
		return http.StatusInternalServerError, ErrorInternalError
	}
	switch errType {
	case apperrors.ErrorTypeInput:
		return http.StatusBadRequest, ErrorInvalidInput
	case apperrors.ErrorTypeNotFound:
		return http.StatusNotFound, ErrorNotFound
	case apperrors.ErrorTypeConflict:
		return http.StatusConflict, ErrorSessionBusy
	case apperrors.ErrorTypeGeneration:
		return http.StatusBadGateway, ErrorGenerationFailed
	case apperrors.ErrorTypeCache:
		return http.StatusInternalServerError, ErrorCacheFailed
	default:
		return http.StatusInternalServerError, ErrorInternalError
	}
}

// DownloadResponse sends raw bytes as an attachment
func (rh *ResponseHelper) DownloadResponse(c *gin.Context, data []byte, filename, contentType string) {
	c.Header("Content-Disposition", "attachment; filename=\""+filename+"\"")
	c.Header("Content-Length", strconv.Itoa(len(data)))
	c.Data(http.StatusOK, contentType, data)
}

func (rh *ResponseHelper) getRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// sanitizeErrorMessage hides messages that look like they carry credentials
func sanitizeErrorMessage(message string) string {
	lower := strings.ToLower(message)
	for _, pattern := range []string{"api_key", "apikey", "key=", "secret", "token"} {
		if strings.Contains(lower, pattern) {
			return "An internal error occurred"
		}
	}
	return message
}
