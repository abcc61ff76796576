// internal/api/error_codes.go
package api

const (
	// generic
	ErrorBadRequest    = "BAD_REQUEST"
	ErrorNotFound      = "NOT_FOUND"
	ErrorInternalError = "INTERNAL_ERROR"
	ErrorRateLimited   = "RATE_LIMIT_EXCEEDED"

	// content generation
	ErrorInvalidInput     = "INVALID_INPUT"
	ErrorGenerationFailed = "GENERATION_FAILED"

	// reel sessions
	ErrorSessionBusy  = "SESSION_BUSY"
	ErrorInvalidScene = "INVALID_SCENE_INDEX"
	ErrorCacheFailed  = "CACHE_ERROR"
)
