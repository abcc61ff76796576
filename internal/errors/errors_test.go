package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestUserMessageHidesTechnicalDetail(t *testing.T) {
	cause := errors.New("rpc error: code = Unavailable desc = upstream connect error")
	err := NewGenerationError("Failed to generate image.", cause)

	if got := err.Error(); got != "Failed to generate image.: "+cause.Error() {
		t.Fatalf("Error() = %q", got)
	}
	if got := UserMessage(err); got != "Failed to generate image." {
		t.Fatalf("UserMessage() = %q", got)
	}
	if !errors.Is(err, cause) {
		t.Fatal("cause should be reachable with errors.Is")
	}
}

func TestTypeChecksThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("scene 2: %w", NewCacheError("Could not save videos to cache.", nil))

	if !IsCacheError(wrapped) {
		t.Fatal("expected cache error")
	}
	if IsGenerationError(wrapped) {
		t.Fatal("did not expect generation error")
	}
	if UserMessage(wrapped) != "Could not save videos to cache." {
		t.Fatalf("UserMessage() = %q", UserMessage(wrapped))
	}
}

func TestUserMessageForPlainErrors(t *testing.T) {
	if got := UserMessage(errors.New("dial tcp: lookup generativelanguage.googleapis.com")); got != "An unexpected error occurred." {
		t.Fatalf("UserMessage() = %q", got)
	}
	if UserMessage(nil) != "" {
		t.Fatal("nil error should have empty message")
	}
}

func TestErrorCodes(t *testing.T) {
	cases := map[*AppError]string{
		NewInputError("x"):            "INPUT_ERROR",
		NewGenerationError("x", nil):  "GENERATION_FAILED",
		NewCacheError("x", nil):       "CACHE_ERROR",
		NewNotFoundError("x", nil):    "NOT_FOUND",
		NewConflictError("x", nil):    "CONFLICT",
		NewProcessingError("x", nil):  "PROCESSING_ERROR",
	}
	for err, want := range cases {
		if err.Code != want {
			t.Errorf("%s: code = %s, want %s", err.Type, err.Code, want)
		}
	}
}
