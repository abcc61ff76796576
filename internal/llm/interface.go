// internal/llm/interface.go
package llm

import (
	"context"
	"errors"
	"sort"
	"sync"
)

var ErrUnknownProvider = errors.New("unknown generation provider")

// TextRequest asks the text model for a completion. When ResponseSchema is
// set the provider constrains the output to JSON matching it.
type TextRequest struct {
	Prompt           string `json:"prompt"`
	Model            string `json:"model,omitempty"`
	ResponseMIMEType string `json:"response_mime_type,omitempty"`
	ResponseSchema   any    `json:"response_schema,omitempty"`
}

type TextResponse struct {
	Text      string `json:"text"`
	ModelName string `json:"model_name,omitempty"`
}

type ImageRequest struct {
	Prompt      string `json:"prompt"`
	Model       string `json:"model,omitempty"`
	Count       int    `json:"count"`
	MIMEType    string `json:"mime_type"`
	AspectRatio string `json:"aspect_ratio"`
}

type ImageResponse struct {
	Images   [][]byte `json:"-"`
	MIMEType string   `json:"mime_type"`
}

type VideoRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model,omitempty"`
	Count  int    `json:"count"`
}

// VideoJob is a long-running video generation. Operation holds the provider's
// own handle and is passed back unchanged to PollVideo.
type VideoJob struct {
	Name      string `json:"name"`
	Done      bool   `json:"done"`
	URI       string `json:"uri,omitempty"`
	Error     string `json:"error,omitempty"`
	Operation any    `json:"-"`
}

// Provider is implemented by every generation backend
type Provider interface {
	Initialize(config map[string]string) error
	GetName() string

	GenerateText(ctx context.Context, req TextRequest) (*TextResponse, error)
	GenerateImage(ctx context.Context, req ImageRequest) (*ImageResponse, error)

	// StartVideo submits a job; PollVideo refreshes it once
	StartVideo(ctx context.Context, req VideoRequest) (*VideoJob, error)
	PollVideo(ctx context.Context, job *VideoJob) (*VideoJob, error)

	// DownloadVideo fetches a finished video and returns its bytes and MIME type
	DownloadVideo(ctx context.Context, uri string) ([]byte, string, error)
}

type ProviderFactory func() Provider

var (
	providers   = make(map[string]ProviderFactory)
	providersMu sync.RWMutex
)

// Register makes a provider available under name
func Register(name string, factory ProviderFactory) {
	providersMu.Lock()
	defer providersMu.Unlock()
	providers[name] = factory
}

// GetProvider creates and initializes the named provider
func GetProvider(name string, config map[string]string) (Provider, error) {
	providersMu.RLock()
	factory, exists := providers[name]
	providersMu.RUnlock()
	if !exists {
		return nil, ErrUnknownProvider
	}

	provider := factory()
	if err := provider.Initialize(config); err != nil {
		return nil, err
	}
	return provider, nil
}

// ListProviders returns the registered provider names
func ListProviders() []string {
	providersMu.RLock()
	defer providersMu.RUnlock()

	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
