package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Corphon/SocialGenius/internal/llm"
	"github.com/Corphon/SocialGenius/internal/storage"
	"github.com/Corphon/SocialGenius/internal/utils"
)

// fakeProvider is a scripted llm.Provider that records every call
type fakeProvider struct {
	mu sync.Mutex

	textCalls  []llm.TextRequest
	imageCalls []llm.ImageRequest
	videoCalls []string
	downloads  []string
	polls      int

	text  func(req llm.TextRequest) (string, error)
	image func(prompt string) ([]byte, error)
	// video returns the download URI for prompt, or an error
	video func(prompt string) (string, error)

	pollsUntilDone int
	downloadMIME   string
}

type fakeOperation struct {
	remaining int
	uri       string
}

func (f *fakeProvider) Initialize(map[string]string) error { return nil }
func (f *fakeProvider) GetName() string                    { return "fake" }

func (f *fakeProvider) GenerateText(ctx context.Context, req llm.TextRequest) (*llm.TextResponse, error) {
	f.mu.Lock()
	f.textCalls = append(f.textCalls, req)
	fn := f.text
	f.mu.Unlock()

	if fn == nil {
		return nil, errors.New("no text handler")
	}
	text, err := fn(req)
	if err != nil {
		return nil, err
	}
	return &llm.TextResponse{Text: text}, nil
}

func (f *fakeProvider) GenerateImage(ctx context.Context, req llm.ImageRequest) (*llm.ImageResponse, error) {
	f.mu.Lock()
	f.imageCalls = append(f.imageCalls, req)
	fn := f.image
	f.mu.Unlock()

	if fn == nil {
		return nil, errors.New("no image handler")
	}
	data, err := fn(req.Prompt)
	if err != nil {
		return nil, err
	}
	return &llm.ImageResponse{Images: [][]byte{data}, MIMEType: req.MIMEType}, nil
}

func (f *fakeProvider) StartVideo(ctx context.Context, req llm.VideoRequest) (*llm.VideoJob, error) {
	f.mu.Lock()
	f.videoCalls = append(f.videoCalls, req.Prompt)
	fn := f.video
	remaining := f.pollsUntilDone
	f.mu.Unlock()

	if fn == nil {
		return nil, errors.New("no video handler")
	}
	uri, err := fn(req.Prompt)
	if err != nil {
		return nil, err
	}
	op := &fakeOperation{remaining: remaining, uri: uri}
	return jobFor(req.Prompt, op), nil
}

func (f *fakeProvider) PollVideo(ctx context.Context, job *llm.VideoJob) (*llm.VideoJob, error) {
	f.mu.Lock()
	f.polls++
	f.mu.Unlock()

	op := job.Operation.(*fakeOperation)
	op.remaining--
	return jobFor(job.Name, op), nil
}

func jobFor(name string, op *fakeOperation) *llm.VideoJob {
	job := &llm.VideoJob{Name: name, Done: op.remaining <= 0, Operation: op}
	if job.Done {
		job.URI = op.uri
	}
	return job
}

func (f *fakeProvider) DownloadVideo(ctx context.Context, uri string) ([]byte, string, error) {
	f.mu.Lock()
	f.downloads = append(f.downloads, uri)
	mime := f.downloadMIME
	f.mu.Unlock()

	if strings.Contains(uri, "broken") {
		return nil, "", errors.New("failed to download video: 404 Not Found")
	}
	return []byte("video:" + uri), mime, nil
}

func (f *fakeProvider) textPrompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.textCalls))
	for i, c := range f.textCalls {
		out[i] = c.Prompt
	}
	return out
}

func (f *fakeProvider) videoPrompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.videoCalls...)
}

func (f *fakeProvider) imageCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.imageCalls)
}

// newTestGeneration wires a GenerationService to f with an instant poll wait
func newTestGeneration(t *testing.T, f *fakeProvider) (*GenerationService, *utils.MetricsCollector) {
	t.Helper()
	collector := utils.NewMetricsCollector()
	gen := NewGenerationService(f, time.Second, utils.NewGenerationMetrics(collector))
	gen.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return gen, collector
}

func newTestReelService(t *testing.T, f *fakeProvider, store storage.KeyValueStore) *ReelService {
	t.Helper()
	gen, _ := newTestGeneration(t, f)
	if store == nil {
		store = storage.NewMemoryStore(100, 1<<20, time.Hour)
	}
	return NewReelService(gen, storage.NewReelCache(store), NewProgressService(), time.Hour)
}
