// internal/llm/providers/google/google.go
package google

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/Corphon/SocialGenius/internal/llm"
)

const (
	defaultTextModel  = "gemini-2.5-flash"
	defaultImageModel = "imagen-3.0-generate-002"
	defaultVideoModel = "veo-2.0-generate-001"
	defaultVideoMIME  = "video/mp4"
)

func init() {
	llm.Register("google", func() llm.Provider {
		return &Provider{
			textModel:  defaultTextModel,
			imageModel: defaultImageModel,
			videoModel: defaultVideoModel,
		}
	})
}

// Provider talks to the Gemini API through the genai SDK. Downloads of
// finished videos go through plain HTTP with the API key appended.
type Provider struct {
	apiKey     string
	client     *genai.Client
	httpClient *http.Client

	textModel  string
	imageModel string
	videoModel string
}

func (p *Provider) Initialize(config map[string]string) error {
	apiKey := config["api_key"]
	if apiKey == "" {
		return errors.New("google api key not provided")
	}
	p.apiKey = apiKey
	p.httpClient = &http.Client{}

	if model := config["text_model"]; model != "" {
		p.textModel = model
	}
	if model := config["image_model"]; model != "" {
		p.imageModel = model
	}
	if model := config["video_model"]; model != "" {
		p.videoModel = model
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: p.httpClient,
	})
	if err != nil {
		return fmt.Errorf("failed to create genai client: %w", err)
	}
	p.client = client
	return nil
}

func (p *Provider) GetName() string {
	return "google gemini"
}

func (p *Provider) GenerateText(ctx context.Context, req llm.TextRequest) (*llm.TextResponse, error) {
	model := req.Model
	if model == "" {
		model = p.textModel
	}

	var config *genai.GenerateContentConfig
	if req.ResponseMIMEType != "" || req.ResponseSchema != nil {
		config = &genai.GenerateContentConfig{
			ResponseMIMEType:   req.ResponseMIMEType,
			ResponseJsonSchema: req.ResponseSchema,
		}
	}

	resp, err := p.client.Models.GenerateContent(ctx, model, genai.Text(req.Prompt), config)
	if err != nil {
		return nil, fmt.Errorf("gemini generateContent(%s): %w", model, err)
	}

	text := resp.Text()
	if text == "" {
		return nil, errors.New("gemini returned no text")
	}
	return &llm.TextResponse{Text: text, ModelName: model}, nil
}

func (p *Provider) GenerateImage(ctx context.Context, req llm.ImageRequest) (*llm.ImageResponse, error) {
	model := req.Model
	if model == "" {
		model = p.imageModel
	}

	resp, err := p.client.Models.GenerateImages(ctx, model, req.Prompt, &genai.GenerateImagesConfig{
		NumberOfImages: int32(req.Count),
		OutputMIMEType: req.MIMEType,
		AspectRatio:    req.AspectRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("imagen generateImages(%s): %w", model, err)
	}

	out := &llm.ImageResponse{MIMEType: req.MIMEType}
	for _, generated := range resp.GeneratedImages {
		if generated == nil || generated.Image == nil || len(generated.Image.ImageBytes) == 0 {
			continue
		}
		out.Images = append(out.Images, generated.Image.ImageBytes)
	}
	if len(out.Images) == 0 {
		return nil, errors.New("imagen returned no images")
	}
	return out, nil
}

func (p *Provider) StartVideo(ctx context.Context, req llm.VideoRequest) (*llm.VideoJob, error) {
	model := req.Model
	if model == "" {
		model = p.videoModel
	}

	op, err := p.client.Models.GenerateVideos(ctx, model, req.Prompt, nil, &genai.GenerateVideosConfig{
		NumberOfVideos: int32(req.Count),
	})
	if err != nil {
		return nil, fmt.Errorf("veo generateVideos(%s): %w", model, err)
	}
	return jobFromOperation(op), nil
}

func (p *Provider) PollVideo(ctx context.Context, job *llm.VideoJob) (*llm.VideoJob, error) {
	op, ok := job.Operation.(*genai.GenerateVideosOperation)
	if !ok {
		return nil, fmt.Errorf("video job %q was not created by this provider", job.Name)
	}

	op, err := p.client.Operations.GetVideosOperation(ctx, op, nil)
	if err != nil {
		return nil, fmt.Errorf("veo getVideosOperation(%s): %w", job.Name, err)
	}
	return jobFromOperation(op), nil
}

func jobFromOperation(op *genai.GenerateVideosOperation) *llm.VideoJob {
	job := &llm.VideoJob{Name: op.Name, Done: op.Done, Operation: op}
	if len(op.Error) > 0 {
		job.Error = fmt.Sprintf("%v", op.Error["message"])
	}
	if op.Response != nil {
		for _, generated := range op.Response.GeneratedVideos {
			if generated != nil && generated.Video != nil && generated.Video.URI != "" {
				job.URI = generated.Video.URI
				break
			}
		}
	}
	return job
}

// DownloadVideo fetches uri with the API key appended as a query parameter
func (p *Provider) DownloadVideo(ctx context.Context, uri string) ([]byte, string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, WithAPIKey(uri, p.apiKey), nil)
	if err != nil {
		return nil, "", err
	}

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, "", err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, "", fmt.Errorf("failed to download video: %s", httpResp.Status)
	}

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read video body: %w", err)
	}

	mimeType := httpResp.Header.Get("Content-Type")
	if idx := strings.Index(mimeType, ";"); idx >= 0 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = defaultVideoMIME
	}
	return data, mimeType, nil
}

// WithAPIKey appends key to uri, using & when uri already has a query
func WithAPIKey(uri, key string) string {
	if strings.Contains(uri, "?") {
		return uri + "&key=" + key
	}
	return uri + "?key=" + key
}
