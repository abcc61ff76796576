// internal/services/generation_service.go
package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/Corphon/SocialGenius/internal/errors"
	"github.com/Corphon/SocialGenius/internal/llm"
	"github.com/Corphon/SocialGenius/internal/models"
	"github.com/Corphon/SocialGenius/internal/utils"
)

// User-facing failure messages, one per operation
const (
	MsgCarouselPlanFailed = "Failed to generate carousel plan. Please try again."
	MsgPostContentFailed  = "Failed to generate post content. Please try again."
	MsgReelScriptFailed   = "Failed to generate reel script. Please try again."
	MsgImageFailed        = "Failed to generate image."
	MsgScenePromptsFailed = "Failed to generate video prompts from script."
	MsgVideoFailed        = "Failed to generate video. This is an experimental feature and may take several minutes."
	MsgContentFailed      = "Failed to generate content. Please try again."
	MsgTextFailed         = "Failed to generate text. Please try again."
)

const (
	jsonMIMEType        = "application/json"
	imageMIMEType       = "image/jpeg"
	imageAspectRatio    = "1:1"
	defaultVideoMIME    = "video/mp4"
	defaultPollInterval = 10 * time.Second
)

var (
	ErrNoVideoURI = errors.New("video generation completed, but no download link was found")

	// ErrIncompleteResponse marks JSON that parsed but lacks required content,
	// such as null, an empty list or an object with blank fields
	ErrIncompleteResponse = errors.New("model response is missing required content")
)

// GenerationService is the only component that talks to the generative
// models. Every failure is logged with its technical cause and returned as a
// GenerationError carrying a fixed user message.
type GenerationService struct {
	provider     llm.Provider
	pollInterval time.Duration
	metrics      *utils.GenerationMetrics
	logger       *utils.Logger

	// sleep waits between video polls; tests replace it
	sleep func(ctx context.Context, d time.Duration) error
}

func NewGenerationService(provider llm.Provider, pollInterval time.Duration, metrics *utils.GenerationMetrics) *GenerationService {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	if metrics == nil {
		metrics = utils.NewGenerationMetrics(nil)
	}
	return &GenerationService{
		provider:     provider,
		pollInterval: pollInterval,
		metrics:      metrics,
		logger:       utils.GetLogger().WithComponent("generation"),
		sleep:        sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// finish records metrics for op and converts err into a GenerationError
func (s *GenerationService) finish(op, userMessage string, start time.Time, err error) error {
	s.metrics.Record(op, time.Since(start), err)
	if err == nil {
		return nil
	}
	s.logger.Error("Error generating "+strings.ReplaceAll(op, "_", " "), map[string]interface{}{
		"op":    op,
		"error": err.Error(),
	})
	return apperrors.NewGenerationError(userMessage, err)
}

// ------------------------------------------------------------------
// Primitives
// ------------------------------------------------------------------

// GenerateStructuredContent asks for JSON matching schema and decodes it into out
func (s *GenerationService) GenerateStructuredContent(ctx context.Context, prompt string, schema any, out any) error {
	start := time.Now()
	return s.finish("structured_content", MsgContentFailed, start, s.generateStructured(ctx, prompt, schema, out))
}

func (s *GenerationService) generateStructured(ctx context.Context, prompt string, schema any, out any) error {
	resp, err := s.provider.GenerateText(ctx, llm.TextRequest{
		Prompt:           prompt,
		ResponseMIMEType: jsonMIMEType,
		ResponseSchema:   schema,
	})
	if err != nil {
		return err
	}

	text := SanitizeJSONResponse(resp.Text)
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("failed to parse model response as JSON: %w", err)
	}
	return nil
}

// GenerateText returns free-form model output
func (s *GenerationService) GenerateText(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	text, err := s.generateText(ctx, prompt)
	return text, s.finish("text", MsgTextFailed, start, err)
}

func (s *GenerationService) generateText(ctx context.Context, prompt string) (string, error) {
	resp, err := s.provider.GenerateText(ctx, llm.TextRequest{Prompt: prompt})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.Text) == "" {
		return "", fmt.Errorf("%w: empty text", ErrIncompleteResponse)
	}
	return resp.Text, nil
}

// GenerateImage renders one square JPEG and returns it as a data URI
func (s *GenerationService) GenerateImage(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	url, err := s.generateImage(ctx, prompt)
	return url, s.finish("image", MsgImageFailed, start, err)
}

func (s *GenerationService) generateImage(ctx context.Context, prompt string) (string, error) {
	resp, err := s.provider.GenerateImage(ctx, llm.ImageRequest{
		Prompt:      prompt,
		Count:       1,
		MIMEType:    imageMIMEType,
		AspectRatio: imageAspectRatio,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Images) == 0 || len(resp.Images[0]) == 0 {
		return "", errors.New("no image bytes returned")
	}
	return DataURI(imageMIMEType, resp.Images[0]), nil
}

// GenerateVideo submits a job, polls until it is done, downloads the result
// and returns it as a data URI. There is no client-side deadline; ctx only
// stops the wait on shutdown.
func (s *GenerationService) GenerateVideo(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	url, err := s.generateVideo(ctx, prompt)
	return url, s.finish("video", MsgVideoFailed, start, err)
}

func (s *GenerationService) generateVideo(ctx context.Context, prompt string) (string, error) {
	job, err := s.provider.StartVideo(ctx, llm.VideoRequest{Prompt: prompt, Count: 1})
	if err != nil {
		return "", err
	}

	for !job.Done {
		if err := s.sleep(ctx, s.pollInterval); err != nil {
			return "", err
		}
		if job, err = s.provider.PollVideo(ctx, job); err != nil {
			return "", err
		}
	}

	if job.Error != "" {
		return "", fmt.Errorf("video operation %s failed: %s", job.Name, job.Error)
	}
	if job.URI == "" {
		return "", ErrNoVideoURI
	}

	data, mimeType, err := s.provider.DownloadVideo(ctx, job.URI)
	if err != nil {
		return "", err
	}
	if mimeType == "" {
		mimeType = defaultVideoMIME
	}
	return DataURI(mimeType, data), nil
}

// ------------------------------------------------------------------
// Domain operations
// ------------------------------------------------------------------

func (s *GenerationService) GenerateCarouselPlan(ctx context.Context, topic string) ([]models.SlidePlan, error) {
	start := time.Now()
	plan, err := s.carouselPlan(ctx, topic)
	if err != nil {
		return nil, s.finish("carousel_plan", MsgCarouselPlanFailed, start, err)
	}
	s.finish("carousel_plan", MsgCarouselPlanFailed, start, nil)
	return plan, nil
}

func (s *GenerationService) carouselPlan(ctx context.Context, topic string) ([]models.SlidePlan, error) {
	var plan []models.SlidePlan
	if err := s.generateStructured(ctx, BuildCarouselPlanPrompt(topic), carouselPlanSchema, &plan); err != nil {
		return nil, err
	}
	if len(plan) == 0 {
		return nil, fmt.Errorf("%w: carousel plan has no slides", ErrIncompleteResponse)
	}
	for i, p := range plan {
		if blank(p.ImagePrompt) || blank(p.Caption) {
			return nil, fmt.Errorf("%w: slide %d lacks an image prompt or caption", ErrIncompleteResponse, i+1)
		}
	}
	return plan, nil
}

func (s *GenerationService) GenerateImagePostContent(ctx context.Context, topic string) (*models.PostContent, error) {
	start := time.Now()
	var content models.PostContent
	err := s.generateStructured(ctx, BuildImagePostPrompt(topic), postContentSchema, &content)
	if err == nil && (blank(content.ImagePrompt) || blank(content.Caption)) {
		err = fmt.Errorf("%w: post lacks an image prompt or caption", ErrIncompleteResponse)
	}
	if err != nil {
		return nil, s.finish("post_content", MsgPostContentFailed, start, err)
	}
	s.finish("post_content", MsgPostContentFailed, start, nil)
	return &content, nil
}

// GenerateReelScript writes a markdown script, then has the model split it
// into title and body.
func (s *GenerationService) GenerateReelScript(ctx context.Context, topic string) (*models.ReelScript, error) {
	start := time.Now()
	script, err := s.reelScript(ctx, topic)
	if err != nil {
		return nil, s.finish("reel_script", MsgReelScriptFailed, start, err)
	}
	s.finish("reel_script", MsgReelScriptFailed, start, nil)
	return script, nil
}

func (s *GenerationService) reelScript(ctx context.Context, topic string) (*models.ReelScript, error) {
	raw, err := s.generateText(ctx, BuildReelScriptPrompt(topic))
	if err != nil {
		return nil, err
	}

	var script models.ReelScript
	if err := s.generateStructured(ctx, BuildReelStructurePrompt(raw), reelScriptSchema, &script); err != nil {
		return nil, err
	}
	if blank(script.Title) || blank(script.Script) {
		return nil, fmt.Errorf("%w: script lacks a title or body", ErrIncompleteResponse)
	}
	return &script, nil
}

// GenerateVideoPromptsFromScript returns one prompt per scene; an empty list
// is a failure so a script never ends up with zero scenes.
func (s *GenerationService) GenerateVideoPromptsFromScript(ctx context.Context, script string) ([]string, error) {
	start := time.Now()
	var prompts []string
	err := s.generateStructured(ctx, BuildScenePromptsPrompt(script), scenePromptsSchema, &prompts)
	if err == nil && len(prompts) == 0 {
		err = fmt.Errorf("%w: no scene prompts", ErrIncompleteResponse)
	}
	for i := 0; err == nil && i < len(prompts); i++ {
		if blank(prompts[i]) {
			err = fmt.Errorf("%w: scene %d has a blank prompt", ErrIncompleteResponse, i+1)
		}
	}
	if err != nil {
		return nil, s.finish("scene_prompts", MsgScenePromptsFailed, start, err)
	}
	s.finish("scene_prompts", MsgScenePromptsFailed, start, nil)
	return prompts, nil
}

func blank(v string) bool {
	return strings.TrimSpace(v) == ""
}

// ------------------------------------------------------------------
// Helpers
// ------------------------------------------------------------------

// DataURI encodes data as data:<mime>;base64,<payload>
func DataURI(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// ParseDataURI splits a base64 data URI into MIME type and bytes
func ParseDataURI(uri string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, errors.New("not a data URI")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, errors.New("malformed data URI")
	}
	mimeType, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return "", nil, errors.New("data URI is not base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("invalid base64 payload: %w", err)
	}
	return mimeType, data, nil
}

// SanitizeJSONResponse strips markdown code fences some models wrap JSON in
func SanitizeJSONResponse(raw string) string {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return cleaned
	}

	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSpace(cleaned)
		if strings.HasPrefix(strings.ToLower(cleaned), "json") {
			cleaned = strings.TrimSpace(cleaned[4:])
		}
		if idx := strings.LastIndex(cleaned, "```"); idx != -1 {
			cleaned = cleaned[:idx]
		}
	}

	cleaned = strings.Trim(strings.TrimSpace(cleaned), "`")
	return strings.TrimSpace(cleaned)
}
