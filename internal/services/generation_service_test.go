package services

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	apperrors "github.com/Corphon/SocialGenius/internal/errors"
	"github.com/Corphon/SocialGenius/internal/llm"
)

func TestGenerateCarouselPlanRequestsJSON(t *testing.T) {
	f := &fakeProvider{text: func(req llm.TextRequest) (string, error) {
		return "```json\n[{\"imagePrompt\":\"a\",\"caption\":\"b\"}]\n```", nil
	}}
	gen, collector := newTestGeneration(t, f)

	plan, err := gen.GenerateCarouselPlan(context.Background(), "coffee")
	if err != nil {
		t.Fatal(err)
	}
	if len(plan) != 1 || plan[0].ImagePrompt != "a" || plan[0].Caption != "b" {
		t.Fatalf("plan = %+v", plan)
	}

	req := f.textCalls[0]
	if req.ResponseMIMEType != "application/json" || req.ResponseSchema == nil {
		t.Fatalf("request not constrained to JSON: %+v", req)
	}
	if !strings.Contains(req.Prompt, `about "coffee"`) {
		t.Fatalf("prompt = %q", req.Prompt)
	}
	if collector.GetCounterValue("generation.carousel_plan.calls") != 1 || collector.GetCounterValue("generation.carousel_plan.failures") != 0 {
		t.Fatal("metrics not recorded")
	}
}

func TestInvalidJSONIsGenerationError(t *testing.T) {
	f := &fakeProvider{text: func(llm.TextRequest) (string, error) { return "not json", nil }}
	gen, collector := newTestGeneration(t, f)

	_, err := gen.GenerateImagePostContent(context.Background(), "x")
	if !apperrors.IsGenerationError(err) {
		t.Fatalf("err = %v", err)
	}
	if apperrors.UserMessage(err) != MsgPostContentFailed {
		t.Fatalf("message = %q", apperrors.UserMessage(err))
	}
	if collector.GetCounterValue("generation.post_content.failures") != 1 {
		t.Fatal("failure not counted")
	}
}

func TestGenerateReelScriptTwoPasses(t *testing.T) {
	f := &fakeProvider{text: func(req llm.TextRequest) (string, error) {
		if req.ResponseSchema == nil {
			return "## Iced Coffee\n**Scene 1**", nil
		}
		return `{"title":"Iced Coffee","script":"## Iced Coffee\n**Scene 1**"}`, nil
	}}
	gen, _ := newTestGeneration(t, f)

	script, err := gen.GenerateReelScript(context.Background(), "iced coffee")
	if err != nil {
		t.Fatal(err)
	}
	if script.Title != "Iced Coffee" {
		t.Fatalf("script = %+v", script)
	}

	prompts := f.textPrompts()
	if len(prompts) != 2 {
		t.Fatalf("text calls = %d, want 2", len(prompts))
	}
	if !strings.HasSuffix(prompts[1], "Script:\n## Iced Coffee\n**Scene 1**") {
		t.Fatalf("structure prompt = %q", prompts[1])
	}
}

func TestGenerateReelScriptFirstPassFailure(t *testing.T) {
	f := &fakeProvider{text: func(llm.TextRequest) (string, error) { return "", errors.New("quota") }}
	gen, _ := newTestGeneration(t, f)

	_, err := gen.GenerateReelScript(context.Background(), "x")
	if apperrors.UserMessage(err) != MsgReelScriptFailed {
		t.Fatalf("err = %v", err)
	}
	if len(f.textCalls) != 1 {
		t.Fatal("second pass ran after first pass failed")
	}
}

func TestGenerateImage(t *testing.T) {
	f := &fakeProvider{image: func(string) ([]byte, error) { return []byte{0xff, 0xd8}, nil }}
	gen, _ := newTestGeneration(t, f)

	url, err := gen.GenerateImage(context.Background(), "a cat")
	if err != nil {
		t.Fatal(err)
	}
	if url != "data:image/jpeg;base64,"+base64.StdEncoding.EncodeToString([]byte{0xff, 0xd8}) {
		t.Fatalf("url = %q", url)
	}
	req := f.imageCalls[0]
	if req.Count != 1 || req.MIMEType != "image/jpeg" || req.AspectRatio != "1:1" {
		t.Fatalf("request = %+v", req)
	}
}

func TestGenerateImageFailure(t *testing.T) {
	f := &fakeProvider{image: func(string) ([]byte, error) { return nil, errors.New("blocked") }}
	gen, _ := newTestGeneration(t, f)

	if _, err := gen.GenerateImage(context.Background(), "x"); apperrors.UserMessage(err) != MsgImageFailed {
		t.Fatalf("err = %v", err)
	}
}

func TestGenerateVideoPollsUntilDone(t *testing.T) {
	f := &fakeProvider{
		video:          func(string) (string, error) { return "https://files/v1:download?alt=media", nil },
		pollsUntilDone: 3,
	}
	gen, _ := newTestGeneration(t, f)
	waits := 0
	gen.sleep = func(ctx context.Context, d time.Duration) error {
		waits++
		if d != gen.pollInterval {
			t.Errorf("wait = %s", d)
		}
		return nil
	}

	url, err := gen.GenerateVideo(context.Background(), "pour coffee")
	if err != nil {
		t.Fatal(err)
	}
	if waits != 3 || f.polls != 3 {
		t.Fatalf("waits = %d polls = %d", waits, f.polls)
	}
	mimeType, data, err := ParseDataURI(url)
	if err != nil {
		t.Fatal(err)
	}
	if mimeType != "video/mp4" {
		t.Errorf("mime = %q, want default video/mp4", mimeType)
	}
	if string(data) != "video:https://files/v1:download?alt=media" {
		t.Errorf("data = %q", data)
	}
}

func TestGenerateVideoKeepsReportedMIME(t *testing.T) {
	f := &fakeProvider{
		video:        func(string) (string, error) { return "https://files/v1", nil },
		downloadMIME: "video/webm",
	}
	gen, _ := newTestGeneration(t, f)

	url, err := gen.GenerateVideo(context.Background(), "p")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(url, "data:video/webm;base64,") {
		t.Fatalf("url = %q", url)
	}
}

func TestGenerateVideoFailures(t *testing.T) {
	cases := map[string]*fakeProvider{
		"no uri":   {video: func(string) (string, error) { return "", nil }},
		"download": {video: func(string) (string, error) { return "https://broken", nil }},
		"submit":   {video: func(string) (string, error) { return "", errors.New("quota") }},
	}
	for name, f := range cases {
		t.Run(name, func(t *testing.T) {
			gen, collector := newTestGeneration(t, f)
			_, err := gen.GenerateVideo(context.Background(), "p")
			if !apperrors.IsGenerationError(err) || apperrors.UserMessage(err) != MsgVideoFailed {
				t.Fatalf("err = %v", err)
			}
			if collector.GetCounterValue("generation.video.failures") != 1 {
				t.Fatal("failure not counted")
			}
		})
	}
}

func TestGenerateVideoStopsOnCancel(t *testing.T) {
	f := &fakeProvider{
		video:          func(string) (string, error) { return "https://files/v1", nil },
		pollsUntilDone: 100,
	}
	gen, _ := newTestGeneration(t, f)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := gen.GenerateVideo(ctx, "p"); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
}

func TestParseDataURIRejectsGarbage(t *testing.T) {
	for _, in := range []string{"https://x", "data:video/mp4,abc", "data:video/mp4;base64", "data:video/mp4;base64,@@"} {
		if _, _, err := ParseDataURI(in); err == nil {
			t.Errorf("ParseDataURI(%q) succeeded", in)
		}
	}
}

func TestSanitizeJSONResponse(t *testing.T) {
	if got := SanitizeJSONResponse("```JSON\n{\"a\":1}\n```"); got != `{"a":1}` {
		t.Fatalf("got %q", got)
	}
	if got := SanitizeJSONResponse(`  ["x"] `); got != `["x"]` {
		t.Fatalf("got %q", got)
	}
}

func TestIncompleteResponsesAreGenerationErrors(t *testing.T) {
	reel := func(structured string) func(llm.TextRequest) (string, error) {
		return func(req llm.TextRequest) (string, error) {
			if req.ResponseSchema == nil {
				return "## Draft", nil
			}
			return structured, nil
		}
	}
	fixed := func(text string) func(llm.TextRequest) (string, error) {
		return func(llm.TextRequest) (string, error) { return text, nil }
	}

	tests := []struct {
		name string
		text func(llm.TextRequest) (string, error)
		call func(*GenerationService) error
		msg  string
	}{
		{"carousel null", fixed("null"), carouselCall, MsgCarouselPlanFailed},
		{"carousel empty", fixed("[]"), carouselCall, MsgCarouselPlanFailed},
		{"carousel blank slide", fixed(`[{"imagePrompt":"a","caption":""}]`), carouselCall, MsgCarouselPlanFailed},
		{"post null", fixed("null"), postCall, MsgPostContentFailed},
		{"post empty object", fixed("{}"), postCall, MsgPostContentFailed},
		{"script null", reel("null"), scriptCall, MsgReelScriptFailed},
		{"script empty object", reel("{}"), scriptCall, MsgReelScriptFailed},
		{"script blank draft", fixed("  "), scriptCall, MsgReelScriptFailed},
		{"scene prompts null", fixed("null"), scenesCall, MsgScenePromptsFailed},
		{"scene prompts empty", fixed("[]"), scenesCall, MsgScenePromptsFailed},
		{"scene prompts blank entry", fixed(`["a"," "]`), scenesCall, MsgScenePromptsFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen, _ := newTestGeneration(t, &fakeProvider{text: tt.text})

			err := tt.call(gen)
			if !apperrors.IsGenerationError(err) || !errors.Is(err, ErrIncompleteResponse) {
				t.Fatalf("err = %v", err)
			}
			if apperrors.UserMessage(err) != tt.msg {
				t.Fatalf("message = %q", apperrors.UserMessage(err))
			}
		})
	}
}

func carouselCall(g *GenerationService) error {
	_, err := g.GenerateCarouselPlan(context.Background(), "x")
	return err
}

func postCall(g *GenerationService) error {
	_, err := g.GenerateImagePostContent(context.Background(), "x")
	return err
}

func scriptCall(g *GenerationService) error {
	_, err := g.GenerateReelScript(context.Background(), "x")
	return err
}

func scenesCall(g *GenerationService) error {
	_, err := g.GenerateVideoPromptsFromScript(context.Background(), "## Script")
	return err
}

func TestPrimitivesReturnGenerationErrors(t *testing.T) {
	f := &fakeProvider{text: func(llm.TextRequest) (string, error) { return "", errors.New("upstream 500") }}
	gen, collector := newTestGeneration(t, f)

	_, err := gen.GenerateText(context.Background(), "hi")
	if !apperrors.IsGenerationError(err) || apperrors.UserMessage(err) != MsgTextFailed {
		t.Fatalf("text err = %v", err)
	}

	var out []string
	err = gen.GenerateStructuredContent(context.Background(), "hi", nil, &out)
	if !apperrors.IsGenerationError(err) || apperrors.UserMessage(err) != MsgContentFailed {
		t.Fatalf("structured err = %v", err)
	}
	if collector.GetCounterValue("generation.text.failures") != 1 || collector.GetCounterValue("generation.structured_content.failures") != 1 {
		t.Fatal("failures not counted")
	}
}
