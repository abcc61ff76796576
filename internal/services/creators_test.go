package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	apperrors "github.com/Corphon/SocialGenius/internal/errors"
	"github.com/Corphon/SocialGenius/internal/llm"
	"github.com/Corphon/SocialGenius/internal/models"
)

const fourSlidePlan = `[
	{"imagePrompt":"p1","caption":"c1"},
	{"imagePrompt":"p2","caption":"c2"},
	{"imagePrompt":"p3","caption":"c3"},
	{"imagePrompt":"p4","caption":"c4"}
]`

func TestCarouselSecondImageFails(t *testing.T) {
	f := &fakeProvider{
		text: func(llm.TextRequest) (string, error) { return fourSlidePlan, nil },
		image: func(prompt string) ([]byte, error) {
			if prompt == "p2" {
				return nil, errors.New("safety filter")
			}
			return []byte(prompt), nil
		},
	}
	gen, _ := newTestGeneration(t, f)
	svc := NewCarouselService(gen)

	var updates [][]models.CarouselSlide
	result, err := svc.Generate(context.Background(), "  autumn hikes ", func(s []models.CarouselSlide) {
		updates = append(updates, s)
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.Topic != "autumn hikes" {
		t.Errorf("topic = %q", result.Topic)
	}

	slides := result.Slides
	if len(slides) != 4 {
		t.Fatalf("slides = %d", len(slides))
	}
	for i, slide := range slides {
		if slide.ImageLoading {
			t.Errorf("slide %d still loading", i)
		}
		if i == 1 {
			if slide.ImageURL != "" {
				t.Errorf("failed slide has image %q", slide.ImageURL)
			}
			continue
		}
		if !strings.HasPrefix(slide.ImageURL, "data:image/jpeg;base64,") {
			t.Errorf("slide %d image = %q", i, slide.ImageURL)
		}
	}

	// strictly sequential, in plan order
	if f.imageCount() != 4 {
		t.Fatalf("image calls = %d", f.imageCount())
	}
	for i, call := range f.imageCalls {
		if want := slides[i].ImagePrompt; call.Prompt != want {
			t.Errorf("image call %d prompt = %q, want %q", i, call.Prompt, want)
		}
	}

	// one update after the plan and one per image
	if len(updates) != 5 {
		t.Fatalf("updates = %d, want 5", len(updates))
	}
	for _, slide := range updates[0] {
		if !slide.ImageLoading {
			t.Fatal("slides should start loading")
		}
	}
	if updates[2][1].ImageLoading || !updates[2][2].ImageLoading {
		t.Fatal("second update should settle slide 2 only")
	}

	seen := map[string]bool{}
	for i, slide := range slides {
		if !strings.HasPrefix(slide.ID, fmt.Sprintf("slide-%d-", i)) || seen[slide.ID] {
			t.Errorf("bad slide id %q", slide.ID)
		}
		seen[slide.ID] = true
	}
}

func TestCarouselEmptyTopic(t *testing.T) {
	f := &fakeProvider{}
	gen, _ := newTestGeneration(t, f)

	_, err := NewCarouselService(gen).Generate(context.Background(), "   ", nil)
	if !apperrors.IsInputError(err) || apperrors.UserMessage(err) != MsgCarouselTopicRequired {
		t.Fatalf("err = %v", err)
	}
	if len(f.textCalls) != 0 || f.imageCount() != 0 {
		t.Fatal("remote calls made for empty topic")
	}
}

func TestCarouselPlanFailure(t *testing.T) {
	replies := map[string]func(llm.TextRequest) (string, error){
		"provider error": func(llm.TextRequest) (string, error) { return "", errors.New("500") },
		"null plan":      func(llm.TextRequest) (string, error) { return "null", nil },
		"empty plan":     func(llm.TextRequest) (string, error) { return "[]", nil },
	}
	for name, reply := range replies {
		t.Run(name, func(t *testing.T) {
			f := &fakeProvider{text: reply}
			gen, _ := newTestGeneration(t, f)

			result, err := NewCarouselService(gen).Generate(context.Background(), "x", nil)
			if result != nil || apperrors.UserMessage(err) != MsgCarouselPlanFailed {
				t.Fatalf("result = %v err = %v", result, err)
			}
			if f.imageCount() != 0 {
				t.Fatal("images generated after plan failure")
			}
		})
	}
}

func TestImagePost(t *testing.T) {
	f := &fakeProvider{
		text:  func(llm.TextRequest) (string, error) { return `{"imagePrompt":"latte art","caption":"Morning! #coffee"}`, nil },
		image: func(string) ([]byte, error) { return []byte("jpg"), nil },
	}
	gen, _ := newTestGeneration(t, f)

	post, err := NewImagePostService(gen).Generate(context.Background(), "coffee")
	if err != nil {
		t.Fatal(err)
	}
	if post.Caption != "Morning! #coffee" || post.ImagePrompt != "latte art" || post.ImageURL == "" {
		t.Fatalf("post = %+v", post)
	}
	if f.imageCalls[0].Prompt != "latte art" {
		t.Fatal("image not generated from the planned prompt")
	}
}

func TestImagePostFailures(t *testing.T) {
	t.Run("empty topic", func(t *testing.T) {
		f := &fakeProvider{}
		gen, _ := newTestGeneration(t, f)
		_, err := NewImagePostService(gen).Generate(context.Background(), "")
		if apperrors.UserMessage(err) != MsgPostTopicRequired || len(f.textCalls) != 0 {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("image fails", func(t *testing.T) {
		f := &fakeProvider{
			text:  func(llm.TextRequest) (string, error) { return `{"imagePrompt":"a","caption":"b"}`, nil },
			image: func(string) ([]byte, error) { return nil, errors.New("blocked") },
		}
		gen, _ := newTestGeneration(t, f)
		post, err := NewImagePostService(gen).Generate(context.Background(), "x")
		if post != nil || apperrors.UserMessage(err) != MsgImageFailed {
			t.Fatalf("post = %v err = %v", post, err)
		}
	})
}

func TestFormatScript(t *testing.T) {
	in := "## Title\n### Scene 1\n**Visual:** a <b>cup</b> **pour**"
	want := "<h2>Title</h2>\n<h3>Scene 1</h3>\n<strong>Visual:</strong> a &lt;b&gt;cup&lt;/b&gt; <strong>pour</strong>"
	if got := FormatScript(in); got != want {
		t.Fatalf("FormatScript =\n%q\nwant\n%q", got, want)
	}
}
