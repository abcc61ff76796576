// internal/services/carousel_service.go
package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"

	apperrors "github.com/Corphon/SocialGenius/internal/errors"
	"github.com/Corphon/SocialGenius/internal/models"
	"github.com/Corphon/SocialGenius/internal/utils"
)

const MsgCarouselTopicRequired = "Please enter a topic to generate a carousel."

// CarouselResult is the finished carousel; slides whose image failed have no ImageURL
type CarouselResult struct {
	Topic  string                 `json:"topic"`
	Slides []models.CarouselSlide `json:"slides"`
}

type CarouselService struct {
	gen    *GenerationService
	logger *utils.Logger
}

func NewCarouselService(gen *GenerationService) *CarouselService {
	return &CarouselService{
		gen:    gen,
		logger: utils.GetLogger().WithComponent("carousel"),
	}
}

// Generate plans the carousel, then renders slide images one at a time.
// onUpdate, if set, receives a copy of the slides after the plan and after
// each image. An image failure only clears that slide's loading flag.
func (s *CarouselService) Generate(ctx context.Context, topic string, onUpdate func([]models.CarouselSlide)) (*CarouselResult, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, apperrors.NewInputError(MsgCarouselTopicRequired)
	}

	plan, err := s.gen.GenerateCarouselPlan(ctx, topic)
	if err != nil {
		return nil, err
	}

	slides := make([]models.CarouselSlide, len(plan))
	for i, p := range plan {
		slides[i] = models.CarouselSlide{
			ID:           fmt.Sprintf("slide-%d-%s", i, ulid.Make().String()),
			ImagePrompt:  p.ImagePrompt,
			Caption:      p.Caption,
			ImageLoading: true,
		}
	}
	notify(onUpdate, slides)

	for i := range slides {
		imageURL, err := s.gen.GenerateImage(ctx, slides[i].ImagePrompt)
		if err != nil {
			s.logger.Warn("Failed to generate image for slide", map[string]interface{}{
				"slide_id": slides[i].ID,
				"error":    err.Error(),
			})
		} else {
			slides[i].ImageURL = imageURL
		}
		slides[i].ImageLoading = false
		notify(onUpdate, slides)
	}

	return &CarouselResult{Topic: topic, Slides: slides}, nil
}

func notify(onUpdate func([]models.CarouselSlide), slides []models.CarouselSlide) {
	if onUpdate != nil {
		onUpdate(append([]models.CarouselSlide(nil), slides...))
	}
}
