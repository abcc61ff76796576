// internal/services/post_service.go
package services

import (
	"context"
	"strings"

	apperrors "github.com/Corphon/SocialGenius/internal/errors"
	"github.com/Corphon/SocialGenius/internal/models"
)

const MsgPostTopicRequired = "Please enter a topic for your post."

type ImagePostService struct {
	gen *GenerationService
}

func NewImagePostService(gen *GenerationService) *ImagePostService {
	return &ImagePostService{gen: gen}
}

// Generate writes the caption and image prompt, then renders the image.
// Either failure aborts the whole post.
func (s *ImagePostService) Generate(ctx context.Context, topic string) (*models.ImagePost, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, apperrors.NewInputError(MsgPostTopicRequired)
	}

	content, err := s.gen.GenerateImagePostContent(ctx, topic)
	if err != nil {
		return nil, err
	}

	imageURL, err := s.gen.GenerateImage(ctx, content.ImagePrompt)
	if err != nil {
		return nil, err
	}

	return &models.ImagePost{
		ImagePrompt: content.ImagePrompt,
		Caption:     content.Caption,
		ImageURL:    imageURL,
	}, nil
}
