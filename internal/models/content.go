// internal/models/content.go
package models

// ContentType names one of the creators exposed by the service
type ContentType string

const (
	ContentTypeCarousel  ContentType = "Carousel"
	ContentTypeImagePost ContentType = "Image Post"
	ContentTypeReel      ContentType = "Reel"
)

// ContentTypes lists the creators in display order
func ContentTypes() []ContentType {
	return []ContentType{ContentTypeCarousel, ContentTypeImagePost, ContentTypeReel}
}

// SlidePlan is one entry of a carousel plan returned by the text model
type SlidePlan struct {
	ImagePrompt string `json:"imagePrompt" jsonschema:"required" jsonschema_description:"A detailed prompt for an image generation model."`
	Caption     string `json:"caption" jsonschema:"required" jsonschema_description:"A short, engaging caption for the slide."`
}

// PostContent is the text model's answer for a single image post
type PostContent struct {
	ImagePrompt string `json:"imagePrompt" jsonschema:"required" jsonschema_description:"A detailed prompt for an image generation model."`
	Caption     string `json:"caption" jsonschema:"required" jsonschema_description:"An engaging caption for the post with hashtags."`
}

// CarouselSlide is a planned slide plus its image state
type CarouselSlide struct {
	ID           string `json:"id"`
	ImagePrompt  string `json:"imagePrompt"`
	Caption      string `json:"caption"`
	ImageURL     string `json:"imageUrl,omitempty"`
	ImageLoading bool   `json:"imageLoading"`
}

// ImagePost is a single generated post. ImageURL is a data URI.
type ImagePost struct {
	ImagePrompt string `json:"imagePrompt"`
	Caption     string `json:"caption"`
	ImageURL    string `json:"imageUrl,omitempty"`
}

// ReelScript is the structured result of the two-pass script generation
type ReelScript struct {
	Title  string `json:"title" jsonschema:"required" jsonschema_description:"The title of the reel script."`
	Script string `json:"script" jsonschema:"required" jsonschema_description:"The full formatted script content."`
}

// ReelScene is one video clip derived from a script. The JSON shape is also
// the cache entry format, so field names must stay stable.
type ReelScene struct {
	Prompt    string `json:"prompt"`
	VideoURL  string `json:"videoUrl,omitempty"`
	IsLoading bool   `json:"isLoading"`
	Error     string `json:"error,omitempty"`
}

// Done reports whether the scene already has a video
func (s ReelScene) Done() bool {
	return s.VideoURL != ""
}
