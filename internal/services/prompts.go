// internal/services/prompts.go
package services

import (
	"fmt"

	"github.com/invopop/jsonschema"

	"github.com/Corphon/SocialGenius/internal/models"
)

// GenerateSchema reflects T into a JSON schema usable as a response schema
func GenerateSchema[T any]() *jsonschema.Schema {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		Anonymous:                 true,
	}
	var v T
	schema := reflector.Reflect(v)
	schema.Version = ""
	return schema
}

// Response schemas, computed once
var (
	carouselPlanSchema = GenerateSchema[[]models.SlidePlan]()
	postContentSchema  = GenerateSchema[models.PostContent]()
	reelScriptSchema   = GenerateSchema[models.ReelScript]()
	scenePromptsSchema = scenePromptList()
)

// scenePromptList is a plain array of strings; reflection cannot attach a
// description to the items of []string.
func scenePromptList() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "array",
		Items: &jsonschema.Schema{
			Type:        "string",
			Description: "A prompt for an AI video generation model.",
		},
	}
}

func BuildCarouselPlanPrompt(topic string) string {
	return fmt.Sprintf(`Create a carousel plan for a social media post about "%s". The carousel should have between 3 and 5 slides. For each slide, provide a detailed prompt for an image generation model and a short, engaging caption. The image prompts should be vivid and create a cohesive visual story. Return the result as a JSON array.`, topic)
}

func BuildImagePostPrompt(topic string) string {
	return fmt.Sprintf(`Generate content for a single social media image post about "%s". Provide a detailed prompt for an image generation model and a suitable caption. The image prompt should be creative and descriptive. The caption should be engaging and include relevant hashtags. Return a JSON object.`, topic)
}

func BuildReelScriptPrompt(topic string) string {
	return fmt.Sprintf(`Create a short video reel script about "%s". The script should be for a video under 60 seconds. Give it a catchy title. Break it down into 3-5 scenes. For each scene, describe the visual, the voiceover or audio, and any on-screen text. Format the output clearly with markdown for headings and bold text.`, topic)
}

// BuildReelStructurePrompt asks the model to split a free-form script into title and body
func BuildReelStructurePrompt(rawScript string) string {
	return fmt.Sprintf("Take the following script and format it into a JSON object with a \"title\" and a \"script\" field. The script should be the full text content.\n\nScript:\n%s", rawScript)
}

func BuildScenePromptsPrompt(script string) string {
	return fmt.Sprintf("Based on the following reel script, generate a concise, visually descriptive prompt for an AI video generation model for each scene. Each prompt should describe a single, continuous shot that is visually interesting. Return a JSON array of strings, where each string is a prompt.\n\nScript:\n%s", script)
}
