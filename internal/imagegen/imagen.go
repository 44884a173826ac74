// Package imagegen generates images from text prompts using the Imagen
// model family on the Gemini API.
package imagegen

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	// MinImages and MaxImages bound a single generation request.
	MinImages = 1
	MaxImages = 8
)

// Styles influence the prompt; they are not model parameters.
var Styles = []string{
	"Realistic",
	"Photographic",
	"Artistic",
	"Cartoon",
	"Abstract",
	"Watercolor",
	"Oil Painting",
}

// ValidStyle reports whether s is one of the supported styles.
func ValidStyle(s string) bool {
	for _, style := range Styles {
		if s == style {
			return true
		}
	}
	return false
}

// Request describes a single generation call.
type Request struct {
	Prompt string
	Count  int
	Style  string
}

// Image is one generated image, already decoded from the wire format.
type Image struct {
	Data     []byte
	MIMEType string
}

// Generator calls the Imagen endpoint. Construction fails fast when the API
// key is missing so main can disable the feature without taking chat down.
type Generator struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

func New(ctx context.Context, apiKey, model string, logger *zap.Logger) (*Generator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GOOGLE_API_KEY not configured, image generation disabled")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create image client: %w", err)
	}

	return &Generator{client: client, model: model, logger: logger}, nil
}

// Generate produces req.Count images for req.Prompt. The style is folded
// into the prompt the same way the chat UI presents it.
func (g *Generator) Generate(ctx context.Context, req Request) ([]Image, error) {
	prompt, err := buildPrompt(req)
	if err != nil {
		return nil, err
	}

	g.logger.Info("generating images",
		zap.String("model", g.model),
		zap.Int("count", req.Count),
		zap.String("style", req.Style))

	resp, err := g.client.Models.GenerateImages(ctx, g.model, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: int32(req.Count),
	})
	if err != nil {
		return nil, fmt.Errorf("image generation request failed: %w", err)
	}

	return decodeResponse(resp)
}

// buildPrompt validates the request and appends the style to the prompt.
func buildPrompt(req Request) (string, error) {
	if req.Prompt == "" {
		return "", fmt.Errorf("prompt must not be empty")
	}
	if req.Count < MinImages || req.Count > MaxImages {
		return "", fmt.Errorf("image count %d out of range [%d,%d]", req.Count, MinImages, MaxImages)
	}
	if !ValidStyle(req.Style) {
		return "", fmt.Errorf("unsupported style: %q", req.Style)
	}
	return fmt.Sprintf("%s, in a %s style", req.Prompt, req.Style), nil
}

// decodeResponse reads image bytes from the one documented response field.
// A prediction without bytes is an explicit error, not a cue to probe other
// field names.
func decodeResponse(resp *genai.GenerateImagesResponse) ([]Image, error) {
	if resp == nil || len(resp.GeneratedImages) == 0 {
		return nil, fmt.Errorf("empty response from image model")
	}

	images := make([]Image, 0, len(resp.GeneratedImages))
	for i, gen := range resp.GeneratedImages {
		if gen.Image == nil || len(gen.Image.ImageBytes) == 0 {
			return nil, fmt.Errorf("prediction %d carries no image bytes", i)
		}
		mime := gen.Image.MIMEType
		if mime == "" {
			mime = "image/png"
		}
		images = append(images, Image{Data: gen.Image.ImageBytes, MIMEType: mime})
	}
	return images, nil
}
