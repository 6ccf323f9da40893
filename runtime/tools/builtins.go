package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/AltairaLabs/roboshen/runtime/i18n"
	"github.com/AltairaLabs/roboshen/runtime/media"
	"github.com/AltairaLabs/roboshen/runtime/providers/gemini"
	"github.com/AltairaLabs/roboshen/runtime/providers/imagen"
	"github.com/AltairaLabs/roboshen/runtime/transcript"
)

// Built-in tool names.
const (
	GenerateContentName = "generateContent"
	GenerateImageName   = "generateImage"
)

// Acknowledgements sent to the model by the built-ins.
const (
	NoContentAck = "I searched, but found no content."
	ImageAck     = "Image generated successfully."
)

const codeFence = "```"

var generateContentDescriptor = &Descriptor{
	Name: GenerateContentName,
	Description: "Generates rich text content, code, or answers complex questions that require deep reasoning, " +
		"up-to-date information, or structured text output. Use for requests about code, facts, articles, lyrics, etc.",
	InputSchema: json.RawMessage(`{
		"type": "object",
		"properties": {
			"prompt": {"type": "string", "description": "The user's request for text, code, or information."}
		},
		"required": ["prompt"]
	}`),
}

var generateImageDescriptor = &Descriptor{
	Name: GenerateImageName,
	Description: "Generates an image based on a user's textual description. " +
		"Use this when the user asks to create, draw, or make a picture.",
	InputSchema: json.RawMessage(`{
		"type": "object",
		"properties": {
			"prompt": {"type": "string", "description": "A detailed, creative description of the image to be generated. Should be in English for best results."}
		},
		"required": ["prompt"]
	}`),
}

type promptArgs struct {
	Prompt string `json:"prompt"`
}

func parsePrompt(args json.RawMessage) (string, error) {
	var a promptArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	return a.Prompt, nil
}

// ContentGenerator answers a prompt with text.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (*gemini.Response, error)
}

// ImageGenerator produces images for a prompt.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) ([]imagen.Image, error)
}

// GenerateContent is the generateContent built-in.
type GenerateContent struct {
	gen     ContentGenerator
	printer *i18n.Printer
}

// NewGenerateContent creates the built-in. A nil printer uses Persian.
func NewGenerateContent(gen ContentGenerator, printer *i18n.Printer) *GenerateContent {
	if printer == nil {
		printer = i18n.Default()
	}
	return &GenerateContent{gen: gen, printer: printer}
}

// Descriptor implements Capability.
func (g *GenerateContent) Descriptor() *Descriptor { return generateContentDescriptor }

// Execute answers the prompt. Text containing a code fence is recorded as
// code. An empty answer is a success with a "no content" notice.
func (g *GenerateContent) Execute(ctx context.Context, args json.RawMessage) (*Outcome, error) {
	prompt, err := parsePrompt(args)
	if err != nil {
		return nil, err
	}

	resp, err := g.gen.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(resp.Text) == "" {
		return &Outcome{
			Kind:    transcript.KindText,
			Payload: g.printer.Text(i18n.ToolNoContentNotice),
			Ack:     NoContentAck,
		}, nil
	}

	kind := transcript.KindText
	if strings.Contains(resp.Text, codeFence) {
		kind = transcript.KindCode
	}
	return &Outcome{Kind: kind, Payload: resp.Text, Ack: resp.Text}, nil
}

// GenerateImage is the generateImage built-in.
type GenerateImage struct {
	gen ImageGenerator
	cfg media.NormalizeConfig
}

// NewGenerateImage creates the built-in. The first generated image is
// normalised with cfg.
func NewGenerateImage(gen ImageGenerator, cfg media.NormalizeConfig) *GenerateImage {
	return &GenerateImage{gen: gen, cfg: cfg}
}

// Descriptor implements Capability.
func (g *GenerateImage) Descriptor() *Descriptor { return generateImageDescriptor }

// Execute generates an image and records it as a JPEG data URL.
func (g *GenerateImage) Execute(ctx context.Context, args json.RawMessage) (*Outcome, error) {
	prompt, err := parsePrompt(args)
	if err != nil {
		return nil, err
	}

	images, err := g.gen.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return nil, imagen.ErrNoImages
	}

	img, err := media.NormalizeBase64(images[0].Data, g.cfg)
	if err != nil {
		return nil, fmt.Errorf("normalising generated image: %w", err)
	}
	return &Outcome{Kind: transcript.KindImage, Payload: img.DataURL(), Ack: ImageAck}, nil
}
