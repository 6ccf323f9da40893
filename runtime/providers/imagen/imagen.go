// Package imagen is a client for Google's Imagen predict endpoint, used by
// the generateImage tool.
package imagen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	pkgerrors "github.com/AltairaLabs/roboshen/pkg/errors"
	"github.com/AltairaLabs/roboshen/runtime/credentials"
	"github.com/AltairaLabs/roboshen/runtime/providers"
)

// DefaultModel generates tool images.
const DefaultModel = "imagen-4.0-generate-001"

const (
	component = "imagen"
	operation = "Predict"
	// Image generation is slow.
	defaultTimeout = 120 * time.Second
)

// ErrNoImages is returned when the service answers without predictions,
// typically because every sample was filtered.
var ErrNoImages = errors.New("imagen: no images generated")

// Config configures a Client.
type Config struct {
	BaseURL          string
	Model            string
	Credential       credentials.Credential
	HTTPClient       *http.Client
	Timeout          time.Duration
	SampleCount      int
	AspectRatio      string
	OutputMIMEType   string
	PersonGeneration string
	SafetyFilter     string
}

// Client calls Imagen predict.
type Client struct {
	providers.BaseProvider
	baseURL string
	model   string
	params  parameters
}

type request struct {
	Instances  []instance `json:"instances"`
	Parameters parameters `json:"parameters"`
}

type instance struct {
	Prompt string `json:"prompt"`
}

type parameters struct {
	SampleCount      int           `json:"sampleCount"`
	AspectRatio      string        `json:"aspectRatio,omitempty"`
	PersonGeneration string        `json:"personGeneration,omitempty"`
	SafetyFilter     string        `json:"safetyFilterLevel,omitempty"`
	OutputOptions    *outputOption `json:"outputOptions,omitempty"`
}

type outputOption struct {
	MIMEType string `json:"mimeType"`
}

type response struct {
	Predictions []prediction `json:"predictions"`
}

type prediction struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded"`
	MIMEType           string `json:"mimeType"`
	RAIFilteredReason  string `json:"raiFilteredReason,omitempty"`
}

// Image is one generated image as returned by the service.
type Image struct {
	// Data is standard base64.
	Data     string
	MIMEType string
}

// NewClient creates a client: one square JPEG per prompt unless configured
// otherwise.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = providers.DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.SampleCount <= 0 {
		cfg.SampleCount = 1
	}
	if cfg.AspectRatio == "" {
		cfg.AspectRatio = "1:1"
	}
	if cfg.OutputMIMEType == "" {
		cfg.OutputMIMEType = "image/jpeg"
	}

	return &Client{
		BaseProvider: providers.NewBaseProvider(component, cfg.Credential, cfg.HTTPClient, cfg.Timeout),
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		model:        cfg.Model,
		params: parameters{
			SampleCount:      cfg.SampleCount,
			AspectRatio:      cfg.AspectRatio,
			PersonGeneration: cfg.PersonGeneration,
			SafetyFilter:     cfg.SafetyFilter,
			OutputOptions:    &outputOption{MIMEType: cfg.OutputMIMEType},
		},
	}
}

// Model returns the model name.
func (c *Client) Model() string {
	return c.model
}

// Generate returns the images produced for prompt. Filtered predictions
// are skipped; if none remain the error wraps ErrNoImages.
func (c *Client) Generate(ctx context.Context, prompt string) ([]Image, error) {
	req := request{
		Instances:  []instance{{Prompt: prompt}},
		Parameters: c.params,
	}

	url := fmt.Sprintf("%s/models/%s:predict", c.baseURL, c.model)
	body, err := c.MakeJSONRequest(ctx, url, operation, req)
	if err != nil {
		return nil, err
	}

	var resp response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, pkgerrors.New(component, operation, fmt.Errorf("failed to unmarshal response: %w", err))
	}

	images := make([]Image, 0, len(resp.Predictions))
	var filtered []string
	for _, p := range resp.Predictions {
		if p.BytesBase64Encoded == "" {
			if p.RAIFilteredReason != "" {
				filtered = append(filtered, p.RAIFilteredReason)
			}
			continue
		}
		mime := p.MIMEType
		if mime == "" {
			mime = c.params.OutputOptions.MIMEType
		}
		images = append(images, Image{Data: p.BytesBase64Encoded, MIMEType: mime})
	}

	if len(images) == 0 {
		err := ErrNoImages
		if len(filtered) > 0 {
			err = fmt.Errorf("%w: %s", ErrNoImages, strings.Join(filtered, "; "))
		}
		return nil, pkgerrors.New(component, operation, err)
	}
	return images, nil
}
