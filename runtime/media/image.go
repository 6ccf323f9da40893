// Package media normalises generated images for the transcript: any
// decodable image becomes a bounded JPEG carried as a data URL.
package media

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"strings"

	"golang.org/x/image/draw"

	_ "image/gif" // Register GIF decoder
	_ "image/png" // Register PNG decoder

	_ "golang.org/x/image/webp" // Register WebP decoder
)

// Image format constants as reported by image.Decode.
const (
	FormatJPEG = "jpeg"
	FormatPNG  = "png"
	FormatGIF  = "gif"
	FormatWebP = "webp"
)

// MIMETypeJPEG is the MIME type of every normalised image.
const MIMETypeJPEG = "image/jpeg"

// Default configuration values.
const (
	DefaultMaxEdge = 1024
	DefaultQuality = 85
	MinQuality     = 10
	QualityDecay   = 0.9
)

const dataURLPrefix = "data:" + MIMETypeJPEG + ";base64,"

var (
	// ErrEmptyImage is returned for zero-length input.
	ErrEmptyImage = errors.New("media: empty image data")

	// ErrNotDataURL is returned by ParseDataURL for anything but a base64 data URL.
	ErrNotDataURL = errors.New("media: not a base64 data URL")
)

// NormalizeConfig bounds the normalised image.
type NormalizeConfig struct {
	// MaxEdge is the longest allowed side in pixels (0 = unbounded).
	MaxEdge int

	// Quality is the JPEG quality (1-100). Default: 85.
	Quality int

	// MaxSizeBytes caps the encoded size (0 = no limit). Quality is reduced
	// until the image fits or MinQuality is reached.
	MaxSizeBytes int64
}

// DefaultNormalizeConfig returns the limits used for generated images.
func DefaultNormalizeConfig() NormalizeConfig {
	return NormalizeConfig{MaxEdge: DefaultMaxEdge, Quality: DefaultQuality}
}

// Image is a normalised JPEG.
type Image struct {
	Data         []byte
	Width        int
	Height       int
	SourceFormat string
	Reencoded    bool
}

// DataURL renders the image as a data:image/jpeg;base64 URL.
func (i *Image) DataURL() string {
	return dataURLPrefix + base64.StdEncoding.EncodeToString(i.Data)
}

// Normalize decodes data and returns it as a JPEG no larger than cfg
// allows. A JPEG already within bounds is returned unchanged.
func Normalize(data []byte, cfg NormalizeConfig) (*Image, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	width, height := fitWithin(bounds.Dx(), bounds.Dy(), cfg.MaxEdge)
	needsResize := width < bounds.Dx() || height < bounds.Dy()

	if format == FormatJPEG && !needsResize && (cfg.MaxSizeBytes == 0 || int64(len(data)) <= cfg.MaxSizeBytes) {
		return &Image{Data: data, Width: width, Height: height, SourceFormat: format}, nil
	}

	flat := flatten(img, width, height)

	quality := cfg.Quality
	if quality <= 0 {
		quality = DefaultQuality
	}
	encoded, err := encodeJPEG(flat, quality)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	if cfg.MaxSizeBytes > 0 && int64(len(encoded)) > cfg.MaxSizeBytes {
		encoded, err = reduceToFitSize(flat, quality, cfg.MaxSizeBytes)
		if err != nil {
			return nil, fmt.Errorf("failed to reduce image size: %w", err)
		}
	}

	return &Image{
		Data:         encoded,
		Width:        width,
		Height:       height,
		SourceFormat: format,
		Reencoded:    true,
	}, nil
}

// NormalizeBase64 decodes a base64 payload then normalises it.
func NormalizeBase64(payload string, cfg NormalizeConfig) (*Image, error) {
	data, err := DecodeBase64(payload)
	if err != nil {
		return nil, err
	}
	return Normalize(data, cfg)
}

// DecodeBase64 accepts padded or unpadded standard base64.
func DecodeBase64(payload string) ([]byte, error) {
	payload = strings.TrimSpace(payload)
	data, err := base64.StdEncoding.DecodeString(payload)
	if err == nil {
		return data, nil
	}
	data, rawErr := base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
	if rawErr != nil {
		return nil, fmt.Errorf("invalid base64 image: %w", err)
	}
	return data, nil
}

// ParseDataURL splits a base64 data URL into its MIME type and bytes.
func ParseDataURL(url string) (mimeType string, data []byte, err error) {
	rest, ok := strings.CutPrefix(url, "data:")
	if !ok {
		return "", nil, ErrNotDataURL
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, ErrNotDataURL
	}
	mimeType, ok = strings.CutSuffix(meta, ";base64")
	if !ok {
		return "", nil, ErrNotDataURL
	}
	data, err = DecodeBase64(payload)
	if err != nil {
		return "", nil, err
	}
	return mimeType, data, nil
}

// Dimensions reads the size of an image data URL without decoding pixels.
func Dimensions(url string) (width, height int, err error) {
	_, data, err := ParseDataURL(url)
	if err != nil {
		return 0, 0, err
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read image header: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}

// fitWithin scales w×h down so neither side exceeds maxEdge, preserving
// aspect ratio. Sides never drop below 1.
func fitWithin(w, h, maxEdge int) (int, int) {
	if maxEdge <= 0 || (w <= maxEdge && h <= maxEdge) {
		return w, h
	}
	if w >= h {
		h = int(float64(h) * float64(maxEdge) / float64(w))
		w = maxEdge
	} else {
		w = int(float64(w) * float64(maxEdge) / float64(h))
		h = maxEdge
	}
	return max(w, 1), max(h, 1)
}

// flatten scales src onto an opaque white canvas; JPEG has no alpha.
func flatten(src image.Image, width, height int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	return dst
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// reduceToFitSize lowers quality by QualityDecay per step until the image
// fits, returning the MinQuality encoding if it never does.
func reduceToFitSize(img image.Image, quality int, maxSize int64) ([]byte, error) {
	for quality >= MinQuality {
		encoded, err := encodeJPEG(img, quality)
		if err != nil {
			return nil, err
		}
		if int64(len(encoded)) <= maxSize {
			return encoded, nil
		}
		quality = int(float64(quality) * QualityDecay)
	}
	return encodeJPEG(img, MinQuality)
}
