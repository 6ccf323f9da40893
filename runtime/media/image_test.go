package media

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"
)

// createTestImage creates a solid test image with the specified dimensions.
func createTestImage(width, height int, format string) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.NRGBA{R: 100, G: 150, B: 200, A: 255})
		}
	}

	var buf bytes.Buffer
	switch format {
	case "png":
		_ = png.Encode(&buf, img)
	default:
		_ = jpeg.Encode(&buf, img, &jpeg.Options{Quality: DefaultQuality})
	}
	return buf.Bytes()
}

func decodedSize(t *testing.T, data []byte) (int, int, string) {
	t.Helper()
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	return cfg.Width, cfg.Height, format
}

func TestNormalize_JPEGWithinBoundsUnchanged(t *testing.T) {
	data := createTestImage(200, 100, "jpeg")

	img, err := Normalize(data, DefaultNormalizeConfig())
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if img.Reencoded {
		t.Error("expected JPEG within bounds to pass through")
	}
	if !bytes.Equal(img.Data, data) {
		t.Error("expected original bytes")
	}
	if img.Width != 200 || img.Height != 100 {
		t.Errorf("size = %dx%d", img.Width, img.Height)
	}
}

func TestNormalize_PNGBecomesJPEG(t *testing.T) {
	data := createTestImage(64, 64, "png")

	img, err := Normalize(data, DefaultNormalizeConfig())
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if !img.Reencoded || img.SourceFormat != FormatPNG {
		t.Errorf("reencoded=%v source=%q", img.Reencoded, img.SourceFormat)
	}
	w, h, format := decodedSize(t, img.Data)
	if format != FormatJPEG || w != 64 || h != 64 {
		t.Errorf("got %s %dx%d", format, w, h)
	}
}

func TestNormalize_BoundsLongestEdge(t *testing.T) {
	data := createTestImage(2048, 1024, "jpeg")

	img, err := Normalize(data, DefaultNormalizeConfig())
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if img.Width != 1024 || img.Height != 512 {
		t.Errorf("size = %dx%d, want 1024x512", img.Width, img.Height)
	}
	w, h, _ := decodedSize(t, img.Data)
	if w != 1024 || h != 512 {
		t.Errorf("encoded size = %dx%d", w, h)
	}
}

func TestNormalize_MaxSizeBytes(t *testing.T) {
	data := createTestImage(512, 512, "png")
	cfg := DefaultNormalizeConfig()
	cfg.Quality = 100
	cfg.MaxSizeBytes = 4000

	img, err := Normalize(data, cfg)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if int64(len(img.Data)) > cfg.MaxSizeBytes {
		t.Errorf("size %d exceeds %d", len(img.Data), cfg.MaxSizeBytes)
	}
}

func TestNormalize_Errors(t *testing.T) {
	if _, err := Normalize(nil, DefaultNormalizeConfig()); !errors.Is(err, ErrEmptyImage) {
		t.Errorf("empty: got %v", err)
	}
	if _, err := Normalize([]byte("not an image"), DefaultNormalizeConfig()); err == nil {
		t.Error("expected decode error")
	}
}

func TestFitWithin(t *testing.T) {
	tests := []struct {
		w, h, edge int
		wantW      int
		wantH      int
	}{
		{100, 50, 0, 100, 50},
		{100, 50, 200, 100, 50},
		{2000, 1000, 1000, 1000, 500},
		{1000, 2000, 1000, 500, 1000},
		{5000, 1, 100, 100, 1},
	}
	for _, tt := range tests {
		w, h := fitWithin(tt.w, tt.h, tt.edge)
		if w != tt.wantW || h != tt.wantH {
			t.Errorf("fitWithin(%d,%d,%d) = %d,%d want %d,%d", tt.w, tt.h, tt.edge, w, h, tt.wantW, tt.wantH)
		}
	}
}

func TestDataURLRoundTrip(t *testing.T) {
	img, err := NormalizeBase64(base64.StdEncoding.EncodeToString(createTestImage(30, 20, "png")), DefaultNormalizeConfig())
	if err != nil {
		t.Fatalf("NormalizeBase64 failed: %v", err)
	}

	url := img.DataURL()
	if !strings.HasPrefix(url, "data:image/jpeg;base64,") {
		t.Fatalf("unexpected prefix: %.40s", url)
	}

	mime, data, err := ParseDataURL(url)
	if err != nil {
		t.Fatalf("ParseDataURL failed: %v", err)
	}
	if mime != MIMETypeJPEG || !bytes.Equal(data, img.Data) {
		t.Errorf("mime=%q equal=%v", mime, bytes.Equal(data, img.Data))
	}

	w, h, err := Dimensions(url)
	if err != nil || w != 30 || h != 20 {
		t.Errorf("Dimensions = %d,%d,%v", w, h, err)
	}
}

func TestParseDataURL_Rejects(t *testing.T) {
	for _, in := range []string{"https://example.com/a.jpg", "data:image/png", "data:image/png,abc"} {
		if _, _, err := ParseDataURL(in); !errors.Is(err, ErrNotDataURL) {
			t.Errorf("%q: got %v", in, err)
		}
	}
}

func TestDecodeBase64_Unpadded(t *testing.T) {
	raw := base64.RawStdEncoding.EncodeToString([]byte("ab"))
	got, err := DecodeBase64(raw)
	if err != nil || string(got) != "ab" {
		t.Errorf("got %q, %v", got, err)
	}
	if _, err := DecodeBase64("!!!"); err == nil {
		t.Error("expected error")
	}
}
