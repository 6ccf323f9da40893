package tools

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AltairaLabs/roboshen/runtime/i18n"
	"github.com/AltairaLabs/roboshen/runtime/media"
	"github.com/AltairaLabs/roboshen/runtime/providers/gemini"
	"github.com/AltairaLabs/roboshen/runtime/providers/imagen"
	"github.com/AltairaLabs/roboshen/runtime/transcript"
)

type fakeContent struct {
	text   string
	err    error
	prompt string
}

func (f *fakeContent) GenerateContent(_ context.Context, prompt string) (*gemini.Response, error) {
	f.prompt = prompt
	if f.err != nil {
		return nil, f.err
	}
	return &gemini.Response{Text: f.text}, nil
}

type fakeImages struct {
	images []imagen.Image
	err    error
}

func (f *fakeImages) Generate(context.Context, string) ([]imagen.Image, error) {
	return f.images, f.err
}

func pngBase64(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func prompt(p string) json.RawMessage {
	b, _ := json.Marshal(map[string]string{"prompt": p})
	return b
}

func TestGenerateContent_Text(t *testing.T) {
	gen := &fakeContent{text: "Tehran is the capital."}
	out, err := NewGenerateContent(gen, nil).Execute(context.Background(), prompt("capital of Iran"))
	require.NoError(t, err)

	assert.Equal(t, "capital of Iran", gen.prompt)
	assert.Equal(t, transcript.KindText, out.Kind)
	assert.Equal(t, "Tehran is the capital.", out.Payload)
	assert.Equal(t, "Tehran is the capital.", out.Ack)
}

func TestGenerateContent_Code(t *testing.T) {
	text := "Here:\n```go\nfmt.Println(1)\n```"
	out, err := NewGenerateContent(&fakeContent{text: text}, nil).Execute(context.Background(), prompt("code"))
	require.NoError(t, err)
	assert.Equal(t, transcript.KindCode, out.Kind)
	assert.Equal(t, text, out.Payload)
}

func TestGenerateContent_NoContent(t *testing.T) {
	out, err := NewGenerateContent(&fakeContent{text: "  "}, i18n.Default()).Execute(context.Background(), prompt("x"))
	require.NoError(t, err)
	assert.Equal(t, transcript.KindText, out.Kind)
	assert.Equal(t, "متاسفانه محتوایی برای نمایش پیدا نشد.", out.Payload)
	assert.Equal(t, NoContentAck, out.Ack)
}

func TestGenerateContent_Error(t *testing.T) {
	_, err := NewGenerateContent(&fakeContent{err: errors.New("403")}, nil).Execute(context.Background(), prompt("x"))
	assert.EqualError(t, err, "403")
}

func TestGenerateImage(t *testing.T) {
	gen := &fakeImages{images: []imagen.Image{{Data: pngBase64(t, 40, 30), MIMEType: "image/png"}}}
	out, err := NewGenerateImage(gen, media.DefaultNormalizeConfig()).Execute(context.Background(), prompt("a red square"))
	require.NoError(t, err)

	assert.Equal(t, transcript.KindImage, out.Kind)
	assert.Equal(t, ImageAck, out.Ack)
	assert.True(t, strings.HasPrefix(out.Payload, "data:image/jpeg;base64,"))

	w, h, err := media.Dimensions(out.Payload)
	require.NoError(t, err)
	assert.Equal(t, 40, w)
	assert.Equal(t, 30, h)
}

func TestGenerateImage_Failures(t *testing.T) {
	ctx := context.Background()
	cfg := media.DefaultNormalizeConfig()

	_, err := NewGenerateImage(&fakeImages{}, cfg).Execute(ctx, prompt("x"))
	assert.ErrorIs(t, err, imagen.ErrNoImages)

	_, err = NewGenerateImage(&fakeImages{err: errors.New("quota")}, cfg).Execute(ctx, prompt("x"))
	assert.EqualError(t, err, "quota")

	_, err = NewGenerateImage(&fakeImages{images: []imagen.Image{{Data: "bm90IGFuIGltYWdl"}}}, cfg).Execute(ctx, prompt("x"))
	assert.ErrorContains(t, err, "normalising")
}

func TestBuiltins_ThroughDispatcher(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(NewGenerateContent(&fakeContent{text: "ok"}, nil)))
	require.NoError(t, r.Register(NewGenerateImage(&fakeImages{err: errors.New("down")}, media.DefaultNormalizeConfig())))
	assert.Equal(t, []string{GenerateContentName, GenerateImageName}, r.List())

	d, err := NewDispatcher(DispatcherConfig{Registry: r})
	require.NoError(t, err)

	byID := map[string]Result{}
	d.Dispatch(context.Background(), []Invocation{
		{ID: "img", Name: GenerateImageName, Args: prompt("cat")},
		{ID: "txt", Name: GenerateContentName, Args: prompt("hi")},
	}, func(r Result) { byID[r.Invocation.ID] = r })

	require.Len(t, byID, 2)
	assert.Equal(t, StatusFailed, byID["img"].Status)
	assert.Equal(t, FailureAck, byID["img"].Outcome.Ack)
	assert.Equal(t, StatusCompleted, byID["txt"].Status)
	assert.Equal(t, "ok", byID["txt"].Outcome.Ack)
}
