package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AltairaLabs/roboshen/runtime/audio"
	livegemini "github.com/AltairaLabs/roboshen/runtime/live/gemini"
	"github.com/AltairaLabs/roboshen/runtime/tools"
	"github.com/AltairaLabs/roboshen/runtime/transcript"
)

const minimalManifest = `
apiVersion: roboshen.altairalabs.ai/v1alpha1
kind: Assistant
metadata:
  name: roboshen
spec: {}
`

const fullManifest = `
apiVersion: roboshen.altairalabs.ai/v1alpha1
kind: Assistant
metadata:
  name: roboshen
  namespace: lab
  labels:
    team: voice
spec:
  model: gemini-live-test
  voice: Puck
  systemInstruction: You are a helpful robot.
  personaVersion: v1.2.0
  locale: en
  greet: false
  transcribe: true
  credentials:
    credentialEnv: ROBOSHEN_TEST_KEY
  audio:
    captureRate: 16000
    playbackRate: 24000
    frameSize: 2048
    speakingTolerance: 150ms
    vad:
      minVolume: 0.02
  tools:
    enabled: [generateContent]
    rateLimit: 2
    timeout: 30s
    image:
      aspectRatio: "16:9"
  transcript:
    store: redis
    address: ${ROBOSHEN_TEST_REDIS}
    ttl: 24h
  recording:
    dir: /tmp/recordings
  metrics:
    addr: ":9100"
  tracing:
    endpoint: http://localhost:4318/v1/traces
  logging:
    defaultLevel: debug
    format: json
`

func TestParse_MinimalAppliesDefaults(t *testing.T) {
	a, err := Parse([]byte(minimalManifest))
	require.NoError(t, err)

	assert.Equal(t, "roboshen", a.Metadata.Name)
	s := a.Spec
	assert.Equal(t, livegemini.DefaultModel, s.Model)
	assert.Equal(t, livegemini.DefaultVoice, s.Voice)
	assert.Equal(t, DefaultLocale, s.Locale)
	assert.True(t, s.GreetOnStart())
	assert.Equal(t, audio.SampleRate16kHz, s.Audio.CaptureRate)
	assert.Equal(t, audio.SampleRate24kHz, s.Audio.PlaybackRate)
	assert.Equal(t, audio.DefaultFrameSize, s.Audio.FrameSize)
	assert.Equal(t, audio.DefaultSpeakingTolerance, s.Audio.SpeakingTolerance)
	assert.ElementsMatch(t, []string{tools.GenerateImageName, tools.GenerateContentName}, s.Tools.Enabled)
	assert.Equal(t, tools.DefaultTimeout, s.Tools.Timeout)
	assert.Equal(t, StoreMemory, s.Transcript.Store)
	require.NotNil(t, s.Logging)
	assert.Equal(t, LogLevelInfo, s.Logging.DefaultLevel)
}

func TestParse_Full(t *testing.T) {
	t.Setenv("ROBOSHEN_TEST_REDIS", "redis.internal:6380")

	a, err := Parse([]byte(fullManifest))
	require.NoError(t, err)

	assert.Equal(t, "lab", a.Metadata.Namespace)
	assert.Equal(t, "voice", a.Metadata.Labels["team"])
	s := a.Spec
	assert.Equal(t, "gemini-live-test", s.Model)
	assert.Equal(t, "Puck", s.Voice)
	assert.Equal(t, "en", s.Locale)
	assert.False(t, s.GreetOnStart())
	assert.True(t, s.Transcribe)
	assert.Equal(t, "ROBOSHEN_TEST_KEY", s.Credentials.CredentialEnv)
	assert.Equal(t, 2048, s.Audio.FrameSize)
	assert.Equal(t, 150*time.Millisecond, s.Audio.SpeakingTolerance)
	assert.Equal(t, []string{tools.GenerateContentName}, s.Tools.Enabled)
	assert.Equal(t, 1, s.Tools.Burst)
	assert.Equal(t, 30*time.Second, s.Tools.Timeout)
	assert.Equal(t, "16:9", s.Tools.Image.AspectRatio)
	assert.Equal(t, "redis.internal:6380", s.Transcript.Address)
	assert.Equal(t, 24*time.Hour, s.Transcript.TTL)
	assert.Equal(t, transcript.DefaultRedisPrefix, s.Transcript.Prefix)
	assert.Equal(t, "/tmp/recordings", s.Recording.Dir)
	assert.Equal(t, ":9100", s.Metrics.Addr)
	assert.Equal(t, "http://localhost:4318/v1/traces", s.Tracing.Endpoint)
	assert.Equal(t, LogFormatJSON, s.Logging.Format)

	vad := s.Audio.VAD.Params()
	assert.InDelta(t, 0.02, vad.MinVolume, 1e-9)
	assert.InDelta(t, audio.DefaultVADConfidence, vad.Confidence, 1e-9)
}

func TestParse_EmptyToolListDisablesTools(t *testing.T) {
	a, err := Parse([]byte(`
apiVersion: roboshen.altairalabs.ai/v1alpha1
kind: Assistant
metadata:
  name: roboshen
spec:
  tools:
    enabled: []
`))
	require.NoError(t, err)
	assert.NotNil(t, a.Spec.Tools.Enabled)
	assert.Empty(t, a.Spec.Tools.Enabled)
}

func TestParse_Errors(t *testing.T) {
	header := "apiVersion: roboshen.altairalabs.ai/v1alpha1\nkind: Assistant\nmetadata:\n  name: r\n"
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"wrong kind", "apiVersion: roboshen.altairalabs.ai/v1alpha1\nkind: Arena\nmetadata:\n  name: r\nspec: {}\n", "schema"},
		{"missing metadata", "apiVersion: roboshen.altairalabs.ai/v1alpha1\nkind: Assistant\nspec: {}\n", "schema"},
		{"unknown locale", header + "spec:\n  locale: de\n", "schema"},
		{"unknown tool", header + "spec:\n  tools:\n    enabled: [sendEmail]\n", "schema"},
		{"bad duration", header + "spec:\n  tools:\n    timeout: soon\n", "schema"},
		{"unknown field", header + "spec:\n  modle: x\n", "schema"},
		{"bad persona version", header + "spec:\n  personaVersion: \"1.0\"\n", "personaVersion"},
		{"burst without rate", header + "spec:\n  tools:\n    burst: 3\n", "tools.burst"},
		{"address with memory store", header + "spec:\n  transcript:\n    store: memory\n    address: x:1\n", "transcript.address"},
		{"not yaml", "spec: [unclosed", "YAML"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assistant.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalManifest), 0o600))

	a, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, KindAssistant, a.Kind)
	assert.Equal(t, APIVersion, a.APIVersion)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestValidateSemanticVersion(t *testing.T) {
	for _, v := range []string{"1.0.0", "v2.1.3", "1.0.0-alpha", "1.0.0+build"} {
		assert.NoError(t, validateSemanticVersion(v), v)
	}
	for _, v := range []string{"1.0", "v1", "latest", ""} {
		assert.Error(t, validateSemanticVersion(v), v)
	}
}

func TestDefault(t *testing.T) {
	s := Default()
	assert.Equal(t, livegemini.DefaultModel, s.Model)
	assert.Equal(t, StoreMemory, s.Transcript.Store)
	assert.Empty(t, s.Transcript.Address)
}
