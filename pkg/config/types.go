package config

import (
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/AltairaLabs/roboshen/runtime/audio"
	livegemini "github.com/AltairaLabs/roboshen/runtime/live/gemini"
	"github.com/AltairaLabs/roboshen/runtime/media"
	"github.com/AltairaLabs/roboshen/runtime/providers/gemini"
	"github.com/AltairaLabs/roboshen/runtime/providers/imagen"
	"github.com/AltairaLabs/roboshen/runtime/tools"
	"github.com/AltairaLabs/roboshen/runtime/transcript"
)

// Transcript store kinds.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Defaults for fields with no runtime counterpart.
const (
	DefaultLocale      = "fa"
	DefaultMetricsAddr = ":9090"
	DefaultRedisAddr   = "localhost:6379"
)

// Assistant is the K8s-style manifest describing one voice assistant.
type Assistant struct {
	APIVersion string            `yaml:"apiVersion" json:"apiVersion"`
	Kind       string            `yaml:"kind" json:"kind"`
	Metadata   metav1.ObjectMeta `yaml:"metadata,omitempty" json:"metadata,omitempty"`
	Spec       AssistantSpec     `yaml:"spec" json:"spec"`
}

// AssistantSpec holds everything needed to run a session.
type AssistantSpec struct {
	Model             string `yaml:"model,omitempty"`
	Voice             string `yaml:"voice,omitempty"`
	SystemInstruction string `yaml:"systemInstruction,omitempty"` // empty uses the built-in persona
	PersonaVersion    string `yaml:"personaVersion,omitempty"`    // semver, reported in logs
	Locale            string `yaml:"locale,omitempty"`            // "fa" or "en"

	// Greet asks the model to greet the user on the first start.
	Greet *bool `yaml:"greet,omitempty"`
	// Transcribe requests input and output transcriptions.
	Transcribe bool `yaml:"transcribe,omitempty"`

	Credentials CredentialsSpec    `yaml:"credentials,omitempty"`
	Audio       AudioSpec          `yaml:"audio,omitempty"`
	Tools       ToolsSpec          `yaml:"tools,omitempty"`
	Transcript  TranscriptSpec     `yaml:"transcript,omitempty"`
	Recording   RecordingSpec      `yaml:"recording,omitempty"`
	Metrics     MetricsSpec        `yaml:"metrics,omitempty"`
	Tracing     TracingSpec        `yaml:"tracing,omitempty"`
	Logging     *LoggingConfigSpec `yaml:"logging,omitempty"`
}

// GreetOnStart reports whether the first session greets the user.
func (s *AssistantSpec) GreetOnStart() bool {
	return s.Greet == nil || *s.Greet
}

// CredentialsSpec selects how the model service is authenticated.
type CredentialsSpec struct {
	CredentialEnv      string `yaml:"credentialEnv,omitempty"`
	CredentialFile     string `yaml:"credentialFile,omitempty"`
	ServiceAccountFile string `yaml:"serviceAccountFile,omitempty"`
	UseADC             bool   `yaml:"useADC,omitempty"`
}

// AudioSpec configures the local audio devices.
type AudioSpec struct {
	CaptureRate       int           `yaml:"captureRate,omitempty"`
	PlaybackRate      int           `yaml:"playbackRate,omitempty"`
	FrameSize         int           `yaml:"frameSize,omitempty"`
	SpeakingTolerance time.Duration `yaml:"speakingTolerance,omitempty"`
	VAD               *VADSpec      `yaml:"vad,omitempty"`
}

// VADSpec tunes the input voice-activity meter.
type VADSpec struct {
	Confidence float64 `yaml:"confidence,omitempty"`
	StartSecs  float64 `yaml:"startSecs,omitempty"`
	StopSecs   float64 `yaml:"stopSecs,omitempty"`
	MinVolume  float64 `yaml:"minVolume,omitempty"`
}

// Params converts the spec, with unset fields taking audio defaults.
func (v *VADSpec) Params() audio.VADParams {
	p := audio.DefaultVADParams()
	if v == nil {
		return p
	}
	if v.Confidence > 0 {
		p.Confidence = v.Confidence
	}
	if v.StartSecs > 0 {
		p.StartSecs = v.StartSecs
	}
	if v.StopSecs > 0 {
		p.StopSecs = v.StopSecs
	}
	if v.MinVolume > 0 {
		p.MinVolume = v.MinVolume
	}
	return p
}

// ToolsSpec configures the capabilities the model may call.
type ToolsSpec struct {
	// Enabled lists capability names. Nil enables all built-ins; an empty
	// list disables tools.
	Enabled       []string      `yaml:"enabled"`
	ContentModel  string        `yaml:"contentModel,omitempty"`
	ImageModel    string        `yaml:"imageModel,omitempty"`
	DisableSearch bool          `yaml:"disableSearch,omitempty"`
	RateLimit     float64       `yaml:"rateLimit,omitempty"` // invocations per second, 0 = unlimited
	Burst         int           `yaml:"burst,omitempty"`
	Timeout       time.Duration `yaml:"timeout,omitempty"`
	Image         ImageSpec     `yaml:"image,omitempty"`
}

// ImageSpec configures generated images.
type ImageSpec struct {
	AspectRatio string `yaml:"aspectRatio,omitempty"`
	MaxEdge     int    `yaml:"maxEdge,omitempty"`
	Quality     int    `yaml:"quality,omitempty"`
}

// TranscriptSpec selects where transcripts are archived.
type TranscriptSpec struct {
	Store    string        `yaml:"store,omitempty"` // memory or redis
	Address  string        `yaml:"address,omitempty"`
	Password string        `yaml:"password,omitempty"`
	DB       int           `yaml:"db,omitempty"`
	TTL      time.Duration `yaml:"ttl,omitempty"`
	Prefix   string        `yaml:"prefix,omitempty"`
}

// RecordingSpec enables JSONL event recording.
type RecordingSpec struct {
	Dir string `yaml:"dir,omitempty"`
}

// MetricsSpec configures the Prometheus exporter. An empty address
// disables it.
type MetricsSpec struct {
	Addr string `yaml:"addr,omitempty"`
}

// TracingSpec configures OTLP span export. An empty endpoint disables it.
type TracingSpec struct {
	Endpoint    string  `yaml:"endpoint,omitempty"`
	ServiceName string  `yaml:"serviceName,omitempty"`
	SampleRatio float64 `yaml:"sampleRatio,omitempty"` // 0 traces every session
}

// ApplyDefaults fills omitted fields.
func (s *AssistantSpec) ApplyDefaults() {
	if s.Model == "" {
		s.Model = livegemini.DefaultModel
	}
	if s.Voice == "" {
		s.Voice = livegemini.DefaultVoice
	}
	if s.Locale == "" {
		s.Locale = DefaultLocale
	}

	a := &s.Audio
	if a.CaptureRate == 0 {
		a.CaptureRate = audio.SampleRate16kHz
	}
	if a.PlaybackRate == 0 {
		a.PlaybackRate = audio.SampleRate24kHz
	}
	if a.FrameSize == 0 {
		a.FrameSize = audio.DefaultFrameSize
	}
	if a.SpeakingTolerance == 0 {
		a.SpeakingTolerance = audio.DefaultSpeakingTolerance
	}

	t := &s.Tools
	if t.Enabled == nil {
		t.Enabled = []string{tools.GenerateImageName, tools.GenerateContentName}
	}
	if t.ContentModel == "" {
		t.ContentModel = gemini.DefaultModel
	}
	if t.ImageModel == "" {
		t.ImageModel = imagen.DefaultModel
	}
	if t.RateLimit > 0 && t.Burst == 0 {
		t.Burst = 1
	}
	if t.Timeout == 0 {
		t.Timeout = tools.DefaultTimeout
	}
	if t.Image.MaxEdge == 0 {
		t.Image.MaxEdge = media.DefaultMaxEdge
	}
	if t.Image.Quality == 0 {
		t.Image.Quality = media.DefaultQuality
	}

	tr := &s.Transcript
	if tr.Store == "" {
		tr.Store = StoreMemory
	}
	if tr.Store == StoreRedis {
		if tr.Address == "" {
			tr.Address = DefaultRedisAddr
		}
		if tr.TTL == 0 {
			tr.TTL = transcript.DefaultRedisTTL
		}
		if tr.Prefix == "" {
			tr.Prefix = transcript.DefaultRedisPrefix
		}
	}

	if s.Logging == nil {
		l := DefaultLoggingConfig()
		s.Logging = &l
	}
}

// Default returns a spec with every default applied.
func Default() *AssistantSpec {
	s := &AssistantSpec{}
	s.ApplyDefaults()
	return s
}
