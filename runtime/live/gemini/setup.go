package gemini

import (
	"encoding/json"
	"strings"

	"github.com/AltairaLabs/roboshen/runtime/live"
	"github.com/AltairaLabs/roboshen/runtime/logger"
)

// DefaultModel is the native-audio Live model.
const DefaultModel = "gemini-2.5-flash-native-audio-preview-09-2025"

// DefaultVoice is the prebuilt voice used when none is configured.
const DefaultVoice = "Zephyr"

// modelPath ensures model is in the models/{model} form.
func modelPath(model string) string {
	if model == "" {
		model = DefaultModel
	}
	if !strings.HasPrefix(model, "models/") {
		return "models/" + model
	}
	return model
}

// buildSetupMessage constructs the first message of a session.
func buildSetupMessage(s *live.Setup) map[string]any {
	voice := s.Voice
	if voice == "" {
		voice = DefaultVoice
	}

	setup := map[string]any{
		"model": modelPath(s.Model),
		"generationConfig": map[string]any{
			"responseModalities": []string{"AUDIO"},
			"speechConfig": map[string]any{
				"voiceConfig": map[string]any{
					"prebuiltVoiceConfig": map[string]any{"voiceName": voice},
				},
			},
		},
	}

	if s.Transcribe {
		setup["inputAudioTranscription"] = map[string]any{}
		setup["outputAudioTranscription"] = map[string]any{}
	}
	if s.SystemInstruction != "" {
		setup["systemInstruction"] = map[string]any{
			"parts": []map[string]any{{"text": s.SystemInstruction}},
		}
	}
	if len(s.Tools) > 0 {
		setup["tools"] = []map[string]any{
			{"functionDeclarations": s.Tools},
		}
		logger.Debug("Gemini tools added to setup", "tool_count", len(s.Tools))
	}

	return map[string]any{"setup": setup}
}

func buildRealtimeInput(m live.Media) map[string]any {
	return map[string]any{
		"realtimeInput": map[string]any{
			"mediaChunks": []live.Media{m},
		},
	}
}

func buildTextMessage(text string) map[string]any {
	return map[string]any{
		"clientContent": map[string]any{
			"turns": []map[string]any{
				{"role": "user", "parts": []map[string]any{{"text": text}}},
			},
			"turnComplete": true,
		},
	}
}

type functionResponse struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

func buildToolResponse(responses []live.FunctionResponse) map[string]any {
	out := make([]functionResponse, len(responses))
	for i, r := range responses {
		out[i] = functionResponse{
			ID:       r.ID,
			Name:     r.Name,
			Response: map[string]any{"result": r.Result},
		}
	}
	return map[string]any{
		"toolResponse": map[string]any{"functionResponses": out},
	}
}

// logSetupMessage logs the setup message at debug level.
func logSetupMessage(setupMsg map[string]any) {
	if data, err := json.MarshalIndent(setupMsg, "", "  "); err == nil {
		logger.Debug("Gemini setup message", "setup", string(data))
	}
}
