package gemini

import (
	"encoding/json"
	"fmt"

	"github.com/AltairaLabs/roboshen/runtime/live"
	"github.com/AltairaLabs/roboshen/runtime/logger"
)

// serverMessage is BidiGenerateContentServerMessage.
type serverMessage struct {
	SetupComplete *struct{}      `json:"setupComplete,omitempty"`
	ServerContent *serverContent `json:"serverContent,omitempty"`
	ToolCall      *toolCall      `json:"toolCall,omitempty"`
	GoAway        *goAway        `json:"goAway,omitempty"`
	UsageMetadata *usageMetadata `json:"usageMetadata,omitempty"`
	Error         *apiError      `json:"error,omitempty"`
}

type usageMetadata struct {
	PromptTokenCount   int `json:"promptTokenCount,omitempty"`
	ResponseTokenCount int `json:"responseTokenCount,omitempty"`
	TotalTokenCount    int `json:"totalTokenCount,omitempty"`
}

type goAway struct {
	TimeLeft string `json:"timeLeft,omitempty"`
}

type toolCall struct {
	FunctionCalls []live.FunctionCall `json:"functionCalls,omitempty"`
}

type serverContent struct {
	ModelTurn           *content       `json:"modelTurn,omitempty"`
	TurnComplete        bool           `json:"turnComplete,omitempty"`
	Interrupted         bool           `json:"interrupted,omitempty"`
	InputTranscription  *transcription `json:"inputTranscription,omitempty"`
	OutputTranscription *transcription `json:"outputTranscription,omitempty"`
}

type transcription struct {
	Text string `json:"text,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts,omitempty"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *live.Media `json:"inlineData,omitempty"`
}

// apiError is the error object some failures carry in-band.
type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("gemini api error (code %d, status %s): %s", e.Code, e.Status, e.Message)
}

// decode maps one websocket message to live events. Messages with nothing
// actionable decode to no events.
func decode(data []byte) ([]live.Event, error) {
	var msg serverMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse server message: %w", err)
	}

	var events []live.Event
	if msg.SetupComplete != nil {
		events = append(events, live.Event{Type: live.EventOpen})
	}
	if msg.Error != nil {
		return append(events, live.Event{Type: live.EventError, Err: msg.Error}), nil
	}
	if msg.GoAway != nil {
		logger.Warn("Gemini Live session ending soon", "time_left", msg.GoAway.TimeLeft)
	}
	if msg.UsageMetadata != nil {
		logger.Debug("Gemini Live usage",
			"prompt_tokens", msg.UsageMetadata.PromptTokenCount,
			"response_tokens", msg.UsageMetadata.ResponseTokenCount)
	}

	out := toServerMessage(&msg)
	if !out.Empty() {
		events = append(events, live.Event{Type: live.EventMessage, Message: out})
	}
	return events, nil
}

func toServerMessage(msg *serverMessage) *live.ServerMessage {
	out := &live.ServerMessage{}
	if msg.ToolCall != nil {
		out.ToolCalls = msg.ToolCall.FunctionCalls
	}

	sc := msg.ServerContent
	if sc == nil {
		return out
	}
	out.Interrupted = sc.Interrupted
	out.TurnComplete = sc.TurnComplete
	if sc.InputTranscription != nil {
		out.InputTranscript = sc.InputTranscription.Text
	}
	if sc.OutputTranscription != nil {
		out.OutputTranscript = sc.OutputTranscription.Text
	}
	if sc.ModelTurn != nil {
		for _, p := range sc.ModelTurn.Parts {
			if p.InlineData != nil && p.InlineData.Data != "" {
				out.Audio = append(out.Audio, *p.InlineData)
			}
			out.Text += p.Text
		}
	}
	return out
}
