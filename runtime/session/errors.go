package session

import (
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	pkgerrors "github.com/AltairaLabs/roboshen/pkg/errors"
	"github.com/AltairaLabs/roboshen/runtime/audio"
	"github.com/AltairaLabs/roboshen/runtime/i18n"
	"github.com/AltairaLabs/roboshen/runtime/live"
)

// ErrorKind classifies session failures for the user.
type ErrorKind string

// Error kinds.
const (
	ErrorUnknown            ErrorKind = "unknown"
	ErrorPermissionDenied   ErrorKind = "permission_denied"
	ErrorServiceUnreachable ErrorKind = "service_unreachable"
	ErrorDeviceNotFound     ErrorKind = "device_not_found"
	ErrorTransportDropped   ErrorKind = "transport_dropped"
)

// AppError is a classified failure ready to show: a localized title and
// message plus the remedy steps. AppErrors are immutable once built.
type AppError struct {
	Kind    ErrorKind
	Title   string
	Message string
	Steps   []string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return string(e.Kind) + ": " + e.Cause.Error()
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

type errorText struct {
	title, message, steps string
}

var errorTexts = map[ErrorKind]errorText{
	ErrorUnknown:            {i18n.ErrorUnknownTitle, i18n.ErrorUnknownMessage, ""},
	ErrorPermissionDenied:   {i18n.ErrorPermissionTitle, i18n.ErrorPermissionMsg, i18n.ErrorPermissionSteps},
	ErrorServiceUnreachable: {i18n.ErrorServiceTitle, i18n.ErrorServiceMsg, i18n.ErrorServiceSteps},
	ErrorDeviceNotFound:     {i18n.ErrorDeviceTitle, i18n.ErrorDeviceMsg, i18n.ErrorDeviceSteps},
	ErrorTransportDropped:   {i18n.ErrorTransportTitle, i18n.ErrorTransportMsg, i18n.ErrorTransportSteps},
}

// NewAppError builds a localized AppError of the given kind. A nil printer
// uses the default locale.
func NewAppError(kind ErrorKind, cause error, p *i18n.Printer) *AppError {
	if p == nil {
		p = i18n.Default()
	}
	text, ok := errorTexts[kind]
	if !ok {
		kind, text = ErrorUnknown, errorTexts[ErrorUnknown]
	}
	e := &AppError{
		Kind:    kind,
		Title:   p.Text(text.title),
		Message: p.Text(text.message),
		Cause:   cause,
	}
	if text.steps != "" {
		e.Steps = p.Steps(text.steps)
	}
	if kind == ErrorUnknown && cause != nil && cause.Error() != "" {
		e.Message = cause.Error()
	}
	return e
}

// Classify maps a raw acquisition failure onto an AppError. Typed errors
// are checked first, then the message text.
func Classify(err error, p *i18n.Printer) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return NewAppError(classify(err), err, p)
}

// TransportDropped wraps a failure of an open session.
func TransportDropped(err error, p *i18n.Printer) *AppError {
	return NewAppError(ErrorTransportDropped, err, p)
}

func classify(err error) ErrorKind {
	switch {
	case errors.Is(err, audio.ErrPermissionDenied):
		return ErrorPermissionDenied
	case errors.Is(err, audio.ErrDeviceNotFound):
		return ErrorDeviceNotFound
	case errors.Is(err, live.ErrUnreachable), errors.Is(err, websocket.ErrBadHandshake):
		return ErrorServiceUnreachable
	}

	switch pkgerrors.StatusCode(err) {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		return ErrorServiceUnreachable
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrorServiceUnreachable
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "permission", "notallowed"):
		return ErrorPermissionDenied
	case containsAny(msg, "api key", "400", "403", "network", "cors"):
		return ErrorServiceUnreachable
	case containsAny(msg, "device", "notfound"):
		return ErrorDeviceNotFound
	}
	return ErrorUnknown
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
