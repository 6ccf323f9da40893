package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/AltairaLabs/roboshen/runtime/i18n"
	"github.com/AltairaLabs/roboshen/runtime/logger"
	"github.com/AltairaLabs/roboshen/runtime/media"
	"github.com/AltairaLabs/roboshen/runtime/session"
	"github.com/AltairaLabs/roboshen/runtime/transcript"
)

// entryRenderer turns transcript entries into terminal text. Code entries
// go through glamour; the renderer is rebuilt when the width changes.
type entryRenderer struct {
	printer *i18n.Printer
	width   int
	md      *glamour.TermRenderer
}

func newEntryRenderer(printer *i18n.Printer, width int) *entryRenderer {
	r := &entryRenderer{printer: printer}
	r.resize(width)
	return r
}

func (r *entryRenderer) resize(width int) {
	if width <= 0 {
		width = defaultWidth
	}
	if r.md != nil && width == r.width {
		return
	}
	r.width = width
	md, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width-4),
	)
	if err != nil {
		logger.Debug("markdown renderer unavailable", "error", err)
		r.md = nil
		return
	}
	r.md = md
}

// history renders entries in the order given (newest first).
func (r *entryRenderer) history(entries []transcript.Entry) string {
	parts := make([]string, 0, len(entries))
	for i := range entries {
		parts = append(parts, r.entry(&entries[i]))
	}
	return strings.Join(parts, "\n\n")
}

func (r *entryRenderer) entry(e *transcript.Entry) string {
	prefix := modelStyle.Render("RoboShen")
	if e.Role == transcript.RoleUser {
		prefix = userStyle.Render("You")
	}

	var body string
	switch e.Kind {
	case transcript.KindCode:
		body = r.code(e.Payload)
	case transcript.KindImage:
		body = imageStyle.Render(r.imageSummary(e.Payload))
	default:
		body = lipgloss.NewStyle().Width(r.width - 2).Render(e.Payload)
	}
	return prefix + "\n" + body
}

func (r *entryRenderer) code(markdown string) string {
	if r.md == nil {
		return markdown
	}
	out, err := r.md.Render(markdown)
	if err != nil {
		return markdown
	}
	return strings.TrimRight(out, "\n")
}

// imageSummary describes an image entry by its pixel size.
func (r *entryRenderer) imageSummary(dataURL string) string {
	w, h, err := media.Dimensions(dataURL)
	if err != nil {
		return r.printer.Text(i18n.ImageSummary, 0, 0)
	}
	return r.printer.Text(i18n.ImageSummary, w, h)
}

// errorCard renders the classified error with its remediation steps.
func errorCard(e *session.AppError, printer *i18n.Printer) string {
	var b strings.Builder
	b.WriteString(errorTitleStyle.Render(e.Title))
	b.WriteString("\n")
	b.WriteString(e.Message)
	for i, step := range e.Steps {
		b.WriteString("\n")
		b.WriteString(strings.Repeat(" ", 2))
		b.WriteString(printer.Text("%d. %s", i+1, step))
	}
	return errorBoxStyle.Render(b.String())
}
