package i18n

import (
	"strings"
	"testing"

	"golang.org/x/text/language"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		in   string
		want language.Tag
	}{
		{"", Persian},
		{"fa", Persian},
		{"fa-IR", Persian},
		{"en", English},
		{"en-GB", English},
		{"not a tag!", Persian},
	}
	for _, tt := range tests {
		if got := Match(tt.in); got != tt.want {
			t.Errorf("Match(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestPrinter_Text(t *testing.T) {
	fa := Default()
	if got := fa.Text(ToolNoContentNotice); got != "متاسفانه محتوایی برای نمایش پیدا نشد." {
		t.Errorf("persian notice = %q", got)
	}
	if got := fa.Text(ErrorTransportTitle); got != "ارتباط قطع شد" {
		t.Errorf("persian transport title = %q", got)
	}

	en := NewPrinter("en")
	if got := en.Text(ToolFailureNotice); !strings.HasPrefix(got, "Sorry") {
		t.Errorf("english failure notice = %q", got)
	}
	if got := en.Text(ImageSummary, 640, 480); got != "Image 640×480" {
		t.Errorf("english image summary = %q", got)
	}
}

func TestPrinter_Steps(t *testing.T) {
	p := Default()
	for prefix, n := range stepCounts {
		steps := p.Steps(prefix)
		if len(steps) != n {
			t.Fatalf("%s: got %d steps, want %d", prefix, len(steps), n)
		}
		for i, s := range steps {
			if strings.HasPrefix(s, prefix) {
				t.Errorf("%s step %d not translated: %q", prefix, i+1, s)
			}
		}
	}
	if p.Steps("missing") != nil {
		t.Error("unknown prefix should yield nil")
	}
}

func TestDictionariesComplete(t *testing.T) {
	for key := range dictionaries[Persian] {
		if _, ok := dictionaries[English][key]; !ok {
			t.Errorf("english missing %q", key)
		}
	}
	for key := range dictionaries[English] {
		if _, ok := dictionaries[Persian][key]; !ok {
			t.Errorf("persian missing %q", key)
		}
	}
}
