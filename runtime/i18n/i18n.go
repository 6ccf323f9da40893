// Package i18n holds the user-facing strings shown by the session and its
// front-ends. Persian is the default locale and English the only other one.
package i18n

import (
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys.
const (
	ErrorUnknownTitle    = "error.unknown.title"
	ErrorUnknownMessage  = "error.unknown.message"
	ErrorPermissionTitle = "error.permission.title"
	ErrorPermissionMsg   = "error.permission.message"
	ErrorServiceTitle    = "error.service.title"
	ErrorServiceMsg      = "error.service.message"
	ErrorDeviceTitle     = "error.device.title"
	ErrorDeviceMsg       = "error.device.message"
	ErrorTransportTitle  = "error.transport.title"
	ErrorTransportMsg    = "error.transport.message"
	ToolFailureNotice    = "tool.failure.notice"
	ToolNoContentNotice  = "tool.nocontent.notice"
	GreetingPrompt       = "session.greeting.prompt"
	DefaultPersonaPrompt = "session.persona.default"
	StateIdle            = "state.idle"
	StateConnecting      = "state.connecting"
	StateConnected       = "state.connected"
	StateError           = "state.error"
	HintStart            = "hint.start"
	HintRetry            = "hint.retry"
	HintConnected        = "hint.connected"
	ImageSummary         = "transcript.image.summary"
	ErrorPermissionSteps = "error.permission.step"
	ErrorServiceSteps    = "error.service.step"
	ErrorDeviceSteps     = "error.device.step"
	ErrorTransportSteps  = "error.transport.step"
)

var (
	// Persian is the default locale.
	Persian = language.Persian
	English = language.English

	supported = []language.Tag{Persian, English}
	matcher   = language.NewMatcher(supported)
)

// stepCounts records how many numbered lines each step list has. Step keys
// are "<prefix>.1", "<prefix>.2", ...
var stepCounts = map[string]int{
	ErrorPermissionSteps: 3,
	ErrorServiceSteps:    3,
	ErrorDeviceSteps:     3,
	ErrorTransportSteps:  2,
}

var dictionaries = map[language.Tag]map[string]string{
	Persian: {
		ErrorUnknownTitle:           "یک خطای ناشناخته رخ داد",
		ErrorUnknownMessage:         "متاسفانه مشکلی پیش آمده. لطفاً دوباره تلاش کنید.",
		ErrorPermissionTitle:        "دسترسی به میکروفون لازم است",
		ErrorPermissionMsg:          "برای شروع گفتگو، RoboShen نیاز به اجازه‌ی شما برای استفاده از میکروفون دارد.",
		ErrorPermissionSteps + ".1": "دسترسی برنامه به میکروفون را در تنظیمات سیستم فعال کنید.",
		ErrorPermissionSteps + ".2": "اگر دسترسی را رد کرده‌اید، برنامه را دوباره اجرا کنید.",
		ErrorPermissionSteps + ".3": "در تنظیمات حریم خصوصی سیستم، دسترسی ترمینال به میکروفون را بررسی کنید.",
		ErrorServiceTitle:           "خطا در ارتباط با سرور",
		ErrorServiceMsg:             "ارتباط با سرویس هوش مصنوعی برقرار نشد. این مشکل می‌تواند به دلایل زیر باشد:",
		ErrorServiceSteps + ".1":    "اتصال اینترنت خود را بررسی کنید.",
		ErrorServiceSteps + ".2":    "ممکن است سرویس به طور موقت در دسترس نباشد.",
		ErrorServiceSteps + ".3":    "کلید API استفاده شده ممکن است نامعتبر یا منقضی شده باشد.",
		ErrorDeviceTitle:            "میکروفون پیدا نشد",
		ErrorDeviceMsg:              "هیچ دستگاه ورودی صوتی (میکروفون) بر روی سیستم شما شناسایی نشد.",
		ErrorDeviceSteps + ".1":     "اطمینان حاصل کنید که میکروفون به درستی به دستگاه شما متصل است.",
		ErrorDeviceSteps + ".2":     "اگر از میکروفون خارجی استفاده می‌کنید، آن را جدا کرده و دوباره وصل کنید.",
		ErrorDeviceSteps + ".3":     "درایورهای صوتی خود را بررسی و به‌روزرسانی کنید.",
		ErrorTransportTitle:         "ارتباط قطع شد",
		ErrorTransportMsg:           "ارتباط با سرور هوش مصنوعی به طور ناگهانی قطع شد.",
		ErrorTransportSteps + ".1":  "اتصال اینترنت خود را بررسی کنید.",
		ErrorTransportSteps + ".2":  "برای ادامه، دکمه‌ی «تلاش مجدد» را بزنید.",
		ToolFailureNotice:           "متاسفانه در اجرای درخواست مشکلی پیش آمد.",
		ToolNoContentNotice:         "متاسفانه محتوایی برای نمایش پیدا نشد.",
		GreetingPrompt:              "سلام! خودت رو کوتاه و خودمونی معرفی کن.",
		DefaultPersonaPrompt:        "تو روبوشن هستی، یک هوش مصنوعی با شخصیتی بازیگوش، شوخ و کاملاً شبیه به انسان. اسمت \"شین\" هست. فارسی رو به صورت عامیانه و خودمونی صحبت کن، انگار که با یک دوست صمیمی حرف می‌زنی. برای هر درخواستی که نیاز به اطلاعات از اینترنت داره، حتما از ابزار جستجوت استفاده کن. اگر نتونستی پیدا کنی، خیلی راحت بگو که پیداش نکردم.",
		StateIdle:                   "خواب",
		StateConnecting:             "در حال اتصال...",
		StateConnected:              "متصل",
		StateError:                  "خطا",
		HintStart:                   "برای شروع Enter را بزنید",
		HintRetry:                   "برای تلاش مجدد Enter را بزنید",
		HintConnected:               "Space: قطع صحبت  q: خروج",
		ImageSummary:                "تصویر %d×%d",
	},
	English: {
		ErrorUnknownTitle:           "An unknown error occurred",
		ErrorUnknownMessage:         "Something went wrong. Please try again.",
		ErrorPermissionTitle:        "Microphone access is required",
		ErrorPermissionMsg:          "RoboShen needs permission to use your microphone to start a conversation.",
		ErrorPermissionSteps + ".1": "Allow microphone access for this application in your system settings.",
		ErrorPermissionSteps + ".2": "If you denied access, restart the application.",
		ErrorPermissionSteps + ".3": "Check your privacy settings for terminal microphone access.",
		ErrorServiceTitle:           "Could not reach the server",
		ErrorServiceMsg:             "The connection to the AI service could not be established. This may be because:",
		ErrorServiceSteps + ".1":    "Check your internet connection.",
		ErrorServiceSteps + ".2":    "The service may be temporarily unavailable.",
		ErrorServiceSteps + ".3":    "The API key in use may be invalid or expired.",
		ErrorDeviceTitle:            "Microphone not found",
		ErrorDeviceMsg:              "No audio input device (microphone) was detected on your system.",
		ErrorDeviceSteps + ".1":     "Make sure your microphone is properly connected.",
		ErrorDeviceSteps + ".2":     "If you use an external microphone, unplug it and plug it back in.",
		ErrorDeviceSteps + ".3":     "Check and update your audio drivers.",
		ErrorTransportTitle:         "Connection lost",
		ErrorTransportMsg:           "The connection to the AI server dropped unexpectedly.",
		ErrorTransportSteps + ".1":  "Check your internet connection.",
		ErrorTransportSteps + ".2":  "Press \"Retry\" to continue.",
		ToolFailureNotice:           "Sorry, something went wrong while running the request.",
		ToolNoContentNotice:         "Sorry, no content was found to display.",
		GreetingPrompt:              "Hi! Introduce yourself briefly and casually.",
		DefaultPersonaPrompt:        "You are RoboShen, a playful, witty and very human AI whose name is \"Shen\". Speak casually, like a close friend. Always use your search tool for anything that needs information from the internet. If you cannot find something, simply say so.",
		StateIdle:                   "Sleeping",
		StateConnecting:             "Connecting...",
		StateConnected:              "Connected",
		StateError:                  "Error",
		HintStart:                   "Press Enter to start",
		HintRetry:                   "Press Enter to retry",
		HintConnected:               "Space: interrupt  q: quit",
		ImageSummary:                "Image %d×%d",
	},
}

var defaultCatalog = buildCatalog()

func buildCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(Persian))
	for tag, dict := range dictionaries {
		for key, msg := range dict {
			// Keys and messages are static; SetString only fails on an invalid tag.
			_ = b.SetString(tag, key, msg)
		}
	}
	return b
}

// Catalog returns the built-in message catalog.
func Catalog() catalog.Catalog { return defaultCatalog }

// Match resolves a BCP 47 locale string to one of the supported tags.
// Empty or unparsable input selects Persian.
func Match(locale string) language.Tag {
	if locale == "" {
		return Persian
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return Persian
	}
	_, idx, conf := matcher.Match(tag)
	if conf == language.No {
		return Persian
	}
	return supported[idx]
}

// Printer renders catalog messages for one locale.
type Printer struct {
	tag language.Tag
	p   *message.Printer
}

// NewPrinter returns a printer for the locale, see Match.
func NewPrinter(locale string) *Printer {
	tag := Match(locale)
	return &Printer{tag: tag, p: message.NewPrinter(tag, message.Catalog(defaultCatalog))}
}

// Default returns a Persian printer.
func Default() *Printer { return NewPrinter("") }

// Tag reports the resolved locale.
func (p *Printer) Tag() language.Tag { return p.tag }

// Text renders key with optional format arguments.
func (p *Printer) Text(key string, args ...any) string {
	return p.p.Sprintf(key, args...)
}

// Steps renders a numbered step list. Unknown prefixes yield nil.
func (p *Printer) Steps(prefix string) []string {
	n := stepCounts[prefix]
	if n == 0 {
		return nil
	}
	out := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, p.p.Sprintf(prefix+"."+strconv.Itoa(i)))
	}
	return out
}
