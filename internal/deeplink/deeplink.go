package deeplink

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

type Kind int

const (
	KindNone Kind = iota
	KindInvite
	KindInvalidInvite
	KindOpenApp
)

func (k Kind) String() string {
	switch k {
	case KindInvite:
		return "invite"
	case KindInvalidInvite:
		return "invalid_invite"
	case KindOpenApp:
		return "open_app"
	default:
		return "none"
	}
}

type Platform string

const (
	PlatformAndroid Platform = "android"
	PlatformIOS     Platform = "ios"
	PlatformOther   Platform = "other"
)

// Decision is the outcome of inspecting one page location.
type Decision struct {
	Kind Kind
	Code string
}

type Config struct {
	AppID          string
	AndroidPackage string
	IOSAppID       string
}

// Router recognises app deep links of the form <app-id>/invite/<code>.
type Router struct {
	cfg         Config
	inviteToken string
}

func NewRouter(cfg Config) *Router {
	return &Router{cfg: cfg, inviteToken: cfg.AppID + "/invite/"}
}

// Inspect classifies a location string by substring search.
func (r *Router) Inspect(location string) Decision {
	if r.cfg.AppID == "" {
		return Decision{Kind: KindNone}
	}
	if idx := strings.LastIndex(location, r.inviteToken); idx >= 0 {
		raw := location[idx+len(r.inviteToken):]
		if cut := strings.IndexAny(raw, "?#"); cut >= 0 {
			raw = raw[:cut]
		}
		code := strings.TrimSpace(raw)
		if !ValidCode(code) {
			return Decision{Kind: KindInvalidInvite, Code: code}
		}
		return Decision{Kind: KindInvite, Code: code}
	}
	if strings.Contains(location, r.cfg.AppID) {
		return Decision{Kind: KindOpenApp}
	}
	return Decision{Kind: KindNone}
}

// ValidCode rejects empty codes, bare separators and embedded whitespace.
func ValidCode(code string) bool {
	if code == "" || strings.Trim(code, "/") == "" {
		return false
	}
	return strings.IndexFunc(code, unicode.IsSpace) < 0
}

var (
	androidPattern = regexp.MustCompile(`(?i)android`)
	iosPattern     = regexp.MustCompile(`iPad|iPhone|iPod`)
	// Windows Phone browsers also claim to be an iPhone.
	windowsPhonePattern = regexp.MustCompile(`(?i)windows phone|iemobile`)
)

func DetectPlatform(userAgent string) Platform {
	switch {
	case androidPattern.MatchString(userAgent):
		return PlatformAndroid
	case iosPattern.MatchString(userAgent) && !windowsPhonePattern.MatchString(userAgent):
		return PlatformIOS
	default:
		return PlatformOther
	}
}

// RedirectURL returns the store link for the platform, or "" when the
// platform has no app.
func (r *Router) RedirectURL(p Platform) string {
	switch p {
	case PlatformAndroid:
		return fmt.Sprintf("intent://details?id=%s#Intent;scheme=market;package=com.android.vending;end", r.cfg.AndroidPackage)
	case PlatformIOS:
		return fmt.Sprintf("itms-apps://apps.apple.com/app/id%s", r.cfg.IOSAppID)
	default:
		return ""
	}
}
