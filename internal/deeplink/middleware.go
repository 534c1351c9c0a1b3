package deeplink

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/digkill/CapCalWeb/internal/models"
)

type Recorder interface {
	Record(ctx context.Context, refCode string, r *http.Request) models.AttributionEvent
}

type Observer interface {
	DeepLinkResolved(kind, platform string)
}

var skippedPrefixes = []string{"/api/", "/metrics", "/healthz", "/static/"}

// Middleware evaluates the deep-link rules once per page request. Invites are
// attributed and then redirected to the store; bare app links are redirected
// without attribution. Everything else falls through to the page.
func Middleware(router *Router, recorder Recorder, observer Observer, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet || skipped(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			decision := router.Inspect(location(r))
			platform := DetectPlatform(r.UserAgent())

			switch decision.Kind {
			case KindNone:
				next.ServeHTTP(w, r)
				return
			case KindInvalidInvite:
				log.Warn("invalid referral code", "code", decision.Code, "path", r.URL.Path)
				report(observer, decision.Kind, platform)
				next.ServeHTTP(w, r)
				return
			case KindInvite:
				recorder.Record(r.Context(), decision.Code, r)
			}
			report(observer, decision.Kind, platform)

			target := router.RedirectURL(platform)
			if target == "" {
				log.Info("deep link from unsupported device", "kind", decision.Kind.String(), "ua", r.UserAgent())
				next.ServeHTTP(w, r)
				return
			}
			http.Redirect(w, r, target, http.StatusFound)
		})
	}
}

func location(r *http.Request) string {
	loc := r.URL.Path
	if r.URL.RawQuery != "" {
		loc += "?" + r.URL.RawQuery
	}
	return loc
}

func skipped(path string) bool {
	for _, prefix := range skippedPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func report(observer Observer, kind Kind, platform Platform) {
	if observer != nil {
		observer.DeepLinkResolved(kind.String(), string(platform))
	}
}
