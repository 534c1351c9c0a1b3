package deeplink

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/digkill/CapCalWeb/internal/attribution"
	"github.com/digkill/CapCalWeb/internal/models"
	"github.com/digkill/CapCalWeb/pkg/logger"
)

const (
	androidUA = "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Mobile Safari/537.36"
	iPhoneUA  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1"
	desktopUA = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
	wpUA      = "Mozilla/5.0 (Mobile; Windows Phone 8.1; Android 4.0; ARM; Trident/7.0; Touch; rv:11.0; IEMobile/11.0; NOKIA; Lumia 930) like iPhone OS 7_0_3 Mac OS X AppleWebKit/537 (KHTML, like Gecko) Mobile Safari/537"
)

func testRouter() *Router {
	return NewRouter(Config{AppID: "com.mafooly.caloriai", AndroidPackage: "com.mafooly.caloriai", IOSAppID: "6747341703"})
}

func TestInspect(t *testing.T) {
	c := qt.New(t)
	r := testRouter()

	tests := []struct {
		location string
		want     Decision
	}{
		{"/com.mafooly.caloriai/invite/ABC123", Decision{Kind: KindInvite, Code: "ABC123"}},
		{"https://capcalai.com/com.mafooly.caloriai/invite/ABC123", Decision{Kind: KindInvite, Code: "ABC123"}},
		{"/com.mafooly.caloriai/invite/ABC123?utm_source=ig", Decision{Kind: KindInvite, Code: "ABC123"}},
		{"/com.mafooly.caloriai/invite/ ABC123 ", Decision{Kind: KindInvite, Code: "ABC123"}},
		{"/com.mafooly.caloriai/invite/", Decision{Kind: KindInvalidInvite}},
		{"/com.mafooly.caloriai/invite//", Decision{Kind: KindInvalidInvite, Code: "/"}},
		{"/com.mafooly.caloriai/invite/AB C123", Decision{Kind: KindInvalidInvite, Code: "AB C123"}},
		{"/com.mafooly.caloriai/invite/   ", Decision{Kind: KindInvalidInvite}},
		{"/com.mafooly.caloriai", Decision{Kind: KindOpenApp}},
		{"/open/com.mafooly.caloriai/invite", Decision{Kind: KindOpenApp}},
		{"/dashboard", Decision{Kind: KindNone}},
		{"/", Decision{Kind: KindNone}},
	}
	for _, test := range tests {
		c.Check(r.Inspect(test.location), qt.Equals, test.want, qt.Commentf("location %q", test.location))
	}
}

func TestInspectWithoutAppID(t *testing.T) {
	c := qt.New(t)
	r := NewRouter(Config{})
	c.Assert(r.Inspect("/invite/ABC"), qt.Equals, Decision{Kind: KindNone})
}

func TestDetectPlatform(t *testing.T) {
	c := qt.New(t)
	c.Assert(DetectPlatform(androidUA), qt.Equals, PlatformAndroid)
	c.Assert(DetectPlatform(iPhoneUA), qt.Equals, PlatformIOS)
	c.Assert(DetectPlatform("Mozilla/5.0 (iPad; CPU OS 16_0 like Mac OS X)"), qt.Equals, PlatformIOS)
	c.Assert(DetectPlatform(desktopUA), qt.Equals, PlatformOther)
	c.Assert(DetectPlatform(""), qt.Equals, PlatformOther)
	// Claims Android first, like the browser check it mirrors.
	c.Assert(DetectPlatform(wpUA), qt.Equals, PlatformAndroid)
	c.Assert(DetectPlatform("Mozilla/5.0 (compatible; MSIE 10.0; Windows Phone 8.0; IEMobile/10.0; like iPhone)"), qt.Equals, PlatformOther)
}

func TestRedirectURL(t *testing.T) {
	c := qt.New(t)
	r := testRouter()
	c.Assert(r.RedirectURL(PlatformAndroid), qt.Equals, "intent://details?id=com.mafooly.caloriai#Intent;scheme=market;package=com.android.vending;end")
	c.Assert(r.RedirectURL(PlatformIOS), qt.Equals, "itms-apps://apps.apple.com/app/id6747341703")
	c.Assert(r.RedirectURL(PlatformOther), qt.Equals, "")
}

type fakeRecorder struct {
	codes []string
}

func (f *fakeRecorder) Record(_ context.Context, code string, _ *http.Request) models.AttributionEvent {
	f.codes = append(f.codes, code)
	return models.AttributionEvent{RefererID: code}
}

func serve(rec *fakeRecorder, method, target, ua string) *httptest.ResponseRecorder {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("page"))
	})
	h := Middleware(testRouter(), rec, nil, logger.Discard())(next)
	req := httptest.NewRequest(method, target, nil)
	req.Header.Set("User-Agent", ua)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestMiddlewareInviteAndroid(t *testing.T) {
	c := qt.New(t)
	rec := &fakeRecorder{}
	w := serve(rec, http.MethodGet, "/com.mafooly.caloriai/invite/ABC123", androidUA)
	c.Assert(w.Code, qt.Equals, http.StatusFound)
	c.Assert(w.Header().Get("Location"), qt.Equals, "intent://details?id=com.mafooly.caloriai#Intent;scheme=market;package=com.android.vending;end")
	c.Assert(rec.codes, qt.DeepEquals, []string{"ABC123"})
}

type stalledSender struct{}

func (stalledSender) SaveAppInstall(ctx context.Context, _ models.AttributionEvent) error {
	<-ctx.Done()
	return ctx.Err()
}

type stalledResolver struct{}

func (stalledResolver) Resolve(ctx context.Context, _ string) string {
	<-ctx.Done()
	return attribution.UnknownIP
}

func TestMiddlewareRedirectsWhenCollaboratorsStall(t *testing.T) {
	c := qt.New(t)
	rec := attribution.NewRecorder(stalledSender{}, stalledResolver{}, attribution.NewLocalIPSource(false, "123456789"), nil, 50*time.Millisecond, logger.Discard())
	h := Middleware(testRouter(), rec, nil, logger.Discard())(http.NotFoundHandler())

	req := httptest.NewRequest(http.MethodGet, "/com.mafooly.caloriai/invite/ABC123", nil)
	req.Header.Set("User-Agent", iPhoneUA)
	w := httptest.NewRecorder()
	started := time.Now()
	h.ServeHTTP(w, req)

	c.Assert(time.Since(started) < time.Second, qt.IsTrue)
	c.Assert(w.Code, qt.Equals, http.StatusFound)
	c.Assert(w.Header().Get("Location"), qt.Equals, "itms-apps://apps.apple.com/app/id6747341703")
}

func TestMiddlewareInviteDesktopRendersPage(t *testing.T) {
	c := qt.New(t)
	rec := &fakeRecorder{}
	w := serve(rec, http.MethodGet, "/com.mafooly.caloriai/invite/ABC123", desktopUA)
	c.Assert(w.Code, qt.Equals, http.StatusOK)
	c.Assert(w.Body.String(), qt.Equals, "page")
	c.Assert(rec.codes, qt.DeepEquals, []string{"ABC123"})
}

func TestMiddlewareInvalidInviteSkipsAttribution(t *testing.T) {
	c := qt.New(t)
	rec := &fakeRecorder{}
	w := serve(rec, http.MethodGet, "/com.mafooly.caloriai/invite/", iPhoneUA)
	c.Assert(w.Code, qt.Equals, http.StatusOK)
	c.Assert(rec.codes, qt.HasLen, 0)

	w = serve(rec, http.MethodGet, "/com.mafooly.caloriai/invite/AB%20C", iPhoneUA)
	c.Assert(w.Code, qt.Equals, http.StatusOK)
	c.Assert(rec.codes, qt.HasLen, 0)
}

func TestMiddlewareOpenAppRedirectsWithoutAttribution(t *testing.T) {
	c := qt.New(t)
	rec := &fakeRecorder{}
	w := serve(rec, http.MethodGet, "/com.mafooly.caloriai", iPhoneUA)
	c.Assert(w.Code, qt.Equals, http.StatusFound)
	c.Assert(w.Header().Get("Location"), qt.Equals, "itms-apps://apps.apple.com/app/id6747341703")
	c.Assert(rec.codes, qt.HasLen, 0)
}

func TestMiddlewareIgnoresAPIAndPosts(t *testing.T) {
	c := qt.New(t)
	rec := &fakeRecorder{}
	w := serve(rec, http.MethodGet, "/api/v1/x?next=com.mafooly.caloriai/invite/ABC", androidUA)
	c.Assert(w.Code, qt.Equals, http.StatusOK)
	w = serve(rec, http.MethodPost, "/com.mafooly.caloriai/invite/ABC", androidUA)
	c.Assert(w.Code, qt.Equals, http.StatusOK)
	c.Assert(rec.codes, qt.HasLen, 0)
}
