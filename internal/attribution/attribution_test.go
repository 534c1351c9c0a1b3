package attribution

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/digkill/CapCalWeb/internal/fetch"
	"github.com/digkill/CapCalWeb/internal/models"
	"github.com/digkill/CapCalWeb/pkg/logger"
)

const iPhoneUA = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1"

func TestDeviceNameFallsBackToUnknown(t *testing.T) {
	c := qt.New(t)
	c.Assert(DeviceName(DeviceInfo{OSName: "Android", OSVersion: "14"}), qt.Equals, "UnknownAndroid14")
	c.Assert(DeviceName(DeviceInfo{}), qt.Equals, "Unknown")
	c.Assert(DeviceName(DeviceInfo{Vendor: "Samsung", Model: "SM-S918B", OSName: "Android", OSVersion: "14"}), qt.Equals, "SamsungSM-S918BAndroid14")
	c.Assert(DeviceName(DeviceInfo{Model: "Pixel 8"}), qt.Equals, "UnknownPixel 8")
}

func TestParseUserAgent(t *testing.T) {
	c := qt.New(t)
	info := ParseUserAgent(iPhoneUA)
	c.Assert(info.Vendor, qt.Equals, "Apple")
	c.Assert(info.OSName, qt.Equals, "iOS")
	c.Assert(info.OSVersion, qt.Matches, `17\.1.*`)

	c.Assert(ParseUserAgent(""), qt.Equals, DeviceInfo{})
	c.Assert(DeviceName(ParseUserAgent("curl/8.4.0")), qt.Matches, `Unknown.*`)
}

func TestExtractIP(t *testing.T) {
	c := qt.New(t)
	c.Assert(extractIP([]byte(`{"ip":"203.0.113.1"}`)), qt.Equals, "203.0.113.1")
	c.Assert(extractIP([]byte(`{"status":"success","query":"203.0.113.2"}`)), qt.Equals, "203.0.113.2")
	c.Assert(extractIP([]byte(`{"ip_address":"203.0.113.3"}`)), qt.Equals, "203.0.113.3")
	c.Assert(extractIP([]byte(`{"country":"NL"}`)), qt.Equals, "")
	c.Assert(extractIP([]byte(`not json`)), qt.Equals, "")
}

func newLookupFetcher() *fetch.Client {
	return fetch.NewClient(nil, fetch.Options{Attempts: 3, Delay: time.Millisecond, Timeout: time.Second})
}

func TestLookupFallsThroughServicesInOrder(t *testing.T) {
	c := qt.New(t)
	var firstCalls, secondCalls, thirdCalls int32
	first := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&firstCalls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer first.Close()
	second := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&secondCalls, 1)
		_, _ = io.WriteString(w, `{"query":"198.51.100.7"}`)
	}))
	defer second.Close()
	third := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&thirdCalls, 1)
		_, _ = io.WriteString(w, `{"ip":"192.0.2.1"}`)
	}))
	defer third.Close()

	r := NewIPResolver([]string{first.URL, second.URL, third.URL}, newLookupFetcher(), logger.Discard())
	c.Assert(r.Lookup(context.Background()), qt.Equals, "198.51.100.7")
	c.Assert(atomic.LoadInt32(&firstCalls), qt.Equals, int32(1))
	c.Assert(atomic.LoadInt32(&secondCalls), qt.Equals, int32(1))
	c.Assert(atomic.LoadInt32(&thirdCalls), qt.Equals, int32(0))
}

func TestLookupSentinelWhenAllFail(t *testing.T) {
	c := qt.New(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"message":"rate limited"}`)
	}))
	defer srv.Close()

	r := NewIPResolver([]string{srv.URL, "http://127.0.0.1:1/unreachable"}, newLookupFetcher(), logger.Discard())
	c.Assert(r.Lookup(context.Background()), qt.Equals, UnknownIP)
}

func TestResolvePrefersPublicClientAddress(t *testing.T) {
	c := qt.New(t)
	r := NewIPResolver(nil, newLookupFetcher(), logger.Discard())
	c.Assert(r.Resolve(context.Background(), "8.8.8.8:51234"), qt.Equals, "8.8.8.8")
	c.Assert(r.Resolve(context.Background(), "2001:4860:4860::8888"), qt.Equals, "2001:4860:4860::8888")
	// Without lookup services a private or loopback address stays unknown
	// instead of being replaced by this host's egress address.
	c.Assert(r.Resolve(context.Background(), "10.0.0.4:80"), qt.Equals, UnknownIP)
	c.Assert(r.Resolve(context.Background(), "127.0.0.1"), qt.Equals, UnknownIP)
}

func TestLocalIPSource(t *testing.T) {
	c := qt.New(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(LocalIPHeader, "192.168.1.20")

	c.Assert(NewLocalIPSource(false, "123456789").LocalIP(req), qt.Equals, "123456789")
	c.Assert(NewLocalIPSource(true, "123456789").LocalIP(req), qt.Equals, "192.168.1.20")

	req.Header.Set(LocalIPHeader, "not-an-ip")
	c.Assert(NewLocalIPSource(true, "123456789").LocalIP(req), qt.Equals, "123456789")
}

type fakeSender struct {
	events []models.AttributionEvent
	err    error
}

func (f *fakeSender) SaveAppInstall(_ context.Context, e models.AttributionEvent) error {
	f.events = append(f.events, e)
	return f.err
}

type fixedResolver string

func (f fixedResolver) Resolve(context.Context, string) string { return string(f) }

type countingObserver map[string]int

func (o countingObserver) AttributionRecorded(outcome string) { o[outcome]++ }

func TestRecorderSendsOnce(t *testing.T) {
	c := qt.New(t)
	sender := &fakeSender{}
	obs := countingObserver{}
	rec := NewRecorder(sender, fixedResolver("203.0.113.5"), NewLocalIPSource(false, "123456789"), obs, 0, logger.Discard())

	req := httptest.NewRequest(http.MethodGet, "/com.mafooly.caloriai/invite/ABC123", nil)
	req.Header.Set("User-Agent", iPhoneUA)
	event := rec.Record(context.Background(), "ABC123", req)

	c.Assert(sender.events, qt.HasLen, 1)
	c.Assert(sender.events[0], qt.DeepEquals, event)
	c.Assert(event.RefererID, qt.Equals, "ABC123")
	c.Assert(event.IPAddresses, qt.Equals, models.IPAddresses{PublicIP: "203.0.113.5", LocalIP: "123456789"})
	c.Assert(event.DeviceName, qt.Matches, `Apple.*iOS17\.1.*`)
	c.Assert(obs["sent"], qt.Equals, 1)
}

func TestRecorderSwallowsSendFailure(t *testing.T) {
	c := qt.New(t)
	sender := &fakeSender{err: errors.New("connection refused")}
	obs := countingObserver{}
	rec := NewRecorder(sender, fixedResolver(UnknownIP), NewLocalIPSource(false, "123456789"), obs, 0, logger.Discard())

	event := rec.Record(context.Background(), "XYZ", httptest.NewRequest(http.MethodGet, "/", nil))
	c.Assert(event.RefererID, qt.Equals, "XYZ")
	c.Assert(sender.events, qt.HasLen, 1)
	c.Assert(obs["failed"], qt.Equals, 1)
}

type slowResolver struct {
	deadline time.Time
}

func (s *slowResolver) Resolve(ctx context.Context, _ string) string {
	s.deadline, _ = ctx.Deadline()
	<-ctx.Done()
	return UnknownIP
}

type slowSender struct {
	liveOnEntry bool
	calls       int
}

func (s *slowSender) SaveAppInstall(ctx context.Context, _ models.AttributionEvent) error {
	s.calls++
	s.liveOnEntry = ctx.Err() == nil
	<-ctx.Done()
	return ctx.Err()
}

func TestRecorderBoundsSlowCollaborators(t *testing.T) {
	c := qt.New(t)
	resolver := &slowResolver{}
	sender := &slowSender{}
	obs := countingObserver{}
	const budget = 80 * time.Millisecond
	rec := NewRecorder(sender, resolver, NewLocalIPSource(false, "123456789"), obs, budget, logger.Discard())

	started := time.Now()
	event := rec.Record(context.Background(), "ABC123", httptest.NewRequest(http.MethodGet, "/", nil))
	elapsed := time.Since(started)

	c.Assert(elapsed < time.Second, qt.IsTrue, qt.Commentf("Record took %s", elapsed))
	c.Assert(resolver.deadline.Sub(started) <= budget/2+10*time.Millisecond, qt.IsTrue)
	c.Assert(event.IPAddresses.PublicIP, qt.Equals, UnknownIP)
	c.Assert(sender.calls, qt.Equals, 1)
	c.Assert(sender.liveOnEntry, qt.IsTrue)
	c.Assert(obs["failed"], qt.Equals, 1)
}

func TestNewRecorderDefaultsTimeout(t *testing.T) {
	c := qt.New(t)
	rec := NewRecorder(&fakeSender{}, fixedResolver(UnknownIP), NewLocalIPSource(false, ""), nil, 0, logger.Discard())
	c.Assert(rec.timeout, qt.Equals, DefaultTimeout)
}
