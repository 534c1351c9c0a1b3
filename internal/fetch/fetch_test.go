package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

type recordingObserver struct {
	outcomes []string
}

func (o *recordingObserver) ObserveCall(endpoint, outcome string, _ time.Duration) {
	o.outcomes = append(o.outcomes, endpoint+":"+outcome)
}

func newTestClient(obs Observer) *Client {
	return NewClient(nil, Options{
		Attempts: 3,
		Delay:    time.Millisecond,
		Timeout:  2 * time.Second,
		Observer: obs,
	})
}

func TestDoRetriesServerErrors(t *testing.T) {
	c := qt.New(t)
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "boom", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	obs := &recordingObserver{}
	resp, err := newTestClient(obs).Do(context.Background(), Request{Endpoint: "test", URL: srv.URL})
	c.Assert(err, qt.IsNil)
	c.Assert(string(resp.Body), qt.Equals, `{"ok":true}`)
	c.Assert(atomic.LoadInt32(&calls), qt.Equals, int32(3))
	c.Assert(obs.outcomes, qt.DeepEquals, []string{"test:ok"})
}

func TestDoDoesNotRetryClientErrors(t *testing.T) {
	c := qt.New(t)
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "duplicate code", http.StatusConflict)
	}))
	defer srv.Close()

	obs := &recordingObserver{}
	_, err := newTestClient(obs).Do(context.Background(), Request{Endpoint: "savePromoter", Method: http.MethodPost, URL: srv.URL, Body: map[string]string{"code": "X"}})

	var statusErr *StatusError
	c.Assert(errors.As(err, &statusErr), qt.IsTrue)
	c.Assert(statusErr.StatusCode, qt.Equals, http.StatusConflict)
	c.Assert(statusErr.Body, qt.Equals, "duplicate code")
	c.Assert(atomic.LoadInt32(&calls), qt.Equals, int32(1))
	c.Assert(obs.outcomes, qt.DeepEquals, []string{"savePromoter:status_error"})
}

func TestDoGivesUpAfterAttempts(t *testing.T) {
	c := qt.New(t)
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(nil).Do(context.Background(), Request{Endpoint: "report", URL: srv.URL})
	var statusErr *StatusError
	c.Assert(errors.As(err, &statusErr), qt.IsTrue)
	c.Assert(statusErr.StatusCode, qt.Equals, http.StatusServiceUnavailable)
	c.Assert(atomic.LoadInt32(&calls), qt.Equals, int32(3))
}

func TestDoOnceSendsSingleAttempt(t *testing.T) {
	c := qt.New(t)
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	obs := &recordingObserver{}
	_, err := newTestClient(obs).Do(context.Background(), Request{Endpoint: "saveAppInstall", Method: http.MethodPost, URL: srv.URL, Body: map[string]string{"refererId": "X"}, Once: true})
	var statusErr *StatusError
	c.Assert(errors.As(err, &statusErr), qt.IsTrue)
	c.Assert(statusErr.StatusCode, qt.Equals, http.StatusBadGateway)
	c.Assert(atomic.LoadInt32(&calls), qt.Equals, int32(1))
	c.Assert(obs.outcomes, qt.DeepEquals, []string{"saveAppInstall:status_error"})
}

func TestDoTransportError(t *testing.T) {
	c := qt.New(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	obs := &recordingObserver{}
	_, err := newTestClient(obs).Do(context.Background(), Request{Endpoint: "report", URL: addr})
	c.Assert(err, qt.Not(qt.IsNil))
	var statusErr *StatusError
	c.Assert(errors.As(err, &statusErr), qt.IsFalse)
	c.Assert(obs.outcomes, qt.DeepEquals, []string{"report:transport_error"})
}

func TestDoJSONSendsBodyAndQuery(t *testing.T) {
	c := qt.New(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"contentType": r.Header.Get("Content-Type"),
			"page":        r.URL.Query().Get("page"),
			"name":        in["name"],
		})
	}))
	defer srv.Close()

	var out map[string]string
	err := newTestClient(nil).DoJSON(context.Background(), Request{
		Endpoint: "echo",
		Method:   http.MethodPost,
		URL:      srv.URL,
		Query:    url.Values{"page": {"2"}},
		Body:     map[string]string{"name": "Ana"},
	}, &out)
	c.Assert(err, qt.IsNil)
	c.Assert(out, qt.DeepEquals, map[string]string{
		"contentType": "application/json",
		"page":        "2",
		"name":        "Ana",
	})
}

func TestDoRejectsRelativeURL(t *testing.T) {
	c := qt.New(t)
	_, err := newTestClient(nil).Do(context.Background(), Request{Endpoint: "bad", URL: "/listPromoters"})
	c.Assert(err, qt.ErrorMatches, `bad url: absolute url required.*`)
}

func TestTruncateBody(t *testing.T) {
	c := qt.New(t)
	long := make([]byte, 600)
	for i := range long {
		long[i] = 'a'
	}
	c.Assert(len(TruncateBody(long)), qt.Equals, 512+len("…"))
	c.Assert(TruncateBody([]byte("  short \n")), qt.Equals, "short")
}
