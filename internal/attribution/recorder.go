package attribution

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/digkill/CapCalWeb/internal/models"
)

// LocalIPHeader carries the client's self-reported LAN address when local IP
// discovery is enabled.
const LocalIPHeader = "X-Client-Local-IP"

type Sender interface {
	SaveAppInstall(ctx context.Context, event models.AttributionEvent) error
}

type PublicIPResolver interface {
	Resolve(ctx context.Context, clientAddr string) string
}

type Observer interface {
	AttributionRecorded(outcome string)
}

// LocalIPSource yields the localIp part of an attribution event.
type LocalIPSource interface {
	LocalIP(r *http.Request) string
}

type stubLocalIP string

func (s stubLocalIP) LocalIP(*http.Request) string { return string(s) }

type headerLocalIP struct {
	fallback string
}

func (h headerLocalIP) LocalIP(r *http.Request) string {
	value := strings.TrimSpace(r.Header.Get(LocalIPHeader))
	if ip := net.ParseIP(value); ip != nil {
		return ip.String()
	}
	return h.fallback
}

// NewLocalIPSource returns the constant stub unless discovery is enabled.
func NewLocalIPSource(discovery bool, stub string) LocalIPSource {
	if discovery {
		return headerLocalIP{fallback: stub}
	}
	return stubLocalIP(stub)
}

// DefaultTimeout bounds Record when no timeout is configured.
const DefaultTimeout = 4 * time.Second

// Recorder builds and sends one attribution event per qualifying visit.
type Recorder struct {
	sender   Sender
	resolver PublicIPResolver
	local    LocalIPSource
	observer Observer
	timeout  time.Duration
	log      *slog.Logger
}

func NewRecorder(sender Sender, resolver PublicIPResolver, local LocalIPSource, observer Observer, timeout time.Duration, log *slog.Logger) *Recorder {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Recorder{sender: sender, resolver: resolver, local: local, observer: observer, timeout: timeout, log: log}
}

// Record sends the event once within the recorder's timeout, of which address
// resolution may use at most half. A failed send is logged and counted only.
func (r *Recorder) Record(ctx context.Context, refCode string, req *http.Request) models.AttributionEvent {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	event := models.AttributionEvent{
		RefererID:  refCode,
		DeviceName: DeviceName(ParseUserAgent(req.UserAgent())),
		IPAddresses: models.IPAddresses{
			PublicIP: r.resolve(ctx, req.RemoteAddr),
			LocalIP:  r.local.LocalIP(req),
		},
	}

	outcome := "sent"
	if err := r.sender.SaveAppInstall(ctx, event); err != nil {
		outcome = "failed"
		r.log.Error("attribution event not sent", "ref", refCode, "err", err)
	} else {
		r.log.Info("attribution event sent",
			"ref", refCode,
			"device", event.DeviceName,
			"public_ip", event.IPAddresses.PublicIP,
			"local_ip", event.IPAddresses.LocalIP,
		)
	}
	if r.observer != nil {
		r.observer.AttributionRecorded(outcome)
	}
	return event
}

func (r *Recorder) resolve(ctx context.Context, clientAddr string) string {
	ctx, cancel := context.WithTimeout(ctx, r.timeout/2)
	defer cancel()
	return r.resolver.Resolve(ctx, clientAddr)
}
