package attribution

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/digkill/CapCalWeb/internal/fetch"
)

// UnknownIP is reported when no lookup service answers.
const UnknownIP = "unknown"

// IPResolver finds the visitor's public address.
type IPResolver struct {
	services []string
	fetch    *fetch.Client
	log      *slog.Logger
}

// NewIPResolver takes lookup service URLs in priority order.
func NewIPResolver(services []string, fetcher *fetch.Client, log *slog.Logger) *IPResolver {
	return &IPResolver{services: services, fetch: fetcher, log: log}
}

// Resolve returns clientAddr when it is a public address, otherwise the first
// answer from the lookup services, otherwise UnknownIP. The services see this
// host's address rather than the visitor's, so they are only configured when
// the deployment shares its egress with visitors.
func (r *IPResolver) Resolve(ctx context.Context, clientAddr string) string {
	if ip := hostIP(clientAddr); ip != nil && isPublic(ip) {
		return ip.String()
	}
	return r.Lookup(ctx)
}

// Lookup asks each service in order and stops at the first usable answer.
// A failing service is not retried; the next one is tried instead.
func (r *IPResolver) Lookup(ctx context.Context) string {
	for _, service := range r.services {
		resp, err := r.fetch.Do(ctx, fetch.Request{
			Endpoint: "ipLookup",
			Method:   http.MethodGet,
			URL:      service,
			Once:     true,
		})
		if err != nil {
			if r.log != nil {
				r.log.Warn("ip lookup failed", "service", service, "err", err)
			}
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if ip := extractIP(resp.Body); ip != "" {
			return ip
		}
		if r.log != nil {
			r.log.Warn("ip lookup answered without address", "service", service, "body", fetch.TruncateBody(resp.Body))
		}
	}
	return UnknownIP
}

// extractIP understands the ip, query and ip_address shapes used by the
// common lookup services.
func extractIP(body []byte) string {
	var payload struct {
		IP        string `json:"ip"`
		Query     string `json:"query"`
		IPAddress string `json:"ip_address"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	for _, candidate := range []string{payload.IP, payload.Query, payload.IPAddress} {
		if candidate = strings.TrimSpace(candidate); candidate != "" {
			return candidate
		}
	}
	return ""
}

func hostIP(addr string) net.IP {
	addr = strings.TrimSpace(addr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	return net.ParseIP(strings.Trim(addr, "[]"))
}

func isPublic(ip net.IP) bool {
	return ip.IsGlobalUnicast() && !ip.IsPrivate() && !ip.IsLoopback()
}
