package resolver

import (
	"fmt"
	"net"
	"net/http"
	"time"
)

var privateRanges = mustParseCIDRs(
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"169.254.0.0/16",
	"100.64.0.0/10",
	"::1/128",
	"fc00::/7",
	"fe80::/10",
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	out := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic(err)
		}
		out = append(out, n)
	}
	return out
}

// isPrivateIP checks if an IP is in a private/reserved range
func isPrivateIP(ip net.IP) bool {
	if ip == nil {
		return false
	}
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified() {
		return true
	}
	for _, n := range privateRanges {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// guardedTransport refuses requests to hosts that resolve to private
// addresses. Embed URLs come from message text, so every outbound host is
// untrusted.
type guardedTransport struct {
	base         http.RoundTripper
	allowPrivate bool
}

func (t *guardedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !t.allowPrivate {
		host := req.URL.Hostname()
		addrs, err := net.DefaultResolver.LookupIPAddr(req.Context(), host)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve host: %w", err)
		}
		for _, a := range addrs {
			if isPrivateIP(a.IP) {
				return nil, fmt.Errorf("blocked request: %s resolves to private address %s", host, a.IP)
			}
		}
	}
	return t.base.RoundTrip(req)
}

// NewHTTPClient creates the outbound client used for media and preview
// fetches.
func NewHTTPClient(timeout time.Duration, allowPrivate bool) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &guardedTransport{
			base: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
			allowPrivate: allowPrivate,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}
}
