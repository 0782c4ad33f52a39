package llm

import (
	"net/netip"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

// checkBaseURL accepts https endpoints on public hosts. With allowLocal, plain
// http and loopback or private network hosts are accepted too, which is what
// self-hosted OpenAI compatible servers need.
func checkBaseURL(raw string, allowLocal bool) error {
	u, err := url.Parse(raw)
	if err != nil {
		return errors.Wrap(err, "invalid base url")
	}

	switch u.Scheme {
	case "https":
	case "http":
		if !allowLocal {
			return errors.Errorf("base url %q: plain http requires allowing local endpoints", raw)
		}
	default:
		return errors.Errorf("base url %q: unsupported scheme %q", raw, u.Scheme)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return errors.Errorf("base url %q has no host", raw)
	}
	if isUnroutable(host) {
		return errors.Errorf("base url %q is not a unicast address", raw)
	}
	if !allowLocal && isLocalHost(host) {
		return errors.Errorf("base url %q points at the local network", raw)
	}
	return nil
}

// isUnroutable matches unspecified and multicast addresses, which are never a
// valid endpoint.
func isUnroutable(host string) bool {
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	return addr.IsUnspecified() || addr.IsMulticast()
}

func isLocalHost(host string) bool {
	if host == "localhost" || strings.HasSuffix(host, ".localhost") || strings.HasSuffix(host, ".local") {
		return true
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		// a DNS name; not resolved here
		return false
	}
	if addr.Zone() != "" {
		return true
	}
	addr = addr.Unmap()
	return addr.IsLoopback() || addr.IsPrivate() || addr.IsLinkLocalUnicast()
}
