package intake

import (
	"net"
	"net/http"
	"strings"
)

const UnknownIP = "unknown"

// ClientIP resolves the caller address: first X-Forwarded-For hop, then the
// client-ip headers set by the function hosts, then the socket peer.
func ClientIP(h http.Header, remoteAddr string) string {
	if xff := h.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := stripPort(strings.TrimSpace(first)); ip != "" {
			return ip
		}
	}
	for _, name := range []string{"X-Client-IP", "Client-IP"} {
		if ip := stripPort(strings.TrimSpace(h.Get(name))); ip != "" {
			return ip
		}
	}
	if ip := stripPort(strings.TrimSpace(remoteAddr)); ip != "" {
		return ip
	}
	return UnknownIP
}

func stripPort(s string) string {
	if host, _, err := net.SplitHostPort(s); err == nil {
		return host
	}
	return s
}
