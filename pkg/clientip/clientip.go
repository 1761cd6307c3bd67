package clientip

import (
	"net"
	"net/http"
	"strings"
)

// Proxy headers checked in priority order. CDN-set headers win over
// generic proxy headers because they cannot be spoofed past the edge.
var headers = []string{
	"CF-Connecting-IP",
	"DO-Connecting-IP",
	"X-Forwarded-For",
	"X-Real-IP",
}

// GetIP extracts the client IP address from the request, checking proxy
// headers before falling back to RemoteAddr. Invalid or unspecified
// addresses are skipped. If no header yields a valid IP and RemoteAddr
// cannot be parsed, the raw RemoteAddr string is returned as-is.
func GetIP(r *http.Request) string {
	for _, header := range headers {
		if ip := parseIP(r.Header.Get(header)); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if ip := parseIP(host); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

// parseIP validates a single header value. X-Forwarded-For may carry a
// comma-separated chain; the leftmost entry is the original client.
func parseIP(value string) string {
	value, _, _ = strings.Cut(value, ",")
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}

	ip := net.ParseIP(value)
	if ip == nil || ip.IsUnspecified() {
		return ""
	}
	return ip.String()
}
