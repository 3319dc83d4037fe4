package core

import (
	"net"
	"net/http"
	"strings"
)

var ipRequestHeaders = []string{
	"X-Client-Ip",
	"Cf-Connecting-Ip",
	"Do-Connecting-Ip",
	"Fastly-Client-Ip",
	"True-Client-Ip",
	"X-Real-Ip",
	"X-Cluster-Client-Ip",
	"X-Forwarded",
	"X-Forwarded-For",
	"Forwarded-For",
	"Forwarded",
	"X-Appengine-User-Ip",
	"Cf-Pseudo-IPv4",
}

func isCorrectIP(input string) bool {
	ip := net.ParseIP(input)
	return ip != nil && !ip.IsPrivate() && !ip.IsLoopback()
}

func getClientIPFromXForwardedFor(headers string) (string, bool) {
	if headers == "" {
		return "", false
	}
	for ip := range strings.SplitSeq(headers, ",") {
		if ip, _, _ := strings.Cut(strings.TrimSpace(ip), ":"); isCorrectIP(ip) {
			return ip, true
		}
	}
	return "", false
}

func GetRequestIP(r *http.Request) string {
	for _, header := range ipRequestHeaders {
		switch header {
		case "X-Forwarded-For":
			if host, ok := getClientIPFromXForwardedFor(r.Header.Get(header)); ok {
				return host
			}
		default:
			if host := r.Header.Get(header); isCorrectIP(host) {
				return host
			}
		}
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && isCorrectIP(host) {
		return host
	}

	return ""
}

func GetClientIP(r *http.Request) string {
	ip := r.URL.Query().Get("client_ip")
	if isCorrectIP(ip) {
		return ip
	}
	return GetRequestIP(r)
}

// ForwardIPHeaders produces the header set attached to outbound requests
// when a client IP has to travel upstream.
func ForwardIPHeaders(ip string) map[string]string {
	if !isCorrectIP(ip) {
		return nil
	}
	return map[string]string{
		"X-Client-Ip":     ip,
		"X-Forwarded-For": ip,
		"X-Real-Ip":       ip,
	}
}
