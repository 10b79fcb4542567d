package security

import (
	"fmt"
	"net"
	"net/http"
	"slices"
	"strings"
	"sync/atomic"

	applog "expenses/internal/log"
)

const maxURLLength = 2048

var (
	suspiciousPatterns = []string{
		"../", "..\\", ".env", "wp-admin", "phpmyadmin",
		"admin.php", "config.php", ".git", ".ssh",
		"eval(", "javascript:", "<script", "union select",
		"etc/passwd", "cmd.exe",
	}
	scannerAgents = []string{
		"sqlmap", "nmap", "nikto", "gobuster", "dirb", "masscan",
	}
	blockedMethods = []string{"TRACE", "TRACK", "DEBUG", "CONNECT"}
)

// Detector resolves client addresses and flags requests that look like
// probes. Flagged requests are logged; only blocked methods are refused.
type Detector struct {
	trustedProxies []*net.IPNet
	suspicious     atomic.Int64
}

// NewDetector trusts loopback and private networks to set forwarding headers.
func NewDetector() *Detector {
	d := &Detector{}
	for _, cidr := range []string{"127.0.0.0/8", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16", "::1/128"} {
		if err := d.AddTrustedProxy(cidr); err != nil {
			panic(err)
		}
	}
	return d
}

func (d *Detector) AddTrustedProxy(cidr string) error {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		return fmt.Errorf("invalid CIDR %s: %w", cidr, err)
	}
	d.trustedProxies = append(d.trustedProxies, network)
	return nil
}

// ClientIP returns the address of the client. Forwarding headers are only
// believed when the direct peer is a trusted proxy.
func (d *Detector) ClientIP(r *http.Request) string {
	directIP, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		directIP = r.RemoteAddr
	}
	parsed := net.ParseIP(directIP)
	if parsed == nil || !d.isTrustedProxy(parsed) {
		return directIP
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		first = strings.TrimSpace(first)
		if net.ParseIP(first) != nil {
			return first
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(xri) != nil {
		return xri
	}
	return directIP
}

func (d *Detector) isTrustedProxy(ip net.IP) bool {
	for _, network := range d.trustedProxies {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// Inspect returns why r looks suspicious, or "" when it does not.
func (d *Detector) Inspect(r *http.Request) string {
	reason := inspect(r)
	if reason != "" {
		d.suspicious.Add(1)
	}
	return reason
}

func inspect(r *http.Request) string {
	if slices.Contains(blockedMethods, r.Method) {
		return "method"
	}
	if len(r.URL.String()) > maxURLLength {
		return "url_length"
	}
	path := strings.ToLower(r.URL.Path)
	query := strings.ToLower(r.URL.RawQuery)
	for _, p := range suspiciousPatterns {
		if strings.Contains(path, p) || strings.Contains(query, p) {
			return "pattern"
		}
	}
	ua := strings.ToLower(r.Header.Get("User-Agent"))
	for _, a := range scannerAgents {
		if strings.Contains(ua, a) {
			return "user_agent"
		}
	}
	if strings.Count(r.Header.Get("X-Forwarded-For"), ",") > 5 {
		return "proxy_hops"
	}
	return ""
}

// SuspiciousRequests returns how many requests were flagged.
func (d *Detector) SuspiciousRequests() int64 {
	return d.suspicious.Load()
}

// Middleware logs flagged requests and refuses blocked methods.
func (d *Detector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reason := d.Inspect(r)
		if reason == "" {
			next.ServeHTTP(w, r)
			return
		}
		applog.FromContext(r.Context()).WithComponent(applog.ComponentSecurity).WarnContext(r.Context(), "Suspicious request",
			"reason", reason,
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldClientIP, d.ClientIP(r))
		if reason == "method" {
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		next.ServeHTTP(w, r)
	})
}
