package security

import (
	"fmt"
	"net/http"
	"strings"
)

// HeadersConfig holds the response headers applied to every page.
type HeadersConfig struct {
	CSP string

	// HSTS is only sent over TLS.
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool

	FrameOptions      string
	ReferrerPolicy    string
	PermissionsPolicy string
	CrossOriginOpener string
}

// DefaultHeadersConfig allows only same-origin scripts and styles.
func DefaultHeadersConfig() HeadersConfig {
	csp := []string{
		"default-src 'self'",
		"script-src 'self'",
		"style-src 'self'",
		"img-src 'self' data:",
		"object-src 'none'",
		"frame-ancestors 'none'",
		"base-uri 'self'",
		"form-action 'self'",
	}
	return HeadersConfig{
		CSP:                   strings.Join(csp, "; "),
		HSTSMaxAge:            31536000,
		HSTSIncludeSubdomains: true,
		FrameOptions:          "DENY",
		ReferrerPolicy:        "same-origin",
		PermissionsPolicy:     "geolocation=(), microphone=(), camera=(), payment=()",
		CrossOriginOpener:     "same-origin",
	}
}

// Headers returns a middleware applying cfg to every response.
func Headers(cfg HeadersConfig) func(http.Handler) http.Handler {
	hsts := ""
	if cfg.HSTSMaxAge > 0 {
		hsts = fmt.Sprintf("max-age=%d", cfg.HSTSMaxAge)
		if cfg.HSTSIncludeSubdomains {
			hsts += "; includeSubDomains"
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			setIf(h, "Content-Security-Policy", cfg.CSP)
			setIf(h, "X-Frame-Options", cfg.FrameOptions)
			setIf(h, "Referrer-Policy", cfg.ReferrerPolicy)
			setIf(h, "Permissions-Policy", cfg.PermissionsPolicy)
			setIf(h, "Cross-Origin-Opener-Policy", cfg.CrossOriginOpener)
			if r.TLS != nil {
				setIf(h, "Strict-Transport-Security", hsts)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func setIf(h http.Header, key, value string) {
	if value != "" {
		h.Set(key, value)
	}
}

// StaticAssetMiddleware adds caching headers for static assets.
func StaticAssetMiddleware(maxAge int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if maxAge > 0 {
				w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", maxAge))
			}
			next.ServeHTTP(w, r)
		})
	}
}
