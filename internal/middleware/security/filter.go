// Package security provides HTTP middleware that rejects scanner traffic
// and oversized bodies before they reach the API handlers.
package security

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
)

// exemptPaths skip filtering
var exemptPaths = map[string]bool{
	"/health":  true,
	"/healthz": true,
	"/readyz":  true,
	"/metrics": true,
}

// blockedPrefixes are probes for files a verifier host must never serve:
// web-app admin panels, VCS metadata, env files and the hardhat project
// itself.
var blockedPrefixes = []string{
	"/.env",
	"/.git/",
	"/.contraverify/",
	"/.htaccess",
	"/.htpasswd",
	"/wp-",
	"/xmlrpc.php",
	"/phpmyadmin",
	"/phpinfo",
	"/cgi-bin/",
	"/web-inf/",
	"/server-status",
	"/hardhat.config",
	"/contraverify.toml",
	"/node_modules/",
}

// blockedFragments may appear anywhere in a path.
var blockedFragments = []string{
	"../",
	"..\\",
	"%00",
	"\x00",
}

// Blocked reports whether a request path looks like an attack. The path is
// checked as sent and after percent-decoding, up to twice.
func Blocked(rawPath string) bool {
	p := strings.ToLower(rawPath)
	for i := 0; i < 3; i++ {
		if blockedPath(p) {
			return true
		}
		decoded, err := url.PathUnescape(p)
		if err != nil || decoded == p {
			break
		}
		p = strings.ToLower(decoded)
	}
	return false
}

func blockedPath(p string) bool {
	for _, prefix := range blockedPrefixes {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	for _, frag := range blockedFragments {
		if strings.Contains(p, frag) {
			return true
		}
	}
	return false
}

// FilterMiddleware returns middleware that answers requests matching known
// attack patterns with a generic 400.
func FilterMiddleware(enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if exemptPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}
			if Blocked(r.URL.EscapedPath()) {
				writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid request")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}
