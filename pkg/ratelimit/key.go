package ratelimit

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"
)

// maxKeyLength bounds key length so storage keys stay short.
const maxKeyLength = 64

// KeyFunc extracts the client key for a request. An empty key means the
// client could not be identified.
type KeyFunc func(*http.Request) string

// Composite joins the non-empty keys of fns with ":".
// Results longer than 64 chars are replaced by a 32 hex char SHA-256 prefix.
func Composite(fns ...KeyFunc) KeyFunc {
	return func(r *http.Request) string {
		parts := make([]string, 0, len(fns))
		for _, fn := range fns {
			if key := fn(r); key != "" {
				parts = append(parts, key)
			}
		}
		if len(parts) == 0 {
			return ""
		}
		return shorten(strings.Join(parts, ":"))
	}
}

func shorten(key string) string {
	if len(key) <= maxKeyLength {
		return key
	}
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:16])
}

// ClientIP keys by the client address: CF-Connecting-IP, then the first
// X-Forwarded-For entry, then X-Real-IP, then RemoteAddr.
func ClientIP() KeyFunc {
	return func(r *http.Request) string {
		ip := clientIP(r)
		if ip == "" {
			return ""
		}
		return "ip:" + ip
	}
}

func clientIP(r *http.Request) string {
	if ip := validIP(r.Header.Get("CF-Connecting-IP")); ip != "" {
		return ip
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := validIP(first); ip != "" {
			return ip
		}
	}
	if ip := validIP(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return validIP(host)
}

func validIP(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	ip := net.ParseIP(s)
	if ip == nil {
		return ""
	}
	return ip.String()
}

// AccountOrIP keys by account when accountID returns one, else by client IP.
func AccountOrIP(accountID func(*http.Request) string) KeyFunc {
	ipKey := ClientIP()
	return func(r *http.Request) string {
		if accountID != nil {
			if id := accountID(r); id != "" {
				return shorten("account:" + id)
			}
		}
		return ipKey(r)
	}
}
