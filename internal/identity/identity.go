// Package identity resolves a caller's identity for rate limiting
// and audit logging, and hashes it for privacy-preserving storage.
package identity

import (
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const unknown = "unknown"

// Resolve determines the caller identity for req, preferring the
// configured header, then the first non-empty X-Forwarded-For token,
// then the direct peer address, falling back to "unknown".
func Resolve(req *http.Request, headerName string) string {
	if headerName != "" {
		if v := headerValue(req, headerName); v != "" {
			return v
		}
	}

	if forwarded := req.Header.Get("X-Forwarded-For"); forwarded != "" {
		for _, part := range strings.Split(forwarded, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				return trimmed
			}
		}
	}

	if req.RemoteAddr != "" {
		return peerIP(req.RemoteAddr)
	}

	return unknown
}

// RequestID reads the caller-supplied request id header, if any.
func RequestID(req *http.Request) string {
	return headerValue(req, "X-Request-Id")
}

func headerValue(req *http.Request, name string) string {
	return strings.TrimSpace(req.Header.Get(name))
}

func peerIP(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil && host != "" {
		return host
	}
	return remoteAddr
}

// Hash renders a stable 16-character lowercase hex digest of value,
// used to store identities in audit entries without retaining raw
// caller-identifying data.
func Hash(value string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(value))
}
