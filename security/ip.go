package security

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gatekit/gatekit/cache"
)

// IPFilter decides whether requests from an IP address are admitted.
// Precedence is fixed: allow-list membership always wins, then deny-list
// membership, then a TTL cache of recently confirmed denials, then the
// default of allowing. The filter itself has no failure path.
type IPFilter struct {
	mu        sync.RWMutex
	allowlist map[string]struct{}
	denylist  map[string]struct{}

	// deniedCache remembers confirmed-denied lookups so repeated requests
	// from a blocked address skip the deny-set scan.
	deniedCache *cache.Cache[string, bool]

	logger *slog.Logger
}

// NewIPFilter creates an IP filter. cacheSize bounds the denied-lookup
// cache; cacheTTL controls how long a confirmed denial is remembered.
func NewIPFilter(cacheSize int, cacheTTL time.Duration, logger *slog.Logger) *IPFilter {
	if logger == nil {
		logger = slog.Default()
	}
	return &IPFilter{
		allowlist:   make(map[string]struct{}),
		denylist:    make(map[string]struct{}),
		deniedCache: cache.New[string, bool](cacheSize, cacheTTL),
		logger:      logger,
	}
}

// Check reports whether the given IP is allowed.
func (f *IPFilter) Check(ip string) bool {
	f.mu.RLock()
	_, allowed := f.allowlist[ip]
	_, denied := f.denylist[ip]
	f.mu.RUnlock()

	// Allow-list membership overrides everything, including the deny-list.
	if allowed {
		return true
	}

	if denied {
		f.deniedCache.Set(ip, true)
		return false
	}

	if _, hit := f.deniedCache.Get(ip); hit {
		return false
	}

	return true
}

// AddToAllowlist admits the IP unconditionally on future checks.
func (f *IPFilter) AddToAllowlist(ip string) {
	f.mu.Lock()
	f.allowlist[ip] = struct{}{}
	f.mu.Unlock()

	f.logger.Info("IP added to allowlist", "ip", ip)
}

// AddToDenylist blocks the IP and seeds the denied cache so the next
// lookup is O(1) without scanning the deny set.
func (f *IPFilter) AddToDenylist(ip string) {
	f.mu.Lock()
	f.denylist[ip] = struct{}{}
	f.mu.Unlock()

	f.deniedCache.Set(ip, true)
	f.logger.Info("IP added to denylist", "ip", ip)
}

// RemoveFromDenylist unblocks the IP and clears its cached denial.
func (f *IPFilter) RemoveFromDenylist(ip string) {
	f.mu.Lock()
	delete(f.denylist, ip)
	f.mu.Unlock()

	f.deniedCache.Invalidate(ip)
}

// ListSizes returns the current allow-list and deny-list sizes for
// observability snapshots.
func (f *IPFilter) ListSizes() (allowed, denied int) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.allowlist), len(f.denylist)
}

// GetClientIP extracts the real client IP address from the request.
// Supports X-Forwarded-For and X-Real-IP headers when behind a proxy.
//
// SECURITY CONSIDERATIONS:
// - Only enable trustProxy when behind a trusted reverse proxy
// - X-Forwarded-For format: "client, proxy1, proxy2, ..."
// - trustedProxyCount specifies how many proxies to trust from the right
// - This prevents X-Forwarded-For spoofing in multi-proxy setups
func GetClientIP(r *http.Request, trustProxy bool, trustedProxyCount int) string {
	if trustProxy {
		if ip := extractIPFromXFF(r.Header.Get("X-Forwarded-For"), trustedProxyCount); ip != "" {
			return ip
		}
		if ip := extractIPFromXRealIP(r.Header.Get("X-Real-IP")); ip != "" {
			return ip
		}
	}
	return extractIPFromRemoteAddr(r.RemoteAddr)
}

// extractIPFromXFF parses the X-Forwarded-For header and extracts the
// client IP. The rightmost IPs are the trusted proxies we control, so the
// client sits at len(ips) - trustedProxyCount - 1.
func extractIPFromXFF(xff string, trustedProxyCount int) string {
	if xff == "" {
		return ""
	}

	ips := strings.Split(xff, ",")
	clientIP := strings.TrimSpace(ips[clientIPIndex(len(ips), trustedProxyCount)])

	if net.ParseIP(clientIP) != nil {
		return clientIP
	}
	return ""
}

// clientIPIndex determines the index of the client IP in the
// X-Forwarded-For list. A trustedProxyCount of 0 assumes one proxy.
// If there are not enough entries, the leftmost IP is used.
func clientIPIndex(numIPs, trustedProxyCount int) int {
	proxyCount := trustedProxyCount
	if proxyCount == 0 {
		proxyCount = 1
	}

	idx := numIPs - proxyCount - 1
	if idx < 0 {
		return 0
	}
	return idx
}

// extractIPFromXRealIP parses the X-Real-IP header (set by some proxies).
func extractIPFromXRealIP(xri string) string {
	if xri == "" {
		return ""
	}
	if net.ParseIP(xri) != nil {
		return xri
	}
	return ""
}

// extractIPFromRemoteAddr extracts the IP from RemoteAddr for direct connections.
func extractIPFromRemoteAddr(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
