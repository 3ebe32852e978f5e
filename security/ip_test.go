package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestFilter() *IPFilter {
	return NewIPFilter(100, time.Minute, nil)
}

func TestIPFilter_DefaultAllow(t *testing.T) {
	f := newTestFilter()

	if !f.Check("192.168.1.1") {
		t.Error("Check() should allow unknown IPs by default")
	}
}

func TestIPFilter_Denylist(t *testing.T) {
	f := newTestFilter()

	f.AddToDenylist("10.0.0.5")

	if f.Check("10.0.0.5") {
		t.Error("Check() should deny deny-listed IP")
	}
	if !f.Check("10.0.0.6") {
		t.Error("Check() should allow IPs not on the deny list")
	}
}

func TestIPFilter_AllowlistPrecedence(t *testing.T) {
	f := newTestFilter()

	// Present in both lists: allow-list wins.
	f.AddToDenylist("10.0.0.5")
	f.AddToAllowlist("10.0.0.5")

	if !f.Check("10.0.0.5") {
		t.Error("Check() should allow an IP on both lists (allow-list precedence)")
	}
}

func TestIPFilter_DeniedCacheSeededOnAdd(t *testing.T) {
	f := newTestFilter()

	f.AddToDenylist("10.0.0.5")

	if _, hit := f.deniedCache.Get("10.0.0.5"); !hit {
		t.Error("AddToDenylist() should seed the denied cache")
	}
}

func TestIPFilter_RemoveFromDenylist(t *testing.T) {
	f := newTestFilter()

	f.AddToDenylist("10.0.0.5")
	f.RemoveFromDenylist("10.0.0.5")

	if !f.Check("10.0.0.5") {
		t.Error("Check() should allow an IP after removal from the deny list")
	}
}

func TestIPFilter_ListSizes(t *testing.T) {
	f := newTestFilter()

	f.AddToAllowlist("1.1.1.1")
	f.AddToDenylist("2.2.2.2")
	f.AddToDenylist("3.3.3.3")

	allowed, denied := f.ListSizes()
	if allowed != 1 {
		t.Errorf("allowed size = %d, want 1", allowed)
	}
	if denied != 2 {
		t.Errorf("denied size = %d, want 2", denied)
	}
}

func TestGetClientIP_DirectConnection(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "203.0.113.7:4432"

	if got := GetClientIP(r, false, 0); got != "203.0.113.7" {
		t.Errorf("GetClientIP() = %q, want 203.0.113.7", got)
	}
}

func TestGetClientIP_UntrustedProxyIgnoresHeaders(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "203.0.113.7:4432"
	r.Header.Set("X-Forwarded-For", "198.51.100.9")

	if got := GetClientIP(r, false, 0); got != "203.0.113.7" {
		t.Errorf("GetClientIP() = %q, want RemoteAddr when proxy is untrusted", got)
	}
}

func TestGetClientIP_XForwardedFor(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	r.Header.Set("X-Forwarded-For", "198.51.100.9, 10.0.0.1")

	if got := GetClientIP(r, true, 1); got != "198.51.100.9" {
		t.Errorf("GetClientIP() = %q, want 198.51.100.9", got)
	}
}

func TestGetClientIP_XRealIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	r.Header.Set("X-Real-IP", "198.51.100.9")

	if got := GetClientIP(r, true, 1); got != "198.51.100.9" {
		t.Errorf("GetClientIP() = %q, want 198.51.100.9", got)
	}
}

func TestGetClientIP_InvalidHeaderFallsBack(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	r.Header.Set("X-Forwarded-For", "not-an-ip")

	if got := GetClientIP(r, true, 1); got != "10.0.0.1" {
		t.Errorf("GetClientIP() = %q, want RemoteAddr fallback", got)
	}
}
