package gatekit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gatekit/gatekit/auth"
)

func gateRequest(t *testing.T, p *Pipeline, gate func(http.Handler) http.Handler, token string) *httptest.ResponseRecorder {
	t.Helper()

	handler := p.Middleware(gate(okHandler(t)))
	r := httptest.NewRequest(http.MethodGet, "/api/posts", nil)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)
	return rec
}

func TestRequirePermission(t *testing.T) {
	p, _ := newTestPipeline(t, nil)

	token, err := auth.IssueToken(testSecret, "user-1", "", "sess-1", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("unauthenticated", func(t *testing.T) {
		rec := gateRequest(t, p, p.RequirePermission("posts:write"), "")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
		if body := decodeErrorBody(t, rec); body["code"] != ErrorCodeMissingToken {
			t.Errorf("code = %v, want %s", body["code"], ErrorCodeMissingToken)
		}
	})

	t.Run("granted", func(t *testing.T) {
		rec := gateRequest(t, p, p.RequirePermission("posts:write"), token)
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("not granted", func(t *testing.T) {
		rec := gateRequest(t, p, p.RequirePermission("admin:delete"), token)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("status = %d, want 403", rec.Code)
		}
		if body := decodeErrorBody(t, rec); body["code"] != ErrorCodeInsufficientPermission {
			t.Errorf("code = %v, want %s", body["code"], ErrorCodeInsufficientPermission)
		}
	})
}

func TestRequireRole(t *testing.T) {
	p, _ := newTestPipeline(t, nil)

	token, err := auth.IssueToken(testSecret, "user-1", "", "sess-1", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("unauthenticated", func(t *testing.T) {
		rec := gateRequest(t, p, p.RequireRole("editor"), "")
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("granted", func(t *testing.T) {
		rec := gateRequest(t, p, p.RequireRole("editor"), token)
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("not granted", func(t *testing.T) {
		rec := gateRequest(t, p, p.RequireRole("admin"), token)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("status = %d, want 403", rec.Code)
		}
		if body := decodeErrorBody(t, rec); body["code"] != ErrorCodeInsufficientRole {
			t.Errorf("code = %v, want %s", body["code"], ErrorCodeInsufficientRole)
		}
	})
}

// A gate applied without the pipeline middleware sees no security
// context and must reject rather than pass unauthenticated traffic.
func TestGate_WithoutPipeline(t *testing.T) {
	p, _ := newTestPipeline(t, nil)

	handler := p.RequireRole("editor")(okHandler(t))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/posts", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}
