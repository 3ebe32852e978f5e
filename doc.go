// Package gatekit implements a request security pipeline for HTTP
// services: IP filtering, rate limiting, bearer-token authentication,
// CSRF protection, input sanitization, and security response headers,
// composed into one ordered, short-circuiting middleware.
//
// A Pipeline is constructed explicitly from a Config and passed to
// request handlers; there is no process-wide default instance. Each
// pipeline owns its caches and background cleanup tasks and releases
// them on Close.
//
// # Quick Start
//
//	users := memory.New()
//	defer users.Stop()
//
//	p, err := gatekit.New(gatekit.Config{
//		JWT:       gatekit.JWTConfig{Secret: secret},
//		RateLimit: gatekit.RateLimitConfig{Window: time.Minute, MaxRequests: 100},
//		CSRF:      gatekit.CSRFConfig{Enabled: true},
//	}, users, users, nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer p.Close()
//
//	mux := http.NewServeMux()
//	mux.Handle("/api/", apiHandler)
//	http.ListenAndServe(":8080", p.Middleware(mux))
//
// Handlers behind the middleware read the request's security state with
// SecurityContextFrom and UserFromContext, and can be further guarded
// with p.RequirePermission and p.RequireRole.
package gatekit
