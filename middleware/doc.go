// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and helper functions.

# Request Logging

Wrap handlers with request logging:

	mux.HandleFunc("GET /health", middleware.WithLogging(handler))

Logs completion with method, path, status and duration_ms.

# Tracing

WithTracing continues an incoming traceparent header and opens a server span
named after the route pattern, tagged with the post id when the route has one.

# Identity

RequireIdentity resolves the bearer token and stores the caller on the
request context, answering 401 when it is missing or invalid:

	mux.HandleFunc("POST /missions/{post}/start",
		middleware.RequireIdentity(resolver, h.Start))

	id, _ := middleware.IdentityFrom(r.Context())

# CORS Middleware

	server := http.Server{
		Handler: middleware.CORS(mux),
	}

Allows GET, POST and OPTIONS with Content-Type, Authorization,
X-Sweep-Secret and traceparent headers.

# JSON Helpers

	middleware.JSONResponse(w, http.StatusOK, data)
	middleware.ErrorResponse(w, http.StatusConflict, "message")

Error bodies carry server_now like every other response.

	var req models.DesignRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
*/
package middleware
