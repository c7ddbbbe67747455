package routing

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// ── Handlers ─────────────────────────────────────────────────────────────────

// JSON returns a handler that always responds with status and body as JSON.
//
//	router.Get("/health", routing.JSON(http.StatusOK, map[string]any{"ok": true}))
func JSON(status int, body any) http.HandlerFunc {
	payload, err := json.Marshal(body)
	return func(w http.ResponseWriter, r *http.Request) {
		if err != nil {
			http.Error(w, "routing: encode response: "+err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write(payload)
	}
}

// Text returns a handler that always responds with status and a plain text body.
func Text(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

// Redirect returns a handler that redirects every request to url.
func Redirect(status int, url string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, url, status)
	}
}

// handlerOf accepts the handler shapes a resolved instruction can take:
// an http.Handler, a plain handler func, or a string served as 200 text.
func handlerOf(v any) (http.Handler, error) {
	switch h := v.(type) {
	case http.Handler:
		return h, nil
	case func(http.ResponseWriter, *http.Request):
		return http.HandlerFunc(h), nil
	case string:
		return Text(http.StatusOK, h), nil
	}
	return nil, fmt.Errorf("routing: %T is not an http handler", v)
}

// middlewareOf accepts a middleware func or the name of a built-in one.
func middlewareOf(v any) (func(http.Handler) http.Handler, error) {
	switch mw := v.(type) {
	case func(http.Handler) http.Handler:
		return mw, nil
	case string:
		return Named(mw)
	}
	return nil, fmt.Errorf("routing: %T is not a middleware", v)
}
