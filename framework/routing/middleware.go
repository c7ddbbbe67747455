package routing

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// RequestLogger logs one line per request at info level.
func RequestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Info("request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

// named middleware that manifests may refer to by string.
var named = map[string]func(http.Handler) http.Handler{
	"nocache":   middleware.NoCache,
	"realip":    middleware.RealIP,
	"recoverer": middleware.Recoverer,
	"requestid": middleware.RequestID,
	"compress":  middleware.Compress(5),
	"heartbeat": middleware.Heartbeat("/ping"),
}

// Named returns a built-in middleware by name.
func Named(name string) (func(http.Handler) http.Handler, error) {
	mw, ok := named[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("routing: unknown middleware %q", name)
	}
	return mw, nil
}
