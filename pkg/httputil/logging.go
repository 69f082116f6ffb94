package httputil

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cwrk-planet/realtime-service/pkg/logger"

	"github.com/go-chi/chi/v5/middleware"
)

const maxLoggedBody = 1 << 10

// MiddlewareLogging логирует метод, путь, статус, длительность и тело JSON-запроса.
// Логгер с req_id (из chi middleware.RequestID) кладётся в контекст, хендлеры берут его через logger.FromContext.
// Не оборачивать им /ws: logResponseWriter не поддерживает Hijack.
func MiddlewareLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		var reqBody string
		if strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "json") && r.Body != nil {
			b, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewReader(b))
			if len(b) > maxLoggedBody {
				b = b[:maxLoggedBody]
			}
			reqBody = string(b)
		}

		ctx, log := logger.With(r.Context(), "req_id", middleware.GetReqID(r.Context()))

		lrw := &logResponseWriter{ResponseWriter: w}
		next.ServeHTTP(lrw, r.WithContext(ctx))
		if lrw.status == 0 {
			lrw.status = http.StatusOK
		}

		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", lrw.status,
			"bytes", lrw.bytes,
			"duration", time.Since(start).String(),
			"req_body", reqBody,
		}
		for _, a := range logger.AttrsFromCtx(ctx) {
			attrs = append(attrs, a)
		}

		level := slog.LevelInfo
		if lrw.status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		log.Log(ctx, level, "http request", attrs...)
	})
}

type logResponseWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *logResponseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *logResponseWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n

	return n, err
}
