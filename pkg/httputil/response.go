package httputil

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

type envelope map[string]any

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write json response failed", slog.Any("err", err))
	}
}

// Error — унифицированная ошибка: {"error": {"message", "code", "meta"}}.
func Error(w http.ResponseWriter, status int, code, msg string, meta map[string]any) {
	body := envelope{
		"message": msg,
	}
	if code != "" {
		body["code"] = code
	}
	if len(meta) > 0 {
		body["meta"] = meta
	}
	JSON(w, status, envelope{"error": body})
}
