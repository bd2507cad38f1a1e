package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger はアップストリームの疎通確認を行う。
type Pinger interface {
	Ping(ctx context.Context) error
}

// readyTimeout はレディネスチェックでアップストリームを待つ上限。
const readyTimeout = 3 * time.Second

// Health はプロセスの生存確認を返す。
// GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// NewReadyHandler はアップストリームへの疎通を確認するレディネスハンドラーを返す。
// GET /ready
func NewReadyHandler(pinger Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		if err := pinger.Ping(ctx); err != nil {
			slog.Warn("readiness check failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
