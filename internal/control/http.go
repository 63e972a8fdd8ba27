package control

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// NewHTTPHandler serves the read-only HTTP endpoints:
//
//	GET /status   engine status as JSON (no clipboard text)
//	GET /healthz  200 while the engine accepts requests
func (s *Service) NewHTTPHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
		st, err := s.eng.Status(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		rep := s.report(st, false)
		w.Header().Set("Content-Type", "application/json")
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			slog.Debug("http status write failed", "err", err)
		}
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.eng.Status(r.Context()); err != nil {
			http.Error(w, "stopped", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}
