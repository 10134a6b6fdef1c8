// Package web serves fleet status over HTTP as JSON.
//
// The server is read-only: it renders snapshots produced by the caller and
// never mutates local or remote state. It exists so dashboards and scripts
// on other machines can poll one box instead of talking to the remote store
// themselves.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// AccountStatus is one account's row in a status snapshot.
type AccountStatus struct {
	Username string    `json:"username"`
	Active   bool      `json:"active"`
	Online   bool      `json:"online"`
	Status   string    `json:"status,omitempty"`
	LastSeen time.Time `json:"last_seen,omitempty"`
}

// Counts summarizes a snapshot.
type Counts struct {
	Online  int `json:"online"`
	Offline int `json:"offline"`
	Flagged int `json:"flagged"`
}

// Snapshot is the full status document served to clients.
type Snapshot struct {
	Hostname    string          `json:"hostname"`
	MachineID   string          `json:"machine_id"`
	GeneratedAt time.Time       `json:"generated_at"`
	DaemonAlive bool            `json:"daemon_alive"`
	DaemonAge   float64         `json:"daemon_age_seconds"`
	Counts      Counts          `json:"counts"`
	Accounts    []AccountStatus `json:"accounts"`
}

// SnapshotFunc produces the current fleet status.
type SnapshotFunc func(ctx context.Context) (*Snapshot, error)

// Server is the HTTP status server.
type Server struct {
	snapshot SnapshotFunc
	logf     func(format string, args ...interface{})
	httpSrv  *http.Server
}

// New creates a Server around the given snapshot source. logf may be nil.
func New(snapshot SnapshotFunc, logf func(format string, args ...interface{})) *Server {
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	return &Server{snapshot: snapshot, logf: logf}
}

// Handler returns the server's routes, wrapped with the standard headers.
// Exposed separately so tests can drive it through httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleStatus)
	mux.HandleFunc("/healthz", s.handleHealthz)
	return withCommonHeaders(mux)
}

// ListenAndServe blocks serving HTTP on addr until the context is canceled
// or the listener fails.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logf("status server listening on http://%s", addr)
		errCh <- s.httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpSrv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return fmt.Errorf("status server: %w", err)
	}
}

// withCommonHeaders stamps every response with CORS and cache headers.
// Status data is live; clients must not cache it, and the dashboard is
// expected to be fetched from arbitrary origins on the LAN.
func withCommonHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Cache-Control", "no-store")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap, err := s.snapshot(r.Context())
	if err != nil {
		s.logf("snapshot failed: %v", err)
		http.Error(w, "status unavailable", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		s.logf("encoding snapshot: %v", err)
	}
}
