package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ayusman/kathakali/internal/app"
	"github.com/ayusman/kathakali/internal/store"
	"github.com/rs/zerolog"
)

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestServer_Health(t *testing.T) {
	s := New(Config{Logger: zerolog.Nop()})

	rec := get(t, s, "/api/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}

	var body struct {
		Status string `json:"status"`
		Uptime string `json:"uptime"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Status != "ok" || body.Uptime == "" {
		t.Errorf("unexpected health body %+v", body)
	}

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(method, "/api/health", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s: expected status %d, got %d", method, http.StatusMethodNotAllowed, rec.Code)
		}
	}
}

func TestServer_RoutesFollowConfig(t *testing.T) {
	st, err := store.New(filepath.Join(t.TempDir(), "routes.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })
	a := app.New(app.Config{Logger: zerolog.Nop()})
	hub := NewPoseHub(zerolog.Nop())

	// /api/pose answers a plain GET with 400 (no upgrade) once mounted.
	paths := []string{"/api/sessions", "/api/mappings", "/api/status", "/api/tracking", "/api/channels", "/api/pose"}

	tests := []struct {
		name    string
		config  Config
		mounted map[string]bool
	}{
		{
			name:    "nothing configured",
			config:  Config{},
			mounted: map[string]bool{},
		},
		{
			name:    "store only",
			config:  Config{Store: st},
			mounted: map[string]bool{"/api/sessions": true, "/api/mappings": true},
		},
		{
			name:    "app only",
			config:  Config{App: a},
			mounted: map[string]bool{"/api/status": true, "/api/tracking": true, "/api/channels": true},
		},
		{
			name:    "hub only",
			config:  Config{Hub: hub},
			mounted: map[string]bool{"/api/pose": true},
		},
		{
			name:   "everything",
			config: Config{Store: st, App: a, Hub: hub},
			mounted: map[string]bool{
				"/api/sessions": true, "/api/mappings": true, "/api/status": true,
				"/api/tracking": true, "/api/channels": true, "/api/pose": true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.config.Logger = zerolog.Nop()
			s := New(tt.config)

			for _, path := range paths {
				code := get(t, s, path).Code
				if tt.mounted[path] && code == http.StatusNotFound {
					t.Errorf("%s: expected route to be mounted, got 404", path)
				}
				if !tt.mounted[path] && code != http.StatusNotFound {
					t.Errorf("%s: expected 404 without its dependency, got %d", path, code)
				}
			}
		})
	}
}

func TestServer_StaticFiles(t *testing.T) {
	dir := t.TempDir()
	index := "<html><body>kathakali</body></html>"
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte(index), 0644); err != nil {
		t.Fatalf("failed to write index.html: %v", err)
	}

	s := New(Config{StaticDir: dir, Logger: zerolog.Nop()})

	tests := []struct {
		path string
		code int
		body string
	}{
		{path: "/", code: http.StatusOK, body: index},
		{path: "/missing.js", code: http.StatusNotFound},
		{path: "/api/health", code: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := get(t, s, tt.path)
			if rec.Code != tt.code {
				t.Fatalf("expected status %d, got %d", tt.code, rec.Code)
			}
			if tt.body != "" && rec.Body.String() != tt.body {
				t.Errorf("expected body %q, got %q", tt.body, rec.Body.String())
			}
		})
	}

	if code := get(t, New(Config{}), "/").Code; code != http.StatusNotFound {
		t.Errorf("root without a static dir: expected 404, got %d", code)
	}
}

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := l.Addr().String()
	l.Close()
	return addr
}

func TestServer_ListenAndServe(t *testing.T) {
	t.Run("cancel shuts down cleanly", func(t *testing.T) {
		addr := freeAddr(t)
		s := New(Config{Logger: zerolog.Nop()})

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		errc := make(chan error, 1)
		go func() { errc <- s.ListenAndServe(ctx, addr) }()

		url := fmt.Sprintf("http://%s/api/health", addr)
		deadline := time.Now().Add(2 * time.Second)
		for {
			resp, err := http.Get(url)
			if err == nil {
				resp.Body.Close()
				if resp.StatusCode != http.StatusOK {
					t.Fatalf("health status = %d", resp.StatusCode)
				}
				break
			}
			if time.Now().After(deadline) {
				t.Fatalf("server never came up: %v", err)
			}
			time.Sleep(10 * time.Millisecond)
		}

		cancel()
		select {
		case err := <-errc:
			if err != nil {
				t.Errorf("ListenAndServe() after cancel = %v, want nil", err)
			}
		case <-time.After(6 * time.Second):
			t.Fatal("ListenAndServe did not return after cancel")
		}
	})

	t.Run("address in use is an error", func(t *testing.T) {
		l, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("listen: %v", err)
		}
		defer l.Close()

		s := New(Config{Logger: zerolog.Nop()})
		if err := s.ListenAndServe(t.Context(), l.Addr().String()); err == nil {
			t.Error("expected an error for an address already in use")
		}
	})
}
