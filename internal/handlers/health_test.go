package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name   string
		checks map[string]Pinger
		want   int
		status string
	}{
		{name: "no checks", want: http.StatusOK, status: "ok"},
		{
			name:   "healthy database",
			checks: map[string]Pinger{"database": pingFunc(func(context.Context) error { return nil })},
			want:   http.StatusOK,
			status: "ok",
		},
		{
			name:   "database down",
			checks: map[string]Pinger{"database": pingFunc(func(context.Context) error { return errors.New("dial tcp: refused") })},
			want:   http.StatusServiceUnavailable,
			status: "degraded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			HealthHandler{Checks: tt.checks}.Handle(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			if rec.Code != tt.want {
				t.Fatalf("expected status %d, got %d", tt.want, rec.Code)
			}
			body := decodeBody[map[string]string](t, rec)
			if body["status"] != tt.status {
				t.Fatalf("expected status %q, got %v", tt.status, body)
			}
		})
	}
}
