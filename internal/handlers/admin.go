package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/vidcurate/backend/internal/gate"
	"github.com/vidcurate/backend/internal/logging"
)

// DefaultHeartbeatInterval spaces keep-alive comments on the session stream.
const DefaultHeartbeatInterval = 15 * time.Second

// AdminGate guards the admin area with a per-request gate.
type AdminGate struct {
	Sessions SessionManager
	Profiles ProfileReader

	// Heartbeat overrides DefaultHeartbeatInterval for the event stream.
	Heartbeat time.Duration
}

type verdictResponse struct {
	State    string `json:"state"`
	Redirect string `json:"redirect,omitempty"`
}

// redirectRecorder remembers the most recent redirect emitted by a gate.
type redirectRecorder struct {
	mu   sync.Mutex
	last gate.Redirect
}

func (n *redirectRecorder) Navigate(r gate.Redirect) {
	n.mu.Lock()
	n.last = r
	n.mu.Unlock()
}

func (n *redirectRecorder) Last() gate.Redirect {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.last
}

func (a AdminGate) newGate(ctx context.Context, r *http.Request, nav gate.Navigator, opts ...gate.Option) *gate.Gate {
	opts = append([]gate.Option{gate.WithLogger(logging.FromContext(ctx))}, opts...)
	return gate.New(a.Sessions.Source(ctx, bearerToken(r)), a.Profiles, nav, opts...)
}

// RequireAdmin runs next only for callers holding the admin role. Everyone
// else receives the redirect the gate decided on.
func (a AdminGate) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if !a.ready(w, r) {
			return
		}

		nav := &redirectRecorder{}
		_ = gate.Scope(ctx, a.newGate(ctx, r, nav), func(ctx context.Context, state gate.State) error {
			if state == gate.Authorized {
				next.ServeHTTP(w, r.WithContext(ctx))
				return nil
			}
			respondDenied(ctx, w, state, nav.Last())
			return nil
		})
	})
}

// Session handles GET /api/v1/admin/session and reports the caller's verdict.
func (a AdminGate) Session(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !a.ready(w, r) {
		return
	}

	nav := &redirectRecorder{}
	g := a.newGate(ctx, r, nav)
	defer g.Close()

	state := g.Evaluate(ctx)
	if state != gate.Authorized {
		respondDenied(ctx, w, state, nav.Last())
		return
	}
	respondJSON(ctx, w, http.StatusOK, verdictResponse{State: state.String()})
}

// Events handles GET /api/v1/admin/session/events. The verdict is streamed as
// server-sent events until the caller disconnects or is denied.
func (a AdminGate) Events(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)
	if !a.ready(w, r) {
		return
	}

	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		logger.Debug("clear write deadline", "error", err)
	}

	nav := &redirectRecorder{}
	verdicts := make(chan verdictResponse, 8)
	observe := func(state gate.State) {
		v := verdictResponse{State: state.String()}
		if state == gate.Denied {
			v.Redirect = nav.Last().Path()
		}
		select {
		case verdicts <- v:
		default:
			logger.Warn("session stream backlog full, dropping verdict", "state", v.State)
		}
	}

	g := a.newGate(ctx, r, nav, gate.WithObserver(observe))
	defer g.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		logger.Error("session stream unsupported", "error", err)
		return
	}

	g.Open(ctx)

	interval := a.Heartbeat
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case v := <-verdicts:
			if err := writeEvent(w, "verdict", v); err != nil {
				logger.Debug("session stream closed", "error", err)
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
			if v.State == gate.Denied.String() {
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

func (a AdminGate) ready(w http.ResponseWriter, r *http.Request) bool {
	if a.Sessions != nil && a.Profiles != nil {
		return true
	}
	ctx := r.Context()
	logging.FromContext(ctx).Error("admin gate dependencies unavailable",
		"hasSessions", a.Sessions != nil, "hasProfiles", a.Profiles != nil)
	respondError(ctx, w, http.StatusInternalServerError, "authorization services unavailable")
	return false
}

func respondDenied(ctx context.Context, w http.ResponseWriter, state gate.State, redirect gate.Redirect) {
	switch {
	case state == gate.Denied && redirect == gate.RedirectUnauthorized:
		respondJSON(ctx, w, http.StatusForbidden, errorResponse{
			Error: "admin role required", State: state.String(), Redirect: redirect.Path(),
		})
	case state == gate.Denied:
		respondJSON(ctx, w, http.StatusUnauthorized, errorResponse{
			Error: "authentication required", State: state.String(), Redirect: gate.RedirectSignIn.Path(),
		})
	default:
		respondJSON(ctx, w, http.StatusServiceUnavailable, errorResponse{
			Error: "authorization pending", State: state.String(),
		})
	}
}

func writeEvent(w http.ResponseWriter, name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	return err
}
