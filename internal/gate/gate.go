// Package gate decides whether the caller behind a session may enter the admin
// area. A Gate starts Pending, resolves to Authorized or Denied, and keeps
// re-deciding as the session provider reports sign-ins and sign-outs.
package gate

import (
	"context"
	"log/slog"
	"sync"

	"github.com/vidcurate/backend/internal/auth"
	"github.com/vidcurate/backend/internal/logging"
	"github.com/vidcurate/backend/internal/metrics"
	"github.com/vidcurate/backend/internal/models"
)

// State is the tri-state authorization verdict.
type State int

const (
	Pending State = iota
	Authorized
	Denied
)

func (s State) String() string {
	switch s {
	case Authorized:
		return "authorized"
	case Denied:
		return "denied"
	default:
		return "pending"
	}
}

// Redirect names where a denied caller should be sent.
type Redirect string

const (
	RedirectNone         Redirect = ""
	RedirectSignIn       Redirect = "sign_in"
	RedirectUnauthorized Redirect = "unauthorized"
)

// Path returns the UI route for the redirect.
func (r Redirect) Path() string {
	switch r {
	case RedirectSignIn:
		return "/login"
	case RedirectUnauthorized:
		return "/unauthorized"
	default:
		return ""
	}
}

// SessionProvider exposes the caller's session and its transitions.
type SessionProvider interface {
	CurrentSession(ctx context.Context) (*auth.Session, error)
	Subscribe(handler func(auth.Event)) auth.Subscription
}

// ProfileReader loads the authorization profile for a subject.
type ProfileReader interface {
	GetProfile(ctx context.Context, userID string) (models.Profile, error)
}

// Navigator receives one redirect per denial.
type Navigator interface {
	Navigate(Redirect)
}

// NavigatorFunc adapts a function to the Navigator interface.
type NavigatorFunc func(Redirect)

// Navigate implements Navigator.
func (f NavigatorFunc) Navigate(r Redirect) { f(r) }

// Option configures a Gate.
type Option func(*Gate)

// WithObserver registers fn to receive every committed state. fn must not
// block and must not call Close.
func WithObserver(fn func(State)) Option {
	return func(g *Gate) { g.observer = fn }
}

// WithLogger overrides the logger used for asynchronous re-checks.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// Gate is the admin-area authorization state machine.
//
// Every evaluation is tagged with a generation; a result is committed only if
// the gate is still alive and no newer evaluation or sign-out has started.
type Gate struct {
	sessions SessionProvider
	profiles ProfileReader
	nav      Navigator
	observer func(State)
	logger   *slog.Logger

	mu     sync.Mutex
	state  State
	gen    uint64
	alive  bool
	sub    auth.Subscription
	runCtx context.Context
	cancel context.CancelFunc

	// emitMu orders redirects and observer calls the same way commits are ordered.
	emitMu sync.Mutex

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New constructs a Pending gate.
func New(sessions SessionProvider, profiles ProfileReader, nav Navigator, opts ...Option) *Gate {
	if sessions == nil || profiles == nil {
		panic("gate: session provider and profile reader must not be nil")
	}
	g := &Gate{
		sessions: sessions,
		profiles: profiles,
		nav:      nav,
		logger:   slog.Default(),
		state:    Pending,
		alive:    true,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// State returns the current verdict.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Open subscribes to session transitions and runs the initial evaluation.
// Callers must call Close when the admin view goes away.
func (g *Gate) Open(ctx context.Context) State {
	g.mu.Lock()
	if !g.alive || g.sub != nil {
		state := g.state
		g.mu.Unlock()
		return state
	}
	g.runCtx, g.cancel = context.WithCancel(ctx)
	runCtx := g.runCtx
	g.mu.Unlock()

	sub := g.sessions.Subscribe(g.handle)

	g.mu.Lock()
	if !g.alive {
		g.mu.Unlock()
		sub.Unsubscribe()
		return g.State()
	}
	g.sub = sub
	g.mu.Unlock()

	return g.Evaluate(runCtx)
}

// Evaluate resolves the verdict from the current session and profile.
func (g *Gate) Evaluate(ctx context.Context) State {
	gen, ok := g.begin(false)
	if !ok {
		return g.State()
	}
	g.evaluate(ctx, gen)
	return g.State()
}

// Close tears the gate down. No state change or redirect is emitted once Close
// returns. Close is idempotent.
func (g *Gate) Close() {
	g.closeOnce.Do(func() {
		g.mu.Lock()
		g.alive = false
		sub := g.sub
		g.sub = nil
		cancel := g.cancel
		g.mu.Unlock()

		if sub != nil {
			sub.Unsubscribe()
		}
		if cancel != nil {
			cancel()
		}
		g.wg.Wait()

		// an emission that passed its liveness check before alive was cleared
		// finishes before Close returns
		g.emitMu.Lock()
		g.emitMu.Unlock()
	})
}

// Scope opens g, runs fn with the resulting state and always closes g, even
// when fn fails or panics.
func Scope(ctx context.Context, g *Gate, fn func(ctx context.Context, state State) error) error {
	defer g.Close()
	state := g.Open(ctx)
	return fn(ctx, state)
}

func (g *Gate) handle(event auth.Event) {
	switch event.Kind {
	case auth.EventSignedOut:
		gen, ok := g.begin(false)
		if !ok {
			return
		}
		g.logger.Info("session cleared, denying admin access", "sessionId", event.SessionID)
		g.commit(gen, Denied, RedirectSignIn)

	case auth.EventSignedIn:
		gen, ok := g.begin(true)
		if !ok {
			return
		}
		ctx := g.context()
		go func() {
			defer g.wg.Done()
			if event.Session == nil || event.Session.UserID == "" {
				g.evaluate(ctx, gen)
				return
			}
			g.checkRole(ctx, gen, event.Session.UserID)
		}()
	}
}

func (g *Gate) evaluate(ctx context.Context, gen uint64) {
	ctx, span := logging.StartSpan(ctx, "gate.evaluate")
	defer span.End()
	logger := logging.FromContext(ctx)

	session, err := g.sessions.CurrentSession(ctx)
	if err != nil {
		logger.Warn("session lookup failed", "error", err)
		g.commit(gen, Denied, RedirectSignIn)
		return
	}
	if session == nil {
		logger.Info("no active session")
		g.commit(gen, Denied, RedirectSignIn)
		return
	}

	g.checkRole(ctx, gen, session.UserID)
}

func (g *Gate) checkRole(ctx context.Context, gen uint64, userID string) {
	logger := logging.FromContext(ctx)

	profile, err := g.profiles.GetProfile(ctx, userID)
	if err != nil {
		logger.Warn("profile lookup failed", "userId", userID, "error", err)
		g.commit(gen, Denied, RedirectUnauthorized)
		return
	}
	if profile.Role != models.RoleAdmin {
		logger.Info("admin role required", "userId", userID, "role", string(profile.Role))
		g.commit(gen, Denied, RedirectUnauthorized)
		return
	}

	g.commit(gen, Authorized, RedirectNone)
}

// begin starts a new generation, superseding any evaluation still in flight.
// With async set it also registers a goroutine that Close will wait for.
func (g *Gate) begin(async bool) (uint64, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.alive {
		return 0, false
	}
	g.gen++
	if async {
		g.wg.Add(1)
	}
	return g.gen, true
}

func (g *Gate) commit(gen uint64, state State, redirect Redirect) bool {
	g.emitMu.Lock()
	defer g.emitMu.Unlock()

	g.mu.Lock()
	if !g.alive || gen != g.gen {
		g.mu.Unlock()
		return false
	}
	g.state = state
	g.mu.Unlock()

	label := string(redirect)
	if label == "" {
		label = "none"
	}
	metrics.GateVerdictsTotal.WithLabelValues(state.String(), label).Inc()

	if redirect != RedirectNone && g.nav != nil {
		g.nav.Navigate(redirect)
	}
	if g.observer != nil {
		g.observer(state)
	}
	return true
}

func (g *Gate) context() context.Context {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.runCtx != nil {
		return g.runCtx
	}
	return logging.WithLogger(context.Background(), g.logger)
}
