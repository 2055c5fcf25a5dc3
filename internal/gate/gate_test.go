package gate

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/vidcurate/backend/internal/auth"
	"github.com/vidcurate/backend/internal/models"
	"github.com/vidcurate/backend/internal/repositories"
)

type fakeSessions struct {
	mu           sync.Mutex
	session      *auth.Session
	err          error
	handlers     map[int]func(auth.Event)
	next         int
	unsubscribes int
}

func newFakeSessions(userID string) *fakeSessions {
	f := &fakeSessions{handlers: make(map[int]func(auth.Event))}
	if userID != "" {
		f.session = &auth.Session{ID: "sess-1", UserID: userID}
	}
	return f
}

func (f *fakeSessions) CurrentSession(context.Context) (*auth.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session, f.err
}

func (f *fakeSessions) Subscribe(handler func(auth.Event)) auth.Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.next
	f.next++
	f.handlers[id] = handler
	return subscriptionFunc(func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if _, ok := f.handlers[id]; ok {
			delete(f.handlers, id)
			f.unsubscribes++
		}
	})
}

func (f *fakeSessions) emit(event auth.Event) {
	f.mu.Lock()
	handlers := make([]func(auth.Event), 0, len(f.handlers))
	for _, h := range f.handlers {
		handlers = append(handlers, h)
	}
	f.mu.Unlock()
	for _, h := range handlers {
		h(event)
	}
}

func (f *fakeSessions) subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers)
}

type subscriptionFunc func()

func (s subscriptionFunc) Unsubscribe() { s() }

type fakeProfiles struct {
	mu     sync.Mutex
	roles  map[string]models.Role
	err    error
	holds  map[string]chan struct{}
	called chan string
}

func newFakeProfiles(roles map[string]models.Role) *fakeProfiles {
	return &fakeProfiles{roles: roles, holds: make(map[string]chan struct{}), called: make(chan string, 16)}
}

func (f *fakeProfiles) hold(userID string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.holds[userID] = ch
	return ch
}

func (f *fakeProfiles) GetProfile(ctx context.Context, userID string) (models.Profile, error) {
	f.mu.Lock()
	hold := f.holds[userID]
	role, ok := f.roles[userID]
	err := f.err
	f.mu.Unlock()

	f.called <- userID
	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return models.Profile{}, ctx.Err()
		}
	}
	if err != nil {
		return models.Profile{}, err
	}
	if !ok {
		return models.Profile{}, repositories.ErrNotFound
	}
	return models.Profile{UserID: userID, Role: role}, nil
}

type recordingNavigator struct {
	mu        sync.Mutex
	redirects []Redirect
}

func (n *recordingNavigator) Navigate(r Redirect) {
	n.mu.Lock()
	n.redirects = append(n.redirects, r)
	n.mu.Unlock()
}

func (n *recordingNavigator) all() []Redirect {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Redirect(nil), n.redirects...)
}

func waitForState(t *testing.T, g *Gate, want State) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for g.State() != want {
		if time.Now().After(deadline) {
			t.Fatalf("state = %s, want %s", g.State(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func expectRedirects(t *testing.T, nav *recordingNavigator, want ...Redirect) {
	t.Helper()
	if got := nav.all(); !slices.Equal(got, want) {
		t.Fatalf("redirects = %v, want %v", got, want)
	}
}

func expectCalled(t *testing.T, profiles *fakeProfiles, userID string) {
	t.Helper()
	select {
	case got := <-profiles.called:
		if got != userID {
			t.Fatalf("profile lookup for %q, want %q", got, userID)
		}
	case <-time.After(time.Second):
		t.Fatalf("no profile lookup for %q", userID)
	}
}

func TestEvaluateScenarios(t *testing.T) {
	cases := []struct {
		name         string
		userID       string
		sessionErr   error
		roles        map[string]models.Role
		profileErr   error
		wantState    State
		wantRedirect []Redirect
	}{
		{name: "admin", userID: "u-admin", roles: map[string]models.Role{"u-admin": models.RoleAdmin}, wantState: Authorized},
		{name: "member", userID: "u-member", roles: map[string]models.Role{"u-member": models.RoleMember}, wantState: Denied, wantRedirect: []Redirect{RedirectUnauthorized}},
		{name: "unknown role", userID: "u-x", roles: map[string]models.Role{"u-x": models.RoleUnknown}, wantState: Denied, wantRedirect: []Redirect{RedirectUnauthorized}},
		{name: "no session", wantState: Denied, wantRedirect: []Redirect{RedirectSignIn}},
		{name: "session error", userID: "u-admin", sessionErr: errors.New("provider down"), roles: map[string]models.Role{"u-admin": models.RoleAdmin}, wantState: Denied, wantRedirect: []Redirect{RedirectSignIn}},
		{name: "missing profile", userID: "u-ghost", roles: map[string]models.Role{}, wantState: Denied, wantRedirect: []Redirect{RedirectUnauthorized}},
		{name: "profile error", userID: "u-admin", roles: map[string]models.Role{"u-admin": models.RoleAdmin}, profileErr: errors.New("store down"), wantState: Denied, wantRedirect: []Redirect{RedirectUnauthorized}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sessions := newFakeSessions(tc.userID)
			sessions.err = tc.sessionErr
			profiles := newFakeProfiles(tc.roles)
			profiles.err = tc.profileErr
			nav := &recordingNavigator{}

			g := New(sessions, profiles, nav)
			if got := g.State(); got != Pending {
				t.Fatalf("initial state = %s, want pending", got)
			}

			if got := g.Evaluate(context.Background()); got != tc.wantState {
				t.Fatalf("Evaluate() = %s, want %s", got, tc.wantState)
			}
			expectRedirects(t, nav, tc.wantRedirect...)
		})
	}
}

func TestSignOutDeniesImmediately(t *testing.T) {
	sessions := newFakeSessions("u-admin")
	profiles := newFakeProfiles(map[string]models.Role{"u-admin": models.RoleAdmin})
	nav := &recordingNavigator{}

	g := New(sessions, profiles, nav)
	defer g.Close()

	if got := g.Open(context.Background()); got != Authorized {
		t.Fatalf("Open() = %s, want authorized", got)
	}

	sessions.emit(auth.Event{Kind: auth.EventSignedOut, SessionID: "sess-1"})

	if got := g.State(); got != Denied {
		t.Fatalf("state after sign-out = %s, want denied", got)
	}
	expectRedirects(t, nav, RedirectSignIn)
}

func TestDeniedOnlyLeftThroughSignIn(t *testing.T) {
	sessions := newFakeSessions("")
	profiles := newFakeProfiles(map[string]models.Role{"u-admin": models.RoleAdmin})
	nav := &recordingNavigator{}

	g := New(sessions, profiles, nav)
	defer g.Close()

	if got := g.Open(context.Background()); got != Denied {
		t.Fatalf("Open() = %s, want denied", got)
	}
	sessions.mu.Lock()
	sessions.session = &auth.Session{ID: "sess-1", UserID: "u-admin"}
	sessions.mu.Unlock()
	if got := g.State(); got != Denied {
		t.Fatalf("state without sign-in event = %s, want denied", got)
	}

	sessions.emit(auth.Event{Kind: auth.EventSignedIn, SessionID: "sess-1", Session: &auth.Session{ID: "sess-1", UserID: "u-admin"}})

	waitForState(t, g, Authorized)
	expectRedirects(t, nav, RedirectSignIn)
}

func TestSignInWithoutPayloadReevaluates(t *testing.T) {
	sessions := newFakeSessions("u-admin")
	profiles := newFakeProfiles(map[string]models.Role{"u-admin": models.RoleMember})
	nav := &recordingNavigator{}

	g := New(sessions, profiles, nav)
	defer g.Close()

	if got := g.Open(context.Background()); got != Denied {
		t.Fatalf("Open() = %s, want denied", got)
	}

	profiles.mu.Lock()
	profiles.roles["u-admin"] = models.RoleAdmin
	profiles.mu.Unlock()

	sessions.emit(auth.Event{Kind: auth.EventSignedIn, SessionID: "sess-1"})
	waitForState(t, g, Authorized)
}

func TestStaleEvaluationDoesNotOverwriteNewerSignIn(t *testing.T) {
	// mount evaluation reads a member profile slowly, a newer sign-in for an
	// admin completes first; the member verdict must be dropped.
	sessions := newFakeSessions("u-member")
	profiles := newFakeProfiles(map[string]models.Role{
		"u-member": models.RoleMember,
		"u-admin":  models.RoleAdmin,
	})
	release := profiles.hold("u-member")
	nav := &recordingNavigator{}

	g := New(sessions, profiles, nav)
	defer g.Close()

	opened := make(chan State, 1)
	go func() { opened <- g.Open(context.Background()) }()

	expectCalled(t, profiles, "u-member")
	sessions.emit(auth.Event{Kind: auth.EventSignedIn, SessionID: "sess-1", Session: &auth.Session{ID: "sess-1", UserID: "u-admin"}})
	expectCalled(t, profiles, "u-admin")
	waitForState(t, g, Authorized)

	close(release)
	if got := <-opened; got != Authorized {
		t.Fatalf("Open() = %s, want authorized", got)
	}
	if got := g.State(); got != Authorized {
		t.Fatalf("state = %s, want authorized", got)
	}
	expectRedirects(t, nav)
}

func TestStaleEvaluationDoesNotOverwriteSignOut(t *testing.T) {
	sessions := newFakeSessions("u-admin")
	profiles := newFakeProfiles(map[string]models.Role{"u-admin": models.RoleAdmin})
	release := profiles.hold("u-admin")
	nav := &recordingNavigator{}

	g := New(sessions, profiles, nav)
	defer g.Close()

	opened := make(chan State, 1)
	go func() { opened <- g.Open(context.Background()) }()

	expectCalled(t, profiles, "u-admin")
	sessions.emit(auth.Event{Kind: auth.EventSignedOut, SessionID: "sess-1"})
	if got := g.State(); got != Denied {
		t.Fatalf("state after sign-out = %s, want denied", got)
	}

	close(release)
	if got := <-opened; got != Denied {
		t.Fatalf("Open() = %s, want denied", got)
	}
	expectRedirects(t, nav, RedirectSignIn)
}

func TestEvaluationThatFinishesFirstIsSuperseded(t *testing.T) {
	sessions := newFakeSessions("u-member")
	profiles := newFakeProfiles(map[string]models.Role{
		"u-member": models.RoleMember,
		"u-admin":  models.RoleAdmin,
	})
	nav := &recordingNavigator{}

	g := New(sessions, profiles, nav)
	defer g.Close()

	if got := g.Open(context.Background()); got != Denied {
		t.Fatalf("Open() = %s, want denied", got)
	}
	expectCalled(t, profiles, "u-member")

	sessions.emit(auth.Event{Kind: auth.EventSignedIn, SessionID: "sess-1", Session: &auth.Session{ID: "sess-1", UserID: "u-admin"}})
	waitForState(t, g, Authorized)
	expectRedirects(t, nav, RedirectUnauthorized)
}

func TestCloseReleasesSubscriptionAndStopsUpdates(t *testing.T) {
	sessions := newFakeSessions("u-admin")
	profiles := newFakeProfiles(map[string]models.Role{"u-admin": models.RoleAdmin})
	release := profiles.hold("u-admin")
	nav := &recordingNavigator{}
	var observed []State
	var obsMu sync.Mutex

	g := New(sessions, profiles, nav, WithObserver(func(s State) {
		obsMu.Lock()
		observed = append(observed, s)
		obsMu.Unlock()
	}))

	opened := make(chan State, 1)
	go func() { opened <- g.Open(context.Background()) }()
	expectCalled(t, profiles, "u-admin")
	if n := sessions.subscribers(); n != 1 {
		t.Fatalf("subscribers = %d, want 1", n)
	}

	g.Close()
	g.Close()
	close(release)

	if got := <-opened; got != Pending {
		t.Fatalf("Open() after Close = %s, want pending", got)
	}
	if n := sessions.subscribers(); n != 0 {
		t.Fatalf("subscribers after Close = %d, want 0", n)
	}
	if sessions.unsubscribes != 1 {
		t.Fatalf("unsubscribes = %d, want 1", sessions.unsubscribes)
	}

	sessions.emit(auth.Event{Kind: auth.EventSignedOut, SessionID: "sess-1"})
	if got := g.State(); got != Pending {
		t.Fatalf("state after Close = %s, want pending", got)
	}
	expectRedirects(t, nav)
	obsMu.Lock()
	defer obsMu.Unlock()
	if len(observed) != 0 {
		t.Fatalf("observer called after Close: %v", observed)
	}
}

func TestScopeClosesOnError(t *testing.T) {
	sessions := newFakeSessions("u-admin")
	profiles := newFakeProfiles(map[string]models.Role{"u-admin": models.RoleAdmin})
	g := New(sessions, profiles, nil)

	boom := errors.New("boom")
	var gotState State
	var subscribed int
	err := Scope(context.Background(), g, func(_ context.Context, state State) error {
		gotState = state
		subscribed = sessions.subscribers()
		return boom
	})

	if !errors.Is(err, boom) {
		t.Fatalf("Scope() error = %v, want boom", err)
	}
	if gotState != Authorized || subscribed != 1 {
		t.Fatalf("inside scope: state = %s, subscribers = %d", gotState, subscribed)
	}
	if n := sessions.subscribers(); n != 0 {
		t.Fatalf("subscribers after Scope = %d, want 0", n)
	}
}

func TestScopeClosesOnPanic(t *testing.T) {
	sessions := newFakeSessions("u-admin")
	profiles := newFakeProfiles(map[string]models.Role{"u-admin": models.RoleAdmin})
	g := New(sessions, profiles, nil)

	func() {
		defer func() { _ = recover() }()
		_ = Scope(context.Background(), g, func(context.Context, State) error {
			panic("view crashed")
		})
	}()

	if n := sessions.subscribers(); n != 0 {
		t.Fatalf("subscribers after panic = %d, want 0", n)
	}
}

func TestRedirectPath(t *testing.T) {
	tests := map[Redirect]string{
		RedirectSignIn:       "/login",
		RedirectUnauthorized: "/unauthorized",
		RedirectNone:         "",
	}
	for redirect, want := range tests {
		if got := redirect.Path(); got != want {
			t.Fatalf("%v.Path() = %q, want %q", redirect, got, want)
		}
	}
}
