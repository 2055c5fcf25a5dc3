package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vidcurate/backend/internal/auth"
	"github.com/vidcurate/backend/internal/middleware"
	"github.com/vidcurate/backend/internal/models"
	"github.com/vidcurate/backend/internal/repositories"
	"github.com/vidcurate/backend/internal/videos"
)

type inMemoryUserStore struct {
	mu    sync.Mutex
	users map[string]models.User
	roles map[string]models.Role
}

func newInMemoryUserStore() *inMemoryUserStore {
	return &inMemoryUserStore{users: map[string]models.User{}, roles: map[string]models.Role{}}
}

func (s *inMemoryUserStore) Create(_ context.Context, user models.User, role models.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[user.Email]; exists {
		return repositories.ErrConflict
	}
	s.users[user.Email] = user
	s.roles[user.ID] = role
	return nil
}

func (s *inMemoryUserStore) FindByEmail(_ context.Context, email string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[email]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	return user, nil
}

type profileStore struct {
	mu    sync.Mutex
	roles map[string]models.Role
}

func newProfileStore() *profileStore {
	return &profileStore{roles: map[string]models.Role{}}
}

func (p *profileStore) set(userID string, role models.Role) {
	p.mu.Lock()
	p.roles[userID] = role
	p.mu.Unlock()
}

func (p *profileStore) GetProfile(_ context.Context, userID string) (models.Profile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	role, ok := p.roles[userID]
	if !ok {
		return models.Profile{}, repositories.ErrNotFound
	}
	return models.Profile{UserID: userID, Role: role}, nil
}

type memVideoStore struct {
	mu      sync.Mutex
	records map[string]models.VideoRecord
	seq     int
	listErr error
}

func newMemVideoStore() *memVideoStore {
	return &memVideoStore{records: map[string]models.VideoRecord{}}
}

func (s *memVideoStore) List(context.Context) ([]models.VideoRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]models.VideoRecord, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *memVideoStore) Insert(_ context.Context, f videos.VideoFields) (models.VideoRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	record := recordFrom(fmt.Sprintf("video-%03d", s.seq), f)
	record.CreatedAt = f.CreatedAt
	s.records[record.ID] = record
	return record, nil
}

func (s *memVideoStore) Update(_ context.Context, id string, f videos.VideoFields) (models.VideoRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.records[id]
	if !ok {
		return models.VideoRecord{}, repositories.ErrNotFound
	}
	record := recordFrom(id, f)
	record.CreatedAt = existing.CreatedAt
	s.records[id] = record
	return record, nil
}

func (s *memVideoStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(s.records, id)
	return nil
}

func recordFrom(id string, f videos.VideoFields) models.VideoRecord {
	return models.VideoRecord{
		ID:              id,
		URL:             f.URL,
		Title:           f.Title,
		Category:        f.Category,
		Description:     f.Description,
		ThumbnailURL:    f.ThumbnailURL,
		DurationSeconds: f.DurationSeconds,
		ViewCount:       f.ViewCount,
	}
}

type testEnv struct {
	users    *inMemoryUserStore
	profiles *profileStore
	manager  *auth.Manager
	store    *memVideoStore
	limiter  *middleware.IPRateLimiter
	handler  http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		users:    newInMemoryUserStore(),
		profiles: newProfileStore(),
		manager:  auth.NewManager(time.Minute, time.Hour, auth.NewInMemorySessionStore(), nil),
		store:    newMemVideoStore(),
		limiter:  middleware.NewLoginLimiter(100),
	}

	mux := http.NewServeMux()
	RegisterRoutes(mux, Dependencies{
		Users:        env.users,
		Sessions:     env.manager,
		Profiles:     env.profiles,
		Catalog:      videos.NewCatalog(env.store, nil),
		LoginLimiter: env.limiter,
	})
	env.handler = middleware.RequestLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))(mux)
	return env
}

// signIn issues a session for a fresh user holding role.
func (e *testEnv) signIn(t *testing.T, userID string, role models.Role) models.SessionTokens {
	t.Helper()
	if role != models.RoleUnknown {
		e.profiles.set(userID, role)
	}
	tokens, err := e.manager.Issue(context.Background(), userID)
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}
	return tokens
}

func (e *testEnv) do(t *testing.T, method, target, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return out
}
