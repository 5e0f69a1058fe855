// ABOUTME: Test harness for the HTTP server plus health and reference data tests
// ABOUTME: Spins up the full handler stack against a temp SQLite store and a scripted engine

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/vaxassist/chatd/internal/auth"
	"github.com/vaxassist/chatd/internal/chat"
	"github.com/vaxassist/chatd/internal/config"
	"github.com/vaxassist/chatd/internal/engine"
	"github.com/vaxassist/chatd/internal/store"
)

const (
	testDailyLimit   = 5
	testPassword     = "correct horse battery staple"
	testSystemPrompt = "You are a helpful assistant."
)

// fakeEngineClient is a scripted engine.Client for handler tests.
type fakeEngineClient struct {
	mu        sync.Mutex
	events    []engine.Event
	streamErr error
	pingErr   error
	gotModel  string
	gotTurns  []engine.Turn
}

func (f *fakeEngineClient) Stream(ctx context.Context, model string, turns []engine.Turn) (<-chan engine.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	f.gotModel = model
	f.gotTurns = turns

	ch := make(chan engine.Event, len(f.events))
	for _, ev := range f.events {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

func (f *fakeEngineClient) Ping(ctx context.Context, model string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pingErr
}

func (f *fakeEngineClient) script(events ...engine.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = events
}

// sentMail is one captured outbound email.
type sentMail struct {
	to      string
	subject string
	body    string
}

// recordingMailer captures outbound mail for assertions.
type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *recordingMailer) Send(ctx context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

func (m *recordingMailer) all() []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMail(nil), m.sent...)
}

type testEnv struct {
	handler     http.Handler
	store       store.Store
	engine      *fakeEngineClient
	resetTokens *auth.ResetTokens
	mailer      *recordingMailer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "chatd.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	cfg := &config.Config{}
	cfg.Server.HTTPAddr = "127.0.0.1:0"
	cfg.Engine.DefaultModel = config.DefaultModel
	cfg.Engine.ContextBudget = config.DefaultContextBudget
	cfg.Engine.SystemPrompt = testSystemPrompt
	cfg.Quota.DailyLimit = testDailyLimit
	cfg.Auth.SessionTTL = time.Hour

	eng := &fakeEngineClient{}
	selector := engine.NewSelector(st, eng, cfg.Engine.DefaultModel)
	gate := chat.NewQuotaGate(st, cfg.Quota.DailyLimit)
	relay := chat.NewRelay(st, eng, selector, gate, testSystemPrompt, cfg.Engine.ContextBudget)
	sessions := auth.NewSessionManager(st, cfg.Auth.SessionTTL)
	resetTokens := auth.NewResetTokens([]byte("test-secret"), 15*time.Minute)

	mailer := &recordingMailer{}
	srv := New(cfg, st, sessions, resetTokens, relay, mailer)
	return &testEnv{
		handler:     srv.Handler(),
		store:       st,
		engine:      eng,
		resetTokens: resetTokens,
		mailer:      mailer,
	}
}

// do issues one request against the handler stack. body is JSON-encoded when
// non-nil; cookie attaches a session when non-nil.
func (e *testEnv) do(t *testing.T, method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

// createUser inserts a user directly so tests can control role and quota state.
func (e *testEnv) createUser(t *testing.T, email, role string) *store.User {
	t.Helper()

	hash, err := auth.HashPassword(testPassword)
	require.NoError(t, err)

	now := time.Now().UTC()
	user := &store.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    "Test",
		LastName:     "User",
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, e.store.CreateUser(context.Background(), user))
	return user
}

// login authenticates through the API and returns the session cookie.
func (e *testEnv) login(t *testing.T, email string) *http.Cookie {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    email,
		"password": testPassword,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.SessionCookie && c.Value != "" {
			return c
		}
	}
	t.Fatal("login response did not set a session cookie")
	return nil
}

// loginUser creates a regular user and logs in.
func (e *testEnv) loginUser(t *testing.T, email string) (*store.User, *http.Cookie) {
	t.Helper()
	user := e.createUser(t, email, store.RoleUser)
	return user, e.login(t, email)
}

// loginAdmin creates an admin and logs in.
func (e *testEnv) loginAdmin(t *testing.T, email string) (*store.User, *http.Cookie) {
	t.Helper()
	user := e.createUser(t, email, store.RoleAdmin)
	return user, e.login(t, email)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst))
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	decodeBody(t, rec, &body)
	require.Equal(t, "ok", body["status"])
}

func TestCountries(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/countries", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var countries []map[string]any
	decodeBody(t, rec, &countries)
	require.NotEmpty(t, countries)

	names := make([]string, 0, len(countries))
	for _, c := range countries {
		names = append(names, c["name"].(string))
	}
	require.Contains(t, names, "United States")
}

func TestStatesByCountry(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/states/233", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var states []map[string]any
	decodeBody(t, rec, &states)
	require.NotEmpty(t, states)
	for _, s := range states {
		require.Equal(t, float64(233), s["country_id"])
	}
}

func TestStatesByCountry_NoneFound(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/states/999999", nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatesByCountry_BadID(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/states/narnia", nil, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
