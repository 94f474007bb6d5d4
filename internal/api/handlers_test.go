package api

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/trossachsgroup/site-backend/internal/posts"
	"github.com/trossachsgroup/site-backend/internal/site"
	"github.com/trossachsgroup/site-backend/internal/store"
	"github.com/trossachsgroup/site-backend/internal/ws"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Mock metrics for testing
type MockMetrics struct {
	mock.Mock
}

func (m *MockMetrics) RecordHTTPRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
	m.Called(ctx, method, path, status, duration)
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type testServer struct {
	router  http.Handler
	metrics *MockMetrics
	store   *posts.Store
	cache   *store.Cache
}

type serverOptions struct {
	adminHash    string
	rateLimitRPM int
	readiness    map[string]Pinger
}

func newTestServer(t *testing.T, opts serverOptions) *testServer {
	t.Helper()
	logger := zap.NewNop().Sugar()

	cache := store.NewMemoryCache(logger, nil)
	t.Cleanup(func() { _ = cache.Close() })

	postStore := posts.NewStore()
	require.NoError(t, postStore.Seed(context.Background(), posts.DefaultSeed()))
	svc := posts.NewService(postStore, cache, logger, nil, time.Minute)

	metrics := &MockMetrics{}
	metrics.On("RecordHTTPRequest", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return().Maybe()

	handler := NewHandler(
		svc,
		site.DefaultCatalog(),
		site.NewInbox(cache, logger, nil, 100, time.Hour),
		ws.NewHub(cache, logger, nil, nil),
		ws.NewSSEHandler(cache, logger, nil),
		opts.readiness,
		logger,
	)
	m := NewMiddleware(logger, metrics, opts.adminHash)
	router := handler.Routes(m, RouteOptions{
		CORSOrigins:  []string{"https://trossachsgroup.com"},
		RateLimitRPM: opts.rateLimitRPM,
	})

	return &testServer{router: router, metrics: metrics, store: postStore, cache: cache}
}

func (s *testServer) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func assertError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	assert.Equal(t, status, w.Code, w.Body.String())
	assert.Equal(t, code, decode[ErrorResponse](t, w).Code)
}

func TestPostsCRUD(t *testing.T) {
	s := newTestServer(t, serverOptions{})

	w := s.do(t, http.MethodGet, "/v1/posts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[PostListResponse](t, w)
	assert.Equal(t, 3, list.Count)
	assert.Equal(t, posts.DefaultSeed(), list.Posts)

	// id and date in the body are ignored
	w = s.do(t, http.MethodPost, "/v1/posts", map[string]any{
		"id":     99,
		"date":   "1999-01-01",
		"title":  "Launch",
		"author": "Ops",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[posts.Post](t, w)
	assert.Equal(t, int64(4), created.ID)
	assert.Equal(t, "Launch", created.Title)
	assert.Equal(t, time.Now().Format(posts.DateLayout), created.Date)
	assert.Equal(t, "/v1/posts/4", w.Header().Get("Location"))

	w = s.do(t, http.MethodGet, "/v1/posts", nil)
	list = decode[PostListResponse](t, w)
	assert.Equal(t, created, list.Posts[0], "new post is listed first")

	w = s.do(t, http.MethodGet, "/v1/posts/4", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, created, decode[posts.Post](t, w))

	w = s.do(t, http.MethodPut, "/v1/posts/2", PostRequest{Title: "Rewritten", Content: "All new"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[posts.Post](t, w)
	assert.Equal(t, int64(2), updated.ID)
	assert.Equal(t, "2025-01-10", updated.Date)
	assert.Equal(t, "Rewritten", updated.Title)
	assert.Empty(t, updated.Author, "update replaces every field")

	w = s.do(t, http.MethodDelete, "/v1/posts/2", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())

	assertError(t, s.do(t, http.MethodGet, "/v1/posts/2", nil), http.StatusNotFound, CodePostNotFound)
	assertError(t, s.do(t, http.MethodDelete, "/v1/posts/2", nil), http.StatusNotFound, CodePostNotFound)
	assertError(t, s.do(t, http.MethodPut, "/v1/posts/2", PostRequest{}), http.StatusNotFound, CodePostNotFound)

	w = s.do(t, http.MethodGet, "/v1/posts", nil)
	ids := []int64{}
	for _, p := range decode[PostListResponse](t, w).Posts {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []int64{4, 1, 3}, ids)
}

func TestPostsBadInput(t *testing.T) {
	s := newTestServer(t, serverOptions{})

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"non-numeric id", http.MethodGet, "/v1/posts/abc", nil, http.StatusBadRequest, CodeInvalidPostID},
		{"zero id", http.MethodGet, "/v1/posts/0", nil, http.StatusBadRequest, CodeInvalidPostID},
		{"negative id", http.MethodDelete, "/v1/posts/-1", nil, http.StatusBadRequest, CodeInvalidPostID},
		{"empty body", http.MethodPost, "/v1/posts", nil, http.StatusBadRequest, CodeInvalidRequest},
		{"broken json", http.MethodPost, "/v1/posts", `{"title":`, http.StatusBadRequest, CodeInvalidRequest},
		{"two objects", http.MethodPost, "/v1/posts", `{"title":"a"}{"title":"b"}`, http.StatusBadRequest, CodeInvalidRequest},
		{"wrong type", http.MethodPut, "/v1/posts/1", `{"title":5}`, http.StatusBadRequest, CodeInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertError(t, s.do(t, tt.method, tt.path, tt.body), tt.status, tt.code)
		})
	}

	list, err := s.store.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, posts.DefaultSeed(), list, "bad requests leave the store untouched")
}

func TestPostsStorageFailure(t *testing.T) {
	logger := zap.NewNop().Sugar()
	repo := &failingRepo{err: errors.New("disk on fire")}
	handler := NewHandler(repo, site.DefaultCatalog(), nil, nil, nil, nil, logger)
	router := handler.Routes(NewMiddleware(logger, nil, ""), RouteOptions{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/posts", nil))
	assertError(t, w, http.StatusInternalServerError, CodeInternal)
	assert.NotContains(t, w.Body.String(), "disk on fire")
}

type failingRepo struct {
	err error
}

func (f *failingRepo) List(ctx context.Context) ([]posts.Post, error) { return nil, f.err }
func (f *failingRepo) Get(ctx context.Context, id int64) (posts.Post, error) {
	return posts.Post{}, f.err
}
func (f *failingRepo) Create(ctx context.Context, _ posts.Fields) (posts.Post, error) {
	return posts.Post{}, f.err
}
func (f *failingRepo) Update(ctx context.Context, id int64, _ posts.Fields) (posts.Post, error) {
	return posts.Post{}, f.err
}
func (f *failingRepo) Delete(ctx context.Context, id int64) error { return f.err }

func TestAdminGate(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("letmein"), bcrypt.MinCost)
	require.NoError(t, err)
	s := newTestServer(t, serverOptions{adminHash: string(hash)})

	// Reads stay public
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/v1/posts", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/v1/posts/1", nil).Code)

	body := PostRequest{Title: "Gated"}
	assertError(t, s.do(t, http.MethodPost, "/v1/posts", body), http.StatusUnauthorized, CodeUnauthorized)
	assertError(t, s.do(t, http.MethodPost, "/v1/posts", body, AdminHeader, "wrong"), http.StatusUnauthorized, CodeUnauthorized)
	assertError(t, s.do(t, http.MethodPut, "/v1/posts/1", body), http.StatusUnauthorized, CodeUnauthorized)
	assertError(t, s.do(t, http.MethodDelete, "/v1/posts/1", nil), http.StatusUnauthorized, CodeUnauthorized)
	assertError(t, s.do(t, http.MethodGet, "/v1/contact/messages", nil), http.StatusUnauthorized, CodeUnauthorized)

	assert.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/v1/posts", body, AdminHeader, "letmein").Code)
	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, "/v1/posts/1", nil, AdminHeader, "letmein").Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/v1/contact/messages", nil, AdminHeader, "letmein").Code)

	// Contact form stays public
	w := s.do(t, http.MethodPost, "/v1/contact", site.ContactRequest{Name: "A", Email: "a@example.com", Message: "hi"})
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestSiteRoutes(t *testing.T) {
	s := newTestServer(t, serverOptions{})
	catalog := site.DefaultCatalog()

	w := s.do(t, http.MethodGet, "/v1/site", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, catalog, decode[site.Catalog](t, w))

	w = s.do(t, http.MethodGet, "/v1/site/services", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[ServiceListResponse](t, w).Services, 4)

	w = s.do(t, http.MethodGet, "/v1/site/services/brand-identity", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Brand Identity", decode[site.Service](t, w).Title)
	assertError(t, s.do(t, http.MethodGet, "/v1/site/services/nope", nil), http.StatusNotFound, CodeServiceNotFound)

	w = s.do(t, http.MethodGet, "/v1/site/stats", nil)
	assert.Equal(t, catalog.Stats, decode[StatsResponse](t, w).Stats)

	w = s.do(t, http.MethodGet, "/v1/site/about", nil)
	assert.Equal(t, catalog.About, decode[site.About](t, w))

	w = s.do(t, http.MethodGet, "/v1/site/contact", nil)
	assert.Equal(t, "+1 (555) 123-4567", decode[site.Contact](t, w).Phone)
}

func TestContactRoutes(t *testing.T) {
	s := newTestServer(t, serverOptions{})

	w := s.do(t, http.MethodPost, "/v1/contact", site.ContactRequest{Name: "Ada", Email: "ada@example.com", Message: "Quote please"})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	accepted := decode[ContactAccepted](t, w)
	_, err := uuid.Parse(accepted.ID)
	assert.NoError(t, err)

	assertError(t, s.do(t, http.MethodPost, "/v1/contact", site.ContactRequest{Name: "Ada", Email: "nope", Message: "x"}),
		http.StatusBadRequest, CodeInvalidRequest)
	assertError(t, s.do(t, http.MethodPost, "/v1/contact", "not json"), http.StatusBadRequest, CodeInvalidRequest)

	w = s.do(t, http.MethodGet, "/v1/contact/messages", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[ContactListResponse](t, w)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, accepted.ID, list.Messages[0].ID)
	assert.Equal(t, "Quote please", list.Messages[0].Message)
}

func TestHealthAndReadiness(t *testing.T) {
	s := newTestServer(t, serverOptions{readiness: map[string]Pinger{
		"cache": pingFunc(func(ctx context.Context) error { return nil }),
	}})

	w := s.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())

	w = s.do(t, http.MethodGet, "/ping", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusOK, w.Code)
	ready := decode[ReadyResponse](t, w)
	assert.Equal(t, "ready", ready.Status)
	assert.Equal(t, map[string]string{"cache": "ok"}, ready.Checks)

	s = newTestServer(t, serverOptions{readiness: map[string]Pinger{
		"cache":    pingFunc(func(ctx context.Context) error { return nil }),
		"database": pingFunc(func(ctx context.Context) error { return errors.New("connection refused") }),
	}})
	w = s.do(t, http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	ready = decode[ReadyResponse](t, w)
	assert.Equal(t, "not_ready", ready.Status)
	assert.Equal(t, "connection refused", ready.Checks["database"])
}

func TestRequestIDAndSecurityHeaders(t *testing.T) {
	s := newTestServer(t, serverOptions{})

	w := s.do(t, http.MethodGet, "/v1/site/stats", nil, "X-Request-ID", "abc-123")
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))

	w = s.do(t, http.MethodGet, "/v1/site/stats", nil)
	_, err := uuid.Parse(w.Header().Get("X-Request-ID"))
	assert.NoError(t, err)
}

func TestMetricsUseRoutePattern(t *testing.T) {
	s := newTestServer(t, serverOptions{})

	s.do(t, http.MethodGet, "/v1/posts/3", nil)
	s.do(t, http.MethodGet, "/nowhere", nil)

	s.metrics.AssertCalled(t, "RecordHTTPRequest", mock.Anything, http.MethodGet, "/v1/posts/{id}", http.StatusOK, mock.Anything)
	s.metrics.AssertCalled(t, "RecordHTTPRequest", mock.Anything, http.MethodGet, "unmatched", http.StatusNotFound, mock.Anything)
}

func TestRateLimit(t *testing.T) {
	// 6 rpm gives a burst of one
	s := newTestServer(t, serverOptions{rateLimitRPM: 6})

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/v1/site/stats", nil).Code)
	assertError(t, s.do(t, http.MethodGet, "/v1/site/stats", nil), http.StatusTooManyRequests, CodeRateLimited)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, serverOptions{})

	w := s.do(t, http.MethodOptions, "/v1/posts", nil,
		"Origin", "https://trossachsgroup.com",
		"Access-Control-Request-Method", http.MethodPost,
		"Access-Control-Request-Headers", AdminHeader,
	)
	assert.Equal(t, "https://trossachsgroup.com", w.Header().Get("Access-Control-Allow-Origin"))

	w = s.do(t, http.MethodGet, "/v1/posts", nil, "Origin", "https://elsewhere.example")
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCompressedResponses(t *testing.T) {
	s := newTestServer(t, serverOptions{})

	w := s.do(t, http.MethodGet, "/v1/site", nil, "Accept-Encoding", "gzip")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "gzip", w.Header().Get("Content-Encoding"))

	zr, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	var catalog site.Catalog
	require.NoError(t, json.NewDecoder(zr).Decode(&catalog))
	assert.Equal(t, "TROSSACHS GROUP", catalog.Company.Name)
}

func TestRecoverer(t *testing.T) {
	m := NewMiddleware(zap.NewNop().Sugar(), nil, "")
	h := m.Recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assertError(t, w, http.StatusInternalServerError, CodeInternal)
}

func TestProxyHeaders(t *testing.T) {
	m := NewMiddleware(zap.NewNop().Sugar(), nil, "")
	var seen string
	echo := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.RemoteAddr
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	req.Header.Set("X-Forwarded-For", "203.0.113.7")

	m.ProxyHeaders(false)(echo).ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "10.0.0.1:5555", seen)

	m.ProxyHeaders(true)(echo).ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "203.0.113.7", seen)
}

func TestPostEventsReachSubscribers(t *testing.T) {
	s := newTestServer(t, serverOptions{})
	ctx := context.Background()

	sub, err := s.cache.Subscribe(ctx, store.ChannelPostEvents)
	require.NoError(t, err)
	defer sub.Close()

	require.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, "/v1/posts/3", nil).Code)

	select {
	case msg := <-sub.Messages():
		var ev posts.Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &ev))
		assert.Equal(t, posts.EventDeleted, ev.Type)
		assert.Equal(t, int64(3), ev.ID)
	case <-time.After(time.Second):
		t.Fatal("no post event")
	}
}
