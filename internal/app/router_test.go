package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleanops/cleanops/internal/auth"
	"github.com/cleanops/cleanops/internal/dashboard"
	"github.com/cleanops/cleanops/internal/gate"
	"github.com/cleanops/cleanops/internal/identity"
	"github.com/cleanops/cleanops/internal/nav"
	"github.com/cleanops/cleanops/internal/observability"
	"github.com/cleanops/cleanops/internal/rbac"
	"github.com/cleanops/cleanops/internal/shared"
	"github.com/cleanops/cleanops/internal/view"
)

type fixedSource identity.Snapshot

func (s fixedSource) Snapshot(ctx context.Context, r *http.Request) identity.Snapshot {
	return identity.Snapshot(s)
}

type noAccounts struct{}

func (noAccounts) FindByEmail(ctx context.Context, email string) (*auth.Account, error) {
	return nil, shared.ErrNotFound
}

func (noAccounts) FindByID(ctx context.Context, id int64) (*auth.Account, error) {
	return nil, shared.ErrNotFound
}

func (noAccounts) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	return nil
}

func (noAccounts) DeleteSession(ctx context.Context, id string) error {
	return nil
}

func newTestRouter(t *testing.T, snap identity.Snapshot) (http.Handler, *observability.Metrics) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := &Config{AppEnv: "test", AppRequestTimeout: 5 * time.Second}
	sessions := shared.NewSessionManager(client, "cleanops_session", time.Hour, false)
	csrf := shared.NewCSRFManager("secret")
	templates, err := view.NewEngine()
	require.NoError(t, err)
	eval, err := rbac.Load("", "")
	require.NoError(t, err)
	metrics := observability.NewMetrics()

	g := gate.New(eval, metrics)
	renderer, err := gate.NewRenderer(g, nil)
	require.NoError(t, err)
	pages := dashboard.NewPages(nil, templates, csrf, nav.NewFilter(eval))
	access := gate.Middleware{Gate: g, Renderer: renderer, Pages: pages}

	router := NewRouter(RouterParams{
		Logger:           NewLogger(cfg),
		Config:           cfg,
		SessionManager:   sessions,
		CSRFManager:      csrf,
		Identity:         fixedSource(snap),
		AuthHandler:      auth.NewHandler(nil, auth.NewService(noAccounts{}), templates, sessions, csrf, nil),
		DashboardHandler: dashboard.NewHandler(nil, pages, templates, g, renderer, access, nil),
		Metrics:          metrics,
	})
	return router, metrics
}

func TestHealthz(t *testing.T) {
	router, _ := newTestRouter(t, identity.Anonymous())

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestStaticAssetsAreCached(t *testing.T) {
	router, _ := newTestRouter(t, identity.Anonymous())

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/static/css/app.css", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "public, max-age=3600", rr.Header().Get("Cache-Control"))
	assert.Empty(t, rr.Result().Cookies())
}

func TestHomeRedirectsSignedOutAndSetsSessionCookie(t *testing.T) {
	router, _ := newTestRouter(t, identity.Anonymous())

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/welcome", rr.Header().Get("Location"))
	require.NotEmpty(t, rr.Result().Cookies())
	assert.Equal(t, "cleanops_session", rr.Result().Cookies()[0].Name)
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
}

func TestGateDecisionsAreExported(t *testing.T) {
	router, _ := newTestRouter(t, identity.Authenticated(&rbac.User{ID: 1, Name: "Kim", Role: rbac.RoleCleaner}))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/finance", nil))
	require.Equal(t, http.StatusForbidden, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `cleanops_gate_decisions_total{outcome="fallback",query="route",state="denied"} 1`)
}

func TestPostWithoutCSRFTokenIsRejected(t *testing.T) {
	router, _ := newTestRouter(t, identity.Anonymous())

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", strings.NewReader(""))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestCommitWriterSupportsStreaming(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	sessions := shared.NewSessionManager(client, "s", time.Hour, false)

	sess, err := sessions.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	rr := httptest.NewRecorder()
	w := &responseWriterWithCommit{ResponseWriter: rr, sess: sess, manager: sessions, ctx: context.Background(), logger: NewLogger(nil)}

	require.NoError(t, http.NewResponseController(w).Flush())
	assert.True(t, rr.Flushed)
	assert.True(t, w.headerWritten)
	assert.Equal(t, "s", rr.Result().Cookies()[0].Name)
	assert.True(t, mr.Exists("cleanops:session:"+sess.ID))
}

func TestTimeoutSkipsEventStreams(t *testing.T) {
	h := exceptEventStreams(middleware.Timeout(10 * time.Millisecond))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(40 * time.Millisecond)
		if r.Context().Err() != nil {
			w.WriteHeader(http.StatusGatewayTimeout)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/access", nil))
	assert.Equal(t, http.StatusGatewayTimeout, rr.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/access/stream", nil)
	req.Header.Set("Accept", "text/event-stream")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("SESSION_SECRET", "")
	t.Setenv("CSRF_SECRET", "c5rf")
	t.Setenv("POLICY_PATH", "/etc/cleanops/policy.csv")
	t.Setenv("APP_ENV", "production")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, "cleanops_session", cfg.SessionCookie)
	assert.Equal(t, "/etc/cleanops/policy.csv", cfg.PolicyPath)
	assert.Empty(t, cfg.CatalogPath)
	assert.True(t, cfg.SecureCookies())
}

func TestLoadConfigRequiresCSRFSecret(t *testing.T) {
	t.Setenv("CSRF_SECRET", "")

	_, err := LoadConfig()
	assert.Error(t, err)
}
