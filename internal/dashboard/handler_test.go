package dashboard_test

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleanops/cleanops/internal/dashboard"
	"github.com/cleanops/cleanops/internal/gate"
	"github.com/cleanops/cleanops/internal/identity"
	"github.com/cleanops/cleanops/internal/nav"
	"github.com/cleanops/cleanops/internal/rbac"
	"github.com/cleanops/cleanops/internal/shared"
	"github.com/cleanops/cleanops/internal/view"
	_ "github.com/cleanops/cleanops/testing"
)

type env struct {
	router   chi.Router
	broker   *identity.Broker
	sessions *shared.SessionManager
	mounts   *mountCounter
}

type mountCounter struct {
	live chan int
}

func (m *mountCounter) TrackMount(delta int) {
	m.live <- delta
}

func newEnv(t *testing.T) *env {
	t.Helper()
	eval, err := rbac.Load("", "")
	require.NoError(t, err)
	templates, err := view.NewEngine()
	require.NoError(t, err)
	g := gate.New(eval, nil)
	renderer, err := gate.NewRenderer(g, nil)
	require.NoError(t, err)
	pages := dashboard.NewPages(nil, templates, shared.NewCSRFManager("secret"), nav.NewFilter(eval))
	access := gate.Middleware{Gate: g, Renderer: renderer, Pages: pages}
	broker := identity.NewBroker()
	t.Cleanup(broker.Close)
	mounts := &mountCounter{live: make(chan int, 4)}
	stream := dashboard.NewStream(nil, g, broker, mounts)

	r := chi.NewRouter()
	dashboard.NewHandler(nil, pages, templates, g, renderer, access, stream).MountRoutes(r)
	return &env{router: r, broker: broker, sessions: shared.NewSessionManager(nil, "s", time.Hour, false), mounts: mounts}
}

func (e *env) request(t *testing.T, ctx context.Context, target string, snap identity.Snapshot) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	sess, err := e.sessions.Load(ctx, req)
	require.NoError(t, err)
	ctx = shared.ContextWithSession(ctx, sess)
	ctx = identity.ContextWithSnapshot(ctx, snap)
	return req.WithContext(ctx)
}

func (e *env) get(t *testing.T, target string, snap identity.Snapshot) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, e.request(t, context.Background(), target, snap))
	return rr
}

func as(role rbac.Role) identity.Snapshot {
	return identity.Authenticated(&rbac.User{ID: 3, Name: "Ada", Role: role})
}

func TestHomeOwnerSeesFinanceWidget(t *testing.T) {
	e := newEnv(t)

	rr := e.get(t, "/", as(rbac.RoleOwner))

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `data-widget="finance"`)
	assert.Contains(t, body, `href="/tasks/new"`)
	assert.Contains(t, body, `href="/settings/permissions"`)
	assert.Contains(t, body, "Owner")
}

func TestHomeCleanerNeverSeesFinanceWidget(t *testing.T) {
	e := newEnv(t)

	rr := e.get(t, "/", as(rbac.RoleCleaner))

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.NotContains(t, body, `data-widget="finance"`)
	assert.NotContains(t, body, "Revenue")
	assert.NotContains(t, body, "Access restricted")
	assert.NotContains(t, body, `href="/tasks/new"`)
	assert.NotContains(t, body, `data-widget="crew"`)
	assert.Contains(t, body, `data-widget="tasks"`)
	assert.NotContains(t, body, "settings-tabs")
}

func TestHomeClientGetsMinimalMarkerForTasks(t *testing.T) {
	e := newEnv(t)

	body := e.get(t, "/", as(rbac.RoleClient)).Body.String()

	assert.Contains(t, body, "gate-minimal")
	assert.Contains(t, body, `data-widget="bookings"`)
}

func TestHomeSignedOutRedirectsToWelcome(t *testing.T) {
	e := newEnv(t)

	rr := e.get(t, "/", identity.Anonymous())

	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/welcome", rr.Header().Get("Location"))
}

func TestWelcome(t *testing.T) {
	e := newEnv(t)

	assert.Equal(t, http.StatusOK, e.get(t, "/welcome", identity.Anonymous()).Code)
	assert.Equal(t, http.StatusSeeOther, e.get(t, "/welcome", as(rbac.RoleCleaner)).Code)
}

func TestManagerSettingsTabsComeFromMatrix(t *testing.T) {
	e := newEnv(t)

	body := e.get(t, "/settings", as(rbac.RoleManager)).Body.String()

	assert.Contains(t, body, "Company")
	assert.Contains(t, body, `<small class="muted tab-audience">Owner, Manager</small>`)
	assert.NotContains(t, body, "Users")
	assert.NotContains(t, body, "Billing")
	assert.NotContains(t, body, "/settings/permissions")
}

func TestSectionsFollowRoutes(t *testing.T) {
	e := newEnv(t)

	rr := e.get(t, "/tasks", as(rbac.RoleSupervisor))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Assign crews")

	rr = e.get(t, "/tasks", as(rbac.RoleCleaner))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), "Assign crews")

	rr = e.get(t, "/finance", as(rbac.RoleManager))
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Contains(t, rr.Body.String(), "Access restricted")

	rr = e.get(t, "/finance", identity.Anonymous())
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, gate.LoginPath, rr.Header().Get("Location"))
}

func TestNewTaskRedirectsDeniedRoles(t *testing.T) {
	e := newEnv(t)

	rr := e.get(t, "/tasks/new", as(rbac.RoleCleaner))
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/tasks", rr.Header().Get("Location"))

	assert.Equal(t, http.StatusOK, e.get(t, "/tasks/new", as(rbac.RoleSupervisor)).Code)
}

func TestPermissionsMatrixPage(t *testing.T) {
	e := newEnv(t)

	rr := e.get(t, "/settings/permissions", as(rbac.RoleOwner))
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "finance.view_finance")
	assert.Contains(t, body, "Supervisor")

	rr = e.get(t, "/settings/permissions", as(rbac.RoleManager))
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Contains(t, rr.Body.String(), "gate-panel--card")
}

func TestUnknownRoleSeesPublicNavigationOnly(t *testing.T) {
	e := newEnv(t)

	body := e.get(t, "/", as("ADMIN")).Body.String()

	assert.Contains(t, body, `data-nav-id="dashboard"`)
	assert.NotContains(t, body, `data-nav-id="tasks"`)
	assert.Contains(t, body, "Guest")
}

func TestAccessAPIRoute(t *testing.T) {
	e := newEnv(t)

	rr := e.get(t, "/api/access?feature=finance.widget", as(rbac.RoleOwner))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"allowed":true`)
}

func TestStreamPushesDecisionsUntilDisconnect(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	req := e.request(t, ctx, "/api/access/stream?feature=finance.widget&redirect_to=/&fallback=minimal", identity.Anonymous())
	key := identity.ClientKey(shared.SessionFromContext(req.Context()))

	rr := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		e.router.ServeHTTP(rr, req)
		close(done)
	}()

	require.Equal(t, 1, <-e.mounts.live)
	require.Eventually(t, func() bool { return e.broker.Subscribers(key) == 1 }, time.Second, 5*time.Millisecond)

	e.broker.Publish(key, as(rbac.RoleCleaner))
	e.broker.Publish("someone-else", as(rbac.RoleOwner))
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stream did not end after disconnect")
	}
	assert.Equal(t, -1, <-e.mounts.live)
	assert.Equal(t, 0, e.broker.Subscribers(key))

	body := rr.Body.String()
	assert.Equal(t, "text/event-stream", rr.Header().Get("Content-Type"))
	assert.Contains(t, body, `{"state":"unauthenticated","outcome":"fallback","allowed":false,"message":"You don't have access to this section."}`)
	assert.Contains(t, body, `"state":"denied"`)
	assert.Equal(t, 1, strings.Count(body, "event: redirect"))
	assert.NotContains(t, body, `"state":"granted"`)
}

func TestStreamOutlivesServerWriteTimeout(t *testing.T) {
	e := newEnv(t)
	sess, err := e.sessions.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	key := identity.ClientKey(sess)

	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := shared.ContextWithSession(r.Context(), sess)
		ctx = identity.ContextWithSnapshot(ctx, identity.Anonymous())
		e.router.ServeHTTP(w, r.WithContext(ctx))
	}))
	srv.Config.WriteTimeout = 300 * time.Millisecond
	srv.Start()
	t.Cleanup(srv.Close)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/access/stream?feature=finance.widget", nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "text/event-stream")
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	require.Equal(t, http.StatusOK, resp.StatusCode)

	lines := make(chan string, 16)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	require.Equal(t, 1, <-e.mounts.live)
	require.Eventually(t, func() bool { return e.broker.Subscribers(key) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(600 * time.Millisecond)
	e.broker.Publish(key, as(rbac.RoleOwner))

	deadline := time.After(2 * time.Second)
	for {
		select {
		case line, ok := <-lines:
			require.True(t, ok, "stream closed before the sign-in decision arrived")
			if strings.Contains(line, `"state":"granted"`) {
				return
			}
		case <-deadline:
			t.Fatal("sign-in decision never reached the client")
		}
	}
}
