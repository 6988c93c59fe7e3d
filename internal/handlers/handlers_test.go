package handlers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlouiLouai/educ/internal/config"
	"github.com/AlouiLouai/educ/internal/identity"
	"github.com/AlouiLouai/educ/internal/models"
	"github.com/AlouiLouai/educ/internal/repository"
	"github.com/AlouiLouai/educ/internal/service"
	"github.com/AlouiLouai/educ/internal/tasks"
)

type memIdentity struct {
	mu       sync.Mutex
	next     models.Identity
	created  bool
	sessions map[string]string
	users    map[string]models.Identity
	deleted  []string
}

func newMemIdentity() *memIdentity {
	return &memIdentity{sessions: map[string]string{}, users: map[string]models.Identity{}}
}

func (m *memIdentity) LoginURL(_ context.Context, hints identity.Hints) (string, error) {
	return "https://accounts.example.com/o/oauth2/auth?state=s1&role=" + hints.Role, nil
}

func (m *memIdentity) ConsumeState(context.Context, string) (identity.Hints, error) {
	return identity.Hints{}, identity.ErrInvalidState
}

func (m *memIdentity) ExchangeCodeForSession(_ context.Context, code string) (identity.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if code == "bad" {
		return identity.Session{}, identity.ErrExchangeFailed
	}
	user := m.next
	if existing, ok := m.users[user.ID]; ok {
		user = existing
	} else {
		m.users[user.ID] = user
	}
	token := "tok-" + code
	m.sessions[token] = user.ID
	return identity.Session{Token: token, Identity: user, Created: m.created}, nil
}

func (m *memIdentity) GetUser(_ context.Context, token string) (models.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.sessions[token]
	if !ok {
		return models.Identity{}, identity.ErrSessionNotFound
	}
	return m.users[id], nil
}

func (m *memIdentity) UpdateAppMetadata(_ context.Context, id string, meta models.AppMetadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user := m.users[id]
	user.AppMetadata = meta
	m.users[id] = user
	return nil
}

func (m *memIdentity) SignOut(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
	return nil
}

func (m *memIdentity) AdminDeleteUser(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, id)
	delete(m.users, id)
	for token, uid := range m.sessions {
		if uid == id {
			delete(m.sessions, token)
		}
	}
	return nil
}

type memProfiles struct {
	mu   sync.Mutex
	rows map[string]models.Profile
}

func (m *memProfiles) GetByID(_ context.Context, id string) (models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok {
		return models.Profile{}, repository.ErrProfileNotFound
	}
	return p, nil
}

func (m *memProfiles) CreateIfAbsent(_ context.Context, p models.Profile) (models.Profile, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[p.ID]; ok {
		return models.Profile{}, false, nil
	}
	m.rows[p.ID] = p
	return p, true, nil
}

func (m *memProfiles) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, id)
	return nil
}

func (m *memProfiles) List(context.Context, models.Role, int, int) ([]models.Profile, error) {
	return nil, nil
}

func (m *memProfiles) CountByRole(context.Context) (map[models.Role]int, error) {
	return map[models.Role]int{}, nil
}

func (m *memProfiles) UpdateRole(_ context.Context, id string, role models.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok {
		return repository.ErrProfileNotFound
	}
	p.Role = role
	m.rows[id] = p
	return nil
}

type memRoles struct {
	mu    sync.Mutex
	roles map[string]models.Role
}

func (m *memRoles) Get(_ context.Context, id string) (models.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.roles[id], nil
}

func (m *memRoles) Set(_ context.Context, id string, role models.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roles[id] = role
	return nil
}

func (m *memRoles) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.roles, id)
	return nil
}

type memQueue struct {
	mu    sync.Mutex
	tasks []tasks.Task
}

func (m *memQueue) Enqueue(_ context.Context, task tasks.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = append(m.tasks, task)
	return nil
}

type memDocs struct {
	mu        sync.Mutex
	rows      map[string]models.Document
	createErr error
}

func (m *memDocs) Create(_ context.Context, doc models.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.rows[doc.ID] = doc
	return nil
}

func (m *memDocs) GetByID(_ context.Context, id string) (models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.rows[id]
	if !ok {
		return models.Document{}, repository.ErrDocumentNotFound
	}
	return doc, nil
}

func (m *memDocs) ListByTeacher(_ context.Context, teacherID string, _, _ int) ([]models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Document
	for _, d := range m.rows {
		if d.TeacherID == teacherID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memDocs) ListPublished(context.Context, models.DocumentFilter) ([]models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Document
	for _, d := range m.rows {
		if d.Status == models.DocumentStatusPublished {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memDocs) List(context.Context, int, int) ([]models.Document, error) {
	return nil, nil
}

func (m *memDocs) CountByStatus(context.Context, string) (map[models.DocumentStatus]int, error) {
	return map[models.DocumentStatus]int{}, nil
}

func (m *memDocs) UpdateStatus(_ context.Context, id string, status models.DocumentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.rows[id]
	d.Status = status
	m.rows[id] = d
	return nil
}

func (m *memDocs) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, id)
	return nil
}

type memObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	removed []string
}

func (m *memObjects) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) (int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return int64(len(data)), nil
}

func (m *memObjects) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, key)
	delete(m.objects, key)
	return nil
}

func (m *memObjects) PresignGet(_ context.Context, key, _ string) (string, error) {
	return "https://storage.local/docs/" + key, nil
}

type testApp struct {
	router   *gin.Engine
	identity *memIdentity
	profiles *memProfiles
	roles    *memRoles
	queue    *memQueue
	docs     *memDocs
	objects  *memObjects
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	app := &testApp{
		identity: newMemIdentity(),
		profiles: &memProfiles{rows: map[string]models.Profile{}},
		roles:    &memRoles{roles: map[string]models.Role{}},
		queue:    &memQueue{},
		docs:     &memDocs{rows: map[string]models.Document{}},
		objects:  &memObjects{objects: map[string][]byte{}},
	}
	app.identity.next = models.Identity{ID: "u-1", Email: "amira@example.com", CreatedAt: time.Now()}
	app.identity.created = true

	cfg := &config.AppConfig{
		Environment: "test",
		Session:     config.SessionConfig{CookieName: "session", TTL: time.Hour, OrphanWindow: 30 * time.Second},
	}
	log := zerolog.Nop()

	h := NewHandlerSet(log, cfg, Dependencies{
		Identity: app.identity,
		Auth: service.NewAuthService(app.identity, app.profiles, app.roles, app.queue, service.AuthOptions{
			OrphanWindow: cfg.Session.OrphanWindow,
		}, log),
		Documents: service.NewDocumentService(app.docs, app.objects, app.queue, service.DocumentOptions{
			MaxFileSize: 1 << 20, Concurrency: 3,
		}, log),
		Admin:    service.NewAdminService(app.profiles, app.docs, app.identity, app.roles, log),
		Profiles: app.profiles,
		Roles:    app.roles,
		Database: func(context.Context) error { return nil },
		Cache:    func(context.Context) error { return errors.New("redis down") },
	})

	router := gin.New()
	router.Use(h.Gate())
	h.Register(router)
	app.router = router
	return app
}

func (a *testApp) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func cookieMap(rec *httptest.ResponseRecorder) map[string]*http.Cookie {
	res := rec.Result()
	defer res.Body.Close()
	out := map[string]*http.Cookie{}
	for _, ck := range res.Cookies() {
		out[ck.Name] = ck
	}
	return out
}

func TestCallbackSignUpSetsCookies(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(httptest.NewRequest(http.MethodGet, "/auth/callback?code=abc&mode=signup&role=teacher", nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/teacher", rec.Header().Get("Location"))

	cookies := cookieMap(rec)
	require.Contains(t, cookies, "session")
	assert.Equal(t, "tok-abc", cookies["session"].Value)
	assert.True(t, cookies["session"].HttpOnly)
	assert.Equal(t, "teacher", cookies["role"].Value)
	assert.Equal(t, "1", cookies["profile-exists"].Value)
	assert.Equal(t, "1", cookies["authenticated"].Value)
}

func TestCallbackSignInWithoutAccount(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(httptest.NewRequest(http.MethodGet, "/auth/callback?code=abc", nil))

	assert.Equal(t, "/?error=account_not_found&mode=signup", rec.Header().Get("Location"))
	cookies := cookieMap(rec)
	assert.Less(t, cookies["session"].MaxAge, 0)
	assert.Less(t, cookies["authenticated"].MaxAge, 0)
	assert.Equal(t, []string{"u-1"}, app.identity.deleted)
}

func TestCallbackBadCode(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(httptest.NewRequest(http.MethodGet, "/auth/callback?code=bad", nil))
	assert.Equal(t, "/?error=auth_failed", rec.Header().Get("Location"))

	rec = app.do(httptest.NewRequest(http.MethodGet, "/auth/callback", nil))
	assert.Equal(t, "/", rec.Header().Get("Location"))
}

func TestLoginRedirectsToProvider(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(httptest.NewRequest(http.MethodGet, "/auth/login?role=teacher&mode=signup", nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Location"), "https://accounts.example.com/"))
}

func TestGateProtectsTeacherPages(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(httptest.NewRequest(http.MethodGet, "/teacher/dashboard", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/?auth=teacher", rec.Header().Get("Location"))

	signup := app.do(httptest.NewRequest(http.MethodGet, "/auth/callback?code=abc&mode=signup&role=teacher", nil))
	session := cookieMap(signup)["session"]

	req := httptest.NewRequest(http.MethodGet, "/teacher", nil)
	req.AddCookie(session)
	rec = app.do(req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.AddCookie(session)
	rec = app.do(req)
	assert.Equal(t, "/?auth=admin", rec.Header().Get("Location"))
}

func TestSignOutAlwaysClearsCookies(t *testing.T) {
	app := newTestApp(t)

	for _, withSession := range []bool{false, true} {
		req := httptest.NewRequest(http.MethodPost, "/auth/signout", nil)
		if withSession {
			signup := app.do(httptest.NewRequest(http.MethodGet, "/auth/callback?code=abc&mode=signup", nil))
			req.AddCookie(cookieMap(signup)["session"])
		}
		rec := app.do(req)

		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/", rec.Header().Get("Location"))
		cookies := cookieMap(rec)
		for _, name := range []string{"session", "role", "profile-exists", "authenticated"} {
			require.Contains(t, cookies, name)
			assert.Less(t, cookies[name].MaxAge, 0, name)
		}
	}
	assert.Empty(t, app.identity.sessions)
}

func TestDeleteAccount(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(httptest.NewRequest(http.MethodPost, "/auth/delete-account", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Empty(t, app.identity.deleted, "no session means nothing is deleted")

	signup := app.do(httptest.NewRequest(http.MethodGet, "/auth/callback?code=abc&mode=signup&role=teacher", nil))
	req := httptest.NewRequest(http.MethodPost, "/auth/delete-account", nil)
	req.AddCookie(cookieMap(signup)["session"])
	rec = app.do(req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	assert.Equal(t, []string{"u-1"}, app.identity.deleted)
	assert.Empty(t, app.profiles.rows)
	require.Len(t, app.queue.tasks, 1)
	assert.Equal(t, "u-1/", app.queue.tasks[0].Prefix)
}

func multipartUpload(t *testing.T, files map[string][]byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	require.NoError(t, w.WriteField("title", "Géométrie"))
	require.NoError(t, w.WriteField("price", "12"))
	for name, data := range files {
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition", `form-data; name="files"; filename="`+name+`"`)
		hdr.Set("Content-Type", "application/pdf")
		part, err := w.CreatePart(hdr)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func signedUpTeacher(t *testing.T, app *testApp) *http.Cookie {
	t.Helper()
	rec := app.do(httptest.NewRequest(http.MethodGet, "/auth/callback?code=abc&mode=signup&role=teacher", nil))
	session := cookieMap(rec)["session"]
	require.NotNil(t, session)
	return session
}

func TestUploadDocuments(t *testing.T) {
	app := newTestApp(t)
	session := signedUpTeacher(t, app)

	req := multipartUpload(t, map[string][]byte{"cours.pdf": []byte("%PDF-1.4 body")})
	req.AddCookie(session)
	rec := app.do(req)

	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"status":"success"`)
	assert.Len(t, app.docs.rows, 1)
	assert.Len(t, app.objects.objects, 1)
}

func TestUploadInsertFailureCompensates(t *testing.T) {
	app := newTestApp(t)
	session := signedUpTeacher(t, app)
	app.docs.createErr = errors.New("db down")

	req := multipartUpload(t, map[string][]byte{"cours.pdf": []byte("%PDF-1.4 body")})
	req.AddCookie(session)
	rec := app.do(req)

	assert.Equal(t, http.StatusMultiStatus, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"error"`)
	assert.Len(t, app.objects.removed, 1)
	assert.Empty(t, app.objects.objects)
}

func TestDocumentsRequireSessionAndRole(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	app.identity.next = models.Identity{ID: "s-1", CreatedAt: time.Now()}
	signup := app.do(httptest.NewRequest(http.MethodGet, "/auth/callback?code=xyz&mode=signup&role=student", nil))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil)
	req.AddCookie(cookieMap(signup)["session"])
	rec = app.do(req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMe(t *testing.T) {
	app := newTestApp(t)
	session := signedUpTeacher(t, app)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.AddCookie(session)
	rec := app.do(req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"role":"teacher"`)
	assert.Contains(t, rec.Body.String(), `"displayName":"amira@example.com"`)
}

func TestHealthReportsDegradedCache(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(httptest.NewRequest(http.MethodGet, "/api/healthz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"cache":"error"`)
	assert.Contains(t, rec.Body.String(), `"database":"ok"`)
}

func (a *testApp) seedSession(token string, user models.Identity) *http.Cookie {
	a.identity.mu.Lock()
	defer a.identity.mu.Unlock()
	a.identity.users[user.ID] = user
	a.identity.sessions[token] = user.ID
	return &http.Cookie{Name: "session", Value: token}
}

func TestRoleAreaIgnoresForgedCookies(t *testing.T) {
	app := newTestApp(t)
	session := app.seedSession("tok-x", models.Identity{ID: "u-9"})

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.AddCookie(session)
	req.AddCookie(&http.Cookie{Name: "role", Value: "admin"})
	req.AddCookie(&http.Cookie{Name: "profile-exists", Value: "1"})
	rec := app.do(req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/?auth=admin", rec.Header().Get("Location"))
	assert.NotContains(t, rec.Body.String(), "stats")
}

func TestRoleAreaChecksStoredRole(t *testing.T) {
	app := newTestApp(t)
	session := app.seedSession("tok-s", models.Identity{ID: "s-1"})
	app.profiles.rows["s-1"] = models.Profile{ID: "s-1", Role: models.RoleStudent}

	req := httptest.NewRequest(http.MethodGet, "/teacher", nil)
	req.AddCookie(session)
	req.AddCookie(&http.Cookie{Name: "role", Value: "teacher"})
	req.AddCookie(&http.Cookie{Name: "profile-exists", Value: "1"})
	rec := app.do(req)
	assert.Equal(t, "/?auth=teacher", rec.Header().Get("Location"))

	req = httptest.NewRequest(http.MethodGet, "/student", nil)
	req.AddCookie(session)
	req.AddCookie(&http.Cookie{Name: "role", Value: "student"})
	req.AddCookie(&http.Cookie{Name: "profile-exists", Value: "1"})
	rec = app.do(req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"userId":"s-1"`)
}

func TestAdminCannotUpload(t *testing.T) {
	app := newTestApp(t)
	session := app.seedSession("tok-a", models.Identity{ID: "a-1"})
	app.profiles.rows["a-1"] = models.Profile{ID: "a-1", Role: models.RoleAdmin}
	app.docs.rows["d-1"] = models.Document{ID: "d-1", TeacherID: "t-1", Status: models.DocumentStatusDraft}

	req := multipartUpload(t, map[string][]byte{"cours.pdf": []byte("%PDF-1.4 body")})
	req.AddCookie(session)
	rec := app.do(req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, app.objects.objects)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/documents?teacherId=t-1", nil)
	req.AddCookie(session)
	rec = app.do(req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"d-1"`)
}
