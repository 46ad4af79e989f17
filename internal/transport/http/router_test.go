package httpserver

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/marketplace/internal/events"
	"github.com/Skotchmaster/marketplace/internal/logging"
	"github.com/Skotchmaster/marketplace/internal/metrics"
	"github.com/Skotchmaster/marketplace/internal/models"
	"github.com/Skotchmaster/marketplace/internal/repo"
	"github.com/Skotchmaster/marketplace/internal/service"
	"github.com/Skotchmaster/marketplace/internal/session"
	"github.com/Skotchmaster/marketplace/internal/storage"
	"github.com/Skotchmaster/marketplace/internal/testutil"
)

type app struct {
	e      *echo.Echo
	db     *gorm.DB
	images *storage.ImageStore
}

func newApp(t *testing.T) *app {
	t.Helper()

	gdb := testutil.OpenDB(t)
	r := repo.New(gdb)
	images, err := storage.NewImageStore(t.TempDir())
	require.NoError(t, err)

	store := session.NewGormStore(gdb, time.Hour)
	sessions := session.NewManager(store, []byte("router-test-secret"), false)
	m := metrics.New()

	h := &Handler{
		Auth:     &service.AuthService{Repo: r, Sessions: store, Events: events.Noop{}},
		Products: &service.ProductService{Repo: r, Images: images, Events: events.Noop{}},
		Sessions: sessions,
		Metrics:  m,
		DB:       gdb,
	}

	e, err := New(&Deps{
		Handler:   h,
		Sessions:  sessions,
		Metrics:   m,
		Logger:    logging.NewWithWriter(io.Discard, "error"),
		UploadDir: images.Dir,
		BodyLimit: "2M",
	})
	require.NoError(t, err)
	return &app{e: e, db: gdb, images: images}
}

// browser keeps cookies between requests and plays back the CSRF token.
type browser struct {
	t   *testing.T
	e   *echo.Echo
	jar map[string]string
}

func (a *app) browser(t *testing.T) *browser {
	b := &browser{t: t, e: a.e, jar: map[string]string{}}
	b.get("/")
	require.NotEmpty(t, b.jar["XSRF-TOKEN"])
	return b
}

func (b *browser) do(method, target string, body io.Reader, contentType string, withToken bool) *httptest.ResponseRecorder {
	b.t.Helper()

	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	for name, value := range b.jar {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}
	if method != http.MethodGet {
		req.Header.Set("Origin", "http://example.com")
		if withToken {
			req.Header.Set("X-CSRF-Token", b.jar["XSRF-TOKEN"])
		}
	}

	rec := httptest.NewRecorder()
	b.e.ServeHTTP(rec, req)

	for _, ck := range rec.Result().Cookies() {
		if ck.MaxAge < 0 || ck.Value == "" {
			delete(b.jar, ck.Name)
			continue
		}
		b.jar[ck.Name] = ck.Value
	}
	return rec
}

func (b *browser) get(target string) *httptest.ResponseRecorder {
	return b.do(http.MethodGet, target, nil, "", false)
}

func (b *browser) postForm(target string, values url.Values) *httptest.ResponseRecorder {
	return b.do(http.MethodPost, target, strings.NewReader(values.Encode()), echo.MIMEApplicationForm, true)
}

func (b *browser) postMultipart(target string, values url.Values, fileName string, content []byte) *httptest.ResponseRecorder {
	b.t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, vs := range values {
		for _, v := range vs {
			require.NoError(b.t, mw.WriteField(k, v))
		}
	}
	if fileName != "" {
		fw, err := mw.CreateFormFile("image", fileName)
		require.NoError(b.t, err)
		_, err = fw.Write(content)
		require.NoError(b.t, err)
	}
	require.NoError(b.t, mw.Close())
	return b.do(http.MethodPost, target, &buf, mw.FormDataContentType(), true)
}

func assertRedirect(t *testing.T, rec *httptest.ResponseRecorder, to string) {
	t.Helper()
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, to, rec.Header().Get(echo.HeaderLocation))
}

func (b *browser) signupAndLogin(username string) {
	b.t.Helper()
	rec := b.postForm("/signup", url.Values{
		"fullname":    {username + " Test"},
		"username":    {username},
		"email":       {username + "@example.com"},
		"password":    {"pw1234"},
		"re_password": {"pw1234"},
	})
	assertRedirect(b.t, rec, "/login")

	rec = b.postForm("/login", url.Values{"username": {username}, "password": {"pw1234"}})
	assertRedirect(b.t, rec, "/dashboard")
	require.NotEmpty(b.t, b.jar[session.DefaultCookieName])
}

func productValues(name string) url.Values {
	return url.Values{
		"category":     {"Shoes"},
		"product_name": {name},
		"description":  {"fast"},
		"price_range":  {"50-100"},
	}
}

func TestFlow_SignupLoginAddDeleteLogout(t *testing.T) {
	a := newApp(t)
	ann := a.browser(t)

	rec := ann.postForm("/signup", url.Values{
		"fullname": {"Ann Lee"}, "username": {"ann"}, "email": {"ann@x.com"},
		"password": {"pw1234"}, "re_password": {"pw1234"},
	})
	assertRedirect(t, rec, "/login")

	rec = ann.get("/login")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), MsgSignedUp)

	rec = ann.postForm("/login", url.Values{"username": {"ann"}, "password": {"pw1234"}})
	assertRedirect(t, rec, "/dashboard")

	rec = ann.get("/dashboard")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Welcome, ann")
	assert.Contains(t, rec.Body.String(), MsgLoggedIn)

	rec = ann.postMultipart("/add_product", productValues("Runner"), "shoe.png", []byte("png"))
	assertRedirect(t, rec, "/dashboard")

	var prod models.Product
	require.NoError(t, a.db.Where("name = ?", "Runner").First(&prod).Error)
	_, err := os.Stat(a.images.Dir + "/" + prod.Filename)
	require.NoError(t, err)

	rec = ann.get("/")
	assert.Contains(t, rec.Body.String(), "Runner")
	assert.Contains(t, rec.Body.String(), "Listed by ann")

	rec = ann.get("/static/images/" + prod.Filename)
	assert.Equal(t, http.StatusOK, rec.Code)

	bob := a.browser(t)
	bob.signupAndLogin("bob")

	rec = bob.get(fmt.Sprintf("/delete_product/%d", prod.ID))
	assertRedirect(t, rec, "/edit_product")
	rec = bob.get("/edit_product")
	assert.Contains(t, rec.Body.String(), MsgDeleteDenied)

	var count int64
	require.NoError(t, a.db.Model(&models.Product{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	rec = ann.postForm(fmt.Sprintf("/delete_product/%d", prod.ID), url.Values{})
	assertRedirect(t, rec, "/edit_product")
	rec = ann.get("/edit_product")
	assert.Contains(t, rec.Body.String(), MsgProductDeleted)

	require.NoError(t, a.db.Model(&models.Product{}).Count(&count).Error)
	assert.Zero(t, count)

	rec = ann.get("/logout")
	assertRedirect(t, rec, "/login")
	assert.Empty(t, ann.jar[session.DefaultCookieName])

	rec = ann.get("/dashboard")
	assertRedirect(t, rec, "/login")
}

func TestGate_RedirectsAnonymous(t *testing.T) {
	a := newApp(t)
	anon := a.browser(t)

	for _, path := range []string{"/dashboard", "/add_product", "/edit_product", "/update_product/1", "/delete_product/1", "/logout"} {
		rec := anon.get(path)
		assertRedirect(t, rec, "/login")
	}
}

func TestSignup_ErrorsRedisplayForm(t *testing.T) {
	a := newApp(t)
	b := a.browser(t)
	b.signupAndLogin("ann")

	tests := []struct {
		name   string
		values url.Values
		want   string
	}{
		{
			name:   "missing",
			values: url.Values{"username": {"zed"}},
			want:   "All fields are required!",
		},
		{
			name:   "mismatch",
			values: url.Values{"fullname": {"Z"}, "username": {"zed"}, "email": {"z@x.com"}, "password": {"a"}, "re_password": {"b"}},
			want:   "Passwords do not match!",
		},
		{
			name:   "taken",
			values: url.Values{"fullname": {"Z"}, "username": {"ann"}, "email": {"z@x.com"}, "password": {"a"}, "re_password": {"a"}},
			want:   MsgTaken,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := b.postForm("/signup", tt.values)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.want)
		})
	}

	rec := b.postForm("/login", url.Values{"username": {"ann"}, "password": {"wrong"}})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), MsgBadCredentials)
}

func TestAddAndUpdateProduct_Errors(t *testing.T) {
	a := newApp(t)
	ann := a.browser(t)
	ann.signupAndLogin("ann")

	rec := ann.postMultipart("/add_product", productValues("Runner"), "malware.exe", []byte("MZ"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), MsgInvalidFileType)

	rec = ann.postMultipart("/add_product", productValues("Runner"), "", nil)
	assert.Contains(t, rec.Body.String(), MsgInvalidFileType)

	missing := productValues("Runner")
	missing.Del("price_range")
	rec = ann.postMultipart("/add_product", missing, "shoe.jpg", []byte("jpg"))
	assert.Contains(t, rec.Body.String(), "All fields are required except comments.")

	var count int64
	require.NoError(t, a.db.Model(&models.Product{}).Count(&count).Error)
	assert.Zero(t, count)

	rec = ann.postMultipart("/add_product", productValues("Runner"), "shoe.GIF", []byte("gif"))
	assertRedirect(t, rec, "/dashboard")
	var prod models.Product
	require.NoError(t, a.db.First(&prod).Error)

	rec = ann.get(fmt.Sprintf("/update_product/%d", prod.ID))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Edit Runner")

	rec = ann.postForm(fmt.Sprintf("/update_product/%d", prod.ID), url.Values{"product_name": {"only"}})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "All fields are required except comments.")

	edited := productValues("RenamedRunner")
	edited.Set("description", "")
	edited.Set("comments", "half typed")
	rec = ann.postForm(fmt.Sprintf("/update_product/%d", prod.ID), edited)
	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "All fields are required except comments.")
	assert.Contains(t, body, `value="RenamedRunner"`)
	assert.Contains(t, body, "half typed")
	var stored models.Product
	require.NoError(t, a.db.First(&stored, prod.ID).Error)
	assert.Equal(t, "Runner", stored.Name)

	rec = ann.postForm(fmt.Sprintf("/update_product/%d", prod.ID), productValues("Runner v2"))
	assertRedirect(t, rec, "/edit_product")
	rec = ann.get("/edit_product")
	assert.Contains(t, rec.Body.String(), MsgProductUpdated)
	assert.Contains(t, rec.Body.String(), "Runner v2")

	bob := a.browser(t)
	bob.signupAndLogin("bob")
	rec = bob.postForm(fmt.Sprintf("/update_product/%d", prod.ID), productValues("Stolen"))
	assertRedirect(t, rec, "/edit_product")
	rec = bob.get("/edit_product")
	assert.Contains(t, rec.Body.String(), MsgEditDenied)

	rec = bob.get("/update_product/not-a-number")
	assertRedirect(t, rec, "/edit_product")
}

func TestCSRF_Enforced(t *testing.T) {
	a := newApp(t)
	b := a.browser(t)

	rec := b.do(http.MethodPost, "/login", strings.NewReader("username=ann&password=pw"), echo.MIMEApplicationForm, false)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPublicEndpoints(t *testing.T) {
	a := newApp(t)
	b := a.browser(t)

	rec := b.get("/date_time")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Regexp(t, regexp.MustCompile(`^\d{2}-\d{2}-\d{4} \d{2}:\d{2}:\d{2}$`), rec.Body.String())

	assert.Equal(t, http.StatusOK, b.get("/health/live").Code)
	assert.Equal(t, http.StatusOK, b.get("/health/ready").Code)

	rec = b.get("/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "marketplace_http_requests_total")

	rec = b.get("/search?q=nothing")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Results for")
}

func TestDeleteByLink_RefusesCrossSite(t *testing.T) {
	a := newApp(t)
	ann := a.browser(t)
	ann.signupAndLogin("ann")

	rec := ann.postMultipart("/add_product", productValues("Runner"), "shoe.png", []byte("png"))
	assertRedirect(t, rec, "/dashboard")
	var prod models.Product
	require.NoError(t, a.db.First(&prod).Error)

	for _, target := range []string{fmt.Sprintf("/delete_product/%d", prod.ID), "/logout"} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		req.Header.Set("Sec-Fetch-Site", "cross-site")
		for name, value := range ann.jar {
			req.AddCookie(&http.Cookie{Name: name, Value: value})
		}
		rec = httptest.NewRecorder()
		a.e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code, target)
	}

	var count int64
	require.NoError(t, a.db.Model(&models.Product{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
	assert.Equal(t, http.StatusOK, ann.get("/dashboard").Code)
}

func TestMetrics_CountsRecoveredPanics(t *testing.T) {
	a := newApp(t)
	a.e.GET("/boom", func(echo.Context) error { panic("boom") })
	b := a.browser(t)

	rec := b.get("/boom")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = b.get("/metrics")
	assert.Contains(t, rec.Body.String(), `marketplace_http_requests_total{method="GET",route="/boom",status="500"} 1`)
}
