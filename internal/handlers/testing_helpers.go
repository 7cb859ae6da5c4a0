package handlers

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/loganlanou/authgate/storage"
	"github.com/loganlanou/authgate/storage/db"
)

// NewTestContext creates a new Echo context for testing. A non-nil form is
// sent url-encoded.
func NewTestContext(method, path string, form url.Values) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()

	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath(path)

	return c, rec
}

// NewTestDB creates a test database with migrations applied
func NewTestDB() (*sql.DB, *db.Queries, func()) {
	database, queries, cleanup, err := storage.NewTestDB()
	if err != nil {
		panic("failed to create test database: " + err.Error())
	}
	return database, queries, cleanup
}

// Browser drives a handler the way a browser would, carrying cookies from
// one response to the next request. Redirects are not followed.
type Browser struct {
	Handler http.Handler

	mu      sync.Mutex
	cookies map[string]*http.Cookie
}

func NewBrowser(h http.Handler) *Browser {
	return &Browser{Handler: h, cookies: make(map[string]*http.Cookie)}
}

func (b *Browser) Do(req *http.Request) *httptest.ResponseRecorder {
	b.mu.Lock()
	for _, ck := range b.cookies {
		req.AddCookie(ck)
	}
	b.mu.Unlock()

	rec := httptest.NewRecorder()
	b.Handler.ServeHTTP(rec, req)

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ck := range rec.Result().Cookies() {
		if ck.MaxAge < 0 || ck.Value == "" {
			delete(b.cookies, ck.Name)
			continue
		}
		b.cookies[ck.Name] = ck
	}
	return rec
}

func (b *Browser) Get(path string) *httptest.ResponseRecorder {
	return b.Do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (b *Browser) PostForm(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	return b.Do(req)
}

// Cookie returns the cookie the browser currently holds under name.
func (b *Browser) Cookie(name string) *http.Cookie {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cookies[name]
}
