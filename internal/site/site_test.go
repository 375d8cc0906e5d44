package site

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/Zachkp/portfolio/internal/config"
	"github.com/Zachkp/portfolio/internal/contact"
	"github.com/Zachkp/portfolio/internal/content"
	"github.com/Zachkp/portfolio/internal/metrics"
	"github.com/Zachkp/portfolio/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeRelay struct {
	mu    sync.Mutex
	calls int
	last  contact.Payload
	err   error
}

func (f *fakeRelay) Send(_ context.Context, p contact.Payload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = p
	return f.err
}

func (f *fakeRelay) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testConfig() config.Config {
	return config.Config{
		Env:      "dev",
		LogLevel: "debug",
		Relay: config.RelayConfig{
			Provider:       config.ProviderLog,
			Timeout:        time.Second,
			RecipientLabel: "Zach",
		},
		Admin: config.AdminConfig{Username: "admin"},
	}
}

type harness struct {
	site    *Site
	relay   *fakeRelay
	store   *store.Store
	metrics *metrics.Metrics
}

func newHarness(t *testing.T, cfg config.Config) *harness {
	t.Helper()

	c, err := content.Default()
	if err != nil {
		t.Fatalf("content.Default: %v", err)
	}
	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "site.db"), store.WithSalt("test"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	h := &harness{relay: &fakeRelay{}, store: st, metrics: metrics.New()}
	h.site, err = New(cfg, Deps{Content: c, Relay: h.relay, Store: st, Metrics: h.metrics})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(h.site.Close)
	return h
}

func (h *harness) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.site.Handler().ServeHTTP(w, req)
	return w
}

func formRequest(path string, vals url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(vals.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func validForm() url.Values {
	return url.Values{
		"name":    {"Ada"},
		"email":   {"ada@example.com"},
		"subject": {"Hello"},
		"message": {"I would like to talk about a project."},
	}
}

func TestNew_RequiresContentAndRelay(t *testing.T) {
	if _, err := New(testConfig(), Deps{Relay: &fakeRelay{}}); err == nil {
		t.Error("New without content: expected error")
	}
	c, _ := content.Default()
	if _, err := New(testConfig(), Deps{Content: c}); err == nil {
		t.Error("New without relay: expected error")
	}
}

func TestIndex(t *testing.T) {
	h := newHarness(t, testConfig())

	w := h.do(httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{
		`class="theme-dark"`,
		"Terminal Mail Client",
		"Western Governors University",
		`id="contact-form"`,
		`name="message"`,
		"Available for new projects",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("index missing %q", want)
		}
	}
}

func TestContact_InvalidShowsErrorsAndSkipsRelay(t *testing.T) {
	h := newHarness(t, testConfig())

	w := h.do(formRequest("/contact", url.Values{
		"email":   {"not-an-email"},
		"message": {"short"},
	}))
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{
		contact.MsgNameRequired,
		contact.MsgEmailInvalid,
		contact.MsgSubjectRequired,
		contact.MsgMessageTooShort,
		`value="not-an-email"`,
		">short</textarea>",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
	if h.relay.Calls() != 0 {
		t.Errorf("relay called %d times, want 0", h.relay.Calls())
	}
}

func TestContact_EmptyMessageShowsLengthError(t *testing.T) {
	h := newHarness(t, testConfig())

	vals := validForm()
	vals.Set("message", "")
	w := h.do(formRequest("/contact", vals))
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}
	if !strings.Contains(w.Body.String(), contact.MsgMessageTooShort) {
		t.Error("expected the length message for an empty message")
	}
}

func TestContact_Success(t *testing.T) {
	h := newHarness(t, testConfig())

	w := h.do(formRequest("/contact", validForm()))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "Message sent successfully!") {
		t.Error("missing success banner")
	}
	if strings.Contains(body, `value="Ada"`) {
		t.Error("fields should be cleared after success")
	}

	if h.relay.Calls() != 1 {
		t.Fatalf("relay called %d times, want 1", h.relay.Calls())
	}
	want := contact.Payload{
		FromName:  "Ada",
		FromEmail: "ada@example.com",
		Subject:   "Hello",
		Message:   "I would like to talk about a project.",
		ToName:    "Zach",
	}
	if h.relay.last != want {
		t.Errorf("payload = %+v, want %+v", h.relay.last, want)
	}
}

func TestContact_RelayFailureKeepsValues(t *testing.T) {
	h := newHarness(t, testConfig())
	h.relay.err = errors.New("smtp exploded")

	w := h.do(formRequest("/contact", validForm()))
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{
		"Failed to send message",
		"Please try again or contact me directly.",
		`value="Ada"`,
		`value="ada@example.com"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
	if strings.Contains(body, "smtp exploded") {
		t.Error("relay error detail leaked into the page")
	}
}

func TestContact_HTMXGetsFragment(t *testing.T) {
	h := newHarness(t, testConfig())

	req := formRequest("/contact", validForm())
	req.Header.Set("HX-Request", "true")
	w := h.do(req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	if strings.Contains(body, "<!DOCTYPE html>") {
		t.Error("HTMX response should be a fragment")
	}
	if !strings.Contains(body, `id="contact-form"`) {
		t.Error("fragment missing the form")
	}
}

func TestContactForm_Fragment(t *testing.T) {
	h := newHarness(t, testConfig())

	w := h.do(httptest.NewRequest(http.MethodGet, "/contact-form", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, `id="contact-form"`) || strings.Contains(body, "<!DOCTYPE html>") {
		t.Errorf("unexpected fragment:\n%s", body)
	}
}

func TestContact_OutcomesRecorded(t *testing.T) {
	h := newHarness(t, testConfig())

	h.do(formRequest("/contact", url.Values{}))
	h.do(formRequest("/contact", validForm()))
	h.relay.err = errors.New("down")
	h.do(formRequest("/contact", validForm()))

	stats, err := h.store.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	for outcome, want := range map[store.Outcome]int64{
		store.OutcomeInvalid: 1,
		store.OutcomeSuccess: 1,
		store.OutcomeError:   1,
	} {
		if got := stats.Submissions[outcome]; got != want {
			t.Errorf("submissions[%s] = %d, want %d", outcome, got, want)
		}
	}

	w := h.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := w.Body.String()
	for _, want := range []string{
		`contact_submissions_total{outcome="invalid"} 1`,
		`contact_submissions_total{outcome="success"} 1`,
		`contact_relay_duration_seconds_count 2`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestContactField_ClearsError(t *testing.T) {
	h := newHarness(t, testConfig())

	w := h.do(formRequest("/contact/field", url.Values{
		"field": {"email"},
		"email": {"ada@"},
	}))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, `id="error-email"`) || !strings.Contains(body, `value="ada@"`) {
		t.Errorf("unexpected field fragment:\n%s", body)
	}
	if strings.Contains(body, "has-error") || strings.Contains(body, contact.MsgEmailInvalid) {
		t.Error("field update must not re-validate")
	}

	w = h.do(formRequest("/contact/field", url.Values{"field": {"phone"}}))
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown field status = %d, want 400", w.Code)
	}
}

func postJSON(path string, v any) *http.Request {
	b, _ := json.Marshal(v)
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(string(b)))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decode(t *testing.T, r io.Reader) apiResponse {
	t.Helper()
	var resp apiResponse
	if err := json.NewDecoder(r).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp
}

func TestContactAPI(t *testing.T) {
	h := newHarness(t, testConfig())

	w := h.do(postJSON("/api/contact", map[string]string{"name": "Ada", "email": "nope"}))
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid status = %d, want 422", w.Code)
	}
	resp := decode(t, w.Body)
	if resp.Status != "invalid" || resp.Errors["email"] != contact.MsgEmailInvalid {
		t.Errorf("invalid response = %+v", resp)
	}
	if _, ok := resp.Errors["name"]; ok {
		t.Error("name is valid and should have no error")
	}

	w = h.do(postJSON("/api/contact", map[string]string{
		"name":    "Ada",
		"email":   "ada@example.com",
		"subject": "Hi",
		"message": "Long enough message.",
	}))
	if w.Code != http.StatusOK {
		t.Fatalf("success status = %d, want 200", w.Code)
	}
	resp = decode(t, w.Body)
	if resp.Status != "success" || resp.Reference == "" {
		t.Errorf("success response = %+v", resp)
	}

	w = h.do(httptest.NewRequest(http.MethodPost, "/api/contact", strings.NewReader("{")))
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad JSON status = %d, want 400", w.Code)
	}
}

func TestContact_RateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.ContactRatePerMinute = 1
	cfg.ContactBurst = 1
	h := newHarness(t, cfg)

	if w := h.do(formRequest("/contact", validForm())); w.Code != http.StatusOK {
		t.Fatalf("first status = %d, want 200", w.Code)
	}
	w := h.do(formRequest("/contact", validForm()))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d, want 429", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Please wait a minute") {
		t.Error("missing rate limit notice")
	}
	if !strings.Contains(w.Body.String(), `value="Ada"`) {
		t.Error("rate limited form should keep values")
	}
	if h.relay.Calls() != 1 {
		t.Errorf("relay called %d times, want 1", h.relay.Calls())
	}

	w = h.do(postJSON("/api/contact", validForm()))
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("api status = %d, want 429", w.Code)
	}
}

func TestProjects_Filter(t *testing.T) {
	h := newHarness(t, testConfig())

	tests := []struct {
		query   string
		want    []string
		notWant []string
	}{
		{"category=cli", []string{"Terminal Mail Client", "Terminal Music Player"}, []string{"Game Recommender"}},
		{"category=all&q=SCIKIT", []string{"Game Recommender"}, []string{"Terminal Mail Client"}},
		{"", []string{"Terminal Mail Client", "Portfolio Website"}, nil},
		{"q=cobol", []string{"No projects match"}, []string{"Game Recommender"}},
	}
	for _, tt := range tests {
		w := h.do(httptest.NewRequest(http.MethodGet, "/projects?"+tt.query, nil))
		if w.Code != http.StatusOK {
			t.Fatalf("%q: status = %d", tt.query, w.Code)
		}
		body := w.Body.String()
		for _, s := range tt.want {
			if !strings.Contains(body, s) {
				t.Errorf("%q: missing %q", tt.query, s)
			}
		}
		for _, s := range tt.notWant {
			if strings.Contains(body, s) {
				t.Errorf("%q: unexpected %q", tt.query, s)
			}
		}
	}
}

func TestTheme(t *testing.T) {
	if Toggle(ThemeDark) != ThemeLight || Toggle(ThemeLight) != ThemeDark || Toggle("") != ThemeLight {
		t.Error("Toggle should flip light and dark, treating unknown as dark")
	}

	h := newHarness(t, testConfig())

	req := httptest.NewRequest(http.MethodPost, "/theme", nil)
	req.Header.Set("Referer", "http://example.com/privacy")
	w := h.do(req)
	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/privacy" {
		t.Errorf("Location = %q, want /privacy", loc)
	}
	if sc := w.Header().Get("Set-Cookie"); !strings.Contains(sc, "theme=light") {
		t.Errorf("Set-Cookie = %q, want theme=light", sc)
	}

	req = httptest.NewRequest(http.MethodPost, "/theme", nil)
	req.Header.Set("Referer", "https://evil.example/")
	req.AddCookie(&http.Cookie{Name: "theme", Value: "light"})
	w = h.do(req)
	if loc := w.Header().Get("Location"); loc != "/" {
		t.Errorf("Location = %q, want /", loc)
	}
	if sc := w.Header().Get("Set-Cookie"); !strings.Contains(sc, "theme=dark") {
		t.Errorf("Set-Cookie = %q, want theme=dark", sc)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "theme", Value: "light"})
	if body := h.do(req).Body.String(); !strings.Contains(body, `class="theme-light"`) {
		t.Error("index should render the light theme from the cookie")
	}
}

func TestHealthz(t *testing.T) {
	h := newHarness(t, testConfig())

	w := h.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" || body["database"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestNotFound(t *testing.T) {
	h := newHarness(t, testConfig())

	w := h.do(httptest.NewRequest(http.MethodGet, "/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if !strings.Contains(w.Body.String(), "That page doesn") {
		t.Error("missing not found page")
	}
}

func TestStatic(t *testing.T) {
	h := newHarness(t, testConfig())

	w := h.do(httptest.NewRequest(http.MethodGet, "/static/site.css", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "--accent") {
		t.Error("unexpected stylesheet body")
	}
}

func TestVisitTracking(t *testing.T) {
	h := newHarness(t, testConfig())

	h.do(httptest.NewRequest(http.MethodGet, "/", nil))
	h.do(httptest.NewRequest(http.MethodGet, "/privacy", nil))
	h.do(httptest.NewRequest(http.MethodGet, "/static/site.css", nil))
	h.do(httptest.NewRequest(http.MethodGet, "/nope", nil))
	dnt := httptest.NewRequest(http.MethodGet, "/", nil)
	dnt.Header.Set("DNT", "1")
	h.do(dnt)

	h.site.Close()

	stats, err := h.store.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalVisitors != 1 {
		t.Errorf("TotalVisitors = %d, want 1", stats.TotalVisitors)
	}
	if len(stats.TopPaths) != 1 || stats.TopPaths[0].Path != "/" {
		t.Errorf("TopPaths = %+v", stats.TopPaths)
	}
}

func TestTracked(t *testing.T) {
	tests := map[string]bool{
		"/":                true,
		"/static/site.css": false,
		"/admin/dashboard": false,
		"/privacy":         false,
		"/metrics":         false,
		"/contact-form":    false,
	}
	for path, want := range tests {
		if got := tracked(path); got != want {
			t.Errorf("tracked(%q) = %v, want %v", path, got, want)
		}
	}
}

func adminConfig() config.Config {
	cfg := testConfig()
	cfg.Admin = config.AdminConfig{Enabled: true, Username: "admin", Password: "hunter22"}
	return cfg
}

func login(t *testing.T, h *harness, user, pass string) *httptest.ResponseRecorder {
	t.Helper()
	return h.do(formRequest("/admin/login", url.Values{"username": {user}, "password": {pass}}))
}

func adminCookieFrom(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == adminCookie {
			return c
		}
	}
	t.Fatal("no admin cookie set")
	return nil
}

func TestAdmin_RequiresLogin(t *testing.T) {
	h := newHarness(t, adminConfig())

	for _, path := range []string{"/admin/dashboard", "/admin/api/stats", "/admin/visitors", "/admin/export/stats"} {
		w := h.do(httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusFound || w.Header().Get("Location") != "/admin/login" {
			t.Errorf("%s: status = %d, Location = %q", path, w.Code, w.Header().Get("Location"))
		}
	}

	if w := login(t, h, "admin", "wrong"); w.Code != http.StatusUnauthorized {
		t.Errorf("bad login status = %d, want 401", w.Code)
	}
}

func TestAdmin_Dashboard(t *testing.T) {
	h := newHarness(t, adminConfig())
	h.do(formRequest("/contact", validForm()))

	w := login(t, h, "admin", "hunter22")
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/admin/dashboard" {
		t.Fatalf("login status = %d, Location = %q", w.Code, w.Header().Get("Location"))
	}
	cookie := adminCookieFrom(t, w)

	get := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.AddCookie(cookie)
		return h.do(req)
	}

	w = get("/admin/dashboard")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Rejected by validation") {
		t.Errorf("dashboard status = %d", w.Code)
	}

	w = get("/admin/api/stats")
	if w.Code != http.StatusOK {
		t.Fatalf("api stats status = %d", w.Code)
	}
	var stats store.Stats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Submissions[store.OutcomeSuccess] != 1 {
		t.Errorf("submissions = %v", stats.Submissions)
	}

	w = get("/admin/export/stats")
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "admin-stats.json") {
		t.Errorf("Content-Disposition = %q", cd)
	}

	if w = get("/admin/visitors"); w.Code != http.StatusOK {
		t.Errorf("visitors status = %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/admin/privacy/cleanup", nil)
	req.AddCookie(cookie)
	if w = h.do(req); w.Code != http.StatusOK {
		t.Errorf("cleanup status = %d", w.Code)
	}

	w = get("/admin/logout")
	if w.Code != http.StatusFound {
		t.Errorf("logout status = %d", w.Code)
	}
}

func TestAdmin_PasswordHash(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret!"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	cfg := testConfig()
	cfg.Admin = config.AdminConfig{Enabled: true, Username: "admin", PasswordHash: string(hash)}
	h := newHarness(t, cfg)

	if w := login(t, h, "admin", "s3cret!"); w.Code != http.StatusFound {
		t.Errorf("hash login status = %d, want 302", w.Code)
	}
	if w := login(t, h, "admin", "admin123"); w.Code != http.StatusUnauthorized {
		t.Errorf("default password accepted with a hash configured: %d", w.Code)
	}
}

func TestAdmin_BadHashRejected(t *testing.T) {
	cfg := testConfig()
	cfg.Admin = config.AdminConfig{Enabled: true, PasswordHash: "not-bcrypt"}
	c, _ := content.Default()
	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "site.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	if _, err := New(cfg, Deps{Content: c, Relay: &fakeRelay{}, Store: st}); err == nil {
		t.Error("expected error for a malformed password hash")
	}
}

func TestAdmin_DevDefaultPassword(t *testing.T) {
	cfg := testConfig()
	cfg.Admin = config.AdminConfig{Enabled: true}
	h := newHarness(t, cfg)

	if w := login(t, h, "admin", devAdminPass); w.Code != http.StatusFound {
		t.Errorf("dev default login status = %d, want 302", w.Code)
	}
}

func TestContactForm_SubmitButtonDisabledByHTMX(t *testing.T) {
	h := newHarness(t, testConfig())

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/contact-form", nil),
		formRequest("/contact", validForm()),
		formRequest("/contact", url.Values{}),
	} {
		req.Header.Set("HX-Request", "true")
		body := h.do(req).Body.String()
		if !strings.Contains(body, `hx-disabled-elt="find button[type=submit]"`) {
			t.Errorf("%s %s: form does not disable its button while sending", req.Method, req.URL.Path)
		}
		if strings.Contains(body, "disabled>") || strings.Contains(body, " disabled ") {
			t.Errorf("%s %s: button rendered disabled", req.Method, req.URL.Path)
		}
	}
}
