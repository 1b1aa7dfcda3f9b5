package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	apihandlers "github.com/nordqvist/hnfweb/internal/api/handlers"
	"github.com/nordqvist/hnfweb/internal/service"
	"github.com/nordqvist/hnfweb/internal/testutil"
	"github.com/nordqvist/hnfweb/internal/ui/auth"
	uihandlers "github.com/nordqvist/hnfweb/internal/ui/handlers"
	uimiddleware "github.com/nordqvist/hnfweb/internal/ui/middleware"
)

const (
	adminEmail    = "admin@example.com"
	adminPassword = "correct-horse"
)

// site — сайт целиком поверх in-memory фейков.
type site struct {
	server *httptest.Server
	client *http.Client
	users  *testutil.UserRepo
	images *testutil.ImageRepo
	store  *testutil.ObjectStore
	mailer *testutil.Mailer
}

type siteOptions struct {
	noStorage      bool
	maxUploadBytes int64
}

func newSite(t *testing.T, opts siteOptions) *site {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s := &site{
		users:  testutil.NewUserRepo(),
		images: testutil.NewImageRepo(),
		store:  testutil.NewObjectStore(),
		mailer: &testutil.Mailer{},
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, s.users.Create(context.Background(), adminEmail, string(hash)))

	sessions, err := auth.NewSessionManager("test-secret", false)
	require.NoError(t, err)

	var store service.ObjectStore
	if !opts.noStorage {
		store = s.store
	}
	if opts.maxUploadBytes == 0 {
		opts.maxUploadBytes = 10 << 20
	}

	authService := service.NewAuthService(s.users, logger)
	contactService := service.NewContactService(s.mailer, service.ContactConfig{
		From:    "info@nordqvist.tech",
		To:      "info@nordqvist.tech",
		Subject: "New message from HNF webshop",
	}, logger)
	imageService := service.NewImageService(s.images, store, "inspiration", logger)

	router := NewRouter(logger, Handlers{
		Health:   apihandlers.NewHealthHandler(nil),
		Pages:    uihandlers.NewPagesHandler(imageService, sessions, logger),
		Auth:     uihandlers.NewAuthHandler(authService, sessions, logger),
		Contact:  uihandlers.NewContactHandler(contactService, sessions, logger),
		Admin:    uihandlers.NewAdminHandler(imageService, opts.maxUploadBytes, sessions, logger),
		Sessions: uimiddleware.NewSessions(sessions, logger),
	})

	s.server = httptest.NewServer(router)
	t.Cleanup(s.server.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	s.client = &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return s
}

type response struct {
	status   int
	location string
	body     string
}

func (s *site) do(t *testing.T, req *http.Request) response {
	t.Helper()
	resp, err := s.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return response{status: resp.StatusCode, location: resp.Header.Get("Location"), body: string(body)}
}

func (s *site) get(t *testing.T, path string) response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, s.server.URL+path, nil)
	require.NoError(t, err)
	return s.do(t, req)
}

func (s *site) postForm(t *testing.T, path string, form url.Values) response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, s.server.URL+path, strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return s.do(t, req)
}

func (s *site) upload(t *testing.T, filename, contentType string, data []byte, alt string) response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" || data != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="image"; filename="`+filename+`"`)
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.WriteField("alt_text", alt))
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, s.server.URL+"/admin/upload", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return s.do(t, req)
}

func (s *site) login(t *testing.T) {
	t.Helper()
	resp := s.postForm(t, "/login", url.Values{"email": {adminEmail}, "password": {adminPassword}})
	require.Equal(t, http.StatusFound, resp.status)
	require.Equal(t, "/admin", resp.location)
}

func TestPublicPages(t *testing.T) {
	s := newSite(t, siteOptions{})

	for _, path := range []string{"/", "/inspiration", "/about", "/contact", "/login"} {
		resp := s.get(t, path)
		assert.Equal(t, http.StatusOK, resp.status, path)
		assert.Contains(t, resp.body, "<!DOCTYPE html>", path)
	}

	resp := s.get(t, "/no-such-page")
	assert.Equal(t, http.StatusNotFound, resp.status)
	assert.Contains(t, resp.body, "Page not found")

	resp = s.get(t, "/static/css/site.css")
	assert.Equal(t, http.StatusOK, resp.status)

	resp = s.get(t, "/health/live")
	assert.Equal(t, http.StatusOK, resp.status)
}

func TestGatedRoutesRedirectToLogin(t *testing.T) {
	s := newSite(t, siteOptions{})

	requests := []struct {
		method, path string
	}{
		{http.MethodGet, "/admin"},
		{http.MethodGet, "/register"},
		{http.MethodPost, "/register"},
		{http.MethodPost, "/admin/upload"},
		{http.MethodPost, "/admin/images/1/delete"},
		{http.MethodPost, "/admin/images/1/deactivate"},
		{http.MethodPost, "/admin/images/1/activate"},
	}
	for _, rr := range requests {
		req, err := http.NewRequest(rr.method, s.server.URL+rr.path, nil)
		require.NoError(t, err)
		resp := s.do(t, req)
		assert.Equal(t, http.StatusFound, resp.status, rr.path)
		assert.Equal(t, "/login", resp.location, rr.path)
	}
}

func TestForgedSessionCookieIsIgnored(t *testing.T) {
	s := newSite(t, siteOptions{})

	other, err := auth.NewSessionManager("attacker-secret", false)
	require.NoError(t, err)
	forged, err := other.Encode(&auth.SessionData{AdminLoggedIn: true, AdminEmail: adminEmail})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, s.server.URL+"/admin", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: forged})
	resp := s.do(t, req)

	assert.Equal(t, http.StatusFound, resp.status)
	assert.Equal(t, "/login", resp.location)
}

func TestLoginFlow(t *testing.T) {
	s := newSite(t, siteOptions{})
	s.login(t)

	resp := s.get(t, "/admin")
	require.Equal(t, http.StatusOK, resp.status)
	assert.Contains(t, resp.body, uihandlers.MsgLoginSuccess)
	assert.Contains(t, resp.body, adminEmail)

	// Flash показывается один раз
	resp = s.get(t, "/admin")
	assert.NotContains(t, resp.body, uihandlers.MsgLoginSuccess)
}

// Неизвестный email и неверный пароль неразличимы.
func TestLoginFailuresAreIdentical(t *testing.T) {
	s := newSite(t, siteOptions{})

	unknown := s.postForm(t, "/login", url.Values{"email": {"nobody@example.com"}, "password": {adminPassword}})
	wrong := s.postForm(t, "/login", url.Values{"email": {adminEmail}, "password": {"wrong-password"}})

	assert.Equal(t, http.StatusOK, unknown.status)
	assert.Equal(t, http.StatusOK, wrong.status)
	assert.Contains(t, unknown.body, uihandlers.MsgWrongCredentials)
	assert.Equal(t,
		strings.ReplaceAll(unknown.body, "nobody@example.com", ""),
		strings.ReplaceAll(wrong.body, adminEmail, ""),
	)

	// После неудачного входа доступа нет
	resp := s.get(t, "/admin")
	assert.Equal(t, http.StatusFound, resp.status)
}

func TestLoginEmptyEmail(t *testing.T) {
	s := newSite(t, siteOptions{})
	resp := s.postForm(t, "/login", url.Values{"email": {"   "}, "password": {"x"}})
	assert.Equal(t, http.StatusOK, resp.status)
	assert.Contains(t, resp.body, service.MsgInvalidEmail)
}

func TestRegistration(t *testing.T) {
	s := newSite(t, siteOptions{})
	s.login(t)

	register := func(email, password, repeat string) response {
		return s.postForm(t, "/register", url.Values{
			"email":           {email},
			"password":        {password},
			"password_repeat": {repeat},
		})
	}

	tests := []struct {
		name                    string
		email, password, repeat string
		message                 string
	}{
		{"empty email", "", "password1", "password1", service.MsgInvalidEmail},
		{"missing repeat", "new@example.com", "password1", "", service.MsgPasswordTwice},
		{"mismatch", "new@example.com", "password1", "password2", service.MsgPasswordMismatch},
		{"too short", "new@example.com", "short", "short", service.MsgPasswordShort},
		{"taken", adminEmail, "password1", "password1", service.MsgEmailTaken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := register(tt.email, tt.password, tt.repeat)
			assert.Equal(t, http.StatusOK, resp.status)
			assert.Contains(t, resp.body, tt.message)
			assert.Equal(t, 1, s.users.Count(), "учётная запись не должна создаваться")
		})
	}

	resp := register(" new@example.com ", "password1", "password1")
	assert.Equal(t, http.StatusFound, resp.status)
	assert.Equal(t, "/login", resp.location)
	assert.Equal(t, 2, s.users.Count())

	resp = s.get(t, "/login")
	assert.Contains(t, resp.body, uihandlers.MsgRegisterSuccess)

	// Новая учётная запись может войти
	resp = s.postForm(t, "/login", url.Values{"email": {"new@example.com"}, "password": {"password1"}})
	assert.Equal(t, http.StatusFound, resp.status)
}

func TestRegistrationStoreFailure(t *testing.T) {
	s := newSite(t, siteOptions{})
	s.login(t)
	s.users.Err = errors.New("db down")

	resp := s.postForm(t, "/register", url.Values{
		"email":           {"new@example.com"},
		"password":        {"password1"},
		"password_repeat": {"password1"},
	})
	assert.Equal(t, http.StatusOK, resp.status)
	assert.Contains(t, resp.body, uihandlers.MsgRegisterError)
	assert.NotContains(t, resp.body, "db down")
}

func TestLogout(t *testing.T) {
	s := newSite(t, siteOptions{})
	s.login(t)

	resp := s.get(t, "/logout")
	assert.Equal(t, http.StatusFound, resp.status)
	assert.Equal(t, "/", resp.location)

	resp = s.get(t, "/")
	assert.Contains(t, resp.body, uihandlers.MsgLoggedOut)

	resp = s.get(t, "/admin")
	assert.Equal(t, http.StatusFound, resp.status)
	assert.Equal(t, "/login", resp.location)
}

func TestContactForm(t *testing.T) {
	s := newSite(t, siteOptions{})

	resp := s.postForm(t, "/send", url.Values{
		"name":    {"<script>alert(1)</script>"},
		"email":   {"visitor@example.com"},
		"message": {"Line 1\nLine 2"},
	})
	assert.Equal(t, http.StatusFound, resp.status)
	assert.Equal(t, "/contact", resp.location)

	sent := s.mailer.Sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].HTML, "Line 1<br>Line 2")
	assert.NotContains(t, sent[0].HTML, "&lt;br&gt;")
	assert.NotContains(t, sent[0].HTML, "<script>alert(1)</script>")
	assert.Contains(t, sent[0].HTML, "Not provided")
	assert.Equal(t, "visitor@example.com", sent[0].ReplyTo)

	resp = s.get(t, "/contact")
	assert.Contains(t, resp.body, uihandlers.MsgContactSent)
}

func TestContactFormValidation(t *testing.T) {
	s := newSite(t, siteOptions{})

	tests := []struct {
		name    string
		email   string
		message string
		want    string
	}{
		{"missing email", "", "hello", service.MsgContactRequired},
		{"missing message", "visitor@example.com", "  ", service.MsgContactRequired},
		{"no at", "not-an-email", "hello", service.MsgInvalidEmail},
		{"no dot", "user@nodot", "hello", service.MsgInvalidEmail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := s.postForm(t, "/send", url.Values{"email": {tt.email}, "message": {tt.message}})
			assert.Equal(t, http.StatusOK, resp.status)
			assert.Contains(t, resp.body, tt.want)
		})
	}
	assert.Empty(t, s.mailer.Sent(), "отправитель не должен вызываться")
}

func TestContactFormSendFailure(t *testing.T) {
	s := newSite(t, siteOptions{})
	s.mailer.Err = errors.New("resend unavailable")

	resp := s.postForm(t, "/send", url.Values{
		"email":   {"visitor@example.com"},
		"message": {"<script>alert(1)</script>"},
	})
	assert.Equal(t, http.StatusOK, resp.status)
	assert.Contains(t, resp.body, uihandlers.MsgContactError)
	assert.NotContains(t, resp.body, "resend unavailable")
	// Введённое сообщение возвращается в форму экранированным
	assert.NotContains(t, resp.body, "<script>alert(1)</script>")
	assert.Contains(t, resp.body, "&lt;script&gt;")
}

func TestUploadAndGallery(t *testing.T) {
	s := newSite(t, siteOptions{})
	s.login(t)

	resp := s.upload(t, "kitchen.jpg", "image/jpeg", []byte("jpeg-bytes"), "Kitchen")
	assert.Equal(t, http.StatusFound, resp.status)
	assert.Equal(t, "/admin", resp.location)

	keys := s.store.Keys()
	require.Len(t, keys, 1)
	assert.True(t, strings.HasPrefix(keys[0], "inspiration/"))
	assert.True(t, strings.HasSuffix(keys[0], ".jpg"))
	obj, _ := s.store.Get(keys[0])
	assert.Equal(t, "image/jpeg", obj.ContentType)

	resp = s.get(t, "/admin")
	assert.Contains(t, resp.body, uihandlers.MsgUploadSuccess)
	assert.Contains(t, resp.body, "https://cdn.test/"+keys[0])

	resp = s.get(t, "/inspiration")
	assert.Contains(t, resp.body, "https://cdn.test/"+keys[0])
	assert.Contains(t, resp.body, `alt="Kitchen"`)
}

func TestUploadWithoutFile(t *testing.T) {
	s := newSite(t, siteOptions{})
	s.login(t)

	resp := s.upload(t, "", "", nil, "")
	assert.Equal(t, http.StatusFound, resp.status)

	resp = s.get(t, "/admin")
	assert.Contains(t, resp.body, uihandlers.MsgChooseImage)
	assert.Empty(t, s.store.Keys())
}

func TestUploadTooLarge(t *testing.T) {
	s := newSite(t, siteOptions{maxUploadBytes: 1024})
	s.login(t)

	resp := s.upload(t, "big.jpg", "image/jpeg", bytes.Repeat([]byte("x"), 4096), "")
	assert.Equal(t, http.StatusFound, resp.status)

	resp = s.get(t, "/admin")
	assert.Contains(t, resp.body, uihandlers.MsgImageTooLarge)
	assert.Empty(t, s.store.Keys())
}

// Сбой записи в БД оставляет объект в хранилище и пустую галерею.
func TestUploadInsertFailureLeavesOrphan(t *testing.T) {
	s := newSite(t, siteOptions{})
	s.login(t)
	s.images.CreateErr = errors.New("db down")

	resp := s.upload(t, "kitchen.jpg", "image/jpeg", []byte("jpeg-bytes"), "")
	assert.Equal(t, http.StatusFound, resp.status)

	assert.Len(t, s.store.Keys(), 1)
	resp = s.get(t, "/admin")
	assert.Contains(t, resp.body, uihandlers.MsgUploadOrphaned)

	resp = s.get(t, "/inspiration")
	assert.Contains(t, resp.body, "No images yet")
}

func TestUploadStorageNotConfigured(t *testing.T) {
	s := newSite(t, siteOptions{noStorage: true})
	s.login(t)

	resp := s.get(t, "/admin")
	assert.Contains(t, resp.body, uihandlers.MsgStorageNotConfigured)

	resp = s.upload(t, "kitchen.jpg", "image/jpeg", []byte("jpeg-bytes"), "")
	assert.Equal(t, http.StatusFound, resp.status)
	resp = s.get(t, "/admin")
	assert.Contains(t, resp.body, uihandlers.MsgStorageNotConfigured)
}

func TestDeactivateActivateDelete(t *testing.T) {
	s := newSite(t, siteOptions{})
	s.login(t)

	s.upload(t, "a.jpg", "image/jpeg", []byte("a"), "")
	keys := s.store.Keys()
	require.Len(t, keys, 1)
	imageURL := "https://cdn.test/" + keys[0]

	all, err := s.images.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	id := strconv.FormatInt(all[0].ID, 10)

	// Скрытое изображение пропадает из галереи, но остаётся в админке
	resp := s.postForm(t, "/admin/images/"+id+"/deactivate", nil)
	assert.Equal(t, http.StatusFound, resp.status)
	// Flash показывается один раз: на первой странице после редиректа
	admin := s.get(t, "/admin").body
	assert.Contains(t, admin, imageURL)
	assert.Contains(t, admin, uihandlers.MsgImageHidden)
	assert.NotContains(t, s.get(t, "/inspiration").body, imageURL)
	assert.NotContains(t, s.get(t, "/admin").body, uihandlers.MsgImageHidden)

	s.postForm(t, "/admin/images/"+id+"/activate", nil)
	assert.Contains(t, s.get(t, "/inspiration").body, imageURL)

	resp = s.postForm(t, "/admin/images/"+id+"/delete", nil)
	assert.Equal(t, http.StatusFound, resp.status)
	assert.Contains(t, s.get(t, "/admin").body, uihandlers.MsgImageDeleted)
	assert.Empty(t, s.store.Keys())
	assert.NotContains(t, s.get(t, "/inspiration").body, imageURL)

	// Повторное удаление: изображение уже не найдено
	s.postForm(t, "/admin/images/"+id+"/delete", nil)
	assert.Contains(t, s.get(t, "/admin").body, uihandlers.MsgImageNotFound)

	s.postForm(t, "/admin/images/abc/delete", nil)
	assert.Contains(t, s.get(t, "/admin").body, uihandlers.MsgImageNotFound)
}

func TestDeleteStorageFailureStillDeletesRecord(t *testing.T) {
	s := newSite(t, siteOptions{})
	s.login(t)

	s.upload(t, "a.jpg", "image/jpeg", []byte("a"), "")
	all, err := s.images.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	s.store.DeleteErr = errors.New("r2 down")

	s.postForm(t, "/admin/images/"+strconv.FormatInt(all[0].ID, 10)+"/delete", nil)
	assert.Contains(t, s.get(t, "/admin").body, uihandlers.MsgImageDeletedPartial)

	all, err = s.images.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Len(t, s.store.Keys(), 1)
}
