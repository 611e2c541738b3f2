package controller_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/vibast-solutions/ms-go-accounts/app/controller"
	"github.com/vibast-solutions/ms-go-accounts/app/mailer"
	"github.com/vibast-solutions/ms-go-accounts/app/middleware"
	"github.com/vibast-solutions/ms-go-accounts/app/repository/memory"
	"github.com/vibast-solutions/ms-go-accounts/app/service"
	"github.com/vibast-solutions/ms-go-accounts/app/token"
	"github.com/vibast-solutions/ms-go-accounts/config"
)

var pngAvatar = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)

type recordingMailer struct {
	mu       sync.Mutex
	messages []mailer.Message
}

func (m *recordingMailer) Send(_ context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return nil
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

func (m *recordingMailer) lastLink(t *testing.T, template string) *url.URL {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.messages) - 1; i >= 0; i-- {
		if m.messages[i].Template == template {
			u, err := url.Parse(m.messages[i].Data["link"])
			if err != nil {
				t.Fatalf("invalid link: %v", err)
			}
			return u
		}
	}
	t.Fatalf("no %s mail was sent", template)
	return nil
}

type memoryBlobs struct {
	mu    sync.Mutex
	blobs map[string][]byte
	seq   int
}

func (b *memoryBlobs) Store(_ context.Context, dir string, data []byte, _ string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	path := fmt.Sprintf("%s/%d.png", dir, b.seq)
	b.blobs[path] = data
	return path, nil
}

func (b *memoryBlobs) Delete(_ context.Context, path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.blobs, path)
	return nil
}

type okPinger struct{ err error }

func (p okPinger) PingContext(context.Context) error { return p.err }

type testApp struct {
	e     *echo.Echo
	repos *memory.Manager
	mail  *recordingMailer
	blobs *memoryBlobs
}

func newTestApp(t *testing.T, disclose bool) *testApp {
	t.Helper()

	cfg := &config.Config{
		App: config.AppConfig{BaseURL: "http://accounts.test", DiscloseUnknownEmail: disclose},
		Tokens: config.TokenConfig{
			LinkSecret:      "controller-secret",
			VerifyTTL:       time.Hour,
			ResendVerifyTTL: 24 * time.Hour,
			ResetTTL:        time.Hour,
			ResetURL:        "http://accounts.test/reset-password",
		},
		Password: config.PasswordConfig{Policy: config.PasswordPolicy{MinLength: 8}},
	}

	app := &testApp{
		e:     echo.New(),
		repos: memory.NewManager(),
		mail:  &recordingMailer{},
		blobs: &memoryBlobs{blobs: map[string][]byte{}},
	}
	opts := []service.Option{service.WithAsyncRunner(func(task func()) { task() })}
	issuer := token.NewIssuer(cfg.Tokens.LinkSecret, cfg.App.BaseURL, 0, cfg.Tokens.ResetTTL)
	accounts := service.NewAccountService(app.repos, issuer, app.mail, app.blobs, cfg, opts...)
	profiles := service.NewProfileService(app.repos, app.blobs, opts...)
	directory := service.NewDirectoryService(app.repos, opts...)
	blobURL := func(path string) string { return "http://cdn.test/" + path }

	router := &controller.Router{
		Auth:         controller.NewAuthController(accounts, disclose),
		Verification: controller.NewVerificationController(accounts, disclose),
		Account:      controller.NewAccountController(accounts),
		Profile:      controller.NewProfileController(profiles, blobURL),
		Directory:    controller.NewDirectoryController(directory, blobURL),
		Health:       controller.NewHealthController(okPinger{}),
		RequireAuth:  middleware.NewAuthMiddleware(accounts).RequireAuth,
	}
	router.Register(app.e)
	return app
}

type envelope struct {
	Success              bool              `json:"success"`
	Message              string            `json:"message"`
	Data                 json.RawMessage   `json:"data"`
	Errors               map[string]string `json:"errors"`
	RequiresVerification bool              `json:"requires_verification"`
}

type response struct {
	code int
	body envelope
	raw  string
}

func (r response) data(t *testing.T, out any) {
	t.Helper()
	if err := json.Unmarshal(r.body.Data, out); err != nil {
		t.Fatalf("decode data failed: %v (%s)", err, r.raw)
	}
}

func (a *testApp) do(t *testing.T, req *http.Request) response {
	t.Helper()
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)

	res := response{code: rec.Code, raw: rec.Body.String()}
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &res.body); err != nil {
			t.Fatalf("decode response failed: %v (%s)", err, res.raw)
		}
	}
	return res
}

func (a *testApp) json(t *testing.T, method, target, bearer string, body any) response {
	t.Helper()
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			t.Fatalf("encode body failed: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, bytes.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	return a.do(t, req)
}

func (a *testApp) multipart(t *testing.T, target, bearer string, fields map[string]string, avatar []byte) response {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			t.Fatalf("write field failed: %v", err)
		}
	}
	if avatar != nil {
		part, err := writer.CreateFormFile("avatar", "avatar.png")
		if err != nil {
			t.Fatalf("create file failed: %v", err)
		}
		if _, err := part.Write(avatar); err != nil {
			t.Fatalf("write file failed: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodPut, target, &buf)
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	return a.do(t, req)
}

func (a *testApp) register(t *testing.T, name, email, password string) uint64 {
	t.Helper()
	res := a.json(t, http.MethodPost, "/register", "", map[string]string{
		"name":                  name,
		"email":                 email,
		"password":              password,
		"password_confirmation": password,
	})
	if res.code != http.StatusCreated {
		t.Fatalf("register expected 201, got %d: %s", res.code, res.raw)
	}
	var data struct {
		Account struct {
			ID uint64 `json:"id"`
		} `json:"account"`
	}
	res.data(t, &data)
	return data.Account.ID
}

func (a *testApp) verify(t *testing.T) response {
	t.Helper()
	link := a.mail.lastLink(t, mailer.TemplateVerifyEmail)
	return a.json(t, http.MethodGet, link.RequestURI(), "", nil)
}

func (a *testApp) login(t *testing.T, email, password string) string {
	t.Helper()
	res := a.json(t, http.MethodPost, "/login", "", map[string]string{"email": email, "password": password})
	if res.code != http.StatusOK {
		t.Fatalf("login expected 200, got %d: %s", res.code, res.raw)
	}
	var data struct {
		Token     string `json:"token"`
		TokenType string `json:"token_type"`
	}
	res.data(t, &data)
	if data.TokenType != "Bearer" || data.Token == "" {
		t.Fatalf("unexpected login data: %s", res.raw)
	}
	return data.Token
}

func (a *testApp) registerVerified(t *testing.T, name, email, password string) (uint64, string) {
	t.Helper()
	id := a.register(t, name, email, password)
	if res := a.verify(t); res.code != http.StatusOK {
		t.Fatalf("verify expected 200, got %d: %s", res.code, res.raw)
	}
	return id, a.login(t, email, password)
}
