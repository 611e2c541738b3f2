package service_test

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-accounts/app/entity"
	"github.com/vibast-solutions/ms-go-accounts/app/mailer"
	"github.com/vibast-solutions/ms-go-accounts/app/repository/memory"
	"github.com/vibast-solutions/ms-go-accounts/app/service"
	"github.com/vibast-solutions/ms-go-accounts/app/token"
	"github.com/vibast-solutions/ms-go-accounts/config"
)

var (
	pngAvatar  = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)
	jpegAvatar = append([]byte("\xff\xd8\xff\xe0"), make([]byte, 64)...)
)

type recordingMailer struct {
	mu       sync.Mutex
	messages []mailer.Message
	err      error
}

func (m *recordingMailer) Send(_ context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return m.err
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

func (m *recordingMailer) last(t *testing.T, template string) mailer.Message {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.messages) - 1; i >= 0; i-- {
		if m.messages[i].Template == template {
			return m.messages[i]
		}
	}
	t.Fatalf("no %s mail was sent", template)
	return mailer.Message{}
}

type memoryBlobs struct {
	mu        sync.Mutex
	blobs     map[string][]byte
	seq       int
	failStore error
}

func newMemoryBlobs() *memoryBlobs {
	return &memoryBlobs{blobs: map[string][]byte{}}
}

func (b *memoryBlobs) Store(_ context.Context, dir string, data []byte, contentType string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failStore != nil {
		return "", b.failStore
	}
	b.seq++
	ext := ".png"
	if contentType == "image/jpeg" {
		ext = ".jpg"
	}
	path := fmt.Sprintf("%s/%d%s", dir, b.seq, ext)
	b.blobs[path] = data
	return path, nil
}

func (b *memoryBlobs) Delete(_ context.Context, path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.blobs, path)
	return nil
}

func (b *memoryBlobs) has(path string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.blobs[path]
	return ok
}

func (b *memoryBlobs) size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.blobs)
}

type countingRecorder struct {
	mu     sync.Mutex
	events map[string]int
}

func (r *countingRecorder) Record(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.events == nil {
		r.events = map[string]int{}
	}
	r.events[event]++
}

func (r *countingRecorder) get(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[event]
}

type fakeIndex struct {
	mu      sync.Mutex
	indexed map[uint64]*entity.DirectoryEntry
	results []uint64
	err     error
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{indexed: map[uint64]*entity.DirectoryEntry{}}
}

func (f *fakeIndex) Index(_ context.Context, entry *entity.DirectoryEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed[entry.Account.ID] = entry
	return nil
}

func (f *fakeIndex) Remove(_ context.Context, accountID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.indexed, accountID)
	return nil
}

func (f *fakeIndex) Search(_ context.Context, _ string, _ int) ([]uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.results, f.err
}

func (f *fakeIndex) has(id uint64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.indexed[id]
	return ok
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{BaseURL: "http://accounts.test"},
		Tokens: config.TokenConfig{
			LinkSecret:      "test-link-secret",
			VerifyTTL:       time.Hour,
			ResendVerifyTTL: 24 * time.Hour,
			ResetTTL:        time.Hour,
			ResetURL:        "http://accounts.test/reset-password",
		},
		Password: config.PasswordConfig{
			Policy: config.PasswordPolicy{MinLength: 8},
		},
	}
}

type fixture struct {
	repos     *memory.Manager
	mail      *recordingMailer
	blobs     *memoryBlobs
	events    *countingRecorder
	index     *fakeIndex
	accounts  *service.AccountService
	profiles  *service.ProfileService
	directory *service.DirectoryService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := testConfig()
	f := &fixture{
		repos:  memory.NewManager(),
		mail:   &recordingMailer{},
		blobs:  newMemoryBlobs(),
		events: &countingRecorder{},
		index:  newFakeIndex(),
	}
	opts := []service.Option{
		service.WithAsyncRunner(func(task func()) { task() }),
		service.WithEventRecorder(f.events),
		service.WithDirectoryIndex(f.index),
	}
	issuer := token.NewIssuer(cfg.Tokens.LinkSecret, cfg.App.BaseURL, cfg.Tokens.SessionTTL, cfg.Tokens.ResetTTL)
	f.accounts = service.NewAccountService(f.repos, issuer, f.mail, f.blobs, cfg, opts...)
	f.profiles = service.NewProfileService(f.repos, f.blobs, opts...)
	f.directory = service.NewDirectoryService(f.repos, opts...)
	return f
}

func (f *fixture) register(t *testing.T, name, email, password string) *entity.Account {
	t.Helper()
	account, err := f.accounts.Register(context.Background(), service.RegisterInput{
		Name:     name,
		Email:    email,
		Password: password,
	})
	if err != nil {
		t.Fatalf("register %s failed: %v", email, err)
	}
	return account
}

// verifyLink splits the last verification link mailed to email.
func (f *fixture) verifyLink(t *testing.T, email string) (uint64, string, string) {
	t.Helper()
	msg := f.mail.last(t, mailer.TemplateVerifyEmail)
	if msg.To != email {
		t.Fatalf("expected verification mail to %s, got %s", email, msg.To)
	}
	u, err := url.Parse(msg.Data["link"])
	if err != nil {
		t.Fatalf("invalid verification link: %v", err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) != 4 {
		t.Fatalf("unexpected verification path: %s", u.Path)
	}
	id, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		t.Fatalf("invalid id in link: %v", err)
	}
	return id, parts[3], u.Query().Get("signature")
}

func (f *fixture) verify(t *testing.T, email string) {
	t.Helper()
	id, fp, sig := f.verifyLink(t, email)
	if _, err := f.accounts.VerifyEmail(context.Background(), id, fp, sig); err != nil {
		t.Fatalf("verify %s failed: %v", email, err)
	}
}

func (f *fixture) registerVerified(t *testing.T, name, email, password string) *entity.Account {
	t.Helper()
	account := f.register(t, name, email, password)
	f.verify(t, email)
	reloaded, err := f.repos.Accounts().FindByID(context.Background(), account.ID)
	if err != nil || reloaded == nil {
		t.Fatalf("reload failed: %v", err)
	}
	return reloaded
}

func (f *fixture) login(t *testing.T, email, password string) *service.LoginResult {
	t.Helper()
	result, err := f.accounts.Login(context.Background(), service.LoginInput{Email: email, Password: password})
	if err != nil {
		t.Fatalf("login %s failed: %v", email, err)
	}
	return result
}

func (f *fixture) actor(t *testing.T, secret string) *service.Actor {
	t.Helper()
	actor, err := f.accounts.Authenticate(context.Background(), secret)
	if err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}
	return actor
}

func (f *fixture) resetToken(t *testing.T, email string) string {
	t.Helper()
	msg := f.mail.last(t, mailer.TemplateResetPassword)
	if msg.To != email {
		t.Fatalf("expected reset mail to %s, got %s", email, msg.To)
	}
	u, err := url.Parse(msg.Data["link"])
	if err != nil {
		t.Fatalf("invalid reset link: %v", err)
	}
	return u.Query().Get("token")
}

func expectErr(t *testing.T, err, want error) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}

func strPtr(value string) *string {
	return &value
}
