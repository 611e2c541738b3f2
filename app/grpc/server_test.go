package grpc_test

import (
	"context"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	accountsgrpc "github.com/vibast-solutions/ms-go-accounts/app/grpc"
	"github.com/vibast-solutions/ms-go-accounts/app/mailer"
	"github.com/vibast-solutions/ms-go-accounts/app/repository/memory"
	"github.com/vibast-solutions/ms-go-accounts/app/service"
	"github.com/vibast-solutions/ms-go-accounts/app/token"
	"github.com/vibast-solutions/ms-go-accounts/app/types"
	"github.com/vibast-solutions/ms-go-accounts/config"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

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

func (m *recordingMailer) lastLink(t *testing.T) *url.URL {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.messages) == 0 {
		t.Fatalf("no mail was sent")
	}
	u, err := url.Parse(m.messages[len(m.messages)-1].Data["link"])
	if err != nil {
		t.Fatalf("invalid link: %v", err)
	}
	return u
}

type nopBlobs struct{}

func (nopBlobs) Store(context.Context, string, []byte, string) (string, error) { return "", nil }
func (nopBlobs) Delete(context.Context, string) error { return nil }

type harness struct {
	conn      *grpc.ClientConn
	client    types.AccountServiceClient
	accounts  *service.AccountService
	mail      *recordingMailer
	apiKey    string
	searchKey string
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	cfg := &config.Config{
		App: config.AppConfig{BaseURL: "http://accounts.test"},
		Tokens: config.TokenConfig{
			LinkSecret:      "grpc-secret",
			VerifyTTL:       time.Hour,
			ResendVerifyTTL: 24 * time.Hour,
			ResetTTL:        time.Hour,
			ResetURL:        "http://accounts.test/reset-password",
		},
		Password: config.PasswordConfig{Policy: config.PasswordPolicy{MinLength: 8}},
	}
	mail := &recordingMailer{}
	issuer := token.NewIssuer(cfg.Tokens.LinkSecret, cfg.App.BaseURL, 0, cfg.Tokens.ResetTTL)
	repos := memory.NewManager()
	accounts := service.NewAccountService(repos, issuer, mail, nopBlobs{}, cfg,
		service.WithAsyncRunner(func(task func()) { task() }))

	internal := service.NewInternalAuthService(repos.InternalAPIKeys(), "accounts")
	rawKey := generateKey(t, internal, "billing", "accounts")
	searchKey := generateKey(t, internal, "search")

	lis := bufconn.Listen(1024 * 1024)
	server := accountsgrpc.NewServer(accounts, internal)
	go func() {
		_ = server.Serve(lis)
	}()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
		server.Stop()
	})

	return &harness{
		conn:      conn,
		client:    types.NewAccountServiceClient(conn),
		accounts:  accounts,
		mail:      mail,
		apiKey:    rawKey,
		searchKey: searchKey,
	}
}

func (h *harness) authed() context.Context {
	return metadata.AppendToOutgoingContext(context.Background(), "x-api-key", h.apiKey)
}

// registerVerified registers, verifies and logs in an account, returning its
// id and bearer secret.
func (h *harness) registerVerified(t *testing.T, email string) (uint64, string) {
	t.Helper()
	ctx := context.Background()
	account, err := h.accounts.Register(ctx, service.RegisterInput{Name: "Ada", Email: email, Password: "secret123"})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	link := h.mail.lastLink(t)
	parts := strings.Split(strings.Trim(link.Path, "/"), "/")
	id, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		t.Fatalf("invalid link id: %v", err)
	}
	if _, err := h.accounts.VerifyEmail(ctx, id, parts[3], link.Query().Get("signature")); err != nil {
		t.Fatalf("verify failed: %v", err)
	}

	result, err := h.accounts.Login(ctx, service.LoginInput{Email: email, Password: "secret123"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	return account.ID, result.Token
}

func TestValidateToken(t *testing.T) {
	h := newHarness(t)
	id, secret := h.registerVerified(t, "ada@example.com")

	res, err := h.client.ValidateToken(h.authed(), &types.ValidateTokenRequest{Token: secret})
	if err != nil {
		t.Fatalf("validate token failed: %v", err)
	}
	if res.GetAccountId() != id || res.Email != "ada@example.com" || res.Name != "Ada" || res.IsAdmin {
		t.Fatalf("unexpected response: %+v", res)
	}

	_, err = h.client.ValidateToken(h.authed(), &types.ValidateTokenRequest{Token: "1|bogus"})
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected unauthenticated, got %v", err)
	}

	_, err = h.client.ValidateToken(h.authed(), &types.ValidateTokenRequest{})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestGetAccount(t *testing.T) {
	h := newHarness(t)
	id, _ := h.registerVerified(t, "ada@example.com")

	res, err := h.client.GetAccount(h.authed(), &types.GetAccountRequest{Id: id})
	if err != nil {
		t.Fatalf("get account failed: %v", err)
	}
	if res.GetId() != id || !res.GetEmailVerified() || res.GetEmail() != "ada@example.com" {
		t.Fatalf("unexpected account: %+v", res)
	}
	if _, err := time.Parse(time.RFC3339, res.GetCreatedAt()); err != nil {
		t.Fatalf("expected RFC3339 created_at, got %q", res.GetCreatedAt())
	}

	unverified, err := h.accounts.Register(context.Background(), service.RegisterInput{Name: "Bob", Email: "bob@example.com", Password: "secret123"})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	_, err = h.client.GetAccount(h.authed(), &types.GetAccountRequest{Id: unverified.ID})
	if status.Code(err) != codes.NotFound {
		t.Fatalf("expected not found for unverified account, got %v", err)
	}

	_, err = h.client.GetAccount(h.authed(), &types.GetAccountRequest{})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestAPIKeyRequired(t *testing.T) {
	h := newHarness(t)

	_, err := h.client.GetAccount(context.Background(), &types.GetAccountRequest{Id: 1})
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected unauthenticated without key, got %v", err)
	}

	ctx := metadata.AppendToOutgoingContext(context.Background(), "x-api-key", "msint_wrong")
	_, err = h.client.GetAccount(ctx, &types.GetAccountRequest{Id: 1})
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected unauthenticated with wrong key, got %v", err)
	}

	ctx = metadata.AppendToOutgoingContext(context.Background(), "x-api-key", h.searchKey)
	_, err = h.client.GetAccount(ctx, &types.GetAccountRequest{Id: 1})
	if status.Code(err) != codes.PermissionDenied {
		t.Fatalf("expected permission denied for a caller without access, got %v", err)
	}
}

func TestHealthIsPublic(t *testing.T) {
	h := newHarness(t)

	res, err := healthpb.NewHealthClient(h.conn).Check(context.Background(), &healthpb.HealthCheckRequest{
		Service: types.AccountService_ServiceDesc.ServiceName,
	})
	if err != nil {
		t.Fatalf("health check failed: %v", err)
	}
	if res.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("unexpected health status: %v", res.GetStatus())
	}
}
