package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-accounts/app/entity"
	"github.com/vibast-solutions/ms-go-accounts/app/repository"
	"github.com/vibast-solutions/ms-go-accounts/app/repository/memory"
)

func TestManager_TransactionRollbackDiscardsWrites(t *testing.T) {
	m := memory.NewManager()
	ctx := context.Background()

	err := m.WithTx(ctx, func(ctx context.Context, tx repository.Manager) error {
		if err := tx.Accounts().Create(ctx, &entity.Account{Email: "a@x.com", CanonicalEmail: "a@x.com", PasswordHash: "h"}); err != nil {
			return err
		}
		return errors.New("abort")
	})
	if err == nil {
		t.Fatalf("expected error")
	}

	account, err := m.Accounts().FindByCanonicalEmail(ctx, "a@x.com")
	if err != nil || account != nil {
		t.Fatalf("expected rolled back account to be absent, got %+v %v", account, err)
	}
}

func TestManager_DuplicateCanonicalEmail(t *testing.T) {
	m := memory.NewManager()
	ctx := context.Background()

	if err := m.Accounts().Create(ctx, &entity.Account{CanonicalEmail: "a@x.com"}); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	err := m.Accounts().Create(ctx, &entity.Account{CanonicalEmail: "a@x.com"})
	if !errors.Is(err, repository.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestManager_DeleteAccountCascades(t *testing.T) {
	m := memory.NewManager()
	ctx := context.Background()

	account := &entity.Account{CanonicalEmail: "a@x.com"}
	if err := m.Accounts().Create(ctx, account); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := m.Profiles().Create(ctx, &entity.Profile{AccountID: account.ID}); err != nil {
		t.Fatalf("create profile failed: %v", err)
	}
	if err := m.Sessions().Create(ctx, &entity.SessionToken{AccountID: account.ID, TokenHash: "t"}); err != nil {
		t.Fatalf("create session failed: %v", err)
	}

	if _, err := m.Accounts().Delete(ctx, account.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if p, _ := m.Profiles().FindByAccountID(ctx, account.ID); p != nil {
		t.Fatalf("expected profile to cascade")
	}
	if s, _ := m.Sessions().FindByHash(ctx, "t"); s != nil {
		t.Fatalf("expected session to cascade")
	}
}

func TestManager_FailOnIsOneShot(t *testing.T) {
	m := memory.NewManager()
	ctx := context.Background()
	boom := errors.New("boom")

	m.FailOn("profiles.create", boom)
	if err := m.Profiles().Create(ctx, &entity.Profile{AccountID: 1}); !errors.Is(err, boom) {
		t.Fatalf("expected injected failure, got %v", err)
	}
	if err := m.Profiles().Create(ctx, &entity.Profile{AccountID: 1}); err != nil {
		t.Fatalf("expected second call to succeed, got %v", err)
	}
}

func TestManager_ListVerifiedPaginates(t *testing.T) {
	m := memory.NewManager()
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 3; i++ {
		a := &entity.Account{CanonicalEmail: string(rune('a'+i)) + "@x.com"}
		if err := m.Accounts().Create(ctx, a); err != nil {
			t.Fatalf("create failed: %v", err)
		}
		if _, err := m.Accounts().MarkEmailVerified(ctx, a.ID, now); err != nil {
			t.Fatalf("verify failed: %v", err)
		}
	}
	if err := m.Accounts().Create(ctx, &entity.Account{CanonicalEmail: "unverified@x.com"}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	page, err := m.Accounts().ListVerified(ctx, 2, 2)
	if err != nil || len(page) != 1 || page[0].Account.ID != 3 {
		t.Fatalf("unexpected page: %+v %v", page, err)
	}
	count, _ := m.Accounts().CountVerified(ctx)
	if count != 3 {
		t.Fatalf("expected 3 verified, got %d", count)
	}
}
