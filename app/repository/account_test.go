package repository_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-accounts/app/entity"
	"github.com/vibast-solutions/ms-go-accounts/app/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
)

const (
	insertAccountQuery        = `(?s)INSERT INTO accounts \(name, email, canonical_email, password_hash, is_admin, email_verified_at, created_at, updated_at\)\s+VALUES \(\?, \?, \?, \?, \?, \?, \?, \?\)`
	findAccountByIDQuery      = `(?s)SELECT id, name, email, canonical_email, password_hash, is_admin, email_verified_at, created_at, updated_at\s+FROM accounts WHERE id = \?`
	findAccountByEmailQuery   = `(?s)SELECT id, name, email, canonical_email, password_hash, is_admin, email_verified_at, created_at, updated_at\s+FROM accounts WHERE canonical_email = \?`
	updateAccountQuery        = `(?s)UPDATE accounts SET\s+name = \?,\s+email = \?,\s+canonical_email = \?,\s+password_hash = \?,\s+updated_at = \?\s+WHERE id = \?`
	markVerifiedQuery         = `UPDATE accounts SET email_verified_at = \?, updated_at = \? WHERE id = \? AND email_verified_at IS NULL`
	deleteAccountQuery        = `DELETE FROM accounts WHERE id = \?`
	listVerifiedQuery         = `(?s)SELECT a\.id, .*FROM accounts a\s+LEFT JOIN profiles p ON p\.account_id = a\.id\s+WHERE a\.email_verified_at IS NOT NULL\s+ORDER BY a\.id\s+LIMIT \? OFFSET \?`
	countVerifiedQuery        = `SELECT COUNT\(\*\) FROM accounts WHERE email_verified_at IS NOT NULL`
	searchVerifiedQuery       = `(?s)SELECT a\.id, .*WHERE a\.email_verified_at IS NOT NULL\s+AND \(a\.name LIKE \? OR p\.city LIKE \? OR p\.country LIKE \?\)\s+ORDER BY a\.id\s+LIMIT \?`
	findVerifiedByIDsQuery    = `(?s)SELECT a\.id, .*AND a\.id IN \(\?, \?\)\s+ORDER BY a\.id`
	setAdminQuery             = `UPDATE accounts SET is_admin = \?, updated_at = \? WHERE id = \?`
)

var accountColumns = []string{
	"id",
	"name",
	"email",
	"canonical_email",
	"password_hash",
	"is_admin",
	"email_verified_at",
	"created_at",
	"updated_at",
}

var directoryColumns = append(append([]string{}, accountColumns...),
	"p_id", "bio", "phone", "avatar_path", "gender", "date_of_birth", "country", "city", "p_created_at", "p_updated_at",
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, func()) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	return db, mock, func() { _ = db.Close() }
}

func TestAccountRepository_Create(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewAccountRepository(db)
	now := time.Now()
	account := &entity.Account{
		Name:           "Ann",
		Email:          "Ann@Example.com",
		CanonicalEmail: "ann@example.com",
		PasswordHash:   "hash",
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	mock.ExpectExec(insertAccountQuery).
		WithArgs(
			account.Name,
			account.Email,
			account.CanonicalEmail,
			account.PasswordHash,
			false,
			nil,
			account.CreatedAt,
			account.UpdatedAt,
		).
		WillReturnResult(sqlmock.NewResult(7, 1))

	if err := repo.Create(context.Background(), account); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if account.ID != 7 {
		t.Fatalf("expected ID 7, got %d", account.ID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAccountRepository_CreateDuplicateEmail(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewAccountRepository(db)
	mock.ExpectExec(insertAccountQuery).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'ann@example.com' for key 'canonical_email'"})

	err := repo.Create(context.Background(), &entity.Account{Name: "Ann", Email: "ann@example.com", CanonicalEmail: "ann@example.com", PasswordHash: "hash"})
	if !errors.Is(err, repository.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAccountRepository_FindByCanonicalEmail(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewAccountRepository(db)
	now := time.Now()

	mock.ExpectQuery(findAccountByEmailQuery).
		WithArgs("ann@example.com").
		WillReturnRows(sqlmock.NewRows(accountColumns).AddRow(
			uint64(3), "Ann", "ann@example.com", "ann@example.com", "hash", true, now, now, now,
		))

	account, err := repo.FindByCanonicalEmail(context.Background(), "ann@example.com")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if account == nil || account.ID != 3 || !account.IsAdmin || !account.IsVerified() {
		t.Fatalf("unexpected account: %+v", account)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAccountRepository_FindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewAccountRepository(db)
	mock.ExpectQuery(findAccountByIDQuery).
		WithArgs(uint64(99)).
		WillReturnRows(sqlmock.NewRows(accountColumns))

	account, err := repo.FindByID(context.Background(), 99)
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if account != nil {
		t.Fatalf("expected nil account, got %+v", account)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAccountRepository_Update(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewAccountRepository(db)
	account := &entity.Account{ID: 3, Name: "Ann B", Email: "annb@example.com", CanonicalEmail: "annb@example.com", PasswordHash: "hash2"}

	mock.ExpectExec(updateAccountQuery).
		WithArgs("Ann B", "annb@example.com", "annb@example.com", "hash2", sqlmock.AnyArg(), uint64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Update(context.Background(), account); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if account.UpdatedAt.IsZero() {
		t.Fatalf("expected updated_at to be set")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAccountRepository_UpdateDuplicateEmail(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewAccountRepository(db)
	mock.ExpectExec(updateAccountQuery).
		WillReturnError(&mysql.MySQLError{Number: 1062})

	err := repo.Update(context.Background(), &entity.Account{ID: 3})
	if !errors.Is(err, repository.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestAccountRepository_MarkEmailVerified(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewAccountRepository(db)
	at := time.Now()

	mock.ExpectExec(markVerifiedQuery).
		WithArgs(at, at, uint64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(markVerifiedQuery).
		WithArgs(at, at, uint64(3)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	changed, err := repo.MarkEmailVerified(context.Background(), 3, at)
	if err != nil || !changed {
		t.Fatalf("expected first verification to change state, got %v %v", changed, err)
	}
	changed, err = repo.MarkEmailVerified(context.Background(), 3, at)
	if err != nil || changed {
		t.Fatalf("expected second verification to be a no-op, got %v %v", changed, err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAccountRepository_SetAdminAndDelete(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewAccountRepository(db)
	mock.ExpectExec(setAdminQuery).
		WithArgs(true, sqlmock.AnyArg(), uint64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(deleteAccountQuery).
		WithArgs(uint64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.SetAdmin(context.Background(), 3, true); err != nil {
		t.Fatalf("set admin failed: %v", err)
	}
	affected, err := repo.Delete(context.Background(), 3)
	if err != nil || affected != 1 {
		t.Fatalf("expected one deleted row, got %d %v", affected, err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAccountRepository_ListVerified(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewAccountRepository(db)
	now := time.Now()

	mock.ExpectQuery(listVerifiedQuery).
		WithArgs(10, 10).
		WillReturnRows(sqlmock.NewRows(directoryColumns).
			AddRow(uint64(1), "Ann", "ann@example.com", "ann@example.com", "hash", false, now, now, now,
				int64(5), "bio", nil, nil, "female", nil, "RO", "Cluj", now, now).
			AddRow(uint64(2), "Bob", "bob@example.com", "bob@example.com", "hash", false, now, now, now,
				nil, nil, nil, nil, nil, nil, nil, nil, nil, nil))

	entries, err := repo.ListVerified(context.Background(), 10, 10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Profile == nil || entries[0].Profile.ID != 5 || entries[0].Profile.City.String != "Cluj" {
		t.Fatalf("unexpected first profile: %+v", entries[0].Profile)
	}
	if entries[1].Profile != nil {
		t.Fatalf("expected missing profile for second entry")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAccountRepository_CountVerified(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewAccountRepository(db)
	mock.ExpectQuery(countVerifiedQuery).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(12)))

	count, err := repo.CountVerified(context.Background())
	if err != nil || count != 12 {
		t.Fatalf("expected 12, got %d %v", count, err)
	}
}

func TestAccountRepository_SearchVerifiedEscapesPattern(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewAccountRepository(db)
	pattern := `%50\%\_off%`
	mock.ExpectQuery(searchVerifiedQuery).
		WithArgs(pattern, pattern, pattern, 20).
		WillReturnRows(sqlmock.NewRows(directoryColumns))

	entries, err := repo.SearchVerified(context.Background(), "50%_off", 20)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no entries, got %d", len(entries))
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAccountRepository_FindVerifiedByIDs(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewAccountRepository(db)
	now := time.Now()
	mock.ExpectQuery(findVerifiedByIDsQuery).
		WithArgs(uint64(4), uint64(9)).
		WillReturnRows(sqlmock.NewRows(directoryColumns).
			AddRow(uint64(4), "Ann", "ann@example.com", "ann@example.com", "hash", false, now, now, now,
				nil, nil, nil, nil, nil, nil, nil, nil, nil, nil))

	entries, err := repo.FindVerifiedByIDs(context.Background(), []uint64{4, 9})
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Account.ID != 4 {
		t.Fatalf("unexpected entries: %+v", entries)
	}

	empty, err := repo.FindVerifiedByIDs(context.Background(), nil)
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty result without a query, got %v %v", empty, err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
