package repository_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-accounts/app/entity"
	"github.com/vibast-solutions/ms-go-accounts/app/repository"

	"github.com/DATA-DOG/go-sqlmock"
)

const (
	insertInternalAPIKeyQuery = `(?s)INSERT INTO internal_api_keys \(\s*service_name, key_hash, allowed_access_json, is_active, expires_at, created_at, updated_at\s*\) VALUES \(\?, \?, \?, \?, \?, \?, \?\)`
	findInternalByHashQuery   = `(?s)SELECT id, service_name, key_hash, allowed_access_json, is_active, expires_at, created_at, updated_at\s+FROM internal_api_keys\s+WHERE key_hash = \? AND is_active = 1 AND expires_at > \?`
	findInternalByServiceName = `(?s)SELECT id, service_name, key_hash, allowed_access_json, is_active, expires_at, created_at, updated_at\s+FROM internal_api_keys\s+WHERE service_name = \? AND is_active = 1 AND expires_at > \?\s+ORDER BY id DESC`
	updateInternalAPIKeyQuery = `(?s)UPDATE internal_api_keys SET\s+service_name = \?,\s+key_hash = \?,\s+allowed_access_json = \?,\s+is_active = \?,\s+expires_at = \?,\s+updated_at = \?\s+WHERE id = \?`
)

var internalAPIKeyColumns = []string{"id", "service_name", "key_hash", "allowed_access_json", "is_active", "expires_at", "created_at", "updated_at"}

func TestInternalAPIKeyRepository_Create(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewInternalAPIKeyRepository(db)
	now := time.Now()
	key := &entity.InternalAPIKey{
		ServiceName: "billing",
		KeyHash:     "hash-1",
		IsActive:    true,
		ExpiresAt:   now.Add(time.Hour),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	mock.ExpectExec(insertInternalAPIKeyQuery).
		WithArgs("billing", "hash-1", `[]`, true, now.Add(time.Hour), now, now).
		WillReturnResult(sqlmock.NewResult(7, 1))

	if err := repo.Create(context.Background(), key); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if key.ID != 7 {
		t.Fatalf("expected ID 7, got %d", key.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestInternalAPIKeyRepository_FindActiveByHash(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewInternalAPIKeyRepository(db)
	now := time.Now()

	mock.ExpectQuery(findInternalByHashQuery).
		WithArgs("hash-1", now).
		WillReturnRows(sqlmock.NewRows(internalAPIKeyColumns).
			AddRow(uint64(1), "billing", "hash-1", `["accounts","notifications"]`, true, now.Add(time.Hour), now, now))
	mock.ExpectQuery(findInternalByHashQuery).
		WithArgs("missing", now).
		WillReturnError(sql.ErrNoRows)

	key, err := repo.FindActiveByHash(context.Background(), "hash-1", now)
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if key == nil || key.ServiceName != "billing" || len(key.AllowedAccess) != 2 || !key.Allows("accounts") {
		t.Fatalf("unexpected key: %+v", key)
	}

	key, err = repo.FindActiveByHash(context.Background(), "missing", now)
	if err != nil || key != nil {
		t.Fatalf("expected nil for missing key, got %+v %v", key, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestInternalAPIKeyRepository_FindActiveByServiceNameAndUpdate(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := repository.NewInternalAPIKeyRepository(db)
	now := time.Now()

	mock.ExpectQuery(findInternalByServiceName).
		WithArgs("billing", now).
		WillReturnRows(sqlmock.NewRows(internalAPIKeyColumns).
			AddRow(uint64(2), "billing", "hash-2", `[]`, true, now.Add(time.Hour), now, now).
			AddRow(uint64(1), "billing", "hash-1", `["accounts"]`, true, now.Add(time.Hour), now, now))
	mock.ExpectExec(updateInternalAPIKeyQuery).
		WithArgs("billing", "hash-2", `["accounts"]`, false, now, now, uint64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	keys, err := repo.FindActiveByServiceName(context.Background(), "billing", now)
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if len(keys) != 2 || keys[0].ID != 2 || keys[0].AllowedAccess == nil || len(keys[1].AllowedAccess) != 1 {
		t.Fatalf("unexpected keys: %+v", keys)
	}

	keys[0].AllowedAccess = []string{"accounts"}
	keys[0].IsActive = false
	keys[0].ExpiresAt = now
	keys[0].UpdatedAt = now
	if err := repo.Update(context.Background(), keys[0]); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
