package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/vibast-solutions/ms-go-accounts/app/entity"
)

var ErrDuplicateEmail = errors.New("email already registered")

const mysqlDuplicateEntry = 1062

type AccountStore interface {
	Create(ctx context.Context, account *entity.Account) error
	FindByID(ctx context.Context, id uint64) (*entity.Account, error)
	FindByCanonicalEmail(ctx context.Context, canonicalEmail string) (*entity.Account, error)
	Update(ctx context.Context, account *entity.Account) error
	MarkEmailVerified(ctx context.Context, id uint64, at time.Time) (bool, error)
	SetAdmin(ctx context.Context, id uint64, isAdmin bool) error
	Delete(ctx context.Context, id uint64) (int64, error)
	ListVerified(ctx context.Context, limit, offset int) ([]*entity.DirectoryEntry, error)
	CountVerified(ctx context.Context) (int64, error)
	SearchVerified(ctx context.Context, query string, limit int) ([]*entity.DirectoryEntry, error)
	FindVerifiedByIDs(ctx context.Context, ids []uint64) ([]*entity.DirectoryEntry, error)
}

type ProfileStore interface {
	Create(ctx context.Context, profile *entity.Profile) error
	FindByAccountID(ctx context.Context, accountID uint64) (*entity.Profile, error)
	Update(ctx context.Context, profile *entity.Profile) error
	DeleteByAccountID(ctx context.Context, accountID uint64) (int64, error)
}

type SessionStore interface {
	Create(ctx context.Context, token *entity.SessionToken) error
	FindByHash(ctx context.Context, tokenHash string) (*entity.SessionToken, error)
	TouchLastUsed(ctx context.Context, id uint64, at time.Time) error
	Delete(ctx context.Context, id, accountID uint64) (int64, error)
	DeleteByAccountID(ctx context.Context, accountID uint64) (int64, error)
	DeleteByAccountIDExcept(ctx context.Context, accountID, keepID uint64) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type ResetTokenStore interface {
	Upsert(ctx context.Context, token *entity.PasswordResetToken) error
	FindByEmailForUpdate(ctx context.Context, email string) (*entity.PasswordResetToken, error)
	DeleteByEmail(ctx context.Context, email string) error
	DeleteCreatedBefore(ctx context.Context, before time.Time) (int64, error)
}

type InternalAPIKeyStore interface {
	Create(ctx context.Context, key *entity.InternalAPIKey) error
	FindActiveByHash(ctx context.Context, keyHash string, now time.Time) (*entity.InternalAPIKey, error)
	FindActiveByServiceName(ctx context.Context, serviceName string, now time.Time) ([]*entity.InternalAPIKey, error)
	Update(ctx context.Context, key *entity.InternalAPIKey) error
}

// Manager hands out stores bound to one connection or transaction.
type Manager interface {
	Accounts() AccountStore
	Profiles() ProfileStore
	Sessions() SessionStore
	ResetTokens() ResetTokenStore
	InternalAPIKeys() InternalAPIKeyStore
	// WithTx runs fn with a Manager whose stores share one transaction.
	// Calling WithTx on a transactional Manager reuses the open transaction.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Manager) error) error
}

type SQLManager struct {
	db *sql.DB
	q  DBTX
}

func NewSQLManager(db *sql.DB) *SQLManager {
	return &SQLManager{db: db, q: db}
}

func (m *SQLManager) Accounts() AccountStore {
	return NewAccountRepository(m.q)
}

func (m *SQLManager) Profiles() ProfileStore {
	return NewProfileRepository(m.q)
}

func (m *SQLManager) Sessions() SessionStore {
	return NewSessionTokenRepository(m.q)
}

func (m *SQLManager) ResetTokens() ResetTokenStore {
	return NewResetTokenRepository(m.q)
}

func (m *SQLManager) InternalAPIKeys() InternalAPIKeyStore {
	return NewInternalAPIKeyRepository(m.q)
}

func (m *SQLManager) WithTx(ctx context.Context, fn func(ctx context.Context, tx Manager) error) error {
	if m.db == nil {
		return fn(ctx, m)
	}
	return WithTx(ctx, m.db, nil, func(ctx context.Context, tx DBTX) error {
		return fn(ctx, &SQLManager{q: tx})
	})
}

func isDuplicateEntry(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry
}
