// Package memory is an in-process repository.Manager for tests and local
// tooling. Transactions work on a copy of the data that replaces the live copy
// only when the transaction function succeeds.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vibast-solutions/ms-go-accounts/app/entity"
	"github.com/vibast-solutions/ms-go-accounts/app/repository"
)

var (
	_ repository.Manager = (*Manager)(nil)
	_ repository.Manager = (*txManager)(nil)
)

type data struct {
	nextAccountID uint64
	nextProfileID uint64
	nextSessionID uint64
	nextAPIKeyID  uint64
	accounts      map[uint64]*entity.Account
	profiles      map[uint64]*entity.Profile // keyed by account id
	sessions      map[uint64]*entity.SessionToken
	resets        map[string]*entity.PasswordResetToken
	apiKeys       map[uint64]*entity.InternalAPIKey
}

func newData() *data {
	return &data{
		accounts: map[uint64]*entity.Account{},
		profiles: map[uint64]*entity.Profile{},
		sessions: map[uint64]*entity.SessionToken{},
		resets:   map[string]*entity.PasswordResetToken{},
		apiKeys:  map[uint64]*entity.InternalAPIKey{},
	}
}

func (d *data) clone() *data {
	out := newData()
	out.nextAccountID = d.nextAccountID
	out.nextProfileID = d.nextProfileID
	out.nextSessionID = d.nextSessionID
	out.nextAPIKeyID = d.nextAPIKeyID
	for k, v := range d.accounts {
		c := *v
		out.accounts[k] = &c
	}
	for k, v := range d.profiles {
		c := *v
		out.profiles[k] = &c
	}
	for k, v := range d.sessions {
		c := *v
		out.sessions[k] = &c
	}
	for k, v := range d.resets {
		c := *v
		out.resets[k] = &c
	}
	for k, v := range d.apiKeys {
		out.apiKeys[k] = copyAPIKey(v)
	}
	return out
}

type view interface {
	run(fn func(d *data) error) error
	fail(op string) error
}

type Manager struct {
	mu       sync.Mutex
	data     *data
	failures map[string]error
}

func NewManager() *Manager {
	return &Manager{data: newData(), failures: map[string]error{}}
}

// FailOn makes the next call of op (for example "profiles.update") return err.
func (m *Manager) FailOn(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[op] = err
}

func (m *Manager) run(fn func(d *data) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(m.data)
}

// fail is only called while m.mu is held.
func (m *Manager) fail(op string) error {
	err, ok := m.failures[op]
	if !ok {
		return nil
	}
	delete(m.failures, op)
	return err
}

func (m *Manager) Accounts() repository.AccountStore        { return &accountStore{v: m} }
func (m *Manager) Profiles() repository.ProfileStore        { return &profileStore{v: m} }
func (m *Manager) Sessions() repository.SessionStore        { return &sessionStore{v: m} }
func (m *Manager) ResetTokens() repository.ResetTokenStore { return &resetStore{v: m} }
func (m *Manager) InternalAPIKeys() repository.InternalAPIKeyStore {
	return &apiKeyStore{v: m}
}

func (m *Manager) WithTx(ctx context.Context, fn func(ctx context.Context, tx repository.Manager) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	work := m.data.clone()
	if err := fn(ctx, &txManager{m: m, d: work}); err != nil {
		return err
	}
	m.data = work
	return nil
}

type txManager struct {
	m *Manager
	d *data
}

func (t *txManager) run(fn func(d *data) error) error { return fn(t.d) }
func (t *txManager) fail(op string) error             { return t.m.fail(op) }

func (t *txManager) Accounts() repository.AccountStore        { return &accountStore{v: t} }
func (t *txManager) Profiles() repository.ProfileStore        { return &profileStore{v: t} }
func (t *txManager) Sessions() repository.SessionStore        { return &sessionStore{v: t} }
func (t *txManager) ResetTokens() repository.ResetTokenStore { return &resetStore{v: t} }
func (t *txManager) InternalAPIKeys() repository.InternalAPIKeyStore {
	return &apiKeyStore{v: t}
}

func (t *txManager) WithTx(ctx context.Context, fn func(ctx context.Context, tx repository.Manager) error) error {
	return fn(ctx, t)
}

type accountStore struct{ v view }

func (s *accountStore) Create(_ context.Context, account *entity.Account) error {
	return s.v.run(func(d *data) error {
		if err := s.v.fail("accounts.create"); err != nil {
			return err
		}
		for _, existing := range d.accounts {
			if existing.CanonicalEmail == account.CanonicalEmail {
				return repository.ErrDuplicateEmail
			}
		}
		d.nextAccountID++
		account.ID = d.nextAccountID
		c := *account
		d.accounts[account.ID] = &c
		return nil
	})
}

func (s *accountStore) FindByID(_ context.Context, id uint64) (*entity.Account, error) {
	var out *entity.Account
	err := s.v.run(func(d *data) error {
		if a, ok := d.accounts[id]; ok {
			c := *a
			out = &c
		}
		return nil
	})
	return out, err
}

func (s *accountStore) FindByCanonicalEmail(_ context.Context, canonicalEmail string) (*entity.Account, error) {
	var out *entity.Account
	err := s.v.run(func(d *data) error {
		for _, a := range d.accounts {
			if a.CanonicalEmail == canonicalEmail {
				c := *a
				out = &c
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (s *accountStore) Update(_ context.Context, account *entity.Account) error {
	return s.v.run(func(d *data) error {
		if err := s.v.fail("accounts.update"); err != nil {
			return err
		}
		existing, ok := d.accounts[account.ID]
		if !ok {
			return nil
		}
		for id, other := range d.accounts {
			if id != account.ID && other.CanonicalEmail == account.CanonicalEmail {
				return repository.ErrDuplicateEmail
			}
		}
		account.UpdatedAt = time.Now()
		existing.Name = account.Name
		existing.Email = account.Email
		existing.CanonicalEmail = account.CanonicalEmail
		existing.PasswordHash = account.PasswordHash
		existing.UpdatedAt = account.UpdatedAt
		return nil
	})
}

func (s *accountStore) MarkEmailVerified(_ context.Context, id uint64, at time.Time) (bool, error) {
	changed := false
	err := s.v.run(func(d *data) error {
		a, ok := d.accounts[id]
		if !ok || a.EmailVerifiedAt.Valid {
			return nil
		}
		a.EmailVerifiedAt.Time, a.EmailVerifiedAt.Valid = at, true
		a.UpdatedAt = at
		changed = true
		return nil
	})
	return changed, err
}

func (s *accountStore) SetAdmin(_ context.Context, id uint64, isAdmin bool) error {
	return s.v.run(func(d *data) error {
		if a, ok := d.accounts[id]; ok {
			a.IsAdmin = isAdmin
			a.UpdatedAt = time.Now()
		}
		return nil
	})
}

func (s *accountStore) Delete(_ context.Context, id uint64) (int64, error) {
	var affected int64
	err := s.v.run(func(d *data) error {
		if err := s.v.fail("accounts.delete"); err != nil {
			return err
		}
		if _, ok := d.accounts[id]; !ok {
			return nil
		}
		delete(d.accounts, id)
		// foreign key cascade
		delete(d.profiles, id)
		for sid, token := range d.sessions {
			if token.AccountID == id {
				delete(d.sessions, sid)
			}
		}
		affected = 1
		return nil
	})
	return affected, err
}

func (s *accountStore) ListVerified(_ context.Context, limit, offset int) ([]*entity.DirectoryEntry, error) {
	var out []*entity.DirectoryEntry
	err := s.v.run(func(d *data) error {
		all := verifiedEntries(d, func(*entity.Account, *entity.Profile) bool { return true })
		if offset >= len(all) {
			out = []*entity.DirectoryEntry{}
			return nil
		}
		end := offset + limit
		if end > len(all) {
			end = len(all)
		}
		out = all[offset:end]
		return nil
	})
	return out, err
}

func (s *accountStore) CountVerified(_ context.Context) (int64, error) {
	var count int64
	err := s.v.run(func(d *data) error {
		for _, a := range d.accounts {
			if a.EmailVerifiedAt.Valid {
				count++
			}
		}
		return nil
	})
	return count, err
}

func (s *accountStore) SearchVerified(_ context.Context, term string, limit int) ([]*entity.DirectoryEntry, error) {
	term = strings.ToLower(term)
	var out []*entity.DirectoryEntry
	err := s.v.run(func(d *data) error {
		out = verifiedEntries(d, func(a *entity.Account, p *entity.Profile) bool {
			if strings.Contains(strings.ToLower(a.Name), term) {
				return true
			}
			return p != nil && (strings.Contains(strings.ToLower(p.City.String), term) ||
				strings.Contains(strings.ToLower(p.Country.String), term))
		})
		if len(out) > limit {
			out = out[:limit]
		}
		return nil
	})
	return out, err
}

func (s *accountStore) FindVerifiedByIDs(_ context.Context, ids []uint64) ([]*entity.DirectoryEntry, error) {
	wanted := make(map[uint64]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	var out []*entity.DirectoryEntry
	err := s.v.run(func(d *data) error {
		out = verifiedEntries(d, func(a *entity.Account, _ *entity.Profile) bool { return wanted[a.ID] })
		return nil
	})
	return out, err
}

func verifiedEntries(d *data, keep func(*entity.Account, *entity.Profile) bool) []*entity.DirectoryEntry {
	entries := []*entity.DirectoryEntry{}
	for id, a := range d.accounts {
		if !a.EmailVerifiedAt.Valid {
			continue
		}
		p := d.profiles[id]
		if !keep(a, p) {
			continue
		}
		ac := *a
		entry := &entity.DirectoryEntry{Account: &ac}
		if p != nil {
			pc := *p
			entry.Profile = &pc
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Account.ID < entries[j].Account.ID })
	return entries
}

type profileStore struct{ v view }

func (s *profileStore) Create(_ context.Context, profile *entity.Profile) error {
	return s.v.run(func(d *data) error {
		if err := s.v.fail("profiles.create"); err != nil {
			return err
		}
		d.nextProfileID++
		profile.ID = d.nextProfileID
		c := *profile
		d.profiles[profile.AccountID] = &c
		return nil
	})
}

func (s *profileStore) FindByAccountID(_ context.Context, accountID uint64) (*entity.Profile, error) {
	var out *entity.Profile
	err := s.v.run(func(d *data) error {
		if p, ok := d.profiles[accountID]; ok {
			c := *p
			out = &c
		}
		return nil
	})
	return out, err
}

func (s *profileStore) Update(_ context.Context, profile *entity.Profile) error {
	return s.v.run(func(d *data) error {
		if err := s.v.fail("profiles.update"); err != nil {
			return err
		}
		if _, ok := d.profiles[profile.AccountID]; !ok {
			return nil
		}
		profile.UpdatedAt = time.Now()
		c := *profile
		d.profiles[profile.AccountID] = &c
		return nil
	})
}

func (s *profileStore) DeleteByAccountID(_ context.Context, accountID uint64) (int64, error) {
	var affected int64
	err := s.v.run(func(d *data) error {
		if err := s.v.fail("profiles.delete"); err != nil {
			return err
		}
		if _, ok := d.profiles[accountID]; ok {
			delete(d.profiles, accountID)
			affected = 1
		}
		return nil
	})
	return affected, err
}

type sessionStore struct{ v view }

func (s *sessionStore) Create(_ context.Context, token *entity.SessionToken) error {
	return s.v.run(func(d *data) error {
		if err := s.v.fail("sessions.create"); err != nil {
			return err
		}
		d.nextSessionID++
		token.ID = d.nextSessionID
		c := *token
		d.sessions[token.ID] = &c
		return nil
	})
}

func (s *sessionStore) FindByHash(_ context.Context, tokenHash string) (*entity.SessionToken, error) {
	var out *entity.SessionToken
	err := s.v.run(func(d *data) error {
		for _, token := range d.sessions {
			if token.TokenHash == tokenHash {
				c := *token
				out = &c
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (s *sessionStore) TouchLastUsed(_ context.Context, id uint64, at time.Time) error {
	return s.v.run(func(d *data) error {
		if token, ok := d.sessions[id]; ok {
			token.LastUsedAt.Time, token.LastUsedAt.Valid = at, true
		}
		return nil
	})
}

func (s *sessionStore) Delete(_ context.Context, id, accountID uint64) (int64, error) {
	return s.deleteWhere(func(t *entity.SessionToken) bool { return t.ID == id && t.AccountID == accountID })
}

func (s *sessionStore) DeleteByAccountID(_ context.Context, accountID uint64) (int64, error) {
	return s.deleteWhere(func(t *entity.SessionToken) bool { return t.AccountID == accountID })
}

func (s *sessionStore) DeleteByAccountIDExcept(_ context.Context, accountID, keepID uint64) (int64, error) {
	return s.deleteWhere(func(t *entity.SessionToken) bool { return t.AccountID == accountID && t.ID != keepID })
}

func (s *sessionStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	return s.deleteWhere(func(t *entity.SessionToken) bool { return t.IsExpired(now) })
}

func (s *sessionStore) deleteWhere(match func(*entity.SessionToken) bool) (int64, error) {
	var affected int64
	err := s.v.run(func(d *data) error {
		if err := s.v.fail("sessions.delete"); err != nil {
			return err
		}
		for id, token := range d.sessions {
			if match(token) {
				delete(d.sessions, id)
				affected++
			}
		}
		return nil
	})
	return affected, err
}

type resetStore struct{ v view }

func (s *resetStore) Upsert(_ context.Context, token *entity.PasswordResetToken) error {
	return s.v.run(func(d *data) error {
		if err := s.v.fail("resets.upsert"); err != nil {
			return err
		}
		c := *token
		d.resets[token.Email] = &c
		return nil
	})
}

func (s *resetStore) FindByEmailForUpdate(_ context.Context, email string) (*entity.PasswordResetToken, error) {
	var out *entity.PasswordResetToken
	err := s.v.run(func(d *data) error {
		if token, ok := d.resets[email]; ok {
			c := *token
			out = &c
		}
		return nil
	})
	return out, err
}

func (s *resetStore) DeleteByEmail(_ context.Context, email string) error {
	return s.v.run(func(d *data) error {
		delete(d.resets, email)
		return nil
	})
}

func (s *resetStore) DeleteCreatedBefore(_ context.Context, before time.Time) (int64, error) {
	var affected int64
	err := s.v.run(func(d *data) error {
		for email, token := range d.resets {
			if token.CreatedAt.Before(before) {
				delete(d.resets, email)
				affected++
			}
		}
		return nil
	})
	return affected, err
}

type apiKeyStore struct{ v view }

func (s *apiKeyStore) Create(_ context.Context, key *entity.InternalAPIKey) error {
	return s.v.run(func(d *data) error {
		if err := s.v.fail("apikeys.create"); err != nil {
			return err
		}
		d.nextAPIKeyID++
		key.ID = d.nextAPIKeyID
		d.apiKeys[key.ID] = copyAPIKey(key)
		return nil
	})
}

func (s *apiKeyStore) FindActiveByHash(_ context.Context, keyHash string, now time.Time) (*entity.InternalAPIKey, error) {
	var out *entity.InternalAPIKey
	err := s.v.run(func(d *data) error {
		for _, key := range d.apiKeys {
			if key.KeyHash == keyHash && key.IsUsable(now) && (out == nil || key.ID > out.ID) {
				out = copyAPIKey(key)
			}
		}
		return nil
	})
	return out, err
}

func (s *apiKeyStore) FindActiveByServiceName(_ context.Context, serviceName string, now time.Time) ([]*entity.InternalAPIKey, error) {
	out := []*entity.InternalAPIKey{}
	err := s.v.run(func(d *data) error {
		for _, key := range d.apiKeys {
			if key.ServiceName == serviceName && key.IsUsable(now) {
				out = append(out, copyAPIKey(key))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, err
}

func (s *apiKeyStore) Update(_ context.Context, key *entity.InternalAPIKey) error {
	return s.v.run(func(d *data) error {
		if err := s.v.fail("apikeys.update"); err != nil {
			return err
		}
		if _, ok := d.apiKeys[key.ID]; ok {
			d.apiKeys[key.ID] = copyAPIKey(key)
		}
		return nil
	})
}

func copyAPIKey(key *entity.InternalAPIKey) *entity.InternalAPIKey {
	c := *key
	c.AllowedAccess = append([]string{}, key.AllowedAccess...)
	return &c
}
