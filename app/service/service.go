// Package service implements the account lifecycle: registration, email
// verification, login, password reset, account and profile mutation and the
// public directory. Every operation receives the acting principal explicitly.
package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-accounts/app/entity"
	"github.com/vibast-solutions/ms-go-accounts/app/mailer"
	"github.com/vibast-solutions/ms-go-accounts/app/repository"
)

const mailTimeout = 10 * time.Second

const (
	EventRegistered     = "registered"
	EventLogin          = "login"
	EventLoginFailed    = "login_failed"
	EventVerified       = "verified"
	EventPasswordReset  = "password_reset"
	EventAccountDeleted = "account_deleted"
)

// Actor is the authenticated principal performing an operation. A nil Actor
// is anonymous.
type Actor struct {
	Account   *entity.Account
	SessionID uint64
}

func (a *Actor) account() *entity.Account {
	if a == nil {
		return nil
	}
	return a.Account
}

type AsyncRunner func(task func())

// EventRecorder counts lifecycle events, see the Event constants.
type EventRecorder interface {
	Record(event string)
}

type BlobStore interface {
	Store(ctx context.Context, dir string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, path string) error
}

// DirectoryIndex is a full text index over verified accounts.
type DirectoryIndex interface {
	Index(ctx context.Context, entry *entity.DirectoryEntry) error
	Remove(ctx context.Context, accountID uint64) error
	Search(ctx context.Context, query string, limit int) ([]uint64, error)
}

type Option func(*options)

type options struct {
	asyncRunner AsyncRunner
	recorder    EventRecorder
	index       DirectoryIndex
}

func WithAsyncRunner(runner AsyncRunner) Option {
	return func(o *options) {
		if runner != nil {
			o.asyncRunner = runner
		}
	}
}

func WithEventRecorder(recorder EventRecorder) Option {
	return func(o *options) {
		o.recorder = recorder
	}
}

func WithDirectoryIndex(index DirectoryIndex) Option {
	return func(o *options) {
		o.index = index
	}
}

func newOptions(opts []Option) options {
	o := options{
		asyncRunner: func(task func()) {
			go task()
		},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o *options) record(event string) {
	if o.recorder != nil {
		o.recorder.Record(event)
	}
}

// deliver sends msg outside the request. Failures are logged and never undo
// the operation that triggered the mail.
func (o *options) deliver(mail mailer.Mailer, msg mailer.Message) {
	o.asyncRunner(func() {
		ctx, cancel := context.WithTimeout(context.Background(), mailTimeout)
		defer cancel()

		if err := mail.Send(ctx, msg); err != nil {
			logrus.WithError(err).WithField("template", msg.Template).Error("failed to send mail")
		}
	})
}

// reindex refreshes the directory entry of one account after a commit.
func (o *options) reindex(ctx context.Context, repos repository.Manager, accountID uint64) {
	if o.index == nil {
		return
	}

	account, err := repos.Accounts().FindByID(ctx, accountID)
	if err != nil {
		logrus.WithError(err).WithField("account_id", accountID).Warn("failed to load account for indexing")
		return
	}
	if account == nil || !account.IsVerified() {
		o.unindex(ctx, accountID)
		return
	}

	profile, err := repos.Profiles().FindByAccountID(ctx, accountID)
	if err != nil {
		logrus.WithError(err).WithField("account_id", accountID).Warn("failed to load profile for indexing")
		return
	}
	if err := o.index.Index(ctx, &entity.DirectoryEntry{Account: account, Profile: profile}); err != nil {
		logrus.WithError(err).WithField("account_id", accountID).Warn("failed to index account")
	}
}

func (o *options) unindex(ctx context.Context, accountID uint64) {
	if o.index == nil {
		return
	}
	if err := o.index.Remove(ctx, accountID); err != nil {
		logrus.WithError(err).WithField("account_id", accountID).Warn("failed to remove account from index")
	}
}

// deleteBlob is best effort: an orphaned blob is acceptable, a reference to a
// missing one is not.
func deleteBlob(ctx context.Context, blobs BlobStore, path string) {
	if path == "" || blobs == nil {
		return
	}
	if err := blobs.Delete(ctx, path); err != nil {
		logrus.WithError(err).WithField("path", path).Warn("failed to delete blob, leaving it orphaned")
	}
}
