package service

import (
	"context"
	"math"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-accounts/app/entity"
	"github.com/vibast-solutions/ms-go-accounts/app/repository"
)

const (
	DirectoryPageSize  = 10
	directorySearchMax = 50

	// maxDirectoryPage keeps the row offset inside int.
	maxDirectoryPage = math.MaxInt / DirectoryPageSize
)

type DirectoryPage struct {
	Entries  []*entity.DirectoryEntry
	Page     int
	PerPage  int
	Total    int64
	LastPage int
}

// DirectoryService is the public listing of verified accounts.
type DirectoryService struct {
	repos repository.Manager
	options
}

func NewDirectoryService(repos repository.Manager, opts ...Option) *DirectoryService {
	return &DirectoryService{repos: repos, options: newOptions(opts)}
}

func (s *DirectoryService) List(ctx context.Context, page int) (*DirectoryPage, error) {
	if page < 1 {
		page = 1
	}
	if page > maxDirectoryPage {
		page = maxDirectoryPage
	}

	total, err := s.repos.Accounts().CountVerified(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := s.repos.Accounts().ListVerified(ctx, DirectoryPageSize, (page-1)*DirectoryPageSize)
	if err != nil {
		return nil, err
	}

	lastPage := int((total + DirectoryPageSize - 1) / DirectoryPageSize)
	if lastPage < 1 {
		lastPage = 1
	}
	return &DirectoryPage{
		Entries:  entries,
		Page:     page,
		PerPage:  DirectoryPageSize,
		Total:    total,
		LastPage: lastPage,
	}, nil
}

// Search uses the directory index when one is configured and falls back to a
// database match when there is none or it fails.
func (s *DirectoryService) Search(ctx context.Context, query string) ([]*entity.DirectoryEntry, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []*entity.DirectoryEntry{}, nil
	}

	if s.index != nil {
		ids, err := s.index.Search(ctx, query, directorySearchMax)
		if err == nil {
			return s.byIDs(ctx, ids)
		}
		logrus.WithError(err).Warn("directory index search failed, falling back to database")
	}

	return s.repos.Accounts().SearchVerified(ctx, query, directorySearchMax)
}

func (s *DirectoryService) Show(ctx context.Context, id uint64) (*entity.DirectoryEntry, error) {
	account, err := s.repos.Accounts().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if account == nil || !account.IsVerified() {
		return nil, ErrAccountNotFound
	}

	profile, err := s.repos.Profiles().FindByAccountID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &entity.DirectoryEntry{Account: account, Profile: profile}, nil
}

// byIDs loads entries and keeps the index ranking.
func (s *DirectoryService) byIDs(ctx context.Context, ids []uint64) ([]*entity.DirectoryEntry, error) {
	entries, err := s.repos.Accounts().FindVerifiedByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[uint64]*entity.DirectoryEntry, len(entries))
	for _, entry := range entries {
		byID[entry.Account.ID] = entry
	}
	ordered := make([]*entity.DirectoryEntry, 0, len(entries))
	for _, id := range ids {
		if entry, ok := byID[id]; ok {
			ordered = append(ordered, entry)
		}
	}
	return ordered, nil
}

// Reindex rebuilds the index from the database and returns the number of
// indexed accounts.
func (s *DirectoryService) Reindex(ctx context.Context) (int, error) {
	if s.index == nil {
		return 0, nil
	}

	indexed := 0
	for offset := 0; ; offset += directorySearchMax {
		entries, err := s.repos.Accounts().ListVerified(ctx, directorySearchMax, offset)
		if err != nil {
			return indexed, err
		}
		for _, entry := range entries {
			if err := s.index.Index(ctx, entry); err != nil {
				return indexed, err
			}
			indexed++
		}
		if len(entries) < directorySearchMax {
			return indexed, nil
		}
	}
}
