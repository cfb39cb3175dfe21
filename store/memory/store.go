// Package memory is an in-process CredentialStore. It is safe for
// concurrent use and implements the same compare-and-swap contract as the
// SQL store, which makes it suitable for tests and single-node development.
package memory

import (
	"context"
	"sync"

	"github.com/MrEthical07/goIdentity/internal/domain"
)

// Store keeps accounts in maps guarded by a single RWMutex. Emails and
// usernames are indexed by their normalized form.
type Store struct {
	mu         sync.RWMutex
	byID       map[string]domain.Account
	byEmail    map[string]string
	byUserName map[string]string
}

var _ domain.CredentialStore = (*Store)(nil)

func New() *Store {
	return &Store{
		byID:       make(map[string]domain.Account),
		byEmail:    make(map[string]string),
		byUserName: make(map[string]string),
	}
}

func (s *Store) FindByID(ctx context.Context, id string) (domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return domain.Account{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.byID[id]
	if !ok {
		return domain.Account{}, domain.ErrAccountNotFound
	}
	return acct, nil
}

func (s *Store) FindByEmail(ctx context.Context, email string) (domain.Account, error) {
	return s.findByIndex(ctx, s.byEmail, email)
}

func (s *Store) FindByUserName(ctx context.Context, userName string) (domain.Account, error) {
	return s.findByIndex(ctx, s.byUserName, userName)
}

func (s *Store) findByIndex(ctx context.Context, index map[string]string, key string) (domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return domain.Account{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := index[domain.NormalizeEmail(key)]
	if !ok {
		return domain.Account{}, domain.ErrAccountNotFound
	}
	return s.byID[id], nil
}

// Create stores acct with Version 1.
func (s *Store) Create(ctx context.Context, acct domain.Account) (domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return domain.Account{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[acct.ID]; ok {
		return domain.Account{}, domain.ErrDuplicateAccount
	}
	if s.taken(acct, "") {
		return domain.Account{}, domain.ErrDuplicateAccount
	}

	acct.Version = 1
	s.put(acct)
	return acct, nil
}

// Update replaces the stored account when acct.Version matches and returns
// it with Version incremented. CreatedAt is never changed.
func (s *Store) Update(ctx context.Context, acct domain.Account) (domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return domain.Account{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.byID[acct.ID]
	if !ok {
		return domain.Account{}, domain.ErrAccountNotFound
	}
	if current.Version != acct.Version {
		return domain.Account{}, domain.ErrVersionConflict
	}
	if s.taken(acct, acct.ID) {
		return domain.Account{}, domain.ErrDuplicateAccount
	}

	delete(s.byEmail, domain.NormalizeEmail(current.Email))
	delete(s.byUserName, domain.NormalizeEmail(current.UserName))

	acct.CreatedAt = current.CreatedAt
	acct.Version = current.Version + 1
	s.put(acct)
	return acct, nil
}

// Len returns the number of stored accounts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

func (s *Store) taken(acct domain.Account, self string) bool {
	if id, ok := s.byEmail[domain.NormalizeEmail(acct.Email)]; ok && id != self {
		return true
	}
	if id, ok := s.byUserName[domain.NormalizeEmail(acct.UserName)]; ok && id != self {
		return true
	}
	return false
}

func (s *Store) put(acct domain.Account) {
	s.byID[acct.ID] = acct
	s.byEmail[domain.NormalizeEmail(acct.Email)] = acct.ID
	s.byUserName[domain.NormalizeEmail(acct.UserName)] = acct.ID
}
