package flows

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/MrEthical07/goIdentity/internal/domain"
)

type fakeStore struct {
	mu       sync.Mutex
	accounts map[string]domain.Account

	// beforeUpdate runs once per Update call, outside the lock, so tests can
	// inject a concurrent writer.
	beforeUpdate func(acct domain.Account)
	updateCalls  int
	failFind     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{accounts: make(map[string]domain.Account)}
}

func (s *fakeStore) FindByID(_ context.Context, id string) (domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFind != nil {
		return domain.Account{}, s.failFind
	}
	acct, ok := s.accounts[id]
	if !ok {
		return domain.Account{}, domain.ErrAccountNotFound
	}
	return acct, nil
}

func (s *fakeStore) FindByEmail(_ context.Context, email string) (domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFind != nil {
		return domain.Account{}, s.failFind
	}
	for _, acct := range s.accounts {
		if domain.SameEmail(acct.Email, email) {
			return acct, nil
		}
	}
	return domain.Account{}, domain.ErrAccountNotFound
}

func (s *fakeStore) FindByUserName(_ context.Context, userName string) (domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, acct := range s.accounts {
		if domain.SameEmail(acct.UserName, userName) {
			return acct, nil
		}
	}
	return domain.Account{}, domain.ErrAccountNotFound
}

func (s *fakeStore) clashLocked(acct domain.Account) bool {
	for id, other := range s.accounts {
		if id == acct.ID {
			continue
		}
		if domain.SameEmail(other.Email, acct.Email) || domain.SameEmail(other.UserName, acct.UserName) {
			return true
		}
	}
	return false
}

func (s *fakeStore) Create(_ context.Context, acct domain.Account) (domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[acct.ID]; ok || s.clashLocked(acct) {
		return domain.Account{}, domain.ErrDuplicateAccount
	}
	acct.Version = 1
	s.accounts[acct.ID] = acct
	return acct, nil
}

func (s *fakeStore) Update(_ context.Context, acct domain.Account) (domain.Account, error) {
	s.mu.Lock()
	hook := s.beforeUpdate
	s.beforeUpdate = nil
	s.updateCalls++
	s.mu.Unlock()
	if hook != nil {
		hook(acct)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.accounts[acct.ID]
	if !ok {
		return domain.Account{}, domain.ErrAccountNotFound
	}
	if current.Version != acct.Version {
		return domain.Account{}, domain.ErrVersionConflict
	}
	if s.clashLocked(acct) {
		return domain.Account{}, domain.ErrDuplicateAccount
	}
	acct.Version++
	s.accounts[acct.ID] = acct
	return acct, nil
}

func (s *fakeStore) put(acct domain.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acct.Version == 0 {
		acct.Version = 1
	}
	s.accounts[acct.ID] = acct
}

func (s *fakeStore) get(id string) domain.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts[id]
}

type purposeRecord struct {
	kind      domain.PurposeKind
	accountID string
	extra     string
}

type refreshRecord struct {
	principal domain.ClaimsPrincipal
	stamp     string
}

type fakeIssuer struct {
	mu       sync.Mutex
	seq      int
	purposes map[string]purposeRecord
	refresh  map[string]refreshRecord
	access   map[string]domain.ClaimsPrincipal

	purposeIssued atomic.Int64
	issuedSets    atomic.Int64
	failIssue     error
}

func newFakeIssuer() *fakeIssuer {
	return &fakeIssuer{
		purposes: make(map[string]purposeRecord),
		refresh:  make(map[string]refreshRecord),
		access:   make(map[string]domain.ClaimsPrincipal),
	}
}

func (i *fakeIssuer) IssuePurposeToken(_ context.Context, kind domain.PurposeKind, accountID, extra string) (string, error) {
	if i.failIssue != nil {
		return "", i.failIssue
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.seq++
	token := fmt.Sprintf("pt-%d", i.seq)
	i.purposes[token] = purposeRecord{kind: kind, accountID: accountID, extra: extra}
	i.purposeIssued.Add(1)
	return token, nil
}

func (i *fakeIssuer) ConsumePurposeToken(_ context.Context, kind domain.PurposeKind, token string) (domain.PurposeClaims, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	rec, ok := i.purposes[token]
	if !ok {
		return domain.PurposeClaims{}, domain.ErrPurposeTokenInvalid
	}
	delete(i.purposes, token)
	if rec.kind != kind {
		return domain.PurposeClaims{}, domain.ErrPurposeTokenInvalid
	}
	return domain.PurposeClaims{AccountID: rec.accountID, Extra: rec.extra}, nil
}

func (i *fakeIssuer) IssueTokenSet(_ context.Context, principal domain.ClaimsPrincipal, stamp string) (domain.TokenSet, error) {
	if i.failIssue != nil {
		return domain.TokenSet{}, i.failIssue
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.seq++
	access := "at-" + strconv.Itoa(i.seq)
	refresh := "rt-" + strconv.Itoa(i.seq)
	i.access[access] = principal
	i.refresh[refresh] = refreshRecord{principal: principal, stamp: stamp}
	i.issuedSets.Add(1)

	set := domain.TokenSet{
		AccessToken:  access,
		TokenType:    "Bearer",
		RefreshToken: refresh,
		Scopes:       append([]string(nil), principal.Scopes...),
	}
	if principal.HasScope(domain.ScopeOpenID) {
		set.IDToken = "id-" + strconv.Itoa(i.seq)
	}
	return set, nil
}

func (i *fakeIssuer) AuthenticateRefreshToken(_ context.Context, token string) (domain.RefreshPrincipal, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	rec, ok := i.refresh[token]
	if !ok {
		return domain.RefreshPrincipal{}, domain.ErrRefreshTokenInvalid
	}
	delete(i.refresh, token)
	return domain.RefreshPrincipal{ClaimsPrincipal: rec.principal, SecurityStamp: rec.stamp}, nil
}

func (i *fakeIssuer) RevokeRefreshToken(_ context.Context, token string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if _, ok := i.refresh[token]; !ok {
		return domain.ErrRefreshTokenInvalid
	}
	delete(i.refresh, token)
	return nil
}

func (i *fakeIssuer) AuthenticateAccessToken(_ context.Context, token string) (domain.ClaimsPrincipal, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	p, ok := i.access[token]
	if !ok {
		return domain.ClaimsPrincipal{}, domain.ErrAccessTokenInvalid
	}
	return p, nil
}

// putRefresh plants a refresh token with an explicit principal.
func (i *fakeIssuer) putRefresh(token string, p domain.ClaimsPrincipal, stamp string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.refresh[token] = refreshRecord{principal: p, stamp: stamp}
}

// fakeHash is a cheap reversible stand-in for argon2.
func fakeHash(password string) (string, error) {
	sum := sha256.Sum256([]byte(password))
	return fmt.Sprintf("fake$%x", sum), nil
}

func fakeVerify(password, encoded string) (bool, error) {
	if !strings.HasPrefix(encoded, "fake$") {
		return false, errors.New("malformed hash")
	}
	want, _ := fakeHash(password)
	return want == encoded, nil
}

type notifications struct {
	mu   sync.Mutex
	sent []domain.Notification
}

func (n *notifications) add(_ context.Context, msg domain.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
}

func (n *notifications) last() (domain.Notification, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		return domain.Notification{}, false
	}
	return n.sent[len(n.sent)-1], true
}

func (n *notifications) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}
