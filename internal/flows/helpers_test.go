package flows

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/goIdentity/internal/domain"
)

type flowTest struct {
	store   *fakeStore
	issuer  *fakeIssuer
	notes   *notifications
	revoked *sync.Map
	audits  atomic.Int64
	ids     atomic.Int64
	stamps  atomic.Int64
	dummy   atomic.Int64
}

func newFlowTest(t *testing.T) *flowTest {
	t.Helper()
	return &flowTest{
		store:   newFakeStore(),
		issuer:  newFakeIssuer(),
		notes:   &notifications{},
		revoked: &sync.Map{},
	}
}

func (ft *flowTest) accountDeps() AccountDeps {
	return AccountDeps{
		Store:  ft.store,
		Issuer: ft.issuer,
		Now: func() time.Time {
			return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		},
		NewAccountID: func() string {
			return "acct-" + strconv.FormatInt(ft.ids.Add(1), 10)
		},
		NewSecurityStamp: func() (string, error) {
			return "stamp-" + strconv.FormatInt(ft.stamps.Add(1), 10), nil
		},
		HashPassword:   fakeHash,
		VerifyPassword: fakeVerify,
		CheckPolicy: func(pw string) []string {
			if len(pw) < 8 {
				return []string{"too short"}
			}
			return nil
		},
		RevokeGrants: func(_ context.Context, accountID string) error {
			ft.revoked.Store(accountID, true)
			return nil
		},
		Notify: ft.notes.add,
		EmitAudit: func(context.Context, string, bool, string, error, func() map[string]string) {
			ft.audits.Add(1)
		},
	}
}

func (ft *flowTest) grantDeps() GrantDeps {
	dummy, _ := fakeHash("dummy-password")
	return GrantDeps{
		Store:  ft.store,
		Issuer: ft.issuer,
		VerifyPassword: func(password, encoded string) (bool, error) {
			if encoded == dummy {
				ft.dummy.Add(1)
			}
			return fakeVerify(password, encoded)
		},
		DummyHash: dummy,
	}
}

// seedAccount stores an account whose password is "Abcd123!".
func (ft *flowTest) seedAccount(t *testing.T, id, email string, confirmed bool) domain.Account {
	t.Helper()
	hash, _ := fakeHash("Abcd123!")
	acct := domain.Account{
		ID:             id,
		UserName:       email,
		Email:          email,
		PasswordHash:   hash,
		EmailConfirmed: confirmed,
		FirstName:      "A",
		LastName:       "B",
		SecurityStamp:  "seed-stamp-" + id,
	}
	ft.store.put(acct)
	return ft.store.get(id)
}

// lastToken returns the token carried by the most recent notification.
func (ft *flowTest) lastToken(t *testing.T) string {
	t.Helper()
	n, ok := ft.notes.last()
	if !ok {
		t.Fatalf("expected a notification")
	}
	return n.Link
}
