package sqlstore

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/goIdentity/internal/domain"
)

func openSQLite(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), DialectSQLite, filepath.Join(t.TempDir(), "accounts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newAccount(id, email string) domain.Account {
	return domain.Account{
		ID:            id,
		UserName:      email,
		Email:         email,
		PasswordHash:  "$argon2id$hash",
		FirstName:     "Ada",
		LastName:      "Lovelace",
		CreatedAt:     time.Unix(1700000000, 0).UTC(),
		SecurityStamp: "stamp-1",
	}
}

func TestSQLiteCreateAndFind(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()

	created, err := s.Create(ctx, newAccount("u1", "Alice@Example.com"))
	require.NoError(t, err)
	require.EqualValues(t, 1, created.Version)

	got, err := s.FindByEmail(ctx, "alice@example.COM")
	require.NoError(t, err)
	require.Equal(t, "u1", got.ID)
	require.Equal(t, "Alice@Example.com", got.Email)
	require.False(t, got.EmailConfirmed)
	require.True(t, got.CreatedAt.Equal(created.CreatedAt))

	_, err = s.FindByUserName(ctx, " ALICE@example.com ")
	require.NoError(t, err)

	_, err = s.FindByID(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestSQLiteCreateDuplicate(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()

	_, err := s.Create(ctx, newAccount("u1", "dup@example.com"))
	require.NoError(t, err)

	_, err = s.Create(ctx, newAccount("u2", "DUP@example.com"))
	require.ErrorIs(t, err, domain.ErrDuplicateAccount)

	_, err = s.Create(ctx, newAccount("u1", "other@example.com"))
	require.ErrorIs(t, err, domain.ErrDuplicateAccount)
}

func TestSQLiteUpdateCompareAndSwap(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()

	acct, err := s.Create(ctx, newAccount("u1", "cas@example.com"))
	require.NoError(t, err)

	acct.EmailConfirmed = true
	acct.FirstName = "Grace"
	acct.CreatedAt = time.Unix(1, 0)
	updated, err := s.Update(ctx, acct)
	require.NoError(t, err)
	require.EqualValues(t, 2, updated.Version)
	require.Equal(t, int64(1700000000), updated.CreatedAt.Unix())

	stored, err := s.FindByID(ctx, "u1")
	require.NoError(t, err)
	require.True(t, stored.EmailConfirmed)
	require.Equal(t, "Grace", stored.FirstName)

	_, err = s.Update(ctx, acct)
	require.ErrorIs(t, err, domain.ErrVersionConflict)

	missing := newAccount("nope", "nope@example.com")
	missing.Version = 1
	_, err = s.Update(ctx, missing)
	require.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestSQLiteUpdateEmailChange(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()

	_, err := s.Create(ctx, newAccount("u1", "old@example.com"))
	require.NoError(t, err)
	_, err = s.Create(ctx, newAccount("u2", "taken@example.com"))
	require.NoError(t, err)

	acct, err := s.FindByID(ctx, "u1")
	require.NoError(t, err)

	clash := acct
	clash.Email = "Taken@example.com"
	clash.UserName = "Taken@example.com"
	_, err = s.Update(ctx, clash)
	require.ErrorIs(t, err, domain.ErrDuplicateAccount)

	acct.Email = "new@example.com"
	acct.UserName = "new@example.com"
	_, err = s.Update(ctx, acct)
	require.NoError(t, err)

	_, err = s.FindByEmail(ctx, "old@example.com")
	require.ErrorIs(t, err, domain.ErrAccountNotFound)
	got, err := s.FindByUserName(ctx, "NEW@example.com")
	require.NoError(t, err)
	require.Equal(t, "u1", got.ID)
}

func TestSQLiteConcurrentUpdateSingleWinner(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()

	acct, err := s.Create(ctx, newAccount("u1", "race@example.com"))
	require.NoError(t, err)

	const workers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			next := acct
			next.SecurityStamp = "changed"
			if _, err := s.Update(ctx, next); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, wins)
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := openSQLite(t)
	require.NoError(t, s.Migrate(context.Background()))
	require.NoError(t, s.Ping(context.Background()))
}

func TestOpenRejectsUnknownDialect(t *testing.T) {
	_, err := Open(context.Background(), Dialect("oracle"), "dsn")
	require.Error(t, err)

	_, err = Open(context.Background(), DialectSQLite, " ")
	require.Error(t, err)
}
