package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goIdentity/internal/domain"
)

func seed(t *testing.T, s *Store, id, email string) domain.Account {
	t.Helper()
	acct, err := s.Create(context.Background(), domain.Account{
		ID:        id,
		UserName:  email,
		Email:     email,
		FirstName: "A",
		LastName:  "B",
		CreatedAt: time.Unix(1700000000, 0).UTC(),
	})
	if err != nil {
		t.Fatalf("create %s: %v", id, err)
	}
	return acct
}

func TestCreateAndFindCaseInsensitive(t *testing.T) {
	s := New()
	created := seed(t, s, "u1", "Alice@Example.com")
	if created.Version != 1 {
		t.Fatalf("expected version 1, got %d", created.Version)
	}

	byEmail, err := s.FindByEmail(context.Background(), "alice@example.COM")
	if err != nil {
		t.Fatalf("find by email: %v", err)
	}
	if byEmail.ID != "u1" || byEmail.Email != "Alice@Example.com" {
		t.Fatalf("unexpected account %+v", byEmail)
	}
	if _, err := s.FindByUserName(context.Background(), " ALICE@example.com "); err != nil {
		t.Fatalf("find by username: %v", err)
	}
	if _, err := s.FindByID(context.Background(), "missing"); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestCreateRejectsDuplicateEmail(t *testing.T) {
	s := New()
	seed(t, s, "u1", "a@x.com")

	_, err := s.Create(context.Background(), domain.Account{ID: "u2", UserName: "other", Email: "A@X.com"})
	if !errors.Is(err, domain.ErrDuplicateAccount) {
		t.Fatalf("expected ErrDuplicateAccount, got %v", err)
	}
	_, err = s.Create(context.Background(), domain.Account{ID: "u3", UserName: "a@x.com", Email: "b@x.com"})
	if !errors.Is(err, domain.ErrDuplicateAccount) {
		t.Fatalf("expected ErrDuplicateAccount on username, got %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 account, got %d", s.Len())
	}
}

func TestUpdateCompareAndSwap(t *testing.T) {
	s := New()
	acct := seed(t, s, "u1", "a@x.com")

	acct.EmailConfirmed = true
	updated, err := s.Update(context.Background(), acct)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Version != 2 {
		t.Fatalf("expected version 2, got %d", updated.Version)
	}

	// acct still carries version 1
	acct.FirstName = "stale"
	if _, err := s.Update(context.Background(), acct); !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}

	got, _ := s.FindByID(context.Background(), "u1")
	if got.FirstName != "A" || !got.EmailConfirmed {
		t.Fatalf("stale write applied: %+v", got)
	}
}

func TestUpdateReindexesEmailAndKeepsCreatedAt(t *testing.T) {
	s := New()
	acct := seed(t, s, "u1", "a@x.com")
	seed(t, s, "u2", "taken@x.com")

	acct.Email = "new@x.com"
	acct.UserName = "new@x.com"
	acct.CreatedAt = time.Now()
	updated, err := s.Update(context.Background(), acct)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.CreatedAt.Equal(time.Unix(1700000000, 0)) {
		t.Fatalf("CreatedAt changed: %v", updated.CreatedAt)
	}
	if _, err := s.FindByEmail(context.Background(), "a@x.com"); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("old email still indexed: %v", err)
	}
	if _, err := s.FindByEmail(context.Background(), "NEW@x.com"); err != nil {
		t.Fatalf("new email not indexed: %v", err)
	}

	updated.Email = "taken@x.com"
	if _, err := s.Update(context.Background(), updated); !errors.Is(err, domain.ErrDuplicateAccount) {
		t.Fatalf("expected ErrDuplicateAccount, got %v", err)
	}
}

func TestUpdateConcurrentSingleWinner(t *testing.T) {
	s := New()
	acct := seed(t, s, "u1", "a@x.com")

	const n = 16
	var wg sync.WaitGroup
	wg.Add(n)
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			next := acct
			next.EmailConfirmed = true
			_, err := s.Update(context.Background(), next)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	success := 0
	for err := range results {
		if err == nil {
			success++
			continue
		}
		if !errors.Is(err, domain.ErrVersionConflict) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if success != 1 {
		t.Fatalf("expected exactly one winner, got %d", success)
	}
}

func TestCanceledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.FindByID(ctx, "u1"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
