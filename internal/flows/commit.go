package flows

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/goIdentity/internal/domain"
)

// DefaultMaxCommitAttempts bounds the read-check-write loop in [Commit].
const DefaultMaxCommitAttempts = 3

// ErrCommitContention is returned when every commit attempt lost a version
// race. It unwraps to [domain.ErrConflict].
var ErrCommitContention = fmt.Errorf("%w: account modified concurrently", domain.ErrConflict)

// Commit reads the account, runs mutate on it and writes the result with a
// compare-and-swap on Version. When another writer wins the race, the account
// is read again and mutate re-checks its preconditions against the fresh
// state, so a check never goes stale before its write.
//
// Errors returned by mutate abort the loop unchanged. Store errors map to the
// outward taxonomy: a missing account is [domain.ErrNotFound], a uniqueness
// clash is [domain.ErrConflict].
func Commit(
	ctx context.Context,
	store domain.CredentialStore,
	accountID string,
	maxAttempts int,
	mutate func(domain.Account) (domain.Account, error),
) (domain.Account, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxCommitAttempts
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return domain.Account{}, err
		}

		current, err := store.FindByID(ctx, accountID)
		if err != nil {
			return domain.Account{}, mapStoreError(err)
		}

		next, err := mutate(current)
		if err != nil {
			return domain.Account{}, err
		}
		next.Version = current.Version

		updated, err := store.Update(ctx, next)
		if err == nil {
			return updated, nil
		}
		if errors.Is(err, domain.ErrVersionConflict) {
			continue
		}
		return domain.Account{}, mapStoreError(err)
	}

	return domain.Account{}, ErrCommitContention
}

func mapStoreError(err error) error {
	switch {
	case errors.Is(err, domain.ErrAccountNotFound):
		return domain.ErrNotFound
	case errors.Is(err, domain.ErrDuplicateAccount):
		return domain.ErrConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
}
