// Package source talks to the upstream read API for identities and posts.
package source

import (
	"context"
	"errors"
	"time"

	"github.com/luoli523/x-monitor/internal/models"
)

var (
	// ErrRateLimited signals the provider's rate budget is exhausted. Callers
	// are expected to skip, not wait.
	ErrRateLimited = errors.New("upstream rate limited")

	// ErrNotFound signals the account does not exist upstream.
	ErrNotFound = errors.New("account not found")
)

// Source is the external identity/post read API.
type Source interface {
	LookupIdentity(ctx context.Context, handle string) (*models.Identity, error)

	// ListPosts returns the account's posts created at or after since. When
	// the account's upstream ID is not cached yet it is resolved first.
	ListPosts(ctx context.Context, account models.Account, since time.Time) ([]models.Post, error)
}
