// Package registry owns the durable list of monitored accounts. The backing
// file is a plain JSON array so operators can edit it by hand; array order is
// the display order.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/luoli523/x-monitor/internal/models"
)

// ErrDuplicateAccount is returned by Add when the handle is already tracked.
var ErrDuplicateAccount = errors.New("account already tracked")

// IdentityResolver looks up cached-on-first-use identity fields for a handle.
type IdentityResolver interface {
	LookupIdentity(ctx context.Context, handle string) (*models.Identity, error)
}

type Registry struct {
	mu       sync.Mutex
	path     string
	accounts []models.Account
	log      *slog.Logger
}

// Load reads the account file at path, creating an empty registry if the
// file does not exist yet.
func Load(path string, log *slog.Logger) (*Registry, error) {
	r := &Registry{path: path, log: log}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read account file: %w", err)
	}

	if err := json.Unmarshal(data, &r.accounts); err != nil {
		return nil, fmt.Errorf("parse account file %q: %w", path, err)
	}

	return r, nil
}

// List returns all tracked accounts in registration order.
func (r *Registry) List() []models.Account {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.Account, len(r.accounts))
	copy(out, r.accounts)

	return out
}

// Add registers a new handle. The entry is persisted before Add returns.
func (r *Registry) Add(handle, note string) (*models.Account, error) {
	handle = NormalizeHandle(handle)
	if handle == "" {
		return nil, errors.New("handle is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.findLocked(handle) >= 0 {
		return nil, fmt.Errorf("%w: @%s", ErrDuplicateAccount, handle)
	}

	account := models.Account{
		Handle:  handle,
		Note:    strings.TrimSpace(note),
		AddedAt: time.Now().UTC(),
	}
	r.accounts = append(r.accounts, account)

	if err := r.persistLocked(); err != nil {
		r.accounts = r.accounts[:len(r.accounts)-1]
		return nil, err
	}

	return &account, nil
}

// Remove deletes a handle and reports whether an entry was removed. A missing
// handle is not an error.
func (r *Registry) Remove(handle string) (bool, error) {
	handle = NormalizeHandle(handle)

	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.findLocked(handle)
	if i < 0 {
		return false, nil
	}

	r.accounts = append(r.accounts[:i], r.accounts[i+1:]...)

	if err := r.persistLocked(); err != nil {
		return false, err
	}

	return true, nil
}

// EnsureIdentities backfills AccountID/DisplayName/Description for entries
// that never had a successful lookup. A failed lookup leaves the entry
// handle-only and is retried on the next run; it never fails the registry.
// Returns the accounts with whatever identity data is now available.
func (r *Registry) EnsureIdentities(
	ctx context.Context,
	resolver IdentityResolver,
) []models.Account {
	r.mu.Lock()
	defer r.mu.Unlock()

	changed := false
	for i := range r.accounts {
		if r.accounts[i].AccountID != "" {
			continue
		}

		identity, err := resolver.LookupIdentity(ctx, r.accounts[i].Handle)
		if err != nil || identity == nil || identity.ID == "" {
			r.log.WarnContext(ctx, "Identity lookup failed, proceeding handle-only",
				"error", err,
				"handle", r.accounts[i].Handle)
			continue
		}

		r.accounts[i].AccountID = identity.ID
		r.accounts[i].DisplayName = identity.DisplayName
		r.accounts[i].Description = identity.Description
		changed = true
	}

	if changed {
		if err := r.persistLocked(); err != nil {
			r.log.WarnContext(ctx, "Failed to persist resolved identities",
				"error", err,
				"path", r.path)
		}
	}

	out := make([]models.Account, len(r.accounts))
	copy(out, r.accounts)

	return out
}

// NormalizeHandle strips the optional "@" prefix, whitespace and case.
func NormalizeHandle(handle string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(handle), "@"))
}

func (r *Registry) findLocked(handle string) int {
	for i := range r.accounts {
		if strings.EqualFold(r.accounts[i].Handle, handle) {
			return i
		}
	}

	return -1
}

func (r *Registry) persistLocked() error {
	data, err := json.MarshalIndent(r.accounts, "", "  ")
	if err != nil {
		return fmt.Errorf("encode account file: %w", err)
	}
	data = append(data, '\n')

	if dir := filepath.Dir(r.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create account dir: %w", err)
		}
	}

	if err := os.WriteFile(r.path, data, 0o644); err != nil {
		return fmt.Errorf("write account file: %w", err)
	}

	return nil
}
