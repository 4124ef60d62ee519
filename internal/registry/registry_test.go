package registry

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/luoli523/x-monitor/internal/models"
)

func newTestRegistry(t *testing.T) (*Registry, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "accounts.json")
	r, err := Load(path, slog.Default())
	if err != nil {
		t.Fatalf("failed to load registry: %v", err)
	}

	return r, path
}

type stubResolver struct {
	mu         sync.Mutex
	calls      int
	identities map[string]*models.Identity
	err        error
}

func (s *stubResolver) LookupIdentity(
	_ context.Context,
	handle string,
) (*models.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++

	if s.err != nil {
		return nil, s.err
	}

	return s.identities[handle], nil
}

func (s *stubResolver) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.calls
}

func TestAddPreservesInsertionOrder(t *testing.T) {
	r, _ := newTestRegistry(t)

	for _, handle := range []string{"charlie", "alice", "bob"} {
		if _, err := r.Add(handle, ""); err != nil {
			t.Fatalf("add %q failed: %v", handle, err)
		}
	}

	accounts := r.List()
	if len(accounts) != 3 {
		t.Fatalf("expected 3 accounts, got %d", len(accounts))
	}
	for i, want := range []string{"charlie", "alice", "bob"} {
		if accounts[i].Handle != want {
			t.Fatalf("expected %q at position %d, got %q", want, i, accounts[i].Handle)
		}
	}
}

func TestAddNormalizesAndRejectsDuplicates(t *testing.T) {
	r, _ := newTestRegistry(t)

	account, err := r.Add(" @Alice ", "a note")
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if account.Handle != "alice" {
		t.Fatalf("expected normalized handle, got %q", account.Handle)
	}
	if account.Note != "a note" {
		t.Fatalf("expected note preserved, got %q", account.Note)
	}

	if _, err := r.Add("ALICE", ""); !errors.Is(err, ErrDuplicateAccount) {
		t.Fatalf("expected ErrDuplicateAccount, got %v", err)
	}
}

func TestRemoveReportsWhetherEntryExisted(t *testing.T) {
	r, _ := newTestRegistry(t)

	if _, err := r.Add("alice", ""); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	removed, err := r.Remove("@Alice")
	if err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if !removed {
		t.Fatalf("expected removal of existing account")
	}

	removed, err = r.Remove("alice")
	if err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if removed {
		t.Fatalf("expected no removal for missing account")
	}
}

func TestRegistryPersistsAcrossReload(t *testing.T) {
	r, path := newTestRegistry(t)

	if _, err := r.Add("alice", "note"); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if _, err := r.Add("bob", ""); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	reloaded, err := Load(path, slog.Default())
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}

	accounts := reloaded.List()
	if len(accounts) != 2 {
		t.Fatalf("expected 2 accounts after reload, got %d", len(accounts))
	}
	if accounts[0].Handle != "alice" || accounts[1].Handle != "bob" {
		t.Fatalf("unexpected order after reload: %q, %q", accounts[0].Handle, accounts[1].Handle)
	}
	if accounts[0].Note != "note" {
		t.Fatalf("expected note to survive reload, got %q", accounts[0].Note)
	}
}

func TestEnsureIdentitiesBackfillsAndCaches(t *testing.T) {
	r, path := newTestRegistry(t)

	if _, err := r.Add("alice", ""); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	resolver := &stubResolver{identities: map[string]*models.Identity{
		"alice": {ID: "42", DisplayName: "Alice", Description: "bio"},
	}}

	accounts := r.EnsureIdentities(context.Background(), resolver)
	if accounts[0].AccountID != "42" || accounts[0].DisplayName != "Alice" {
		t.Fatalf("expected backfilled identity, got %+v", accounts[0])
	}
	if resolver.callCount() != 1 {
		t.Fatalf("expected 1 lookup, got %d", resolver.callCount())
	}

	// Already resolved: no further lookups.
	r.EnsureIdentities(context.Background(), resolver)
	if resolver.callCount() != 1 {
		t.Fatalf("expected cached identity to skip lookup, got %d calls", resolver.callCount())
	}

	// Cached identity survives reload.
	reloaded, err := Load(path, slog.Default())
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if reloaded.List()[0].AccountID != "42" {
		t.Fatalf("expected persisted identity after reload")
	}
}

func TestEnsureIdentitiesDegradesOnLookupFailure(t *testing.T) {
	r, _ := newTestRegistry(t)

	if _, err := r.Add("alice", ""); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	resolver := &stubResolver{err: errors.New("lookup down")}

	accounts := r.EnsureIdentities(context.Background(), resolver)
	if len(accounts) != 1 {
		t.Fatalf("expected account returned despite failed lookup, got %d", len(accounts))
	}
	if accounts[0].AccountID != "" {
		t.Fatalf("expected identity to stay unset, got %q", accounts[0].AccountID)
	}

	// Retried on the next call.
	r.EnsureIdentities(context.Background(), resolver)
	if resolver.callCount() != 2 {
		t.Fatalf("expected lookup retried, got %d calls", resolver.callCount())
	}
}
