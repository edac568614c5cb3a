package service

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/laissez/laissez/internal/metrics"
	"github.com/laissez/laissez/internal/model"
	"github.com/laissez/laissez/internal/repository"
)

func newLinkService(store *memStore) (*LinkService, *metrics.InMemoryRecorder) {
	rec := metrics.NewInMemory()
	return NewLinkService(store, "https://app.laissez.xyz/", 0, rec, discardLogger()), rec
}

func TestIssueCode(t *testing.T) {
	store := newMemStore()
	svc, rec := newLinkService(store)

	before := time.Now()
	code, linkURL, err := svc.IssueCode(context.Background(), model.PlatformTelegram, "55")
	if err != nil {
		t.Fatalf("IssueCode: %v", err)
	}

	if len(code) != 32 {
		t.Errorf("code length = %d, want 32", len(code))
	}
	parsed, err := url.Parse(linkURL)
	if err != nil {
		t.Fatalf("parse link url: %v", err)
	}
	if parsed.Host != "app.laissez.xyz" || parsed.Path != "/link" || parsed.Query().Get("code") != code {
		t.Errorf("linkURL = %q", linkURL)
	}

	pending := store.pendingFor("55")
	if len(pending) != 1 {
		t.Fatalf("pending links = %d, want 1", len(pending))
	}
	wantExpiry := before.Add(24 * time.Hour)
	if d := pending[0].ExpiresAt.Sub(wantExpiry); d < -time.Minute || d > time.Minute {
		t.Errorf("ExpiresAt = %v, want ≈ %v", pending[0].ExpiresAt, wantExpiry)
	}
	if rec.Snapshot().LinksIssued != 1 {
		t.Error("expected links issued metric")
	}
}

func TestIssueCode_Unique(t *testing.T) {
	svc, _ := newLinkService(newMemStore())

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		code, _, err := svc.IssueCode(context.Background(), model.PlatformTelegram, "1")
		if err != nil {
			t.Fatalf("IssueCode: %v", err)
		}
		if seen[code] {
			t.Fatalf("duplicate code %q", code)
		}
		seen[code] = true
	}
}

// collidingStore reports a collision for the first n inserts.
type collidingStore struct {
	*memStore
	collisions int
}

func (c *collidingStore) CreatePendingLink(ctx context.Context, link *model.PendingLink) error {
	if c.collisions > 0 {
		c.collisions--
		return repository.ErrLinkCodeExists
	}
	return c.memStore.CreatePendingLink(ctx, link)
}

func TestIssueCode_RetriesCollisions(t *testing.T) {
	store := &collidingStore{memStore: newMemStore(), collisions: maxLinkCodeRetries - 1}
	svc := NewLinkService(store, "https://app.test", time.Hour, nil, discardLogger())
	if _, _, err := svc.IssueCode(context.Background(), model.PlatformTelegram, "1"); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}

	store = &collidingStore{memStore: newMemStore(), collisions: maxLinkCodeRetries}
	svc = NewLinkService(store, "https://app.test", time.Hour, nil, discardLogger())
	if _, _, err := svc.IssueCode(context.Background(), model.PlatformTelegram, "1"); err == nil {
		t.Fatal("expected failure after exhausting retries")
	}
}

func TestCompleteLink(t *testing.T) {
	store := newMemStore()
	svc, rec := newLinkService(store)
	ctx := context.Background()

	code, _, err := svc.IssueCode(ctx, model.PlatformTelegram, "55")
	if err != nil {
		t.Fatalf("IssueCode: %v", err)
	}

	acct, err := svc.CompleteLink(ctx, code, "owner-a")
	if err != nil {
		t.Fatalf("CompleteLink: %v", err)
	}
	if acct.Platform != model.PlatformTelegram || acct.PlatformUserID != "55" || acct.OwnerUserID != "owner-a" {
		t.Errorf("acct = %+v", acct)
	}
	if rec.Snapshot().LinksCompleted != 1 {
		t.Error("expected links completed metric")
	}

	if _, err := svc.CompleteLink(ctx, code, "owner-a"); !errors.Is(err, ErrLinkCodeNotFound) {
		t.Errorf("reused code: expected ErrLinkCodeNotFound, got %v", err)
	}
}

func TestCompleteLink_TwiceDifferentOwners(t *testing.T) {
	store := newMemStore()
	svc, _ := newLinkService(store)
	ctx := context.Background()

	first, _, _ := svc.IssueCode(ctx, model.PlatformTelegram, "55")
	second, _, _ := svc.IssueCode(ctx, model.PlatformTelegram, "55")

	if _, err := svc.CompleteLink(ctx, first, "owner-a"); err != nil {
		t.Fatalf("first CompleteLink: %v", err)
	}
	if _, err := svc.CompleteLink(ctx, second, "owner-b"); err != nil {
		t.Fatalf("second CompleteLink: %v", err)
	}

	if len(store.linked) != 1 {
		t.Fatalf("linked rows = %d, want 1", len(store.linked))
	}
	acct, err := svc.FindLinkedAccount(ctx, model.PlatformTelegram, "55")
	if err != nil {
		t.Fatalf("FindLinkedAccount: %v", err)
	}
	if acct.OwnerUserID != "owner-b" {
		t.Errorf("owner = %q, want owner-b", acct.OwnerUserID)
	}
}

func TestCompleteLink_ExpiredIsGoneAndDeleted(t *testing.T) {
	store := newMemStore()
	svc, _ := newLinkService(store)
	ctx := context.Background()

	code, _, _ := svc.IssueCode(ctx, model.PlatformTelegram, "77")
	svc.now = func() time.Time { return time.Now().Add(25 * time.Hour) }

	if _, err := svc.CompleteLink(ctx, code, "owner"); !errors.Is(err, ErrLinkCodeExpired) {
		t.Fatalf("expected ErrLinkCodeExpired, got %v", err)
	}
	if len(store.pendingFor("77")) != 0 {
		t.Error("expired code should be deleted")
	}
	if _, err := svc.FindLinkedAccount(ctx, model.PlatformTelegram, "77"); !errors.Is(err, ErrNotLinked) {
		t.Errorf("expired code must not link, got %v", err)
	}
}

func TestCompleteLink_UnknownAndBlank(t *testing.T) {
	svc, _ := newLinkService(newMemStore())
	for _, code := range []string{"", "   ", "nope"} {
		if _, err := svc.CompleteLink(context.Background(), code, "owner"); !errors.Is(err, ErrLinkCodeNotFound) {
			t.Errorf("code %q: expected ErrLinkCodeNotFound, got %v", code, err)
		}
	}
}

func TestFindPendingLink(t *testing.T) {
	store := newMemStore()
	svc, _ := newLinkService(store)
	ctx := context.Background()

	code, _, _ := svc.IssueCode(ctx, model.PlatformTelegram, "9")

	link, err := svc.FindPendingLink(ctx, code)
	if err != nil {
		t.Fatalf("FindPendingLink: %v", err)
	}
	if link.PlatformUserID != "9" {
		t.Errorf("PlatformUserID = %q", link.PlatformUserID)
	}

	svc.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	if _, err := svc.FindPendingLink(ctx, code); !errors.Is(err, ErrLinkCodeExpired) {
		t.Fatalf("expected ErrLinkCodeExpired, got %v", err)
	}
	if _, err := svc.FindPendingLink(ctx, code); !errors.Is(err, ErrLinkCodeNotFound) {
		t.Fatalf("expired code should be gone, got %v", err)
	}
}

func TestFindLinkedAccount_StoreError(t *testing.T) {
	store := newMemStore()
	store.err = errStoreDown
	svc, _ := newLinkService(store)

	_, err := svc.FindLinkedAccount(context.Background(), model.PlatformTelegram, "1")
	if err == nil || errors.Is(err, ErrNotLinked) {
		t.Fatalf("store failure must not look like an unlinked identity, got %v", err)
	}
}
