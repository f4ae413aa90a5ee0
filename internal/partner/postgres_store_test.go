//go:build integration

package partner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/verdict-labs/verdict/internal/testutil"
)

func TestPostgresStoreRoundTrip(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Millisecond)
	p := &Partner{
		ID:         "ptr_pgtest_1",
		Name:       "Acme Payments",
		APIKeyHash: "a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4",
		Tier:       TierStarter,
		Status:     StatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := store.Create(ctx, p); err != nil {
		t.Fatalf("create: %v", err)
	}

	byHash, err := store.GetByKeyHash(ctx, p.APIKeyHash)
	if err != nil {
		t.Fatalf("get by key hash: %v", err)
	}
	if byHash.ID != p.ID || byHash.Tier != TierStarter {
		t.Errorf("unexpected partner: %+v", byHash)
	}

	byID, err := store.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if byID.Name != p.Name || byID.Status != StatusActive {
		t.Errorf("unexpected partner: %+v", byID)
	}

	byID.Tier = TierEnterprise
	byID.UpdatedAt = time.Now().UTC()
	if err := store.Update(ctx, byID); err != nil {
		t.Fatalf("update: %v", err)
	}
	updated, err := store.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if updated.Tier != TierEnterprise {
		t.Errorf("tier = %q after update, want %q", updated.Tier, TierEnterprise)
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("list returned %d partners, want 1", len(all))
	}
}

func TestPostgresStoreNotFound(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	if _, err := store.GetByID(ctx, "ptr_missing"); !errors.Is(err, ErrPartnerNotFound) {
		t.Errorf("get missing: err = %v, want ErrPartnerNotFound", err)
	}
	if _, err := store.GetByKeyHash(ctx, "deadbeef"); !errors.Is(err, ErrPartnerNotFound) {
		t.Errorf("get by missing hash: err = %v, want ErrPartnerNotFound", err)
	}
	ghost := &Partner{ID: "ptr_missing", Name: "ghost", APIKeyHash: "ffff",
		Tier: TierFree, Status: StatusActive, UpdatedAt: time.Now().UTC()}
	if err := store.Update(ctx, ghost); !errors.Is(err, ErrPartnerNotFound) {
		t.Errorf("update missing: err = %v, want ErrPartnerNotFound", err)
	}
}
