package usage

import (
	"context"
	"errors"
	"testing"
)

type fakeEntitlements struct {
	premium map[string]bool
	err     error
}

func (f *fakeEntitlements) IsPremium(ctx context.Context, email string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.premium[email], nil
}

func TestMayProceedGatesAtLimit(t *testing.T) {
	svc := NewService(NewMemoryStore(), nil, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := svc.MayProceed(ctx, "guest:abc", ""); err != nil {
			t.Fatalf("MayProceed at count %d: %v", i, err)
		}
		if err := svc.Record(ctx, "guest:abc"); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	if err := svc.MayProceed(ctx, "guest:abc", ""); !errors.Is(err, ErrLimitReached) {
		t.Fatalf("err = %v, want ErrLimitReached", err)
	}
}

func TestMayProceedPremiumOverridesLimit(t *testing.T) {
	ents := &fakeEntitlements{premium: map[string]bool{"vip@example.com": true}}
	svc := NewService(NewMemoryStore(), ents, 1)
	ctx := context.Background()

	if err := svc.Record(ctx, "user-1"); err != nil {
		t.Fatalf("Record: %v", err)
	}

	// Over the limit but entitled.
	if err := svc.MayProceed(ctx, "user-1", "vip@example.com"); err != nil {
		t.Fatalf("MayProceed premium: %v", err)
	}

	// Same count without the entitlement is blocked.
	if err := svc.MayProceed(ctx, "user-1", "free@example.com"); !errors.Is(err, ErrLimitReached) {
		t.Fatalf("err = %v, want ErrLimitReached", err)
	}
}

func TestMayProceedLocalPremiumGrant(t *testing.T) {
	svc := NewService(NewMemoryStore(), nil, 0)
	ctx := context.Background()

	if err := svc.MayProceed(ctx, "guest:abc", ""); !errors.Is(err, ErrLimitReached) {
		t.Fatalf("err = %v, want ErrLimitReached with zero limit", err)
	}

	if err := svc.GrantPremium(ctx, "guest:abc"); err != nil {
		t.Fatalf("GrantPremium: %v", err)
	}
	if err := svc.MayProceed(ctx, "guest:abc", ""); err != nil {
		t.Fatalf("MayProceed after grant: %v", err)
	}
}

func TestMayProceedToleratesEntitlementOutage(t *testing.T) {
	ents := &fakeEntitlements{err: errors.New("db down")}
	svc := NewService(NewMemoryStore(), ents, 5)

	if err := svc.MayProceed(context.Background(), "user-1", "someone@example.com"); err != nil {
		t.Fatalf("MayProceed: %v (entitlement outage should fall back to the local counter)", err)
	}
}

func TestSnapshot(t *testing.T) {
	svc := NewService(NewMemoryStore(), nil, 10)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if err := svc.Record(ctx, "user-1"); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	snap, err := svc.Snapshot(ctx, "user-1", "")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Used != 4 || snap.Limit != 10 || snap.Remaining != 6 || snap.IsPremium {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestSnapshotRemainingNeverNegative(t *testing.T) {
	svc := NewService(NewMemoryStore(), nil, 2)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := svc.Record(ctx, "user-1"); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	snap, err := svc.Snapshot(ctx, "user-1", "")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Remaining != 0 {
		t.Errorf("remaining = %d, want 0", snap.Remaining)
	}
}
