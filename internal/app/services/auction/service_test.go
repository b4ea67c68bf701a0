package auction

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	domain "github.com/chopshop-gg/platform/internal/app/domain/auction"
	"github.com/chopshop-gg/platform/internal/app/storage/memory"
)

// testClock is a manually advanced clock shared between the service under
// test and the test body.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestService(t *testing.T) (*Service, *memory.Store, *testClock) {
	t.Helper()
	store := memory.New()
	clock := newTestClock()
	svc := New(store, store, store, Config{
		SubmissionWindow: time.Hour,
		BiddingWindow:    time.Hour,
	}, nil).WithClock(clock.Now)
	return svc, store, clock
}

func TestStartRound(t *testing.T) {
	svc, store, clock := newTestService(t)

	round, err := svc.StartRound(context.Background())
	if err != nil {
		t.Fatalf("start round: %v", err)
	}
	if round.Status != domain.StatusAcceptingSubmissions {
		t.Fatalf("expected accepting_submissions, got %s", round.Status)
	}
	if got := round.SubmissionEndsAt; !got.Equal(clock.Now().Add(time.Hour)) {
		t.Fatalf("unexpected submission deadline: %v", got)
	}
	if got := round.EndsAt; !got.Equal(clock.Now().Add(2 * time.Hour)) {
		t.Fatalf("unexpected round deadline: %v", got)
	}

	// A second active round must be rejected by the store.
	if _, err := svc.StartRound(context.Background()); err == nil {
		t.Fatal("expected second active round to be rejected")
	}

	active, err := store.ActiveRound(context.Background())
	if err != nil {
		t.Fatalf("active round: %v", err)
	}
	if active.ID != round.ID {
		t.Fatalf("expected round %d active, got %d", round.ID, active.ID)
	}
}

func TestSubmitPart(t *testing.T) {
	svc, store, clock := newTestService(t)
	if _, err := svc.StartRound(context.Background()); err != nil {
		t.Fatalf("start round: %v", err)
	}

	eligible := store.SeedPart(domain.Part{Name: "Hyperdrive Coil", RarityTier: 5, PartValue: 420, OwnerWallet: "0xseller"})
	weak := store.SeedPart(domain.Part{Name: "Rusty Bolt", RarityTier: 3, PartValue: 2, OwnerWallet: "0xseller"})
	locked := store.SeedPart(domain.Part{Name: "Plasma Fin", RarityTier: 4, PartValue: 77, OwnerWallet: "0xseller2", Locked: true})

	sub, err := svc.SubmitPart(context.Background(), "0xseller", eligible.ID)
	if err != nil {
		t.Fatalf("submit part: %v", err)
	}
	if sub.RarityTier != 5 || sub.PartValue != 420 {
		t.Fatalf("unexpected submission snapshot: %+v", sub)
	}

	part, _ := store.GetPart(context.Background(), eligible.ID)
	if !part.Locked {
		t.Fatal("expected submitted part locked")
	}

	// One submission per wallet per round.
	spare := store.SeedPart(domain.Part{Name: "Gyro Mount", RarityTier: 4, PartValue: 50, OwnerWallet: "0xseller"})
	if _, err := svc.SubmitPart(context.Background(), "0xseller", spare.ID); !errors.Is(err, domain.ErrDuplicateSubmission) {
		t.Fatalf("expected ErrDuplicateSubmission, got %v", err)
	}

	if _, err := svc.SubmitPart(context.Background(), "0xother", weak.ID); err == nil {
		t.Fatal("expected ownership rejection")
	}
	if _, err := svc.SubmitPart(context.Background(), "0xseller2", locked.ID); !errors.Is(err, domain.ErrPartIneligible) {
		t.Fatalf("expected ErrPartIneligible for locked part, got %v", err)
	}

	weak.OwnerWallet = "0xseller3"
	store.SeedPart(weak)
	if _, err := svc.SubmitPart(context.Background(), "0xseller3", weak.ID); !errors.Is(err, domain.ErrPartIneligible) {
		t.Fatalf("expected ErrPartIneligible for low tier, got %v", err)
	}

	clock.Advance(time.Hour)
	late := store.SeedPart(domain.Part{Name: "Late Entry", RarityTier: 5, PartValue: 10, OwnerWallet: "0xlate"})
	if _, err := svc.SubmitPart(context.Background(), "0xlate", late.ID); !errors.Is(err, domain.ErrSubmissionsClosed) {
		t.Fatalf("expected ErrSubmissionsClosed, got %v", err)
	}
}

func biddingRound(t *testing.T, store *memory.Store, clock *testClock, highestBid float64) domain.Round {
	t.Helper()
	part := store.SeedPart(domain.Part{Name: "Hyperdrive Coil", RarityTier: 5, PartValue: 420, OwnerWallet: "0xseller", Locked: true})
	round, err := store.CreateRound(context.Background(), domain.Round{
		Status:            domain.StatusBidding,
		SubmissionEndsAt:  clock.Now().Add(-time.Hour),
		EndsAt:            clock.Now().Add(time.Hour),
		Part:              &part,
		CurrentHighestBid: highestBid,
	})
	if err != nil {
		t.Fatalf("create bidding round: %v", err)
	}
	return round
}

func TestPlaceBid(t *testing.T) {
	svc, store, clock := newTestService(t)
	biddingRound(t, store, clock, 100)

	// Below the 5% raise floor.
	if _, _, err := svc.PlaceBid(context.Background(), "0xbidder", 104.99); !errors.Is(err, domain.ErrStaleBid) {
		t.Fatalf("expected ErrStaleBid, got %v", err)
	}

	bid, updated, err := svc.PlaceBid(context.Background(), "0xbidder", 105)
	if err != nil {
		t.Fatalf("place bid: %v", err)
	}
	if bid.Amount != 105 {
		t.Fatalf("expected amount 105, got %v", bid.Amount)
	}
	if updated.CurrentHighestBid != 105 || updated.BidCount != 1 {
		t.Fatalf("unexpected round after bid: highest=%v count=%d", updated.CurrentHighestBid, updated.BidCount)
	}

	// The floor moved with the new highest bid.
	if _, _, err := svc.PlaceBid(context.Background(), "0xrival", 106); !errors.Is(err, domain.ErrStaleBid) {
		t.Fatalf("expected ErrStaleBid at new floor, got %v", err)
	}
	if _, _, err := svc.PlaceBid(context.Background(), "0xrival", 110.25); err != nil {
		t.Fatalf("bid at exact floor: %v", err)
	}

	if _, _, err := svc.PlaceBid(context.Background(), "", 200); err == nil {
		t.Fatal("expected wallet validation error")
	}
	if _, _, err := svc.PlaceBid(context.Background(), "0xbidder", -5); err == nil {
		t.Fatal("expected amount validation error")
	}

	clock.Advance(2 * time.Hour)
	if _, _, err := svc.PlaceBid(context.Background(), "0xbidder", 500); !errors.Is(err, domain.ErrRoundClosed) {
		t.Fatalf("expected ErrRoundClosed after deadline, got %v", err)
	}
}

func TestPlaceBidNoActiveRound(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, _, err := svc.PlaceBid(context.Background(), "0xbidder", 10)
	if !errors.Is(err, domain.ErrNoActiveRound) {
		t.Fatalf("expected ErrNoActiveRound, got %v", err)
	}
}

func TestPlaceBidDuringSubmissions(t *testing.T) {
	svc, _, _ := newTestService(t)
	if _, err := svc.StartRound(context.Background()); err != nil {
		t.Fatalf("start round: %v", err)
	}

	_, _, err := svc.PlaceBid(context.Background(), "0xbidder", 10)
	if !errors.Is(err, domain.ErrRoundClosed) {
		t.Fatalf("expected ErrRoundClosed during submissions, got %v", err)
	}
}

func TestPlaceBidConcurrentSameFloor(t *testing.T) {
	svc, store, clock := newTestService(t)
	biddingRound(t, store, clock, 100)

	// Every bidder read the same highest bid; only one raise at the exact
	// floor can be admitted.
	const bidders = 8
	var wg sync.WaitGroup
	errs := make([]error, bidders)
	for i := 0; i < bidders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = svc.PlaceBid(context.Background(), "0xbidder", 105)
		}(i)
	}
	wg.Wait()

	accepted := 0
	for _, err := range errs {
		switch {
		case err == nil:
			accepted++
		case errors.Is(err, domain.ErrStaleBid):
		default:
			t.Fatalf("unexpected bid error: %v", err)
		}
	}
	if accepted != 1 {
		t.Fatalf("expected exactly 1 accepted bid, got %d", accepted)
	}

	round, _ := store.ActiveRound(context.Background())
	if round.CurrentHighestBid != 105 || round.BidCount != 1 {
		t.Fatalf("unexpected round state: highest=%v count=%d", round.CurrentHighestBid, round.BidCount)
	}
}

func TestHistory(t *testing.T) {
	svc, store, _ := newTestService(t)

	for i := int64(1); i <= 3; i++ {
		if _, err := store.CreateHistoryEntry(context.Background(), domain.HistoryEntry{
			RoundID:    i,
			Status:     domain.StatusCompleted,
			FinalPrice: float64(i * 10),
		}); err != nil {
			t.Fatalf("seed history %d: %v", i, err)
		}
	}

	entries, err := svc.History(context.Background(), 2)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].RoundID != 3 || entries[1].RoundID != 2 {
		t.Fatalf("expected newest first, got %d then %d", entries[0].RoundID, entries[1].RoundID)
	}
}
