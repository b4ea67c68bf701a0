package auction

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	domain "github.com/chopshop-gg/platform/internal/app/domain/auction"
	"github.com/chopshop-gg/platform/internal/app/domain/audit"
)

func TestTickStartsRoundWhenNoneActive(t *testing.T) {
	svc, store, _ := newTestService(t)

	report, err := svc.Tick(context.Background())
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if report.Started == nil {
		t.Fatal("expected a round to be started")
	}

	round, err := store.ActiveRound(context.Background())
	if err != nil {
		t.Fatalf("active round: %v", err)
	}
	if round.ID != *report.Started {
		t.Fatalf("expected round %d active, got %d", *report.Started, round.ID)
	}
	if round.Status != domain.StatusAcceptingSubmissions {
		t.Fatalf("expected accepting_submissions, got %s", round.Status)
	}
}

func TestTickNoopWhileRoundRunning(t *testing.T) {
	svc, _, _ := newTestService(t)
	if _, err := svc.StartRound(context.Background()); err != nil {
		t.Fatalf("start round: %v", err)
	}

	report, err := svc.Tick(context.Background())
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if len(report.Transitioned) != 0 || len(report.Finalized) != 0 || report.Started != nil {
		t.Fatalf("expected noop report, got %+v", report)
	}
}

func TestTickFullLifecycle(t *testing.T) {
	svc, store, clock := newTestService(t)
	ctx := context.Background()

	round, err := svc.StartRound(ctx)
	if err != nil {
		t.Fatalf("start round: %v", err)
	}

	common := store.SeedPart(domain.Part{Name: "Plasma Fin", RarityTier: 4, PartValue: 900, OwnerWallet: "0xalice"})
	rare := store.SeedPart(domain.Part{Name: "Hyperdrive Coil", SectionName: "engine", RarityTier: 5, PartValue: 420, TotalPower: 1337, SerialNumber: 42, Shiny: true, OwnerWallet: "0xbob"})
	if _, err := svc.SubmitPart(ctx, "0xalice", common.ID); err != nil {
		t.Fatalf("submit common: %v", err)
	}
	if _, err := svc.SubmitPart(ctx, "0xbob", rare.ID); err != nil {
		t.Fatalf("submit rare: %v", err)
	}

	// Submission deadline passes; bidding opens on the higher tier part
	// even though the tier-4 part has the higher value.
	clock.Advance(time.Hour)
	report, err := svc.Tick(ctx)
	if err != nil {
		t.Fatalf("tick to bidding: %v", err)
	}
	if len(report.Transitioned) != 1 || report.Transitioned[0] != round.ID {
		t.Fatalf("expected round %d transitioned, got %+v", round.ID, report)
	}

	active, err := store.ActiveRound(ctx)
	if err != nil {
		t.Fatalf("active round: %v", err)
	}
	if active.Status != domain.StatusBidding {
		t.Fatalf("expected bidding, got %s", active.Status)
	}
	if active.Part == nil || active.Part.ID != rare.ID {
		t.Fatalf("expected rare part selected, got %+v", active.Part)
	}

	loser, _ := store.GetPart(ctx, common.ID)
	if loser.Locked {
		t.Fatal("expected unselected part released")
	}

	if _, _, err := svc.PlaceBid(ctx, "0xcarol", 10); err != nil {
		t.Fatalf("first bid: %v", err)
	}
	if _, _, err := svc.PlaceBid(ctx, "0xdave", 50); err != nil {
		t.Fatalf("second bid: %v", err)
	}

	// Bidding deadline passes; the round settles and the next one opens.
	clock.Advance(time.Hour)
	report, err = svc.Tick(ctx)
	if err != nil {
		t.Fatalf("tick to settle: %v", err)
	}
	if len(report.Finalized) != 1 || report.Finalized[0] != round.ID {
		t.Fatalf("expected round %d finalized, got %+v", round.ID, report)
	}
	if report.Started == nil {
		t.Fatal("expected next round started")
	}

	settled, err := store.GetRound(ctx, round.ID)
	if err != nil {
		t.Fatalf("get settled round: %v", err)
	}
	if settled.Status != domain.StatusCompleted {
		t.Fatalf("expected completed, got %s", settled.Status)
	}

	entry, err := store.GetHistoryEntry(ctx, round.ID)
	if err != nil {
		t.Fatalf("history entry: %v", err)
	}
	if entry.WinnerWallet != "0xdave" {
		t.Fatalf("expected winner 0xdave, got %q", entry.WinnerWallet)
	}
	if entry.SellerWallet != "0xbob" {
		t.Fatalf("expected seller 0xbob, got %q", entry.SellerWallet)
	}
	if entry.FinalPrice != 50 {
		t.Fatalf("expected final price 50, got %v", entry.FinalPrice)
	}
	if entry.PartName != "Hyperdrive Coil" || !entry.Shiny || entry.TotalPower != 1337 {
		t.Fatalf("unexpected part snapshot: %+v", entry)
	}

	sold, _ := store.GetPart(ctx, rare.ID)
	if sold.OwnerWallet != "0xdave" {
		t.Fatalf("expected part transferred to winner, got %q", sold.OwnerWallet)
	}
	if sold.Locked {
		t.Fatal("expected transferred part unlocked")
	}

	completed, err := store.ListAudit(ctx, audit.EventRoundCompleted, 10)
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	if len(completed) != 1 {
		t.Fatalf("expected 1 completion audit entry, got %d", len(completed))
	}
}

func TestTickNoSubmissions(t *testing.T) {
	svc, store, clock := newTestService(t)
	ctx := context.Background()

	round, err := svc.StartRound(ctx)
	if err != nil {
		t.Fatalf("start round: %v", err)
	}

	clock.Advance(time.Hour)
	report, err := svc.Tick(ctx)
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if len(report.Finalized) != 1 || report.Finalized[0] != round.ID {
		t.Fatalf("expected round %d finalized, got %+v", round.ID, report)
	}
	if report.Started == nil {
		t.Fatal("expected next round started")
	}

	closed, _ := store.GetRound(ctx, round.ID)
	if closed.Status != domain.StatusNoSubmissions {
		t.Fatalf("expected no_submissions, got %s", closed.Status)
	}

	entry, err := store.GetHistoryEntry(ctx, round.ID)
	if err != nil {
		t.Fatalf("history entry: %v", err)
	}
	if entry.Status != domain.StatusNoSubmissions {
		t.Fatalf("expected no_submissions history, got %s", entry.Status)
	}
	if entry.FinalPrice != 0 || entry.WinnerWallet != "" {
		t.Fatalf("expected degenerate snapshot, got %+v", entry)
	}
}

func TestTickZeroBidSettlement(t *testing.T) {
	svc, store, clock := newTestService(t)
	ctx := context.Background()

	round, err := svc.StartRound(ctx)
	if err != nil {
		t.Fatalf("start round: %v", err)
	}
	part := store.SeedPart(domain.Part{Name: "Hyperdrive Coil", RarityTier: 5, PartValue: 420, OwnerWallet: "0xbob"})
	if _, err := svc.SubmitPart(ctx, "0xbob", part.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}

	clock.Advance(time.Hour)
	if _, err := svc.Tick(ctx); err != nil {
		t.Fatalf("tick to bidding: %v", err)
	}
	clock.Advance(time.Hour)
	if _, err := svc.Tick(ctx); err != nil {
		t.Fatalf("tick to settle: %v", err)
	}

	settled, _ := store.GetRound(ctx, round.ID)
	if settled.Status != domain.StatusCompleted {
		t.Fatalf("expected completed, got %s", settled.Status)
	}

	entry, err := store.GetHistoryEntry(ctx, round.ID)
	if err != nil {
		t.Fatalf("history entry: %v", err)
	}
	if entry.WinnerWallet != "" || entry.FinalPrice != 0 {
		t.Fatalf("expected no winner and zero price, got %+v", entry)
	}

	returned, _ := store.GetPart(ctx, part.ID)
	if returned.OwnerWallet != "0xbob" || returned.Locked {
		t.Fatalf("expected part returned unlocked to seller, got %+v", returned)
	}
}

func TestTickResumesFinalizing(t *testing.T) {
	svc, store, clock := newTestService(t)
	ctx := context.Background()

	// A previous pass crashed after parking the round in finalizing.
	part := store.SeedPart(domain.Part{Name: "Hyperdrive Coil", RarityTier: 5, PartValue: 420, OwnerWallet: "0xbob", Locked: true})
	round, err := store.CreateRound(ctx, domain.Round{
		Status:            domain.StatusFinalizing,
		SubmissionEndsAt:  clock.Now().Add(-2 * time.Hour),
		EndsAt:            clock.Now().Add(-time.Hour),
		Part:              &part,
		CurrentHighestBid: 75,
	})
	if err != nil {
		t.Fatalf("create finalizing round: %v", err)
	}

	report, err := svc.Tick(ctx)
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if len(report.Finalized) != 1 || report.Finalized[0] != round.ID {
		t.Fatalf("expected round %d finalized, got %+v", round.ID, report)
	}

	settled, _ := store.GetRound(ctx, round.ID)
	if settled.Status != domain.StatusCompleted {
		t.Fatalf("expected completed, got %s", settled.Status)
	}
}

func TestTickBusy(t *testing.T) {
	svc, store, _ := newTestService(t)

	acquired, err := store.AcquireTickLock(context.Background())
	if err != nil || !acquired {
		t.Fatalf("acquire lock: acquired=%v err=%v", acquired, err)
	}
	defer store.ReleaseTickLock(context.Background())

	_, err = svc.Tick(context.Background())
	if !errors.Is(err, domain.ErrTickBusy) {
		t.Fatalf("expected ErrTickBusy, got %v", err)
	}
}

func TestTickConcurrentSingleTransition(t *testing.T) {
	svc, store, clock := newTestService(t)
	ctx := context.Background()

	if _, err := svc.StartRound(ctx); err != nil {
		t.Fatalf("start round: %v", err)
	}
	part := store.SeedPart(domain.Part{Name: "Hyperdrive Coil", RarityTier: 5, PartValue: 420, OwnerWallet: "0xbob"})
	if _, err := svc.SubmitPart(ctx, "0xbob", part.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}
	clock.Advance(time.Hour)

	const callers = 8
	var wg sync.WaitGroup
	reports := make([]Report, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reports[i], errs[i] = svc.Tick(ctx)
		}(i)
	}
	wg.Wait()

	transitions := 0
	for i := range errs {
		switch {
		case errs[i] == nil:
			transitions += len(reports[i].Transitioned)
		case errors.Is(errs[i], domain.ErrTickBusy):
		default:
			t.Fatalf("unexpected tick error: %v", errs[i])
		}
	}
	if transitions != 1 {
		t.Fatalf("expected exactly 1 transition across concurrent ticks, got %d", transitions)
	}

	round, _ := store.ActiveRound(ctx)
	if round.Status != domain.StatusBidding {
		t.Fatalf("expected bidding, got %s", round.Status)
	}
}
