package storage

import (
	"context"
	"time"

	"github.com/chopshop-gg/platform/internal/app/domain/auction"
	"github.com/chopshop-gg/platform/internal/app/domain/audit"
	"github.com/chopshop-gg/platform/internal/app/domain/ethlock"
)

// AuctionStore persists auction rounds, bids, submissions, parts and history.
//
// PlaceBid must re-check the round state and the minimum next bid inside the
// same transaction as the write so two concurrent bids can never both succeed
// against a stale highest bid.
type AuctionStore interface {
	CreateRound(ctx context.Context, round auction.Round) (auction.Round, error)
	UpdateRound(ctx context.Context, round auction.Round) (auction.Round, error)
	GetRound(ctx context.Context, id int64) (auction.Round, error)
	// ActiveRound returns the single round whose status is
	// accepting_submissions or bidding.
	ActiveRound(ctx context.Context) (auction.Round, error)
	// DueRounds returns rounds needing a transition at the given instant:
	// active rounds whose phase boundary has elapsed plus rounds stuck in
	// finalizing from an interrupted pass.
	DueRounds(ctx context.Context, now time.Time) ([]auction.Round, error)

	PlaceBid(ctx context.Context, bid auction.Bid, now time.Time) (auction.Bid, auction.Round, error)
	ListBids(ctx context.Context, roundID int64) ([]auction.Bid, error)

	CreateSubmission(ctx context.Context, sub auction.Submission) (auction.Submission, error)
	ListSubmissions(ctx context.Context, roundID int64) ([]auction.Submission, error)

	GetPart(ctx context.Context, id string) (auction.Part, error)
	UpdatePart(ctx context.Context, part auction.Part) (auction.Part, error)

	CreateHistoryEntry(ctx context.Context, entry auction.HistoryEntry) (auction.HistoryEntry, error)
	GetHistoryEntry(ctx context.Context, roundID int64) (auction.HistoryEntry, error)
	ListHistory(ctx context.Context, limit int) ([]auction.HistoryEntry, error)
}

// TickLocker provides the mutual exclusion spanning a full tick pass. The
// postgres store backs it with an advisory lock, the memory store with a
// try-lock mutex.
type TickLocker interface {
	// AcquireTickLock returns false without blocking when another pass
	// holds the lock.
	AcquireTickLock(ctx context.Context) (bool, error)
	ReleaseTickLock(ctx context.Context) error
}

// LockStore persists eth lock submissions.
type LockStore interface {
	CreateLockSubmission(ctx context.Context, sub ethlock.Submission) (ethlock.Submission, error)
	GetLockSubmissionByWallet(ctx context.Context, wallet string) (ethlock.Submission, error)
	UpdateLockSubmission(ctx context.Context, sub ethlock.Submission) (ethlock.Submission, error)
	// BeginVerification atomically marks the submission verifying, records
	// the claimed hash when none is set, and increments the attempt
	// counter.
	BeginVerification(ctx context.Context, id, txHash string) (ethlock.Submission, error)
	// ConfirmLockSubmission transitions to confirmed unless the record is
	// already confirmed; the bool reports whether this call won the
	// transition.
	ConfirmLockSubmission(ctx context.Context, id string, blockNumber uint64, receipt []byte, confirmedAt time.Time) (ethlock.Submission, bool, error)
}

// AuditStore appends audit events.
type AuditStore interface {
	AppendAudit(ctx context.Context, entry audit.Entry) (audit.Entry, error)
	ListAudit(ctx context.Context, event string, limit int) ([]audit.Entry, error)
}
