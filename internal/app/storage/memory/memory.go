package memory

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chopshop-gg/platform/internal/app/admission"
	"github.com/chopshop-gg/platform/internal/app/domain/auction"
	"github.com/chopshop-gg/platform/internal/app/domain/audit"
	"github.com/chopshop-gg/platform/internal/app/domain/ethlock"
	"github.com/chopshop-gg/platform/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local
// development.
type Store struct {
	mu          sync.RWMutex
	nextRoundID int64

	rounds        map[int64]auction.Round
	bids          map[int64][]auction.Bid
	submissions   map[int64][]auction.Submission
	parts         map[string]auction.Part
	history       map[int64]auction.HistoryEntry
	historyOrder  []int64
	locks         map[string]ethlock.Submission
	locksByWallet map[string]string
	audits        []audit.Entry

	tickMu sync.Mutex
}

var _ storage.AuctionStore = (*Store)(nil)
var _ storage.TickLocker = (*Store)(nil)
var _ storage.LockStore = (*Store)(nil)
var _ storage.AuditStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextRoundID:   1,
		rounds:        make(map[int64]auction.Round),
		bids:          make(map[int64][]auction.Bid),
		submissions:   make(map[int64][]auction.Submission),
		parts:         make(map[string]auction.Part),
		history:       make(map[int64]auction.HistoryEntry),
		locks:         make(map[string]ethlock.Submission),
		locksByWallet: make(map[string]string),
	}
}

// AuctionStore implementation -------------------------------------------------

func (s *Store) CreateRound(_ context.Context, round auction.Round) (auction.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if round.Status.Active() {
		for _, existing := range s.rounds {
			if existing.Status.Active() {
				return auction.Round{}, fmt.Errorf("round %d is already active", existing.ID)
			}
		}
	}

	if round.ID == 0 {
		round.ID = s.nextRoundID
		s.nextRoundID++
	} else if _, exists := s.rounds[round.ID]; exists {
		return auction.Round{}, fmt.Errorf("round %d already exists", round.ID)
	} else if round.ID >= s.nextRoundID {
		s.nextRoundID = round.ID + 1
	}

	now := time.Now().UTC()
	round.CreatedAt = now
	round.UpdatedAt = now

	s.rounds[round.ID] = cloneRound(round)
	return cloneRound(round), nil
}

func (s *Store) UpdateRound(_ context.Context, round auction.Round) (auction.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.rounds[round.ID]
	if !ok {
		return auction.Round{}, fmt.Errorf("round %d not found", round.ID)
	}

	round.CreatedAt = original.CreatedAt
	round.UpdatedAt = time.Now().UTC()

	s.rounds[round.ID] = cloneRound(round)
	return cloneRound(round), nil
}

func (s *Store) GetRound(_ context.Context, id int64) (auction.Round, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	round, ok := s.rounds[id]
	if !ok {
		return auction.Round{}, fmt.Errorf("round %d not found", id)
	}
	return cloneRound(round), nil
}

func (s *Store) ActiveRound(_ context.Context) (auction.Round, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, round := range s.rounds {
		if round.Status.Active() {
			return cloneRound(round), nil
		}
	}
	return auction.Round{}, auction.ErrNoActiveRound
}

func (s *Store) DueRounds(_ context.Context, now time.Time) ([]auction.Round, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var due []auction.Round
	for _, round := range s.rounds {
		switch round.Status {
		case auction.StatusAcceptingSubmissions:
			if !now.Before(round.SubmissionEndsAt) {
				due = append(due, cloneRound(round))
			}
		case auction.StatusBidding:
			if !now.Before(round.EndsAt) {
				due = append(due, cloneRound(round))
			}
		case auction.StatusFinalizing:
			due = append(due, cloneRound(round))
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ID < due[j].ID })
	return due, nil
}

func (s *Store) PlaceBid(_ context.Context, bid auction.Bid, now time.Time) (auction.Bid, auction.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	round, ok := s.rounds[bid.RoundID]
	if !ok {
		return auction.Bid{}, auction.Round{}, fmt.Errorf("round %d not found", bid.RoundID)
	}
	if round.Status != auction.StatusBidding || !now.Before(round.EndsAt) {
		return auction.Bid{}, auction.Round{}, auction.ErrRoundClosed
	}

	min := admission.MinNextBid(round.CurrentHighestBid)
	if bid.Amount < min {
		return auction.Bid{}, auction.Round{}, fmt.Errorf("%w: minimum next bid is %.2f", auction.ErrStaleBid, min)
	}

	if bid.ID == "" {
		bid.ID = uuid.NewString()
	}
	bid.PlacedAt = now.UTC()

	s.bids[round.ID] = append(s.bids[round.ID], bid)
	round.CurrentHighestBid = bid.Amount
	round.BidCount = len(s.bids[round.ID])
	round.UpdatedAt = time.Now().UTC()
	s.rounds[round.ID] = cloneRound(round)

	return bid, cloneRound(round), nil
}

func (s *Store) ListBids(_ context.Context, roundID int64) ([]auction.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bids := s.bids[roundID]
	out := make([]auction.Bid, len(bids))
	copy(out, bids)
	return out, nil
}

func (s *Store) CreateSubmission(_ context.Context, sub auction.Submission) (auction.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.submissions[sub.RoundID] {
		if existing.Wallet == sub.Wallet {
			return auction.Submission{}, auction.ErrDuplicateSubmission
		}
	}

	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.SubmittedAt.IsZero() {
		sub.SubmittedAt = time.Now().UTC()
	}

	s.submissions[sub.RoundID] = append(s.submissions[sub.RoundID], sub)
	return sub, nil
}

func (s *Store) ListSubmissions(_ context.Context, roundID int64) ([]auction.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	subs := s.submissions[roundID]
	out := make([]auction.Submission, len(subs))
	copy(out, subs)
	return out, nil
}

func (s *Store) GetPart(_ context.Context, id string) (auction.Part, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	part, ok := s.parts[id]
	if !ok {
		return auction.Part{}, fmt.Errorf("part %s not found", id)
	}
	return part, nil
}

func (s *Store) UpdatePart(_ context.Context, part auction.Part) (auction.Part, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.parts[part.ID]; !ok {
		return auction.Part{}, fmt.Errorf("part %s not found", part.ID)
	}
	s.parts[part.ID] = part
	return part, nil
}

// SeedPart inserts a part directly; test and fixture helper.
func (s *Store) SeedPart(part auction.Part) auction.Part {
	s.mu.Lock()
	defer s.mu.Unlock()

	if part.ID == "" {
		part.ID = uuid.NewString()
	}
	s.parts[part.ID] = part
	return part
}

func (s *Store) CreateHistoryEntry(_ context.Context, entry auction.HistoryEntry) (auction.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.history[entry.RoundID]; exists {
		return auction.HistoryEntry{}, fmt.Errorf("history entry for round %d already exists", entry.RoundID)
	}

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.CreatedAt = time.Now().UTC()

	s.history[entry.RoundID] = entry
	s.historyOrder = append(s.historyOrder, entry.RoundID)
	return entry, nil
}

func (s *Store) GetHistoryEntry(_ context.Context, roundID int64) (auction.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.history[roundID]
	if !ok {
		return auction.HistoryEntry{}, fmt.Errorf("history entry for round %d not found", roundID)
	}
	return entry, nil
}

func (s *Store) ListHistory(_ context.Context, limit int) ([]auction.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []auction.HistoryEntry
	for i := len(s.historyOrder) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, s.history[s.historyOrder[i]])
	}
	return out, nil
}

// TickLocker implementation ---------------------------------------------------

func (s *Store) AcquireTickLock(_ context.Context) (bool, error) {
	return s.tickMu.TryLock(), nil
}

func (s *Store) ReleaseTickLock(_ context.Context) error {
	s.tickMu.Unlock()
	return nil
}

// LockStore implementation ----------------------------------------------------

func (s *Store) CreateLockSubmission(_ context.Context, sub ethlock.Submission) (ethlock.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.locksByWallet[strings.ToLower(sub.WalletAddress)]; exists {
		return ethlock.Submission{}, fmt.Errorf("lock submission for wallet %s already exists", sub.WalletAddress)
	}

	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	sub.CreatedAt = now
	sub.UpdatedAt = now

	s.locks[sub.ID] = cloneLock(sub)
	// Wallet addresses are matched case-insensitively; clients send
	// checksummed and lowercased forms interchangeably.
	s.locksByWallet[strings.ToLower(sub.WalletAddress)] = sub.ID
	return cloneLock(sub), nil
}

func (s *Store) GetLockSubmissionByWallet(_ context.Context, wallet string) (ethlock.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.locksByWallet[strings.ToLower(wallet)]
	if !ok {
		return ethlock.Submission{}, ethlock.ErrNotFound
	}
	return cloneLock(s.locks[id]), nil
}

func (s *Store) UpdateLockSubmission(_ context.Context, sub ethlock.Submission) (ethlock.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.locks[sub.ID]
	if !ok {
		return ethlock.Submission{}, fmt.Errorf("lock submission %s not found", sub.ID)
	}

	sub.CreatedAt = original.CreatedAt
	sub.UpdatedAt = time.Now().UTC()

	s.locks[sub.ID] = cloneLock(sub)
	return cloneLock(sub), nil
}

func (s *Store) BeginVerification(_ context.Context, id, txHash string) (ethlock.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.locks[id]
	if !ok {
		return ethlock.Submission{}, fmt.Errorf("lock submission %s not found", id)
	}

	// The hash claim is part of the same critical section as the status
	// flip so two first-time claims with different hashes cannot both win.
	if sub.TxHash != "" && !strings.EqualFold(sub.TxHash, txHash) {
		return ethlock.Submission{}, ethlock.ErrTxHashMismatch
	}
	if sub.TxHash == "" {
		sub.TxHash = txHash
	}
	sub.Status = ethlock.StatusVerifying
	sub.VerificationAttempts++
	sub.UpdatedAt = time.Now().UTC()

	s.locks[id] = cloneLock(sub)
	return cloneLock(sub), nil
}

func (s *Store) ConfirmLockSubmission(_ context.Context, id string, blockNumber uint64, receipt []byte, confirmedAt time.Time) (ethlock.Submission, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.locks[id]
	if !ok {
		return ethlock.Submission{}, false, fmt.Errorf("lock submission %s not found", id)
	}
	if sub.Status == ethlock.StatusConfirmed {
		return cloneLock(sub), false, nil
	}

	sub.Status = ethlock.StatusConfirmed
	sub.BlockNumber = blockNumber
	sub.Receipt = append([]byte(nil), receipt...)
	sub.LastError = ""
	sub.ConfirmedAt = confirmedAt.UTC()
	sub.UpdatedAt = time.Now().UTC()

	s.locks[id] = cloneLock(sub)
	return cloneLock(sub), true, nil
}

// AuditStore implementation ---------------------------------------------------

func (s *Store) AppendAudit(_ context.Context, entry audit.Entry) (audit.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.CreatedAt = time.Now().UTC()
	entry.Payload = append([]byte(nil), entry.Payload...)

	s.audits = append(s.audits, entry)
	return entry, nil
}

func (s *Store) ListAudit(_ context.Context, event string, limit int) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []audit.Entry
	for i := len(s.audits) - 1; i >= 0; i-- {
		if event != "" && s.audits[i].Event != event {
			continue
		}
		out = append(out, s.audits[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Helpers ----------------------------------------------------------------------

func cloneRound(round auction.Round) auction.Round {
	if round.Part != nil {
		part := *round.Part
		round.Part = &part
	}
	return round
}

func cloneLock(sub ethlock.Submission) ethlock.Submission {
	if sub.AmountWei != nil {
		sub.AmountWei = new(big.Int).Set(sub.AmountWei)
	}
	sub.Receipt = append([]byte(nil), sub.Receipt...)
	return sub
}
