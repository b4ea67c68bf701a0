// Package auction implements the auction round lifecycle: the round state
// machine, bid and submission placement, and the externally triggered tick
// pass that advances due rounds.
package auction

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/chopshop-gg/platform/internal/app/admission"
	"github.com/chopshop-gg/platform/internal/app/domain/auction"
	"github.com/chopshop-gg/platform/internal/app/domain/audit"
	"github.com/chopshop-gg/platform/internal/app/metrics"
	"github.com/chopshop-gg/platform/internal/app/storage"
	"github.com/chopshop-gg/platform/pkg/logger"
)

// Config bounds the two phases of a round.
type Config struct {
	SubmissionWindow time.Duration
	BiddingWindow    time.Duration
}

// Service coordinates auction rounds over the backing store. It holds no
// round state itself; the active round is always the store's answer to "the
// round whose status is accepting_submissions or bidding".
type Service struct {
	store  storage.AuctionStore
	locker storage.TickLocker
	audits storage.AuditStore
	cfg    Config
	log    *logger.Logger
	now    func() time.Time
}

// New creates a configured auction service.
func New(store storage.AuctionStore, locker storage.TickLocker, audits storage.AuditStore, cfg Config, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("auction")
	}
	if cfg.SubmissionWindow <= 0 {
		cfg.SubmissionWindow = time.Hour
	}
	if cfg.BiddingWindow <= 0 {
		cfg.BiddingWindow = time.Hour
	}
	return &Service{
		store:  store,
		locker: locker,
		audits: audits,
		cfg:    cfg,
		log:    log,
		now:    time.Now,
	}
}

// WithClock overrides the service clock. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// ActiveRound returns the current active round and its bids.
func (s *Service) ActiveRound(ctx context.Context) (auction.Round, []auction.Bid, error) {
	round, err := s.store.ActiveRound(ctx)
	if err != nil {
		return auction.Round{}, nil, err
	}
	bids, err := s.store.ListBids(ctx, round.ID)
	if err != nil {
		return auction.Round{}, nil, err
	}
	return round, bids, nil
}

// PlaceBid normalizes and records a bid against the active round. The store
// re-checks the minimum next bid inside its write transaction, so a stale
// read here can only make the bid fail, never double-accept.
func (s *Service) PlaceBid(ctx context.Context, wallet string, amount float64) (auction.Bid, auction.Round, error) {
	wallet = strings.TrimSpace(wallet)
	if wallet == "" {
		return auction.Bid{}, auction.Round{}, fmt.Errorf("wallet is required")
	}

	normalized, err := admission.NormalizeBidAmount(amount)
	if err != nil {
		return auction.Bid{}, auction.Round{}, err
	}

	round, err := s.store.ActiveRound(ctx)
	if err != nil {
		return auction.Bid{}, auction.Round{}, err
	}
	if round.Status != auction.StatusBidding {
		return auction.Bid{}, auction.Round{}, auction.ErrRoundClosed
	}

	bid, updated, err := s.store.PlaceBid(ctx, auction.Bid{
		RoundID: round.ID,
		Wallet:  wallet,
		Amount:  normalized,
	}, s.now())
	if err != nil {
		metrics.BidRejected()
		return auction.Bid{}, auction.Round{}, err
	}

	metrics.BidPlaced()
	s.log.WithField("round_id", round.ID).
		WithField("wallet", wallet).
		WithField("amount", normalized).
		Info("bid placed")
	return bid, updated, nil
}

// SubmitPart offers a part for the active round's submission phase.
func (s *Service) SubmitPart(ctx context.Context, wallet, partID string) (auction.Submission, error) {
	wallet = strings.TrimSpace(wallet)
	partID = strings.TrimSpace(partID)
	if wallet == "" {
		return auction.Submission{}, fmt.Errorf("wallet is required")
	}
	if partID == "" {
		return auction.Submission{}, fmt.Errorf("part_id is required")
	}

	round, err := s.store.ActiveRound(ctx)
	if err != nil {
		return auction.Submission{}, err
	}
	if round.Status != auction.StatusAcceptingSubmissions || !s.now().Before(round.SubmissionEndsAt) {
		return auction.Submission{}, auction.ErrSubmissionsClosed
	}

	part, err := s.store.GetPart(ctx, partID)
	if err != nil {
		return auction.Submission{}, err
	}
	if part.OwnerWallet != wallet {
		return auction.Submission{}, fmt.Errorf("part %s not owned by wallet", partID)
	}
	if !admission.EligiblePart(part) {
		return auction.Submission{}, auction.ErrPartIneligible
	}

	sub, err := s.store.CreateSubmission(ctx, auction.Submission{
		RoundID:     round.ID,
		Wallet:      wallet,
		PartID:      part.ID,
		RarityTier:  part.RarityTier,
		PartValue:   part.PartValue,
		SubmittedAt: s.now(),
	})
	if err != nil {
		return auction.Submission{}, err
	}

	part.Locked = true
	if _, err := s.store.UpdatePart(ctx, part); err != nil {
		return auction.Submission{}, fmt.Errorf("lock part: %w", err)
	}

	s.log.WithField("round_id", round.ID).
		WithField("wallet", wallet).
		WithField("part_id", part.ID).
		Info("part submitted")
	return sub, nil
}

// History lists terminal round snapshots, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]auction.HistoryEntry, error) {
	return s.store.ListHistory(ctx, limit)
}

// StartRound opens a fresh round in accepting_submissions with phase
// boundaries offset from now.
func (s *Service) StartRound(ctx context.Context) (auction.Round, error) {
	now := s.now().UTC()
	round, err := s.store.CreateRound(ctx, auction.Round{
		Status:           auction.StatusAcceptingSubmissions,
		SubmissionEndsAt: now.Add(s.cfg.SubmissionWindow),
		EndsAt:           now.Add(s.cfg.SubmissionWindow + s.cfg.BiddingWindow),
	})
	if err != nil {
		return auction.Round{}, err
	}

	s.appendAudit(ctx, audit.EventRoundStarted, map[string]any{
		"round_id":           round.ID,
		"submission_ends_at": round.SubmissionEndsAt,
		"ends_at":            round.EndsAt,
	})
	s.log.WithField("round_id", round.ID).Info("auction round started")
	return round, nil
}

func (s *Service) appendAudit(ctx context.Context, event string, payload map[string]any) {
	if s.audits == nil {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		s.log.WithError(err).Warn("marshal audit payload")
		return
	}
	if _, err := s.audits.AppendAudit(ctx, audit.Entry{Event: event, Payload: raw}); err != nil {
		s.log.WithError(err).Warn("append audit entry")
	}
}

// findTopBid returns the winning bid for a round, if any.
func (s *Service) findTopBid(ctx context.Context, roundID int64) (auction.Bid, bool, error) {
	bids, err := s.store.ListBids(ctx, roundID)
	if err != nil {
		return auction.Bid{}, false, err
	}
	if len(bids) == 0 {
		return auction.Bid{}, false, nil
	}
	top := bids[0]
	for _, bid := range bids[1:] {
		if bid.Amount > top.Amount {
			top = bid
		}
	}
	return top, true, nil
}
