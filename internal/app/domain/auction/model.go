// Package auction defines the timed-auction domain model: rounds, bids,
// submissions and per-round history snapshots.
package auction

import (
	"errors"
	"time"
)

// Status is the lifecycle phase of an auction round.
type Status string

const (
	StatusAcceptingSubmissions Status = "accepting_submissions"
	StatusBidding              Status = "bidding"
	StatusFinalizing           Status = "finalizing"
	StatusCompleted            Status = "completed"
	StatusNoSubmissions        Status = "no_submissions"
)

// Active reports whether a round in this status is the active round.
func (s Status) Active() bool {
	return s == StatusAcceptingSubmissions || s == StatusBidding
}

// Terminal reports whether the status is a terminal state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusNoSubmissions
}

// Round is one complete submission -> bidding -> settlement cycle.
// The part is bound when submissions close and never changes afterwards.
type Round struct {
	ID                int64
	Status            Status
	SubmissionEndsAt  time.Time
	EndsAt            time.Time
	Part              *Part
	CurrentHighestBid float64
	BidCount          int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Bid is a single accepted bid. Immutable once recorded.
type Bid struct {
	ID       string
	RoundID  int64
	Wallet   string
	Amount   float64
	PlacedAt time.Time
}

// Submission is a wallet's offer of a part for a round. At most one
// submission per wallet per round.
type Submission struct {
	ID          string
	RoundID     int64
	Wallet      string
	PartID      string
	RarityTier  int
	PartValue   float64
	SubmittedAt time.Time
}

// Part is the auctionable item. Rarity tier and part value drive selection
// ranking when submissions close.
type Part struct {
	ID           string
	Name         string
	SectionName  string
	RarityTier   int
	PartValue    float64
	TotalPower   int
	SerialNumber int
	Shiny        bool
	Locked       bool
	OwnerWallet  string
}

// HistoryEntry is the terminal snapshot of a settled round. Created once at
// settlement, immutable thereafter.
type HistoryEntry struct {
	ID           string
	RoundID      int64
	Status       Status
	FinalPrice   float64
	WinnerWallet string
	SellerWallet string
	PartName     string
	SectionName  string
	TotalPower   int
	SerialNumber int
	Shiny        bool
	CreatedAt    time.Time
}

// Domain errors surfaced by stores and services.
var (
	// ErrNoActiveRound indicates no round is currently accepting
	// submissions or bids.
	ErrNoActiveRound = errors.New("no active auction round")

	// ErrRoundClosed indicates the round is no longer accepting bids.
	ErrRoundClosed = errors.New("round no longer accepting bids")

	// ErrSubmissionsClosed indicates the submission window has elapsed.
	ErrSubmissionsClosed = errors.New("round no longer accepting submissions")

	// ErrStaleBid indicates the bid did not beat the current highest bid
	// plus the minimum raise at write time.
	ErrStaleBid = errors.New("bid below minimum next bid")

	// ErrDuplicateSubmission indicates the wallet already submitted a part
	// for this round.
	ErrDuplicateSubmission = errors.New("wallet already submitted a part this round")

	// ErrPartIneligible indicates the part is locked or below the minimum
	// rarity tier.
	ErrPartIneligible = errors.New("part not eligible for auction")

	// ErrTickBusy indicates another tick pass currently holds the
	// execution lock.
	ErrTickBusy = errors.New("auction tick is already running")
)
