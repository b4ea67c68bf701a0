// Package admission holds the pure bid and submission admission rules. It is
// the canonical source of truth for minimum-bid math; the store layer
// re-checks the same rules inside its write transaction.
package admission

import (
	"errors"
	"math"
	"sort"

	"github.com/chopshop-gg/platform/internal/app/domain/auction"
)

const (
	// MinBidRaise is the multiplier every accepted bid must clear over the
	// current highest bid.
	MinBidRaise = 1.05

	// MaxBidAmount is the hard ceiling for a single bid.
	MaxBidAmount = 1_000_000_000

	// MinRarityTier is the lowest rarity tier accepted for auction
	// submission ("Rare" and above).
	MinRarityTier = 4
)

var (
	// ErrInvalidAmount rejects non-finite or negative bid amounts.
	ErrInvalidAmount = errors.New("bid amount must be a non-negative number")

	// ErrAmountTooLarge rejects bids above MaxBidAmount.
	ErrAmountTooLarge = errors.New("bid amount exceeds maximum")
)

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// MinNextBid returns the lowest amount the next bid must reach. With no
// meaningful current bid the floor is 1; otherwise the floor rises by at
// least five percent, rounded to two decimals.
func MinNextBid(currentHighestBid float64) float64 {
	if math.IsNaN(currentHighestBid) || math.IsInf(currentHighestBid, 0) || currentHighestBid <= 0 {
		return 1
	}
	return math.Max(1, Round2(currentHighestBid*MinBidRaise))
}

// NormalizeBidAmount validates a raw bid amount and returns it rounded to
// two decimals. All downstream bid placement must use the normalized value.
func NormalizeBidAmount(raw float64) (float64, error) {
	if math.IsNaN(raw) || math.IsInf(raw, 0) || raw < 0 {
		return 0, ErrInvalidAmount
	}
	if raw > MaxBidAmount {
		return 0, ErrAmountTooLarge
	}
	return Round2(raw), nil
}

// EligiblePart reports whether a part may be submitted to the auction.
func EligiblePart(part auction.Part) bool {
	return !part.Locked && part.RarityTier >= MinRarityTier
}

// RankSubmissions orders submissions by selection priority: rarity tier
// descending, then part value descending, with submission order breaking
// ties. The result is deterministic from stored data alone.
func RankSubmissions(subs []auction.Submission) []auction.Submission {
	ranked := make([]auction.Submission, len(subs))
	copy(ranked, subs)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.RarityTier != b.RarityTier {
			return a.RarityTier > b.RarityTier
		}
		if a.PartValue != b.PartValue {
			return a.PartValue > b.PartValue
		}
		if !a.SubmittedAt.Equal(b.SubmittedAt) {
			return a.SubmittedAt.Before(b.SubmittedAt)
		}
		return a.ID < b.ID
	})
	return ranked
}

// SelectWinner returns the highest-ranked submission, or false when the
// slice is empty.
func SelectWinner(subs []auction.Submission) (auction.Submission, bool) {
	if len(subs) == 0 {
		return auction.Submission{}, false
	}
	return RankSubmissions(subs)[0], true
}
