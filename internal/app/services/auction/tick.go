package auction

import (
	"context"
	"errors"
	"fmt"

	"github.com/chopshop-gg/platform/internal/app/admission"
	"github.com/chopshop-gg/platform/internal/app/domain/auction"
	"github.com/chopshop-gg/platform/internal/app/domain/audit"
	"github.com/chopshop-gg/platform/internal/app/metrics"
)

// Report summarises one tick pass.
type Report struct {
	Status       string  `json:"status"`
	Transitioned []int64 `json:"transitioned"`
	Finalized    []int64 `json:"finalized"`
	Started      *int64  `json:"started"`
}

// Tick runs one scan-and-transition pass over all due rounds. It is safe to
// invoke concurrently or redundantly: the first caller to take the store's
// tick lock runs the pass, overlapping callers get ErrTickBusy without any
// mutation. A failed round is logged and skipped so it cannot block the
// others; a later tick resumes it from the persisted state.
func (s *Service) Tick(ctx context.Context) (Report, error) {
	acquired, err := s.locker.AcquireTickLock(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("acquire tick lock: %w", err)
	}
	if !acquired {
		metrics.TickRun("busy")
		return Report{}, auction.ErrTickBusy
	}
	defer func() {
		if err := s.locker.ReleaseTickLock(ctx); err != nil {
			s.log.WithError(err).Warn("release tick lock")
		}
	}()

	now := s.now().UTC()
	report := Report{
		Status:       "ok",
		Transitioned: []int64{},
		Finalized:    []int64{},
	}

	due, err := s.store.DueRounds(ctx, now)
	if err != nil {
		metrics.TickRun("error")
		return Report{}, fmt.Errorf("scan due rounds: %w", err)
	}

	for _, round := range due {
		switch round.Status {
		case auction.StatusAcceptingSubmissions:
			startedBidding, err := s.closeSubmissions(ctx, round)
			if err != nil {
				s.log.WithError(err).WithField("round_id", round.ID).Error("close submissions")
				continue
			}
			if startedBidding {
				report.Transitioned = append(report.Transitioned, round.ID)
			} else {
				report.Finalized = append(report.Finalized, round.ID)
			}
		case auction.StatusBidding, auction.StatusFinalizing:
			if err := s.settle(ctx, round); err != nil {
				s.log.WithError(err).WithField("round_id", round.ID).Error("settle round")
				continue
			}
			report.Finalized = append(report.Finalized, round.ID)
		}
	}

	// The invariant is exactly one active round whenever the scheduler
	// runs; re-open one if every round has settled.
	if _, err := s.store.ActiveRound(ctx); errors.Is(err, auction.ErrNoActiveRound) {
		started, err := s.StartRound(ctx)
		if err != nil {
			metrics.TickRun("error")
			return Report{}, fmt.Errorf("start next round: %w", err)
		}
		report.Started = &started.ID
	} else if err != nil {
		metrics.TickRun("error")
		return Report{}, fmt.Errorf("check active round: %w", err)
	}

	metrics.TickRun("ok")
	return report, nil
}

// closeSubmissions ends the submission phase. With at least one submission
// the highest-ranked part is bound to the round and bidding opens; with none
// the round short-circuits to the terminal no_submissions state. Returns
// whether bidding was opened.
func (s *Service) closeSubmissions(ctx context.Context, round auction.Round) (bool, error) {
	subs, err := s.store.ListSubmissions(ctx, round.ID)
	if err != nil {
		return false, err
	}

	winner, ok := admission.SelectWinner(subs)
	if !ok {
		if err := s.finalizeNoSubmissions(ctx, round); err != nil {
			return false, err
		}
		return false, nil
	}

	// Non-selected parts go back to their owners.
	for _, sub := range subs {
		if sub.ID == winner.ID {
			continue
		}
		if err := s.releasePart(ctx, sub.PartID); err != nil {
			s.log.WithError(err).WithField("part_id", sub.PartID).Warn("release unselected part")
		}
	}

	part, err := s.store.GetPart(ctx, winner.PartID)
	if err != nil {
		return false, fmt.Errorf("load selected part: %w", err)
	}

	round.Part = &part
	round.Status = auction.StatusBidding
	if _, err := s.store.UpdateRound(ctx, round); err != nil {
		return false, err
	}

	metrics.RoundTransition("bidding")
	s.log.WithField("round_id", round.ID).
		WithField("part_id", part.ID).
		WithField("rarity_tier", part.RarityTier).
		Info("submissions closed, bidding open")
	return true, nil
}

// finalizeNoSubmissions settles an empty round. The degenerate history entry
// is written before the round leaves the active set so there is never a
// window with neither an active round nor a record of the last one.
func (s *Service) finalizeNoSubmissions(ctx context.Context, round auction.Round) error {
	if _, err := s.store.GetHistoryEntry(ctx, round.ID); err != nil {
		entry := auction.HistoryEntry{
			RoundID:    round.ID,
			Status:     auction.StatusNoSubmissions,
			FinalPrice: 0,
		}
		if _, err := s.store.CreateHistoryEntry(ctx, entry); err != nil {
			return fmt.Errorf("record history: %w", err)
		}
	}

	round.Status = auction.StatusNoSubmissions
	if _, err := s.store.UpdateRound(ctx, round); err != nil {
		return err
	}

	metrics.RoundTransition("no_submissions")
	s.appendAudit(ctx, audit.EventRoundCompleted, map[string]any{
		"round_id": round.ID,
		"status":   auction.StatusNoSubmissions,
	})
	s.log.WithField("round_id", round.ID).Info("round closed without submissions")
	return nil
}

// settle ends the bidding phase and completes the round. The round is parked
// in finalizing first so an interrupted pass resumes here, and the history
// snapshot is written before the round is marked completed.
func (s *Service) settle(ctx context.Context, round auction.Round) error {
	if round.Status == auction.StatusBidding {
		round.Status = auction.StatusFinalizing
		updated, err := s.store.UpdateRound(ctx, round)
		if err != nil {
			return err
		}
		round = updated
	}

	topBid, hasBids, err := s.findTopBid(ctx, round.ID)
	if err != nil {
		return err
	}

	var part auction.Part
	if round.Part != nil {
		part = *round.Part
	}

	if _, err := s.store.GetHistoryEntry(ctx, round.ID); err != nil {
		entry := auction.HistoryEntry{
			RoundID:      round.ID,
			Status:       auction.StatusCompleted,
			FinalPrice:   round.CurrentHighestBid,
			SellerWallet: part.OwnerWallet,
			PartName:     part.Name,
			SectionName:  part.SectionName,
			TotalPower:   part.TotalPower,
			SerialNumber: part.SerialNumber,
			Shiny:        part.Shiny,
		}
		if hasBids {
			entry.WinnerWallet = topBid.Wallet
		}
		if _, err := s.store.CreateHistoryEntry(ctx, entry); err != nil {
			return fmt.Errorf("record history: %w", err)
		}
	}

	if round.Part != nil {
		if hasBids {
			if err := s.transferPart(ctx, round.Part.ID, topBid.Wallet); err != nil {
				return err
			}
		} else {
			// No buyer: the part returns to the seller unlocked.
			if err := s.releasePart(ctx, round.Part.ID); err != nil {
				return err
			}
		}
	}

	round.Status = auction.StatusCompleted
	if _, err := s.store.UpdateRound(ctx, round); err != nil {
		return err
	}

	metrics.RoundTransition("completed")
	s.appendAudit(ctx, audit.EventRoundCompleted, map[string]any{
		"round_id":    round.ID,
		"status":      auction.StatusCompleted,
		"final_price": round.CurrentHighestBid,
		"bid_count":   round.BidCount,
	})
	s.log.WithField("round_id", round.ID).
		WithField("final_price", round.CurrentHighestBid).
		WithField("bid_count", round.BidCount).
		Info("round completed")
	return nil
}

func (s *Service) releasePart(ctx context.Context, partID string) error {
	part, err := s.store.GetPart(ctx, partID)
	if err != nil {
		return err
	}
	part.Locked = false
	_, err = s.store.UpdatePart(ctx, part)
	return err
}

func (s *Service) transferPart(ctx context.Context, partID, newOwner string) error {
	part, err := s.store.GetPart(ctx, partID)
	if err != nil {
		return err
	}
	part.OwnerWallet = newOwner
	part.Locked = false
	_, err = s.store.UpdatePart(ctx, part)
	return err
}
