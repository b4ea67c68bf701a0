// Package ethlock implements on-chain verification of lock payment claims:
// receipt polling, sender/recipient/amount validation, confirmation counting
// and the atomic transition to the terminal confirmed state.
package ethlock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/chopshop-gg/platform/internal/app/domain/audit"
	"github.com/chopshop-gg/platform/internal/app/domain/ethlock"
	"github.com/chopshop-gg/platform/internal/app/ethrpc"
	"github.com/chopshop-gg/platform/internal/app/metrics"
	"github.com/chopshop-gg/platform/internal/app/storage"
	"github.com/chopshop-gg/platform/pkg/logger"
)

var (
	addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	txHashPattern  = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)
)

// ValidAddress reports whether s looks like an Ethereum address.
func ValidAddress(s string) bool { return addressPattern.MatchString(s) }

// ValidTxHash reports whether s looks like a transaction hash.
func ValidTxHash(s string) bool { return txHashPattern.MatchString(s) }

// ChainClient is the subset of the RPC client the verifier needs.
type ChainClient interface {
	BlockNumber(ctx context.Context) (uint64, error)
	TransactionByHash(ctx context.Context, hash string) (ethrpc.Transaction, bool, error)
	TransactionReceipt(ctx context.Context, hash string) (ethrpc.Receipt, bool, error)
}

// Config carries the verification policy.
type Config struct {
	// RecipientAddress is the lock contract or treasury address every lock
	// payment must be sent to.
	RecipientAddress string
	// LockAmountWei is the globally required lock amount.
	LockAmountWei *big.Int
	// MinConfirmations is the confirmation depth required before a lock is
	// considered final.
	MinConfirmations int
	// PollAttempts bounds the receipt polling loop per verification call.
	PollAttempts int
	// PollInterval is the delay between receipt polls.
	PollInterval time.Duration
	// MaxAttempts caps total verification attempts across calls before the
	// submission is failed permanently. Zero disables the cap.
	MaxAttempts int
}

// Result is the tri-state outcome of a verification call. A pending result
// ("verifying") is retryable and not an error; a terminal failure carries
// the persisted message.
type Result struct {
	Status        ethlock.Status
	Message       string
	Confirmations int64
}

// Service verifies lock submissions against the chain.
type Service struct {
	store  storage.LockStore
	audits storage.AuditStore
	chain  ChainClient
	cfg    Config
	log    *logger.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// New creates a configured verifier.
func New(store storage.LockStore, audits storage.AuditStore, chain ChainClient, cfg Config, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("ethlock")
	}
	if cfg.PollAttempts <= 0 {
		cfg.PollAttempts = 5
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 3 * time.Second
	}
	if cfg.MinConfirmations <= 0 {
		cfg.MinConfirmations = 3
	}
	return &Service{
		store:  store,
		audits: audits,
		chain:  chain,
		cfg:    cfg,
		log:    log,
		sleep:  sleepContext,
	}
}

// WithSleep overrides the inter-poll delay. Intended for tests.
func (s *Service) WithSleep(sleep func(ctx context.Context, d time.Duration) error) *Service {
	s.sleep = sleep
	return s
}

// Verify checks a claimed lock transaction for the wallet and advances the
// submission's status. Concurrent calls for the same submission converge:
// the losing caller observes the already-confirmed state.
func (s *Service) Verify(ctx context.Context, wallet, txHash string) (Result, error) {
	wallet = strings.ToLower(strings.TrimSpace(wallet))
	txHash = strings.ToLower(strings.TrimSpace(txHash))

	sub, err := s.store.GetLockSubmissionByWallet(ctx, wallet)
	if err != nil {
		return Result{}, err
	}

	if sub.TxHash != "" && !strings.EqualFold(sub.TxHash, txHash) {
		return Result{}, ethlock.ErrTxHashMismatch
	}

	// Terminal state short-circuit; no RPC work, no attempt recorded.
	if sub.Status == ethlock.StatusConfirmed {
		metrics.LockVerification("confirmed")
		return Result{
			Status:  ethlock.StatusConfirmed,
			Message: "Lock transaction already confirmed.",
		}, nil
	}

	sub, err = s.store.BeginVerification(ctx, sub.ID, txHash)
	if err != nil {
		if errors.Is(err, ethlock.ErrTxHashMismatch) {
			// Lost the claim race to a caller with a different hash.
			return Result{}, ethlock.ErrTxHashMismatch
		}
		return Result{}, fmt.Errorf("mark verifying: %w", err)
	}

	if s.cfg.MaxAttempts > 0 && sub.VerificationAttempts > s.cfg.MaxAttempts {
		return s.failTerminal(ctx, sub, "Verification attempts exhausted.")
	}

	receipt, found, err := s.pollReceipt(ctx, txHash)
	if err != nil {
		// Transport-level trouble: keep the submission retryable and
		// surface the failure to the caller.
		s.persistPending(ctx, sub, "RPC error while fetching receipt.")
		return Result{}, err
	}
	if !found {
		return s.pendingResult(ctx, sub, "Transaction pending confirmation.", 0), nil
	}

	tx, ok, err := s.chain.TransactionByHash(ctx, txHash)
	if err != nil {
		s.persistPending(ctx, sub, "RPC error while fetching transaction.")
		return Result{}, err
	}
	if !ok {
		return s.failTerminal(ctx, sub, "Transaction not found on-chain.")
	}

	if msg := s.validate(sub, wallet, txHash, tx, receipt); msg != "" {
		return s.failTerminal(ctx, sub, msg)
	}

	latest, err := s.chain.BlockNumber(ctx)
	if err != nil {
		s.persistPending(ctx, sub, "RPC error while fetching block number.")
		return Result{}, err
	}

	confirmations := int64(0)
	if latest >= receipt.BlockNumber {
		confirmations = int64(latest-receipt.BlockNumber) + 1
	}
	if confirmations < int64(s.cfg.MinConfirmations) {
		msg := fmt.Sprintf("Waiting for confirmations (%d/%d).", confirmations, s.cfg.MinConfirmations)
		return s.pendingResult(ctx, sub, msg, confirmations), nil
	}

	auditPayload := struct {
		Transaction json.RawMessage `json:"transaction"`
		Receipt     json.RawMessage `json:"receipt"`
	}{Transaction: tx.Raw, Receipt: receipt.Raw}
	receiptJSON, err := json.Marshal(auditPayload)
	if err != nil {
		return Result{}, fmt.Errorf("marshal receipt payload: %w", err)
	}

	confirmed, won, err := s.store.ConfirmLockSubmission(ctx, sub.ID, receipt.BlockNumber, receiptJSON, time.Now())
	if err != nil {
		return Result{}, fmt.Errorf("confirm lock submission: %w", err)
	}

	if won {
		s.appendAudit(ctx, audit.EventLockConfirmed, map[string]any{
			"wallet_address": confirmed.WalletAddress,
			"tx_hash":        txHash,
			"block_number":   receipt.BlockNumber,
			"confirmations":  confirmations,
		})
		s.log.WithField("wallet", confirmed.WalletAddress).
			WithField("tx_hash", txHash).
			WithField("confirmations", confirmations).
			Info("lock transaction confirmed")
	}

	metrics.LockVerification("confirmed")
	return Result{
		Status:        ethlock.StatusConfirmed,
		Message:       "Lock transaction confirmed.",
		Confirmations: confirmations,
	}, nil
}

// pollReceipt fetches the transaction receipt with a bounded retry loop.
// "Not found yet" is an expected outcome, not an error.
func (s *Service) pollReceipt(ctx context.Context, txHash string) (ethrpc.Receipt, bool, error) {
	for attempt := 0; attempt < s.cfg.PollAttempts; attempt++ {
		if attempt > 0 {
			if err := s.sleep(ctx, s.cfg.PollInterval); err != nil {
				return ethrpc.Receipt{}, false, err
			}
		}
		metrics.RPCPoll()
		receipt, found, err := s.chain.TransactionReceipt(ctx, txHash)
		if err != nil {
			return ethrpc.Receipt{}, false, fmt.Errorf("fetch receipt: %w", err)
		}
		if found {
			return receipt, true, nil
		}
	}
	return ethrpc.Receipt{}, false, nil
}

// validate runs the ordered on-chain checks, returning the first failure
// message or empty on success.
func (s *Service) validate(sub ethlock.Submission, wallet, txHash string, tx ethrpc.Transaction, receipt ethrpc.Receipt) string {
	if !strings.EqualFold(tx.Hash, txHash) {
		return "Transaction hash mismatch."
	}

	expectedSender := wallet
	if sub.FromAddress != "" {
		expectedSender = strings.ToLower(sub.FromAddress)
	}
	if !strings.EqualFold(tx.From, expectedSender) {
		return "Transaction sender does not match expected wallet."
	}

	if !strings.EqualFold(tx.To, s.cfg.RecipientAddress) {
		return "Transaction recipient does not match lock address."
	}

	if sub.AmountWei != nil && tx.ValueWei.Cmp(sub.AmountWei) != 0 {
		return "Transaction amount does not match expected lock amount."
	}
	if s.cfg.LockAmountWei != nil && tx.ValueWei.Cmp(s.cfg.LockAmountWei) != 0 {
		return "Transaction amount does not match required lock amount."
	}

	if receipt.Status != 1 {
		return "Transaction reverted on-chain."
	}

	return ""
}

// pendingResult persists the retryable verifying state with a note and
// builds the pending result.
func (s *Service) pendingResult(ctx context.Context, sub ethlock.Submission, msg string, confirmations int64) Result {
	s.persistPending(ctx, sub, msg)
	metrics.LockVerification("pending")
	return Result{
		Status:        ethlock.StatusVerifying,
		Message:       msg,
		Confirmations: confirmations,
	}
}

func (s *Service) persistPending(ctx context.Context, sub ethlock.Submission, note string) {
	sub.Status = ethlock.StatusVerifying
	sub.LastError = note
	if _, err := s.store.UpdateLockSubmission(ctx, sub); err != nil {
		s.log.WithError(err).WithField("wallet", sub.WalletAddress).Warn("persist pending state")
	}
}

// failTerminal persists the error status with its reason, records the audit
// event and returns the terminal result.
func (s *Service) failTerminal(ctx context.Context, sub ethlock.Submission, msg string) (Result, error) {
	sub.Status = ethlock.StatusError
	sub.LastError = msg
	if _, err := s.store.UpdateLockSubmission(ctx, sub); err != nil {
		return Result{}, fmt.Errorf("persist failure: %w", err)
	}

	s.appendAudit(ctx, audit.EventLockError, map[string]any{
		"wallet_address": sub.WalletAddress,
		"tx_hash":        sub.TxHash,
		"error":          msg,
	})
	metrics.LockVerification("error")
	s.log.WithField("wallet", sub.WalletAddress).
		WithField("tx_hash", sub.TxHash).
		Warn("lock verification failed: " + msg)

	return Result{Status: ethlock.StatusError, Message: msg}, nil
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

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
