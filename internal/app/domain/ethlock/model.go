// Package ethlock defines the on-chain lock payment domain model: a user's
// claim to have sent the required lock transaction, pending verification.
package ethlock

import (
	"errors"
	"math/big"
	"time"
)

// Status is the verification state of a lock submission.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSent      Status = "sent"
	StatusVerifying Status = "verifying"
	StatusError     Status = "error"
	StatusConfirmed Status = "confirmed"
)

// Submission records a wallet's lock payment claim and its verification
// trail. Once confirmed the record is terminal; it is never deleted, the
// receipt and last error form an append-only audit trail.
type Submission struct {
	ID                   string
	WalletAddress        string
	AuthUserID           string
	TxHash               string
	ChainID              int64
	FromAddress          string
	ToAddress            string
	AmountWei            *big.Int
	Status               Status
	VerificationAttempts int
	BlockNumber          uint64
	Receipt              []byte
	LastError            string
	ConfirmedAt          time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

var (
	// ErrNotFound indicates no lock submission exists for the wallet.
	ErrNotFound = errors.New("no lock submission found for wallet")

	// ErrTxHashMismatch indicates the submission already carries a
	// different transaction hash. The record is left unchanged.
	ErrTxHashMismatch = errors.New("submission already has a different transaction hash")
)
