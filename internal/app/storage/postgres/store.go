// Package postgres implements the storage interfaces backed by PostgreSQL.
//
// Bid placement runs inside a transaction that locks the round row, so the
// minimum-raise check and the write are atomic. The tick lock is a session
// advisory lock held on a dedicated connection for the duration of a pass.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
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

// tickLockKey identifies the auction tick advisory lock. Stable across
// processes; any instance holding it blocks all others from ticking.
const tickLockKey = int64(8271550217391)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sql.DB

	tickMu   sync.Mutex
	tickConn *sql.Conn
}

var _ storage.AuctionStore = (*Store)(nil)
var _ storage.TickLocker = (*Store)(nil)
var _ storage.LockStore = (*Store)(nil)
var _ storage.AuditStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// --- AuctionStore: rounds ---------------------------------------------------

const roundColumns = `
	r.id, r.status, r.submission_ends_at, r.ends_at,
	r.current_highest_bid, r.bid_count, r.created_at, r.updated_at,
	p.id, p.name, p.section_name, p.rarity_tier, p.part_value,
	p.total_power, p.serial_number, p.shiny, p.locked, p.owner_wallet`

const roundFrom = `
	FROM auction_rounds r
	LEFT JOIN auction_parts p ON p.id = r.part_id`

func (s *Store) CreateRound(ctx context.Context, round auction.Round) (auction.Round, error) {
	now := time.Now().UTC()
	round.CreatedAt = now
	round.UpdatedAt = now

	// The partial unique index on active rounds backs this check; the
	// insert fails either way, this just produces the clearer error.
	if round.Status.Active() {
		var existing int64
		err := s.db.QueryRowContext(ctx, `
			SELECT id FROM auction_rounds
			WHERE status IN ('accepting_submissions', 'bidding')
			LIMIT 1
		`).Scan(&existing)
		if err == nil {
			return auction.Round{}, fmt.Errorf("round %d is already active", existing)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return auction.Round{}, err
		}
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO auction_rounds
			(status, submission_ends_at, ends_at, part_id, current_highest_bid, bid_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, round.Status, round.SubmissionEndsAt, round.EndsAt, roundPartID(round),
		round.CurrentHighestBid, round.BidCount, round.CreatedAt, round.UpdatedAt).Scan(&round.ID)
	if err != nil {
		return auction.Round{}, err
	}
	return round, nil
}

func (s *Store) UpdateRound(ctx context.Context, round auction.Round) (auction.Round, error) {
	round.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE auction_rounds
		SET status = $2, submission_ends_at = $3, ends_at = $4, part_id = $5,
		    current_highest_bid = $6, bid_count = $7, updated_at = $8
		WHERE id = $1
	`, round.ID, round.Status, round.SubmissionEndsAt, round.EndsAt, roundPartID(round),
		round.CurrentHighestBid, round.BidCount, round.UpdatedAt)
	if err != nil {
		return auction.Round{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return auction.Round{}, sql.ErrNoRows
	}
	return round, nil
}

func (s *Store) GetRound(ctx context.Context, id int64) (auction.Round, error) {
	row := s.db.QueryRowContext(ctx, `SELECT`+roundColumns+roundFrom+` WHERE r.id = $1`, id)
	return scanRound(row)
}

func (s *Store) ActiveRound(ctx context.Context) (auction.Round, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT`+roundColumns+roundFrom+`
		WHERE r.status IN ('accepting_submissions', 'bidding')
		LIMIT 1
	`)
	round, err := scanRound(row)
	if errors.Is(err, sql.ErrNoRows) {
		return auction.Round{}, auction.ErrNoActiveRound
	}
	return round, err
}

func (s *Store) DueRounds(ctx context.Context, now time.Time) ([]auction.Round, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT`+roundColumns+roundFrom+`
		WHERE (r.status = 'accepting_submissions' AND r.submission_ends_at <= $1)
		   OR (r.status = 'bidding' AND r.ends_at <= $1)
		   OR r.status = 'finalizing'
		ORDER BY r.id
	`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var due []auction.Round
	for rows.Next() {
		round, err := scanRound(rows)
		if err != nil {
			return nil, err
		}
		due = append(due, round)
	}
	return due, rows.Err()
}

// --- AuctionStore: bids -----------------------------------------------------

func (s *Store) PlaceBid(ctx context.Context, bid auction.Bid, now time.Time) (auction.Bid, auction.Round, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return auction.Bid{}, auction.Round{}, err
	}
	defer tx.Rollback()

	var (
		status     auction.Status
		endsAt     time.Time
		highestBid float64
		bidCount   int
	)
	err = tx.QueryRowContext(ctx, `
		SELECT status, ends_at, current_highest_bid, bid_count
		FROM auction_rounds
		WHERE id = $1
		FOR UPDATE
	`, bid.RoundID).Scan(&status, &endsAt, &highestBid, &bidCount)
	if err != nil {
		return auction.Bid{}, auction.Round{}, err
	}

	if status != auction.StatusBidding || !now.Before(endsAt) {
		return auction.Bid{}, auction.Round{}, auction.ErrRoundClosed
	}

	min := admission.MinNextBid(highestBid)
	if bid.Amount < min {
		return auction.Bid{}, auction.Round{}, fmt.Errorf("%w: minimum next bid is %.2f", auction.ErrStaleBid, min)
	}

	if bid.ID == "" {
		bid.ID = uuid.NewString()
	}
	bid.PlacedAt = now.UTC()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO auction_bids (id, round_id, wallet, amount, placed_at)
		VALUES ($1, $2, $3, $4, $5)
	`, bid.ID, bid.RoundID, bid.Wallet, bid.Amount, bid.PlacedAt)
	if err != nil {
		return auction.Bid{}, auction.Round{}, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE auction_rounds
		SET current_highest_bid = $2, bid_count = bid_count + 1, updated_at = $3
		WHERE id = $1
	`, bid.RoundID, bid.Amount, time.Now().UTC())
	if err != nil {
		return auction.Bid{}, auction.Round{}, err
	}

	if err := tx.Commit(); err != nil {
		return auction.Bid{}, auction.Round{}, err
	}

	round, err := s.GetRound(ctx, bid.RoundID)
	if err != nil {
		return auction.Bid{}, auction.Round{}, err
	}
	return bid, round, nil
}

func (s *Store) ListBids(ctx context.Context, roundID int64) ([]auction.Bid, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, round_id, wallet, amount, placed_at
		FROM auction_bids
		WHERE round_id = $1
		ORDER BY placed_at, id
	`, roundID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bids []auction.Bid
	for rows.Next() {
		var bid auction.Bid
		if err := rows.Scan(&bid.ID, &bid.RoundID, &bid.Wallet, &bid.Amount, &bid.PlacedAt); err != nil {
			return nil, err
		}
		bids = append(bids, bid)
	}
	return bids, rows.Err()
}

// --- AuctionStore: submissions ----------------------------------------------

func (s *Store) CreateSubmission(ctx context.Context, sub auction.Submission) (auction.Submission, error) {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.SubmittedAt.IsZero() {
		sub.SubmittedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return auction.Submission{}, err
	}
	defer tx.Rollback()

	var existing int
	err = tx.QueryRowContext(ctx, `
		SELECT 1 FROM auction_submissions
		WHERE round_id = $1 AND wallet = $2
	`, sub.RoundID, sub.Wallet).Scan(&existing)
	if err == nil {
		return auction.Submission{}, auction.ErrDuplicateSubmission
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return auction.Submission{}, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO auction_submissions (id, round_id, wallet, part_id, rarity_tier, part_value, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, sub.ID, sub.RoundID, sub.Wallet, sub.PartID, sub.RarityTier, sub.PartValue, sub.SubmittedAt)
	if err != nil {
		return auction.Submission{}, err
	}

	if err := tx.Commit(); err != nil {
		return auction.Submission{}, err
	}
	return sub, nil
}

func (s *Store) ListSubmissions(ctx context.Context, roundID int64) ([]auction.Submission, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, round_id, wallet, part_id, rarity_tier, part_value, submitted_at
		FROM auction_submissions
		WHERE round_id = $1
		ORDER BY submitted_at, id
	`, roundID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []auction.Submission
	for rows.Next() {
		var sub auction.Submission
		if err := rows.Scan(&sub.ID, &sub.RoundID, &sub.Wallet, &sub.PartID, &sub.RarityTier, &sub.PartValue, &sub.SubmittedAt); err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// --- AuctionStore: parts ----------------------------------------------------

func (s *Store) GetPart(ctx context.Context, id string) (auction.Part, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, section_name, rarity_tier, part_value, total_power, serial_number, shiny, locked, owner_wallet
		FROM auction_parts
		WHERE id = $1
	`, id)

	var part auction.Part
	err := row.Scan(&part.ID, &part.Name, &part.SectionName, &part.RarityTier, &part.PartValue,
		&part.TotalPower, &part.SerialNumber, &part.Shiny, &part.Locked, &part.OwnerWallet)
	if err != nil {
		return auction.Part{}, err
	}
	return part, nil
}

func (s *Store) UpdatePart(ctx context.Context, part auction.Part) (auction.Part, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE auction_parts
		SET name = $2, section_name = $3, rarity_tier = $4, part_value = $5,
		    total_power = $6, serial_number = $7, shiny = $8, locked = $9, owner_wallet = $10
		WHERE id = $1
	`, part.ID, part.Name, part.SectionName, part.RarityTier, part.PartValue,
		part.TotalPower, part.SerialNumber, part.Shiny, part.Locked, part.OwnerWallet)
	if err != nil {
		return auction.Part{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return auction.Part{}, sql.ErrNoRows
	}
	return part, nil
}

// --- AuctionStore: history --------------------------------------------------

func (s *Store) CreateHistoryEntry(ctx context.Context, entry auction.HistoryEntry) (auction.HistoryEntry, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO auction_history
			(id, round_id, status, final_price, winner_wallet, seller_wallet,
			 part_name, section_name, total_power, serial_number, shiny, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, entry.ID, entry.RoundID, entry.Status, entry.FinalPrice, entry.WinnerWallet, entry.SellerWallet,
		entry.PartName, entry.SectionName, entry.TotalPower, entry.SerialNumber, entry.Shiny, entry.CreatedAt)
	if err != nil {
		return auction.HistoryEntry{}, err
	}
	return entry, nil
}

func (s *Store) GetHistoryEntry(ctx context.Context, roundID int64) (auction.HistoryEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, round_id, status, final_price, winner_wallet, seller_wallet,
		       part_name, section_name, total_power, serial_number, shiny, created_at
		FROM auction_history
		WHERE round_id = $1
	`, roundID)
	return scanHistoryEntry(row)
}

func (s *Store) ListHistory(ctx context.Context, limit int) ([]auction.HistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, round_id, status, final_price, winner_wallet, seller_wallet,
		       part_name, section_name, total_power, serial_number, shiny, created_at
		FROM auction_history
		ORDER BY created_at DESC, round_id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []auction.HistoryEntry
	for rows.Next() {
		entry, err := scanHistoryEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// --- TickLocker -------------------------------------------------------------

// AcquireTickLock takes the advisory lock on a dedicated connection so the
// session holding it is pinned until release. In-process re-entry is refused
// without a round trip.
func (s *Store) AcquireTickLock(ctx context.Context) (bool, error) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	if s.tickConn != nil {
		return false, nil
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return false, err
	}

	var acquired bool
	if err := conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, tickLockKey).Scan(&acquired); err != nil {
		conn.Close()
		return false, err
	}
	if !acquired {
		conn.Close()
		return false, nil
	}

	s.tickConn = conn
	return true, nil
}

func (s *Store) ReleaseTickLock(ctx context.Context) error {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	if s.tickConn == nil {
		return nil
	}

	_, unlockErr := s.tickConn.ExecContext(ctx, `SELECT pg_advisory_unlock($1)`, tickLockKey)
	closeErr := s.tickConn.Close()
	s.tickConn = nil

	if unlockErr != nil {
		return unlockErr
	}
	return closeErr
}

// --- LockStore --------------------------------------------------------------

const lockColumns = `
	id, wallet_address, auth_user_id, tx_hash, chain_id, from_address, to_address,
	amount_wei, status, verification_attempts, block_number, receipt, last_error,
	confirmed_at, created_at, updated_at`

func (s *Store) CreateLockSubmission(ctx context.Context, sub ethlock.Submission) (ethlock.Submission, error) {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	// Stored lowercased so the unique constraint holds across checksummed
	// and lowercased forms of the same address.
	sub.WalletAddress = strings.ToLower(strings.TrimSpace(sub.WalletAddress))
	now := time.Now().UTC()
	sub.CreatedAt = now
	sub.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO eth_lock_submissions
			(id, wallet_address, auth_user_id, tx_hash, chain_id, from_address, to_address,
			 amount_wei, status, verification_attempts, block_number, receipt, last_error,
			 confirmed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`, sub.ID, sub.WalletAddress, sub.AuthUserID, sub.TxHash, sub.ChainID, sub.FromAddress, sub.ToAddress,
		weiString(sub.AmountWei), sub.Status, sub.VerificationAttempts, int64(sub.BlockNumber), sub.Receipt,
		sub.LastError, toNullTime(sub.ConfirmedAt), sub.CreatedAt, sub.UpdatedAt)
	if err != nil {
		return ethlock.Submission{}, err
	}
	return sub, nil
}

func (s *Store) GetLockSubmissionByWallet(ctx context.Context, wallet string) (ethlock.Submission, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT`+lockColumns+`
		FROM eth_lock_submissions
		WHERE LOWER(wallet_address) = LOWER($1)
	`, wallet)

	sub, err := scanLockSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ethlock.Submission{}, ethlock.ErrNotFound
	}
	return sub, err
}

func (s *Store) getLockSubmission(ctx context.Context, id string) (ethlock.Submission, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT`+lockColumns+`
		FROM eth_lock_submissions
		WHERE id = $1
	`, id)
	return scanLockSubmission(row)
}

func (s *Store) UpdateLockSubmission(ctx context.Context, sub ethlock.Submission) (ethlock.Submission, error) {
	sub.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE eth_lock_submissions
		SET tx_hash = $2, chain_id = $3, from_address = $4, to_address = $5, amount_wei = $6,
		    status = $7, verification_attempts = $8, block_number = $9, receipt = $10,
		    last_error = $11, confirmed_at = $12, updated_at = $13
		WHERE id = $1
	`, sub.ID, sub.TxHash, sub.ChainID, sub.FromAddress, sub.ToAddress, weiString(sub.AmountWei),
		sub.Status, sub.VerificationAttempts, int64(sub.BlockNumber), sub.Receipt, sub.LastError,
		toNullTime(sub.ConfirmedAt), sub.UpdatedAt)
	if err != nil {
		return ethlock.Submission{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ethlock.Submission{}, sql.ErrNoRows
	}
	return sub, nil
}

// BeginVerification claims the tx hash and flips the submission to verifying
// in one conditional update, so concurrent first-time claims with different
// hashes cannot both pass the conflict check.
func (s *Store) BeginVerification(ctx context.Context, id, txHash string) (ethlock.Submission, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE eth_lock_submissions
		SET tx_hash = $2,
		    status = 'verifying',
		    verification_attempts = verification_attempts + 1,
		    updated_at = $3
		WHERE id = $1 AND (tx_hash = '' OR LOWER(tx_hash) = LOWER($2))
	`, id, txHash, time.Now().UTC())
	if err != nil {
		return ethlock.Submission{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		// The row exists (the caller just fetched it), so a zero-row
		// update means another caller claimed a different hash.
		return ethlock.Submission{}, ethlock.ErrTxHashMismatch
	}
	return s.getLockSubmission(ctx, id)
}

// ConfirmLockSubmission is a conditional update: the guard on status makes
// the confirmed transition first-writer-wins under concurrent verification.
func (s *Store) ConfirmLockSubmission(ctx context.Context, id string, blockNumber uint64, receipt []byte, confirmedAt time.Time) (ethlock.Submission, bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE eth_lock_submissions
		SET status = 'confirmed', block_number = $2, receipt = $3, last_error = '',
		    confirmed_at = $4, updated_at = $5
		WHERE id = $1 AND status <> 'confirmed'
	`, id, int64(blockNumber), receipt, confirmedAt.UTC(), time.Now().UTC())
	if err != nil {
		return ethlock.Submission{}, false, err
	}
	rows, _ := result.RowsAffected()

	sub, err := s.getLockSubmission(ctx, id)
	if err != nil {
		return ethlock.Submission{}, false, err
	}
	return sub, rows > 0, nil
}

// --- AuditStore -------------------------------------------------------------

func (s *Store) AppendAudit(ctx context.Context, entry audit.Entry) (audit.Entry, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, event, payload, created_at)
		VALUES ($1, $2, $3, $4)
	`, entry.ID, entry.Event, entry.Payload, entry.CreatedAt)
	if err != nil {
		return audit.Entry{}, err
	}
	return entry, nil
}

func (s *Store) ListAudit(ctx context.Context, event string, limit int) ([]audit.Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event, payload, created_at
		FROM audit_log
		WHERE ($1 = '' OR event = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`, event, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		var entry audit.Entry
		if err := rows.Scan(&entry.ID, &entry.Event, &entry.Payload, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// --- helpers ----------------------------------------------------------------

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRound(row rowScanner) (auction.Round, error) {
	var (
		round auction.Round

		partID       sql.NullString
		partName     sql.NullString
		sectionName  sql.NullString
		rarityTier   sql.NullInt64
		partValue    sql.NullFloat64
		totalPower   sql.NullInt64
		serialNumber sql.NullInt64
		shiny        sql.NullBool
		locked       sql.NullBool
		ownerWallet  sql.NullString
	)

	err := row.Scan(
		&round.ID, &round.Status, &round.SubmissionEndsAt, &round.EndsAt,
		&round.CurrentHighestBid, &round.BidCount, &round.CreatedAt, &round.UpdatedAt,
		&partID, &partName, &sectionName, &rarityTier, &partValue,
		&totalPower, &serialNumber, &shiny, &locked, &ownerWallet,
	)
	if err != nil {
		return auction.Round{}, err
	}

	if partID.Valid {
		round.Part = &auction.Part{
			ID:           partID.String,
			Name:         partName.String,
			SectionName:  sectionName.String,
			RarityTier:   int(rarityTier.Int64),
			PartValue:    partValue.Float64,
			TotalPower:   int(totalPower.Int64),
			SerialNumber: int(serialNumber.Int64),
			Shiny:        shiny.Bool,
			Locked:       locked.Bool,
			OwnerWallet:  ownerWallet.String,
		}
	}
	return round, nil
}

func scanHistoryEntry(row rowScanner) (auction.HistoryEntry, error) {
	var entry auction.HistoryEntry
	err := row.Scan(
		&entry.ID, &entry.RoundID, &entry.Status, &entry.FinalPrice,
		&entry.WinnerWallet, &entry.SellerWallet, &entry.PartName, &entry.SectionName,
		&entry.TotalPower, &entry.SerialNumber, &entry.Shiny, &entry.CreatedAt,
	)
	if err != nil {
		return auction.HistoryEntry{}, err
	}
	return entry, nil
}

func scanLockSubmission(row rowScanner) (ethlock.Submission, error) {
	var (
		sub         ethlock.Submission
		amountWei   sql.NullString
		blockNumber int64
		confirmedAt sql.NullTime
	)

	err := row.Scan(
		&sub.ID, &sub.WalletAddress, &sub.AuthUserID, &sub.TxHash, &sub.ChainID,
		&sub.FromAddress, &sub.ToAddress, &amountWei, &sub.Status, &sub.VerificationAttempts,
		&blockNumber, &sub.Receipt, &sub.LastError, &confirmedAt, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return ethlock.Submission{}, err
	}

	if amountWei.Valid && amountWei.String != "" {
		wei, ok := new(big.Int).SetString(amountWei.String, 10)
		if !ok {
			return ethlock.Submission{}, fmt.Errorf("malformed amount_wei %q for submission %s", amountWei.String, sub.ID)
		}
		sub.AmountWei = wei
	}
	sub.BlockNumber = uint64(blockNumber)
	if confirmedAt.Valid {
		sub.ConfirmedAt = confirmedAt.Time
	}
	return sub, nil
}

func roundPartID(round auction.Round) sql.NullString {
	if round.Part == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: round.Part.ID, Valid: true}
}

func weiString(wei *big.Int) sql.NullString {
	if wei == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: wei.String(), Valid: true}
}

func toNullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
