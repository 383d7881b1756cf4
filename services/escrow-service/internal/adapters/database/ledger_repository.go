package database

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/floroz/poetchain/services/escrow-service/internal/domain/escrow"
)

// PostgresLedgerRepository implements escrow.LedgerRepository using pgx
type PostgresLedgerRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresLedgerRepository creates a new PostgreSQL ledger repository
func NewPostgresLedgerRepository(pool *pgxpool.Pool) *PostgresLedgerRepository {
	return &PostgresLedgerRepository{pool: pool}
}

// Credit adds amount to an account, creating it on first use
func (r *PostgresLedgerRepository) Credit(ctx context.Context, tx pgx.Tx, account common.Address, amount *big.Int) (*big.Int, error) {
	query := `
		INSERT INTO accounts (address, balance)
		VALUES ($1, $2::numeric)
		ON CONFLICT (address)
		DO UPDATE SET balance = accounts.balance + EXCLUDED.balance, updated_at = NOW()
		RETURNING balance::text
	`
	var balance string
	if err := tx.QueryRow(ctx, query, account.Hex(), amount.String()).Scan(&balance); err != nil {
		return nil, fmt.Errorf("failed to credit account: %w", err)
	}
	return parseAmount(balance)
}

// Debit removes amount from an account; the guard in the WHERE clause keeps balances non-negative
func (r *PostgresLedgerRepository) Debit(ctx context.Context, tx pgx.Tx, account common.Address, amount *big.Int) (*big.Int, error) {
	query := `
		UPDATE accounts
		SET balance = balance - $2::numeric, updated_at = NOW()
		WHERE address = $1 AND balance >= $2::numeric
		RETURNING balance::text
	`
	var balance string
	err := tx.QueryRow(ctx, query, account.Hex(), amount.String()).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, escrow.ErrInsufficientFunds
		}
		return nil, fmt.Errorf("failed to debit account: %w", err)
	}
	return parseAmount(balance)
}

// Balance returns the balance of an account; unknown accounts hold zero
func (r *PostgresLedgerRepository) Balance(ctx context.Context, account common.Address) (*big.Int, error) {
	query := `
		SELECT COALESCE((SELECT balance FROM accounts WHERE address = $1), 0)::text
	`
	var balance string
	if err := r.pool.QueryRow(ctx, query, account.Hex()).Scan(&balance); err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	return parseAmount(balance)
}

// AddCustody moves amount into the custody of a listing
func (r *PostgresLedgerRepository) AddCustody(ctx context.Context, tx pgx.Tx, auctionID uuid.UUID, amount *big.Int) error {
	query := `
		UPDATE auctions
		SET custody = custody + $2::numeric, updated_at = NOW()
		WHERE id = $1
	`
	result, err := tx.Exec(ctx, query, auctionID, amount.String())
	if err != nil {
		return fmt.Errorf("failed to add custody: %w", err)
	}
	if result.RowsAffected() == 0 {
		return escrow.ErrAuctionNotFound
	}
	return nil
}

// ReleaseCustody takes amount out of the custody of a listing
func (r *PostgresLedgerRepository) ReleaseCustody(ctx context.Context, tx pgx.Tx, auctionID uuid.UUID, amount *big.Int) error {
	query := `
		UPDATE auctions
		SET custody = custody - $2::numeric, updated_at = NOW()
		WHERE id = $1 AND custody >= $2::numeric
	`
	result, err := tx.Exec(ctx, query, auctionID, amount.String())
	if err != nil {
		return fmt.Errorf("failed to release custody: %w", err)
	}
	if result.RowsAffected() == 0 {
		return escrow.ErrInsufficientCustody
	}
	return nil
}

// Custody returns what is currently held for a listing
func (r *PostgresLedgerRepository) Custody(ctx context.Context, auctionID uuid.UUID) (*big.Int, error) {
	var custody string
	err := r.pool.QueryRow(ctx, `SELECT custody::text FROM auctions WHERE id = $1`, auctionID).Scan(&custody)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, escrow.ErrAuctionNotFound
		}
		return nil, fmt.Errorf("failed to get custody: %w", err)
	}
	return parseAmount(custody)
}

// RecordEntry appends to the ledger journal
func (r *PostgresLedgerRepository) RecordEntry(ctx context.Context, tx pgx.Tx, entry *escrow.LedgerEntry) error {
	query := `
		INSERT INTO ledger_entries (id, auction_id, kind, account, amount, created_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6)
	`
	_, err := tx.Exec(ctx, query,
		entry.ID,
		entry.AuctionID,
		string(entry.Kind),
		entry.Account.Hex(),
		entry.Amount.String(),
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert ledger entry: %w", err)
	}
	return nil
}

// EntriesByAuction returns the journal of a listing in write order
func (r *PostgresLedgerRepository) EntriesByAuction(ctx context.Context, auctionID uuid.UUID) ([]*escrow.LedgerEntry, error) {
	query := `
		SELECT id, auction_id, kind, account, amount::text, created_at
		FROM ledger_entries
		WHERE auction_id = $1
		ORDER BY seq ASC
	`
	rows, err := r.pool.Query(ctx, query, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger entries: %w", err)
	}
	defer rows.Close()

	var result []*escrow.LedgerEntry
	for rows.Next() {
		var (
			entry   escrow.LedgerEntry
			kind    string
			account string
			amount  string
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.AuctionID,
			&kind,
			&account,
			&amount,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entry.Kind = escrow.EntryKind(kind)
		entry.Account = common.HexToAddress(account)
		if entry.Amount, err = parseAmount(amount); err != nil {
			return nil, err
		}
		result = append(result, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger entries: %w", err)
	}

	return result, nil
}
