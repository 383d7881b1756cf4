package escrow

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/floroz/poetchain/pkg/events"
	"github.com/floroz/poetchain/services/escrow-service/internal/domain/auction"
)

// memStore is an in-memory database whose transactions snapshot and restore the whole store
type memStore struct {
	listings map[uuid.UUID]*storedListing
	balances map[common.Address]*big.Int
	entries  []*LedgerEntry
	outbox   []*events.OutboxEvent
	commits  int
}

type storedListing struct {
	id      uuid.UUID
	state   auction.State
	custody *big.Int
}

func newMemStore() *memStore {
	return &memStore{
		listings: map[uuid.UUID]*storedListing{},
		balances: map[common.Address]*big.Int{},
	}
}

func (m *memStore) snapshot() *memStore {
	cp := newMemStore()
	for id, l := range m.listings {
		cp.listings[id] = &storedListing{id: l.id, state: copyState(l.state), custody: new(big.Int).Set(l.custody)}
	}
	for addr, b := range m.balances {
		cp.balances[addr] = new(big.Int).Set(b)
	}
	cp.entries = append(cp.entries, m.entries...)
	cp.outbox = append(cp.outbox, m.outbox...)
	cp.commits = m.commits
	return cp
}

func copyState(s auction.State) auction.State {
	if s.HighestBid != nil {
		s.HighestBid = new(big.Int).Set(s.HighestBid)
	}
	if s.HighestBidder != nil {
		b := *s.HighestBidder
		s.HighestBidder = &b
	}
	return s
}

func (m *memStore) restore(from *memStore) {
	m.listings = from.listings
	m.balances = from.balances
	m.entries = from.entries
	m.outbox = from.outbox
}

type memTx struct {
	pgx.Tx
	store  *memStore
	before *memStore
	done   bool
}

func (t *memTx) Commit(_ context.Context) error {
	t.done = true
	t.store.commits++
	return nil
}

func (t *memTx) Rollback(_ context.Context) error {
	if !t.done {
		t.store.restore(t.before)
		t.done = true
	}
	return nil
}

func (m *memStore) BeginTx(_ context.Context) (pgx.Tx, error) {
	return &memTx{store: m, before: m.snapshot()}, nil
}

// Auction repository

func (m *memStore) CreateAuction(_ context.Context, _ pgx.Tx, l *Listing) error {
	m.listings[l.ID] = &storedListing{id: l.ID, state: l.Auction.State(), custody: new(big.Int).Set(l.Custody)}
	return nil
}

func (m *memStore) load(id uuid.UUID) (*Listing, error) {
	stored, ok := m.listings[id]
	if !ok {
		return nil, ErrAuctionNotFound
	}
	a, err := auction.Restore(copyState(stored.state))
	if err != nil {
		return nil, err
	}
	return &Listing{ID: id, Auction: a, Custody: new(big.Int).Set(stored.custody)}, nil
}

func (m *memStore) GetAuctionByID(_ context.Context, id uuid.UUID) (*Listing, error) {
	return m.load(id)
}

func (m *memStore) GetAuctionByIDForUpdate(_ context.Context, _ pgx.Tx, id uuid.UUID) (*Listing, error) {
	return m.load(id)
}

func (m *memStore) UpdateAuctionState(_ context.Context, _ pgx.Tx, l *Listing) error {
	stored, ok := m.listings[l.ID]
	if !ok {
		return ErrAuctionNotFound
	}
	stored.state = l.Auction.State()
	return nil
}

// Ledger repository

func (m *memStore) balance(addr common.Address) *big.Int {
	if b, ok := m.balances[addr]; ok {
		return b
	}
	b := new(big.Int)
	m.balances[addr] = b
	return b
}

func (m *memStore) Credit(_ context.Context, _ pgx.Tx, addr common.Address, amount *big.Int) (*big.Int, error) {
	b := m.balance(addr)
	b.Add(b, amount)
	return new(big.Int).Set(b), nil
}

func (m *memStore) Debit(_ context.Context, _ pgx.Tx, addr common.Address, amount *big.Int) (*big.Int, error) {
	b := m.balance(addr)
	if b.Cmp(amount) < 0 {
		return nil, ErrInsufficientFunds
	}
	b.Sub(b, amount)
	return new(big.Int).Set(b), nil
}

func (m *memStore) Balance(_ context.Context, addr common.Address) (*big.Int, error) {
	return new(big.Int).Set(m.balance(addr)), nil
}

func (m *memStore) AddCustody(_ context.Context, _ pgx.Tx, id uuid.UUID, amount *big.Int) error {
	stored, ok := m.listings[id]
	if !ok {
		return ErrAuctionNotFound
	}
	stored.custody.Add(stored.custody, amount)
	return nil
}

func (m *memStore) ReleaseCustody(_ context.Context, _ pgx.Tx, id uuid.UUID, amount *big.Int) error {
	stored, ok := m.listings[id]
	if !ok {
		return ErrAuctionNotFound
	}
	if stored.custody.Cmp(amount) < 0 {
		return ErrInsufficientCustody
	}
	stored.custody.Sub(stored.custody, amount)
	return nil
}

func (m *memStore) Custody(_ context.Context, id uuid.UUID) (*big.Int, error) {
	stored, ok := m.listings[id]
	if !ok {
		return nil, ErrAuctionNotFound
	}
	return new(big.Int).Set(stored.custody), nil
}

func (m *memStore) RecordEntry(_ context.Context, _ pgx.Tx, e *LedgerEntry) error {
	m.entries = append(m.entries, e)
	return nil
}

func (m *memStore) EntriesByAuction(_ context.Context, id uuid.UUID) ([]*LedgerEntry, error) {
	var out []*LedgerEntry
	for _, e := range m.entries {
		if e.AuctionID == id {
			out = append(out, e)
		}
	}
	return out, nil
}

// Outbox repository

func (m *memStore) SaveEvent(_ context.Context, _ pgx.Tx, e *events.OutboxEvent) error {
	m.outbox = append(m.outbox, e)
	return nil
}

func (m *memStore) eventTypes(id uuid.UUID) []string {
	var out []string
	for _, e := range m.outbox {
		if e.AggregateID == id {
			out = append(out, e.EventType)
		}
	}
	return out
}

type fakeClock struct {
	now auction.BlockNumber
}

func (c *fakeClock) Now() auction.BlockNumber {
	return c.now
}
