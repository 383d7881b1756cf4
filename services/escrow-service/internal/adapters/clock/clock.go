package clock

import (
	"sync"
	"time"

	"github.com/floroz/poetchain/services/escrow-service/internal/domain/auction"
)

// BlockClock derives block numbers from wall time: one block every blockTime since genesis.
// It never hands out a smaller number than it did before, even if the wall clock steps back.
type BlockClock struct {
	genesis   time.Time
	blockTime time.Duration
	now       func() time.Time

	mu   sync.Mutex
	last auction.BlockNumber
}

// NewBlockClock creates a clock; blockTime must be positive
func NewBlockClock(genesis time.Time, blockTime time.Duration) *BlockClock {
	return newBlockClock(genesis, blockTime, time.Now)
}

func newBlockClock(genesis time.Time, blockTime time.Duration, now func() time.Time) *BlockClock {
	if blockTime <= 0 {
		panic("block time must be positive")
	}
	return &BlockClock{
		genesis:   genesis,
		blockTime: blockTime,
		now:       now,
	}
}

// Now returns the current block number
func (c *BlockClock) Now() auction.BlockNumber {
	var block auction.BlockNumber
	if elapsed := c.now().Sub(c.genesis); elapsed > 0 {
		block = auction.BlockNumber(elapsed / c.blockTime)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if block < c.last {
		return c.last
	}
	c.last = block
	return block
}

// ManualClock is a clock that only moves when told to
type ManualClock struct {
	mu  sync.Mutex
	now auction.BlockNumber
}

func NewManualClock(start auction.BlockNumber) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() auction.BlockNumber {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by n blocks, saturating at the largest block number
func (c *ManualClock) Advance(n auction.BlockNumber) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n > auction.MaxBlockNumber-c.now {
		c.now = auction.MaxBlockNumber
		return
	}
	c.now += n
}

// Set moves the clock to block b; moving backwards is ignored
func (c *ManualClock) Set(b auction.BlockNumber) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b > c.now {
		c.now = b
	}
}
