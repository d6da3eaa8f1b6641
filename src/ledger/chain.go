package ledger

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Chain owns the ordered block sequence and the pending-transaction pool of
// one node. It is mutated only by AddBlock (append) and Replace (fork-choice
// adoption).
type Chain struct {
	sync.RWMutex

	blocks     []*Block
	pending    []*Transaction
	difficulty int
	verifier   Verifier
	logger     *logrus.Entry
}

// NewChain returns an empty chain store. Initialize or Bootstrap must be
// called before use.
func NewChain(difficulty int, verifier Verifier, logger *logrus.Entry) *Chain {
	return &Chain{
		blocks:     []*Block{},
		pending:    []*Transaction{},
		difficulty: difficulty,
		verifier:   verifier,
		logger:     logger,
	}
}

// Initialize appends the genesis block if the chain is empty. Calling it on a
// non-empty chain is a no-op.
func (c *Chain) Initialize() error {
	c.Lock()
	defer c.Unlock()

	if len(c.blocks) > 0 {
		return nil
	}

	genesis, err := NewGenesisBlock(time.Now().Unix())
	if err != nil {
		return err
	}

	c.blocks = append(c.blocks, genesis)

	c.logger.WithField("hash", genesis.Hash).Debug("Created genesis block")

	return nil
}

// Bootstrap installs a previously persisted chain. It refuses invalid chains
// and chains loaded over existing blocks.
func (c *Chain) Bootstrap(blocks []*Block) error {
	c.Lock()
	defer c.Unlock()

	if len(c.blocks) > 0 {
		return fmt.Errorf("chain already initialized with %d blocks", len(c.blocks))
	}

	if !IsChainValid(blocks) {
		return fmt.Errorf("persisted chain failed validation")
	}

	c.blocks = blocks

	return nil
}

// AddTransaction accepts a transaction into the pending pool iff it is valid.
// Malformed input reports false, never an error.
func (c *Chain) AddTransaction(tx *Transaction) bool {
	if tx == nil || !tx.Valid(c.verifier) {
		return false
	}

	c.Lock()
	defer c.Unlock()

	c.pending = append(c.pending, tx)

	return true
}

// PendingTransactions returns a snapshot of the pending pool.
func (c *Chain) PendingTransactions() []*Transaction {
	c.RLock()
	defer c.RUnlock()

	res := make([]*Transaction, len(c.pending))
	copy(res, c.pending)

	return res
}

// PendingCount returns the size of the pending pool.
func (c *Chain) PendingCount() int {
	c.RLock()
	defer c.RUnlock()

	return len(c.pending)
}

// CreateBlock assembles a candidate block from the current pending pool and
// seals it. The pool is not mutated; the caller commits the block with
// AddBlock. Sealing runs outside the chain lock since the nonce search can
// take a while at higher difficulties.
func (c *Chain) CreateBlock() (*Block, error) {
	c.RLock()

	transactions := make([]*Transaction, len(c.pending))
	copy(transactions, c.pending)

	index := len(c.blocks)
	previousHash := GenesisPreviousHash
	if index > 0 {
		previousHash = c.blocks[index-1].Hash
	}

	c.RUnlock()

	block, err := NewBlock(index, transactions, time.Now().Unix(), previousHash)
	if err != nil {
		return nil, err
	}

	if err := block.Seal(c.difficulty); err != nil {
		return nil, err
	}

	return block, nil
}

// AddBlock appends a block iff it extends the current tip: previous_hash must
// equal the tip's hash, index must be tip index + 1, and recomputing the hash
// from the block's fields must reproduce the stored hash. On success the
// pending pool is cleared. Rejection leaves the chain untouched and reports
// false.
func (c *Chain) AddBlock(block *Block) bool {
	if block == nil {
		return false
	}

	c.Lock()
	defer c.Unlock()

	if !c.validateBlock(block) {
		c.logger.WithFields(logrus.Fields{
			"index": block.Index,
			"hash":  block.Hash,
		}).Debug("Rejected block")
		return false
	}

	c.blocks = append(c.blocks, block)
	c.pending = []*Transaction{}

	return true
}

// validateBlock checks a candidate against the current tip. Lock held by
// caller.
func (c *Chain) validateBlock(block *Block) bool {
	if len(c.blocks) == 0 {
		// only a genesis-shaped block can start a chain
		if block.Index != 0 || block.PreviousHash != GenesisPreviousHash {
			return false
		}
	} else {
		tip := c.blocks[len(c.blocks)-1]
		if block.PreviousHash != tip.Hash || block.Index != tip.Index+1 {
			return false
		}
	}

	computed, err := block.ComputeHash()
	if err != nil {
		return false
	}

	return computed == block.Hash
}

// Blocks returns a snapshot of the block sequence.
func (c *Chain) Blocks() []*Block {
	c.RLock()
	defer c.RUnlock()

	res := make([]*Block, len(c.blocks))
	copy(res, c.blocks)

	return res
}

// Length returns the number of blocks.
func (c *Chain) Length() int {
	c.RLock()
	defer c.RUnlock()

	return len(c.blocks)
}

// LatestBlock returns the tip, or nil on an empty chain.
func (c *Chain) LatestBlock() *Block {
	c.RLock()
	defer c.RUnlock()

	if len(c.blocks) == 0 {
		return nil
	}

	return c.blocks[len(c.blocks)-1]
}

// GetBalance replays every transaction in the chain: received minus sent.
// Blocks are small, so the full replay is acceptable here.
func (c *Chain) GetBalance(did string) float64 {
	c.RLock()
	defer c.RUnlock()

	balance := 0.0
	for _, block := range c.blocks {
		for _, tx := range block.Transactions {
			if tx.RecipientDID == did {
				balance += tx.Amount
			}
			if tx.SenderDID == did {
				balance -= tx.Amount
			}
		}
	}

	return balance
}

// Balances replays the whole chain into a balance per DID. NetworkDID shows
// up with a negative balance equal to the total rewards ever emitted.
func (c *Chain) Balances() map[string]float64 {
	c.RLock()
	defer c.RUnlock()

	balances := map[string]float64{}
	for _, block := range c.blocks {
		for _, tx := range block.Transactions {
			balances[tx.RecipientDID] += tx.Amount
			balances[tx.SenderDID] -= tx.Amount
		}
	}

	return balances
}

// Replace swaps in a new block sequence wholesale. It is the fork-choice
// commit: the candidate must be valid and strictly longer than the local
// chain. The pending pool is not merged from the discarded fork.
func (c *Chain) Replace(blocks []*Block) bool {
	if !IsChainValid(blocks) {
		return false
	}

	c.Lock()
	defer c.Unlock()

	if len(blocks) <= len(c.blocks) {
		return false
	}

	c.blocks = blocks

	return true
}

// IsChainValid checks a whole chain: the first block must be genesis-shaped,
// every subsequent index must increase by exactly 1, previous_hash must equal
// the prior block's hash, and every stored hash must match its recomputation.
// A chain failing any check is rejected wholesale.
func IsChainValid(blocks []*Block) bool {
	if len(blocks) == 0 {
		return false
	}

	for i, block := range blocks {
		if i == 0 {
			if block.Index != 0 || block.PreviousHash != GenesisPreviousHash {
				return false
			}
		} else {
			prev := blocks[i-1]
			if block.Index != prev.Index+1 || block.PreviousHash != prev.Hash {
				return false
			}
		}

		computed, err := block.ComputeHash()
		if err != nil || computed != block.Hash {
			return false
		}
	}

	return true
}
