package ledger

import (
	"strings"

	"github.com/fahertym/InterCooperative-Network/src/crypto"
)

// GenesisPreviousHash is the previous_hash of the block at index 0.
const GenesisPreviousHash = "0"

// Block is a sealed batch of transactions. After sealing, Hash is always the
// SHA256 of the canonical serialization of the remaining fields, and
// PreviousHash chains it to the block before it.
type Block struct {
	Index        int            `json:"index"`
	Transactions []*Transaction `json:"transactions"`
	Timestamp    int64          `json:"timestamp"`
	PreviousHash string         `json:"previous_hash"`
	Nonce        int            `json:"nonce"`
	Hash         string         `json:"hash"`
}

// NewBlock assembles a block and computes its initial hash with nonce 0. The
// caller seals it before submitting it to the chain.
func NewBlock(index int, transactions []*Transaction, timestamp int64, previousHash string) (*Block, error) {
	block := &Block{
		Index:        index,
		Transactions: transactions,
		Timestamp:    timestamp,
		PreviousHash: previousHash,
	}

	hash, err := block.ComputeHash()
	if err != nil {
		return nil, err
	}

	block.Hash = hash

	return block, nil
}

// NewGenesisBlock returns the block at index 0: empty transaction list,
// previous hash "0". The genesis block is not sealed.
func NewGenesisBlock(timestamp int64) (*Block, error) {
	return NewBlock(0, []*Transaction{}, timestamp, GenesisPreviousHash)
}

// hashFields returns the fields covered by the block hash, with transactions
// reduced to their own hash fields. The stored hash is excluded.
func (b *Block) hashFields() map[string]interface{} {
	txs := make([]map[string]interface{}, len(b.Transactions))
	for i, tx := range b.Transactions {
		txs[i] = tx.hashFields()
	}

	return map[string]interface{}{
		"index":         b.Index,
		"transactions":  txs,
		"timestamp":     b.Timestamp,
		"previous_hash": b.PreviousHash,
		"nonce":         b.Nonce,
	}
}

// ComputeHash returns the hex SHA256 of the block's canonical serialization.
func (b *Block) ComputeHash() (string, error) {
	enc, err := canonicalJSON(b.hashFields())
	if err != nil {
		return "", err
	}
	return crypto.SHA256Hex(enc), nil
}

// Seal performs the proof-of-work nonce search: the nonce is incremented until
// the hash has `difficulty` leading zero characters. Producer selection
// already decided who may seal; this only rate-limits how fast they can.
func (b *Block) Seal(difficulty int) error {
	target := strings.Repeat("0", difficulty)

	hash, err := b.ComputeHash()
	if err != nil {
		return err
	}
	b.Hash = hash

	for !strings.HasPrefix(b.Hash, target) {
		b.Nonce++

		hash, err = b.ComputeHash()
		if err != nil {
			return err
		}
		b.Hash = hash
	}

	return nil
}

// Sealed reports whether the block hash meets the difficulty target.
func (b *Block) Sealed(difficulty int) bool {
	return strings.HasPrefix(b.Hash, strings.Repeat("0", difficulty))
}
