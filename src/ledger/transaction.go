package ledger

import (
	"time"

	"github.com/fahertym/InterCooperative-Network/src/crypto"
)

// NetworkDID is the sender of block-reward transactions. It is not a real DID;
// no key material exists for it and reward transactions carry no signature.
const NetworkDID = "NETWORK"

// RewardMessage is attached to block-reward transactions.
const RewardMessage = "Mining Reward"

// Signer produces an opaque signature over a message on behalf of a DID. It is
// implemented by the identity collaborator.
type Signer interface {
	Sign(did string, message string) (string, error)
}

// Verifier checks an opaque signature over a message against a DID's key
// material. It is implemented by the identity collaborator.
type Verifier interface {
	Verify(did string, message string, signature string) bool
}

// Transaction is a single transfer between two DIDs. A transaction is
// immutable once signed; its identity is its content hash, which covers every
// field except the signature itself.
type Transaction struct {
	SenderDID    string  `json:"sender_did"`
	RecipientDID string  `json:"recipient_did"`
	Amount       float64 `json:"amount"`
	Timestamp    int64   `json:"timestamp"`
	Signature    string  `json:"signature,omitempty"`
	IsReward     bool    `json:"is_mining_reward"`
	Message      string  `json:"message,omitempty"`
}

// NewTransaction returns an unsigned transfer timestamped now.
func NewTransaction(sender, recipient string, amount float64, message string) *Transaction {
	return &Transaction{
		SenderDID:    sender,
		RecipientDID: recipient,
		Amount:       amount,
		Timestamp:    time.Now().Unix(),
		Message:      message,
	}
}

// NewRewardTransaction returns the block-reward transaction credited to a
// block producer. Reward transactions originate from NetworkDID and are never
// signed.
func NewRewardTransaction(recipient string, amount float64) *Transaction {
	return &Transaction{
		SenderDID:    NetworkDID,
		RecipientDID: recipient,
		Amount:       amount,
		Timestamp:    time.Now().Unix(),
		IsReward:     true,
		Message:      RewardMessage,
	}
}

// hashFields returns the fields covered by the content hash. The signature is
// excluded so that signing does not change the hash it signs.
func (t *Transaction) hashFields() map[string]interface{} {
	return map[string]interface{}{
		"sender_did":       t.SenderDID,
		"recipient_did":    t.RecipientDID,
		"amount":           t.Amount,
		"timestamp":        t.Timestamp,
		"is_mining_reward": t.IsReward,
		"message":          t.Message,
	}
}

// Hash returns the hex SHA256 of the transaction's canonical serialization.
func (t *Transaction) Hash() (string, error) {
	enc, err := canonicalJSON(t.hashFields())
	if err != nil {
		return "", err
	}
	return crypto.SHA256Hex(enc), nil
}

// Sign attaches the sender's signature over the transaction hash. Signing a
// reward transaction is a no-op.
func (t *Transaction) Sign(signer Signer) error {
	if t.IsReward {
		return nil
	}

	hash, err := t.Hash()
	if err != nil {
		return err
	}

	sig, err := signer.Sign(t.SenderDID, hash)
	if err != nil {
		return err
	}

	t.Signature = sig

	return nil
}

// Valid reports whether the transaction is structurally sound and, for
// non-reward transactions, carries a signature that verifies against the
// sender's key material. Malformed input reports false, never an error.
func (t *Transaction) Valid(verifier Verifier) bool {
	if t.Amount < 0 || t.RecipientDID == "" {
		return false
	}

	if t.IsReward {
		return t.SenderDID == NetworkDID && t.Signature == ""
	}

	if t.SenderDID == "" || t.Signature == "" {
		return false
	}

	hash, err := t.Hash()
	if err != nil {
		return false
	}

	return verifier.Verify(t.SenderDID, hash, t.Signature)
}
