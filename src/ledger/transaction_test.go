package ledger

import (
	"testing"

	"github.com/fahertym/InterCooperative-Network/src/common"
	"github.com/fahertym/InterCooperative-Network/src/identity"
)

func TestTransactionHashIdempotent(t *testing.T) {
	tx := NewTransaction("did:icn:alice", "did:icn:bob", 25, "veggie share")

	h1, err := tx.Hash()
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	h2, err := tx.Hash()
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	if h1 != h2 {
		t.Fatalf("hash is not stable: %s != %s", h1, h2)
	}
}

func TestTransactionHashExcludesSignature(t *testing.T) {
	manager := identity.NewManager(common.NewTestEntry(t))
	alice, _ := manager.CreateDID()

	tx := NewTransaction(alice, "did:icn:bob", 25, "")

	before, _ := tx.Hash()

	if err := tx.Sign(manager); err != nil {
		t.Fatalf("err: %v", err)
	}

	after, _ := tx.Hash()

	if before != after {
		t.Fatalf("signing changed the transaction hash")
	}
}

func TestSignedTransactionValid(t *testing.T) {
	manager := identity.NewManager(common.NewTestEntry(t))
	alice, _ := manager.CreateDID()

	tx := NewTransaction(alice, "did:icn:bob", 25, "")

	if tx.Valid(manager) {
		t.Fatalf("unsigned transaction should not be valid")
	}

	if err := tx.Sign(manager); err != nil {
		t.Fatalf("err: %v", err)
	}

	if !tx.Valid(manager) {
		t.Fatalf("signed transaction should be valid")
	}

	// tampering invalidates the signature
	tx.Amount = 2500
	if tx.Valid(manager) {
		t.Fatalf("tampered transaction should not be valid")
	}
}

func TestRewardTransactionValid(t *testing.T) {
	manager := identity.NewManager(common.NewTestEntry(t))

	reward := NewRewardTransaction("did:icn:miner", 10)

	if !reward.Valid(manager) {
		t.Fatalf("reward transaction should be valid without a signature")
	}

	if reward.Message != RewardMessage {
		t.Fatalf("reward message is %q", reward.Message)
	}

	// a reward not sent by NETWORK is invalid
	reward.SenderDID = "did:icn:mallory"
	if reward.Valid(manager) {
		t.Fatalf("reward from a non-NETWORK sender should not be valid")
	}

	// a signed reward is invalid
	fake := NewRewardTransaction("did:icn:miner", 10)
	fake.Signature = "sig"
	if fake.Valid(manager) {
		t.Fatalf("signed reward transaction should not be valid")
	}
}

func TestNegativeAmountInvalid(t *testing.T) {
	manager := identity.NewManager(common.NewTestEntry(t))
	alice, _ := manager.CreateDID()

	tx := NewTransaction(alice, "did:icn:bob", -5, "")
	tx.Sign(manager)

	if tx.Valid(manager) {
		t.Fatalf("negative amount should not be valid")
	}
}
