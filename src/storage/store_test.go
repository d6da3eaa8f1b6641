package storage

import (
	"io/ioutil"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/fahertym/InterCooperative-Network/src/ledger"
)

func testBlocks(t *testing.T) []*ledger.Block {
	genesis, err := ledger.NewGenesisBlock(time.Now().Unix())
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	next, err := ledger.NewBlock(1,
		[]*ledger.Transaction{ledger.NewRewardTransaction("did:icn:miner", 10)},
		time.Now().Unix(),
		genesis.Hash)
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	return []*ledger.Block{genesis, next}
}

func checkStore(t *testing.T, store Store) {
	// empty store loads nothing
	blocks, err := store.LoadChain()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if blocks != nil {
		t.Fatalf("fresh store should hold no chain")
	}

	peers, err := store.LoadPeers()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if peers != nil {
		t.Fatalf("fresh store should hold no peers")
	}

	// round trip
	saved := testBlocks(t)
	if err := store.SaveChain(saved); err != nil {
		t.Fatalf("err: %v", err)
	}

	loaded, err := store.LoadChain()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("loaded %d blocks, want 2", len(loaded))
	}
	if loaded[1].Hash != saved[1].Hash {
		t.Fatalf("loaded chain does not match saved chain")
	}
	if !ledger.IsChainValid(loaded) {
		t.Fatalf("loaded chain should still validate")
	}

	savedPeers := []string{"http://127.0.0.1:8001", "http://127.0.0.1:8002"}
	if err := store.SavePeers(savedPeers); err != nil {
		t.Fatalf("err: %v", err)
	}

	loadedPeers, err := store.LoadPeers()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if !reflect.DeepEqual(loadedPeers, savedPeers) {
		t.Fatalf("loaded peers %v, want %v", loadedPeers, savedPeers)
	}
}

func TestFileStore(t *testing.T) {
	dir, err := ioutil.TempDir("", "icn")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	defer os.RemoveAll(dir)

	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	defer store.Close()

	checkStore(t, store)
}

func TestBadgerStore(t *testing.T) {
	dir, err := ioutil.TempDir("", "icn")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	defer os.RemoveAll(dir)

	store, err := NewBadgerStore(dir)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	defer store.Close()

	checkStore(t, store)
}

func TestInmemStore(t *testing.T) {
	checkStore(t, NewInmemStore())
}
