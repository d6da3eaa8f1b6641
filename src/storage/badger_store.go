package storage

import (
	"bytes"

	"github.com/dgraph-io/badger"
	"github.com/fahertym/InterCooperative-Network/src/ledger"
	"github.com/ugorji/go/codec"
)

var (
	chainKey = []byte("chain")
	peersKey = []byte("peers")
)

// BadgerStore persists chain and peer state in a Badger database. It is the
// store of choice for long-running nodes; FileStore remains available for
// small deployments and debugging.
type BadgerStore struct {
	db   *badger.DB
	path string
}

// NewBadgerStore opens or creates a database at path.
func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts.SyncWrites = false
	opts.Logger = nil

	handle, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &BadgerStore{
		db:   handle,
		path: path,
	}, nil
}

// LoadChain reads the persisted block sequence. An absent key is not an
// error; it returns (nil, nil).
func (b *BadgerStore) LoadChain() ([]*ledger.Block, error) {
	var blocks []*ledger.Block

	err := b.get(chainKey, &blocks)
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return blocks, nil
}

// SaveChain writes the block sequence.
func (b *BadgerStore) SaveChain(blocks []*ledger.Block) error {
	return b.set(chainKey, blocks)
}

// LoadPeers reads the persisted peer addresses. An absent key is not an
// error; it returns (nil, nil).
func (b *BadgerStore) LoadPeers() ([]string, error) {
	var peers []string

	err := b.get(peersKey, &peers)
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return peers, nil
}

// SavePeers writes the peer addresses.
func (b *BadgerStore) SavePeers(peers []string) error {
	return b.set(peersKey, peers)
}

// Close releases the database.
func (b *BadgerStore) Close() error {
	return b.db.Close()
}

func (b *BadgerStore) set(key []byte, v interface{}) error {
	jh := new(codec.JsonHandle)

	buf := bytes.NewBuffer([]byte{})
	enc := codec.NewEncoder(buf, jh)
	if err := enc.Encode(v); err != nil {
		return err
	}

	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, buf.Bytes())
	})
}

func (b *BadgerStore) get(key []byte, v interface{}) error {
	return b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			jh := new(codec.JsonHandle)
			dec := codec.NewDecoder(bytes.NewReader(val), jh)
			return dec.Decode(v)
		})
	})
}
