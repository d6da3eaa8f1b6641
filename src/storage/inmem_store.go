package storage

import (
	"sync"

	"github.com/fahertym/InterCooperative-Network/src/ledger"
)

// InmemStore keeps chain and peer state in memory. Used in tests and for
// throwaway nodes.
type InmemStore struct {
	sync.Mutex

	blocks []*ledger.Block
	peers  []string
}

// NewInmemStore returns an empty in-memory store.
func NewInmemStore() *InmemStore {
	return &InmemStore{}
}

// LoadChain returns the saved block sequence, or (nil, nil) when nothing was
// saved.
func (s *InmemStore) LoadChain() ([]*ledger.Block, error) {
	s.Lock()
	defer s.Unlock()

	return s.blocks, nil
}

// SaveChain keeps a snapshot of the block sequence.
func (s *InmemStore) SaveChain(blocks []*ledger.Block) error {
	s.Lock()
	defer s.Unlock()

	s.blocks = make([]*ledger.Block, len(blocks))
	copy(s.blocks, blocks)

	return nil
}

// LoadPeers returns the saved peer addresses, or (nil, nil) when nothing was
// saved.
func (s *InmemStore) LoadPeers() ([]string, error) {
	s.Lock()
	defer s.Unlock()

	return s.peers, nil
}

// SavePeers keeps a snapshot of the peer addresses.
func (s *InmemStore) SavePeers(peers []string) error {
	s.Lock()
	defer s.Unlock()

	s.peers = make([]string, len(peers))
	copy(s.peers, peers)

	return nil
}

// Close is a no-op.
func (s *InmemStore) Close() error {
	return nil
}
