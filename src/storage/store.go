package storage

import (
	"github.com/fahertym/InterCooperative-Network/src/ledger"
)

// Store is the persistence collaborator consumed by the node: it loads chain
// and peer state at startup and saves them after mutations. Load methods
// return (nil, nil) when nothing has been persisted yet.
type Store interface {
	LoadChain() ([]*ledger.Block, error)
	SaveChain(blocks []*ledger.Block) error
	LoadPeers() ([]string, error)
	SavePeers(peers []string) error
	Close() error
}
