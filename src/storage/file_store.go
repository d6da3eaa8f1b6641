package storage

import (
	"bytes"
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"

	"github.com/fahertym/InterCooperative-Network/src/ledger"
)

const (
	chainFile = "blockchain.json"
	peersFile = "peers.json"
)

// FileStore persists chain and peer state as JSON files in a directory.
type FileStore struct {
	l   sync.Mutex
	dir string
}

// NewFileStore creates the directory if needed and returns a store over it.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	return &FileStore{dir: dir}, nil
}

// LoadChain parses the persisted block sequence. A missing file is not an
// error; it returns (nil, nil).
func (f *FileStore) LoadChain() ([]*ledger.Block, error) {
	f.l.Lock()
	defer f.l.Unlock()

	buf, err := ioutil.ReadFile(filepath.Join(f.dir, chainFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var blocks []*ledger.Block
	dec := json.NewDecoder(bytes.NewReader(buf))
	if err := dec.Decode(&blocks); err != nil {
		return nil, err
	}

	return blocks, nil
}

// SaveChain writes the block sequence out as JSON.
func (f *FileStore) SaveChain(blocks []*ledger.Block) error {
	f.l.Lock()
	defer f.l.Unlock()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if err := enc.Encode(blocks); err != nil {
		return err
	}

	return ioutil.WriteFile(filepath.Join(f.dir, chainFile), buf.Bytes(), 0600)
}

// LoadPeers parses the persisted peer addresses. A missing file is not an
// error; it returns (nil, nil).
func (f *FileStore) LoadPeers() ([]string, error) {
	f.l.Lock()
	defer f.l.Unlock()

	buf, err := ioutil.ReadFile(filepath.Join(f.dir, peersFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var peers []string
	dec := json.NewDecoder(bytes.NewReader(buf))
	if err := dec.Decode(&peers); err != nil {
		return nil, err
	}

	return peers, nil
}

// SavePeers writes the peer addresses out as JSON.
func (f *FileStore) SavePeers(peers []string) error {
	f.l.Lock()
	defer f.l.Unlock()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if err := enc.Encode(peers); err != nil {
		return err
	}

	return ioutil.WriteFile(filepath.Join(f.dir, peersFile), buf.Bytes(), 0600)
}

// Close is a no-op for file-backed storage.
func (f *FileStore) Close() error {
	return nil
}
