package node

import (
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/fahertym/InterCooperative-Network/src/config"
	"github.com/fahertym/InterCooperative-Network/src/consensus"
	"github.com/fahertym/InterCooperative-Network/src/contracts"
	"github.com/fahertym/InterCooperative-Network/src/ledger"
	"github.com/fahertym/InterCooperative-Network/src/peers"
	"github.com/fahertym/InterCooperative-Network/src/storage"
	"github.com/sirupsen/logrus"
)

// ErrBlockRejected is returned by Mine when the sealed candidate failed chain
// validation and was not committed.
var ErrBlockRejected = errors.New("sealed block was rejected by the chain")

// RegisterRequest is the body of POST /nodes/register.
type RegisterRequest struct {
	Nodes []string `json:"nodes"`
}

// BroadcastResult is the per-peer outcome of a best-effort fan-out. Failures
// are recorded, not retried.
type BroadcastResult struct {
	Peer string
	Err  error
}

// Status is the response of GET /status.
type Status struct {
	NodeAddress         string   `json:"node_address"`
	Peers               []string `json:"peers"`
	BlockchainLength    int      `json:"blockchain_length"`
	PendingTransactions int      `json:"pending_transactions"`
	Validators          int      `json:"validators"`
	LastPeerDiscovery   int64    `json:"last_peer_discovery"`
	LastBlockchainSync  int64    `json:"last_blockchain_sync"`
	LastPeerCleanup     int64    `json:"last_peer_cleanup"`
}

// Node wraps a chain store and a consensus engine behind the HTTP surface. It
// runs peer discovery, periodic resynchronization, broadcast, and fork-choice
// against remote peers.
type Node struct {
	state

	conf   *config.Config
	logger *logrus.Entry

	address string

	chain     *ledger.Chain
	consensus *consensus.PoCoS
	peers     *peers.PeerSet
	store     storage.Store
	signer    ledger.Signer
	contracts contracts.Proxy

	client *http.Client

	shutdownCh   chan struct{}
	controlTimer *ControlTimer

	timestamps struct {
		sync.Mutex
		lastDiscovery time.Time
		lastSync      time.Time
		lastCleanup   time.Time
	}

	start time.Time
}

// NewNode is a factory method that returns a Node instance
func NewNode(
	conf *config.Config,
	chain *ledger.Chain,
	cons *consensus.PoCoS,
	peerSet *peers.PeerSet,
	store storage.Store,
	signer ledger.Signer,
	contractsProxy contracts.Proxy,
) *Node {
	return &Node{
		conf:         conf,
		logger:       conf.Logger().WithField("this_node", conf.AdvertiseAddr()),
		address:      conf.AdvertiseAddr(),
		chain:        chain,
		consensus:    cons,
		peers:        peerSet,
		store:        store,
		signer:       signer,
		contracts:    contractsProxy,
		client:       &http.Client{Timeout: conf.PeerTimeout},
		shutdownCh:   make(chan struct{}),
		controlTimer: NewFixedControlTimer(),
		start:        time.Now(),
	}
}

// Init restores persisted state and guarantees a genesis block. A persisted
// chain takes precedence over a fresh genesis; a fresh genesis is persisted
// right away.
func (n *Node) Init() error {
	blocks, err := n.store.LoadChain()
	if err != nil {
		return err
	}

	if len(blocks) > 0 {
		if err := n.chain.Bootstrap(blocks); err != nil {
			return err
		}
		n.logger.WithField("length", len(blocks)).Debug("Restored chain from store")
	} else {
		if err := n.chain.Initialize(); err != nil {
			return err
		}
		if err := n.saveChain(); err != nil {
			return err
		}
	}

	persisted, err := n.store.LoadPeers()
	if err != nil {
		return err
	}
	n.peers.Merge(persisted)

	n.setState(Running)

	return nil
}

// Addr returns the address this node advertises to peers.
func (n *Node) Addr() string {
	return n.address
}

// RunAsync calls Run in a goroutine.
func (n *Node) RunAsync() {
	n.goFunc(n.Run)
}

// Run executes the maintenance loop: an immediate discovery+sync pass, then
// discovery, sync, and liveness cleanup on every heartbeat until Shutdown.
func (n *Node) Run() {
	go n.controlTimer.Run(n.conf.Heartbeat)

	n.DiscoverPeers()
	n.SyncChain()

	for {
		select {
		case <-n.controlTimer.tickCh:
			n.DiscoverPeers()
			n.SyncChain()
			n.maybeCleanupPeers()
			// the timer may already be gone when a shutdown landed
			// during the pass above
			select {
			case n.controlTimer.resetCh <- n.conf.Heartbeat:
			case <-n.shutdownCh:
				return
			}
		case <-n.shutdownCh:
			return
		}
	}
}

// Shutdown halts the periodic loop. The HTTP listener is torn down by the
// service after this returns; an in-flight peer call is not aborted early.
func (n *Node) Shutdown() {
	if n.getState() == Shutdown {
		return
	}

	n.logger.Debug("Shutdown")

	n.setState(Shutdown)
	close(n.shutdownCh)
	n.controlTimer.Shutdown()
	n.waitRoutines()
}

/*******************************************************************************
Peer discovery, fork-choice, and liveness
*******************************************************************************/

// DiscoverPeers merges the union of known peers and bootstrap addresses, pulls
// each one's peer list, and registers this node with it. Unreachable peers are
// evicted immediately; failures are isolated per peer and never abort the
// pass.
func (n *Node) DiscoverPeers() {
	n.stampDiscovery()

	candidates := n.peers.ToSlice()
	for _, addr := range n.conf.BootstrapPeers {
		if addr != n.address && !n.peers.Contains(addr) {
			candidates = append(candidates, addr)
		}
	}

	for _, peer := range candidates {
		var remote []string
		if err := n.getJSON(peer+"/nodes/peers", &remote); err != nil {
			n.logger.WithField("peer", peer).WithError(err).Warning("Error discovering peers")
			if n.peers.Remove(peer) {
				n.logger.WithField("peer", peer).Warning("Removed unresponsive peer")
			}
			continue
		}

		if n.peers.Merge(remote) {
			n.logger.WithField("peers", remote).Debug("Discovered new peers")
		}

		if err := n.registerWith(peer); err != nil {
			n.logger.WithField("peer", peer).WithError(err).Warning("Failed to register with peer")
		}
	}

	n.savePeers()
}

// registerWith submits this node's address to a peer's register endpoint.
func (n *Node) registerWith(peer string) error {
	return n.postJSON(peer+"/nodes/register", RegisterRequest{Nodes: []string{n.address}}, nil)
}

// RegisterPeers adds the submitted addresses (excluding self) to the peer set
// and returns the updated set.
func (n *Node) RegisterPeers(addrs []string) []string {
	if n.peers.Merge(addrs) {
		n.savePeers()
	}
	return n.peers.ToSlice()
}

// SyncChain runs fork-choice against all known peers and reports whether the
// local chain was replaced.
func (n *Node) SyncChain() bool {
	n.stampSync()

	replaced := n.ResolveConflicts()
	if replaced {
		n.logger.Info("Chain was replaced with a longer one from the network")
	} else {
		n.logger.Debug("Chain is up to date")
	}

	return replaced
}

// ResolveConflicts is the longest-valid-chain rule: it fetches every peer's
// chain, keeps the longest candidate that is strictly longer than the local
// chain and fully valid, and adopts it wholesale. Invalid chains are discarded
// as candidates no matter their length.
func (n *Node) ResolveConflicts() bool {
	maxLength := n.chain.Length()

	var candidate []*ledger.Block

	for _, peer := range n.peers.ToSlice() {
		var blocks []*ledger.Block
		if err := n.getJSON(peer+"/blocks", &blocks); err != nil {
			n.logger.WithField("peer", peer).WithError(err).Warning("Failed to fetch chain from peer")
			continue
		}

		if len(blocks) > maxLength && ledger.IsChainValid(blocks) {
			maxLength = len(blocks)
			candidate = blocks
		}
	}

	if candidate == nil {
		return false
	}

	if !n.chain.Replace(candidate) {
		return false
	}

	if err := n.saveChain(); err != nil {
		n.logger.WithError(err).Error("Failed to persist adopted chain")
	}

	return true
}

// maybeCleanupPeers runs the liveness pass when the cleanup interval has
// elapsed. It runs less often than discovery.
func (n *Node) maybeCleanupPeers() {
	n.timestamps.Lock()
	last := n.timestamps.lastCleanup
	n.timestamps.Unlock()

	if time.Since(last) < n.conf.CleanupInterval {
		return
	}

	n.CleanupPeers()
}

// CleanupPeers probes each peer's status endpoint and evicts peers that fail
// to respond.
func (n *Node) CleanupPeers() {
	n.stampCleanup()

	for _, peer := range n.peers.ToSlice() {
		if err := n.getJSON(peer+"/status", nil); err != nil {
			n.peers.Remove(peer)
			n.logger.WithField("peer", peer).Info("Removed inactive peer")
		}
	}

	n.savePeers()
}

/*******************************************************************************
Transactions, blocks, and mining
*******************************************************************************/

// SubmitTransaction validates a transaction into the pending pool. A
// transaction arriving unsigned is signed with the local identity of its
// sender, then broadcast; an already-signed transaction (a peer broadcast) is
// accepted without re-broadcasting, which keeps the fan-out from echoing
// forever. Malformed input reports false, never an error.
func (n *Node) SubmitTransaction(tx *ledger.Transaction) bool {
	if tx == nil {
		return false
	}

	locallySigned := false
	if !tx.IsReward && tx.Signature == "" {
		if err := tx.Sign(n.signer); err != nil {
			n.logger.WithError(err).Warning("Cannot sign transaction")
			return false
		}
		locallySigned = true
	}

	if !n.chain.AddTransaction(tx) {
		return false
	}

	if locallySigned {
		n.BroadcastTransaction(tx)
	}

	return true
}

// ReceiveBlock commits a block broadcast by a peer. Acceptance persists the
// chain; rejection reports false with no mutation.
func (n *Node) ReceiveBlock(block *ledger.Block) bool {
	if !n.chain.AddBlock(block) {
		return false
	}

	n.logger.WithField("index", block.Index).Info("Received and added new block")

	if err := n.saveChain(); err != nil {
		n.logger.WithError(err).Error("Failed to persist chain")
	}

	return true
}

// Mine attempts block production for a producer DID. The consensus engine
// gates eligibility first; the sealed candidate must then commit against the
// tip. On success the producer's metrics are updated, the block reward enters
// the pending pool, and the block is broadcast.
func (n *Node) Mine(producerDID string) (*ledger.Block, error) {
	if !n.consensus.IsValidator(producerDID) {
		return nil, consensus.ErrNotValidator
	}

	block, err := n.chain.CreateBlock()
	if err != nil {
		return nil, err
	}

	if !n.chain.AddBlock(block) {
		return nil, ErrBlockRejected
	}

	n.consensus.UpdateValidatorMetrics(producerDID)

	reward := ledger.NewRewardTransaction(producerDID, n.conf.MiningReward)
	if !n.chain.AddTransaction(reward) {
		n.logger.Warning("Reward transaction was rejected")
	}

	if err := n.saveChain(); err != nil {
		n.logger.WithError(err).Error("Failed to persist chain")
	}

	n.logger.WithFields(logrus.Fields{
		"index":    block.Index,
		"hash":     block.Hash,
		"producer": producerDID,
	}).Info("Mined new block")

	n.BroadcastBlock(block)

	return block, nil
}

// BroadcastTransaction fans a transaction out to every known peer. Best
// effort: each failure is logged in the per-peer outcome, not retried.
func (n *Node) BroadcastTransaction(tx *ledger.Transaction) []BroadcastResult {
	return n.broadcast("/transactions/new", tx)
}

// BroadcastBlock fans a sealed block out to every known peer.
func (n *Node) BroadcastBlock(block *ledger.Block) []BroadcastResult {
	return n.broadcast("/blocks/new", block)
}

func (n *Node) broadcast(path string, body interface{}) []BroadcastResult {
	results := []BroadcastResult{}

	for _, peer := range n.peers.ToSlice() {
		err := n.postJSON(peer+path, body, nil)
		if err != nil {
			n.logger.WithField("peer", peer).WithError(err).Warning("Broadcast failed")
		}
		results = append(results, BroadcastResult{Peer: peer, Err: err})
	}

	return results
}

/*******************************************************************************
Accessors
*******************************************************************************/

// Chain returns the underlying chain store.
func (n *Node) Chain() *ledger.Chain {
	return n.chain
}

// Consensus returns the underlying PoCoS engine.
func (n *Node) Consensus() *consensus.PoCoS {
	return n.consensus
}

// Contracts returns the contract collaborator.
func (n *Node) Contracts() contracts.Proxy {
	return n.contracts
}

// Peers returns a snapshot of the known peer addresses.
func (n *Node) Peers() []string {
	return n.peers.ToSlice()
}

// GetStatus returns the node, chain, and peer metrics served on /status.
func (n *Node) GetStatus() Status {
	n.timestamps.Lock()
	lastDiscovery := n.timestamps.lastDiscovery
	lastSync := n.timestamps.lastSync
	lastCleanup := n.timestamps.lastCleanup
	n.timestamps.Unlock()

	return Status{
		NodeAddress:         n.address,
		Peers:               n.peers.ToSlice(),
		BlockchainLength:    n.chain.Length(),
		PendingTransactions: n.chain.PendingCount(),
		Validators:          len(n.consensus.Validators()),
		LastPeerDiscovery:   unixOrZero(lastDiscovery),
		LastBlockchainSync:  unixOrZero(lastSync),
		LastPeerCleanup:     unixOrZero(lastCleanup),
	}
}

// GetStats returns flat string metrics in the style of the status endpoint of
// other consensus nodes.
func (n *Node) GetStats() map[string]string {
	return map[string]string{
		"address":              n.address,
		"state":                n.getState().String(),
		"moniker":              n.conf.Moniker,
		"chain_length":         strconv.Itoa(n.chain.Length()),
		"pending_transactions": strconv.Itoa(n.chain.PendingCount()),
		"num_peers":            strconv.Itoa(n.peers.Len()),
		"num_validators":       strconv.Itoa(len(n.consensus.Validators())),
		"uptime":               time.Since(n.start).String(),
	}
}

func (n *Node) saveChain() error {
	return n.store.SaveChain(n.chain.Blocks())
}

func (n *Node) savePeers() {
	if err := n.store.SavePeers(n.peers.ToSlice()); err != nil {
		n.logger.WithError(err).Error("Failed to persist peers")
	}
}

func (n *Node) stampDiscovery() {
	n.timestamps.Lock()
	n.timestamps.lastDiscovery = time.Now()
	n.timestamps.Unlock()
}

func (n *Node) stampSync() {
	n.timestamps.Lock()
	n.timestamps.lastSync = time.Now()
	n.timestamps.Unlock()
}

func (n *Node) stampCleanup() {
	n.timestamps.Lock()
	n.timestamps.lastCleanup = time.Now()
	n.timestamps.Unlock()
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
