package peers

import (
	"sort"
	"sync"
)

// PeerSet is the set of peer addresses known to one node. Peers enter through
// discovery merges and registration requests, and leave through liveness
// eviction. The node's own address is never a member.
type PeerSet struct {
	sync.RWMutex

	self  string
	peers map[string]struct{}
}

// NewPeerSet returns a set that excludes self, seeded with the given
// addresses.
func NewPeerSet(self string, initial []string) *PeerSet {
	p := &PeerSet{
		self:  self,
		peers: make(map[string]struct{}),
	}

	for _, addr := range initial {
		p.add(addr)
	}

	return p
}

// Self returns the owner's address.
func (p *PeerSet) Self() string {
	return p.self
}

// add without the lock. Handle with care.
func (p *PeerSet) add(addr string) bool {
	if addr == "" || addr == p.self {
		return false
	}
	if _, ok := p.peers[addr]; ok {
		return false
	}
	p.peers[addr] = struct{}{}
	return true
}

// Add inserts an address, excluding self and duplicates. It reports whether
// the set changed.
func (p *PeerSet) Add(addr string) bool {
	p.Lock()
	defer p.Unlock()

	return p.add(addr)
}

// Merge inserts every address and reports whether the set changed.
func (p *PeerSet) Merge(addrs []string) bool {
	p.Lock()
	defer p.Unlock()

	changed := false
	for _, addr := range addrs {
		if p.add(addr) {
			changed = true
		}
	}

	return changed
}

// Remove evicts an address. It reports whether the address was a member.
func (p *PeerSet) Remove(addr string) bool {
	p.Lock()
	defer p.Unlock()

	if _, ok := p.peers[addr]; !ok {
		return false
	}

	delete(p.peers, addr)

	return true
}

// Contains reports membership.
func (p *PeerSet) Contains(addr string) bool {
	p.RLock()
	defer p.RUnlock()

	_, ok := p.peers[addr]

	return ok
}

// ToSlice returns a sorted snapshot of the member addresses.
func (p *PeerSet) ToSlice() []string {
	p.RLock()
	defer p.RUnlock()

	res := make([]string, 0, len(p.peers))
	for addr := range p.peers {
		res = append(res, addr)
	}

	sort.Strings(res)

	return res
}

// Len returns the number of members.
func (p *PeerSet) Len() int {
	p.RLock()
	defer p.RUnlock()

	return len(p.peers)
}
