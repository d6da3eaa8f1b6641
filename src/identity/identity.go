package identity

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/fahertym/InterCooperative-Network/src/common"
	"github.com/fahertym/InterCooperative-Network/src/crypto"
	"github.com/fahertym/InterCooperative-Network/src/crypto/keys"
	"github.com/sirupsen/logrus"
)

// didPrefix is prepended to the key fingerprint to form a DID.
const didPrefix = "did:icn:"

// Manager holds the key material behind DIDs and exposes the sign/verify
// capability that the ledger consumes. The ledger and node only ever see DID
// strings and opaque signature strings.
type Manager struct {
	sync.RWMutex
	dids   map[string]*ecdsa.PrivateKey
	logger *logrus.Entry
}

// NewManager returns an empty DID registry.
func NewManager(logger *logrus.Entry) *Manager {
	return &Manager{
		dids:   make(map[string]*ecdsa.PrivateKey),
		logger: logger,
	}
}

// CreateDID generates a new secp256k1 keypair and registers it under a DID
// derived from the public key fingerprint.
func (m *Manager) CreateDID() (string, error) {
	key, err := keys.GenerateECDSAKey()
	if err != nil {
		return "", err
	}
	return m.RegisterKey(key)
}

// RegisterKey registers an existing private key, deriving its DID. It is used
// to bind the node's keyfile identity into the registry.
func (m *Manager) RegisterKey(key *ecdsa.PrivateKey) (string, error) {
	did := DIDFromPublicKey(&key.PublicKey)

	m.Lock()
	defer m.Unlock()

	if _, ok := m.dids[did]; ok {
		return "", fmt.Errorf("DID %s already registered", did)
	}

	m.dids[did] = key

	m.logger.WithField("did", did).Debug("Registered DID")

	return did, nil
}

// Sign signs the message with the key behind the DID and returns an encoded
// signature string. The signer's public key travels inside the signature so
// that any node can verify it, not just the one holding the key.
func (m *Manager) Sign(did string, message string) (string, error) {
	m.RLock()
	key, ok := m.dids[did]
	m.RUnlock()

	if !ok {
		return "", fmt.Errorf("DID %s not found", did)
	}

	r, s, err := keys.Sign(key, crypto.SHA256([]byte(message)))
	if err != nil {
		return "", err
	}

	return keys.PublicKeyHex(&key.PublicKey) + ":" + keys.EncodeSignature(r, s), nil
}

// Verify checks an encoded signature over the message against the DID. The
// embedded public key must fingerprint to the DID, which binds the signature
// to the sender without a registry lookup, so signatures from DIDs registered
// on other nodes verify too. Malformed signatures report false rather than an
// error.
func (m *Manager) Verify(did string, message string, signature string) bool {
	pubHex, sigEnc, found := strings.Cut(signature, ":")
	if !found || !strings.HasPrefix(pubHex, "0X") {
		return false
	}

	pubBytes, err := common.DecodeFromString(pubHex)
	if err != nil {
		return false
	}

	pub := keys.ToPublicKey(pubBytes)
	if pub == nil || pub.X == nil {
		return false
	}

	if DIDFromPublicKey(pub) != did {
		return false
	}

	r, s, err := keys.DecodeSignature(sigEnc)
	if err != nil {
		return false
	}

	return keys.Verify(pub, crypto.SHA256([]byte(message)), r, s)
}

// DIDs returns the sorted list of registered DIDs.
func (m *Manager) DIDs() []string {
	m.RLock()
	defer m.RUnlock()

	res := make([]string, 0, len(m.dids))
	for did := range m.dids {
		res = append(res, did)
	}

	sort.Strings(res)

	return res
}

// DIDFromPublicKey derives the DID string for a public key. The fingerprint is
// the SHA256 hash of the uncompressed public key.
func DIDFromPublicKey(pub *ecdsa.PublicKey) string {
	fingerprint := crypto.SHA256(keys.FromPublicKey(pub))
	return didPrefix + hex.EncodeToString(fingerprint[:16])
}
