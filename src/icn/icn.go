package icn

import (
	"crypto/ecdsa"
	"fmt"
	"os"

	"github.com/fahertym/InterCooperative-Network/src/config"
	"github.com/fahertym/InterCooperative-Network/src/consensus"
	"github.com/fahertym/InterCooperative-Network/src/contracts"
	"github.com/fahertym/InterCooperative-Network/src/crypto/keys"
	"github.com/fahertym/InterCooperative-Network/src/identity"
	"github.com/fahertym/InterCooperative-Network/src/ledger"
	"github.com/fahertym/InterCooperative-Network/src/node"
	"github.com/fahertym/InterCooperative-Network/src/peers"
	"github.com/fahertym/InterCooperative-Network/src/service"
	"github.com/fahertym/InterCooperative-Network/src/storage"
)

// ICN is the engine tying a node's components together: persistence, identity,
// consensus, the chain store, the peer set, the node loop, and the HTTP
// service.
type ICN struct {
	Config    *config.Config
	Store     storage.Store
	Identity  *identity.Manager
	NodeDID   string
	Consensus *consensus.PoCoS
	Chain     *ledger.Chain
	Peers     *peers.PeerSet
	Contracts contracts.Proxy
	Node      *node.Node
	Service   *service.Service
}

// NewICN ...
func NewICN(conf *config.Config) *ICN {
	return &ICN{
		Config: conf,
	}
}

func (i *ICN) initStore() error {
	if i.Config.DataDir == "" {
		i.Store = storage.NewInmemStore()
		i.Config.Logger().Debug("Created new in-mem store")
		return nil
	}

	if err := os.MkdirAll(i.Config.DataDir, 0700); err != nil {
		return err
	}

	if i.Config.Badger {
		store, err := storage.NewBadgerStore(i.Config.BadgerDir())
		if err != nil {
			return err
		}
		i.Store = store
		i.Config.Logger().WithField("path", i.Config.BadgerDir()).Debug("Opened badger store")
	} else {
		store, err := storage.NewFileStore(i.Config.DataDir)
		if err != nil {
			return err
		}
		i.Store = store
		i.Config.Logger().WithField("path", i.Config.DataDir).Debug("Opened file store")
	}

	return nil
}

func (i *ICN) initIdentity() error {
	i.Identity = identity.NewManager(i.Config.Logger())

	// without a datadir the node runs with an ephemeral identity
	if i.Config.DataDir == "" {
		did, err := i.Identity.CreateDID()
		if err != nil {
			return err
		}
		i.NodeDID = did
		return nil
	}

	key, err := keys.NewSimpleKeyfile(i.Config.Keyfile()).ReadKey()
	if err != nil {
		i.Config.Logger().WithError(err).Warn("Cannot read private key from file")

		key, err = Keygen(i.Config.Keyfile())
		if err != nil {
			return err
		}

		i.Config.Logger().Info("Created a new key: ", keys.PublicKeyHex(&key.PublicKey))
	}

	did, err := i.Identity.RegisterKey(key)
	if err != nil {
		return err
	}

	i.NodeDID = did

	i.Config.Logger().WithField("did", did).Debug("Node identity")

	return nil
}

func (i *ICN) initConsensus() error {
	i.Consensus = consensus.NewPoCoS(
		i.Config.StakeThreshold,
		i.Config.CooperationThreshold,
		i.Config.Logger(),
	)
	return nil
}

func (i *ICN) initChain() error {
	i.Chain = ledger.NewChain(i.Config.Difficulty, i.Identity, i.Config.Logger())
	return nil
}

func (i *ICN) initPeers() error {
	i.Peers = peers.NewPeerSet(i.Config.AdvertiseAddr(), i.Config.BootstrapPeers)
	return nil
}

func (i *ICN) initContracts() error {
	if i.Contracts == nil {
		i.Contracts = contracts.NewInmemProxy(i.Config.Logger())
	}
	return nil
}

func (i *ICN) initNode() error {
	i.Node = node.NewNode(
		i.Config,
		i.Chain,
		i.Consensus,
		i.Peers,
		i.Store,
		i.Identity,
		i.Contracts,
	)

	if err := i.Node.Init(); err != nil {
		return fmt.Errorf("failed to initialize node: %s", err)
	}

	return nil
}

func (i *ICN) initService() error {
	i.Service = service.NewService(i.Config.BindAddr(), i.Node, i.Config.Logger())
	return nil
}

// Init instantiates and wires every component. The order matters: the chain
// needs the identity manager's verify capability, and the node needs
// everything else.
func (i *ICN) Init() error {
	if err := i.initStore(); err != nil {
		return err
	}

	if err := i.initIdentity(); err != nil {
		return err
	}

	if err := i.initConsensus(); err != nil {
		return err
	}

	if err := i.initChain(); err != nil {
		return err
	}

	if err := i.initPeers(); err != nil {
		return err
	}

	if err := i.initContracts(); err != nil {
		return err
	}

	if err := i.initNode(); err != nil {
		return err
	}

	if err := i.initService(); err != nil {
		return err
	}

	return nil
}

// Run starts the HTTP service and the node's periodic loop. This is a blocking
// call.
func (i *ICN) Run() {
	go i.Service.Serve()

	i.Node.Run()
}

// Shutdown stops the node loop and releases the store.
func (i *ICN) Shutdown() {
	i.Node.Shutdown()

	if err := i.Store.Close(); err != nil {
		i.Config.Logger().WithError(err).Error("Closing store")
	}
}

// Keygen generates a new keypair and writes it to keyfile. It refuses to
// overwrite an existing key.
func Keygen(keyfile string) (*ecdsa.PrivateKey, error) {
	simpleKeyfile := keys.NewSimpleKeyfile(keyfile)

	if _, err := simpleKeyfile.ReadKey(); err == nil {
		return nil, fmt.Errorf("another key already lives under %s", keyfile)
	}

	key, err := keys.GenerateECDSAKey()
	if err != nil {
		return nil, err
	}

	if err := simpleKeyfile.WriteKey(key); err != nil {
		return nil, err
	}

	return key, nil
}
