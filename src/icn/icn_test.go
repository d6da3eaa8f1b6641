package icn

import (
	"path/filepath"
	"testing"

	"github.com/fahertym/InterCooperative-Network/src/config"
)

func TestInitInmem(t *testing.T) {
	conf := config.NewTestConfig(t)

	engine := NewICN(conf)
	if err := engine.Init(); err != nil {
		t.Fatalf("err: %v", err)
	}
	defer engine.Shutdown()

	if engine.NodeDID == "" {
		t.Fatalf("engine should carry a node identity")
	}
	if engine.Chain.Length() != 1 {
		t.Fatalf("fresh engine should hold only the genesis block")
	}
	if engine.Service == nil {
		t.Fatalf("engine should carry an HTTP service")
	}
}

func TestInitPersistent(t *testing.T) {
	dir := t.TempDir()

	conf := config.NewTestConfig(t)
	conf.DataDir = dir

	engine := NewICN(conf)
	if err := engine.Init(); err != nil {
		t.Fatalf("err: %v", err)
	}

	engine.Consensus.AddValidator(engine.NodeDID, 150)
	if _, err := engine.Node.Mine(engine.NodeDID); err != nil {
		t.Fatalf("err: %v", err)
	}

	firstDID := engine.NodeDID

	engine.Shutdown()

	// a restart restores the chain and the keyfile identity
	conf2 := config.NewTestConfig(t)
	conf2.DataDir = dir

	engine2 := NewICN(conf2)
	if err := engine2.Init(); err != nil {
		t.Fatalf("err: %v", err)
	}
	defer engine2.Shutdown()

	if engine2.NodeDID != firstDID {
		t.Fatalf("restart changed the node identity: %s != %s", engine2.NodeDID, firstDID)
	}
	if engine2.Chain.Length() != 2 {
		t.Fatalf("restart lost the chain: length %d, want 2", engine2.Chain.Length())
	}
}

func TestKeygen(t *testing.T) {
	keyfile := filepath.Join(t.TempDir(), "priv_key")

	key, err := Keygen(keyfile)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if key == nil {
		t.Fatalf("no key generated")
	}

	if _, err := Keygen(keyfile); err == nil {
		t.Fatalf("Keygen should refuse to overwrite an existing key")
	}
}
