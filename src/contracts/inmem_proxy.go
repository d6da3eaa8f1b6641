package contracts

import (
	"fmt"
	"sync"

	"github.com/fahertym/InterCooperative-Network/src/crypto"
	"github.com/sirupsen/logrus"
)

// InmemProxy is a stand-in contract collaborator. It stores deployed code by
// content hash and acknowledges executions without interpreting anything.
// Nodes run with it unless a real interpreter is plugged in.
type InmemProxy struct {
	sync.Mutex

	contracts map[string]string
	logger    *logrus.Entry
}

// NewInmemProxy returns an empty in-memory contract registry.
func NewInmemProxy(logger *logrus.Entry) *InmemProxy {
	return &InmemProxy{
		contracts: make(map[string]string),
		logger:    logger,
	}
}

// DeployContract registers the code under its content hash.
func (p *InmemProxy) DeployContract(code string, deployer string) (string, error) {
	if code == "" {
		return "", fmt.Errorf("empty contract code")
	}

	id := crypto.SHA256Hex([]byte(code))[:16]

	p.Lock()
	p.contracts[id] = code
	p.Unlock()

	p.logger.WithFields(logrus.Fields{
		"contract_id": id,
		"deployer":    deployer,
	}).Debug("Deployed contract")

	return id, nil
}

// ExecuteContract acknowledges the call for a known contract.
func (p *InmemProxy) ExecuteContract(id string, function string, args []string, caller string) (string, error) {
	p.Lock()
	_, ok := p.contracts[id]
	p.Unlock()

	if !ok {
		return "", fmt.Errorf("contract %s not found", id)
	}

	p.logger.WithFields(logrus.Fields{
		"contract_id": id,
		"function":    function,
		"caller":      caller,
	}).Debug("Executed contract")

	return fmt.Sprintf("executed %s(%d args)", function, len(args)), nil
}
