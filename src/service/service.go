package service

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/fahertym/InterCooperative-Network/src/consensus"
	"github.com/fahertym/InterCooperative-Network/src/ledger"
	"github.com/fahertym/InterCooperative-Network/src/node"
	"github.com/sirupsen/logrus"
)

// Service exposes the node over HTTP with JSON bodies. Handlers are
// serialized behind a single mutex; the node's own locking makes this a
// simplification rather than a correctness requirement.
type Service struct {
	sync.Mutex

	bindAddress string
	node        *node.Node
	mux         *http.ServeMux
	logger      *logrus.Entry
}

// NewService ...
func NewService(bindAddress string, n *node.Node, logger *logrus.Entry) *Service {
	service := Service{
		bindAddress: bindAddress,
		node:        n,
		mux:         http.NewServeMux(),
		logger:      logger,
	}

	service.registerHandlers()

	return &service
}

func (s *Service) registerHandlers() {
	s.logger.Debug("Registering API handlers")
	s.mux.HandleFunc("/blocks", s.makeHandler(s.GetBlocks))
	s.mux.HandleFunc("/blocks/new", s.makeHandler(s.ReceiveBlock))
	s.mux.HandleFunc("/transactions/new", s.makeHandler(s.NewTransaction))
	s.mux.HandleFunc("/nodes/register", s.makeHandler(s.RegisterNodes))
	s.mux.HandleFunc("/nodes/resolve", s.makeHandler(s.Resolve))
	s.mux.HandleFunc("/nodes/peers", s.makeHandler(s.GetPeers))
	s.mux.HandleFunc("/status", s.makeHandler(s.GetStatus))
	s.mux.HandleFunc("/stats", s.makeHandler(s.GetStats))
	s.mux.HandleFunc("/mine", s.makeHandler(s.Mine))
	s.mux.HandleFunc("/contracts/deploy", s.makeHandler(s.DeployContract))
	s.mux.HandleFunc("/contracts/execute", s.makeHandler(s.ExecuteContract))
	s.mux.HandleFunc("/validators", s.makeHandler(s.GetValidators))
	s.mux.HandleFunc("/validators/register", s.makeHandler(s.RegisterValidator))
	s.mux.HandleFunc("/validators/remove", s.makeHandler(s.RemoveValidator))
}

func (s *Service) makeHandler(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Lock()
		defer s.Unlock()

		// enable CORS
		w.Header().Set("Access-Control-Allow-Origin", "*")

		fn(w, r)
	}
}

// Mux returns the service's request multiplexer, for embedding the API in an
// existing server.
func (s *Service) Mux() *http.ServeMux {
	return s.mux
}

// Serve calls ListenAndServe. This is a blocking call.
func (s *Service) Serve() {
	s.logger.WithField("bind_address", s.bindAddress).Debug("Serving API")

	err := http.ListenAndServe(s.bindAddress, s.mux)
	if err != nil {
		s.logger.Error(err)
	}
}

// GetBlocks returns the full chain snapshot.
func (s *Service) GetBlocks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.node.Chain().Blocks())
}

// ReceiveBlock accepts a block broadcast by a peer.
func (s *Service) ReceiveBlock(w http.ResponseWriter, r *http.Request) {
	var block ledger.Block
	if err := json.NewDecoder(r.Body).Decode(&block); err != nil {
		s.logger.WithError(err).Error("Parsing block body")
		writeError(w, http.StatusBadRequest, "Invalid block body")
		return
	}

	if !s.node.ReceiveBlock(&block) {
		writeError(w, http.StatusBadRequest, "Failed to add new block")
		return
	}

	writeJSON(w, map[string]string{"message": "New block added successfully"})
}

// NewTransaction accepts a transaction submission. An unsigned transaction is
// signed with the local identity of its sender; a signed one is a peer
// broadcast and enters the pool as-is.
func (s *Service) NewTransaction(w http.ResponseWriter, r *http.Request) {
	var tx ledger.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		s.logger.WithError(err).Error("Parsing transaction body")
		writeError(w, http.StatusBadRequest, "Invalid transaction body")
		return
	}

	if tx.SenderDID == "" || tx.RecipientDID == "" {
		writeError(w, http.StatusBadRequest, "Missing values")
		return
	}

	if tx.Timestamp == 0 {
		fresh := ledger.NewTransaction(tx.SenderDID, tx.RecipientDID, tx.Amount, tx.Message)
		tx = *fresh
	}

	if !s.node.SubmitTransaction(&tx) {
		writeError(w, http.StatusBadRequest, "Transaction rejected")
		return
	}

	writeJSON(w, map[string]interface{}{
		"message":     "Transaction added to pool",
		"transaction": tx,
	})
}

// RegisterNodes merges peer addresses into the peer set.
func (s *Service) RegisterNodes(w http.ResponseWriter, r *http.Request) {
	var req node.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Nodes == nil {
		writeError(w, http.StatusBadRequest, "Error: Please supply a valid list of nodes")
		return
	}

	total := s.node.RegisterPeers(req.Nodes)

	writeJSON(w, map[string]interface{}{
		"message":     "New nodes have been added",
		"total_nodes": total,
	})
}

// Resolve triggers a fork-choice pass and returns the resulting chain.
func (s *Service) Resolve(w http.ResponseWriter, r *http.Request) {
	if s.node.ResolveConflicts() {
		writeJSON(w, map[string]interface{}{
			"message":   "Our chain was replaced",
			"new_chain": s.node.Chain().Blocks(),
		})
		return
	}

	writeJSON(w, map[string]interface{}{
		"message": "Our chain is authoritative",
		"chain":   s.node.Chain().Blocks(),
	})
}

// GetPeers ...
func (s *Service) GetPeers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.node.Peers())
}

// GetStatus ...
func (s *Service) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.node.GetStatus())
}

// GetStats ...
func (s *Service) GetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.node.GetStats())
}

// Mine attempts block production on behalf of a producer DID.
func (s *Service) Mine(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MinerDID string `json:"miner_did"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.MinerDID == "" {
		writeError(w, http.StatusBadRequest, "Miner DID is required")
		return
	}

	block, err := s.node.Mine(req.MinerDID)
	if err == consensus.ErrNotValidator {
		writeError(w, http.StatusBadRequest, "Miner is not an eligible validator")
		return
	}
	if err != nil {
		s.logger.WithError(err).WithField("miner", req.MinerDID).Error("Mining failed")
		writeError(w, http.StatusInternalServerError, "Failed to mine new block")
		return
	}

	writeJSON(w, map[string]interface{}{
		"message": "New block mined and broadcast successfully",
		"block":   block,
	})
}

// DeployContract forwards contract code to the contract collaborator.
func (s *Service) DeployContract(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code     string `json:"code"`
		Deployer string `json:"deployer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		writeError(w, http.StatusBadRequest, "No contract code provided")
		return
	}

	id, err := s.node.Contracts().DeployContract(req.Code, req.Deployer)
	if err != nil {
		s.logger.WithError(err).Error("Deploying contract")
		writeError(w, http.StatusInternalServerError, "Failed to deploy contract")
		return
	}

	writeJSON(w, map[string]interface{}{
		"success":     true,
		"contract_id": id,
	})
}

// ExecuteContract forwards a contract call to the contract collaborator.
func (s *Service) ExecuteContract(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ContractID string   `json:"contract_id"`
		Function   string   `json:"function"`
		Args       []string `json:"args"`
		Caller     string   `json:"caller"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ContractID == "" {
		writeError(w, http.StatusBadRequest, "No contract ID provided")
		return
	}

	result, err := s.node.Contracts().ExecuteContract(req.ContractID, req.Function, req.Args, req.Caller)
	if err != nil {
		s.logger.WithError(err).Error("Executing contract")
		writeError(w, http.StatusInternalServerError, "Failed to execute contract")
		return
	}

	writeJSON(w, map[string]interface{}{
		"success": true,
		"result":  result,
	})
}

// GetValidators returns the validator registry.
func (s *Service) GetValidators(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.node.Consensus().Validators())
}

// RegisterValidator adds a validator to the registry.
func (s *Service) RegisterValidator(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DID   string  `json:"did"`
		Stake float64 `json:"stake"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DID == "" {
		writeError(w, http.StatusBadRequest, "Validator DID is required")
		return
	}

	if !s.node.Consensus().AddValidator(req.DID, req.Stake) {
		writeError(w, http.StatusBadRequest, "Validator already registered")
		return
	}

	info, _ := s.node.Consensus().ValidatorInfo(req.DID)
	writeJSON(w, info)
}

// RemoveValidator removes a validator from the registry.
func (s *Service) RemoveValidator(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DID string `json:"did"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DID == "" {
		writeError(w, http.StatusBadRequest, "Validator DID is required")
		return
	}

	if !s.node.Consensus().RemoveValidator(req.DID) {
		writeError(w, http.StatusBadRequest, "Unknown validator")
		return
	}

	writeJSON(w, map[string]string{"message": "Validator removed"})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"message": message})
}
