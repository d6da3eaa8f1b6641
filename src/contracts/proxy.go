package contracts

// Proxy is the boundary to the smart-contract collaborator. The ledger core
// forwards deploy and execute requests through it and treats both the
// interpreter and its results as opaque.
type Proxy interface {
	// DeployContract stores the contract code and returns its id.
	DeployContract(code string, deployer string) (string, error)

	// ExecuteContract runs a function of a deployed contract and returns its
	// result.
	ExecuteContract(id string, function string, args []string, caller string) (string, error)
}
