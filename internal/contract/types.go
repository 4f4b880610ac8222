package contract

// Transaction and receipt statuses reported by the node.
const (
	FinalityReceived    = "RECEIVED"
	FinalityAcceptedL2  = "ACCEPTED_ON_L2"
	FinalityAcceptedL1  = "ACCEPTED_ON_L1"
	ExecutionSucceeded  = "SUCCEEDED"
	ExecutionReverted   = "REVERTED"
	InvokeType          = "INVOKE"
	InvokeVersion       = "0x1"
	DefaultMaxFee       = "0x0"
	DefaultChainID      = "0x534e5f5345504f4c4941" // SN_SEPOLIA
	pendingBlock        = "pending"
	methodGetNonce      = "starknet_getNonce"
	methodAddInvoke     = "starknet_addInvokeTransaction"
	methodGetReceipt    = "starknet_getTransactionReceipt"
	methodChainID       = "starknet_chainId"
	deployEntrypoint    = "deployContract"
)

// UniversalDeployer is the address of the universal deployer contract.
const UniversalDeployer = "0x41a78e741e5af2fec34b695679bc6891742439f7afb8484ecd7766661ad02bf"

// Call is one contract entrypoint invocation. Calldata holds felts.
type Call struct {
	ContractName string
	Entrypoint   string
	Calldata     []string
}

// InvokeTransaction is the wire form of an invoke transaction.
type InvokeTransaction struct {
	Type          string   `json:"type"`
	Version       string   `json:"version"`
	SenderAddress string   `json:"sender_address"`
	Calldata      []string `json:"calldata"`
	MaxFee        string   `json:"max_fee"`
	Nonce         string   `json:"nonce"`
	Signature     []string `json:"signature"`
}

// AddInvokeResult is the response to starknet_addInvokeTransaction.
type AddInvokeResult struct {
	TransactionHash string `json:"transaction_hash"`
}

// Event is an event emitted by a transaction.
type Event struct {
	FromAddress string   `json:"from_address"`
	Keys        []string `json:"keys"`
	Data        []string `json:"data"`
}

// Receipt is the response to starknet_getTransactionReceipt.
type Receipt struct {
	TransactionHash string  `json:"transaction_hash"`
	FinalityStatus  string  `json:"finality_status"`
	ExecutionStatus string  `json:"execution_status"`
	RevertReason    string  `json:"revert_reason,omitempty"`
	BlockNumber     uint64  `json:"block_number"`
	Events          []Event `json:"events"`
}

// Accepted reports whether the receipt has reached L2 or L1 finality.
func (r Receipt) Accepted() bool {
	return r.FinalityStatus == FinalityAcceptedL2 || r.FinalityStatus == FinalityAcceptedL1
}
