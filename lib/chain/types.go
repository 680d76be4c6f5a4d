package chain

// ===== wire types =====

// Timestamp layout used across the chain API, matching the block
// producer's clock granularity. No sub second precision, no zone.
const TimeFormat = "2006-01-02T15:04:05"

const (
	TxType    = "tess-tx"
	TxVersion = "0.1"

	SigType = "tess-sig"
)

// transaction status values reported over broadcast.status
const (
	StatusBroadcast = "broadcast"
	StatusInBlock   = "in_block"
	StatusExpired   = "expired"
	StatusRejected  = "rejected"
)

type ChainProps struct {
	ChainID         string `json:"chain_id"`
	HeadBlockNumber uint64 `json:"head_block_number"`
	HeadBlockId     string `json:"head_block_id"`
	Time            string `json:"time"`
}

type Block struct {
	Height    uint64      `json:"height"`
	Id        string      `json:"id"`
	Previous  string      `json:"previous"`
	Timestamp string      `json:"timestamp"`
	TxIds     []string    `json:"tx_ids"`
	Receipts  []TxReceipt `json:"receipts"`
}

// TxReceipt is pushed to watchers once a transaction lands in a block,
// and kept on the block itself for pollers.
type TxReceipt struct {
	Id      string  `json:"id"`
	Status  string  `json:"status"`
	Height  uint64  `json:"height"`
	BlockId string  `json:"block_id"`
	Events  []Event `json:"events"`
}

type Event struct {
	Module string            `json:"module" refmt:"module"`
	Name   string            `json:"name" refmt:"name"`
	Data   map[string]string `json:"data" refmt:"data"`
}

// ===== transaction envelope =====

type TransactionShell struct {
	Type    string            `json:"__t" refmt:"__t"`
	Version string            `json:"__v" refmt:"__v"`
	Headers TransactionHeader `json:"headers" refmt:"headers"`
	Tx      []TransactionOp   `json:"tx" refmt:"tx"`
}

type TransactionHeader struct {
	RefBlockHeight uint64   `json:"ref_block_height" refmt:"ref_block_height"`
	RefBlockPrefix uint32   `json:"ref_block_prefix" refmt:"ref_block_prefix"`
	Expiration     string   `json:"expiration" refmt:"expiration"`
	RequiredAuths  []string `json:"required_auths" refmt:"required_auths"`
	NetId          string   `json:"net_id" refmt:"net_id"`
}

type TransactionOp struct {
	Type    string `json:"type" refmt:"type"`
	Payload []byte `json:"payload" refmt:"payload"`
}

// SerializedTransaction is the broadcast form: canonical dag-cbor shell
// bytes plus the dag-cbor signature package over them.
type SerializedTransaction struct {
	Tx  []byte `json:"tx"`
	Sig []byte `json:"sig"`
}

// operation type tags
const (
	OpCreateProfile = "create_profile"
	OpSubmitJob     = "submit_job"
	OpSubmitResult  = "submit_result"
)
