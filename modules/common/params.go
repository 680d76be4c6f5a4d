package common

var CHAIN_SPECS = struct {
	BlockIntervalSeconds uint64
	TxTTLBlocks          uint64
	JobTTLMin            uint64
	JobTTLMax            uint64
	MaxParticipants      int
}{
	BlockIntervalSeconds: 1,   // devnet cadence, mainnet would run slower
	TxTTLBlocks:          30,  // blocks a broadcast transaction stays valid for
	JobTTLMin:            2,   // a job must outlive at least the next block
	JobTTLMax:            600, // 10 minutes at devnet cadence
	MaxParticipants:      16,
}

var NETWORK_ID = "tessnet-devnet"

var MAX_TX_SIZE = 16384
