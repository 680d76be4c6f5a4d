package devnet

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"tessnet-demo/lib/chain"
	"tessnet-demo/modules/common"
	"tessnet-demo/modules/jobs"
	"tessnet-demo/modules/profiles"

	cbornode "github.com/ipfs/go-ipld-cbor"
	"github.com/multiformats/go-multicodec"
)

// how many produced blocks stay queryable over chain.get_block
const blockHistory = 256

var (
	ErrTxTooLarge  = errors.New("transaction exceeds size limit")
	ErrTxExpired   = errors.New("transaction expired")
	ErrTxReplayed  = errors.New("transaction already included")
	ErrBadNetId    = errors.New("transaction targets a different network")
	ErrBadEnvelope = errors.New("malformed transaction envelope")
)

// blockShell is the canonical form a block id is computed over. Receipts
// stay outside: they are derived data, not part of identity.
type blockShell struct {
	Height    uint64   `refmt:"height"`
	Previous  string   `refmt:"previous"`
	Timestamp string   `refmt:"timestamp"`
	TxIds     []string `refmt:"tx_ids"`
}

func init() {
	cbornode.RegisterCborType(blockShell{})
}

type pendingTx struct {
	id    string
	shell chain.TransactionShell
}

// State is the devnet's entire view of the chain: registered profiles,
// submitted jobs, the job id counter and the block history. Everything
// lives in memory for the process lifetime, which is the point of a
// devnet.
type State struct {
	mtx sync.Mutex

	profiles  map[string]*profiles.Profile
	jobsById  map[uint64]*jobs.Job
	nextJobId uint64

	included map[string]uint64
	pending  []pendingTx

	head   chain.Block
	blocks map[uint64]*chain.Block

	clock func() time.Time
}

func NewState(clock func() time.Time) *State {
	if clock == nil {
		clock = time.Now
	}

	s := &State{
		profiles:  map[string]*profiles.Profile{},
		jobsById:  map[uint64]*jobs.Job{},
		nextJobId: 1,
		included:  map[string]uint64{},
		blocks:    map[uint64]*chain.Block{},
		clock:     clock,
	}

	genesis := chain.Block{
		Height:    1,
		Timestamp: clock().UTC().Format(chain.TimeFormat),
		TxIds:     []string{},
		Receipts:  []chain.TxReceipt{},
	}
	genesis.Id = blockId(genesis)
	s.head = genesis
	s.blocks[genesis.Height] = &genesis

	return s
}

func blockId(blk chain.Block) string {
	shell := blockShell{
		Height:    blk.Height,
		Previous:  blk.Previous,
		Timestamp: blk.Timestamp,
		TxIds:     blk.TxIds,
	}
	data, err := common.EncodeDagCbor(shell)
	if err != nil {
		// shell is all plain fields, encoding cannot fail at runtime
		panic(fmt.Errorf("failed to encode block shell: %w", err))
	}
	id, err := common.HashBytes(data, multicodec.DagCbor)
	if err != nil {
		panic(fmt.Errorf("failed to hash block shell: %w", err))
	}
	return id.String()
}

func (s *State) Props() chain.ChainProps {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	return chain.ChainProps{
		ChainID:         common.NETWORK_ID,
		HeadBlockNumber: s.head.Height,
		HeadBlockId:     s.head.Id,
		Time:            s.head.Timestamp,
	}
}

// BlockAt returns nil when the height is unproduced or already pruned.
func (s *State) BlockAt(height uint64) *chain.Block {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	blk, ok := s.blocks[height]
	if !ok {
		return nil
	}
	cp := *blk
	return &cp
}

func (s *State) NextJobId() uint64 {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.nextJobId
}

// ProfileOf returns a copy, nil when the account never registered.
func (s *State) ProfileOf(account string) *profiles.Profile {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	p, ok := s.profiles[account]
	if !ok {
		return nil
	}
	cp := *p
	cp.Records = append([]profiles.RoleRecord{}, p.Records...)
	return &cp
}

// JobOf returns a copy, nil when the id was never assigned.
func (s *State) JobOf(id uint64) *jobs.Job {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	j, ok := s.jobsById[id]
	if !ok {
		return nil
	}
	cp := *j
	return &cp
}

// Enqueue validates a broadcast transaction against current state and
// queues it for the next block. Validation failures surface to the
// submitter right away instead of silently dropping at inclusion.
func (s *State) Enqueue(sTx chain.SerializedTransaction) (string, error) {
	if len(sTx.Tx) > common.MAX_TX_SIZE {
		return "", ErrTxTooLarge
	}

	shell, err := chain.DecodeShell(sTx.Tx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrBadEnvelope, err)
	}

	if err := verifyEnvelope(shell, sTx); err != nil {
		return "", err
	}

	id, err := chain.TxId(sTx.Tx)
	if err != nil {
		return "", err
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()

	if err := checkExpiry(shell, s.head.Timestamp); err != nil {
		return "", err
	}
	if _, ok := s.included[id.String()]; ok {
		return "", ErrTxReplayed
	}
	for _, p := range s.pending {
		if p.id == id.String() {
			return "", ErrTxReplayed
		}
	}

	// dry run against current state so obviously invalid operations
	// bounce at broadcast time, the way a real node's mempool would
	if err := s.dryRunLocked(shell); err != nil {
		return "", err
	}

	s.pending = append(s.pending, pendingTx{id: id.String(), shell: shell})
	return id.String(), nil
}

// checkExpiry judges the transaction's expiration against a reference
// timestamp: the head block's at broadcast, the produced block's at
// inclusion.
func checkExpiry(shell chain.TransactionShell, refTimestamp string) error {
	expiration, err := time.Parse(chain.TimeFormat, shell.Headers.Expiration)
	if err != nil {
		return fmt.Errorf("%w: bad expiration: %w", ErrBadEnvelope, err)
	}
	ref, err := time.Parse(chain.TimeFormat, refTimestamp)
	if err != nil {
		return err
	}
	if !expiration.After(ref) {
		return ErrTxExpired
	}
	return nil
}

// ProduceBlock drains the queue into a new head block. Receipts carry
// the per transaction outcome; the caller fans them out to watchers.
func (s *State) ProduceBlock() chain.Block {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	height := s.head.Height + 1
	timestamp := s.clock().UTC().Format(chain.TimeFormat)

	pending := s.pending
	s.pending = nil

	txIds := make([]string, 0, len(pending))
	receipts := make([]chain.TxReceipt, 0, len(pending))

	blk := chain.Block{
		Height:    height,
		Previous:  s.head.Id,
		Timestamp: timestamp,
		TxIds:     txIds,
	}

	for _, p := range pending {
		receipt := chain.TxReceipt{Id: p.id, Height: height}

		if err := checkExpiry(p.shell, timestamp); err != nil {
			receipt.Status = chain.StatusExpired
			receipts = append(receipts, receipt)
			continue
		}

		events, err := s.applyLocked(p.shell, height)
		if err != nil {
			// passed the broadcast dry run but the state moved on,
			// e.g. a conflicting transaction landed first
			receipt.Status = chain.StatusRejected
			receipts = append(receipts, receipt)
			continue
		}

		receipt.Status = chain.StatusInBlock
		receipt.Events = events
		receipts = append(receipts, receipt)
		blk.TxIds = append(blk.TxIds, p.id)
		s.included[p.id] = height
	}

	blk.Id = blockId(blk)
	for i := range receipts {
		receipts[i].BlockId = blk.Id
	}
	blk.Receipts = receipts

	s.head = blk
	s.blocks[height] = &blk
	if height > blockHistory {
		delete(s.blocks, height-blockHistory)
	}

	return blk
}
