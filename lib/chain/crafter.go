package chain

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/rand"
	"time"

	"tessnet-demo/lib/dids"
	"tessnet-demo/lib/utils"
	"tessnet-demo/modules/common"

	"github.com/chebyrash/promise"
	"github.com/ipfs/go-cid"
)

// Operation is a single action inside a transaction. Implementations
// live with the module that owns the payload shape.
type Operation interface {
	OpType() string
	OpPayload() ([]byte, error)
	RequiredAuths() []string
}

type TransactionCreator interface {
	MakeTransaction(ops []Operation) (TransactionShell, error)

	//Use prior to signing
	PopulateSigningProps(tx *TransactionShell) error
	SignFinal(tx TransactionShell) (SerializedTransaction, error)
	Broadcast(sTx SerializedTransaction) (string, error)
	BroadcastWatch(sTx SerializedTransaction) (string, *promise.Promise[TxReceipt], error)
}

type SignaturePackage struct {
	Type string       `json:"__t" refmt:"__t"`
	Sigs []common.Sig `json:"sigs" refmt:"sigs"`
}

// ===== crafting =====

type TransactionCrafter struct {
}

func (t *TransactionCrafter) MakeTransaction(ops []Operation) (TransactionShell, error) {
	if len(ops) == 0 {
		return TransactionShell{}, fmt.Errorf("transaction needs at least one operation")
	}

	auths := []string{}
	txOps := make([]TransactionOp, 0, len(ops))
	for _, op := range ops {
		payload, err := op.OpPayload()
		if err != nil {
			return TransactionShell{}, fmt.Errorf("failed to encode %s payload: %w", op.OpType(), err)
		}
		txOps = append(txOps, TransactionOp{
			Type:    op.OpType(),
			Payload: payload,
		})
		for _, auth := range op.RequiredAuths() {
			if utils.IndexOf(auths, auth) == -1 {
				auths = append(auths, auth)
			}
		}
	}

	return TransactionShell{
		Type:    TxType,
		Version: TxVersion,
		Headers: TransactionHeader{
			RequiredAuths: auths,
			NetId:         common.NETWORK_ID,
		},
		Tx: txOps,
	}, nil
}

// ===== broadcasting =====

type TransactionBroadcaster struct {
	Client   *Client
	Provider dids.Provider[cid.Cid]
	Did      dids.DID

	// Ctx bounds the rpc calls, Background when unset
	Ctx context.Context
}

func (t *TransactionBroadcaster) ctx() context.Context {
	if t.Ctx != nil {
		return t.Ctx
	}
	return context.Background()
}

func (t *TransactionBroadcaster) PopulateSigningProps(tx *TransactionShell) error {
	props, err := t.Client.GetProperties(t.ctx())
	if err != nil {
		return err
	}

	headId, err := cid.Decode(props.HeadBlockId)
	if err != nil {
		return fmt.Errorf("failed to decode head block id: %w", err)
	}
	idBytes := headId.Bytes()
	if len(idBytes) < 8 {
		return fmt.Errorf("head block id too short")
	}

	headTime, err := time.Parse(TimeFormat, props.Time)
	if err != nil {
		return err
	}
	ttl := time.Duration(common.CHAIN_SPECS.TxTTLBlocks*common.CHAIN_SPECS.BlockIntervalSeconds) * time.Second

	tx.Headers.RefBlockHeight = props.HeadBlockNumber
	tx.Headers.RefBlockPrefix = binary.LittleEndian.Uint32(idBytes[4:8])
	tx.Headers.Expiration = headTime.Add(ttl).Format(TimeFormat)

	return nil
}

func (t *TransactionBroadcaster) SignFinal(tx TransactionShell) (SerializedTransaction, error) {
	return signShell(t.Provider, t.Did, tx)
}

func (t *TransactionBroadcaster) Broadcast(sTx SerializedTransaction) (string, error) {
	return t.Client.BroadcastTransaction(t.ctx(), sTx)
}

func (t *TransactionBroadcaster) BroadcastWatch(sTx SerializedTransaction) (string, *promise.Promise[TxReceipt], error) {
	return t.Client.BroadcastTransactionWatch(t.ctx(), sTx)
}

func signShell(provider dids.Provider[cid.Cid], did dids.DID, tx TransactionShell) (SerializedTransaction, error) {
	txBytes, err := EncodeShell(tx)
	if err != nil {
		return SerializedTransaction{}, err
	}

	id, err := TxId(txBytes)
	if err != nil {
		return SerializedTransaction{}, err
	}

	sig, err := provider.Sign(id)
	if err != nil {
		return SerializedTransaction{}, err
	}

	sigPack := SignaturePackage{
		Type: SigType,
		Sigs: []common.Sig{
			{
				Alg: "EdDSA",
				Kid: did.String(),
				Sig: sig,
			},
		},
	}

	sigBytes, err := common.EncodeDagCbor(sigPack)
	if err != nil {
		return SerializedTransaction{}, err
	}

	return SerializedTransaction{
		Tx:  txBytes,
		Sig: sigBytes,
	}, nil
}

type LiveTransactionCreator struct {
	TransactionBroadcaster
	TransactionCrafter
}

var _ TransactionCreator = &LiveTransactionCreator{}

// ===== mock for tests =====

type MockTransactionBroadcaster struct {
	Callback func(sTx SerializedTransaction) error
	Provider dids.Provider[cid.Cid]
	Did      dids.DID
}

func (mtb *MockTransactionBroadcaster) PopulateSigningProps(tx *TransactionShell) error {
	tx.Headers.Expiration = "2030-01-01T00:00:01"
	tx.Headers.RefBlockHeight = uint64(rand.Uint32() % 32767)
	tx.Headers.RefBlockPrefix = rand.Uint32()
	return nil
}

func (mtb *MockTransactionBroadcaster) SignFinal(tx TransactionShell) (SerializedTransaction, error) {
	return signShell(mtb.Provider, mtb.Did, tx)
}

func (mtb *MockTransactionBroadcaster) Broadcast(sTx SerializedTransaction) (string, error) {
	if mtb.Callback != nil {
		err := mtb.Callback(sTx)
		if err != nil {
			return "", err
		}
	}

	id, err := TxId(sTx.Tx)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func (mtb *MockTransactionBroadcaster) BroadcastWatch(sTx SerializedTransaction) (string, *promise.Promise[TxReceipt], error) {
	id, err := mtb.Broadcast(sTx)
	if err != nil {
		return "", nil, err
	}

	receipt := TxReceipt{
		Id:      id,
		Status:  StatusInBlock,
		Height:  uint64(rand.Uint32()%1000) + 1,
		BlockId: "mock-block",
	}
	return id, utils.PromiseResolve(receipt), nil
}

type MockTransactionCreator struct {
	MockTransactionBroadcaster
	TransactionCrafter
}

var _ TransactionCreator = &MockTransactionCreator{}
