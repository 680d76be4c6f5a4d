package chain

import (
	"encoding/json"

	"tessnet-demo/modules/common"

	blocks "github.com/ipfs/go-block-format"
	"github.com/ipfs/go-cid"
	cbornode "github.com/ipfs/go-ipld-cbor"
	"github.com/multiformats/go-multicodec"
	"github.com/multiformats/go-multihash"
)

func EncodeShell(shell TransactionShell) ([]byte, error) {
	return common.EncodeDagCbor(shell)
}

func DecodeShell(data []byte) (TransactionShell, error) {
	shell := TransactionShell{}
	err := common.DecodeCbor(data, &shell)
	return shell, err
}

// TxId is the CIDv1 over the canonical shell bytes. Signatures are not
// part of the id, so a re-signed transaction keeps its identity.
func TxId(txBytes []byte) (cid.Cid, error) {
	return common.HashBytes(txBytes, multicodec.DagCbor)
}

// ShellBlock wraps shell bytes and their CID for signature checks.
func ShellBlock(txBytes []byte) (blocks.Block, error) {
	id, err := TxId(txBytes)
	if err != nil {
		return nil, err
	}
	return blocks.NewBlockWithCid(txBytes, id)
}

// EncodeOpPayload canonicalizes an operation payload struct through its
// json form, so payload encoding needs no per type atlas entry.
func EncodeOpPayload(v interface{}) ([]byte, error) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	recode := map[string]interface{}{}
	err = json.Unmarshal(jsonBytes, &recode)
	if err != nil {
		return nil, err
	}

	return common.EncodeDagCbor(recode)
}

func DecodeOpPayload(op TransactionOp, out interface{}) error {
	node, err := cbornode.Decode(op.Payload, multihash.SHA2_256, -1)
	if err != nil {
		return err
	}

	jsonBytes, err := node.MarshalJSON()
	if err != nil {
		return err
	}

	return json.Unmarshal(jsonBytes, out)
}
