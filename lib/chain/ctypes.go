package chain

import (
	"sync"

	"tessnet-demo/modules/common"

	cbornode "github.com/ipfs/go-ipld-cbor"
)

var registerOnce sync.Once

// RegisterTypes installs the cbor atlas entries for every struct that
// travels through dag-cbor. Call it once during process startup, before
// any transaction is encoded or decoded.
func RegisterTypes() {
	registerOnce.Do(func() {
		cbornode.RegisterCborType(TransactionShell{})
		cbornode.RegisterCborType(TransactionHeader{})
		cbornode.RegisterCborType(TransactionOp{})
		cbornode.RegisterCborType(SignaturePackage{})
		cbornode.RegisterCborType(common.Sig{})
		cbornode.RegisterCborType(Event{})
	})
}
