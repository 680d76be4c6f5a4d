package common

import (
	"github.com/ipfs/go-cid"
	cbornode "github.com/ipfs/go-ipld-cbor"
	"github.com/multiformats/go-multicodec"
	mh "github.com/multiformats/go-multihash"
	multihash "github.com/multiformats/go-multihash/core"
)

// EncodeDagCbor canonicalizes obj into dag-cbor bytes. Struct types must
// be registered with cbornode.RegisterCborType before they hit this.
func EncodeDagCbor(obj interface{}) ([]byte, error) {
	node, err := cbornode.WrapObject(obj, mh.SHA2_256, -1)
	if err != nil {
		return nil, err
	}
	return node.RawData(), nil
}

func DecodeCbor(data []byte, out interface{}) error {
	return cbornode.DecodeInto(data, out)
}

func HashBytes(data []byte, mf multicodec.Code) (cid.Cid, error) {
	prefix := cid.Prefix{
		Version:  1,
		Codec:    uint64(mf),
		MhType:   multihash.SHA2_256,
		MhLength: -1,
	}

	return prefix.Sum(data)
}
