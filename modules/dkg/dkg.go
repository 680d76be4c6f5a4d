// Package dkg produces threshold keygen outputs. The default path
// simulates the group key locally from a fixed seed so the demo stays
// deterministic; LocalSession runs a real multi-party keygen with every
// party hosted in process.
package dkg

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"tessnet-demo/modules/profiles"

	"github.com/ethereum/go-ethereum/crypto"
)

// Output is what a finished keygen hands back. Shares holds per party
// save data for live sessions. Secret is only set on simulated runs and
// never leaves the process.
type Output struct {
	Scheme      string            `json:"scheme"`
	GroupPubKey []byte            `json:"group_pub_key"`
	Shares      map[string][]byte `json:"shares,omitempty"`
	Secret      []byte            `json:"secret,omitempty"`
}

func (o *Output) GroupPubKeyHex() string {
	return hex.EncodeToString(o.GroupPubKey)
}

// Simulate derives a fresh keypair from a seed and presents its public
// key as the group key, standing in for a full keygen round.
func Simulate(seedHex string, scheme string) (*Output, error) {
	seed, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, fmt.Errorf("invalid keygen seed: %w", err)
	}
	if len(seed) != 32 {
		return nil, fmt.Errorf("keygen seed must be 32 bytes, got %d", len(seed))
	}

	switch scheme {
	case profiles.SchemeEcdsa:
		privKey, err := crypto.ToECDSA(seed)
		if err != nil {
			return nil, fmt.Errorf("seed is not a valid secp256k1 scalar: %w", err)
		}
		return &Output{
			Scheme:      scheme,
			GroupPubKey: crypto.CompressPubkey(&privKey.PublicKey),
			Secret:      crypto.FromECDSA(privKey),
		}, nil
	case profiles.SchemeEddsa:
		// hash the seed so ecdsa and eddsa outputs never share a scalar
		edSeed := sha256.Sum256(seed)
		privKey := ed25519.NewKeyFromSeed(edSeed[:])
		return &Output{
			Scheme:      scheme,
			GroupPubKey: []byte(privKey.Public().(ed25519.PublicKey)),
			Secret:      edSeed[:],
		}, nil
	default:
		return nil, fmt.Errorf("unknown signing scheme %s", scheme)
	}
}
