package keyring

import (
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"
	"strings"

	"tessnet-demo/lib/dids"
)

// Devnet phrases. These are published on purpose: every tessnet devnet
// recognizes the same two accounts, the same way every Hardhat chain
// ships the same funded keys. Never reuse on a network with real value.
const (
	AlicePhrase = "alice tessnet devnet owner phrase fixed for local testing"
	BobPhrase   = "bob tessnet devnet owner phrase fixed for local testing"
)

// Identity is an on chain account: a name for logging plus the ed25519
// key behind its did:key address.
type Identity struct {
	Name     string
	provider *dids.KeyProvider
	pubKey   ed25519.PublicKey
}

// FromPhrase derives an identity deterministically from a seed phrase.
// The phrase is lowercased and whitespace collapsed before hashing so
// the same words always land on the same account.
func FromPhrase(name string, phrase string) (*Identity, error) {
	normalized := strings.Join(strings.Fields(strings.ToLower(phrase)), " ")
	if normalized == "" {
		return nil, fmt.Errorf("empty seed phrase")
	}

	seed := sha256.Sum256([]byte(normalized))
	privKey := ed25519.NewKeyFromSeed(seed[:])

	provider, err := dids.NewKeyProvider(privKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create key provider: %w", err)
	}

	return &Identity{
		Name:     name,
		provider: provider,
		pubKey:   privKey.Public().(ed25519.PublicKey),
	}, nil
}

func Alice() (*Identity, error) {
	return FromPhrase("alice", AlicePhrase)
}

func Bob() (*Identity, error) {
	return FromPhrase("bob", BobPhrase)
}

func (i *Identity) DID() dids.KeyDID {
	return i.provider.DID()
}

func (i *Identity) Provider() *dids.KeyProvider {
	return i.provider
}

func (i *Identity) PubKey() ed25519.PublicKey {
	return i.pubKey
}
