package dids

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	blocks "github.com/ipfs/go-block-format"
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multibase"
)

var (
	ErrInvalidPrivateKeySize = errors.New("invalid private key size")
	ErrInvalidDID            = errors.New("invalid DID format")
	ErrInvalidSignature      = errors.New("invalid signature")
)

type KeyDID string

var _ DID = KeyDID("")

func NewDID(pubKey ed25519.PublicKey) (KeyDID, error) {
	// prefix the pub key with the indicator bytes for ed25519 keys
	data := append([]byte{0xED, 0x01}, pubKey...)

	// base 58 encode key
	encodedKey, err := multibase.Encode(multibase.Base58BTC, data)
	if err != nil {
		return "", err
	}

	// prepend the did:key: prefix
	did := KeyDID("did:key:" + encodedKey)

	return did, nil
}

func ParseKeyDID(did string) (KeyDID, error) {
	_, err := PubKeyFromKeyDID(did)
	if err != nil {
		return "", err
	}
	return KeyDID(did), nil
}

func PubKeyFromKeyDID(did string) (ed25519.PublicKey, error) {
	// remove did prefix
	if !strings.HasPrefix(did, "did:key:") {
		return nil, fmt.Errorf("invalid DID format: missing did:key: prefix")
	}

	// remove 'did:key:' (8 chars)
	encodedKey := did[8:]

	// decode base 58 string including the z prefix
	_, decodedBytes, err := multibase.Decode(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decode multibase string: %w", err)
	}

	// remove the bytes and confirm they are there and the ed25519 indicator bytes
	if len(decodedBytes) < 2 || !bytes.Equal(decodedBytes[:2], []byte{0xED, 0x01}) {
		return nil, fmt.Errorf("invalid multicodec prefix: expected 0xED01 for Ed25519")
	}
	pubKey := decodedBytes[2:]

	if len(pubKey) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid ed25519 public key size: %d", len(pubKey))
	}

	return ed25519.PublicKey(pubKey), nil
}

func (d KeyDID) String() string {
	return string(d)
}

// Verify implements DID. The signature covers the CID of the block, so
// two encodings of the same payload verify against the same signature.
func (d KeyDID) Verify(data blocks.Block, sig string) (bool, error) {
	pubKey, err := PubKeyFromKeyDID(string(d))
	if err != nil {
		return false, err
	}

	sigBytes, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return false, fmt.Errorf("failed to decode signature: %w", err)
	}

	if len(sigBytes) != ed25519.SignatureSize {
		return false, ErrInvalidSignature
	}

	return ed25519.Verify(pubKey, data.Cid().Bytes(), sigBytes), nil
}

// ===== provider =====

// key provider for did ed25519 keys
type KeyProvider struct {
	pubKey  ed25519.PublicKey
	privKey ed25519.PrivateKey
	did     KeyDID
}

var _ Provider[cid.Cid] = &KeyProvider{}

func (p *KeyProvider) DID() KeyDID {
	return p.did
}

// create new key provider
func NewKeyProvider(privKey ed25519.PrivateKey) (*KeyProvider, error) {
	if len(privKey) != ed25519.PrivateKeySize {
		return nil, ErrInvalidPrivateKeySize
	}

	// Get the pub key from priv
	pubKey := privKey.Public().(ed25519.PublicKey)

	// create a new DID
	did, err := NewDID(pubKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create DID: %w", err)
	}

	// validate the DID by attempting to extract the public key
	extractedPubKey, err := PubKeyFromKeyDID(did.String())
	if err != nil {
		return nil, fmt.Errorf("failed to validate DID: %w", err)
	}

	// ensure the extracted public key matches the original
	if !bytes.Equal(pubKey, extractedPubKey) {
		return nil, fmt.Errorf("extracted public key does not match original")
	}

	// return new provider for keys
	return &KeyProvider{
		pubKey:  pubKey,
		privKey: privKey,
		did:     did,
	}, nil
}

// signs the CID of a payload with the priv key
func (p *KeyProvider) Sign(data cid.Cid) (string, error) {
	sig := ed25519.Sign(p.privKey, data.Bytes())
	return base64.RawURLEncoding.EncodeToString(sig), nil
}
