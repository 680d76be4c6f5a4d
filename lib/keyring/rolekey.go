package keyring

import (
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// ===== constants =====

// Recovery byte appended to attestation signatures. The chain verifies
// the 64 byte [R || S] part only and never recovers the signer, so the
// byte is a fixed placeholder rather than a computed recovery id.
const AttestRecoveryByte = byte(0x00)

const AttestSigLength = 65

var (
	ErrInvalidSeedLength = errors.New("role seed must be 32 bytes")
	ErrInvalidSigLength  = errors.New("attestation signature must be 65 bytes")
)

// ===== role keys =====

// RoleKey is a secondary secp256k1 key pair registered against a
// profile. It attests key generation outputs; it never signs
// transactions, that stays with the identity key.
type RoleKey struct {
	priv *ecdsa.PrivateKey
	seed []byte
}

func RoleKeyFromSeed(seedHex string) (*RoleKey, error) {
	seed, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, fmt.Errorf("failed to decode role seed: %w", err)
	}

	if len(seed) != 32 {
		return nil, ErrInvalidSeedLength
	}

	priv, err := crypto.ToECDSA(seed)
	if err != nil {
		return nil, fmt.Errorf("failed to derive role key: %w", err)
	}

	return &RoleKey{priv: priv, seed: seed}, nil
}

func (r *RoleKey) SeedHex() string {
	return hex.EncodeToString(r.seed)
}

// PubKeyHex is the compressed public key, the value registered on chain.
func (r *RoleKey) PubKeyHex() string {
	return hex.EncodeToString(crypto.CompressPubkey(&r.priv.PublicKey))
}

// Attest signs keccak-256 of the payload and returns the 65 byte hex
// signature: 64 bytes [R || S] plus the placeholder recovery byte.
func (r *RoleKey) Attest(payload []byte) (string, error) {
	hash := crypto.Keccak256(payload)

	sig, err := crypto.Sign(hash, r.priv)
	if err != nil {
		return "", fmt.Errorf("failed to sign attestation: %w", err)
	}

	sig[64] = AttestRecoveryByte

	return hex.EncodeToString(sig), nil
}

// VerifyAttestation checks the first 64 bytes of a 65 byte attestation
// against the compressed role public key over keccak-256 of the payload.
func VerifyAttestation(pubKeyHex string, payload []byte, sigHex string) (bool, error) {
	pubKey, err := hex.DecodeString(pubKeyHex)
	if err != nil {
		return false, fmt.Errorf("failed to decode role public key: %w", err)
	}

	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return false, fmt.Errorf("failed to decode attestation: %w", err)
	}

	if len(sig) != AttestSigLength {
		return false, ErrInvalidSigLength
	}

	hash := crypto.Keccak256(payload)

	// VerifySignature wants the 64 byte form without the recovery byte
	return crypto.VerifySignature(pubKey, hash, sig[:64]), nil
}
