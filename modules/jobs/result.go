package jobs

import (
	"encoding/hex"
	"fmt"

	"tessnet-demo/lib/keyring"
)

// BuildResult assembles the submit_result op for a finished keygen: the
// group public key in compressed form plus one attestation per signer,
// in signer order.
func BuildResult(jobId uint64, caller string, groupPubKey []byte, signers []*keyring.RoleKey) (*SubmitResult, error) {
	if len(groupPubKey) == 0 {
		return nil, fmt.Errorf("empty group public key")
	}
	if len(signers) == 0 {
		return nil, fmt.Errorf("no signers")
	}

	sigs := make([]string, len(signers))
	for i, signer := range signers {
		sig, err := signer.Attest(groupPubKey)
		if err != nil {
			return nil, fmt.Errorf("failed to attest with signer %d: %w", i, err)
		}
		sigs[i] = sig
	}

	return &SubmitResult{
		Caller:      caller,
		JobId:       jobId,
		GroupPubKey: hex.EncodeToString(groupPubKey),
		Signatures:  sigs,
	}, nil
}

// VerifyAttestations checks each signature against the matching role
// key. Lengths must line up already; the node resolves role keys from
// the participant profiles before calling this.
func VerifyAttestations(groupPubKeyHex string, roleKeys []string, sigs []string) error {
	if len(roleKeys) != len(sigs) {
		return fmt.Errorf("signature count %d does not match participant count %d", len(sigs), len(roleKeys))
	}

	groupPubKey, err := hex.DecodeString(groupPubKeyHex)
	if err != nil {
		return fmt.Errorf("invalid group public key hex: %w", err)
	}

	for i, roleKey := range roleKeys {
		ok, err := keyring.VerifyAttestation(roleKey, groupPubKey, sigs[i])
		if err != nil {
			return fmt.Errorf("attestation %d malformed: %w", i, err)
		}
		if !ok {
			return fmt.Errorf("attestation %d does not verify against role key %s", i, roleKey)
		}
	}

	return nil
}
