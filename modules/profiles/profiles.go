package profiles

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"tessnet-demo/lib/chain"

	"github.com/go-playground/validator/v10"
)

// role schemes a profile can register keys for
const (
	SchemeEcdsa = "tss-ecdsa"
	SchemeEddsa = "tss-eddsa"
)

// compressed key sizes per scheme, in bytes
const (
	ecdsaKeyLen = 33
	eddsaKeyLen = 32
)

var profileValidator = validator.New(validator.WithRequiredStructEnabled())

// RoleRecord registers one role key under a scheme. PubKey is the hex
// compressed public key, the value result signatures verify against.
type RoleRecord struct {
	Scheme     string `json:"scheme"      validate:"required,oneof=tss-ecdsa tss-eddsa"`
	PubKey     string `json:"pub_key"     validate:"required,hexadecimal"`
	StakeUnits uint64 `json:"stake_units" validate:"required,gt=0"`
}

func (r RoleRecord) Validate() error {
	if err := profileValidator.Struct(r); err != nil {
		return err
	}

	raw, err := hex.DecodeString(r.PubKey)
	if err != nil {
		return fmt.Errorf("role key is not hex: %w", err)
	}

	switch r.Scheme {
	case SchemeEcdsa:
		if len(raw) != ecdsaKeyLen {
			return fmt.Errorf("%s role key must be %d bytes, got %d", r.Scheme, ecdsaKeyLen, len(raw))
		}
	case SchemeEddsa:
		if len(raw) != eddsaKeyLen {
			return fmt.Errorf("%s role key must be %d bytes, got %d", r.Scheme, eddsaKeyLen, len(raw))
		}
	}

	return nil
}

// Profile is the chain's view of a registered account.
type Profile struct {
	Account       string       `json:"account"`
	Records       []RoleRecord `json:"records"`
	CreatedHeight uint64       `json:"created_height"`
}

// RoleKeyFor returns the registered key for a scheme, if any.
func (p *Profile) RoleKeyFor(scheme string) (string, bool) {
	for _, record := range p.Records {
		if record.Scheme == scheme {
			return record.PubKey, true
		}
	}
	return "", false
}

// ===== create_profile operation =====

type CreateProfile struct {
	Account string       `json:"account" validate:"required,startswith=did:key:"`
	Records []RoleRecord `json:"records" validate:"required,min=1,dive"`
}

var _ chain.Operation = &CreateProfile{}

func (op *CreateProfile) OpType() string {
	return chain.OpCreateProfile
}

func (op *CreateProfile) OpPayload() ([]byte, error) {
	if err := op.Validate(); err != nil {
		return nil, err
	}
	return chain.EncodeOpPayload(op)
}

func (op *CreateProfile) RequiredAuths() []string {
	return []string{op.Account}
}

func (op *CreateProfile) Validate() error {
	if err := profileValidator.Struct(op); err != nil {
		return err
	}
	for i, record := range op.Records {
		if err := record.Validate(); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}
	// one record per scheme
	seen := map[string]bool{}
	for _, record := range op.Records {
		if seen[record.Scheme] {
			return fmt.Errorf("duplicate record for scheme %s", record.Scheme)
		}
		seen[record.Scheme] = true
	}
	return nil
}

// ===== queries =====

// GetProfile fetches and decodes a profile, nil when the account has
// not registered.
func GetProfile(ctx context.Context, client *chain.Client, account string) (*Profile, error) {
	raw, err := client.GetProfileRaw(ctx, account)
	if err != nil {
		return nil, err
	}

	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	profile := Profile{}
	if err := json.Unmarshal(raw, &profile); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	return &profile, nil
}

// event names emitted by the profiles module
const (
	EventProfileCreated = "profile_created"
	EventModule         = "profiles"
)
