package jobs

import (
	"encoding/hex"
	"testing"

	"tessnet-demo/lib/chain"
	"tessnet-demo/lib/keyring"
	"tessnet-demo/modules/profiles"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/assert"
)

const (
	testSeedA = "3a2d1f0b4c5e6d7a8b9c0d1e2f3a4b5c6d7e8f901234567890abcdef12345678"
	testSeedB = "9f8e7d6c5b4a39281706f5e4d3c2b1a0ffeeddccbbaa99887766554433221100"
)

func testParticipants(t *testing.T) (string, string) {
	alice, err := keyring.Alice()
	assert.Nil(t, err)
	bob, err := keyring.Bob()
	assert.Nil(t, err)
	return alice.DID().String(), bob.DID().String()
}

func validSubmitJob(t *testing.T) *SubmitJob {
	alice, bob := testParticipants(t)
	return JobDescriptor{
		Scheme:          profiles.SchemeEcdsa,
		Participants:    []string{alice, bob},
		Threshold:       1,
		PermittedCaller: optional.Some(alice),
		TTLBlocks:       30,
	}.ToOp(alice)
}

func TestSubmitJobValid(t *testing.T) {
	op := validSubmitJob(t)
	assert.Nil(t, op.Validate())
	assert.Equal(t, chain.OpSubmitJob, op.OpType())
	assert.Equal(t, []string{op.Submitter}, op.RequiredAuths())

	payload, err := op.OpPayload()
	assert.Nil(t, err)

	// decode what actually goes on the wire
	decoded := SubmitJob{}
	assert.Nil(t, chain.DecodeOpPayload(chain.TransactionOp{Type: op.OpType(), Payload: payload}, &decoded))
	assert.Equal(t, op.Scheme, decoded.Scheme)
	assert.Equal(t, op.Participants, decoded.Participants)
	assert.Equal(t, op.Threshold, decoded.Threshold)
	assert.NotNil(t, decoded.PermittedCaller)
	assert.Equal(t, *op.PermittedCaller, *decoded.PermittedCaller)
}

func TestDescriptorWithoutPermittedCaller(t *testing.T) {
	alice, bob := testParticipants(t)
	op := JobDescriptor{
		Scheme:       profiles.SchemeEddsa,
		Participants: []string{alice, bob},
		Threshold:    1,
		TTLBlocks:    30,
	}.ToOp(bob)

	assert.Nil(t, op.PermittedCaller)
	assert.Nil(t, op.Validate())
}

func TestSubmitJobRejectsThresholdTooHigh(t *testing.T) {
	op := validSubmitJob(t)
	op.Threshold = 2
	assert.NotNil(t, op.Validate())
}

func TestSubmitJobRejectsDuplicateParticipant(t *testing.T) {
	op := validSubmitJob(t)
	op.Participants = []string{op.Submitter, op.Submitter}
	assert.NotNil(t, op.Validate())
}

func TestSubmitJobRejectsSingleParticipant(t *testing.T) {
	op := validSubmitJob(t)
	op.Participants = op.Participants[:1]
	op.Threshold = 0
	assert.NotNil(t, op.Validate())
}

func TestSubmitJobRejectsBadTTL(t *testing.T) {
	op := validSubmitJob(t)
	op.TTLBlocks = 1
	assert.NotNil(t, op.Validate())

	op = validSubmitJob(t)
	op.TTLBlocks = 100000
	assert.NotNil(t, op.Validate())
}

func TestSubmitJobRejectsUnknownScheme(t *testing.T) {
	op := validSubmitJob(t)
	op.Scheme = "tss-bls"
	assert.NotNil(t, op.Validate())
	assert.False(t, SchemeKnown(op.Scheme))
}

func TestCallerPermitted(t *testing.T) {
	alice, bob := testParticipants(t)

	restricted := Job{Participants: []string{alice, bob}, PermittedCaller: &alice}
	assert.True(t, restricted.CallerPermitted(alice))
	assert.False(t, restricted.CallerPermitted(bob))

	open := Job{Participants: []string{alice, bob}}
	assert.True(t, open.CallerPermitted(alice))
	assert.True(t, open.CallerPermitted(bob))
	assert.False(t, open.CallerPermitted("did:key:zStranger"))
}

func TestBuildResultAttests(t *testing.T) {
	keyA, err := keyring.RoleKeyFromSeed(testSeedA)
	assert.Nil(t, err)
	keyB, err := keyring.RoleKeyFromSeed(testSeedB)
	assert.Nil(t, err)

	alice, _ := testParticipants(t)
	groupPubKey, err := hex.DecodeString("02" + testSeedA)
	assert.Nil(t, err)

	result, err := BuildResult(7, alice, groupPubKey, []*keyring.RoleKey{keyA, keyB})
	assert.Nil(t, err)
	assert.Nil(t, result.Validate())
	assert.Equal(t, uint64(7), result.JobId)
	assert.Equal(t, hex.EncodeToString(groupPubKey), result.GroupPubKey)
	assert.Equal(t, 2, len(result.Signatures))
	for _, sig := range result.Signatures {
		assert.Equal(t, keyring.AttestSigLength*2, len(sig))
	}

	roleKeys := []string{keyA.PubKeyHex(), keyB.PubKeyHex()}
	assert.Nil(t, VerifyAttestations(result.GroupPubKey, roleKeys, result.Signatures))

	// swapped order pairs each sig with the wrong key
	assert.NotNil(t, VerifyAttestations(result.GroupPubKey, roleKeys, []string{result.Signatures[1], result.Signatures[0]}))

	// count mismatch
	assert.NotNil(t, VerifyAttestations(result.GroupPubKey, roleKeys, result.Signatures[:1]))
}

func TestBuildResultRejectsEmpty(t *testing.T) {
	keyA, err := keyring.RoleKeyFromSeed(testSeedA)
	assert.Nil(t, err)

	_, err = BuildResult(1, "did:key:zCaller", nil, []*keyring.RoleKey{keyA})
	assert.NotNil(t, err)

	_, err = BuildResult(1, "did:key:zCaller", []byte{0x02}, nil)
	assert.NotNil(t, err)
}
