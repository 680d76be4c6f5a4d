package devnet_test

import (
	"testing"
	"time"

	"tessnet-demo/lib/chain"
	"tessnet-demo/lib/keyring"
	"tessnet-demo/modules/devnet"
	"tessnet-demo/modules/dkg"
	"tessnet-demo/modules/jobs"
	"tessnet-demo/modules/profiles"

	"github.com/stretchr/testify/assert"
)

const (
	roleSeedA = "3a2d1f0b4c5e6d7a8b9c0d1e2f3a4b5c6d7e8f901234567890abcdef12345678"
	roleSeedB = "9f8e7d6c5b4a39281706f5e4d3c2b1a0ffeeddccbbaa99887766554433221100"
	keygenSd  = "0101010101010101010101010101010101010101010101010101010101010101"
)

func signedTx(t *testing.T, id *keyring.Identity, ops ...chain.Operation) chain.SerializedTransaction {
	t.Helper()
	chain.RegisterTypes()

	creator := chain.MockTransactionCreator{
		MockTransactionBroadcaster: chain.MockTransactionBroadcaster{
			Provider: id.Provider(),
			Did:      id.DID(),
		},
	}

	tx, err := creator.MakeTransaction(ops)
	assert.NoError(t, err)
	assert.NoError(t, creator.PopulateSigningProps(&tx))
	sTx, err := creator.SignFinal(tx)
	assert.NoError(t, err)
	return sTx
}

func createProfileOp(t *testing.T, id *keyring.Identity, roleKey *keyring.RoleKey) *profiles.CreateProfile {
	t.Helper()
	return &profiles.CreateProfile{
		Account: id.DID().String(),
		Records: []profiles.RoleRecord{{
			Scheme:     profiles.SchemeEcdsa,
			PubKey:     roleKey.PubKeyHex(),
			StakeUnits: 1,
		}},
	}
}

func registerBoth(t *testing.T, state *devnet.State) (*keyring.Identity, *keyring.Identity, *keyring.RoleKey, *keyring.RoleKey) {
	t.Helper()

	alice, err := keyring.Alice()
	assert.NoError(t, err)
	bob, err := keyring.Bob()
	assert.NoError(t, err)
	roleA, err := keyring.RoleKeyFromSeed(roleSeedA)
	assert.NoError(t, err)
	roleB, err := keyring.RoleKeyFromSeed(roleSeedB)
	assert.NoError(t, err)

	_, err = state.Enqueue(signedTx(t, alice, createProfileOp(t, alice, roleA)))
	assert.NoError(t, err)
	_, err = state.Enqueue(signedTx(t, bob, createProfileOp(t, bob, roleB)))
	assert.NoError(t, err)

	blk := state.ProduceBlock()
	assert.Len(t, blk.TxIds, 2)
	for _, receipt := range blk.Receipts {
		assert.Equal(t, chain.StatusInBlock, receipt.Status)
	}

	return alice, bob, roleA, roleB
}

func TestCreateProfile(t *testing.T) {
	state := devnet.NewState(nil)

	alice, err := keyring.Alice()
	assert.NoError(t, err)
	roleA, err := keyring.RoleKeyFromSeed(roleSeedA)
	assert.NoError(t, err)

	txId, err := state.Enqueue(signedTx(t, alice, createProfileOp(t, alice, roleA)))
	assert.NoError(t, err)

	blk := state.ProduceBlock()
	assert.Equal(t, uint64(2), blk.Height)
	assert.Equal(t, []string{txId}, blk.TxIds)
	assert.Len(t, blk.Receipts, 1)
	assert.Equal(t, chain.StatusInBlock, blk.Receipts[0].Status)
	assert.Equal(t, blk.Id, blk.Receipts[0].BlockId)
	assert.Equal(t, []chain.Event{{
		Module: profiles.EventModule,
		Name:   profiles.EventProfileCreated,
		Data:   map[string]string{"account": alice.DID().String()},
	}}, blk.Receipts[0].Events)

	profile := state.ProfileOf(alice.DID().String())
	assert.NotNil(t, profile)
	assert.Equal(t, uint64(2), profile.CreatedHeight)
	roleKey, ok := profile.RoleKeyFor(profiles.SchemeEcdsa)
	assert.True(t, ok)
	assert.Equal(t, roleA.PubKeyHex(), roleKey)

	// second registration for the same account bounces at broadcast
	_, err = state.Enqueue(signedTx(t, alice, createProfileOp(t, alice, roleA)))
	assert.ErrorIs(t, err, devnet.ErrProfileExists)
}

func TestEnvelopeValidation(t *testing.T) {
	state := devnet.NewState(nil)

	alice, err := keyring.Alice()
	assert.NoError(t, err)
	bob, err := keyring.Bob()
	assert.NoError(t, err)
	roleA, err := keyring.RoleKeyFromSeed(roleSeedA)
	assert.NoError(t, err)

	// bob signing an op that requires alice's auth
	sTx := signedTx(t, bob, createProfileOp(t, alice, roleA))
	_, err = state.Enqueue(sTx)
	assert.ErrorIs(t, err, devnet.ErrBadSignature)

	// corrupted signature bytes
	sTx = signedTx(t, alice, createProfileOp(t, alice, roleA))
	sTx.Sig[len(sTx.Sig)-1] ^= 0xff
	_, err = state.Enqueue(sTx)
	assert.Error(t, err)

	// replay after inclusion
	sTx = signedTx(t, alice, createProfileOp(t, alice, roleA))
	_, err = state.Enqueue(sTx)
	assert.NoError(t, err)
	state.ProduceBlock()
	_, err = state.Enqueue(sTx)
	assert.ErrorIs(t, err, devnet.ErrTxReplayed)
}

func TestJobLifecycle(t *testing.T) {
	state := devnet.NewState(nil)
	alice, bob, roleA, roleB := registerBoth(t, state)

	assert.Equal(t, uint64(1), state.NextJobId())

	permitted := alice.DID().String()
	jobOp := &jobs.SubmitJob{
		Submitter:       alice.DID().String(),
		Scheme:          profiles.SchemeEcdsa,
		Participants:    []string{alice.DID().String(), bob.DID().String()},
		Threshold:       1,
		PermittedCaller: &permitted,
		TTLBlocks:       20,
	}
	_, err := state.Enqueue(signedTx(t, alice, jobOp))
	assert.NoError(t, err)

	blk := state.ProduceBlock()
	assert.Len(t, blk.Receipts, 1)
	assert.Equal(t, chain.StatusInBlock, blk.Receipts[0].Status)
	assert.Equal(t, "1", blk.Receipts[0].Events[0].Data["job_id"])

	job := state.JobOf(1)
	assert.NotNil(t, job)
	assert.Equal(t, blk.Height+20, job.ExpiryHeight)
	assert.Equal(t, uint64(2), state.NextJobId())

	// bob may not submit the result, alice is the permitted caller
	out, err := dkg.Simulate(keygenSd, profiles.SchemeEcdsa)
	assert.NoError(t, err)
	groupKey := out.GroupPubKeyHex()

	sigA, err := roleA.Attest(out.GroupPubKey)
	assert.NoError(t, err)
	sigB, err := roleB.Attest(out.GroupPubKey)
	assert.NoError(t, err)

	badCaller := &jobs.SubmitResult{
		Caller:      bob.DID().String(),
		JobId:       1,
		GroupPubKey: groupKey,
		Signatures:  []string{sigA, sigB},
	}
	_, err = state.Enqueue(signedTx(t, bob, badCaller))
	assert.ErrorIs(t, err, devnet.ErrCallerNotAllowed)

	resultOp := &jobs.SubmitResult{
		Caller:      alice.DID().String(),
		JobId:       1,
		GroupPubKey: groupKey,
		Signatures:  []string{sigA, sigB},
	}
	_, err = state.Enqueue(signedTx(t, alice, resultOp))
	assert.NoError(t, err)

	blk = state.ProduceBlock()
	assert.Len(t, blk.Receipts, 1)
	assert.Equal(t, chain.StatusInBlock, blk.Receipts[0].Status)
	assert.Equal(t, jobs.EventResultSubmitted, blk.Receipts[0].Events[0].Name)

	job = state.JobOf(1)
	assert.NotNil(t, job.Result)
	assert.Equal(t, groupKey, job.Result.GroupPubKey)

	// a resolved job takes no second result
	_, err = state.Enqueue(signedTx(t, alice, resultOp))
	assert.Error(t, err)
}

func TestResultAttestationChecked(t *testing.T) {
	state := devnet.NewState(nil)
	alice, bob, roleA, _ := registerBoth(t, state)

	_, err := state.Enqueue(signedTx(t, alice, &jobs.SubmitJob{
		Submitter:    alice.DID().String(),
		Scheme:       profiles.SchemeEcdsa,
		Participants: []string{alice.DID().String(), bob.DID().String()},
		Threshold:    1,
		TTLBlocks:    20,
	}))
	assert.NoError(t, err)
	state.ProduceBlock()

	out, err := dkg.Simulate(keygenSd, profiles.SchemeEcdsa)
	assert.NoError(t, err)

	sigA, err := roleA.Attest(out.GroupPubKey)
	assert.NoError(t, err)

	// bob's slot signed by alice's role key must not verify
	_, err = state.Enqueue(signedTx(t, alice, &jobs.SubmitResult{
		Caller:      alice.DID().String(),
		JobId:       1,
		GroupPubKey: out.GroupPubKeyHex(),
		Signatures:  []string{sigA, sigA},
	}))
	assert.Error(t, err)
}

func TestExpiredJobRejectsResult(t *testing.T) {
	state := devnet.NewState(nil)
	alice, bob, roleA, roleB := registerBoth(t, state)

	_, err := state.Enqueue(signedTx(t, alice, &jobs.SubmitJob{
		Submitter:    alice.DID().String(),
		Scheme:       profiles.SchemeEcdsa,
		Participants: []string{alice.DID().String(), bob.DID().String()},
		Threshold:    1,
		TTLBlocks:    2,
	}))
	assert.NoError(t, err)

	blk := state.ProduceBlock()
	assert.Equal(t, chain.StatusInBlock, blk.Receipts[0].Status)
	job := state.JobOf(1)
	assert.Equal(t, blk.Height+2, job.ExpiryHeight)

	// idle blocks until the window is gone
	for state.Props().HeadBlockNumber <= job.ExpiryHeight {
		state.ProduceBlock()
	}

	out, err := dkg.Simulate(keygenSd, profiles.SchemeEcdsa)
	assert.NoError(t, err)
	sigA, err := roleA.Attest(out.GroupPubKey)
	assert.NoError(t, err)
	sigB, err := roleB.Attest(out.GroupPubKey)
	assert.NoError(t, err)

	_, err = state.Enqueue(signedTx(t, alice, &jobs.SubmitResult{
		Caller:      alice.DID().String(),
		JobId:       1,
		GroupPubKey: out.GroupPubKeyHex(),
		Signatures:  []string{sigA, sigB},
	}))
	assert.ErrorIs(t, err, devnet.ErrJobExpired)
}

func TestExpiredTransactionReceipt(t *testing.T) {
	now := time.Now().UTC()
	current := now
	state := devnet.NewState(func() time.Time { return current })

	alice, err := keyring.Alice()
	assert.NoError(t, err)
	roleA, err := keyring.RoleKeyFromSeed(roleSeedA)
	assert.NoError(t, err)

	chain.RegisterTypes()
	creator := chain.MockTransactionCreator{
		MockTransactionBroadcaster: chain.MockTransactionBroadcaster{
			Provider: alice.Provider(),
			Did:      alice.DID(),
		},
	}
	tx, err := creator.MakeTransaction([]chain.Operation{createProfileOp(t, alice, roleA)})
	assert.NoError(t, err)
	tx.Headers.Expiration = now.Add(30 * time.Second).Format(chain.TimeFormat)
	sTx, err := creator.SignFinal(tx)
	assert.NoError(t, err)

	// alive against the genesis head, so broadcast accepts it
	txId, err := state.Enqueue(sTx)
	assert.NoError(t, err)

	// the next block lands past the expiration
	current = now.Add(2 * time.Minute)
	blk := state.ProduceBlock()
	assert.Empty(t, blk.TxIds)
	assert.Len(t, blk.Receipts, 1)
	assert.Equal(t, txId, blk.Receipts[0].Id)
	assert.Equal(t, chain.StatusExpired, blk.Receipts[0].Status)
	assert.Nil(t, state.ProfileOf(alice.DID().String()))
}

func TestJobNeedsRegisteredParticipants(t *testing.T) {
	state := devnet.NewState(nil)

	alice, err := keyring.Alice()
	assert.NoError(t, err)
	bob, err := keyring.Bob()
	assert.NoError(t, err)

	_, err = state.Enqueue(signedTx(t, alice, &jobs.SubmitJob{
		Submitter:    alice.DID().String(),
		Scheme:       profiles.SchemeEcdsa,
		Participants: []string{alice.DID().String(), bob.DID().String()},
		Threshold:    1,
		TTLBlocks:    20,
	}))
	assert.ErrorIs(t, err, devnet.ErrProfileMissing)
}
