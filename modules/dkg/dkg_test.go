// Keygen tests: run with
//
//	go test -short ./modules/dkg/...   # unit tests only, skips the live keygen rounds
//	go test ./modules/dkg/...          # everything; the live rounds take a while
package dkg_test

import (
	"context"
	"testing"
	"time"

	"tessnet-demo/lib/keyring"
	"tessnet-demo/lib/logger"
	"tessnet-demo/modules/dkg"
	"tessnet-demo/modules/profiles"

	"github.com/stretchr/testify/assert"
)

const testSeed = "3a2d1f0b4c5e6d7a8b9c0d1e2f3a4b5c6d7e8f901234567890abcdef12345678"

func TestSimulateDeterministic(t *testing.T) {
	a, err := dkg.Simulate(testSeed, profiles.SchemeEcdsa)
	assert.Nil(t, err)
	b, err := dkg.Simulate(testSeed, profiles.SchemeEcdsa)
	assert.Nil(t, err)

	assert.Equal(t, a.GroupPubKey, b.GroupPubKey)
	assert.Equal(t, 33, len(a.GroupPubKey))
	assert.NotEmpty(t, a.Secret)
}

func TestSimulateEddsa(t *testing.T) {
	out, err := dkg.Simulate(testSeed, profiles.SchemeEddsa)
	assert.Nil(t, err)
	assert.Equal(t, 32, len(out.GroupPubKey))

	// the two schemes must never yield related keys for the same seed
	ec, err := dkg.Simulate(testSeed, profiles.SchemeEcdsa)
	assert.Nil(t, err)
	assert.NotEqual(t, ec.GroupPubKey[1:], out.GroupPubKey)
}

func TestSimulateMatchesRoleKeyDerivation(t *testing.T) {
	// same seed through the role key path lands on the same point
	roleKey, err := keyring.RoleKeyFromSeed(testSeed)
	assert.Nil(t, err)

	out, err := dkg.Simulate(testSeed, profiles.SchemeEcdsa)
	assert.Nil(t, err)
	assert.Equal(t, roleKey.PubKeyHex(), out.GroupPubKeyHex())
}

func TestSimulateRejectsBadSeed(t *testing.T) {
	_, err := dkg.Simulate("not-hex", profiles.SchemeEcdsa)
	assert.NotNil(t, err)

	_, err = dkg.Simulate("abcd", profiles.SchemeEcdsa)
	assert.NotNil(t, err)

	_, err = dkg.Simulate(testSeed, "tss-bls")
	assert.NotNil(t, err)
}

func TestKeystoreRoundTrip(t *testing.T) {
	ks, err := dkg.OpenKeystore(t.TempDir() + "/keys")
	assert.Nil(t, err)
	defer ks.Close()

	ctx := context.Background()

	missing, err := ks.Get(ctx, 42)
	assert.Nil(t, err)
	assert.True(t, missing.IsNone())

	out, err := dkg.Simulate(testSeed, profiles.SchemeEcdsa)
	assert.Nil(t, err)
	assert.Nil(t, ks.Put(ctx, 42, out))

	stored, err := ks.Get(ctx, 42)
	assert.Nil(t, err)
	assert.True(t, stored.IsSome())
	assert.Equal(t, out.GroupPubKey, stored.Unwrap().GroupPubKey)
	assert.Equal(t, out.Scheme, stored.Unwrap().Scheme)
}

func TestNewLocalSessionValidation(t *testing.T) {
	log := &logger.PrefixedLogger{Prefix: "keygen-test"}

	_, err := dkg.NewLocalSession("tss-bls", []string{"a", "b"}, 1, log)
	assert.NotNil(t, err)

	_, err = dkg.NewLocalSession(profiles.SchemeEcdsa, []string{"a"}, 1, log)
	assert.NotNil(t, err)

	_, err = dkg.NewLocalSession(profiles.SchemeEcdsa, []string{"a", "b"}, 2, log)
	assert.NotNil(t, err)

	_, err = dkg.NewLocalSession(profiles.SchemeEcdsa, []string{"a", "b"}, 0, log)
	assert.NotNil(t, err)
}

func TestLocalKeygenEddsa(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping live keygen round")
	}

	session, err := dkg.NewLocalSession(profiles.SchemeEddsa, []string{"alice", "bob"}, 1, &logger.PrefixedLogger{Prefix: "keygen-test"})
	assert.Nil(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	out, err := session.Run(ctx)
	assert.Nil(t, err)
	assert.NotNil(t, out)
	assert.Equal(t, 32, len(out.GroupPubKey))
	assert.Equal(t, 2, len(out.Shares))
	assert.NotEmpty(t, out.Shares["alice"])
	assert.NotEmpty(t, out.Shares["bob"])
}

func TestLocalKeygenEcdsa(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping live keygen round")
	}

	session, err := dkg.NewLocalSession(profiles.SchemeEcdsa, []string{"alice", "bob"}, 1, &logger.PrefixedLogger{Prefix: "keygen-test"})
	assert.Nil(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	out, err := session.Run(ctx)
	assert.Nil(t, err)
	assert.NotNil(t, out)
	assert.Equal(t, 33, len(out.GroupPubKey))
	assert.Equal(t, 2, len(out.Shares))
}
