package main

import (
	"context"
	"fmt"
	"os"
	"path"
	"strconv"

	"tessnet-demo/lib/chain"
	"tessnet-demo/lib/keyring"
	"tessnet-demo/lib/logger"
	"tessnet-demo/lib/utils"
	"tessnet-demo/modules/aggregate"
	"tessnet-demo/modules/devnet"
	"tessnet-demo/modules/dkg"
	"tessnet-demo/modules/jobs"
	"tessnet-demo/modules/profiles"
)

// Fixed demo parameters. Everything below is a published devnet
// constant so re-runs always derive the same keys.
const (
	aliceRoleSeed = "3a2d1f0b4c5e6d7a8b9c0d1e2f3a4b5c6d7e8f901234567890abcdef12345678"
	bobRoleSeed   = "9f8e7d6c5b4a39281706f5e4d3c2b1a0ffeeddccbbaa99887766554433221100"
	keygenSeed    = "0101010101010101010101010101010101010101010101010101010101010101"

	jobThreshold = 1
	jobTTLBlocks = 60
)

func main() {
	args, err := ParseArgs()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	chain.RegisterTypes()
	log := logger.PrefixedLogger{Prefix: "dkg-demo"}

	rpcConf := chain.NewRPCConfig(args.dataDir)
	client := chain.NewClient(rpcConf, log)

	plugins := []aggregate.Plugin{rpcConf}
	var node *devnet.Devnet
	if args.embedded {
		devConf := devnet.NewConfig(args.dataDir)
		node = devnet.New(devConf, log)
		plugins = append(plugins, devConf, node)
	}
	plugins = append(plugins, client)

	a := aggregate.New(plugins)
	if err := a.Init(); err != nil {
		fmt.Println("failed to init plugins:", err)
		os.Exit(1)
	}
	if args.endpoint != "" {
		if err := rpcConf.SetEndpoint(args.endpoint); err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
	}

	ctx := context.Background()
	if _, err := a.Start().Await(ctx); err != nil {
		fmt.Println("failed to start:", err)
		os.Exit(1)
	}

	err = runDemo(ctx, client, args, log)

	if stopErr := a.Stop(); stopErr != nil {
		fmt.Println("shutdown:", stopErr)
	}
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	os.Exit(0)
}

// runDemo is the whole exercise: strictly sequential, one transaction
// in flight at a time, each submission suspended on its inclusion.
func runDemo(ctx context.Context, client *chain.Client, args args, log logger.Logger) error {
	if _, err := client.Ready().Await(ctx); err != nil {
		return err
	}

	alice, err := keyring.Alice()
	if err != nil {
		return err
	}
	bob, err := keyring.Bob()
	if err != nil {
		return err
	}
	aliceRole, err := keyring.RoleKeyFromSeed(aliceRoleSeed)
	if err != nil {
		return err
	}
	bobRole, err := keyring.RoleKeyFromSeed(bobRoleSeed)
	if err != nil {
		return err
	}

	fmt.Println("alice:", alice.DID().String())
	fmt.Println("  role seed:", aliceRole.SeedHex())
	fmt.Println("  role key: ", aliceRole.PubKeyHex())
	fmt.Println("bob:  ", bob.DID().String())
	fmt.Println("  role seed:", bobRole.SeedHex())
	fmt.Println("  role key: ", bobRole.PubKeyHex())

	aliceCreator := &chain.LiveTransactionCreator{
		TransactionBroadcaster: chain.TransactionBroadcaster{
			Client:   client,
			Provider: alice.Provider(),
			Did:      alice.DID(),
			Ctx:      ctx,
		},
	}
	bobCreator := &chain.LiveTransactionCreator{
		TransactionBroadcaster: chain.TransactionBroadcaster{
			Client:   client,
			Provider: bob.Provider(),
			Did:      bob.DID(),
			Ctx:      ctx,
		},
	}

	fmt.Println("creating profile for alice...")
	if _, err := submit(ctx, aliceCreator, profileOp(alice, aliceRole)); err != nil {
		return fmt.Errorf("alice profile: %w", err)
	}
	fmt.Println("creating profile for bob...")
	if _, err := submit(ctx, bobCreator, profileOp(bob, bobRole)); err != nil {
		return fmt.Errorf("bob profile: %w", err)
	}

	expectedJobId, err := client.NextJobId(ctx)
	if err != nil {
		return err
	}
	fmt.Println("next job id:", expectedJobId)

	permitted := alice.DID().String()
	participants := utils.Map([]*keyring.Identity{alice, bob}, func(id *keyring.Identity) string {
		return id.DID().String()
	})
	fmt.Println("submitting keygen job...")
	receipt, err := submit(ctx, aliceCreator, &jobs.SubmitJob{
		Submitter:       alice.DID().String(),
		Scheme:          profiles.SchemeEcdsa,
		Participants:    participants,
		Threshold:       jobThreshold,
		PermittedCaller: &permitted,
		TTLBlocks:       jobTTLBlocks,
	})
	if err != nil {
		return fmt.Errorf("submit job: %w", err)
	}

	jobId, err := jobIdFromEvents(receipt.Events)
	if err != nil {
		return err
	}
	fmt.Println("assigned job id:", jobId)
	if jobId != expectedJobId {
		return fmt.Errorf("assigned job id %d does not match pre-read counter %d", jobId, expectedJobId)
	}

	out, err := produceKeygenOutput(ctx, args, jobId, log)
	if err != nil {
		return err
	}
	fmt.Println("group public key:", out.GroupPubKeyHex())

	resultOp, err := jobs.BuildResult(jobId, alice.DID().String(), out.GroupPubKey, []*keyring.RoleKey{aliceRole, bobRole})
	if err != nil {
		return err
	}

	fmt.Println("submitting job result...")
	if _, err := submit(ctx, aliceCreator, resultOp); err != nil {
		return fmt.Errorf("submit result: %w", err)
	}

	fmt.Println("done")
	return nil
}

func profileOp(id *keyring.Identity, role *keyring.RoleKey) *profiles.CreateProfile {
	return &profiles.CreateProfile{
		Account: id.DID().String(),
		Records: []profiles.RoleRecord{{
			Scheme:     profiles.SchemeEcdsa,
			PubKey:     role.PubKeyHex(),
			StakeUnits: 1,
		}},
	}
}

// submit signs, broadcasts and suspends until the inclusion
// notification fires, then prints the block id and emitted events.
func submit(ctx context.Context, creator *chain.LiveTransactionCreator, ops ...chain.Operation) (chain.TxReceipt, error) {
	tx, err := creator.MakeTransaction(ops)
	if err != nil {
		return chain.TxReceipt{}, err
	}
	if err := creator.PopulateSigningProps(&tx); err != nil {
		return chain.TxReceipt{}, err
	}
	sTx, err := creator.SignFinal(tx)
	if err != nil {
		return chain.TxReceipt{}, err
	}

	txId, inclusion, err := creator.BroadcastWatch(sTx)
	if err != nil {
		return chain.TxReceipt{}, err
	}
	fmt.Println("  broadcast", txId)

	receipt, err := inclusion.Await(ctx)
	if err != nil {
		return chain.TxReceipt{}, err
	}

	fmt.Println("  included in block", receipt.BlockId, "at height", receipt.Height)
	for _, event := range receipt.Events {
		fmt.Printf("  event %s.%s %v\n", event.Module, event.Name, event.Data)
	}
	return *receipt, nil
}

func jobIdFromEvents(events []chain.Event) (uint64, error) {
	for _, event := range events {
		if event.Module == jobs.EventModule && event.Name == jobs.EventJobSubmitted {
			return strconv.ParseUint(event.Data["job_id"], 10, 64)
		}
	}
	return 0, fmt.Errorf("no %s event in receipt", jobs.EventJobSubmitted)
}

// produceKeygenOutput either derives the deterministic simulated output
// or runs a real two-party keygen and persists the resulting shares.
func produceKeygenOutput(ctx context.Context, args args, jobId uint64, log logger.Logger) (*dkg.Output, error) {
	if !args.liveDkg {
		return dkg.Simulate(keygenSeed, profiles.SchemeEcdsa)
	}

	fmt.Println("running live two-party keygen (this takes a while)...")
	session, err := dkg.NewLocalSession(profiles.SchemeEcdsa, []string{"alice", "bob"}, jobThreshold, log)
	if err != nil {
		return nil, err
	}
	out, err := session.Run(ctx)
	if err != nil {
		return nil, err
	}

	ks, err := dkg.OpenKeystore(path.Join(args.dataDir, "keystore"))
	if err != nil {
		return nil, err
	}
	defer ks.Close()
	if err := ks.Put(ctx, jobId, out); err != nil {
		return nil, err
	}
	fmt.Println("stored", len(out.Shares), "key shares")

	return out, nil
}
