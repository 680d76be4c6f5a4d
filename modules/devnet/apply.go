package devnet

import (
	"errors"
	"fmt"
	"strconv"

	"tessnet-demo/lib/chain"
	"tessnet-demo/lib/dids"
	"tessnet-demo/modules/common"
	"tessnet-demo/modules/jobs"
	"tessnet-demo/modules/profiles"
)

var (
	ErrBadSignature      = errors.New("transaction signature does not verify")
	ErrUnknownOp         = errors.New("unknown operation type")
	ErrProfileExists     = errors.New("profile already registered")
	ErrProfileMissing    = errors.New("participant has no profile")
	ErrRoleKeyMissing    = errors.New("participant has no role key for scheme")
	ErrJobMissing        = errors.New("job does not exist")
	ErrJobExpired        = errors.New("job expired")
	ErrJobResolved       = errors.New("job already has a result")
	ErrCallerNotAllowed  = errors.New("caller may not submit this result")
	ErrAuthMissing       = errors.New("operation account not in required auths")
	ErrSignatureMismatch = errors.New("result signature count does not match participants")
)

// verifyEnvelope checks the envelope shape and that every required auth
// signed the transaction id.
func verifyEnvelope(shell chain.TransactionShell, sTx chain.SerializedTransaction) error {
	if shell.Type != chain.TxType {
		return fmt.Errorf("%w: unexpected type %q", ErrBadEnvelope, shell.Type)
	}
	if shell.Headers.NetId != common.NETWORK_ID {
		return ErrBadNetId
	}
	if len(shell.Headers.RequiredAuths) == 0 {
		return fmt.Errorf("%w: no required auths", ErrBadEnvelope)
	}
	if len(shell.Tx) == 0 {
		return fmt.Errorf("%w: no operations", ErrBadEnvelope)
	}

	sigPack := chain.SignaturePackage{}
	if err := common.DecodeCbor(sTx.Sig, &sigPack); err != nil {
		return fmt.Errorf("%w: bad signature package: %w", ErrBadEnvelope, err)
	}

	blk, err := chain.ShellBlock(sTx.Tx)
	if err != nil {
		return err
	}

	parsed, err := dids.ParseMany(shell.Headers.RequiredAuths)
	if err != nil {
		return fmt.Errorf("%w: bad auth: %w", ErrBadEnvelope, err)
	}

	for i, auth := range shell.Headers.RequiredAuths {
		verified := false
		for _, sig := range sigPack.Sigs {
			if sig.Kid != auth {
				continue
			}
			ok, err := parsed[i].Verify(blk, sig.Sig)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrBadSignature, err)
			}
			verified = ok
			break
		}
		if !verified {
			return fmt.Errorf("%w: no valid signature for %s", ErrBadSignature, auth)
		}
	}

	return nil
}

func (s *State) dryRunLocked(shell chain.TransactionShell) error {
	_, err := s.applyOpsLocked(shell, s.head.Height+1, false)
	return err
}

func (s *State) applyLocked(shell chain.TransactionShell, height uint64) ([]chain.Event, error) {
	return s.applyOpsLocked(shell, height, true)
}

// applyOpsLocked runs every operation in order. With commit false the
// state is only read, never written, so the same code path serves the
// broadcast-time dry run.
func (s *State) applyOpsLocked(shell chain.TransactionShell, height uint64, commit bool) ([]chain.Event, error) {
	auths := shell.Headers.RequiredAuths
	events := []chain.Event{}

	for i, op := range shell.Tx {
		var opEvents []chain.Event
		var err error

		switch op.Type {
		case chain.OpCreateProfile:
			opEvents, err = s.applyCreateProfile(auths, op, height, commit)
		case chain.OpSubmitJob:
			opEvents, err = s.applySubmitJob(auths, op, height, commit)
		case chain.OpSubmitResult:
			opEvents, err = s.applySubmitResult(auths, op, height, commit)
		default:
			err = fmt.Errorf("%w: %s", ErrUnknownOp, op.Type)
		}
		if err != nil {
			return nil, fmt.Errorf("op %d (%s): %w", i, op.Type, err)
		}
		events = append(events, opEvents...)
	}

	return events, nil
}

func authorized(auths []string, account string) bool {
	for _, auth := range auths {
		if auth == account {
			return true
		}
	}
	return false
}

func (s *State) applyCreateProfile(auths []string, op chain.TransactionOp, height uint64, commit bool) ([]chain.Event, error) {
	payload := profiles.CreateProfile{}
	if err := chain.DecodeOpPayload(op, &payload); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadEnvelope, err)
	}
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	if !authorized(auths, payload.Account) {
		return nil, ErrAuthMissing
	}
	if _, ok := s.profiles[payload.Account]; ok {
		return nil, ErrProfileExists
	}

	if commit {
		s.profiles[payload.Account] = &profiles.Profile{
			Account:       payload.Account,
			Records:       payload.Records,
			CreatedHeight: height,
		}
	}

	return []chain.Event{{
		Module: profiles.EventModule,
		Name:   profiles.EventProfileCreated,
		Data:   map[string]string{"account": payload.Account},
	}}, nil
}

func (s *State) applySubmitJob(auths []string, op chain.TransactionOp, height uint64, commit bool) ([]chain.Event, error) {
	payload := jobs.SubmitJob{}
	if err := chain.DecodeOpPayload(op, &payload); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadEnvelope, err)
	}
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	if !authorized(auths, payload.Submitter) {
		return nil, ErrAuthMissing
	}

	// every participant must have registered a key for the scheme
	for _, participant := range payload.Participants {
		profile, ok := s.profiles[participant]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrProfileMissing, participant)
		}
		if _, ok := profile.RoleKeyFor(payload.Scheme); !ok {
			return nil, fmt.Errorf("%w: %s (%s)", ErrRoleKeyMissing, participant, payload.Scheme)
		}
	}

	jobId := s.nextJobId
	if commit {
		s.nextJobId++
		s.jobsById[jobId] = &jobs.Job{
			Id:              jobId,
			Submitter:       payload.Submitter,
			Scheme:          payload.Scheme,
			Participants:    payload.Participants,
			Threshold:       payload.Threshold,
			PermittedCaller: payload.PermittedCaller,
			SubmittedHeight: height,
			ExpiryHeight:    height + payload.TTLBlocks,
		}
	}

	return []chain.Event{{
		Module: jobs.EventModule,
		Name:   jobs.EventJobSubmitted,
		Data: map[string]string{
			"job_id": strconv.FormatUint(jobId, 10),
			"scheme": payload.Scheme,
		},
	}}, nil
}

func (s *State) applySubmitResult(auths []string, op chain.TransactionOp, height uint64, commit bool) ([]chain.Event, error) {
	payload := jobs.SubmitResult{}
	if err := chain.DecodeOpPayload(op, &payload); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadEnvelope, err)
	}
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	if !authorized(auths, payload.Caller) {
		return nil, ErrAuthMissing
	}

	job, ok := s.jobsById[payload.JobId]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrJobMissing, payload.JobId)
	}
	if job.Result != nil {
		return nil, ErrJobResolved
	}
	if height > job.ExpiryHeight {
		return nil, fmt.Errorf("%w: expired at height %d", ErrJobExpired, job.ExpiryHeight)
	}
	if !job.CallerPermitted(payload.Caller) {
		return nil, ErrCallerNotAllowed
	}
	if len(payload.Signatures) != len(job.Participants) {
		return nil, ErrSignatureMismatch
	}

	// attestations verify against the role keys registered at job time,
	// in participant order
	roleKeys := make([]string, len(job.Participants))
	for i, participant := range job.Participants {
		profile, ok := s.profiles[participant]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrProfileMissing, participant)
		}
		roleKey, ok := profile.RoleKeyFor(job.Scheme)
		if !ok {
			return nil, fmt.Errorf("%w: %s (%s)", ErrRoleKeyMissing, participant, job.Scheme)
		}
		roleKeys[i] = roleKey
	}

	if err := jobs.VerifyAttestations(payload.GroupPubKey, roleKeys, payload.Signatures); err != nil {
		return nil, err
	}

	if commit {
		job.Result = &jobs.JobResult{
			GroupPubKey:    payload.GroupPubKey,
			Signatures:     payload.Signatures,
			Caller:         payload.Caller,
			IncludedHeight: height,
		}
	}

	return []chain.Event{{
		Module: jobs.EventModule,
		Name:   jobs.EventResultSubmitted,
		Data: map[string]string{
			"job_id":        strconv.FormatUint(payload.JobId, 10),
			"group_pub_key": payload.GroupPubKey,
		},
	}}, nil
}
