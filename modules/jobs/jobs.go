package jobs

import (
	"fmt"

	"tessnet-demo/lib/chain"
	"tessnet-demo/modules/common"
	"tessnet-demo/modules/profiles"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"
)

var jobValidator = validator.New(validator.WithRequiredStructEnabled())

// event names emitted by the jobs module
const (
	EventModule          = "jobs"
	EventJobSubmitted    = "job_submitted"
	EventResultSubmitted = "result_submitted"
)

// JobDescriptor is the client side description of a threshold keygen
// task. PermittedCaller restricts who may submit the result; None means
// any participant.
type JobDescriptor struct {
	Scheme          string
	Participants    []string
	Threshold       uint8
	PermittedCaller optional.Option[string]
	TTLBlocks       uint64
}

// ToOp binds the descriptor to a submitter, producing the wire op.
func (d JobDescriptor) ToOp(submitter string) *SubmitJob {
	var permitted *string
	if d.PermittedCaller.IsSome() {
		v := d.PermittedCaller.Unwrap()
		permitted = &v
	}

	return &SubmitJob{
		Submitter:       submitter,
		Scheme:          d.Scheme,
		Participants:    d.Participants,
		Threshold:       d.Threshold,
		PermittedCaller: permitted,
		TTLBlocks:       d.TTLBlocks,
	}
}

// Job is the chain's view of a submitted task. Ids start at 1.
type Job struct {
	Id              uint64     `json:"id"`
	Submitter       string     `json:"submitter"`
	Scheme          string     `json:"scheme"`
	Participants    []string   `json:"participants"`
	Threshold       uint8      `json:"threshold"`
	PermittedCaller *string    `json:"permitted_caller,omitempty"`
	SubmittedHeight uint64     `json:"submitted_height"`
	ExpiryHeight    uint64     `json:"expiry_height"`
	Result          *JobResult `json:"result,omitempty"`
}

// CallerPermitted reports whether an account may submit this job's
// result.
func (j *Job) CallerPermitted(account string) bool {
	if j.PermittedCaller != nil {
		return *j.PermittedCaller == account
	}
	for _, p := range j.Participants {
		if p == account {
			return true
		}
	}
	return false
}

// JobResult is the stored outcome: the group public key plus one
// attestation per participant.
type JobResult struct {
	GroupPubKey    string   `json:"group_pub_key"`
	Signatures     []string `json:"signatures"`
	Caller         string   `json:"caller"`
	IncludedHeight uint64   `json:"included_height"`
}

// ===== submit_job operation =====

type SubmitJob struct {
	Submitter       string   `json:"submitter"        validate:"required,startswith=did:key:"`
	Scheme          string   `json:"scheme"           validate:"required,oneof=tss-ecdsa tss-eddsa"`
	Participants    []string `json:"participants"     validate:"required,min=2,dive,startswith=did:key:"`
	Threshold       uint8    `json:"threshold"        validate:"required,gte=1"`
	PermittedCaller *string  `json:"permitted_caller,omitempty"`
	TTLBlocks       uint64   `json:"ttl_blocks"       validate:"required"`
}

var _ chain.Operation = &SubmitJob{}

func (op *SubmitJob) OpType() string {
	return chain.OpSubmitJob
}

func (op *SubmitJob) OpPayload() ([]byte, error) {
	if err := op.Validate(); err != nil {
		return nil, err
	}
	return chain.EncodeOpPayload(op)
}

func (op *SubmitJob) RequiredAuths() []string {
	return []string{op.Submitter}
}

func (op *SubmitJob) Validate() error {
	if err := jobValidator.Struct(op); err != nil {
		return err
	}

	if len(op.Participants) > common.CHAIN_SPECS.MaxParticipants {
		return fmt.Errorf("too many participants: %d > %d", len(op.Participants), common.CHAIN_SPECS.MaxParticipants)
	}

	seen := map[string]bool{}
	for _, p := range op.Participants {
		if seen[p] {
			return fmt.Errorf("duplicate participant %s", p)
		}
		seen[p] = true
	}

	// threshold t means t+1 parties reconstruct, so t below party count
	if uint8(len(op.Participants)) <= op.Threshold {
		return fmt.Errorf("threshold %d too high for %d participants", op.Threshold, len(op.Participants))
	}

	if op.TTLBlocks < common.CHAIN_SPECS.JobTTLMin || op.TTLBlocks > common.CHAIN_SPECS.JobTTLMax {
		return fmt.Errorf("ttl %d outside [%d, %d]", op.TTLBlocks, common.CHAIN_SPECS.JobTTLMin, common.CHAIN_SPECS.JobTTLMax)
	}

	return nil
}

// ===== submit_result operation =====

type SubmitResult struct {
	Caller      string   `json:"caller"        validate:"required,startswith=did:key:"`
	JobId       uint64   `json:"job_id"        validate:"required"`
	GroupPubKey string   `json:"group_pub_key" validate:"required,hexadecimal"`
	Signatures  []string `json:"signatures"    validate:"required,min=1,dive,hexadecimal"`
}

var _ chain.Operation = &SubmitResult{}

func (op *SubmitResult) OpType() string {
	return chain.OpSubmitResult
}

func (op *SubmitResult) OpPayload() ([]byte, error) {
	if err := op.Validate(); err != nil {
		return nil, err
	}
	return chain.EncodeOpPayload(op)
}

func (op *SubmitResult) RequiredAuths() []string {
	return []string{op.Caller}
}

func (op *SubmitResult) Validate() error {
	return jobValidator.Struct(op)
}

// scheme helpers shared with the node side

func SchemeKnown(scheme string) bool {
	return scheme == profiles.SchemeEcdsa || scheme == profiles.SchemeEddsa
}
