package services

import (
	"fmt"

	"github.com/damacus/iron-studio/internal/errs"
)

// Op names a user-facing file operation.
type Op string

const (
	OpList         Op = "list"
	OpUpload       Op = "upload"
	OpCreateFolder Op = "create_folder"
	OpDelete       Op = "delete"
	OpRename       Op = "rename"
)

func (op Op) failureKind() errs.Kind {
	switch op {
	case OpList:
		return errs.KindListFailed
	case OpUpload:
		return errs.KindUploadFailed
	case OpCreateFolder:
		return errs.KindCreateFailed
	case OpDelete:
		return errs.KindDeleteFailed
	case OpRename:
		return errs.KindRenameFailed
	}
	return errs.KindUnknown
}

// Action is the store primitive a step was executing when it failed.
type Action string

const (
	ActionValidate Action = "validate"
	ActionCheck    Action = "check"
	ActionList     Action = "list"
	ActionRead     Action = "read"
	ActionWrite    Action = "write"
	ActionDelete   Action = "delete"
	ActionRename   Action = "rename"
)

// StepFailure describes the step that stopped a composite operation.
type StepFailure struct {
	Index  int    // 0-based step index
	Key    string // key the step was working on
	Action Action
	Cause  error
}

// Result is the step-indexed outcome of a composite operation. Steps run
// in order; Succeeded holds the keys of completed steps, Failed the step
// that stopped the run and Skipped the keys never attempted.
type Result struct {
	Op     Op
	Key    string // key the user acted on
	Target string // new key for renames and creates

	Succeeded []string
	Failed    *StepFailure
	Skipped   []string
	// Created lists keys written at the destination, including copies whose
	// source could not be deleted afterwards.
	Created []string
	// Calls counts store primitives attempted.
	Calls int
}

func newResult(op Op, key string) *Result {
	return &Result{Op: op, Key: key}
}

func (r *Result) fail(index int, key string, action Action, cause error, remaining []string) {
	r.Failed = &StepFailure{Index: index, Key: key, Action: action, Cause: cause}
	r.Skipped = append(r.Skipped, remaining...)
}

// Total is the number of planned steps.
func (r *Result) Total() int {
	n := len(r.Succeeded) + len(r.Skipped)
	if r.Failed != nil {
		n++
	}
	return n
}

// State classifies the outcome.
func (r *Result) State() OperationState {
	switch {
	case r.Failed == nil:
		return StateSuccess
	case len(r.Succeeded) > 0:
		return StatePartialFailure
	default:
		return StateFailure
	}
}

// Err returns nil on success. Validation failures return the InvalidName
// error unchanged. Folder deletes and renames that stopped after some steps
// succeeded return a PartialFailure wrapping the step error; everything
// else returns the operation's failure kind carrying key and step index.
func (r *Result) Err() error {
	f := r.Failed
	if f == nil {
		return nil
	}
	if f.Action == ActionValidate {
		return f.Cause
	}

	stepErr := errs.AtStep(r.Op.failureKind(), string(r.Op), f.Key, f.Index, f.Cause)
	if r.State() == StatePartialFailure && (r.Op == OpDelete || r.Op == OpRename) {
		return &errs.Error{
			Kind:    errs.KindPartialFailure,
			Op:      string(r.Op),
			Key:     f.Key,
			Step:    f.Index,
			Message: fmt.Sprintf("%d of %d steps succeeded", len(r.Succeeded), r.Total()),
			Cause:   stepErr,
		}
	}
	return stepErr
}
