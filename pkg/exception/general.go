package exception

import "errors"

// General errors
var (
	ErrNilInstance     = errors.New("nil instance")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInternal        = errors.New("internal error")
	ErrNotFound        = errors.New("not found")
	ErrAlreadyExists   = errors.New("already exists")
)

// Orchestration errors
var (
	ErrAlreadyClaimed     = errors.New("already claimed by another worker")
	ErrRuleProcessing     = errors.New("rule is processing and cannot be updated")
	ErrCommandUnsupported = errors.New("command unsupported by integration")
	ErrSystemUnsupported  = errors.New("no integration registered for system")
)
