package contract

import (
	"errors"
	"fmt"
)

// Error kinds. Every failure surfaced by the engine wraps one of them.
var (
	ErrCall                 = errors.New("call error")
	ErrStaticCallRestricted = errors.New("static call restricted")
	ErrUnknownProtocol      = errors.New("unknown protocol")
	ErrContractNotFound     = errors.New("contract not found")
	ErrDuplicateProtocol    = errors.New("duplicate protocol")
	ErrFatal                = errors.New("fatal")
)

// ContractError carries an error kind plus the human readable detail that
// ends up in the receipt
type ContractError struct {
	Kind    error
	Message string
}

// Error implements error interface
func (e *ContractError) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return e.Message
}

func (e *ContractError) Unwrap() error {
	return e.Kind
}

// Cause keeps pkg/errors.Cause working on wrapped chains
func (e *ContractError) Cause() error {
	return e.Kind
}

func newError(kind error, format string, args ...interface{}) *ContractError {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return &ContractError{Kind: kind, Message: msg}
}

// Revert builds the CallError a contract raises to reject a call
func Revert(format string, args ...interface{}) error {
	return newError(ErrCall, format, args...)
}

func CallErrorf(format string, args ...interface{}) error {
	return newError(ErrCall, format, args...)
}

func Restrictedf(format string, args ...interface{}) error {
	return newError(ErrStaticCallRestricted, format, args...)
}

func UnknownProtocolf(format string, args ...interface{}) error {
	return newError(ErrUnknownProtocol, format, args...)
}

func ContractNotFoundf(format string, args ...interface{}) error {
	return newError(ErrContractNotFound, format, args...)
}

func DuplicateProtocolf(format string, args ...interface{}) error {
	return newError(ErrDuplicateProtocol, format, args...)
}

func Fatalf(format string, args ...interface{}) error {
	return newError(ErrFatal, format, args...)
}

// AsFatal marks an environment fault, nil stays nil
func AsFatal(err error) error {
	if err == nil || IsFatal(err) {
		return err
	}
	return newError(ErrFatal, "%v", err)
}

func IsFatal(err error) bool {
	return errors.Is(err, ErrFatal)
}

// Status 回执状态
type Status string

const (
	StatusSuccess   Status = "success"
	StatusCallError Status = "call_error"
	StatusFatal     Status = "fatal"
)

// StatusOf maps an execution error to the receipt status. Only the fatal
// kind halts replay, every other failure is a revert.
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusSuccess
	case IsFatal(err):
		return StatusFatal
	default:
		return StatusCallError
	}
}
