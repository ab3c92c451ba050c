package vif1

import (
	"github.com/pkg/errors"
)

var (
	// Caller or collaborator broke interface contract, unit state can't be trusted
	ErrContractViolation = errors.New("vif1 contract violation")
	ErrClosed            = errors.New("vif1 closed")
	ErrInterrupted       = errors.New("vif1 wait interrupted")
)

func contractViolation(format string, args ...interface{}) error {
	return errors.Wrapf(ErrContractViolation, format, args...)
}

func IsContractViolation(err error) bool {
	return errors.Cause(err) == ErrContractViolation
}
