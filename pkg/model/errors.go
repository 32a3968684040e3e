package model

import (
	"errors"

	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrInvalidInput           = goerr.New("invalid input")
	ErrInvalidHyperparameters = goerr.New("invalid hyperparameters")
	ErrPolicyDenied           = goerr.New("denied by training policy")
	ErrFitFailure             = goerr.New("failed to fit model")
	ErrNotFitted              = goerr.New("model is not fitted")
	ErrNotFound               = goerr.New("model not found")
	ErrArtifactMissing        = goerr.New("model artifact is missing")
	ErrCorruptArtifact        = goerr.New("model artifact is corrupt")
	ErrRegistryWrite          = goerr.New("metadata upsert had no effect")
	ErrOrphanedMetadata       = goerr.New("metadata left without artifact")
	ErrStoreUnavailable       = goerr.New("store unavailable")
)

// Mark attaches a taxonomy sentinel to err. The original error stays
// reachable through errors.Is / errors.As.
func Mark(sentinel, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sentinel) {
		return err
	}
	return errors.Join(sentinel, err)
}

// StoreFailure marks err as a failure of a storage backend
func StoreFailure(err error) error {
	return Mark(ErrStoreUnavailable, err)
}

// ErrorKind is the outcome category of a failure, used by the boundary
// layers (HTTP, MCP, CLI) to pick a response without reading messages.
type ErrorKind string

const (
	KindNone          ErrorKind = ""
	KindNotFound      ErrorKind = "not_found"
	KindBadInput      ErrorKind = "bad_input"
	KindUnprocessable ErrorKind = "unprocessable"
	KindInconsistent  ErrorKind = "inconsistent"
	KindUnavailable   ErrorKind = "unavailable"
	KindInternal      ErrorKind = "internal"
)

// KindOf classifies err. Inconsistency wins over unavailability because a
// half-finished removal must be reported as such even if the second store
// call failed for transport reasons.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrInvalidHyperparameters),
		errors.Is(err, ErrPolicyDenied):
		return KindBadInput
	case errors.Is(err, ErrFitFailure):
		return KindUnprocessable
	case errors.Is(err, ErrOrphanedMetadata),
		errors.Is(err, ErrArtifactMissing),
		errors.Is(err, ErrCorruptArtifact),
		errors.Is(err, ErrRegistryWrite):
		return KindInconsistent
	case errors.Is(err, ErrStoreUnavailable):
		return KindUnavailable
	default:
		return KindInternal
	}
}
