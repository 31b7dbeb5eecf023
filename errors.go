package goGuard

import (
	"errors"

	"github.com/MrEthical07/goGuard/attempt"
)

var (
	// ErrInvalidIdentifier is returned before any store access for an empty,
	// whitespace-only, oversized or control-character identifier.
	ErrInvalidIdentifier = errors.New("invalid identifier")
	// ErrStoreUnavailable wraps backend failures and cancelled contexts. It is
	// the same sentinel the store backends return.
	ErrStoreUnavailable = attempt.ErrUnavailable
	// ErrContention is returned when compare-and-set retries are exhausted.
	ErrContention = attempt.ErrContention
	// ErrTrackerNotReady is returned by a nil or unbuilt Tracker.
	ErrTrackerNotReady = errors.New("tracker not initialized")
	// ErrVerifierRequired is returned by Guard when no VerifyFunc is given.
	ErrVerifierRequired = errors.New("verify func required")
)
