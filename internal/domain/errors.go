package domain

import (
	"errors"
	"strings"
)

// FailureKind is the centralized Transient/Permanent taxonomy.
// Classification lives in one place — Classify — so every caller (Orchestrator,
// BatchCreateProcessor, Scheduler) agrees on how an error is treated.
type FailureKind string

const (
	Transient FailureKind = "transient"
	Permanent FailureKind = "permanent"
)

// permanentSubstrings are well-known remote-side error fragments that never
// succeed on retry. Matching is case-insensitive.
var permanentSubstrings = []string{
	"access denied",
	"validationerror",
	"missing required",
	"constraint",
}

// Classify maps an error to a FailureKind. Anything not explicitly
// recognized as permanent defaults to Transient, biasing toward retrying.
func Classify(err error) FailureKind {
	if err == nil {
		return Transient
	}
	switch {
	case errors.Is(err, ErrEntityTypeNotRegistered),
		errors.Is(err, ErrNoDataToPush),
		errors.Is(err, ErrPayloadTooLarge):
		return Permanent
	}

	msg := strings.ToLower(err.Error())
	for _, s := range permanentSubstrings {
		if strings.Contains(msg, s) {
			return Permanent
		}
	}
	return Transient
}

// Result is what the Orchestrator and BatchCreateProcessor return for a
// single job outcome.
type Result struct {
	OK              bool
	Message         string
	Kind            FailureKind
	CreatedRemoteID uint64 // set when the RPC created a remote record before a later step failed
}
