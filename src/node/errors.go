package node

import "errors"

// ErrLockedProfile is returned when mining or submission is attempted while
// no active keypair/profile exists. It is surfaced to the caller, never
// silently dropped.
var ErrLockedProfile = errors.New("no active profile: unlock or create one first")

// ErrUnknownQuestion is returned by read projections for questions that have
// never been attested.
var ErrUnknownQuestion = errors.New("question has no recorded attestations")
