// Package scan defines the scan-submission capability and the outcome
// taxonomy shown to gate operators.
package scan

import (
	"context"
	"errors"

	"github.com/nextlevelbuilder/gateline/pkg/protocol"
)

// ErrOffline is returned by submitters when the request never reached the
// gateway. A rejection is not an error: it is a ScanResult with
// Success=false and a ScanType explaining why.
var ErrOffline = errors.New("scan: network unavailable")

// Submitter performs one scan request against the gateway.
type Submitter interface {
	Submit(ctx context.Context, payload, locationHint string) (protocol.ScanResult, error)
}

// SubmitterFunc adapts a function to the Submitter interface.
type SubmitterFunc func(ctx context.Context, payload, locationHint string) (protocol.ScanResult, error)

func (f SubmitterFunc) Submit(ctx context.Context, payload, locationHint string) (protocol.ScanResult, error) {
	return f(ctx, payload, locationHint)
}

// Outcome classifies a scan attempt for display and audit. "no network",
// "rejected" and "already used" are distinct outcomes end-to-end: the gate
// operator reacts differently to each.
type Outcome string

const (
	OutcomeAdmitted  Outcome = "admitted"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeInvalid   Outcome = "invalid"
	OutcomeFraud     Outcome = "fraud"
	OutcomeOffline   Outcome = "offline"
	OutcomeError     Outcome = "error"
)

// Classify maps a submission result or error to an Outcome.
func Classify(res protocol.ScanResult, err error) Outcome {
	if errors.Is(err, ErrOffline) {
		return OutcomeOffline
	}
	if err != nil {
		return OutcomeError
	}
	switch res.ScanType {
	case protocol.ScanTypeFirst:
		return OutcomeAdmitted
	case protocol.ScanTypeDuplicate:
		return OutcomeDuplicate
	case protocol.ScanTypeFraud:
		return OutcomeFraud
	default:
		return OutcomeInvalid
	}
}
