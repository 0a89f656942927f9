// Package watch decides, per attempt outcome, whether a delivery should be
// retried or is terminal. Watchers never fail: they only record and decide,
// leaving the acknowledgment action to the transport layer.
package watch

import "context"

// OutcomeKind classifies one dispatch attempt.
type OutcomeKind int

const (
	// OutcomeSuccess: the handler consumed the delivery.
	OutcomeSuccess OutcomeKind = iota
	// OutcomeStopped: the handler asked the subscription to stop; treated as
	// terminal success.
	OutcomeStopped
	// OutcomeFailure: the attempt failed with the attached error.
	OutcomeFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeStopped:
		return "stopped"
	default:
		return "failure"
	}
}

// Outcome is one attempt result recorded against a message identity.
type Outcome struct {
	Kind  OutcomeKind
	Value any
	Err   error
}

// Decision tells the transport what to do with the delivery.
type Decision int

const (
	// DecisionAck: terminal success, acknowledge the delivery.
	DecisionAck Decision = iota
	// DecisionRetry: redeliver.
	DecisionRetry
	// DecisionReject: terminal failure, dead-letter or drop.
	DecisionReject
)

func (d Decision) String() string {
	switch d {
	case DecisionAck:
		return "ack"
	case DecisionRetry:
		return "retry"
	default:
		return "reject"
	}
}

// Watcher maps an attempt outcome for a message identity to a decision.
type Watcher interface {
	Decide(ctx context.Context, id string, outcome Outcome) Decision
}

// Unlimited retries every failure forever.
type Unlimited struct{}

func NewUnlimited() Unlimited { return Unlimited{} }

func (Unlimited) Decide(ctx context.Context, id string, outcome Outcome) Decision {
	if outcome.Kind == OutcomeFailure {
		return DecisionRetry
	}
	return DecisionAck
}

// SingleAttempt never retries: any failure is terminal.
type SingleAttempt struct{}

func NewSingleAttempt() SingleAttempt { return SingleAttempt{} }

func (SingleAttempt) Decide(ctx context.Context, id string, outcome Outcome) Decision {
	if outcome.Kind == OutcomeFailure {
		return DecisionReject
	}
	return DecisionAck
}
