// Package registration drives a single client's entry into a capacity-limited
// game session recorded on a ledger.
//
// # Core Components
//
// Orchestrator: The registration state machine. A request moves it through
// Connecting (wallet authorization), Submitting (registration transaction),
// AwaitingConfirmation (receipt wait) and Polling, and it ends in Complete or
// Failed. A request made while an attempt is in progress is ignored; a
// Failed attempt may be retried by issuing a new request.
//
// Poller: A cancellable periodic reader of the remaining capacity. Reads are
// serialized: a tick that falls due while a read is outstanding is skipped.
// Read failures are logged and the next tick proceeds.
//
// # Session Semantics
//
// The registered flag in session.Store means "this client's registration is
// confirmed on the ledger and the session is full". The player record is
// published when the registration is confirmed; the flag is set when the
// poller, which only runs after confirmation, observes zero open seats.
//
// # Timeouts
//
// Wallet authorization and transaction confirmation are each bounded by a
// configurable timeout (2 and 5 minutes by default). An expired step fails the
// attempt with ErrTimeout.
package registration
