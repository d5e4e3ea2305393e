package registration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/luca-patrignani/poker-lobby/contract"
	"github.com/luca-patrignani/poker-lobby/session"
	"github.com/luca-patrignani/poker-lobby/wallet"
)

// ErrTimeout reports that wallet authorization or transaction confirmation
// did not finish within its configured timeout.
var ErrTimeout = errors.New("registration step timed out")

const (
	// DefaultPollInterval is the period of capacity reads while Polling.
	DefaultPollInterval = time.Second
	// DefaultConnectTimeout bounds the wallet authorization prompt.
	DefaultConnectTimeout = 2 * time.Minute
	// DefaultConfirmTimeout bounds the wait for the registration receipt.
	DefaultConfirmTimeout = 5 * time.Minute
)

// Orchestrator runs the registration state machine for one client session.
type Orchestrator struct {
	gateway *wallet.Gateway
	dial    contract.Dialer
	store   *session.Store
	logger  *slog.Logger

	pollInterval   time.Duration
	connectTimeout time.Duration
	confirmTimeout time.Duration
	onReading      func(uint64)
	onTransition   func(Status)

	// serializes completion with Close
	finish sync.Mutex

	mu     sync.Mutex
	status Status
	poller *Poller
	closed bool
	done   chan struct{}
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithPollInterval sets the capacity read period. It must be positive.
func WithPollInterval(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.pollInterval = d
	}
}

// WithLogger sets the logger for phase transitions and read failures.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

// WithConnectTimeout bounds the wallet authorization prompt. Zero disables
// the timeout.
func WithConnectTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.connectTimeout = d
	}
}

// WithConfirmTimeout bounds the wait for the registration receipt. Zero
// disables the timeout.
func WithConfirmTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.confirmTimeout = d
	}
}

// WithReadingHook streams capacity readings, e.g. for a progress display.
// The hook runs on the poll goroutine and must not call Close.
func WithReadingHook(fn func(remaining uint64)) Option {
	return func(o *Orchestrator) {
		o.onReading = fn
	}
}

// WithTransitionHook is called after every phase change with the new status.
// The hook must not call Close.
func WithTransitionHook(fn func(Status)) Option {
	return func(o *Orchestrator) {
		o.onTransition = fn
	}
}

// New returns an idle orchestrator. dial binds a contract client to the
// identity obtained from gateway; store receives the player record and the
// registered flag.
func New(gateway *wallet.Gateway, dial contract.Dialer, store *session.Store, opts ...Option) (*Orchestrator, error) {
	o := &Orchestrator{
		gateway:        gateway,
		dial:           dial,
		store:          store,
		logger:         slog.Default(),
		pollInterval:   DefaultPollInterval,
		connectTimeout: DefaultConnectTimeout,
		confirmTimeout: DefaultConfirmTimeout,
		status:         Status{Phase: PhaseIdle},
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	if dial == nil || store == nil {
		return nil, fmt.Errorf("orchestrator needs a contract dialer and a session store")
	}
	if o.pollInterval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive, got %s", o.pollInterval)
	}
	if o.connectTimeout < 0 || o.confirmTimeout < 0 {
		return nil, fmt.Errorf("timeouts must not be negative")
	}
	return o, nil
}

// Register runs one registration attempt up to the Polling phase and
// returns the failure reason if the attempt fails. It is a no-op returning
// nil while another attempt is in progress or after completion.
func (o *Orchestrator) Register(ctx context.Context) error {
	if !o.begin() {
		return nil
	}

	connectCtx, cancel := withTimeout(ctx, o.connectTimeout)
	identity, err := o.gateway.RequestIdentity(connectCtx)
	err = timedOut(ctx, connectCtx, err, "wallet authorization", o.connectTimeout)
	cancel()
	if err != nil {
		return o.fail(PhaseConnecting, err)
	}
	client, err := o.dial(identity)
	if err != nil {
		return o.fail(PhaseConnecting, fmt.Errorf("bind contract: %w", err))
	}
	o.transition(PhaseConnecting, PhaseSubmitting, nil)

	handle, err := client.SubmitRegistration(ctx)
	if err != nil {
		return o.fail(PhaseSubmitting, err)
	}
	o.transition(PhaseSubmitting, PhaseAwaitingConfirmation, func(s *Status) {
		s.TxHash = handle.Hash
	})

	confirmCtx, cancel := withTimeout(ctx, o.confirmTimeout)
	_, err = client.Await(confirmCtx, handle)
	err = timedOut(ctx, confirmCtx, err, "transaction confirmation", o.confirmTimeout)
	cancel()
	if err != nil {
		return o.fail(PhaseAwaitingConfirmation, err)
	}

	player := session.Player{Address: identity.Address().Hex(), Status: true}
	poller := NewPoller(client, o.logger)
	o.transition(PhaseAwaitingConfirmation, PhasePolling, func(s *Status) {
		o.store.SetPlayer(player)
	})

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil
	}
	o.poller = poller
	// polling outlives the request; it ends on completion or Close
	_, err = poller.Start(context.WithoutCancel(ctx), o.pollInterval, o.reading, o.complete)
	return err
}

// begin moves an Idle or Failed orchestrator to Connecting.
func (o *Orchestrator) begin() bool {
	o.mu.Lock()
	from := o.status.Phase
	if o.closed || (from != PhaseIdle && from != PhaseFailed) {
		attempt := o.status.Attempt
		o.mu.Unlock()
		o.logger.Debug("registration request ignored", "attempt", attempt, "phase", from)
		return false
	}
	o.status = Status{Phase: PhaseConnecting, Attempt: uuid.NewString()}
	st := o.status
	hook := o.onTransition
	o.mu.Unlock()

	o.logger.Info("registration phase changed", "attempt", st.Attempt, "from", from, "to", st.Phase)
	if hook != nil {
		hook(st)
	}
	return true
}

// transition moves from one phase to the next. mutate runs under the
// orchestrator lock. It reports false if the orchestrator was not in from.
func (o *Orchestrator) transition(from, to Phase, mutate func(*Status)) bool {
	o.mu.Lock()
	if o.status.Phase != from {
		current := o.status.Phase
		o.mu.Unlock()
		o.logger.Error("invalid registration transition", "from", from, "to", to, "current", current)
		return false
	}
	o.status.Phase = to
	if mutate != nil {
		mutate(&o.status)
	}
	st := o.status
	hook := o.onTransition
	o.mu.Unlock()

	if st.Phase == PhaseFailed {
		o.logger.Warn("registration failed", "attempt", st.Attempt, "from", from, "error", st.Err)
	} else {
		o.logger.Info("registration phase changed", "attempt", st.Attempt, "from", from, "to", to)
	}
	if hook != nil {
		hook(st)
	}
	return true
}

func (o *Orchestrator) fail(from Phase, err error) error {
	o.transition(from, PhaseFailed, func(s *Status) {
		s.Err = err
	})
	return err
}

func (o *Orchestrator) reading(n uint64) {
	o.mu.Lock()
	o.status.Remaining = n
	o.status.HasReading = true
	attempt := o.status.Attempt
	hook := o.onReading
	o.mu.Unlock()

	o.logger.Debug("players left to register", "attempt", attempt, "count", n)
	if hook != nil {
		hook(n)
	}
}

// complete handles the zero reading. Once Close has returned it does
// nothing, so a read in flight at Close never reaches the store.
func (o *Orchestrator) complete() {
	o.finish.Lock()
	o.mu.Lock()
	closed := o.closed
	o.mu.Unlock()
	if closed {
		o.finish.Unlock()
		o.logger.Debug("zero reading ignored after close")
		return
	}
	ok := o.transition(PhasePolling, PhaseComplete, func(s *Status) {
		o.store.SetRegistered(true)
	})
	o.finish.Unlock()
	if !ok {
		return
	}
	o.stopPoller()
	close(o.done)
}

func (o *Orchestrator) stopPoller() {
	o.mu.Lock()
	poller := o.poller
	o.mu.Unlock()
	if poller != nil {
		poller.Stop()
	}
}

// Close stops polling and ignores further requests. The phase is left
// unchanged. A completion already under way finishes before Close returns;
// after that the store is no longer written.
func (o *Orchestrator) Close() {
	o.finish.Lock()
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	o.finish.Unlock()
	o.stopPoller()
}

// Status returns a snapshot of the current attempt.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// Phase returns the current phase.
func (o *Orchestrator) Phase() Phase {
	return o.Status().Phase
}

// Polling reports whether the capacity poller is active.
func (o *Orchestrator) Polling() bool {
	o.mu.Lock()
	poller := o.poller
	o.mu.Unlock()
	return poller != nil && poller.Running()
}

// Done is closed when the orchestrator reaches Complete.
func (o *Orchestrator) Done() <-chan struct{} {
	return o.done
}

// Wait blocks until Complete or until ctx is done.
func (o *Orchestrator) Wait(ctx context.Context) error {
	select {
	case <-o.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TxHash returns the hash of the current attempt's registration transaction.
func (o *Orchestrator) TxHash() common.Hash {
	return o.Status().TxHash
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// timedOut marks err as a timeout when the step deadline expired while the
// parent context is still live.
func timedOut(parent, step context.Context, err error, name string, d time.Duration) error {
	if err == nil {
		return nil
	}
	if parent.Err() == nil && errors.Is(step.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s after %s: %w", ErrTimeout, name, d, err)
	}
	return err
}
