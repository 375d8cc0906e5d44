package contact

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrSubmitInFlight is returned by Submit while an earlier submit is
	// still waiting on the relay.
	ErrSubmitInFlight = errors.New("contact: submission already in flight")

	// ErrClosed is returned once the controller has been closed.
	ErrClosed = errors.New("contact: controller closed")
)

// DefaultTimeout bounds a single relay call.
const DefaultTimeout = 15 * time.Second

// Observer is told about every status change. It runs with the
// controller locked and must not call back into it.
type Observer func(from, to Status)

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger used for relay failures.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithTimeout bounds each relay call. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Controller) { c.timeout = d }
}

// WithRecipient sets the to_name label sent with each payload.
func WithRecipient(label string) Option {
	return func(c *Controller) {
		if label != "" {
			c.recipient = label
		}
	}
}

// WithObserver registers a status observer.
func WithObserver(o Observer) Option {
	return func(c *Controller) { c.observe = o }
}

// Controller owns the state of one form interaction and performs the
// relay call on a valid submit.
type Controller struct {
	mu        sync.Mutex
	st        State
	closed    bool
	relay     Relay
	logger    *zap.Logger
	timeout   time.Duration
	recipient string
	observe   Observer
	newRef    func() string
}

// NewController returns a controller in the idle state with empty fields.
func NewController(relay Relay, opts ...Option) *Controller {
	c := &Controller{
		st:        NewState(),
		relay:     relay,
		logger:    zap.NewNop(),
		timeout:   DefaultTimeout,
		recipient: DefaultRecipientLabel,
		newRef:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns a snapshot of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

// UpdateField sets one field and clears that field's error, if any.
func (c *Controller) UpdateField(field, value string) error {
	if _, err := (Submission{}).Get(field); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.apply(FieldChanged{Field: field, Value: value})
	return nil
}

// Submit validates the fields and, when they pass, sends them through
// the relay exactly once. Invalid fields never reach the relay.
//
// The returned state reflects the outcome: errors populated on invalid
// input, StatusSuccess with cleared fields, or StatusError with the
// fields kept. Relay failures are logged, not returned.
func (c *Controller) Submit(ctx context.Context) (State, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return State{}, ErrClosed
	}
	if c.st.Status == StatusSubmitting {
		st := c.snapshot()
		c.mu.Unlock()
		return st, ErrSubmitInFlight
	}

	c.apply(SubmitRequested{Reference: c.newRef()})
	if c.st.Status != StatusSubmitting {
		st := c.snapshot()
		c.mu.Unlock()
		return st, nil
	}
	payload := Payload{
		FromName:  c.st.Fields.Name,
		FromEmail: c.st.Fields.Email,
		Subject:   c.st.Fields.Subject,
		Message:   c.st.Fields.Message,
		ToName:    c.recipient,
	}
	ref := c.st.Reference
	c.mu.Unlock()

	sendCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	err := c.relay.Send(sendCtx, payload)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return c.snapshot(), ErrClosed
	}
	if err != nil {
		c.logger.Error("contact relay failed",
			zap.String("reference", ref),
			zap.Error(err),
		)
		c.apply(SubmitFailed{Err: err})
	} else {
		c.logger.Info("contact relay accepted message", zap.String("reference", ref))
		c.apply(SubmitSucceeded{})
	}
	return c.snapshot(), nil
}

// Close detaches the controller from its view. A relay call that settles
// afterwards leaves the state as it was.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// apply runs the reducer; callers hold mu.
func (c *Controller) apply(ev Event) {
	prev := c.st.Status
	c.st = Reduce(c.st, ev)
	if c.observe != nil && prev != c.st.Status {
		c.observe(prev, c.st.Status)
	}
}

func (c *Controller) snapshot() State {
	st := c.st
	st.Errors = c.st.Errors.Clone()
	return st
}
