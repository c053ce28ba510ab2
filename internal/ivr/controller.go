package ivr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"agri-ivr/internal/audit"
	"agri-ivr/internal/session"
	"agri-ivr/internal/verify"
	"agri-ivr/pkg/metrics"
)

// Turn is one webhook delivery: a caller utterance, keypad digits, or silence.
type Turn struct {
	CallID       string
	CallerNumber string
	// Input is the speech transcript or digits; empty means silence/timeout.
	Input string
	// Language overrides the controller default when set.
	Language string
	// Dialect labels metrics only.
	Dialect string
}

// Reply is the controller's decision for one turn.
//
// Gather is false only on hangup paths.
type Reply struct {
	Message string
	Gather  bool
	Hangup  bool
}

// Advisor answers free-form questions after verification.
// It must return a speakable string even on failure.
type Advisor interface {
	Ask(ctx context.Context, message, language string) string
}

// AuditRecorder receives security-relevant call events.
type AuditRecorder interface {
	LogCallEvent(ctx context.Context, typ audit.EventType, callID, callerNumber, username string, failedAttempts int) error
}

// Limits are the failed-attempt budgets per verification stage. With the
// defaults one wrong username ends the call while the PIN gets a retry.
type Limits struct {
	MaxUsernameAttempts int
	MaxPINAttempts      int
}

func DefaultLimits() Limits {
	return Limits{MaxUsernameAttempts: 1, MaxPINAttempts: 2}
}

type Options struct {
	Store    session.Store
	Locker   session.Locker
	Policy   verify.Policy
	Advisor  Advisor
	Audit    AuditRecorder
	Limits   Limits
	Language string
	Logger   *slog.Logger
}

// Controller drives a call through username, PIN and answering states.
//
// Security invariant: verification success is decided here, from the
// current turn's input and the Policy only. Nothing returned by the Advisor
// can move a call out of a verification state.
type Controller struct {
	store    session.Store
	locks    session.Locker
	policy   verify.Policy
	advisor  Advisor
	audit    AuditRecorder
	limits   Limits
	language string
	log      *slog.Logger
}

const DefaultLanguage = "en-IN"

func NewController(opts Options) (*Controller, error) {
	if opts.Store == nil {
		return nil, errors.New("ivr: session store is required")
	}
	if opts.Policy == nil {
		return nil, errors.New("ivr: verification policy is required")
	}
	if opts.Advisor == nil {
		return nil, errors.New("ivr: advisor is required")
	}
	if opts.Locker == nil {
		opts.Locker = session.NewKeyedMutex()
	}
	def := DefaultLimits()
	if opts.Limits.MaxUsernameAttempts <= 0 {
		opts.Limits.MaxUsernameAttempts = def.MaxUsernameAttempts
	}
	if opts.Limits.MaxPINAttempts <= 0 {
		opts.Limits.MaxPINAttempts = def.MaxPINAttempts
	}
	if opts.Language == "" {
		opts.Language = DefaultLanguage
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Controller{
		store:    opts.Store,
		locks:    opts.Locker,
		policy:   opts.Policy,
		advisor:  opts.Advisor,
		audit:    opts.Audit,
		limits:   opts.Limits,
		language: opts.Language,
		log:      opts.Logger,
	}, nil
}

// HandleTurn processes one webhook turn. Turns for the same call id are
// serialized; turns for different calls run concurrently.
//
// An error means nothing was persisted for this turn; the caller should
// answer with PromptSystemError and hang up.
func (c *Controller) HandleTurn(ctx context.Context, t Turn) (Reply, error) {
	t.CallID = session.NormalizeCallID(t.CallID)
	t.Input = strings.TrimSpace(t.Input)
	if t.Language == "" {
		t.Language = c.language
	}

	unlock, err := c.locks.Lock(ctx, t.CallID)
	if err != nil {
		return Reply{}, fmt.Errorf("ivr: lock call: %w", err)
	}
	defer unlock()

	s, err := c.store.Get(ctx, t.CallID)
	if err != nil {
		return Reply{}, fmt.Errorf("ivr: load session: %w", err)
	}

	dialect := t.Dialect
	if dialect == "" {
		dialect = "none"
	}
	metrics.TurnsTotal.WithLabelValues(dialect, stateLabel(s.State)).Inc()

	log := c.log.With("call_id", t.CallID, "state", string(s.State))
	log.Debug("turn", "has_input", t.Input != "")

	switch s.State {
	case session.StateAwaitingUsername:
		return c.awaitingUsername(ctx, s, t)
	case session.StateAwaitingPassword:
		return c.awaitingPassword(ctx, s, t)
	case session.StateAnswering:
		return c.answering(ctx, s, t)
	default:
		log.Warn("unrecognized session state, restarting call")
		return c.restart(ctx, s.CallID)
	}
}

func (c *Controller) awaitingUsername(ctx context.Context, s session.Session, t Turn) (Reply, error) {
	if t.Input == "" {
		msg := PromptAskUsername
		if s.LastResponse == "" {
			msg = PromptGreeting
		}
		return c.keep(ctx, s.CallID, session.Patch{
			Verification: session.Ptr(session.VerificationRequestedUsername),
		}, msg)
	}

	if username, ok := c.policy.ResolveUsername(t.Input); ok {
		return c.keep(ctx, s.CallID, session.Patch{
			Username:     session.Ptr(username),
			State:        session.Ptr(session.StateAwaitingPassword),
			Verification: session.Ptr(session.VerificationRequestedPassword),
		}, PromptUsernameAccepted)
	}

	failed := s.FailedAttempts + 1
	metrics.VerificationFailures.WithLabelValues("username").Inc()
	c.record(ctx, audit.EventUsernameRejected, t, "", failed)
	if failed >= c.limits.MaxUsernameAttempts {
		return c.failVerification(ctx, t, "", failed)
	}
	return c.keep(ctx, s.CallID, session.Patch{
		FailedAttempts: session.Ptr(failed),
		Verification:   session.Ptr(session.VerificationFailedRetry),
	}, PromptUsernameRetry)
}

func (c *Controller) awaitingPassword(ctx context.Context, s session.Session, t Turn) (Reply, error) {
	if t.Input == "" {
		return c.keep(ctx, s.CallID, session.Patch{}, PromptAskPIN)
	}

	pin := verify.ExtractPIN(t.Input)
	if c.policy.MatchesPIN(s.Username, pin) {
		c.record(ctx, audit.EventVerificationSucceeded, t, s.Username, s.FailedAttempts)
		return c.keep(ctx, s.CallID, session.Patch{
			State:          session.Ptr(session.StateAnswering),
			Verification:   session.Ptr(session.VerificationSuccess),
			FailedAttempts: session.Ptr(0),
		}, PromptVerified)
	}

	failed := s.FailedAttempts + 1
	metrics.VerificationFailures.WithLabelValues("pin").Inc()
	c.record(ctx, audit.EventPINRejected, t, s.Username, failed)
	if failed >= c.limits.MaxPINAttempts {
		return c.failVerification(ctx, t, s.Username, failed)
	}
	return c.keep(ctx, s.CallID, session.Patch{
		FailedAttempts: session.Ptr(failed),
		Verification:   session.Ptr(session.VerificationFailedRetry),
	}, PromptPINRetry)
}

func (c *Controller) answering(ctx context.Context, s session.Session, t Turn) (Reply, error) {
	if t.Input == "" {
		return c.keep(ctx, s.CallID, session.Patch{}, PromptListening)
	}
	if IsEndOfCall(t.Input) {
		c.record(ctx, audit.EventCallCompleted, t, s.Username, 0)
		metrics.CallsEnded.WithLabelValues("completed").Inc()
		return c.end(ctx, s.CallID, PromptFarewell)
	}

	answer := c.advisor.Ask(ctx, t.Input, t.Language)
	if err := ctx.Err(); err != nil {
		// Gateway went away mid-turn; leave the session as it was.
		return Reply{}, fmt.Errorf("ivr: turn abandoned: %w", err)
	}
	return c.keep(ctx, s.CallID, session.Patch{}, composeAnswer(answer))
}

// restart resets a call whose record cannot be interpreted.
func (c *Controller) restart(ctx context.Context, callID string) (Reply, error) {
	return c.keep(ctx, callID, session.Patch{
		State:          session.Ptr(session.StateAwaitingUsername),
		Verification:   session.Ptr(session.VerificationRequestedUsername),
		FailedAttempts: session.Ptr(0),
		Username:       session.Ptr(""),
	}, PromptGreeting)
}

func (c *Controller) failVerification(ctx context.Context, t Turn, username string, failed int) (Reply, error) {
	c.record(ctx, audit.EventVerificationFailed, t, username, failed)
	metrics.CallsEnded.WithLabelValues("verification_failed").Inc()
	return c.end(ctx, t.CallID, PromptVerifyFailed)
}

// keep persists p plus the spoken message and keeps listening.
func (c *Controller) keep(ctx context.Context, callID string, p session.Patch, msg string) (Reply, error) {
	p.LastResponse = session.Ptr(msg)
	if _, err := c.store.Update(ctx, callID, p); err != nil {
		return Reply{}, fmt.Errorf("ivr: save session: %w", err)
	}
	return Reply{Message: msg, Gather: true}, nil
}

// end deletes the session; the delete is the call's last write.
func (c *Controller) end(ctx context.Context, callID, msg string) (Reply, error) {
	if err := c.store.Delete(ctx, callID); err != nil {
		return Reply{}, fmt.Errorf("ivr: delete session: %w", err)
	}
	return Reply{Message: msg, Hangup: true}, nil
}

func (c *Controller) record(ctx context.Context, typ audit.EventType, t Turn, username string, failed int) {
	if c.audit == nil {
		return
	}
	if err := c.audit.LogCallEvent(ctx, typ, t.CallID, t.CallerNumber, username, failed); err != nil {
		c.log.Warn("audit append failed", "call_id", t.CallID, "type", string(typ), "err", err)
	}
}

func stateLabel(s session.State) string {
	if s.Known() {
		return string(s)
	}
	return "unknown"
}
