package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"console/cmd/internal/auth/credential"
	"console/cmd/internal/auth/lifecycle"
	"console/cmd/internal/metrics"
)

var errMissingOwner = errors.New("session: token has no owner id")

// Tokens is the part of lifecycle.Manager the machine drives.
type Tokens interface {
	Issue(ctx context.Context, g lifecycle.Grant) (lifecycle.Pair, error)
	GetOrCreateAccessToken(ctx context.Context, ownerID string) (credential.Credential, error)
	GetOrCreateRefreshToken(ctx context.Context, ownerID string) (credential.Credential, error)
}

// Input is one evaluation request. SignIn takes precedence over Token.
type Input struct {
	Token  *Record
	SignIn *SignIn
}

// Result is the outcome of one evaluation. Record is nil in NoSession.
// Changed is set when Record differs from the input token and must be
// re-issued to the client.
type Result struct {
	State   State
	Record  *Record
	Changed bool
}

// View projects the result record.
func (r Result) View() (View, bool) { return Project(r.Record) }

// Machine evaluates session records against the token lifecycle.
type Machine struct {
	tokens   Tokens
	verifier Verifier

	now          func() time.Time
	log          *slog.Logger
	metrics      *metrics.Metrics
	storeTimeout time.Duration
}

// MachineOption configures a Machine.
type MachineOption func(*Machine)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) MachineOption {
	return func(m *Machine) {
		if now != nil {
			m.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) MachineOption {
	return func(m *Machine) {
		if log != nil {
			m.log = log
		}
	}
}

// WithMetrics counts states entered.
func WithMetrics(mx *metrics.Metrics) MachineOption {
	return func(m *Machine) { m.metrics = mx }
}

// WithVerifier enables Machine.SignIn.
func WithVerifier(v Verifier) MachineOption {
	return func(m *Machine) { m.verifier = v }
}

// WithStoreTimeout bounds the store work of one evaluation. Zero disables it.
func WithStoreTimeout(d time.Duration) MachineOption {
	return func(m *Machine) { m.storeTimeout = d }
}

// NewMachine returns a Machine driving tokens.
func NewMachine(tokens Tokens, opts ...MachineOption) *Machine {
	m := &Machine{
		tokens: tokens,
		now:    time.Now,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Evaluate runs one request through the state machine.
func (m *Machine) Evaluate(ctx context.Context, in Input) Result {
	if m.storeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.storeTimeout)
		defer cancel()
	}

	switch {
	case in.SignIn != nil:
		return m.initialSignIn(ctx, *in.SignIn)
	case in.Token == nil:
		return m.enter(Result{State: NoSession})
	case in.Token.AccessTokenExpires > m.now().UnixMilli():
		return m.enter(Result{State: Valid, Record: in.Token})
	default:
		m.enter(Result{State: NeedsRefresh})
		return m.refresh(ctx, in.Token)
	}
}

// SignIn verifies a and evaluates the resulting sign-in. Verification failure
// ends in NoSession.
func (m *Machine) SignIn(ctx context.Context, a Attempt) Result {
	if m.verifier == nil {
		m.log.Error("session.signin.no_verifier")
		return m.enter(Result{State: NoSession})
	}

	si, ok, err := m.verifier.Verify(ctx, a)
	if err != nil {
		m.log.Warn("session.signin.verify.fail", "err", err)
		return m.enter(Result{State: NoSession})
	}
	if !ok || si.Identity.ID == "" {
		return m.enter(Result{State: NoSession})
	}
	return m.Evaluate(ctx, Input{SignIn: &si})
}

func (m *Machine) initialSignIn(ctx context.Context, si SignIn) (res Result) {
	m.enter(Result{State: InitialSignIn})

	ident := si.Identity
	failed := func(err error) Result {
		m.log.Warn("session.signin.fail", "owner_id", ident.ID, "err", err)
		u := ident
		return m.enter(Result{
			State:   Errored,
			Record:  &Record{User: &u, Error: ErrorRefreshAccessToken},
			Changed: true,
		})
	}
	defer func() {
		if p := recover(); p != nil {
			res = failed(fmt.Errorf("panic: %v", p))
		}
	}()

	if ident.ID == "" {
		return failed(errMissingOwner)
	}

	var grant lifecycle.Grant = lifecycle.InternalGrant{OwnerID: ident.ID}
	if a := si.Account; a != nil && a.AccessToken != "" {
		grant = lifecycle.ExternalGrant{
			OwnerID:          ident.ID,
			AccessToken:      a.AccessToken,
			RefreshToken:     a.RefreshToken,
			ExpiresAtSeconds: a.ExpiresAt,
		}
	}

	pair, err := m.tokens.Issue(ctx, grant)
	if err != nil {
		return failed(err)
	}

	u := ident
	m.log.Info("session.signin.ok", "owner_id", ident.ID)
	return m.enter(Result{
		State: Valid,
		Record: &Record{
			OwnerID:             ident.ID,
			AccessToken:         pair.Access.Token,
			RefreshToken:        pair.Refresh.Token,
			AccessTokenExpires:  pair.Access.ExpiresAtMillis(),
			RefreshTokenExpires: pair.Refresh.ExpiresAtMillis(),
			User:                &u,
		},
		Changed: true,
	})
}

func (m *Machine) refresh(ctx context.Context, in *Record) (res Result) {
	failed := func(err error) Result {
		m.log.Warn("session.refresh.fail", "owner_id", in.owner(), "err", err)
		out := in.Clone()
		out.Error = ErrorRefreshAccessToken
		return m.enter(Result{State: Errored, Record: out, Changed: true})
	}
	defer func() {
		if p := recover(); p != nil {
			res = failed(fmt.Errorf("panic: %v", p))
		}
	}()

	owner := in.owner()
	if owner == "" {
		return failed(errMissingOwner)
	}

	refresh, err := m.tokens.GetOrCreateRefreshToken(ctx, owner)
	if err != nil {
		return failed(err)
	}
	access, err := m.tokens.GetOrCreateAccessToken(ctx, owner)
	if err != nil {
		return failed(err)
	}

	out := in.Clone()
	out.OwnerID = owner
	out.AccessToken = access.Token
	out.AccessTokenExpires = access.ExpiresAtMillis()
	out.RefreshToken = refresh.Token
	out.RefreshTokenExpires = refresh.ExpiresAtMillis()
	out.Error = ""

	m.log.Debug("session.refresh.ok", "owner_id", owner)
	return m.enter(Result{State: Refreshed, Record: out, Changed: true})
}

func (m *Machine) enter(r Result) Result {
	m.metrics.Transition(r.State.String())
	return r
}
