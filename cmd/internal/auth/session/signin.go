package session

import "context"

// Account is what an upstream provider handed over at sign-in. ExpiresAt is
// epoch seconds.
type Account struct {
	Provider     string
	AccessToken  string
	RefreshToken string
	ExpiresAt    int64
}

// SignIn is a verified identity plus the optional provider account.
type SignIn struct {
	Identity Identity
	Account  *Account
}

// Attempt is a credential sign-in attempt.
type Attempt struct {
	Email    string
	Password string
}

// Verifier checks credentials. ok=false means "no identity"; an error is an
// infrastructure failure and is treated the same way by the machine.
type Verifier interface {
	Verify(ctx context.Context, a Attempt) (SignIn, bool, error)
}

// VerifierFunc adapts a function to Verifier.
type VerifierFunc func(ctx context.Context, a Attempt) (SignIn, bool, error)

func (f VerifierFunc) Verify(ctx context.Context, a Attempt) (SignIn, bool, error) {
	return f(ctx, a)
}
