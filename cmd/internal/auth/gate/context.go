package gate

import (
	"context"

	"console/cmd/internal/auth/session"
)

type ctxKey struct{}

// WithResult stores an evaluated session in ctx.
func WithResult(ctx context.Context, res session.Result) context.Context {
	return context.WithValue(ctx, ctxKey{}, res)
}

// ResultFromContext returns the session evaluated by the gate.
func ResultFromContext(ctx context.Context) (session.Result, bool) {
	res, ok := ctx.Value(ctxKey{}).(session.Result)
	return res, ok
}

// ViewFromContext returns the caller-facing view of the gate's session. ok is
// false when the request carried no session.
func ViewFromContext(ctx context.Context) (session.View, bool) {
	res, ok := ResultFromContext(ctx)
	if !ok {
		return session.View{}, false
	}
	return res.View()
}
