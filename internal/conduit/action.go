package conduit

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/oddin-space/simcore/internal/wire"
)

// ActionConduit is a Member's action-kind binding: invoke-only, no
// persistent value, no subscription. Invoke passes the request's args
// through unchecked; the invoke function validates them itself.
type ActionConduit struct {
	Obj    wire.ObjectID
	Member string
	invoke func(args []wire.Value) (wire.Value, error)
}

func NewAction(obj wire.ObjectID, member string, invoke func([]wire.Value) (wire.Value, error)) *ActionConduit {
	return &ActionConduit{Obj: obj, Member: member, invoke: invoke}
}

func (c *ActionConduit) Invoke(args []wire.Value) (wire.Value, error) {
	return c.invoke(args)
}

// RateLimitedActionConduit wraps an ActionConduit with a token-bucket cap
// shared across every connection invoking it — for actions expensive
// enough server-side (a trajectory recompute, a docking request) that per
// client request-rate limiting at the transport layer isn't enough.
type RateLimitedActionConduit struct {
	inner   *ActionConduit
	limiter *rate.Limiter
}

func NewRateLimitedAction(inner *ActionConduit, r rate.Limit, burst int) *RateLimitedActionConduit {
	return &RateLimitedActionConduit{inner: inner, limiter: rate.NewLimiter(r, burst)}
}

// Invoke is the non-blocking path request dispatch uses: the tick loop is
// single-threaded, so a caller exceeding its bucket is rejected
// immediately rather than stalling the whole tick waiting for a refill.
// This is what makes *RateLimitedActionConduit satisfy object.ActionMember.
func (c *RateLimitedActionConduit) Invoke(args []wire.Value) (wire.Value, error) {
	if !c.limiter.Allow() {
		return wire.Value{}, wire.NewRequestError(wire.ErrBadRequest, "action %q rate limited", c.inner.Member)
	}
	return c.inner.Invoke(args)
}

// InvokeBlocking waits for the bucket to admit the call instead of
// rejecting outright, for callers outside the tick loop (an admin tool,
// a test) that can afford to block.
func (c *RateLimitedActionConduit) InvokeBlocking(ctx context.Context, args []wire.Value) (wire.Value, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return wire.Value{}, wire.NewRequestError(wire.ErrBadRequest, "action %q rate limited: %v", c.inner.Member, err)
	}
	return c.inner.Invoke(args)
}
