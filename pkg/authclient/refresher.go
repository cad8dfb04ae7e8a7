package authclient

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

const refreshKey = "refresh"

// Refresher coalesces concurrent token refreshes into one in-flight call.
// Every caller that arrives while a refresh is running receives the same
// token or the same error. The zero value is ready to use.
type Refresher struct {
	group   singleflight.Group
	waiters atomic.Int32
	running atomic.Bool
}

// Run executes op unless a refresh is already in flight, in which case it
// waits for that one instead.
//
// op is detached from the caller's cancellation: if ctx ends first, Run
// returns ctx.Err() to this caller only and the refresh carries on for
// everyone else.
func (r *Refresher) Run(ctx context.Context, op func(context.Context) (string, error)) (string, error) {
	// Counted before DoChan so InFlight never misses the window between
	// registration and op starting.
	r.waiters.Add(1)
	defer r.waiters.Add(-1)

	ch := r.group.DoChan(refreshKey, func() (any, error) {
		r.running.Store(true)
		defer r.running.Store(false)
		return op(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// InFlight reports whether a refresh is pending. It becomes true when the
// first caller enters Run and stays true until every caller has returned
// and op itself has finished, whichever is later. Once the last Run returns
// and op is done it reads false.
func (r *Refresher) InFlight() bool {
	return r.waiters.Load() > 0 || r.running.Load()
}
