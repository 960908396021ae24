package cdp

import (
	"context"
	"time"
)

// CombineContext derives a context from primary that is also canceled when
// secondary is. Values come from primary only, which is where chromedp keeps
// its target; secondary usually carries the caller's deadline.
func CombineContext(primary, secondary context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(primary)
	go func() {
		select {
		case <-secondary.Done():
			cancel()
		case <-combined.Done():
		}
	}()
	return combined, cancel
}

type valueOnlyContext struct {
	context.Context
}

func (valueOnlyContext) Deadline() (deadline time.Time, ok bool) { return }
func (valueOnlyContext) Done() <-chan struct{}                    { return nil }
func (valueOnlyContext) Err() error                               { return nil }

// Detach returns a context carrying ctx's values but none of its cancellation.
// Shutdown paths use it so closing the browser still works after the run
// context has been canceled.
func Detach(ctx context.Context) context.Context {
	return valueOnlyContext{ctx}
}
