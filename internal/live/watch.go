package live

import (
	"context"
)

// Watch emits the current snapshot, then a new one after each matching change. The
// subscription is registered before the first query so no committed write is missed.
// The returned channel closes when ctx is done or the hub shuts down. Query errors are
// passed to onErr, when set, and the stream keeps waiting for the next change.
func Watch[T any](ctx context.Context, hub *Hub, filter Filter, query func(ctx context.Context) (T, error), onErr func(error)) <-chan T {
	out := make(chan T)
	sub := hub.Subscribe(filter)

	go func() {
		defer close(out)
		defer sub.Cancel()

		emit := func() bool {
			snapshot, err := query(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return false
				}
				if onErr != nil {
					onErr(err)
				}
				return true
			}
			select {
			case out <- snapshot:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !emit() {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-sub.C():
				if !ok {
					return
				}
				if !emit() {
					return
				}
			}
		}
	}()
	return out
}
