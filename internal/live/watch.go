package live

import "context"

// Result is one emission of a watched query.
type Result[T any] struct {
	Value T
	Err   error
}

// Watch runs query once, then again after every publish on topics, sending
// each result on the returned channel. The channel closes when ctx ends or
// the hub closes. Publishes that arrive while a result is waiting to be read
// coalesce into a single re-run.
func Watch[T any](ctx context.Context, h *Hub, query func() (T, error), topics ...string) <-chan Result[T] {
	out := make(chan Result[T])
	sub := h.Subscribe(topics...)

	go func() {
		defer close(out)
		defer sub.Close()

		for {
			v, err := query()
			select {
			case out <- Result[T]{Value: v, Err: err}:
			case <-ctx.Done():
				return
			}

			select {
			case _, ok := <-sub.C:
				if !ok {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}
