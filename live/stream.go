package live

import (
	"context"
	"time"
)

// Loader re-queries the full result set of a subscription.
type Loader[T any] func(ctx context.Context) (T, error)

// Snapshot - полный результат запроса на момент At.
type Snapshot[T any] struct {
	Data T
	Err  error
	At   time.Time
}

// Stream delivers an initial snapshot and then a fresh snapshot after every
// change to its topic. It must be released with Cancel or by cancelling the
// context passed to Subscribe; Updates is closed afterwards.
type Stream[T any] struct {
	updates chan Snapshot[T]
	cancel  context.CancelFunc
	done    chan struct{}
}

func Subscribe[T any](ctx context.Context, b *Broker, topic Topic, load Loader[T]) *Stream[T] {
	ctx, cancel := context.WithCancel(ctx)
	s := &Stream[T]{
		updates: make(chan Snapshot[T], 1),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	sub := b.register(topic)

	go func() {
		defer close(s.done)
		defer close(s.updates)
		defer b.unregister(topic, sub)

		if !s.deliver(ctx, load) {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-sub.wake:
				if !ok {
					return
				}
				if !s.deliver(ctx, load) {
					return
				}
			}
		}
	}()

	return s
}

func (s *Stream[T]) Updates() <-chan Snapshot[T] {
	return s.updates
}

// Cancel stops the stream and waits until its goroutine has exited.
func (s *Stream[T]) Cancel() {
	s.cancel()
	<-s.done
}

func (s *Stream[T]) deliver(ctx context.Context, load Loader[T]) bool {
	data, err := load(ctx)
	if ctx.Err() != nil {
		return false
	}
	snap := Snapshot[T]{Data: data, Err: err, At: time.Now()}
	select {
	case s.updates <- snap:
		return true
	case <-ctx.Done():
		return false
	}
}
