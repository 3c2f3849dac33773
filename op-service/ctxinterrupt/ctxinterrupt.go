package ctxinterrupt

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// DefaultInterruptSignals is the set of signals treated as an operator interrupt.
var DefaultInterruptSignals = []os.Signal{
	os.Interrupt,
	os.Kill,
	syscall.SIGTERM,
	syscall.SIGQUIT,
}

// WithCancelOnInterrupt returns a context that is cancelled on the first interrupt signal.
// A second signal is left to the default handler, so a stuck process can still be killed.
func WithCancelOnInterrupt(ctx context.Context) context.Context {
	ctx, cancel := context.WithCancelCause(ctx)
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, DefaultInterruptSignals...)
	go func() {
		defer signal.Stop(ch)
		select {
		case sig := <-ch:
			cancel(&InterruptedError{Signal: sig})
		case <-ctx.Done():
		}
	}()
	return ctx
}

type InterruptedError struct {
	Signal os.Signal
}

func (e *InterruptedError) Error() string {
	return "interrupted by " + e.Signal.String()
}
