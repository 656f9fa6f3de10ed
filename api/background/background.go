package background

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Background runs fire-and-forget tasks such as emails outside the request
// that triggered them. Shutdown waits for the tasks still running.
type Background struct {
	log logrus.FieldLogger
	wg  sync.WaitGroup

	mu      sync.Mutex
	closing bool
}

func New(log logrus.FieldLogger) *Background {
	return &Background{log: log}
}

// Run starts fn on its own goroutine. Panics are recovered and logged. Tasks
// submitted after Shutdown are run inline.
func (b *Background) Run(fn func()) {
	b.mu.Lock()
	if b.closing {
		b.mu.Unlock()
		b.safe(fn)
		return
	}
	b.wg.Add(1)
	b.mu.Unlock()

	go func() {
		defer b.wg.Done()
		b.safe(fn)
	}()
}

func (b *Background) safe(fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			b.log.WithField("panic", rec).Error("background task panicked")
		}
	}()
	fn()
}

func (b *Background) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	b.closing = true
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for background tasks: %w", ctx.Err())
	}
}
