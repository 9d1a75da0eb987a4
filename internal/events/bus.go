package events

import (
	"context"
	"log/slog"
	"sync"
)

// Observer handles one event. Update runs on its own goroutine; returning an
// error (or panicking) affects nothing but the log.
type Observer interface {
	Name() string
	Update(ctx context.Context, ev Event) error
}

// Bus fans events out to its observers. Observers are registered once at
// startup; Notify never blocks on them and never surfaces their failures.
type Bus struct {
	log       *slog.Logger
	observers []Observer
	wg        sync.WaitGroup
}

func NewBus(log *slog.Logger) *Bus {
	return &Bus{log: log}
}

func (b *Bus) Attach(obs ...Observer) {
	b.observers = append(b.observers, obs...)
}

// Notify dispatches ev to every observer on its own goroutine. The context
// is detached from the caller so a finished request does not cut short a
// side effect already in flight.
func (b *Bus) Notify(ctx context.Context, ev Event) {
	ctx = context.WithoutCancel(ctx)
	for _, o := range b.observers {
		b.wg.Add(1)
		go func(o Observer) {
			defer b.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					b.log.Error("observer panicked",
						"observer", o.Name(), "event", ev.Kind, "panic", r)
				}
			}()
			if err := o.Update(ctx, ev); err != nil {
				b.log.Error("observer update failed",
					"observer", o.Name(), "event", ev.Kind, "order_id", ev.Order.ID, "err", err)
			}
		}(o)
	}
}

// Drain blocks until all in-flight dispatches finish. Called on shutdown and
// by tests.
func (b *Bus) Drain() {
	b.wg.Wait()
}
