// Copyright 2025 Nhat-Nguyen Nguyen
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package events routes typed events to the listeners registered for them.
package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"tokenpublisher/modules/worker"
)

type (
	Event interface {
		Type() string
	}

	Listener interface {
		EventType() string
		Handle(ctx context.Context, ev Event) error
	}

	// Collection is a set of listeners contributed by one plugin.
	Collection interface {
		Listeners() []Listener
	}

	// Descriptor names a listener implementation and builds its collection.
	Descriptor interface {
		ImplementationType() string
		New() (Collection, error)
	}
)

// ListenerFunc adapts a function to Listener.
type ListenerFunc struct {
	Type string
	Fn   func(ctx context.Context, ev Event) error
}

func (f ListenerFunc) EventType() string { return f.Type }

func (f ListenerFunc) Handle(ctx context.Context, ev Event) error { return f.Fn(ctx, ev) }

// Dispatcher delivers each event synchronously to every listener registered
// for its type, in registration order.
type Dispatcher struct {
	mu        sync.RWMutex
	listeners map[string][]Listener

	concurrency int
	logger      *slog.Logger
}

type DispatcherOption func(*Dispatcher)

// WithConcurrency bounds the number of events DispatchAll handles at once.
func WithConcurrency(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

func WithLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		listeners:   make(map[string][]Listener),
		concurrency: 1,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) Register(ls ...Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, l := range ls {
		d.listeners[l.EventType()] = append(d.listeners[l.EventType()], l)
	}
}

// Install builds the descriptor's collection and registers all of its listeners.
func (d *Dispatcher) Install(desc Descriptor) error {
	c, err := desc.New()
	if err != nil {
		return fmt.Errorf("events: install %s: %w", desc.ImplementationType(), err)
	}
	d.Register(c.Listeners()...)
	d.logger.Info("events: installed listeners",
		slog.String("implementation", desc.ImplementationType()),
		slog.Int("count", len(c.Listeners())),
	)
	return nil
}

// Dispatch hands ev to its listeners. Events nobody listens to are ignored.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) error {
	d.mu.RLock()
	ls := d.listeners[ev.Type()]
	d.mu.RUnlock()

	if len(ls) == 0 {
		d.logger.DebugContext(ctx, "events: no listener for event", slog.String("type", ev.Type()))
		return nil
	}

	var errs []error
	for _, l := range ls {
		if err := l.Handle(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DispatchAll dispatches a batch on a bounded worker pool and joins the
// errors of every event that failed.
func (d *Dispatcher) DispatchAll(ctx context.Context, evs []Event) error {
	var (
		mu   sync.Mutex
		errs []error
	)
	collect := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}
	worker.ForEach(ctx, d.concurrency, evs, func(ctx context.Context, ev Event) {
		defer func() {
			if r := recover(); r != nil {
				d.logger.ErrorContext(ctx, "events: listener panicked", slog.String("type", ev.Type()), slog.Any("panic", r))
				collect(fmt.Errorf("events: listener for %s panicked: %v", ev.Type(), r))
			}
		}()
		if err := d.Dispatch(ctx, ev); err != nil {
			collect(err)
		}
	})
	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
