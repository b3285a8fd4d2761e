// Package batch coalesces concurrent single-item calls into grouped resolver
// invocations.
//
// Every call sharing a key that arrives before its group's resolver starts is
// collected, in arrival order, into one inputs slice. The resolver runs once
// per group and each caller receives the result at its own index. A call that
// arrives after the resolver started opens a new group; groups never overlap.
//
// A group closes when Options.Wait has elapsed since its first call or when
// it holds Options.MaxBatch inputs, whichever happens first.
package batch

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultWait is the grouping window used when Options.Wait is zero.
const DefaultWait = time.Millisecond

// Result is the outcome of one batch slot: a value or an error, never both.
type Result[T any] struct {
	Value T
	Err   error
}

// Ok wraps a successful slot value.
func Ok[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

// Fail wraps a slot error.
func Fail[T any](err error) Result[T] {
	return Result[T]{Err: err}
}

// Resolver handles one group. It must return exactly one Result per input.
// A non-nil error fails every call of the group.
type Resolver[C, In, Out any] func(ctx context.Context, c C, inputs []In) ([]Result[Out], error)

// Options tunes group formation.
type Options struct {
	// Wait is how long a group stays open after its first call.
	Wait time.Duration
	// MaxBatch closes a group early once it holds this many inputs.
	// Zero means unbounded.
	MaxBatch int
}

// Coalescer groups calls per key and dispatches them to a Resolver.
//
// Thread-safety: Call is safe for concurrent use.
type Coalescer[C, In, Out any] struct {
	key     func(C) string
	resolve Resolver[C, In, Out]
	opts    Options

	mu      sync.Mutex
	pending map[string]*group[C, In, Out]
}

type group[C, In, Out any] struct {
	ctx     context.Context
	c       C
	inputs  []In
	results []Result[Out]
	timer   *time.Timer
	done    chan struct{}
}

// New creates a Coalescer. key derives the grouping key from the per-call
// context value, so calls for different identities never share a group.
func New[C, In, Out any](key func(C) string, resolve Resolver[C, In, Out], opts Options) *Coalescer[C, In, Out] {
	if opts.Wait <= 0 {
		opts.Wait = DefaultWait
	}
	return &Coalescer[C, In, Out]{
		key:     key,
		resolve: resolve,
		opts:    opts,
		pending: make(map[string]*group[C, In, Out]),
	}
}

// Call enqueues in and blocks until its group has been resolved.
//
// The resolver receives the first caller's context with cancellation
// detached: once a group exists, every member waits for its completion.
func (b *Coalescer[C, In, Out]) Call(ctx context.Context, c C, in In) (Out, error) {
	k := b.key(c)

	b.mu.Lock()
	g, ok := b.pending[k]
	if !ok {
		g = &group[C, In, Out]{
			ctx:  context.WithoutCancel(ctx),
			c:    c,
			done: make(chan struct{}),
		}
		b.pending[k] = g
		g.timer = time.AfterFunc(b.opts.Wait, func() { b.dispatch(k, g) })
	}
	idx := len(g.inputs)
	g.inputs = append(g.inputs, in)
	full := b.opts.MaxBatch > 0 && len(g.inputs) >= b.opts.MaxBatch
	if full {
		// Later calls must start a fresh group.
		delete(b.pending, k)
	}
	b.mu.Unlock()

	if full && g.timer.Stop() {
		go b.run(g)
	}

	<-g.done
	r := g.results[idx]
	return r.Value, r.Err
}

// Pending returns the number of open groups. Used for testing.
func (b *Coalescer[C, In, Out]) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// dispatch closes g when its window elapses.
func (b *Coalescer[C, In, Out]) dispatch(k string, g *group[C, In, Out]) {
	b.mu.Lock()
	if b.pending[k] == g {
		delete(b.pending, k)
	}
	b.mu.Unlock()
	b.run(g)
}

// run resolves a closed group exactly once and releases its callers.
func (b *Coalescer[C, In, Out]) run(g *group[C, In, Out]) {
	defer close(g.done)
	g.results = b.safeResolve(g)
}

func (b *Coalescer[C, In, Out]) safeResolve(g *group[C, In, Out]) (results []Result[Out]) {
	defer func() {
		if p := recover(); p != nil {
			results = failAll[Out](len(g.inputs), fmt.Errorf("batch resolver panic: %v", p))
		}
	}()

	results, err := b.resolve(g.ctx, g.c, g.inputs)
	if err != nil {
		return failAll[Out](len(g.inputs), err)
	}
	if len(results) != len(g.inputs) {
		return failAll[Out](len(g.inputs), fmt.Errorf("batch resolver returned %d results for %d inputs", len(results), len(g.inputs)))
	}
	return results
}

func failAll[Out any](n int, err error) []Result[Out] {
	out := make([]Result[Out], n)
	for i := range out {
		out[i] = Fail[Out](err)
	}
	return out
}
