// Package indexctx owns the read-only artifacts that retrieval runs against and
// loads each one lazily, once per process.
package indexctx

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Lazy loads a value on first use. Concurrent first calls share one load. A
// failed load is logged and yields the empty value; the next call retries.
type Lazy[T any] struct {
	name   string
	load   func(context.Context) (T, error)
	empty  func() T
	logger *zap.Logger

	group  singleflight.Group
	mu     sync.RWMutex
	value  T
	loaded bool
	gen    uint64
}

// NewLazy returns a handle named name. empty builds the stand-in returned
// while the artifact is unavailable.
func NewLazy[T any](name string, load func(context.Context) (T, error), empty func() T, logger *zap.Logger) *Lazy[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Lazy[T]{name: name, load: load, empty: empty, logger: logger}
}

// Get returns the cached value, loading it if needed.
func (l *Lazy[T]) Get(ctx context.Context) T {
	l.mu.RLock()
	if l.loaded {
		v := l.value
		l.mu.RUnlock()
		return v
	}
	gen := l.gen
	l.mu.RUnlock()

	v, err, _ := l.group.Do(l.name, func() (any, error) {
		l.mu.RLock()
		if l.loaded {
			v := l.value
			l.mu.RUnlock()
			return v, nil
		}
		l.mu.RUnlock()

		start := time.Now()
		// The load outlives the caller that triggered it; waiters share it.
		v, err := l.load(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		l.mu.Lock()
		if l.gen == gen {
			l.value, l.loaded = v, true
		}
		l.mu.Unlock()
		l.logger.Info("artifact loaded", zap.String("artifact", l.name), zap.Duration("elapsed", time.Since(start)))
		return v, nil
	})
	if err != nil {
		l.logger.Error("artifact unavailable, serving empty component",
			zap.String("artifact", l.name),
			zap.Error(err))
		return l.empty()
	}
	out, ok := v.(T)
	if !ok {
		return l.empty()
	}
	return out
}

// Loaded reports whether a value is cached.
func (l *Lazy[T]) Loaded() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.loaded
}

// Invalidate drops the cached value. A load in flight is not cached.
func (l *Lazy[T]) Invalidate() {
	l.mu.Lock()
	var zero T
	l.value, l.loaded = zero, false
	l.gen++
	l.mu.Unlock()
	l.group.Forget(l.name)
}
