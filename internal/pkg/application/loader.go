package application

import (
	"context"
	"errors"
	"sync"
)

var ErrSuperseded = errors.New("load superseded by a newer one")

// Loader runs loads where only the most recently started one may commit its
// result. Starting a load cancels the one in flight, and a load that finishes
// after a newer one was started returns ErrSuperseded without committing.
type Loader[T any] struct {
	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
}

func (l *Loader[T]) Load(ctx context.Context, load func(context.Context) (T, error), commit func(T)) (T, error) {
	l.mu.Lock()
	l.generation++
	gen := l.generation
	if l.cancel != nil {
		l.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.mu.Unlock()

	defer cancel()

	v, err := load(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()

	if gen != l.generation {
		var zero T
		return zero, ErrSuperseded
	}

	l.cancel = nil

	if err != nil {
		return v, err
	}

	if commit != nil {
		commit(v)
	}

	return v, nil
}

// Generation is the number of loads started so far.
func (l *Loader[T]) Generation() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.generation
}
