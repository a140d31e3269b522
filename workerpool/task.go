package workerpool

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/pitabwire/util"
	"github.com/rs/xid"
)

// PanicError carries a value recovered from a task.
type PanicError struct {
	Value any
	Stack []byte
}

func (p *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", p.Value)
}

// Outcome is what a task produced: an item or an error.
type Outcome[T any] struct {
	Item T
	Err  error
}

// Task is a handle on a function running on the pool.
type Task[T any] struct {
	id     string
	name   string
	result chan Outcome[T]
}

func (t *Task[T]) ID() string {
	return t.id
}

func (t *Task[T]) Name() string {
	return t.name
}

// Wait blocks until the task finishes or ctx is done. It may be called once.
func (t *Task[T]) Wait(ctx context.Context) Outcome[T] {
	select {
	case <-ctx.Done():
		return Outcome[T]{Err: ctx.Err()}
	case out := <-t.result:
		return out
	}
}

// Go submits fn to the pool of m. A panic inside fn is recovered and returned as
// a *PanicError; a submission failure is returned from Wait.
func Go[T any](ctx context.Context, m Manager, name string, fn func(ctx context.Context) (T, error)) *Task[T] {
	task := &Task[T]{
		id:     xid.New().String(),
		name:   name,
		result: make(chan Outcome[T], 1),
	}

	log := util.Log(ctx).WithField("task", name).WithField("task_id", task.id)

	run := func() {
		var out Outcome[T]
		defer func() {
			if rec := recover(); rec != nil {
				log.WithField("panic", fmt.Sprint(rec)).Error("task panicked")
				out = Outcome[T]{Err: &PanicError{Value: rec, Stack: debug.Stack()}}
			}
			task.result <- out
		}()

		out.Item, out.Err = fn(ctx)
	}

	if m == nil {
		task.result <- Outcome[T]{Err: ErrPoolNotConfigured}
		return task
	}

	pool, err := m.GetPool()
	if err == nil {
		err = pool.Submit(ctx, run)
	}
	if err != nil {
		log.WithError(err).Error("could not submit task")
		task.result <- Outcome[T]{Err: fmt.Errorf("submit %s: %w", name, err)}
	}

	return task
}
