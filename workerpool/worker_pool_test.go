package workerpool_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/pitabwire/bootloader/config"
	"github.com/pitabwire/bootloader/workerpool"
)

type WorkerPoolTestSuite struct {
	suite.Suite
}

func TestWorkerPoolTestSuite(t *testing.T) {
	suite.Run(t, new(WorkerPoolTestSuite))
}

func (s *WorkerPoolTestSuite) newManager(opts ...workerpool.Option) workerpool.Manager {
	cfg := &config.ConfigurationDefault{WorkerPoolCapacity: 4, WorkerPoolCount: 1, WorkerPoolExpiryDuration: "1s"}
	m, err := workerpool.NewManager(context.Background(), cfg, opts...)
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = m.Shutdown(context.Background()) })
	return m
}

func (s *WorkerPoolTestSuite) TestTaskOutcomes() {
	m := s.newManager()
	ctx := context.Background()
	boom := errors.New("boom")

	ok := workerpool.Go(ctx, m, "ok", func(context.Context) (string, error) { return "done", nil })
	failed := workerpool.Go(ctx, m, "failed", func(context.Context) (string, error) { return "", boom })
	panicked := workerpool.Go(ctx, m, "panicked", func(context.Context) (string, error) { panic("kaboom") })

	out := ok.Wait(ctx)
	s.Require().NoError(out.Err)
	s.Equal("done", out.Item)
	s.NotEmpty(ok.ID())
	s.Equal("ok", ok.Name())

	s.ErrorIs(failed.Wait(ctx).Err, boom)

	var panicErr *workerpool.PanicError
	s.Require().ErrorAs(panicked.Wait(ctx).Err, &panicErr)
	s.Equal("kaboom", panicErr.Value)
	s.NotEmpty(panicErr.Stack)
}

func (s *WorkerPoolTestSuite) TestTasksRunConcurrently() {
	m := s.newManager()
	ctx := context.Background()

	release := make(chan struct{})
	var started atomic.Int32

	blocker := func(context.Context) (int, error) {
		started.Add(1)
		<-release
		return 1, nil
	}

	a := workerpool.Go(ctx, m, "a", blocker)
	b := workerpool.Go(ctx, m, "b", blocker)

	s.Eventually(func() bool { return started.Load() == 2 }, time.Second, 5*time.Millisecond)
	close(release)

	s.Equal(1, a.Wait(ctx).Item)
	s.Equal(1, b.Wait(ctx).Item)
}

func (s *WorkerPoolTestSuite) TestSubmitFailures() {
	s.Run("cancelled context", func() {
		m := s.newManager()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		task := workerpool.Go(ctx, m, "late", func(context.Context) (int, error) { return 1, nil })
		s.ErrorIs(task.Wait(context.Background()).Err, context.Canceled)
	})

	s.Run("no manager", func() {
		task := workerpool.Go(context.Background(), nil, "orphan", func(context.Context) (int, error) { return 1, nil })
		s.ErrorIs(task.Wait(context.Background()).Err, workerpool.ErrPoolNotConfigured)
	})

	s.Run("wait gives up with its context", func() {
		m := s.newManager()
		release := make(chan struct{})
		defer close(release)

		task := workerpool.Go(context.Background(), m, "slow", func(context.Context) (int, error) {
			<-release
			return 1, nil
		})

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		s.ErrorIs(task.Wait(ctx).Err, context.DeadlineExceeded)
	})
}

func (s *WorkerPoolTestSuite) TestMultiPool() {
	m := s.newManager(workerpool.WithPoolCount(2), workerpool.WithSinglePoolCapacity(2))
	task := workerpool.Go(context.Background(), m, "multi", func(context.Context) (bool, error) { return true, nil })
	s.True(task.Wait(context.Background()).Item)
}
