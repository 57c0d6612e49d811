package scheduler_test

import (
	"context"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attendance_bot/internal/infra/scheduler"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestStartRejectsInvalidSpec(t *testing.T) {
	s := scheduler.NewRunScheduler([]string{"every morning"}, func(context.Context) {}, time.Second, quietLogger())
	assert.Error(t, s.Start())
}

func TestRunsJobOnSchedule(t *testing.T) {
	ran := make(chan struct{}, 1)
	s := scheduler.NewRunScheduler([]string{"@every 1s"}, func(context.Context) {
		select {
		case ran <- struct{}{}:
		default:
		}
	}, time.Second, quietLogger())
	require.NoError(t, s.Start())
	defer s.Stop()

	assert.False(t, s.Next().IsZero())
	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not run")
	}
}

func TestSkipsOverlappingRunsAndCancelsOnStop(t *testing.T) {
	var runs atomic.Int32
	cancelled := make(chan struct{})
	s := scheduler.NewRunScheduler([]string{"@every 1s"}, func(ctx context.Context) {
		runs.Add(1)
		<-ctx.Done()
		close(cancelled)
	}, 0, quietLogger())
	require.NoError(t, s.Start())

	time.Sleep(3500 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load(), "ticks during a running job are skipped")

	s.Stop()
	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("running job was not cancelled")
	}
}
