package scheduler_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/acc-network/relay/internal/core/ports"
	scheduler "github.com/acc-network/relay/internal/infrastructure/scheduler/gocron"
	"github.com/stretchr/testify/require"
)

var schedulerTypes = map[string]func() ports.SchedulerService{
	"gocron": scheduler.NewScheduler,
}

func TestSchedulerService(t *testing.T) {
	for schedulerType, factory := range schedulerTypes {
		t.Run(schedulerType, func(t *testing.T) {
			testScheduler(t, factory)
		})
	}
}

func testScheduler(t *testing.T, newScheduler func() ports.SchedulerService) {
	t.Run("runs every second", func(t *testing.T) {
		svc := newScheduler()
		svc.Start()
		defer svc.Stop()

		var runs atomic.Int32
		err := svc.Schedule("*/1 * * * * *", func() {
			runs.Add(1)
		})
		require.NoError(t, err)

		next := svc.NextRun()
		require.False(t, next.IsZero())
		require.True(t, next.Before(time.Now().Add(2*time.Second)))

		require.Eventually(t, func() bool {
			return runs.Load() >= 2
		}, 5*time.Second, 50*time.Millisecond)
	})

	t.Run("skips overlapping ticks", func(t *testing.T) {
		svc := newScheduler()
		svc.Start()
		defer svc.Stop()

		var running, overlaps atomic.Int32
		err := svc.Schedule("*/1 * * * * *", func() {
			if running.Add(1) > 1 {
				overlaps.Add(1)
			}
			time.Sleep(1500 * time.Millisecond)
			running.Add(-1)
		})
		require.NoError(t, err)

		time.Sleep(4 * time.Second)
		require.Zero(t, overlaps.Load())
	})

	t.Run("replaces the scheduled job", func(t *testing.T) {
		svc := newScheduler()
		svc.Start()
		defer svc.Stop()

		var first, second atomic.Int32
		require.NoError(t, svc.Schedule("*/1 * * * * *", func() { first.Add(1) }))
		require.NoError(t, svc.Schedule("*/1 * * * * *", func() { second.Add(1) }))

		require.Eventually(t, func() bool {
			return second.Load() >= 1
		}, 3*time.Second, 50*time.Millisecond)
		require.Zero(t, first.Load())
	})

	t.Run("invalid expression", func(t *testing.T) {
		svc := newScheduler()
		svc.Start()
		defer svc.Stop()

		require.Error(t, svc.Schedule("not a cron", func() {}))
		require.Error(t, svc.Schedule("", func() {}))
		require.Error(t, svc.Schedule("*/1 * * * * *", nil))
		require.True(t, svc.NextRun().IsZero())
	})

	t.Run("stop before start", func(t *testing.T) {
		svc := newScheduler()
		svc.Stop()
		require.True(t, svc.NextRun().IsZero())
	})
}
