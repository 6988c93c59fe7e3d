package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlouiLouai/educ/internal/tasks"
)

type recordingQueue struct {
	mu    sync.Mutex
	tasks []tasks.Task
	err   error
}

func (q *recordingQueue) Enqueue(_ context.Context, task tasks.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.tasks = append(q.tasks, task)
	return nil
}

func TestSweepScheduleIsHourly(t *testing.T) {
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	schedule, err := parser.Parse(SweepSchedule)
	require.NoError(t, err)

	from := time.Date(2026, 3, 1, 10, 15, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC), schedule.Next(from))
}

func TestEnqueueSweep(t *testing.T) {
	q := &recordingQueue{}
	s := NewScheduler(q, zerolog.Nop())

	s.enqueueSweep()

	require.Len(t, q.tasks, 1)
	assert.Equal(t, tasks.TypeIdentitySweep, q.tasks[0].Type)
}

func TestEnqueueSweepFailureIsLogged(t *testing.T) {
	q := &recordingQueue{err: errors.New("redis down")}
	s := NewScheduler(q, zerolog.Nop())

	assert.NotPanics(t, s.enqueueSweep)
	assert.Empty(t, q.tasks)
}

func TestStartStop(t *testing.T) {
	s := NewScheduler(&recordingQueue{}, zerolog.Nop())
	require.NoError(t, s.Start())
	assert.Len(t, s.cron.Entries(), 1)
	s.Stop()

	idle := NewScheduler(nil, zerolog.Nop())
	require.NoError(t, idle.Start())
	assert.Empty(t, idle.cron.Entries())
}
