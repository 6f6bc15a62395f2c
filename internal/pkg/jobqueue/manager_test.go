package jobqueue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManager(t *testing.T) {
	q := NewQueue(nil, 2)
	m := NewManager(q, nil, 0)

	assert.Same(t, q, m.Queue())
	assert.Equal(t, defaultBacklogInterval, m.backlogInterval)
	assert.False(t, m.IsRunning())

	// Stop without starting should be safe
	m.Stop()
	assert.False(t, m.IsRunning())
}

func TestManager_RunBacklogOnce(t *testing.T) {
	var gotLimit int
	m := NewManager(NewQueue(nil, 1), func(ctx context.Context, limit int) (int, error) {
		gotLimit = limit
		return 4, nil
	}, time.Minute)

	n, err := m.RunBacklogOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, BacklogBatchSize, gotLimit)

	failing := NewManager(NewQueue(nil, 1), func(ctx context.Context, limit int) (int, error) {
		return 0, errors.New("db down")
	}, time.Minute)
	_, err = failing.RunBacklogOnce(context.Background())
	assert.EqualError(t, err, "db down")

	none := NewManager(NewQueue(nil, 1), nil, time.Minute)
	n, err = none.RunBacklogOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestManager_SweepsBacklogIntoQueue(t *testing.T) {
	client := newIsolatedRedisClient(t, isolatedJobQueueTestRedisDB)
	a := &recordingArchiver{}
	q := NewQueue(client, 1)
	q.Register(JobTypeInvoiceArchive, InvoiceArchiveHandler(a))

	// The backlog keeps reporting the same unarchived invoice until it is
	// archived, like the invoice repository does.
	backlog := func(ctx context.Context, limit int) (int, error) {
		if len(a.archived()) > 0 {
			return 0, nil
		}
		queued, err := q.EnqueueInvoiceArchive(ctx, "inv-7")
		if err != nil || !queued {
			return 0, err
		}
		return 1, nil
	}
	m := NewManager(q, backlog, 20*time.Millisecond)

	m.Start()
	assert.True(t, m.IsRunning())
	ok := waitFor(func() bool { return len(a.archived()) > 0 }, 5*time.Second)
	m.Stop()
	assert.False(t, m.IsRunning())

	require.True(t, ok, "backlog sweep did not feed the queue")
	assert.Equal(t, []string{"inv-7"}, a.archived())
}
