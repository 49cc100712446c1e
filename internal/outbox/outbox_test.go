package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/taskflow-api/internal/models"
	"github.com/yukikurage/taskflow-api/internal/queue"
	"github.com/yukikurage/taskflow-api/internal/testutil"
	"gorm.io/gorm"
)

func TestRun_FlushesAfterCommit(t *testing.T) {
	db := testutil.NewDB(t)
	q := &testutil.RecordingQueue{}
	runner := NewRunner(db, q, testutil.Logger())

	var order []string
	err := runner.Run(context.Background(), func(tx *gorm.DB, box *Box) error {
		if err := tx.Create(&models.User{Email: "a@example.com", PasswordHash: "x"}).Error; err != nil {
			return err
		}
		box.Enqueue("welcome", map[string]any{"user_id": 1})
		box.AfterCommit(func(context.Context) {
			order = append(order, "hook")
			// Hooks run before jobs are pushed.
			assert.Empty(t, q.Jobs())
		})
		assert.Empty(t, q.Jobs(), "nothing is pushed inside the transaction")
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"hook"}, order)
	assert.Equal(t, []string{"welcome"}, q.Types())
}

func TestRun_RollbackDiscardsEverything(t *testing.T) {
	db := testutil.NewDB(t)
	q := &testutil.RecordingQueue{}
	runner := NewRunner(db, q, testutil.Logger())

	boom := errors.New("boom")
	hookRan := false
	err := runner.Run(context.Background(), func(tx *gorm.DB, box *Box) error {
		require.NoError(t, tx.Create(&models.User{Email: "b@example.com", PasswordHash: "x"}).Error)
		box.Enqueue("welcome", nil)
		box.AfterCommit(func(context.Context) { hookRan = true })
		return boom
	})
	assert.ErrorIs(t, err, boom)

	assert.Empty(t, q.Jobs())
	assert.False(t, hookRan)

	var count int64
	db.Model(&models.User{}).Count(&count)
	assert.Zero(t, count)
}

func TestRun_EncodingFailureRollsBack(t *testing.T) {
	db := testutil.NewDB(t)
	q := &testutil.RecordingQueue{}
	runner := NewRunner(db, q, testutil.Logger())

	err := runner.Run(context.Background(), func(tx *gorm.DB, box *Box) error {
		require.NoError(t, tx.Create(&models.User{Email: "c@example.com", PasswordHash: "x"}).Error)
		box.Enqueue("bad", map[string]any{"ch": make(chan int)})
		return nil
	})
	assert.Error(t, err)

	var count int64
	db.Model(&models.User{}).Count(&count)
	assert.Zero(t, count)
	assert.Empty(t, q.Jobs())
}

func TestRun_EnqueueFailureIsNotReturned(t *testing.T) {
	db := testutil.NewDB(t)
	q := &testutil.RecordingQueue{Err: errors.New("redis down")}
	runner := NewRunner(db, q, testutil.Logger())

	err := runner.Run(context.Background(), func(tx *gorm.DB, box *Box) error {
		box.Enqueue("welcome", nil)
		return nil
	})
	assert.NoError(t, err)
}


// stalledQueue accepts no job until ctx gives up, like an unresponsive
// Redis host.
type stalledQueue struct{}

func (stalledQueue) Enqueue(ctx context.Context, _ queue.Job) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestRun_FullQueueDoesNotBlockCaller(t *testing.T) {
	db := testutil.NewDB(t)
	q := queue.NewMemoryQueue(1)
	runner := NewRunner(db, q, testutil.Logger())

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- runner.Run(ctx, func(tx *gorm.DB, box *Box) error {
			box.Enqueue("first", nil)
			box.Enqueue("second", nil)
			return nil
		})
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run blocked on a full queue after commit")
	}
	assert.Equal(t, 1, q.Len())
}

func TestRun_FlushIsBoundedWithoutRequestDeadline(t *testing.T) {
	db := testutil.NewDB(t)
	runner := NewRunner(db, stalledQueue{}, testutil.Logger())
	runner.flushTimeout = 50 * time.Millisecond

	done := make(chan error, 1)
	go func() {
		done <- runner.Run(context.Background(), func(tx *gorm.DB, box *Box) error {
			box.Enqueue("first", nil)
			box.Enqueue("second", nil)
			return nil
		})
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run blocked on an unresponsive queue after commit")
	}
}
