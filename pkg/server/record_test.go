package server

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ag-ui/go-engine/internal/testutil"
	"github.com/ag-ui/go-engine/pkg/core"
	"github.com/ag-ui/go-engine/pkg/core/events"
	"github.com/ag-ui/go-engine/pkg/middleware"
)

func TestRecordSessionsAssignsIdentity(t *testing.T) {
	reg := newRegistry(t)
	agent := testutil.NewScriptedProducer(testutil.Run("t", "r"))
	producer := middleware.Chain(agent, RecordSessions(reg, quietLogger()))

	stream, err := producer.Run(context.Background(), &core.RunRequest{})
	require.NoError(t, err)
	_, err = testutil.Collect(context.Background(), stream)
	require.NoError(t, err)

	received := agent.Requests()
	require.Len(t, received, 1)
	assert.NotEmpty(t, received[0].ThreadID)
	assert.NotEmpty(t, received[0].RunID)

	sess, err := reg.Get(context.Background(), received[0].ThreadID)
	require.NoError(t, err)
	assert.Equal(t, "r", sess.LastRunID)
}

func TestRecordSessionsSerializesThread(t *testing.T) {
	reg := newRegistry(t)
	writer, first := core.Pipe()
	calls := 0
	agent := core.ProducerFunc(func(context.Context, *core.RunRequest) (core.EventStream, error) {
		calls++
		if calls == 1 {
			return first, nil
		}
		return core.SliceStream(testutil.Run("t", "r2")...), nil
	})
	producer := middleware.Chain(agent, RecordSessions(reg, quietLogger()))

	stream, err := producer.Run(context.Background(), &core.RunRequest{ThreadID: "t", RunID: "r1"})
	require.NoError(t, err)

	started := make(chan core.EventStream, 1)
	go func() {
		s, err := producer.Run(context.Background(), &core.RunRequest{ThreadID: "t", RunID: "r2"})
		assert.NoError(t, err)
		started <- s
	}()

	select {
	case <-started:
		t.Fatal("second run started while the thread was busy")
	case <-time.After(50 * time.Millisecond):
	}

	ctx := context.Background()
	go func() {
		for _, event := range testutil.Run("t", "r1") {
			_ = writer.Send(ctx, event)
		}
		writer.Close(nil)
	}()
	_, err = testutil.Collect(ctx, stream)
	require.NoError(t, err)
	require.NoError(t, stream.Close())

	select {
	case second := <-started:
		_, err := testutil.Collect(ctx, second)
		require.NoError(t, err)
		require.NoError(t, second.Close())
	case <-time.After(5 * time.Second):
		t.Fatal("second run never started")
	}

	sess, err := reg.Get(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, 2, sess.Runs)
	assert.Equal(t, "r2", sess.LastRunID)
}

func TestRecordSessionsRejectsInvalidSequence(t *testing.T) {
	reg := newRegistry(t)
	bad := []events.Event{events.NewTextMessageStartEvent("m1")}
	producer := middleware.Chain(testutil.NewScriptedProducer(bad), RecordSessions(reg, quietLogger()))

	stream, err := producer.Run(context.Background(), &core.RunRequest{ThreadID: "t", RunID: "r"})
	require.NoError(t, err)
	_, err = testutil.Collect(context.Background(), stream)

	var seqErr *events.SequenceError
	require.True(t, errors.As(err, &seqErr))
	assert.Equal(t, events.RuleFirstEvent, seqErr.Rule)

	sess, err := reg.Get(context.Background(), "t")
	require.NoError(t, err)
	assert.Equal(t, 1, sess.Runs)
	assert.Empty(t, sess.Messages)
}

func TestRecordSessionsReleasesOnStartFailure(t *testing.T) {
	reg := newRegistry(t)
	producer := middleware.Chain(testutil.NewScriptedProducer(), RecordSessions(reg, quietLogger()))

	_, err := producer.Run(context.Background(), &core.RunRequest{ThreadID: "t", RunID: "r"})
	require.Error(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	lease, err := reg.Acquire(ctx, "t")
	require.NoError(t, err)
	lease.Release()
}
