package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMessage_RoundTripsPayload(t *testing.T) {
	msg, err := NewMessage(TypeRosterSaved, RosterSaved{ClassID: 10, Date: "2024-01-05"})
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, TypeRosterSaved, msg.Type)

	var got RosterSaved
	require.NoError(t, msg.Decode(&got))
	assert.Equal(t, RosterSaved{ClassID: 10, Date: "2024-01-05"}, got)
}

func TestInMemory_PublishConsume(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	q := NewInMemory(4)
	first, err := NewMessage(TypeRosterSaved, RosterSaved{ClassID: 1, Date: "2024-01-05"})
	require.NoError(t, err)
	second, err := NewMessage(TypeRosterSaved, RosterSaved{ClassID: 2, Date: "2024-01-05"})
	require.NoError(t, err)
	require.NoError(t, q.Publish(ctx, first))
	require.NoError(t, q.Publish(ctx, second))

	ch, err := q.Consume(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, (<-ch).ID)
	assert.Equal(t, second.ID, (<-ch).ID)
}

func TestInMemory_ConsumeClosesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := NewInMemory(1).Consume(ctx)
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("consumer channel not closed")
	}
}

func TestInMemory_PublishRespectsContext(t *testing.T) {
	q := NewInMemory(0)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := q.Publish(ctx, Message{Type: TypeRosterSaved})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
