package events_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/campus-match/internal/events"
	"github.com/oggyb/campus-match/internal/logger"
	"github.com/oggyb/campus-match/internal/testutil"
)

func TestFilterMatches(t *testing.T) {
	msg := events.New(events.TableMessages, events.OpInsert, "m1", nil, "a", "b").ForMatch("match-1")

	assert.True(t, events.Filter{}.Matches(msg))
	assert.True(t, events.Filter{Table: events.TableMessages, MatchID: "match-1", UserID: "a"}.Matches(msg))
	assert.False(t, events.Filter{Table: events.TableMatches}.Matches(msg))
	assert.False(t, events.Filter{MatchID: "match-2"}.Matches(msg))
	assert.False(t, events.Filter{UserID: "c"}.Matches(msg))

	report := events.New(events.TableReports, events.OpInsert, "r1", nil)
	assert.False(t, events.Filter{UserID: "a"}.Matches(report), "participant-less events are admin only")
}

func busContract(t *testing.T, bus events.Bus) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch, stop, err := bus.Subscribe(ctx, events.Filter{Table: events.TableMatches, UserID: "b"})
	require.NoError(t, err)
	defer stop()

	require.NoError(t, bus.Publish(ctx, events.New(events.TableMatches, events.OpInsert, "skip", nil, "x", "y")))
	require.NoError(t, bus.Publish(ctx, events.New(events.TableMessages, events.OpInsert, "skip2", nil, "b")))
	require.NoError(t, bus.Publish(ctx, events.New(events.TableMatches, events.OpInsert, "m1",
		map[string]string{"id": "m1"}, "a", "b")))

	select {
	case e := <-ch:
		assert.Equal(t, "m1", e.ID)
		assert.Equal(t, events.OpInsert, e.Type)
		assert.JSONEq(t, `{"id":"m1"}`, string(e.Row))
	case <-ctx.Done():
		t.Fatal("event not delivered")
	}

	stop()
	for range ch {
		// drained until closed
	}
}

func TestMemoryBus(t *testing.T) {
	busContract(t, events.NewMemoryBus())
}

func TestRedisBus(t *testing.T) {
	_, client := testutil.NewRedis(t)
	busContract(t, events.NewRedisBus(client, logger.Discard()))
}
