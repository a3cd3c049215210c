package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"daily-routine-service/internal/models"
)

var bath = models.TaskDefinition{
	ID:        "bath",
	StartTime: models.MustTimeOfDay("18:30"),
	EndTime:   models.MustTimeOfDay("19:15"),
	Period:    models.PeriodEvening,
}

func TestCodec_RoundTrip(t *testing.T) {
	at := time.Date(2024, 5, 1, 18, 45, 12, 345, time.UTC)
	e := NewCompletionEvent(bath, models.StatusChecked, "2024-05-01", at)

	data, err := Encode(e)
	require.NoError(t, err)
	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, e.ID, got.ID)
	assert.Equal(t, "bath", got.TaskID)
	assert.Equal(t, models.StatusChecked, got.Status)
	assert.Equal(t, models.PeriodEvening, got.Period)
	assert.Equal(t, "2024-05-01", got.Date)
	assert.True(t, at.Equal(got.Timestamp))
	assert.Equal(t, []byte("2024-05-01/bath"), got.Key())
}

func TestDecode_Rejects(t *testing.T) {
	_, err := Decode([]byte{0xff, 0xff, 0xff})
	assert.Error(t, err)

	s, err := structpb.NewStruct(map[string]interface{}{
		"id":        "00000000-0000-0000-0000-000000000001",
		"task_id":   "bath",
		"status":    "pending",
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	})
	require.NoError(t, err)
	data, err := proto.Marshal(s)
	require.NoError(t, err)
	_, err = Decode(data)
	assert.ErrorContains(t, err, "non-terminal status")

	s.Fields["id"] = structpb.NewStringValue("not-a-uuid")
	data, err = proto.Marshal(s)
	require.NoError(t, err)
	_, err = Decode(data)
	assert.ErrorContains(t, err, "completion event id")
}

func TestBus_DeliversInOrderToEverySubscriber(t *testing.T) {
	b := NewBus(16)
	var mu sync.Mutex
	got := map[string][]string{}
	record := func(name string) Handler {
		return func(_ context.Context, e CompletionEvent) error {
			mu.Lock()
			got[name] = append(got[name], e.TaskID)
			mu.Unlock()
			return nil
		}
	}
	require.NoError(t, b.Subscribe("a", record("a")))
	require.NoError(t, b.Subscribe("b", record("b")))

	for _, id := range []string{"one", "two", "three"} {
		b.Publish(CompletionEvent{TaskID: id, Status: models.StatusChecked})
	}
	b.Close()

	assert.Equal(t, []string{"one", "two", "three"}, got["a"])
	assert.Equal(t, []string{"one", "two", "three"}, got["b"])
}

func TestBus_FailingSubscriberDoesNotAffectOthers(t *testing.T) {
	b := NewBus(4)
	var delivered []string
	require.NoError(t, b.Subscribe("broken", func(context.Context, CompletionEvent) error {
		return errors.New("boom")
	}))
	require.NoError(t, b.Subscribe("panicky", func(context.Context, CompletionEvent) error {
		panic("oops")
	}))
	require.NoError(t, b.Subscribe("ok", func(_ context.Context, e CompletionEvent) error {
		delivered = append(delivered, e.TaskID)
		return nil
	}))
	b.Publish(CompletionEvent{TaskID: "x"})
	b.Publish(CompletionEvent{TaskID: "y"})
	b.Close()
	assert.Equal(t, []string{"x", "y"}, delivered)
}

func TestBus_PublishNeverBlocksOnSlowSubscriber(t *testing.T) {
	b := NewBus(1)
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	require.NoError(t, b.Subscribe("slow", func(context.Context, CompletionEvent) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return nil
	}))

	b.Publish(CompletionEvent{TaskID: "first"})
	<-started
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			b.Publish(CompletionEvent{TaskID: "more"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
	assert.Equal(t, int64(9), b.Dropped())
	close(release)
	b.Close()
}

func TestBus_ClosedRejectsSubscribeAndIgnoresPublish(t *testing.T) {
	b := NewBus(0)
	b.Close()
	b.Close()
	assert.ErrorIs(t, b.Subscribe("late", func(context.Context, CompletionEvent) error { return nil }), models.ErrClosed)
	b.Publish(CompletionEvent{TaskID: "ignored"})
	assert.Zero(t, b.Dropped())
}
