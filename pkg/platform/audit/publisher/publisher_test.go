package publisher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "trustreg/pkg/platform/audit"
	"trustreg/pkg/platform/audit/store/memory"
)

const manufacturer = "ST2CY5V39NHDPWSXMW9QDT3HC3GD6Q6XX4CFRK9AG"

func TestPublisher_SyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	err := pub.Emit(context.Background(), audit.Event{
		Subject: manufacturer,
		Action:  string(audit.EventManufacturerRegistered),
	})
	require.NoError(t, err)

	events, err := pub.List(context.Background(), manufacturer)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.EventManufacturerRegistered), events[0].Action)
	assert.Equal(t, audit.CategoryCompliance, events[0].Category)
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", events[0].ID.String())
}

func TestPublisher_AsyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(10))
	defer pub.Close()

	err := pub.Emit(context.Background(), audit.Event{
		Subject: manufacturer,
		Action:  string(audit.EventMutationDenied),
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		events, _ := pub.List(context.Background(), manufacturer)
		return len(events) == 1
	}, time.Second, 10*time.Millisecond)

	events, err := pub.List(context.Background(), manufacturer)
	require.NoError(t, err)
	assert.Equal(t, audit.CategorySecurity, events[0].Category)
}

func TestPublisher_AsyncDrainsOnClose(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(100))

	for range 10 {
		err := pub.Emit(context.Background(), audit.Event{
			Subject: manufacturer,
			Action:  string(audit.EventVerificationChecked),
		})
		require.NoError(t, err)
	}

	pub.Close()
	pub.Close()

	events, err := store.ListBySubject(context.Background(), manufacturer)
	require.NoError(t, err)
	assert.Len(t, events, 10, "all events should be drained on close")
}

func TestPublisher_EmitAfterClose(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(10))
	pub.Close()

	err := pub.Emit(context.Background(), audit.Event{
		Subject: manufacturer,
		Action:  string(audit.EventMutationDenied),
	})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestPublisher_CloseWhileEmitting(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(1000))

	var (
		wg       sync.WaitGroup
		accepted atomic.Int32
	)
	start := make(chan struct{})
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			for range 100 {
				err := pub.Emit(context.Background(), audit.Event{
					Subject: manufacturer,
					Action:  string(audit.EventVerificationChecked),
				})
				switch {
				case err == nil:
					accepted.Add(1)
				case !errors.Is(err, ErrClosed) && !errors.Is(err, ErrBufferFull):
					t.Errorf("unexpected emit error: %v", err)
				}
			}
		}()
	}
	close(start)
	pub.Close()
	wg.Wait()

	// everything accepted before Close was stored
	events, err := store.ListBySubject(context.Background(), manufacturer)
	require.NoError(t, err)
	assert.Len(t, events, int(accepted.Load()))
}

func TestPublisher_BufferFull_DropsEvent(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(1))
	defer pub.Close()

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := pub.Emit(context.Background(), audit.Event{
				Subject: manufacturer,
				Action:  string(audit.EventVerificationChecked),
			})
			if err != nil {
				assert.True(t, errors.Is(err, ErrBufferFull))
			}
		}()
	}
	wg.Wait()
}

func TestPublisher_SetsTimestamp(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithClock(func() time.Time { return fixed }))
	defer pub.Close()

	require.NoError(t, pub.Emit(context.Background(), audit.Event{
		Subject: manufacturer,
		Action:  string(audit.EventManufacturerRegistered),
	}))

	events, err := pub.List(context.Background(), manufacturer)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, fixed, events[0].Timestamp)
}

func TestPublisher_PreservesExistingFields(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	customTime := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, pub.Emit(context.Background(), audit.Event{
		Subject:   manufacturer,
		Action:    string(audit.EventManufacturerRegistered),
		Category:  audit.CategorySecurity,
		Timestamp: customTime,
	}))

	events, err := pub.List(context.Background(), manufacturer)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, customTime, events[0].Timestamp)
	assert.Equal(t, audit.CategorySecurity, events[0].Category)
}

func TestPublisher_ContextCancellation(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(1))
	defer pub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for range 3 {
		err := pub.Emit(ctx, audit.Event{Subject: manufacturer, Action: string(audit.EventVerificationChecked)})
		if err != nil {
			assert.True(t, errors.Is(err, context.Canceled) || errors.Is(err, ErrBufferFull),
				"expected context.Canceled or buffer full error, got: %v", err)
		}
	}
}

func TestPublisher_DifferentSubjects(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	require.NoError(t, pub.Emit(context.Background(), audit.Event{Subject: "a", Action: string(audit.EventManufacturerRegistered)}))
	require.NoError(t, pub.Emit(context.Background(), audit.Event{Subject: "b", Action: string(audit.EventManufacturerDeactivated)}))
	require.NoError(t, pub.Emit(context.Background(), audit.Event{Subject: "a", Action: string(audit.EventManufacturerDeactivated)}))

	eventsA, err := pub.List(context.Background(), "a")
	require.NoError(t, err)
	require.Len(t, eventsA, 2)
	assert.Equal(t, string(audit.EventManufacturerRegistered), eventsA[0].Action)
	assert.Equal(t, string(audit.EventManufacturerDeactivated), eventsA[1].Action)

	recent, err := pub.ListRecent(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "a", recent[0].Subject)
	assert.Equal(t, "b", recent[1].Subject)
}
