package circuit

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// outcome is one recorded call: true for success.
type outcome bool

const (
	ok   outcome = true
	fail outcome = false
)

func record(b *Breaker, outcomes ...outcome) (opened, closed int) {
	for _, o := range outcomes {
		var change StateChange
		if o {
			_, change = b.RecordSuccess()
		} else {
			_, change = b.RecordFailure()
		}
		if change.Opened {
			opened++
		}
		if change.Closed {
			closed++
		}
	}
	return opened, closed
}

func TestNewBreakerStartsClosed(t *testing.T) {
	b := New("kafka-publisher")

	assert.Equal(t, "kafka-publisher", b.Name())
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, "closed", b.State().String())
	assert.False(t, b.IsOpen())
}

func TestBreakerTransitions(t *testing.T) {
	tests := []struct {
		name       string
		opts       []Option
		outcomes   []outcome
		wantState  State
		wantOpened int
		wantClosed int
	}{
		{
			name:      "default threshold needs five failures",
			outcomes:  []outcome{fail, fail, fail, fail},
			wantState: StateClosed,
		},
		{
			name:       "opens on the fifth failure",
			outcomes:   []outcome{fail, fail, fail, fail, fail},
			wantState:  StateOpen,
			wantOpened: 1,
		},
		{
			name:      "success in between restarts the failure run",
			opts:      []Option{WithFailureThreshold(3)},
			outcomes:  []outcome{fail, fail, ok, fail, fail},
			wantState: StateClosed,
		},
		{
			name:       "failures while open are not transitions",
			opts:       []Option{WithFailureThreshold(2)},
			outcomes:   []outcome{fail, fail, fail, fail},
			wantState:  StateOpen,
			wantOpened: 1,
		},
		{
			name:       "one success closes with the default threshold",
			opts:       []Option{WithFailureThreshold(1)},
			outcomes:   []outcome{fail, ok},
			wantState:  StateClosed,
			wantOpened: 1,
			wantClosed: 1,
		},
		{
			name:       "failure while half way to closing restarts the success run",
			opts:       []Option{WithFailureThreshold(1), WithSuccessThreshold(2)},
			outcomes:   []outcome{fail, ok, fail, ok},
			wantState:  StateOpen,
			wantOpened: 1,
		},
		{
			name:       "reopens after closing",
			opts:       []Option{WithFailureThreshold(1), WithSuccessThreshold(2)},
			outcomes:   []outcome{fail, ok, ok, fail},
			wantState:  StateOpen,
			wantOpened: 2,
			wantClosed: 1,
		},
		{
			name:      "non-positive thresholds keep the defaults",
			opts:      []Option{WithFailureThreshold(0), WithSuccessThreshold(-1)},
			outcomes:  []outcome{fail, fail, fail, fail},
			wantState: StateClosed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New("journal", tt.opts...)
			opened, closed := record(b, tt.outcomes...)

			assert.Equal(t, tt.wantState, b.State())
			assert.Equal(t, tt.wantOpened, opened, "open transitions")
			assert.Equal(t, tt.wantClosed, closed, "close transitions")
		})
	}
}

func TestBreakerReportsFallbackAndPrimary(t *testing.T) {
	b := New("journal", WithFailureThreshold(1), WithSuccessThreshold(2))

	useFallback, _ := b.RecordFailure()
	assert.True(t, useFallback, "the failure that opens the circuit already uses the fallback")

	usePrimary, _ := b.RecordSuccess()
	assert.False(t, usePrimary, "still open after one of two successes")

	usePrimary, _ = b.RecordSuccess()
	assert.True(t, usePrimary)
}

func TestBreakerReset(t *testing.T) {
	b := New("journal", WithFailureThreshold(2))
	record(b, fail, fail)
	require.True(t, b.IsOpen())

	b.Reset()
	assert.False(t, b.IsOpen())

	opened, _ := record(b, fail)
	assert.Zero(t, opened, "reset clears the failure count")
}

func TestBreakerOpensOnceUnderConcurrentFailures(t *testing.T) {
	b := New("kafka", WithFailureThreshold(10))

	var (
		wg     sync.WaitGroup
		opened atomic.Int32
	)
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, change := b.RecordFailure(); change.Opened {
				opened.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.True(t, b.IsOpen())
	assert.Equal(t, int32(1), opened.Load())
}
