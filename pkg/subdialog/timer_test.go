package subdialog

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRealTimerService_FiresCallback(t *testing.T) {
	ts := NewRealTimerService()
	defer ts.RemoveTimer("h")

	fired := make(chan struct{})
	ts.SetTimer("h", 10*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
}

func TestRealTimerService_RemoveBeforeFireCancels(t *testing.T) {
	ts := NewRealTimerService()

	var fired atomic.Bool
	ts.SetTimer("h", 50*time.Millisecond, func() { fired.Store(true) })
	ts.RemoveTimer("h")

	time.Sleep(100 * time.Millisecond)
	assert.False(t, fired.Load())
}

func TestRealTimerService_SetTimerTwiceReplacesPrior(t *testing.T) {
	ts := NewRealTimerService()
	defer ts.RemoveTimer("h")

	var calls atomic.Int32
	ts.SetTimer("h", 10*time.Millisecond, func() { calls.Add(1) })
	ts.SetTimer("h", 50*time.Millisecond, func() { calls.Add(1) })

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

// RemoveTimer must not return while its callback is still running, so a
// caller that tears down shared state right after RemoveTimer never races
// an in-flight callback that reads it.
func TestRealTimerService_RemoveTimerJoinsInFlightCallback(t *testing.T) {
	ts := NewRealTimerService()

	var mu sync.Mutex
	shared := 0

	started := make(chan struct{})
	release := make(chan struct{})
	ts.SetTimer("h", time.Millisecond, func() {
		close(started)
		<-release
		mu.Lock()
		shared = 1
		mu.Unlock()
	})

	<-started
	close(release)
	ts.RemoveTimer("h")

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, shared, "RemoveTimer must wait for the in-flight callback to finish")
}

func TestRealTimerService_RemoveUnknownHandleIsNoop(t *testing.T) {
	ts := NewRealTimerService()
	assert.NotPanics(t, func() { ts.RemoveTimer("does-not-exist") })
}
