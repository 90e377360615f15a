package alert

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProbeDeniesWithoutDevice(t *testing.T) {
	probe := NewCapabilityProbe(nil)
	assert.ErrorIs(t, probe.Acquire(contextForTest(t)), ErrPermissionDenied)
	assert.False(t, probe.MicrophoneGranted())
}

func TestProbeReleaseFromConcurrentGoroutines(t *testing.T) {
	stream := newBlockingStream()
	probe := grantedProbe(t, stream)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			probe.Release()
		}()
	}
	wg.Wait()

	assert.True(t, stream.Released())
	assert.False(t, probe.MicrophoneGranted())
}

func TestAutoStoppedSessionsTearDownCleanly(t *testing.T) {
	// The countdown's Stop races the record goroutine's deferred release on
	// every expiring session
	for i := 0; i < 25; i++ {
		stream := newBlockingStream()
		probe := grantedProbe(t, stream)

		session := NewCaptureSession(probe, 1)
		session.tickInterval = time.Millisecond

		assert.True(t, session.Start(contextForTest(t)))
		session.Wait()
		assert.True(t, stream.Released())
	}
}
