package alert

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"
)

// DefaultMaxRecordingSeconds bounds how long a capture session may run
// before it is finalized automatically.
const DefaultMaxRecordingSeconds = 10

// CaptureSession records a bounded-duration audio clip into an in-memory
// buffer. The session counts down from the configured maximum at 1-second
// resolution & auto-stops when it reaches zero, even if Stop is never
// called. Stream exhaustion (EOF) also finalizes the session.
type CaptureSession struct {
	probe        *CapabilityProbe
	maxSeconds   int
	tickInterval time.Duration

	mu        sync.Mutex
	started   bool
	stopOnce  sync.Once
	stopChan  chan struct{}
	doneChan  chan struct{}
	chunks    [][]byte
	remaining int
}

func NewCaptureSession(probe *CapabilityProbe, maxSeconds int) *CaptureSession {
	if maxSeconds <= 0 {
		maxSeconds = DefaultMaxRecordingSeconds
	}

	return &CaptureSession{
		probe:        probe,
		maxSeconds:   maxSeconds,
		tickInterval: time.Second,
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
		remaining:    maxSeconds,
	}
}

// Start begins buffering audio chunks & starts the countdown. With no granted
// microphone capability it is a no-op & reports false.
func (session *CaptureSession) Start(ctx context.Context) bool {
	session.mu.Lock()
	defer session.mu.Unlock()

	if session.started || !session.probe.MicrophoneGranted() {
		return false
	}
	session.started = true

	go session.record(ctx)
	go session.countdown(ctx)

	return true
}

// Stop finalizes the buffered chunks & releases the device stream. Safe to
// call more than once; later calls are no-ops.
func (session *CaptureSession) Stop() {
	session.mu.Lock()
	if !session.started {
		session.mu.Unlock()
		return
	}
	session.mu.Unlock()

	session.stopOnce.Do(func() {
		close(session.stopChan)
		// Releasing the stream here (not just in the reader goroutine)
		// guarantees a blocked NextChunk observes the teardown.
		session.probe.Release()
	})
}

// Wait blocks until the session is finalized & returns the recorded clip as
// one binary blob. A session that never started yields nil.
func (session *CaptureSession) Wait() []byte {
	session.mu.Lock()
	started := session.started
	session.mu.Unlock()

	if !started {
		return nil
	}

	<-session.doneChan

	session.mu.Lock()
	defer session.mu.Unlock()
	return bytes.Join(session.chunks, nil)
}

// SecondsRemaining reports the countdown position, for progress display.
func (session *CaptureSession) SecondsRemaining() int {
	session.mu.Lock()
	defer session.mu.Unlock()
	return session.remaining
}

func (session *CaptureSession) record(ctx context.Context) {
	defer close(session.doneChan)
	defer session.probe.Release()

	stream := session.probe.Stream()
	for {
		select {
		case <-session.stopChan:
			return
		case <-ctx.Done():
			return
		default:
		}

		chunk, err := stream.NextChunk()
		if len(chunk) > 0 {
			session.mu.Lock()
			session.chunks = append(session.chunks, chunk)
			session.mu.Unlock()
		}
		if err == io.EOF {
			return
		}
		if err != nil {
			return
		}
	}
}

func (session *CaptureSession) countdown(ctx context.Context) {
	ticker := time.NewTicker(session.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-session.doneChan:
			return
		case <-ctx.Done():
			session.Stop()
			return
		case <-ticker.C:
			session.mu.Lock()
			session.remaining--
			expired := session.remaining <= 0
			session.mu.Unlock()

			if expired {
				session.Stop()
				return
			}
		}
	}
}
