package alert

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeDevice hands out a canned stream, or refuses access when denyAccess
// is set.
type fakeDevice struct {
	stream     AudioStream
	denyAccess bool
}

func (d *fakeDevice) RequestMicrophone(ctx context.Context) (AudioStream, error) {
	if d.denyAccess {
		return nil, ErrPermissionDenied
	}
	return d.stream, nil
}

// chunkStream yields a fixed set of chunks & then io.EOF.
type chunkStream struct {
	mu       sync.Mutex
	chunks   [][]byte
	released bool
}

func (s *chunkStream) NextChunk() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released || len(s.chunks) == 0 {
		return nil, io.EOF
	}

	chunk := s.chunks[0]
	s.chunks = s.chunks[1:]
	return chunk, nil
}

func (s *chunkStream) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released = true
}

// blockingStream blocks NextChunk until the stream is released, like a live
// microphone with a quiet room.
type blockingStream struct {
	mu          sync.Mutex
	releaseChan chan struct{}
	released    bool
}

func newBlockingStream() *blockingStream {
	return &blockingStream{releaseChan: make(chan struct{})}
}

func (s *blockingStream) NextChunk() ([]byte, error) {
	<-s.releaseChan
	return nil, io.EOF
}

func (s *blockingStream) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.released {
		s.released = true
		close(s.releaseChan)
	}
}

func (s *blockingStream) Released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

func contextForTest(t *testing.T) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}

func grantedProbe(t *testing.T, stream AudioStream) *CapabilityProbe {
	probe := NewCapabilityProbe(&fakeDevice{stream: stream})
	assert.Nil(t, probe.Acquire(contextForTest(t)))
	return probe
}

func TestSessionRecordsUntilStreamExhausted(t *testing.T) {
	probe := grantedProbe(t, &chunkStream{chunks: [][]byte{[]byte("aud"), []byte("io")}})

	session := NewCaptureSession(probe, 60)
	assert.True(t, session.Start(contextForTest(t)))
	assert.Equal(t, []byte("audio"), session.Wait(), "chunks should be joined into one blob")
}

func TestSessionAutoStopsWhenCountdownExpires(t *testing.T) {
	stream := newBlockingStream()
	probe := grantedProbe(t, stream)

	session := NewCaptureSession(probe, 2)
	session.tickInterval = time.Millisecond

	assert.True(t, session.Start(contextForTest(t)))
	assert.Empty(t, session.Wait())
	assert.True(t, stream.Released(), "expiry should release the device stream")
	assert.LessOrEqual(t, session.SecondsRemaining(), 0)
}

func TestSessionWithoutGrantedMicrophone(t *testing.T) {
	probe := NewCapabilityProbe(&fakeDevice{denyAccess: true})
	assert.ErrorIs(t, probe.Acquire(contextForTest(t)), ErrPermissionDenied)

	session := NewCaptureSession(probe, 2)
	assert.False(t, session.Start(contextForTest(t)), "a denied probe should make Start a no-op")
	assert.Nil(t, session.Wait())
}

func TestSessionStopIsIdempotent(t *testing.T) {
	stream := newBlockingStream()
	probe := grantedProbe(t, stream)

	session := NewCaptureSession(probe, 60)
	assert.True(t, session.Start(contextForTest(t)))

	session.Stop()
	session.Stop()
	session.Wait()
	assert.True(t, stream.Released())
}

func TestSessionStopsOnContextCancel(t *testing.T) {
	stream := newBlockingStream()
	probe := grantedProbe(t, stream)

	ctx, cancel := context.WithCancel(context.Background())
	session := NewCaptureSession(probe, 60)
	session.tickInterval = time.Millisecond

	assert.True(t, session.Start(ctx))
	cancel()

	session.Wait()
	assert.True(t, stream.Released())
}
