package alert

import (
	"context"
	"errors"
	"sync"
)

// ErrPermissionDenied is reported when the host environment refuses access to
// a capability. It is a recoverable status - the alert flow continues with
// degraded data, it never crashes the lifecycle.
var ErrPermissionDenied = errors.New("capability permission denied")

// Device is the host environment's media interface. In the mobile-web client
// this is the browser microphone; on the server it wraps whatever audio
// source the request carries.
type Device interface {
	// RequestMicrophone asks for microphone access & returns an open stream.
	RequestMicrophone(ctx context.Context) (AudioStream, error)
}

// AudioStream is an acquired microphone stream, held open until released.
type AudioStream interface {
	// NextChunk returns the next buffered audio chunk, io.EOF once the
	// stream is exhausted.
	NextChunk() ([]byte, error)
	// Release closes the underlying device stream.
	Release()
}

// CapabilityProbe requests microphone access & tracks the outcome, so
// recording-dependent operations can be disabled on denial instead of
// failing mid-flow. It holds the acquired stream until Release is called.
// Release races the recording goroutine's teardown on every auto-stopped
// session, so the held stream is mutex-guarded.
type CapabilityProbe struct {
	mu     sync.Mutex
	device Device
	stream AudioStream
	denied bool
}

func NewCapabilityProbe(device Device) *CapabilityProbe {
	return &CapabilityProbe{device: device}
}

// Acquire requests microphone access. A missing device or refusal is recorded
// as a denial & reported as ErrPermissionDenied.
func (probe *CapabilityProbe) Acquire(ctx context.Context) error {
	probe.mu.Lock()
	defer probe.mu.Unlock()

	if probe.device == nil {
		probe.denied = true
		return ErrPermissionDenied
	}

	stream, err := probe.device.RequestMicrophone(ctx)
	if err != nil {
		probe.denied = true
		return ErrPermissionDenied
	}

	probe.stream = stream
	return nil
}

// MicrophoneGranted reports whether an acquired stream is being held.
func (probe *CapabilityProbe) MicrophoneGranted() bool {
	probe.mu.Lock()
	defer probe.mu.Unlock()
	return probe.stream != nil && !probe.denied
}

func (probe *CapabilityProbe) Stream() AudioStream {
	probe.mu.Lock()
	defer probe.mu.Unlock()
	return probe.stream
}

// Release closes the held stream, if any. Safe to call more than once & from
// concurrent goroutines.
func (probe *CapabilityProbe) Release() {
	probe.mu.Lock()
	stream := probe.stream
	probe.stream = nil
	probe.mu.Unlock()

	if stream != nil {
		stream.Release()
	}
}
