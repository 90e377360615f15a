package alert

import (
	"context"
	"io"
	"sync"

	"github.com/secureher/secureher/server/models"
)

const deviceChunkSize = 4096

// readerDevice adapts an io.Reader (e.g. an uploaded multipart file) into a
// Device whose microphone stream yields the reader's bytes in chunks.
type readerDevice struct {
	reader io.Reader
}

func NewReaderDevice(reader io.Reader) Device {
	return &readerDevice{reader: reader}
}

func (d *readerDevice) RequestMicrophone(ctx context.Context) (AudioStream, error) {
	if d.reader == nil {
		return nil, ErrPermissionDenied
	}
	return &readerStream{reader: d.reader}, nil
}

type readerStream struct {
	mu       sync.Mutex
	reader   io.Reader
	released bool
}

func (s *readerStream) NextChunk() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return nil, io.EOF
	}

	chunk := make([]byte, deviceChunkSize)
	n, err := s.reader.Read(chunk)
	if n > 0 {
		return chunk[:n], nil
	}
	if err != nil {
		return nil, err
	}
	return nil, io.EOF
}

func (s *readerStream) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.released = true
	if closer, ok := s.reader.(io.Closer); ok {
		closer.Close()
	}
}

// staticLocationProvider resolves every read to a fixed position - the
// position the client captured & sent along with the trigger request.
type staticLocationProvider struct {
	coordinates models.Coordinates
}

func NewStaticLocationProvider(lat, lng float64) LocationProvider {
	return &staticLocationProvider{coordinates: models.Coordinates{Lat: lat, Lng: lng}}
}

func (p *staticLocationProvider) CurrentPosition(ctx context.Context, highAccuracy bool) (models.Coordinates, error) {
	return p.coordinates, nil
}
