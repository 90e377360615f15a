package alert

import (
	"context"
	"time"

	"github.com/secureher/secureher/server/models"
)

// DefaultLocationTimeoutSeconds bounds the single-shot geolocation read.
const DefaultLocationTimeoutSeconds = 10

// LocationProvider performs a single position read. Implementations are
// expected to honor ctx cancellation.
type LocationProvider interface {
	CurrentPosition(ctx context.Context, highAccuracy bool) (models.Coordinates, error)
}

// LocationFetcher performs one best-effort geolocation read with a bounded
// wait & a high-accuracy hint.
type LocationFetcher struct {
	provider LocationProvider
	timeout  time.Duration
}

func NewLocationFetcher(provider LocationProvider, timeout time.Duration) *LocationFetcher {
	if timeout <= 0 {
		timeout = DefaultLocationTimeoutSeconds * time.Second
	}

	return &LocationFetcher{provider: provider, timeout: timeout}
}

// Fetch returns the current coordinates, or nil when the position is
// unavailable. Denial, timeout & a missing capability are all the same
// non-fatal outcome - Fetch never returns an error.
func (fetcher *LocationFetcher) Fetch(ctx context.Context) *models.Coordinates {
	if fetcher.provider == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, fetcher.timeout)
	defer cancel()

	type outcome struct {
		coordinates models.Coordinates
		err         error
	}

	outcomeChan := make(chan outcome, 1)
	go func() {
		coordinates, err := fetcher.provider.CurrentPosition(ctx, true)
		outcomeChan <- outcome{coordinates: coordinates, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil
	case result := <-outcomeChan:
		if result.err != nil {
			return nil
		}
		return &result.coordinates
	}
}
