package alert

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/secureher/secureher/server/models"
	"github.com/stretchr/testify/assert"
)

type fakeLocationProvider struct {
	coordinates models.Coordinates
	err         error
	delay       time.Duration
}

func (p *fakeLocationProvider) CurrentPosition(ctx context.Context, highAccuracy bool) (models.Coordinates, error) {
	if p.delay > 0 {
		select {
		case <-ctx.Done():
			return models.Coordinates{}, ctx.Err()
		case <-time.After(p.delay):
		}
	}
	return p.coordinates, p.err
}

func TestFetchReturnsCoordinates(t *testing.T) {
	provider := &fakeLocationProvider{coordinates: models.Coordinates{Lat: 43.65, Lng: -79.38}}

	location := NewLocationFetcher(provider, time.Second).Fetch(context.Background())
	assert.NotNil(t, location)
	assert.Equal(t, 43.65, location.Lat)
	assert.Equal(t, -79.38, location.Lng)
}

func TestFetchWithoutProvider(t *testing.T) {
	location := NewLocationFetcher(nil, time.Second).Fetch(context.Background())
	assert.Nil(t, location, "a missing capability should read as position unavailable")
}

func TestFetchOnProviderError(t *testing.T) {
	provider := &fakeLocationProvider{err: errors.New("position unavailable")}

	location := NewLocationFetcher(provider, time.Second).Fetch(context.Background())
	assert.Nil(t, location)
}

func TestFetchTimesOut(t *testing.T) {
	provider := &fakeLocationProvider{
		coordinates: models.Coordinates{Lat: 1, Lng: 2},
		delay:       time.Second,
	}

	location := NewLocationFetcher(provider, 10*time.Millisecond).Fetch(context.Background())
	assert.Nil(t, location, "a slow read should be dropped, not waited on")
}
