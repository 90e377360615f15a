package alert

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"

	"github.com/secureher/secureher/server/models"
)

// ErrNoContactsSelected is returned when an SOS trigger arrives with an empty
// selected set. No alert record is created & no relay call is made.
var ErrNoContactsSelected = errors.New("at least one contact must be selected")

// BlobUploader stores a binary blob & returns a reference URL for it.
type BlobUploader interface {
	UploadBlob(ctx context.Context, content io.Reader) (string, error)
}

// Config holds the lifecycle tunables. Zero values fall back to the package
// defaults.
type Config struct {
	MaxRecordingSeconds int
	LocationTimeout     time.Duration
	SentDisplayDelay    time.Duration
}

// Engine runs the full SOS lifecycle: capability probe -> audio capture ->
// blob upload + location fetch -> compose -> dispatch, reflecting progress
// through a per-trigger status controller. Within one lifecycle the alert
// record persist happens before the history append, which happens before the
// per-contact sends; no ordering exists between sends to different contacts.
type Engine struct {
	dispatcher *Dispatcher
	uploader   BlobUploader
	config     Config
}

func NewEngine(dispatcher *Dispatcher, uploader BlobUploader, config Config) *Engine {
	if config.MaxRecordingSeconds <= 0 {
		config.MaxRecordingSeconds = DefaultMaxRecordingSeconds
	}
	if config.LocationTimeout <= 0 {
		config.LocationTimeout = DefaultLocationTimeoutSeconds * time.Second
	}
	if config.SentDisplayDelay <= 0 {
		config.SentDisplayDelay = DefaultSentDisplaySeconds * time.Second
	}

	return &Engine{dispatcher: dispatcher, uploader: uploader, config: config}
}

// TriggerParams carries one SOS trigger's inputs. A nil Device means the
// microphone capability is absent; a nil Location means geolocation is
// unavailable. Both degrade the alert's data, neither aborts it.
type TriggerParams struct {
	User     *models.User
	Device   Device
	Location LocationProvider
}

type TriggerResult struct {
	Alert      *models.Alert    `json:"alert"`
	Deliveries []DeliveryResult `json:"deliveries"`
	Status     Status           `json:"status"`
}

// Trigger runs one alert lifecycle to completion. Concurrent triggers from
// the same user are not serialized; each run is independent & history
// appends rely on the store's merge semantics.
func (engine *Engine) Trigger(ctx context.Context, params TriggerParams) (*TriggerResult, error) {
	user := params.User

	selected, err := user.SelectedContactRecords()
	if err != nil {
		return nil, err
	}
	if len(user.SelectedContacts) == 0 {
		return nil, ErrNoContactsSelected
	}

	controller := NewStatusController(engine.config.SentDisplayDelay)
	if err := controller.To(StatusRecording); err != nil {
		return nil, err
	}

	audioBlob := engine.captureAudio(ctx, params.Device, controller)

	if ctx.Err() != nil {
		controller.Cancel()
		return nil, ctx.Err()
	}

	if err := controller.To(StatusSending); err != nil {
		return nil, err
	}

	audioURL := engine.uploadAudio(ctx, audioBlob)
	location := NewLocationFetcher(params.Location, engine.config.LocationTimeout).Fetch(ctx)

	if ctx.Err() != nil {
		controller.Cancel()
		return nil, ctx.Err()
	}

	composed := Compose(user.ID, user.SelectedContacts, audioURL, location)

	deliveries, err := engine.dispatcher.Dispatch(user, composed, selected)
	if err != nil {
		controller.MarkError()
		return &TriggerResult{Status: controller.Current()}, err
	}

	if err := controller.MarkSent(); err != nil {
		return nil, err
	}

	return &TriggerResult{Alert: composed, Deliveries: deliveries, Status: StatusSent}, nil
}

// captureAudio runs the capability probe & capture session. Permission
// denial is a distinct, recoverable outcome: the alert continues without
// audio.
func (engine *Engine) captureAudio(ctx context.Context, device Device, controller *StatusController) []byte {
	probe := NewCapabilityProbe(device)
	if err := probe.Acquire(ctx); err != nil {
		logg.Warnf("microphone unavailable, recording skipped: %v", err)
		return nil
	}

	session := NewCaptureSession(probe, engine.config.MaxRecordingSeconds)
	controller.AttachSession(session)

	if !session.Start(ctx) {
		probe.Release()
		return nil
	}

	return session.Wait()
}

func (engine *Engine) uploadAudio(ctx context.Context, audioBlob []byte) string {
	if len(audioBlob) == 0 || engine.uploader == nil {
		return ""
	}

	audioURL, err := engine.uploader.UploadBlob(ctx, bytes.NewReader(audioBlob))
	if err != nil {
		// A lost recording degrades the alert, it must never abort it
		logg.Errorf("audio upload failed: %v", err)
		return ""
	}

	return audioURL
}
