package alert

import (
	"fmt"
	"time"

	"github.com/secureher/secureher/server/logger"
	"github.com/secureher/secureher/server/models"
)

var logg = logger.NewLogger()

// Messenger relays one outbound message through the SMS gateway & returns
// the gateway message sid.
type Messenger interface {
	SendMessage(to, msg string) (string, error)
}

// DeliveryResult is the settled outcome of one per-contact relay call.
type DeliveryResult struct {
	ContactID uint   `json:"contact_id"`
	Phone     string `json:"phone"`
	Sid       string `json:"sid,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Dispatcher is the only component that crosses the process boundary to
// persistent storage & the SMS relay.
type Dispatcher struct {
	messenger Messenger
}

func NewDispatcher(messenger Messenger) *Dispatcher {
	return &Dispatcher{messenger: messenger}
}

// Dispatch persists the composed alert, links it to the user's alert history
// & fans out one relay call per contact with a usable phone number, capturing
// a settled result for each. A failed send to one contact is logged & never
// aborts delivery to the rest; only a persistence failure is returned as an
// error. The persisted alert keeps status "sent" regardless of individual
// send failures.
func (dispatcher *Dispatcher) Dispatch(user *models.User, composed *models.Alert, contacts []models.Contact) ([]DeliveryResult, error) {
	if err := models.CreateAlert(composed); err != nil {
		return nil, err
	}

	// The alert record exists at this point, so a failed history link is
	// logged rather than surfaced as a dispatch failure.
	if err := user.AppendAlertToHistory(composed.ID); err != nil {
		logg.Errorf("unable to append alert %v to user %v history: %v", composed.ID, user.ID, err)
	}

	message := ComposeMessage(user, composed)
	results := []DeliveryResult{}

	for _, contact := range contacts {
		if !contact.UsablePhoneNumber() {
			logg.Warnf("skipping contact %v on alert %v: no usable phone number", contact.ID, composed.ID)
			continue
		}

		result := DeliveryResult{ContactID: contact.ID, Phone: contact.PhoneNumber}

		sid, err := dispatcher.messenger.SendMessage(contact.PhoneNumber, message)
		if err != nil {
			result.Error = err.Error()
			logg.Errorf("failed to send alert %v sms to %v: %v", composed.ID, contact.PhoneNumber, err)
		} else {
			result.Sid = sid
		}

		results = append(results, result)
	}

	return results, nil
}

// ComposeMessage builds the outbound SMS body: a fixed preamble with the
// user's name, a map link or unavailable marker, the audio reference or
// unavailable marker & a human-readable timestamp.
func ComposeMessage(user *models.User, composed *models.Alert) string {
	location := "Location unavailable"
	if composed.Location != nil {
		location = fmt.Sprintf("https://maps.google.com/?q=%v,%v", composed.Location.Lat, composed.Location.Lng)
	}

	audio := "No recording available"
	if composed.AudioURL != "" {
		audio = composed.AudioURL
	}

	createdAt := composed.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	return fmt.Sprintf("Emergency Alert from %v %v!\nLocation: %v\nAudio: %v\nTime: %v",
		user.FirstName, user.LastName, location, audio, createdAt.Format(time.RFC1123))
}
