package alert

import (
	"errors"
	"fmt"
	"testing"

	"github.com/secureher/secureher/server/models"
	"github.com/stretchr/testify/assert"
)

// fakeMessenger records every send & fails for numbers in failFor.
type fakeMessenger struct {
	sent    []string
	failFor map[string]bool
}

func (m *fakeMessenger) SendMessage(to, msg string) (string, error) {
	if m.failFor[to] {
		return "", errors.New("gateway rejected message")
	}
	m.sent = append(m.sent, to)
	return fmt.Sprintf("SM-%v", len(m.sent)), nil
}

func createTestUser(t *testing.T, phone, email string) *models.User {
	user := &models.User{
		FirstName:   "Sarah",
		LastName:    "Connor",
		PhoneNumber: phone,
		Email:       email,
		Password:    "secret-password",
	}
	assert.Nil(t, models.CreateUser(user))
	return user
}

func TestDispatchFansOutToEveryContact(t *testing.T) {
	models.InitializeTestDb()
	user := createTestUser(t, "4165550001", "sarah@example.com")

	contacts := []models.Contact{
		{BaseModel: models.BaseModel{ID: 1}, FirstName: "Kyle", PhoneNumber: "4165550002"},
		{BaseModel: models.BaseModel{ID: 2}, FirstName: "John", PhoneNumber: "4165550003"},
	}

	messenger := &fakeMessenger{}
	composed := Compose(user.ID, models.IDList{1, 2}, "", nil)

	results, err := NewDispatcher(messenger).Dispatch(user, composed, contacts)
	assert.Nil(t, err)
	assert.Len(t, results, 2)
	assert.Equal(t, []string{"4165550002", "4165550003"}, messenger.sent)

	for _, result := range results {
		assert.NotEmpty(t, result.Sid)
		assert.Empty(t, result.Error)
	}

	// The alert record & history link should both exist
	persisted, err := models.FindAlert(composed.ID)
	assert.Nil(t, err)
	assert.Equal(t, models.SENT_ALERT, persisted.Status)

	user, err = models.FindUserBy("id", user.ID)
	assert.Nil(t, err)
	assert.Contains(t, user.AlertHistory, composed.ID)
}

func TestDispatchKeepsGoingPastFailedSends(t *testing.T) {
	models.InitializeTestDb()
	user := createTestUser(t, "4165550001", "sarah@example.com")

	contacts := []models.Contact{
		{BaseModel: models.BaseModel{ID: 1}, FirstName: "Kyle", PhoneNumber: "4165550002"},
		{BaseModel: models.BaseModel{ID: 2}, FirstName: "John", PhoneNumber: "4165550003"},
	}

	messenger := &fakeMessenger{failFor: map[string]bool{"4165550002": true}}
	composed := Compose(user.ID, models.IDList{1, 2}, "", nil)

	results, err := NewDispatcher(messenger).Dispatch(user, composed, contacts)
	assert.Nil(t, err)
	assert.Len(t, results, 2)

	assert.NotEmpty(t, results[0].Error, "the failed send should carry its error")
	assert.Empty(t, results[0].Sid)
	assert.NotEmpty(t, results[1].Sid, "the second send should still go out")

	// A failed individual send does not flip the persisted alert's status
	persisted, err := models.FindAlert(composed.ID)
	assert.Nil(t, err)
	assert.Equal(t, models.SENT_ALERT, persisted.Status)
}

func TestDispatchSkipsContactsWithoutPhoneNumbers(t *testing.T) {
	models.InitializeTestDb()
	user := createTestUser(t, "4165550001", "sarah@example.com")

	contacts := []models.Contact{
		{BaseModel: models.BaseModel{ID: 1}, FirstName: "Kyle"},
		{BaseModel: models.BaseModel{ID: 2}, FirstName: "John", PhoneNumber: "4165550003"},
	}

	messenger := &fakeMessenger{}
	composed := Compose(user.ID, models.IDList{1, 2}, "", nil)

	results, err := NewDispatcher(messenger).Dispatch(user, composed, contacts)
	assert.Nil(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, []string{"4165550003"}, messenger.sent)
}

func TestComposeMessage(t *testing.T) {
	user := &models.User{FirstName: "Sarah", LastName: "Connor"}

	msg := ComposeMessage(user, &models.Alert{
		AudioURL: "https://storage.googleapis.com/bucket/audio/clip",
		Location: &models.Coordinates{Lat: 10, Lng: 20},
	})
	assert.Contains(t, msg, "Emergency Alert from Sarah Connor!")
	assert.Contains(t, msg, "https://maps.google.com/?q=10,20")
	assert.Contains(t, msg, "https://storage.googleapis.com/bucket/audio/clip")

	msg = ComposeMessage(user, &models.Alert{})
	assert.Contains(t, msg, "Location unavailable")
	assert.Contains(t, msg, "No recording available")
}

func TestComposeLeavesAbsentFieldsOut(t *testing.T) {
	composed := Compose(7, models.IDList{1}, "", nil)
	assert.Empty(t, composed.AudioURL)
	assert.Nil(t, composed.Location)
	assert.Equal(t, models.SENT_ALERT, composed.Status)

	composed = Compose(7, models.IDList{1}, "https://example.com/clip", &models.Coordinates{Lat: 1, Lng: 2})
	assert.Equal(t, "https://example.com/clip", composed.AudioURL)
	assert.Equal(t, 1.0, composed.Location.Lat)
}
