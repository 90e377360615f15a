package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCreateAlertRequiresContacts(t *testing.T) {
	InitializeTestDb()
	user := newTestUser(t, "4165550001", "sarah@example.com")

	err := CreateAlert(&Alert{UserID: user.ID, Status: SENT_ALERT})
	assert.NotNil(t, err)
}

func TestAlertKeepsAbsentFieldsNull(t *testing.T) {
	InitializeTestDb()
	user := newTestUser(t, "4165550001", "sarah@example.com")

	alert := &Alert{UserID: user.ID, ContactIDs: IDList{1}, Status: SENT_ALERT}
	assert.Nil(t, CreateAlert(alert))

	found, err := FindAlert(alert.ID)
	assert.Nil(t, err)
	assert.Empty(t, found.AudioURL)
	assert.Nil(t, found.Location, "absent location should load back as nil, not zero coordinates")
}

func TestAlertRoundTripsLocationAndAudio(t *testing.T) {
	InitializeTestDb()
	user := newTestUser(t, "4165550001", "sarah@example.com")

	alert := &Alert{
		UserID:     user.ID,
		ContactIDs: IDList{1, 2},
		AudioURL:   "https://example.com/clip",
		Location:   &Coordinates{Lat: 43.65, Lng: -79.38},
		Status:     SENT_ALERT,
	}
	assert.Nil(t, CreateAlert(alert))

	found, err := FindAlert(alert.ID)
	assert.Nil(t, err)
	assert.Equal(t, IDList{1, 2}, found.ContactIDs)
	assert.Equal(t, "https://example.com/clip", found.AudioURL)
	assert.NotNil(t, found.Location)
	assert.Equal(t, 43.65, found.Location.Lat)
}

func TestFetchAlertsNewestFirst(t *testing.T) {
	InitializeTestDb()
	user := newTestUser(t, "4165550001", "sarah@example.com")

	first := &Alert{UserID: user.ID, ContactIDs: IDList{1}, Status: SENT_ALERT}
	second := &Alert{UserID: user.ID, ContactIDs: IDList{1}, Status: ERROR_ALERT}
	assert.Nil(t, CreateAlert(first))
	assert.Nil(t, CreateAlert(second))

	alerts, paging, err := FetchAlerts(user.ID, 1)
	assert.Nil(t, err)
	assert.Len(t, alerts, 2)
	assert.Equal(t, second.ID, alerts[0].ID, "newest alert should come first")
	assert.Equal(t, int64(2), paging.Total)
}
